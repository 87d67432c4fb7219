// Copyright (c) 2020-2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package energy

import (
	"github.com/openthread/ot-tsch/radio"
	. "github.com/openthread/ot-tsch/types"
)

/*
 * Default consumption values by state of STM32WB55rg at 3.3V.
 * Consumption in kilowatts, time in microseconds, resulting energy in mJ.
 */
const (
	RadioDisabledConsumption float64 = 0.00000011 //kilowatts, to be confirmed
	RadioTxConsumption       float64 = 0.00001716 //kilowatts @ i = 5.2 mA
	RadioRxConsumption       float64 = 0.00001485 //kilowatts @ i = 4.5 mA
	RadioSleepConsumption    float64 = 0.00001485 //kilowatts @ i = 4.5 mA
)

const (
	ComputePeriod uint64 = 30000000 // in microseconds
)

type RadioStatus struct {
	State         RadioStates
	SpentDisabled uint64
	SpentSleep    uint64
	SpentTx       uint64
	SpentRx       uint64
	Timestamp     uint64
}

// NodeConsumption is the energy spent by one node per radio state, in mJ.
type NodeConsumption struct {
	NodeId   NodeId  `json:"node_id"`
	Disabled float64 `json:"disabled"`
	Sleep    float64 `json:"sleep"`
	Tx       float64 `json:"tx"`
	Rx       float64 `json:"rx"`
}

func (c NodeConsumption) Total() float64 {
	return c.Disabled + c.Sleep + c.Tx + c.Rx
}

type NetworkConsumption struct {
	Timestamp          uint64
	EnergyConsDisabled float64
	EnergyConsSleep    float64
	EnergyConsTx       float64
	EnergyConsRx       float64
}

// StateOf maps the MAC's view of the radio to the state that determines its current draw. The
// transceiver is powered but idle while it is configured, and a settling radio already
// draws the current of the direction it is turning on to.
func StateOf(s radio.State) RadioStates {
	switch s {
	case radio.Stopped:
		return RadioDisabled
	case radio.Off, radio.SettingFrequency, radio.FrequencySet, radio.TurningOff:
		return RadioSleep
	case radio.EnablingTx, radio.TxEnabled, radio.Transmitting:
		return RadioTx
	case radio.EnablingRx, radio.Listening, radio.Receiving, radio.TxRxDone:
		return RadioRx
	default:
		return RadioInvalid
	}
}
