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

package radio

// State of the radio as seen by the MAC engine.
type State uint8

const (
	Stopped State = iota
	Off
	SettingFrequency
	FrequencySet
	EnablingTx
	TxEnabled
	Transmitting
	EnablingRx
	Listening
	Receiving
	TxRxDone
	TurningOff
)

var stateNames = [...]string{
	"Stopped", "Off", "SettingFrequency", "FrequencySet", "EnablingTx", "TxEnabled", "Transmitting", "EnablingRx", "Listening", "Receiving", "TxRxDone", "TurningOff",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Invalid"
}

// IsOn returns true if the transceiver draws receive or transmit current in this state.
func (s State) IsOn() bool {
	switch s {
	case Stopped, Off, SettingFrequency, FrequencySet, TurningOff:
		return false
	default:
		return true
	}
}

// txLoad tracks loading the transmit buffer. It is kept apart from State: loading a frame does not change
// what the radio is doing.
type txLoad uint8

const (
	loadNone txLoad = iota
	loadingPacket
	packetLoaded
)
