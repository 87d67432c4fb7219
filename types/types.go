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

package types

import (
	"fmt"
	"math"

	"github.com/simonlingoogle/go-simplelogger"
)

type NodeId = int
type ChannelId = int

// Ticks is a slot-relative duration of the node's radio timer, in microseconds. Arithmetic wraps like the
// 32-bit hardware counter it models.
type Ticks = uint32

const (
	MaxNodeId       NodeId = 0xffff
	InvalidNodeId   NodeId = 0
	BroadcastNodeId NodeId = -1
)

const (
	// Ever is a timestamp far enough in the future to never be reached by a simulation.
	Ever uint64 = math.MaxUint64 / 2

	// InvalidExtAddr defines the invalid extended address for nodes.
	InvalidExtAddr uint64 = math.MaxUint64

	InvalidChannel ChannelId = -1
)

// IEEE 802.15.4-2015 2.4 GHz O-QPSK PHY parameters.
const (
	MinChannelNumber  ChannelId = 11
	MaxChannelNumber  ChannelId = 26
	NumChannels                 = int(MaxChannelNumber-MinChannelNumber) + 1
	TimeUsPerBit                = 4
	TimeUsPerByte               = 8 * TimeUsPerBit
	PhyHeaderLenBytes           = 6
	MacFrameLenBytes            = 127
	FcsLenBytes                 = 2
)

// AirtimeUs returns the on-air duration of a PSDU of given length, including the PHY header.
func AirtimeUs(psduLen int) uint64 {
	return uint64((PhyHeaderLenBytes + psduLen) * TimeUsPerByte)
}

// RadioStates is the energy-relevant state of a transceiver.
type RadioStates byte

const (
	RadioDisabled RadioStates = 0
	RadioSleep    RadioStates = 1
	RadioRx       RadioStates = 2
	RadioTx       RadioStates = 3
	RadioInvalid  RadioStates = 255
)

func (s RadioStates) String() string {
	switch s {
	case RadioDisabled:
		return "Off"
	case RadioSleep:
		return "Slp"
	case RadioRx:
		return "Rx_"
	case RadioTx:
		return "Tx_"
	default:
		simplelogger.Panicf("invalid RadioState: %v", uint8(s))
		return "invalid"
	}
}

// GetNodeName returns the display name of a node, as used in logs and CLI output.
func GetNodeName(id NodeId) string {
	return fmt.Sprintf("Node<%d> ", id)
}
