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
	"sync"

	"github.com/openthread/ot-tsch/hwtimer"
	"github.com/openthread/ot-tsch/logger"
	"github.com/openthread/ot-tsch/radio"
	. "github.com/openthread/ot-tsch/types"
)

// NodeEnergy accumulates the time a node's radio spends in each state. State changes arrive from the
// node's MAC goroutine and from interrupt context, so it carries its own lock.
type NodeEnergy struct {
	mu     sync.Mutex
	nodeId NodeId
	radio  RadioStatus
}

func (node *NodeEnergy) ComputeRadioState(timestamp uint64) {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.computeLocked(timestamp)
}

func (node *NodeEnergy) computeLocked(timestamp uint64) {
	if timestamp < node.radio.Timestamp {
		// reordered notification from the other context, already accounted for
		return
	}
	delta := timestamp - node.radio.Timestamp
	switch node.radio.State {
	case RadioDisabled:
		node.radio.SpentDisabled += delta
	case RadioSleep:
		node.radio.SpentSleep += delta
	case RadioTx:
		node.radio.SpentTx += delta
	case RadioRx:
		node.radio.SpentRx += delta
	default:
		logger.Panicf("unknown radio state: %v", uint8(node.radio.State))
	}
	node.radio.Timestamp = timestamp
}

func (node *NodeEnergy) SetRadioState(state RadioStates, timestamp uint64) {
	logger.AssertTrue(state != RadioInvalid, "node %d: invalid radio state", node.nodeId)
	node.mu.Lock()
	defer node.mu.Unlock()
	//Mandatory: compute energy consumed by the radio first.
	node.computeLocked(timestamp)
	node.radio.State = state
}

// Observer returns a radio state observer that feeds this node, timestamped by clock.
func (node *NodeEnergy) Observer(clock hwtimer.Timer) radio.StateObserver {
	return func(_, new radio.State) {
		node.SetRadioState(StateOf(new), clock.Now())
	}
}

// Status returns a copy of the accumulated times, brought up to timestamp.
func (node *NodeEnergy) Status(timestamp uint64) RadioStatus {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.computeLocked(timestamp)
	return node.radio
}

// Consumption returns the energy spent up to timestamp.
func (node *NodeEnergy) Consumption(timestamp uint64) NodeConsumption {
	s := node.Status(timestamp)
	return NodeConsumption{
		NodeId:   node.nodeId,
		Disabled: float64(s.SpentDisabled) * RadioDisabledConsumption,
		Sleep:    float64(s.SpentSleep) * RadioSleepConsumption,
		Tx:       float64(s.SpentTx) * RadioTxConsumption,
		Rx:       float64(s.SpentRx) * RadioRxConsumption,
	}
}

func newNode(nodeID NodeId, timestamp uint64) *NodeEnergy {
	node := &NodeEnergy{
		nodeId: nodeID,
		radio: RadioStatus{
			State:     RadioDisabled,
			Timestamp: timestamp,
		},
	}
	return node
}
