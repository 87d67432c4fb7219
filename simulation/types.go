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

package simulation

import (
	"fmt"
	"io"

	. "github.com/openthread/ot-tsch/types"
)

var (
	exitError         = fmt.Errorf("operation aborted due to simulation exit")
	nodeNotFoundError   = fmt.Errorf("node not found")
)

type CmdRunner interface {
	RunCommand(cmd string, output io.Writer) error

	// GetContextNodeId gets the user's current selected node ID context for running commands, or
	// types.InvalidNodeId if no node context selected.
	GetContextNodeId() NodeId
}

// NodeCounters are named, flattened statistics of a node, e.g. "tsch.tx_success".
type NodeCounters map[string]uint64

// Add adds all counters of other to nc.
func (nc NodeCounters) Add(other NodeCounters) {
	for k, v := range other {
		nc[k] += v
	}
}

// NodeStatus is a summary of a node's MAC state, as listed by the CLI and the monitor.
type NodeStatus struct {
	Id         NodeId `json:"id" yaml:"id"`
	Root       bool   `json:"root" yaml:"root"`
	Synced     bool   `json:"synced" yaml:"synced"`
	Asn        uint64 `json:"asn" yaml:"asn"`
	JoinPri    uint8  `json:"join_priority" yaml:"join_priority"`
	TimeSource string `json:"time_source" yaml:"time_source"`
	Short      string `json:"short_addr" yaml:"short_addr"`
	Long       string `json:"long_addr" yaml:"long_addr"`
	X          int    `json:"x" yaml:"x"`
	Y          int    `json:"y" yaml:"y"`
	QueueLen   int    `json:"queue_len" yaml:"queue_len"`
	Received   uint64 `json:"received" yaml:"received"`
}
