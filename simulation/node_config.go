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
	"github.com/openthread/ot-tsch/prng"
	. "github.com/openthread/ot-tsch/types"
)

const (
	defaultRadioRange = 220
)

type NodeAutoPlacer struct {
	X, Y, Z         int
	Xref, Yref      int
	Xmax            int
	NodeDeltaCoarse int
	isReset         bool
}

// NodeConfigFinalize finalizes the configuration for a new Node before it's used to create it. Values left
// at zero take the simulation's node defaults. This is not mandatory to call, but a convenience method for
// the caller to avoid setting all details itself.
func (s *Simulation) NodeConfigFinalize(nodeCfg *NodeConfig) {
	if nodeCfg.ID <= 0 {
		nodeCfg.ID = s.genNodeId()
	}
	def := s.cfg.NewNodeConfig
	if nodeCfg.RadioRange <= 0 {
		nodeCfg.RadioRange = def.RadioRange
	}
	if nodeCfg.RadioRange <= 0 {
		nodeCfg.RadioRange = defaultRadioRange
	}
	if nodeCfg.TxPower == 0 {
		nodeCfg.TxPower = def.TxPower
	}
	if !nodeCfg.NodeLogFile {
		nodeCfg.NodeLogFile = def.NodeLogFile
	}

	// a crystal without an explicit drift gets a PRNG-predictable one within the configured bound.
	if nodeCfg.ClockDrift == 0 && s.cfg.MaxClockDriftPpm > 0 && !s.cfg.Realtime {
		nodeCfg.ClockDrift = prng.NewClockDrift(s.cfg.MaxClockDriftPpm)
	}
}

func NewNodeAutoPlacer() *NodeAutoPlacer {
	return &NodeAutoPlacer{
		Xref:            20,
		Yref:            20,
		Xmax:            200,
		X:               20,
		Y:               20,
		Z:               0,
		NodeDeltaCoarse: 20,
		isReset:         true,
	}
}

// UpdateReference updates the reference position of the NodeAutoPlacer to 'x', 'y'. It starts placing from there.
func (nap *NodeAutoPlacer) UpdateReference(x, y, z int) {
	nap.Xref = x
	nap.X = x
	nap.Yref = y
	nap.Y = y
	nap.Z = z
	nap.isReset = false
}

// NextNodePosition lets the autoplacer pick the next position for a new node to be placed: nodes are put
// on a grid, row by row.
func (nap *NodeAutoPlacer) NextNodePosition() (int, int, int) {
	if !nap.isReset {
		nap.X += nap.NodeDeltaCoarse
		if nap.X > nap.Xmax {
			nap.X = nap.Xref
			nap.Y += nap.NodeDeltaCoarse
		}
	}
	nap.isReset = false
	return nap.X, nap.Y, nap.Z
}

// ReuseNextNodePosition instructs the autoplacer to re-use the NextNodePosition() that was given out in the
// last call to this method.
func (nap *NodeAutoPlacer) ReuseNextNodePosition() {
	nap.isReset = true
}
