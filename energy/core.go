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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/openthread/ot-tsch/logger"
	. "github.com/openthread/ot-tsch/types"
)

// ResultsDir is the directory, relative to the output directory, that energy reports are written to.
const ResultsDir = "energy_results"

type EnergyAnalyser struct {
	mu                   sync.Mutex
	nodes                map[NodeId]*NodeEnergy
	networkHistory       []NetworkConsumption
	energyHistoryByNodes [][]NodeConsumption
	title                string
}

func (e *EnergyAnalyser) AddNode(nodeID NodeId, timestamp uint64) *NodeEnergy {
	e.mu.Lock()
	defer e.mu.Unlock()
	if node, ok := e.nodes[nodeID]; ok {
		return node
	}
	node := newNode(nodeID, timestamp)
	e.nodes[nodeID] = node
	return node
}

func (e *EnergyAnalyser) DeleteNode(nodeID NodeId) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.nodes, nodeID)

	if len(e.nodes) == 0 {
		e.clearLocked()
	}
}

func (e *EnergyAnalyser) GetNode(nodeID NodeId) *NodeEnergy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nodes[nodeID]
}

func (e *EnergyAnalyser) GetNetworkEnergyHistory() []NetworkConsumption {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]NetworkConsumption(nil), e.networkHistory...)
}

func (e *EnergyAnalyser) GetEnergyHistoryByNodes() [][]NodeConsumption {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]NodeConsumption(nil), e.energyHistoryByNodes...)
}

// GetLatestEnergyOfNodes returns the last stored snapshot, or nil if none was stored yet.
func (e *EnergyAnalyser) GetLatestEnergyOfNodes() []NodeConsumption {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.energyHistoryByNodes) == 0 {
		return nil
	}
	return e.energyHistoryByNodes[len(e.energyHistoryByNodes)-1]
}

// Snapshot returns the consumption of all nodes up to timestamp, sorted by node id, without storing it.
func (e *EnergyAnalyser) Snapshot(timestamp uint64) []NodeConsumption {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(timestamp)
}

func (e *EnergyAnalyser) snapshotLocked(timestamp uint64) []NodeConsumption {
	snap := make([]NodeConsumption, 0, len(e.nodes))
	for _, id := range e.sortedIdsLocked() {
		snap = append(snap, e.nodes[id].Consumption(timestamp))
	}
	return snap
}

func (e *EnergyAnalyser) StoreNetworkEnergy(timestamp uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nodesEnergySnapshot := e.snapshotLocked(timestamp)
	networkSnapshot := NetworkConsumption{
		Timestamp: timestamp,
	}

	netSize := float64(len(e.nodes))
	for _, c := range nodesEnergySnapshot {
		networkSnapshot.EnergyConsDisabled += c.Disabled / netSize
		networkSnapshot.EnergyConsSleep += c.Sleep / netSize
		networkSnapshot.EnergyConsTx += c.Tx / netSize
		networkSnapshot.EnergyConsRx += c.Rx / netSize
	}

	e.networkHistory = append(e.networkHistory, networkSnapshot)
	e.energyHistoryByNodes = append(e.energyHistoryByNodes, nodesEnergySnapshot)
}

// SaveEnergyDataToFile writes the per-node and network reports to <dir>/energy_results/<name>_nodes.txt and
// <dir>/energy_results/<name>.txt. An empty name uses the title, or "energy".
func (e *EnergyAnalyser) SaveEnergyDataToFile(dir string, name string, timestamp uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == "" {
		if e.title == "" {
			name = "energy"
		} else {
			name = e.title
		}
	}

	resultsDir := filepath.Join(dir, ResultsDir)
	if err := os.MkdirAll(resultsDir, 0777); err != nil {
		return errors.Wrapf(err, "failed to create %s directory", resultsDir)
	}

	path := filepath.Join(resultsDir, name)
	fileNodes, err := os.Create(path + "_nodes.txt")
	if err != nil {
		return errors.Wrap(err, "error creating file")
	}
	defer fileNodes.Close()

	fileNetwork, err := os.Create(path + ".txt")
	if err != nil {
		return errors.Wrap(err, "error creating file")
	}
	defer fileNetwork.Close()

	//Save all nodes' energy data to file
	e.writeEnergyByNodes(fileNodes, timestamp)

	//Save network energy data to file (timestamp converted to milliseconds)
	e.writeNetworkEnergy(fileNetwork, timestamp)
	logger.Infof("energy data saved to %s", path)
	return nil
}

func (e *EnergyAnalyser) writeEnergyByNodes(w io.Writer, timestamp uint64) {
	fmt.Fprintf(w, "Duration of the simulated network (in milliseconds): %d\n", timestamp/1000)
	fmt.Fprintf(w, "ID\tDisabled (mJ)\tIdle (mJ)\tTransmiting (mJ)\tReceiving (mJ)\n")

	for _, c := range e.snapshotLocked(timestamp) {
		fmt.Fprintf(w, "%d\t%f\t%f\t%f\t%f\n", c.NodeId, c.Disabled, c.Sleep, c.Tx, c.Rx)
	}
}

func (e *EnergyAnalyser) writeNetworkEnergy(w io.Writer, timestamp uint64) {
	fmt.Fprintf(w, "Duration of the simulated network (in milliseconds): %d\n", timestamp/1000)
	fmt.Fprintf(w, "Time (ms)\tDisabled (mJ)\tIdle (mJ)\tTransmiting (mJ)\tReceiving (mJ)\n")
	for _, snapshot := range e.networkHistory {
		fmt.Fprintf(w, "%d\t%f\t%f\t%f\t%f\n",
			snapshot.Timestamp/1000,
			snapshot.EnergyConsDisabled,
			snapshot.EnergyConsSleep,
			snapshot.EnergyConsTx,
			snapshot.EnergyConsRx,
		)
	}
}

func (e *EnergyAnalyser) sortedIdsLocked() []NodeId {
	ids := make([]NodeId, 0, len(e.nodes))
	for id := range e.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (e *EnergyAnalyser) ClearEnergyData() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearLocked()
}

func (e *EnergyAnalyser) clearLocked() {
	logger.Debugf("Node's energy data cleared")
	e.networkHistory = make([]NetworkConsumption, 0, 3600)
	e.energyHistoryByNodes = make([][]NodeConsumption, 0, 3600)
}

func (e *EnergyAnalyser) SetTitle(title string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.title = title
}

func NewEnergyAnalyser() *EnergyAnalyser {
	ea := &EnergyAnalyser{
		nodes:                make(map[NodeId]*NodeEnergy),
		networkHistory:       make([]NetworkConsumption, 0, 3600), //Start with space for 1 sample every 30s for 1 hour = 1*60*60/30 = 3600 samples
		energyHistoryByNodes: make([][]NodeConsumption, 0, 3600),
	}
	return ea
}
