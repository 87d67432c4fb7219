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
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/openthread/ot-tsch/logger"
	. "github.com/openthread/ot-tsch/types"
)

// channelUse accumulates the airtime of captured transmissions per channel.
type channelUse struct {
	TxTimeUs  uint64
	NumFrames uint64
}

type channelStats struct {
	mu  sync.Mutex
	use map[ChannelId]channelUse
}

func newChannelStats() *channelStats {
	return &channelStats{use: map[ChannelId]channelUse{}}
}

func (cs *channelStats) add(ch ChannelId, psduLen int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	u := cs.use[ch]
	u.TxTimeUs += AirtimeUs(psduLen)
	u.NumFrames++
	cs.use[ch] = u
}

func (cs *channelStats) snapshot() map[ChannelId]channelUse {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	res := make(map[ChannelId]channelUse, len(cs.use))
	for ch, u := range cs.use {
		res[ch] = u
	}
	return res
}

type KpiManager struct {
	sim           *Simulation
	data          *Kpi
	startCounters NodeCountersStore
	curCounters   NodeCountersStore
	startChannels map[ChannelId]channelUse
	isRunning     bool
}

type NodeCountersStore map[NodeId]NodeCounters

// NewKpiManager creates a new KPI manager/bookkeeper for a particular simulation.
func NewKpiManager() *KpiManager {
	km := &KpiManager{}
	return km
}

// Init inits the KPI manager for the given simulation.
func (km *KpiManager) Init(sim *Simulation) {
	logger.AssertNil(km.sim)
	logger.AssertFalse(km.isRunning)
	km.sim = sim
	km.data = &Kpi{Status: "ok", RunId: sim.cfg.Id}
	km.startCounters = NodeCountersStore{}
	km.curCounters = NodeCountersStore{}
}

func (km *KpiManager) Start() {
	logger.AssertNotNil(km.sim)
	km.startCounters = km.retrieveNodeCounters()
	km.startChannels = km.sim.channels.snapshot()
	km.data.TimeUs.StartTimeUs = km.sim.clock.Now()
	km.isRunning = true
}

func (km *KpiManager) Stop() error {
	if !km.isRunning {
		return nil
	}
	km.curCounters = km.retrieveNodeCounters()
	km.isRunning = false
	km.calculateKpis()
	return km.SaveDefaultFile()
}

func (km *KpiManager) IsRunning() bool {
	return km.isRunning
}

func (km *KpiManager) Data() Kpi {
	if km.isRunning {
		km.curCounters = km.retrieveNodeCounters()
		km.calculateKpis()
	}
	return *km.data
}

func (km *KpiManager) SaveDefaultFile() error {
	return km.SaveFile(km.getDefaultSaveFileName())
}

func (km *KpiManager) SaveFile(fn string) error {
	logger.AssertNotNil(km.sim)
	if km.isRunning {
		km.curCounters = km.retrieveNodeCounters()
		km.calculateKpis()
	}

	km.data.FileTime = time.Now().Format(time.RFC3339)
	data, err := json.MarshalIndent(km.data, "", "    ")
	if err != nil {
		return errors.Wrap(err, "could not marshal KPI JSON data")
	}

	if err = os.WriteFile(fn, data, 0644); err != nil {
		return errors.Wrapf(err, "could not write KPI JSON file %s", fn)
	}
	return nil
}

func (km *KpiManager) stopNode(nodeid NodeId) {
	// deleted nodes during a KPI period won't be used anymore in final node-specific KPI calculations.
	delete(km.startCounters, nodeid)
	delete(km.curCounters, nodeid)
}

func (km *KpiManager) retrieveNodeCounters() NodeCountersStore {
	nodes := km.sim.nodes
	nodesMap := make(NodeCountersStore, len(nodes))
	for nid, node := range nodes {
		nodesMap[nid] = node.GetCounters()
	}
	return nodesMap
}

func (km *KpiManager) retrieveChannelStats(passedTime uint64) map[ChannelId]KpiChannel {
	ret := make(map[ChannelId]KpiChannel)
	if passedTime == 0 {
		return ret
	}
	for ch, use := range km.sim.channels.snapshot() {
		start := km.startChannels[ch]
		txTime := use.TxTimeUs - start.TxTimeUs
		frames := use.NumFrames - start.NumFrames
		ret[ch] = KpiChannel{
			TxTimeUs:     txTime,
			TxPercentage: 100.0 * float64(txTime) / float64(passedTime),
			NumFrames:    frames,
			AvgFps:       1.0e6 * float64(frames) / float64(passedTime),
		}
	}
	return ret
}

func getCountersDiff(curCtr NodeCounters, startCtr NodeCounters) NodeCounters {
	ret := NodeCounters{}
	for k, v := range curCtr {
		var startVal uint64 // if node wasn't known at start, it was created during - use 0 for a counter's start value.
		if sv, ok := startCtr[k]; ok && sv <= v {
			startVal = sv
		}
		ret[k] = v - startVal
	}
	return ret
}

func (km *KpiManager) calculateKpis() {
	// time
	km.data.TimeUs.EndTimeUs = km.sim.clock.Now()
	km.data.TimeUs.PeriodUs = km.data.TimeUs.EndTimeUs - km.data.TimeUs.StartTimeUs
	km.data.TimeSec.StartTimeSec = float64(km.data.TimeUs.StartTimeUs) / 1e6
	km.data.TimeSec.EndTimeSec = float64(km.data.TimeUs.EndTimeUs) / 1e6
	km.data.TimeSec.PeriodSec = float64(km.data.TimeUs.PeriodUs) / 1e6

	// channels
	km.data.Channels = km.retrieveChannelStats(km.data.TimeUs.PeriodUs)

	// counters
	km.data.Mac.TxFailPercentage = make(map[NodeId]float64)
	km.data.Mac.SyncedNodes = 0
	km.data.Counters = make(map[NodeId]NodeCounters)
	for nid, ctr := range km.curCounters {
		counters := getCountersDiff(ctr, km.startCounters[nid])
		failPercent := 100.0 * float64(counters["tsch.tx_failed"]) /
			float64(counters["tsch.tx_success"]+counters["tsch.tx_failed"])
		if math.IsNaN(failPercent) {
			failPercent = 0.0
		}
		km.data.Mac.TxFailPercentage[nid] = failPercent
		km.data.Counters[nid] = counters
		if node := km.sim.nodes[nid]; node != nil && node.mac.Engine().IsSynced() {
			km.data.Mac.SyncedNodes++
		}
	}
}

func (km *KpiManager) getDefaultSaveFileName() string {
	return filepath.Join(km.sim.cfg.OutputDir, km.sim.cfg.Id+"_kpi.json")
}
