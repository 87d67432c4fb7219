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

// Package simradio simulates IEEE 802.15.4 transceivers sharing a radio medium. Transceivers implement
// netdev.Driver; the Medium decides which of them hear a transmission, and when.
package simradio

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/openthread/ot-tsch/hwtimer"
	"github.com/openthread/ot-tsch/logger"
	"github.com/openthread/ot-tsch/netdev"
	"github.com/openthread/ot-tsch/prng"
	. "github.com/openthread/ot-tsch/types"
)

// MediumConfig holds the medium's parameters.
type MediumConfig struct {
	// PacketLossRatio is the probability that a receiver misses a frame it would otherwise hear.
	PacketLossRatio float64 `yaml:"packet-loss" toml:"packet_loss"`
	// MeterPerUnit converts node distance units to meters for the path loss model.
	MeterPerUnit float64 `yaml:"meter-per-unit" toml:"meter_per_unit"`
}

func DefaultMediumConfig() MediumConfig {
	return MediumConfig{
		PacketLossRatio: 0.0,
		MeterPerUnit:    defaultMeterPerUnit,
	}
}

// CaptureFunc is called once for every transmission started, with the reference time of its start, the
// channel and the PSDU including FCS.
type CaptureFunc func(timestamp uint64, channel ChannelId, frame []byte)

type transmission struct {
	src        *Transceiver
	channel    ChannelId
	frame      []byte
	receptions []*reception
	alarm      hwtimer.Alarm
}

type reception struct {
	tx        *transmission
	dst       *Transceiver
	rssi      DbValue
	corrupted bool
}

// Medium connects the transceivers of a simulation. Lock order is Medium.mu before Transceiver.mu;
// driver callbacks are never called with either held.
type Medium struct {
	mu      sync.Mutex
	clock   hwtimer.Timer
	cfg     MediumConfig
	rnd     *rand.Rand
	nodes   map[NodeId]*Transceiver
	active  map[*transmission]struct{}
	capture CaptureFunc
}

// NewMedium creates a medium whose airtime alarms run on clock.
func NewMedium(clock hwtimer.Timer, cfg MediumConfig, seed prng.RandomSeed) *Medium {
	if cfg.MeterPerUnit <= 0 {
		cfg.MeterPerUnit = defaultMeterPerUnit
	}
	return &Medium{
		clock:  clock,
		cfg:    cfg,
		rnd:    rand.New(rand.NewSource(int64(seed))),
		nodes:  map[NodeId]*Transceiver{},
		active: map[*transmission]struct{}{},
	}
}

// SetCaptureFunc installs the capture hook, or removes it if f is nil.
func (m *Medium) SetCaptureFunc(f CaptureFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capture = f
}

// AddNode creates a transceiver for node cfg.ID. The transceiver's own timestamps use local, the node's
// clock.
func (m *Medium) AddNode(cfg *NodeConfig, local hwtimer.Timer) *Transceiver {
	t := newTransceiver(m, newRadioNode(cfg.ID, cfg), local)
	m.mu.Lock()
	defer m.mu.Unlock()
	logger.AssertTrue(m.nodes[cfg.ID] == nil, "node %d already on medium", cfg.ID)
	m.nodes[cfg.ID] = t
	return t
}

// RemoveNode detaches the node; transmissions in flight to or from it are dropped.
func (m *Medium) RemoveNode(id NodeId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.nodes[id]
	if t == nil {
		return
	}
	delete(m.nodes, id)
	for tx := range m.active {
		if tx.src != t {
			continue
		}
		tx.alarm.Remove()
		delete(m.active, tx)
		for _, r := range tx.receptions {
			r.dst.mu.Lock()
			if r.dst.rx == r {
				r.dst.rx = nil
				r.dst.setStateLocked(phyListen)
			}
			r.dst.mu.Unlock()
		}
	}
	t.mu.Lock()
	t.rx = nil
	t.detached = true
	t.mu.Unlock()
}

// Node returns the transceiver of a node, or nil.
func (m *Medium) Node(id NodeId) *Transceiver {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nodes[id]
}

// Nodes returns the ids of all nodes on the medium, sorted.
func (m *Medium) Nodes() []NodeId {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedIdsLocked()
}

// MoveNode changes a node's position.
func (m *Medium) MoveNode(id NodeId, x, y, z float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.nodes[id]
	if t == nil {
		return false
	}
	t.node.X, t.node.Y, t.node.Z = x, y, z
	return true
}

// ActiveTransmissions returns the number of frames currently on air.
func (m *Medium) ActiveTransmissions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// transmit puts frame on air from src. It is called without src.mu held.
func (m *Medium) transmit(src *Transceiver, channel ChannelId, frame []byte) {
	var started []*Transceiver

	m.mu.Lock()
	now := m.clock.Now()
	tx := &transmission{
		src:     src,
		channel: channel,
		frame:   frame,
	}
	attached := m.nodes[src.node.Id] == src
	for _, id := range m.sortedIdsLocked() {
		dst := m.nodes[id]
		if dst == src || !attached {
			continue
		}
		rssi := rssiAt(src.node, dst.node, m.cfg.MeterPerUnit)
		if !reachable(src.node, dst.node, rssi) {
			continue
		}

		dst.mu.Lock()
		if dst.channel != channel || !dst.state.rxOn() {
			dst.mu.Unlock()
			continue
		}
		if dst.rx != nil {
			// overlapping frames at one receiver destroy the one being received
			dst.rx.corrupted = true
			dst.counters.Collisions++
			dst.mu.Unlock()
			continue
		}
		if m.cfg.PacketLossRatio > 0 && m.rnd.Float64() < m.cfg.PacketLossRatio {
			dst.counters.Lost++
			dst.mu.Unlock()
			continue
		}
		r := &reception{tx: tx, dst: dst, rssi: rssi}
		dst.rx = r
		dst.setStateLocked(phyRxBusy)
		tx.receptions = append(tx.receptions, r)
		notify := dst.rxStartIRQ
		dst.mu.Unlock()
		if notify {
			started = append(started, dst)
		}
	}
	tx.alarm = m.clock.NewAlarm("airtime", func(uint64) {
		m.endTransmission(tx)
	})
	tx.alarm.Set(AirtimeUs(len(frame)))
	m.active[tx] = struct{}{}
	capture := m.capture
	m.mu.Unlock()

	if capture != nil {
		capture(now, channel, frame)
	}
	for _, dst := range started {
		dst.raise(netdev.EventRxStarted, nil)
	}
}

func (m *Medium) endTransmission(tx *transmission) {
	type delivery struct {
		dst   *Transceiver
		frame []byte
		rssi  DbValue
	}
	var delivered []delivery

	m.mu.Lock()
	if _, ok := m.active[tx]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.active, tx)
	for _, r := range tx.receptions {
		dst := r.dst
		dst.mu.Lock()
		if dst.rx != r {
			// receiver was switched off or retuned during the frame
			dst.mu.Unlock()
			continue
		}
		dst.rx = nil
		dst.setStateLocked(phyListen)
		if r.corrupted {
			dst.counters.Corrupted++
			dst.mu.Unlock()
			continue
		}
		delivered = append(delivered, delivery{dst: dst, frame: tx.frame, rssi: r.rssi})
		dst.mu.Unlock()
	}
	m.mu.Unlock()

	tx.src.endTx(tx.frame)
	for _, d := range delivered {
		d.dst.receive(d.frame, d.rssi)
	}
}

func (m *Medium) sortedIdsLocked() []NodeId {
	ids := make([]NodeId, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
