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
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/openthread/ot-tsch/energy"
	"github.com/openthread/ot-tsch/hwtimer"
	"github.com/openthread/ot-tsch/logger"
	"github.com/openthread/ot-tsch/mac"
	"github.com/openthread/ot-tsch/netdev"
	"github.com/openthread/ot-tsch/netreg"
	"github.com/openthread/ot-tsch/prng"
	"github.com/openthread/ot-tsch/simradio"
	. "github.com/openthread/ot-tsch/types"
)

// Node is a simulated device: a MAC instance on a transceiver of the simulation's medium, with its own
// drifting clock.
type Node struct {
	S      *Simulation
	Id     NodeId
	Logger *logger.NodeLogger

	cfg     NodeConfig
	clock   hwtimer.Timer
	dev     *simradio.Transceiver
	mac     *mac.Mac
	energy  *energy.NodeEnergy
	handles []netreg.Handle

	cancel context.CancelFunc
	done   chan struct{}

	rxMu    sync.Mutex
	rxCount uint64
	rxBytes uint64
	lastRx  []byte
}

func newNode(s *Simulation, cfg *NodeConfig) (*Node, error) {
	var clock hwtimer.Timer = s.clock
	if s.vclock != nil {
		clock = s.vclock.View(cfg.ClockDrift)
	}

	node := &Node{
		S:      s,
		Id:     cfg.ID,
		Logger: logger.GetNodeLogger(s.cfg.OutputDir, s.cfg.Id, cfg),
		cfg:    *cfg,
		clock:  clock,
		done:   make(chan struct{}),
	}
	node.Logger.SetDisplayLevel(logger.GetLevel())
	node.Logger.SetFileLevel(logger.DebugLevel)

	node.dev = s.medium.AddNode(cfg, clock)
	cpuId := prng.NewCpuId()
	m, err := mac.New(node.dev, s.cfg.Mac, mac.Deps{
		Id:       cfg.ID,
		Clock:    clock,
		CpuId:    cpuId[:],
		IsRoot:   cfg.IsRoot,
		Activity: s.activity,
	})
	if err != nil {
		s.medium.RemoveNode(cfg.ID)
		logger.DropNodeLogger(cfg.ID)
		return nil, err
	}
	node.mac = m

	node.energy = s.energyAnalyser.AddNode(cfg.ID, s.clock.Now())
	node.energy.SetRadioState(energy.StateOf(m.Radio().State()), s.clock.Now())
	m.Radio().SetStateObserver(node.energy.Observer(s.clock))

	node.handles = append(node.handles, m.Registry().Register(netreg.NetTypeSixLowPan, node.onReceive))
	return node, nil
}

// start runs the MAC loop and begins slotting at the next reference slot boundary, so that all nodes of
// the simulation share slot numbering.
func (node *Node) start(ctx context.Context) {
	nctx, cancel := context.WithCancel(ctx)
	node.cancel = cancel
	go func() {
		defer close(node.done)
		node.mac.Run(nctx)
	}()

	slot := uint64(node.S.cfg.Mac.Tsch.SlotDuration)
	now := node.S.clock.Now()
	node.mac.Start(Ticks(slot-now%slot), now/slot+1)
}

// exit stops slotting, waits until all pending MAC work is done and ends the MAC loop.
func (node *Node) exit() {
	node.S.medium.RemoveNode(node.Id)
	node.mac.Stop()
	node.S.activity.Wait()
	if node.cancel != nil {
		node.cancel()
		<-node.done
	}
	for _, h := range node.handles {
		node.mac.Registry().Unregister(h)
	}
	node.energy.ComputeRadioState(node.S.clock.Now())
	node.DisplayPendingLogEntries()
	logger.DropNodeLogger(node.Id)
}

// onReceive consumes frames delivered upstream, in the node's interrupt context.
func (node *Node) onReceive(pkt *netreg.Packet) {
	node.rxMu.Lock()
	node.rxCount++
	node.rxBytes += uint64(len(pkt.Data))
	node.lastRx = append(node.lastRx[:0], pkt.Data...)
	node.rxMu.Unlock()
	node.Logger.Debugf("rx %d bytes from %s (%s), rssi %d", len(pkt.Data), formatAddr(pkt.Src), pkt.Type,
		pkt.Rssi)
}

// Received returns the number of frames delivered upstream and a copy of the last payload.
func (node *Node) Received() (uint64, []byte) {
	node.rxMu.Lock()
	defer node.rxMu.Unlock()
	return node.rxCount, append([]byte(nil), node.lastRx...)
}

func (node *Node) Mac() *mac.Mac {
	return node.mac
}

func (node *Node) Transceiver() *simradio.Transceiver {
	return node.dev
}

func (node *Node) Config() NodeConfig {
	return node.cfg
}

// Now returns the node-local time.
func (node *Node) Now() uint64 {
	return node.clock.Now()
}

// Send queues a frame for dst, a 2 or 8 byte MAC address, or broadcast if dst is empty.
func (node *Node) Send(ctx context.Context, dst []byte, payload []byte) error {
	err := node.mac.Send(ctx, mac.Frame{Dst: dst, Payload: payload})
	if err != nil {
		return errors.Wrapf(err, "node %d", node.Id)
	}
	return nil
}

func (node *Node) Get(ctx context.Context, opt netdev.Opt) mac.Ack {
	return node.mac.Get(ctx, opt)
}

func (node *Node) Set(ctx context.Context, opt netdev.Opt, value []byte) mac.Ack {
	return node.mac.Set(ctx, opt, value)
}

// ToggleRoot flips the node's root role and returns the new one.
func (node *Node) ToggleRoot() bool {
	root := node.mac.Identity().ToggleRoot()
	node.cfg.IsRoot = root
	return root
}

func (node *Node) Status() NodeStatus {
	e := node.mac.Engine()
	snap := node.mac.Identity().Snapshot()
	rn := node.dev.RadioNode()
	rx, _ := node.Received()
	return NodeStatus{
		Id:         node.Id,
		Root:       snap.IsRoot,
		Synced:     e.IsSynced(),
		Asn:        e.ASN(),
		JoinPri:    e.JoinPriority(),
		TimeSource: formatAddr(e.TimeSource()),
		Short:      formatAddr(snap.Short[:]),
		Long:       formatAddr(snap.Long[:]),
		X:          int(rn.X),
		Y:          int(rn.Y),
		QueueLen:   e.QueueLen(),
		Received:   rx,
	}
}

// GetCounters returns the statistics of all layers, flattened.
func (node *Node) GetCounters() NodeCounters {
	st := node.mac.Stats()
	res := make([]NodeCounters, 0, 4)
	for _, c := range []struct {
		prefix string
		stats  interface{}
	}{
		{"tsch", st.Tsch},
		{"radio", st.Radio},
		{"netdev", st.Netdev},
		{"phy", node.dev.Counters()},
	} {
		counters, err := flattenCounters(c.prefix, c.stats)
		if err != nil {
			node.Logger.Error(err)
			continue
		}
		res = append(res, counters)
	}
	rx, _ := node.Received()
	res = append(res, NodeCounters{
		"mac.mailbox_full":  uint64(st.MailboxFull),
		"mac.frames_queued": uint64(st.FramesQueued),
		"mac.tasks_max":     uint64(st.TasksMax),
		"mac.rx_delivered":  rx,
	})
	return mergeNodeCounters(res...)
}

func (node *Node) DisplayPendingLogEntries() {
	node.Logger.DisplayPendingLogEntries(node.clock.Now())
}
