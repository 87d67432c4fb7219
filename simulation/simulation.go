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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/openthread/ot-tsch/energy"
	"github.com/openthread/ot-tsch/hwtimer"
	"github.com/openthread/ot-tsch/logger"
	"github.com/openthread/ot-tsch/mac"
	"github.com/openthread/ot-tsch/netreg"
	"github.com/openthread/ot-tsch/pcap"
	"github.com/openthread/ot-tsch/prng"
	"github.com/openthread/ot-tsch/progctx"
	"github.com/openthread/ot-tsch/simradio"
	. "github.com/openthread/ot-tsch/types"
)

// goStepUs is the virtual time advanced between two checks for exit and two flushes of node logs.
const goStepUs = 100000

type Simulation struct {
	ctx *progctx.ProgCtx
	cfg *Config

	// mu serializes the simulation's operations, including the advancing of virtual time.
	mu         sync.Mutex
	stopped    bool
	nodes      map[NodeId]*Node
	nodePlacer *NodeAutoPlacer
	kpi        *KpiManager
	cmdRunner  CmdRunner

	clock    hwtimer.Timer
	vclock   *hwtimer.VirtualClock // nil in realtime mode
	activity *mac.Activity
	medium   *simradio.Medium
	channels *channelStats

	capture       *pcap.Capture
	captureCancel context.CancelFunc

	energyAnalyser *energy.EnergyAnalyser
	energyAlarm    hwtimer.Alarm
}

func NewSimulation(ctx *progctx.ProgCtx, cfg *Config) (*Simulation, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Id == "" {
		cfg.Id = uuid.NewString()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.Mac.Tsch.SlotDuration == 0 {
		cfg.Mac = mac.DefaultConfig()
	}
	if cfg.LogLevel != "" {
		level, err := logger.ParseLevelString(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		logger.SetLevel(level)
	}
	prng.Init(cfg.RandomSeed)

	s := &Simulation{
		ctx:            ctx,
		cfg:            cfg,
		nodes:          map[NodeId]*Node{},
		nodePlacer:     NewNodeAutoPlacer(),
		kpi:            NewKpiManager(),
		channels:       newChannelStats(),
		energyAnalyser: energy.NewEnergyAnalyser(),
	}

	if err := s.createOutputDir(); err != nil {
		return nil, errors.Wrapf(err, "creating output directory %s failed", cfg.OutputDir)
	}
	if err := s.cleanOutputDir(); err != nil {
		return nil, errors.Wrapf(err, "cleaning output files of run %s failed", cfg.Id)
	}

	if cfg.Realtime {
		s.clock = hwtimer.NewRealtime()
	} else {
		s.vclock = hwtimer.NewVirtualClock()
		s.activity = mac.NewActivity()
		s.vclock.SetSettleFunc(s.activity.Wait)
		s.clock = s.vclock
	}

	s.medium = simradio.NewMedium(s.clock, cfg.Medium, prng.NewMediumRandomSeed())
	if err := s.startCapture(); err != nil {
		return nil, err
	}
	s.medium.SetCaptureFunc(s.onTransmit)

	s.energyAnalyser.SetTitle(cfg.Id)
	s.energyAlarm = s.clock.NewAlarm("energy", s.storeEnergy)
	s.energyAlarm.Set(energy.ComputePeriod)

	s.kpi.Init(s)
	for i := range cfg.Nodes {
		nodeCfg := cfg.Nodes[i]
		nodeCfg.IsAutoPlaced = false
		if _, err := s.AddNode(&nodeCfg); err != nil {
			s.Stop()
			return nil, err
		}
	}
	s.mu.Lock()
	s.kpi.Start()
	s.mu.Unlock()
	logger.Infof("simulation %s created with %d nodes, %s time, seed %d", cfg.Id, len(cfg.Nodes),
		s.timeMode(), prng.RootSeed())
	return s, nil
}

func (s *Simulation) timeMode() string {
	if s.vclock == nil {
		return "real"
	}
	return "virtual"
}

func (s *Simulation) startCapture() error {
	format, err := pcap.ParseFormat(s.cfg.Pcap)
	if err != nil {
		return err
	}
	if format == pcap.FormatOff {
		return nil
	}
	fn := filepath.Join(s.cfg.OutputDir, s.cfg.Id+".pcap")
	w, err := pcap.Create(fn, format)
	if err != nil {
		return err
	}
	s.capture = pcap.NewCapture(w, pcapQueueDepth)
	var ctx context.Context
	ctx, s.captureCancel = context.WithCancel(context.Background())
	go s.capture.Run(ctx)
	logger.Infof("capturing frames to %s (%s)", fn, format)
	return nil
}

// onTransmit receives every frame put on air, in the sender's interrupt context.
func (s *Simulation) onTransmit(timestamp uint64, channel ChannelId, frame []byte) {
	s.channels.add(channel, len(frame))
	if s.capture != nil {
		s.capture.Add(timestamp, channel, frame)
	}
}

func (s *Simulation) storeEnergy(now uint64) {
	s.energyAnalyser.StoreNetworkEnergy(now)
	s.energyAlarm.Set(energy.ComputePeriod)
}

// AddNode creates a node and starts its MAC instance at the next slot boundary.
func (s *Simulation) AddNode(cfg *NodeConfig) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, exitError
	}

	s.NodeConfigFinalize(cfg)
	if cfg.ID > MaxNodeId {
		return nil, errors.Errorf("node id %d out of range", cfg.ID)
	}
	if s.nodes[cfg.ID] != nil {
		return nil, errors.Errorf("node %d already exists", cfg.ID)
	}

	// node position may use the nodePlacer
	if cfg.IsAutoPlaced {
		cfg.X, cfg.Y, cfg.Z = s.nodePlacer.NextNodePosition()
	} else {
		s.nodePlacer.UpdateReference(cfg.X, cfg.Y, cfg.Z)
	}

	logger.Debugf("simulation:AddNode: %+v", *cfg)
	node, err := newNode(s, cfg)
	if err != nil {
		logger.Errorf("simulation add node failed: %v", err)
		if cfg.IsAutoPlaced {
			s.nodePlacer.ReuseNextNodePosition()
		}
		return nil, err
	}
	s.nodes[cfg.ID] = node
	node.start(context.Background())
	node.DisplayPendingLogEntries()
	return node, nil
}

func (s *Simulation) genNodeId() NodeId {
	nodeid := 1
	for s.nodes[nodeid] != nil {
		nodeid += 1
	}
	return nodeid
}

func (s *Simulation) DeleteNode(nodeid NodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := s.nodes[nodeid]
	if node == nil {
		return errors.Wrapf(nodeNotFoundError, "node %d", nodeid)
	}
	node.exit()
	delete(s.nodes, nodeid)
	s.energyAnalyser.DeleteNode(nodeid)
	s.kpi.stopNode(nodeid)
	return nil
}

// Node returns the node with the given id, or nil.
func (s *Simulation) Node(nodeid NodeId) *Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodes[nodeid]
}

// GetNodes returns a sorted array of NodeIds.
func (s *Simulation) GetNodes() []NodeId {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedNodeIdsLocked()
}

func (s *Simulation) sortedNodeIdsLocked() []NodeId {
	keys := make([]NodeId, 0, len(s.nodes))
	for key := range s.nodes {
		keys = append(keys, key)
	}
	sort.Ints(keys)
	return keys
}

// VisitNodesInOrder calls cb for every node, sorted by id. It must not call back into the simulation.
func (s *Simulation) VisitNodesInOrder(cb func(node *Node)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visitLocked(cb)
}

func (s *Simulation) visitLocked(cb func(node *Node)) {
	for _, nodeid := range s.sortedNodeIdsLocked() {
		cb(s.nodes[nodeid])
	}
}

func (s *Simulation) MoveNodeTo(nodeid NodeId, x, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := s.nodes[nodeid]
	if node == nil {
		return errors.Wrapf(nodeNotFoundError, "node %d", nodeid)
	}
	s.medium.MoveNode(nodeid, float64(x), float64(y), float64(node.cfg.Z))
	node.cfg.X, node.cfg.Y = x, y
	s.nodePlacer.UpdateReference(x, y, node.cfg.Z)
	return nil
}

// ToggleRoot flips the root role of a node and returns the new one.
func (s *Simulation) ToggleRoot(nodeid NodeId) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := s.nodes[nodeid]
	if node == nil {
		return false, errors.Wrapf(nodeNotFoundError, "node %d", nodeid)
	}
	root := node.ToggleRoot()
	node.DisplayPendingLogEntries()
	return root, nil
}

// Send queues payload at node src for node dst, or for all nodes if dst is BroadcastNodeId. The frame is
// addressed to the short address of dst. A payload without a 6LoWPAN dispatch gets the uncompressed IPv6
// dispatch prepended, so that receivers hand it upstream.
func (s *Simulation) Send(ctx context.Context, src NodeId, dst NodeId, payload []byte) error {
	if netreg.TypeOf(payload) != netreg.NetTypeSixLowPan {
		payload = append([]byte{netreg.DispatchIPv6}, payload...)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sn := s.nodes[src]
	if sn == nil {
		return errors.Wrapf(nodeNotFoundError, "node %d", src)
	}
	var addr []byte
	if dst != BroadcastNodeId {
		dn := s.nodes[dst]
		if dn == nil {
			return errors.Wrapf(nodeNotFoundError, "node %d", dst)
		}
		short := dn.mac.Identity().Snapshot().Short
		addr = short[:]
	}
	err := sn.Send(ctx, addr, payload)
	sn.DisplayPendingLogEntries()
	return err
}

// Status returns the status of all nodes, sorted by id.
func (s *Simulation) Status() []NodeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]NodeStatus, 0, len(s.nodes))
	s.visitLocked(func(node *Node) {
		res = append(res, node.Status())
	})
	return res
}

// Counters returns the counters of one node, or the sum over all nodes for InvalidNodeId.
func (s *Simulation) Counters(nodeid NodeId) (NodeCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nodeid != InvalidNodeId {
		node := s.nodes[nodeid]
		if node == nil {
			return nil, errors.Wrapf(nodeNotFoundError, "node %d", nodeid)
		}
		return node.GetCounters(), nil
	}
	res := NodeCounters{}
	s.visitLocked(func(node *Node) {
		res.Add(node.GetCounters())
	})
	return res, nil
}

// Kpi returns the key performance indicators since the simulation was created.
func (s *Simulation) Kpi() Kpi {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kpi.Data()
}

// SaveKpiFile writes the current KPIs as JSON to fn, or to the run's default KPI file if fn is empty.
func (s *Simulation) SaveKpiFile(fn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == "" {
		return s.kpi.SaveDefaultFile()
	}
	return s.kpi.SaveFile(fn)
}

// Now returns the reference time of the simulation in microseconds.
func (s *Simulation) Now() uint64 {
	return s.clock.Now()
}

func (s *Simulation) IsRealtime() bool {
	return s.vclock == nil
}

func (s *Simulation) Medium() *simradio.Medium {
	return s.medium
}

func (s *Simulation) GetEnergyAnalyser() *energy.EnergyAnalyser {
	return s.energyAnalyser
}

func (s *Simulation) GetConfig() *Config {
	return s.cfg
}

func (s *Simulation) AutoGo() bool {
	return s.cfg.AutoGo
}

func (s *Simulation) SetCmdRunner(cmdRunner CmdRunner) {
	logger.AssertTrue(s.cmdRunner == nil)
	s.cmdRunner = cmdRunner
}

func (s *Simulation) GetCmdRunner() CmdRunner {
	return s.cmdRunner
}

// Go runs the simulation for duration. Virtual time advances as fast as the nodes handle it; in realtime
// mode Go just lets the wall clock pass.
func (s *Simulation) Go(duration time.Duration) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.goFor(uint64(duration / time.Microsecond))
		close(done)
	}()
	return done
}

func (s *Simulation) goFor(durationUs uint64) error {
	end := s.clock.Now() + durationUs
	for {
		if err := s.goStep(end); err != nil {
			return err
		}
		if s.clock.Now() >= end {
			return nil
		}
	}
}

// goStep advances at most goStepUs towards end and flushes the node logs.
func (s *Simulation) goStep(end uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || (s.ctx != nil && s.ctx.Err() != nil) {
		return exitError
	}
	now := s.clock.Now()
	next := now + goStepUs
	if next > end {
		next = end
	}
	if s.vclock != nil {
		// work queued outside of alarms, e.g. by requests, is done before time moves
		s.activity.Wait()
		s.vclock.AdvanceTo(next)
	} else if next > now {
		time.Sleep(time.Duration(next-now) * time.Microsecond)
	}
	s.visitLocked(func(node *Node) {
		node.DisplayPendingLogEntries()
	})
	return nil
}

// Run keeps the simulation going while auto-go is on, and stops it once ctx is done.
func (s *Simulation) Run(ctx context.Context) {
	defer logger.Debugf("simulation exit.")
	defer s.Stop()

	for s.cfg.AutoGo && ctx.Err() == nil {
		if err := s.goFor(DefaultAutoGoStep); err != nil {
			break
		}
	}
	<-ctx.Done()
}

func (s *Simulation) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	logger.Infof("stopping simulation and exiting nodes ...")
	s.stopped = true
	now := s.clock.Now()
	if err := s.kpi.Stop(); err != nil {
		logger.Errorf("%v", err)
	}
	s.energyAlarm.Remove()
	s.energyAnalyser.StoreNetworkEnergy(now)
	if err := s.energyAnalyser.SaveEnergyDataToFile(s.cfg.OutputDir, "", now); err != nil {
		logger.Errorf("%v", err)
	}

	s.visitLocked(func(node *Node) {
		node.exit()
	})
	s.medium.SetCaptureFunc(nil)
	if s.capture != nil {
		s.captureCancel()
		s.capture.Wait()
		if n := s.capture.Dropped(); n > 0 {
			logger.Warnf("pcap: %d frames dropped", n)
		}
	}
	logger.Debugf("all simulation nodes exited.")
}

func (s *Simulation) cleanOutputDir() error {
	err := removeAllFiles(filepath.Join(s.cfg.OutputDir, fmt.Sprintf("%s_*.log", s.cfg.Id)))
	if err != nil {
		return err
	}
	return removeAllFiles(filepath.Join(s.cfg.OutputDir, fmt.Sprintf("%s*.pcap", s.cfg.Id)))
}

func (s *Simulation) createOutputDir() error {
	return os.MkdirAll(s.cfg.OutputDir, 0775)
}
