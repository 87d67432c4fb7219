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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openthread/ot-tsch/energy"
	"github.com/openthread/ot-tsch/netdev"
	"github.com/openthread/ot-tsch/netreg"
	. "github.com/openthread/ot-tsch/types"
)

func testNodeConfig(id NodeId, root bool, x int) NodeConfig {
	cfg := DefaultNodeConfig()
	cfg.ID = id
	cfg.IsRoot = root
	cfg.X = x
	cfg.Y = 20
	cfg.IsAutoPlaced = false
	return cfg
}

func newTestSimulation(t *testing.T, nodes ...NodeConfig) *Simulation {
	cfg := DefaultConfig()
	cfg.Id = "test"
	cfg.OutputDir = t.TempDir()
	cfg.RandomSeed = 1
	cfg.LogLevel = "warn"
	cfg.Pcap = "wpan"
	cfg.Mac.Tsch.BeaconProb = 1.0
	cfg.Nodes = nodes
	s, err := NewSimulation(nil, cfg)
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s
}

func goFor(t *testing.T, s *Simulation, d time.Duration) {
	require.NoError(t, <-s.Go(d))
}

func TestNewSimulation(t *testing.T) {
	s := newTestSimulation(t, testNodeConfig(1, true, 20), testNodeConfig(2, false, 40))
	assert.Equal(t, []NodeId{1, 2}, s.GetNodes())
	assert.False(t, s.IsRealtime())
	assert.Equal(t, uint64(0), s.Now())

	st := s.Status()
	require.Len(t, st, 2)
	assert.True(t, st[0].Root)
	assert.True(t, st[0].Synced)
	assert.False(t, st[1].Root)
	assert.False(t, st[1].Synced)
	assert.Equal(t, 40, st[1].X)

	_, err := s.AddNode(&NodeConfig{ID: 2})
	assert.Error(t, err)
}

func TestGoAdvancesTime(t *testing.T) {
	s := newTestSimulation(t, testNodeConfig(1, true, 20))
	goFor(t, s, time.Second)
	assert.Equal(t, uint64(1000000), s.Now())
	st := s.Status()
	assert.Equal(t, uint64(100), st[0].Asn)
}

func TestBeaconSyncInSimulation(t *testing.T) {
	s := newTestSimulation(t, testNodeConfig(1, true, 20), testNodeConfig(2, false, 40))
	goFor(t, s, time.Second)

	st := s.Status()
	assert.True(t, st[1].Synced)
	assert.Equal(t, uint8(1), st[1].JoinPri)
	assert.Equal(t, st[0].Short, st[1].TimeSource)

	ctr, err := s.Counters(1)
	require.NoError(t, err)
	assert.Greater(t, ctr["tsch.tx_beacon"], uint64(0))
	ctr, err = s.Counters(2)
	require.NoError(t, err)
	assert.Greater(t, ctr["tsch.rx_beacon"], uint64(0))
	assert.Greater(t, ctr["netdev.rx_count"], uint64(0))

	total, err := s.Counters(InvalidNodeId)
	require.NoError(t, err)
	assert.Equal(t, ctr["tsch.slots"]*2, total["tsch.slots"])

	_, err = s.Counters(9)
	assert.Error(t, err)
}

func TestSendUnicastAndBroadcast(t *testing.T) {
	s := newTestSimulation(t, testNodeConfig(1, true, 20), testNodeConfig(2, false, 40),
		testNodeConfig(3, false, 60))
	ctx := context.Background()

	require.NoError(t, s.Send(ctx, 1, 2, []byte("hello")))
	goFor(t, s, time.Second)

	n, last := s.Node(2).Received()
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, []byte("hello"), last)
	// receivers are promiscuous, upper layers filter by destination
	n, _ = s.Node(3).Received()
	assert.Equal(t, uint64(1), n)
	n, _ = s.Node(1).Received()
	assert.Equal(t, uint64(0), n)

	require.NoError(t, s.Send(ctx, 2, BroadcastNodeId, []byte("all")))
	goFor(t, s, time.Second)
	n, last = s.Node(3).Received()
	assert.Equal(t, uint64(2), n)
	assert.Equal(t, []byte("all"), last)
	n, _ = s.Node(1).Received()
	assert.Equal(t, uint64(1), n)

	// payloads without a dispatch byte are sent as uncompressed IPv6
	require.NoError(t, s.Send(ctx, 1, 2, []byte("123")))
	goFor(t, s, time.Second)
	_, last = s.Node(2).Received()
	assert.Equal(t, []byte{netreg.DispatchIPv6, '1', '2', '3'}, last)

	assert.Error(t, s.Send(ctx, 1, 7, []byte("x")))
	assert.Error(t, s.Send(ctx, 7, 1, []byte("x")))
}

func TestMoveNodeOutOfRange(t *testing.T) {
	s := newTestSimulation(t, testNodeConfig(1, true, 20), testNodeConfig(2, false, 40))
	require.NoError(t, s.MoveNodeTo(2, 5000, 20))
	require.NoError(t, s.Send(context.Background(), 1, 2, []byte("lost")))
	goFor(t, s, time.Second)

	n, _ := s.Node(2).Received()
	assert.Equal(t, uint64(0), n)
	assert.False(t, s.Status()[1].Synced)
	assert.Error(t, s.MoveNodeTo(3, 0, 0))
}

func TestToggleRoot(t *testing.T) {
	s := newTestSimulation(t, testNodeConfig(1, true, 20))
	root, err := s.ToggleRoot(1)
	require.NoError(t, err)
	assert.False(t, root)
	assert.False(t, s.Status()[0].Root)
	assert.False(t, s.Status()[0].Synced)

	root, err = s.ToggleRoot(1)
	require.NoError(t, err)
	assert.True(t, root)
	assert.True(t, s.Status()[0].Synced)

	_, err = s.ToggleRoot(4)
	assert.Error(t, err)
}

func TestDeleteNode(t *testing.T) {
	s := newTestSimulation(t, testNodeConfig(1, true, 20), testNodeConfig(2, false, 40))
	goFor(t, s, 200*time.Millisecond)

	require.NoError(t, s.DeleteNode(2))
	assert.Equal(t, []NodeId{1}, s.GetNodes())
	assert.Nil(t, s.Node(2))
	assert.Nil(t, s.GetEnergyAnalyser().GetNode(2))
	assert.Error(t, s.DeleteNode(2))

	// time keeps moving without the deleted node
	goFor(t, s, 200*time.Millisecond)
	assert.Equal(t, uint64(400000), s.Now())
}

func TestEnergyAccounting(t *testing.T) {
	s := newTestSimulation(t, testNodeConfig(1, true, 20), testNodeConfig(2, false, 40))
	for _, id := range s.GetNodes() {
		require.NotNil(t, s.Node(id).energy)
		assert.Same(t, s.GetEnergyAnalyser().GetNode(id), s.Node(id).energy)
	}

	goFor(t, s, time.Second)
	snap := s.GetEnergyAnalyser().Snapshot(s.Now())
	require.Len(t, snap, 2)
	assert.Greater(t, snap[0].Tx, 0.0)
	assert.Greater(t, snap[1].Rx, 0.0)
	assert.Greater(t, snap[1].Total(), snap[1].Rx)
}

func TestAutoPlacedNodes(t *testing.T) {
	s := newTestSimulation(t)
	n1, err := s.AddNode(&NodeConfig{ID: -1, IsAutoPlaced: true})
	require.NoError(t, err)
	n2, err := s.AddNode(&NodeConfig{ID: -1, IsAutoPlaced: true})
	require.NoError(t, err)

	assert.Equal(t, 1, n1.Id)
	assert.Equal(t, 2, n2.Id)
	assert.Equal(t, defaultRadioRange, n1.Config().RadioRange)
	assert.Equal(t, 20, n1.Config().X)
	assert.Equal(t, 40, n2.Config().X)
}

func TestOptionsThroughNode(t *testing.T) {
	s := newTestSimulation(t, testNodeConfig(1, true, 20))
	node := s.Node(1)
	ctx := context.Background()

	ack := node.Get(ctx, netdev.OptMaxPacketSize)
	require.Equal(t, ResultCode(2), ack.Code)
	size, err := netdev.DecodeUint16(ack.Data)
	require.NoError(t, err)
	assert.Equal(t, uint16(125), size)

	ack = node.Set(ctx, netdev.OptChannel, netdev.EncodeUint16(99))
	assert.Equal(t, ResultInvalid, ack.Code)
}

func TestOutputFiles(t *testing.T) {
	s := newTestSimulation(t, testNodeConfig(1, true, 20), testNodeConfig(2, false, 40))
	goFor(t, s, time.Second)
	kpi := s.Kpi()
	assert.Equal(t, "test", kpi.RunId)
	assert.Equal(t, uint64(1000000), kpi.TimeUs.PeriodUs)
	assert.NotEmpty(t, kpi.Channels)
	assert.Equal(t, 2, kpi.Mac.SyncedNodes)
	s.Stop()

	dir := s.GetConfig().OutputDir
	info, err := os.Stat(filepath.Join(dir, "test.pcap"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(24))

	_, err = os.Stat(filepath.Join(dir, "test_kpi.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, energy.ResultsDir, "test_nodes.txt"))
	assert.NoError(t, err)

	// a stopped simulation refuses to run
	assert.Error(t, <-s.Go(time.Second))
	_, err = s.AddNode(&NodeConfig{ID: 3})
	assert.Error(t, err)
}

func TestController(t *testing.T) {
	s := newTestSimulation(t, testNodeConfig(1, true, 20))
	ctrl := NewSimulationController(s)
	now, nodes := ctrl.Status()
	assert.Equal(t, uint64(0), now)
	assert.Len(t, nodes, 1)

	_, err := ctrl.Command(context.Background(), "nodes")
	assert.Error(t, err) // no runner set

	s.cfg.ReadOnly = true
	_, err = NewSimulationController(s).Command(context.Background(), "nodes")
	assert.Equal(t, readonlySimulationError, err)
}
