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

package simradio

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openthread/ot-tsch/dissectpkt/wpan"
	"github.com/openthread/ot-tsch/hwtimer"
	"github.com/openthread/ot-tsch/netdev"
	. "github.com/openthread/ot-tsch/types"
)

type eventLog struct {
	sync.Mutex
	events []netdev.Event
	frames []*netdev.RxFrame
}

func (l *eventLog) callback(ev netdev.Event, frame *netdev.RxFrame) {
	l.Lock()
	defer l.Unlock()
	l.events = append(l.events, ev)
	if frame != nil {
		l.frames = append(l.frames, frame)
	}
}

func (l *eventLog) count(ev netdev.Event) int {
	l.Lock()
	defer l.Unlock()
	n := 0
	for _, e := range l.events {
		if e == ev {
			n++
		}
	}
	return n
}

type testNode struct {
	*Transceiver
	log *eventLog
}

func addTestNode(t *testing.T, m *Medium, clock *hwtimer.VirtualClock, id NodeId, x int) testNode {
	cfg := DefaultNodeConfig()
	cfg.ID = id
	cfg.X = x
	tr := m.AddNode(&cfg, clock.View(0))
	log := &eventLog{}
	tr.SetEventCallback(log.callback)
	require.NoError(t, tr.Init())
	require.NoError(t, netdev.SetEnable(tr, netdev.OptPromiscuousMode, true))
	require.NoError(t, netdev.SetEnable(tr, netdev.OptRxStartIRQ, true))
	return testNode{tr, log}
}

func newTestMedium() (*Medium, *hwtimer.VirtualClock) {
	clock := hwtimer.NewVirtualClock()
	return NewMedium(clock, DefaultMediumConfig(), 1), clock
}

func TestMediumDelivery(t *testing.T) {
	m, clock := newTestMedium()
	a := addTestNode(t, m, clock, 1, 0)
	b := addTestNode(t, m, clock, 2, 50)

	var captured []byte
	m.SetCaptureFunc(func(ts uint64, ch ChannelId, frame []byte) {
		assert.Equal(t, MinChannelNumber, ch)
		captured = frame
	})

	n, err := a.Send([][]byte{{0x01, 0x02}, {0x03}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, m.ActiveTransmissions())
	assert.Equal(t, 1, b.log.count(netdev.EventRxStarted))
	assert.Len(t, captured, 5)

	state, err := netdev.GetState(b)
	require.NoError(t, err)
	assert.Equal(t, netdev.StateRx, state)

	clock.Advance(AirtimeUs(5) - 1)
	assert.Equal(t, 0, b.log.count(netdev.EventRxComplete))
	clock.Advance(1)
	assert.Equal(t, 0, m.ActiveTransmissions())
	assert.Equal(t, 1, a.log.count(netdev.EventTxComplete))
	assert.Equal(t, 1, a.log.count(netdev.EventISR))
	require.Equal(t, 1, b.log.count(netdev.EventRxComplete))

	frame := b.log.frames[0]
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, frame.Data)
	assert.Equal(t, uint8(MinChannelNumber), frame.Channel)
	assert.Less(t, frame.Rssi, int8(0))

	// statistics become visible after ISR
	stats, err := netdev.GetStats(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), stats.RxCount)
	b.ISR()
	a.ISR()
	stats, err = netdev.GetStats(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stats.RxCount)
	assert.Equal(t, uint32(3), stats.RxBytes)
	stats, err = netdev.GetStats(a)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stats.TxSuccess)
	assert.Equal(t, uint32(1), stats.TxUnicastCount)
	assert.Equal(t, AirtimeUs(5), stats.TimeActive)

	frame.Release()
	assert.True(t, frame.IsReleased())
}

func TestMediumOutOfRangeAndChannel(t *testing.T) {
	m, clock := newTestMedium()
	a := addTestNode(t, m, clock, 1, 0)
	far := addTestNode(t, m, clock, 2, 1000)
	other := addTestNode(t, m, clock, 3, 10)
	off := addTestNode(t, m, clock, 4, 20)
	require.NoError(t, netdev.SetChannel(other, 20))
	require.NoError(t, netdev.SetState(off, netdev.StateOff))

	_, err := a.Send([][]byte{{0xaa}})
	require.NoError(t, err)
	clock.Advance(1000)

	for _, n := range []testNode{far, other, off} {
		assert.Equal(t, 0, n.log.count(netdev.EventRxComplete), "node %d", n.Id())
	}
	assert.Equal(t, []NodeId{1, 2, 3, 4}, m.Nodes())
}

func TestMediumCollision(t *testing.T) {
	m, clock := newTestMedium()
	a := addTestNode(t, m, clock, 1, 0)
	b := addTestNode(t, m, clock, 2, 50)
	c := addTestNode(t, m, clock, 3, 100)

	_, err := a.Send([][]byte{{0x01, 0x02, 0x03, 0x04}})
	require.NoError(t, err)
	clock.Advance(100)
	_, err = c.Send([][]byte{{0x05}})
	require.NoError(t, err)
	clock.Advance(1000)

	assert.Equal(t, 0, b.log.count(netdev.EventRxComplete))
	cnt := b.Counters()
	assert.Equal(t, uint32(1), cnt.Collisions)
	assert.Equal(t, uint32(1), cnt.Corrupted)
	assert.Equal(t, 1, a.log.count(netdev.EventTxComplete))
	assert.Equal(t, 1, c.log.count(netdev.EventTxComplete))
	assert.Equal(t, 0, m.ActiveTransmissions())

	// the receiver listens again once the corrupted frame has ended
	_, err = a.Send([][]byte{{0x06}})
	require.NoError(t, err)
	clock.Advance(1000)
	assert.Equal(t, 1, b.log.count(netdev.EventRxComplete))
	assert.Equal(t, uint32(1), b.Counters().Collisions)
}

func TestMediumRxBufferBusy(t *testing.T) {
	m, clock := newTestMedium()
	a := addTestNode(t, m, clock, 1, 0)
	b := addTestNode(t, m, clock, 2, 50)

	for i := 0; i < 2; i++ {
		_, err := a.Send([][]byte{{byte(i)}})
		require.NoError(t, err)
		clock.Advance(1000)
	}
	assert.Equal(t, 1, b.log.count(netdev.EventRxComplete))
	assert.Equal(t, uint32(1), b.Counters().BufferBusy)

	b.log.frames[0].Release()
	_, err := a.Send([][]byte{{0x02}})
	require.NoError(t, err)
	clock.Advance(1000)
	assert.Equal(t, 2, b.log.count(netdev.EventRxComplete))
}

func TestMediumPacketLoss(t *testing.T) {
	clock := hwtimer.NewVirtualClock()
	cfg := DefaultMediumConfig()
	cfg.PacketLossRatio = 1.0
	m := NewMedium(clock, cfg, 1)
	a := addTestNode(t, m, clock, 1, 0)
	b := addTestNode(t, m, clock, 2, 50)

	_, err := a.Send([][]byte{{0x01}})
	require.NoError(t, err)
	clock.Advance(1000)
	assert.Equal(t, 0, b.log.count(netdev.EventRxComplete))
	assert.Equal(t, uint32(1), b.Counters().Lost)
}

func TestMediumRemoveNode(t *testing.T) {
	m, clock := newTestMedium()
	a := addTestNode(t, m, clock, 1, 0)
	b := addTestNode(t, m, clock, 2, 50)

	_, err := a.Send([][]byte{{0x01}})
	require.NoError(t, err)
	m.RemoveNode(1)
	clock.Advance(1000)
	assert.Equal(t, 0, b.log.count(netdev.EventRxComplete))
	assert.Nil(t, m.Node(1))
	assert.Equal(t, errors.Cause(a.Init()), ErrNoSuchDevice)
}

func TestTransceiverPreloading(t *testing.T) {
	m, clock := newTestMedium()
	a := addTestNode(t, m, clock, 1, 0)
	b := addTestNode(t, m, clock, 2, 50)
	require.NoError(t, netdev.SetEnable(a, netdev.OptPreloading, true))

	assert.Equal(t, ErrInvalid, errors.Cause(netdev.SetState(a, netdev.StateTx)))

	_, err := a.Send([][]byte{{0x01}})
	require.NoError(t, err)
	assert.Equal(t, 0, m.ActiveTransmissions())

	require.NoError(t, netdev.SetState(a, netdev.StateTx))
	assert.Equal(t, 1, m.ActiveTransmissions())
	clock.Advance(1000)
	assert.Equal(t, 1, b.log.count(netdev.EventRxComplete))

	state, err := netdev.GetState(a)
	require.NoError(t, err)
	assert.Equal(t, netdev.StateIdle, state)
}

func TestTransceiverAddressFilter(t *testing.T) {
	m, clock := newTestMedium()
	a := addTestNode(t, m, clock, 1, 0)
	b := addTestNode(t, m, clock, 2, 50)
	require.NoError(t, netdev.SetEnable(b, netdev.OptPromiscuousMode, false))
	_, err := b.Set(netdev.OptAddress, []byte{0x00, 0x02})
	require.NoError(t, err)
	_, err = b.Set(netdev.OptNID, netdev.EncodeUint16(0xcafe))
	require.NoError(t, err)

	send := func(dst uint16) {
		f := &wpan.MacFrame{
			FrameControl: wpan.NewFrameControl(wpan.FrameTypeData, false, wpan.AddrModeShort, wpan.AddrModeShort),
			DstPanId:     0xcafe,
			DstAddrShort: dst,
			SrcAddrShort: 0x0001,
			Payload:      []byte{0x41},
		}
		psdu, err := f.Build()
		require.NoError(t, err)
		_, err = a.Send([][]byte{psdu})
		require.NoError(t, err)
		clock.Advance(2000)
	}

	send(0x0003)
	assert.Equal(t, 0, b.log.count(netdev.EventRxComplete))
	assert.Equal(t, uint32(1), b.Counters().Filtered)

	send(0x0002)
	require.Equal(t, 1, b.log.count(netdev.EventRxComplete))
	b.log.frames[0].Release()

	send(wpan.BroadcastAddrShort)
	assert.Equal(t, 2, b.log.count(netdev.EventRxComplete))
}

func TestTransceiverOptions(t *testing.T) {
	m, clock := newTestMedium()
	a := addTestNode(t, m, clock, 1, 0)

	buf := make([]byte, 8)
	_, err := a.Get(netdev.Opt(200), buf)
	assert.Equal(t, ErrNotSupported, errors.Cause(err))
	_, err = a.Set(netdev.OptStats, nil)
	assert.Equal(t, ErrNotSupported, errors.Cause(err))

	assert.Equal(t, ErrInvalid, errors.Cause(netdev.SetChannel(a, 27)))
	require.NoError(t, netdev.SetChannel(a, 26))
	n, err := a.Get(netdev.OptChannel, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{26, 0}, buf[:n])

	_, err = a.Get(netdev.OptAddressLong, buf[:4])
	assert.Equal(t, ErrOverflow, errors.Cause(err))

	_, err = a.Set(netdev.OptTxPower, netdev.EncodeUint16(uint16(0xfffb)))
	require.NoError(t, err)
	assert.Equal(t, -5.0, a.RadioNode().TxPower)

	n, err = a.Get(netdev.OptMaxPacketSize, buf)
	require.NoError(t, err)
	v, _ := netdev.DecodeUint16(buf[:n])
	assert.Equal(t, uint16(125), v)

	_, err = a.Send([][]byte{make([]byte, 126)})
	assert.Equal(t, ErrOverflow, errors.Cause(err))

	require.NoError(t, netdev.SetState(a, netdev.StateSleep))
	clock.Advance(100)
	stats, err := netdev.GetStats(a)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), stats.TimeSleeping)
}
