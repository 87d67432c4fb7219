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

package mac

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openthread/ot-tsch/hwtimer"
	"github.com/openthread/ot-tsch/netdev"
	"github.com/openthread/ot-tsch/netreg"
	"github.com/openthread/ot-tsch/scheduler"
	"github.com/openthread/ot-tsch/simradio"
	. "github.com/openthread/ot-tsch/types"
)

type testNet struct {
	clock    *hwtimer.VirtualClock
	medium   *simradio.Medium
	activity *Activity
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func newTestNet(t *testing.T) *testNet {
	clock := hwtimer.NewVirtualClock()
	n := &testNet{
		clock:    clock,
		medium:   simradio.NewMedium(clock, simradio.DefaultMediumConfig(), 1),
		activity: NewActivity(),
	}
	n.ctx, n.cancel = context.WithCancel(context.Background())
	clock.SetSettleFunc(n.activity.Wait)
	t.Cleanup(func() {
		n.cancel()
		n.wg.Wait()
	})
	return n
}

func (n *testNet) newMac(t *testing.T, id NodeId, root bool, cfg Config) *Mac {
	m := n.newStoppedMac(t, id, root, cfg)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		m.Run(n.ctx)
	}()
	return m
}

func (n *testNet) newStoppedMac(t *testing.T, id NodeId, root bool, cfg Config) *Mac {
	ncfg := DefaultNodeConfig()
	ncfg.ID = id
	ncfg.X = int(id) * 20
	view := n.clock.View(0)
	dev := n.medium.AddNode(&ncfg, view)
	m, err := New(dev, cfg, Deps{
		Id:       id,
		Clock:    view,
		CpuId:    []byte{0, 0, 0, 0, 0, 0, 0, byte(id)},
		IsRoot:   root,
		Activity: n.activity,
	})
	require.NoError(t, err)
	return m
}

func TestNewWithoutDevice(t *testing.T) {
	_, err := New(nil, DefaultConfig(), Deps{Id: 1, Clock: hwtimer.NewVirtualClock()})
	assert.Equal(t, ErrNoSuchDevice, errors.Cause(err))
}

func TestUnsupportedOption(t *testing.T) {
	net := newTestNet(t)
	m := net.newMac(t, 1, true, DefaultConfig())

	ack := m.Set(context.Background(), netdev.Opt(200), []byte{1})
	assert.Equal(t, ResultNotSupported, ack.Code)
	ack = m.Get(context.Background(), netdev.Opt(200))
	assert.Equal(t, ResultNotSupported, ack.Code)
	assert.Nil(t, ack.Data)
	net.activity.Wait()
	assert.Equal(t, 0, net.activity.Pending())
}

func TestOptionsForwardedToDriver(t *testing.T) {
	net := newTestNet(t)
	m := net.newMac(t, 1, true, DefaultConfig())
	ctx := context.Background()

	ack := m.Set(ctx, netdev.OptChannel, netdev.EncodeUint16(20))
	assert.Equal(t, ResultCode(2), ack.Code)
	ack = m.Get(ctx, netdev.OptChannel)
	assert.Equal(t, ResultCode(2), ack.Code)
	assert.Equal(t, []byte{20, 0}, ack.Data)

	ack = m.Set(ctx, netdev.OptChannel, netdev.EncodeUint16(99))
	assert.Equal(t, ResultInvalid, ack.Code)

	// the identity is programmed into the driver's address filter
	ack = m.Get(ctx, netdev.OptAddress)
	assert.Equal(t, []byte{0x00, 0x01}, ack.Data)
	ack = m.Get(ctx, netdev.OptNID)
	assert.Equal(t, []byte{0xfe, 0xca}, ack.Data)
}

func TestSendDelivered(t *testing.T) {
	net := newTestNet(t)
	cfg := DefaultConfig()
	cfg.Tsch.BeaconProb = 0
	sender := net.newMac(t, 1, true, cfg)
	receiver := net.newMac(t, 2, false, cfg)

	var got []byte
	var src []byte
	receiver.Registry().Register(netreg.NetTypeSixLowPan, func(pkt *netreg.Packet) {
		got = append([]byte(nil), pkt.Data...)
		src = append([]byte(nil), pkt.Src...)
	})

	require.NoError(t, sender.Send(context.Background(), Frame{Payload: []byte{0x41, 0x01, 0x02}}))
	assert.Equal(t, 1, sender.Engine().QueueLen())

	sender.Start(10000, 1)
	receiver.Start(10000, 1)
	net.clock.AdvanceTo(20000 - 1)

	assert.Equal(t, []byte{0x41, 0x01, 0x02}, got)
	assert.Equal(t, []byte{0x00, 0x01}, src)
	assert.Equal(t, 0, sender.Engine().QueueLen())

	st := sender.Stats()
	assert.Equal(t, uint32(1), st.FramesQueued)
	assert.Equal(t, uint32(1), st.Tsch.TxSuccess)
	assert.Equal(t, uint32(1), st.Netdev.TxSuccess)
	assert.Equal(t, uint32(1), st.Netdev.TxMcastCount)
	assert.Equal(t, uint32(1), receiver.Stats().Netdev.RxCount)
}

func TestSendUnicastLong(t *testing.T) {
	net := newTestNet(t)
	cfg := DefaultConfig()
	cfg.Tsch.BeaconProb = 0
	sender := net.newMac(t, 1, true, cfg)
	receiver := net.newMac(t, 2, false, cfg)

	var src []byte
	receiver.Registry().Register(netreg.NetTypeSixLowPan, func(pkt *netreg.Packet) {
		src = append([]byte(nil), pkt.Src...)
	})

	dst := receiver.Identity().Snapshot().Long
	require.NoError(t, sender.Send(context.Background(), Frame{Dst: dst[:], Payload: []byte{0x60, 0x00}}))
	sender.Start(10000, 1)
	receiver.Start(10000, 1)
	net.clock.AdvanceTo(20000 - 1)

	long := sender.Identity().Snapshot().Long
	assert.Equal(t, long[:], src)
	assert.Equal(t, uint32(1), sender.Stats().Netdev.TxUnicastCount)
}

func TestSendErrors(t *testing.T) {
	net := newTestNet(t)
	m := net.newMac(t, 1, true, DefaultConfig())
	ctx := context.Background()

	err := m.Send(ctx, Frame{Payload: make([]byte, 120)})
	assert.Equal(t, ErrOverflow, errors.Cause(err))

	err = m.Send(ctx, Frame{Dst: []byte{1, 2, 3}, Payload: []byte{0x41}})
	assert.Equal(t, ErrInvalid, errors.Cause(err))

	for i := 0; i < DefaultConfig().Tsch.TxQueueSize; i++ {
		require.NoError(t, m.Send(ctx, Frame{Payload: []byte{0x41, byte(i)}}))
	}
	err = m.Send(ctx, Frame{Payload: []byte{0x41}})
	assert.Equal(t, ErrNoBuffer, errors.Cause(err))
	assert.Equal(t, uint32(10), m.Stats().FramesQueued)
}

func TestCanceledRequest(t *testing.T) {
	net := newTestNet(t)
	m := net.newStoppedMac(t, 1, true, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ack := m.Get(ctx, netdev.OptChannel)
	assert.Equal(t, ResultCanceled, ack.Code)
	assert.Equal(t, context.Canceled, m.Send(ctx, Frame{Payload: []byte{0x41}}))
}

func TestSchedulerWakeCoalesced(t *testing.T) {
	net := newTestNet(t)
	m := net.newStoppedMac(t, 1, true, DefaultConfig())

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		m.sched.Push(func() { order = append(order, i) }, scheduler.PrioUpper)
	}
	assert.Len(t, m.mbox, 1)
	assert.Equal(t, 1, net.activity.Pending())

	m.handle(<-m.mbox)
	assert.Equal(t, []int{2, 1, 0}, order)
	assert.Equal(t, 0, net.activity.Pending())
}

func TestMailboxFullKeepsInterruptWork(t *testing.T) {
	net := newTestNet(t)
	cfg := DefaultConfig()
	cfg.MsgQueueSize = 2
	m := net.newStoppedMac(t, 1, true, cfg)

	ack := make(chan Ack, 2)
	for i := 0; i < 2; i++ {
		net.activity.Add(1)
		m.mbox <- message{typ: msgGet, opt: netdev.OptChannel, ack: ack}
	}

	ran := false
	m.sched.Push(func() { ran = true }, scheduler.PrioUpper)
	assert.Equal(t, uint32(1), m.Stats().MailboxFull)
	assert.Equal(t, 3, net.activity.Pending())

	// the wake-up is queued again behind the requests that were posted before it
	m.step(<-m.mbox)
	assert.False(t, ran)
	assert.Len(t, m.mbox, 2)
	m.step(<-m.mbox)
	assert.False(t, ran)
	assert.True(t, (<-ack).Code.IsOk())
	assert.True(t, (<-ack).Code.IsOk())

	m.step(<-m.mbox)
	assert.True(t, ran)
	assert.Empty(t, m.mbox)
	assert.Equal(t, 0, net.activity.Pending())
}

func TestMailboxKeepsOrder(t *testing.T) {
	net := newTestNet(t)
	m := net.newStoppedMac(t, 1, true, DefaultConfig())

	ack := make(chan Ack, 1)
	net.activity.Add(1)
	m.mbox <- message{typ: msgSet, opt: netdev.OptChannel, data: netdev.EncodeUint16(20), ack: ack}
	ran := false
	m.sched.Push(func() {
		// the earlier request has been answered
		assert.Len(t, ack, 1)
		ran = true
	}, scheduler.PrioUpper)

	m.step(<-m.mbox)
	assert.False(t, ran)
	assert.Len(t, ack, 1)
	m.step(<-m.mbox)
	assert.True(t, ran)
	assert.True(t, (<-ack).Code.IsOk())
	assert.Equal(t, 0, net.activity.Pending())
}

func TestMultipleInstancesIndependent(t *testing.T) {
	net := newTestNet(t)
	a := net.newMac(t, 1, true, DefaultConfig())
	b := net.newMac(t, 2, false, DefaultConfig())

	a.Identity().SetRoot(false)
	assert.False(t, a.Identity().IsRoot())
	assert.False(t, b.Identity().IsRoot())
	b.Identity().SetRoot(true)
	assert.True(t, b.Engine().IsSynced())
	assert.False(t, a.Engine().IsSynced())
}
