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

// Package mac runs the MAC layer of one radio device: a single goroutine that owns a mailbox and
// serializes scheduler drains, deferred driver interrupts, outbound frames and option requests.
package mac

import (
	"context"
	"encoding/binary"
	"math/rand"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/openthread/ot-tsch/dissectpkt/wpan"
	"github.com/openthread/ot-tsch/hwtimer"
	"github.com/openthread/ot-tsch/idmanager"
	"github.com/openthread/ot-tsch/irq"
	"github.com/openthread/ot-tsch/logger"
	"github.com/openthread/ot-tsch/netdev"
	"github.com/openthread/ot-tsch/netreg"
	"github.com/openthread/ot-tsch/radio"
	"github.com/openthread/ot-tsch/radiotimer"
	"github.com/openthread/ot-tsch/scheduler"
	"github.com/openthread/ot-tsch/tsch"
	. "github.com/openthread/ot-tsch/types"
)

type msgType uint8

const (
	msgSchedulerWake msgType = iota
	msgDriverEvent
	msgSend
	msgSet
	msgGet
)

func (t msgType) String() string {
	switch t {
	case msgSchedulerWake:
		return "scheduler-wake"
	case msgDriverEvent:
		return "driver-event"
	case msgSend:
		return "send"
	case msgSet:
		return "set"
	case msgGet:
		return "get"
	default:
		return "unknown"
	}
}

// Ack is the reply to a get or set request. Code is the number of bytes used or returned on success.
type Ack struct {
	Code ResultCode
	Data []byte
}

// Frame is an outbound MAC payload. Dst is a 2 or 8 byte address in network order; an empty Dst
// broadcasts.
type Frame struct {
	Dst     []byte
	Payload []byte
}

type message struct {
	typ   msgType
	frame Frame
	opt   netdev.Opt
	data  []byte
	ack   chan Ack
	done  chan error
}

// Deps are the per-node collaborators of a MAC instance.
type Deps struct {
	Id       NodeId
	Clock    hwtimer.Timer
	CpuId    []byte
	IsRoot   bool
	Registry *netreg.Registry // nil for a private registry
	Rand     *rand.Rand       // nil for a seed derived from the node id
	Activity *Activity        // nil if nobody waits for the loop
}

// Stats are the counters of all layers of a MAC instance.
type Stats struct {
	Tsch         tsch.Stats   `json:"tsch"`
	Radio        radio.Stats  `json:"radio"`
	Netdev       netdev.Stats `json:"netdev"`
	TasksMax     int          `json:"tasks_max"`
	MailboxFull  uint32       `json:"mailbox_full"`
	FramesQueued uint32       `json:"frames_queued"`
}

// Mac is one MAC instance. All its components are private to it.
type Mac struct {
	id       NodeId
	cfg      Config
	dev      netdev.Driver
	mask     *irq.Mask
	sched    *scheduler.Scheduler
	timer    *radiotimer.SlotTimer
	radio    *radio.Radio
	ident    *idmanager.Identity
	engine   *tsch.Engine
	reg      *netreg.Registry
	activity *Activity

	mbox        chan message
	wakePending atomic.Bool
	isrPending  atomic.Bool
	wakeDropped atomic.Bool
	isrDropped  atomic.Bool
	mailboxFull atomic.Uint32
	queued      atomic.Uint32
	seq         uint8
}

// New assembles the MAC layer on top of dev. The radio is initialized but slotting only begins with
// Start, and messages are only handled while Run is running.
func New(dev netdev.Driver, cfg Config, deps Deps) (*Mac, error) {
	if dev == nil {
		return nil, errors.Wrapf(ErrNoSuchDevice, "node %d", deps.Id)
	}
	logger.AssertNotNil(deps.Clock)
	if cfg.MsgQueueSize <= 0 {
		cfg.MsgQueueSize = MsgQueueSize
	}
	if cfg.TaskListDepth <= 0 {
		cfg.TaskListDepth = scheduler.TaskListDepth
	}
	if deps.Registry == nil {
		deps.Registry = netreg.NewRegistry()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(int64(deps.Id)))
	}

	m := &Mac{
		id:       deps.Id,
		cfg:      cfg,
		dev:      dev,
		mask:     &irq.Mask{},
		reg:      deps.Registry,
		activity: deps.Activity,
		mbox:     make(chan message, cfg.MsgQueueSize),
	}
	m.sched = scheduler.New(m.mask, cfg.TaskListDepth, m.schedulerWake)
	m.timer = radiotimer.New(m.mask, deps.Clock)
	m.radio = radio.New(m.id, m.mask, dev, m.timer, m.reg)
	m.ident = idmanager.New(m.mask, deps.CpuId, deps.IsRoot)
	m.engine = tsch.New(m.id, cfg.Tsch, m.mask, m.sched, m.radio, m.timer, m.ident, deps.Rand)

	dev.SetEventCallback(m.driverEvent)
	if err := m.engine.Attach(); err != nil {
		return nil, err
	}
	if err := m.radio.Init(); err != nil {
		return nil, errors.Wrapf(err, "node %d", m.id)
	}
	if err := m.programAddresses(); err != nil {
		return nil, errors.Wrapf(err, "node %d", m.id)
	}
	logger.NodeLogf(m.id, logger.InfoLevel, "mac: up, %s", m.ident.Snapshot())
	return m, nil
}

// programAddresses copies the identity into the driver's address filter.
func (m *Mac) programAddresses() error {
	snap := m.ident.Snapshot()
	nid := binary.BigEndian.Uint16(snap.PanId[:])
	for _, o := range []struct {
		opt   netdev.Opt
		value []byte
	}{
		{netdev.OptAddress, snap.Short[:]},
		{netdev.OptAddressLong, snap.Long[:]},
		{netdev.OptNID, netdev.EncodeUint16(nid)},
	} {
		if _, err := m.dev.Set(o.opt, o.value); err != nil && errors.Cause(err) != ErrNotSupported {
			return err
		}
	}
	return nil
}

func (m *Mac) Id() NodeId {
	return m.id
}

func (m *Mac) Identity() *idmanager.Identity {
	return m.ident
}

func (m *Mac) Radio() *radio.Radio {
	return m.radio
}

func (m *Mac) Engine() *tsch.Engine {
	return m.engine
}

func (m *Mac) Registry() *netreg.Registry {
	return m.reg
}

// Start begins slotting; the first slot boundary is firstSlot ticks from now and carries number asn.
func (m *Mac) Start(firstSlot Ticks, asn uint64) {
	m.engine.Start(firstSlot, asn)
}

// Stop ends slotting and turns the radio off.
func (m *Mac) Stop() {
	m.engine.Stop()
}

func (m *Mac) Stats() Stats {
	st := Stats{
		Tsch:         m.engine.Stats(),
		Radio:        m.radio.Stats(),
		TasksMax:     m.sched.MaxLen(),
		MailboxFull:  m.mailboxFull.Load(),
		FramesQueued: m.queued.Load(),
	}
	if ns, err := netdev.GetStats(m.dev); err == nil {
		st.Netdev = ns
	}
	return st
}

//===== interrupt context

func (m *Mac) schedulerWake() {
	m.notify(&m.wakePending, msgSchedulerWake)
}

func (m *Mac) driverEvent(ev netdev.Event, frame *netdev.RxFrame) {
	if ev == netdev.EventISR {
		m.notify(&m.isrPending, msgDriverEvent)
		return
	}
	m.radio.HandleEvent(ev, frame)
}

// notify posts a wake-up without blocking. The flag is the work item, its message only schedules it.
func (m *Mac) notify(flag *atomic.Bool, typ msgType) {
	if flag.Swap(true) {
		return
	}
	m.activity.Add(1)
	m.postWake(typ)
}

// postWake queues a wake-up message. One that does not fit is queued again by the loop as soon as it
// made room, so the work keeps its place behind the messages posted before it.
func (m *Mac) postWake(typ msgType) {
	select {
	case m.mbox <- message{typ: typ}:
	default:
		m.mailboxFull.Add(1)
		m.dropped(typ).Store(true)
	}
}

func (m *Mac) dropped(typ msgType) *atomic.Bool {
	if typ == msgDriverEvent {
		return &m.isrDropped
	}
	return &m.wakeDropped
}

//===== MAC goroutine

// Run handles messages until ctx is done. Messages are handled in the order they were posted.
func (m *Mac) Run(ctx context.Context) {
	logger.NodeLogf(m.id, logger.DebugLevel, "mac: event loop started")
	defer logger.NodeLogf(m.id, logger.DebugLevel, "mac: event loop stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.mbox:
			m.step(msg)
		}
	}
}

func (m *Mac) step(msg message) {
	m.handle(msg)
	for _, typ := range []msgType{msgDriverEvent, msgSchedulerWake} {
		if m.dropped(typ).Swap(false) {
			m.postWake(typ)
		}
	}
}

func (m *Mac) handle(msg message) {
	switch msg.typ {
	case msgSchedulerWake:
		if m.wakePending.Swap(false) {
			m.sched.Drain()
			m.activity.Add(-1)
		}
		return
	case msgDriverEvent:
		if m.isrPending.Swap(false) {
			m.dev.ISR()
			m.activity.Add(-1)
		}
		return
	case msgSend:
		msg.done <- m.send(msg.frame)
	case msgSet:
		n, err := m.dev.Set(msg.opt, msg.data)
		msg.ack <- ackOf(n, nil, err)
	case msgGet:
		buf := make([]byte, 64)
		n, err := m.dev.Get(msg.opt, buf)
		msg.ack <- ackOf(n, buf, err)
	default:
		logger.NodeLogf(m.id, logger.WarnLevel, "mac: unknown message %s", msg.typ)
	}
	m.activity.Add(-1)
}

func ackOf(n int, buf []byte, err error) Ack {
	if err != nil {
		return Ack{Code: ResultCodeOf(err)}
	}
	ack := Ack{Code: ResultCode(n)}
	if buf != nil {
		ack.Data = buf[:n]
	}
	return ack
}

// send builds the MAC header from the identity and the destination, copies the payload into a frame
// buffer and stages it for the next shared cell.
func (m *Mac) send(f Frame) error {
	snap := m.ident.Snapshot()
	mf := &wpan.MacFrame{
		DstPanId: binary.BigEndian.Uint16(snap.PanId[:]),
		Payload:  f.Payload,
	}
	srcMode := uint16(wpan.AddrModeShort)
	dstMode := uint16(wpan.AddrModeShort)
	switch len(f.Dst) {
	case 0:
		mf.DstAddrShort = wpan.BroadcastAddrShort
	case 2:
		mf.DstAddrShort = binary.BigEndian.Uint16(f.Dst)
	case 8:
		dstMode = wpan.AddrModeExtended
		srcMode = wpan.AddrModeExtended
		mf.DstAddrExtended = binary.BigEndian.Uint64(f.Dst)
	default:
		return errors.Wrapf(ErrInvalid, "destination of %d bytes", len(f.Dst))
	}
	mf.SrcAddrShort = binary.BigEndian.Uint16(snap.Short[:])
	mf.SrcAddrExtended = binary.BigEndian.Uint64(snap.Long[:])
	mf.FrameControl = wpan.NewFrameControl(wpan.FrameTypeData, false, dstMode, srcMode)
	mf.Seq = m.seq

	if n := mf.HeaderLen() + len(f.Payload); n > MacFrameLenBytes-FcsLenBytes {
		return errors.Wrapf(ErrOverflow, "frame of %d bytes", n)
	}
	psdu, err := mf.Build()
	if err != nil {
		return err
	}
	if err = m.engine.Enqueue(psdu, mf.IsBroadcast()); err != nil {
		logger.NodeLogf(m.id, logger.WarnLevel, "mac: dropping frame: %v", err)
		return err
	}
	m.seq++
	m.queued.Add(1)
	logger.NodeLogf(m.id, logger.DebugLevel, "mac: queued %s", mf)
	return nil
}

//===== API, any goroutine

func (m *Mac) post(ctx context.Context, msg message) error {
	m.activity.Add(1)
	select {
	case m.mbox <- msg:
		return nil
	case <-ctx.Done():
		m.activity.Add(-1)
		return ctx.Err()
	}
}

// Send queues an outbound frame. It returns once the frame is staged for transmission, not when it
// was sent.
func (m *Mac) Send(ctx context.Context, f Frame) error {
	done := make(chan error, 1)
	f.Payload = append([]byte(nil), f.Payload...)
	if err := m.post(ctx, message{typ: msgSend, frame: f, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Set sets a device option. The MAC layer has no options of its own; requests go to the driver.
func (m *Mac) Set(ctx context.Context, opt netdev.Opt, data []byte) Ack {
	return m.request(ctx, message{typ: msgSet, opt: opt, data: append([]byte(nil), data...)})
}

// Get reads a device option.
func (m *Mac) Get(ctx context.Context, opt netdev.Opt) Ack {
	return m.request(ctx, message{typ: msgGet, opt: opt})
}

func (m *Mac) request(ctx context.Context, msg message) Ack {
	msg.ack = make(chan Ack, 1)
	if err := m.post(ctx, msg); err != nil {
		return Ack{Code: ResultCodeOf(err)}
	}
	select {
	case ack := <-msg.ack:
		return ack
	case <-ctx.Done():
		return Ack{Code: ResultCodeOf(ctx.Err())}
	}
}
