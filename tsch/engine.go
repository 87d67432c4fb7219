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

// Package tsch implements the time-slotted channel hopping engine: it counts slots, picks the channel of
// each slot, and runs the transmit or receive sequence of active cells on top of the radio state machine,
// the slot timer and the task scheduler. Non-root nodes keep their slot boundaries aligned to their time
// source by correcting the slot timer from the captured start of received frames.
package tsch

import (
	"bytes"
	"math/rand"

	"github.com/openthread/ot-tsch/dissectpkt/wpan"
	"github.com/openthread/ot-tsch/idmanager"
	"github.com/openthread/ot-tsch/irq"
	"github.com/openthread/ot-tsch/logger"
	"github.com/openthread/ot-tsch/radio"
	"github.com/openthread/ot-tsch/radiotimer"
	"github.com/openthread/ot-tsch/scheduler"
	. "github.com/openthread/ot-tsch/types"
)

// SlotState is the position of the engine in the current slot's sequence.
type SlotState uint8

const (
	SlotSleep SlotState = iota
	SlotTxOffset
	SlotTxData
	SlotRxOffset
	SlotRxListen
	SlotRxData
)

func (s SlotState) String() string {
	switch s {
	case SlotSleep:
		return "sleep"
	case SlotTxOffset:
		return "tx-offset"
	case SlotTxData:
		return "tx-data"
	case SlotRxOffset:
		return "rx-offset"
	case SlotRxListen:
		return "rx-listen"
	case SlotRxData:
		return "rx-data"
	default:
		return "invalid"
	}
}

// Stats are the engine counters.
type Stats struct {
	Slots           uint64 `json:"slots"`
	TxData          uint32 `json:"tx_data"`
	TxBeacon        uint32 `json:"tx_beacon"`
	TxSuccess       uint32 `json:"tx_success"`
	TxFailed        uint32 `json:"tx_failed"`
	TxQueueDrops    uint32 `json:"tx_queue_drops"`
	RxFrames        uint32 `json:"rx_frames"`
	RxBeacon        uint32 `json:"rx_beacon"`
	RxAborted       uint32 `json:"rx_aborted"`
	IdleListen      uint32 `json:"idle_listen"`
	SyncCorrections uint32 `json:"sync_corrections"`
	LastCorrection  int32  `json:"last_correction"`
	Desyncs         uint32 `json:"desyncs"`
}

type lastRx struct {
	valid   bool
	src     []byte
	beacon  bool
	joinPri uint8
}

// Engine is the TSCH engine of one node. Slot sequences run as scheduler tasks in the MAC goroutine;
// timer and radio callbacks only record captures and queue tasks.
type Engine struct {
	id     NodeId
	cfg    Config
	mask   *irq.Mask
	sched  *scheduler.Scheduler
	radio  *radio.Radio
	timer  *radiotimer.SlotTimer
	ident  *idmanager.Identity
	rnd    *rand.Rand
	queue  *txQueue
	beacon []byte

	// guarded by mask
	asn          uint64
	state        SlotState
	startCapture Ticks
	rx           lastRx
	synced       bool
	timeSource   []byte
	joinPri      uint8
	lastSyncAsn  uint64
	txBeacon     bool
	running      bool
	stats        Stats
}

// New creates the engine. rnd draws the beacon decisions.
func New(id NodeId, cfg Config, mask *irq.Mask, sched *scheduler.Scheduler, r *radio.Radio,
	timer *radiotimer.SlotTimer, ident *idmanager.Identity, rnd *rand.Rand) *Engine {
	logger.AssertTrue(cfg.SlotframeLength > 0 && len(cfg.HoppingSequence) > 0)
	logger.AssertTrue(cfg.RxOffset+cfg.RxWait < cfg.SlotDuration && cfg.TxWatchdog() < cfg.SlotDuration)

	e := &Engine{
		id:    id,
		cfg:   cfg,
		mask:  mask,
		sched: sched,
		radio: r,
		timer: timer,
		ident: ident,
		rnd:   rnd,
		queue: newTxQueue(cfg.TxQueueSize),
		state: SlotSleep,
	}
	e.UpdateNeighborPreference()
	return e
}

// Attach registers the engine's handlers with the radio, the slot timer and the identity.
// Must be called before the radio is initialized.
func (e *Engine) Attach() error {
	if err := e.radio.SetFrameCallbacks(e.startOfFrame, e.endOfFrame); err != nil {
		return err
	}
	if err := e.radio.SetOverflowCb(e.newSlotISR); err != nil {
		return err
	}
	if err := e.radio.SetCompareCb(e.compareISR); err != nil {
		return err
	}
	e.radio.SetRxNotify(e.rxNotify)
	e.ident.SetCollaborator(e)
	return nil
}

// Start starts slotting: the first slot boundary is firstSlot ticks from now and that slot gets number asn.
func (e *Engine) Start(firstSlot Ticks, asn uint64) {
	e.mask.Do(func() {
		e.asn = asn - 1
		e.running = true
	})
	logger.NodeLogf(e.id, logger.InfoLevel, "tsch: starting, first slot in %dus, ASN %d", firstSlot, asn)
	e.radio.StartTimer(firstSlot)
}

// Stop stops slotting and turns the radio off.
func (e *Engine) Stop() {
	e.mask.Do(func() {
		e.running = false
		e.state = SlotSleep
	})
	e.timer.Stop()
	_ = e.radio.RfOff()
}

// Enqueue queues a PSDU (without FCS) for the next shared cell.
func (e *Engine) Enqueue(psdu []byte, broadcast bool) error {
	g := e.mask.Disable()
	defer g.Restore()

	err := e.queue.push(txEntry{psdu: psdu, broadcast: broadcast, enqueuedAt: e.asn})
	if err != nil {
		e.stats.TxQueueDrops++
	}
	return err
}

func (e *Engine) QueueLen() int {
	g := e.mask.Disable()
	defer g.Restore()
	return e.queue.len()
}

func (e *Engine) ASN() uint64 {
	g := e.mask.Disable()
	defer g.Restore()
	return e.asn
}

func (e *Engine) IsSynced() bool {
	g := e.mask.Disable()
	defer g.Restore()
	return e.synced
}

// TimeSource returns the source address of the neighbour the node synchronizes to, or nil.
func (e *Engine) TimeSource() []byte {
	g := e.mask.Disable()
	defer g.Restore()
	return append([]byte(nil), e.timeSource...)
}

func (e *Engine) JoinPriority() uint8 {
	g := e.mask.Disable()
	defer g.Restore()
	return e.joinPri
}

func (e *Engine) SlotState() SlotState {
	g := e.mask.Disable()
	defer g.Restore()
	return e.state
}

func (e *Engine) Stats() Stats {
	g := e.mask.Disable()
	defer g.Restore()
	return e.stats
}

// UpdateNeighborPreference re-evaluates the time source after a root role change. A root is its own
// time reference; other nodes drop their time source and select a new one from received beacons.
func (e *Engine) UpdateNeighborPreference() {
	root := e.ident.IsRoot()
	e.mask.Do(func() {
		e.timeSource = nil
		e.synced = root
		e.joinPri = 0xff
		if root {
			e.joinPri = 0
		}
		e.lastSyncAsn = e.asn
	})
}

// StartRoot makes the node the time reference of the network.
func (e *Engine) StartRoot() {
	logger.NodeLogf(e.id, logger.InfoLevel, "tsch: acting as root, ASN %d", e.ASN())
}

func (e *Engine) push(cb func()) {
	e.sched.Push(cb, scheduler.PrioRadioEvent)
}

//===== interrupt context

func (e *Engine) newSlotISR() {
	g := e.mask.Disable()
	running := e.running
	if running {
		e.asn++
		e.stats.Slots++
	}
	g.Restore()
	if !running {
		return
	}
	e.radio.SetTimerPeriod(e.cfg.SlotDuration)
	e.sched.Push(e.newSlot, scheduler.PrioSlotStart)
}

func (e *Engine) compareISR() {
	e.push(e.onCompare)
}

func (e *Engine) startOfFrame(captured Ticks) {
	g := e.mask.Disable()
	e.startCapture = captured
	state := e.state
	g.Restore()

	if state == SlotRxListen {
		e.push(e.onRxStarted)
	}
}

func (e *Engine) endOfFrame(captured Ticks) {
	e.push(e.onEndOfFrame)
}

func (e *Engine) rxNotify(frame *wpan.MacFrame, lqi uint8, rssi int8) {
	rx := lastRx{
		valid: true,
		src:   frame.AppendSrcAddr(nil),
	}
	if frame.FrameControl.FrameType() == wpan.FrameTypeBeacon && len(frame.Payload) >= 1 {
		rx.beacon = true
		rx.joinPri = frame.Payload[0]
	}
	e.mask.Do(func() { e.rx = rx })
}

//===== slot sequences, MAC goroutine

func (e *Engine) setState(s SlotState) {
	e.mask.Do(func() { e.state = s })
}

// scheduleAt arms the compare alarm at a slot offset, compensating for time already spent in the slot.
func (e *Engine) scheduleAt(offset Ticks) {
	elapsed := e.timer.GetValue()
	if elapsed >= e.timer.GetPeriod() {
		// the period ISR has not moved the anchor yet: the slot starts now
		elapsed = 0
	}
	if elapsed >= offset {
		logger.NodeLogf(e.id, logger.DebugLevel, "tsch: late for slot offset %d (at %d)", offset, elapsed)
		e.timer.Schedule(1)
		return
	}
	e.timer.Schedule(offset - elapsed)
}

func (e *Engine) newSlot() {
	root := e.ident.IsRoot()
	g := e.mask.Disable()
	asn := e.asn
	prev := e.state
	e.state = SlotSleep
	e.rx = lastRx{}
	synced := e.synced
	desync := !root && synced && asn-e.lastSyncAsn > e.cfg.DesyncTimeout
	if desync {
		e.synced = false
		e.timeSource = nil
		e.joinPri = 0xff
		e.stats.Desyncs++
	}
	g.Restore()

	if prev != SlotSleep {
		logger.NodeLogf(e.id, logger.DebugLevel, "tsch: slot %d started while in %s", asn, prev)
		e.abortSlot()
	}
	if desync {
		logger.NodeLogf(e.id, logger.WarnLevel, "tsch: lost synchronization at ASN %d", asn)
	}

	if !e.cfg.IsShared(asn) {
		if e.radio.State().IsOn() {
			_ = e.radio.RfOff()
		}
		return
	}

	ch := e.cfg.Channel(asn, 0)
	if psdu := e.pickTxFrame(asn); psdu != nil {
		if err := e.radio.SetFrequency(ch); err != nil {
			return
		}
		if err := e.radio.LoadPacket(psdu); err != nil {
			return
		}
		e.radio.TxEnable()
		e.setState(SlotTxOffset)
		e.scheduleAt(e.cfg.TxOffset)
		return
	}

	if err := e.radio.SetFrequency(ch); err != nil {
		return
	}
	e.setState(SlotRxOffset)
	e.scheduleAt(e.cfg.RxOffset)
}

// pickTxFrame returns the frame to send in this shared slot: a beacon in beacon slots when the node is
// synchronized and the draw says so, else the head of the transmit queue.
func (e *Engine) pickTxFrame(asn uint64) []byte {
	snap := e.ident.Snapshot()
	g := e.mask.Disable()
	defer g.Restore()

	e.txBeacon = false
	if e.cfg.IsBeaconSlot(asn) && e.synced && e.rnd.Float64() < e.cfg.BeaconProb {
		e.txBeacon = true
		return e.buildBeacon(snap)
	}
	if entry, ok := e.queue.peek(); ok {
		return entry.psdu
	}
	return nil
}

// buildBeacon must be called with interrupts masked.
func (e *Engine) buildBeacon(snap idmanager.Snapshot) []byte {
	f := &wpan.MacFrame{
		FrameControl: wpan.NewFrameControl(wpan.FrameTypeBeacon, false, wpan.AddrModeShort, wpan.AddrModeShort),
		Seq:          uint8(e.asn),
		DstPanId:     uint16(snap.PanId[0])<<8 | uint16(snap.PanId[1]),
		DstAddrShort: wpan.BroadcastAddrShort,
		SrcAddrShort: uint16(snap.Short[0])<<8 | uint16(snap.Short[1]),
		Payload:      []byte{e.joinPri},
	}
	b, err := f.Build()
	logger.PanicIfError(err)
	return b
}

func (e *Engine) onCompare() {
	switch e.SlotState() {
	case SlotTxOffset:
		e.setState(SlotTxData)
		if err := e.radio.TxNow(); err != nil {
			e.endTx(false)
			return
		}
		e.scheduleAt(e.cfg.TxWatchdog())
	case SlotTxData:
		logger.NodeLogf(e.id, logger.WarnLevel, "tsch: transmission did not end in slot %d", e.ASN())
		e.endTx(false)
	case SlotRxOffset:
		if err := e.radio.RxEnable(); err != nil {
			e.endSlot()
			return
		}
		e.radio.RxNow()
		e.setState(SlotRxListen)
		e.scheduleAt(e.cfg.RxOffset + e.cfg.RxWait)
	case SlotRxListen:
		e.mask.Do(func() { e.stats.IdleListen++ })
		e.endSlot()
	case SlotRxData:
		e.mask.Do(func() { e.stats.RxAborted++ })
		e.endSlot()
	default:
		// compare re-armed by a cancel, nothing pending
	}
}

func (e *Engine) onRxStarted() {
	g := e.mask.Disable()
	if e.state != SlotRxListen {
		g.Restore()
		return
	}
	e.state = SlotRxData
	captured := e.startCapture
	g.Restore()

	e.scheduleAt(captured + Ticks(AirtimeUs(MacFrameLenBytes)) + e.cfg.WatchdogMargin)
}

func (e *Engine) onEndOfFrame() {
	switch e.SlotState() {
	case SlotTxData:
		e.endTx(true)
	case SlotRxData:
		e.endRx()
	default:
		logger.NodeLogf(e.id, logger.DebugLevel, "tsch: unexpected end of frame in %s", e.SlotState())
	}
}

func (e *Engine) endTx(ok bool) {
	g := e.mask.Disable()
	beacon := e.txBeacon
	e.txBeacon = false
	switch {
	case beacon && ok:
		e.stats.TxBeacon++
	case ok:
		e.stats.TxData++
		e.stats.TxSuccess++
		e.queue.pop()
	default:
		e.stats.TxFailed++
		if !beacon {
			e.queue.pop()
		}
	}
	g.Restore()
	e.endSlot()
}

func (e *Engine) endRx() {
	root := e.ident.IsRoot()
	g := e.mask.Disable()
	rx := e.rx
	captured := e.startCapture
	correction := int32(0)
	apply := false
	if rx.valid {
		e.stats.RxFrames++
		if rx.beacon {
			e.stats.RxBeacon++
		}
		if !root && rx.beacon && rx.joinPri < 0xff &&
			(e.timeSource == nil || rx.joinPri < e.joinPri-1) {
			e.timeSource = rx.src
			e.joinPri = rx.joinPri + 1
		}
		if !root && e.timeSource != nil && bytes.Equal(rx.src, e.timeSource) {
			correction = int32(captured) - int32(e.cfg.TxOffset)
			limit := int32(e.cfg.MaxTimeCorrected)
			if correction > limit || correction < -limit {
				apply = false
				e.timeSource = nil
				e.synced = false
				e.joinPri = 0xff
			} else {
				apply = true
				e.synced = true
				e.lastSyncAsn = e.asn
				e.stats.SyncCorrections++
				e.stats.LastCorrection = correction
			}
		}
	}
	g.Restore()

	if apply && correction != 0 {
		// move the next slot boundary by the correction, relative to the current slot's start
		remaining := int64(e.cfg.SlotDuration) + int64(correction) - int64(e.timer.GetValue())
		if remaining < 1 {
			remaining = 1
		}
		e.radio.SetTimerPeriod(Ticks(remaining))
		logger.NodeLogf(e.id, logger.TraceLevel, "tsch: time correction %dus", correction)
	} else if rx.valid && !apply && correction != 0 {
		logger.NodeLogf(e.id, logger.WarnLevel, "tsch: time correction %dus out of range, resynchronizing", correction)
	}
	e.endSlot()
}

func (e *Engine) endSlot() {
	_ = e.radio.RfOff()
	e.timer.Cancel()
	e.setState(SlotSleep)
}

func (e *Engine) abortSlot() {
	g := e.mask.Disable()
	if e.txBeacon {
		e.txBeacon = false
	}
	g.Restore()
	_ = e.radio.RfOff()
}
