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

// Package radio implements the radio state machine the TSCH engine drives. It wraps a netdev.Driver,
// turns driver interrupts into start-of-frame and end-of-frame captures, and forwards valid received
// frames upstream.
package radio

import (
	"runtime"

	"github.com/pkg/errors"

	"github.com/openthread/ot-tsch/dissectpkt/wpan"
	"github.com/openthread/ot-tsch/irq"
	"github.com/openthread/ot-tsch/logger"
	"github.com/openthread/ot-tsch/netdev"
	"github.com/openthread/ot-tsch/netreg"
	"github.com/openthread/ot-tsch/radiotimer"
	. "github.com/openthread/ot-tsch/types"
)

// CaptureCb receives the slot-relative time of a start-of-frame or end-of-frame event.
type CaptureCb func(capturedTime Ticks)

// StateObserver is notified of every state change, from thread or interrupt context.
type StateObserver func(old, new State)

// RxNotify sees every valid received frame before it is dispatched, in interrupt context.
type RxNotify func(frame *wpan.MacFrame, lqi uint8, rssi int8)

// MaxBusyWaitPolls bounds the busy-waits for PLL lock and receiver readiness.
const MaxBusyWaitPolls = 1000

// Stats counts frames the radio dropped on the receive path.
type Stats struct {
	RxMalformed   uint32 `json:"rx_malformed"`
	RxUndelivered uint32 `json:"rx_undelivered"`
}

type Radio struct {
	id    NodeId
	mask  *irq.Mask
	dev   netdev.Driver
	timer *radiotimer.SlotTimer
	reg   *netreg.Registry

	startFrameCb CaptureCb
	endFrameCb   CaptureCb
	observer     StateObserver
	rxNotify     RxNotify
	state        State
	load         txLoad
	stats        Stats
}

// New creates a stopped radio for the node's device.
func New(id NodeId, mask *irq.Mask, dev netdev.Driver, timer *radiotimer.SlotTimer, reg *netreg.Registry) *Radio {
	logger.AssertNotNil(dev)
	return &Radio{
		id:    id,
		mask:  mask,
		dev:   dev,
		timer: timer,
		reg:   reg,
		state: Stopped,
	}
}

// SetFrameCallbacks sets the start-of-frame and end-of-frame handlers. Both are required.
func (r *Radio) SetFrameCallbacks(start, end CaptureCb) error {
	if start == nil || end == nil {
		return ErrNoHandler
	}
	r.mask.Do(func() {
		r.startFrameCb = start
		r.endFrameCb = end
	})
	return nil
}

func (r *Radio) SetStateObserver(observer StateObserver) {
	r.mask.Do(func() { r.observer = observer })
}

func (r *Radio) SetRxNotify(notify RxNotify) {
	r.mask.Do(func() { r.rxNotify = notify })
}

// State returns the current radio state.
func (r *Radio) State() State {
	g := r.mask.Disable()
	defer g.Restore()
	return r.state
}

func (r *Radio) Stats() Stats {
	g := r.mask.Disable()
	defer g.Restore()
	return r.stats
}

func (r *Radio) setState(s State) {
	g := r.mask.Disable()
	old := r.state
	r.state = s
	observer := r.observer
	g.Restore()

	if observer != nil && old != s {
		observer(old, s)
	}
}

// Init brings the device up in the configuration the TSCH engine expects: receive and transmit interrupts
// on, auto-ACK and retransmissions off, preloading, raw mode and promiscuous mode on.
// Interrupt sources are only enabled once both frame handlers are registered.
func (r *Radio) Init() error {
	g := r.mask.Disable()
	ready := r.startFrameCb != nil && r.endFrameCb != nil
	g.Restore()
	if !ready {
		return errors.Wrap(ErrNoHandler, "radio init")
	}

	r.setState(Stopped)
	if err := r.dev.Init(); err != nil {
		return errors.Wrap(err, "driver init")
	}

	opts := []struct {
		opt   netdev.Opt
		value []byte
	}{
		{netdev.OptPromiscuousMode, netdev.Enable},
		{netdev.OptRxStartIRQ, netdev.Enable},
		{netdev.OptRxEndIRQ, netdev.Enable},
		{netdev.OptTxEndIRQ, netdev.Enable},
		{netdev.OptAutoAck, netdev.Disable},
		{netdev.OptPreloading, netdev.Enable},
		{netdev.OptRawMode, netdev.Enable},
		{netdev.OptRetrans, []byte{0}},
	}
	for _, o := range opts {
		if _, err := r.dev.Set(o.opt, o.value); err != nil {
			if errors.Cause(err) == ErrNotSupported {
				logger.NodeLogf(r.id, logger.DebugLevel, "radio: driver does not support %s", o.opt)
				continue
			}
			return errors.Wrapf(err, "set %s", o.opt)
		}
	}

	r.setState(Off)
	return nil
}

// Reset resets the transceiver.
func (r *Radio) Reset() error {
	return netdev.SetState(r.dev, netdev.StateReset)
}

// SetFrequency tunes the transceiver to an IEEE 802.15.4 channel.
func (r *Radio) SetFrequency(ch ChannelId) error {
	r.setState(SettingFrequency)
	if err := netdev.SetChannel(r.dev, ch); err != nil {
		logger.NodeLogf(r.id, logger.WarnLevel, "radio: %v", err)
		return err
	}
	r.setState(FrequencySet)
	return nil
}

func (r *Radio) RfOn() error {
	return netdev.SetState(r.dev, netdev.StateIdle)
}

func (r *Radio) RfOff() error {
	r.setLoad(loadNone)
	r.setState(TurningOff)
	if err := netdev.SetState(r.dev, netdev.StateOff); err != nil {
		logger.NodeLogf(r.id, logger.WarnLevel, "radio: %v", err)
		return err
	}
	r.setState(Off)
	return nil
}

// LoadPacket loads a PSDU (without FCS) into the transmit buffer. State() is not affected.
func (r *Radio) LoadPacket(psdu []byte) error {
	r.setLoad(loadingPacket)
	if _, err := r.dev.Send([][]byte{psdu}); err != nil {
		r.setLoad(loadNone)
		logger.NodeLogf(r.id, logger.WarnLevel, "radio: load packet failed: %v", err)
		return errors.Wrap(err, "load packet")
	}
	r.setLoad(packetLoaded)
	return nil
}

func (r *Radio) setLoad(l txLoad) {
	r.mask.Do(func() { r.load = l })
}

func (r *Radio) TxEnable() {
	r.setState(EnablingTx)
	if pll, ok := r.dev.(netdev.PllLocker); ok {
		r.busyWait("PLL lock", pll.PllLocked)
	}
	r.setState(TxEnabled)
}

// TxNow starts transmitting the loaded frame. Transceivers do not interrupt on the transmitted SFD, so
// the start-of-frame capture is raised here.
func (r *Radio) TxNow() error {
	g := r.mask.Disable()
	loaded := r.load == packetLoaded
	r.load = loadNone
	g.Restore()
	if !loaded {
		return errors.Wrap(ErrInvalid, "transmit without a loaded frame")
	}
	r.setState(Transmitting)
	if err := netdev.SetState(r.dev, netdev.StateTx); err != nil {
		logger.NodeLogf(r.id, logger.WarnLevel, "radio: %v", err)
		return err
	}

	captured := r.timer.GetCapturedTime()
	g = r.mask.Disable()
	cb := r.startFrameCb
	g.Restore()
	if cb != nil {
		cb(captured)
	}
	return nil
}

func (r *Radio) RxEnable() error {
	r.setState(EnablingRx)
	if err := netdev.SetState(r.dev, netdev.StateIdle); err != nil {
		logger.NodeLogf(r.id, logger.WarnLevel, "radio: %v", err)
		return err
	}
	if rx, ok := r.dev.(netdev.RxReadier); ok {
		r.busyWait("RX ready", rx.RxReady)
	}
	r.setState(Listening)
	return nil
}

// RxNow is a no-op: the receiver listens as soon as it is enabled.
func (r *Radio) RxNow() {
}

func (r *Radio) busyWait(what string, done func() bool) {
	for i := 0; i < MaxBusyWaitPolls; i++ {
		if done() {
			return
		}
		runtime.Gosched()
	}
	logger.NodeLogf(r.id, logger.WarnLevel, "radio: gave up waiting for %s", what)
}

// HandleEvent is the driver's interrupt entry for frame events. The capture time is taken first.
func (r *Radio) HandleEvent(ev netdev.Event, frame *netdev.RxFrame) {
	captured := r.timer.GetCapturedTime()

	switch ev {
	case netdev.EventRxStarted:
		r.setState(Receiving)
		r.capture(r.startFrameCallback(), captured, ev)
	case netdev.EventRxComplete:
		r.setState(TxRxDone)
		// the end-of-frame handler wakes the MAC thread, which expects the frame to be known by then
		pkt := r.accept(frame)
		r.capture(r.endFrameCallback(), captured, ev)
		if pkt != nil {
			r.dispatch(pkt)
		}
	case netdev.EventTxComplete:
		r.setState(TxRxDone)
		r.capture(r.endFrameCallback(), captured, ev)
	default:
		logger.NodeLogf(r.id, logger.DebugLevel, "radio: ignoring driver event %s", ev)
		if frame != nil {
			frame.Release()
		}
	}
}

func (r *Radio) startFrameCallback() CaptureCb {
	g := r.mask.Disable()
	defer g.Restore()
	return r.startFrameCb
}

func (r *Radio) endFrameCallback() CaptureCb {
	g := r.mask.Disable()
	defer g.Restore()
	return r.endFrameCb
}

func (r *Radio) capture(cb CaptureCb, captured Ticks, ev netdev.Event) {
	if cb == nil {
		logger.Panicf("%sradio: %s interrupt without a registered handler", GetNodeName(r.id), ev)
		return
	}
	cb(captured)
}

// accept validates a received frame and notifies the slot engine of it. Malformed frames are released
// and nil is returned.
func (r *Radio) accept(frame *netdev.RxFrame) *netreg.Packet {
	if frame == nil {
		return nil
	}
	mf, err := wpan.Dissect(frame.Data)
	if err != nil {
		r.mask.Do(func() { r.stats.RxMalformed++ })
		logger.NodeLogf(r.id, logger.DebugLevel, "radio: dropping malformed frame (%d bytes): %v", len(frame.Data), err)
		frame.Release()
		return nil
	}

	g := r.mask.Disable()
	notify := r.rxNotify
	g.Restore()
	if notify != nil {
		notify(mf, frame.Lqi, frame.Rssi)
	}

	pkt := netreg.NewPacket(netreg.TypeOf(mf.Payload), mf.Payload, frame.Release)
	pkt.Lqi = frame.Lqi
	pkt.Rssi = frame.Rssi
	pkt.Src = mf.AppendSrcAddr(nil)
	return pkt
}

func (r *Radio) dispatch(pkt *netreg.Packet) {
	if r.reg == nil || !r.reg.Dispatch(pkt) {
		r.mask.Do(func() { r.stats.RxUndelivered++ })
		logger.NodeLogf(r.id, logger.TraceLevel, "radio: unable to forward packet of type %s", pkt.Type)
		pkt.Release()
	}
}

// SetOverflowCb sets the slot boundary callback of the slot timer.
func (r *Radio) SetOverflowCb(cb func()) error {
	return r.timer.SetOverflowCb(cb)
}

// SetCompareCb sets the in-slot compare callback of the slot timer.
func (r *Radio) SetCompareCb(cb func()) error {
	return r.timer.SetCompareCb(cb)
}

func (r *Radio) StartTimer(period Ticks) {
	r.timer.Start(period)
}

func (r *Radio) GetTimerValue() Ticks {
	return r.timer.GetValue()
}

func (r *Radio) SetTimerPeriod(period Ticks) {
	r.timer.SetPeriod(period)
}

func (r *Radio) GetTimerPeriod() Ticks {
	return r.timer.GetPeriod()
}
