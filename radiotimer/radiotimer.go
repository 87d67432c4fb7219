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

// Package radiotimer implements the slot timer of the TSCH engine: a period alarm marking slot
// boundaries and a compare alarm for actions inside a slot, both relative to the start of the
// current slot.
package radiotimer

import (
	"github.com/openthread/ot-tsch/hwtimer"
	"github.com/openthread/ot-tsch/irq"
	. "github.com/openthread/ot-tsch/types"
)

type SlotTimer struct {
	mask    *irq.Mask
	clock   hwtimer.Timer
	period  hwtimer.Alarm
	compare hwtimer.Alarm

	overflowCb        func()
	compareCb         func()
	currentSlotPeriod Ticks
	slotStart         uint64
}

// New creates a stopped slot timer on the node's clock.
func New(mask *irq.Mask, clock hwtimer.Timer) *SlotTimer {
	st := &SlotTimer{
		mask:  mask,
		clock: clock,
	}
	st.period = clock.NewAlarm("slot-period", st.periodISR)
	st.compare = clock.NewAlarm("slot-compare", st.compareISR)
	return st
}

// SetOverflowCb sets the callback that runs at every slot boundary.
func (st *SlotTimer) SetOverflowCb(cb func()) error {
	if cb == nil {
		return ErrNoHandler
	}
	st.mask.Do(func() { st.overflowCb = cb })
	return nil
}

// SetCompareCb sets the callback that runs when the compare alarm fires.
func (st *SlotTimer) SetCompareCb(cb func()) error {
	if cb == nil {
		return ErrNoHandler
	}
	st.mask.Do(func() { st.compareCb = cb })
	return nil
}

// Start starts the timer; the first slot boundary comes period ticks from now.
func (st *SlotTimer) Start(period Ticks) {
	st.SetPeriod(period)
}

// SetPeriod records the slot period and arms the next slot boundary period ticks from now.
func (st *SlotTimer) SetPeriod(period Ticks) {
	st.mask.Do(func() { st.currentSlotPeriod = period })
	st.period.Set(uint64(period))
}

func (st *SlotTimer) GetPeriod() Ticks {
	g := st.mask.Disable()
	defer g.Restore()
	return st.currentSlotPeriod
}

// Schedule arms the compare alarm offset ticks from now.
func (st *SlotTimer) Schedule(offset Ticks) {
	st.compare.Set(uint64(offset))
}

// Cancel withdraws the pending compare and re-arms it one full slot period from now, as the hardware
// compare register cannot be disabled.
func (st *SlotTimer) Cancel() {
	st.compare.Remove()
	st.compare.Set(uint64(st.GetPeriod()))
}

// GetValue returns the ticks elapsed since the start of the current slot.
func (st *SlotTimer) GetValue() Ticks {
	now := st.clock.Now()
	g := st.mask.Disable()
	defer g.Restore()
	return Ticks(now - st.slotStart)
}

// GetCapturedTime returns the slot-relative time of the capture event being handled.
func (st *SlotTimer) GetCapturedTime() Ticks {
	return st.GetValue()
}

// SlotStart returns the clock value at which the current slot started.
func (st *SlotTimer) SlotStart() uint64 {
	g := st.mask.Disable()
	defer g.Restore()
	return st.slotStart
}

// Stop disarms both alarms.
func (st *SlotTimer) Stop() {
	st.period.Remove()
	st.compare.Remove()
}

func (st *SlotTimer) periodISR(now uint64) {
	g := st.mask.Disable()
	cb := st.overflowCb
	g.Restore()

	if cb != nil {
		cb()
	}

	st.mask.Do(func() { st.slotStart = now })
}

func (st *SlotTimer) compareISR(now uint64) {
	g := st.mask.Disable()
	cb := st.compareCb
	g.Restore()

	if cb != nil {
		cb()
	}
}
