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

package hwtimer

import (
	"container/heap"
	"math"
	"sync"

	"github.com/openthread/ot-tsch/logger"
	. "github.com/openthread/ot-tsch/types"
)

// VirtualClock is the reference time of a simulation. Alarms of all nodes are kept in one queue
// ordered by reference expiry time and fired by whoever advances the clock. Each node sees the
// reference time through a View, which may run slightly fast or slow (crystal drift).
type VirtualClock struct {
	mu     sync.Mutex
	now    uint64
	q      alarmQueue
	seq    uint64
	settle func()
	ref    *View
}

// NewVirtualClock creates a clock at reference time 0.
func NewVirtualClock() *VirtualClock {
	vc := &VirtualClock{
		q: alarmQueue{},
	}
	heap.Init(&vc.q)
	vc.ref = vc.View(0)
	return vc
}

// SetSettleFunc sets a function that is called after each fired alarm, before the clock moves on.
// The simulation uses it to let the MAC goroutines process the work raised by the alarm.
func (vc *VirtualClock) SetSettleFunc(f func()) {
	vc.mu.Lock()
	vc.settle = f
	vc.mu.Unlock()
}

// Now returns the reference time in microseconds.
func (vc *VirtualClock) Now() uint64 {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.now
}

// NewAlarm creates an alarm on the undrifted reference view.
func (vc *VirtualClock) NewAlarm(name string, cb func(now uint64)) Alarm {
	return vc.ref.NewAlarm(name, cb)
}

// View returns a node clock on top of the reference clock, drifting by driftPpm parts per million.
func (vc *VirtualClock) View(driftPpm float64) *View {
	logger.AssertTrue(driftPpm > -1e6)
	return &View{vc: vc, rate: 1 + driftPpm/1e6}
}

// NextTimestamp returns the reference expiry time of the earliest armed alarm, or Ever.
func (vc *VirtualClock) NextTimestamp() uint64 {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	if len(vc.q) == 0 {
		return Ever
	}
	return vc.q[0].deadline
}

// Pending returns the number of armed alarms.
func (vc *VirtualClock) Pending() int {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return len(vc.q)
}

// Advance moves the reference time forward by d microseconds, firing due alarms in order.
func (vc *VirtualClock) Advance(d uint64) {
	vc.AdvanceTo(vc.Now() + d)
}

// AdvanceTo moves the reference time forward to t, firing every alarm due at or before t in expiry order
// with the clock set to the expiry time. Alarms armed by callbacks are honoured in the same run.
func (vc *VirtualClock) AdvanceTo(t uint64) {
	for vc.fireNext(t) {
	}
	vc.mu.Lock()
	if t > vc.now {
		vc.now = t
	}
	vc.mu.Unlock()
}

// Step fires the earliest armed alarm, advancing the clock to its expiry time. Returns false if no
// alarm is armed.
func (vc *VirtualClock) Step() bool {
	return vc.fireNext(Ever - 1)
}

func (vc *VirtualClock) fireNext(limit uint64) bool {
	vc.mu.Lock()
	if len(vc.q) == 0 || vc.q[0].deadline > limit {
		vc.mu.Unlock()
		return false
	}
	a := heap.Pop(&vc.q).(*virtualAlarm)
	if a.deadline > vc.now {
		vc.now = a.deadline
	}
	local := a.view.local(vc.now)
	settle := vc.settle
	vc.mu.Unlock()

	a.cb(local)
	if settle != nil {
		settle()
	}
	return true
}

// View is a node's drifted perspective of a VirtualClock. It implements Timer.
type View struct {
	vc   *VirtualClock
	rate float64
}

func (v *View) local(ref uint64) uint64 {
	if v.rate == 1 {
		return ref
	}
	return uint64(math.Round(float64(ref) * v.rate))
}

// Now returns the node-local time in microseconds.
func (v *View) Now() uint64 {
	return v.local(v.vc.Now())
}

func (v *View) NewAlarm(name string, cb func(now uint64)) Alarm {
	logger.AssertNotNil(cb)
	return &virtualAlarm{
		name:  name,
		view:  v,
		cb:    cb,
		index: -1,
	}
}

type virtualAlarm struct {
	name     string
	view     *View
	cb       func(now uint64)
	deadline uint64 // reference time
	seq      uint64
	index    int
}

func (a *virtualAlarm) Set(delay uint64) {
	vc := a.view.vc
	vc.mu.Lock()
	defer vc.mu.Unlock()

	a.deadline = vc.now + delay
	if a.view.rate != 1 {
		// expiry is an absolute local time, so drift accumulates across re-arms
		target := float64(a.view.local(vc.now) + delay)
		a.deadline = uint64(math.Ceil(target / a.view.rate))
		if a.deadline < vc.now {
			a.deadline = vc.now
		}
	}
	vc.seq++
	a.seq = vc.seq
	if a.index >= 0 {
		heap.Fix(&vc.q, a.index)
	} else {
		heap.Push(&vc.q, a)
	}
}

func (a *virtualAlarm) Remove() {
	vc := a.view.vc
	vc.mu.Lock()
	defer vc.mu.Unlock()

	if a.index >= 0 {
		heap.Remove(&vc.q, a.index)
	}
}

func (a *virtualAlarm) IsArmed() bool {
	vc := a.view.vc
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return a.index >= 0
}

func (a *virtualAlarm) String() string {
	return a.name
}
