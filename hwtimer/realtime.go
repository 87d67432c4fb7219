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
	"sync"
	"time"
)

// Realtime is a Timer backed by the host's monotonic clock. Alarm callbacks run on timer goroutines.
type Realtime struct {
	start time.Time
}

func NewRealtime() *Realtime {
	return &Realtime{start: time.Now()}
}

func (rt *Realtime) Now() uint64 {
	return uint64(time.Since(rt.start).Microseconds())
}

func (rt *Realtime) NewAlarm(name string, cb func(now uint64)) Alarm {
	return &realtimeAlarm{rt: rt, name: name, cb: cb}
}

type realtimeAlarm struct {
	rt   *Realtime
	name string
	cb   func(now uint64)

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
	armed bool
}

func (a *realtimeAlarm) Set(delay uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.gen++
	gen := a.gen
	a.armed = true
	a.timer = time.AfterFunc(time.Duration(delay)*time.Microsecond, func() {
		a.mu.Lock()
		if gen != a.gen || !a.armed {
			a.mu.Unlock()
			return
		}
		a.armed = false
		a.mu.Unlock()
		a.cb(a.rt.Now())
	})
}

func (a *realtimeAlarm) Remove() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.gen++
	a.armed = false
}

func (a *realtimeAlarm) IsArmed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.armed
}
