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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/openthread/ot-tsch/types"
)

func TestVirtualAlarmsFireInOrder(t *testing.T) {
	vc := NewVirtualClock()
	var fired []string
	var times []uint64
	mk := func(name string) Alarm {
		return vc.NewAlarm(name, func(now uint64) {
			fired = append(fired, name)
			times = append(times, now)
		})
	}
	a, b, c := mk("a"), mk("b"), mk("c")
	c.Set(300)
	a.Set(100)
	b.Set(100)

	assert.Equal(t, uint64(100), vc.NextTimestamp())
	assert.Equal(t, 3, vc.Pending())

	vc.AdvanceTo(250)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, []uint64{100, 100}, times)
	assert.Equal(t, uint64(250), vc.Now())
	assert.True(t, c.IsArmed())
	assert.False(t, a.IsArmed())

	vc.Advance(100)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, uint64(350), vc.Now())
	assert.Equal(t, Ever, vc.NextTimestamp())
}

func TestVirtualAlarmRearmAndRemove(t *testing.T) {
	vc := NewVirtualClock()
	count := 0
	a := vc.NewAlarm("a", func(now uint64) { count++ })
	a.Set(100)
	a.Set(500) // replaces the pending expiry
	vc.AdvanceTo(200)
	assert.Equal(t, 0, count)
	a.Remove()
	a.Remove()
	vc.AdvanceTo(1000)
	assert.Equal(t, 0, count)
	assert.False(t, a.IsArmed())
}

func TestVirtualPeriodicRearmFromCallback(t *testing.T) {
	vc := NewVirtualClock()
	var ticks []uint64
	var a Alarm
	a = vc.NewAlarm("period", func(now uint64) {
		ticks = append(ticks, now)
		a.Set(1000)
	})
	a.Set(1000)
	vc.AdvanceTo(3500)
	assert.Equal(t, []uint64{1000, 2000, 3000}, ticks)
}

func TestVirtualStepAndSettle(t *testing.T) {
	vc := NewVirtualClock()
	settled := 0
	vc.SetSettleFunc(func() { settled++ })
	a := vc.NewAlarm("a", func(now uint64) {})
	assert.False(t, vc.Step())
	a.Set(42)
	assert.True(t, vc.Step())
	assert.Equal(t, uint64(42), vc.Now())
	assert.Equal(t, 1, settled)
}

func TestDriftedView(t *testing.T) {
	vc := NewVirtualClock()
	fast := vc.View(100) // +100 ppm
	slow := vc.View(-100)

	var fastAt, slowAt uint64
	fast.NewAlarm("fast", func(now uint64) { fastAt = now }).Set(1000000)
	slow.NewAlarm("slow", func(now uint64) { slowAt = now }).Set(1000000)

	vc.AdvanceTo(2000000)
	assert.InDelta(t, 1000000, float64(fastAt), 2)
	assert.InDelta(t, 1000000, float64(slowAt), 2)
	assert.Equal(t, uint64(2000200), fast.Now())
	assert.Equal(t, uint64(1999800), slow.Now())
}

func TestRealtimeAlarm(t *testing.T) {
	rt := NewRealtime()
	fired := make(chan uint64, 1)
	a := rt.NewAlarm("rt", func(now uint64) { fired <- now })
	a.Set(1000)
	assert.True(t, a.IsArmed())
	select {
	case now := <-fired:
		assert.True(t, now >= 1000)
	case <-time.After(time.Second):
		t.Fatal("alarm did not fire")
	}
	assert.False(t, a.IsArmed())

	a.Set(50000)
	a.Remove()
	select {
	case <-fired:
		t.Fatal("removed alarm fired")
	case <-time.After(100 * time.Millisecond):
	}
}
