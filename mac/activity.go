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
	"sync"
)

// Activity counts the work queued for a set of MAC loops. A virtual-time simulation waits for it to
// drop to zero before moving the clock, so that every MAC loop has handled what the last alarm raised.
// A nil *Activity is valid and tracks nothing.
type Activity struct {
	mu   sync.Mutex
	cond *sync.Cond
	n    int
}

func NewActivity() *Activity {
	a := &Activity{}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// Add adjusts the amount of outstanding work by delta.
func (a *Activity) Add(delta int) {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.n += delta
	if a.n < 0 {
		a.mu.Unlock()
		panic("mac: negative activity count")
	}
	if a.n == 0 {
		a.cond.Broadcast()
	}
	a.mu.Unlock()
}

// Wait blocks until no work is outstanding.
func (a *Activity) Wait() {
	if a == nil {
		return
	}
	a.mu.Lock()
	for a.n > 0 {
		a.cond.Wait()
	}
	a.mu.Unlock()
}

// Pending returns the amount of outstanding work.
func (a *Activity) Pending() int {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}
