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

// Package irq emulates the interrupt-enable flag of a single node's CPU. Code running in thread context
// masks interrupts around short critical sections; code running in interrupt context does the same
// before touching state shared with the thread.
package irq

import (
	"sync"
)

// Mask is the interrupt mask of one node. The zero value is ready to use (interrupts enabled).
type Mask struct {
	mu sync.Mutex
}

// Guard represents one masked region. Restore re-enables interrupts; calling it again is a no-op.
type Guard struct {
	m        *Mask
	restored bool
}

// Disable masks interrupts and returns the guard that restores them.
// Critical sections never block, sleep or call out to collaborators.
func (m *Mask) Disable() *Guard {
	m.mu.Lock()
	return &Guard{m: m}
}

// Restore re-enables interrupts, once.
func (g *Guard) Restore() {
	if g.restored {
		return
	}
	g.restored = true
	g.m.mu.Unlock()
}

// Do runs f with interrupts masked.
func (m *Mask) Do(f func()) {
	g := m.Disable()
	defer g.Restore()
	f()
}
