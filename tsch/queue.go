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

package tsch

import (
	"github.com/pkg/errors"

	. "github.com/openthread/ot-tsch/types"
)

// ErrQueueFull is returned when the transmit queue has no free entry.
var ErrQueueFull = errors.Wrap(ErrNoBuffer, "tx queue full")

type txEntry struct {
	psdu       []byte
	broadcast  bool
	enqueuedAt uint64 // ASN
}

// txQueue is a bounded FIFO of frames waiting for a transmit cell.
type txQueue struct {
	entries []txEntry
	size    int
}

func newTxQueue(size int) *txQueue {
	return &txQueue{
		entries: make([]txEntry, 0, size),
		size:    size,
	}
}

func (q *txQueue) push(e txEntry) error {
	if len(q.entries) >= q.size {
		return ErrQueueFull
	}
	q.entries = append(q.entries, e)
	return nil
}

func (q *txQueue) peek() (txEntry, bool) {
	if len(q.entries) == 0 {
		return txEntry{}, false
	}
	return q.entries[0], true
}

func (q *txQueue) pop() {
	if len(q.entries) == 0 {
		return
	}
	q.entries[0] = txEntry{}
	q.entries = q.entries[1:]
}

func (q *txQueue) len() int {
	return len(q.entries)
}
