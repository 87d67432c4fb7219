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

package pcap

import (
	"context"
	"sync/atomic"

	"github.com/openthread/ot-tsch/logger"
	. "github.com/openthread/ot-tsch/types"
)

// Capture feeds frames from the radio medium to a Writer through its own goroutine, so the medium never
// waits for file I/O. Frames arriving while the queue is full are counted and dropped.
type Capture struct {
	pw      *Writer
	ch      chan Frame
	dropped atomic.Uint32
	written atomic.Int64
	done    chan struct{}
}

func NewCapture(pw *Writer, depth int) *Capture {
	return &Capture{
		pw:   pw,
		ch:   make(chan Frame, depth),
		done: make(chan struct{}),
	}
}

// Add queues a frame. Its signature matches the medium's capture hook.
func (c *Capture) Add(timestamp uint64, channel ChannelId, frame []byte) {
	f := Frame{
		Timestamp: timestamp,
		Data:      append([]byte(nil), frame...),
		Channel:   channel,
	}
	select {
	case c.ch <- f:
	default:
		c.dropped.Add(1)
	}
}

// Run writes queued frames until ctx is done; remaining frames are written before the file is closed.
func (c *Capture) Run(ctx context.Context) {
	defer close(c.done)
	defer func() {
		logger.PanicIfError(c.pw.Sync())
		logger.PanicIfError(c.pw.Close())
	}()

	for {
		select {
		case f := <-c.ch:
			c.write(f)
		case <-ctx.Done():
			for {
				select {
				case f := <-c.ch:
					c.write(f)
				default:
					return
				}
			}
		}
	}
}

func (c *Capture) write(f Frame) {
	if err := c.pw.WriteFrame(f); err != nil {
		logger.Errorf("pcap: %v", err)
		return
	}
	c.written.Add(1)
}

// Wait blocks until Run has returned.
func (c *Capture) Wait() {
	<-c.done
}

func (c *Capture) Dropped() uint32 {
	return c.dropped.Load()
}

// Frames returns the number of frames written so far.
func (c *Capture) Frames() int {
	return int(c.written.Load())
}
