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

// Package scheduler implements the MAC task list: a fixed pool of deferred callbacks ordered by priority,
// filled from interrupt context and drained by the MAC goroutine.
package scheduler

import (
	"github.com/openthread/ot-tsch/irq"
	"github.com/openthread/ot-tsch/logger"
)

// Priority of a task; smaller is more urgent.
type Priority uint8

const (
	PrioMax        Priority = 0
	PrioSlotStart  Priority = 1
	PrioRadioEvent Priority = 2
	PrioTxQueue    Priority = 3
	PrioUpper      Priority = 4
	PrioMin        Priority = 255
)

// TaskListDepth is the default number of task slots.
const TaskListDepth = 10

const noTask = -1

type task struct {
	cb   func()
	prio Priority
	next int
}

// Scheduler is a priority-ordered task list backed by a fixed arena with an explicit free list.
// Every task index is in exactly one of the two lists, or is running.
type Scheduler struct {
	mask  *irq.Mask
	wake  func()
	tasks []task
	head  int
	free  int
	len   int
	max   int
}

// New creates a scheduler with depth task slots, guarded by the node's interrupt mask. wake is called
// (outside the critical section) every time a task was queued; it must not block.
func New(mask *irq.Mask, depth int, wake func()) *Scheduler {
	logger.AssertTrue(depth > 0)
	s := &Scheduler{
		mask:  mask,
		wake:  wake,
		tasks: make([]task, depth),
	}
	s.reset()
	return s
}

func (s *Scheduler) reset() {
	s.head = noTask
	for i := range s.tasks {
		s.tasks[i] = task{next: i + 1}
	}
	s.tasks[len(s.tasks)-1].next = noTask
	s.free = 0
	s.len = 0
}

// Push queues cb with the given priority. It is placed before the first queued task whose priority
// is equal or lower in urgency, so equal priorities run last-in first-out. Running out of slots
// is fatal.
func (s *Scheduler) Push(cb func(), prio Priority) {
	logger.AssertNotNil(cb)

	g := s.mask.Disable()
	defer g.Restore()

	idx := s.free
	if idx == noTask {
		depth := len(s.tasks)
		g.Restore()
		logger.Panicf("scheduler: task list full (%d tasks queued), cannot push task with priority %d", depth, prio)
		return
	}
	s.free = s.tasks[idx].next
	s.tasks[idx] = task{cb: cb, prio: prio, next: noTask}

	prev := noTask
	cur := s.head
	for cur != noTask && s.tasks[cur].prio < prio {
		prev = cur
		cur = s.tasks[cur].next
	}
	s.tasks[idx].next = cur
	if prev == noTask {
		s.head = idx
	} else {
		s.tasks[prev].next = idx
	}

	s.len++
	if s.len > s.max {
		s.max = s.len
	}
	g.Restore()

	if s.wake != nil {
		s.wake()
	}
}

// Drain runs queued tasks in order until the list is empty, including tasks queued by the callbacks
// themselves. Must only be called from the MAC goroutine.
func (s *Scheduler) Drain() {
	for {
		idx, cb := s.pop()
		if idx == noTask {
			return
		}
		cb()
		s.release(idx)
	}
}

func (s *Scheduler) pop() (int, func()) {
	g := s.mask.Disable()
	defer g.Restore()

	idx := s.head
	if idx == noTask {
		return noTask, nil
	}
	s.head = s.tasks[idx].next
	s.tasks[idx].next = noTask
	return idx, s.tasks[idx].cb
}

func (s *Scheduler) release(idx int) {
	g := s.mask.Disable()
	defer g.Restore()

	s.tasks[idx] = task{next: s.free}
	s.free = idx
	s.len--
}

// Len returns the number of tasks that are queued or running.
func (s *Scheduler) Len() int {
	g := s.mask.Disable()
	defer g.Restore()
	return s.len
}

// MaxLen returns the highest number of tasks ever queued or running at once.
func (s *Scheduler) MaxLen() int {
	g := s.mask.Disable()
	defer g.Restore()
	return s.max
}

func (s *Scheduler) Capacity() int {
	return len(s.tasks)
}
