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

// Package netreg hands received frames to the upper-layer consumers registered for their network type.
package netreg

import (
	"sync"
)

// NetType is the protocol type of a packet's payload.
type NetType uint8

const (
	NetTypeUndef NetType = iota
	NetTypeSixLowPan
	NetTypeIPv6
)

func (t NetType) String() string {
	switch t {
	case NetTypeSixLowPan:
		return "6lo"
	case NetTypeIPv6:
		return "ipv6"
	default:
		return "undef"
	}
}

// 6LoWPAN dispatch values.
const (
	DispatchIPv6      = 0x41
	DispatchIPHC      = 0x60
	DispatchIPHCMask  = 0xe0
	DispatchFrag1     = 0xc0
	DispatchFragN     = 0xe0
	DispatchFragMask  = 0xf8
	DispatchNALPMask  = 0xc0
	DispatchNALPValue = 0x00
)

// TypeOf classifies a MAC payload by its 6LoWPAN dispatch byte.
func TypeOf(payload []byte) NetType {
	if len(payload) == 0 {
		return NetTypeUndef
	}
	d := payload[0]
	switch {
	case d&DispatchNALPMask == DispatchNALPValue:
		return NetTypeUndef
	case d == DispatchIPv6,
		d&DispatchIPHCMask == DispatchIPHC,
		d&DispatchFragMask == DispatchFrag1,
		d&DispatchFragMask == DispatchFragN:
		return NetTypeSixLowPan
	default:
		return NetTypeUndef
	}
}

// Packet is a received frame on its way upstream. Whoever ends up owning it calls Release.
type Packet struct {
	Type    NetType
	Data    []byte // MAC payload
	Src     []byte // MAC source address as carried in the header
	Lqi     uint8
	Rssi    int8
	release func()
	once    sync.Once
}

func NewPacket(t NetType, data []byte, release func()) *Packet {
	return &Packet{Type: t, Data: data, release: release}
}

// Release gives the packet buffer back. Safe to call more than once.
func (p *Packet) Release() {
	p.once.Do(func() {
		if p.release != nil {
			p.release()
		}
	})
}

// Consumer receives dispatched packets, in interrupt context. A packet delivered to several consumers is
// shared; consumers that keep it must copy Data. The packet is released once all consumers returned.
type Consumer func(pkt *Packet)

// Registry maps network types to consumers.
type Registry struct {
	mu        sync.RWMutex
	consumers map[NetType][]*entry
	nextId    int
}

type entry struct {
	id int
	cb Consumer
}

// Handle identifies a registration.
type Handle struct {
	t  NetType
	id int
}

func NewRegistry() *Registry {
	return &Registry{
		consumers: map[NetType][]*entry{},
	}
}

// Register adds a consumer for packets of type t.
func (r *Registry) Register(t NetType, cb Consumer) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextId++
	r.consumers[t] = append(r.consumers[t], &entry{id: r.nextId, cb: cb})
	return Handle{t: t, id: r.nextId}
}

// Unregister removes a consumer.
func (r *Registry) Unregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.consumers[h.t]
	for i, e := range list {
		if e.id == h.id {
			r.consumers[h.t] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// NumConsumers returns the number of consumers registered for t.
func (r *Registry) NumConsumers(t NetType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.consumers[t])
}

// Dispatch delivers pkt to every consumer of its type and then releases it. Returns false if there was no
// consumer.
func (r *Registry) Dispatch(pkt *Packet) bool {
	r.mu.RLock()
	list := r.consumers[pkt.Type]
	cbs := make([]Consumer, len(list))
	for i, e := range list {
		cbs[i] = e.cb
	}
	r.mu.RUnlock()

	defer pkt.Release()
	for _, cb := range cbs {
		cb(pkt)
	}
	return len(cbs) > 0
}
