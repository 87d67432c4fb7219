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

// Package netdev defines the capability a radio driver offers to the MAC layer: an option get/set
// interface, frame transmission from an I/O vector, and an event callback raised in interrupt context.
package netdev

// Event is a driver event delivered through the EventCallback.
type Event uint8

const (
	// EventISR asks the MAC goroutine to call Driver.ISR for deferred interrupt processing.
	EventISR Event = iota
	EventRxStarted
	EventRxComplete
	EventTxComplete
)

func (e Event) String() string {
	switch e {
	case EventISR:
		return "ISR"
	case EventRxStarted:
		return "RxStarted"
	case EventRxComplete:
		return "RxComplete"
	case EventTxComplete:
		return "TxComplete"
	default:
		return "Unknown"
	}
}

// EventCallback receives driver events. frame is only set for EventRxComplete; the receiver owns it
// and must Release it.
type EventCallback func(ev Event, frame *RxFrame)

// Driver is implemented by radio transceivers.
type Driver interface {
	Init() error
	// Get copies the value of opt into buf and returns its length.
	Get(opt Opt, buf []byte) (int, error)
	// Set applies value to opt and returns the number of bytes used.
	Set(opt Opt, value []byte) (int, error)
	// Send loads the concatenated I/O vector as PSDU (without FCS) into the transmit buffer. With
	// preloading enabled transmission starts on a later state change to StateTx, otherwise at once.
	Send(iovec [][]byte) (int, error)
	// ISR runs deferred interrupt work in the MAC goroutine.
	ISR()
	SetEventCallback(cb EventCallback)
}

// PllLocker is implemented by drivers that report their transmit PLL lock.
type PllLocker interface {
	PllLocked() bool
}

// RxReadier is implemented by drivers that report when the receiver is ready after enabling it.
type RxReadier interface {
	RxReady() bool
}

// RxFrame is a received frame held in a driver buffer.
type RxFrame struct {
	Data    []byte // PSDU without FCS
	Lqi     uint8
	Rssi    int8
	Channel uint8
	release func()
}

// NewRxFrame wraps data; release is called once when the frame's buffer is given back.
func NewRxFrame(data []byte, lqi uint8, rssi int8, release func()) *RxFrame {
	return &RxFrame{
		Data:    data,
		Lqi:     lqi,
		Rssi:    rssi,
		release: release,
	}
}

// Release gives the buffer back to the driver; calling it again has no effect.
func (f *RxFrame) Release() {
	if f.release != nil {
		f.release()
		f.release = nil
	}
	f.Data = nil
}

// IsReleased returns true if the frame's buffer was given back.
func (f *RxFrame) IsReleased() bool {
	return f.release == nil && f.Data == nil
}
