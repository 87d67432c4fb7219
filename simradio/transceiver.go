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

package simradio

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"github.com/openthread/ot-tsch/dissectpkt/wpan"
	"github.com/openthread/ot-tsch/hwtimer"
	"github.com/openthread/ot-tsch/logger"
	"github.com/openthread/ot-tsch/netdev"
	. "github.com/openthread/ot-tsch/types"
)

type phyState uint8

const (
	phyOff phyState = iota
	phySleep
	phyListen
	phyRxBusy
	phyTx
)

// rxOn reports whether the receiver hears the channel, including while it is busy with a frame.
func (s phyState) rxOn() bool {
	return s == phyListen || s == phyRxBusy
}

func (s phyState) active() bool {
	return s == phyListen || s == phyRxBusy || s == phyTx
}

func (s phyState) netdevState() netdev.State {
	switch s {
	case phyOff:
		return netdev.StateOff
	case phySleep:
		return netdev.StateSleep
	case phyListen:
		return netdev.StateIdle
	case phyRxBusy:
		return netdev.StateRx
	default:
		return netdev.StateTx
	}
}

// Counters are the frames a transceiver missed, for diagnostics beyond the link-layer statistics.
type Counters struct {
	Collisions uint32 `json:"collisions"`  // overlapping frames seen while receiving
	Corrupted  uint32 `json:"corrupted"`   // frames lost to a collision
	Lost       uint32 `json:"lost"`        // frames dropped by the medium's loss model
	BadFcs     uint32 `json:"bad_fcs"`
	BufferBusy uint32 `json:"buffer_busy"` // frames dropped because the previous one was not released
	Filtered   uint32 `json:"filtered"`    // frames not addressed to this transceiver
}

// Transceiver is a simulated IEEE 802.15.4 radio implementing netdev.Driver. Events are raised from the
// medium in interrupt context; link statistics are only updated by ISR, in the MAC goroutine.
type Transceiver struct {
	mu     sync.Mutex
	medium *Medium
	node   *RadioNode
	clock  hwtimer.Timer
	cb     netdev.EventCallback

	state    phyState
	channel  ChannelId
	rx       *reception
	detached bool

	shortAddr   [2]byte
	longAddr    [8]byte
	nid         uint16
	promiscuous bool
	rxStartIRQ  bool
	rxEndIRQ    bool
	txEndIRQ    bool
	autoAck     bool
	preloading  bool
	rawMode     bool
	retrans     uint8

	txBuf    []byte
	rxBusy   bool
	counters Counters

	stats       netdev.Stats
	statsDelta  netdev.Stats
	isrPending  bool
	stateSince uint64
}

func newTransceiver(m *Medium, node *RadioNode, clock hwtimer.Timer) *Transceiver {
	t := &Transceiver{
		medium:     m,
		node:       node,
		clock:      clock,
		state:      phyOff,
		stateSince: clock.Now(),
	}
	t.resetLocked()
	return t
}

func (t *Transceiver) resetLocked() {
	t.rx = nil
	t.channel = MinChannelNumber
	t.nid = 0
	t.promiscuous = false
	t.rxStartIRQ = false
	t.rxEndIRQ = true
	t.txEndIRQ = true
	t.autoAck = true
	t.preloading = false
	t.rawMode = false
	t.retrans = 3
	t.txBuf = nil
	t.setStateLocked(phyListen)
}

// Id returns the node id of the transceiver.
func (t *Transceiver) Id() NodeId {
	return t.node.Id
}

// RadioNode returns a copy of the transceiver's physical properties.
func (t *Transceiver) RadioNode() RadioNode {
	t.medium.mu.Lock()
	defer t.medium.mu.Unlock()
	return *t.node
}

// Counters returns a snapshot of the diagnostic counters.
func (t *Transceiver) Counters() Counters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters
}

func (t *Transceiver) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.detached {
		return errors.Wrapf(ErrNoSuchDevice, "node %d", t.node.Id)
	}
	t.resetLocked()
	return nil
}

func (t *Transceiver) SetEventCallback(cb netdev.EventCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cb = cb
}

func (t *Transceiver) Get(opt netdev.Opt, buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch opt {
	case netdev.OptChannel:
		return netdev.PutValue(buf, netdev.EncodeUint16(uint16(t.channel)))
	case netdev.OptAddress:
		return netdev.PutValue(buf, t.shortAddr[:])
	case netdev.OptAddressLong:
		return netdev.PutValue(buf, t.longAddr[:])
	case netdev.OptNID:
		return netdev.PutValue(buf, netdev.EncodeUint16(t.nid))
	case netdev.OptState:
		return netdev.PutValue(buf, []byte{byte(t.state.netdevState())})
	case netdev.OptPromiscuousMode:
		return netdev.PutValue(buf, netdev.EncodeBool(t.promiscuous))
	case netdev.OptRxStartIRQ:
		return netdev.PutValue(buf, netdev.EncodeBool(t.rxStartIRQ))
	case netdev.OptRxEndIRQ:
		return netdev.PutValue(buf, netdev.EncodeBool(t.rxEndIRQ))
	case netdev.OptTxEndIRQ:
		return netdev.PutValue(buf, netdev.EncodeBool(t.txEndIRQ))
	case netdev.OptAutoAck:
		return netdev.PutValue(buf, netdev.EncodeBool(t.autoAck))
	case netdev.OptPreloading:
		return netdev.PutValue(buf, netdev.EncodeBool(t.preloading))
	case netdev.OptRawMode:
		return netdev.PutValue(buf, netdev.EncodeBool(t.rawMode))
	case netdev.OptRetrans:
		return netdev.PutValue(buf, []byte{t.retrans})
	case netdev.OptTxPower:
		return netdev.PutValue(buf, netdev.EncodeUint16(uint16(int16(t.node.TxPower))))
	case netdev.OptMaxPacketSize:
		return netdev.PutValue(buf, netdev.EncodeUint16(MacFrameLenBytes-FcsLenBytes))
	case netdev.OptStats:
		s := t.stats
		active, sleeping := t.timeInStateLocked(t.clock.Now())
		s.TimeActive += active
		s.TimeSleeping += sleeping
		b, _ := s.MarshalBinary()
		return netdev.PutValue(buf, b)
	default:
		return 0, errors.Wrapf(ErrNotSupported, "get %s", opt)
	}
}

func (t *Transceiver) Set(opt netdev.Opt, value []byte) (int, error) {
	if opt == netdev.OptTxPower {
		return t.setTxPower(value)
	}
	t.mu.Lock()

	var err error
	var startTx bool
	switch opt {
	case netdev.OptChannel:
		var ch uint16
		if ch, err = netdev.DecodeUint16(value); err == nil {
			if ChannelId(ch) < MinChannelNumber || ChannelId(ch) > MaxChannelNumber {
				err = errors.Wrapf(ErrInvalid, "channel %d", ch)
			} else if t.channel != ChannelId(ch) {
				t.channel = ChannelId(ch)
				t.abortRxLocked()
			}
		}
	case netdev.OptAddress:
		if len(value) != len(t.shortAddr) {
			err = ErrInvalid
		} else {
			copy(t.shortAddr[:], value)
		}
	case netdev.OptAddressLong:
		if len(value) != len(t.longAddr) {
			err = ErrInvalid
		} else {
			copy(t.longAddr[:], value)
		}
	case netdev.OptNID:
		t.nid, err = netdev.DecodeUint16(value)
	case netdev.OptState:
		if len(value) != 1 {
			err = ErrInvalid
		} else {
			startTx, err = t.setNetdevStateLocked(netdev.State(value[0]))
		}
	case netdev.OptPromiscuousMode:
		t.promiscuous, err = netdev.DecodeBool(value)
	case netdev.OptRxStartIRQ:
		t.rxStartIRQ, err = netdev.DecodeBool(value)
	case netdev.OptRxEndIRQ:
		t.rxEndIRQ, err = netdev.DecodeBool(value)
	case netdev.OptTxEndIRQ:
		t.txEndIRQ, err = netdev.DecodeBool(value)
	case netdev.OptAutoAck:
		t.autoAck, err = netdev.DecodeBool(value)
	case netdev.OptPreloading:
		t.preloading, err = netdev.DecodeBool(value)
	case netdev.OptRawMode:
		t.rawMode, err = netdev.DecodeBool(value)
	case netdev.OptRetrans:
		if len(value) != 1 {
			err = ErrInvalid
		} else {
			t.retrans = value[0]
		}
	default:
		err = errors.Wrapf(ErrNotSupported, "set %s", opt)
	}

	var frame []byte
	var ch ChannelId
	if startTx {
		frame, ch = t.txBuf, t.channel
	}
	t.mu.Unlock()

	if err != nil {
		return 0, err
	}
	if startTx {
		t.medium.transmit(t, ch, frame)
	}
	return len(value), nil
}

// setTxPower changes the transmit power in dBm. The node is shared with the medium, so both locks are held.
func (t *Transceiver) setTxPower(value []byte) (int, error) {
	p, err := netdev.DecodeUint16(value)
	if err != nil {
		return 0, err
	}
	t.medium.mu.Lock()
	t.mu.Lock()
	t.node.TxPower = DbValue(int16(p))
	t.mu.Unlock()
	t.medium.mu.Unlock()
	return len(value), nil
}

// setNetdevStateLocked applies a requested state and returns true if a transmission must be started.
func (t *Transceiver) setNetdevStateLocked(s netdev.State) (bool, error) {
	switch s {
	case netdev.StateOff:
		t.abortRxLocked()
		t.setStateLocked(phyOff)
	case netdev.StateSleep:
		t.abortRxLocked()
		t.setStateLocked(phySleep)
	case netdev.StateIdle, netdev.StateRx:
		if t.state != phyRxBusy {
			t.setStateLocked(phyListen)
		}
	case netdev.StateTx:
		if t.txBuf == nil {
			return false, errors.Wrap(ErrInvalid, "no frame loaded")
		}
		if t.state == phyTx {
			return false, errors.Wrap(ErrInvalid, "transmission in progress")
		}
		t.abortRxLocked()
		t.setStateLocked(phyTx)
		return true, nil
	case netdev.StateReset:
		t.resetLocked()
	default:
		return false, errors.Wrapf(ErrInvalid, "state %d", s)
	}
	return false, nil
}

func (t *Transceiver) abortRxLocked() {
	if t.rx != nil {
		t.rx = nil
		if t.state == phyRxBusy {
			t.setStateLocked(phyListen)
		}
	}
}

func (t *Transceiver) setStateLocked(s phyState) {
	now := t.clock.Now()
	active, sleeping := t.timeInStateLocked(now)
	t.stats.TimeActive += active
	t.stats.TimeSleeping += sleeping
	t.state = s
	t.stateSince = now
}

// timeInStateLocked returns the time spent in the current state so far, as active or sleeping time.
func (t *Transceiver) timeInStateLocked(now uint64) (active, sleeping uint64) {
	elapsed := now - t.stateSince
	if t.state.active() {
		return elapsed, 0
	}
	return 0, elapsed
}

// Send loads the PSDU into the transmit buffer and appends the FCS.
func (t *Transceiver) Send(iovec [][]byte) (int, error) {
	n := 0
	for _, v := range iovec {
		n += len(v)
	}
	if n > MacFrameLenBytes-FcsLenBytes {
		return 0, errors.Wrapf(ErrOverflow, "frame of %d bytes", n)
	}
	frame := make([]byte, 0, n+FcsLenBytes)
	for _, v := range iovec {
		frame = append(frame, v...)
	}
	frame = AppendFcs(frame)

	t.mu.Lock()
	if t.state == phyTx {
		t.mu.Unlock()
		return 0, errors.Wrap(ErrInvalid, "transmission in progress")
	}
	t.txBuf = frame
	startTx := !t.preloading
	if startTx {
		t.abortRxLocked()
		t.setStateLocked(phyTx)
	}
	ch := t.channel
	t.mu.Unlock()

	if startTx {
		t.medium.transmit(t, ch, frame)
	}
	return n, nil
}

// ISR folds the statistics of completed frames into the link statistics.
func (t *Transceiver) ISR() {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := &t.statsDelta
	t.stats.TxUnicastCount += d.TxUnicastCount
	t.stats.TxMcastCount += d.TxMcastCount
	t.stats.TxSuccess += d.TxSuccess
	t.stats.TxFailed += d.TxFailed
	t.stats.TxBytes += d.TxBytes
	t.stats.RxCount += d.RxCount
	t.stats.RxBytes += d.RxBytes
	t.statsDelta = netdev.Stats{}
	t.isrPending = false
}

// raise calls the event callback; t.mu must not be held.
func (t *Transceiver) raise(ev netdev.Event, frame *netdev.RxFrame) {
	t.mu.Lock()
	cb := t.cb
	t.mu.Unlock()
	if cb == nil {
		if frame != nil {
			frame.Release()
		}
		return
	}
	cb(ev, frame)
}

// requestISRLocked returns true if EventISR must be raised.
func (t *Transceiver) requestISRLocked() bool {
	if t.isrPending {
		return false
	}
	t.isrPending = true
	return true
}

func (t *Transceiver) endTx(frame []byte) {
	t.mu.Lock()
	if t.detached || t.state != phyTx {
		t.mu.Unlock()
		return
	}
	t.setStateLocked(phyListen)
	psdu := frame[:len(frame)-FcsLenBytes]
	if f, err := wpan.Dissect(psdu); err == nil && f.FrameControl.DestAddrMode() == wpan.AddrModeShort &&
		f.DstAddrShort == wpan.BroadcastAddrShort {
		t.statsDelta.TxMcastCount++
	} else {
		t.statsDelta.TxUnicastCount++
	}
	t.statsDelta.TxSuccess++
	t.statsDelta.TxBytes += uint32(len(psdu))
	isr := t.requestISRLocked()
	notify := t.txEndIRQ
	t.mu.Unlock()

	if isr {
		t.raise(netdev.EventISR, nil)
	}
	if notify {
		t.raise(netdev.EventTxComplete, nil)
	}
}

func (t *Transceiver) receive(frame []byte, rssi DbValue) {
	psdu, ok := CheckFcs(frame)

	t.mu.Lock()
	switch {
	case !ok:
		t.counters.BadFcs++
		t.mu.Unlock()
		return
	case t.rxBusy:
		t.counters.BufferBusy++
		t.mu.Unlock()
		return
	case !t.promiscuous && !t.acceptsLocked(psdu):
		t.counters.Filtered++
		t.mu.Unlock()
		return
	case !t.rxEndIRQ:
		t.mu.Unlock()
		return
	}
	t.rxBusy = true
	t.statsDelta.RxCount++
	t.statsDelta.RxBytes += uint32(len(psdu))
	isr := t.requestISRLocked()
	data := append([]byte(nil), psdu...)
	rx := netdev.NewRxFrame(data, lqiOf(rssi, t.node.RxSensitivity), clipRssi(rssi), t.releaseRxBuffer)
	rx.Channel = uint8(t.channel)
	t.mu.Unlock()

	logger.NodeLogf(t.node.Id, logger.MicroLevel, "simradio: rx %d bytes rssi %d", len(data), rx.Rssi)
	if isr {
		t.raise(netdev.EventISR, nil)
	}
	t.raise(netdev.EventRxComplete, rx)
}

func (t *Transceiver) releaseRxBuffer() {
	t.mu.Lock()
	t.rxBusy = false
	t.mu.Unlock()
}

// acceptsLocked is the hardware address filter.
func (t *Transceiver) acceptsLocked(psdu []byte) bool {
	f, err := wpan.Dissect(psdu)
	if err != nil {
		return false
	}
	fc := f.FrameControl
	if fc.HasDestPanIdField() && f.DstPanId != wpan.BroadcastPanId && f.DstPanId != t.nid {
		return false
	}
	switch fc.DestAddrMode() {
	case wpan.AddrModeShort:
		return f.DstAddrShort == wpan.BroadcastAddrShort ||
			f.DstAddrShort == binary.BigEndian.Uint16(t.shortAddr[:])
	case wpan.AddrModeExtended:
		return f.DstAddrExtended == binary.BigEndian.Uint64(t.longAddr[:])
	default:
		return fc.FrameType() == wpan.FrameTypeBeacon
	}
}
