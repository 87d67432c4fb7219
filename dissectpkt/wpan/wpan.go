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

// Package wpan dissects and builds IEEE 802.15.4 MAC headers.
package wpan

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/openthread/ot-tsch/types"
)

type FrameType = uint16

const (
	FrameTypeBeacon  FrameType = 0
	FrameTypeData    FrameType = 1
	FrameTypeAck     FrameType = 2
	FrameTypeCommand FrameType = 3
)

// Values for both Src and Dst addressing modes, Table 7-3, 802.15.4-2015.
const (
	AddrModeNone     = 0
	AddrModeReserved = 1
	AddrModeShort    = 2
	AddrModeExtended = 3
)

const (
	FrameVersion2003 = 0
	FrameVersion2006 = 1
	FrameVersion2015 = 2
)

const (
	BroadcastPanId     uint16 = 0xffff
	BroadcastAddrShort uint16 = 0xffff
)

var ErrTruncated = errors.New("frame truncated")

type FrameControl uint16

func (fc FrameControl) String() string {
	return fmt.Sprintf("0x%04x", uint16(fc))
}

func (fc FrameControl) FrameType() FrameType {
	return FrameType(fc & 0x0007)
}

func (fc FrameControl) SecurityEnabled() bool {
	return (fc & 0x0008) != 0
}

func (fc FrameControl) FramePending() bool {
	return (fc & 0x0010) != 0
}

func (fc FrameControl) AckRequest() bool {
	return (fc & 0x0020) != 0
}

func (fc FrameControl) PanidCompression() bool {
	return (fc & 0x0040) != 0
}

func (fc FrameControl) SequenceNumberSuppression() bool {
	return (fc & 0x0100) != 0
}

func (fc FrameControl) IEPresent() bool {
	return (fc & 0x0200) != 0
}

func (fc FrameControl) DestAddrMode() uint16 {
	return uint16((fc & 0x0c00) >> 10)
}

func (fc FrameControl) SourceAddrMode() uint16 {
	return uint16((fc & 0xc000) >> 14)
}

func (fc FrameControl) FrameVersion() uint16 {
	return uint16((fc & 0x3000) >> 12)
}

// NewFrameControl composes a frame control field; PAN ID compression is set when both addresses are present.
func NewFrameControl(ft FrameType, ackRequest bool, dstMode, srcMode uint16) FrameControl {
	fc := FrameControl(ft&0x7) | FrameControl(dstMode&0x3)<<10 | FrameControl(srcMode&0x3)<<14 |
		FrameControl(FrameVersion2006)<<12
	if ackRequest {
		fc |= 0x0020
	}
	if dstMode != AddrModeNone && srcMode != AddrModeNone {
		fc |= 0x0040
	}
	return fc
}

func (fc *FrameControl) Dissect(bytes []byte) {
	*fc = FrameControl(binary.LittleEndian.Uint16(bytes))
}

func (fc *FrameControl) HasDestPanIdField() bool {
	if fc.FrameVersion() <= 1 {
		return fc.DestAddrMode() != AddrModeNone
	}
	dam := fc.DestAddrMode()
	sam := fc.SourceAddrMode()
	if dam != AddrModeNone && sam != AddrModeNone {
		return true
	}
	pc := fc.PanidCompression()
	if dam == AddrModeExtended && sam == AddrModeExtended {
		return !pc
	}
	if sam == AddrModeNone && dam != AddrModeNone && !pc {
		return true
	}
	if sam == AddrModeNone && dam == AddrModeNone && pc {
		return true
	}
	return false
}

func (fc *FrameControl) HasSourcePanIdField() bool {
	dam := fc.DestAddrMode()
	sam := fc.SourceAddrMode()
	pc := fc.PanidCompression()
	if fc.FrameVersion() <= 1 {
		if sam != AddrModeNone && !pc {
			return true
		}
		return false
	}
	if dam == AddrModeExtended && sam == AddrModeExtended && !pc {
		return false
	}
	if sam == AddrModeNone {
		return false
	}
	return !pc
}

func addrLen(mode uint16) int {
	switch mode {
	case AddrModeShort:
		return 2
	case AddrModeExtended:
		return 8
	default:
		return 0
	}
}

type MacFrame struct {
	FrameControl    FrameControl
	Seq             uint8
	DstPanId        uint16
	SrcPanId        uint16
	DstAddrShort    uint16
	SrcAddrShort    uint16
	DstAddrExtended uint64
	SrcAddrExtended uint64
	HeaderLength    int
	Payload         []byte
}

func (f *MacFrame) String() string {
	if f.FrameControl.FrameType() == FrameTypeAck {
		return fmt.Sprintf("ACK,FC:%s,Seq:%d", f.FrameControl, f.Seq)
	}

	return fmt.Sprintf("MAC,FC:%s,Seq:%d,Src:%s,Dst:%s,Len:%d", f.FrameControl, f.Seq,
		formatAddr(f.FrameControl.SourceAddrMode(), f.SrcAddrShort, f.SrcAddrExtended),
		formatAddr(f.FrameControl.DestAddrMode(), f.DstAddrShort, f.DstAddrExtended), len(f.Payload))
}

func formatAddr(mode uint16, short uint16, ext uint64) string {
	switch mode {
	case AddrModeShort:
		return fmt.Sprintf("%04x", short)
	case AddrModeExtended:
		return fmt.Sprintf("%016x", ext)
	default:
		return "-"
	}
}

// IsBroadcast returns true if the frame is addressed to the broadcast short address.
func (f *MacFrame) IsBroadcast() bool {
	return f.FrameControl.DestAddrMode() == AddrModeShort && f.DstAddrShort == BroadcastAddrShort
}

// Dissect parses the MAC header of a PSDU (without FCS). Truncated headers, reserved addressing modes
// and unsupported frame types are errors.
func Dissect(data []byte) (*MacFrame, error) {
	if len(data) < 2 {
		return nil, ErrTruncated
	}
	if len(data) > types.MacFrameLenBytes-types.FcsLenBytes {
		return nil, errors.Errorf("frame too long: %d bytes", len(data))
	}
	frame := &MacFrame{}
	frame.FrameControl.Dissect(data[0:2])
	fc := frame.FrameControl
	if fc.FrameType() > FrameTypeCommand {
		return nil, errors.Errorf("unsupported frame type %d", fc.FrameType())
	}
	if fc.DestAddrMode() == AddrModeReserved || fc.SourceAddrMode() == AddrModeReserved {
		return nil, errors.Errorf("reserved addressing mode, FC %s", fc)
	}

	need := 2
	if !fc.SequenceNumberSuppression() {
		need++
	}
	if fc.HasDestPanIdField() {
		need += 2
	}
	need += addrLen(fc.DestAddrMode())
	if fc.HasSourcePanIdField() {
		need += 2
	}
	need += addrLen(fc.SourceAddrMode())
	if len(data) < need {
		return nil, errors.Wrapf(ErrTruncated, "need %d header bytes, have %d", need, len(data))
	}

	n := 2
	if !fc.SequenceNumberSuppression() {
		frame.Seq = data[n]
		n += 1
	}
	if fc.HasDestPanIdField() {
		frame.DstPanId = binary.LittleEndian.Uint16(data[n : n+2])
		n += 2
	}

	switch fc.DestAddrMode() {
	case AddrModeExtended:
		frame.DstAddrExtended = binary.LittleEndian.Uint64(data[n : n+8])
		n += 8
	case AddrModeShort:
		frame.DstAddrShort = binary.LittleEndian.Uint16(data[n : n+2])
		n += 2
	}

	if fc.HasSourcePanIdField() {
		frame.SrcPanId = binary.LittleEndian.Uint16(data[n : n+2])
		n += 2
	} else {
		frame.SrcPanId = frame.DstPanId
	}

	switch fc.SourceAddrMode() {
	case AddrModeExtended:
		frame.SrcAddrExtended = binary.LittleEndian.Uint64(data[n : n+8])
		n += 8
	case AddrModeShort:
		frame.SrcAddrShort = binary.LittleEndian.Uint16(data[n : n+2])
		n += 2
	}

	frame.HeaderLength = n
	frame.Payload = data[n:]
	return frame, nil
}

// HeaderLen returns the length of the MAC header Build writes for the frame's frame control.
func (f *MacFrame) HeaderLen() int {
	fc := f.FrameControl
	n := 2
	if !fc.SequenceNumberSuppression() {
		n++
	}
	if fc.HasDestPanIdField() {
		n += 2
	}
	n += addrLen(fc.DestAddrMode())
	if fc.HasSourcePanIdField() {
		n += 2
	}
	n += addrLen(fc.SourceAddrMode())
	return n
}

// AppendHeader appends the encoded MAC header to buf.
func (f *MacFrame) AppendHeader(buf []byte) []byte {
	fc := f.FrameControl
	buf = binary.LittleEndian.AppendUint16(buf, uint16(fc))
	if !fc.SequenceNumberSuppression() {
		buf = append(buf, f.Seq)
	}
	if fc.HasDestPanIdField() {
		buf = binary.LittleEndian.AppendUint16(buf, f.DstPanId)
	}
	switch fc.DestAddrMode() {
	case AddrModeExtended:
		buf = binary.LittleEndian.AppendUint64(buf, f.DstAddrExtended)
	case AddrModeShort:
		buf = binary.LittleEndian.AppendUint16(buf, f.DstAddrShort)
	}
	if fc.HasSourcePanIdField() {
		buf = binary.LittleEndian.AppendUint16(buf, f.SrcPanId)
	}
	switch fc.SourceAddrMode() {
	case AddrModeExtended:
		buf = binary.LittleEndian.AppendUint64(buf, f.SrcAddrExtended)
	case AddrModeShort:
		buf = binary.LittleEndian.AppendUint16(buf, f.SrcAddrShort)
	}
	return buf
}

// Build encodes header and payload into a PSDU without FCS.
func (f *MacFrame) Build() ([]byte, error) {
	n := f.HeaderLen() + len(f.Payload)
	if n > types.MacFrameLenBytes-types.FcsLenBytes {
		return nil, errors.Errorf("frame too long: %d bytes", n)
	}
	buf := make([]byte, 0, n)
	buf = f.AppendHeader(buf)
	return append(buf, f.Payload...), nil
}

// AppendSrcAddr appends the source address in network byte order (2 or 8 bytes, nothing if absent).
func (f *MacFrame) AppendSrcAddr(buf []byte) []byte {
	switch f.FrameControl.SourceAddrMode() {
	case AddrModeExtended:
		return binary.BigEndian.AppendUint64(buf, f.SrcAddrExtended)
	case AddrModeShort:
		return binary.BigEndian.AppendUint16(buf, f.SrcAddrShort)
	default:
		return buf
	}
}
