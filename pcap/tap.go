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
	"encoding/binary"
	"math"
)

// wpan-tap / DLT IEEE802 15 4 TAP specification is at
// https://gitlab.com/exegin/ieee802-15-4-tap
const (
	dltIeee802154Tap = 283

	tlvFcsType           = 0
	tlvRss               = 1
	tlvChannelAssignment = 3
	tlvSofTimestamp      = 5

	fcsType16Bit = 1
	channelPage0 = 0
)

// tapHeader encodes the wpan-tap header of f. TLV values are padded to 4 bytes.
func tapHeader(f Frame) []byte {
	hdr := []byte{0, 0, 0, 0} // version, reserved, length
	hdr = appendTlv(hdr, tlvFcsType, []byte{fcsType16Bit})
	hdr = appendTlv(hdr, tlvRss, binary.LittleEndian.AppendUint32(nil, math.Float32bits(f.Rssi)))
	hdr = appendTlv(hdr, tlvChannelAssignment, []byte{byte(f.Channel), byte(f.Channel >> 8), channelPage0})
	hdr = appendTlv(hdr, tlvSofTimestamp, binary.LittleEndian.AppendUint64(nil, f.Timestamp*1000))
	binary.LittleEndian.PutUint16(hdr[2:], uint16(len(hdr)))
	return hdr
}

func appendTlv(buf []byte, tlvType uint16, value []byte) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, tlvType)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(value)))
	buf = append(buf, value...)
	for i := len(value); i%4 != 0; i++ {
		buf = append(buf, 0)
	}
	return buf
}
