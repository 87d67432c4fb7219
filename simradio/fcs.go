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

// Kermit computes the CRC-16/CCITT (KERMIT variant) of data as used for the IEEE 802.15.4 FCS. The result
// is returned with the first transmitted byte in the high byte.
func Kermit(data []byte) uint16 {
	return KermitUpdate(0, data)
}

// KermitUpdate continues a Kermit computation.
func KermitUpdate(crc uint16, data []byte) uint16 {
	c := crc<<8 | crc>>8
	for _, b := range data {
		c ^= uint16(b)
		for i := 0; i < 8; i++ {
			if c&1 != 0 {
				c = c>>1 ^ 0x8408
			} else {
				c >>= 1
			}
		}
	}
	return c<<8 | c>>8
}

// AppendFcs appends the FCS of psdu to it.
func AppendFcs(psdu []byte) []byte {
	fcs := Kermit(psdu)
	return append(psdu, byte(fcs>>8), byte(fcs))
}

// CheckFcs verifies the trailing FCS of frame and returns the frame without it.
func CheckFcs(frame []byte) ([]byte, bool) {
	if len(frame) < 2 {
		return nil, false
	}
	n := len(frame) - 2
	fcs := Kermit(frame[:n])
	return frame[:n], frame[n] == byte(fcs>>8) && frame[n+1] == byte(fcs)
}
