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

package wpan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildAndDissectShort(t *testing.T) {
	f := &MacFrame{
		FrameControl: NewFrameControl(FrameTypeData, false, AddrModeShort, AddrModeShort),
		Seq:          7,
		DstPanId:     0xcafe,
		DstAddrShort: BroadcastAddrShort,
		SrcAddrShort: 0x1234,
		Payload:      []byte{0x41, 1, 2, 3},
	}
	psdu, err := f.Build()
	assert.Nil(t, err)
	assert.Equal(t, []byte{0x41, 0x98, 7, 0xfe, 0xca, 0xff, 0xff, 0x34, 0x12, 0x41, 1, 2, 3}, psdu)

	d, err := Dissect(psdu)
	assert.Nil(t, err)
	assert.Equal(t, FrameTypeData, d.FrameControl.FrameType())
	assert.Equal(t, uint8(7), d.Seq)
	assert.Equal(t, uint16(0xcafe), d.DstPanId)
	assert.Equal(t, uint16(0xcafe), d.SrcPanId)
	assert.Equal(t, uint16(0x1234), d.SrcAddrShort)
	assert.True(t, d.IsBroadcast())
	assert.Equal(t, 9, d.HeaderLength)
	assert.Equal(t, []byte{0x41, 1, 2, 3}, d.Payload)
	assert.Equal(t, []byte{0x12, 0x34}, d.AppendSrcAddr(nil))
}

func TestBuildAndDissectExtended(t *testing.T) {
	f := &MacFrame{
		FrameControl:    NewFrameControl(FrameTypeData, true, AddrModeExtended, AddrModeExtended),
		Seq:             200,
		DstPanId:        0xcafe,
		DstAddrExtended: 0x0102030405060708,
		SrcAddrExtended: 0x1112131415161718,
	}
	assert.Equal(t, 2+1+2+8+8, f.HeaderLen())
	psdu, err := f.Build()
	assert.Nil(t, err)

	d, err := Dissect(psdu)
	assert.Nil(t, err)
	assert.True(t, d.FrameControl.AckRequest())
	assert.Equal(t, f.DstAddrExtended, d.DstAddrExtended)
	assert.Equal(t, f.SrcAddrExtended, d.SrcAddrExtended)
	assert.False(t, d.IsBroadcast())
	assert.Empty(t, d.Payload)
}

func TestDissectMalformed(t *testing.T) {
	_, err := Dissect(nil)
	assert.Equal(t, ErrTruncated, err)

	// data frame announcing short addresses, cut inside the destination address
	_, err = Dissect([]byte{0x41, 0x88, 1, 0xfe, 0xca, 0xff})
	assert.NotNil(t, err)

	// reserved frame type
	_, err = Dissect([]byte{0x07, 0x00, 0x01})
	assert.NotNil(t, err)

	// reserved addressing mode
	_, err = Dissect([]byte{0x01, 0x04, 0x01})
	assert.NotNil(t, err)

	_, err = Dissect(make([]byte, 126))
	assert.NotNil(t, err)
}

func TestBuildTooLong(t *testing.T) {
	f := &MacFrame{
		FrameControl: NewFrameControl(FrameTypeData, false, AddrModeShort, AddrModeShort),
		Payload:      make([]byte, 120),
	}
	_, err := f.Build()
	assert.NotNil(t, err)
}

func TestAckString(t *testing.T) {
	f, err := Dissect([]byte{0x02, 0x00, 0x05})
	assert.Nil(t, err)
	assert.Equal(t, "ACK,FC:0x0002,Seq:5", f.String())
}
