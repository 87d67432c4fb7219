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

package netdev

import (
	"encoding/binary"

	. "github.com/openthread/ot-tsch/types"
)

// Stats are the link-layer packet statistics of a device.
type Stats struct {
	TxUnicastCount uint32 `json:"tx_unicast_count"`
	TxMcastCount   uint32 `json:"tx_mcast_count"` // including broadcast
	TxSuccess      uint32 `json:"tx_success"`
	TxFailed       uint32 `json:"tx_failed"`
	TxBytes        uint32 `json:"tx_bytes"`
	RxCount        uint32 `json:"rx_count"`
	RxBytes        uint32 `json:"rx_bytes"`
	TimeActive     uint64 `json:"time_active"`
	TimeSleeping   uint64 `json:"time_sleeping"`
}

// StatsLen is the encoded size of Stats as returned for OptStats.
const StatsLen = 7*4 + 2*8

func (s *Stats) MarshalBinary() ([]byte, error) {
	b := make([]byte, StatsLen)
	le := binary.LittleEndian
	le.PutUint32(b[0:], s.TxUnicastCount)
	le.PutUint32(b[4:], s.TxMcastCount)
	le.PutUint32(b[8:], s.TxSuccess)
	le.PutUint32(b[12:], s.TxFailed)
	le.PutUint32(b[16:], s.TxBytes)
	le.PutUint32(b[20:], s.RxCount)
	le.PutUint32(b[24:], s.RxBytes)
	le.PutUint64(b[28:], s.TimeActive)
	le.PutUint64(b[36:], s.TimeSleeping)
	return b, nil
}

func UnmarshalStats(b []byte) (Stats, error) {
	if len(b) != StatsLen {
		return Stats{}, ErrInvalid
	}
	le := binary.LittleEndian
	return Stats{
		TxUnicastCount: le.Uint32(b[0:]),
		TxMcastCount:   le.Uint32(b[4:]),
		TxSuccess:      le.Uint32(b[8:]),
		TxFailed:       le.Uint32(b[12:]),
		TxBytes:        le.Uint32(b[16:]),
		RxCount:        le.Uint32(b[20:]),
		RxBytes:        le.Uint32(b[24:]),
		TimeActive:     le.Uint64(b[28:]),
		TimeSleeping:   le.Uint64(b[36:]),
	}, nil
}
