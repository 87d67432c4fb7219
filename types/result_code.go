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

// Result codes exchanged between the MAC layer, the driver and the callers of the MAC mailbox.

package types

import "fmt"

// ResultCode mirrors the negative errno convention of the netapi: >= 0 is success (often a length),
// < 0 is an error.
type ResultCode int

const (
	ResultOk           ResultCode = 0
	ResultNotSupported ResultCode = -95 // ENOTSUP
	ResultInvalid      ResultCode = -22 // EINVAL
	ResultOverflow     ResultCode = -75 // EOVERFLOW
	ResultNoDevice     ResultCode = -19 // ENODEV
	ResultNoBuffer     ResultCode = -105
	ResultCanceled     ResultCode = -125 // ECANCELED
)

func (c ResultCode) IsOk() bool {
	return c >= 0
}

func (c ResultCode) String() string {
	switch c {
	case ResultNotSupported:
		return "NotSupported"
	case ResultInvalid:
		return "Invalid"
	case ResultOverflow:
		return "Overflow"
	case ResultNoDevice:
		return "NoDevice"
	case ResultNoBuffer:
		return "NoBuffer"
	case ResultCanceled:
		return "Canceled"
	default:
		if c >= 0 {
			return fmt.Sprintf("Ok(%d)", int(c))
		}
		return fmt.Sprintf("Error(%d)", int(c))
	}
}
