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

package types

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrNoHandler is returned when a callback that interrupt sources depend on is missing.
	ErrNoHandler = errors.New("no handler registered")

	// ErrNoSuchDevice is returned when a MAC instance is created without a radio device.
	ErrNoSuchDevice = errors.New("no such device")

	// ErrNotSupported is returned by drivers for options they do not implement.
	ErrNotSupported = errors.New("option not supported")

	// ErrOverflow is returned when a value or frame does not fit the provided buffer.
	ErrOverflow = errors.New("value too large for buffer")

	// ErrInvalid is returned for malformed option values.
	ErrInvalid = errors.New("invalid value")

	// ErrNoBuffer is returned when a frame cannot be queued for lack of space.
	ErrNoBuffer = errors.New("no buffer space")
)

// ResultCodeOf maps an error to the result code returned to MAC API users.
func ResultCodeOf(err error) ResultCode {
	switch errors.Cause(err) {
	case nil:
		return ResultOk
	case ErrNotSupported:
		return ResultNotSupported
	case ErrNoSuchDevice:
		return ResultNoDevice
	case ErrOverflow:
		return ResultOverflow
	case ErrNoBuffer:
		return ResultNoBuffer
	case context.Canceled, context.DeadlineExceeded:
		return ResultCanceled
	default:
		return ResultInvalid
	}
}
