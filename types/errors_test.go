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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestResultCodeOf(t *testing.T) {
	assert.Equal(t, ResultOk, ResultCodeOf(nil))
	assert.Equal(t, ResultNotSupported, ResultCodeOf(errors.Wrap(ErrNotSupported, "get foo")))
	assert.Equal(t, ResultNoDevice, ResultCodeOf(ErrNoSuchDevice))
	assert.Equal(t, ResultOverflow, ResultCodeOf(ErrOverflow))
	assert.Equal(t, ResultNoBuffer, ResultCodeOf(errors.Wrap(ErrNoBuffer, "queue")))
	assert.Equal(t, ResultCanceled, ResultCodeOf(context.Canceled))
	assert.Equal(t, ResultInvalid, ResultCodeOf(errors.New("other")))
}

func TestResultCodeString(t *testing.T) {
	assert.Equal(t, "NotSupported", ResultNotSupported.String())
	assert.Equal(t, "Ok(2)", ResultCode(2).String())
	assert.Equal(t, "Error(-1)", ResultCode(-1).String())
	assert.True(t, ResultCode(0).IsOk())
	assert.False(t, ResultInvalid.IsOk())
}

func TestAirtime(t *testing.T) {
	assert.Equal(t, uint64((6+127)*32), AirtimeUs(MacFrameLenBytes))
	assert.Equal(t, 16, NumChannels)
}
