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

package prng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitIsRepeatable(t *testing.T) {
	Init(42)
	id1 := NewCpuId()
	u1 := NewUnitRandom()
	d1 := NewClockDrift(40)

	Init(42)
	assert.Equal(t, id1, NewCpuId())
	assert.Equal(t, u1, NewUnitRandom())
	assert.Equal(t, d1, NewClockDrift(40))
	assert.Equal(t, int64(42), RootSeed())
}

func TestClockDriftRange(t *testing.T) {
	Init(7)
	for i := 0; i < 1000; i++ {
		d := NewClockDrift(20)
		assert.True(t, d >= -20 && d <= 20)
	}
}

func TestTimeBasedSeed(t *testing.T) {
	Init(0)
	assert.NotEqual(t, int64(0), RootSeed())
}
