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

package idmanager

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/openthread/ot-tsch/irq"
)

type recorder struct {
	calls []string
	id    *Identity
	roots []bool
}

func (r *recorder) UpdateNeighborPreference() {
	r.calls = append(r.calls, "update")
	// collaborators may read the identity again
	r.roots = append(r.roots, r.id.IsRoot())
}

func (r *recorder) StartRoot() {
	r.calls = append(r.calls, "startRoot")
}

var testCpuId = []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}

func TestDefaults(t *testing.T) {
	id := New(&irq.Mask{}, testCpuId, false)
	s := id.Snapshot()
	assert.False(t, s.IsRoot)
	assert.Equal(t, [2]byte{0xca, 0xfe}, s.PanId)
	assert.Equal(t, [8]byte{0x02, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}, s.Long)
	assert.Equal(t, [2]byte{0xcd, 0xef}, s.Short)
	assert.Equal(t, [8]byte{}, s.Prefix)

	root := New(&irq.Mask{}, testCpuId, true)
	assert.True(t, root.IsRoot())
	p, err := root.Get(AddrPrefix)
	assert.Nil(t, err)
	assert.Equal(t, []byte{0xbb, 0xbb, 0, 0, 0, 0, 0, 0}, p.Bytes())
}

func TestEui64FromShortAndLongCpuId(t *testing.T) {
	assert.Equal(t, [8]byte{0x02, 0x02, 0, 0, 0, 0, 0, 0}, Eui64FromCpuId([]byte{0x01, 0x02}))
	long := append(append([]byte{}, testCpuId...), 0x01, 0, 0, 0, 0, 0, 0, 0x01)
	eui := Eui64FromCpuId(long)
	assert.Equal(t, byte(0x02), eui[0])
	assert.Equal(t, byte(0xee), eui[7])
}

func TestSetRootNotifiesCollaborator(t *testing.T) {
	id := New(&irq.Mask{}, testCpuId, false)
	r := &recorder{id: id}
	id.SetCollaborator(r)

	id.SetRoot(true)
	assert.Equal(t, []string{"update", "startRoot"}, r.calls)
	assert.Equal(t, []bool{true}, r.roots)

	r.calls = nil
	id.SetRoot(false)
	assert.Equal(t, []string{"update"}, r.calls)
	assert.False(t, id.IsRoot())

	assert.True(t, id.ToggleRoot())
	assert.True(t, id.IsRoot())
	assert.False(t, id.ToggleRoot())
}

func TestTriggerAboutRoot(t *testing.T) {
	id := New(&irq.Mask{}, testCpuId, false)
	prefix := [8]byte{0x20, 0x01, 0x0d, 0xb8}
	id.TriggerAboutRoot(RootToggle, prefix)
	assert.True(t, id.IsRoot())
	assert.Equal(t, prefix, id.Snapshot().Prefix)
	id.TriggerAboutRoot(RootNo, prefix)
	assert.False(t, id.IsRoot())
	id.TriggerAboutRoot(RootYes, prefix)
	assert.True(t, id.IsRoot())
}

func TestGetSet(t *testing.T) {
	id := New(&irq.Mask{}, testCpuId, false)

	assert.Nil(t, id.Set(MustAddress(Addr16B, []byte{0x00, 0x01})))
	a, err := id.Get(Addr16B)
	assert.Nil(t, err)
	assert.Equal(t, []byte{0x00, 0x01}, a.Bytes())

	assert.Nil(t, id.Set(MustAddress(AddrPanId, []byte{0xbe, 0xef})))
	a, err = id.Get(AddrPanId)
	assert.Nil(t, err)
	assert.Equal(t, "be:ef", a.String())

	_, err = id.Get(Addr128B)
	assert.Equal(t, ErrWrongAddrType, errors.Cause(err))
	err = id.Set(MustAddress(Addr128B, make([]byte, 16)))
	assert.Equal(t, ErrWrongAddrType, errors.Cause(err))

	_, err = NewAddress(AddrNone, nil)
	assert.Equal(t, ErrWrongAddrType, errors.Cause(err))
	_, err = NewAddress(Addr64B, []byte{1})
	assert.NotNil(t, err)
}

func TestIsMyAddress(t *testing.T) {
	id := New(&irq.Mask{}, testCpuId, true)
	long, _ := id.Get(Addr64B)
	assert.True(t, id.IsMyAddress(long))
	assert.True(t, id.IsMyAddress(MustAddress(Addr16B, []byte{0xcd, 0xef})))
	assert.False(t, id.IsMyAddress(MustAddress(Addr16B, []byte{0xcd, 0xee})))
	assert.True(t, id.IsMyAddress(MustAddress(AddrPanId, []byte{0xca, 0xfe})))

	full := append([]byte{0xbb, 0xbb, 0, 0, 0, 0, 0, 0}, long.Bytes()...)
	assert.True(t, id.IsMyAddress(MustAddress(Addr128B, full)))
	full[15] ^= 1
	assert.False(t, id.IsMyAddress(MustAddress(Addr128B, full)))
	assert.False(t, id.IsMyAddress(Address{}))
}
