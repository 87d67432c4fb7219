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
	"bytes"
	"fmt"

	"github.com/pkg/errors"
)

// AddrType is the kind of an Address.
type AddrType uint8

const (
	AddrNone AddrType = iota
	Addr16B
	Addr64B
	Addr128B
	AddrPanId
	AddrPrefix
)

func (t AddrType) String() string {
	switch t {
	case Addr16B:
		return "16b"
	case Addr64B:
		return "64b"
	case Addr128B:
		return "128b"
	case AddrPanId:
		return "panid"
	case AddrPrefix:
		return "prefix"
	default:
		return "none"
	}
}

// Len returns the number of address bytes for the type.
func (t AddrType) Len() int {
	switch t {
	case Addr16B, AddrPanId:
		return 2
	case Addr64B, AddrPrefix:
		return 8
	case Addr128B:
		return 16
	default:
		return 0
	}
}

// Address is a typed address value, bytes in network order.
type Address struct {
	Type AddrType
	addr [16]byte
}

// NewAddress creates an address of type t from b, which must have the type's length.
func NewAddress(t AddrType, b []byte) (Address, error) {
	if t.Len() == 0 {
		return Address{}, errors.Wrapf(ErrWrongAddrType, "type %d", t)
	}
	if len(b) != t.Len() {
		return Address{}, errors.Errorf("%s address needs %d bytes, got %d", t, t.Len(), len(b))
	}
	a := Address{Type: t}
	copy(a.addr[:], b)
	return a, nil
}

// MustAddress is NewAddress for constant input.
func MustAddress(t AddrType, b []byte) Address {
	a, err := NewAddress(t, b)
	if err != nil {
		panic(err)
	}
	return a
}

// Bytes returns a copy of the address bytes.
func (a Address) Bytes() []byte {
	return append([]byte(nil), a.addr[:a.Type.Len()]...)
}

func (a Address) Equal(o Address) bool {
	return a.Type == o.Type && bytes.Equal(a.addr[:a.Type.Len()], o.addr[:o.Type.Len()])
}

func (a Address) String() string {
	b := a.addr[:a.Type.Len()]
	s := ""
	for i, v := range b {
		if i > 0 {
			s += ":"
		}
		s += fmt.Sprintf("%02x", v)
	}
	return s
}
