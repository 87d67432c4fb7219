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

// Package idmanager keeps the identity of a node: whether it is the network root, its PAN ID, its 16-bit
// and 64-bit MAC addresses and its IPv6 prefix. Accessors are safe from thread and interrupt context.
package idmanager

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/openthread/ot-tsch/irq"
)

// ErrWrongAddrType is returned for address types the identity does not hold.
var ErrWrongAddrType = errors.New("wrong address type")

var (
	DefaultPanId      = [2]byte{0xca, 0xfe}
	DefaultRootPrefix = [8]byte{0xbb, 0xbb, 0, 0, 0, 0, 0, 0}
)

// Collaborator is told about root role changes: first to recompute the neighbour preference, then, on
// becoming root, to start the root schedule.
type Collaborator interface {
	UpdateNeighborPreference()
	StartRoot()
}

// RootAction selects what TriggerAboutRoot does with the root role.
type RootAction uint8

const (
	RootYes RootAction = iota
	RootNo
	RootToggle
)

type Identity struct {
	mask   *irq.Mask
	collab Collaborator

	isRoot bool
	panId  [2]byte
	short  [2]byte
	long   [8]byte
	prefix [8]byte
}

// New creates the identity of a node from its CPU id. The long address is the CPU id marked as locally
// administered unicast; the short address is its last two bytes. Roots get the default root prefix.
func New(mask *irq.Mask, cpuId []byte, isRoot bool) *Identity {
	id := &Identity{
		mask:   mask,
		isRoot: isRoot,
		panId:  DefaultPanId,
		long:   Eui64FromCpuId(cpuId),
	}
	copy(id.short[:], id.long[6:8])
	if isRoot {
		id.prefix = DefaultRootPrefix
	}
	return id
}

// Eui64FromCpuId folds or zero-pads a CPU id into 8 bytes, then clears the multicast bit and sets the
// locally-administered bit.
func Eui64FromCpuId(cpuId []byte) [8]byte {
	var eui [8]byte
	for i, b := range cpuId {
		if i < len(eui) {
			eui[i] = b
		} else {
			eui[i&0x07] ^= b
		}
	}
	eui[0] &^= 0x01
	eui[0] |= 0x02
	return eui
}

// SetCollaborator sets the component notified of root role changes.
func (id *Identity) SetCollaborator(c Collaborator) {
	id.mask.Do(func() { id.collab = c })
}

func (id *Identity) IsRoot() bool {
	g := id.mask.Disable()
	defer g.Restore()
	return id.isRoot
}

// SetRoot changes the root role and then informs the collaborator, outside the critical section.
func (id *Identity) SetRoot(root bool) {
	g := id.mask.Disable()
	id.isRoot = root
	c := id.collab
	g.Restore()

	if c != nil {
		c.UpdateNeighborPreference()
		if root {
			c.StartRoot()
		}
	}
}

// ToggleRoot flips the root role and returns the new one.
func (id *Identity) ToggleRoot() bool {
	root := !id.IsRoot()
	id.SetRoot(root)
	return root
}

// TriggerAboutRoot applies a root command: a root action followed by a new prefix.
func (id *Identity) TriggerAboutRoot(action RootAction, prefix [8]byte) {
	switch action {
	case RootYes:
		id.SetRoot(true)
	case RootNo:
		id.SetRoot(false)
	case RootToggle:
		id.ToggleRoot()
	}
	id.mask.Do(func() { id.prefix = prefix })
}

// Get returns the node's address of the given type. 128-bit addresses are not stored; ask for the
// prefix and the 64-bit address instead.
func (id *Identity) Get(t AddrType) (Address, error) {
	g := id.mask.Disable()
	defer g.Restore()

	switch t {
	case Addr16B:
		return MustAddress(t, id.short[:]), nil
	case Addr64B:
		return MustAddress(t, id.long[:]), nil
	case AddrPanId:
		return MustAddress(t, id.panId[:]), nil
	case AddrPrefix:
		return MustAddress(t, id.prefix[:]), nil
	default:
		return Address{}, errors.Wrapf(ErrWrongAddrType, "get %s", t)
	}
}

// Set replaces the node's address of the address's type.
func (id *Identity) Set(a Address) error {
	g := id.mask.Disable()
	defer g.Restore()

	switch a.Type {
	case Addr16B:
		copy(id.short[:], a.addr[:2])
	case Addr64B:
		copy(id.long[:], a.addr[:8])
	case AddrPanId:
		copy(id.panId[:], a.addr[:2])
	case AddrPrefix:
		copy(id.prefix[:], a.addr[:8])
	default:
		return errors.Wrapf(ErrWrongAddrType, "set %s", a.Type)
	}
	return nil
}

// IsMyAddress returns true if a is one of the node's addresses; a 128-bit address matches prefix
// followed by the 64-bit address.
func (id *Identity) IsMyAddress(a Address) bool {
	g := id.mask.Disable()
	defer g.Restore()

	var mine []byte
	switch a.Type {
	case Addr16B:
		mine = id.short[:]
	case Addr64B:
		mine = id.long[:]
	case Addr128B:
		mine = append(append([]byte{}, id.prefix[:]...), id.long[:]...)
	case AddrPanId:
		mine = id.panId[:]
	case AddrPrefix:
		mine = id.prefix[:]
	default:
		return false
	}
	return MustAddress(a.Type, mine).Equal(a)
}

// Snapshot is a consistent copy of the identity, for status output.
type Snapshot struct {
	IsRoot bool    `json:"root"`
	PanId  [2]byte `json:"panid"`
	Short  [2]byte `json:"short"`
	Long   [8]byte `json:"long"`
	Prefix [8]byte `json:"prefix"`
}

func (id *Identity) Snapshot() Snapshot {
	g := id.mask.Disable()
	defer g.Restore()
	return Snapshot{
		IsRoot: id.isRoot,
		PanId:  id.panId,
		Short:  id.short,
		Long:   id.long,
		Prefix: id.prefix,
	}
}

func (s Snapshot) String() string {
	return fmt.Sprintf("root=%v panid=%s short=%s long=%s prefix=%s", s.IsRoot,
		MustAddress(AddrPanId, s.PanId[:]), MustAddress(Addr16B, s.Short[:]),
		MustAddress(Addr64B, s.Long[:]), MustAddress(AddrPrefix, s.Prefix[:]))
}
