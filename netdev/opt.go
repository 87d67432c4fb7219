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
	"strings"

	"github.com/pkg/errors"

	. "github.com/openthread/ot-tsch/types"
)

// Opt is a driver option.
type Opt uint8

const (
	OptChannel Opt = iota
	OptAddress
	OptAddressLong
	OptNID
	OptState
	OptPromiscuousMode
	OptRxStartIRQ
	OptRxEndIRQ
	OptTxEndIRQ
	OptAutoAck
	OptPreloading
	OptRawMode
	OptRetrans
	OptTxPower
	OptStats
	OptMaxPacketSize
	numOpts
)

var optNames = [numOpts]string{
	"channel", "address", "address_long", "nid", "state", "promiscuous", "rx_start_irq", "rx_end_irq",
	"tx_end_irq", "autoack", "preloading", "rawmode", "retrans", "tx_power", "stats", "max_packet_size",
}

func (o Opt) String() string {
	if o < numOpts {
		return optNames[o]
	}
	return "unknown"
}

// OptNames returns the names of all options, in option order.
func OptNames() []string {
	return append([]string(nil), optNames[:]...)
}

// ParseOpt parses an option name as printed by Opt.String.
func ParseOpt(s string) (Opt, error) {
	s = strings.ToLower(s)
	for i, name := range optNames {
		if name == s {
			return Opt(i), nil
		}
	}
	return 0, errors.Errorf("unknown option: %s", s)
}

// State is the operating state requested from, or reported by, a driver (OptState).
type State uint8

const (
	StateOff State = iota
	StateSleep
	StateIdle
	StateRx
	StateTx
	StateReset
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateSleep:
		return "sleep"
	case StateIdle:
		return "idle"
	case StateRx:
		return "rx"
	case StateTx:
		return "tx"
	case StateReset:
		return "reset"
	default:
		return "invalid"
	}
}

// RadioState maps a driver state to the energy-relevant transceiver state.
func (s State) RadioState() RadioStates {
	switch s {
	case StateOff, StateReset:
		return RadioDisabled
	case StateSleep:
		return RadioSleep
	case StateIdle, StateRx:
		return RadioRx
	case StateTx:
		return RadioTx
	default:
		return RadioInvalid
	}
}

var (
	Enable  = []byte{1}
	Disable = []byte{0}
)

func EncodeBool(v bool) []byte {
	if v {
		return Enable
	}
	return Disable
}

func DecodeBool(value []byte) (bool, error) {
	if len(value) != 1 {
		return false, ErrInvalid
	}
	return value[0] != 0, nil
}

func EncodeUint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func DecodeUint16(value []byte) (uint16, error) {
	switch len(value) {
	case 1:
		return uint16(value[0]), nil
	case 2:
		return binary.LittleEndian.Uint16(value), nil
	default:
		return 0, ErrInvalid
	}
}

// PutValue copies value into buf, as Driver.Get does.
func PutValue(buf []byte, value []byte) (int, error) {
	if len(buf) < len(value) {
		return 0, ErrOverflow
	}
	return copy(buf, value), nil
}

// SetEnable sets a boolean option.
func SetEnable(d Driver, opt Opt, enable bool) error {
	_, err := d.Set(opt, EncodeBool(enable))
	return errors.Wrapf(err, "set %s", opt)
}

// SetState requests a state change from the driver.
func SetState(d Driver, state State) error {
	_, err := d.Set(OptState, []byte{byte(state)})
	return errors.Wrapf(err, "set state %s", state)
}

// GetState reads the current driver state.
func GetState(d Driver) (State, error) {
	var buf [1]byte
	if _, err := d.Get(OptState, buf[:]); err != nil {
		return StateOff, errors.Wrap(err, "get state")
	}
	return State(buf[0]), nil
}

// SetChannel tunes the driver.
func SetChannel(d Driver, ch ChannelId) error {
	_, err := d.Set(OptChannel, EncodeUint16(uint16(ch)))
	return errors.Wrapf(err, "set channel %d", ch)
}

// GetStats reads the driver's link-layer statistics.
func GetStats(d Driver) (Stats, error) {
	buf := make([]byte, StatsLen)
	n, err := d.Get(OptStats, buf)
	if err != nil {
		return Stats{}, errors.Wrap(err, "get stats")
	}
	return UnmarshalStats(buf[:n])
}
