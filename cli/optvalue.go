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

package cli

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/openthread/ot-tsch/netdev"
)

// encodeOptValue converts the text form of an option value into the bytes the driver expects.
func encodeOptValue(opt netdev.Opt, s string) ([]byte, error) {
	switch opt {
	case netdev.OptChannel, netdev.OptNID, netdev.OptMaxPacketSize:
		v, err := strconv.ParseUint(s, 0, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", opt)
		}
		return netdev.EncodeUint16(uint16(v)), nil
	case netdev.OptTxPower:
		v, err := strconv.ParseInt(s, 0, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", opt)
		}
		return netdev.EncodeUint16(uint16(int16(v))), nil
	case netdev.OptAddress:
		return parseHexBytes(s, 2)
	case netdev.OptAddressLong:
		return parseHexBytes(s, 8)
	case netdev.OptState:
		state, err := parseState(s)
		if err != nil {
			return nil, err
		}
		return []byte{byte(state)}, nil
	case netdev.OptRetrans:
		v, err := strconv.ParseUint(s, 0, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", opt)
		}
		return []byte{byte(v)}, nil
	case netdev.OptStats:
		return nil, errors.Errorf("%s is read-only", opt)
	default:
		v, err := parseOnOff(s)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", opt)
		}
		return netdev.EncodeBool(v), nil
	}
}

// formatOptValue is the inverse of encodeOptValue. Values it cannot decode are shown as hex.
func formatOptValue(opt netdev.Opt, data []byte) string {
	switch opt {
	case netdev.OptChannel, netdev.OptNID, netdev.OptMaxPacketSize:
		if v, err := netdev.DecodeUint16(data); err == nil {
			return strconv.Itoa(int(v))
		}
	case netdev.OptTxPower:
		if v, err := netdev.DecodeUint16(data); err == nil {
			return strconv.Itoa(int(int16(v)))
		}
	case netdev.OptAddress, netdev.OptAddressLong:
		return formatHexBytes(data)
	case netdev.OptState:
		if len(data) == 1 {
			return netdev.State(data[0]).String()
		}
	case netdev.OptRetrans:
		if len(data) == 1 {
			return strconv.Itoa(int(data[0]))
		}
	case netdev.OptStats:
		if s, err := netdev.UnmarshalStats(data); err == nil {
			return fmt.Sprintf("%+v", s)
		}
	default:
		if v, err := netdev.DecodeBool(data); err == nil {
			if v {
				return "on"
			}
			return "off"
		}
	}
	return hex.EncodeToString(data)
}

func parseState(s string) (netdev.State, error) {
	for st := netdev.StateOff; st <= netdev.StateReset; st++ {
		if st.String() == strings.ToLower(s) {
			return st, nil
		}
	}
	return netdev.StateOff, errors.Errorf("unknown state: %s", s)
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes", "y", "enable":
		return true, nil
	case "off", "no", "n", "disable":
		return false, nil
	}
	return strconv.ParseBool(s)
}

// parseHexBytes parses hex digits, optionally separated by colons. If n >= 0 the result must have
// exactly n bytes.
func parseHexBytes(s string, n int) ([]byte, error) {
	s = strings.TrimPrefix(strings.ReplaceAll(s, ":", ""), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid hex value %q", s)
	}
	if n >= 0 && len(b) != n {
		return nil, errors.Errorf("expected %d bytes, got %d", n, len(b))
	}
	return b, nil
}

func formatHexBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, ":")
}
