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

package tsch

import (
	. "github.com/openthread/ot-tsch/types"
)

// DefaultHoppingSequence is the channel hopping sequence of IEEE 802.15.4 TSCH on the 2.4 GHz band.
var DefaultHoppingSequence = []ChannelId{16, 17, 23, 18, 26, 15, 25, 22, 19, 11, 12, 13, 24, 14, 20, 21}

// Config holds the slot timing template and schedule of the engine. Durations are in ticks (us).
type Config struct {
	SlotDuration     Ticks       `yaml:"slot-duration" toml:"slot_duration"`
	TxOffset         Ticks       `yaml:"tx-offset" toml:"tx_offset"`
	RxOffset         Ticks       `yaml:"rx-offset" toml:"rx_offset"`
	RxWait           Ticks       `yaml:"rx-wait" toml:"rx_wait"`
	WatchdogMargin   Ticks       `yaml:"watchdog-margin" toml:"watchdog_margin"`
	SlotframeLength  int         `yaml:"slotframe-length" toml:"slotframe_length"`
	SharedSlots      []int       `yaml:"shared-slots" toml:"shared_slots"`
	HoppingSequence  []ChannelId `yaml:"hopping-sequence" toml:"hopping_sequence"`
	SingleChannel    ChannelId   `yaml:"single-channel" toml:"single_channel"`
	TxQueueSize      int         `yaml:"tx-queue-size" toml:"tx_queue_size"`
	BeaconProb       float64     `yaml:"beacon-probability" toml:"beacon_probability"`
	DesyncTimeout    uint64      `yaml:"desync-timeout-slots" toml:"desync_timeout_slots"`
	MaxTimeCorrected Ticks       `yaml:"max-time-correction" toml:"max_time_correction"`
}

func DefaultConfig() Config {
	return Config{
		SlotDuration:     10000,
		TxOffset:         2120,
		RxOffset:         1120,
		RxWait:           2000,
		WatchdogMargin:   200,
		SlotframeLength:  11,
		SharedSlots:      []int{0, 1, 2},
		HoppingSequence:  DefaultHoppingSequence,
		SingleChannel:    0,
		TxQueueSize:      10,
		BeaconProb:       0.25,
		DesyncTimeout:    2000,
		MaxTimeCorrected: 1000,
	}
}

// Channel returns the channel used at asn for a cell with the given channel offset.
func (c *Config) Channel(asn uint64, channelOffset int) ChannelId {
	if c.SingleChannel != 0 {
		return c.SingleChannel
	}
	n := uint64(len(c.HoppingSequence))
	return c.HoppingSequence[(asn+uint64(channelOffset))%n]
}

// IsShared returns true if the slot offset of asn is a shared cell.
func (c *Config) IsShared(asn uint64) bool {
	offset := int(asn % uint64(c.SlotframeLength))
	for _, s := range c.SharedSlots {
		if s == offset {
			return true
		}
	}
	return false
}

// IsBeaconSlot returns true for the first slot of every slotframe.
func (c *Config) IsBeaconSlot(asn uint64) bool {
	return asn%uint64(c.SlotframeLength) == 0
}

// TxWatchdog is the slot offset by which a started transmission must have ended.
func (c *Config) TxWatchdog() Ticks {
	return c.TxOffset + Ticks(AirtimeUs(MacFrameLenBytes)) + c.WatchdogMargin
}
