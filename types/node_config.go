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

// NodeConfig is a generic config for a new simulated node (used in simulation, simradio and mac packages).
type NodeConfig struct {
	ID          NodeId  `yaml:"id" toml:"id"`
	IsRoot      bool    `yaml:"root" toml:"root"`
	X           int     `yaml:"x" toml:"x"`
	Y           int     `yaml:"y" toml:"y"`
	Z           int     `yaml:"z" toml:"z"`
	RadioRange  int     `yaml:"radio-range" toml:"radio_range"`
	TxPower     int8    `yaml:"tx-power" toml:"tx_power"`
	ClockDrift  float64 `yaml:"clock-drift-ppm" toml:"clock_drift_ppm"`
	NodeLogFile bool    `yaml:"log-file" toml:"log_file"`

	// IsAutoPlaced lets the simulation pick X and Y.
	IsAutoPlaced bool `yaml:"-" toml:"-"`
}

func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		ID:          -1, // -1 for the next available nodeid
		IsRoot:      false,
		X:           0,
		Y:           0,
		Z:           0,
		RadioRange:  220,
		TxPower:     0,
		ClockDrift:  0,
		NodeLogFile: false,

		IsAutoPlaced: true,
	}
}
