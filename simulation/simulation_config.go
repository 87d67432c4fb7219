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

package simulation

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/openthread/ot-tsch/mac"
	"github.com/openthread/ot-tsch/pcap"
	"github.com/openthread/ot-tsch/simradio"
	. "github.com/openthread/ot-tsch/types"
)

const (
	DefaultOutputDir  = "tmp"
	DefaultLogLevel   = "info"
	DefaultPcapFormat = "wpan-tap"
	DefaultAutoGoStep = 1000000 // in microseconds
	pcapQueueDepth    = 1024
)

type Config struct {
	// Id names the run in output file names. A new UUID is used if empty.
	Id               string                `yaml:"id" toml:"id"`
	OutputDir        string                `yaml:"output-dir" toml:"output_dir"`
	RandomSeed       int64                 `yaml:"random-seed" toml:"random_seed"`
	Realtime         bool                  `yaml:"realtime" toml:"realtime"`
	AutoGo           bool                  `yaml:"auto-go" toml:"auto_go"`
	ReadOnly         bool                  `yaml:"read-only" toml:"read_only"`
	LogLevel         string                `yaml:"log-level" toml:"log_level"`
	Pcap             string                `yaml:"pcap" toml:"pcap"`
	MaxClockDriftPpm float64               `yaml:"max-clock-drift-ppm" toml:"max_clock_drift_ppm"`
	Medium           simradio.MediumConfig `yaml:"medium" toml:"medium"`
	Mac              mac.Config            `yaml:"mac" toml:"mac"`
	NewNodeConfig    NodeConfig            `yaml:"node-defaults" toml:"node_defaults"`
	Nodes            []NodeConfig          `yaml:"nodes" toml:"nodes"`
}

func DefaultConfig() *Config {
	return &Config{
		OutputDir:     DefaultOutputDir,
		LogLevel:      DefaultLogLevel,
		Pcap:          DefaultPcapFormat,
		Medium:        simradio.DefaultMediumConfig(),
		Mac:           mac.DefaultConfig(),
		NewNodeConfig: DefaultNodeConfig(),
	}
}

// LoadConfig reads a scenario file on top of the defaults. The format follows the file extension:
// .yaml/.yml or .toml.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", filename)
	}
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, errors.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", filename)
	}
	if err = cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", filename)
	}
	return cfg, nil
}

// Validate checks values that would otherwise only fail once the simulation runs.
func (cfg *Config) Validate() error {
	if _, err := pcap.ParseFormat(cfg.Pcap); err != nil {
		return err
	}
	if cfg.Medium.PacketLossRatio < 0 || cfg.Medium.PacketLossRatio > 1 {
		return errors.Errorf("packet loss ratio %v out of range [0, 1]", cfg.Medium.PacketLossRatio)
	}
	if cfg.MaxClockDriftPpm < 0 {
		return errors.Errorf("negative clock drift %v", cfg.MaxClockDriftPpm)
	}
	seen := map[NodeId]bool{}
	for _, n := range cfg.Nodes {
		if n.ID <= 0 {
			continue
		}
		if n.ID > MaxNodeId {
			return errors.Errorf("node id %d out of range", n.ID)
		}
		if seen[n.ID] {
			return errors.Errorf("duplicate node id %d", n.ID)
		}
		seen[n.ID] = true
	}
	return nil
}
