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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/openthread/ot-tsch/types"
)

const yamlScenario = `
id: scenario
random-seed: 7
pcap: "off"
medium:
  packet-loss: 0.1
mac:
  tsch:
    beacon-probability: 0.5
nodes:
  - id: 1
    root: true
    x: 10
    y: 10
  - id: 2
    x: 30
    y: 10
    clock-drift-ppm: 20
`

const tomlScenario = `
id = "scenario"
pcap = "wpan"

[mac.tsch]
slotframe_length = 7

[[nodes]]
id = 4
root = true
`

func writeFile(t *testing.T, name, content string) string {
	fn := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(fn, []byte(content), 0644))
	return fn
}

func TestLoadConfigYaml(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "net.yaml", yamlScenario))
	require.NoError(t, err)
	assert.Equal(t, "scenario", cfg.Id)
	assert.Equal(t, int64(7), cfg.RandomSeed)
	assert.Equal(t, "off", cfg.Pcap)
	assert.Equal(t, 0.1, cfg.Medium.PacketLossRatio)
	assert.Equal(t, 0.5, cfg.Mac.Tsch.BeaconProb)
	// unset values keep their defaults
	assert.Equal(t, Ticks(10000), cfg.Mac.Tsch.SlotDuration)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)

	require.Len(t, cfg.Nodes, 2)
	assert.True(t, cfg.Nodes[0].IsRoot)
	assert.Equal(t, 30, cfg.Nodes[1].X)
	assert.Equal(t, 20.0, cfg.Nodes[1].ClockDrift)
}

func TestLoadConfigToml(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "net.toml", tomlScenario))
	require.NoError(t, err)
	assert.Equal(t, "wpan", cfg.Pcap)
	assert.Equal(t, 7, cfg.Mac.Tsch.SlotframeLength)
	assert.Equal(t, 0.25, cfg.Mac.Tsch.BeaconProb)
	require.Len(t, cfg.Nodes, 1)
	assert.Equal(t, 4, cfg.Nodes[0].ID)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(writeFile(t, "net.json", "{}"))
	assert.Error(t, err)
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	_, err = LoadConfig(writeFile(t, "bad.yaml", "pcap: pcapng\n"))
	assert.Error(t, err)
	_, err = LoadConfig(writeFile(t, "dup.yaml", "nodes:\n  - id: 1\n  - id: 1\n"))
	assert.Error(t, err)
	_, err = LoadConfig(writeFile(t, "loss.yaml", "medium:\n  packet-loss: 2\n"))
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	s := newTestSimulation(t, testNodeConfig(1, true, 20), testNodeConfig(2, false, 40))
	goFor(t, s, 100*time.Millisecond)

	for _, name := range []string{"saved.yaml", "saved.toml"} {
		fn := filepath.Join(t.TempDir(), name)
		require.NoError(t, s.SaveConfig(fn))

		cfg, err := LoadConfig(fn)
		require.NoError(t, err, name)
		assert.Empty(t, cfg.Id)
		require.Len(t, cfg.Nodes, 2)
		assert.True(t, cfg.Nodes[0].IsRoot)
		assert.Equal(t, 40, cfg.Nodes[1].X)
		assert.Equal(t, 20, cfg.Nodes[1].Y)
	}
	assert.Error(t, s.SaveConfig(filepath.Join(t.TempDir(), "saved.txt")))
}

func TestImportNodes(t *testing.T) {
	s := newTestSimulation(t, testNodeConfig(1, true, 20))
	fn := writeFile(t, "more.yaml", "nodes:\n  - id: 1\n    x: 5\n  - id: 2\n    x: 25\n")

	require.NoError(t, s.ImportNodes(fn, 10, 100, 0))
	assert.Equal(t, []NodeId{1, 11, 12}, s.GetNodes())
	assert.Equal(t, 105, s.Node(11).Config().X)

	// ids taken by the previous import fail
	assert.Error(t, s.ImportNodes(fn, 10, 0, 0))
}
