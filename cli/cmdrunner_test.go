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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/openthread/ot-tsch/progctx"
	"github.com/openthread/ot-tsch/simulation"
	. "github.com/openthread/ot-tsch/types"
)

func newTestRunner(t *testing.T) (*CmdRunner, *simulation.Simulation) {
	cfg := simulation.DefaultConfig()
	cfg.Id = "cli"
	cfg.OutputDir = t.TempDir()
	cfg.RandomSeed = 1
	cfg.LogLevel = "warn"
	cfg.Pcap = "off"
	cfg.Mac.Tsch.BeaconProb = 1.0

	ctx := progctx.New(context.Background())
	sim, err := simulation.NewSimulation(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		sim.Stop()
		ctx.Cancel("test done")
	})
	return NewCmdRunner(ctx, sim), sim
}

func runCmd(t *testing.T, rt *CmdRunner, line string) string {
	var output bytes.Buffer
	require.NoError(t, rt.HandleCommand(line, &output))
	return output.String()
}

func TestRunnerAddAndGo(t *testing.T) {
	rt, sim := newTestRunner(t)
	assert.Equal(t, "1\nDone\n", runCmd(t, rt, "add root x 20 y 20"))
	assert.Equal(t, "2\nDone\n", runCmd(t, rt, "add x 60 y 20"))
	assert.Equal(t, []NodeId{1, 2}, sim.GetNodes())

	assert.Equal(t, "Done\n", runCmd(t, rt, "go 1"))
	assert.Equal(t, "1000000\nDone\n", runCmd(t, rt, "time"))
	assert.Equal(t, "Done\n", runCmd(t, rt, "go 500ms"))
	assert.Equal(t, "1500000\nDone\n", runCmd(t, rt, "time"))

	nodes := runCmd(t, rt, "nodes")
	assert.Contains(t, nodes, "id=1\t")
	assert.Contains(t, nodes, "role=root")
	assert.Contains(t, nodes, "id=2\t")

	var st simulation.NodeStatus
	out := runCmd(t, rt, "status 2")
	require.NoError(t, yaml.Unmarshal(bytes.TrimSuffix([]byte(out), []byte("Done\n")), &st))
	assert.Equal(t, 2, st.Id)
	assert.True(t, st.Synced)
	assert.False(t, st.Root)
}

func TestRunnerOptions(t *testing.T) {
	rt, _ := newTestRunner(t)
	runCmd(t, rt, "add root")

	assert.Equal(t, "125\nDone\n", runCmd(t, rt, "get 1 max_packet_size"))
	assert.Equal(t, "Done\n", runCmd(t, rt, "set 1 promiscuous off"))
	assert.Equal(t, "off\nDone\n", runCmd(t, rt, "get 1 promiscuous"))
	assert.Equal(t, "Done\n", runCmd(t, rt, "set 1 tx_power -5"))
	assert.Equal(t, "-5\nDone\n", runCmd(t, rt, "get 1 tx_power"))

	assert.Contains(t, runCmd(t, rt, "set 1 channel 99"), "Error:")
	assert.Contains(t, runCmd(t, rt, "get 1 bogus"), "Error: unknown option")
	assert.Contains(t, runCmd(t, rt, "get 7 channel"), "Error: node 7 not found")
}

func TestRunnerNodeContext(t *testing.T) {
	rt, _ := newTestRunner(t)
	runCmd(t, rt, "add root")
	runCmd(t, rt, "add")

	assert.Equal(t, "125\nDone\n", runCmd(t, rt, "node 2 \"get max_packet_size\""))
	assert.Contains(t, runCmd(t, rt, "node 2 \"nodes\""), "Error:")
	assert.Contains(t, runCmd(t, rt, "node 9"), "Error: node 9 not found")

	assert.Equal(t, "Done\n", runCmd(t, rt, "node 2"))
	assert.Equal(t, "node 2> ", rt.GetPrompt())
	assert.Equal(t, 2, rt.GetContextNodeId())
	assert.Equal(t, "true\nDone\n", runCmd(t, rt, "root"))
	assert.Equal(t, "Done\n", runCmd(t, rt, "go 100ms"))

	assert.Equal(t, "Done\n", runCmd(t, rt, "exit"))
	assert.Equal(t, Prompt, rt.GetPrompt())
	assert.Nil(t, rt.ctx.Err())
}

func TestRunnerSendAndCounters(t *testing.T) {
	rt, sim := newTestRunner(t)
	runCmd(t, rt, "add root x 20 y 20")
	runCmd(t, rt, "add x 60 y 20")
	runCmd(t, rt, "go 2")

	// frames queued for the same shared cell contend without backoff, so each send gets its own second
	assert.Equal(t, "Done\n", runCmd(t, rt, "send 1 2 \"hello\""))
	assert.Contains(t, runCmd(t, rt, "send 1 5"), "Error:")
	runCmd(t, rt, "go 1")
	n, last := sim.Node(2).Received()
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, []byte("hello"), last)

	assert.Equal(t, "Done\n", runCmd(t, rt, "send 2 bcast ds 20"))
	runCmd(t, rt, "go 1")
	n, last = sim.Node(1).Received()
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, makePayload(20), last)
	assert.Contains(t, runCmd(t, rt, "counters 2"), "mac.rx_delivered")
	assert.Contains(t, runCmd(t, rt, "counters"), "tsch.")
	assert.Contains(t, runCmd(t, rt, "counters 5"), "Error:")
}

func TestRunnerDeleteAndMove(t *testing.T) {
	rt, sim := newTestRunner(t)
	runCmd(t, rt, "add root")
	runCmd(t, rt, "add")
	runCmd(t, rt, "add")

	assert.Equal(t, "Done\n", runCmd(t, rt, "move 3 500 500"))
	assert.Equal(t, 500, sim.Node(3).Config().X)
	assert.Contains(t, runCmd(t, rt, "del 2 7"), "Warn: node 7 not found")
	assert.Equal(t, []NodeId{1, 3}, sim.GetNodes())
}

func TestRunnerFiles(t *testing.T) {
	rt, sim := newTestRunner(t)
	runCmd(t, rt, "add root")
	runCmd(t, rt, "go 1")
	dir := sim.GetConfig().OutputDir

	assert.Contains(t, runCmd(t, rt, "energy"), "total")
	assert.Equal(t, "Done\n", runCmd(t, rt, "energy save \"run1\""))
	assert.FileExists(t, filepath.Join(dir, "energy_results", "run1_nodes.txt"))

	assert.Equal(t, "Done\n", runCmd(t, rt, "kpi save"))
	assert.FileExists(t, filepath.Join(dir, "cli_kpi.json"))
	assert.Contains(t, runCmd(t, rt, "kpi"), "synced_nodes")

	cfgFile := filepath.Join(dir, "scenario.yaml")
	assert.Equal(t, "Done\n", runCmd(t, rt, "save \""+cfgFile+"\""))
	_, err := os.Stat(cfgFile)
	assert.NoError(t, err)
	assert.Equal(t, "Done\n", runCmd(t, rt, "import \""+cfgFile+"\" id 10 x 40"))
	assert.Equal(t, []NodeId{1, 11}, sim.GetNodes())
}

func TestRunnerMisc(t *testing.T) {
	rt, _ := newTestRunner(t)
	assert.Contains(t, runCmd(t, rt, "wrongcmd"), "Error:")
	assert.Equal(t, "warn\nDone\n", runCmd(t, rt, "log"))
	assert.Equal(t, "Done\n", runCmd(t, rt, "log info"))
	assert.Equal(t, "info\nDone\n", runCmd(t, rt, "log"))
	runCmd(t, rt, "log warn")
	assert.Contains(t, runCmd(t, rt, "help"), "send")

	var output bytes.Buffer
	assert.Error(t, rt.HandleCommand("exit", &output))
	assert.Error(t, rt.ctx.Err())
}

func completions(rt *CmdRunner, line string) []string {
	cands, _ := rt.Completer().Do([]rune(line), len(line))
	var res []string
	for _, c := range cands {
		res = append(res, string(c))
	}
	return res
}

func TestRunnerCompleter(t *testing.T) {
	rt, _ := newTestRunner(t)
	runCmd(t, rt, "add root")
	runCmd(t, rt, "add")

	assert.Equal(t, []string{"ot "}, completions(rt, "ro"))
	assert.ElementsMatch(t, []string{"1 ", "2 "}, completions(rt, "del "))
	assert.Contains(t, completions(rt, "log "), "debug ")
	assert.Empty(t, completions(rt, "xyz"))

	runCmd(t, rt, "del 2")
	assert.Equal(t, []string{"1 "}, completions(rt, "del "))
}

func TestRunnerLeaveContext(t *testing.T) {
	rt, _ := newTestRunner(t)
	runCmd(t, rt, "add root")

	assert.False(t, rt.LeaveContext())
	assert.Equal(t, "Done\n", runCmd(t, rt, "node 1"))
	assert.Equal(t, "node 1> ", rt.GetPrompt())

	assert.True(t, rt.LeaveContext())
	assert.Equal(t, InvalidNodeId, rt.GetContextNodeId())
	assert.Equal(t, Prompt, rt.GetPrompt())
	assert.False(t, rt.LeaveContext())
}
