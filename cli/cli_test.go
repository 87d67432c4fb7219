// Copyright (c) 2020-2023, The OTNS Authors.
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
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openthread/ot-tsch/netdev"
)

func TestParseBytes(t *testing.T) {
	var cmd Command
	assert.NotNil(t, parseBytes([]byte("wrongcmd"), &cmd))

	cmd = Command{}
	assert.Nil(t, parseBytes([]byte("add"), &cmd))
	assert.True(t, cmd.Add != nil && cmd.Add.Root == nil && cmd.Add.X == nil)
	cmd = Command{}
	assert.Nil(t, parseBytes([]byte("add root x 100 y 200"), &cmd))
	assert.True(t, cmd.Add.Root != nil && *cmd.Add.X == 100 && *cmd.Add.Y == 200)
	cmd = Command{}
	assert.Nil(t, parseBytes([]byte("add id 7 rr 300 drift -12.5"), &cmd))
	assert.Equal(t, 7, cmd.Add.Id.Val)
	assert.Equal(t, 300, cmd.Add.RadioRange.Val)
	assert.Equal(t, -12.5, cmd.Add.Drift.Ppm())
	assert.Nil(t, parseBytes([]byte("add rr 1234 id 3 y 2 x 1"), &cmd))

	cmd = Command{}
	assert.True(t, parseBytes([]byte("counters"), &cmd) == nil && cmd.Counters != nil && cmd.Counters.Node == nil)
	cmd = Command{}
	assert.True(t, parseBytes([]byte("counters 3"), &cmd) == nil && cmd.Counters.Node.Id == 3)

	assert.True(t, parseBytes([]byte("del 1 2 3"), &cmd) == nil && cmd.Del != nil && len(cmd.Del.Nodes) == 3)
	assert.NotNil(t, parseBytes([]byte("del"), &cmd))

	cmd = Command{}
	assert.True(t, parseBytes([]byte("energy"), &cmd) == nil && cmd.Energy != nil && cmd.Energy.Save == nil)
	cmd = Command{}
	assert.True(t, parseBytes([]byte("energy save \"run1\""), &cmd) == nil && cmd.Energy.Save != nil &&
		cmd.Energy.Name == "run1")

	assert.True(t, parseBytes([]byte("exit"), &cmd) == nil && cmd.Exit != nil)

	cmd = Command{}
	assert.True(t, parseBytes([]byte("get 1 channel"), &cmd) == nil && cmd.Get != nil && cmd.Get.Opt == "channel")
	cmd = Command{}
	assert.True(t, parseBytes([]byte("get 1 address_long"), &cmd) == nil && cmd.Get.Opt == "address_long")

	for _, dur := range []string{"1", "1.5", "64us", "10ms", "5h"} {
		cmd = Command{}
		assert.Nil(t, parseBytes([]byte("go "+dur), &cmd), dur)
		assert.Equal(t, dur, cmd.Go.Time)
	}
	cmd = Command{}
	assert.True(t, parseBytes([]byte("go ever"), &cmd) == nil && cmd.Go.Ever != nil)

	assert.True(t, parseBytes([]byte("help"), &cmd) == nil && cmd.Help != nil)
	cmd = Command{}
	assert.True(t, parseBytes([]byte("help send"), &cmd) == nil && cmd.Help.HelpTopic == "send")

	cmd = Command{}
	assert.True(t, parseBytes([]byte("import \"more.yaml\" x 100 id 10"), &cmd) == nil && cmd.Import != nil &&
		cmd.Import.File == "more.yaml" && *cmd.Import.X == 100 && cmd.Import.Id.Val == 10)

	cmd = Command{}
	assert.True(t, parseBytes([]byte("kpi"), &cmd) == nil && cmd.Kpi != nil && cmd.Kpi.Save == nil)
	cmd = Command{}
	assert.True(t, parseBytes([]byte("kpi save \"k.json\""), &cmd) == nil && cmd.Kpi.File == "k.json")

	assert.True(t, parseBytes([]byte("log"), &cmd) == nil && cmd.LogLevel != nil)
	assert.True(t, parseBytes([]byte("log debug"), &cmd) == nil && cmd.LogLevel.Level == "debug")
	assert.NotNil(t, parseBytes([]byte("log fatal"), &cmd)) // not supported.

	assert.True(t, parseBytes([]byte("move 1 200 300"), &cmd) == nil && cmd.Move != nil)

	cmd = Command{}
	assert.True(t, parseBytes([]byte("node 1 \"get channel\""), &cmd) == nil && cmd.Node != nil &&
		*cmd.Node.Command == "get channel")
	cmd = Command{}
	assert.True(t, parseBytes([]byte("node 1"), &cmd) == nil && cmd.Node != nil && cmd.Node.Command == nil)

	assert.True(t, parseBytes([]byte("nodes"), &cmd) == nil && cmd.Nodes != nil)
	assert.True(t, parseBytes([]byte("root 4"), &cmd) == nil && cmd.Root.Node.Id == 4)
	assert.True(t, parseBytes([]byte("save \"out.toml\""), &cmd) == nil && cmd.Save.File == "out.toml")

	cmd = Command{}
	assert.True(t, parseBytes([]byte("send 1 2"), &cmd) == nil && cmd.Send != nil && cmd.Send.Dst.Id == 2 &&
		cmd.Send.Payload == nil && cmd.Send.DataSize == nil)
	cmd = Command{}
	assert.True(t, parseBytes([]byte("send 1 bcast \"hello\""), &cmd) == nil && cmd.Send.Bcast != nil &&
		*cmd.Send.Payload == "hello")
	cmd = Command{}
	assert.True(t, parseBytes([]byte("send 3 4 ds 40"), &cmd) == nil && cmd.Send.DataSize.Val == 40)

	cmd = Command{}
	assert.True(t, parseBytes([]byte("set 1 tx_power -5"), &cmd) == nil && cmd.Set != nil &&
		cmd.Set.Value.String() == "-5")
	cmd = Command{}
	assert.True(t, parseBytes([]byte("set 1 promiscuous off"), &cmd) == nil && cmd.Set.Value.String() == "off")
	cmd = Command{}
	assert.True(t, parseBytes([]byte("set 1 address \"ab:cd\""), &cmd) == nil && cmd.Set.Value.String() == "ab:cd")
	assert.NotNil(t, parseBytes([]byte("set 1 channel"), &cmd))

	cmd = Command{}
	assert.True(t, parseBytes([]byte("status"), &cmd) == nil && cmd.Status != nil && cmd.Status.Node == nil)
	assert.True(t, parseBytes([]byte("time"), &cmd) == nil && cmd.Time != nil)
}

func TestContextlessCommandPat(t *testing.T) {
	assert.True(t, isContextlessCommand("exit"))
	assert.True(t, isContextlessCommand("node 1"))
	assert.True(t, isContextlessCommand("!nodes"))
	assert.False(t, isContextlessCommand("nodes"))
	assert.False(t, isContextlessCommand("get channel"))
}

func TestInNodeContext(t *testing.T) {
	assert.Equal(t, "get 3 channel", inNodeContext(3, "get channel"))
	assert.Equal(t, "send 3 2 \"x\"", inNodeContext(3, "send 2 \"x\""))
	assert.Equal(t, "root 3", inNodeContext(3, "root"))
	assert.Equal(t, "counters 3", inNodeContext(3, "counters"))
	assert.Equal(t, "go 1", inNodeContext(3, "go 1"))
	assert.Equal(t, "nodes", inNodeContext(3, "nodes"))
}

func TestOptValues(t *testing.T) {
	b, err := encodeOptValue(netdev.OptChannel, "20")
	assert.Nil(t, err)
	assert.Equal(t, "20", formatOptValue(netdev.OptChannel, b))

	b, err = encodeOptValue(netdev.OptTxPower, "-5")
	assert.Nil(t, err)
	assert.Equal(t, "-5", formatOptValue(netdev.OptTxPower, b))

	b, err = encodeOptValue(netdev.OptAddress, "ab:cd")
	assert.Nil(t, err)
	assert.Equal(t, []byte{0xab, 0xcd}, b)
	assert.Equal(t, "ab:cd", formatOptValue(netdev.OptAddress, b))
	_, err = encodeOptValue(netdev.OptAddress, "abcdef")
	assert.NotNil(t, err)
	b, err = encodeOptValue(netdev.OptAddressLong, "0x0102030405060708")
	assert.Nil(t, err)
	assert.Len(t, b, 8)

	b, err = encodeOptValue(netdev.OptState, "sleep")
	assert.Nil(t, err)
	assert.Equal(t, []byte{byte(netdev.StateSleep)}, b)
	assert.Equal(t, "sleep", formatOptValue(netdev.OptState, b))
	_, err = encodeOptValue(netdev.OptState, "dancing")
	assert.NotNil(t, err)

	b, err = encodeOptValue(netdev.OptPromiscuousMode, "off")
	assert.Nil(t, err)
	assert.Equal(t, "off", formatOptValue(netdev.OptPromiscuousMode, b))
	b, err = encodeOptValue(netdev.OptAutoAck, "1")
	assert.Nil(t, err)
	assert.Equal(t, "on", formatOptValue(netdev.OptAutoAck, b))

	_, err = encodeOptValue(netdev.OptStats, "0")
	assert.NotNil(t, err)
	assert.Equal(t, "0102", formatOptValue(netdev.OptRetrans, []byte{1, 2}))
}

func TestPayloads(t *testing.T) {
	p, err := parsePayload("hello")
	assert.Nil(t, err)
	assert.Equal(t, []byte("hello"), p)
	p, err = parsePayload("0x4142")
	assert.Nil(t, err)
	assert.Equal(t, []byte("AB"), p)
	_, err = parsePayload("0xzz")
	assert.NotNil(t, err)
	assert.Equal(t, []byte("abcdefghijklmnopqrstuvwxyzab"), makePayload(28))
}

func TestNodeSelectorUniqueSorted(t *testing.T) {
	var inp, outp, exp []NodeSelector

	inp = []NodeSelector{{Id: 3}, {Id: 3}, {Id: 1}, {Id: 2}, {Id: 1234}}
	exp = []NodeSelector{{Id: 1}, {Id: 2}, {Id: 3}, {Id: 1234}}
	outp = getUniqueAndSorted(inp)
	assert.Equal(t, exp, outp)

	inp = []NodeSelector{{Id: 42}}
	exp = []NodeSelector{{Id: 42}}
	outp = getUniqueAndSorted(inp)
	assert.Equal(t, exp, outp)

	inp = []NodeSelector{}
	exp = []NodeSelector{}
	outp = getUniqueAndSorted(inp)
	assert.Equal(t, exp, outp)
}

func TestHelp(t *testing.T) {
	help := newHelp()
	general := help.outputGeneralHelp()
	for _, cmd := range []string{"add", "go", "send", "set", "get", "energy", "kpi"} {
		assert.Contains(t, general, cmd)
	}
	assert.Contains(t, general, "*get")
	assert.Contains(t, general, " add")
	assert.Equal(t, len(help.Commands()), len(help.topics))
	assert.Contains(t, help.Commands(), "exit")

	send := help.outputCommandHelp("send")
	assert.Contains(t, send, "Definition:")
	assert.Contains(t, send, "Example:")
	assert.Contains(t, help.outputCommandHelp("nosuchcmd"), "Non-existent")
}

type mockCliHandler struct {
	expectedCmd string
	handleError error
	handleCount int
	t           *testing.T
}

func (hnd *mockCliHandler) HandleCommand(cmd string, output io.Writer) error {
	assert.Equal(hnd.t, hnd.expectedCmd, cmd)
	hnd.handleCount += 1
	return hnd.handleError
}

func (hnd *mockCliHandler) GetPrompt() string {
	return "> "
}

func TestCliStartStop(t *testing.T) {
	Cli = newCliInstance()
	handler := mockCliHandler{
		expectedCmd: "help",
		handleError: nil,
		t:           t,
	}

	opt := DefaultCliOptions()
	r, w, _ := os.Pipe()
	opt.Stdin = r
	err := make(chan error, 1)
	go func() {
		err <- Cli.Run(&handler, opt)
	}()
	<-Cli.Started
	fmt.Fprint(w, "# comment lines are skipped\nhelp\n")
	time.Sleep(time.Millisecond * 500)
	_ = w.Close()
	Cli.Stop()

	assert.Nil(t, <-err)
	assert.Equal(t, 1, handler.handleCount)
}

func TestCliCommandNotDefined(t *testing.T) {
	Cli = newCliInstance()
	handler := mockCliHandler{
		expectedCmd: "xyz",
		handleError: fmt.Errorf("undefined command"),
		t:           t,
	}

	opt := DefaultCliOptions()
	r, w, _ := os.Pipe()
	opt.Stdin = r
	err := make(chan error, 1)
	go func() {
		err <- Cli.Run(&handler, opt)
	}()
	<-Cli.Started
	fmt.Fprint(w, "xyz\n") // unknown command triggers handle-error, which causes CLI exit.

	assert.NotNil(t, <-err)
	assert.Equal(t, 1, handler.handleCount)

	Cli.Stop() // calling Stop() after CLI has already exited.
}
