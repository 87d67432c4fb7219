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

// Package cli implements the tsch-sim CLI. It parses and executes CLI commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/openthread/ot-tsch/logger"
	"github.com/openthread/ot-tsch/netdev"
	"github.com/openthread/ot-tsch/progctx"
	"github.com/openthread/ot-tsch/simulation"
	. "github.com/openthread/ot-tsch/types"
)

const (
	Prompt = "> "

	defaultPayloadSize = 10
)

type CommandContext struct {
	context.Context
	*Command
	rt     *CmdRunner
	err    error
	output io.Writer
}

func (cc *CommandContext) outputStr(msg string) {
	_, _ = fmt.Fprint(cc.output, msg)
}

func (cc *CommandContext) outputf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cc.output, format, args...)
}

func (cc *CommandContext) errorf(format string, args ...interface{}) {
	cc.error(errors.Errorf(format, args...))
}

func (cc *CommandContext) error(err error) {
	if err != nil {
		if cc.err != nil { // if previous error, print it now and keep the last.
			cc.outputf("Error: %s\n", cc.err)
		}
		cc.err = err
	}
}

// Err returns the last error that occurred during command execution.
func (cc *CommandContext) Err() error {
	return cc.err
}

func (cc *CommandContext) outputItemsAsYaml(items interface{}) {
	var itemsYaml yaml.Node

	err := itemsYaml.Encode(items)
	logger.PanicIfError(err)

	for _, content := range itemsYaml.Content {
		content.Style = yaml.FlowStyle
	}

	data, err := yaml.Marshal(&itemsYaml)
	logger.PanicIfError(err)

	_, err = cc.output.Write(data)
	logger.PanicIfError(err)
}

type CmdRunner struct {
	sim           *simulation.Simulation
	ctx           *progctx.ProgCtx
	contextNodeId NodeId
	help          Help
}

func NewCmdRunner(ctx *progctx.ProgCtx, sim *simulation.Simulation) *CmdRunner {
	cr := &CmdRunner{
		ctx:           ctx,
		sim:           sim,
		contextNodeId: InvalidNodeId,
		help:          newHelp(),
	}
	sim.SetCmdRunner(cr)
	return cr
}

func (rt *CmdRunner) RunCommand(cmdline string, output io.Writer) error {
	if rt.ctx.Err() == nil {
		// if character '!' is used to invoke no-node (global) context, remove it.
		if len(cmdline) > 1 && cmdline[0] == '!' {
			cmdline = cmdline[1:]
		}
		cmd := Command{}

		if err := parseBytes([]byte(cmdline), &cmd); err != nil {
			if _, err := fmt.Fprintf(output, "Error: %v\n", err); err != nil {
				return err
			}
		} else {
			rt.execute(&cmd, output)
		}
	}
	return rt.ctx.Err()
}

func (rt *CmdRunner) HandleCommand(cmdline string, output io.Writer) error {
	if rt.contextNodeId != InvalidNodeId && !isContextlessCommand(cmdline) {
		cmdline = inNodeContext(rt.contextNodeId, cmdline)
	}
	return rt.RunCommand(cmdline, output)
}

func (rt *CmdRunner) GetPrompt() string {
	if rt.contextNodeId == InvalidNodeId {
		return Prompt
	} else {
		return fmt.Sprintf("node %d%s", rt.contextNodeId, Prompt)
	}
}

func (rt *CmdRunner) GetContextNodeId() NodeId {
	return rt.contextNodeId
}

func (rt *CmdRunner) execute(cmd *Command, output io.Writer) {
	cc := &CommandContext{
		Context: rt.ctx,
		Command: cmd,
		rt:      rt,
		output:  output,
	}

	defer func() {
		if cc.Err() != nil {
			cc.outputf("Error: %v\n", cc.Err())
		} else {
			cc.outputf("Done\n")
		}
	}()

	defer func() {
		rerr := recover()

		if rerr != nil {
			if err, ok := rerr.(error); ok {
				cc.err = errors.Wrapf(err, "panic: %v", err)
			} else {
				cc.err = errors.Errorf("panic: %v", rerr)
			}
		}
	}()

	if cmd.Move != nil {
		rt.executeMoveNode(cc, cmd.Move)
	} else if cmd.Go != nil {
		rt.executeGo(cc, cmd.Go)
	} else if cmd.Nodes != nil {
		rt.executeLsNodes(cc, cmd.Nodes)
	} else if cmd.Status != nil {
		rt.executeStatus(cc, cmd.Status)
	} else if cmd.Add != nil {
		rt.executeAddNode(cc, cmd.Add)
	} else if cmd.Del != nil {
		rt.executeDelNode(cc, cmd.Del)
	} else if cmd.Node != nil {
		rt.executeNode(cc, cmd.Node)
	} else if cmd.Root != nil {
		rt.executeRoot(cc, cmd.Root)
	} else if cmd.Send != nil {
		rt.executeSend(cc, cmd.Send)
	} else if cmd.Get != nil {
		rt.executeGet(cc, cmd.Get)
	} else if cmd.Set != nil {
		rt.executeSet(cc, cmd.Set)
	} else if cmd.Counters != nil {
		rt.executeCounters(cc, cmd.Counters)
	} else if cmd.Energy != nil {
		rt.executeEnergy(cc, cmd.Energy)
	} else if cmd.Kpi != nil {
		rt.executeKpi(cc, cmd.Kpi)
	} else if cmd.Save != nil {
		rt.executeSave(cc, cmd.Save)
	} else if cmd.Import != nil {
		rt.executeImport(cc, cmd.Import)
	} else if cmd.LogLevel != nil {
		rt.executeLogLevel(cc, cmd.LogLevel)
	} else if cmd.Time != nil {
		rt.executeTime(cc, cmd.Time)
	} else if cmd.Exit != nil {
		rt.executeExit(cc, cmd.Exit)
	} else if cmd.Help != nil {
		rt.executeHelp(cc, cmd.Help)
	} else {
		logger.Panicf("unimplemented command: %#v", cmd)
	}
}

func (rt *CmdRunner) executeGo(cc *CommandContext, cmd *GoCmd) {
	if cmd.Ever != nil {
		for { // run forever but stop if rt.ctx.Err indicates "done"
			cc.err = <-rt.sim.Go(time.Hour)
			if rt.ctx.Err() != nil || cc.err != nil {
				break
			}
		}
		return
	}

	timeDurToGo, err := time.ParseDuration(cmd.Time)
	if err != nil {
		timeDurToGo, err = time.ParseDuration(cmd.Time + "s") // try parsing as seconds
		if err != nil {
			cc.errorf("could not parse time duration: %s", cmd.Time)
			return
		}
	}
	cc.error(<-rt.sim.Go(timeDurToGo))
}

func (rt *CmdRunner) getNode(sel NodeSelector) (*simulation.Node, error) {
	node := rt.sim.Node(sel.Id)
	if node == nil {
		return nil, errors.Errorf("node %d not found", sel.Id)
	}
	return node, nil
}

func (rt *CmdRunner) executeAddNode(cc *CommandContext, cmd *AddCmd) {
	logger.Debugf("Add: %#v", *cmd)
	cfg := rt.sim.GetConfig().NewNodeConfig // copy current new-node config, and modify it.

	cfg.IsRoot = cmd.Root != nil
	if cmd.X != nil {
		cfg.X = *cmd.X
		cfg.IsAutoPlaced = false
	}
	if cmd.Y != nil {
		cfg.Y = *cmd.Y
		cfg.IsAutoPlaced = false
	}
	if cmd.Id != nil {
		cfg.ID = cmd.Id.Val
	}
	if cmd.RadioRange != nil {
		cfg.RadioRange = cmd.RadioRange.Val
	}
	if cmd.Drift != nil {
		cfg.ClockDrift = cmd.Drift.Ppm()
	}

	node, err := rt.sim.AddNode(&cfg)
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputf("%d\n", node.Id)
}

func (rt *CmdRunner) executeDelNode(cc *CommandContext, cmd *DelCmd) {
	for _, sel := range getUniqueAndSorted(cmd.Nodes) {
		if rt.sim.Node(sel.Id) == nil {
			cc.outputf("Warn: node %d not found, skipping\n", sel.Id)
			continue
		}
		if err := rt.sim.DeleteNode(sel.Id); err != nil {
			cc.errorf("node %d, %+v", sel.Id, err)
			continue
		}
		if rt.contextNodeId == sel.Id {
			rt.enterNodeContext(InvalidNodeId)
		}
	}
}

func (rt *CmdRunner) executeExit(cc *CommandContext, cmd *ExitCmd) {
	if rt.enterNodeContext(InvalidNodeId) {
		return
	}
	rt.sim.Stop()
	rt.ctx.Cancel("exit")
}

func (rt *CmdRunner) executeNode(cc *CommandContext, cmd *NodeCmd) {
	if cmd.Node.Id == InvalidNodeId && rt.contextNodeId != InvalidNodeId {
		// 'node 0' leaves the node context.
		rt.enterNodeContext(InvalidNodeId)
		return
	}
	if _, err := rt.getNode(cmd.Node); err != nil {
		cc.error(err)
		return
	}

	if cmd.Command == nil {
		rt.enterNodeContext(cmd.Node.Id)
		return
	}

	line := inNodeContext(cmd.Node.Id, *cmd.Command)
	sub := Command{}
	if err := parseBytes([]byte(line), &sub); err != nil {
		cc.error(err)
		return
	}
	if sub.Node != nil || sub.Exit != nil {
		cc.errorf("command not available for a node: %s", *cmd.Command)
		return
	}

	// the sub-command reports through its own context; only its error is kept here.
	subCtx := &CommandContext{Context: cc.Context, Command: &sub, rt: rt, output: cc.output}
	rt.dispatchNodeCommand(subCtx)
	cc.error(subCtx.Err())
}

func (rt *CmdRunner) dispatchNodeCommand(cc *CommandContext) {
	switch {
	case cc.Get != nil:
		rt.executeGet(cc, cc.Get)
	case cc.Set != nil:
		rt.executeSet(cc, cc.Set)
	case cc.Send != nil:
		rt.executeSend(cc, cc.Send)
	case cc.Root != nil:
		rt.executeRoot(cc, cc.Root)
	case cc.Counters != nil:
		rt.executeCounters(cc, cc.Counters)
	case cc.Status != nil:
		rt.executeStatus(cc, cc.Status)
	default:
		cc.errorf("command not available for a node")
	}
}

func (rt *CmdRunner) executeMoveNode(cc *CommandContext, cmd *MoveCmd) {
	cc.error(rt.sim.MoveNodeTo(cmd.Target.Id, cmd.X, cmd.Y))
}

func (rt *CmdRunner) executeLsNodes(cc *CommandContext, cmd *NodesCmd) {
	for _, st := range rt.sim.Status() {
		role := "node"
		if st.Root {
			role = "root"
		}
		cc.outputf("id=%d\tshort=%s\tx=%d\ty=%d\trole=%s\tsynced=%v\tasn=%d\tjp=%d\n",
			st.Id, st.Short, st.X, st.Y, role, st.Synced, st.Asn, st.JoinPri)
	}
}

func (rt *CmdRunner) executeStatus(cc *CommandContext, cmd *StatusCmd) {
	if cmd.Node == nil {
		cc.outputItemsAsYaml(rt.sim.Status())
		return
	}
	node, err := rt.getNode(*cmd.Node)
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputItemsAsYaml(node.Status())
}

func (rt *CmdRunner) executeRoot(cc *CommandContext, cmd *RootCmd) {
	root, err := rt.sim.ToggleRoot(cmd.Node.Id)
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputf("%v\n", root)
}

func (rt *CmdRunner) executeSend(cc *CommandContext, cmd *SendCmd) {
	payload := makePayload(defaultPayloadSize)
	if cmd.Payload != nil {
		var err error
		if payload, err = parsePayload(*cmd.Payload); err != nil {
			cc.error(err)
			return
		}
	} else if cmd.DataSize != nil {
		payload = makePayload(cmd.DataSize.Val)
	}

	dst := BroadcastNodeId
	if cmd.Dst != nil {
		dst = cmd.Dst.Id
	}
	cc.error(rt.sim.Send(cc, cmd.Src.Id, dst, payload))
}

func (rt *CmdRunner) executeGet(cc *CommandContext, cmd *GetCmd) {
	node, err := rt.getNode(cmd.Node)
	if err != nil {
		cc.error(err)
		return
	}
	opt, err := netdev.ParseOpt(cmd.Opt)
	if err != nil {
		cc.error(err)
		return
	}
	ack := node.Get(cc, opt)
	if !ack.Code.IsOk() {
		cc.errorf("get %s: %s", opt, ack.Code)
		return
	}
	cc.outputf("%s\n", formatOptValue(opt, ack.Data))
}

func (rt *CmdRunner) executeSet(cc *CommandContext, cmd *SetCmd) {
	node, err := rt.getNode(cmd.Node)
	if err != nil {
		cc.error(err)
		return
	}
	opt, err := netdev.ParseOpt(cmd.Opt)
	if err != nil {
		cc.error(err)
		return
	}
	value, err := encodeOptValue(opt, cmd.Value.String())
	if err != nil {
		cc.error(err)
		return
	}
	if ack := node.Set(cc, opt, value); !ack.Code.IsOk() {
		cc.errorf("set %s: %s", opt, ack.Code)
	}
}

func (rt *CmdRunner) executeCounters(cc *CommandContext, cmd *CountersCmd) {
	nodeid := InvalidNodeId
	if cmd.Node != nil {
		nodeid = cmd.Node.Id
	}
	counters, err := rt.sim.Counters(nodeid)
	if err != nil {
		cc.error(err)
		return
	}
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cc.outputf("%-40s %v\n", name, counters[name])
	}
}

func (rt *CmdRunner) executeEnergy(cc *CommandContext, cmd *EnergyCmd) {
	ea := rt.sim.GetEnergyAnalyser()
	now := rt.sim.Now()
	if cmd.Save != nil {
		cc.error(ea.SaveEnergyDataToFile(rt.sim.GetConfig().OutputDir, cmd.Name, now))
		return
	}
	cc.outputf("%-6s %12s %12s %12s %12s %12s\n", "id", "disabled", "sleep", "tx", "rx", "total (mJ)")
	for _, c := range ea.Snapshot(now) {
		cc.outputf("%-6d %12.3f %12.3f %12.3f %12.3f %12.3f\n", c.NodeId, c.Disabled, c.Sleep, c.Tx, c.Rx,
			c.Total())
	}
}

func (rt *CmdRunner) executeKpi(cc *CommandContext, cmd *KpiCmd) {
	if cmd.Save == nil {
		cc.outputItemsAsYaml(rt.sim.Kpi())
		return
	}
	cc.error(rt.sim.SaveKpiFile(cmd.File))
}

func (rt *CmdRunner) executeSave(cc *CommandContext, cmd *SaveCmd) {
	cc.error(rt.sim.SaveConfig(cmd.File))
}

func (rt *CmdRunner) executeImport(cc *CommandContext, cmd *ImportCmd) {
	baseId, dx, dy := 0, 0, 0
	if cmd.Id != nil {
		baseId = cmd.Id.Val
	}
	if cmd.X != nil {
		dx = *cmd.X
	}
	if cmd.Y != nil {
		dy = *cmd.Y
	}
	cc.error(rt.sim.ImportNodes(cmd.File, baseId, dx, dy))
}

func (rt *CmdRunner) executeLogLevel(cc *CommandContext, cmd *LogLevelCmd) {
	if cmd.Level == "" {
		cc.outputf("%v\n", logger.GetLevelString(logger.GetLevel()))
		return
	}
	level, err := logger.ParseLevelString(cmd.Level)
	if err != nil {
		cc.error(err)
		return
	}
	logger.SetLevel(level)
}

func (rt *CmdRunner) executeTime(cc *CommandContext, cmd *TimeCmd) {
	cc.outputf("%d\n", rt.sim.Now())
}

func (rt *CmdRunner) executeHelp(cc *CommandContext, cmd *HelpCmd) {
	if len(cmd.HelpTopic) > 0 {
		cc.outputStr(rt.help.outputCommandHelp(cmd.HelpTopic))
	} else {
		cc.outputStr(rt.help.outputGeneralHelp())
	}
}

func (rt *CmdRunner) enterNodeContext(nodeid NodeId) bool {
	logger.AssertTrue(nodeid == InvalidNodeId || nodeid > 0)
	if rt.contextNodeId == nodeid {
		return false
	}

	rt.contextNodeId = nodeid
	return true
}
