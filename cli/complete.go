// Copyright (c) 2023, The OTNS Authors.
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
	"strconv"

	"github.com/chzyer/readline"

	"github.com/openthread/ot-tsch/netdev"
	. "github.com/openthread/ot-tsch/types"
)

var logLevelNames = []string{"micro", "trace", "debug", "info", "note", "warn", "error", "off"}

// LeaveContext leaves the node context, if one is entered.
func (rt *CmdRunner) LeaveContext() bool {
	return rt.enterNodeContext(InvalidNodeId)
}

// Completer completes command names, node ids, option names and log levels.
func (rt *CmdRunner) Completer() readline.AutoCompleter {
	nodeIds := readline.PcItemDynamic(rt.nodeIdNames)
	optNames := func(string) []string { return netdev.OptNames() }

	var items []readline.PrefixCompleterInterface
	for _, name := range rt.help.Commands() {
		var args []readline.PrefixCompleterInterface
		switch name {
		case "counters", "del", "move", "node", "root", "status":
			args = append(args, nodeIds)
		case "get", "set":
			args = append(args,
				readline.PcItemDynamic(rt.nodeIdNames, readline.PcItemDynamic(optNames)),
				readline.PcItemDynamic(optNames))
		case "send":
			args = append(args, readline.PcItemDynamic(rt.nodeIdNames,
				readline.PcItemDynamic(rt.nodeIdNames), readline.PcItem("bcast")))
		case "log":
			for _, lv := range logLevelNames {
				args = append(args, readline.PcItem(lv))
			}
		case "help":
			for _, topic := range rt.help.Commands() {
				args = append(args, readline.PcItem(topic))
			}
		}
		items = append(items, readline.PcItem(name, args...))
	}
	return readline.NewPrefixCompleter(items...)
}

func (rt *CmdRunner) nodeIdNames(string) []string {
	ids := rt.sim.GetNodes()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = strconv.Itoa(id)
	}
	return names
}
