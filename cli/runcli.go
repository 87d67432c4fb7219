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
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/openthread/ot-tsch/logger"
)

const (
	historyFileName     = ".tsch-sim_history"
	defaultHistoryLimit = 500
)

// CliHandler executes the command lines read by the CLI.
type CliHandler interface {
	HandleCommand(cmd string, output io.Writer) error
	GetPrompt() string
}

// ContextHandler is a CliHandler with a node context. Ctrl-C on an empty line leaves the context
// before it ends the CLI.
type ContextHandler interface {
	CliHandler
	LeaveContext() bool
}

// CompletingHandler is a CliHandler that offers tab completion.
type CompletingHandler interface {
	CliHandler
	Completer() readline.AutoCompleter
}

type CliOptions struct {
	EchoInput    bool
	HistoryFile  string
	HistoryLimit int
	Stdin        *os.File
	Stdout       *os.File
}

func DefaultCliOptions() *CliOptions {
	return &CliOptions{
		HistoryLimit: defaultHistoryLimit,
	}
}

// DefaultHistoryFile returns the history file in the user's home directory, or "" if there is no home.
func DefaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, historyFileName)
}

// CliInstance reads command lines from stdin and hands them to a CliHandler. Cli is the instance used by
// tsch-sim; log output refreshes its prompt through OnStdout.
type CliInstance struct {
	Started          chan struct{}
	Options          *CliOptions
	readlineInstance *readline.Instance
	waitCliClosed    chan struct{}
}

var Cli = newCliInstance()

func newCliInstance() *CliInstance {
	return &CliInstance{
		Started:       make(chan struct{}),
		waitCliClosed: make(chan struct{}),
	}
}

func getCliOptions(options *CliOptions) *CliOptions {
	if options == nil {
		options = DefaultCliOptions()
	}
	if options.Stdin == nil {
		options.Stdin = os.Stdin
	}
	if options.Stdout == nil {
		options.Stdout = os.Stdout
	}
	return options
}

func (cli *CliInstance) RestorePrompt() {
	if cli.readlineInstance != nil {
		cli.readlineInstance.Refresh()
	}
}

// OnStdout is called by the logger after it wrote to the terminal.
func (cli *CliInstance) OnStdout() {
	cli.RestorePrompt()
}

// Stop ends a running CLI and waits for Run to return. It must not be called from a command handler.
func (cli *CliInstance) Stop() {
	<-cli.Started
	// readline.Instance.Close can block while Readline waits for runes
	// (https://github.com/chzyer/readline/issues/217). An ETX ends the pending read, closing stdin ends
	// the next one.
	_, _ = cli.Options.Stdin.WriteString("\003\n")
	_ = cli.Options.Stdin.Close()
	logger.Tracef("Waiting for CLI to stop ...")
	<-cli.waitCliClosed
	logger.Tracef("CLI wait-for-stop done.")
}

// Run reads and executes command lines until stdin ends, Ctrl-C is given on an empty line outside a node
// context, or the handler returns an error.
func (cli *CliInstance) Run(handler CliHandler, options *CliOptions) error {
	defer logger.Debugf("CLI exit.")
	defer close(cli.waitCliClosed)

	started := false
	defer func() {
		if !started {
			close(cli.Started)
		}
	}()

	cli.Options = getCliOptions(options)
	restore, err := saveTerminalState(cli.Options.Stdin, cli.Options.Stdout)
	if err != nil {
		return err
	}
	defer restore()

	l, err := readline.NewEx(cli.readlineConfig(handler))
	if err != nil {
		return err
	}
	defer func() {
		_ = l.Close()
	}()
	cli.readlineInstance = l
	started = true
	close(cli.Started)

	return cli.readLoop(l, handler)
}

func (cli *CliInstance) readlineConfig(handler CliHandler) *readline.Config {
	cfg := &readline.Config{
		Prompt:            handler.GetPrompt(),
		HistoryFile:       cli.Options.HistoryFile,
		HistoryLimit:      cli.Options.HistoryLimit,
		HistorySearchFold: true,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		Stdin:             cli.Options.Stdin,
		Stdout:            cli.Options.Stdout,
		FuncFilterInputRune: func(r rune) (rune, bool) {
			// no job control: Ctrl-Z would stop the simulation with the terminal in raw mode
			return r, r != readline.CharCtrlZ
		},
	}
	if ch, ok := handler.(CompletingHandler); ok {
		cfg.AutoComplete = ch.Completer()
	}
	return cfg
}

func (cli *CliInstance) readLoop(l *readline.Instance, handler CliHandler) error {
	for {
		// the prompt follows the node context
		l.SetPrompt(handler.GetPrompt())
		line, err := l.Readline()

		switch {
		case len(line) > 0 && line[0] == readline.CharInterrupt:
			return nil // sent by Stop
		case errors.Is(err, readline.ErrInterrupt):
			if len(line) > 0 {
				continue // Ctrl-C while editing drops the line
			}
			if ch, ok := handler.(ContextHandler); ok && ch.LeaveContext() {
				continue
			}
			return nil
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if err = cli.handleLine(handler, line, l.Stdout()); err != nil {
			return err
		}
	}
}

func (cli *CliInstance) handleLine(handler CliHandler, line string, output io.Writer) error {
	stdout := cli.Options.Stdout
	defer func() {
		_ = stdout.Sync()
	}()

	if cli.Options.EchoInput {
		if _, err := stdout.WriteString(handler.GetPrompt() + line + "\n"); err != nil {
			return err
		}
	}
	cmd := strings.TrimSpace(line)
	if cmd == "" || strings.HasPrefix(cmd, "#") {
		return nil
	}
	return handler.HandleCommand(cmd, output)
}

// saveTerminalState returns a function that puts back the modes of those files that are terminals.
func saveTerminalState(files ...*os.File) (func(), error) {
	type saved struct {
		fd    int
		state *readline.State
	}
	var states []saved
	for _, f := range files {
		fd := int(f.Fd())
		if !readline.IsTerminal(fd) {
			continue
		}
		st, err := readline.GetState(fd)
		if err != nil {
			return nil, err
		}
		states = append(states, saved{fd, st})
	}
	return func() {
		for i := len(states) - 1; i >= 0; i-- {
			_ = readline.Restore(states[i].fd, states[i].state)
		}
	}, nil
}
