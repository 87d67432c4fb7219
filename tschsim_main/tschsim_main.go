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

package tschsim_main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/simonlingoogle/go-simplelogger"

	"github.com/openthread/ot-tsch/cli"
	"github.com/openthread/ot-tsch/logger"
	"github.com/openthread/ot-tsch/monitor"
	"github.com/openthread/ot-tsch/progctx"
	"github.com/openthread/ot-tsch/simulation"
)

type MainArgs struct {
	ConfigFile  string
	Id          string
	OutputDir   string
	RandomSeed  int64
	AutoGo      bool
	Realtime    bool
	ReadOnly    bool
	LogLevel    string
	Pcap        string
	MonitorAddr string
	NoCli       bool
	HistoryFile string
}

var (
	args MainArgs
)

func parseArgs() {
	flag.StringVar(&args.ConfigFile, "config", "", "load the simulation config and its nodes from a YAML (.yaml, .yml) or TOML (.toml) file")
	flag.StringVar(&args.Id, "id", "", "set the run id used to name output files (default: random uuid)")
	flag.StringVar(&args.OutputDir, "out", simulation.DefaultOutputDir, "set the directory for log, pcap, energy and KPI files")
	flag.Int64Var(&args.RandomSeed, "seed", 0, "set the random seed (0: seed from the clock)")
	flag.BoolVar(&args.AutoGo, "autogo", false, "auto go (runs the simulation without issuing 'go' commands)")
	flag.BoolVar(&args.Realtime, "realtime", false, "run nodes on the wall clock instead of virtual time")
	flag.BoolVar(&args.ReadOnly, "readonly", false, "readonly simulation can not be manipulated through the monitor")
	flag.StringVar(&args.LogLevel, "log", simulation.DefaultLogLevel, "set logging level: micro, trace, debug, info, note, warn, error, off")
	flag.StringVar(&args.Pcap, "pcap", simulation.DefaultPcapFormat, "set the pcap format: off, wpan, wpan-tap")
	flag.StringVar(&args.MonitorAddr, "monitor", "localhost:9090", "set the gRPC monitor listen address (empty: no monitor)")
	flag.BoolVar(&args.NoCli, "no-cli", false, "run without the interactive CLI, until a signal is received")
	flag.StringVar(&args.HistoryFile, "history", cli.DefaultHistoryFile(), "set the CLI history file (empty: no history)")

	flag.Parse()
}

// loadConfig reads the config file, if any, and lets flags given on the command line override it.
func loadConfig() (*simulation.Config, error) {
	cfg := simulation.DefaultConfig()
	if args.ConfigFile != "" {
		var err error
		if cfg, err = simulation.LoadConfig(args.ConfigFile); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "id":
			cfg.Id = args.Id
		case "out":
			cfg.OutputDir = args.OutputDir
		case "seed":
			cfg.RandomSeed = args.RandomSeed
		case "autogo":
			cfg.AutoGo = args.AutoGo
		case "realtime":
			cfg.Realtime = args.Realtime
		case "readonly":
			cfg.ReadOnly = args.ReadOnly
		case "log":
			cfg.LogLevel = args.LogLevel
		case "pcap":
			cfg.Pcap = args.Pcap
		}
	})
	return cfg, errors.Wrap(cfg.Validate(), "invalid config")
}

func Main(ctx *progctx.ProgCtx, cliOptions *cli.CliOptions) {
	parseArgs()
	simplelogger.SetLevel(simplelogger.ParseLevel(args.LogLevel))

	cfg, err := loadConfig()
	logger.FatalIfError(err)

	ctx.Defer(func() {
		_ = os.Stdin.Close()
	})
	handleSignals(ctx)

	sim, err := simulation.NewSimulation(ctx, cfg)
	logger.FatalIfError(err)
	rt := cli.NewCmdRunner(ctx, sim)
	ctx.Go("simulation", sim.Run)

	if args.MonitorAddr != "" {
		ms := monitor.NewServer(simulation.NewSimulationController(sim), args.MonitorAddr)
		ctx.Go("monitor", func(c context.Context) {
			if err := ms.Run(c); err != nil {
				logger.Errorf("monitor stopped: %v", err)
			}
		})
	}

	if args.NoCli {
		<-ctx.Done()
	} else {
		if cliOptions == nil {
			cliOptions = cli.DefaultCliOptions()
		}
		if args.HistoryFile != "" {
			cliOptions.HistoryFile = args.HistoryFile
		}
		logger.SetStdoutCallback(cli.Cli)
		err = cli.Cli.Run(rt, cliOptions)
		ctx.Cancel(errors.Wrapf(err, "console exit"))
	}

	logger.Debugf("waiting for tsch-sim to stop gracefully ...")
	ctx.Wait()
}

func handleSignals(ctx *progctx.ProgCtx) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGHUP)
	signal.Ignore(syscall.SIGALRM)

	ctx.WaitAdd("handleSignals", 1)
	go func() {
		defer logger.Debugf("handleSignals exit.")
		defer ctx.WaitDone("handleSignals")

		for {
			select {
			case sig := <-c:
				logger.Infof("signal received: %v", sig)
				ctx.Cancel(nil)
			case <-ctx.Done():
				return
			}
		}
	}()
}
