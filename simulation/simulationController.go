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
	"bytes"
	"context"

	"github.com/pkg/errors"
)

// Controller gives remote clients access to a simulation.
type Controller interface {
	// Status returns the simulation time and the status of every node.
	Status() (uint64, []NodeStatus)
	// Command runs a CLI command and returns its output.
	Command(ctx context.Context, cmd string) (string, error)
}

type simulationController struct {
	sim *Simulation
}

func (sc *simulationController) Status() (uint64, []NodeStatus) {
	return sc.sim.Now(), sc.sim.Status()
}

func (sc *simulationController) Command(ctx context.Context, cmd string) (string, error) {
	runner := sc.sim.GetCmdRunner()
	if runner == nil {
		return "", errors.New("no command runner")
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	var out bytes.Buffer
	err := runner.RunCommand(cmd, &out)
	return out.String(), err
}

type readonlySimulationController struct {
	*simulationController
}

var readonlySimulationError = errors.Errorf("simulation is readonly")

func (r readonlySimulationController) Command(context.Context, string) (string, error) {
	return "", readonlySimulationError
}

func NewSimulationController(sim *Simulation) Controller {
	if !sim.cfg.ReadOnly {
		return &simulationController{sim}
	} else {
		return readonlySimulationController{&simulationController{sim}}
	}
}
