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
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/openthread/ot-tsch/logger"
	. "github.com/openthread/ot-tsch/types"
)

// ExportNodes exports config/position info of all nodes, sorted by id.
func (s *Simulation) ExportNodes() []NodeConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]NodeConfig, 0, len(s.nodes))
	s.visitLocked(func(node *Node) {
		cfg := node.cfg
		rn := node.dev.RadioNode()
		cfg.X, cfg.Y, cfg.Z = int(rn.X), int(rn.Y), int(rn.Z)
		cfg.IsRoot = node.mac.Identity().IsRoot()
		cfg.IsAutoPlaced = false
		res = append(res, cfg)
	})
	return res
}

// ExportConfig returns the simulation's config with the current nodes, so that the network can be
// recreated from it.
func (s *Simulation) ExportConfig() Config {
	cfg := *s.cfg
	cfg.Id = ""
	cfg.Nodes = s.ExportNodes()
	return cfg
}

// SaveConfig writes the exported config to filename, as YAML or TOML depending on the extension.
func (s *Simulation) SaveConfig(filename string) error {
	cfg := s.ExportConfig()
	var data []byte
	var err error
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(&cfg)
	case ".toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(&cfg)
		data = buf.Bytes()
	default:
		return errors.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	if err = os.WriteFile(filename, data, 0644); err != nil {
		return errors.Wrapf(err, "writing config %s", filename)
	}
	logger.Infof("saved %d nodes to %s", len(cfg.Nodes), filename)
	return nil
}

// ImportNodes adds the nodes of a config file to the running simulation. Ids and positions are offset by
// baseId and (dx, dy).
func (s *Simulation) ImportNodes(filename string, baseId NodeId, dx, dy int) error {
	cfg, err := LoadConfig(filename)
	if err != nil {
		return err
	}
	allOk := true
	for _, node := range cfg.Nodes {
		nodeCfg := node
		if nodeCfg.ID > 0 {
			nodeCfg.ID += baseId
		}
		nodeCfg.X += dx
		nodeCfg.Y += dy
		nodeCfg.IsAutoPlaced = false
		if _, err := s.AddNode(&nodeCfg); err != nil {
			logger.Warnf("Warn: %s", err)
			allOk = false // continue trying to import remaining nodes
		}
	}
	if !allOk {
		return errors.Errorf("not all nodes could be imported - see error log above")
	}
	return nil
}
