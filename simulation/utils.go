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
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

func removeAllFiles(globPath string) error {
	files, err := filepath.Glob(globPath)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return err
		}
	}
	return nil
}

func mergeNodeCounters(counters ...NodeCounters) NodeCounters {
	res := make(NodeCounters)
	for _, c := range counters {
		for k, v := range c {
			res[k] = v
		}
	}
	return res
}

// flattenCounters turns the numeric fields of a JSON-tagged stats struct into counters named
// "<prefix>.<field>". Nested structs get their own prefix.
func flattenCounters(prefix string, stats interface{}) (NodeCounters, error) {
	data, err := json.Marshal(stats)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s counters", prefix)
	}
	var fields map[string]interface{}
	if err = json.Unmarshal(data, &fields); err != nil {
		return nil, errors.Wrapf(err, "decoding %s counters", prefix)
	}
	res := make(NodeCounters)
	flattenInto(res, prefix, fields)
	return res, nil
}

func flattenInto(res NodeCounters, prefix string, fields map[string]interface{}) {
	for k, v := range fields {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		switch val := v.(type) {
		case float64:
			if val >= 0 {
				res[name] = uint64(val)
			}
		case map[string]interface{}:
			flattenInto(res, name, val)
		}
	}
}

// formatAddr renders an address as colon separated hex bytes.
func formatAddr(addr []byte) string {
	if len(addr) == 0 {
		return "-"
	}
	parts := make([]string, len(addr))
	for i, b := range addr {
		parts[i] = hex.EncodeToString([]byte{b})
	}
	return strings.Join(parts, ":")
}
