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
	"fmt"
	"regexp"
	"sort"
	"strings"

	. "github.com/openthread/ot-tsch/types"
)

var (
	contextLessCommandsPat = regexp.MustCompile(`^(exit|node|!.+)\b`)
	nodeCommandsPat        = regexp.MustCompile(`^(get|set|send|root|counters|status)\b`)
)

func isContextlessCommand(line string) bool {
	return contextLessCommandsPat.MatchString(line)
}

// inNodeContext inserts the context node id as first argument of the per-node commands, so that
// 'get channel' typed in the context of node 3 runs as 'get 3 channel'.
func inNodeContext(nodeid NodeId, line string) string {
	loc := nodeCommandsPat.FindStringIndex(line)
	if loc == nil {
		return line
	}
	return fmt.Sprintf("%s %d%s", line[:loc[1]], nodeid, line[loc[1]:])
}

// getUniqueAndSorted returns a unique-ID'd and sorted version of []NodeSelector.
func getUniqueAndSorted(input []NodeSelector) []NodeSelector {
	m := make(map[int]NodeSelector, len(input))
	for _, ns := range input {
		m[ns.Id] = ns
	}

	u := make([]int, 0, len(m))
	for id := range m {
		u = append(u, id)
	}
	sort.Ints(u)

	n := make([]NodeSelector, 0, len(u))
	for _, id := range u {
		n = append(n, m[id])
	}
	return n
}

// parsePayload returns the bytes of a send command payload. A payload written as hex with a 0x prefix
// is sent as raw bytes.
func parsePayload(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		return []byte(s), nil
	}
	return parseHexBytes(s[2:], -1)
}

// makePayload builds a test payload of the given size.
func makePayload(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}
