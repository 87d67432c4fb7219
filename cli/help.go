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
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"golang.org/x/term"
)

const (
	defaultTermWidth = 80
	minTermWidth     = 40
	helpIndent       = "  "
)

var (
	topicHeaderPattern = regexp.MustCompile(`^###\s+(\S+)`)
	linkTargetPattern  = regexp.MustCompile(`\(#[a-z-]+\)`)
)

//go:embed README.md
var cliHelpFile string

// helpTopic is the reference of one command: a "### <cmd>" section of README.md.
type helpTopic struct {
	name    string
	summary string
	body    []string // paragraphs and code blocks, code lines prefixed with helpIndent
}

// Help renders the command reference embedded from README.md.
type Help struct {
	termWidth uint
	topics    map[string]*helpTopic
	names     []string
}

func newHelp() Help {
	h := Help{
		termWidth: defaultTermWidth,
		topics:    parseHelpTopics(cliHelpFile),
	}
	for name := range h.topics {
		h.names = append(h.names, name)
	}
	sort.Strings(h.names)
	return h
}

// Commands returns the names of all documented commands, sorted.
func (help *Help) Commands() []string {
	return help.names
}

func (help *Help) updateWidth() {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	if width, _, err := term.GetSize(fd); err == nil && width >= minTermWidth {
		help.termWidth = uint(width)
	}
}

// outputGeneralHelp lists every command with its summary. Commands that can run in a node context are
// marked with '*'.
func (help *Help) outputGeneralHelp() string {
	help.updateWidth()
	width := 0
	for _, name := range help.names {
		if len(name) > width {
			width = len(name)
		}
	}

	var sb strings.Builder
	for _, name := range help.names {
		mark := " "
		if nodeCommandsPat.MatchString(name) {
			mark = "*"
		}
		head := fmt.Sprintf("%s%-*s  ", mark, width, name)
		summary := wordwrap.WrapString(help.topics[name].summary, help.wrapWidth(len(head)))
		sb.WriteString(head + strings.ReplaceAll(summary, "\n", "\n"+strings.Repeat(" ", len(head))) + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(wordwrap.WrapString("* runs on the context node after 'node <id>'; 'node 0' or 'exit' leaves "+
		"the context. Use 'help <command>' for the definition and examples of a command.", help.termWidth))
	sb.WriteString("\n")
	return sb.String()
}

func (help *Help) outputCommandHelp(command string) string {
	help.updateWidth()
	topic, ok := help.topics[command]
	if !ok {
		return fmt.Sprintf("%s\n%s(Non-existent command. Use 'help' for a list.)\n", command, helpIndent)
	}

	var sb strings.Builder
	sb.WriteString(topic.name + "\n")
	for _, par := range topic.body {
		if strings.HasPrefix(par, helpIndent) {
			// code is not wrapped
			sb.WriteString(helpIndent + par + "\n")
			continue
		}
		wrapped := wordwrap.WrapString(par, help.wrapWidth(len(helpIndent)))
		for _, line := range strings.Split(wrapped, "\n") {
			sb.WriteString(helpIndent + line + "\n")
		}
	}
	return sb.String()
}

func (help *Help) wrapWidth(indent int) uint {
	if w := int(help.termWidth) - indent; w > minTermWidth/2 {
		return uint(w)
	}
	return minTermWidth / 2
}

// parseHelpTopics splits README.md into one topic per "### <cmd>" header. Text lines are joined into
// paragraphs; ```shell blocks become the definition and ```bash blocks the example.
func parseHelpTopics(md string) map[string]*helpTopic {
	topics := map[string]*helpTopic{}
	var cur *helpTopic
	var par []string
	inCode := false

	flush := func() {
		if cur != nil && len(par) > 0 {
			text := strings.Join(par, " ")
			cur.body = append(cur.body, text)
			if cur.summary == "" {
				cur.summary = firstSentence(text)
			}
		}
		par = nil
	}

	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := topicHeaderPattern.FindStringSubmatch(trimmed); m != nil && !inCode {
			flush()
			cur = &helpTopic{name: m[1]}
			topics[cur.name] = cur
			continue
		}
		if strings.HasPrefix(trimmed, "#") && !inCode {
			flush()
			cur = nil
			continue
		}
		if cur == nil {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "```"):
			flush()
			inCode = !inCode
			switch trimmed {
			case "```shell":
				cur.body = append(cur.body, "Definition:")
			case "```bash":
				cur.body = append(cur.body, "Example:")
			}
		case inCode:
			cur.body = append(cur.body, helpIndent+line)
		case trimmed == "":
			flush()
		default:
			par = append(par, markdownUnquote(trimmed))
		}
	}
	flush()
	return topics
}

func firstSentence(text string) string {
	if idx := strings.Index(text, ". "); idx > 0 {
		return text[:idx+1]
	}
	return text
}

func markdownUnquote(md string) string {
	md = strings.ReplaceAll(md, "\\", "")
	md = strings.ReplaceAll(md, "`", "'")
	return linkTargetPattern.ReplaceAllString(md, "")
}
