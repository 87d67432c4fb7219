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

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/openthread/ot-tsch/types"
)

// NodeLogger is a node-specific log object. Levels and output file can be set per individual MAC instance.
// Entries are buffered until the node's clock time is known, then flushed with DisplayPendingLogEntries.
type NodeLogger struct {
	Id           NodeId
	fileLevel    Level
	displayLevel Level

	mu            sync.Mutex
	logFile       *os.File
	logFileName   string
	isFileEnabled bool
	entries       chan logEntry
	timestampUs   uint64
}

var (
	nodeLogs   = make(map[NodeId]*NodeLogger, 10)
	nodeLogsMu = sync.RWMutex{}
)

// GetNodeLogger gets the NodeLogger instance for the given ( run ID, node config ) and configures it.
func GetNodeLogger(outputDir string, runId string, cfg *NodeConfig) *NodeLogger {
	nodeLogsMu.Lock()
	defer nodeLogsMu.Unlock()

	nodeid := cfg.ID
	nl, ok := nodeLogs[nodeid]
	if !ok {
		nl = &NodeLogger{
			Id:            nodeid,
			fileLevel:     ErrorLevel,
			displayLevel:  ErrorLevel,
			entries:       make(chan logEntry, 1000),
			logFileName:   getLogFileName(outputDir, runId, nodeid),
			isFileEnabled: cfg.NodeLogFile,
		}
		nodeLogs[nodeid] = nl
		if nl.isFileEnabled {
			nl.openLogFile(os.O_CREATE | os.O_TRUNC | os.O_WRONLY)
		}
	} else {
		nl.mu.Lock()
		nl.isFileEnabled = cfg.NodeLogFile
		if nl.isFileEnabled && nl.logFile == nil {
			nl.openLogFile(os.O_CREATE | os.O_APPEND | os.O_WRONLY)
		}
		nl.mu.Unlock()
	}
	return nl
}

// findNodeLogger returns the registered NodeLogger of the node, or nil.
func findNodeLogger(nodeid NodeId) *NodeLogger {
	nodeLogsMu.RLock()
	defer nodeLogsMu.RUnlock()
	return nodeLogs[nodeid]
}

// DropNodeLogger closes and forgets the node's logger, e.g. when the node is deleted.
func DropNodeLogger(nodeid NodeId) {
	nodeLogsMu.Lock()
	nl := nodeLogs[nodeid]
	delete(nodeLogs, nodeid)
	nodeLogsMu.Unlock()
	if nl != nil {
		nl.Close()
	}
}

func getLogFileName(outputPath string, runId string, nodeId NodeId) string {
	return filepath.Join(outputPath, fmt.Sprintf("%s_%d.log", runId, nodeId))
}

func (nl *NodeLogger) openLogFile(flags int) {
	AssertTrue(nl.logFile == nil)

	var err error
	nl.logFile, err = os.OpenFile(nl.logFileName, flags, 0664)
	if err != nil {
		Errorf("%sopening node log file %s failed: %+v", GetNodeName(nl.Id), nl.logFileName, err)
		nl.logFile = nil
		nl.isFileEnabled = false
		return
	}

	header := fmt.Sprintf("#\n# TSCH MAC log for %s Created %s\n", GetNodeName(nl.Id),
		time.Now().Format(time.RFC3339)) +
		"# NodeTimeUs  Message"
	_ = nl.writeToLogFile(header)
}

// NodeLogf logs a formatted log message for the specific nodeid; correct NodeLogger object will be auto-found.
// Messages for unknown nodes go to the global logger.
func NodeLogf(nodeid NodeId, level Level, format string, args ...interface{}) {
	nl := findNodeLogger(nodeid)
	if nl == nil {
		Logf(level, GetNodeName(nodeid)+format, args)
		return
	}
	nl.mu.Lock()
	skip := level > nl.fileLevel && level > nl.displayLevel
	nl.mu.Unlock()
	if skip {
		return
	}
	entry := logEntry{
		NodeId: nodeid,
		Level:  level,
		Msg:    getMessage(format, args),
	}
	select {
	case nl.entries <- entry:
		break
	default:
		nl.DisplayPendingLogEntries(nl.Timestamp())
		nl.entries <- entry
	}
}

func (nl *NodeLogger) SetFileLevel(level Level) {
	nl.mu.Lock()
	nl.fileLevel = level
	nl.mu.Unlock()
}

func (nl *NodeLogger) SetDisplayLevel(level Level) {
	nl.mu.Lock()
	nl.displayLevel = level
	nl.mu.Unlock()
}

func (nl *NodeLogger) DisplayLevel() Level {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	return nl.displayLevel
}

// Timestamp returns the node time (us) used in the last flush.
func (nl *NodeLogger) Timestamp() uint64 {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	return nl.timestampUs
}

func (nl *NodeLogger) Log(level Level, msg string) {
	NodeLogf(nl.Id, level, msg)
}

func (nl *NodeLogger) Tracef(format string, args ...interface{}) {
	NodeLogf(nl.Id, TraceLevel, format, args...)
}

func (nl *NodeLogger) Debugf(format string, args ...interface{}) {
	NodeLogf(nl.Id, DebugLevel, format, args...)
}

func (nl *NodeLogger) Infof(format string, args ...interface{}) {
	NodeLogf(nl.Id, InfoLevel, format, args...)
}

func (nl *NodeLogger) Warnf(format string, args ...interface{}) {
	NodeLogf(nl.Id, WarnLevel, format, args...)
}

func (nl *NodeLogger) Errorf(format string, args ...interface{}) {
	NodeLogf(nl.Id, ErrorLevel, format, args...)
}

func (nl *NodeLogger) Error(err error) {
	if err == nil {
		return
	}
	NodeLogf(nl.Id, ErrorLevel, "%v", err)
}

// writeToLogFile must be called with nl.mu held.
func (nl *NodeLogger) writeToLogFile(line string) error {
	_, err := nl.logFile.WriteString(line + "\n")
	if err != nil {
		_ = nl.logFile.Close()
		nl.logFile = nil
		nl.isFileEnabled = false
		Errorf("%scouldn't write to node log file (%s), closing it", GetNodeName(nl.Id), nl.logFileName)
	}
	return err
}

// DisplayPendingLogEntries displays all pending log entries for the node, using given node time ts.
// This includes writing any pending entries to the node log file.
func (nl *NodeLogger) DisplayPendingLogEntries(ts uint64) {
	nl.mu.Lock()
	defer nl.mu.Unlock()

	nl.timestampUs = ts
	tsStr := fmt.Sprintf("%11d ", ts)
	nodeStr := GetNodeName(nl.Id)
	for {
		select {
		case entry := <-nl.entries:
			isSaveEntry := nl.fileLevel >= entry.Level
			isDisplayEntry := nl.displayLevel >= entry.Level
			logStr := tsStr + entry.Msg
			if (isDisplayEntry || isSaveEntry) && nl.isFileEnabled {
				if logStr[len(logStr)-1:] == "\n" {
					_ = nl.writeToLogFile(logStr[:len(logStr)-1])
				} else {
					_ = nl.writeToLogFile(logStr)
				}
			}
			if isDisplayEntry {
				logAlways(entry.Level, nodeStr+logStr)
			}
		default:
			return
		}
	}
}

// IsFileEnabled returns true if logging to file is currently enabled, false if not.
func (nl *NodeLogger) IsFileEnabled() bool {
	nl.mu.Lock()
	defer nl.mu.Unlock()
	return nl.isFileEnabled
}

// FileName returns the path of the node log file, whether enabled or not.
func (nl *NodeLogger) FileName() string {
	return nl.logFileName
}

// Close closes the node log file and also saves/displays any pending entries.
func (nl *NodeLogger) Close() {
	nl.DisplayPendingLogEntries(nl.Timestamp())

	nl.mu.Lock()
	defer nl.mu.Unlock()
	if nl.logFile != nil {
		_ = nl.logFile.Close()
		nl.logFile = nil
	}
}
