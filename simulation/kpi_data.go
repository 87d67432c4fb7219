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

import . "github.com/openthread/ot-tsch/types"

type KpiTimeUs struct {
	StartTimeUs uint64 `json:"start" yaml:"start"`
	EndTimeUs   uint64 `json:"end" yaml:"end"`
	PeriodUs    uint64 `json:"duration" yaml:"duration"`
}

type KpiTimeSec struct {
	StartTimeSec float64 `json:"start" yaml:"start"`
	EndTimeSec   float64 `json:"end" yaml:"end"`
	PeriodSec    float64 `json:"duration" yaml:"duration"`
}

type KpiChannel struct {
	TxTimeUs     uint64  `json:"tx_time_us" yaml:"tx_time_us"`
	TxPercentage float64 `json:"tx_percent" yaml:"tx_percent"`
	NumFrames    uint64  `json:"tx_frames" yaml:"tx_frames"`
	AvgFps       float64 `json:"tx_avg_fps" yaml:"tx_avg_fps"`
}

type KpiMac struct {
	TxFailPercentage map[NodeId]float64 `json:"tx_fail_percent" yaml:"tx_fail_percent"`
	SyncedNodes      int                `json:"synced_nodes" yaml:"synced_nodes"`
}

type Kpi struct {
	FileTime string                   `json:"created" yaml:"created"`
	RunId    string                   `json:"run_id" yaml:"run_id"`
	Status   string                   `json:"status" yaml:"status"`
	TimeUs   KpiTimeUs                `json:"time_us" yaml:"time_us"`
	TimeSec  KpiTimeSec               `json:"time_sec" yaml:"time_sec"`
	Channels map[ChannelId]KpiChannel `json:"channels" yaml:"channels"`
	Mac      KpiMac                   `json:"mac" yaml:"mac"`
	Counters map[NodeId]NodeCounters  `json:"counters" yaml:"counters"`
}
