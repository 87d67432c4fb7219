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

package simradio

import (
	"math"

	. "github.com/openthread/ot-tsch/types"
)

// DbValue is a power or gain in dB or dBm.
type DbValue = float64

const (
	RssiInvalid       DbValue = 127.0
	RssiMax           DbValue = 126.0
	RssiMin           DbValue = -126.0
	RssiMinusInfinity DbValue = -127.0

	DefaultRxSensitivity DbValue = -100.0
	defaultMeterPerUnit          = 0.10
)

// RadioNode is the physical placement and RF properties of a transceiver.
type RadioNode struct {
	Id NodeId

	// TxPower is the transmit power in dBm.
	TxPower DbValue

	// RxSensitivity is the weakest signal in dBm the receiver decodes.
	RxSensitivity DbValue

	// RadioRange is the radio range in distance units; frames never reach further.
	RadioRange float64

	// Node position in distance units.
	X, Y, Z float64
}

func newRadioNode(nodeid NodeId, cfg *NodeConfig) *RadioNode {
	return &RadioNode{
		Id:            nodeid,
		TxPower:       DbValue(cfg.TxPower),
		RxSensitivity: DefaultRxSensitivity,
		RadioRange:    float64(cfg.RadioRange),
		X:             float64(cfg.X),
		Y:             float64(cfg.Y),
		Z:             float64(cfg.Z),
	}
}

// GetDistanceTo gets the distance to another RadioNode (in distance units).
func (rn *RadioNode) GetDistanceTo(other *RadioNode) (dist float64) {
	dx := other.X - rn.X
	dy := other.Y - rn.Y
	dz := other.Z - rn.Z
	dist = math.Sqrt(dx*dx + dy*dy + dz*dz)
	return
}

// pathLossIndoor is the ITU-T indoor path loss in dB at 2.4 GHz for a distance in meters.
func pathLossIndoor(distMeters float64) DbValue {
	const exponentDb = 30.0
	fixedLossDb := math.Round((20.0*math.Log10(2400)-28.0)*100) / 100
	if distMeters < 0.1 {
		distMeters = 0.1
	}
	return fixedLossDb + exponentDb*math.Log10(distMeters)
}

// rssiAt computes the received signal strength at dst of a transmission by src.
func rssiAt(src, dst *RadioNode, meterPerUnit float64) DbValue {
	return src.TxPower - pathLossIndoor(src.GetDistanceTo(dst)*meterPerUnit)
}

// reachable is the ideal disc model: in range and above the receiver's sensitivity.
func reachable(src, dst *RadioNode, rssi DbValue) bool {
	if src == dst || src.GetDistanceTo(dst) > src.RadioRange {
		return false
	}
	return rssi >= RssiMin && rssi >= dst.RxSensitivity
}

// clipRssi clips the RSSI value to int8 range for the driver.
func clipRssi(rssi DbValue) int8 {
	if rssi > RssiMax {
		rssi = RssiMax
	} else if rssi < RssiMin {
		rssi = RssiMinusInfinity
	}
	return int8(math.Round(rssi))
}

// lqiOf maps an RSSI to a link quality indicator, linear between the sensitivity (0) and 60 dB above (255).
func lqiOf(rssi DbValue, sensitivity DbValue) uint8 {
	q := (rssi - sensitivity) * 255.0 / 60.0
	if q < 0 {
		return 0
	}
	if q > 255 {
		return 255
	}
	return uint8(q)
}
