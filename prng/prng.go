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

// Package prng provides the seeded random generators of a simulation run, so that a run can be repeated
// exactly given the same root seed.
package prng

import (
	"math/rand"
	"sync"
	"time"
)

type RandomSeed int64

var (
	lock                 sync.Mutex
	cpuIdRandGenerator   *rand.Rand
	mediumSeedGenerator  *rand.Rand
	unitRandGenerator    *rand.Rand
	clockDriftGenerator  *rand.Rand
	rootSeedOfCurrentRun int64
)

func init() {
	Init(1)
}

// Init initializes the prng package, either with a fixed PRNG seed (rootSeed != 0) or a 'random' time-based PRNG
// seed (if rootSeed == 0).
func Init(rootSeed int64) {
	lock.Lock()
	defer lock.Unlock()

	if rootSeed == 0 {
		rootSeed = time.Now().UnixNano()
	}
	rootSeedOfCurrentRun = rootSeed
	r := rand.New(rand.NewSource(rootSeed))

	cpuIdRandGenerator = rand.New(rand.NewSource(rootSeed + r.Int63n(1e10)))
	mediumSeedGenerator = rand.New(rand.NewSource(rootSeed + r.Int63n(1e10)))
	unitRandGenerator = rand.New(rand.NewSource(rootSeed + r.Int63n(1e10)))
	clockDriftGenerator = rand.New(rand.NewSource(rootSeed + r.Int63n(1e10)))
}

// RootSeed returns the effective root seed of the current run.
func RootSeed() int64 {
	lock.Lock()
	defer lock.Unlock()
	return rootSeedOfCurrentRun
}

// NewCpuId generates the 8-byte unique CPU id of a newly created simulated node.
func NewCpuId() [8]byte {
	lock.Lock()
	defer lock.Unlock()

	var id [8]byte
	_, _ = cpuIdRandGenerator.Read(id[:])
	return id
}

// NewMediumRandomSeed generates unique random-seeds for newly created radio media.
func NewMediumRandomSeed() RandomSeed {
	lock.Lock()
	defer lock.Unlock()
	return RandomSeed(mediumSeedGenerator.Int63())
}

// NewClockDrift generates a random crystal drift in ppm, uniform in [-maxPpm, +maxPpm].
func NewClockDrift(maxPpm float64) float64 {
	lock.Lock()
	defer lock.Unlock()
	return (clockDriftGenerator.Float64()*2 - 1) * maxPpm
}

// NewUnitRandom generates a new random unit [0, 1] float, which can be used as a random probability.
func NewUnitRandom() float64 {
	lock.Lock()
	defer lock.Unlock()
	return unitRandGenerator.Float64()
}
