/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package testutil

import (
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/goelect/leader"
)

// Contender pairs an initiator with the identifier of its candidate
type Contender struct {
	ID        string
	Initiator leader.Initiator
}

// SampleLeaders polls the contenders for the given duration and fails the
// test when more than one of them reports the leadership at the same sample.
// It returns the identifiers of every leader observed.
func SampleLeaders(t *testing.T, duration time.Duration, contenders ...Contender) mapset.Set[string] {
	t.Helper()
	observed := mapset.NewSet[string]()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		sample := mapset.NewSet[string]()
		for _, contender := range contenders {
			if contender.Initiator.IsLeader() {
				sample.Add(contender.ID)
			}
		}
		require.LessOrEqual(t, sample.Cardinality(), 1, "leaders=%v", sample.ToSlice())
		observed = observed.Union(sample)
		time.Sleep(20 * time.Millisecond)
	}
	return observed
}

// Leader returns the contender currently reporting the leadership, nil when none does
func Leader(contenders ...Contender) *Contender {
	for i := range contenders {
		if contenders[i].Initiator.IsLeader() {
			return &contenders[i]
		}
	}
	return nil
}
