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

package election

import (
	"go.uber.org/atomic"

	"github.com/tochemey/goelect/leader"
)

// Machine is the election state of an engine.
// Every transition is a compare-and-swap.
type Machine struct {
	state *atomic.Int32
}

// NewMachine creates a Machine in the Stopped state
func NewMachine() *Machine {
	return &Machine{state: atomic.NewInt32(int32(leader.Stopped))}
}

// Load returns the current state
func (m *Machine) Load() leader.State {
	return leader.State(m.state.Load())
}

// Store forces the state
func (m *Machine) Store(state leader.State) {
	m.state.Store(int32(state))
}

// Transition moves from one state to another.
// It returns false when the machine was not in the from state.
func (m *Machine) Transition(from, to leader.State) bool {
	return m.state.CompareAndSwap(int32(from), int32(to))
}

// IsLeader reports whether the machine is in the Leader state
func (m *Machine) IsLeader() bool {
	return m.Load() == leader.Leader
}
