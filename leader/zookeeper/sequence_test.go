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

package zookeeper

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSequenceNode(t *testing.T) {
	testCases := []struct {
		name     string
		node     string
		expected int32
		fail     bool
	}{
		{name: "With plain node", node: "candidate-0000000001", expected: 1},
		{name: "With protected node", node: "_c_2c9a9e1bd8f04c1e8ab4a3b2b4d5f3a1-candidate-0000000042", expected: 42},
		{name: "With wrapped sequence", node: "_c_abc-candidate--2147483648", expected: math.MinInt32},
		{name: "With highest sequence", node: "candidate-2147483647", expected: math.MaxInt32},
		{name: "With other node", node: "lock-0000000001", fail: true},
		{name: "With no sequence", node: "candidate-", fail: true},
		{name: "With overflowing sequence", node: "candidate-2147483648", fail: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			node, err := parseSequenceNode(testCase.node)
			if testCase.fail {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.node, node.name)
			assert.Equal(t, testCase.expected, node.seq)
		})
	}
}

func TestParseSequenceNodes(t *testing.T) {
	nodes := parseSequenceNodes([]string{
		"_c_a-candidate-0000000003",
		"readme",
		"_c_b-candidate-0000000001",
	})
	require.Len(t, nodes, 2)
	assert.EqualValues(t, 3, nodes[0].seq)
	assert.EqualValues(t, 1, nodes[1].seq)
}

func TestSortSequenceNodes(t *testing.T) {
	names := func(nodes []sequenceNode) []int32 {
		out := make([]int32, 0, len(nodes))
		for _, node := range nodes {
			out = append(out, node.seq)
		}
		return out
	}

	t.Run("With positive numbers", func(t *testing.T) {
		nodes := []sequenceNode{{seq: 3}, {seq: 1}, {seq: 2}}
		sortSequenceNodes(nodes)
		assert.Equal(t, []int32{1, 2, 3}, names(nodes))
	})
	t.Run("With wrapped numbers", func(t *testing.T) {
		nodes := []sequenceNode{{seq: math.MinInt32 + 1}, {seq: math.MaxInt32}, {seq: math.MinInt32}, {seq: math.MaxInt32 - 1}}
		sortSequenceNodes(nodes)
		assert.Equal(t, []int32{math.MaxInt32 - 1, math.MaxInt32, math.MinInt32, math.MinInt32 + 1}, names(nodes))
	})
	t.Run("With negative numbers only", func(t *testing.T) {
		nodes := []sequenceNode{{seq: -1}, {seq: math.MinInt32}, {seq: -20}}
		sortSequenceNodes(nodes)
		assert.Equal(t, []int32{math.MinInt32, -20, -1}, names(nodes))
	})
	t.Run("With numbers around zero", func(t *testing.T) {
		nodes := []sequenceNode{{seq: 2}, {seq: -2}, {seq: 0}}
		sortSequenceNodes(nodes)
		assert.Equal(t, []int32{-2, 0, 2}, names(nodes))
	})
	t.Run("With a single node", func(t *testing.T) {
		nodes := []sequenceNode{{seq: 7}}
		sortSequenceNodes(nodes)
		assert.Equal(t, []int32{7}, names(nodes))
	})
}
