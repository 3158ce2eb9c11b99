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
	"cmp"
	"errors"
	"math"
	"regexp"
	"slices"
	"strconv"
)

// candidatePrefix is the name of the candidate nodes before the sequence number
const candidatePrefix = "candidate-"

var (
	errNotSequenceNode = errors.New("not a candidate sequence node")
	sequenceExpr       = regexp.MustCompile(`^.*?` + regexp.QuoteMeta(candidatePrefix) + `(-?\d+)$`)
)

// sequenceNode is a candidate node and its sequence number.
// ZooKeeper sequence numbers are signed 32 bits counters that wrap around.
type sequenceNode struct {
	name string
	seq  int32
}

// parseSequenceNode parses the name of a candidate node
func parseSequenceNode(name string) (sequenceNode, error) {
	groups := sequenceExpr.FindStringSubmatch(name)
	if len(groups) < 2 {
		return sequenceNode{}, errNotSequenceNode
	}

	seq, err := strconv.ParseInt(groups[1], 10, 32)
	if err != nil {
		return sequenceNode{}, err
	}
	return sequenceNode{name: name, seq: int32(seq)}, nil
}

// parseSequenceNodes parses the candidate nodes among names, ignoring the others
func parseSequenceNodes(names []string) []sequenceNode {
	nodes := make([]sequenceNode, 0, len(names))
	for _, name := range names {
		if node, err := parseSequenceNode(name); err == nil {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// sortSequenceNodes orders the nodes by creation.
//
// When the sequence numbers straddle the wrap around, that is some are close
// to math.MaxInt32 while others are far below zero, the negative numbers are
// the most recent ones and sort after the positive ones.
func sortSequenceNodes(nodes []sequenceNode) {
	if len(nodes) < 2 {
		return
	}

	lowest, highest := nodes[0].seq, nodes[0].seq
	for _, node := range nodes[1:] {
		lowest = min(lowest, node.seq)
		highest = max(highest, node.seq)
	}

	wrapped := lowest < math.MinInt32/2 && highest >= 0
	key := func(node sequenceNode) int64 {
		seq := int64(node.seq)
		if wrapped && seq < 0 {
			seq += 1 << 32
		}
		return seq
	}

	slices.SortStableFunc(nodes, func(a, b sequenceNode) int {
		return cmp.Compare(key(a), key(b))
	})
}
