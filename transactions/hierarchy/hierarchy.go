// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hierarchy contains the generalization hierarchy over the items of a transactional dataset.
//
// Leaf items occupy the IDs [0, DomainSize()) and every leaf has a chain of ancestors of the same
// length ending at a shared root. Each generalized node covers a contiguous range of leaves.
package hierarchy

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/dict"
)

// span describes the leaves covered by a generalized node, with both ends inclusive.
type span struct {
	level      int
	start, end int
}

// Hierarchy is immutable after construction and safe for concurrent use.
type Hierarchy struct {
	// paths[leaf][0] is the leaf itself and paths[leaf][height] is the root.
	paths  [][]int
	spans  map[int]span
	root   int
	height int

	// chains caches the ancestor chains of generalized nodes.
	chains sync.Map
}

// NewGenHierarchy builds a hierarchy from a raw integer table.
//
// Each row is the full chain of one leaf, from the leaf to the root. The leaves of the table must
// be exactly the IDs [0, len(table)), generalized values must use larger IDs, all rows must have
// the same length and end in the same root, and the leaves under any generalized node must be
// contiguous.
func NewGenHierarchy(table [][]int) (*Hierarchy, error) {
	if len(table) == 0 {
		return nil, errors.New("expect nonempty hierarchy table")
	}
	width := len(table[0])
	if width < 2 {
		return nil, fmt.Errorf("expect at least 2 columns in the hierarchy table, got %d", width)
	}
	domainSize := len(table)
	h := &Hierarchy{
		paths:  make([][]int, domainSize),
		spans:  make(map[int]span),
		root:   table[0][width-1],
		height: width - 1,
	}

	parents := make(map[int]int)
	for i, row := range table {
		if len(row) != width {
			return nil, fmt.Errorf("expect %d columns in row %d, got %d", width, i, len(row))
		}
		leaf := row[0]
		if leaf < 0 || leaf >= domainSize {
			return nil, fmt.Errorf("leaf %d in row %d is out of range [0, %d)", leaf, i, domainSize)
		}
		if h.paths[leaf] != nil {
			return nil, fmt.Errorf("leaf %d appears more than once", leaf)
		}
		if row[width-1] != h.root {
			return nil, fmt.Errorf("expect root %d in row %d, got %d", h.root, i, row[width-1])
		}
		for level := 1; level < width; level++ {
			node := row[level]
			if node < domainSize {
				return nil, fmt.Errorf("generalized value %d at level %d of row %d collides with a leaf ID", node, level, i)
			}
			s, ok := h.spans[node]
			if !ok {
				h.spans[node] = span{level: level, start: leaf, end: leaf}
			} else {
				if s.level != level {
					return nil, fmt.Errorf("value %d appears at levels %d and %d", node, s.level, level)
				}
				if leaf < s.start {
					s.start = leaf
				}
				if leaf > s.end {
					s.end = leaf
				}
				h.spans[node] = s
			}
			if level+1 < width {
				parent := row[level+1]
				if p, ok := parents[node]; ok && p != parent {
					return nil, fmt.Errorf("value %d generalizes to both %d and %d", node, p, parent)
				}
				parents[node] = parent
			}
		}
		h.paths[leaf] = append([]int(nil), row...)
	}

	counts := make(map[int]int)
	for _, path := range h.paths {
		for _, node := range path[1:] {
			counts[node]++
		}
	}
	for node, s := range h.spans {
		if got, want := s.end-s.start+1, counts[node]; got != want {
			return nil, fmt.Errorf("leaves under %d are not contiguous: range [%d, %d] holds %d leaves", node, s.start, s.end, want)
		}
	}
	return h, nil
}

// New builds a hierarchy from a table of strings and returns it with the Dict used to encode it.
//
// Rows are ordered by their path from the root so that siblings become adjacent, and leaves are
// encoded first so they get the IDs [0, len(rows)).
func New(rows [][]string) (*Hierarchy, *dict.Dict, error) {
	if len(rows) == 0 {
		return nil, nil, errors.New("expect nonempty hierarchy")
	}
	width := len(rows[0])
	if width < 2 {
		return nil, nil, fmt.Errorf("expect at least 2 columns in the hierarchy, got %d", width)
	}
	for i, row := range rows {
		if len(row) != width {
			return nil, nil, fmt.Errorf("expect %d columns in row %d, got %d", width, i, len(row))
		}
	}

	sorted := make([][]string, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		for c := width - 1; c >= 0; c-- {
			if sorted[i][c] != sorted[j][c] {
				return sorted[i][c] < sorted[j][c]
			}
		}
		return false
	})

	d := dict.New()
	for _, row := range sorted {
		if _, ok := d.Representation(row[0]); ok {
			return nil, nil, fmt.Errorf("leaf %q appears more than once", row[0])
		}
		d.Encode(row[0])
	}
	table := make([][]int, len(sorted))
	for i := range sorted {
		table[i] = make([]int, width)
		table[i][0] = i
	}
	for level := 1; level < width; level++ {
		for i, row := range sorted {
			table[i][level] = d.Encode(row[level])
		}
	}

	h, err := NewGenHierarchy(table)
	if err != nil {
		return nil, nil, err
	}
	return h, d, nil
}

// DomainSize returns the number of leaf items.
func (h *Hierarchy) DomainSize() int {
	return len(h.paths)
}

// Height returns the number of generalization steps from a leaf to the root.
func (h *Hierarchy) Height() int {
	return h.height
}

// Root returns the item that generalizes every leaf.
func (h *Hierarchy) Root() int {
	return h.root
}

// IsLeaf reports whether item is a domain value.
func (h *Hierarchy) IsLeaf(item int) bool {
	return item >= 0 && item < len(h.paths)
}

// Contains reports whether item is a leaf or a generalized value of the hierarchy.
func (h *Hierarchy) Contains(item int) bool {
	if h.IsLeaf(item) {
		return true
	}
	_, ok := h.spans[item]
	return ok
}

// Level returns 0 for leaves, the generalization level for other nodes, and -1 for unknown items.
func (h *Hierarchy) Level(item int) int {
	if h.IsLeaf(item) {
		return 0
	}
	if s, ok := h.spans[item]; ok {
		return s.level
	}
	return -1
}

// LeafRange returns the first and last leaf under item, or (-1, -1) for unknown items.
func (h *Hierarchy) LeafRange(item int) (start, end int) {
	if h.IsLeaf(item) {
		return item, item
	}
	if s, ok := h.spans[item]; ok {
		return s.start, s.end
	}
	return -1, -1
}

// FirstLeaf returns the smallest leaf under item, or -1 for unknown items.
func (h *Hierarchy) FirstLeaf(item int) int {
	start, _ := h.LeafRange(item)
	return start
}

// LeafCount returns the number of leaves generalized by item.
func (h *Hierarchy) LeafCount(item int) int {
	start, end := h.LeafRange(item)
	if start < 0 {
		return 0
	}
	return end - start + 1
}

// ToRoot returns the ancestor chain of item, starting with item itself and ending at the root.
//
// The returned slice is shared and must not be modified. Chains of generalized nodes are computed
// on first use and cached.
func (h *Hierarchy) ToRoot(item int) []int {
	if h.IsLeaf(item) {
		return h.paths[item]
	}
	s, ok := h.spans[item]
	if !ok {
		return nil
	}

	if chain, ok := h.chains.Load(item); ok {
		return chain.([]int)
	}
	chain, _ := h.chains.LoadOrStore(item, h.paths[s.start][s.level:])
	return chain.([]int)
}

// Parent returns the direct generalization of item. The root has no parent.
func (h *Hierarchy) Parent(item int) (int, bool) {
	chain := h.ToRoot(item)
	if len(chain) < 2 {
		return 0, false
	}
	return chain[1], true
}

// GeneralizesAtLevel returns the level of candidate if it is item or one of its ancestors, and -1
// otherwise.
func (h *Hierarchy) GeneralizesAtLevel(item, candidate int) int {
	level, candidateLevel := h.Level(item), h.Level(candidate)
	if level < 0 || candidateLevel < level {
		return -1
	}
	if item == candidate {
		return level
	}
	if candidateLevel == level {
		return -1
	}
	// Nodes on one level cover disjoint ranges, so range containment means ancestry.
	start, end := h.LeafRange(item)
	candidateStart, candidateEnd := h.LeafRange(candidate)
	if candidateStart > start || end > candidateEnd {
		return -1
	}
	return candidateLevel
}

// Generalizes reports whether candidate is a proper ancestor of item.
func (h *Hierarchy) Generalizes(item, candidate int) bool {
	return item != candidate && h.GeneralizesAtLevel(item, candidate) >= 0
}

// ContainsGeneralizedItems reports whether two items of the set are in an ancestor/descendant
// relation. Such an itemset repeats the same information and is never counted.
func (h *Hierarchy) ContainsGeneralizedItems(items []int) bool {
	for i, a := range items {
		for _, b := range items[i+1:] {
			if h.Generalizes(a, b) || h.Generalizes(b, a) {
				return true
			}
		}
	}
	return false
}

// Expand returns the sorted union of the items of a transaction and all of their proper ancestors,
// excluding the root.
func (h *Hierarchy) Expand(transaction []int) []int {
	seen := make(map[int]bool)
	var expanded []int
	for _, item := range transaction {
		for _, node := range h.ToRoot(item) {
			if node == h.root || seen[node] {
				continue
			}
			seen[node] = true
			expanded = append(expanded, node)
		}
	}
	sort.Ints(expanded)
	return expanded
}
