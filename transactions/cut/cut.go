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

// Package cut contains the generalization policies explored by the anonymization searches.
//
// A Cut maps every leaf of a hierarchy to the node it is published as. Cuts are always consistent:
// when a leaf is published as node N, every other leaf under N is published as N too. This makes
// the set of cuts a lattice whose top element maps everything to the root.
package cut

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/dataset"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/dict"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/hierarchy"
)

// Cut is a generalization policy. It is not safe for concurrent modification.
type Cut struct {
	h              *hierarchy.Hierarchy
	generalization []int
}

// New returns the identity cut of h, which publishes every leaf as itself.
func New(h *hierarchy.Hierarchy) *Cut {
	generalization := make([]int, h.DomainSize())
	for i := range generalization {
		generalization[i] = i
	}
	return &Cut{h: h, generalization: generalization}
}

// FromGeneralization rebuilds a cut from a saved generalization vector.
func FromGeneralization(h *hierarchy.Hierarchy, generalization []int) (*Cut, error) {
	if got, want := len(generalization), h.DomainSize(); got != want {
		return nil, fmt.Errorf("expect %d generalized leaves, got %d", want, got)
	}
	c := New(h)
	for leaf, target := range generalization {
		if err := c.Generalize(leaf, target); err != nil {
			return nil, err
		}
	}
	for leaf, target := range generalization {
		if c.generalization[leaf] != target {
			return nil, fmt.Errorf("leaf %d maps to %d, but %d is required by the other leaves under it", leaf, target, c.generalization[leaf])
		}
	}
	return c, nil
}

// Hierarchy returns the hierarchy the cut is defined over.
func (c *Cut) Hierarchy() *hierarchy.Hierarchy {
	return c.h
}

// Generalization returns a copy of the leaf-to-node mapping.
func (c *Cut) Generalization() []int {
	return append([]int(nil), c.generalization...)
}

// Target returns the node leaf is published as.
func (c *Cut) Target(leaf int) int {
	return c.generalization[leaf]
}

// IsIdentity reports whether no leaf is generalized.
func (c *Cut) IsIdentity() bool {
	for leaf, target := range c.generalization {
		if leaf != target {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of c.
func (c *Cut) Clone() *Cut {
	return &Cut{h: c.h, generalization: c.Generalization()}
}

// Generalize publishes leaf, and every other leaf under target, as target.
//
// Leaves that are already published at target's level or higher are left untouched, so the
// operation never lowers a mapping. It fails if target does not generalize leaf.
func (c *Cut) Generalize(leaf, target int) error {
	if !c.h.IsLeaf(leaf) {
		return fmt.Errorf("expect a leaf, got %d", leaf)
	}
	level := c.h.GeneralizesAtLevel(leaf, target)
	if level < 0 {
		return fmt.Errorf("%d does not generalize leaf %d", target, leaf)
	}
	if level <= c.h.Level(c.generalization[leaf]) {
		return nil
	}
	c.raise(target, level)
	return nil
}

func (c *Cut) raise(target, level int) {
	start, end := c.h.LeafRange(target)
	for leaf := start; leaf <= end; leaf++ {
		if c.h.Level(c.generalization[leaf]) < level {
			c.generalization[leaf] = target
		}
	}
}

// Map returns the node item is published as under c.
//
// Leaves follow the mapping. A generalized node is replaced by the node its leaves are published
// as when that node is higher, and is kept otherwise.
func (c *Cut) Map(item int) int {
	if c.h.IsLeaf(item) {
		return c.generalization[item]
	}
	first := c.h.FirstLeaf(item)
	if first < 0 {
		return item
	}
	if target := c.generalization[first]; c.h.Level(target) > c.h.Level(item) {
		return target
	}
	return item
}

// GeneralizeTransaction maps every item and returns the sorted, duplicate-free result.
func (c *Cut) GeneralizeTransaction(tx dataset.Transaction) dataset.Transaction {
	mapped := make([]int, len(tx))
	for i, item := range tx {
		mapped[i] = c.Map(item)
	}
	return dataset.Normalize(mapped)
}

// GeneralizeDatabase returns a new database with every transaction generalized.
func (c *Cut) GeneralizeDatabase(db dataset.Database) dataset.Database {
	result := make(dataset.Database, len(db))
	for i, tx := range db {
		result[i] = c.GeneralizeTransaction(tx)
	}
	return result
}

// Ancestors returns the cuts one generalization step above c.
//
// Leaves are scanned in order and every maximal run of adjacent leaves whose published nodes share
// the same parent yields one ancestor, in which that parent is published instead.
func (c *Cut) Ancestors() []*Cut {
	var (
		ancestors []*Cut
		seen      = make(map[string]bool)
		root      = c.h.Root()
		n         = len(c.generalization)
	)
	for start := 0; start < n; {
		node := c.generalization[start]
		if node == root {
			start++
			continue
		}
		parent, _ := c.h.Parent(node)
		end := start + 1
		for ; end < n; end++ {
			next := c.generalization[end]
			if next == root {
				break
			}
			if p, _ := c.h.Parent(next); p != parent {
				break
			}
		}

		ancestor := c.Clone()
		ancestor.raise(parent, c.h.Level(parent))
		if key := ancestor.Key(); !seen[key] {
			seen[key] = true
			ancestors = append(ancestors, ancestor)
		}
		start = end
	}
	return ancestors
}

// Merge returns the cut that publishes each leaf at the higher of its levels in c and other.
func (c *Cut) Merge(other *Cut) *Cut {
	merged := c.Clone()
	for leaf, target := range other.generalization {
		if c.h.Level(target) > c.h.Level(merged.generalization[leaf]) {
			merged.generalization[leaf] = target
		}
	}
	return merged
}

// Equal reports whether both cuts publish every leaf identically.
func (c *Cut) Equal(other *Cut) bool {
	if len(c.generalization) != len(other.generalization) {
		return false
	}
	for i, target := range c.generalization {
		if other.generalization[i] != target {
			return false
		}
	}
	return true
}

// Key returns a compact encoding of the generalization vector, usable as a map key.
func (c *Cut) Key() string {
	buf := make([]byte, 0, len(c.generalization)*2)
	tmp := make([]byte, binary.MaxVarintLen64)
	for _, target := range c.generalization {
		n := binary.PutUvarint(tmp, uint64(target))
		buf = append(buf, tmp[:n]...)
	}
	return string(buf)
}

// Mapping returns the published string of every leaf string.
func (c *Cut) Mapping(d *dict.Dict) (map[string]string, error) {
	mapping := make(map[string]string, len(c.generalization))
	for leaf, target := range c.generalization {
		from, ok := d.String(leaf)
		if !ok {
			return nil, fmt.Errorf("leaf %d is not in the dictionary", leaf)
		}
		to, ok := d.String(target)
		if !ok {
			return nil, fmt.Errorf("node %d is not in the dictionary", target)
		}
		mapping[from] = to
	}
	return mapping, nil
}

func (c *Cut) String() string {
	strs := make([]string, len(c.generalization))
	for i, target := range c.generalization {
		strs[i] = fmt.Sprintf("%d->%d", i, target)
	}
	return "[" + strings.Join(strs, " ") + "]"
}
