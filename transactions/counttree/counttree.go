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

// Package counttree counts the supports of all itemsets of bounded size in a transactional database.
//
// The tree is a trie over sorted itemsets. Transactions are expanded with the ancestors of their
// items before counting, so the tree also holds the support of every generalization of the
// itemsets that appear in the data.
package counttree

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/cut"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/dataset"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/hierarchy"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/subsetiterator"
)

const rootIndex = 0

// node is an entry of the node arena. The root holds no item.
type node struct {
	value  int
	count  int
	parent int
	depth  int
	// children are kept sorted by ascending count.
	children []int
}

// CountTree holds the supports of the itemsets with at most M items.
type CountTree struct {
	m     int
	h     *hierarchy.Hierarchy
	nodes []node
}

// New builds the tree of all itemsets of size 1..m in the expanded transactions of db.
//
// Itemsets holding an item together with one of its ancestors are skipped.
func New(ctx context.Context, m int, db dataset.Database, h *hierarchy.Hierarchy) (*CountTree, error) {
	if m <= 0 {
		return nil, fmt.Errorf("expect positive itemset size, got %d", m)
	}
	t := &CountTree{
		m:     m,
		h:     h,
		nodes: []node{{value: -1, parent: -1}},
	}
	for _, tx := range db {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := t.addTransaction(tx); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *CountTree) addTransaction(tx dataset.Transaction) error {
	expanded := t.h.Expand(tx)
	size := t.m
	if len(expanded) < size {
		size = len(expanded)
	}
	// Smaller subsets go first so that every prefix of an itemset is already counted.
	for k := 1; k <= size; k++ {
		it, err := subsetiterator.New(expanded, k)
		if err != nil {
			return err
		}
		for it.HasNext() {
			itemset := it.Next()
			if t.h.ContainsGeneralizedItems(itemset) {
				continue
			}
			t.insert(itemset)
		}
	}
	return nil
}

// insert increments the count of a sorted itemset, creating the missing nodes on its path.
func (t *CountTree) insert(itemset []int) {
	cur := rootIndex
	for _, item := range itemset {
		child := t.child(cur, item)
		if child < 0 {
			child = len(t.nodes)
			t.nodes = append(t.nodes, node{value: item, parent: cur, depth: t.nodes[cur].depth + 1})
			// A new node has the smallest count of its siblings.
			siblings := t.nodes[cur].children
			siblings = append(siblings, 0)
			copy(siblings[1:], siblings)
			siblings[0] = child
			t.nodes[cur].children = siblings
		}
		cur = child
	}
	t.nodes[cur].count++
	t.bubble(cur)
}

// bubble restores the ascending order of the siblings of n after its count was incremented.
func (t *CountTree) bubble(n int) {
	siblings := t.nodes[t.nodes[n].parent].children
	i := 0
	for siblings[i] != n {
		i++
	}
	for i+1 < len(siblings) && t.nodes[siblings[i+1]].count < t.nodes[n].count {
		siblings[i], siblings[i+1] = siblings[i+1], siblings[i]
		i++
	}
}

func (t *CountTree) child(n, item int) int {
	for _, c := range t.nodes[n].children {
		if t.nodes[c].value == item {
			return c
		}
	}
	return -1
}

// Add inserts one occurrence of an itemset. It fails if the itemset is empty, larger than M, or
// holds an item together with one of its ancestors.
func (t *CountTree) Add(itemset []int) error {
	if len(itemset) == 0 || len(itemset) > t.m {
		return fmt.Errorf("expect between 1 and %d items, got %d", t.m, len(itemset))
	}
	for _, item := range itemset {
		if !t.h.Contains(item) || item == t.h.Root() {
			return fmt.Errorf("expect non-root items of the hierarchy, got %d", item)
		}
	}
	if t.h.ContainsGeneralizedItems(itemset) {
		return fmt.Errorf("itemset %v contains an item and its generalization", itemset)
	}
	sorted := dataset.Normalize(itemset)
	if len(sorted) != len(itemset) {
		return fmt.Errorf("itemset %v contains duplicates", itemset)
	}
	for i := 1; i < len(sorted); i++ {
		if t.find(sorted[:i]) < 0 {
			return fmt.Errorf("prefix %v of itemset %v has not been counted", sorted[:i], itemset)
		}
	}
	t.insert(sorted)
	return nil
}

// M returns the maximal itemset size.
func (t *CountTree) M() int {
	return t.m
}

// Len returns the number of itemsets in the tree.
func (t *CountTree) Len() int {
	return len(t.nodes) - 1
}

// IsKMAnonymous reports whether every itemset in the tree is supported by at least k transactions.
func (t *CountTree) IsKMAnonymous(k int) bool {
	for _, n := range t.nodes[1:] {
		if n.count < k {
			return false
		}
	}
	return true
}

// ItemFrequencies returns the support of every single item in the tree.
func (t *CountTree) ItemFrequencies() map[int]int {
	freq := make(map[int]int, len(t.nodes[rootIndex].children))
	for _, c := range t.nodes[rootIndex].children {
		freq[t.nodes[c].value] = t.nodes[c].count
	}
	return freq
}

func (t *CountTree) find(sorted []int) int {
	cur := rootIndex
	for _, item := range sorted {
		if cur = t.child(cur, item); cur < 0 {
			return -1
		}
	}
	return cur
}

// Support returns the number of transactions containing itemset, or 0 if it was never counted.
func (t *CountTree) Support(itemset []int) int {
	n := t.find(dataset.Normalize(itemset))
	if n < 0 {
		return 0
	}
	return t.nodes[n].count
}

// ProvidesKAnonymity reports whether itemset, once generalized by candidate, is supported by at
// least k transactions.
//
// candidate must be at least as general as the cut the tree was built under. Items published as
// the root carry no information and are dropped; an itemset generalized entirely to the root is
// always anonymous.
func (t *CountTree) ProvidesKAnonymity(itemset []int, candidate *cut.Cut, k int) bool {
	root := t.h.Root()
	var generalized []int
	for _, item := range itemset {
		if mapped := candidate.Map(item); mapped != root {
			generalized = append(generalized, mapped)
		}
	}
	if len(generalized) == 0 {
		return true
	}
	return t.Support(generalized) >= k
}

// ErrStop can be returned by a Visitor to end a walk early without an error.
var ErrStop = errors.New("stop walking")

// Visitor is called for every node of a walk with the itemset on the path from the root, its
// support, and whether the node has no children. The itemset must not be retained.
type Visitor func(itemset []int, count int, leaf bool) error

// Walk visits the tree depth first, children in ascending order of support.
func (t *CountTree) Walk(ctx context.Context, visit Visitor) error {
	path := make([]int, 0, t.m)
	var walk func(n int) error
	walk = func(n int) error {
		for _, c := range t.nodes[n].children {
			if err := ctx.Err(); err != nil {
				return err
			}
			path = append(path, t.nodes[c].value)
			if err := visit(path, t.nodes[c].count, len(t.nodes[c].children) == 0); err != nil {
				return err
			}
			if err := walk(c); err != nil {
				return err
			}
			path = path[:len(path)-1]
		}
		return nil
	}
	if err := walk(rootIndex); err != nil && !errors.Is(err, ErrStop) {
		return err
	}
	return nil
}

// Itemsets returns every itemset of the tree with its support, sorted by size and then by items.
func (t *CountTree) Itemsets() ([][]int, []int) {
	type entry struct {
		items []int
		count int
	}
	entries := make([]entry, 0, t.Len())
	// The visitor never fails and the context is never cancelled, so Walk cannot return an error.
	_ = t.Walk(context.Background(), func(itemset []int, count int, _ bool) error {
		entries = append(entries, entry{items: append([]int(nil), itemset...), count: count})
		return nil
	})
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].items, entries[j].items
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		for x := range a {
			if a[x] != b[x] {
				return a[x] < b[x]
			}
		}
		return false
	})
	itemsets := make([][]int, len(entries))
	counts := make([]int, len(entries))
	for i, e := range entries {
		itemsets[i], counts[i] = e.items, e.count
	}
	return itemsets, counts
}
