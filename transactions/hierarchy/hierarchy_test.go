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

package hierarchy

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

var exampleRows = [][]string{
	{"b2", "B", "ALL"},
	{"a1", "A", "ALL"},
	{"b1", "B", "ALL"},
	{"a2", "A", "ALL"},
}

func mustNew(t *testing.T, rows [][]string) *Hierarchy {
	t.Helper()
	h, _, err := New(rows)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestNewEncodesLeavesFirst(t *testing.T) {
	h, d, err := New(exampleRows)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := h.DomainSize(), 4; got != want {
		t.Fatalf("expect domain size %d, got %d", want, got)
	}
	if got, want := h.Height(), 2; got != want {
		t.Errorf("expect height %d, got %d", want, got)
	}

	var leaves []string
	for i := 0; i < h.DomainSize(); i++ {
		s, ok := d.String(i)
		if !ok {
			t.Fatalf("missing leaf %d", i)
		}
		leaves = append(leaves, s)
	}
	if diff := cmp.Diff([]string{"a1", "a2", "b1", "b2"}, leaves); diff != "" {
		t.Errorf("leaf order mismatch (-want +got):\n%s", diff)
	}

	for _, row := range exampleRows {
		leaf, _ := d.Representation(row[0])
		var got []string
		for _, node := range h.ToRoot(leaf) {
			s, _ := d.String(node)
			got = append(got, s)
		}
		if diff := cmp.Diff(row, got); diff != "" {
			t.Errorf("chain of %q mismatch (-want +got):\n%s", row[0], diff)
		}
	}
}

func TestChainProperties(t *testing.T) {
	h := mustNew(t, [][]string{
		{"x1", "X", "P", "ALL"},
		{"x2", "X", "P", "ALL"},
		{"y", "Y", "P", "ALL"},
		{"z1", "Z", "Q", "ALL"},
		{"z2", "Z", "Q", "ALL"},
		{"w", "W", "Q", "ALL"},
	})
	for leaf := 0; leaf < h.DomainSize(); leaf++ {
		chain := h.ToRoot(leaf)
		if chain[0] != leaf {
			t.Errorf("expect chain of %d to start with itself, got %v", leaf, chain)
		}
		if got := chain[len(chain)-1]; got != h.Root() {
			t.Errorf("expect chain of %d to end at root %d, got %d", leaf, h.Root(), got)
		}
		for i := 1; i < len(chain); i++ {
			if h.LeafCount(chain[i]) < h.LeafCount(chain[i-1]) {
				t.Errorf("leaf count decreases along chain %v at %d", chain, i)
			}
			if got := h.Level(chain[i]); got != i {
				t.Errorf("expect level %d for %d, got %d", i, chain[i], got)
			}
		}
		for i, node := range chain {
			if diff := cmp.Diff(chain[i:], h.ToRoot(node)); diff != "" {
				t.Errorf("chain of node %d mismatch (-want +got):\n%s", node, diff)
			}
		}
	}
	if got, want := h.LeafCount(h.Root()), h.DomainSize(); got != want {
		t.Errorf("expect root to cover %d leaves, got %d", want, got)
	}
}

func TestGeneralizes(t *testing.T) {
	h, d, err := New(exampleRows)
	if err != nil {
		t.Fatal(err)
	}
	id := func(s string) int {
		v, ok := d.Representation(s)
		if !ok {
			t.Fatalf("unknown value %q", s)
		}
		return v
	}

	for _, tc := range []struct {
		item, candidate string
		level           int
		generalizes     bool
	}{
		{item: "a1", candidate: "a1", level: 0, generalizes: false},
		{item: "a1", candidate: "A", level: 1, generalizes: true},
		{item: "a1", candidate: "ALL", level: 2, generalizes: true},
		{item: "a1", candidate: "B", level: -1, generalizes: false},
		{item: "a1", candidate: "a2", level: -1, generalizes: false},
		{item: "A", candidate: "ALL", level: 2, generalizes: true},
		{item: "A", candidate: "a1", level: -1, generalizes: false},
		{item: "ALL", candidate: "A", level: -1, generalizes: false},
	} {
		if got := h.GeneralizesAtLevel(id(tc.item), id(tc.candidate)); got != tc.level {
			t.Errorf("GeneralizesAtLevel(%s, %s): expect %d, got %d", tc.item, tc.candidate, tc.level, got)
		}
		if got := h.Generalizes(id(tc.item), id(tc.candidate)); got != tc.generalizes {
			t.Errorf("Generalizes(%s, %s): expect %t, got %t", tc.item, tc.candidate, tc.generalizes, got)
		}
	}

	if !h.ContainsGeneralizedItems([]int{id("b1"), id("a1"), id("A")}) {
		t.Error("expect {b1, a1, A} to contain a generalized pair")
	}
	if h.ContainsGeneralizedItems([]int{id("a1"), id("B"), id("a2")}) {
		t.Error("expect {a1, B, a2} to be free of generalized pairs")
	}
}

func TestExpand(t *testing.T) {
	h, d, err := New(exampleRows)
	if err != nil {
		t.Fatal(err)
	}
	var tx []int
	for _, s := range []string{"b1", "a2", "b2"} {
		v, _ := d.Representation(s)
		tx = append(tx, v)
	}
	var got []string
	for _, item := range h.Expand(tx) {
		s, _ := d.String(item)
		got = append(got, s)
	}
	want := []string{"a2", "b1", "b2", "A", "B"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("expanded transaction mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidTables(t *testing.T) {
	for _, tc := range []struct {
		desc  string
		table [][]int
	}{
		{desc: "empty", table: nil},
		{desc: "single column", table: [][]int{{0}, {1}}},
		{desc: "not rectangular", table: [][]int{{0, 2, 3}, {1, 3}}},
		{desc: "leaf out of range", table: [][]int{{0, 3}, {5, 3}}},
		{desc: "duplicate leaf", table: [][]int{{0, 3}, {0, 3}}},
		{desc: "different roots", table: [][]int{{0, 2, 3}, {1, 2, 4}}},
		{desc: "generalization collides with leaf", table: [][]int{{0, 1, 2}, {1, 2, 2}}},
		{desc: "value on two levels", table: [][]int{{0, 4, 5}, {1, 5, 5}}},
		{desc: "diverging chain", table: [][]int{{0, 4, 6, 8}, {1, 4, 7, 8}}},
		{desc: "non-contiguous leaves", table: [][]int{{0, 4, 6}, {1, 5, 6}, {2, 4, 6}, {3, 5, 6}}},
	} {
		if _, err := NewGenHierarchy(tc.table); err == nil {
			t.Errorf("%s: expect error for table %v", tc.desc, tc.table)
		}
	}

	if _, _, err := New([][]string{{"a", "A", "ALL"}, {"b", "ALL"}}); err == nil {
		t.Error("expect error for a non-rectangular string hierarchy")
	}
	if _, _, err := New([][]string{{"a", "a", "ALL"}, {"b", "B", "ALL"}}); err == nil {
		t.Error("expect error when a generalized value reuses a leaf name")
	}
	if _, _, err := New([][]string{{"a", "A", "ALL"}, {"a", "A", "ALL"}}); err == nil {
		t.Error("expect error for a duplicate leaf")
	}
	for _, rows := range [][][]string{{{}}, {{}, {}}, {{"a"}, {"b"}}} {
		if _, _, err := New(rows); err == nil {
			t.Errorf("expect error for hierarchy rows %q", rows)
		}
	}
}
