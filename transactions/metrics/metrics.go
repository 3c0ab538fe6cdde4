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

// Package metrics scores the information loss of generalization policies.
package metrics

import (
	"gonum.org/v1/gonum/floats"

	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/cut"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/dataset"
)

// ItemFrequencies counts the transactions of the raw, ungeneralized database containing each leaf.
type ItemFrequencies struct {
	Freq []int
	Sum  int
}

// NewItemFrequencies counts the leaves of db. Items outside [0, domainSize) are ignored.
func NewItemFrequencies(db dataset.Database, domainSize int) *ItemFrequencies {
	f := &ItemFrequencies{Freq: make([]int, domainSize)}
	for _, tx := range db {
		for _, item := range tx {
			if item >= 0 && item < domainSize {
				f.Freq[item]++
				f.Sum++
			}
		}
	}
	return f
}

// NCP returns the Normalized Certainty Penalty of publishing the database through c.
//
// Every leaf contributes its frequency times the share of the domain covered by the node it is
// published as, and the total is normalized by the sum of frequencies. Unchanged leaves contribute
// nothing, so the score is 0 for the identity and 1 when everything is published as the root.
func NCP(c *cut.Cut, f *ItemFrequencies) float64 {
	if f.Sum == 0 {
		return 0
	}
	h := c.Hierarchy()
	domainSize := float64(h.DomainSize())
	penalties := make([]float64, len(f.Freq))
	for leaf, freq := range f.Freq {
		target := c.Target(leaf)
		if freq == 0 || target == leaf {
			continue
		}
		penalties[leaf] = float64(freq) * float64(h.LeafCount(target)) / domainSize
	}
	return floats.Sum(penalties) / float64(f.Sum)
}
