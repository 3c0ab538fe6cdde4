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

// Package kmanonymity searches generalization policies that make a transaction database
// k^m-anonymous: every combination of at most m published items is shared by at least k
// transactions.
//
// Three strategies trade quality for speed. Direct anonymization fixes every rare itemset of one
// count tree greedily, apriori anonymization does the same for growing itemset sizes, and optimal
// anonymization walks the whole lattice of cuts breadth first and keeps the anonymous cut with the
// lowest information loss.
package kmanonymity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"

	log "github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/counttree"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/cut"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/dataset"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/hierarchy"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/metrics"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/subsetiterator"
)

// ErrNoAnonymousCut is returned when the optimal search finishes without an anonymous cut.
var ErrNoAnonymousCut = errors.New("no k^m-anonymous cut found")

// Stats counts the work done by an Anonymizer.
type Stats struct {
	TreesBuilt    int64
	CutsEvaluated int64
}

// Anonymizer holds a database, its hierarchy and the privacy parameters shared by all strategies.
type Anonymizer struct {
	db          dataset.Database
	h           *hierarchy.Hierarchy
	k, m        int
	parallelism int
	freq        *metrics.ItemFrequencies

	treesBuilt    int64
	cutsEvaluated int64
}

// New validates the inputs and returns an Anonymizer for them.
func New(db dataset.Database, h *hierarchy.Hierarchy, params *Params) (*Anonymizer, error) {
	if h == nil {
		return nil, errors.New("expect a hierarchy, got nil")
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	if err := dataset.Validate(db, h); err != nil {
		return nil, err
	}
	parallelism := params.Parallelism
	if parallelism == 0 {
		parallelism = runtime.NumCPU()
	}
	return &Anonymizer{
		db:          db,
		h:           h,
		k:           params.K,
		m:           params.M,
		parallelism: parallelism,
		freq:        metrics.NewItemFrequencies(db, h.DomainSize()),
	}, nil
}

// Stats returns the work done so far.
func (a *Anonymizer) Stats() Stats {
	return Stats{
		TreesBuilt:    atomic.LoadInt64(&a.treesBuilt),
		CutsEvaluated: atomic.LoadInt64(&a.cutsEvaluated),
	}
}

// NCP returns the information loss of publishing the database through c.
func (a *Anonymizer) NCP(c *cut.Cut) float64 {
	return metrics.NCP(c, a.freq)
}

func (a *Anonymizer) buildTree(ctx context.Context, m int, c *cut.Cut) (*counttree.CountTree, error) {
	tree, err := counttree.New(ctx, m, c.GeneralizeDatabase(a.db), a.h)
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&a.treesBuilt, 1)
	return tree, nil
}

// IsKMAnonymous reports whether the database generalized by c is k^m-anonymous.
func (a *Anonymizer) IsKMAnonymous(ctx context.Context, c *cut.Cut) (bool, error) {
	tree, err := a.buildTree(ctx, a.m, c)
	if err != nil {
		return false, err
	}
	atomic.AddInt64(&a.cutsEvaluated, 1)
	return tree.IsKMAnonymous(a.k), nil
}

// Run anonymizes the database with the given strategy.
func (a *Anonymizer) Run(ctx context.Context, strategy Strategy) (*Result, error) {
	switch strategy {
	case StrategyDirect:
		return a.DirectAnonymization(ctx)
	case StrategyApriori:
		return a.AprioriAnonymization(ctx)
	case StrategyOptimal:
		return a.OptimalAnonymization(ctx)
	default:
		_, err := ParseStrategy(string(strategy))
		return nil, err
	}
}

func (a *Anonymizer) result(ctx context.Context, strategy Strategy, c *cut.Cut) (*Result, error) {
	anonymous, err := a.IsKMAnonymous(ctx, c)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Strategy:       strategy,
		K:              a.k,
		M:              a.m,
		NCP:            a.NCP(c),
		Anonymous:      anonymous,
		Generalization: c.Generalization(),
		Cut:            c,
	}
	log.Infof("%s anonymization finished with NCP %.4f, anonymous: %t", strategy, result.NCP, anonymous)
	return result, nil
}

// DirectAnonymization counts every itemset of up to m items once and fixes each rare one by
// merging in the cheapest generalization of its items that makes it frequent enough.
func (a *Anonymizer) DirectAnonymization(ctx context.Context) (*Result, error) {
	log.Infof("running direct anonymization of %d transactions with k=%d, m=%d", len(a.db), a.k, a.m)
	start := cut.New(a.h)
	tree, err := a.buildTree(ctx, a.m, start)
	if err != nil {
		return nil, err
	}
	c, err := a.directAnonymization(ctx, tree, start)
	if err != nil {
		return nil, err
	}
	return a.result(ctx, StrategyDirect, c)
}

// AprioriAnonymization runs direct anonymization for itemsets of size 1, 2, ..., m, each round on
// the database generalized by the previous rounds.
func (a *Anonymizer) AprioriAnonymization(ctx context.Context) (*Result, error) {
	log.Infof("running apriori anonymization of %d transactions with k=%d, m=%d", len(a.db), a.k, a.m)
	acc := cut.New(a.h)
	for i := 1; i <= a.m; i++ {
		tree, err := a.buildTree(ctx, i, acc)
		if err != nil {
			return nil, err
		}
		if tree.IsKMAnonymous(a.k) {
			log.V(1).Infof("itemsets of size %d are already %d-anonymous", i, a.k)
			continue
		}
		if acc, err = a.directAnonymization(ctx, tree, acc); err != nil {
			return nil, err
		}
		log.V(1).Infof("round %d: NCP %.4f", i, a.NCP(acc))
	}
	return a.result(ctx, StrategyApriori, acc)
}

// directAnonymization walks tree, which counts the database generalized by start, and returns a
// cut at least as general as start under which every itemset of the tree is supported by at least
// k transactions.
func (a *Anonymizer) directAnonymization(ctx context.Context, tree *counttree.CountTree, start *cut.Cut) (*cut.Cut, error) {
	log.V(1).Infof("checking %d itemsets of up to %d items", tree.Len(), tree.M())
	acc := start
	err := tree.Walk(ctx, func(itemset []int, count int, leaf bool) error {
		// Supports only shrink along a path, so fixing the rare leaves fixes every rare node.
		if !leaf || count >= a.k {
			return nil
		}
		if tree.ProvidesKAnonymity(itemset, acc, a.k) {
			return nil
		}
		best, err := a.cheapestGeneralization(ctx, tree, itemset, acc)
		if err != nil {
			return err
		}
		log.V(2).Infof("itemset %v with support %d resolved by %v", itemset, count, best)
		acc = acc.Merge(best)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// cheapestGeneralization tries every way of raising a nonempty subset of itemset above acc and
// returns the one with the lowest NCP under which itemset is supported by at least k transactions.
// Ties go to the candidate found first: smaller subsets before larger ones, lower ancestors before
// higher ones.
func (a *Anonymizer) cheapestGeneralization(ctx context.Context, tree *counttree.CountTree, itemset []int, acc *cut.Cut) (*cut.Cut, error) {
	items := append([]int(nil), itemset...)
	var (
		// Strict ancestors of the node each item is currently published as.
		choices   = make([][]int, len(items))
		positions []int
	)
	for i, item := range items {
		choices[i] = a.h.ToRoot(acc.Map(item))[1:]
		if len(choices[i]) > 0 {
			positions = append(positions, i)
		}
	}

	var (
		best     *cut.Cut
		bestCost = math.Inf(1)
	)
	for size := 1; size <= len(positions); size++ {
		it, err := subsetiterator.New(positions, size)
		if err != nil {
			return nil, err
		}
		for it.HasNext() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			subset := it.Next()
			// Odometer over the cartesian product of the ancestors of the chosen items.
			idx := make([]int, size)
			for {
				candidate := acc.Clone()
				for j, p := range subset {
					if err := candidate.Generalize(a.h.FirstLeaf(items[p]), choices[p][idx[j]]); err != nil {
						return nil, err
					}
				}
				if tree.ProvidesKAnonymity(items, candidate, a.k) {
					if cost := a.NCP(candidate); cost < bestCost {
						best, bestCost = candidate, cost
					}
				}

				j := size - 1
				for ; j >= 0; j-- {
					if idx[j]++; idx[j] < len(choices[subset[j]]) {
						break
					}
					idx[j] = 0
				}
				if j < 0 {
					break
				}
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no generalization of itemset %v reaches support %d", itemset, a.k)
	}
	return best, nil
}

// OptimalAnonymization explores the lattice of cuts breadth first from the identity and returns
// the k^m-anonymous cut with the lowest NCP. Ancestors of an anonymous cut are never explored since
// their NCP cannot be lower. Ties go to the cut reached first.
//
// Each level of the search is evaluated concurrently, with at most Parallelism count trees built at
// a time. Results are consumed in queue order, so the outcome does not depend on scheduling.
func (a *Anonymizer) OptimalAnonymization(ctx context.Context) (*Result, error) {
	log.Infof("running optimal anonymization of %d transactions with k=%d, m=%d", len(a.db), a.k, a.m)
	start := cut.New(a.h)
	var (
		queue     = []*cut.Cut{start}
		visited   = map[string]bool{start.Key(): true}
		dominated = make(map[string]bool)
		best      *cut.Cut
		bestCost  = math.Inf(1)
	)
	for wave := 0; len(queue) > 0; wave++ {
		current := queue
		queue = nil
		anonymous, err := a.evaluate(ctx, current)
		if err != nil {
			return nil, err
		}
		log.V(1).Infof("wave %d: evaluated %d cuts", wave, len(current))

		for i, c := range current {
			if dominated[c.Key()] {
				continue
			}
			ancestors := c.Ancestors()
			if !anonymous[i] {
				for _, ancestor := range ancestors {
					if key := ancestor.Key(); !visited[key] {
						visited[key] = true
						queue = append(queue, ancestor)
					}
				}
				continue
			}
			for _, ancestor := range ancestors {
				key := ancestor.Key()
				visited[key] = true
				dominated[key] = true
			}
			if cost := a.NCP(c); cost < bestCost {
				best, bestCost = c, cost
				log.V(1).Infof("new best cut with NCP %.4f: %v", cost, c)
			}
		}

		next := queue[:0]
		for _, c := range queue {
			if !dominated[c.Key()] {
				next = append(next, c)
			}
		}
		queue = next
	}
	if best == nil {
		return nil, ErrNoAnonymousCut
	}
	return a.result(ctx, StrategyOptimal, best)
}

// evaluate checks the anonymity of every cut, building at most a.parallelism trees at a time.
func (a *Anonymizer) evaluate(ctx context.Context, cuts []*cut.Cut) ([]bool, error) {
	anonymous := make([]bool, len(cuts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for i, c := range cuts {
		i, c := i, c
		g.Go(func() error {
			ok, err := a.IsKMAnonymous(ctx, c)
			if err != nil {
				return err
			}
			anonymous[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return anonymous, nil
}

// OptimalAnonymization finds the k^m-anonymous cut of db with the lowest NCP.
func OptimalAnonymization(ctx context.Context, db dataset.Database, h *hierarchy.Hierarchy, params *Params) (*Result, error) {
	a, err := New(db, h, params)
	if err != nil {
		return nil, err
	}
	return a.OptimalAnonymization(ctx)
}
