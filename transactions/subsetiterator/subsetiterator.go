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

// Package subsetiterator enumerates the fixed-size subsets of a set of indices.
//
// Subsets are produced in the order of Gosper's hack on the bit masks of the input positions. Sets
// with fewer than 64 elements are enumerated on uint64 masks and larger sets on math/big integers.
package subsetiterator

import (
	"errors"
	"fmt"
	"math/big"
	"math/bits"
)

// ErrInvalidSize is returned when the requested subset size is not positive.
var ErrInvalidSize = errors.New("subset size must be positive")

// combinations advances through the bit masks of all k-subsets of n positions.
type combinations interface {
	hasNext() bool
	// next returns the positions set in the current mask in ascending order and advances.
	next() []int
}

// SubsetIterator lazily yields every k-sized subset of a set exactly once.
//
// It cannot be restarted; create a new iterator to enumerate the subsets again.
type SubsetIterator struct {
	set   []int
	combs combinations
}

// New creates an iterator over the k-sized subsets of set. A k larger than the set yields nothing.
func New(set []int, k int) (*SubsetIterator, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSize, k)
	}
	n := len(set)
	it := &SubsetIterator{set: set}
	if n < 64 {
		it.combs = newUint64Combinations(n, k)
	} else {
		it.combs = newBigCombinations(n, k)
	}
	return it, nil
}

// HasNext reports whether another subset is available.
func (it *SubsetIterator) HasNext() bool {
	return it.combs.hasNext()
}

// Next returns the next subset, with elements in the order they have in the input set.
func (it *SubsetIterator) Next() []int {
	positions := it.combs.next()
	subset := make([]int, len(positions))
	for i, p := range positions {
		subset[i] = it.set[p]
	}
	return subset
}

type uint64Combinations struct {
	k           int
	mask, limit uint64
	exhausted   bool
}

func newUint64Combinations(n, k int) *uint64Combinations {
	if k > n {
		return &uint64Combinations{exhausted: true}
	}
	return &uint64Combinations{
		k:     k,
		mask:  uint64(1)<<uint(k) - 1,
		limit: uint64(1) << uint(n),
	}
}

func (c *uint64Combinations) hasNext() bool {
	return !c.exhausted && c.mask < c.limit
}

func (c *uint64Combinations) next() []int {
	positions := make([]int, 0, c.k)
	for m := c.mask; m != 0; m &= m - 1 {
		positions = append(positions, bits.TrailingZeros64(m))
	}

	x := c.mask
	lowest := x & -x
	ripple := x + lowest
	c.mask = (((ripple ^ x) >> 2) / lowest) | ripple
	if ripple == 0 {
		c.exhausted = true
	}
	return positions
}

type bigCombinations struct {
	n, k        int
	mask, limit *big.Int
	exhausted   bool
}

func newBigCombinations(n, k int) *bigCombinations {
	if k > n {
		return &bigCombinations{exhausted: true}
	}
	one := big.NewInt(1)
	mask := new(big.Int).Lsh(one, uint(k))
	mask.Sub(mask, one)
	return &bigCombinations{
		n:     n,
		k:     k,
		mask:  mask,
		limit: new(big.Int).Lsh(one, uint(n)),
	}
}

func (c *bigCombinations) hasNext() bool {
	return !c.exhausted && c.mask.Cmp(c.limit) < 0
}

func (c *bigCombinations) next() []int {
	positions := make([]int, 0, c.k)
	for i := 0; i < c.n && len(positions) < c.k; i++ {
		if c.mask.Bit(i) == 1 {
			positions = append(positions, i)
		}
	}

	x := c.mask
	lowest := new(big.Int).And(x, new(big.Int).Neg(x))
	ripple := new(big.Int).Add(x, lowest)
	next := new(big.Int).Xor(ripple, x)
	next.Rsh(next, 2)
	next.Quo(next, lowest)
	next.Or(next, ripple)
	c.mask = next
	return positions
}
