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

package kmanonymity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/privacy-sandbox-transaction-anonymization/shared/utils"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/cut"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/hierarchy"
)

// Strategy names a search over the lattice of cuts.
type Strategy string

// The supported strategies, in increasing order of cost and decreasing (or equal) information loss.
const (
	StrategyDirect  Strategy = "direct"
	StrategyApriori Strategy = "apriori"
	StrategyOptimal Strategy = "optimal"
)

// ParseStrategy checks that s names a supported strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strategy := Strategy(s); strategy {
	case StrategyDirect, StrategyApriori, StrategyOptimal:
		return strategy, nil
	default:
		return "", fmt.Errorf("expect strategy %q, %q or %q, got %q", StrategyDirect, StrategyApriori, StrategyOptimal, s)
	}
}

// Params contains the privacy parameters of an anonymization.
type Params struct {
	// Every published itemset with at most M items must be shared by at least K transactions.
	K, M int
	// Maximal number of candidate cuts evaluated concurrently. Zero means one per CPU.
	Parallelism int
}

func (p *Params) validate() error {
	if p.K <= 0 {
		return fmt.Errorf("expect positive k, got %d", p.K)
	}
	if p.M <= 0 {
		return fmt.Errorf("expect positive m, got %d", p.M)
	}
	if p.Parallelism < 0 {
		return fmt.Errorf("expect nonnegative parallelism, got %d", p.Parallelism)
	}
	return nil
}

// Config is the file representation of an anonymization request.
type Config struct {
	K           int      `json:"k"`
	M           int      `json:"m"`
	Strategy    Strategy `json:"strategy"`
	Parallelism int      `json:"parallelism,omitempty"`
}

// Params returns the privacy parameters of the config.
func (c *Config) Params() *Params {
	return &Params{K: c.K, M: c.M, Parallelism: c.Parallelism}
}

// Validate checks the parameters and the strategy of the config.
func (c *Config) Validate() error {
	if err := c.Params().validate(); err != nil {
		return err
	}
	_, err := ParseStrategy(string(c.Strategy))
	return err
}

// WriteConfigFile writes the Config into a file.
func WriteConfigFile(ctx context.Context, config *Config, filename string) error {
	return utils.WriteJSON(ctx, config, filename)
}

// ReadConfigFile reads the Config from a file and validates it.
func ReadConfigFile(ctx context.Context, filename string) (*Config, error) {
	config := &Config{}
	if err := utils.ReadJSON(ctx, filename, config); err != nil {
		return nil, err
	}
	return config, config.Validate()
}

// Result is the outcome of an anonymization.
type Result struct {
	RunID     string   `json:"run_id,omitempty"`
	Strategy  Strategy `json:"strategy"`
	K         int      `json:"k"`
	M         int      `json:"m"`
	NCP       float64  `json:"ncp"`
	Anonymous bool     `json:"anonymous"`
	// Generalization maps every leaf ID to the ID of the node it is published as.
	Generalization []int `json:"generalization"`

	Cut *cut.Cut `json:"-"`
}

// RestoreCut rebuilds the cut of a result read from a file.
func (r *Result) RestoreCut(h *hierarchy.Hierarchy) (*cut.Cut, error) {
	if r.Cut != nil {
		return r.Cut, nil
	}
	if len(r.Generalization) == 0 {
		return nil, errors.New("expect nonempty generalization")
	}
	c, err := cut.FromGeneralization(h, r.Generalization)
	if err != nil {
		return nil, err
	}
	r.Cut = c
	return c, nil
}

// WriteResultFile writes the Result into a file.
func WriteResultFile(ctx context.Context, result *Result, filename string) error {
	return utils.WriteJSON(ctx, result, filename)
}

// ReadResultFile reads a Result from a file. Use RestoreCut to get its cut back.
func ReadResultFile(ctx context.Context, filename string) (*Result, error) {
	result := &Result{}
	if err := utils.ReadJSON(ctx, filename, result); err != nil {
		return nil, err
	}
	return result, nil
}
