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

// Package dataset contains the integer-encoded transactional database and its text format.
//
// In files, every line is one transaction (or one hierarchy row) with items separated by commas.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/privacy-sandbox-transaction-anonymization/shared/utils"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/dict"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/hierarchy"
)

const separator = ","

// Transaction is a duplicate-free set of items.
type Transaction []int

// Database is an ordered sequence of transactions, indexed by row ID.
type Database []Transaction

// ParseLine splits a line into trimmed items, skipping empty ones.
func ParseLine(line string) []string {
	var items []string
	for _, item := range strings.Split(line, separator) {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// FormatLine joins items into a line.
func FormatLine(items []string) string {
	return strings.Join(items, separator)
}

// Normalize sorts the items of a transaction and drops duplicates. It returns a new slice.
func Normalize(items []int) Transaction {
	tx := append(Transaction(nil), items...)
	sort.Ints(tx)
	out := tx[:0]
	for i, item := range tx {
		if i == 0 || item != tx[i-1] {
			out = append(out, item)
		}
	}
	return out
}

// Encode converts string rows into a database of leaf items of h.
func Encode(rows [][]string, d *dict.Dict, h *hierarchy.Hierarchy) (Database, error) {
	db := make(Database, len(rows))
	for i, row := range rows {
		items := make([]int, len(row))
		for j, s := range row {
			id, ok := d.Representation(s)
			if !ok {
				return nil, fmt.Errorf("item %q in transaction %d is not in the hierarchy", s, i)
			}
			if !h.IsLeaf(id) {
				return nil, fmt.Errorf("item %q in transaction %d is not a leaf of the hierarchy", s, i)
			}
			items[j] = id
		}
		db[i] = Normalize(items)
	}
	return db, nil
}

// Decode converts a database back into strings.
func Decode(db Database, d *dict.Dict) ([][]string, error) {
	rows := make([][]string, len(db))
	for i, tx := range db {
		row := make([]string, len(tx))
		for j, item := range tx {
			s, ok := d.String(item)
			if !ok {
				return nil, fmt.Errorf("unknown item %d in transaction %d", item, i)
			}
			row[j] = s
		}
		rows[i] = row
	}
	return rows, nil
}

// Validate checks that the database is nonempty and only holds distinct leaves of h in every
// transaction.
func Validate(db Database, h *hierarchy.Hierarchy) error {
	if len(db) == 0 {
		return errors.New("expect nonempty database")
	}
	for i, tx := range db {
		seen := make(map[int]bool, len(tx))
		for _, item := range tx {
			if !h.IsLeaf(item) {
				return fmt.Errorf("expect leaf items in transaction %d, got %d", i, item)
			}
			if seen[item] {
				return fmt.Errorf("expect distinct items in transaction %d, got %d twice", i, item)
			}
			seen[item] = true
		}
	}
	return nil
}

// ReadRows reads a transaction file. Blank lines are kept as empty transactions.
func ReadRows(ctx context.Context, filename string) ([][]string, error) {
	lines, err := utils.ReadLines(ctx, filename)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(lines))
	for i, line := range lines {
		rows[i] = ParseLine(line)
	}
	return rows, nil
}

// ReadHierarchyRows reads a hierarchy file, skipping blank lines.
func ReadHierarchyRows(ctx context.Context, filename string) ([][]string, error) {
	lines, err := utils.ReadNonemptyLines(ctx, filename)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(lines))
	for i, line := range lines {
		rows[i] = ParseLine(line)
	}
	return rows, nil
}

// WriteRows writes string rows, one per line.
func WriteRows(ctx context.Context, rows [][]string, filename string) error {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = FormatLine(row)
	}
	return utils.WriteLines(ctx, lines, filename)
}
