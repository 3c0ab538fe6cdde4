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

// Package generalizepipeline publishes large transaction files through a generalization mapping
// with Apache Beam.
package generalizepipeline

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/io/textio"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/transforms/stats"

	"github.com/google/privacy-sandbox-transaction-anonymization/pipeline/pipelineutils"
	"github.com/google/privacy-sandbox-transaction-anonymization/shared/utils"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/dataset"
)

func init() {
	beam.RegisterType(reflect.TypeOf((*generalizeTransactionFn)(nil)).Elem())
	beam.RegisterType(reflect.TypeOf((*splitItemsFn)(nil)).Elem())
	beam.RegisterFunction(formatItemCountFn)
}

// WriteMappingFile writes the leaf to published item mapping into a file in CBOR.
func WriteMappingFile(ctx context.Context, mapping map[string]string, filename string) error {
	b, err := utils.MarshalCBOR(mapping)
	if err != nil {
		return err
	}
	return utils.WriteBytes(ctx, b, filename)
}

// ReadMappingFile reads the leaf to published item mapping from a file.
func ReadMappingFile(ctx context.Context, filename string) (map[string]string, error) {
	b, err := utils.ReadBytes(ctx, filename)
	if err != nil {
		return nil, err
	}
	mapping := make(map[string]string)
	if err := utils.UnmarshalCBOR(b, &mapping); err != nil {
		return nil, err
	}
	if len(mapping) == 0 {
		return nil, fmt.Errorf("expect nonempty mapping in %q", filename)
	}
	return mapping, nil
}

// GeneralizeLine publishes every item of a transaction line through mapping. The output items
// are sorted and duplicate free. Items missing from the mapping are an error.
func GeneralizeLine(line string, mapping map[string]string) (string, error) {
	items := dataset.ParseLine(line)
	published := make([]string, 0, len(items))
	for _, item := range items {
		p, ok := mapping[item]
		if !ok {
			return "", fmt.Errorf("item %q is not in the generalization mapping", item)
		}
		published = append(published, p)
	}
	sort.Strings(published)
	result := published[:0]
	for i, p := range published {
		if i == 0 || p != published[i-1] {
			result = append(result, p)
		}
	}
	return dataset.FormatLine(result), nil
}

type generalizeTransactionFn struct {
	Mapping map[string]string

	transactionCounter beam.Counter
	emptyCounter       beam.Counter
}

func (fn *generalizeTransactionFn) Setup() {
	fn.transactionCounter = beam.NewCounter("transaction-anonymization", "generalized-transaction-count")
	fn.emptyCounter = beam.NewCounter("transaction-anonymization", "empty-transaction-count")
}

func (fn *generalizeTransactionFn) ProcessElement(ctx context.Context, line string, emit func(string)) error {
	generalized, err := GeneralizeLine(line, fn.Mapping)
	if err != nil {
		return err
	}
	fn.transactionCounter.Inc(ctx, 1)
	if generalized == "" {
		fn.emptyCounter.Inc(ctx, 1)
	}
	emit(generalized)
	return nil
}

// GeneralizeTransactions publishes every transaction line of the input through mapping.
func GeneralizeTransactions(s beam.Scope, lines beam.PCollection, mapping map[string]string) beam.PCollection {
	s = s.Scope("GeneralizeTransactions")
	return beam.ParDo(s, &generalizeTransactionFn{Mapping: mapping}, lines)
}

type splitItemsFn struct {
	itemCounter beam.Counter
}

func (fn *splitItemsFn) Setup() {
	fn.itemCounter = beam.NewCounter("transaction-anonymization", "published-item-count")
}

func (fn *splitItemsFn) ProcessElement(ctx context.Context, line string, emit func(string)) {
	for _, item := range dataset.ParseLine(line) {
		fn.itemCounter.Inc(ctx, 1)
		emit(item)
	}
}

func formatItemCountFn(item string, count int) string {
	return item + "," + strconv.Itoa(count)
}

// CountItems returns lines of "item,count" with the number of transaction lines containing each
// item.
func CountItems(s beam.Scope, lines beam.PCollection) beam.PCollection {
	s = s.Scope("CountItems")
	items := beam.ParDo(s, &splitItemsFn{}, lines)
	return beam.ParDo(s, formatItemCountFn, stats.Count(s, items))
}

// GeneralizeParams contains the files read and written by GeneralizeTransactionFile.
type GeneralizeParams struct {
	TransactionURI string
	Mapping        map[string]string
	OutputURI      string
	// Number of files the output is split into. Values below 2 write OutputURI itself.
	OutputShards int64
	// Optional file for the frequency of every published item.
	ItemCountURI string
}

// GeneralizeTransactionFile reads transaction lines, publishes them through the mapping and writes
// the result, one transaction per line.
func GeneralizeTransactionFile(scope beam.Scope, params *GeneralizeParams) {
	scope = scope.Scope("GeneralizeTransactionFile")
	lines := textio.ReadSdf(scope, params.TransactionURI)
	generalized := GeneralizeTransactions(scope, lines, params.Mapping)
	pipelineutils.WriteShardedLines(scope, params.OutputURI, params.OutputShards, generalized)
	if params.ItemCountURI != "" {
		textio.Write(scope, params.ItemCountURI, CountItems(scope, generalized))
	}
}
