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

// This binary publishes a transaction file through the mapping written by kmanonymize, so that a
// policy found on a sample can be applied to the full data.
// The pipeline can be executed in two ways:
//
// 1. Directly on local
// /path/to/generalize_pipeline \
// --transaction_uri=/path/to/transactions.csv \
// --mapping_uri=/path/to/mapping.cbor \
// --output_uri=/path/to/generalized.csv \
// --runner=direct
//
// 2. Dataflow on cloud
// /path/to/generalize_pipeline \
// --transaction_uri=gs://<bucket>/transactions*.csv \
// --mapping_uri=gs://<bucket>/mapping.cbor \
// --output_uri=gs://<bucket>/generalized.csv \
// --item_count_uri=gs://<bucket>/item_counts.csv \
// --runner=dataflow \
// --project=<GCP project> \
// --temp_location=gs://<dataflow temp dir> \
// --staging_location=gs://<dataflow temp dir> \
// --worker_binary=/path/to/generalize_pipeline
package main

import (
	"context"
	"flag"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/log"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/x/beamx"

	"github.com/google/privacy-sandbox-transaction-anonymization/pipeline/generalizepipeline"
	"github.com/google/privacy-sandbox-transaction-anonymization/shared/utils"
)

var (
	transactionURI = flag.String("transaction_uri", "", "Input transactions, one per line.")
	mappingURI     = flag.String("mapping_uri", "", "Input leaf to published item mapping.")
	outputURI      = flag.String("output_uri", "", "Output generalized transactions.")
	outputShards   = flag.Int64("output_shards", 1, "Number of files the output is split into.")
	itemCountURI   = flag.String("item_count_uri", "", "Optional output with the frequency of every published item.")
)

func main() {
	flag.Parse()

	beam.Init()

	pipeline := beam.NewPipeline()
	scope := pipeline.Root()

	ctx := context.Background()

	inputExist, err := utils.IsFileGlobExist(ctx, *transactionURI)
	if err != nil {
		log.Exit(ctx, err)
	} else if !inputExist {
		log.Exitf(ctx, "input not found: %q", *transactionURI)
	}
	mapping, err := generalizepipeline.ReadMappingFile(ctx, *mappingURI)
	if err != nil {
		log.Exit(ctx, err)
	}

	generalizepipeline.GeneralizeTransactionFile(scope, &generalizepipeline.GeneralizeParams{
		TransactionURI: *transactionURI,
		Mapping:        mapping,
		OutputURI:      *outputURI,
		OutputShards:   *outputShards,
		ItemCountURI:   *itemCountURI,
	})
	if err := beamx.Run(ctx, pipeline); err != nil {
		log.Exitf(ctx, "Failed to execute job: %s", err)
	}
}
