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

// This binary anonymizes a transaction file so that every combination of at most m published items
// is shared by at least k transactions.
//
// /path/to/kmanonymize \
// --hierarchy_file=/path/to/hierarchy.csv \
// --transaction_file=/path/to/transactions.csv \
// --k=5 --m=2 --strategy=optimal \
// --result_file=/path/to/result.json \
// --output_file=/path/to/generalized.csv \
// --mapping_file=/path/to/mapping.cbor
//
// Every line of the hierarchy file lists a leaf followed by its generalizations up to the shared
// root, separated by commas. Every line of the transaction file is one transaction of leaves.
// Files can be local or on GCS.
package main

import (
	"context"
	"flag"

	"cloud.google.com/go/profiler"
	log "github.com/golang/glog"
	"github.com/pborman/uuid"

	"github.com/google/privacy-sandbox-transaction-anonymization/pipeline/generalizepipeline"
	"github.com/google/privacy-sandbox-transaction-anonymization/shared/utils"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/dataset"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/hierarchy"
	"github.com/google/privacy-sandbox-transaction-anonymization/transactions/kmanonymity"
)

var (
	hierarchyFile   = flag.String("hierarchy_file", "", "Input file with one root path of the generalization hierarchy per line.")
	transactionFile = flag.String("transaction_file", "", "Input file with one transaction per line.")
	configFile      = flag.String("config_file", "", "Optional JSON file with the anonymization config. Overrides --k, --m, --strategy and --parallelism.")
	k               = flag.Int("k", 2, "Minimal number of transactions sharing every published itemset.")
	m               = flag.Int("m", 2, "Maximal size of the itemsets an adversary knows.")
	strategy        = flag.String("strategy", string(kmanonymity.StrategyOptimal), "Search strategy: direct, apriori or optimal.")
	parallelism     = flag.Int("parallelism", 0, "Maximal number of cuts evaluated concurrently. Zero means one per CPU.")
	runID           = flag.String("run_id", "", "ID of this run. A random one is generated if empty.")

	resultFile  = flag.String("result_file", "", "Output JSON file with the chosen generalization and its information loss.")
	outputFile  = flag.String("output_file", "", "Optional output file with the generalized transactions.")
	mappingFile = flag.String("mapping_file", "", "Optional output file with the leaf to published item mapping, for the generalization pipeline.")
	pubsubTopic = flag.String("pubsub_topic", "", "Optional Pub/Sub topic, in the format of projects/<project>/topics/<topic>, notified with the result.")

	profilerProjectID = flag.String("profiler_project_id", "", "Optional GCP project that receives CPU and heap profiles of the run.")
)

func readConfig(ctx context.Context) (*kmanonymity.Config, error) {
	if *configFile != "" {
		return kmanonymity.ReadConfigFile(ctx, *configFile)
	}
	config := &kmanonymity.Config{K: *k, M: *m, Strategy: kmanonymity.Strategy(*strategy), Parallelism: *parallelism}
	return config, config.Validate()
}

func main() {
	flag.Parse()

	if *profilerProjectID != "" {
		if err := profiler.Start(profiler.Config{Service: "kmanonymize", ProjectID: *profilerProjectID}); err != nil {
			log.Exit(err)
		}
	}

	ctx := context.Background()
	config, err := readConfig(ctx)
	if err != nil {
		log.Exit(err)
	}
	if *runID == "" {
		*runID = uuid.New()
	}
	log.Infof("run %s: anonymizing %q with k=%d, m=%d, strategy %s", *runID, *transactionFile, config.K, config.M, config.Strategy)

	hierarchyRows, err := dataset.ReadHierarchyRows(ctx, *hierarchyFile)
	if err != nil {
		log.Exit(err)
	}
	h, d, err := hierarchy.New(hierarchyRows)
	if err != nil {
		log.Exit(err)
	}
	rows, err := dataset.ReadRows(ctx, *transactionFile)
	if err != nil {
		log.Exit(err)
	}
	db, err := dataset.Encode(rows, d, h)
	if err != nil {
		log.Exit(err)
	}

	anonymizer, err := kmanonymity.New(db, h, config.Params())
	if err != nil {
		log.Exit(err)
	}
	result, err := anonymizer.Run(ctx, config.Strategy)
	if err != nil {
		log.Exit(err)
	}
	result.RunID = *runID
	stats := anonymizer.Stats()
	log.Infof("run %s: built %d count trees, evaluated %d cuts", *runID, stats.TreesBuilt, stats.CutsEvaluated)

	if err := kmanonymity.WriteResultFile(ctx, result, *resultFile); err != nil {
		log.Exit(err)
	}
	if *outputFile != "" {
		generalized, err := dataset.Decode(result.Cut.GeneralizeDatabase(db), d)
		if err != nil {
			log.Exit(err)
		}
		if err := dataset.WriteRows(ctx, generalized, *outputFile); err != nil {
			log.Exit(err)
		}
	}
	if *mappingFile != "" {
		mapping, err := result.Cut.Mapping(d)
		if err != nil {
			log.Exit(err)
		}
		if err := generalizepipeline.WriteMappingFile(ctx, mapping, *mappingFile); err != nil {
			log.Exit(err)
		}
	}
	if *pubsubTopic != "" {
		if err := utils.PublishJSON(ctx, *pubsubTopic, result); err != nil {
			log.Exit(err)
		}
	}
}
