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

// Package pipelineutils contains utilities used by the beam pipelines.
package pipelineutils

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"reflect"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/io/textio"
)

func init() {
	beam.RegisterType(reflect.TypeOf((*keyByShardFn)(nil)).Elem())
	beam.RegisterType(reflect.TypeOf((*selectShardFn)(nil)).Elem())
}

// ShardOf returns the shard of a line. Equal lines always land in the same shard.
func ShardOf(line string, shards int64) int64 {
	h := fnv.New64a()
	h.Write([]byte(line))
	return int64(h.Sum64() % uint64(shards))
}

type keyByShardFn struct {
	Shards int64
}

func (fn *keyByShardFn) ProcessElement(line string, emit func(int64, string)) {
	emit(ShardOf(line, fn.Shards), line)
}

type selectShardFn struct {
	Shard int64
}

func (fn *selectShardFn) ProcessElement(shard int64, line string, emit func(string)) {
	if shard == fn.Shard {
		emit(line)
	}
}

// ShardPath returns the name of one of n output shards, inserting "-<shard+1>-<n>" before the file
// extension.
//
// For example: ShardPath("/foo/x.csv", 0, 3) = "/foo/x-1-3.csv"
func ShardPath(path string, shard, n int64) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d-%d%s", path[:len(path)-len(ext)], shard+1, n, ext)
}

// WriteShardedLines writes the lines into n files named by ShardPath, or into outputName itself
// when n is at most 1.
func WriteShardedLines(s beam.Scope, outputName string, n int64, lines beam.PCollection) {
	s = s.Scope("WriteShardedLines")

	if n <= 1 {
		textio.Write(s, outputName, lines)
		return
	}
	keyed := beam.ParDo(s, &keyByShardFn{Shards: n}, lines)
	for i := int64(0); i < n; i++ {
		shard := beam.ParDo(s, &selectShardFn{Shard: i}, keyed)
		textio.Write(s, ShardPath(outputName, i, n), shard)
	}
}
