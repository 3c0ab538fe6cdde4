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

package pipelineutils

import (
	"context"
	"io/ioutil"
	"os"
	"path"
	"sort"
	"testing"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/testing/ptest"
	"github.com/google/go-cmp/cmp"

	"github.com/google/privacy-sandbox-transaction-anonymization/shared/utils"
)

func TestShardPath(t *testing.T) {
	for _, tc := range []struct {
		path     string
		shard, n int64
		want     string
	}{
		{path: "gs://foo/.bar/x.csv", shard: 0, n: 3, want: "gs://foo/.bar/x-1-3.csv"},
		{path: "/foo/.bar/x.csv", shard: 2, n: 3, want: "/foo/.bar/x-3-3.csv"},
		{path: "/foo/x", shard: 9, n: 10, want: "/foo/x-10-10"},
	} {
		if got := ShardPath(tc.path, tc.shard, tc.n); got != tc.want {
			t.Errorf("expect %q, got %q", tc.want, got)
		}
	}
}

func TestWriteShardedLines(t *testing.T) {
	storageDir, err := ioutil.TempDir("/tmp", "test-shards")
	if err != nil {
		t.Fatalf("failed to create temp dir: %s", err)
	}
	defer os.RemoveAll(storageDir)

	input := []string{"a,b", "a,b", "a,b", "c", "d,e", "f", "g,h,i", "j"}
	shards := int64(4)
	outputName := path.Join(storageDir, "output.csv")

	pipeline, scope := beam.NewPipelineWithRoot()
	WriteShardedLines(scope, outputName, shards, beam.CreateList(scope, input))
	if err := ptest.Run(pipeline); err != nil {
		t.Fatalf("pipeline failed: %s", err)
	}

	ctx := context.Background()
	var got []string
	for i := int64(0); i < shards; i++ {
		filename := ShardPath(outputName, i, shards)
		// Shards without lines produce no file.
		exist, err := utils.IsFileGlobExist(ctx, filename)
		if err != nil {
			t.Fatal(err)
		}
		if !exist {
			continue
		}
		lines, err := utils.ReadLines(ctx, filename)
		if err != nil {
			t.Fatal(err)
		}
		for _, line := range lines {
			if s := ShardOf(line, shards); s != i {
				t.Errorf("line %q written to shard %d, expect %d", line, i, s)
			}
		}
		got = append(got, lines...)
	}

	want := append([]string(nil), input...)
	sort.Strings(want)
	sort.Strings(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}
