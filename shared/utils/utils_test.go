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

package utils

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteReadLines(t *testing.T) {
	fileDir, err := ioutil.TempDir("/tmp", "test-file")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(fileDir)

	want := []string{"foo", "", "bar,baz"}
	resultFile := path.Join(fileDir, "nested", "result.txt")
	ctx := context.Background()
	if err := WriteLines(ctx, want, resultFile); err != nil {
		t.Fatal(err)
	}

	got, err := ReadLines(ctx, resultFile)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("strings mismatch (-want +got):\n%s", diff)
	}

	nonempty, err := ReadNonemptyLines(ctx, resultFile)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"foo", "bar,baz"}, nonempty); diff != "" {
		t.Errorf("nonempty strings mismatch (-want +got):\n%s", diff)
	}
}

func TestReadNonemptyLinesFailsOnBlankFile(t *testing.T) {
	fileDir, err := ioutil.TempDir("/tmp", "test-file")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(fileDir)

	ctx := context.Background()
	blankFile := path.Join(fileDir, "blank.txt")
	if err := WriteLines(ctx, []string{"", "  "}, blankFile); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadNonemptyLines(ctx, blankFile); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("expect ErrEmptyFile, got %v", err)
	}
}

func TestCborMarshalUnmarshal(t *testing.T) {
	type testStruct struct {
		FieldStr string         `json:"field_str"`
		FieldMap map[string]int `json:"field_map"`
	}

	want := &testStruct{
		FieldStr: "test_string",
		FieldMap: map[string]int{"a1": 4, "b1": 5},
	}

	b, err := MarshalCBOR(want)
	if err != nil {
		t.Fatal(err)
	}

	got := &testStruct{}
	if err := UnmarshalCBOR(b, got); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unmarshaled message mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONReadWrite(t *testing.T) {
	fileDir, err := ioutil.TempDir("/tmp", "test-file")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(fileDir)

	type config struct {
		K int `json:"k"`
		M int `json:"m"`
	}
	want := &config{K: 3, M: 2}
	ctx := context.Background()
	filename := path.Join(fileDir, "config.json")
	if err := WriteJSON(ctx, want, filename); err != nil {
		t.Fatal(err)
	}
	got := &config{}
	if err := ReadJSON(ctx, filename, got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseGCSPath(t *testing.T) {
	bucket, object, err := ParseGCSPath("gs://foo/bar/baz.txt")
	if err != nil {
		t.Fatal(err)
	}
	if bucket != "foo" || object != "bar/baz.txt" {
		t.Errorf("expect bucket foo and object bar/baz.txt, got %s and %s", bucket, object)
	}
	for _, name := range []string{"/local/file", "gs:///no-bucket"} {
		if _, _, err := ParseGCSPath(name); err == nil {
			t.Errorf("expect error for %q", name)
		}
	}
}

func TestParsePubSubResourceName(t *testing.T) {
	project, topic, err := ParsePubSubResourceName("projects/foo/topics/bar")
	if err != nil {
		t.Fatal(err)
	}
	if project != "foo" || topic != "bar" {
		t.Errorf("expect project foo and topic bar, got %s and %s", project, topic)
	}
	if _, _, err := ParsePubSubResourceName("foo/bar"); err == nil {
		t.Error("expect error for malformed resource name")
	}
}
