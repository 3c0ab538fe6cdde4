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

// Package utils contains basic utilities for reading and writing local and GCS files.
package utils

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/io/filesystem"
	log "github.com/golang/glog"
	"github.com/ugorji/go/codec"

	// The following packages are required to read files from GCS or local.
	_ "github.com/apache/beam/sdks/v2/go/pkg/beam/io/filesystem/gcs"
	_ "github.com/apache/beam/sdks/v2/go/pkg/beam/io/filesystem/local"
)

// ParseGCSPath gets the bucket and object names from the input filename.
func ParseGCSPath(filename string) (bucket, object string, err error) {
	parsed, err := url.Parse(filename)
	if err != nil {
		return
	}
	if parsed.Scheme != "gs" {
		err = fmt.Errorf("object %q must have 'gs' scheme", filename)
		return
	}
	if parsed.Host == "" {
		err = fmt.Errorf("object %q must have bucket", filename)
		return
	}

	bucket = parsed.Host
	if parsed.Path != "" {
		object = parsed.Path[1:]
	}
	return
}

// ReadLines reads the input file line by line and returns the content as a slice of strings.
//
// The file can be stored locally or in the GCS.
func ReadLines(ctx context.Context, filename string) ([]string, error) {
	var scanner *bufio.Scanner
	if strings.HasPrefix(filename, "gs://") {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		defer client.Close()

		bucket, object, err := ParseGCSPath(filename)
		if err != nil {
			return nil, err
		}
		reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		scanner = bufio.NewScanner(reader)
	} else {
		fs, err := os.Open(filename)
		if err != nil {
			return nil, err
		}
		defer fs.Close()
		scanner = bufio.NewScanner(fs)
	}

	var result []string
	for scanner.Scan() {
		result = append(result, scanner.Text())
	}
	return result, scanner.Err()
}

// WriteLines writes the input string slice to the output file, one string per line.
//
// The file can be stored locally or in the GCS.
func WriteLines(ctx context.Context, lines []string, filename string) error {
	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	return WriteBytes(ctx, buf.Bytes(), filename)
}

func writeGCSObject(ctx context.Context, data []byte, filename string) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	bucket, object, err := ParseGCSPath(filename)
	if err != nil {
		return err
	}
	writer := client.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err := writer.Write(data); err != nil {
		return err
	}

	return writer.Close()
}

func readGCSObject(ctx context.Context, filename string) ([]byte, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	bucket, object, err := ParseGCSPath(filename)
	if err != nil {
		return nil, err
	}
	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return ioutil.ReadAll(reader)
}

// WriteBytes writes bytes into a local or GCS file.
func WriteBytes(ctx context.Context, data []byte, filename string) error {
	if strings.HasPrefix(filename, "gs://") {
		return writeGCSObject(ctx, data, filename)
	}
	// create all dirs if not existing, ignore errors
	if dir := filepath.Dir(filename); dir != "" {
		os.MkdirAll(dir, os.ModePerm)
	}
	return ioutil.WriteFile(filename, data, 0644)
}

// ReadBytes reads bytes from a local or GCS file.
func ReadBytes(ctx context.Context, filename string) ([]byte, error) {
	if strings.HasPrefix(filename, "gs://") {
		return readGCSObject(ctx, filename)
	}
	return ioutil.ReadFile(filename)
}

// WriteJSON writes the JSON encoding of v into a local or GCS file.
func WriteJSON(ctx context.Context, v interface{}, filename string) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteBytes(ctx, b, filename)
}

// ReadJSON parses the JSON content of a local or GCS file into v.
func ReadJSON(ctx context.Context, filename string, v interface{}) error {
	b, err := ReadBytes(ctx, filename)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// MarshalCBOR serializes the input data in CBOR format.
func MarshalCBOR(v interface{}) ([]byte, error) {
	encBuf := new(bytes.Buffer)
	enc := codec.NewEncoder(encBuf, &codec.CborHandle{})
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return encBuf.Bytes(), nil
}

// UnmarshalCBOR parses the bytes in CBOR format.
func UnmarshalCBOR(b []byte, v interface{}) error {
	decBuf := bytes.NewBuffer(b)
	dec := codec.NewDecoder(decBuf, &codec.CborHandle{})
	return dec.Decode(v)
}

// ParsePubSubResourceName parses the PubSub resource name and get the project ID and topic or subscription.
//
// Details about the resource names: https://cloud.google.com/pubsub/docs/admin#resource_names
func ParsePubSubResourceName(name string) (projectID, relativeName string, err error) {
	strs := strings.Split(name, "/")
	if len(strs) != 4 || strs[0] != "projects" || (strs[2] != "subscriptions" && strs[2] != "topics") {
		err = fmt.Errorf("expect format %s, got %s", "projects/project-identifier/collection/relative-name", name)
		return
	}
	projectID, relativeName = strs[1], strs[3]
	return
}

// PublishJSON publishes the JSON encoding of content on the topic with the given resource name.
func PublishJSON(ctx context.Context, topicName string, content interface{}) error {
	projectID, topicID, err := ParsePubSubResourceName(topicName)
	if err != nil {
		return err
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return err
	}
	defer client.Close()

	b, err := json.Marshal(content)
	if err != nil {
		return err
	}
	log.Infof("topic: %s; message: %s", topicName, string(b))

	topic := client.Topic(topicID)
	defer topic.Stop()
	_, err = topic.Publish(ctx, &pubsub.Message{Data: b}).Get(ctx)
	return err
}

// IsFileGlobExist checks if there is any file that matches the input pattern.
func IsFileGlobExist(ctx context.Context, glob string) (bool, error) {
	if strings.TrimSpace(glob) == "" {
		return false, nil
	}
	fs, err := filesystem.New(ctx, glob)
	if err != nil {
		return false, err
	}
	defer fs.Close()

	files, err := fs.List(ctx, glob)
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

// ErrEmptyFile is returned by ReadNonemptyLines when a file holds no content.
var ErrEmptyFile = errors.New("file is empty")

// ReadNonemptyLines reads the lines of a file, dropping blank ones, and fails if none is left.
func ReadNonemptyLines(ctx context.Context, filename string) ([]string, error) {
	lines, err := ReadLines(ctx, filename)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyFile, filename)
	}
	return result, nil
}
