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

// Package dict contains a bidirectional codec between the string values of a dataset and
// the integer item IDs used by the anonymization algorithms.
package dict

// Dict assigns consecutive IDs, starting at 0, to strings in the order they are first encoded.
type Dict struct {
	ids     map[string]int
	strings []string
}

// New creates an empty Dict.
func New() *Dict {
	return &Dict{ids: make(map[string]int)}
}

// Encode returns the representation of s, assigning the next free ID if s has not been seen.
func (d *Dict) Encode(s string) int {
	if id, ok := d.ids[s]; ok {
		return id
	}
	id := len(d.strings)
	d.ids[s] = id
	d.strings = append(d.strings, s)
	return id
}

// Representation returns the ID of s without modifying the Dict.
func (d *Dict) Representation(s string) (int, bool) {
	id, ok := d.ids[s]
	return id, ok
}

// String returns the value encoded as id.
func (d *Dict) String(id int) (string, bool) {
	if id < 0 || id >= len(d.strings) {
		return "", false
	}
	return d.strings[id], true
}

// Len returns the number of encoded strings.
func (d *Dict) Len() int {
	return len(d.strings)
}
