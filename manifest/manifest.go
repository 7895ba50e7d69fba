/***************************************************************
 *
 * Copyright (C) 2024, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

// Package manifest reads and writes xfer manifests: text files with one entry
// per line of the form `ENTRY_TYPE {json}`.  Blank lines and lines starting
// with `#` are ignored.
package manifest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

type Direction string

const (
	Push Direction = "push"
	Pull Direction = "pull"
)

type (
	// Entry is implemented by every manifest line type.
	Entry interface {
		isEntry()
	}

	TransferRequest struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}

	VerifyRequest struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}

	TransferComplete struct {
		Name      string  `json:"name"`
		Size      int64   `json:"size"`
		Digest    string  `json:"digest"`
		Timestamp float64 `json:"timestamp"`
	}

	SyncRequest struct {
		Direction       Direction `json:"direction"`
		Timestamp       float64   `json:"timestamp"`
		RemotePrefix    string    `json:"remote_prefix"`
		FilesAtSource   int       `json:"files_at_source"`
		FilesToTransfer int       `json:"files_to_transfer"`
		BytesToTransfer int64     `json:"bytes_to_transfer"`
		FilesToVerify   int       `json:"files_to_verify"`
		BytesToVerify   int64     `json:"bytes_to_verify"`
	}

	SyncDone struct {
		Timestamp float64 `json:"timestamp"`
	}

	File struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}

	Metadata struct {
		Name   string `json:"name"`
		Size   int64  `json:"size"`
		Digest string `json:"digest"`
	}

	// Line is an entry together with the line it was read from.
	Line struct {
		Entry  Entry
		Number int
	}
)

func (*TransferRequest) isEntry()  {}
func (*VerifyRequest) isEntry()    {}
func (*TransferComplete) isEntry() {}
func (*SyncRequest) isEntry()      {}
func (*SyncDone) isEntry()         {}
func (*File) isEntry()             {}
func (*Metadata) isEntry()         {}

var (
	firstCapRe = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	allCapRe   = regexp.MustCompile(`([a-z0-9])([A-Z])`)

	entryTypes = map[string]reflect.Type{}
)

func init() {
	for _, entry := range []Entry{
		&TransferRequest{}, &VerifyRequest{}, &TransferComplete{},
		&SyncRequest{}, &SyncDone{}, &File{}, &Metadata{},
	} {
		entryTypes[EntryType(entry)] = reflect.TypeOf(entry).Elem()
	}
}

// CamelToUpperSnake converts a CamelCase identifier to UPPER_SNAKE_CASE;
// runs of capitals are kept together ("DAGMan" becomes "DAG_MAN").
func CamelToUpperSnake(s string) string {
	s = firstCapRe.ReplaceAllString(s, "${1}_${2}")
	s = allCapRe.ReplaceAllString(s, "${1}_${2}")
	return strings.ToUpper(s)
}

// EntryType returns the key an entry is written under, e.g. TRANSFER_COMPLETE.
func EntryType(entry Entry) string {
	t := reflect.TypeOf(entry)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return CamelToUpperSnake(t.Name())
}

// Write appends one entry to w.
func Write(w io.Writer, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s entry", EntryType(entry))
	}
	_, err = fmt.Fprintf(w, "%s %s\n", EntryType(entry), data)
	return err
}

// Append opens path for appending and writes the entries.
func Append(path string, entries ...Entry) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to open manifest")
	}
	for _, entry := range entries {
		if err := Write(f, entry); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// ParseLine decodes a single non-blank, non-comment line.
func ParseLine(line string) (Entry, error) {
	key, payload, _ := strings.Cut(strings.TrimSpace(line), " ")
	entryType, ok := entryTypes[key]
	if !ok {
		return nil, errors.Errorf("unknown manifest entry type %q", key)
	}
	entry := reflect.New(entryType).Interface().(Entry)
	if err := json.Unmarshal([]byte(payload), entry); err != nil {
		return nil, errors.Wrapf(err, "malformed %s entry", key)
	}
	return entry, nil
}

// Read decodes every entry in r.
func Read(r io.Reader) ([]Line, error) {
	var lines []Line
	scanner := bufio.NewScanner(r)
	number := 0
	for scanner.Scan() {
		number++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		entry, err := ParseLine(text)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", number)
		}
		lines = append(lines, Line{Entry: entry, Number: number})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}
	return lines, nil
}

// ReadFile decodes every entry in the file at path.
func ReadFile(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open manifest")
	}
	defer f.Close()
	return Read(f)
}
