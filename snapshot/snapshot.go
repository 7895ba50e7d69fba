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

// Package snapshot records the files beneath a directory together with their
// size and SHA-1 digest, so two copies of a tree can be compared.
package snapshot

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Version is the snapshot format written by Make.
const Version = "2"

type (
	FileMetadata struct {
		SHA1Digest string `json:"sha1_digest"`
		Size       int64  `json:"size"`
	}

	// Snapshot fields are in alphabetical order so the JSON keys are sorted.
	Snapshot struct {
		Manifest map[string]FileMetadata `json:"manifest"`
		Root     string                  `json:"root"`
		Version  string                  `json:"version"`
	}

	DifferenceKind int

	Difference struct {
		Kind DifferenceKind
		Path string
	}
)

const (
	OnlyInFirst DifferenceKind = iota
	OnlyInSecond
	Differs
)

func hashFile(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "failed to read %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Make walks root in lexical order and records every file.  Anything that
// is not a regular file or a directory is an error.
func Make(fs afero.Fs, root string) (*Snapshot, error) {
	snap := &Snapshot{
		Manifest: make(map[string]FileMetadata),
		Root:     root,
		Version:  Version,
	}
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		log.Debugln("PATH", path)
		if !info.Mode().IsRegular() {
			return errors.Errorf("not a regular file: %s", path)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		digest, err := hashFile(fs, path)
		if err != nil {
			return err
		}
		snap.Manifest[filepath.ToSlash(rel)] = FileMetadata{SHA1Digest: digest, Size: info.Size()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Load reads a snapshot written by Write.
func Load(fs afero.Fs, path string) (*Snapshot, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read snapshot")
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrapf(err, "failed to parse snapshot %s", path)
	}
	if snap.Version != Version {
		return nil, errors.Errorf("snapshot %s has version %q; only version %q is understood", path, snap.Version, Version)
	}
	return &snap, nil
}

// Write encodes the snapshot as indented JSON.
func (s *Snapshot) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// Compare lists the differences between two snapshots, grouped by kind and
// sorted by path within each kind.
func Compare(s1, s2 *Snapshot) []Difference {
	var diffs []Difference
	for path, m1 := range s1.Manifest {
		m2, ok := s2.Manifest[path]
		if !ok {
			diffs = append(diffs, Difference{Kind: OnlyInFirst, Path: path})
		} else if m1 != m2 {
			diffs = append(diffs, Difference{Kind: Differs, Path: path})
		}
	}
	for path := range s2.Manifest {
		if _, ok := s1.Manifest[path]; !ok {
			diffs = append(diffs, Difference{Kind: OnlyInSecond, Path: path})
		}
	}
	sort.Slice(diffs, func(i, j int) bool {
		if diffs[i].Kind != diffs[j].Kind {
			return diffs[i].Kind < diffs[j].Kind
		}
		return diffs[i].Path < diffs[j].Path
	})
	return diffs
}

// Describe renders the differences the way `xfer snapshot compare` prints them.
func Describe(s1, s2 *Snapshot, diffs []Difference) []string {
	r1, r2 := s1.Root, s2.Root
	if r1 == r2 {
		r1 += "@1"
		r2 += "@2"
	}
	lines := make([]string, 0, len(diffs))
	for _, diff := range diffs {
		switch diff.Kind {
		case OnlyInFirst:
			lines = append(lines, fmt.Sprintf("In '%s' but not '%s': %s", r1, r2, diff.Path))
		case OnlyInSecond:
			lines = append(lines, fmt.Sprintf("In '%s' but not '%s': %s", r2, r1, diff.Path))
		case Differs:
			lines = append(lines, fmt.Sprintf("Files differ: %s", diff.Path))
		}
	}
	return lines
}
