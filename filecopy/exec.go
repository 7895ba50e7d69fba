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

package filecopy

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/htcondor/xfer/manifest"
)

const (
	// DefaultOutput is the sandbox file a pull writes the data to.
	DefaultOutput = "file0"
	// MetadataFile is the sandbox file describing what was copied.
	MetadataFile = "metadata"

	// MaxMetadataSize bounds the metadata file read during verification.
	MaxMetadataSize = 16384

	jobAdEnv = "_CONDOR_JOB_AD"
)

type (
	// SizeMismatchError means the destination has a different size from the source.
	SizeMismatchError struct {
		Destination string
		Expected    int64
		Actual      int64
	}

	// DigestMismatchError means the destination contents differ from the source.
	DigestMismatchError struct {
		Destination string
		Source      string
		Expected    string
		Actual      string
	}
)

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("copied file %s is %d bytes but the source was %d bytes", e.Destination, e.Actual, e.Expected)
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("destination %s has SHA-1 digest %s, which does not match source %s (digest %s)",
		e.Destination, e.Actual, e.Source, e.Expected)
}

// InsideJob reports whether we are running under an HTCondor starter.
func InsideJob() bool {
	_, ok := os.LookupEnv(jobAdEnv)
	return ok
}

// Exec is the execute-side half of a transfer: it copies src to output and
// writes a metadata file describing the source into the working directory,
// which is the job sandbox, wherever output is.  It refuses to run outside
// an HTCondor job.
func Exec(src, output string) (manifest.Metadata, error) {
	if !InsideJob() {
		return manifest.Metadata{}, errors.New("this command must be run within the HTCondor runtime environment")
	}
	if output == "" {
		output = DefaultOutput
	}

	log.Infof("About to copy %s to %s", src, output)
	result, err := CopyWithHash(src, output)
	if err != nil {
		return manifest.Metadata{}, err
	}

	meta := manifest.Metadata{Name: src, Size: result.Size, Digest: result.Digest}
	log.Infof("File metadata: hash=%s, size=%d", meta.Digest, meta.Size)

	f, err := os.Create(MetadataFile)
	if err != nil {
		return meta, errors.Wrap(err, "failed to create metadata file")
	}
	if err := manifest.Write(f, &meta); err != nil {
		f.Close()
		return meta, err
	}
	return meta, f.Close()
}

// ReadMetadata loads the single METADATA entry from a metadata file.
func ReadMetadata(path string) (manifest.Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return manifest.Metadata{}, errors.Wrap(err, "failed to read metadata file")
	}
	if info.Size() > MaxMetadataSize {
		return manifest.Metadata{}, errors.Errorf("metadata file %s is too large", path)
	}
	lines, err := manifest.ReadFile(path)
	if err != nil {
		return manifest.Metadata{}, err
	}
	if len(lines) != 1 {
		return manifest.Metadata{}, errors.Errorf("metadata file %s must hold exactly one entry, found %d", path, len(lines))
	}
	meta, ok := lines[0].Entry.(*manifest.Metadata)
	if !ok {
		return manifest.Metadata{}, errors.Errorf("metadata file %s holds a %s entry", path, manifest.EntryType(lines[0].Entry))
	}
	return *meta, nil
}

// Verify checks dest against the metadata file written by Exec: sizes first,
// then SHA-1 digests.
func Verify(dest, metadataPath string) (manifest.Metadata, error) {
	meta, err := ReadMetadata(metadataPath)
	if err != nil {
		return meta, err
	}

	log.Infoln("About to verify contents of", dest)
	info, err := os.Stat(dest)
	if err != nil {
		return meta, errors.Wrap(err, "failed to stat destination")
	}
	if info.Size() != meta.Size {
		return meta, &SizeMismatchError{Destination: dest, Expected: meta.Size, Actual: info.Size()}
	}

	result, err := HashFile(dest)
	if err != nil {
		return meta, err
	}
	if result.Digest != meta.Digest {
		return meta, &DigestMismatchError{Destination: dest, Source: meta.Name, Expected: meta.Digest, Actual: result.Digest}
	}
	log.Infof("File verification successful: destination (%s) and source (%s) have matching SHA-1 digest (%s)",
		dest, meta.Name, meta.Digest)
	return meta, nil
}
