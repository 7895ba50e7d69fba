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
	"crypto/sha1"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	bufferSize       = 1 << 20 // 1 MiB
	progressInterval = 5 * time.Second
)

// Result describes the bytes that went through a copy or hash.
type Result struct {
	Digest string
	Size   int64
}

// progressWriter logs how far a copy has got, at most once per interval.
type progressWriter struct {
	verb     string
	total    int64
	written  int64
	lastLog  time.Time
	interval time.Duration
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	pw.written += int64(len(p))
	if now := time.Now(); now.Sub(pw.lastLog) > pw.interval {
		pct := 100.0
		if pw.total > 0 {
			pct = float64(pw.written) / float64(pw.total) * 100
		}
		log.Infof("%s %s of %s; %.1f%% done", pw.verb, humanize.IBytes(uint64(pw.written)), humanize.IBytes(uint64(pw.total)), pct)
		pw.lastLog = now
	}
	return len(p), nil
}

func openRegular(path string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, errors.Errorf("not a regular file: %s", path)
	}
	return f, info, nil
}

func digestOf(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// HashFile computes the SHA-1 digest and size of a regular file.
func HashFile(path string) (Result, error) {
	f, info, err := openRegular(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	h := sha1.New()
	progress := &progressWriter{verb: "Hashed", total: info.Size(), lastLog: time.Now(), interval: progressInterval}
	n, err := io.CopyBuffer(io.MultiWriter(h, progress), f, make([]byte, bufferSize))
	if err != nil {
		return Result{}, errors.Wrapf(err, "failed to read %s", path)
	}
	return Result{Digest: digestOf(h), Size: n}, nil
}

// CopyWithHash copies src to dst, computing the SHA-1 digest of the data as
// it goes.  The data is written to a temporary file next to dst, synced and
// renamed into place, so dst never exists unless the copy succeeded.
func CopyWithHash(src, dst string) (result Result, err error) {
	in, info, err := openRegular(src)
	if err != nil {
		return Result{}, err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".xfer-*")
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to create temporary file")
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	log.Infof("There are %s to copy", humanize.IBytes(uint64(info.Size())))
	h := sha1.New()
	progress := &progressWriter{verb: "Copied", total: info.Size(), lastLog: time.Now(), interval: progressInterval}
	n, err := io.CopyBuffer(io.MultiWriter(tmp, h, progress), in, make([]byte, bufferSize))
	if err != nil {
		return Result{}, errors.Wrapf(err, "failed to copy %s", src)
	}

	log.Infoln("Copy complete; about to synchronize file to disk")
	if err = tmp.Sync(); err != nil {
		return Result{}, errors.Wrap(err, "failed to sync destination")
	}
	if err = tmp.Close(); err != nil {
		return Result{}, errors.Wrap(err, "failed to close destination")
	}
	if err = os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return Result{}, errors.Wrap(err, "failed to set destination permissions")
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return Result{}, errors.Wrap(err, "failed to move destination into place")
	}
	log.Infoln("File synchronized to disk")

	return Result{Digest: digestOf(h), Size: n}, nil
}
