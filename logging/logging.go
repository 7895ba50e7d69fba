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

// Package logging holds log output until the configuration, and therefore the
// log destination, is known.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/go-kit/log/term"
	log "github.com/sirupsen/logrus"

	"github.com/htcondor/xfer/param"
)

// BufferedLogHook buffers log entries until they are flushed
type BufferedLogHook struct {
	mu      sync.Mutex
	entries []*log.Entry
	flushed atomic.Bool
}

var (
	bufferedHook atomic.Pointer[BufferedLogHook]
	flushOnce    sync.Once
	logFHandle   *os.File
)

// ResetLogFlush lets unit tests run the setup/flush cycle more than once.
func ResetLogFlush() {
	flushOnce = sync.Once{}
	bufferedHook.Store(nil)
}

func (hook *BufferedLogHook) Fire(entry *log.Entry) error {
	if hook.flushed.Load() {
		return nil
	}
	hook.mu.Lock()
	defer hook.mu.Unlock()
	hook.entries = append(hook.entries, entry)
	return nil
}

func (hook *BufferedLogHook) Levels() []log.Level {
	return log.AllLevels
}

// SetupLogBuffering discards direct output and buffers every entry until
// FlushLogs is called.
func SetupLogBuffering() {
	log.SetOutput(io.Discard)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		DisableColors: true,
	})

	hook := &BufferedLogHook{}
	if bufferedHook.CompareAndSwap(nil, hook) {
		log.AddHook(hook)
	}
}

// FlushLogs writes out the buffered entries and switches to direct logging,
// either to Logging.LogLocation (when pushToFile is set) or to stderr.
func FlushLogs(pushToFile bool) {
	flushOnce.Do(func() {
		logLocation := param.Logging_LogLocation.GetString()
		if pushToFile && logLocation != "" {
			if dir := filepath.Dir(logLocation); dir != "" {
				if err := os.MkdirAll(dir, 0750); err != nil {
					fmt.Fprintln(os.Stderr, "Failed to create log directory:", err)
				}
			}
			f, err := os.OpenFile(logLocation, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0640)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Failed to open log file; logging to stderr:", err)
				setStderrOutput()
			} else {
				logFHandle = f
				log.SetOutput(f)
				log.SetFormatter(&log.TextFormatter{
					FullTimestamp:          true,
					DisableColors:          true,
					DisableLevelTruncation: true,
				})
			}
		} else {
			setStderrOutput()
		}

		hook := bufferedHook.Load()
		if hook == nil || hook.flushed.Load() {
			return
		}
		hook.flushed.Store(true)

		hook.mu.Lock()
		entries := hook.entries
		hook.entries = nil
		hook.mu.Unlock()
		for _, entry := range entries {
			// Entries below the configured level stay dropped
			if !log.IsLevelEnabled(entry.Level) {
				continue
			}
			if formatted, err := log.StandardLogger().Formatter.Format(entry); err == nil {
				_, _ = log.StandardLogger().Out.Write(formatted)
			}
		}

		log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	})
}

func setStderrOutput() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:          true,
		ForceColors:            term.IsTerminal(os.Stderr),
		DisableLevelTruncation: true,
	})
}

// CloseLogger closes the log file, if any.  Only tests should need this.
func CloseLogger() {
	if logFHandle != nil {
		_ = logFHandle.Close()
		logFHandle = nil
	}
}
