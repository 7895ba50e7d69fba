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

package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htcondor/xfer/param"
)

func TestFlushLogsToFile(t *testing.T) {
	viper.Reset()
	ResetLogFlush()
	t.Cleanup(func() {
		CloseLogger()
		ResetLogFlush()
		log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
		log.SetOutput(os.Stderr)
		viper.Reset()
	})

	logFile := filepath.Join(t.TempDir(), "logs", "xfer.log")
	viper.Set(param.Logging_LogLocation.GetName(), logFile)

	SetupLogBuffering()
	log.Infoln("buffered before flush")

	_, err := os.Stat(logFile)
	assert.True(t, os.IsNotExist(err), "log file must not exist before flushing")

	FlushLogs(true)
	log.Infoln("written after flush")

	contents, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "buffered before flush")
	assert.Contains(t, string(contents), "written after flush")
}

func TestFlushLogsDropsDisabledLevels(t *testing.T) {
	viper.Reset()
	ResetLogFlush()
	t.Cleanup(func() {
		CloseLogger()
		ResetLogFlush()
		log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
		viper.Reset()
	})

	logFile := filepath.Join(t.TempDir(), "xfer.log")
	viper.Set(param.Logging_LogLocation.GetName(), logFile)

	SetupLogBuffering()
	log.Infoln("informational")
	log.Warnln("warning")
	log.SetLevel(log.WarnLevel)
	FlushLogs(true)

	contents, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.NotContains(t, string(contents), "informational")
	assert.Contains(t, string(contents), "warning")
}
