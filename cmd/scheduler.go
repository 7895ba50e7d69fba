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

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/htcondor/xfer/condor"
	"github.com/htcondor/xfer/ledger"
	"github.com/htcondor/xfer/param"
	"github.com/htcondor/xfer/transfer"
)

var (
	// Replaced by tests
	newScheduler                 = defaultScheduler
	clock        clockwork.Clock = clockwork.NewRealClock()
)

func defaultScheduler() (condor.Scheduler, error) {
	var runner condor.Runner = condor.LocalRunner{BinDir: param.Condor_BinDir.GetString()}
	if host := param.Condor_SubmitHost.GetString(); host != "" {
		sshRunner, err := condor.NewSSHRunner(condor.SSHConfig{
			Host:           host,
			Port:           param.Condor_SSHPort.GetInt(),
			User:           param.Condor_SSHUser.GetString(),
			KeyFile:        param.Condor_SSHKeyFile.GetString(),
			KnownHostsFile: param.Condor_SSHKnownHosts.GetString(),
			Timeout:        param.Condor_CommandTimeout.GetDuration(),
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to set up ssh to %s", host)
		}
		sshRunner.BinDir = param.Condor_BinDir.GetString()
		runner = sshRunner
		log.Debugln("Running HTCondor tools on", host)
	}
	return condor.NewClient(runner,
		param.Condor_Pool.GetString(),
		param.Condor_ScheddName.GetString(),
		param.Condor_CommandTimeout.GetDuration()), nil
}

// jobOptions collects the site settings for BuildJob.  For a local schedd
// the log directory is made absolute, since the schedd resolves paths
// against its own working directory, and created.  A remote access point
// cannot run the local binary, so Transfer.Executable must be set for it.
func jobOptions() (transfer.JobOptions, error) {
	opts := transfer.JobOptions{
		Executable:      param.Transfer_Executable.GetString(),
		LogDir:          param.Transfer_LogDir.GetString(),
		ExtraAttributes: param.Transfer_ExtraAttributes.GetStringMap(),
	}
	submitHost := param.Condor_SubmitHost.GetString()
	if opts.Executable == "" {
		if submitHost != "" {
			return opts, &transfer.ArgumentError{Msg: fmt.Sprintf("%s must be set when submitting through %s",
				param.Transfer_Executable.GetName(), submitHost)}
		}
		exe, err := os.Executable()
		if err != nil {
			return opts, errors.Wrap(err, "failed to locate the xfer executable; set Transfer.Executable")
		}
		opts.Executable = exe
	}
	if submitHost == "" {
		logDir, err := filepath.Abs(opts.LogDir)
		if err != nil {
			return opts, errors.Wrap(err, "invalid Transfer.LogDir")
		}
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return opts, errors.Wrapf(err, "failed to create the job log directory %s", logDir)
		}
		opts.LogDir = logDir
	}
	return opts, nil
}

// openLedger returns nil when the ledger is disabled.  Failing to open it
// is logged rather than fatal; the ledger is a convenience.
func openLedger() *ledger.Ledger {
	path := param.Ledger_Path.GetString()
	if path == "" {
		return nil
	}
	l, err := ledger.Open(path)
	if err != nil {
		log.Warnln("Transfer ledger is unavailable:", err)
		return nil
	}
	return l
}

func printJSON(v interface{}) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	fmt.Println(string(jsonBytes))
	return nil
}
