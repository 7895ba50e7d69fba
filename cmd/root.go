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
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/htcondor/xfer/cmd/config_printer"
	"github.com/htcondor/xfer/logging"
	"github.com/htcondor/xfer/param"
	"github.com/htcondor/xfer/transfer"
)

var (
	outputJSON bool

	rootCmd = &cobra.Command{
		Use:   "xfer",
		Short: "Move data between hosts with HTCondor transfer jobs",
		Long: `xfer builds HTCondor jobs that push, pull or sync a file between
this host and a machine in an HTCondor pool, submits them, and
reports on their progress.  HTCondor does the queuing, matchmaking
and the transfer itself.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// exitError carries an explicit process exit code through cobra.
type exitError struct {
	err  error
	code int
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return transfer.ExitCode(err)
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	// Errors from cobra itself (unknown command, bad flag) arrive before
	// the configuration has been read
	logging.FlushLogs(false)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warnln("Interrupted; any submitted job is still queued")
		} else {
			log.Errorln(err)
		}
	}
	code := exitCode(err)
	if err != nil && code == transfer.ExitOK {
		code = transfer.ExitOther
	}
	return code
}

func init() {
	logging.SetupLogBuffering()

	rootCmd.AddCommand(pushCmd, pullCmd, syncCmd)
	rootCmd.AddCommand(statusCmd, listCmd)
	rootCmd.AddCommand(execCmd, verifyCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(config_printer.ConfigCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.xfer/config.yaml)")
	flags.BoolP("debug", "d", false, "Enable debug logs")
	flags.StringP("log", "l", "", "Specified log output file")
	flags.BoolVarP(&outputJSON, "json", "", false, "output results in JSON format")
	flags.String("pool", "", "HTCondor central manager to query")
	flags.String("name", "", "Name of the HTCondor access point (schedd) to submit to")
	// Registered so --help shows it; handleCLI does the work
	flags.BoolP("version", "", false, "Print the version and exit")

	for flag, key := range map[string]param.Param{
		"config": param.ConfigFile,
		"debug":  param.Debug,
		"log":    param.Logging_LogLocation,
		"json":   param.OutputJSON,
		"pool":   param.Condor_Pool,
		"name":   param.Condor_ScheddName,
	} {
		if err := viper.BindPFlag(key.GetName(), flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}
