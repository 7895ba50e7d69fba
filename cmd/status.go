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
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/htcondor/xfer/condor"
	"github.com/htcondor/xfer/config"
	"github.com/htcondor/xfer/ledger"
	"github.com/htcondor/xfer/metrics"
	"github.com/htcondor/xfer/param"
	"github.com/htcondor/xfer/transfer"
)

var (
	statusCmd = &cobra.Command{
		Use:   "status <job-id>",
		Short: "Get the status of a transfer job",
		Long: `Query the scheduler for the state of a transfer job: idle, running,
held, completed or failed.  With --watch, keep checking until the job
finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: statusMain,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List recently submitted transfers",
		Long: `List the transfers recorded in the local ledger, most recent first,
with the status last seen for each.`,
		Args: cobra.NoArgs,
		RunE: listMain,
	}

	statusWatch bool
	listLimit   int
)

// jobReport is what xfer prints about a job.
type jobReport struct {
	Handle      string `json:"handle"`
	Schedd      string `json:"schedd,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Source      string `json:"source,omitempty"`
	Destination string `json:"destination,omitempty"`
	Status      string `json:"status,omitempty"`
	ExitCode    int    `json:"exit_code,omitempty"`
	HoldReason  string `json:"hold_reason,omitempty"`
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Watch job status until completion")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of transfers to list (0 for all)")
}

func (r *jobReport) setStatus(status condor.Status) {
	r.Status = string(status.State)
	r.ExitCode = status.ExitCode
	r.HoldReason = status.HoldReason
}

func reportFromLedger(rec *ledger.Transfer) jobReport {
	return jobReport{
		Handle:      rec.Handle().String(),
		Schedd:      rec.Schedd,
		Mode:        rec.Mode,
		Source:      rec.Source,
		Destination: rec.Destination,
		Status:      rec.Status,
		ExitCode:    rec.ExitCode,
		HoldReason:  rec.HoldReason,
	}
}

func printReport(report jobReport) error {
	if outputJSON {
		return printJSON(report)
	}
	fmt.Printf("Job ID: %s\n", report.Handle)
	if report.Mode != "" {
		fmt.Printf("Transfer: %s %s -> %s\n", report.Mode, report.Source, report.Destination)
	}
	fmt.Printf("Status: %s\n", report.Status)
	if report.ExitCode != 0 {
		fmt.Printf("Exit code: %d\n", report.ExitCode)
	}
	if report.HoldReason != "" {
		fmt.Printf("Hold reason: %s\n", report.HoldReason)
	}
	return nil
}

// waitForJob polls until the job is finished, keeping the ledger current
// and showing a spinner on an interactive terminal.
func waitForJob(ctx context.Context, sched condor.Scheduler, handle condor.JobHandle, ldg *ledger.Ledger, mode string) (condor.Status, error) {
	start := clock.Now()
	spinner := newStatusSpinner(ctx, handle)
	poller := &transfer.Poller{
		Scheduler: sched,
		Interval:  param.Transfer_PollInterval.GetDuration(),
		Clock:     clock,
		OnUpdate: func(status condor.Status) {
			spinner.update(status)
			updateLedger(ldg, status)
		},
	}
	status, err := poller.Poll(ctx, handle)
	spinner.shutdown()
	metrics.ObserveFinished(mode, status, clock.Since(start))
	return status, err
}

func updateLedger(ldg *ledger.Ledger, status condor.Status) {
	if ldg == nil {
		return
	}
	if err := ldg.UpdateStatus(param.Condor_ScheddName.GetString(), status, clock.Now()); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			log.Debugln("Job", status.Handle, "is not in the ledger")
		} else {
			log.Warnln("Failed to update the ledger:", err)
		}
	}
}

func statusMain(cmd *cobra.Command, args []string) error {
	handle, err := condor.ParseJobHandle(args[0])
	if err != nil {
		return &transfer.ArgumentError{Msg: "invalid job id", Err: err}
	}
	if err := config.InitClient(); err != nil {
		return errors.Wrap(err, "failed to initialize config")
	}

	sched, err := newScheduler()
	if err != nil {
		return err
	}

	report := jobReport{Handle: handle.String()}
	mode := "unknown"
	ldg := openLedger()
	if ldg != nil {
		defer ldg.Close()
		if rec, err := ldg.Get(param.Condor_ScheddName.GetString(), handle); err == nil {
			report = reportFromLedger(rec)
			mode = rec.Mode
		}
	}

	ctx := cmd.Context()
	if statusWatch {
		defer writeMetrics()
		status, err := waitForJob(ctx, sched, handle, ldg, mode)
		var failure *transfer.JobFailure
		if err != nil && !errors.As(err, &failure) {
			return err
		}
		report.setStatus(status)
		if printErr := printReport(report); printErr != nil {
			return printErr
		}
		return err
	}

	status, err := sched.Query(ctx, handle)
	if err != nil {
		return &transfer.PollError{Handle: handle, Err: err}
	}
	updateLedger(ldg, status)
	report.setStatus(status)
	return printReport(report)
}

func listMain(cmd *cobra.Command, args []string) error {
	if err := config.InitClient(); err != nil {
		return errors.Wrap(err, "failed to initialize config")
	}
	if param.Ledger_Path.GetString() == "" {
		return errors.Errorf("the transfer ledger is disabled; set %s to enable it", param.Ledger_Path.GetName())
	}
	ldg, err := ledger.Open(param.Ledger_Path.GetString())
	if err != nil {
		return err
	}
	defer ldg.Close()

	recs, err := ldg.List(listLimit)
	if err != nil {
		return err
	}

	if outputJSON {
		reports := make([]jobReport, 0, len(recs))
		for idx := range recs {
			reports = append(reports, reportFromLedger(&recs[idx]))
		}
		return printJSON(reports)
	}

	if len(recs) == 0 {
		fmt.Println("No transfers found")
		return nil
	}
	fmt.Printf("%-12s %-5s %-10s %-20s %s\n", "Job ID", "Mode", "Status", "Submitted", "Transfer")
	fmt.Println("─────────────────────────────────────────────────────────────────────────────────────────────")
	for _, rec := range recs {
		fmt.Printf("%-12s %-5s %-10s %-20s %s -> %s\n",
			rec.Handle(),
			rec.Mode,
			rec.Status,
			rec.SubmittedAt.Local().Format(time.RFC3339),
			rec.Source,
			rec.Destination)
	}
	return nil
}
