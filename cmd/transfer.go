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
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/htcondor/xfer/condor"
	"github.com/htcondor/xfer/config"
	"github.com/htcondor/xfer/filecopy"
	"github.com/htcondor/xfer/manifest"
	"github.com/htcondor/xfer/metrics"
	"github.com/htcondor/xfer/param"
	"github.com/htcondor/xfer/transfer"
)

const transferFlagsHelp = `
Flags:
      --requirements string   HTCondor expression selecting the machine on the
                              remote side of the transfer, passed through verbatim
  -w, --wait                  Wait for the transfer job to finish
      --dry-run               Print the submit description instead of submitting it
`

var (
	pushCmd = newTransferCmd(transfer.ModePush, "Copy a local file to a machine in the pool",
		`Ship <source> from this host to the machine selected by --requirements and
write it to <destination> there.`)

	pullCmd = newTransferCmd(transfer.ModePull, "Copy a file from a machine in the pool to this host",
		`Copy <source> from the machine selected by --requirements to <destination>
on this host.  A <destination>.metadata file records the size and SHA-1
digest of the source.`)

	syncCmd = newTransferCmd(transfer.ModeSync, "Pull a file and verify the copy",
		`Pull <source> to <destination>, wait for the job to finish, then check the
copy against the size and SHA-1 digest measured at the source.  The result
is appended to a manifest under Sync.ManifestDir.  Files at the destination
are never deleted.`)
)

func newTransferCmd(mode transfer.Mode, short, long string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     string(mode) + " <source> <destination>",
		Short:   short,
		Long:    long + "\n" + transferFlagsHelp,
		Example: fmt.Sprintf(`  xfer %s /data/run1.tar /scratch/run1.tar --requirements='UniqueName == "M1"'`, mode),
		// Parsed by transfer.ParseInvocation so --requirements reaches
		// HTCondor untouched
		DisableFlagParsing: true,
		RunE:               transferMain,
	}
	return cmd
}

func transferMain(cmd *cobra.Command, args []string) error {
	inv, err := transfer.ParseInvocation(append([]string{cmd.Name()}, args...), cmd.InheritedFlags())
	if errors.Is(err, pflag.ErrHelp) {
		return cmd.Help()
	}
	if err != nil {
		return err
	}
	if err := config.InitClient(); err != nil {
		return errors.Wrap(err, "failed to initialize config")
	}
	req := inv.Request
	// Sync verifies the destination on this host
	if host := param.Condor_SubmitHost.GetString(); host != "" && req.Mode == transfer.ModeSync {
		return &transfer.ArgumentError{Msg: fmt.Sprintf("sync is not supported when submitting through %s (%s)",
			host, param.Condor_SubmitHost.GetName())}
	}

	opts, err := jobOptions()
	if err != nil {
		return err
	}
	job := transfer.BuildJob(req, opts)
	if inv.DryRun {
		fmt.Print(job.String())
		return nil
	}

	sched, err := newScheduler()
	if err != nil {
		return err
	}
	defer writeMetrics()

	ctx := cmd.Context()
	handle, err := transfer.Submit(ctx, sched, job)
	metrics.ObserveSubmission(string(req.Mode), err)
	if err != nil {
		return err
	}
	submittedAt := clock.Now()

	ldg := openLedger()
	if ldg != nil {
		defer ldg.Close()
		if err := ldg.Record(param.Condor_ScheddName.GetString(), handle, req, submittedAt); err != nil {
			log.Warnln("Failed to record the transfer in the ledger:", err)
		}
	}

	report := jobReport{
		Handle:      handle.String(),
		Mode:        string(req.Mode),
		Source:      req.Source,
		Destination: req.Destination,
	}
	if !inv.Wait {
		if outputJSON {
			return printJSON(report)
		}
		fmt.Println(report.Handle)
		return nil
	}

	status, err := waitForJob(ctx, sched, handle, ldg, string(req.Mode))
	if err != nil {
		return err
	}
	if req.Mode == transfer.ModeSync {
		if err := finishSync(req, opts, handle); err != nil {
			return err
		}
	}
	report.setStatus(status)
	return printReport(report)
}

// finishSync checks the pulled file against the metadata measured at the
// source and appends the outcome to the sync manifest.
func finishSync(req transfer.Request, opts transfer.JobOptions, handle condor.JobHandle) error {
	started := float64(clock.Now().UnixNano()) / 1e9
	meta, err := filecopy.Verify(req.Destination, transfer.MetadataPath(req, opts))
	if err != nil {
		return &transfer.VerificationError{Destination: req.Destination, Err: err}
	}

	dir := param.Sync_ManifestDir.GetString()
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Warnln("Failed to create the sync manifest directory:", err)
		return nil
	}
	path := filepath.Join(dir, "sync-"+handle.String()+".txt")
	finished := float64(clock.Now().UnixNano()) / 1e9
	err = manifest.Append(path,
		&manifest.SyncRequest{
			Direction:       manifest.Pull,
			Timestamp:       started,
			RemotePrefix:    filepath.Dir(req.Source),
			FilesAtSource:   1,
			FilesToTransfer: 1,
			BytesToTransfer: meta.Size,
			FilesToVerify:   1,
			BytesToVerify:   meta.Size,
		},
		&manifest.TransferComplete{
			Name:      req.Source,
			Size:      meta.Size,
			Digest:    meta.Digest,
			Timestamp: finished,
		},
		&manifest.SyncDone{Timestamp: finished},
	)
	if err != nil {
		log.Warnln("Failed to write the sync manifest:", err)
		return nil
	}
	log.Infoln("Recorded sync in", path)
	return nil
}

func writeMetrics() {
	if err := metrics.WriteTextfile(param.Metrics_TextfilePath.GetString(), clock.Now()); err != nil {
		log.Warnln(err)
	}
}
