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
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/htcondor/xfer/config"
	"github.com/htcondor/xfer/snapshot"
)

var (
	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Record and compare the contents of directory trees",
	}

	snapshotMakeCmd = &cobra.Command{
		Use:   "make <dir>",
		Short: "Print a snapshot of every file beneath a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  snapshotMakeMain,
	}

	snapshotCompareCmd = &cobra.Command{
		Use:   "compare <snapshot1> <snapshot2>",
		Short: "Print the differences between two snapshots",
		Args:  cobra.ExactArgs(2),
		RunE:  snapshotCompareMain,
	}

	snapshotOutput string

	// Replaced by tests
	snapshotFs = afero.NewOsFs()
)

func init() {
	snapshotMakeCmd.Flags().StringVarP(&snapshotOutput, "output", "o", "", "Write the snapshot to this file instead of stdout")
	snapshotCmd.AddCommand(snapshotMakeCmd)
	snapshotCmd.AddCommand(snapshotCompareCmd)
}

func snapshotMakeMain(cmd *cobra.Command, args []string) error {
	if err := config.InitClient(); err != nil {
		return errors.Wrap(err, "failed to initialize config")
	}
	root, err := filepath.Abs(args[0])
	if err != nil {
		return errors.Wrapf(err, "invalid directory %s", args[0])
	}
	snap, err := snapshot.Make(snapshotFs, root)
	if err != nil {
		return err
	}

	if snapshotOutput == "" {
		return snap.Write(os.Stdout)
	}
	f, err := snapshotFs.Create(snapshotOutput)
	if err != nil {
		return errors.Wrap(err, "failed to create snapshot file")
	}
	if err := snap.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func snapshotCompareMain(cmd *cobra.Command, args []string) error {
	if err := config.InitClient(); err != nil {
		return errors.Wrap(err, "failed to initialize config")
	}
	s1, err := snapshot.Load(snapshotFs, args[0])
	if err != nil {
		return err
	}
	s2, err := snapshot.Load(snapshotFs, args[1])
	if err != nil {
		return err
	}

	diffs := snapshot.Compare(s1, s2)
	if outputJSON {
		return printJSON(snapshot.Describe(s1, s2, diffs))
	}
	for _, line := range snapshot.Describe(s1, s2, diffs) {
		fmt.Println(line)
	}
	return nil
}
