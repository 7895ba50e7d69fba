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

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/htcondor/xfer/config"
	"github.com/htcondor/xfer/filecopy"
)

var (
	execCmd = &cobra.Command{
		Use:   "exec [--output <file>] <source>",
		Short: "Copy a file inside an HTCondor transfer job",
		Long: `Run on the execute machine as the payload of a transfer job: copy
<source> into the job sandbox while computing its SHA-1 digest, and write a
metadata file next to the copy for later verification.  Refuses to run
outside of HTCondor.`,
		Args: cobra.ExactArgs(1),
		RunE: execMain,
	}

	verifyCmd = &cobra.Command{
		Use:   "verify <destination> <metadata>",
		Short: "Check a copied file against the metadata taken at its source",
		Long: `Compare the size and SHA-1 digest of <destination> with the metadata
file written by "xfer exec".  Exits 2 when the sizes differ and 1 when
the contents differ.`,
		Args: cobra.ExactArgs(2),
		RunE: verifyMain,
	}

	execOutput string
)

func init() {
	execCmd.Flags().StringVarP(&execOutput, "output", "o", filecopy.DefaultOutput, "File to write the copy to")
}

func execMain(cmd *cobra.Command, args []string) error {
	if err := config.InitClient(); err != nil {
		return errors.Wrap(err, "failed to initialize config")
	}
	meta, err := filecopy.Exec(args[0], execOutput)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(meta)
	}
	return nil
}

func verifyMain(cmd *cobra.Command, args []string) error {
	if err := config.InitClient(); err != nil {
		return errors.Wrap(err, "failed to initialize config")
	}
	meta, err := filecopy.Verify(args[0], args[1])
	var sizeErr *filecopy.SizeMismatchError
	if errors.As(err, &sizeErr) {
		return &exitError{err: err, code: 2}
	}
	if err != nil {
		return &exitError{err: err, code: 1}
	}
	if outputJSON {
		return printJSON(meta)
	}
	fmt.Printf("%s matches %s (%d bytes, SHA-1 %s)\n", args[0], meta.Name, meta.Size, meta.Digest)
	return nil
}
