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

// Package transfer turns a command line into an HTCondor transfer job and
// follows that job to completion.
package transfer

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/htcondor/xfer/classads"
)

type Mode string

const (
	ModePush Mode = "push"
	ModePull Mode = "pull"
	ModeSync Mode = "sync"
)

var Modes = []Mode{ModePush, ModePull, ModeSync}

type (
	// Request is a single validated transfer.  An empty Requirements means
	// no machine-selection predicate was given.
	Request struct {
		Mode         Mode
		Source       string
		Destination  string
		Requirements string
	}

	// Invocation is a parsed transfer command line: the request plus the
	// switches that only affect how the CLI follows the job.
	Invocation struct {
		Request Request
		Wait    bool
		DryRun  bool
	}
)

// ParseMode returns the Mode named by s.
func ParseMode(s string) (Mode, error) {
	for _, mode := range Modes {
		if s == string(mode) {
			return mode, nil
		}
	}
	return "", &ArgumentError{Msg: fmt.Sprintf("invalid mode %q; must be one of push, pull or sync", s)}
}

func (r Request) HasRequirements() bool {
	return r.Requirements != ""
}

// Parse builds a Request from `<mode> <source> <destination>
// [--requirements=<predicate>]`.
func Parse(args []string) (Request, error) {
	inv, err := ParseInvocation(args, nil)
	return inv.Request, err
}

// ParseInvocation is Parse plus the --wait and --dry-run switches.  Flags in
// extra (the global flags of the calling command) are accepted and applied
// as well.  A request for help is returned as pflag.ErrHelp.
func ParseInvocation(args []string, extra *pflag.FlagSet) (Invocation, error) {
	var inv Invocation
	if len(args) == 0 {
		return inv, &ArgumentError{Msg: "missing transfer mode"}
	}
	mode, err := ParseMode(args[0])
	if err != nil {
		return inv, err
	}

	fs := pflag.NewFlagSet("xfer "+string(mode), pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	requirements := fs.String("requirements", "", "HTCondor expression selecting the machine on the remote side of the transfer")
	fs.BoolVarP(&inv.Wait, "wait", "w", false, "Wait for the transfer job to finish")
	fs.BoolVar(&inv.DryRun, "dry-run", false, "Print the submit description instead of submitting it")
	if extra != nil {
		fs.AddFlagSet(extra)
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return inv, pflag.ErrHelp
		}
		return inv, &ArgumentError{Msg: "invalid arguments", Err: err}
	}

	positional := fs.Args()
	if len(positional) != 2 {
		return inv, &ArgumentError{Msg: fmt.Sprintf("expected <source> and <destination>, got %d arguments", len(positional))}
	}
	if positional[0] == "" {
		return inv, &ArgumentError{Msg: "source path is empty"}
	}
	if positional[1] == "" {
		return inv, &ArgumentError{Msg: "destination path is empty"}
	}
	for _, p := range positional {
		if strings.ContainsAny(p, "\r\n") {
			return inv, &ArgumentError{Msg: fmt.Sprintf("path %q contains a line break", p)}
		}
	}
	if fs.Changed("requirements") {
		if err := classads.ValidateExpression(*requirements); err != nil {
			return inv, &ArgumentError{Msg: "invalid --requirements expression", Err: err}
		}
	}

	inv.Request = Request{
		Mode:         mode,
		Source:       positional[0],
		Destination:  positional[1],
		Requirements: *requirements,
	}
	if mode == ModeSync {
		inv.Wait = true
	}
	return inv, nil
}
