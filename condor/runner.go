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

package condor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

type (
	// Runner executes an HTCondor command-line tool and returns its stdout.
	Runner interface {
		Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error)
	}

	// LocalRunner runs the tools on this host.
	LocalRunner struct {
		// BinDir, when set, is prepended to the tool name
		BinDir string
	}

	// CommandError is returned when an HTCondor tool exits non-zero.
	CommandError struct {
		Err    error
		Debug  string
		Stderr string
	}
)

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %q => %s", e.Err, e.Debug, strings.TrimSpace(e.Stderr))
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (r LocalRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error) {
	if r.BinDir != "" {
		name = filepath.Join(r.BinDir, name)
	}
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = stdin
	}

	debug := strings.Join(cmd.Args, " ")
	log.Debugln("Running", debug)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return stdout.Bytes(), &CommandError{
			Err:    err,
			Debug:  debug,
			Stderr: stderr.String(),
		}
	}
	return stdout.Bytes(), nil
}
