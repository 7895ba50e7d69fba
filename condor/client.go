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
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/htcondor/xfer/classads"
)

type (
	// Scheduler is the boundary to the external job scheduler.
	Scheduler interface {
		Submit(ctx context.Context, sd *SubmitDescription) (JobHandle, error)
		Query(ctx context.Context, handle JobHandle) (Status, error)
	}

	// Client implements Scheduler with the HTCondor command-line tools.
	Client struct {
		Runner  Runner
		Pool    string
		Schedd  string
		Timeout time.Duration
	}
)

var (
	// ErrJobNotFound is returned when neither the queue nor the history
	// knows about a job.
	ErrJobNotFound = errors.New("job not found in queue or history")

	// `condor_submit -terse` prints "first - last", e.g. "1234.0 - 1234.0"
	terseSubmitRe = regexp.MustCompile(`^\s*(\d+\.\d+)\s*-\s*\d+\.\d+\s*$`)
)

// NewClient builds a Client around the given runner.
func NewClient(runner Runner, pool, schedd string, timeout time.Duration) *Client {
	return &Client{Runner: runner, Pool: pool, Schedd: schedd, Timeout: timeout}
}

func (c *Client) targetArgs() []string {
	var args []string
	if c.Pool != "" {
		args = append(args, "-pool", c.Pool)
	}
	if c.Schedd != "" {
		args = append(args, "-name", c.Schedd)
	}
	return args
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

// Submit hands the description to condor_submit on stdin.
func (c *Client) Submit(ctx context.Context, sd *SubmitDescription) (JobHandle, error) {
	if err := sd.Validate(); err != nil {
		return JobHandle{}, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	args := append(c.targetArgs(), "-terse", "-")
	out, err := c.Runner.Run(ctx, "condor_submit", args, strings.NewReader(sd.String()))
	if err != nil {
		return JobHandle{}, err
	}
	handle, err := parseSubmitOutput(string(out))
	if err != nil {
		return JobHandle{}, err
	}
	log.Debugln("condor_submit assigned job", handle)
	return handle, nil
}

func parseSubmitOutput(output string) (JobHandle, error) {
	for _, line := range strings.Split(output, "\n") {
		if match := terseSubmitRe.FindStringSubmatch(line); match != nil {
			return ParseJobHandle(match[1])
		}
		// Non-terse output: "1 job(s) submitted to cluster 1234."
		if strings.Contains(line, "submitted to cluster") {
			fields := strings.Fields(line)
			for idx, field := range fields {
				if field == "cluster" && idx+1 < len(fields) {
					return ParseJobHandle(fields[idx+1])
				}
			}
		}
	}
	return JobHandle{}, errors.Errorf("could not find a job id in condor_submit output %q", strings.TrimSpace(output))
}

// Query looks the job up in the queue, then in the history once it has left.
func (c *Client) Query(ctx context.Context, handle JobHandle) (Status, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	args := append(c.targetArgs(), "-long:new", handle.String())
	out, err := c.Runner.Run(ctx, "condor_q", args, nil)
	if err != nil {
		return Status{}, err
	}
	if status, found, err := statusFromOutput(out); found || err != nil {
		return status, err
	}

	log.Debugln("Job", handle, "is no longer in the queue; checking the history")
	args = append(c.targetArgs(), "-limit", "1", "-long:new", handle.String())
	out, err = c.Runner.Run(ctx, "condor_history", args, nil)
	if err != nil {
		return Status{}, err
	}
	if status, found, err := statusFromOutput(out); found || err != nil {
		return status, err
	}
	return Status{Handle: handle}, ErrJobNotFound
}

func statusFromOutput(out []byte) (Status, bool, error) {
	if len(bytes.TrimSpace(out)) == 0 {
		return Status{}, false, nil
	}
	ads, err := classads.ReadClassAd(bytes.NewReader(out))
	if err != nil {
		return Status{}, false, errors.Wrap(err, "failed to parse job ad")
	}
	if len(ads) == 0 {
		return Status{}, false, nil
	}
	status, err := StatusFromAd(&ads[0])
	return status, true, err
}
