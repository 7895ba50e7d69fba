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

package transfer

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/htcondor/xfer/condor"
)

// Process exit codes for each error class
const (
	ExitOK           = 0
	ExitOther        = 1
	ExitArgument     = 2
	ExitSubmission   = 3
	ExitPoll         = 4
	ExitJobFailure   = 5
	ExitVerification = 6
)

type (
	// ArgumentError is bad command-line input.
	ArgumentError struct {
		Msg string
		Err error
	}

	// SubmissionError means the scheduler did not accept the job.
	SubmissionError struct {
		Err error
	}

	// PollError means contact with the scheduler was lost while waiting.
	PollError struct {
		Handle condor.JobHandle
		Err    error
	}

	// JobFailure means the scheduler reports the transfer job itself failed
	// or was held.
	JobFailure struct {
		Status condor.Status
	}

	// VerificationError means a completed sync did not produce a destination
	// matching the source.
	VerificationError struct {
		Destination string
		Err         error
	}
)

func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ArgumentError) Unwrap() error { return e.Err }

func (e *SubmissionError) Error() string {
	return "the scheduler rejected the transfer job: " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *PollError) Error() string {
	return fmt.Sprintf("lost contact with the scheduler while checking job %s: %s", e.Handle, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

func (e *JobFailure) Error() string {
	switch e.Status.State {
	case condor.StateHeld:
		return fmt.Sprintf("transfer job %s is held: %s", e.Status.Handle, e.Status.HoldReason)
	default:
		return fmt.Sprintf("transfer job %s failed with exit code %d", e.Status.Handle, e.Status.ExitCode)
	}
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification of %s failed: %s", e.Destination, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by this package to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var argErr *ArgumentError
	var subErr *SubmissionError
	var pollErr *PollError
	var jobErr *JobFailure
	var verErr *VerificationError
	switch {
	case errors.As(err, &argErr):
		return ExitArgument
	case errors.As(err, &subErr):
		return ExitSubmission
	case errors.As(err, &pollErr):
		return ExitPoll
	case errors.As(err, &jobErr):
		return ExitJobFailure
	case errors.As(err, &verErr):
		return ExitVerification
	}
	return ExitOther
}
