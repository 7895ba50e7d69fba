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
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/htcondor/xfer/condor"
)

// Submit hands the job to the scheduler.  A rejected job yields a
// SubmissionError and no handle.
func Submit(ctx context.Context, sched condor.Scheduler, job *condor.SubmitDescription) (condor.JobHandle, error) {
	if err := job.Validate(); err != nil {
		return condor.JobHandle{}, &SubmissionError{Err: err}
	}
	handle, err := sched.Submit(ctx, job)
	if err != nil {
		return condor.JobHandle{}, &SubmissionError{Err: err}
	}
	log.Infoln("Submitted transfer job", handle)
	return handle, nil
}

// Poller re-checks a job at a fixed interval until it reaches a terminal
// state.
type Poller struct {
	Scheduler condor.Scheduler
	Interval  time.Duration
	Clock     clockwork.Clock
	// OnUpdate, if set, is called with every status received.
	OnUpdate func(condor.Status)
}

// Poll queries handle every interval until the job completes, fails or is
// held.
func Poll(ctx context.Context, sched condor.Scheduler, handle condor.JobHandle, interval time.Duration, clock clockwork.Clock) (condor.Status, error) {
	p := &Poller{Scheduler: sched, Interval: interval, Clock: clock}
	return p.Poll(ctx, handle)
}

// Poll returns the terminal status.  Failed and held jobs are returned
// together with a JobFailure; a query error ends polling with a PollError.
// Cancelling ctx stops polling but leaves the job queued.
func (p *Poller) Poll(ctx context.Context, handle condor.JobHandle) (condor.Status, error) {
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	last := condor.Status{Handle: handle}
	for {
		status, err := p.Scheduler.Query(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, &PollError{Handle: handle, Err: err}
		}
		if status.State != last.State {
			log.Debugf("Job %s is %s", handle, status.State)
		}
		last = status
		if p.OnUpdate != nil {
			p.OnUpdate(status)
		}

		switch status.State {
		case condor.StateCompleted:
			return status, nil
		case condor.StateFailed, condor.StateHeld:
			return status, &JobFailure{Status: status}
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-clock.After(p.Interval):
		}
	}
}
