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
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htcondor/xfer/condor"
)

type fakeScheduler struct {
	mu        sync.Mutex
	submitted []string
	submitErr error
	handle    condor.JobHandle

	states   []condor.JobState
	queryErr error
	queries  int
}

func (f *fakeScheduler) Submit(_ context.Context, sd *condor.SubmitDescription) (condor.JobHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return condor.JobHandle{}, f.submitErr
	}
	f.submitted = append(f.submitted, sd.String())
	return f.handle, nil
}

func (f *fakeScheduler) Query(_ context.Context, handle condor.JobHandle) (condor.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.queries
	f.queries++
	if idx >= len(f.states) {
		if f.queryErr != nil {
			return condor.Status{}, f.queryErr
		}
		idx = len(f.states) - 1
	}
	status := condor.Status{Handle: handle, State: f.states[idx]}
	if status.State == condor.StateHeld {
		status.HoldReason = "Error from slot1@exec.example.org: transfer failed"
	}
	if status.State == condor.StateFailed {
		status.ExitCode = 1
	}
	return status, nil
}

func TestSubmit(t *testing.T) {
	hook := test.NewGlobal()
	sched := &fakeScheduler{handle: condor.JobHandle{Cluster: 42}}
	job := BuildJob(Request{Mode: ModePull, Source: "/a", Destination: "/b"}, testOptions)
	handle, err := Submit(context.Background(), sched, job)
	require.NoError(t, err)
	assert.Equal(t, "42.0", handle.String())
	require.Len(t, sched.submitted, 1)
	assert.Equal(t, job.String(), sched.submitted[0])
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Submitted transfer job 42.0", hook.LastEntry().Message)
}

func TestSubmitRejected(t *testing.T) {
	sched := &fakeScheduler{submitErr: errors.New("ERROR: Parse error in expression: Cpus >")}
	job := BuildJob(Request{Mode: ModePull, Source: "/a", Destination: "/b"}, testOptions)
	handle, err := Submit(context.Background(), sched, job)
	require.Error(t, err)
	assert.Equal(t, condor.JobHandle{}, handle)

	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.ErrorContains(t, err, "Parse error")
	assert.NotEqual(t, 0, ExitCode(err))
	assert.Equal(t, ExitSubmission, ExitCode(err))
}

func TestSubmitRefusesInjectedCommands(t *testing.T) {
	sched := &fakeScheduler{handle: condor.JobHandle{Cluster: 42}}
	opts := testOptions
	opts.ExtraAttributes = map[string]string{"ProjectName": "\"ops\"\nqueue 50"}
	job := BuildJob(Request{Mode: ModePull, Source: "/a", Destination: "/b"}, opts)

	handle, err := Submit(context.Background(), sched, job)
	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, condor.JobHandle{}, handle)
	assert.Empty(t, sched.submitted)
}

type pollResult struct {
	status condor.Status
	err    error
}

func startPoll(ctx context.Context, sched condor.Scheduler, clock clockwork.Clock) <-chan pollResult {
	done := make(chan pollResult, 1)
	go func() {
		status, err := Poll(ctx, sched, condor.JobHandle{Cluster: 7}, time.Minute, clock)
		done <- pollResult{status, err}
	}()
	return done
}

func TestPollUntilCompleted(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sched := &fakeScheduler{states: []condor.JobState{condor.StateIdle, condor.StateRunning, condor.StateCompleted}}
	done := startPoll(context.Background(), sched, clock)

	for i := 0; i < 2; i++ {
		clock.BlockUntil(1)
		clock.Advance(time.Minute)
	}
	result := <-done
	require.NoError(t, result.err)
	assert.Equal(t, condor.StateCompleted, result.status.State)
	assert.Equal(t, 3, sched.queries)
}

func TestPollHeld(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sched := &fakeScheduler{states: []condor.JobState{condor.StateRunning, condor.StateHeld}}
	done := startPoll(context.Background(), sched, clock)

	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	result := <-done

	var failure *JobFailure
	require.True(t, errors.As(result.err, &failure))
	assert.Equal(t, condor.StateHeld, failure.Status.State)
	assert.Contains(t, result.err.Error(), "transfer failed")
	assert.Equal(t, ExitJobFailure, ExitCode(result.err))
}

func TestPollFailed(t *testing.T) {
	sched := &fakeScheduler{states: []condor.JobState{condor.StateFailed}}
	result := <-startPoll(context.Background(), sched, clockwork.NewFakeClock())
	var failure *JobFailure
	require.True(t, errors.As(result.err, &failure))
	assert.Equal(t, 1, failure.Status.ExitCode)
	assert.Equal(t, 1, sched.queries)
}

func TestPollLostContact(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sched := &fakeScheduler{
		states:   []condor.JobState{condor.StateRunning},
		queryErr: errors.New("Failed to connect to schedd"),
	}
	done := startPoll(context.Background(), sched, clock)

	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	result := <-done

	var pollErr *PollError
	require.True(t, errors.As(result.err, &pollErr))
	assert.Equal(t, "7.0", pollErr.Handle.String())
	assert.Equal(t, condor.StateRunning, result.status.State, "the last known status is kept")
	assert.Equal(t, ExitPoll, ExitCode(result.err))
}

func TestPollCancelled(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sched := &fakeScheduler{states: []condor.JobState{condor.StateIdle}}
	ctx, cancel := context.WithCancel(context.Background())
	done := startPoll(ctx, sched, clock)

	clock.BlockUntil(1)
	cancel()
	result := <-done
	assert.ErrorIs(t, result.err, context.Canceled)
	assert.Equal(t, condor.StateIdle, result.status.State)
}

func TestPollerOnUpdate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sched := &fakeScheduler{states: []condor.JobState{condor.StateIdle, condor.StateCompleted}}
	var seen []condor.JobState
	poller := &Poller{
		Scheduler: sched,
		Interval:  time.Second,
		Clock:     clock,
		OnUpdate:  func(status condor.Status) { seen = append(seen, status.State) },
	}
	done := make(chan error, 1)
	go func() {
		_, err := poller.Poll(context.Background(), condor.JobHandle{Cluster: 1})
		done <- err
	}()
	clock.BlockUntil(1)
	clock.Advance(time.Second)
	require.NoError(t, <-done)
	assert.Equal(t, []condor.JobState{condor.StateIdle, condor.StateCompleted}, seen)
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitOther, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitArgument, ExitCode(errors.Wrap(&ArgumentError{Msg: "bad"}, "context")))
	assert.Equal(t, ExitVerification, ExitCode(&VerificationError{Destination: "/b", Err: errors.New("digest")}))
}
