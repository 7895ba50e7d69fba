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
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/htcondor/xfer/classads"
)

// JobState is the reporting view of an HTCondor job.  It is
// coarser than the scheduler's own JobStatus codes.
type JobState string

const (
	StateIdle      JobState = "idle"
	StateRunning   JobState = "running"
	StateHeld      JobState = "held"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// HTCondor JobStatus attribute values
const (
	jobStatusIdle               = 1
	jobStatusRunning            = 2
	jobStatusRemoved            = 3
	jobStatusCompleted          = 4
	jobStatusHeld               = 5
	jobStatusTransferringOutput = 6
	jobStatusSuspended          = 7
)

type (
	// JobHandle identifies a submitted job by cluster and proc.
	JobHandle struct {
		Cluster int
		Proc    int
	}

	// Status is the result of querying a job.
	Status struct {
		Handle     JobHandle
		State      JobState
		ExitCode   int
		HoldReason string
	}
)

func (h JobHandle) String() string {
	return strconv.Itoa(h.Cluster) + "." + strconv.Itoa(h.Proc)
}

// ParseJobHandle accepts "cluster" or "cluster.proc".
func ParseJobHandle(s string) (JobHandle, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	clusterStr, procStr, hasProc := strings.Cut(s, ".")
	cluster, err := strconv.Atoi(clusterStr)
	if err != nil || cluster <= 0 {
		return JobHandle{}, errors.Errorf("invalid job id %q", s)
	}
	proc := 0
	if hasProc {
		if proc, err = strconv.Atoi(procStr); err != nil || proc < 0 {
			return JobHandle{}, errors.Errorf("invalid job id %q", s)
		}
	}
	return JobHandle{Cluster: cluster, Proc: proc}, nil
}

// Terminal reports whether the job will not make further progress on its own.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateHeld
}

// StatusFromAd maps a job ClassAd to a Status.
func StatusFromAd(ad *classads.ClassAd) (Status, error) {
	var status Status
	code, ok := ad.GetInt("JobStatus")
	if !ok {
		return status, errors.New("job ad has no JobStatus attribute")
	}
	cluster, _ := ad.GetInt("ClusterId")
	proc, _ := ad.GetInt("ProcId")
	status.Handle = JobHandle{Cluster: cluster, Proc: proc}
	status.ExitCode, _ = ad.GetInt("ExitCode")

	switch code {
	case jobStatusIdle, jobStatusSuspended:
		status.State = StateIdle
	case jobStatusRunning, jobStatusTransferringOutput:
		status.State = StateRunning
	case jobStatusRemoved:
		status.State = StateFailed
	case jobStatusCompleted:
		status.State = StateCompleted
		if signaled, _ := ad.GetBool("ExitBySignal"); signaled || status.ExitCode != 0 {
			status.State = StateFailed
		}
	case jobStatusHeld:
		status.State = StateHeld
		status.HoldReason, _ = ad.GetString("HoldReason")
	default:
		return status, errors.Errorf("unknown JobStatus %d", code)
	}
	return status, nil
}
