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

// Package metrics counts submissions and job outcomes so cron-driven
// transfers can be monitored through the node exporter textfile collector.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/htcondor/xfer/condor"
)

const (
	ResultSubmitted = "submitted"
	ResultRejected  = "rejected"
)

var (
	// Registry holds only xfer's own metrics; the Go runtime collectors
	// would be noise in a textfile.
	Registry = prometheus.NewRegistry()

	factory = promauto.With(Registry)

	Submissions = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "xfer_submissions_total",
		Help: "The number of transfer jobs handed to the scheduler",
	}, []string{"mode", "result"})

	JobsFinished = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "xfer_jobs_finished_total",
		Help: "The number of transfer jobs observed in a terminal state",
	}, []string{"mode", "status"})

	PollDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "xfer_poll_seconds",
		Help:    "Time spent waiting for a transfer job to finish",
		Buckets: prometheus.ExponentialBuckets(30, 2, 10),
	})

	LastRun = factory.NewGauge(prometheus.GaugeOpts{
		Name: "xfer_last_run_timestamp_seconds",
		Help: "Unix time at which xfer last wrote its metrics",
	})
)

// ObserveSubmission counts a submission attempt.
func ObserveSubmission(mode string, err error) {
	result := ResultSubmitted
	if err != nil {
		result = ResultRejected
	}
	Submissions.WithLabelValues(mode, result).Inc()
}

// ObserveFinished counts a job that reached a terminal state and how long
// it was waited on.
func ObserveFinished(mode string, status condor.Status, waited time.Duration) {
	if !status.State.Terminal() {
		return
	}
	JobsFinished.WithLabelValues(mode, string(status.State)).Inc()
	PollDuration.Observe(waited.Seconds())
}

// WriteTextfile atomically replaces path with the current metrics.  An
// empty path disables the write.
func WriteTextfile(path string, now time.Time) error {
	if path == "" {
		return nil
	}
	LastRun.Set(float64(now.Unix()))
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	log.Debugln("Wrote metrics to", path)
	return nil
}
