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
	"context"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/htcondor/xfer/condor"
	"github.com/htcondor/xfer/param"
)

const spinnerRefresh = 150 * time.Millisecond

// statusSpinner shows the last known state of a job while xfer waits on
// it.  A nil *statusSpinner is valid and displays nothing.
type statusSpinner struct {
	lock   sync.RWMutex
	status condor.Status
	done   chan struct{}
	egrp   *errgroup.Group
}

func spinnerEnabled() bool {
	if outputJSON || param.Logging_DisableProgressBars.GetBool() || param.Logging_LogLocation.GetString() != "" {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func newStatusSpinner(ctx context.Context, handle condor.JobHandle) *statusSpinner {
	if !spinnerEnabled() {
		return nil
	}
	s := &statusSpinner{
		status: condor.Status{Handle: handle, State: condor.StateIdle},
		done:   make(chan struct{}),
	}
	s.launchDisplay(ctx, handle)
	return s
}

func (s *statusSpinner) update(status condor.Status) {
	if s == nil {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.status = status
}

func (s *statusSpinner) state() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return string(s.status.State)
}

func (s *statusSpinner) shutdown() {
	if s == nil || s.egrp == nil {
		return
	}
	close(s.done)
	if err := s.egrp.Wait(); err != nil {
		log.Debugln("Failure to shut down progress display:", err)
	}
}

func (s *statusSpinner) launchDisplay(ctx context.Context, handle condor.JobHandle) {
	progressCtr := mpb.NewWithContext(ctx, mpb.WithOutput(os.Stderr), mpb.WithRefreshRate(spinnerRefresh))
	previousOutput := log.StandardLogger().Out
	log.SetOutput(progressCtr)
	s.egrp, _ = errgroup.WithContext(ctx)
	log.Debugln("Launch job status display")

	s.egrp.Go(func() error {
		bar := progressCtr.New(0, mpb.SpinnerStyle(),
			mpb.PrependDecorators(
				decor.Name("Job "+handle.String(), decor.WCSyncSpaceR),
				decor.Any(func(decor.Statistics) string { return s.state() }, decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.Elapsed(decor.ET_STYLE_GO),
			),
		)
		defer func() {
			bar.Abort(false)
			bar.Wait()
			progressCtr.Wait()
			log.SetOutput(previousOutput)
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		}
	})
}
