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

// Package ledger keeps a local record of submitted transfers so they can be
// listed and re-checked later without remembering job ids.
package ledger

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/htcondor/xfer/condor"
	"github.com/htcondor/xfer/transfer"
)

var ErrNotFound = errors.New("transfer not found in the ledger")

type (
	// Transfer is one row of the ledger.  Jobs are keyed by the schedd that
	// holds them as well as their id; an empty Schedd is the local one.
	Transfer struct {
		Schedd       string    `gorm:"primaryKey" json:"schedd,omitempty"`
		Cluster      int       `gorm:"primaryKey;autoIncrement:false" json:"cluster"`
		Proc         int       `gorm:"primaryKey;autoIncrement:false" json:"proc"`
		Mode         string    `gorm:"not null" json:"mode"`
		Source       string    `gorm:"not null" json:"source"`
		Destination  string    `gorm:"not null" json:"destination"`
		Requirements string    `json:"requirements,omitempty"`
		Status       string    `gorm:"not null;default:idle" json:"status"`
		HoldReason   string    `json:"hold_reason,omitempty"`
		ExitCode     int       `json:"exit_code"`
		SubmittedAt  time.Time `gorm:"not null" json:"submitted_at"`
		UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
	}

	Ledger struct {
		db *gorm.DB
	}
)

func (Transfer) TableName() string {
	return "transfers"
}

func (t *Transfer) Handle() condor.JobHandle {
	return condor.JobHandle{Cluster: t.Cluster, Proc: t.Proc}
}

// Open opens, creating if needed, the ledger database at path and applies
// any pending migrations.
func Open(path string) (*Ledger, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	sqldb, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get database instance from gorm")
	}
	if err := migrate(sqldb); err != nil {
		sqldb.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	sqldb, err := l.db.DB()
	if err != nil {
		log.Errorln("Failure when getting database instance from gorm:", err)
		return err
	}
	if err = sqldb.Close(); err != nil {
		log.Errorln("Failure when shutting down the ledger database:", err)
	}
	return err
}

// Record stores a newly submitted transfer.
func (l *Ledger) Record(schedd string, handle condor.JobHandle, req transfer.Request, submittedAt time.Time) error {
	rec := Transfer{
		Schedd:       schedd,
		Cluster:      handle.Cluster,
		Proc:         handle.Proc,
		Mode:         string(req.Mode),
		Source:       req.Source,
		Destination:  req.Destination,
		Requirements: req.Requirements,
		Status:       string(condor.StateIdle),
		SubmittedAt:  submittedAt.UTC(),
		UpdatedAt:    submittedAt.UTC(),
	}
	if err := l.db.Create(&rec).Error; err != nil {
		return errors.Wrapf(err, "failed to record transfer %s", handle)
	}
	log.Debugf("Recorded transfer %s in the ledger", handle)
	return nil
}

// UpdateStatus saves the latest status of a recorded transfer.
func (l *Ledger) UpdateStatus(schedd string, status condor.Status, updatedAt time.Time) error {
	result := l.db.Model(&Transfer{}).
		Where("schedd = ? AND cluster = ? AND proc = ?", schedd, status.Handle.Cluster, status.Handle.Proc).
		Updates(map[string]interface{}{
			"status":      string(status.State),
			"hold_reason": status.HoldReason,
			"exit_code":   status.ExitCode,
			"updated_at":  updatedAt.UTC(),
		})
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to update transfer %s", status.Handle)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "transfer %s", status.Handle)
	}
	return nil
}

func (l *Ledger) Get(schedd string, handle condor.JobHandle) (*Transfer, error) {
	var recs []Transfer
	err := l.db.Where("schedd = ? AND cluster = ? AND proc = ?", schedd, handle.Cluster, handle.Proc).Limit(1).Find(&recs).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to look up transfer %s", handle)
	}
	if len(recs) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "transfer %s", handle)
	}
	return &recs[0], nil
}

// List returns the most recently submitted transfers first.  A limit of
// zero or less returns everything.
func (l *Ledger) List(limit int) ([]Transfer, error) {
	var recs []Transfer
	query := l.db.Order("submitted_at DESC, cluster DESC, proc DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list transfers")
	}
	return recs, nil
}
