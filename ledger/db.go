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

package ledger

import (
	"database/sql"
	"embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite" // It doesn't require CGO
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"
	gormlog "github.com/thomas-tacquet/gormv2-logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// gooseLogger demotes migration chatter to debug level.
type gooseLogger struct {
	*log.Entry
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.Entry.Debugf(strings.TrimSpace(format), v...)
}

func openSQLite(dbPath string) (*gorm.DB, error) {
	if dbPath == "" {
		return nil, errors.New("SQLite database path is empty")
	}

	// The directory must exist before sql.Open
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for SQLite database at %s", dbPath)
	}

	dbName := dbPath + "?_busy_timeout=5000&_journal_mode=WAL"

	// SQL statements are only interesting when debugging
	var ormLevel logger.LogLevel
	switch log.GetLevel() {
	case log.DebugLevel, log.TraceLevel:
		ormLevel = logger.Info
	case log.InfoLevel, log.WarnLevel:
		ormLevel = logger.Warn
	case log.ErrorLevel:
		ormLevel = logger.Error
	default:
		ormLevel = logger.Silent
	}

	gormLogger := gormlog.NewGormlog(
		gormlog.WithLogrusEntry(log.WithField("component", "gorm")),
		gormlog.WithGormOptions(gormlog.GormOptions{
			LogLatency: true,
			LogLevel:   ormLevel,
		}),
	)

	log.Debugln("Opening connection to sqlite DB", dbName)
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open the database with path: %s", dbPath)
	}
	return db, nil
}

// migrate brings the schema up to date with the embedded migrations.
func migrate(sqldb *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{log.WithField("component", "goose")})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return errors.Wrap(err, "failed to set goose dialect")
	}
	if err := goose.Up(sqldb, "migrations"); err != nil {
		return errors.Wrap(err, "failed to apply migrations")
	}
	return nil
}
