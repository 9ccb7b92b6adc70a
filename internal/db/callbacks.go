/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"time"

	"github.com/friendsincode/hearth_radio/internal/telemetry"
	"gorm.io/gorm"
)

const startTimeKey = "hearth:start_time"

// RegisterCallbacks hooks query timing and error counters into every CRUD path.
func RegisterCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		anchor string
		before func(string) error
		after  func(string) error
	}{
		{"gorm:query",
			func(a string) error { return cb.Query().Before(a).Register("hearth:before_query", markStart) },
			func(a string) error { return cb.Query().After(a).Register("hearth:after_query", observe("query")) }},
		{"gorm:create",
			func(a string) error { return cb.Create().Before(a).Register("hearth:before_create", markStart) },
			func(a string) error { return cb.Create().After(a).Register("hearth:after_create", observe("create")) }},
		{"gorm:update",
			func(a string) error { return cb.Update().Before(a).Register("hearth:before_update", markStart) },
			func(a string) error { return cb.Update().After(a).Register("hearth:after_update", observe("update")) }},
		{"gorm:delete",
			func(a string) error { return cb.Delete().Before(a).Register("hearth:before_delete", markStart) },
			func(a string) error { return cb.Delete().After(a).Register("hearth:after_delete", observe("delete")) }},
		{"gorm:raw",
			func(a string) error { return cb.Raw().Before(a).Register("hearth:before_raw", markStart) },
			func(a string) error { return cb.Raw().After(a).Register("hearth:after_raw", observe("raw")) }},
	}

	for _, h := range hooks {
		if err := h.before(h.anchor); err != nil {
			return err
		}
		if err := h.after(h.anchor); err != nil {
			return err
		}
	}
	return nil
}

func markStart(tx *gorm.DB) {
	tx.InstanceSet(startTimeKey, time.Now())
}

func observe(operation string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		v, ok := tx.InstanceGet(startTimeKey)
		if !ok {
			return
		}
		started, ok := v.(time.Time)
		if !ok {
			return
		}

		table := tx.Statement.Table
		if table == "" {
			table = "unknown"
		}
		telemetry.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(time.Since(started).Seconds())

		if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation, errorClass(tx.Error)).Inc()
		}
	}
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return "duplicate_key"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return "foreign_key"
	default:
		return "query_error"
	}
}

// UpdateConnectionMetrics publishes the open connection count.
func UpdateConnectionMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
}
