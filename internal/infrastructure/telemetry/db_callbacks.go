package telemetry

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type dbContextKey string

const queryStartTimeKey dbContextKey = "db_query_start_time"

// markQueryStart stores the query start time in the statement context
func markQueryStart(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, queryStartTimeKey, time.Now())
}

// queryElapsed returns the time since markQueryStart, or 0 if unset
func queryElapsed(db *gorm.DB) time.Duration {
	if db.Statement.Context == nil {
		return 0
	}
	if start, ok := db.Statement.Context.Value(queryStartTimeKey).(time.Time); ok {
		return time.Since(start)
	}
	return 0
}

// registerAroundAll hooks before/after around every gorm operation chain.
// prefix namespaces the callback names, e.g. "db_metrics".
func registerAroundAll(db *gorm.DB, prefix string, before, after func(*gorm.DB)) error {
	cb := db.Callback()
	if before != nil {
		for _, r := range []func() error{
			func() error { return cb.Create().Before("gorm:create").Register(prefix+":before_create", before) },
			func() error { return cb.Query().Before("gorm:query").Register(prefix+":before_query", before) },
			func() error { return cb.Update().Before("gorm:update").Register(prefix+":before_update", before) },
			func() error { return cb.Delete().Before("gorm:delete").Register(prefix+":before_delete", before) },
			func() error { return cb.Row().Before("gorm:row").Register(prefix+":before_row", before) },
			func() error { return cb.Raw().Before("gorm:raw").Register(prefix+":before_raw", before) },
		} {
			if err := r(); err != nil {
				return err
			}
		}
	}
	for _, r := range []func() error{
		func() error { return cb.Create().After("gorm:create").Register(prefix+":after_create", after) },
		func() error { return cb.Query().After("gorm:query").Register(prefix+":after_query", after) },
		func() error { return cb.Update().After("gorm:update").Register(prefix+":after_update", after) },
		func() error { return cb.Delete().After("gorm:delete").Register(prefix+":after_delete", after) },
		func() error { return cb.Row().After("gorm:row").Register(prefix+":after_row", after) },
		func() error { return cb.Raw().After("gorm:raw").Register(prefix+":after_raw", after) },
	} {
		if err := r(); err != nil {
			return err
		}
	}
	return nil
}
