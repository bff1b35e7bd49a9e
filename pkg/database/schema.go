package database

import (
	"context"
	"fmt"
)

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{"report_jobs table", `
		CREATE TABLE IF NOT EXISTS report_jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			topic TEXT NOT NULL,
			feedback TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			config JSONB,
			state JSONB,
			report TEXT,
			error TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"report_events table", `
		CREATE TABLE IF NOT EXISTS report_events (
			id BIGSERIAL PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES report_jobs(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			percent INTEGER,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"report_logs table", `
		CREATE TABLE IF NOT EXISTS report_logs (
			id BIGSERIAL PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES report_jobs(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		)`},
	{"report_jobs index", "CREATE INDEX IF NOT EXISTS idx_report_jobs_created_at ON report_jobs(created_at DESC)"},
	{"report_events index", "CREATE INDEX IF NOT EXISTS idx_report_events_job_id ON report_events(job_id)"},
	{"report_logs index", "CREATE INDEX IF NOT EXISTS idx_report_logs_job_id ON report_logs(job_id)"},
}

// InitSchema creates the job, event and log tables. It is safe to run on
// every start.
func (db *PostgresDB) InitSchema(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", m.name, err)
		}
	}
	return nil
}
