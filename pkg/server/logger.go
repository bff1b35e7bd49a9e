package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mikeboe/deep-research/pkg/database"
)

// DBLogHandler writes job log records to report_logs and passes every record
// on to next, if set.
type DBLogHandler struct {
	DB    *database.PostgresDB
	JobID uuid.UUID

	next   slog.Handler
	attrs  []slog.Attr
	groups []string
}

func NewDBLogHandler(db *database.PostgresDB, jobID uuid.UUID, next slog.Handler) *DBLogHandler {
	return &DBLogHandler{DB: db, JobID: jobID, next: next}
}

func (h *DBLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo || (h.next != nil && h.next.Enabled(ctx, level))
}

func (h *DBLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		_ = h.next.Handle(ctx, r)
	}
	if r.Level < slog.LevelInfo {
		return nil
	}

	meta, err := json.Marshal(recordAttrs(h.attrs, h.groups, r))
	if err != nil {
		meta = []byte("{}")
	}

	// Logs outlive the job's context, so the insert ignores its cancellation.
	_, err = h.DB.Pool.Exec(context.WithoutCancel(ctx), `
		INSERT INTO report_logs (job_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, h.JobID, r.Time, r.Level.String(), r.Message, meta)
	return err
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), qualify(h.groups, attrs)...)
	if h.next != nil {
		c.next = h.next.WithAttrs(attrs)
	}
	return &c
}

func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.groups = append(append([]string(nil), h.groups...), name)
	if h.next != nil {
		c.next = h.next.WithGroup(name)
	}
	return &c
}

// recordAttrs flattens handler and record attributes into one map. Grouped
// keys are joined with dots.
func recordAttrs(base []slog.Attr, groups []string, r slog.Record) map[string]any {
	out := make(map[string]any, len(base)+r.NumAttrs())
	for _, a := range base {
		addAttr(out, "", a)
	}
	prefix := ""
	for _, g := range groups {
		prefix += g + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(out, prefix, a)
		return true
	})
	return out
}

func addAttr(out map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, sub := range v.Group() {
			addAttr(out, prefix+a.Key+".", sub)
		}
		return
	}
	switch val := v.Any().(type) {
	case error:
		out[prefix+a.Key] = val.Error()
	default:
		out[prefix+a.Key] = val
	}
}

func qualify(groups []string, attrs []slog.Attr) []slog.Attr {
	if len(groups) == 0 {
		return attrs
	}
	prefix := ""
	for _, g := range groups {
		prefix += g + "."
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}
	return out
}
