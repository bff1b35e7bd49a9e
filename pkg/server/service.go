package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/metrics"
	"github.com/mikeboe/deep-research/pkg/progress"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/workflow"
)

// Job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotResumed = errors.New("only failed or cancelled jobs with a saved plan can be resumed")
	ErrJobNotRunning = errors.New("job is not running")
)

// Service runs report jobs in the background and persists their state,
// progress events and logs.
type Service struct {
	DB      *database.PostgresDB
	Runtime *Runtime

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

func NewService(db *database.PostgresDB, rt *Runtime) *Service {
	return &Service{
		DB:      db,
		Runtime: rt,
		running: make(map[uuid.UUID]context.CancelFunc),
	}
}

type Job struct {
	ID        uuid.UUID       `json:"id"`
	Topic     string          `json:"topic"`
	Feedback  string          `json:"feedback,omitempty"`
	Status    string          `json:"status"`
	Report    *string         `json:"report,omitempty"`
	Error     *string         `json:"error,omitempty"`
	Config    json.RawMessage `json:"config,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const jobColumns = `id, topic, feedback, status, report, error, config, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	job := &Job{}
	err := row.Scan(&job.ID, &job.Topic, &job.Feedback, &job.Status, &job.Report, &job.Error, &job.Config, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	return job, err
}

func (s *Service) CreateJob(ctx context.Context, req ReportRequest) (*Job, error) {
	configJSON, err := json.Marshal(req.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	query := `
		INSERT INTO report_jobs (id, topic, feedback, status, config)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + jobColumns
	job, err := scanJob(s.DB.Pool.QueryRow(ctx, query, uuid.New(), req.Topic, req.Feedback, StatusPending, configJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.start(job.ID, req, nil)
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := scanJob(s.DB.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM report_jobs WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.DB.Pool.Query(ctx, `SELECT `+jobColumns+` FROM report_jobs ORDER BY created_at DESC LIMIT 50`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// EventEntry is a persisted progress event.
type EventEntry struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	Percent   *int      `json:"percent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Service) GetJobEvents(ctx context.Context, jobID uuid.UUID) ([]EventEntry, error) {
	rows, err := s.DB.Pool.Query(ctx, `
		SELECT id, type, message, percent, created_at
		FROM report_events
		WHERE job_id = $1
		ORDER BY id ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []EventEntry
	for rows.Next() {
		var e EventEntry
		if err := rows.Scan(&e.ID, &e.Type, &e.Message, &e.Percent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type LogEntry struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	rows, err := s.DB.Pool.Query(ctx, `
		SELECT id, timestamp, level, message, metadata
		FROM report_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// ResumeJob restarts a failed or cancelled job from its saved state. Sections
// that were already written are kept.
func (s *Service) ResumeJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	var (
		topic, feedback, status string
		configJSON, stateJSON   []byte
	)
	err := s.DB.Pool.QueryRow(ctx, `SELECT topic, feedback, status, config, state FROM report_jobs WHERE id = $1`, id).
		Scan(&topic, &feedback, &status, &configJSON, &stateJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if (status != StatusFailed && status != StatusCancelled) || len(stateJSON) == 0 {
		return nil, ErrJobNotResumed
	}

	var state research.ReportState
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return nil, fmt.Errorf("failed to decode saved state: %w", err)
	}
	if len(state.Sections) == 0 {
		return nil, ErrJobNotResumed
	}

	overrides, err := overridesOf(configJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode saved config: %w", err)
	}
	req := ReportRequest{Topic: topic, Feedback: feedback, Config: overrides}

	if _, err := s.DB.Pool.Exec(ctx, `UPDATE report_jobs SET status = $2, error = NULL, updated_at = NOW() WHERE id = $1`, id, StatusPending); err != nil {
		return nil, fmt.Errorf("failed to reset job: %w", err)
	}
	s.start(id, req, &state)
	return s.GetJob(ctx, id)
}

// CancelJob stops a running job.
func (s *Service) CancelJob(id uuid.UUID) error {
	s.mu.Lock()
	cancel, ok := s.running[id]
	s.mu.Unlock()
	if !ok {
		return ErrJobNotRunning
	}
	cancel()
	return nil
}

// Shutdown cancels every running job and waits for the workers to record
// their final status, or for ctx to end.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.running {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) start(jobID uuid.UUID, req ReportRequest, state *research.ReportState) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.running[jobID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, jobID)
			s.mu.Unlock()
			cancel()
		}()
		s.runWorker(ctx, jobID, req, state)
	}()
}

func (s *Service) runWorker(ctx context.Context, jobID uuid.UUID, req ReportRequest, state *research.ReportState) {
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	// Status and event writes must land even after the job is cancelled.
	bg := context.WithoutCancel(ctx)
	logger := slog.New(NewDBLogHandler(s.DB, jobID, s.Runtime.logger().Handler())).With("job_id", jobID.String())

	if _, err := s.DB.Pool.Exec(bg, `UPDATE report_jobs SET status = $2, updated_at = NOW() WHERE id = $1`, jobID, StatusRunning); err != nil {
		logger.Error("Failed to mark job running", "error", err)
	}

	o := req.Config
	o.Progress = progress.SinkFunc(func(u progress.Update) {
		s.recordEvent(bg, logger, jobID, progress.ProgressEvent(u))
	})
	engine := s.Runtime.Engine(o, logger)
	engine.OnStateUpdate = func(st workflow.State, snap research.ReportState) {
		stateJSON, err := json.Marshal(snap)
		if err != nil {
			logger.Error("Failed to marshal state", "state", st, "error", err)
			return
		}
		if _, err := s.DB.Pool.Exec(bg, `UPDATE report_jobs SET state = $2, updated_at = NOW() WHERE id = $1`, jobID, stateJSON); err != nil {
			logger.Error("Failed to save state", "state", st, "error", err)
		}
	}

	if state == nil {
		state = &research.ReportState{RunID: jobID.String(), Topic: req.Topic, FeedbackOnReportPlan: req.Feedback}
	}

	report, err := engine.Execute(ctx, state)
	if err != nil {
		status := StatusFailed
		if ctx.Err() != nil {
			status = StatusCancelled
		}
		s.recordEvent(bg, logger, jobID, progress.ErrorEvent(err))
		if _, dbErr := s.DB.Pool.Exec(bg, `UPDATE report_jobs SET status = $2, error = $3, updated_at = NOW() WHERE id = $1`, jobID, status, err.Error()); dbErr != nil {
			logger.Error("Failed to record job failure", "error", dbErr)
		}
		return
	}

	s.recordEvent(bg, logger, jobID, progress.Event{Type: progress.TypeComplete, Message: "Report complete"})
	if _, err := s.DB.Pool.Exec(bg, `UPDATE report_jobs SET status = $2, report = $3, updated_at = NOW() WHERE id = $1`, jobID, StatusCompleted, report); err != nil {
		logger.Error("Failed to save final report", "error", err)
	}
}

func (s *Service) recordEvent(ctx context.Context, logger *slog.Logger, jobID uuid.UUID, e progress.Event) {
	message := e.Message
	if e.Type == progress.TypeError {
		message = e.Error
	}
	_, err := s.DB.Pool.Exec(ctx, `INSERT INTO report_events (job_id, type, message, percent) VALUES ($1, $2, $3, $4)`,
		jobID, e.Type, message, e.Percent)
	if err != nil {
		logger.Warn("Failed to record progress event", "error", err)
	}
}

// overridesOf decodes a stored job config.
func overridesOf(raw json.RawMessage) (config.Overrides, error) {
	var o config.Overrides
	if len(raw) == 0 {
		return o, nil
	}
	err := json.Unmarshal(raw, &o)
	return o, err
}
