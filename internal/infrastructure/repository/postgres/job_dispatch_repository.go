package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/jobscheduler"
	qb "github.com/riskibarqy/kingsroom-ingest/internal/platform/querybuilder"
)

type JobDispatchRepository struct {
	db    *sqlx.DB
	table string
}

func NewJobDispatchRepository(db *sqlx.DB, table string) *JobDispatchRepository {
	if strings.TrimSpace(table) == "" {
		table = DefaultTables().JobDispatches
	}
	return &JobDispatchRepository{db: db, table: table}
}

func (r *JobDispatchRepository) UpsertEvent(ctx context.Context, event jobscheduler.DispatchEvent) error {
	dispatchID := strings.TrimSpace(event.DispatchID)
	if dispatchID == "" {
		return fmt.Errorf("dispatch id is required")
	}

	jobName := strings.TrimSpace(event.JobName)
	if jobName == "" {
		jobName = "unknown"
	}
	jobPath := strings.TrimSpace(event.JobPath)
	if jobPath == "" {
		jobPath = "/unknown"
	}

	occurredAt := event.OccurredAt.UTC()
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	payloadJSON, err := marshalPayload(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal job dispatch payload: %w", err)
	}

	model := jobDispatchInsertModel{
		DispatchID: dispatchID,
		JobName:    jobName,
		JobPath:    jobPath,
		JobID:      strings.TrimSpace(event.JobID),
		EntityID:   strings.TrimSpace(event.EntityID),
		Payload:    payloadJSON,
		Status:     string(event.Status),
		LastError:  optionalString(event.ErrorMessage),
	}

	switch event.Status {
	case jobscheduler.StatusSent:
		model.SentAt = &occurredAt
		model.SentTraceID = optionalString(event.TraceID)
		model.SentSpanID = optionalString(event.SpanID)
		model.LastError = nil
	case jobscheduler.StatusCompleted:
		model.CompletedAt = &occurredAt
		model.CompletedTraceID = optionalString(event.TraceID)
		model.CompletedSpanID = optionalString(event.SpanID)
		model.LastError = nil
	case jobscheduler.StatusFailed:
		model.FailedAt = &occurredAt
		model.FailedTraceID = optionalString(event.TraceID)
		model.FailedSpanID = optionalString(event.SpanID)
	}

	query, args, err := qb.InsertModel(r.table, model, strings.ReplaceAll(`ON CONFLICT (dispatch_id) WHERE deleted_at IS NULL
DO UPDATE SET
    job_name = EXCLUDED.job_name,
    job_path = EXCLUDED.job_path,
    job_id = EXCLUDED.job_id,
    entity_id = EXCLUDED.entity_id,
    payload = EXCLUDED.payload,
    status = EXCLUDED.status,
    sent_at = CASE
        WHEN EXCLUDED.status = 'sent' THEN EXCLUDED.sent_at
        ELSE COALESCE({table}.sent_at, EXCLUDED.sent_at)
    END,
    completed_at = CASE
        WHEN EXCLUDED.status = 'completed' THEN EXCLUDED.completed_at
        ELSE {table}.completed_at
    END,
    failed_at = CASE
        WHEN EXCLUDED.status = 'failed' THEN EXCLUDED.failed_at
        WHEN EXCLUDED.status = 'completed' THEN NULL
        ELSE {table}.failed_at
    END,
    last_error = CASE
        WHEN EXCLUDED.status = 'failed' THEN EXCLUDED.last_error
        ELSE NULL
    END,
    sent_trace_id = CASE
        WHEN EXCLUDED.status = 'sent' THEN EXCLUDED.sent_trace_id
        ELSE {table}.sent_trace_id
    END,
    sent_span_id = CASE
        WHEN EXCLUDED.status = 'sent' THEN EXCLUDED.sent_span_id
        ELSE {table}.sent_span_id
    END,
    completed_trace_id = CASE
        WHEN EXCLUDED.status = 'completed' THEN EXCLUDED.completed_trace_id
        ELSE {table}.completed_trace_id
    END,
    completed_span_id = CASE
        WHEN EXCLUDED.status = 'completed' THEN EXCLUDED.completed_span_id
        ELSE {table}.completed_span_id
    END,
    failed_trace_id = CASE
        WHEN EXCLUDED.status = 'failed' THEN EXCLUDED.failed_trace_id
        ELSE {table}.failed_trace_id
    END,
    failed_span_id = CASE
        WHEN EXCLUDED.status = 'failed' THEN EXCLUDED.failed_span_id
        ELSE {table}.failed_span_id
    END,
    deleted_at = NULL`, "{table}", r.table))
	if err != nil {
		return fmt.Errorf("build upsert job dispatch query: %w", err)
	}

	if _, err := execRows(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("upsert job dispatch dispatch_id=%s status=%s: %w", dispatchID, event.Status, err)
	}

	return nil
}

func (r *JobDispatchRepository) ListByJob(ctx context.Context, jobID string) ([]jobscheduler.DispatchEvent, error) {
	query, args, err := qb.Select(
		"dispatch_id", "job_name", "job_path", "job_id", "entity_id", "payload", "status",
		"sent_at", "completed_at", "failed_at", "last_error",
		"COALESCE(failed_trace_id, completed_trace_id, sent_trace_id) AS trace_id",
		"COALESCE(failed_span_id, completed_span_id, sent_span_id) AS span_id",
	).From(r.table).
		Where(qb.Eq("job_id", jobID), qb.IsNull("deleted_at")).
		OrderBy("COALESCE(failed_at, completed_at, sent_at) ASC", "id ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list job dispatches query: %w", err)
	}

	var rows []jobDispatchTableModel
	if err := selectRows(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list job dispatches job_id=%s: %w", jobID, err)
	}

	out := make([]jobscheduler.DispatchEvent, 0, len(rows))
	for _, row := range rows {
		event := jobscheduler.DispatchEvent{
			DispatchID:   row.DispatchID,
			JobName:      row.JobName,
			JobPath:      row.JobPath,
			JobID:        row.JobID,
			EntityID:     row.EntityID,
			Status:       jobscheduler.DispatchStatus(row.Status),
			ErrorMessage: stringValue(row.LastError),
			TraceID:      stringValue(row.TraceID),
			SpanID:       stringValue(row.SpanID),
		}
		if err := decodeJSON(row.Payload, &event.Payload); err != nil {
			return nil, fmt.Errorf("decode job dispatch payload dispatch_id=%s: %w", row.DispatchID, err)
		}
		switch event.Status {
		case jobscheduler.StatusCompleted:
			event.OccurredAt = derefTime(row.CompletedAt)
		case jobscheduler.StatusFailed:
			event.OccurredAt = derefTime(row.FailedAt)
		default:
			event.OccurredAt = derefTime(row.SentAt)
		}
		out = append(out, event)
	}
	return out, nil
}

func derefTime(value *time.Time) time.Time {
	if value == nil {
		return time.Time{}
	}
	return value.UTC()
}

func marshalPayload(payload map[string]any) (string, error) {
	if len(payload) == 0 {
		return "{}", nil
	}
	raw, err := jsoniter.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
