package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/guestwave/console-auth/internal/ports"
)

// ErrAuditEventNotFound is returned when an audit event is not found.
var ErrAuditEventNotFound = errors.New("audit event not found")

// ErrDuplicateAuditEvent is returned when an event with the same ID was
// already recorded.
var ErrDuplicateAuditEvent = errors.New("audit event already recorded")

// auditColumns defines the column list for audit SELECT queries to ensure
// consistent field mapping.
const auditColumns = `id, event_type, user_id, email, path, reason, occurred_at`

// AuditRepo persists authentication audit events. It implements
// ports.AuditRecorder.
type AuditRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAuditRepo creates a new AuditRepo instance with the given database connection.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{
		DB:           db,
		timeProvider: &RealTimeProvider{},
	}
}

// WithTimeProvider overrides the repo's time source, used in tests.
func (r *AuditRepo) WithTimeProvider(tp TimeProvider) *AuditRepo {
	r.timeProvider = tp
	return r
}

// auditRow mirrors the auth_audit_events columns for pgx row collection.
type auditRow struct {
	ID         uuid.UUID          `db:"id"`
	EventType  string             `db:"event_type"`
	UserID     string             `db:"user_id"`
	Email      string             `db:"email"`
	Path       string             `db:"path"`
	Reason     string             `db:"reason"`
	OccurredAt pgtype.Timestamptz `db:"occurred_at"`
}

func (row auditRow) toEvent() ports.AuditEvent {
	return ports.AuditEvent{
		ID:     row.ID.String(),
		Type:   ports.AuditEventType(row.EventType),
		UserID: row.UserID,
		Email:  row.Email,
		Path:   row.Path,
		Reason: row.Reason,
		At:     row.OccurredAt.Time,
	}
}

// Record stores a single audit event. A zero event ID is assigned a fresh
// UUID; a zero timestamp is filled from the repo's clock.
func (r *AuditRepo) Record(ctx context.Context, event ports.AuditEvent) error {
	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}
	occurredAt := event.At
	if occurredAt.IsZero() {
		occurredAt = r.timeProvider.Now()
	}

	const query = `
		INSERT INTO auth_audit_events (id, event_type, user_id, email, path, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.DB.ExecContext(ctx, query,
		id, string(event.Type), event.UserID, event.Email, event.Path, event.Reason, occurredAt,
	)
	if err != nil {
		return r.handleRecordError(err)
	}
	return nil
}

// handleRecordError classifies database errors during event insertion.
func (r *AuditRepo) handleRecordError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrDuplicateAuditEvent
	}
	return fmt.Errorf("record audit event: %w", err)
}

// GetByID fetches a single audit event.
func (r *AuditRepo) GetByID(ctx context.Context, id string) (ports.AuditEvent, error) {
	eventID, err := uuid.Parse(id)
	if err != nil {
		return ports.AuditEvent{}, ErrAuditEventNotFound
	}

	query := `SELECT ` + auditColumns + ` FROM auth_audit_events WHERE id = $1`

	var row auditRow
	err = r.withPgxConn(ctx, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, query, eventID)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		row, qerr = pgx.CollectOneRow(rows, pgx.RowToStructByName[auditRow])
		return qerr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.AuditEvent{}, ErrAuditEventNotFound
		}
		return ports.AuditEvent{}, fmt.Errorf("get audit event: %w", err)
	}
	return row.toEvent(), nil
}

// ListRecent returns the most recent audit events, newest first.
func (r *AuditRepo) ListRecent(ctx context.Context, limit int) ([]ports.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + auditColumns + `
		FROM auth_audit_events
		ORDER BY occurred_at DESC
		LIMIT $1`

	return r.listEvents(ctx, query, limit)
}

// ListByUser returns the most recent audit events for one user, newest first.
func (r *AuditRepo) ListByUser(ctx context.Context, userID string, limit int) ([]ports.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + auditColumns + `
		FROM auth_audit_events
		WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`

	return r.listEvents(ctx, query, userID, limit)
}

// CountByType returns event counts grouped by event type.
func (r *AuditRepo) CountByType(ctx context.Context) (map[ports.AuditEventType]int64, error) {
	const query = `SELECT event_type, COUNT(*) FROM auth_audit_events GROUP BY event_type`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count audit events: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			_ = cerr
		}
	}()

	counts := make(map[ports.AuditEventType]int64)
	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("scan audit count row: %w", err)
		}
		counts[ports.AuditEventType(eventType)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit count rows: %w", err)
	}
	return counts, nil
}

func (r *AuditRepo) listEvents(ctx context.Context, query string, args ...any) ([]ports.AuditEvent, error) {
	var rowsOut []auditRow
	err := r.withPgxConn(ctx, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		rowsOut, qerr = pgx.CollectRows(rows, pgx.RowToStructByName[auditRow])
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}

	events := make([]ports.AuditEvent, 0, len(rowsOut))
	for _, row := range rowsOut {
		events = append(events, row.toEvent())
	}
	return events, nil
}

// withPgxConn acquires a *pgx.Conn via the stdlib bridge and executes fn with it.
func (r *AuditRepo) withPgxConn(ctx context.Context, fn func(*pgx.Conn) error) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	return conn.Raw(func(dc any) error {
		std, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		return fn(std.Conn())
	})
}
