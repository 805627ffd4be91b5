package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/upb/fact-history/models"
	"github.com/upb/fact-history/repositories"
	"go.uber.org/zap"
)

const selectColumns = `id, event_id, fact_id, memory_space_id, action, old_value, new_value,
		       supersedes, superseded_by, reason, confidence, pipeline,
		       user_id, participant_id, conversation_id, timestamp`

// Repository implements repositories.FactEventRepository over a SQL database
type Repository struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

var _ repositories.FactEventRepository = (*Repository)(nil)

// New creates a fact history repository for the given engine dialect
func New(db *sql.DB, dialect Dialect, logger *zap.Logger) *Repository {
	return &Repository{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

// Insert appends a fact event and returns the storage key assigned by the engine
func (r *Repository) Insert(ctx context.Context, event *models.FactEvent) (int64, error) {
	a := &args{dialect: r.dialect}
	placeholders := []string{
		a.add(event.EventID),
		a.add(event.FactID),
		a.add(event.MemorySpaceID),
		a.add(event.Action),
		a.add(event.OldValue),
		a.add(event.NewValue),
		a.add(event.Supersedes),
		a.add(event.SupersededBy),
		a.add(event.Reason),
		a.add(event.Confidence),
		a.add(event.Pipeline),
		a.add(event.UserID),
		a.add(event.ParticipantID),
		a.add(event.ConversationID),
		a.add(event.Timestamp),
	}

	query := `
		INSERT INTO fact_history (
			event_id, fact_id, memory_space_id, action, old_value, new_value,
			supersedes, superseded_by, reason, confidence, pipeline,
			user_id, participant_id, conversation_id, timestamp
		) VALUES (` + strings.Join(placeholders, ", ") + `)
		RETURNING id
	`

	var key int64
	if err := r.db.QueryRowContext(ctx, query, a.values...).Scan(&key); err != nil {
		return 0, fmt.Errorf("failed to insert fact event: %w", err)
	}

	r.logger.Debug("fact event inserted",
		zap.Int64("storage_key", key),
		zap.String("event_id", event.EventID),
		zap.String("action", event.Action.String()))
	return key, nil
}

// GetByEventID retrieves a fact event by its unique event ID
func (r *Repository) GetByEventID(ctx context.Context, eventID string) (*models.FactEvent, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM fact_history
		WHERE event_id = ` + r.dialect.Placeholder(1)

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get fact event: %w", err)
	}
	return event, nil
}

// Scan streams the events matching q to fn in the requested order
func (r *Repository) Scan(ctx context.Context, q repositories.ScanQuery, fn func(*models.FactEvent) error) error {
	a := &args{dialect: r.dialect}
	where, err := r.where(q, a)
	if err != nil {
		return err
	}

	dir := "DESC"
	if q.Order == repositories.OrderAscending {
		dir = "ASC"
	}
	query := `
		SELECT ` + selectColumns + `
		FROM fact_history` + where + `
		ORDER BY timestamp ` + dir + `, id ` + dir
	if q.Limit > 0 {
		query += `
		LIMIT ` + a.add(q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, a.values...)
	if err != nil {
		return fmt.Errorf("failed to query fact history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return fmt.Errorf("failed to scan fact event: %w", err)
		}
		if err := fn(event); err != nil {
			if errors.Is(err, repositories.ErrStopScan) {
				return nil
			}
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating fact history rows: %w", err)
	}
	return nil
}

// Count returns how many events match q
func (r *Repository) Count(ctx context.Context, q repositories.ScanQuery) (int, error) {
	a := &args{dialect: r.dialect}
	where, err := r.where(q, a)
	if err != nil {
		return 0, err
	}

	var count int
	query := `SELECT COUNT(*) FROM fact_history` + where
	if err := r.db.QueryRowContext(ctx, query, a.values...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count fact history: %w", err)
	}
	return count, nil
}

// Delete removes a single event by storage key. Missing keys are ignored.
func (r *Repository) Delete(ctx context.Context, key int64) error {
	query := `DELETE FROM fact_history WHERE id = ` + r.dialect.Placeholder(1)
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete fact event %d: %w", key, err)
	}
	return nil
}

// Ping checks database connectivity
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// where builds the WHERE clause for an index scan and registers its arguments
func (r *Repository) where(q repositories.ScanQuery, a *args) (string, error) {
	var conds []string
	switch q.Index {
	case repositories.IndexByFact:
		conds = append(conds, "fact_id = "+a.add(q.Key))
	case repositories.IndexByUser:
		conds = append(conds, "user_id = "+a.add(q.Key))
	case repositories.IndexBySpace, repositories.IndexBySpaceTime:
		conds = append(conds, "memory_space_id = "+a.add(q.Key))
	case repositories.IndexByTime:
	default:
		return "", fmt.Errorf("unsupported index %d", q.Index)
	}

	if q.Range.Lower != nil {
		conds = append(conds, "timestamp >= "+a.add(*q.Range.Lower))
	}
	if q.Range.Upper != nil {
		op := "<="
		if q.Range.UpperExclusive {
			op = "<"
		}
		conds = append(conds, "timestamp "+op+" "+a.add(*q.Range.Upper))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return `
		WHERE ` + strings.Join(conds, " AND "), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.FactEvent, error) {
	event := &models.FactEvent{}
	err := row.Scan(
		&event.Key,
		&event.EventID,
		&event.FactID,
		&event.MemorySpaceID,
		&event.Action,
		&event.OldValue,
		&event.NewValue,
		&event.Supersedes,
		&event.SupersededBy,
		&event.Reason,
		&event.Confidence,
		&event.Pipeline,
		&event.UserID,
		&event.ParticipantID,
		&event.ConversationID,
		&event.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	return event, nil
}
