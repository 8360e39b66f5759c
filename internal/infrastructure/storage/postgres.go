package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"ReviewRelay/internal/domain"
	"ReviewRelay/internal/ports"
)

// PostgresRepository implements ports.ReviewRepository on Postgres. Status
// transitions are checked inside a row-locking transaction so concurrent
// callbacks cannot race a review past the state machine.
type PostgresRepository struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

var _ ports.ReviewRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now: time.Now,
	}
}

// CreateReview inserts the review; a conflicting ID yields
// domain.ErrAlreadyExists.
func (r *PostgresRepository) CreateReview(ctx context.Context, review domain.Review) error {
	query, args, err := r.sb.Insert("reviews").
		Columns("id", "location_id", "author", "rating", "comment", "created_at", "status").
		Values(review.ID, review.LocationID, review.Author, review.Rating,
			review.Comment, review.CreatedAt, review.Status).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert review: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert review result: %w", err)
	}
	if affected == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// GetReview loads one review by ID.
func (r *PostgresRepository) GetReview(ctx context.Context, id string) (domain.Review, error) {
	query, args, err := r.sb.Select(
		"id", "location_id", "author", "rating", "comment", "created_at", "status", "draft_id").
		From("reviews").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Review{}, fmt.Errorf("build select review: %w", err)
	}

	var (
		review  domain.Review
		status  string
		draftID sql.NullString
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&review.ID, &review.LocationID, &review.Author, &review.Rating,
		&review.Comment, &review.CreatedAt, &status, &draftID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Review{}, fmt.Errorf("select review: %w", err)
	}

	review.Status = domain.Status(status)
	review.DraftID = draftID.String
	return review, nil
}

// UpdateStatus applies one lifecycle transition under FOR UPDATE.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, reviewID string, status domain.Status, draftID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.sb.Select("status").
		From("reviews").
		Where(sq.Eq{"id": reviewID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("build select status: %w", err)
	}

	var current string
	err = tx.QueryRowContext(ctx, query, args...).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("select status: %w", err)
	}

	if !domain.CanTransition(domain.Status(current), status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, status)
	}

	update := r.sb.Update("reviews").Set("status", status)
	if draftID != "" {
		update = update.Set("draft_id", draftID)
	}
	query, args, err = update.Where(sq.Eq{"id": reviewID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update status: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// CreateDraft stores a new draft under a fresh uuid.
func (r *PostgresRepository) CreateDraft(ctx context.Context, draft domain.Draft) (domain.Draft, error) {
	draft.ID = uuid.NewString()
	draft.CreatedAt = r.now().UTC()

	query, args, err := r.sb.Insert("drafts").
		Columns("id", "review_id", "text", "token_cost", "created_at").
		Values(draft.ID, draft.ReviewID, draft.Text, draft.TokenCost, draft.CreatedAt).
		ToSql()
	if err != nil {
		return domain.Draft{}, fmt.Errorf("build insert draft: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return domain.Draft{}, fmt.Errorf("insert draft: %w", err)
	}
	return draft, nil
}

// GetDraft loads one draft by ID.
func (r *PostgresRepository) GetDraft(ctx context.Context, id string) (domain.Draft, error) {
	query, args, err := r.sb.Select("id", "review_id", "text", "token_cost", "created_at").
		From("drafts").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Draft{}, fmt.Errorf("build select draft: %w", err)
	}

	var draft domain.Draft
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&draft.ID, &draft.ReviewID, &draft.Text, &draft.TokenCost, &draft.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Draft{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Draft{}, fmt.Errorf("select draft: %w", err)
	}
	return draft, nil
}

// GetLocation loads one location by ID.
func (r *PostgresRepository) GetLocation(ctx context.Context, id string) (domain.Location, error) {
	query, args, err := r.sb.Select("id", "tone", "channel_id", "source", "page_url").
		From("locations").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Location{}, fmt.Errorf("build select location: %w", err)
	}

	var loc domain.Location
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&loc.ID, &loc.Tone, &loc.ChannelID, &loc.Source, &loc.PageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Location{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Location{}, fmt.Errorf("select location: %w", err)
	}
	return loc, nil
}

// ListLocations returns all configured locations.
func (r *PostgresRepository) ListLocations(ctx context.Context) ([]domain.Location, error) {
	query, args, err := r.sb.Select("id", "tone", "channel_id", "source", "page_url").
		From("locations").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list locations: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}

	var locations []domain.Location
	for rows.Next() {
		var loc domain.Location
		if err := rows.Scan(&loc.ID, &loc.Tone, &loc.ChannelID, &loc.Source, &loc.PageURL); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locations = append(locations, loc)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}
	return locations, nil
}

// GetCursor loads the ingestion watermark for one location.
func (r *PostgresRepository) GetCursor(ctx context.Context, locationID string) (domain.Cursor, error) {
	query, args, err := r.sb.Select("location_id", "ts").
		From("cursors").
		Where(sq.Eq{"location_id": locationID}).
		ToSql()
	if err != nil {
		return domain.Cursor{}, fmt.Errorf("build select cursor: %w", err)
	}

	var cursor domain.Cursor
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&cursor.LocationID, &cursor.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cursor{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Cursor{}, fmt.Errorf("select cursor: %w", err)
	}
	return cursor, nil
}

// SaveCursor upserts the ingestion watermark.
func (r *PostgresRepository) SaveCursor(ctx context.Context, cursor domain.Cursor) error {
	query, args, err := r.sb.Insert("cursors").
		Columns("location_id", "ts").
		Values(cursor.LocationID, cursor.Timestamp).
		Suffix("ON CONFLICT (location_id) DO UPDATE SET ts = EXCLUDED.ts").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert cursor: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}
	return nil
}

// SetPendingEdit upserts the operator's edit context; a new edit replaces
// the previous one.
func (r *PostgresRepository) SetPendingEdit(ctx context.Context, edit domain.PendingEdit) error {
	query, args, err := r.sb.Insert("pending_edits").
		Columns("operator_id", "review_id", "expires_at").
		Values(edit.OperatorID, edit.ReviewID, edit.ExpiresAt).
		Suffix("ON CONFLICT (operator_id) DO UPDATE SET review_id = EXCLUDED.review_id, expires_at = EXCLUDED.expires_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert pending edit: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert pending edit: %w", err)
	}
	return nil
}

// GetPendingEdit returns the operator's unexpired edit context.
func (r *PostgresRepository) GetPendingEdit(ctx context.Context, operatorID string) (domain.PendingEdit, error) {
	query, args, err := r.sb.Select("operator_id", "review_id", "expires_at").
		From("pending_edits").
		Where(sq.Eq{"operator_id": operatorID}).
		Where(sq.Gt{"expires_at": r.now().UTC()}).
		ToSql()
	if err != nil {
		return domain.PendingEdit{}, fmt.Errorf("build select pending edit: %w", err)
	}

	var edit domain.PendingEdit
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&edit.OperatorID, &edit.ReviewID, &edit.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PendingEdit{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PendingEdit{}, fmt.Errorf("select pending edit: %w", err)
	}
	return edit, nil
}

// ClearPendingEdit removes the operator's edit context if any.
func (r *PostgresRepository) ClearPendingEdit(ctx context.Context, operatorID string) error {
	query, args, err := r.sb.Delete("pending_edits").
		Where(sq.Eq{"operator_id": operatorID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete pending edit: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete pending edit: %w", err)
	}
	return nil
}
