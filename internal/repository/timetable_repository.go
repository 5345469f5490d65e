package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dateLayout = "2006-01-02"

const timetableColumns = `id, user_id, name, start_date, end_date, source, schedule,
	subjects, topics, test_dates, preferences, report, created_at, updated_at`

// TimetableRepository handles timetable data access.
type TimetableRepository struct {
	pool *pgxpool.Pool
}

// NewTimetableRepository creates a new TimetableRepository.
func NewTimetableRepository(pool *pgxpool.Pool) *TimetableRepository {
	return &TimetableRepository{pool: pool}
}

// Create inserts a timetable and fills its ID and timestamps.
func (r *TimetableRepository) Create(ctx context.Context, t *model.Timetable) error {
	start, err := time.Parse(dateLayout, t.StartDate)
	if err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	end, err := time.Parse(dateLayout, t.EndDate)
	if err != nil {
		return fmt.Errorf("end date: %w", err)
	}

	docs, err := marshalAll(t.Schedule, t.Subjects, t.Topics, t.TestDates, t.Preferences, t.Report)
	if err != nil {
		return err
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO timetables (user_id, name, start_date, end_date, source, schedule,
		                         subjects, topics, test_dates, preferences, report)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at, updated_at`,
		t.UserID, t.Name, start, end, t.Source,
		docs[0], docs[1], docs[2], docs[3], docs[4], docs[5],
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// GetByID retrieves a timetable owned by userID.
func (r *TimetableRepository) GetByID(ctx context.Context, id uuid.UUID, userID string) (*model.Timetable, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+timetableColumns+` FROM timetables WHERE id = $1 AND user_id = $2`,
		id, userID)
	return scanTimetable(row)
}

// ListByUserPaginated returns the user's timetables, newest first, with the total count.
func (r *TimetableRepository) ListByUserPaginated(ctx context.Context, userID string, limit, offset int) ([]model.TimetableSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM timetables WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, start_date, end_date, source, schedule, created_at
		 FROM timetables WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]model.TimetableSummary, 0)
	for rows.Next() {
		var (
			s          model.TimetableSummary
			start, end time.Time
			schedule   []byte
		)
		if err := rows.Scan(&s.ID, &s.Name, &start, &end, &s.Source, &schedule, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		var sched model.Schedule
		if err := json.Unmarshal(schedule, &sched); err != nil {
			return nil, 0, fmt.Errorf("decode schedule: %w", err)
		}
		s.StartDate = start.Format(dateLayout)
		s.EndDate = end.Format(dateLayout)
		s.SessionCount = sched.SessionCount()
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// Delete removes a timetable owned by userID. Returns pgx.ErrNoRows when
// nothing matched.
func (r *TimetableRepository) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM timetables WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTimetable(row pgx.Row) (*model.Timetable, error) {
	var (
		t                                                   model.Timetable
		start, end                                          time.Time
		schedule, subjects, topics, testDates, prefs, report []byte
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &start, &end, &t.Source, &schedule,
		&subjects, &topics, &testDates, &prefs, &report, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.StartDate = start.Format(dateLayout)
	t.EndDate = end.Format(dateLayout)

	targets := []struct {
		raw []byte
		dst any
	}{
		{schedule, &t.Schedule},
		{subjects, &t.Subjects},
		{topics, &t.Topics},
		{testDates, &t.TestDates},
		{prefs, &t.Preferences},
		{report, &t.Report},
	}
	for _, tg := range targets {
		if err := json.Unmarshal(tg.raw, tg.dst); err != nil {
			return nil, fmt.Errorf("decode timetable column: %w", err)
		}
	}
	return &t, nil
}

func marshalAll(values ...any) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode timetable column: %w", err)
		}
		out[i] = b
	}
	return out, nil
}
