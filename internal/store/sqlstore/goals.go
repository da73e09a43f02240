package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/thomasnguyen/corgi-quest/internal/model"
)

// --- Daily goals ---
type goals struct{ s *Store }

func (g *goals) Get(ctx context.Context, dogID, day string) (*model.DailyGoal, error) {
	var out model.DailyGoal
	row := g.s.queryRow(ctx, `
        SELECT dog_id, day, physical_points, mental_points, physical_target, mental_target, completed_time
        FROM daily_goals WHERE dog_id=? AND day=?
    `, dogID, day)
	if err := row.Scan(&out.DogID, &out.Day, &out.PhysicalPoints, &out.MentalPoints,
		&out.PhysicalTarget, &out.MentalTarget, &out.CompletedTime); err != nil {
		return nil, notFound(err, "goal", dogID+"/"+day)
	}
	return &out, nil
}

func (g *goals) Upsert(ctx context.Context, m *model.DailyGoal) error {
	_, err := g.s.exec(ctx, `
        INSERT INTO daily_goals (dog_id, day, physical_points, mental_points, physical_target, mental_target, completed_time)
        VALUES (?,?,?,?,?,?,?)
        ON CONFLICT (dog_id, day) DO UPDATE SET
            physical_points = excluded.physical_points,
            mental_points   = excluded.mental_points,
            physical_target = excluded.physical_target,
            mental_target   = excluded.mental_target,
            completed_time  = excluded.completed_time
    `, m.DogID, m.Day, m.PhysicalPoints, m.MentalPoints, m.PhysicalTarget, m.MentalTarget, utcPtr(m.CompletedTime))
	return err
}

// --- Streaks ---
type streaks struct{ s *Store }

func (st *streaks) Get(ctx context.Context, dogID string) (*model.Streak, error) {
	out := model.Streak{DogID: dogID}
	row := st.s.queryRow(ctx, `
        SELECT current_streak, longest_streak, last_completed_day FROM streaks WHERE dog_id=?
    `, dogID)
	if err := row.Scan(&out.Current, &out.Longest, &out.LastCompletedDay); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &out, nil
		}
		return nil, err
	}
	return &out, nil
}

func (st *streaks) Put(ctx context.Context, m *model.Streak) error {
	_, err := st.s.exec(ctx, `
        INSERT INTO streaks (dog_id, current_streak, longest_streak, last_completed_day)
        VALUES (?,?,?,?)
        ON CONFLICT (dog_id) DO UPDATE SET
            current_streak     = excluded.current_streak,
            longest_streak     = excluded.longest_streak,
            last_completed_day = excluded.last_completed_day
    `, m.DogID, m.Current, m.Longest, m.LastCompletedDay)
	return err
}

// --- Moods ---
type moods struct{ s *Store }

const moodColumns = `mood_log_id, dog_id, user_id, mood, note, creation_time`

func scanMood(row interface{ Scan(...interface{}) error }) (*model.MoodLog, error) {
	var m model.MoodLog
	var mood string
	if err := row.Scan(&m.MoodLogID, &m.DogID, &m.UserID, &mood, &m.Note, &m.CreationTime); err != nil {
		return nil, err
	}
	m.Mood = model.Mood(mood)
	return &m, nil
}

func (mo *moods) Create(ctx context.Context, m *model.MoodLog) (*model.MoodLog, error) {
	out := *m
	if out.MoodLogID == "" {
		out.MoodLogID = uuid.New().String()
	}
	if out.CreationTime.IsZero() {
		out.CreationTime = time.Now().UTC()
	}
	_, err := mo.s.exec(ctx, `
        INSERT INTO mood_logs (`+moodColumns+`) VALUES (?,?,?,?,?,?)
    `, out.MoodLogID, out.DogID, out.UserID, string(out.Mood), out.Note, out.CreationTime.UTC())
	if err != nil {
		return nil, mo.s.mapInsertErr(err, "moodLogId", "mood log already exists")
	}
	return &out, nil
}

func (mo *moods) List(ctx context.Context, req model.ListMoodsRequest) ([]*model.MoodLog, error) {
	q := `SELECT ` + moodColumns + ` FROM mood_logs WHERE dog_id=?`
	args := []interface{}{req.DogID}
	if req.After != nil {
		q += ` AND creation_time > ?`
		args = append(args, req.After.UTC())
	}
	q += ` ORDER BY creation_time DESC, mood_log_id DESC LIMIT ?`
	args = append(args, limitOrDefault(req.Limit))

	rows, err := mo.s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.MoodLog
	for rows.Next() {
		m, err := scanMood(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (mo *moods) Latest(ctx context.Context, dogID string) (*model.MoodLog, error) {
	out, err := scanMood(mo.s.queryRow(ctx, `
        SELECT `+moodColumns+` FROM mood_logs WHERE dog_id=?
        ORDER BY creation_time DESC, mood_log_id DESC LIMIT 1
    `, dogID))
	if err != nil {
		return nil, notFound(err, "mood", dogID)
	}
	return out, nil
}
