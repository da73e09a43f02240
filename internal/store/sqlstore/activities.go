package sqlstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/thomasnguyen/corgi-quest/internal/model"
)

type activities struct{ s *Store }

const activityColumns = `activity_id, dog_id, user_id, name, duration_minutes, notes, source, physical_points, mental_points, creation_time`

func scanActivity(row interface{ Scan(...interface{}) error }) (*model.Activity, error) {
	var a model.Activity
	var src string
	if err := row.Scan(&a.ActivityID, &a.DogID, &a.UserID, &a.Name, &a.DurationMinutes, &a.Notes, &src,
		&a.PhysicalPoints, &a.MentalPoints, &a.CreationTime); err != nil {
		return nil, err
	}
	a.Source = model.ActivitySource(src)
	return &a, nil
}

func (a *activities) Create(ctx context.Context, m *model.Activity) (*model.Activity, error) {
	out := *m
	if out.ActivityID == "" {
		out.ActivityID = uuid.New().String()
	}
	if out.CreationTime.IsZero() {
		out.CreationTime = time.Now().UTC()
	}
	if out.Source == "" {
		out.Source = model.SourceManual
	}
	err := a.s.withTx(ctx, func(tx *Store) error {
		if _, err := tx.exec(ctx, `
            INSERT INTO activities (`+activityColumns+`)
            VALUES (?,?,?,?,?,?,?,?,?,?)
        `, out.ActivityID, out.DogID, out.UserID, out.Name, out.DurationMinutes, out.Notes, string(out.Source),
			out.PhysicalPoints, out.MentalPoints, out.CreationTime.UTC()); err != nil {
			return tx.mapInsertErr(err, "activityId", "activity already exists")
		}
		gains := make([]model.ActivityStatGain, 0, len(out.Gains))
		for _, g := range out.Gains {
			if g.XP <= 0 {
				continue
			}
			if _, err := tx.exec(ctx, `
                INSERT INTO activity_stat_gains (activity_id, stat_type, xp) VALUES (?,?,?)
            `, out.ActivityID, string(g.StatType), g.XP); err != nil {
				return err
			}
			gains = append(gains, model.ActivityStatGain{ActivityID: out.ActivityID, StatType: g.StatType, XP: g.XP})
		}
		out.Gains = gains
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *activities) Get(ctx context.Context, dogID, activityID string) (*model.Activity, error) {
	out, err := scanActivity(a.s.queryRow(ctx, `
        SELECT `+activityColumns+` FROM activities WHERE dog_id=? AND activity_id=?
    `, dogID, activityID))
	if err != nil {
		return nil, notFound(err, "activity", activityID)
	}
	if err := a.attachGains(ctx, []*model.Activity{out}); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *activities) List(ctx context.Context, req model.ListActivitiesRequest) ([]*model.Activity, error) {
	q := `SELECT ` + activityColumns + ` FROM activities WHERE dog_id=?`
	args := []interface{}{req.DogID}
	if req.After != nil {
		q += ` AND creation_time > ?`
		args = append(args, req.After.UTC())
	}
	q += ` ORDER BY creation_time DESC, activity_id DESC LIMIT ?`
	args = append(args, limitOrDefault(req.Limit))

	rows, err := a.s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var res []*model.Activity
	for rows.Next() {
		m, err := scanActivity(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		res = append(res, m)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := a.attachGains(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// attachGains loads stat gains for the given activities in one query.
func (a *activities) attachGains(ctx context.Context, list []*model.Activity) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*model.Activity, len(list))
	args := make([]interface{}, 0, len(list))
	for _, act := range list {
		act.Gains = []model.ActivityStatGain{}
		byID[act.ActivityID] = act
		args = append(args, act.ActivityID)
	}
	rows, err := a.s.query(ctx, `
        SELECT activity_id, stat_type, xp FROM activity_stat_gains
        WHERE activity_id IN (`+placeholders(len(args))+`)
        ORDER BY activity_id, stat_type
    `, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var g model.ActivityStatGain
		var t string
		if err := rows.Scan(&g.ActivityID, &t, &g.XP); err != nil {
			return err
		}
		g.StatType = model.StatType(t)
		if act, ok := byID[g.ActivityID]; ok {
			act.Gains = append(act.Gains, g)
		}
	}
	return rows.Err()
}

func (a *activities) Delete(ctx context.Context, dogID, activityID string) error {
	return a.s.withTx(ctx, func(tx *Store) error {
		if _, err := tx.exec(ctx, `
            DELETE FROM activity_stat_gains WHERE activity_id IN
                (SELECT activity_id FROM activities WHERE dog_id=? AND activity_id=?)
        `, dogID, activityID); err != nil {
			return err
		}
		return tx.execOne(ctx, "activity", activityID, `DELETE FROM activities WHERE dog_id=? AND activity_id=?`, dogID, activityID)
	})
}
