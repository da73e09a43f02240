package sqlstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/thomasnguyen/corgi-quest/internal/model"
)

// --- Households ---
type households struct{ s *Store }

func (h *households) Create(ctx context.Context, m *model.Household) (*model.Household, error) {
	out := *m
	if out.HouseholdID == "" {
		out.HouseholdID = uuid.New().String()
	}
	if out.CreationTime.IsZero() {
		out.CreationTime = time.Now().UTC()
	}
	_, err := h.s.exec(ctx, `
        INSERT INTO households (household_id, name, invite_code, time_zone, creation_time)
        VALUES (?,?,?,?,?)
    `, out.HouseholdID, out.Name, out.InviteCode, out.TimeZone, out.CreationTime.UTC())
	if err != nil {
		return nil, h.s.mapInsertErr(err, "inviteCode", "household already exists")
	}
	return &out, nil
}

const householdColumns = `household_id, name, invite_code, time_zone, creation_time`

func scanHousehold(row interface{ Scan(...interface{}) error }) (*model.Household, error) {
	var out model.Household
	if err := row.Scan(&out.HouseholdID, &out.Name, &out.InviteCode, &out.TimeZone, &out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *households) Get(ctx context.Context, householdID string) (*model.Household, error) {
	out, err := scanHousehold(h.s.queryRow(ctx, `SELECT `+householdColumns+` FROM households WHERE household_id=?`, householdID))
	if err != nil {
		return nil, notFound(err, "household", householdID)
	}
	return out, nil
}

func (h *households) GetByInviteCode(ctx context.Context, code string) (*model.Household, error) {
	out, err := scanHousehold(h.s.queryRow(ctx, `SELECT `+householdColumns+` FROM households WHERE invite_code=?`, code))
	if err != nil {
		return nil, notFound(err, "inviteCode", code)
	}
	return out, nil
}

func (h *households) GetByInviteCodeForUpdate(ctx context.Context, code string) (*model.Household, error) {
	out, err := scanHousehold(h.s.queryRow(ctx, `SELECT `+householdColumns+` FROM households WHERE invite_code=?`+h.s.forUpdate(), code))
	if err != nil {
		return nil, notFound(err, "inviteCode", code)
	}
	return out, nil
}

// --- Users ---
type users struct{ s *Store }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	out := *m
	if out.UserID == "" {
		out.UserID = uuid.New().String()
	}
	if out.CreationTime.IsZero() {
		out.CreationTime = time.Now().UTC()
	}
	_, err := u.s.exec(ctx, `
        INSERT INTO users (user_id, household_id, name, creation_time)
        VALUES (?,?,?,?)
    `, out.UserID, out.HouseholdID, out.Name, out.CreationTime.UTC())
	if err != nil {
		return nil, u.s.mapInsertErr(err, "userId", "user already exists")
	}
	return &out, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	var out model.User
	row := u.s.queryRow(ctx, `SELECT user_id, household_id, name, creation_time FROM users WHERE user_id=?`, userID)
	if err := row.Scan(&out.UserID, &out.HouseholdID, &out.Name, &out.CreationTime); err != nil {
		return nil, notFound(err, "user", userID)
	}
	return &out, nil
}

func (u *users) ListByHousehold(ctx context.Context, householdID string) ([]*model.User, error) {
	rows, err := u.s.query(ctx, `
        SELECT user_id, household_id, name, creation_time
        FROM users WHERE household_id=? ORDER BY creation_time ASC, user_id ASC
    `, householdID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.User
	for rows.Next() {
		var m model.User
		if err := rows.Scan(&m.UserID, &m.HouseholdID, &m.Name, &m.CreationTime); err != nil {
			return nil, err
		}
		res = append(res, &m)
	}
	return res, rows.Err()
}

func (u *users) CountByHousehold(ctx context.Context, householdID string) (int, error) {
	var n int
	err := u.s.queryRow(ctx, `SELECT COUNT(*) FROM users WHERE household_id=?`, householdID).Scan(&n)
	return n, err
}

// --- Dogs ---
type dogs struct{ s *Store }

const dogColumns = `dog_id, household_id, name, level, xp, creation_time`

func scanDog(row interface{ Scan(...interface{}) error }) (*model.Dog, error) {
	var d model.Dog
	if err := row.Scan(&d.DogID, &d.HouseholdID, &d.Name, &d.Level, &d.XP, &d.CreationTime); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *dogs) Create(ctx context.Context, m *model.Dog) (*model.Dog, error) {
	out := *m
	if out.DogID == "" {
		out.DogID = uuid.New().String()
	}
	if out.Level < 1 {
		out.Level = 1
	}
	if out.CreationTime.IsZero() {
		out.CreationTime = time.Now().UTC()
	}
	_, err := d.s.exec(ctx, `
        INSERT INTO dogs (dog_id, household_id, name, level, xp, creation_time)
        VALUES (?,?,?,?,?,?)
    `, out.DogID, out.HouseholdID, out.Name, out.Level, out.XP, out.CreationTime.UTC())
	if err != nil {
		return nil, d.s.mapInsertErr(err, "householdId", "household already has a dog")
	}
	return &out, nil
}

func (d *dogs) Get(ctx context.Context, dogID string) (*model.Dog, error) {
	out, err := scanDog(d.s.queryRow(ctx, `SELECT `+dogColumns+` FROM dogs WHERE dog_id=?`, dogID))
	if err != nil {
		return nil, notFound(err, "dog", dogID)
	}
	return out, nil
}

func (d *dogs) GetByHousehold(ctx context.Context, householdID string) (*model.Dog, error) {
	out, err := scanDog(d.s.queryRow(ctx, `SELECT `+dogColumns+` FROM dogs WHERE household_id=?`, householdID))
	if err != nil {
		return nil, notFound(err, "dog", householdID)
	}
	return out, nil
}

func (d *dogs) GetByHouseholdForUpdate(ctx context.Context, householdID string) (*model.Dog, error) {
	out, err := scanDog(d.s.queryRow(ctx, `SELECT `+dogColumns+` FROM dogs WHERE household_id=?`+d.s.forUpdate(), householdID))
	if err != nil {
		return nil, notFound(err, "dog", householdID)
	}
	return out, nil
}

func (d *dogs) UpdateProgress(ctx context.Context, dogID string, level, xp int) error {
	return d.s.execOne(ctx, "dog", dogID, `UPDATE dogs SET level=?, xp=? WHERE dog_id=?`, level, xp, dogID)
}

// --- Stats ---
type stats struct{ s *Store }

func (st *stats) Init(ctx context.Context, dogID string) ([]*model.DogStat, error) {
	now := time.Now().UTC()
	out := make([]*model.DogStat, 0, len(model.AllStats))
	for _, t := range model.AllStats {
		if _, err := st.s.exec(ctx, `
            INSERT INTO dog_stats (dog_id, stat_type, level, xp, update_time)
            VALUES (?,?,1,0,?)
        `, dogID, string(t), now); err != nil {
			return nil, st.s.mapInsertErr(err, "statType", "stats already initialised")
		}
		out = append(out, &model.DogStat{DogID: dogID, StatType: t, Level: 1, UpdateTime: now})
	}
	return out, nil
}

func (st *stats) List(ctx context.Context, dogID string) ([]*model.DogStat, error) {
	rows, err := st.s.query(ctx, `
        SELECT dog_id, stat_type, level, xp, update_time FROM dog_stats WHERE dog_id=?
    `, dogID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.DogStat
	for rows.Next() {
		var m model.DogStat
		var t string
		if err := rows.Scan(&m.DogID, &t, &m.Level, &m.XP, &m.UpdateTime); err != nil {
			return nil, err
		}
		m.StatType = model.StatType(t)
		res = append(res, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(res, func(i, j int) bool { return statOrder(res[i].StatType) < statOrder(res[j].StatType) })
	return res, nil
}

func (st *stats) Update(ctx context.Context, m *model.DogStat) error {
	ut := m.UpdateTime
	if ut.IsZero() {
		ut = time.Now().UTC()
	}
	return st.s.execOne(ctx, "stat", m.DogID+"/"+string(m.StatType), `
        UPDATE dog_stats SET level=?, xp=?, update_time=? WHERE dog_id=? AND stat_type=?
    `, m.Level, m.XP, ut.UTC(), m.DogID, string(m.StatType))
}

func statOrder(t model.StatType) int {
	for i, s := range model.AllStats {
		if s == t {
			return i
		}
	}
	return len(model.AllStats)
}
