package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/thomasnguyen/corgi-quest/internal/store"
)

type outbox struct{ s *Store }

func (o *outbox) Enqueue(ctx context.Context, aggregateID, op string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox payload: %w", err)
	}
	now := time.Now().UTC()
	_, err = o.s.exec(ctx, `
        INSERT INTO outbox (aggregate_id, op, payload, status, attempt_count, next_attempt_at, creation_time, update_time)
        VALUES (?,?,?,?,0,?,?,?)
    `, aggregateID, op, string(b), store.OutboxPending, now.UnixMilli(), now, now)
	return err
}

func (o *outbox) Lease(ctx context.Context, limit int, now time.Time, leaseFor time.Duration) ([]store.OutboxJob, error) {
	if limit <= 0 {
		limit = 10
	}
	q := `
        SELECT id, aggregate_id, op, payload, attempt_count
        FROM outbox
        WHERE status = ? AND next_attempt_at <= ?
        ORDER BY id ASC
        LIMIT ?`
	if o.s.dialect.SkipLocked {
		q += ` FOR UPDATE SKIP LOCKED`
	}

	var jobs []store.OutboxJob
	err := o.s.withTx(ctx, func(tx *Store) error {
		rows, err := tx.query(ctx, q, store.OutboxPending, now.UnixMilli(), limit)
		if err != nil {
			return err
		}
		for rows.Next() {
			var j store.OutboxJob
			var payload string
			if err := rows.Scan(&j.ID, &j.AggregateID, &j.Op, &payload, &j.AttemptCount); err != nil {
				_ = rows.Close()
				return err
			}
			j.Payload = []byte(payload)
			jobs = append(jobs, j)
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		until := now.Add(leaseFor).UnixMilli()
		for _, j := range jobs {
			if _, err := tx.exec(ctx, `UPDATE outbox SET next_attempt_at=?, update_time=? WHERE id=?`, until, now.UTC(), j.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (o *outbox) MarkDone(ctx context.Context, id int64, now time.Time) error {
	return o.s.execOne(ctx, "outbox", fmt.Sprint(id), `UPDATE outbox SET status=?, update_time=? WHERE id=?`,
		store.OutboxDone, now.UTC(), id)
}

func (o *outbox) MarkFailed(ctx context.Context, id int64, now time.Time, cause error) error {
	return o.s.withTx(ctx, func(tx *Store) error {
		var attempts int
		if err := tx.queryRow(ctx, `SELECT attempt_count FROM outbox WHERE id=?`, id).Scan(&attempts); err != nil {
			return notFound(err, "outbox", fmt.Sprint(id))
		}
		next := now.Add(store.OutboxRetryDelay(attempts))
		_, err := tx.exec(ctx, `
            UPDATE outbox
            SET attempt_count = attempt_count + 1, next_attempt_at = ?, last_error = ?, update_time = ?
            WHERE id = ?
        `, next.UnixMilli(), errString(cause), now.UTC(), id)
		return err
	})
}

func (o *outbox) MarkDead(ctx context.Context, id int64, now time.Time, cause error) error {
	return o.s.execOne(ctx, "outbox", fmt.Sprint(id), `
        UPDATE outbox SET status=?, attempt_count = attempt_count + 1, last_error=?, update_time=? WHERE id=?
    `, store.OutboxFailed, errString(cause), now.UTC(), id)
}

func (o *outbox) CountByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := o.s.queryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE status=?`, status).Scan(&n)
	return n, err
}

func errString(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}

