package schedule

import (
	"context"
	"database/sql"
	"time"
)

// DatabaseLockProvider implements LockProvider on a schedule_locks
// table. Acquisition wins only when no unexpired lock row exists, so a
// crashed holder frees the lock by expiry rather than by cleanup.
type DatabaseLockProvider struct {
	db *sql.DB
}

func NewDatabaseLockProvider(db *sql.DB) *DatabaseLockProvider {
	return &DatabaseLockProvider{db: db}
}

func (d *DatabaseLockProvider) GetLock(ctx context.Context, name string, duration time.Duration) (bool, error) {
	result, err := d.db.ExecContext(ctx, `
		INSERT INTO schedule_locks (name, locked_until)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET locked_until = EXCLUDED.locked_until
		WHERE schedule_locks.locked_until < now()`,
		name, time.Now().Add(duration))
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (d *DatabaseLockProvider) ReleaseLock(ctx context.Context, name string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM schedule_locks WHERE name = $1`, name)
	return err
}
