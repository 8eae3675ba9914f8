package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/shared"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository implements OutboxRepository using GORM
type GormOutboxRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormOutboxRepository creates a new GORM-based outbox repository
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db, now: time.Now}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormOutboxRepository) WithTx(tx *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: tx, now: r.now}
}

// Save persists one or more outbox entries
func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]*models.OutboxModel, len(entries))
	for i, e := range entries {
		rows[i] = models.OutboxModelFromDomain(e)
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// ClaimPending selects deliverable entries oldest first and marks them in
// flight within one transaction. On postgres the selection skips rows locked by
// another relay instance.
func (r *GormOutboxRepository) ClaimPending(ctx context.Context, limit, maxAttempts int, stuckBefore time.Time) ([]*shared.OutboxEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	if maxAttempts <= 0 {
		maxAttempts = shared.DefaultMaxAttempts
	}

	var claimed []*shared.OutboxEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.
			Where("(status = ? AND attempts < ?) OR (status = ? AND claimed_at < ?)",
				shared.OutboxStatusPending, maxAttempts,
				shared.OutboxStatusInFlight, stuckBefore,
			).
			Order("created_at ASC").
			Limit(limit)
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{
				Strength: "UPDATE",
				Options:  "SKIP LOCKED",
			})
		}

		var rows []models.OutboxModel
		if err := query.Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		// Postgres keeps microseconds; the claim time doubles as the claim token in Update.
		now := r.now().Truncate(time.Microsecond)
		claimed = make([]*shared.OutboxEntry, 0, len(rows))
		for i := range rows {
			entry := rows[i].ToDomain()
			var err error
			if entry.Status == shared.OutboxStatusInFlight {
				err = entry.Reclaim(now, maxAttempts)
			} else {
				err = entry.Claim(now)
			}
			if err != nil {
				return err
			}

			if err := tx.Model(&models.OutboxModel{}).
				Where("id = ?", entry.ID).
				Updates(stateColumns(entry)).Error; err != nil {
				return err
			}
			if entry.Status == shared.OutboxStatusInFlight {
				claimed = append(claimed, entry)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox entries: %w", err)
	}
	return claimed, nil
}

// Update persists the delivery outcome of an entry. The write only lands while
// the row is still in flight under the same claim, so a worker whose claim was
// taken over cannot overwrite a newer outcome.
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry, claimedAt time.Time) error {
	entry.UpdatedAt = r.now()
	result := r.db.WithContext(ctx).
		Model(&models.OutboxModel{}).
		Where("id = ? AND status = ? AND claimed_at = ?", entry.ID, string(shared.OutboxStatusInFlight), claimedAt).
		Updates(stateColumns(entry))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrOutboxClaimLost
	}
	return nil
}

func stateColumns(e *shared.OutboxEntry) map[string]any {
	return map[string]any{
		"status":     string(e.Status),
		"attempts":   e.Attempts,
		"last_error": e.LastError,
		"claimed_at": nullableTime(e.ClaimedAt),
		"sent_at":    nullableTime(e.SentAt),
		"updated_at": e.UpdatedAt,
	}
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// FindByID retrieves a single outbox entry by ID
func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	var row models.OutboxModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// DeleteSentBefore deletes delivered entries sent before the given time
func (r *GormOutboxRepository) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND sent_at < ?", shared.OutboxStatusSent, before).
		Delete(&models.OutboxModel{})
	return result.RowsAffected, result.Error
}

// CountByStatus returns count of entries for each status
func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	type statusCount struct {
		Status shared.OutboxStatus
		Count  int64
	}

	var results []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.OutboxModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[shared.OutboxStatus]int64)
	for _, r := range results {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
