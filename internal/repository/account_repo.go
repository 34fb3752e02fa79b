package repository

import (
	"context"
	"errors"
	"time"

	"paycore/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(account).Error
}

// GetByID reads without locking; returns ErrAccountNotFound when absent.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByIDForUpdate reads the row under SELECT ... FOR UPDATE inside tx.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByNumber looks an account up by its public number.
func (r *AccountRepository) GetByNumber(ctx context.Context, accountNumber string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("account_number = ?", accountNumber).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// ListByUserID returns a user's accounts, oldest first.
func (r *AccountRepository) ListByUserID(ctx context.Context, userID string) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&accounts).Error
	return accounts, err
}

// Update writes every column of account guarded by its version.
// The version is bumped on success; a stale version yields ErrOptimisticLock.
func (r *AccountRepository) Update(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	if tx == nil {
		tx = r.db
	}

	prev := account.Version
	account.Version = prev + 1

	result := tx.WithContext(ctx).
		Model(account).
		Where("version = ?", prev).
		Select("*").
		Omit("id", "created_at").
		Updates(account)

	if result.Error != nil {
		account.Version = prev
		return result.Error
	}

	if result.RowsAffected == 0 {
		account.Version = prev
		return model.ErrOptimisticLock
	}

	return nil
}

// ListStaleDailyIDs pages through open accounts holding daily counters
// that were last bumped before dayStart.
func (r *AccountRepository) ListStaleDailyIDs(ctx context.Context, dayStart time.Time, afterID string, limit int) ([]string, error) {
	return r.listStaleIDs(ctx, "daily_transaction_count", dayStart, afterID, limit)
}

// ListStaleMonthlyIDs pages through open accounts holding monthly counters
// that were last bumped before monthStart.
func (r *AccountRepository) ListStaleMonthlyIDs(ctx context.Context, monthStart time.Time, afterID string, limit int) ([]string, error) {
	return r.listStaleIDs(ctx, "monthly_transaction_count", monthStart, afterID, limit)
}

func (r *AccountRepository) listStaleIDs(ctx context.Context, countColumn string, periodStart time.Time, afterID string, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id > ? AND status <> ?", afterID, model.AccountStatusClosed).
		Where(countColumn+" > 0").
		Where("last_transaction_date IS NULL OR last_transaction_date < ?", periodStart.UTC()).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// ListInterestBearingIDs pages through active accounts with a positive rate.
func (r *AccountRepository) ListInterestBearingIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id > ? AND status = ? AND interest_rate > 0", afterID, model.AccountStatusActive).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
