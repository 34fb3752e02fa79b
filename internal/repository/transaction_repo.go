package repository

import (
	"context"
	"errors"

	"paycore/internal/model"

	"gorm.io/gorm"
)

// TransactionRepository is append-only: entries are created, their status
// may settle, and nothing is ever deleted.
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends an entry, on tx when given.
func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.AccountTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

// GetByTransactionNo returns ErrTransactionNotFound when no entry matches.
func (r *TransactionRepository) GetByTransactionNo(ctx context.Context, transactionNo string) (*model.AccountTransaction, error) {
	var trans model.AccountTransaction
	err := r.db.WithContext(ctx).Where("transaction_no = ?", transactionNo).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// ListByAccountID pages an account's entries by id DESC and reports the
// total count.
func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID string, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	var transactions []*model.AccountTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.AccountTransaction{}).Where("account_id = ?", accountID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// settlementLegTypes are the entry types a payment settlement books.
var settlementLegTypes = []model.TransactionType{
	model.TransactionTypeTransfer,
	model.TransactionTypePayment,
	model.TransactionTypeReceipt,
	model.TransactionTypeFee,
}

// HasSettlementLegs reports whether accountID carries a completed settlement
// leg booked under reference. Withdrawals, deposits and adjustments that
// merely share the reference do not count.
func (r *TransactionRepository) HasSettlementLegs(ctx context.Context, accountID, reference string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.AccountTransaction{}).
		Where("account_id = ? AND reference = ? AND status = ?", accountID, reference, model.TransactionStatusCompleted).
		Where("type IN ?", settlementLegTypes).
		Count(&count).Error
	return count > 0, err
}

// UpdateStatus moves an entry from one status to another, compare-and-set
// on from. Zero affected rows means another caller got there first.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, transactionNo string, from, to model.TransactionStatus) error {
	if !from.CanTransitionTo(to) {
		return model.InvalidStatef("transaction %s cannot move from %s to %s", transactionNo, from, to)
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.AccountTransaction{}).
		Where("transaction_no = ? AND status = ?", transactionNo, from).
		Update("status", to)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return model.InvalidStatef("transaction %s is not %s", transactionNo, from)
	}

	return nil
}
