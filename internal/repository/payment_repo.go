package repository

import (
	"context"
	"errors"
	"time"

	"paycore/internal/model"

	"gorm.io/gorm"
)

var inFlightStatuses = []model.PaymentStatus{
	model.PaymentStatusProcessing,
	model.PaymentStatusComplianceCheck,
	model.PaymentStatusFraudCheck,
}

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(payment).Error
}

func (r *PaymentRepository) GetByPaymentID(ctx context.Context, paymentID string) (*model.Payment, error) {
	payment, err := r.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, model.ErrPaymentNotFound
	}
	return payment, nil
}

// FindByPaymentID returns nil, nil when no payment carries the id.
func (r *PaymentRepository) FindByPaymentID(ctx context.Context, paymentID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// Update writes the payment only if its stored status is still fromStatus.
func (r *PaymentRepository) Update(ctx context.Context, tx *gorm.DB, payment *model.Payment, fromStatus model.PaymentStatus) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(payment).
		Where("status = ?", fromStatus).
		Select("*").
		Omit("id", "payment_id", "created_at").
		Updates(payment)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return model.ErrPaymentStatusInvalid
	}

	return nil
}

func (r *PaymentRepository) ListByUserID(ctx context.Context, userID string, page, pageSize int) ([]*model.Payment, int64, error) {
	var payments []*model.Payment
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Payment{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&payments).Error

	return payments, total, err
}

// ListByAccountID returns payments where the account is source or destination.
func (r *PaymentRepository) ListByAccountID(ctx context.Context, accountID string) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("source_account_id = ? OR destination_account_id = ?", accountID, accountID).
		Order("id ASC").
		Find(&payments).Error
	return payments, err
}

// ListByBatchID returns the batch in sequence order.
func (r *PaymentRepository) ListByBatchID(ctx context.Context, batchID string) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("batch_sequence ASC, id ASC").
		Find(&payments).Error
	return payments, err
}

// GetScheduledBefore returns PENDING payments whose schedule or retry time
// has been reached.
func (r *PaymentRepository) GetScheduledBefore(ctx context.Context, before time.Time, limit int) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("status = ?", model.PaymentStatusPending).
		Where(r.db.Where("scheduled_date IS NOT NULL AND scheduled_date <= ?", before).
			Or("next_retry_date IS NOT NULL AND next_retry_date <= ?", before)).
		Order("id ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// GetRetryEligible returns FAILED payments with retries left whose failure
// is retryable and happened no later than before.
func (r *PaymentRepository) GetRetryEligible(ctx context.Context, before time.Time, limit int) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND retry_count < max_retries", model.PaymentStatusFailed).
		Where("failure_code NOT IN ?", model.NonRetryableFailureCodes).
		Where("failure_date IS NULL OR failure_date <= ?", before).
		Order("id ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// GetStuckInFlight returns payments that entered processing before the given
// time and never left an in-flight status.
func (r *PaymentRepository) GetStuckInFlight(ctx context.Context, before time.Time, limit int) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("status IN ? AND processing_date < ?", inFlightStatuses, before).
		Order("id ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
