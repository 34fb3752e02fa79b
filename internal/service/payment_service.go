package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"paycore/internal/config"
	"paycore/internal/infrastructure/lock"
	"paycore/internal/metrics"
	"paycore/internal/model"
	"paycore/internal/repository"
	"paycore/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================================
// Payment state machine
// ============================================================================
//
//   PENDING ──> PROCESSING ──> COMPLETED
//      ^            │  ^  \
//      │            v  │   └──> FAILED ──> PENDING (retry, bounded)
//      │   COMPLIANCE_CHECK / FRAUD_CHECK
//      │            │
//      │            v
//      └──────  UNDER_REVIEW
//
//   PENDING | FAILED | UNDER_REVIEW ──> CANCELLED
//
// Every status write is compare-and-set on the stored status and happens
// under the per-payment lock. Money only moves through LedgerService.Post,
// in the same DB transaction that marks the payment COMPLETED.
//
// ============================================================================

// PaymentPolicy holds the orchestrator's tunables.
type PaymentPolicy struct {
	MaxRetries       int
	RetryBackoff     time.Duration
	FraudReviewScore int
	FraudRejectScore int
	StuckAfter       time.Duration
	SweepBatchSize   int
}

func DefaultPaymentPolicy() PaymentPolicy {
	return PaymentPolicy{
		MaxRetries:       model.DefaultMaxRetries,
		RetryBackoff:     5 * time.Minute,
		FraudReviewScore: 60,
		FraudRejectScore: 80,
		StuckAfter:       10 * time.Minute,
		SweepBatchSize:   100,
	}
}

func PaymentPolicyFromConfig(cfg *config.Config) PaymentPolicy {
	p := DefaultPaymentPolicy()
	if v := cfg.Business.Payment.MaxRetries; v > 0 {
		p.MaxRetries = v
	}
	if v := cfg.Business.Payment.RetryBackoffMinutes; v > 0 {
		p.RetryBackoff = time.Duration(v) * time.Minute
	}
	if v := cfg.Business.Payment.StuckProcessingMinutes; v > 0 {
		p.StuckAfter = time.Duration(v) * time.Minute
	}
	if v := cfg.Business.Fraud.ReviewScore; v > 0 {
		p.FraudReviewScore = v
	}
	if v := cfg.Business.Fraud.RejectScore; v > 0 {
		p.FraudRejectScore = v
	}
	if v := cfg.Jobs.BatchSize; v > 0 {
		p.SweepBatchSize = v
	}
	return p
}

type CreatePaymentRequest struct {
	PaymentID            string                 `json:"payment_id"`
	UserID               string                 `json:"user_id" binding:"required"`
	SourceAccountID      string                 `json:"source_account_id" binding:"required"`
	DestinationAccountID string                 `json:"destination_account_id"`
	PaymentType          model.PaymentType      `json:"payment_type" binding:"required"`
	PaymentMethod        model.PaymentMethod    `json:"payment_method"`
	Direction            model.PaymentDirection `json:"direction"`
	Priority             model.PaymentPriority  `json:"priority"`
	Amount               decimal.Decimal        `json:"amount"`
	Currency             model.Currency         `json:"currency" binding:"required"`
	ExchangeRate         *decimal.Decimal       `json:"exchange_rate"`
	OriginalAmount       *decimal.Decimal       `json:"original_amount"`
	OriginalCurrency     model.Currency         `json:"original_currency"`
	Reference            string                 `json:"reference"`
	ExternalReference    string                 `json:"external_reference"`
	Description          string                 `json:"description"`
	CounterpartyName     string                 `json:"counterparty_name"`
	CounterpartyAccount  string                 `json:"counterparty_account"`
	CounterpartyBank     string                 `json:"counterparty_bank"`
	CounterpartySwift    string                 `json:"counterparty_swift"`
	CounterpartyIBAN     string                 `json:"counterparty_iban"`
	CounterpartyBIC      string                 `json:"counterparty_bic"`
	CounterpartyRouting  string                 `json:"counterparty_routing"`
	IsUrgent             bool                   `json:"is_urgent"`
	ScheduledDate        *time.Time             `json:"scheduled_date"`
	MaxRetries           int                    `json:"max_retries"`
	BatchID              string                 `json:"batch_id"`
	BatchSequence        int                    `json:"batch_sequence"`
	Metadata             string                 `json:"metadata"`
}

// SweepResult summarizes one pass of a periodic sweep.
type SweepResult struct {
	Picked    int
	Succeeded int
	Failed    int
}

type BatchResult struct {
	BatchID   string           `json:"batch_id"`
	Total     int              `json:"total"`
	Processed int              `json:"processed"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	Payments  []*model.Payment `json:"payments"`
}

type PaymentService struct {
	db              *gorm.DB
	ledger          *LedgerService
	locker          lock.Locker
	events          EventPublisher
	fees            FeeCalculator
	compliance      ComplianceGate
	fraud           FraudGate
	policy          PaymentPolicy
	metrics         *metrics.Metrics
	paymentRepo     *repository.PaymentRepository
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	now             func() time.Time
}

type PaymentOption func(*PaymentService)

func WithPaymentMetrics(m *metrics.Metrics) PaymentOption {
	return func(s *PaymentService) { s.metrics = m }
}

func WithPaymentClock(now func() time.Time) PaymentOption {
	return func(s *PaymentService) { s.now = now }
}

func NewPaymentService(
	db *gorm.DB,
	ledger *LedgerService,
	locker lock.Locker,
	events EventPublisher,
	fees FeeCalculator,
	compliance ComplianceGate,
	fraud FraudGate,
	policy PaymentPolicy,
	opts ...PaymentOption,
) *PaymentService {
	s := &PaymentService{
		db:              db,
		ledger:          ledger,
		locker:          locker,
		events:          events,
		fees:            fees,
		compliance:      compliance,
		fraud:           fraud,
		policy:          policy,
		paymentRepo:     repository.NewPaymentRepository(db),
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ============================================================================
// Creation
// ============================================================================

// CreatePayment persists a new PENDING payment. PaymentID is the idempotency
// key: resubmitting the same request returns the stored payment, while reusing
// the id for a different request fails with ErrDuplicatePayment.
func (s *PaymentService) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*model.Payment, error) {
	if err := normalizeCreateRequest(req); err != nil {
		return nil, err
	}

	if req.PaymentID == "" {
		req.PaymentID = idgen.GeneratePaymentID()
	} else {
		release, err := s.locker.Acquire(ctx, lock.PaymentKey(req.PaymentID))
		if err != nil {
			return nil, fmt.Errorf("lock payment %s: %w", req.PaymentID, err)
		}
		defer release()

		existing, err := s.paymentRepo.FindByPaymentID(ctx, req.PaymentID)
		if err != nil {
			return nil, fmt.Errorf("query payment %s: %w", req.PaymentID, err)
		}
		if existing != nil {
			if sameRequest(existing, req) {
				return existing, nil
			}
			return nil, fmt.Errorf("payment %s: %w", req.PaymentID, model.ErrDuplicatePayment)
		}
	}

	source, err := s.accountRepo.GetByID(ctx, req.SourceAccountID)
	if err != nil {
		return nil, fmt.Errorf("source account %s: %w", req.SourceAccountID, err)
	}
	if source.UserID != req.UserID {
		return nil, model.Validationf("source account %s does not belong to user %s", source.ID, req.UserID)
	}
	if req.DestinationAccountID != "" {
		if _, err := s.accountRepo.GetByID(ctx, req.DestinationAccountID); err != nil {
			return nil, fmt.Errorf("destination account %s: %w", req.DestinationAccountID, err)
		}
	}

	fee, err := s.fees.Compute(ctx, req.PaymentType, req.Amount, req.Currency)
	if err != nil {
		return nil, &model.Error{Kind: model.KindValidation, Message: "fee computation failed", Err: err}
	}

	payment := s.newPayment(req, fee)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.Create(ctx, tx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return s.events.Publish(ctx, tx, s.paymentEvent(payment, model.EventPaymentCreated, ""))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObservePaymentCreated(string(payment.PaymentType))
	log.Printf("[PaymentService] payment created: id=%s, type=%s, amount=%s %s, fee=%s",
		payment.PaymentID, payment.PaymentType, payment.Amount, payment.Currency, payment.FeeAmount)
	return payment, nil
}

// CreateBatchPayments creates the requests as one batch, numbered in order.
// Creation stops at the first failure; payments created so far are returned.
func (s *PaymentService) CreateBatchPayments(ctx context.Context, reqs []*CreatePaymentRequest) (string, []*model.Payment, error) {
	if len(reqs) == 0 {
		return "", nil, model.Validationf("batch is empty")
	}

	batchID := idgen.GenerateBatchID()
	payments := make([]*model.Payment, 0, len(reqs))
	for i, req := range reqs {
		req.BatchID = batchID
		req.BatchSequence = i + 1
		payment, err := s.CreatePayment(ctx, req)
		if err != nil {
			return batchID, payments, fmt.Errorf("batch %s item %d: %w", batchID, i+1, err)
		}
		payments = append(payments, payment)
	}
	return batchID, payments, nil
}

func normalizeCreateRequest(req *CreatePaymentRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return model.Validationf("user_id is required")
	}
	if req.SourceAccountID == "" {
		return model.Validationf("source_account_id is required")
	}
	if req.DestinationAccountID == req.SourceAccountID {
		return model.Validationf("source and destination accounts must differ")
	}
	if !req.Amount.IsPositive() {
		return model.ErrInvalidAmount
	}
	if !req.Currency.Valid() {
		return model.Validationf("unknown currency %q", req.Currency)
	}
	if !req.Currency.Fits(req.Amount) {
		return fmt.Errorf("%s %s: %w", req.Amount, req.Currency, model.ErrAmountPrecision)
	}
	if !req.PaymentType.Valid() {
		return model.Validationf("unknown payment type %q", req.PaymentType)
	}

	if req.PaymentMethod == "" {
		req.PaymentMethod = model.PaymentMethodBankTransfer
	} else if !req.PaymentMethod.Valid() {
		return model.Validationf("unknown payment method %q", req.PaymentMethod)
	}
	if req.Direction == "" {
		req.Direction = model.PaymentDirectionOutbound
	} else if !req.Direction.Valid() {
		return model.Validationf("unknown payment direction %q", req.Direction)
	}
	if req.Priority == "" {
		req.Priority = model.PaymentPriorityNormal
	} else if !req.Priority.Valid() {
		return model.Validationf("unknown payment priority %q", req.Priority)
	}
	if req.Priority == model.PaymentPriorityUrgent {
		req.IsUrgent = true
	}

	if req.ExchangeRate != nil && !req.ExchangeRate.IsPositive() {
		return model.Validationf("exchange rate must be greater than zero")
	}
	if req.OriginalCurrency != "" && !req.OriginalCurrency.Valid() {
		return model.Validationf("unknown original currency %q", req.OriginalCurrency)
	}
	if req.MaxRetries < 0 {
		return model.Validationf("max_retries must not be negative")
	}
	return nil
}

func (s *PaymentService) newPayment(req *CreatePaymentRequest, fee decimal.Decimal) *model.Payment {
	maxRetries := req.MaxRetries
	if maxRetries == 0 {
		maxRetries = s.policy.MaxRetries
	}
	exchangeRate := decimal.NewFromInt(1)
	if req.ExchangeRate != nil {
		exchangeRate = *req.ExchangeRate
	}

	payment := &model.Payment{
		PaymentID:           req.PaymentID,
		UserID:              req.UserID,
		SourceAccountID:     req.SourceAccountID,
		PaymentType:         req.PaymentType,
		PaymentMethod:       req.PaymentMethod,
		Direction:           req.Direction,
		Priority:            req.Priority,
		Status:              model.PaymentStatusPending,
		Amount:              req.Amount,
		Currency:            req.Currency,
		FeeAmount:           fee,
		FeeCurrency:         req.Currency,
		TotalAmount:         req.Amount.Add(fee),
		ExchangeRate:        exchangeRate,
		OriginalAmount:      req.OriginalAmount,
		Reference:           req.Reference,
		ExternalReference:   req.ExternalReference,
		Description:         req.Description,
		CounterpartyName:    req.CounterpartyName,
		CounterpartyAccount: req.CounterpartyAccount,
		CounterpartyBank:    req.CounterpartyBank,
		CounterpartySwift:   req.CounterpartySwift,
		CounterpartyIBAN:    req.CounterpartyIBAN,
		CounterpartyBIC:     req.CounterpartyBIC,
		CounterpartyRouting: req.CounterpartyRouting,
		ComplianceStatus:    model.ComplianceStatusPending,
		FraudScore:          0,
		RiskLevel:           initialRiskLevel(req),
		IsUrgent:            req.IsUrgent,
		MaxRetries:          maxRetries,
		ScheduledDate:       req.ScheduledDate,
		IsBatchPayment:      req.BatchID != "",
		BatchID:             req.BatchID,
		BatchSequence:       req.BatchSequence,
		Metadata:            req.Metadata,
		CreatedAt:           s.now(),
	}
	if req.DestinationAccountID != "" {
		dest := req.DestinationAccountID
		payment.DestinationAccountID = &dest
	}
	if req.OriginalCurrency != "" {
		oc := req.OriginalCurrency
		payment.OriginalCurrency = &oc
	}
	return payment
}

// initialRiskLevel: urgent is HIGH, cross-border is MEDIUM, the rest LOW.
func initialRiskLevel(req *CreatePaymentRequest) model.RiskLevel {
	switch {
	case req.IsUrgent:
		return model.RiskLevelHigh
	case req.PaymentType == model.PaymentTypeInternationalTransfer, req.PaymentType == model.PaymentTypeSWIFTTransfer:
		return model.RiskLevelMedium
	default:
		return model.RiskLevelLow
	}
}

// sameRequest compares the fields that identify a payment instruction.
func sameRequest(p *model.Payment, req *CreatePaymentRequest) bool {
	dest := ""
	if p.DestinationAccountID != nil {
		dest = *p.DestinationAccountID
	}
	return p.UserID == req.UserID &&
		p.SourceAccountID == req.SourceAccountID &&
		dest == req.DestinationAccountID &&
		p.PaymentType == req.PaymentType &&
		p.Direction == req.Direction &&
		p.Currency == req.Currency &&
		p.Amount.Equal(req.Amount)
}

// ============================================================================
// Processing
// ============================================================================

// ProcessPayment drives a PENDING payment through screening and settlement.
// Only PENDING payments that are due may be processed, so a second call on
// a completed payment fails with InvalidState and never settles twice.
func (s *PaymentService) ProcessPayment(ctx context.Context, paymentID string) (*model.Payment, error) {
	started := time.Now()

	release, err := s.locker.Acquire(ctx, lock.PaymentKey(paymentID))
	if err != nil {
		return nil, fmt.Errorf("lock payment %s: %w", paymentID, err)
	}
	defer release()

	payment, err := s.paymentRepo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentStatusPending {
		return nil, fmt.Errorf("payment %s is %s: %w", paymentID, payment.Status, model.ErrPaymentStatusInvalid)
	}
	if !payment.Due(s.now()) {
		return nil, model.InvalidStatef("payment %s is not due yet", paymentID)
	}

	err = s.process(ctx, payment)
	s.metrics.ObservePaymentOutcome(string(payment.Status), started)
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *PaymentService) process(ctx context.Context, p *model.Payment) error {
	if err := s.moveTo(ctx, nil, p, model.PaymentStatusProcessing); err != nil {
		return err
	}

	if p.ComplianceStatus == model.ComplianceStatusPending {
		if done, err := s.screenCompliance(ctx, p); done || err != nil {
			return err
		}
	}

	if p.FraudScore == 0 {
		if done, err := s.screenFraud(ctx, p); done || err != nil {
			return err
		}
	}

	return s.settle(ctx, p)
}

// screenCompliance reports done when the payment left the processing path.
func (s *PaymentService) screenCompliance(ctx context.Context, p *model.Payment) (bool, error) {
	if err := s.moveTo(ctx, nil, p, model.PaymentStatusComplianceCheck); err != nil {
		return true, err
	}

	status, err := s.compliance.Check(ctx, p)
	if err != nil {
		return true, s.failProcessing(ctx, p, fmt.Errorf("compliance check: %w", err))
	}
	p.ComplianceStatus = status

	switch status {
	case model.ComplianceStatusApproved:
		return false, s.moveTo(ctx, nil, p, model.PaymentStatusProcessing)
	case model.ComplianceStatusRejected:
		if err := s.fail(ctx, p, model.FailureCodeComplianceRejected, "rejected by compliance screening"); err != nil {
			return true, err
		}
		return true, fmt.Errorf("payment %s: %w", p.PaymentID, model.ErrComplianceRejected)
	case model.ComplianceStatusUnderReview, model.ComplianceStatusEscalated:
		log.Printf("[PaymentService] payment %s held for compliance review (%s)", p.PaymentID, status)
		return true, s.moveTo(ctx, nil, p, model.PaymentStatusUnderReview)
	default:
		return true, s.failProcessing(ctx, p, fmt.Errorf("unknown compliance status %q", status))
	}
}

func (s *PaymentService) screenFraud(ctx context.Context, p *model.Payment) (bool, error) {
	if err := s.moveTo(ctx, nil, p, model.PaymentStatusFraudCheck); err != nil {
		return true, err
	}

	score, err := s.fraud.Score(ctx, p)
	if err != nil {
		return true, s.failProcessing(ctx, p, fmt.Errorf("fraud scoring: %w", err))
	}
	p.FraudScore = score

	switch {
	case score >= s.policy.FraudRejectScore:
		if err := s.fail(ctx, p, model.FailureCodeFraudRejected, fmt.Sprintf("fraud score %d", score)); err != nil {
			return true, err
		}
		return true, fmt.Errorf("payment %s scored %d: %w", p.PaymentID, score, model.ErrFraudRejected)
	case score >= s.policy.FraudReviewScore:
		log.Printf("[PaymentService] payment %s held for fraud review, score=%d", p.PaymentID, score)
		return true, s.moveTo(ctx, nil, p, model.PaymentStatusUnderReview)
	default:
		return false, s.moveTo(ctx, nil, p, model.PaymentStatusProcessing)
	}
}

// settle posts the payment's legs and completes it in one DB transaction.
func (s *PaymentService) settle(ctx context.Context, p *model.Payment) error {
	postings, err := settlementPostings(p)
	if err != nil {
		return s.failProcessing(ctx, p, err)
	}

	snapshot := *p
	_, err = s.ledger.Post(ctx, PostingBatch{
		Postings: postings,
		InTx: func(ctx context.Context, tx *gorm.DB) error {
			return s.complete(ctx, tx, p)
		},
	})
	if err != nil {
		*p = snapshot
		return s.failProcessing(ctx, p, err)
	}

	log.Printf("[PaymentService] payment completed: id=%s, amount=%s %s, fee=%s",
		p.PaymentID, p.Amount, p.Currency, p.FeeAmount)
	return nil
}

func (s *PaymentService) complete(ctx context.Context, tx *gorm.DB, p *model.Payment) error {
	if err := s.moveTo(ctx, tx, p, model.PaymentStatusCompleted); err != nil {
		return err
	}
	return s.events.Publish(ctx, tx, s.paymentEvent(p, model.EventPaymentCompleted, ""))
}

// failProcessing records a retryable settlement failure and returns it as a
// ProcessingError.
func (s *PaymentService) failProcessing(ctx context.Context, p *model.Payment, cause error) error {
	if err := s.fail(ctx, p, model.FailureCodeProcessingError, cause.Error()); err != nil {
		log.Printf("[PaymentService] record failure of payment %s failed: %v", p.PaymentID, err)
	}
	return model.NewProcessingError(fmt.Sprintf("payment %s settlement failed", p.PaymentID), cause)
}

func (s *PaymentService) fail(ctx context.Context, p *model.Payment, code, reason string) error {
	p.FailureCode = code
	p.FailureReason = truncate(reason, 512)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.moveTo(ctx, tx, p, model.PaymentStatusFailed); err != nil {
			return err
		}
		return s.events.Publish(ctx, tx, s.paymentEvent(p, model.EventPaymentFailed, reason))
	})
	if err != nil {
		return err
	}

	log.Printf("[PaymentService] payment failed: id=%s, code=%s, reason=%s", p.PaymentID, code, reason)
	return nil
}

// moveTo persists a state-machine transition, compare-and-set on the
// current status, and stamps the matching date.
func (s *PaymentService) moveTo(ctx context.Context, tx *gorm.DB, p *model.Payment, to model.PaymentStatus) error {
	from := p.Status
	if !model.CanTransitionPayment(from, to) {
		return fmt.Errorf("payment %s %s -> %s: %w", p.PaymentID, from, to, model.ErrPaymentStatusInvalid)
	}

	p.Status = to
	stampStatusDate(p, from, s.now())

	if err := s.paymentRepo.Update(ctx, tx, p, from); err != nil {
		p.Status = from
		return fmt.Errorf("payment %s %s -> %s: %w", p.PaymentID, from, to, err)
	}
	return nil
}

func stampStatusDate(p *model.Payment, from model.PaymentStatus, now time.Time) {
	switch p.Status {
	case model.PaymentStatusProcessing:
		if from == model.PaymentStatusPending || p.ProcessingDate == nil {
			p.ProcessingDate = &now
		}
	case model.PaymentStatusCompleted:
		p.CompletionDate = &now
		p.SettlementDate = &now
	case model.PaymentStatusFailed:
		p.FailureDate = &now
	}
}

// ============================================================================
// Lifecycle operations
// ============================================================================

// CancelPayment cancels a payment that is not settled and not being processed.
func (s *PaymentService) CancelPayment(ctx context.Context, paymentID string) (*model.Payment, error) {
	return s.withPayment(ctx, paymentID, func(p *model.Payment) error {
		switch p.Status {
		case model.PaymentStatusPending, model.PaymentStatusFailed, model.PaymentStatusUnderReview:
		default:
			return fmt.Errorf("payment %s is %s: %w", paymentID, p.Status, model.ErrPaymentStatusInvalid)
		}

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.moveTo(ctx, tx, p, model.PaymentStatusCancelled); err != nil {
				return err
			}
			return s.events.Publish(ctx, tx, s.paymentEvent(p, model.EventPaymentCancelled, ""))
		})
	})
}

// RetryPayment puts a retryable FAILED payment back to PENDING, due after
// the fixed backoff.
func (s *PaymentService) RetryPayment(ctx context.Context, paymentID string) (*model.Payment, error) {
	return s.withPayment(ctx, paymentID, func(p *model.Payment) error {
		if p.Status != model.PaymentStatusFailed {
			return fmt.Errorf("payment %s is %s: %w", paymentID, p.Status, model.ErrPaymentStatusInvalid)
		}
		if p.RetryCount >= p.MaxRetries {
			return fmt.Errorf("payment %s used %d of %d retries: %w", paymentID, p.RetryCount, p.MaxRetries, model.ErrRetryNotAllowed)
		}
		if !p.Retryable() {
			return fmt.Errorf("payment %s failed with %s: %w", paymentID, p.FailureCode, model.ErrRetryNotAllowed)
		}

		next := s.now().Add(s.policy.RetryBackoff)
		p.RetryCount++
		p.NextRetryDate = &next

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.moveTo(ctx, tx, p, model.PaymentStatusPending); err != nil {
				return err
			}
			return s.events.Publish(ctx, tx, s.paymentEvent(p, model.EventPaymentStatusChanged, fmt.Sprintf("retry %d of %d", p.RetryCount, p.MaxRetries)))
		})
	})
}

// UpdatePaymentStatus is the administrative override. It bypasses the state
// machine but never touches a COMPLETED payment.
func (s *PaymentService) UpdatePaymentStatus(ctx context.Context, paymentID string, status model.PaymentStatus, reason string) (*model.Payment, error) {
	if !status.Valid() {
		return nil, model.Validationf("unknown payment status %q", status)
	}

	return s.withPayment(ctx, paymentID, func(p *model.Payment) error {
		if p.Status == model.PaymentStatusCompleted {
			return fmt.Errorf("payment %s is completed: %w", paymentID, model.ErrPaymentStatusInvalid)
		}
		if p.Status == status {
			return nil
		}

		from := p.Status
		p.Status = status
		stampStatusDate(p, from, s.now())
		if status == model.PaymentStatusFailed {
			p.FailureCode = model.FailureCodeManual
			p.FailureReason = truncate(reason, 512)
		}

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.paymentRepo.Update(ctx, tx, p, from); err != nil {
				return fmt.Errorf("payment %s %s -> %s: %w", paymentID, from, status, err)
			}
			evt := s.paymentEvent(p, model.EventPaymentStatusChanged, reason)
			evt.PreviousState = string(from)
			return s.events.Publish(ctx, tx, evt)
		})
	})
}

// withPayment runs fn on a freshly loaded payment under its lock.
func (s *PaymentService) withPayment(ctx context.Context, paymentID string, fn func(p *model.Payment) error) (*model.Payment, error) {
	release, err := s.locker.Acquire(ctx, lock.PaymentKey(paymentID))
	if err != nil {
		return nil, fmt.Errorf("lock payment %s: %w", paymentID, err)
	}
	defer release()

	payment, err := s.paymentRepo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := fn(payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// ============================================================================
// Queries
// ============================================================================

func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*model.Payment, error) {
	return s.paymentRepo.GetByPaymentID(ctx, paymentID)
}

func (s *PaymentService) ListUserPayments(ctx context.Context, userID string, page, pageSize int) ([]*model.Payment, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.paymentRepo.ListByUserID(ctx, userID, page, pageSize)
}

func (s *PaymentService) ListAccountPayments(ctx context.Context, accountID string) ([]*model.Payment, error) {
	return s.paymentRepo.ListByAccountID(ctx, accountID)
}

func (s *PaymentService) ListBatch(ctx context.Context, batchID string) ([]*model.Payment, error) {
	payments, err := s.paymentRepo.ListByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, fmt.Errorf("batch %s: %w", batchID, model.ErrNotFound)
	}
	return payments, nil
}

// ============================================================================
// Sweeps
// ============================================================================

// ProcessScheduledPayments processes PENDING payments whose scheduled or
// retry time has come. Item failures are logged and skipped.
func (s *PaymentService) ProcessScheduledPayments(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	payments, err := s.paymentRepo.GetScheduledBefore(ctx, s.now(), s.policy.SweepBatchSize)
	if err != nil {
		return result, fmt.Errorf("query scheduled payments: %w", err)
	}

	result.Picked = len(payments)
	for _, p := range payments {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if _, err := s.ProcessPayment(ctx, p.PaymentID); err != nil {
			log.Printf("[PaymentService] scheduled payment %s: %v", p.PaymentID, err)
			result.Failed++
			s.metrics.ObserveSweepItem("scheduled", false)
			continue
		}
		result.Succeeded++
		s.metrics.ObserveSweepItem("scheduled", true)
	}
	return result, nil
}

// RetryFailedPayments re-queues every FAILED payment still eligible for retry.
func (s *PaymentService) RetryFailedPayments(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	payments, err := s.paymentRepo.GetRetryEligible(ctx, s.now(), s.policy.SweepBatchSize)
	if err != nil {
		return result, fmt.Errorf("query failed payments: %w", err)
	}

	result.Picked = len(payments)
	for _, p := range payments {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if _, err := s.RetryPayment(ctx, p.PaymentID); err != nil {
			log.Printf("[PaymentService] retry payment %s: %v", p.PaymentID, err)
			result.Failed++
			s.metrics.ObserveSweepItem("retry", false)
			continue
		}
		result.Succeeded++
		s.metrics.ObserveSweepItem("retry", true)
	}
	return result, nil
}

// ProcessBatch processes the batch's due PENDING payments in sequence order.
// One item failing does not stop the rest.
func (s *PaymentService) ProcessBatch(ctx context.Context, batchID string) (*BatchResult, error) {
	payments, err := s.ListBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{BatchID: batchID, Total: len(payments)}
	now := s.now()
	for _, p := range payments {
		if p.Status != model.PaymentStatusPending || !p.Due(now) {
			result.Skipped++
			result.Payments = append(result.Payments, p)
			continue
		}

		processed, err := s.ProcessPayment(ctx, p.PaymentID)
		if err != nil {
			log.Printf("[PaymentService] batch %s payment %s: %v", batchID, p.PaymentID, err)
			result.Failed++
			if latest, getErr := s.paymentRepo.GetByPaymentID(ctx, p.PaymentID); getErr == nil {
				p = latest
			}
			result.Payments = append(result.Payments, p)
			continue
		}
		result.Processed++
		result.Payments = append(result.Payments, processed)
	}

	log.Printf("[PaymentService] batch %s: total=%d, processed=%d, failed=%d, skipped=%d",
		batchID, result.Total, result.Processed, result.Failed, result.Skipped)
	return result, nil
}

// CompensateStuckPayments resolves payments left in flight longer than the
// policy allows: settled ones complete, the rest fail as retryable.
func (s *PaymentService) CompensateStuckPayments(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	before := s.now().Add(-s.policy.StuckAfter)
	payments, err := s.paymentRepo.GetStuckInFlight(ctx, before, s.policy.SweepBatchSize)
	if err != nil {
		return result, fmt.Errorf("query stuck payments: %w", err)
	}

	result.Picked = len(payments)
	for _, p := range payments {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err := s.resolveStuck(ctx, p.PaymentID); err != nil {
			log.Printf("[PaymentService] compensate payment %s: %v", p.PaymentID, err)
			result.Failed++
			s.metrics.ObserveSweepItem("compensate", false)
			continue
		}
		result.Succeeded++
		s.metrics.ObserveSweepItem("compensate", true)
	}
	return result, nil
}

// resolveStuck completes a stuck payment only when its source account
// carries settlement legs booked under its id, and fails it for retry
// otherwise.
func (s *PaymentService) resolveStuck(ctx context.Context, paymentID string) error {
	_, err := s.withPayment(ctx, paymentID, func(p *model.Payment) error {
		if !p.Status.InFlight() {
			return nil
		}

		settled, err := s.transactionRepo.HasSettlementLegs(ctx, p.SourceAccountID, p.PaymentID)
		if err != nil {
			return fmt.Errorf("check settlement: %w", err)
		}
		if settled && p.Status == model.PaymentStatusProcessing {
			log.Printf("[PaymentService] stuck payment %s is settled, completing", paymentID)
			return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return s.complete(ctx, tx, p)
			})
		}

		log.Printf("[PaymentService] stuck payment %s in %s, failing for retry", paymentID, p.Status)
		return s.fail(ctx, p, model.FailureCodeSettlementTimeout, "processing did not finish in time")
	})
	return err
}

// ============================================================================
// Helpers
// ============================================================================

func (s *PaymentService) paymentEvent(p *model.Payment, eventType model.EventType, reason string) model.Event {
	return model.Event{
		Type:        eventType,
		AggregateID: p.PaymentID,
		UserID:      p.UserID,
		AccountID:   p.SourceAccountID,
		PaymentID:   p.PaymentID,
		Amount:      decimalPtr(p.Amount),
		Currency:    p.Currency,
		Reference:   p.Reference,
		Status:      string(p.Status),
		Reason:      reason,
		OccurredAt:  s.now(),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
