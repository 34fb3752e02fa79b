package service

import (
	"context"
	"fmt"
	"log"

	"paycore/internal/model"

	"gorm.io/gorm"
)

// GetTransaction returns one ledger entry by its transaction number.
func (s *LedgerService) GetTransaction(ctx context.Context, transactionNo string) (*model.AccountTransaction, error) {
	return s.transactionRepo.GetByTransactionNo(ctx, transactionNo)
}

// ReverseTransaction books the mirror image of a completed entry and marks
// the original REVERSED in the same database transaction. The status
// compare-and-set makes a second reversal of the same entry fail.
//
// Zero-amount reserve/release adjustments are not reversible; undo them
// with the opposite operation.
func (s *LedgerService) ReverseTransaction(ctx context.Context, transactionNo, reason string) (*model.AccountTransaction, error) {
	original, err := s.transactionRepo.GetByTransactionNo(ctx, transactionNo)
	if err != nil {
		return nil, err
	}
	if original.Status != model.TransactionStatusCompleted {
		return nil, fmt.Errorf("transaction %s is %s: %w", transactionNo, original.Status, model.ErrNotReversible)
	}
	if original.Amount.IsZero() {
		return nil, fmt.Errorf("transaction %s moves no balance: %w", transactionNo, model.ErrNotReversible)
	}

	description := "reversal of " + transactionNo
	if reason != "" {
		description += ": " + reason
	}

	posting := Posting{
		AccountID:           original.AccountID,
		Direction:           PostingCredit,
		Amount:              original.Amount.Abs(),
		Currency:            original.Currency,
		Type:                model.TransactionTypeRefund,
		Description:         truncate(description, 256),
		Reference:           "REV-" + transactionNo,
		CounterpartyName:    original.CounterpartyName,
		CounterpartyAccount: original.CounterpartyAccount,
	}
	if original.Amount.IsPositive() {
		posting.Direction = PostingDebit
		posting.Type = model.TransactionTypeAdjustment
	}

	entries, err := s.Post(ctx, PostingBatch{
		Postings: []Posting{posting},
		InTx: func(ctx context.Context, tx *gorm.DB) error {
			return s.transactionRepo.UpdateStatus(ctx, tx, transactionNo,
				model.TransactionStatusCompleted, model.TransactionStatusReversed)
		},
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[LedgerService] reversed %s on account %s with %s (%s %s)",
		transactionNo, original.AccountID, entries[0].TransactionNo, posting.Direction, posting.Amount)
	return entries[0], nil
}
