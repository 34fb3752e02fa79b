package service

import (
	"errors"
	"fmt"

	"paycore/internal/model"
)

var errCounterpartyDetails = errors.New("missing counterparty details")

// settlementRoute validates the type-specific counterparty requirements of
// a payment and names the transaction type of its principal leg.
type settlementRoute func(p *model.Payment) (model.TransactionType, error)

var settlementRoutes = map[model.PaymentType]settlementRoute{
	model.PaymentTypeDomesticTransfer:      settleDomestic,
	model.PaymentTypeInstantPayment:        settleDomestic,
	model.PaymentTypeInternationalTransfer: settleInternational,
	model.PaymentTypeSEPATransfer:          settleSEPA,
	model.PaymentTypeSWIFTTransfer:         settleSWIFT,
	model.PaymentTypeCardPayment:           settleCard,
	model.PaymentTypeCryptoPayment:         settleCrypto,
}

func settleDomestic(p *model.Payment) (model.TransactionType, error) {
	if !p.IsInternal() && !p.IsInbound() && p.CounterpartyAccount == "" {
		return "", fmt.Errorf("domestic transfer needs a destination or counterparty account: %w", errCounterpartyDetails)
	}
	return model.TransactionTypeTransfer, nil
}

func settleInternational(p *model.Payment) (model.TransactionType, error) {
	if !p.IsInternal() && p.CounterpartyIBAN == "" && p.CounterpartySwift == "" && p.CounterpartyBIC == "" {
		return "", fmt.Errorf("international transfer needs counterparty IBAN or BIC: %w", errCounterpartyDetails)
	}
	return model.TransactionTypeTransfer, nil
}

func settleSEPA(p *model.Payment) (model.TransactionType, error) {
	if p.Currency != model.CurrencyEUR {
		return "", fmt.Errorf("SEPA transfers settle in EUR, got %s", p.Currency)
	}
	if !p.IsInternal() && p.CounterpartyIBAN == "" {
		return "", fmt.Errorf("SEPA transfer needs counterparty IBAN: %w", errCounterpartyDetails)
	}
	return model.TransactionTypeTransfer, nil
}

func settleSWIFT(p *model.Payment) (model.TransactionType, error) {
	if !p.IsInternal() && p.CounterpartySwift == "" && p.CounterpartyBIC == "" {
		return "", fmt.Errorf("SWIFT transfer needs counterparty SWIFT or BIC code: %w", errCounterpartyDetails)
	}
	return model.TransactionTypeTransfer, nil
}

func settleCard(p *model.Payment) (model.TransactionType, error) {
	if !p.IsInternal() && p.CounterpartyName == "" {
		return "", fmt.Errorf("card payment needs a merchant name: %w", errCounterpartyDetails)
	}
	return model.TransactionTypePayment, nil
}

func settleCrypto(p *model.Payment) (model.TransactionType, error) {
	if !p.IsInternal() && p.CounterpartyAccount == "" {
		return "", fmt.Errorf("crypto payment needs a wallet address: %w", errCounterpartyDetails)
	}
	return model.TransactionTypePayment, nil
}

func settleGeneric(*model.Payment) (model.TransactionType, error) {
	return model.TransactionTypePayment, nil
}

// settlementPostings builds the ledger legs of a payment:
//
//	OUTBOUND: debit source amount, debit source fee, credit destination amount (internal only)
//	INBOUND:  credit source amount, debit source fee
//
// Every leg carries the payment id as its reference.
func settlementPostings(p *model.Payment) ([]Posting, error) {
	route, ok := settlementRoutes[p.PaymentType]
	if !ok {
		route = settleGeneric
	}
	legType, err := route(p)
	if err != nil {
		return nil, err
	}

	description := p.Description
	if description == "" {
		description = fmt.Sprintf("%s %s", p.PaymentType, p.PaymentID)
	}
	counterpartyAccount := p.CounterpartyAccount
	if counterpartyAccount == "" {
		counterpartyAccount = p.CounterpartyIBAN
	}

	principal := Posting{
		AccountID:           p.SourceAccountID,
		Direction:           PostingDebit,
		Amount:              p.Amount,
		Currency:            p.Currency,
		Type:                legType,
		Description:         description,
		Reference:           p.PaymentID,
		CounterpartyName:    p.CounterpartyName,
		CounterpartyAccount: counterpartyAccount,
		FeeAmount:           p.FeeAmount,
	}
	if p.IsInbound() {
		principal.Direction = PostingCredit
		principal.Type = model.TransactionTypeReceipt
	}
	postings := []Posting{principal}

	if p.FeeAmount.IsPositive() {
		postings = append(postings, Posting{
			AccountID:   p.SourceAccountID,
			Direction:   PostingDebit,
			Amount:      p.FeeAmount,
			Currency:    p.FeeCurrency,
			Type:        model.TransactionTypeFee,
			Description: "fee for " + p.PaymentID,
			Reference:   p.PaymentID,
		})
	}

	if !p.IsInbound() && p.IsInternal() {
		postings = append(postings, Posting{
			AccountID:           *p.DestinationAccountID,
			Direction:           PostingCredit,
			Amount:              p.Amount,
			Currency:            p.Currency,
			Type:                model.TransactionTypeReceipt,
			Description:         description,
			Reference:           p.PaymentID,
			CounterpartyAccount: p.SourceAccountID,
		})
	}

	return postings, nil
}
