package service

import (
	"errors"
	"testing"

	"paycore/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementPostingsInternalTransfer(t *testing.T) {
	dest := "acc-2"
	p := &model.Payment{
		PaymentID:            "PAY1",
		SourceAccountID:      "acc-1",
		DestinationAccountID: &dest,
		PaymentType:          model.PaymentTypeDomesticTransfer,
		Direction:            model.PaymentDirectionOutbound,
		Amount:               d("100"),
		Currency:             model.CurrencyUSD,
		FeeAmount:            d("2"),
		FeeCurrency:          model.CurrencyUSD,
	}

	postings, err := settlementPostings(p)
	require.NoError(t, err)
	require.Len(t, postings, 3)

	assert.Equal(t, "acc-1", postings[0].AccountID)
	assert.Equal(t, PostingDebit, postings[0].Direction)
	assert.Equal(t, model.TransactionTypeTransfer, postings[0].Type)
	assert.Equal(t, "DOMESTIC_TRANSFER PAY1", postings[0].Description)

	assert.Equal(t, PostingDebit, postings[1].Direction)
	assert.Equal(t, model.TransactionTypeFee, postings[1].Type)
	assertAmount(t, "2", postings[1].Amount)

	assert.Equal(t, "acc-2", postings[2].AccountID)
	assert.Equal(t, PostingCredit, postings[2].Direction)
	assert.Equal(t, model.TransactionTypeReceipt, postings[2].Type)
	assert.Equal(t, "acc-1", postings[2].CounterpartyAccount)

	for _, posting := range postings {
		assert.Equal(t, "PAY1", posting.Reference)
	}
}

func TestSettlementPostingsInbound(t *testing.T) {
	p := &model.Payment{
		PaymentID:       "PAY2",
		SourceAccountID: "acc-1",
		PaymentType:     model.PaymentTypeDomesticTransfer,
		Direction:       model.PaymentDirectionInbound,
		Amount:          d("50"),
		Currency:        model.CurrencyUSD,
	}

	postings, err := settlementPostings(p)
	require.NoError(t, err)
	require.Len(t, postings, 1, "no fee leg without a fee")
	assert.Equal(t, PostingCredit, postings[0].Direction)
	assert.Equal(t, model.TransactionTypeReceipt, postings[0].Type)
}

func TestSettlementRoutes(t *testing.T) {
	cases := []struct {
		name    string
		payment model.Payment
		want    model.TransactionType
		wantErr bool
	}{
		{"domestic external", model.Payment{PaymentType: model.PaymentTypeDomesticTransfer, CounterpartyAccount: "X"}, model.TransactionTypeTransfer, false},
		{"domestic without counterparty", model.Payment{PaymentType: model.PaymentTypeDomesticTransfer}, "", true},
		{"international with IBAN", model.Payment{PaymentType: model.PaymentTypeInternationalTransfer, CounterpartyIBAN: "GB29"}, model.TransactionTypeTransfer, false},
		{"international bare", model.Payment{PaymentType: model.PaymentTypeInternationalTransfer}, "", true},
		{"SEPA in EUR", model.Payment{PaymentType: model.PaymentTypeSEPATransfer, Currency: model.CurrencyEUR, CounterpartyIBAN: "DE89"}, model.TransactionTypeTransfer, false},
		{"SEPA without IBAN", model.Payment{PaymentType: model.PaymentTypeSEPATransfer, Currency: model.CurrencyEUR}, "", true},
		{"SWIFT with BIC", model.Payment{PaymentType: model.PaymentTypeSWIFTTransfer, CounterpartyBIC: "DEUTDEFF"}, model.TransactionTypeTransfer, false},
		{"SWIFT bare", model.Payment{PaymentType: model.PaymentTypeSWIFTTransfer}, "", true},
		{"card with merchant", model.Payment{PaymentType: model.PaymentTypeCardPayment, CounterpartyName: "Shop"}, model.TransactionTypePayment, false},
		{"card without merchant", model.Payment{PaymentType: model.PaymentTypeCardPayment}, "", true},
		{"crypto without wallet", model.Payment{PaymentType: model.PaymentTypeCryptoPayment}, "", true},
		{"bill payment", model.Payment{PaymentType: model.PaymentTypeBillPayment}, model.TransactionTypePayment, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.payment.PaymentID = "PAY"
			tc.payment.Amount = d("1")
			if tc.payment.Currency == "" {
				tc.payment.Currency = model.CurrencyUSD
			}

			postings, err := settlementPostings(&tc.payment)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errCounterpartyDetails), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, postings[0].Type)
		})
	}

	_, err := settlementPostings(&model.Payment{PaymentType: model.PaymentTypeSEPATransfer, Currency: model.CurrencyUSD, CounterpartyIBAN: "DE89"})
	assert.Error(t, err)
}
