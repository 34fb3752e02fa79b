package database

import (
	"testing"

	"paycore/internal/config"
	"paycore/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitStorageSQLiteReturnsMigratedHandle(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: "sqlite", SQLitePath: ":memory:"}}

	a := InitStorage(cfg)
	b := InitStorage(cfg)
	assert.NotSame(t, a, b)

	require.NoError(t, a.Create(&model.Account{
		ID:            "acc-1",
		UserID:        "u1",
		AccountNumber: "USD00000001",
		AccountType:   model.AccountTypeCurrent,
		Currency:      model.CurrencyUSD,
		Status:        model.AccountStatusActive,
	}).Error)

	var n int64
	require.NoError(t, a.Model(&model.Account{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
	require.NoError(t, b.Model(&model.Account{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}
