package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paycore/internal/config"
	"paycore/internal/model"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// FeeCalculator prices a payment. A failure aborts payment creation.
type FeeCalculator interface {
	Compute(ctx context.Context, paymentType model.PaymentType, amount decimal.Decimal, currency model.Currency) (decimal.Decimal, error)
}

// ComplianceGate screens a payment before settlement.
type ComplianceGate interface {
	Check(ctx context.Context, payment *model.Payment) (model.ComplianceStatus, error)
}

// FraudGate scores a payment in 1..100; higher is riskier.
type FraudGate interface {
	Score(ctx context.Context, payment *model.Payment) (int, error)
}

// ============================================================================
// Fee schedule
// ============================================================================

type feeRule struct {
	percent decimal.Decimal
	fixed   decimal.Decimal
	min     decimal.Decimal
	max     decimal.Decimal
}

func newFeeRule(r config.FeeRule) feeRule {
	return feeRule{
		percent: decimal.NewFromFloat(r.Percent),
		fixed:   decimal.NewFromFloat(r.Fixed),
		min:     decimal.NewFromFloat(r.Min),
		max:     decimal.NewFromFloat(r.Max),
	}
}

// ScheduleFeeCalculator charges amount*percent + fixed, clamped to [min, max]
// where those are set, per payment type.
type ScheduleFeeCalculator struct {
	def    feeRule
	byType map[string]feeRule
}

func NewScheduleFeeCalculator(cfg config.FeesConfig) *ScheduleFeeCalculator {
	c := &ScheduleFeeCalculator{
		def:    newFeeRule(cfg.Default),
		byType: make(map[string]feeRule, len(cfg.ByType)),
	}
	for name, rule := range cfg.ByType {
		c.byType[strings.ToLower(name)] = newFeeRule(rule)
	}
	return c
}

// Compute looks up the rule for paymentType, falling back to the default
// rule, and rounds the fee to the currency's minor unit.
func (c *ScheduleFeeCalculator) Compute(_ context.Context, paymentType model.PaymentType, amount decimal.Decimal, currency model.Currency) (decimal.Decimal, error) {
	rule, ok := c.byType[strings.ToLower(string(paymentType))]
	if !ok {
		rule = c.def
	}

	fee := amount.Mul(rule.percent).Add(rule.fixed)
	if rule.min.IsPositive() && fee.LessThan(rule.min) {
		fee = rule.min
	}
	if rule.max.IsPositive() && fee.GreaterThan(rule.max) {
		fee = rule.max
	}
	if fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("fee schedule for %s yields negative fee %s", paymentType, fee)
	}
	return currency.Round(fee), nil
}

// ============================================================================
// Compliance screening
// ============================================================================

// ThresholdComplianceGate rejects counterparties in blocked countries and
// sends large payments to manual review.
type ThresholdComplianceGate struct {
	reviewThreshold decimal.Decimal
	blocked         map[string]struct{}
}

func NewThresholdComplianceGate(cfg config.ComplianceConfig) *ThresholdComplianceGate {
	g := &ThresholdComplianceGate{
		reviewThreshold: decimal.NewFromFloat(cfg.ReviewThreshold),
		blocked:         make(map[string]struct{}, len(cfg.BlockedCountries)),
	}
	for _, c := range cfg.BlockedCountries {
		g.blocked[strings.ToUpper(c)] = struct{}{}
	}
	return g
}

// Check rejects blocked counterparty countries first, then sends amounts
// at or above the threshold to review.
func (g *ThresholdComplianceGate) Check(_ context.Context, payment *model.Payment) (model.ComplianceStatus, error) {
	if country := counterpartyCountry(payment); country != "" {
		if _, ok := g.blocked[country]; ok {
			return model.ComplianceStatusRejected, nil
		}
	}
	if g.reviewThreshold.IsPositive() && payment.Amount.GreaterThanOrEqual(g.reviewThreshold) {
		return model.ComplianceStatusUnderReview, nil
	}
	return model.ComplianceStatusApproved, nil
}

// counterpartyCountry reads the ISO country from the IBAN (chars 1-2) or
// the BIC/SWIFT code (chars 5-6).
func counterpartyCountry(p *model.Payment) string {
	if iban := strings.ToUpper(strings.TrimSpace(p.CounterpartyIBAN)); len(iban) >= 2 {
		return iban[:2]
	}
	for _, code := range []string{p.CounterpartyBIC, p.CounterpartySwift} {
		if code = strings.ToUpper(strings.TrimSpace(code)); len(code) >= 6 {
			return code[4:6]
		}
	}
	return ""
}

// ============================================================================
// Fraud scoring
// ============================================================================

var riskBaseScore = map[model.RiskLevel]int{
	model.RiskLevelLow:      10,
	model.RiskLevelMedium:   30,
	model.RiskLevelHigh:     50,
	model.RiskLevelCritical: 70,
}

const (
	largeAmountPenalty = 20
	velocityPenalty    = 30
)

// VelocityFraudGate scores from the payment's risk level, its size, and how
// many payments the user submitted for processing in the current window.
// The window counter lives in Redis so every instance shares it.
type VelocityFraudGate struct {
	client        *redis.Client
	largeAmount   decimal.Decimal
	window        time.Duration
	velocityLimit int
}

func NewVelocityFraudGate(client *redis.Client, cfg config.FraudConfig) *VelocityFraudGate {
	return &VelocityFraudGate{
		client:        client,
		largeAmount:   decimal.NewFromFloat(cfg.LargeAmount),
		window:        time.Duration(cfg.VelocityWindowMinutes) * time.Minute,
		velocityLimit: cfg.VelocityLimit,
	}
}

// Score is capped at 100. Without a Redis client the velocity check is
// skipped.
func (g *VelocityFraudGate) Score(ctx context.Context, payment *model.Payment) (int, error) {
	score, ok := riskBaseScore[payment.RiskLevel]
	if !ok {
		score = riskBaseScore[model.RiskLevelMedium]
	}

	if g.largeAmount.IsPositive() && payment.Amount.GreaterThanOrEqual(g.largeAmount) {
		score += largeAmountPenalty
	}

	if g.client != nil && g.velocityLimit > 0 {
		count, err := g.recordVelocity(ctx, payment.UserID)
		if err != nil {
			return 0, err
		}
		if count > int64(g.velocityLimit) {
			score += velocityPenalty
		}
	}

	if score > 100 {
		score = 100
	}
	return score, nil
}

func (g *VelocityFraudGate) recordVelocity(ctx context.Context, userID string) (int64, error) {
	key := "paycore:fraud:velocity:" + userID

	count, err := g.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("record payment velocity for user %s: %w", userID, err)
	}
	if count == 1 {
		if err := g.client.Expire(ctx, key, g.window).Err(); err != nil {
			return 0, fmt.Errorf("set velocity window for user %s: %w", userID, err)
		}
	}
	return count, nil
}
