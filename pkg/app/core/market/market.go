// Package market holds the read-only market registry the engine consults
// for fee rates and minimum order size, and the one field it is allowed to
// write back: current_price.
package market

import (
	"github.com/shopspring/decimal"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

// Validate enforces §3's Market invariants: current_price >= 0, both fees
// >= 0, min_order_amount > 0, base != quote.
func Validate(m *model.Market) error {
	if m.Base == m.Quote {
		return &model.InvariantError{Msg: "market base and quote must differ"}
	}
	if m.CurrentPrice.IsNegative() {
		return &model.InvariantError{Msg: "market current_price is negative"}
	}
	if m.MakerFee.IsNegative() {
		return &model.InvariantError{Msg: "market maker_fee is negative"}
	}
	if m.TakerFee.IsNegative() {
		return &model.InvariantError{Msg: "market taker_fee is negative"}
	}
	if !m.MinOrderAmount.IsPositive() {
		return &model.InvariantError{Msg: "market min_order_amount must be positive"}
	}
	return nil
}

// MeetsMinimum reports whether volume x price clears the market's
// min_order_amount.
func MeetsMinimum(m *model.Market, volume, price decimal.Decimal) bool {
	return volume.Mul(price).GreaterThanOrEqual(m.MinOrderAmount)
}

// FeeRate returns the fee fraction the given side pays: taker_fee for the
// aggressor, maker_fee for the resting counterparty.
func FeeRate(m *model.Market, isAggressor bool) decimal.Decimal {
	if isAggressor {
		return m.TakerFee
	}
	return m.MakerFee
}
