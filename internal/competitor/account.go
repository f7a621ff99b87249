// Package competitor implements the per-client risk state machine: account
// P&L, unhedged-lots risk timer, message-frequency limiter, and order
// validation/lifecycle handling.
package competitor

import (
	"math"

	"fenrir/internal/engine"
)

// Account tracks one competitor's cash, positions, and mark-to-market P&L,
// all in integer cents. EtfClampFraction bounds how far the ETF mark-price
// can diverge from the Future price when computing unrealised P&L, so a
// single aberrant ETF print cannot inflate the scoreboard.
type Account struct {
	Cash         int64
	EtfPosition  int64
	FuturePosition int64
	BuyVolume    int64
	SellVolume   int64
	TotalFees    int64
	ProfitOrLoss int64
	MaxProfit    int64
	MaxDrawdown  int64

	LastFuturePrice int64
	LastEtfPrice    int64

	etfClampFraction float64
	tickSize         int64
}

// NewAccount builds an account with zeroed positions.
func NewAccount(etfClampFraction float64, tickSize int64) *Account {
	return &Account{
		etfClampFraction: etfClampFraction,
		tickSize:         tickSize,
	}
}

// ApplyTrade books a fill: cash moves by -price*volume for a buy (+ for a
// sell), volume and fee counters accrue, and position moves accordingly.
func (a *Account) ApplyTrade(instrument engine.Instrument, side engine.Side, price int64, volume uint32, fee int64) {
	signedVolume := int64(volume)
	cashDelta := price * int64(volume)
	if side == engine.SideBuy {
		a.Cash -= cashDelta
		a.BuyVolume += signedVolume
	} else {
		a.Cash += cashDelta
		signedVolume = -signedVolume
		a.SellVolume += int64(volume)
	}
	a.TotalFees += fee
	a.Cash -= fee

	if instrument == engine.InstrumentFuture {
		a.FuturePosition += signedVolume
	} else {
		a.EtfPosition += signedVolume
	}
}

// clampedEtfMark bounds etfPrice to within the configured fraction of
// futurePrice, rounded to a whole tick, so a stale or wild ETF print cannot
// distort P&L.
func (a *Account) clampedEtfMark(futurePrice, etfPrice int64) int64 {
	if futurePrice == 0 {
		return etfPrice
	}
	// Rounded, not truncated: a truncating conversion here would drift the
	// clamp bound down by up to a cent against the reference formula.
	delta := int64(math.Round(a.etfClampFraction * float64(futurePrice)))
	if a.tickSize > 0 {
		delta -= delta % a.tickSize
	}
	lo, hi := futurePrice-delta, futurePrice+delta
	if etfPrice < lo {
		return lo
	}
	if etfPrice > hi {
		return hi
	}
	return etfPrice
}

// UpdateMarkToMarket recomputes ProfitOrLoss from current positions and
// mark prices, tracking the running max profit and max drawdown.
func (a *Account) UpdateMarkToMarket(futurePrice, etfPrice int64) {
	mark := a.clampedEtfMark(futurePrice, etfPrice)
	a.LastFuturePrice = futurePrice
	a.LastEtfPrice = etfPrice
	a.ProfitOrLoss = a.Cash + a.FuturePosition*futurePrice + a.EtfPosition*mark
	if a.ProfitOrLoss > a.MaxProfit {
		a.MaxProfit = a.ProfitOrLoss
	}
	if drawdown := a.MaxProfit - a.ProfitOrLoss; drawdown > a.MaxDrawdown {
		a.MaxDrawdown = drawdown
	}
}
