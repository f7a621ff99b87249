package competitor

import (
	"testing"

	"fenrir/internal/engine"

	"github.com/stretchr/testify/assert"
)

func TestApplyTradeBuyDebitsCashAndIncreasesPosition(t *testing.T) {
	a := NewAccount(0.2, 1)
	a.ApplyTrade(engine.InstrumentETF, engine.SideBuy, 100, 10, 5)

	assert.Equal(t, int64(-1005), a.Cash) // -1000 for the trade, -5 fee
	assert.Equal(t, int64(10), a.EtfPosition)
	assert.Equal(t, int64(10), a.BuyVolume)
	assert.Equal(t, int64(5), a.TotalFees)
}

func TestApplyTradeSellCreditsCashAndDecreasesPosition(t *testing.T) {
	a := NewAccount(0.2, 1)
	a.ApplyTrade(engine.InstrumentFuture, engine.SideSell, 50, 4, 1)

	assert.Equal(t, int64(199), a.Cash) // +200 for the trade, -1 fee
	assert.Equal(t, int64(-4), a.FuturePosition)
	assert.Equal(t, int64(4), a.SellVolume)
}

func TestMarkToMarketClampsEtfPriceWithinFraction(t *testing.T) {
	a := NewAccount(0.2, 1) // 20% clamp, tick size 1
	a.EtfPosition = 1

	// future=1000, clamp delta = 200 -> range [800, 1200]. etf print of 1500
	// should clamp down to 1200.
	a.UpdateMarkToMarket(1000, 1500)
	assert.Equal(t, int64(1200), a.ProfitOrLoss)
	assert.Equal(t, int64(1500), a.LastEtfPrice)

	// and a print of 100 clamps up to 800.
	a.UpdateMarkToMarket(1000, 100)
	assert.Equal(t, int64(800), a.ProfitOrLoss)
}

func TestMarkToMarketLeavesEtfPriceUnclampedWithinRange(t *testing.T) {
	a := NewAccount(0.2, 1)
	a.EtfPosition = 2
	a.UpdateMarkToMarket(1000, 1050)
	assert.Equal(t, int64(1050*2), a.ProfitOrLoss)
}

func TestMarkToMarketTracksMaxProfitAndDrawdown(t *testing.T) {
	a := NewAccount(0, 1)
	a.FuturePosition = 1

	a.UpdateMarkToMarket(100, 0)
	assert.Equal(t, int64(100), a.MaxProfit)
	assert.Equal(t, int64(0), a.MaxDrawdown)

	a.UpdateMarkToMarket(-50, 0)
	assert.Equal(t, int64(100), a.MaxProfit) // unchanged, still the high-water mark
	assert.Equal(t, int64(150), a.MaxDrawdown) // peak-to-trough: 100 - (-50)
}

func TestMarkToMarketDrawdownIsPeakToTroughNotRawMinimum(t *testing.T) {
	a := NewAccount(0, 1)
	a.FuturePosition = 1

	a.UpdateMarkToMarket(200, 0)
	assert.Equal(t, int64(200), a.MaxProfit)
	assert.Equal(t, int64(0), a.MaxDrawdown)

	a.UpdateMarkToMarket(150, 0)
	assert.Equal(t, int64(200), a.MaxProfit) // unchanged, still the high-water mark
	assert.Equal(t, int64(50), a.MaxDrawdown) // 200 - 150, even though P&L never went negative
}
