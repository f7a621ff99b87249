package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fill is one OnOrderFilled callback captured for assertions.
type fill struct {
	order  *Order
	price  int64
	volume uint32
	fee    int64
}

type recordingListener struct {
	placed    []*Order
	fills     []fill
	amended   []*Order
	amendVols []uint32
	cancelled []*Order
	cancelVol []uint32
}

func (l *recordingListener) OnOrderPlaced(order *Order) {
	l.placed = append(l.placed, order)
}

func (l *recordingListener) OnOrderFilled(order *Order, price int64, volume uint32, fee int64) {
	l.fills = append(l.fills, fill{order, price, volume, fee})
}

func (l *recordingListener) OnOrderAmended(order *Order, removedVolume uint32) {
	l.amended = append(l.amended, order)
	l.amendVols = append(l.amendVols, removedVolume)
}

func (l *recordingListener) OnOrderCancelled(order *Order, removedVolume uint32) {
	l.cancelled = append(l.cancelled, order)
	l.cancelVol = append(l.cancelVol, removedVolume)
}

func TestInsertRestsGoodForDayWithNoLiquidity(t *testing.T) {
	book := NewOrderBook(InstrumentETF, 1, 0.0002, 0.0002)
	l := &recordingListener{}
	order := NewOrder(l, 1, InstrumentETF, SideBuy, LifespanGoodForDay, 100, 10)

	book.Insert(order)

	require.Len(t, l.placed, 1)
	assert.Empty(t, l.fills)
	askPx, askVol, bidPx, bidVol := book.TopLevels()
	assert.Equal(t, int64(100), bidPx[0])
	assert.Equal(t, int64(10), bidVol[0])
	assert.Equal(t, [5]int64{}, askPx)
	assert.Equal(t, [5]int64{}, askVol)
}

func TestInsertFillAndKillWithNoLiquidityCancelsResidual(t *testing.T) {
	book := NewOrderBook(InstrumentETF, 1, 0, 0)
	l := &recordingListener{}
	order := NewOrder(l, 1, InstrumentETF, SideSell, LifespanFillAndKill, 100, 5)

	book.Insert(order)

	assert.Empty(t, l.placed)
	require.Len(t, l.cancelled, 1)
	assert.Equal(t, uint32(5), l.cancelVol[0])
	assert.True(t, order.Filled())
}

func TestInsertMatchesWithinOnePriceLevelPriceTimePriority(t *testing.T) {
	book := NewOrderBook(InstrumentETF, 1, 0.0002, 0.0004)

	sellerA := &recordingListener{}
	sellerB := &recordingListener{}
	book.Insert(NewOrder(sellerA, 1, InstrumentETF, SideSell, LifespanGoodForDay, 100, 5))
	book.Insert(NewOrder(sellerB, 1, InstrumentETF, SideSell, LifespanGoodForDay, 100, 5))

	buyer := &recordingListener{}
	buyOrder := NewOrder(buyer, 1, InstrumentETF, SideBuy, LifespanGoodForDay, 100, 7)
	book.Insert(buyOrder)

	// price-time priority: sellerA (first in) fills fully (5), sellerB fills
	// the remaining 2.
	require.Len(t, sellerA.fills, 1)
	assert.Equal(t, uint32(5), sellerA.fills[0].volume)
	require.Len(t, sellerB.fills, 1)
	assert.Equal(t, uint32(2), sellerB.fills[0].volume)

	// aggressor pays one combined taker fee for total traded volume (7) at
	// this level, not two separate fees.
	require.Len(t, buyer.fills, 1)
	assert.Equal(t, uint32(7), buyer.fills[0].volume)
	assert.Equal(t, roundFee(100, 7, 0.0004), buyer.fills[0].fee)

	assert.Equal(t, roundFee(100, 5, 0.0002), sellerA.fills[0].fee)
	assert.Equal(t, roundFee(100, 2, 0.0002), sellerB.fills[0].fee)

	// sellerB has 3 remaining resting in the book.
	askPx, askVol, _, _ := book.TopLevels()
	assert.Equal(t, int64(100), askPx[0])
	assert.Equal(t, int64(3), askVol[0])
}

func TestAmendClampsToFilledVolume(t *testing.T) {
	book := NewOrderBook(InstrumentETF, 1, 0, 0)
	seller := &recordingListener{}
	sellOrder := NewOrder(seller, 1, InstrumentETF, SideSell, LifespanGoodForDay, 100, 10)
	book.Insert(sellOrder)

	buyer := &recordingListener{}
	book.Insert(NewOrder(buyer, 1, InstrumentETF, SideBuy, LifespanGoodForDay, 100, 4))
	require.Equal(t, uint32(6), sellOrder.Remaining)

	book.Amend(sellOrder, 2) // below the 4 already filled
	assert.Equal(t, uint32(4), sellOrder.Volume)
	assert.Equal(t, uint32(0), sellOrder.Remaining)
	require.Len(t, seller.amended, 1)
	assert.Equal(t, uint32(6), seller.amendVols[0])
}

func TestCancelRemovesEntireRemainingVolume(t *testing.T) {
	book := NewOrderBook(InstrumentETF, 1, 0, 0)
	l := &recordingListener{}
	order := NewOrder(l, 1, InstrumentETF, SideBuy, LifespanGoodForDay, 50, 20)
	book.Insert(order)

	book.Cancel(order)

	require.Len(t, l.cancelled, 1)
	assert.Equal(t, uint32(20), l.cancelVol[0])
	assert.True(t, order.Filled())

	_, _, bidPx, _ := book.TopLevels()
	assert.Equal(t, [5]int64{}, bidPx)
}

func TestCancelOnAlreadyFilledOrderIsNoOp(t *testing.T) {
	book := NewOrderBook(InstrumentETF, 1, 0, 0)
	seller := &recordingListener{}
	sellOrder := NewOrder(seller, 1, InstrumentETF, SideSell, LifespanGoodForDay, 100, 5)
	book.Insert(sellOrder)

	buyer := &recordingListener{}
	book.Insert(NewOrder(buyer, 1, InstrumentETF, SideBuy, LifespanGoodForDay, 100, 5))
	require.True(t, sellOrder.Filled())

	book.Cancel(sellOrder)
	assert.Empty(t, seller.cancelled)
}

func TestTryTradeIsNonMutatingAndComputesFlooredVWAP(t *testing.T) {
	book := NewOrderBook(InstrumentFuture, 1, 0, 0)
	l := &recordingListener{}
	book.Insert(NewOrder(l, 1, InstrumentFuture, SideSell, LifespanGoodForDay, 100, 5))
	book.Insert(NewOrder(l, 2, InstrumentFuture, SideSell, LifespanGoodForDay, 101, 5))

	filled, vwap := book.TryTrade(SideBuy, 101, 7)
	assert.Equal(t, uint32(7), filled)
	// (5*100 + 2*101) / 7 = 702/7 = 100.28... floors to 100.
	assert.Equal(t, int64(100), vwap)

	// non-mutating: the book is unchanged.
	askPx, askVol, _, _ := book.TopLevels()
	assert.Equal(t, int64(100), askPx[0])
	assert.Equal(t, int64(5), askVol[0])
}

func TestTryTradeRespectsLimitPrice(t *testing.T) {
	book := NewOrderBook(InstrumentFuture, 1, 0, 0)
	l := &recordingListener{}
	book.Insert(NewOrder(l, 1, InstrumentFuture, SideSell, LifespanGoodForDay, 105, 10))

	filled, vwap := book.TryTrade(SideBuy, 100, 10)
	assert.Equal(t, uint32(0), filled)
	assert.Equal(t, int64(0), vwap)
}

func TestTradeTicksTruncatesToFiveDistinctPricesPerSide(t *testing.T) {
	book := NewOrderBook(InstrumentETF, 1, 0, 0)
	l := &recordingListener{}

	for i, price := range []int64{100, 101, 102, 103, 104, 105, 106} {
		book.Insert(NewOrder(l, uint32(10+i), InstrumentETF, SideSell, LifespanGoodForDay, price, 1))
	}
	for i, price := range []int64{100, 101, 102, 103, 104, 105, 106} {
		book.Insert(NewOrder(l, uint32(20+i), InstrumentETF, SideBuy, LifespanFillAndKill, price, 1))
	}

	askPx, _, bidPx, _, any := book.TradeTicks()
	require.True(t, any)
	// five lowest ask prices traded.
	assert.Equal(t, [5]int64{100, 101, 102, 103, 104}, askPx)
	// five highest bid prices traded (bid ticks indexed by resting side,
	// here the resting side was always Sell, so bidTicks stays empty and
	// only askTicks is populated).
	assert.Equal(t, [5]int64{}, bidPx)

	// second call with nothing new since the last drain reports false.
	_, _, _, _, any = book.TradeTicks()
	assert.False(t, any)
}

func TestMidpointAndLastTradedPrice(t *testing.T) {
	book := NewOrderBook(InstrumentETF, 1, 0, 0)
	_, ok := book.MidpointPrice()
	assert.False(t, ok)
	_, ok = book.LastTradedPrice()
	assert.False(t, ok)

	l := &recordingListener{}
	book.Insert(NewOrder(l, 1, InstrumentETF, SideSell, LifespanGoodForDay, 110, 5))
	book.Insert(NewOrder(l, 2, InstrumentETF, SideBuy, LifespanGoodForDay, 90, 5))

	mid, ok := book.MidpointPrice()
	require.True(t, ok)
	assert.Equal(t, int64(100), mid)

	book.Insert(NewOrder(l, 3, InstrumentETF, SideBuy, LifespanFillAndKill, 110, 5))
	last, ok := book.LastTradedPrice()
	require.True(t, ok)
	assert.Equal(t, int64(110), last)
}
