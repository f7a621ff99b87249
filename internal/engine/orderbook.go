package engine

import (
	"math"

	"github.com/tidwall/btree"
)

// levels is a sorted set of price levels for one side of one book. Bids are
// kept highest-first, asks lowest-first, via the comparator passed at
// construction; Ascend(nil, ...) therefore always visits best-of-book
// first on either side.
type levels = btree.BTreeG[*priceLevel]

// OrderBook is a single instrument's price-time priority book. Matching,
// resting, amending and cancelling are all synchronous, uninterruptible
// operations; the caller (the competitor state machine or the
// market-events reader) supplies the listener on each order and receives
// callbacks inline.
type OrderBook struct {
	instrument Instrument
	tickSize   int64
	makerRate  float64
	takerRate  float64

	bids *levels
	asks *levels

	lastTradedPrice int64
	hasTraded       bool

	askTicks map[int64]uint32
	bidTicks map[int64]uint32
}

// NewOrderBook builds an empty book. makerRate/takerRate are fractional
// (e.g. 0.0002); pass zero for both to get a fee-free book (the Future
// book's configuration).
func NewOrderBook(instrument Instrument, tickSize int64, makerRate, takerRate float64) *OrderBook {
	return &OrderBook{
		instrument: instrument,
		tickSize:   tickSize,
		makerRate:  makerRate,
		takerRate:  takerRate,
		bids: btree.NewBTreeG(func(a, b *priceLevel) bool {
			return a.price > b.price
		}),
		asks: btree.NewBTreeG(func(a, b *priceLevel) bool {
			return a.price < b.price
		}),
		askTicks: make(map[int64]uint32),
		bidTicks: make(map[int64]uint32),
	}
}

func (b *OrderBook) TickSize() int64 { return b.tickSize }

func (b *OrderBook) sideLevels(side Side) *levels {
	if side == SideBuy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) oppositeLevels(side Side) *levels {
	return b.sideLevels(side.Opposite())
}

// Insert attempts to match the incoming order against the opposite side of
// the book, then rests or cancels whatever volume remains depending on its
// lifespan.
func (b *OrderBook) Insert(order *Order) {
	opposite := b.oppositeLevels(order.Side)
	filledAny := false

	for order.Remaining > 0 {
		lvl, ok := opposite.Min()
		if !ok {
			break
		}
		if order.Side == SideBuy && lvl.price > order.Price {
			break
		}
		if order.Side == SideSell && lvl.price < order.Price {
			break
		}
		b.tradeLevel(order, lvl, opposite)
		filledAny = true
	}

	if order.Remaining == 0 {
		return
	}

	if order.Lifespan == LifespanGoodForDay {
		b.rest(order)
		if !filledAny {
			order.listener.OnOrderPlaced(order)
		}
		return
	}

	// FILL_AND_KILL: cancel the residual.
	residual := order.Remaining
	order.Remaining = 0
	order.listener.OnOrderCancelled(order, residual)
}

// rest adds order to its own side's book, creating the price level if
// necessary.
func (b *OrderBook) rest(order *Order) {
	own := b.sideLevels(order.Side)
	lvl, ok := own.GetMut(&priceLevel{price: order.Price})
	if !ok {
		lvl = newPriceLevel(order.Price)
		own.Set(lvl)
	}
	lvl.push(order)
}

// tradeLevel matches the aggressor against resting orders at lvl (which
// belongs to the opposite side's tree) until either the aggressor or the
// level is exhausted. The aggressor pays one taker fee on its total traded
// volume at this level; each resting order pays its own maker fee on the
// quantity it personally filled.
func (b *OrderBook) tradeLevel(aggressor *Order, lvl *priceLevel, opposite *levels) {
	var takerVolume uint32
	consumed := 0

	for consumed < len(lvl.orders) && aggressor.Remaining > 0 {
		resting := lvl.orders[consumed]
		qty := min(aggressor.Remaining, resting.Remaining)

		aggressor.Remaining -= qty
		resting.Remaining -= qty
		lvl.volume -= qty
		takerVolume += qty

		makerFee := roundFee(lvl.price, qty, b.makerRate)
		resting.Fees += makerFee
		resting.listener.OnOrderFilled(resting, lvl.price, qty, makerFee)

		b.recordTrade(resting.Side, lvl.price, qty)

		if resting.Remaining == 0 {
			consumed++
		}
	}

	if consumed > 0 {
		lvl.dropFront(consumed)
	}
	if lvl.empty() {
		opposite.Delete(lvl)
	}

	if takerVolume > 0 {
		takerFee := roundFee(lvl.price, takerVolume, b.takerRate)
		aggressor.Fees += takerFee
		aggressor.listener.OnOrderFilled(aggressor, lvl.price, takerVolume, takerFee)
	}
}

func (b *OrderBook) recordTrade(restingSide Side, price int64, qty uint32) {
	b.lastTradedPrice = price
	b.hasTraded = true
	if restingSide == SideSell {
		b.askTicks[price] += qty
	} else {
		b.bidTicks[price] += qty
	}
}

// Amend reduces a resting order's volume. Only decreases are supported; the
// effective new volume is clamped up to whatever has already filled, so an
// amend can never "unfill" an order, and an amend-to-below-fill-volume
// behaves like cancelling the residual rather than being rejected.
func (b *OrderBook) Amend(order *Order, newVolume uint32) {
	if order.Remaining == 0 {
		return
	}

	filled := order.Volume - order.Remaining
	effective := newVolume
	if effective < filled {
		effective = filled
	}
	removed := order.Volume - effective
	if removed == 0 {
		return
	}

	order.Volume = effective
	order.Remaining -= removed

	own := b.sideLevels(order.Side)
	lvl, ok := own.GetMut(&priceLevel{price: order.Price})
	if ok {
		lvl.volume -= removed
		if order.Remaining == 0 {
			lvl.remove(order, 0)
			if lvl.empty() {
				own.Delete(lvl)
			}
		}
	}

	order.listener.OnOrderAmended(order, removed)
}

// Cancel removes an order's entire remaining volume from the book. No-op if
// the order has already fully filled.
func (b *OrderBook) Cancel(order *Order) {
	if order.Remaining == 0 {
		return
	}

	removed := order.Remaining
	own := b.sideLevels(order.Side)
	lvl, ok := own.GetMut(&priceLevel{price: order.Price})
	if ok {
		lvl.volume -= removed
		lvl.remove(order, 0)
		if lvl.empty() {
			own.Delete(lvl)
		}
	}

	order.Remaining = 0
	order.listener.OnOrderCancelled(order, removed)
}

// TryTrade is a non-mutating dry run: how much of volume could trade
// against the opposite side if limit allows, and at what volume-weighted
// average price. Used for hedge pricing.
func (b *OrderBook) TryTrade(side Side, limit int64, volume uint32) (filled uint32, vwap int64) {
	opposite := b.oppositeLevels(side)
	var totalValue int64

	opposite.Ascend(nil, func(lvl *priceLevel) bool {
		if side == SideBuy && lvl.price > limit {
			return false
		}
		if side == SideSell && lvl.price < limit {
			return false
		}
		take := volume - filled
		if take > lvl.volume {
			take = lvl.volume
		}
		filled += take
		totalValue += lvl.price * int64(take)
		return filled < volume
	})

	if filled == 0 {
		return 0, 0
	}
	return filled, totalValue / int64(filled)
}

// TopLevels fills the four arrays with best-first prices/volumes, zero
// padding whatever levels do not exist.
func (b *OrderBook) TopLevels() (askPrices, askVolumes, bidPrices, bidVolumes [5]int64) {
	fill := func(tree *levels, prices, volumes *[5]int64) {
		i := 0
		tree.Ascend(nil, func(lvl *priceLevel) bool {
			if i >= 5 {
				return false
			}
			prices[i] = lvl.price
			volumes[i] = int64(lvl.volume)
			i++
			return true
		})
	}
	fill(b.asks, &askPrices, &askVolumes)
	fill(b.bids, &bidPrices, &bidVolumes)
	return
}

// TradeTicks drains the accumulated per-price taker volume for each side,
// returning the five lowest ask prices and five highest bid prices traded
// since the last call, zero-padded. Returns false if nothing traded.
func (b *OrderBook) TradeTicks() (askPrices, askVolumes, bidPrices, bidVolumes [5]int64, any bool) {
	if len(b.askTicks) == 0 && len(b.bidTicks) == 0 {
		return askPrices, askVolumes, bidPrices, bidVolumes, false
	}

	askKeys := sortedKeys(b.askTicks, true)
	bidKeys := sortedKeys(b.bidTicks, false)

	for i := 0; i < len(askKeys) && i < 5; i++ {
		askPrices[i] = askKeys[i]
		askVolumes[i] = int64(b.askTicks[askKeys[i]])
	}
	for i := 0; i < len(bidKeys) && i < 5; i++ {
		bidPrices[i] = bidKeys[i]
		bidVolumes[i] = int64(b.bidTicks[bidKeys[i]])
	}

	b.askTicks = make(map[int64]uint32)
	b.bidTicks = make(map[int64]uint32)
	return askPrices, askVolumes, bidPrices, bidVolumes, true
}

// MidpointPrice returns the average of the best bid and best ask, or false
// if either side is empty.
func (b *OrderBook) MidpointPrice() (int64, bool) {
	bid, ok := b.bids.Min()
	if !ok {
		return 0, false
	}
	ask, ok := b.asks.Min()
	if !ok {
		return 0, false
	}
	return (bid.price + ask.price) / 2, true
}

// LastTradedPrice returns the price of the most recent trade in this book.
func (b *OrderBook) LastTradedPrice() (int64, bool) {
	return b.lastTradedPrice, b.hasTraded
}

// HasPendingTicks reports whether any trade has accumulated since the last
// TradeTicks call, without draining it. The information publisher uses
// this to decide whether an instrument needs a coalesced TRADE_TICKS
// datagram this turn.
func (b *OrderBook) HasPendingTicks() bool {
	return len(b.askTicks) > 0 || len(b.bidTicks) > 0
}

func roundFee(price int64, qty uint32, rate float64) int64 {
	return int64(math.Round(float64(price) * float64(qty) * rate))
}

func sortedKeys(m map[int64]uint32, ascending bool) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Simple insertion sort: these maps hold a handful of distinct prices
	// between drains, never a book-sized set.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0; j-- {
			less := keys[j] < keys[j-1]
			if !ascending {
				less = keys[j] > keys[j-1]
			}
			if !less {
				break
			}
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
