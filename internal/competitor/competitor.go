package competitor

import (
	"fenrir/internal/engine"
	"fenrir/internal/matchevents"
	"fenrir/internal/metrics"
	"fenrir/internal/scoreboard"

	"github.com/rs/zerolog"
)

// ReplySink is how a competitor sends framed replies back over its
// execution channel. Implemented by the netproto execution connection.
type ReplySink interface {
	SendError(coid uint32, reason string)
	SendOrderStatus(coid uint32, fillVolume, remainingVolume uint32, fees int64)
	SendOrderFilled(coid uint32, price int64, volume uint32)
	SendHedgeFilled(coid uint32, avgPrice int64, volume uint32)
	// Close tears down the execution channel following a hard breach.
	Close()
}

// Limits is the subset of the Limits config section a competitor enforces.
type Limits struct {
	ActiveOrderCount   int
	ActiveVolume       uint32
	PositionLimit      int64
	FrequencyInterval  float64
	FrequencyLimit     int
}

// Competitor is one logged-in client's full risk and order-lifecycle state.
// It implements engine.OrderListener for its own ETF orders.
type Competitor struct {
	Name   string
	Secret string

	reply      ReplySink
	matchLog   matchevents.Recorder
	scoreLog   scoreboard.Recorder
	log        zerolog.Logger

	etfBook    *engine.OrderBook
	futureBook *engine.OrderBook
	tickSize   int64

	limits  Limits
	limiter *FrequencyLimiter
	account *Account
	unhedged *UnhedgedLots

	liveOrders   map[uint32]*engine.Order
	buyPrices    []int64
	sellPrices   []int64
	lastSeenCoid uint32
	activeVolume uint32
	status       engine.Status

	lastNow float64
}

// New builds a logged-in competitor ready to process requests.
func New(
	name, secret string,
	reply ReplySink,
	matchLog matchevents.Recorder,
	scoreLog scoreboard.Recorder,
	etfBook, futureBook *engine.OrderBook,
	tickSize int64,
	limits Limits,
	etfClampFraction float64,
	log zerolog.Logger,
) *Competitor {
	c := &Competitor{
		Name:       name,
		Secret:     secret,
		reply:      reply,
		matchLog:   matchLog,
		scoreLog:   scoreLog,
		log:        log,
		etfBook:    etfBook,
		futureBook: futureBook,
		tickSize:   tickSize,
		limits:     limits,
		limiter:    NewFrequencyLimiter(limits.FrequencyInterval, limits.FrequencyLimit),
		account:    NewAccount(etfClampFraction, tickSize),
		liveOrders: make(map[uint32]*engine.Order),
	}
	c.unhedged = NewUnhedgedLots(func() { c.breach("unhedged lots position not hedged in time") })
	return c
}

func (c *Competitor) Status() engine.Status { return c.status }

// checkFrequency records the event against the limiter and turns a breach
// into a hard disconnect. Returns false if the competitor is no longer
// live (already breached, or just breached by this call).
func (c *Competitor) checkFrequency(now float64) bool {
	if c.status == engine.StatusBreach {
		return false
	}
	if c.limiter.CheckEvent(now) {
		c.breach("message frequency limit exceeded")
		return false
	}
	return true
}

func (c *Competitor) breach(reason string) {
	if c.status == engine.StatusBreach {
		return
	}
	c.status = engine.StatusBreach
	c.log.Warn().Str("competitor", c.Name).Str("reason", reason).Msg("hard breach")
	metrics.HardBreaches.WithLabelValues(reason).Inc()
	c.reply.SendError(0, reason)
	c.reply.Close()
	c.scoreLog.Record(c.snapshot(c.lastNow, "Breach"))
}

// Insert validates and, if acceptable, submits a new order to the ETF
// book.
func (c *Competitor) Insert(now float64, coid uint32, side engine.Side, lifespan engine.Lifespan, price int64, volume uint32) {
	c.lastNow = now
	if !c.checkFrequency(now) {
		return
	}
	if coid <= c.lastSeenCoid {
		c.reply.SendError(coid, "client order id must be increasing")
		return
	}
	if side != engine.SideBuy && side != engine.SideSell {
		c.reply.SendError(coid, "invalid side")
		return
	}
	if lifespan != engine.LifespanGoodForDay && lifespan != engine.LifespanFillAndKill {
		c.reply.SendError(coid, "invalid lifespan")
		return
	}
	if price <= 0 || (c.tickSize > 0 && price%c.tickSize != 0) {
		c.reply.SendError(coid, "price is not a multiple of tick size")
		return
	}
	if volume < 1 {
		c.reply.SendError(coid, "volume must be at least 1")
		return
	}
	if now <= 0 {
		c.reply.SendError(coid, "market is not yet open")
		return
	}
	if len(c.liveOrders) >= c.limits.ActiveOrderCount {
		c.reply.SendError(coid, "too many active orders")
		return
	}
	if c.activeVolume+volume > c.limits.ActiveVolume {
		c.reply.SendError(coid, "active volume limit exceeded")
		return
	}
	if c.wouldSelfCross(side, price) {
		c.reply.SendError(coid, "in cross with an existing order")
		return
	}

	c.lastSeenCoid = coid
	order := engine.NewOrder(c, coid, engine.InstrumentETF, side, lifespan, price, volume)
	c.liveOrders[coid] = order
	c.activeVolume += volume
	c.insertOwnPrice(side, price)

	c.matchLog.Record(matchevents.Event{
		Time: now, Competitor: c.Name, Operation: "Insert", OrderID: coid,
		Instrument: engine.InstrumentETF.String(), Side: side.String(),
		Volume: volume, Price: price, Lifespan: lifespan.String(),
	})

	c.etfBook.Insert(order)
}

// Amend reduces a live order's volume.
func (c *Competitor) Amend(now float64, coid uint32, newVolume uint32) {
	c.lastNow = now
	if !c.checkFrequency(now) {
		return
	}
	if coid > c.lastSeenCoid {
		c.reply.SendError(coid, "unknown order")
		return
	}
	order, ok := c.liveOrders[coid]
	if !ok {
		c.reply.SendError(coid, "unknown order")
		return
	}
	if newVolume > order.Volume {
		c.reply.SendError(coid, "amend cannot increase volume")
		return
	}
	c.etfBook.Amend(order, newVolume)
}

// Cancel pulls a live order's full remaining volume from the book.
func (c *Competitor) Cancel(now float64, coid uint32) {
	c.lastNow = now
	if !c.checkFrequency(now) {
		return
	}
	if coid > c.lastSeenCoid {
		c.reply.SendError(coid, "unknown order")
		return
	}
	order, ok := c.liveOrders[coid]
	if !ok {
		c.reply.SendError(coid, "unknown order")
		return
	}
	c.etfBook.Cancel(order)
}

// Hedge trades immediately against the Future book to offset an ETF
// position. Never rests; volume may come back zero.
func (c *Competitor) Hedge(now float64, coid uint32, side engine.Side, price int64, volume uint32) {
	c.lastNow = now
	if !c.checkFrequency(now) {
		return
	}
	if coid <= c.lastSeenCoid {
		c.reply.SendError(coid, "client order id must be increasing")
		return
	}
	if side != engine.SideBuy && side != engine.SideSell {
		c.reply.SendError(coid, "invalid side")
		return
	}
	if price <= 0 || (c.tickSize > 0 && price%c.tickSize != 0) {
		c.reply.SendError(coid, "price is not a multiple of tick size")
		return
	}
	if volume < 1 {
		c.reply.SendError(coid, "volume must be at least 1")
		return
	}
	if now <= 0 {
		c.reply.SendError(coid, "market is not yet open")
		return
	}
	c.lastSeenCoid = coid

	filled, vwap := c.futureBook.TryTrade(side, price, volume)
	if filled > 0 {
		c.account.ApplyTrade(engine.InstrumentFuture, side, vwap, filled, 0)

		delta := int64(filled)
		if side == engine.SideBuy {
			delta = -delta
		}
		c.unhedged.ApplyPositionDelta(delta, now)

		c.matchLog.Record(matchevents.Event{
			Time: now, Competitor: c.Name, Operation: "Hedge", OrderID: coid,
			Instrument: engine.InstrumentFuture.String(), Side: side.String(),
			Volume: filled, Price: vwap,
		})
	}

	c.reply.SendHedgeFilled(coid, vwap, filled)

	if c.account.FuturePosition > c.limits.PositionLimit || c.account.FuturePosition < -c.limits.PositionLimit {
		c.breach("future position limit exceeded")
	}
}

// OnOrderPlaced implements engine.OrderListener.
func (c *Competitor) OnOrderPlaced(order *engine.Order) {
	c.reply.SendOrderStatus(order.ClientOrderID, 0, order.Remaining, order.Fees)
}

// OnOrderFilled implements engine.OrderListener.
func (c *Competitor) OnOrderFilled(order *engine.Order, price int64, volume uint32, fee int64) {
	c.activeVolume -= volume
	c.account.ApplyTrade(order.Instrument, order.Side, price, volume, fee)

	if order.Instrument == engine.InstrumentETF {
		delta := int64(volume)
		if order.Side == engine.SideSell {
			delta = -delta
		}
		c.unhedged.ApplyPositionDelta(delta, c.lastNow)
	}

	c.matchLog.Record(matchevents.Event{
		Time: c.lastNow, Competitor: c.Name, Operation: "Trade", OrderID: order.ClientOrderID,
		Instrument: order.Instrument.String(), Side: order.Side.String(),
		Volume: volume, Price: price, Fee: fee,
	})

	if order.Remaining == 0 {
		delete(c.liveOrders, order.ClientOrderID)
		c.removeOwnPriceOnFill(order.Side)
	}

	futureRef := c.futureRefPrice()
	c.account.UpdateMarkToMarket(futureRef, price)

	c.reply.SendOrderFilled(order.ClientOrderID, price, volume)
	c.reply.SendOrderStatus(order.ClientOrderID, order.Volume-order.Remaining, order.Remaining, order.Fees)

	if order.Instrument == engine.InstrumentETF &&
		(c.account.EtfPosition > c.limits.PositionLimit || c.account.EtfPosition < -c.limits.PositionLimit) {
		c.breach("etf position limit exceeded")
	}
}

// OnOrderAmended implements engine.OrderListener.
func (c *Competitor) OnOrderAmended(order *engine.Order, removedVolume uint32) {
	c.activeVolume -= removedVolume
	if order.Remaining == 0 {
		delete(c.liveOrders, order.ClientOrderID)
		c.removeOwnPrice(order.Side, order.Price)
	}

	c.matchLog.Record(matchevents.Event{
		Time: c.lastNow, Competitor: c.Name, Operation: "Amend", OrderID: order.ClientOrderID,
		Instrument: order.Instrument.String(), Side: order.Side.String(),
		Volume: removedVolume, Price: order.Price, Lifespan: order.Lifespan.String(),
	})

	c.reply.SendOrderStatus(order.ClientOrderID, order.Volume-order.Remaining, order.Remaining, order.Fees)
}

// OnOrderCancelled implements engine.OrderListener.
func (c *Competitor) OnOrderCancelled(order *engine.Order, removedVolume uint32) {
	c.activeVolume -= removedVolume
	delete(c.liveOrders, order.ClientOrderID)
	c.removeOwnPrice(order.Side, order.Price)

	c.matchLog.Record(matchevents.Event{
		Time: c.lastNow, Competitor: c.Name, Operation: "Cancel", OrderID: order.ClientOrderID,
		Instrument: order.Instrument.String(), Side: order.Side.String(),
		Volume: removedVolume, Price: order.Price, Lifespan: order.Lifespan.String(),
	})

	fillVolume := order.Volume - removedVolume
	c.reply.SendOrderStatus(order.ClientOrderID, fillVolume, 0, order.Fees)
}

// Tick updates the account's mark-to-market from the latest book prices,
// checks the unhedged-lots deadline, and emits a score-board row.
func (c *Competitor) Tick(now float64, tickLabel string, futurePrice, etfPrice int64) {
	c.lastNow = now
	c.unhedged.Check(now)
	if c.status == engine.StatusBreach {
		return
	}
	c.account.UpdateMarkToMarket(futurePrice, etfPrice)
	c.scoreLog.Record(c.snapshot(now, tickLabel))
}

func (c *Competitor) snapshot(now float64, operation string) scoreboard.Record {
	return scoreboard.Record{
		Time:           now,
		Team:           c.Name,
		Operation:      operation,
		BuyVolume:      c.account.BuyVolume,
		SellVolume:     c.account.SellVolume,
		EtfPosition:    c.account.EtfPosition,
		FuturePosition: c.account.FuturePosition,
		EtfPrice:       c.account.LastEtfPrice,
		FuturePrice:    c.account.LastFuturePrice,
		TotalFees:      c.account.TotalFees,
		AccountBalance: c.account.Cash,
		ProfitOrLoss:   c.account.ProfitOrLoss,
		Status:         c.status.String(),
	}
}

func (c *Competitor) futureRefPrice() int64 {
	if p, ok := c.futureBook.LastTradedPrice(); ok {
		return p
	}
	if p, ok := c.futureBook.MidpointPrice(); ok {
		return p
	}
	return 0
}

// wouldSelfCross reports whether an incoming order at side/price would
// cross one of this competitor's own resting orders.
func (c *Competitor) wouldSelfCross(side engine.Side, price int64) bool {
	if side == engine.SideBuy {
		return len(c.sellPrices) > 0 && price >= c.sellPrices[0]
	}
	return len(c.buyPrices) > 0 && price <= c.buyPrices[len(c.buyPrices)-1]
}

func (c *Competitor) insertOwnPrice(side engine.Side, price int64) {
	if side == engine.SideBuy {
		c.buyPrices = insertSorted(c.buyPrices, price)
	} else {
		c.sellPrices = insertSorted(c.sellPrices, price)
	}
}

// removeOwnPriceOnFill drops one entry from the extreme end of the
// relevant own-price list: the last (highest) buy price, or the first
// (lowest) sell price. This is sound rather than merely convenient: an
// own order at a worse price than the best cannot trade ahead of the best,
// so whichever own order just filled was necessarily sitting at that
// extreme.
func (c *Competitor) removeOwnPriceOnFill(side engine.Side) {
	if side == engine.SideBuy {
		c.buyPrices = popLast(c.buyPrices)
	} else {
		c.sellPrices = popFirst(c.sellPrices)
	}
}

func (c *Competitor) removeOwnPrice(side engine.Side, price int64) {
	if side == engine.SideBuy {
		c.buyPrices = removeOne(c.buyPrices, price)
	} else {
		c.sellPrices = removeOne(c.sellPrices, price)
	}
}

func insertSorted(s []int64, v int64) []int64 {
	i := 0
	for i < len(s) && s[i] < v {
		i++
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeOne(s []int64, v int64) []int64 {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func popLast(s []int64) []int64 {
	if len(s) == 0 {
		return s
	}
	return s[:len(s)-1]
}

func popFirst(s []int64) []int64 {
	if len(s) == 0 {
		return s
	}
	return s[1:]
}
