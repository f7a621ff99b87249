// Package controller wires every exchange component together and runs the
// single-threaded matching/session event loop: one goroutine owns the
// books, the competitor roster, and every mutation of trading state. All
// other goroutines -- the market-data reader, the two CSV writers, the
// execution server's connection workers -- only ever move bytes; they hand
// decoded work to this loop over channels and never touch engine or
// competitor state directly.
package controller

import (
	"fmt"
	"net/http"

	"fenrir/internal/competitor"
	"fenrir/internal/config"
	"fenrir/internal/engine"
	"fenrir/internal/marketevents"
	"fenrir/internal/matchevents"
	"fenrir/internal/metrics"
	"fenrir/internal/netproto"
	"fenrir/internal/netproto/pubsub"
	"fenrir/internal/scoreboard"
	"fenrir/internal/timer"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

// Controller owns the exchange's entire run: construction wires every
// component against the same pair of order books, and Run drives the event
// loop until the market-event stream is exhausted.
type Controller struct {
	cfg *config.Config
	log zerolog.Logger

	etfBook    *engine.OrderBook
	futureBook *engine.OrderBook

	manager      *competitor.Manager
	marketReader *marketevents.Reader
	matchWriter  *matchevents.Writer
	scoreWriter  *scoreboard.Writer
	execServer   *netproto.ExecutionServer
	info         *netproto.InformationPublisher

	marketClock *timer.Clock
	tickTicker  *timer.Ticker
}

// New builds every component from cfg but starts nothing; call Run to
// start the goroutines and the event loop.
func New(t *tomb.Tomb, cfg *config.Config, log zerolog.Logger) (*Controller, error) {
	etfBook := engine.NewOrderBook(engine.InstrumentETF, cfg.Instrument.TickSize, cfg.Fees.Maker, cfg.Fees.Taker)
	futureBook := engine.NewOrderBook(engine.InstrumentFuture, cfg.Instrument.TickSize, 0, 0)

	matchWriter, err := matchevents.NewWriter(t, cfg.Engine.MatchEventsFile)
	if err != nil {
		return nil, err
	}
	scoreWriter, err := scoreboard.NewWriter(t, cfg.Engine.ScoreBoardFile)
	if err != nil {
		return nil, err
	}
	marketReader, err := marketevents.NewReader(t, cfg.Engine.MarketDataFile)
	if err != nil {
		return nil, err
	}

	limits := competitor.Limits{
		ActiveOrderCount:  cfg.Limits.ActiveOrderCountLimit,
		ActiveVolume:      cfg.Limits.ActiveVolumeLimit,
		PositionLimit:     cfg.Limits.PositionLimit,
		FrequencyInterval: cfg.Limits.MessageFrequencyInterval,
		FrequencyLimit:    cfg.Limits.MessageFrequencyLimit,
	}
	manager := competitor.NewManager(cfg.Traders, etfBook, futureBook, cfg.Instrument.TickSize,
		limits, cfg.Instrument.EtfClamp, matchWriter, scoreWriter, log)

	execServer := netproto.NewExecutionServer(cfg.Execution.Host, cfg.Execution.Port, manager,
		log.With().Str("component", "execution").Logger())

	ring := pubsub.NewRing()
	info := netproto.NewInformationPublisher(ring, etfBook, futureBook,
		log.With().Str("component", "information").Logger())

	if cfg.Metrics != nil {
		addr := fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port)
		t.Go(func() error {
			if err := metrics.Serve(addr, t.Dying()); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics: server exited")
			}
			return nil
		})
	}

	marketClock := timer.NewClock(cfg.Engine.Speed, cfg.Engine.MarketOpenDelay)
	tickTicker := timer.NewTicker(marketClock, cfg.Engine.TickInterval)

	return &Controller{
		cfg:          cfg,
		log:          log,
		etfBook:      etfBook,
		futureBook:   futureBook,
		manager:      manager,
		marketReader: marketReader,
		matchWriter:  matchWriter,
		scoreWriter:  scoreWriter,
		execServer:   execServer,
		info:         info,
		marketClock:  marketClock,
		tickTicker:   tickTicker,
	}, nil
}

// Run starts the execution server and drives the event loop until the
// market-event stream is exhausted, then flushes and closes both output
// files before returning.
func (ctl *Controller) Run(t *tomb.Tomb) error {
	t.Go(func() error {
		return ctl.execServer.Run(t)
	})

	defer ctl.tickTicker.Stop()

	for {
		select {
		case <-t.Dying():
			ctl.shutdown()
			return nil

		case <-ctl.tickTicker.C():
			virtualNow := ctl.marketClock.Advance()
			tickNumber := ctl.tickTicker.Next()
			ctl.drainMarketEvents(virtualNow)
			ctl.onTick(virtualNow, tickNumber)
			ctl.flushTicks()

			if ctl.marketReader.Exhausted() {
				ctl.shutdown()
				t.Kill(nil)
				return nil
			}

		case req := <-ctl.execServer.Inbound():
			virtualNow := ctl.marketClock.Advance()
			ctl.drainMarketEvents(virtualNow)
			ctl.dispatch(virtualNow, req)
			ctl.flushTicks()
		}
	}
}

// dispatch applies one decoded client request to its bound competitor.
func (ctl *Controller) dispatch(now float64, req netproto.Request) {
	c := req.Competitor
	switch body := req.Decoded.(type) {
	case netproto.InsertOrderRequest:
		metrics.OrdersInserted.WithLabelValues(engine.InstrumentETF.String()).Inc()
		c.Insert(now, body.ClientOrderID, body.Side, body.Lifespan, body.Price, body.Volume)
	case netproto.AmendOrderRequest:
		metrics.OrdersAmended.WithLabelValues(engine.InstrumentETF.String()).Inc()
		c.Amend(now, body.ClientOrderID, body.NewVolume)
	case netproto.CancelOrderRequest:
		metrics.OrdersCancelled.WithLabelValues(engine.InstrumentETF.String()).Inc()
		c.Cancel(now, body.ClientOrderID)
	case netproto.HedgeOrderRequest:
		c.Hedge(now, body.ClientOrderID, body.Side, body.Price, body.Volume)
	}
}

// drainMarketEvents applies every scripted market event whose time has
// arrived to the appropriate book, tracking synthetic orders in the
// reader so later Amend/Cancel rows can find them.
func (ctl *Controller) drainMarketEvents(now float64) {
	ctl.marketReader.DrainUpTo(now, func(evt marketevents.Event) {
		book := ctl.futureBook
		if evt.Instrument == engine.InstrumentETF {
			book = ctl.etfBook
		}

		switch evt.Operation {
		case marketevents.OpInsert:
			order := engine.NewOrder(ctl.marketReader, evt.OrderID, evt.Instrument, evt.Side, evt.Lifespan, evt.Price, evt.Volume)
			ctl.marketReader.Track(evt.OrderID, order)
			book.Insert(order)
		case marketevents.OpAmend:
			if order, ok := ctl.marketReader.Lookup(evt.OrderID); ok {
				book.Amend(order, evt.Volume)
			}
		case marketevents.OpCancel:
			if order, ok := ctl.marketReader.Lookup(evt.OrderID); ok {
				book.Cancel(order)
			}
		}
	})
}

// onTick publishes the per-tick order-book snapshot and updates every
// logged-in competitor's mark-to-market and score-board row.
func (ctl *Controller) onTick(now float64, tickNumber int) {
	ctl.info.OnTick(uint32(tickNumber))

	futurePrice := ctl.referencePrice(ctl.futureBook)
	etfPrice := ctl.referencePrice(ctl.etfBook)

	tickLabel := fmt.Sprintf("%d", tickNumber)
	for _, c := range ctl.manager.Active() {
		c.Tick(now, tickLabel, futurePrice, etfPrice)
	}

	ctl.updateDepthGauges()
}

func (ctl *Controller) referencePrice(book *engine.OrderBook) int64 {
	if p, ok := book.LastTradedPrice(); ok {
		return p
	}
	if p, ok := book.MidpointPrice(); ok {
		return p
	}
	return 0
}

func (ctl *Controller) updateDepthGauges() {
	for _, pair := range []struct {
		name string
		book *engine.OrderBook
	}{
		{engine.InstrumentETF.String(), ctl.etfBook},
		{engine.InstrumentFuture.String(), ctl.futureBook},
	} {
		askPx, askVol, bidPx, bidVol := pair.book.TopLevels()
		var askTotal, bidTotal int64
		for i := range askPx {
			askTotal += askVol[i]
			bidTotal += bidVol[i]
		}
		metrics.BookDepth.WithLabelValues(pair.name, "ask").Set(float64(askTotal))
		metrics.BookDepth.WithLabelValues(pair.name, "bid").Set(float64(bidTotal))
	}
}

// flushTicks publishes any coalesced TRADE_TICKS datagrams for instruments
// that traded during the turn just processed.
func (ctl *Controller) flushTicks() {
	if ctl.etfBook.HasPendingTicks() {
		ctl.info.OnTrade(engine.InstrumentETF)
		metrics.Trades.WithLabelValues(engine.InstrumentETF.String()).Inc()
	}
	if ctl.futureBook.HasPendingTicks() {
		ctl.info.OnTrade(engine.InstrumentFuture)
		metrics.Trades.WithLabelValues(engine.InstrumentFuture.String()).Inc()
	}
	ctl.info.FlushTradeTicks()
}

// shutdown flushes and closes both output files. Safe to call once the
// event loop has stopped consuming new events.
func (ctl *Controller) shutdown() {
	ctl.log.Info().Msg("controller: shutting down")
	ctl.matchWriter.Finish()
	ctl.scoreWriter.Finish()
}
