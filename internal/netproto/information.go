package netproto

import (
	"fenrir/internal/engine"
	"fenrir/internal/netproto/pubsub"

	"github.com/rs/zerolog"
)

// InformationPublisher disseminates book and trade state over a pubsub
// Ring: one ORDER_BOOK_UPDATE datagram per instrument on every timer tick,
// and a TRADE_TICKS datagram per instrument whenever a trade occurred,
// coalesced so that any number of trades against one instrument within a
// single event-loop turn produce at most one datagram once the controller
// calls FlushTradeTicks at the end of that turn.
type InformationPublisher struct {
	ring *pubsub.Ring
	log  zerolog.Logger

	books [2]*engine.OrderBook

	pendingTrade   [2]bool
	tradeSequences [2]uint32
}

func NewInformationPublisher(ring *pubsub.Ring, etfBook, futureBook *engine.OrderBook, log zerolog.Logger) *InformationPublisher {
	p := &InformationPublisher{
		ring:           ring,
		log:            log,
		tradeSequences: [2]uint32{1, 1},
	}
	p.books[engine.InstrumentFuture] = futureBook
	p.books[engine.InstrumentETF] = etfBook
	return p
}

// OnTick publishes an ORDER_BOOK_UPDATE datagram for every instrument,
// sequenced by the shared tick number.
func (p *InformationPublisher) OnTick(tickNumber uint32) {
	for instrument, book := range p.books {
		askPx, askVol, bidPx, bidVol := book.TopLevels()
		frame := EncodeDatagram(TypeOrderBookUpdate, engine.Instrument(instrument), tickNumber, askPx, askVol, bidPx, bidVol)
		if err := p.ring.Write(frame); err != nil {
			p.log.Warn().Err(err).Msg("information: order book update dropped")
		}
	}
}

// OnTrade marks the given instrument as having traded this turn. Safe to
// call more than once per turn; only the first call per turn has any
// effect, matching the reference's call_soon coalescing.
func (p *InformationPublisher) OnTrade(instrument engine.Instrument) {
	p.pendingTrade[instrument] = true
}

// FlushTradeTicks sends one TRADE_TICKS datagram for every instrument
// marked pending since the last flush. The controller calls this once at
// the end of every event-loop turn, after market-event and client-message
// dispatch are both done.
func (p *InformationPublisher) FlushTradeTicks() {
	for i := range p.pendingTrade {
		if !p.pendingTrade[i] {
			continue
		}
		p.pendingTrade[i] = false

		instrument := engine.Instrument(i)
		book := p.books[instrument]
		askPx, askVol, bidPx, bidVol, any := book.TradeTicks()
		if !any {
			continue
		}
		p.tradeSequences[instrument]++
		frame := EncodeDatagram(TypeTradeTicks, instrument, p.tradeSequences[instrument], askPx, askVol, bidPx, bidVol)
		if err := p.ring.Write(frame); err != nil {
			p.log.Warn().Err(err).Msg("information: trade ticks dropped")
		}
	}
}
