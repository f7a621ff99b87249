// Package marketevents drives the synthetic background liquidity on both
// books from a scripted CSV file, read on a dedicated goroutine so the
// main event loop never blocks on file I/O.
package marketevents

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"fenrir/internal/engine"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// Operation names as they appear in the market-data CSV.
const (
	OpInsert = "Insert"
	OpAmend  = "Amend"
	OpCancel = "Cancel"
)

// Event is one scripted row: time, instrument, operation, order id, side,
// volume, price, lifespan.
type Event struct {
	Time       float64
	Instrument engine.Instrument
	Operation  string
	OrderID    uint32
	Side       engine.Side
	Volume     uint32
	Price      int64
	Lifespan   engine.Lifespan
}

// Reader streams scripted Events from a CSV file. The producer goroutine
// reads ahead into a bounded channel; DrainUpTo lets the controller pop
// events opportunistically without ever blocking the main loop.
type Reader struct {
	events  chan Event
	pending *Event
	closed  bool

	orders map[uint32]*engine.Order
}

// NewReader opens path and starts the producer goroutine under t. Returns
// an error immediately if the file cannot be opened, matching the fatal
// startup-I/O-error taxonomy in the error handling design.
func NewReader(t *tomb.Tomb, path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening market data file: %w", err)
	}

	r := &Reader{
		events: make(chan Event, 256),
		orders: make(map[uint32]*engine.Order),
	}

	t.Go(func() error {
		defer close(r.events)
		defer f.Close()

		cr := csv.NewReader(f)
		cr.FieldsPerRecord = 8
		if _, err := cr.Read(); err != nil { // header
			if err == io.EOF {
				return nil
			}
			log.Error().Err(err).Msg("market events: reading header")
			return err
		}

		for {
			select {
			case <-t.Dying():
				return nil
			default:
			}

			row, err := cr.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				log.Error().Err(err).Msg("market events: reading row")
				return err
			}

			evt, err := parseRow(row)
			if err != nil {
				log.Error().Err(err).Strs("row", row).Msg("market events: parsing row")
				continue
			}

			select {
			case r.events <- evt:
			case <-t.Dying():
				return nil
			}
		}
	})

	return r, nil
}

func parseRow(row []string) (Event, error) {
	t, err := strconv.ParseFloat(row[0], 64)
	if err != nil {
		return Event{}, fmt.Errorf("time: %w", err)
	}

	var instrument engine.Instrument
	switch row[1] {
	case "Future":
		instrument = engine.InstrumentFuture
	case "Etf":
		instrument = engine.InstrumentETF
	default:
		return Event{}, fmt.Errorf("unknown instrument %q", row[1])
	}

	orderID, err := strconv.ParseUint(row[3], 10, 32)
	if err != nil {
		return Event{}, fmt.Errorf("order id: %w", err)
	}

	var side engine.Side
	switch row[4] {
	case "Sell", "":
		side = engine.SideSell
	case "Buy":
		side = engine.SideBuy
	default:
		return Event{}, fmt.Errorf("unknown side %q", row[4])
	}

	volume, err := strconv.ParseUint(row[5], 10, 32)
	if err != nil {
		return Event{}, fmt.Errorf("volume: %w", err)
	}

	dollars, err := strconv.ParseFloat(row[6], 64)
	if err != nil {
		return Event{}, fmt.Errorf("price: %w", err)
	}
	price := int64(math.Round(dollars * 100))

	lifespan := engine.LifespanFillAndKill
	if row[7] == "Good For Day" {
		lifespan = engine.LifespanGoodForDay
	}

	return Event{
		Time:       t,
		Instrument: instrument,
		Operation:  row[2],
		OrderID:    uint32(orderID),
		Side:       side,
		Volume:     uint32(volume),
		Price:      price,
		Lifespan:   lifespan,
	}, nil
}

// fetch fills pending from the channel if empty, without blocking.
func (r *Reader) fetch() bool {
	if r.pending != nil {
		return true
	}
	select {
	case evt, ok := <-r.events:
		if !ok {
			r.closed = true
			return false
		}
		r.pending = &evt
		return true
	default:
		return false
	}
}

// DrainUpTo applies every buffered event whose Time is <= now, in order, to
// apply. Events beyond now, or simply not buffered yet, are left for a
// later call.
func (r *Reader) DrainUpTo(now float64, apply func(Event)) {
	for {
		if !r.fetch() {
			return
		}
		if r.pending.Time > now {
			return
		}
		evt := *r.pending
		r.pending = nil
		apply(evt)
	}
}

// Exhausted reports whether the stream is fully read and fully drained.
func (r *Reader) Exhausted() bool {
	return r.closed && r.pending == nil
}

// Track records a synthetic order this reader placed, so a later
// Amend/Cancel event referencing the same order id can find it.
func (r *Reader) Track(orderID uint32, order *engine.Order) {
	r.orders[orderID] = order
}

// Lookup finds a previously tracked synthetic order.
func (r *Reader) Lookup(orderID uint32) (*engine.Order, bool) {
	o, ok := r.orders[orderID]
	return o, ok
}

// Forget drops a synthetic order once it is fully consumed (filled or
// cancelled) so the tracking map does not grow unbounded over a long
// replay.
func (r *Reader) Forget(orderID uint32) {
	delete(r.orders, orderID)
}

// OnOrderPlaced implements engine.OrderListener. Synthetic orders have no
// listener-visible effect on placement.
func (r *Reader) OnOrderPlaced(order *engine.Order) {}

// OnOrderFilled implements engine.OrderListener.
func (r *Reader) OnOrderFilled(order *engine.Order, price int64, volume uint32, fee int64) {
	if order.Remaining == 0 {
		r.Forget(order.ClientOrderID)
	}
}

// OnOrderAmended implements engine.OrderListener.
func (r *Reader) OnOrderAmended(order *engine.Order, removedVolume uint32) {
	if order.Remaining == 0 {
		r.Forget(order.ClientOrderID)
	}
}

// OnOrderCancelled implements engine.OrderListener.
func (r *Reader) OnOrderCancelled(order *engine.Order, removedVolume uint32) {
	r.Forget(order.ClientOrderID)
}
