// Package matchevents is the append-only audit trail of everything that
// happens to orders: inserts, amends, cancels, hedges and trades. A single
// writer goroutine drains a buffered channel and serialises rows to CSV, so
// the event-loop thread that produces events does not do the file I/O
// itself. The channel holds 1024 events; once it is full, Record blocks
// until the writer catches up.
package matchevents

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// Event is one row of the match-events CSV.
type Event struct {
	Time       float64
	Competitor string
	Operation  string // Insert, Cancel, Amend, Hedge, Trade
	OrderID    uint32
	Instrument string // Future, Etf
	Side       string // Buy, Sell, or empty
	Volume     uint32
	Price      int64
	Lifespan   string // FillAndKill, GoodForDay, or empty
	Fee        int64
}

// Recorder is the sink competitors emit events through. Implemented by
// *Writer.
type Recorder interface {
	Record(Event)
}

var header = []string{
	"Time", "Competitor", "Operation", "OrderId", "Instrument",
	"Side", "Volume", "Price", "Lifespan", "Fee",
}

// Writer owns the match-events CSV file and the goroutine that drains
// events onto it.
type Writer struct {
	events chan Event
	done   chan struct{}
}

// NewWriter opens path for writing (truncating any existing file) and
// starts the draining goroutine under t. Returns an error immediately if
// the file cannot be opened -- per the spec this is a fatal startup error,
// not something to recover from at runtime.
func NewWriter(t *tomb.Tomb, path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("opening match events file: %w", err)
	}

	w := &Writer{
		events: make(chan Event, 1024),
		done:   make(chan struct{}),
	}

	t.Go(func() error {
		defer close(w.done)
		defer f.Close()

		cw := csv.NewWriter(f)
		if err := cw.Write(header); err != nil {
			log.Error().Err(err).Msg("match events: writing header")
			return err
		}

		for evt := range w.events {
			row := []string{
				fmt.Sprintf("%.6f", evt.Time),
				evt.Competitor,
				evt.Operation,
				fmt.Sprintf("%d", evt.OrderID),
				evt.Instrument,
				evt.Side,
				fmt.Sprintf("%d", evt.Volume),
				fmt.Sprintf("%d", evt.Price),
				evt.Lifespan,
				fmt.Sprintf("%d", evt.Fee),
			}
			if err := cw.Write(row); err != nil {
				log.Error().Err(err).Msg("match events: writing row")
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})

	return w, nil
}

// Record enqueues an event. Safe to call from the single event-loop
// goroutine only (no internal locking -- there is exactly one producer).
func (w *Writer) Record(evt Event) {
	w.events <- evt
}

// Finish signals end of input and blocks until the writer goroutine has
// flushed and closed the file.
func (w *Writer) Finish() {
	close(w.events)
	<-w.done
}
