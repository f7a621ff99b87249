// Package scoreboard is the per-tick, per-competitor account summary CSV,
// plus a terminal Breach row for a competitor that hard-breaches. Like
// matchevents, it is a goroutine-owned file drained from a buffered
// channel; the channel holds 1024 rows, and Record blocks while it is full.
package scoreboard

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// Record is one row of the score-board CSV.
type Record struct {
	Time           float64
	Team           string
	Operation      string // a tick sequence number as a string, or "Breach"
	BuyVolume      int64
	SellVolume     int64
	EtfPosition    int64
	FuturePosition int64
	EtfPrice       int64
	FuturePrice    int64
	TotalFees      int64
	AccountBalance int64
	ProfitOrLoss   int64
	Status         string // Ok, Breach
}

// Recorder is the sink competitors write score rows through.
type Recorder interface {
	Record(Record)
}

var header = []string{
	"Time", "Team", "Operation", "BuyVolume", "SellVolume", "EtfPosition",
	"FuturePosition", "EtfPrice", "FuturePrice", "TotalFees",
	"AccountBalance", "ProfitOrLoss", "Status",
}

// Writer owns the score-board CSV file and its draining goroutine.
type Writer struct {
	records chan Record
	done    chan struct{}
}

// NewWriter opens path (truncating) and starts the draining goroutine.
func NewWriter(t *tomb.Tomb, path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("opening score board file: %w", err)
	}

	w := &Writer{
		records: make(chan Record, 1024),
		done:    make(chan struct{}),
	}

	t.Go(func() error {
		defer close(w.done)
		defer f.Close()

		cw := csv.NewWriter(f)
		if err := cw.Write(header); err != nil {
			log.Error().Err(err).Msg("score board: writing header")
			return err
		}

		for rec := range w.records {
			row := []string{
				fmt.Sprintf("%.6f", rec.Time),
				rec.Team,
				rec.Operation,
				fmt.Sprintf("%d", rec.BuyVolume),
				fmt.Sprintf("%d", rec.SellVolume),
				fmt.Sprintf("%d", rec.EtfPosition),
				fmt.Sprintf("%d", rec.FuturePosition),
				fmt.Sprintf("%d", rec.EtfPrice),
				fmt.Sprintf("%d", rec.FuturePrice),
				fmt.Sprintf("%d", rec.TotalFees),
				fmt.Sprintf("%d", rec.AccountBalance),
				fmt.Sprintf("%d", rec.ProfitOrLoss),
				rec.Status,
			}
			if err := cw.Write(row); err != nil {
				log.Error().Err(err).Msg("score board: writing row")
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})

	return w, nil
}

// Record enqueues a row.
func (w *Writer) Record(rec Record) {
	w.records <- rec
}

// Finish signals end of input and blocks until flushed and closed.
func (w *Writer) Finish() {
	close(w.records)
	<-w.done
}
