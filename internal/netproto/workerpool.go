package netproto

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 256

// WorkerFunction processes one queued task (a connection ready for its
// next frame). Returning an error is fatal to the whole pool.
type WorkerFunction func(t *tomb.Tomb, task any) error

// WorkerPool bounds how many connections may be blocked in a read at once.
// Each worker pulls one task, runs it to completion, and goes back for the
// next; serveConnection re-enqueues its own connection once it has
// dispatched a frame, so a small pool cycles across many long-lived
// connections.
type WorkerPool struct {
	n     int
	tasks chan any
}

func NewWorkerPool(size int) WorkerPool {
	return WorkerPool{tasks: make(chan any, taskChanSize), n: size}
}

func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Setup starts pool.n supervised workers and blocks until t is dying.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	log.Info().Int("workers", pool.n).Msg("execution server: starting worker pool")
	for i := 0; i < pool.n; i++ {
		t.Go(func() error {
			return pool.worker(t, work)
		})
	}
	<-t.Dying()
}

func (pool *WorkerPool) worker(t *tomb.Tomb, work WorkerFunction) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Msg("execution server: worker exiting")
				return err
			}
		}
	}
}
