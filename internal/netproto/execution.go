package netproto

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"fenrir/internal/competitor"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

const (
	loginTimeout   = 1 * time.Second
	connectionPool = 32
)

// Request is one decoded client message handed off to the controller's
// single-threaded main loop for dispatch. Framing, login, and the
// connection-level protocol-error taxonomy are all resolved before a
// Request ever reaches the channel -- the controller only ever sees
// requests bound to an already-authenticated competitor. Decoded is one of
// InsertOrderRequest, AmendOrderRequest, CancelOrderRequest, or
// HedgeOrderRequest, already decoded.
type Request struct {
	Competitor *competitor.Competitor
	Type       MessageType
	Decoded    any
}

// ExecutionServer accepts TCP connections on the execution port, runs the
// login handshake, and feeds decoded requests from every logged-in
// connection into a single shared channel for the controller to drain.
type ExecutionServer struct {
	addr    string
	manager *competitor.Manager
	inbound chan Request
	log     zerolog.Logger
	pool    WorkerPool
}

func NewExecutionServer(host string, port int, manager *competitor.Manager, log zerolog.Logger) *ExecutionServer {
	return &ExecutionServer{
		addr:    fmt.Sprintf("%s:%d", host, port),
		manager: manager,
		inbound: make(chan Request, 256),
		log:     log,
		pool:    NewWorkerPool(connectionPool),
	}
}

// Inbound is the channel the controller drains on every turn of its event
// loop.
func (s *ExecutionServer) Inbound() <-chan Request { return s.inbound }

// Run accepts connections until t is dying. Each accepted connection first
// runs its own login handshake synchronously (bounded by loginTimeout),
// then is handed to the worker pool as a task: a worker reads exactly one
// frame per turn and requeues the connection, so a small fixed pool bounds
// how many connections may be blocked in a read at once regardless of how
// many traders are connected.
func (s *ExecutionServer) Run(t *tomb.Tomb) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("execution server: listen: %w", err)
	}
	s.log.Info().Str("addr", s.addr).Msg("execution server: listening")

	t.Go(func() error {
		s.pool.Setup(t, s.serveConnection)
		return nil
	})

	t.Go(func() error {
		<-t.Dying()
		return listener.Close()
	})

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-t.Dying():
				return nil
			default:
				return fmt.Errorf("execution server: accept: %w", err)
			}
		}
		t.Go(func() error {
			s.login(conn)
			return nil
		})
	}
}

// login runs the handshake for one freshly-accepted connection. On success
// it registers the connection with the worker pool for ongoing frame
// dispatch; any protocol violation here closes the connection silently, per
// the protocol-error taxonomy.
func (s *ExecutionServer) login(conn net.Conn) {
	sessionID := uuid.NewString()
	log := s.log.With().Str("session", sessionID).Logger()

	conn.SetDeadline(time.Now().Add(loginTimeout))
	typ, body, err := readFrame(conn)
	if err != nil {
		log.Debug().Err(err).Msg("execution: login read failed")
		conn.Close()
		return
	}
	if typ != TypeLogin {
		log.Debug().Msg("execution: first message was not LOGIN")
		conn.Close()
		return
	}
	req, err := DecodeRequest(typ, body)
	if err != nil {
		log.Debug().Err(err).Msg("execution: malformed LOGIN")
		conn.Close()
		return
	}
	loginReq := req.(LoginRequest)

	c := &connection{conn: conn, log: log}
	comp, ok := s.manager.Login(loginReq.Name, loginReq.Secret, c)
	if !ok {
		log.Debug().Str("name", loginReq.Name).Msg("execution: login rejected")
		conn.Close()
		return
	}
	c.competitor = comp
	conn.SetDeadline(time.Time{})
	log.Info().Str("competitor", loginReq.Name).Msg("execution: logged in")

	s.pool.AddTask(c)
}

// serveConnection is the worker pool's WorkerFunction: it reads exactly one
// frame from the connection's task, dispatches or closes, and -- if the
// connection is still good -- requeues itself for the next frame.
func (s *ExecutionServer) serveConnection(t *tomb.Tomb, task any) error {
	c := task.(*connection)

	typ, body, err := readFrame(c.conn)
	if err != nil {
		s.close(c)
		return nil
	}
	if typ == TypeLogin {
		c.log.Debug().Msg("execution: second LOGIN, closing")
		s.close(c)
		return nil
	}
	decoded, err := DecodeRequest(typ, body)
	if err != nil {
		c.log.Debug().Err(err).Msg("execution: malformed or unknown message, closing")
		s.close(c)
		return nil
	}

	select {
	case s.inbound <- Request{Competitor: c.competitor, Type: typ, Decoded: decoded}:
	case <-t.Dying():
		return nil
	}

	s.pool.AddTask(c)
	return nil
}

func (s *ExecutionServer) close(c *connection) {
	s.manager.Logout(c.competitor.Name)
	c.conn.Close()
}

// readFrame reads one complete message: the 3-byte header, then exactly as
// many body bytes as the header declares.
func readFrame(conn net.Conn) (MessageType, []byte, error) {
	header := make([]byte, HeaderLen)
	if _, err := io.ReadFull(conn, header); err != nil {
		return 0, nil, err
	}
	total := binary.BigEndian.Uint16(header[0:2])
	if int(total) < HeaderLen {
		return 0, nil, ErrFrameTooShort
	}
	typ := MessageType(header[2])

	body := make([]byte, int(total)-HeaderLen)
	if _, err := io.ReadFull(conn, body); err != nil {
		return 0, nil, err
	}
	return typ, body, nil
}

// connection is the competitor.ReplySink for one TCP connection. Writes are
// serialized under mu.
type connection struct {
	conn       net.Conn
	competitor *competitor.Competitor
	log        zerolog.Logger

	mu sync.Mutex
}

func (c *connection) SendError(coid uint32, reason string) {
	c.write(EncodeError(coid, reason))
}

func (c *connection) SendOrderStatus(coid uint32, fillVolume, remainingVolume uint32, fees int64) {
	c.write(EncodeOrderStatus(coid, fillVolume, remainingVolume, fees))
}

func (c *connection) SendOrderFilled(coid uint32, price int64, volume uint32) {
	c.write(EncodeOrderFilled(coid, price, volume))
}

func (c *connection) SendHedgeFilled(coid uint32, avgPrice int64, volume uint32) {
	c.write(EncodeHedgeFilled(coid, avgPrice, volume))
}

func (c *connection) Close() {
	c.conn.Close()
}

func (c *connection) write(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.conn.Write(frame); err != nil {
		c.log.Debug().Err(err).Msg("execution: write failed")
	}
}
