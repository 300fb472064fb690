// Package wire also hosts Server: the TCP front end a host would use to
// drive a Market over the wire. It is grounded on the teacher's
// internal/net/server.go (tomb.v2 supervision tree, zerolog logging, a
// worker pool reading connections) generalized from a single hard-coded
// order-placement message to the Market operations a client can send
// (initialize is done once by the server binary, not over the wire), and with the
// now-missing internal/utils.WorkerPool reimplemented locally (pool.go)
// rather than left as a broken import.
//
// The real host executes one transaction at a time against program state
// (spec §5's transaction-serial model); Server reproduces that by holding a
// single mutex around every Market call, even though several worker
// goroutines may be reading connections concurrently.
package wire

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"clob/internal/common"
	"clob/internal/market"
	"clob/internal/sink"
)

const (
	MaxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 5 * time.Second
)

// clientMessage links a parsed request to the connection it arrived on.
type clientMessage struct {
	conn net.Conn
	req  Request
}

// Server drives a single Market over a TCP framing. Multiple markets would
// mean one Server (and one port) per market, or a MarketID prefix on every
// frame; out of scope for this harness.
type Server struct {
	address string
	port    int
	m       *market.Market
	timeSrc func() int64

	marketMu sync.Mutex // serializes every call into m, per spec §5

	pool   WorkerPool
	cancel context.CancelFunc

	sessionsMu sync.Mutex
	sessions   map[string]net.Conn // owner -> connection

	inbox chan clientMessage
}

// New constructs a Server fronting an already-initialized market. timeSrc
// supplies PlaceLimitOrder's timestamp (injectable for tests; production
// callers pass time.Now().UnixNano()).
func New(address string, port int, m *market.Market, timeSrc func() int64) *Server {
	return &Server{
		address:  address,
		port:     port,
		m:        m,
		timeSrc:  timeSrc,
		pool:     NewWorkerPool(defaultNWorkers),
		sessions: make(map[string]net.Conn),
		inbox:    make(chan clientMessage, 1),
	}
}

// Shutdown cancels the server's context, tearing down the listener, the
// worker pool and the session handler together.
func (s *Server) Shutdown() {
	log.Info().Msg("wire server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run blocks, accepting connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return err
	}
	// Closing the listener is what unblocks Accept once ctx is cancelled.
	stopClose := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer func() {
		if !stopClose() {
			return
		}
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("error closing listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	t.Go(func() error {
		return s.messageLoop(t)
	})

	log.Info().Str("address", listener.Addr().String()).Msg("wire server listening")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error().Err(err).Msg("error accepting connection")
				continue
			}
			s.pool.AddTask(conn)
		}
	}
}

// messageLoop drains parsed requests and dispatches them against the
// market, one at a time.
func (s *Server) messageLoop(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case cm := <-s.inbox:
			report := s.dispatch(cm.req)
			if _, err := cm.conn.Write(report.Serialize()); err != nil {
				log.Error().Err(err).Msg("error writing report to client")
			}
		}
	}
}

// dispatch runs one request against the market under marketMu and turns the
// result into a Report. Every request gets a correlation id purely for log
// correlation across the accept/dispatch goroutines, the same role the
// teacher gives Order.UUID.
func (s *Server) dispatch(req Request) Report {
	correlationID := uuid.New()
	log.Debug().Str("correlationID", correlationID.String()).Int("type", int(req.Type)).Msg("dispatching request")

	s.marketMu.Lock()
	defer s.marketMu.Unlock()

	switch req.Type {
	case OpDeposit:
		if err := s.m.Deposit(req.Owner, req.BalanceSide, req.Amount); err != nil {
			return errorReport(err)
		}
		return Report{Type: ReportAck}

	case OpWithdraw:
		if err := s.m.Withdraw(req.Owner, req.BalanceSide, req.Amount); err != nil {
			return errorReport(err)
		}
		return Report{Type: ReportAck}

	case OpPlaceLimitOrder:
		result, err := s.m.PlaceLimitOrder(req.Owner, req.OrderSide, req.Price, req.Quantity, req.TIF, s.timeSrc())
		if err != nil {
			return errorReport(err)
		}
		return Report{Type: ReportAck, Quantity: result.FilledQuantity, Price: req.Price}

	case OpCancelOrder:
		if err := s.m.CancelOrder(req.OrderID, req.OrderSide, req.Owner); err != nil {
			return errorReport(err)
		}
		return Report{Type: ReportAck}

	case OpConsumeEvents:
		consumed, err := s.m.ConsumeEvents(int(req.Limit), req.MakerOwners)
		if err != nil {
			return errorReport(err)
		}
		return Report{Type: ReportAck, Quantity: uint64(consumed)}

	case OpListMarkets:
		return Report{Type: ReportAck}

	default:
		return errorReport(ErrInvalidMessageType)
	}
}

// handleConnection reads exactly one frame, parses and registers the
// session by owner, forwards it to messageLoop, then re-queues the
// connection so the next frame gets picked up by a (possibly different)
// worker. Mirrors the teacher's read-one-frame-then-requeue shape in
// internal/net/server.go's handleConnection.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return common.ErrInvalidParameter
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Msg("failed setting connection deadline")
		_ = conn.Close()
		return nil
	}

	buf := make([]byte, MaxRecvSize)
	select {
	case <-t.Dying():
		return nil
	default:
	}

	n, err := conn.Read(buf)
	if err != nil {
		log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("connection closed")
		s.dropSession(conn)
		return nil
	}

	req, err := ParseMessage(buf[:n])
	if err != nil {
		log.Error().Err(err).Msg("error parsing message")
		_, _ = conn.Write(errorReport(err).Serialize())
		s.pool.AddTask(conn)
		return nil
	}

	if req.Owner != "" {
		s.addSession(req.Owner, conn)
	}

	s.inbox <- clientMessage{conn: conn, req: req}
	s.pool.AddTask(conn)
	return nil
}

func (s *Server) addSession(owner string, conn net.Conn) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[owner] = conn
}

func (s *Server) dropSession(conn net.Conn) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	for owner, c := range s.sessions {
		if c == conn {
			delete(s.sessions, owner)
		}
	}
}

// Sink implementation: Server pushes unsolicited fill reports to connected
// counterparties as they're produced, independent of whichever request
// happened to trigger them. Matches the teacher's ReportTrade pattern of
// notifying both sides of a match, not just the caller.

var _ sink.Sink = (*Server)(nil)

func (s *Server) MarketInitialized(ev sink.MarketInitialized) {
	log.Info().
		Str("baseMint", ev.BaseMint).
		Str("quoteMint", ev.QuoteMint).
		Msg("market initialized")
}

func (s *Server) OrderPlaced(ev sink.OrderPlaced) {
	log.Info().
		Uint64("orderID", ev.OrderID).
		Str("owner", ev.Owner).
		Msg("order placed")
}

func (s *Server) OrderFilled(ev sink.OrderFilled) {
	report := Report{Type: ReportFilled, Quantity: ev.Quantity, Price: ev.Price}
	s.notify(ev.MakerOwner, report)
	s.notify(ev.TakerOwner, report)
}

func (s *Server) OrderCancelled(ev sink.OrderCancelled) {
	log.Info().
		Uint64("orderID", ev.OrderID).
		Str("owner", ev.Owner).
		Uint64("remaining", ev.RemainingQuantity).
		Msg("order cancelled")
}

func (s *Server) notify(owner string, report Report) {
	s.sessionsMu.Lock()
	conn, ok := s.sessions[owner]
	s.sessionsMu.Unlock()
	if !ok {
		return
	}
	if _, err := conn.Write(report.Serialize()); err != nil {
		log.Error().Err(err).Str("owner", owner).Msg("error notifying client of fill")
	}
}
