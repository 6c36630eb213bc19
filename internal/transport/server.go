package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/tomb.v2"

	"fenrir/internal/book"
	"fenrir/internal/domain"
	"fenrir/internal/orders"
	"fenrir/internal/position"
)

const (
	defaultNWorkers    = 10
	defaultReadTimeout = 30 * time.Second
)

// Engine is the subset of *orders.Manager the adapter drives. Declared as
// an interface, the way the teacher's internal/net/server.go narrows its
// dependency to an Engine interface instead of a concrete engine type.
type Engine interface {
	PlaceOrder(req orders.PlaceOrderRequest) (domain.Order, error)
	ModifyOrder(id string, req orders.ModifyRequest) (domain.Order, error)
	CancelOrder(id string) (domain.Order, error)
	GetOrder(id string) (domain.Order, error)
	ListUserOrders(userID string, status *domain.OrderStatus) []domain.Order
	GetOrderBookSnapshot(commodity domain.Commodity, depth int) (book.Snapshot, error)
	GetPortfolioSummary(userID string) position.PortfolioSummary
	GetTradeHistory(q orders.TradeHistoryQuery) []domain.Fill
}

// connMessage links a decoded request to the connection that sent it, the
// way the teacher's ClientMessage links a wire message to its client
// address.
type connMessage struct {
	conn net.Conn
	req  Request
}

// Server accepts TCP connections and dispatches newline-delimited JSON
// requests to an Engine, grounded on the teacher's
// internal/net/server.go + internal/worker.go tomb-supervised worker pool.
type Server struct {
	addr   string
	engine Engine

	pool     chan net.Conn
	messages chan connMessage
	nWorkers int

	cancel context.CancelFunc
}

// New builds a Server listening on addr.
func New(addr string, engine Engine) *Server {
	return &Server{
		addr:     addr,
		engine:   engine,
		pool:     make(chan net.Conn, 256),
		messages: make(chan connMessage, 256),
		nWorkers: defaultNWorkers,
	}
}

// Run accepts connections until ctx is cancelled or Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	defer listener.Close()

	for i := 0; i < s.nWorkers; i++ {
		t.Go(func() error { return s.connWorker(t) })
	}
	t.Go(func() error { return s.dispatchWorker(t) })

	t.Go(func() error {
		<-ctx.Done()
		return listener.Close()
	})

	log.Info().Str("addr", s.addr).Msg("transport server listening")
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return t.Wait()
			default:
				log.Error().Err(err).Msg("accept failed")
				continue
			}
		}
		select {
		case s.pool <- conn:
		case <-ctx.Done():
			conn.Close()
			return t.Wait()
		}
	}
}

// Shutdown signals Run to stop accepting and tears down the listener.
func (s *Server) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

// connWorker reads newline-delimited JSON requests from one connection at
// a time drawn off the pool channel, handing each decoded request to the
// dispatch worker, then returns the connection to the pool for its next
// message — mirroring the teacher's handleConnection/AddTask loop.
func (s *Server) connWorker(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case conn := <-s.pool:
			s.readOne(t, conn)
		}
	}
}

func (s *Server) readOne(t *tomb.Tomb, conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(defaultReadTimeout))
	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		conn.Close()
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		writeResponse(conn, Response{Error: fmt.Sprintf("malformed request: %v", err)})
		conn.Close()
		return
	}

	select {
	case s.messages <- connMessage{conn: conn, req: req}:
	case <-t.Dying():
		conn.Close()
	}
}

func (s *Server) dispatchWorker(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case m := <-s.messages:
			s.handle(m)
			select {
			case s.pool <- m.conn:
			case <-t.Dying():
				m.conn.Close()
			}
		}
	}
}

func (s *Server) handle(m connMessage) {
	resp := Response{ID: m.req.ID}
	data, err := dispatch(s.engine, m.req)
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Data = data
	}
	writeResponse(m.conn, resp)
}

func writeResponse(conn net.Conn, resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("failed encoding response")
		return
	}
	payload = append(payload, '\n')
	if _, err := conn.Write(payload); err != nil {
		log.Error().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("failed writing response")
	}
}
