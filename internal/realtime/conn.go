package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/tastelab-backend/internal/domain"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
)

// Client is one authenticated socket. It implements Peer.
type Client struct {
	ID       uuid.UUID
	Identity types.UserSummary

	conn     *websocket.Conn
	cfg      Config
	outbound chan Message
	done     chan struct{}
	once     sync.Once
	logger   *logger.Logger
}

func newClient(conn *websocket.Conn, identity types.UserSummary, cfg Config, log *logger.Logger) *Client {
	id := uuid.New()
	return &Client{
		ID:       id,
		Identity: identity,
		conn:     conn,
		cfg:      cfg,
		outbound: make(chan Message, cfg.OutboundBuffer),
		done:     make(chan struct{}),
		logger:   log.With("conn_id", id, "user_id", identity.ID),
	}
}

func (c *Client) ConnID() uuid.UUID { return c.ID }

// Send queues msg without blocking. It returns false once the client is
// closed or when the outbound buffer is full.
func (c *Client) Send(msg Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.outbound <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// run drives the read pump, the dispatch loop and the write pump until any
// of them stops. The connection is closed on return.
func (c *Client) run(ctx context.Context, dispatch func(ctx context.Context, msg Message)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.close()

	inbound := make(chan Message, c.cfg.InboundBuffer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		defer close(inbound)
		return c.readPump(gctx, inbound)
	})
	g.Go(func() error {
		defer cancel()
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg, ok := <-inbound:
				if !ok {
					return nil
				}
				dispatch(gctx, msg)
			}
		}
	})
	g.Go(func() error {
		defer cancel()
		// closing the socket unblocks the reader once any pump stops
		defer c.close()
		return c.writePump(gctx)
	})
	return g.Wait()
}

func (c *Client) readPump(ctx context.Context, inbound chan<- Message) error {
	c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			select {
			case <-c.done:
				return nil
			default:
			}
			return err
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
			c.logger.Debug("Ignoring malformed realtime frame", "error", err)
			c.Send(errorMessage("", "invalid_message", "frame must be {\"event\",\"data\"} JSON"))
			continue
		}
		select {
		case inbound <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) writePump(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteTimeout),
			)
			return nil
		case msg := <-c.outbound:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return c.writeErr(err)
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				return c.writeErr(err)
			}
		}
	}
}

func (c *Client) writeErr(err error) error {
	select {
	case <-c.done:
		return nil
	default:
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

func errorMessage(event EventType, code, message string) Message {
	msg, _ := NewMessage(EventError, ErrorPayload{Event: event, Code: code, Message: message})
	return msg
}
