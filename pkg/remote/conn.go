// Package remote bridges a browser tab's location.hash to a server-side
// hash.Controller over a websocket.
//
// The browser opens a websocket, sends a hello with its current hash and
// then reports every hashchange. The server mirrors the hash in a Location
// that a Controller can own; when the controller writes, the new hash is sent
// back as a sethash message.
//
//	conn, hello, err := remote.Accept(ws, remote.DefaultConfig(), logger)
//	ctrl := hash.New(conn.Location(), hash.WithOnChange(func(ch hash.Change) {
//		_ = conn.SendChange(ch)
//	}))
//	ctrl.Enable()
//	ctrl.Check()
//	err = conn.Run(ctx)
//
// All inbound events are applied on the goroutine running Run, so the
// controller never sees concurrent calls.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/vango-dev/hashsync/internal/errors"
	"github.com/vango-dev/hashsync/pkg/hash"
)

// Config configures a connection.
type Config struct {
	// HandshakeTimeout bounds the wait for the hello message.
	HandshakeTimeout time.Duration

	// ReadTimeout closes idle connections. Zero disables it.
	ReadTimeout time.Duration

	// WriteTimeout bounds each write.
	WriteTimeout time.Duration

	// MaxMessageBytes is the largest accepted frame.
	MaxMessageBytes int64

	// EventsPerSecond limits hashchange reports per connection. Zero means
	// unlimited.
	EventsPerSecond float64

	// Burst is the limiter's bucket size.
	Burst int

	// TracerName names the OpenTelemetry tracer (default: "hashsync").
	TracerName string

	// Observer receives error counts. Optional.
	Observer ErrorObserver

	// Session is the id to resume when the hello carries none, for example
	// from a ?session= query parameter.
	Session string
}

// ErrorObserver counts bridge errors; *metrics.Collector implements it.
type ErrorObserver interface {
	WebSocketError(errorType string)
}

// DefaultConfig returns the default connection settings.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      0,
		WriteTimeout:     10 * time.Second,
		MaxMessageBytes:  8 << 10,
		EventsPerSecond:  20,
		Burst:            40,
		TracerName:       "hashsync",
	}
}

// Conn is one bridged browser tab.
type Conn struct {
	id      string
	ws      *websocket.Conn
	config  Config
	loc     *Location
	limiter *rate.Limiter
	tracer  trace.Tracer
	logger  *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Accept performs the hello handshake on an upgraded websocket. The session
// id is taken from the hello when it is a valid UUID and generated
// otherwise. On error the websocket is closed.
func Accept(ws *websocket.Conn, config Config, logger *slog.Logger) (*Conn, ClientMessage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.TracerName == "" {
		config.TracerName = "hashsync"
	}
	if config.MaxMessageBytes > 0 {
		ws.SetReadLimit(config.MaxMessageBytes)
	}
	if config.HandshakeTimeout > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(config.HandshakeTimeout))
	}

	c := &Conn{
		ws:     ws,
		config: config,
		tracer: otel.Tracer(config.TracerName),
	}
	if config.EventsPerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.EventsPerSecond), burst)
	}

	_, data, err := ws.ReadMessage()
	if err != nil {
		c.observe("handshake")
		ws.Close()
		return nil, ClientMessage{}, fmt.Errorf("remote: handshake read: %w", err)
	}
	hello, err := DecodeClientMessage(data)
	if err == nil && hello.Type != TypeHello {
		err = errors.New("H400").WithDetailf("expected hello, got %q", hello.Type)
	}
	if err != nil {
		c.observe("handshake")
		_ = c.SendError(err)
		c.Close()
		return nil, ClientMessage{}, err
	}
	_ = ws.SetReadDeadline(time.Time{})

	requested := hello.Session
	if requested == "" {
		requested = config.Session
	}
	c.id = uuid.NewString()
	if id, err := uuid.Parse(requested); err == nil {
		c.id = id.String()
	}
	c.logger = logger.With("session_id", c.id)
	c.loc = newLocation(hello.Hash, c.sendHash)

	c.logger.Info("remote connected", "hash", c.loc.Hash(), "resumed", requested != "" && requested == c.id)
	return c, hello, nil
}

// ID returns the session id.
func (c *Conn) ID() string {
	return c.id
}

// Location returns the mirrored browser location.
func (c *Conn) Location() *Location {
	return c.loc
}

// Welcome tells the browser its session id and the server's view of the
// hash.
func (c *Conn) Welcome() error {
	return c.send(ServerMessage{Type: TypeWelcome, Session: c.id, Hash: hashPtr(c.loc.Hash())})
}

// SendChange forwards a controller notification to the browser.
func (c *Conn) SendChange(ch hash.Change) error {
	return c.send(ServerMessage{
		Type:     TypeChange,
		Previous: ch.Previous,
		Data:     ch.Data,
		Diff:     ch.Diff,
	})
}

// SendError reports err to the browser. Coded errors keep their code;
// anything else is sent as H400.
func (c *Conn) SendError(err error) error {
	code := errors.Code(err)
	if code == "" {
		code = errors.ErrProtocol.Code
	}
	return c.send(ServerMessage{Type: TypeError, Code: code, Error: err.Error()})
}

func (c *Conn) sendHash(s string) error {
	return c.send(ServerMessage{Type: TypeSetHash, Hash: hashPtr(s)})
}

func (c *Conn) send(msg ServerMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.config.WriteTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err := c.ws.WriteJSON(msg); err != nil {
		c.observe("write")
		return fmt.Errorf("remote: write %s: %w", msg.Type, err)
	}
	return nil
}

// Run reads browser reports until the connection closes or ctx is done. A
// normal close returns nil.
func (c *Conn) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	for {
		if c.config.ReadTimeout > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("remote disconnected")
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseAbnormalClosure) {
				c.logger.Error("read error", "error", err)
			}
			c.observe("read")
			return fmt.Errorf("remote: read: %w", err)
		}
		c.handle(ctx, data)
	}
}

func (c *Conn) handle(ctx context.Context, data []byte) {
	_, span := c.tracer.Start(ctx, "hashsync.hashchange",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("hashsync.session_id", c.id),
			attribute.Int("hashsync.message_bytes", len(data)),
		),
	)
	defer span.End()

	msg, err := DecodeClientMessage(data)
	if err == nil && msg.Type != TypeHashChange {
		err = errors.New("H400").WithDetailf("unexpected %q after handshake", msg.Type)
	}
	if err != nil {
		c.logger.Warn("bad message", "error", err)
		c.observe("decode")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		_ = c.SendError(err)
		return
	}

	if c.limiter != nil && !c.limiter.Allow() {
		err := errors.New("H400").WithDetail("too many hash changes").
			WithSuggestion("Slow down hash updates or raise server.eventsPerSecond")
		c.observe("rate_limit")
		span.SetStatus(codes.Error, "rate limited")
		_ = c.SendError(err)
		return
	}

	span.SetAttributes(attribute.String("hashsync.hash", msg.Hash))
	c.loc.report(msg.Hash)
	span.SetStatus(codes.Ok, "")
}

// Close sends a close frame and closes the websocket. It is safe to call
// more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		c.ws.Close()
	})
}

func (c *Conn) observe(errorType string) {
	if c.config.Observer != nil {
		c.config.Observer.WebSocketError(errorType)
	}
}
