// Package rabbitmq publishes lifecycle events to a durable RabbitMQ queue
// and keeps the connection alive across broker restarts.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/events"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrNotConnected = errors.New("rabbitmq: not connected")
	ErrClosed       = errors.New("rabbitmq: publisher closed")
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const (
	DefaultQueue     = "notifications"
	DefaultHeartbeat = 60 * time.Second
)

type Config struct {
	URL       string
	Queue     string
	Heartbeat time.Duration

	// Reconnect backoff bounds. Retries never give up; Close stops them.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	Logger *slog.Logger

	// OnStateChange is called after every transition, outside any lock.
	OnStateChange func(State)

	// Dial defaults to DialAMQP.
	Dial Dialer
}

// Publisher owns one broker connection for the life of the process.
type Publisher struct {
	cfg Config
	log *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	closeOnce sync.Once
	ready     chan struct{}
	readyOnce sync.Once
	wg        sync.WaitGroup

	mu    sync.RWMutex
	state State
	conn  Connection
	ch    Channel
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(cfg Config) *Publisher {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 30 * time.Second
	}
	if cfg.Dial == nil {
		cfg.Dial = DialAMQP
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Publisher{
		cfg:    cfg,
		log:    log.With("component", "rabbitmq", "queue", cfg.Queue),
		ctx:    ctx,
		cancel: cancel,
		ready:  make(chan struct{}),
		state:  StateDisconnected,
	}
}

func (p *Publisher) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Connect starts the connection loop on first call and waits until the
// first connection is up or ctx is done. The loop keeps retrying in the
// background either way; later and concurrent calls only wait.
func (p *Publisher) Connect(ctx context.Context) error {
	if p.ctx.Err() != nil {
		return ErrClosed
	}

	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.run()
	})

	select {
	case <-p.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrClosed
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()

	for {
		conn, ch, err := p.dialWithRetry()
		if err != nil {
			return // closed while dialling
		}
		if !p.setConnected(conn, ch) {
			_ = ch.Close()
			_ = conn.Close()
			return
		}
		p.readyOnce.Do(func() { close(p.ready) })
		p.log.Info("connected to rabbitmq")

		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chanClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-p.ctx.Done():
			return
		case amqpErr := <-connClosed:
			p.lost("connection", amqpErr)
		case amqpErr := <-chanClosed:
			p.lost("channel", amqpErr)
		}

		_ = ch.Close()
		_ = conn.Close()
	}
}

func (p *Publisher) lost(what string, amqpErr *amqp.Error) {
	if p.ctx.Err() != nil {
		return
	}
	attrs := []any{slog.String("lost", what)}
	if amqpErr != nil {
		attrs = append(attrs, slog.Any("error", amqpErr))
	}
	p.log.Warn("connection to rabbitmq lost", attrs...)

	p.mu.Lock()
	p.conn, p.ch = nil, nil
	changed := p.transitionLocked(StateDisconnected)
	p.mu.Unlock()
	p.notify(changed)
}

func (p *Publisher) dialWithRetry() (Connection, Channel, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialInterval
	b.MaxInterval = p.cfg.MaxInterval
	b.MaxElapsedTime = 0

	var (
		conn Connection
		ch   Channel
	)
	op := func() error {
		p.setState(StateConnecting)

		var err error
		conn, ch, err = p.dial()
		if err != nil {
			p.setState(StateDisconnected)
		}
		return err
	}
	onRetry := func(err error, wait time.Duration) {
		p.log.Error("rabbitmq connect failed, retrying", slog.Any("error", err), slog.Duration("wait", wait))
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, p.ctx), onRetry); err != nil {
		return nil, nil, err
	}
	if p.ctx.Err() != nil {
		if ch != nil {
			_ = ch.Close()
		}
		if conn != nil {
			_ = conn.Close()
		}
		return nil, nil, p.ctx.Err()
	}
	return conn, ch, nil
}

func (p *Publisher) dial() (Connection, Channel, error) {
	conn, err := p.cfg.Dial(p.cfg.URL, amqp.Config{
		Heartbeat: p.cfg.Heartbeat,
		Locale:    "en_US",
		Properties: amqp.Table{
			"connection_name": "accounts",
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(p.cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare queue %q: %w", p.cfg.Queue, err)
	}
	return conn, ch, nil
}

func (p *Publisher) setConnected(conn Connection, ch Channel) bool {
	p.mu.Lock()
	if p.ctx.Err() != nil {
		p.mu.Unlock()
		return false
	}
	p.conn, p.ch = conn, ch
	changed := p.transitionLocked(StateConnected)
	p.mu.Unlock()

	p.notify(changed)
	return true
}

func (p *Publisher) setState(s State) {
	p.mu.Lock()
	changed := p.transitionLocked(s)
	p.mu.Unlock()
	p.notify(changed)
}

// transitionLocked refuses to leave Closing or Closed except for
// Closing -> Closed.
func (p *Publisher) transitionLocked(s State) bool {
	if p.state == s {
		return false
	}
	if p.state == StateClosed || (p.state == StateClosing && s != StateClosed) {
		return false
	}
	p.state = s
	return true
}

func (p *Publisher) notify(changed bool) {
	if changed && p.cfg.OnStateChange != nil {
		p.cfg.OnStateChange(p.State())
	}
}

// Publish sends e to the queue through the default exchange. It fails fast
// with ErrNotConnected while the connection is down; nothing is buffered.
func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	body, err := events.Marshal(e)
	if err != nil {
		return err
	}

	p.mu.RLock()
	state, ch := p.state, p.ch
	p.mu.RUnlock()

	if state != StateConnected || ch == nil {
		return ErrNotConnected
	}

	err = ch.PublishWithContext(ctx, "", p.cfg.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         string(e.Kind()),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", e.Kind(), err)
	}

	p.log.Debug("event published", slog.String("type", string(e.Kind())))
	return nil
}

// Close stops reconnecting and closes the connection. It is safe to call
// more than once and before Connect.
func (p *Publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.setState(StateClosing)
		p.cancel()
		p.wg.Wait()

		p.mu.Lock()
		conn, ch := p.conn, p.ch
		p.conn, p.ch = nil, nil
		p.mu.Unlock()

		if ch != nil {
			_ = ch.Close()
		}
		if conn != nil {
			err = conn.Close()
			if errors.Is(err, amqp.ErrClosed) {
				err = nil
			}
			p.log.Info("connection to rabbitmq closed")
		}
		p.setState(StateClosed)
	})
	return err
}
