package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/gommon/log"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/theater-seat-reservation/internal/model"
)

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
    Close() error
}

// dialFunc opens a channel with the exchange declared and returns a closer
// for the underlying connection.  timeout bounds the TCP and AMQP handshake.
type dialFunc func(url string, timeout time.Duration) (channel, func() error, error)

// dialAttempt is one in-flight connect shared by every caller that finds
// the publisher disconnected.
type dialAttempt struct {
    done chan struct{}
    err  error
}

var (
    errPublisherClosed = errors.New("publisher closed")
    errConnReset       = errors.New("rabbitmq connection reset")
)

// Publisher sends booking lifecycle messages to the bookings exchange.  It
// implements reservation.Notifier: failures are logged and never reach the
// caller.  The connection is opened lazily and reopened after an error; a
// slow broker costs each caller at most the publish timeout.
type Publisher struct {
    url     string
    timeout time.Duration
    dial    dialFunc
    now     func() time.Time
    log     *log.Logger

    mu        sync.Mutex
    ch        channel
    closeConn func() error
    dialing   *dialAttempt
    closed    bool
}

func NewPublisher(url string) *Publisher {
    return &Publisher{
        url:     url,
        timeout: 5 * time.Second,
        dial:    dialAMQP,
        now:     time.Now,
        log:     log.New("queue"),
    }
}

func dialAMQP(url string, timeout time.Duration) (channel, func() error, error) {
    conn, err := amqp.DialConfig(url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(timeout),
    })
    if err != nil {
        return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
    }
    if err := ch.ExchangeDeclare(ExchangeName, ExchangeKind, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
    }
    return ch, conn.Close, nil
}

func (p *Publisher) BookingConfirmed(ctx context.Context, b *model.Booking) {
    p.publishLogged(ctx, RoutingConfirmed, b)
}

func (p *Publisher) BookingCancelled(ctx context.Context, b *model.Booking) {
    p.publishLogged(ctx, RoutingCancelled, b)
}

func (p *Publisher) publishLogged(ctx context.Context, key string, b *model.Booking) {
    if err := p.Publish(ctx, NewBookingMessage(key, b, p.now())); err != nil {
        p.log.Errorf("publish %s for booking %d: %v", key, b.ID, err)
    }
}

// Publish sends m with routing key m.Type as a persistent JSON message.
// The request context's cancellation is ignored so a finished HTTP request
// does not abort the publish.
func (p *Publisher) Publish(ctx context.Context, m BookingMessage) error {
    body, err := json.Marshal(m)
    if err != nil {
        return fmt.Errorf("marshal message: %w", err)
    }
    ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
    defer cancel()

    ch, err := p.connect(ctx)
    if err != nil {
        return err
    }
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.ch != ch {
        return errConnReset
    }
    err = ch.PublishWithContext(ctx, ExchangeName, m.Type, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    uuid.NewString(),
        Timestamp:    m.OccurredAt,
        Type:         m.Type,
        Body:         body,
    })
    if err != nil {
        p.resetLocked()
        return fmt.Errorf("publish message: %w", err)
    }
    p.log.Debugf("published %s for booking %d", m.Type, m.BookingID)
    return nil
}

// connect returns the open channel, dialing when there is none.  The dial
// runs without holding mu and concurrent callers share it; each caller
// waits no longer than its own ctx.
func (p *Publisher) connect(ctx context.Context) (channel, error) {
    p.mu.Lock()
    if p.closed {
        p.mu.Unlock()
        return nil, errPublisherClosed
    }
    if p.ch != nil {
        ch := p.ch
        p.mu.Unlock()
        return ch, nil
    }
    a := p.dialing
    if a == nil {
        a = &dialAttempt{done: make(chan struct{})}
        p.dialing = a
        go p.runDial(a)
    }
    p.mu.Unlock()

    select {
    case <-a.done:
    case <-ctx.Done():
        return nil, fmt.Errorf("rabbitmq connect: %w", ctx.Err())
    }
    if a.err != nil {
        return nil, a.err
    }
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.ch == nil {
        return nil, errConnReset
    }
    return p.ch, nil
}

func (p *Publisher) runDial(a *dialAttempt) {
    ch, closer, err := p.dial(p.url, p.timeout)
    p.mu.Lock()
    switch {
    case err != nil:
        a.err = err
    case p.closed:
        _ = ch.Close()
        _ = closer()
        a.err = errPublisherClosed
    default:
        p.ch, p.closeConn = ch, closer
    }
    p.dialing = nil
    p.mu.Unlock()
    close(a.done)
}

func (p *Publisher) resetLocked() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.closeConn != nil {
        _ = p.closeConn()
    }
    p.ch, p.closeConn = nil, nil
}

// Close releases the broker connection, if any.  Later publishes fail and
// a dial still in flight is discarded when it completes.
func (p *Publisher) Close() {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.closed = true
    p.resetLocked()
}
