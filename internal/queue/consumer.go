package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    "github.com/labstack/gommon/log"
    amqp "github.com/rabbitmq/amqp091-go"
)

// AuditQueue is the durable queue the consumer binds to booking.*.
const AuditQueue = "bookings.audit"

// SeatsNotifier receives a notice whenever an event's seats changed.
type SeatsNotifier interface {
    SeatsChanged(eventID uint64)
}

// Consumer appends one line per booking message to the audit log and
// forwards a seats-changed notice for the event.
type Consumer struct {
    url     string
    logPath string
    seats   SeatsNotifier
    log     *log.Logger

    mu sync.Mutex
}

func NewConsumer(url, logPath string, seats SeatsNotifier) *Consumer {
    if logPath == "" {
        logPath = filepath.Join("logs", "booking.log")
    }
    return &Consumer{url: url, logPath: logPath, seats: seats, log: log.New("queue")}
}

// Run consumes until ctx is done, reconnecting with backoff whenever the
// broker goes away.
func (c *Consumer) Run(ctx context.Context) {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warnf("booking consumer: dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return
        }
        c.log.Warnf("booking consumer: %v; reconnecting", err)
        if !sleep(ctx, 2*time.Second) {
            return
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warnf("booking consumer: set QoS: %v", err)
    }
    if err := ch.ExchangeDeclare(ExchangeName, ExchangeKind, true, false, false, false, nil); err != nil {
        return fmt.Errorf("exchange declare: %w", err)
    }
    q, err := ch.QueueDeclare(AuditQueue, true, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    if err := ch.QueueBind(q.Name, "booking.*", ExchangeName, false, nil); err != nil {
        return fmt.Errorf("queue bind: %w", err)
    }
    msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    c.log.Infof("booking consumer: consuming %s", q.Name)

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.Handle(d.Body); err != nil {
                c.log.Errorf("booking consumer: %v", err)
                // do not requeue; a bad body would loop forever
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle processes one message body.
func (c *Consumer) Handle(body []byte) error {
    var m BookingMessage
    if err := json.Unmarshal(body, &m); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if m.EventID == 0 || m.BookingID == 0 {
        return fmt.Errorf("message without booking or event id")
    }
    if err := c.appendLine(FormatAuditLine(m)); err != nil {
        return err
    }
    if c.seats != nil {
        c.seats.SeatsChanged(m.EventID)
    }
    return nil
}

func (c *Consumer) appendLine(line string) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatAuditLine renders m as a single newline-terminated log line.
func FormatAuditLine(m BookingMessage) string {
    verb := "confirmed"
    if m.Type == RoutingCancelled {
        verb = "cancelled"
    }
    seats := "[]"
    if len(m.Seats) > 0 {
        seats = "[" + strings.Join(m.Seats, ",") + "]"
    }
    return fmt.Sprintf("[%s] Booking %s | booking_id=%d | reference=%s | user_id=%d | event_id=%d | tickets=%d | total=%d cents | seats=%s\n",
        m.OccurredAt.UTC().Format(time.RFC3339), verb, m.BookingID, m.Reference, m.UserID, m.EventID,
        m.NumberOfTickets, m.TotalPriceCents, seats)
}
