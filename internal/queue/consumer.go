package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/event-seat-manager/internal/metrics"
)

// Consumer delivers waitlist offers.  The email gateway lives elsewhere;
// a delivery here is one structured log line plus one line appended to
// the notification log file.
type Consumer struct {
    url     string
    logPath string
    log     *slog.Logger
    mu      sync.Mutex // serialises file appends
}

func NewConsumer(url, logPath string, log *slog.Logger) *Consumer {
    if log == nil {
        log = slog.Default()
    }
    return &Consumer{url: url, logPath: logPath, log: log}
}

// Run consumes waitlist.notification until ctx is cancelled, reconnecting
// with exponential backoff whenever the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn("notification consumer: dial failed", "error", err, "retry_in", backoff)
            if !sleep(ctx, backoff) {
                return nil
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
            return nil
        }
        c.log.Warn("notification consumer: reconnecting", "error", err)
        if !sleep(ctx, 2*time.Second) {
            return nil
        }
    }
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn("notification consumer: set QoS failed", "error", err)
    }
    if _, err := ch.QueueDeclare(WaitlistNotificationQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(WaitlistNotificationQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    c.log.Info("notification consumer started", "queue", WaitlistNotificationQueue)

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.Handle(d.Body); err != nil {
                c.log.Error("notification delivery failed", "error", err)
                metrics.NotificationFailed("consumer")
                _ = d.Nack(false, false) // reject without requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle delivers one waitlist.notification message body.
func (c *Consumer) Handle(body []byte) error {
    var ev WaitlistOfferedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.EventID == 0 || ev.UserEmail == "" {
        return errors.New("message lacks event_id or user_email")
    }

    expires := "-"
    if ev.ExpiresAt != nil {
        expires = ev.ExpiresAt.UTC().Format(time.RFC3339)
    }
    c.log.Info("waitlist offer delivered",
        "event_id", ev.EventID,
        "event_title", ev.EventTitle,
        "email", ev.UserEmail,
        "expires_at", expires,
    )

    line := fmt.Sprintf("[%s] Waitlist spot offered | event_id=%d | event=%q | email=%s | expires_at=%s\n",
        ev.OfferedAt.UTC().Format(time.RFC3339), ev.EventID, ev.EventTitle, ev.UserEmail, expires)
    return c.appendLine(line)
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

// sleep waits for d or until ctx is done; it reports whether d elapsed.
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
