package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "log/slog"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/event-seat-manager/internal/model"
)

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
    QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
    Close() error
}

type dialFunc func(url string) (Channel, io.Closer, error)

func dialAMQP(url string) (Channel, io.Closer, error) {
    conn, err := amqp.Dial(url)
    if err != nil {
        return nil, nil, fmt.Errorf("dial broker: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, fmt.Errorf("channel open: %w", err)
    }
    return ch, conn, nil
}

// Publisher publishes waitlist offers and confirmations to RabbitMQ.  The
// connection is opened on first use and reopened after a failed publish.
// Errors are logged and returned so that callers may ignore them without
// interrupting the request flow.
type Publisher struct {
    url  string
    log  *slog.Logger
    dial dialFunc
    now  func() time.Time

    mu       sync.Mutex
    ch       Channel
    conn     io.Closer
    declared map[string]bool
}

func NewPublisher(url string, log *slog.Logger) *Publisher {
    if log == nil {
        log = slog.Default()
    }
    return &Publisher{url: url, log: log, dial: dialAMQP, now: time.Now}
}

// WaitlistOffered publishes to waitlist.notification.
func (p *Publisher) WaitlistOffered(ctx context.Context, ev model.Event, e model.WaitlistEntry) error {
    return p.publish(ctx, WaitlistNotificationQueue, WaitlistOfferedEvent{
        EntryID:    e.ID,
        EventID:    ev.ID,
        EventTitle: ev.Title,
        EventDate:  ev.Date,
        Location:   ev.Location,
        UserEmail:  e.UserEmail,
        ExpiresAt:  e.ExpiresAt,
        OfferedAt:  e.UpdatedAt,
    })
}

// InvitationConfirmed publishes to invitation.confirmed.
func (p *Publisher) InvitationConfirmed(ctx context.Context, inv model.Invitation) error {
    return p.publish(ctx, InvitationConfirmedQueue, InvitationConfirmedEvent{
        InvitationID: inv.ID,
        EventID:      inv.EventID,
        EventTitle:   inv.EventTitle,
        UserEmail:    inv.UserEmail,
        Seat:         inv.Seat,
        ConfirmedAt:  inv.UpdatedAt,
    })
}

func (p *Publisher) publish(ctx context.Context, queue string, v any) error {
    body, err := json.Marshal(v)
    if err != nil {
        return fmt.Errorf("marshal %s: %w", queue, err)
    }

    p.mu.Lock()
    defer p.mu.Unlock()

    ch, err := p.channel(queue)
    if err != nil {
        p.log.Warn("rabbitmq unavailable", "queue", queue, "error", err)
        return err
    }
    err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    p.now().UTC(),
        Body:         body,
    })
    if err != nil {
        p.reset()
        p.log.Warn("rabbitmq publish failed", "queue", queue, "error", err)
        return fmt.Errorf("publish %s: %w", queue, err)
    }
    return nil
}

// channel returns an open channel with queue declared.  Callers hold p.mu.
func (p *Publisher) channel(queue string) (Channel, error) {
    if p.ch == nil {
        ch, conn, err := p.dial(p.url)
        if err != nil {
            return nil, err
        }
        p.ch, p.conn, p.declared = ch, conn, map[string]bool{}
    }
    if !p.declared[queue] {
        if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
            p.reset()
            return nil, fmt.Errorf("queue declare %s: %w", queue, err)
        }
        p.declared[queue] = true
    }
    return p.ch, nil
}

func (p *Publisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.ch, p.conn, p.declared = nil, nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.reset()
    return nil
}
