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

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/calculations-api/internal/logger"
)

// AuditLog appends one human readable line per calculation event to a file.
type AuditLog struct {
	path string
	mu   sync.Mutex
}

func NewAuditLog(path string) *AuditLog { return &AuditLog{path: path} }

// Handle decodes body and appends it to the log file, creating the file and
// its directory on first use.
func (a *AuditLog) Handle(body []byte) error {
	var ev CalculationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.CalculationID == "" || ev.Action == "" {
		return errors.New("event without calculation_id or action")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatEvent(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatEvent(ev CalculationEvent) string {
	inputs := make([]string, len(ev.Inputs))
	for i, v := range ev.Inputs {
		inputs[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("[%s] Calculation %s | calculation_id=%s | user_id=%s | type=%s | inputs=[%s] | result=%v\n",
		ev.OccurredAt, ev.Action, ev.CalculationID, ev.UserID, ev.Type, strings.Join(inputs, ","), ev.Result)
}

// StartAuditConsumer consumes CalculationsQueue and feeds every delivery to
// audit.  It reconnects with exponential backoff (capped at 30s) until ctx is
// cancelled, and then returns ctx.Err().  Messages that cannot be handled are
// rejected without requeue.
func StartAuditConsumer(ctx context.Context, url string, audit *AuditLog, log *logger.Logger) error {
	backoff := time.Second
	for {
		conn, err := dialBroker(ctx, url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("audit consumer: dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consume(ctx, conn, audit, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("audit consumer: consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consume(ctx context.Context, conn *amqp.Connection, audit *AuditLog, log *logger.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("audit consumer: set QoS failed")
	}
	if err := declare(ch); err != nil {
		return err
	}
	msgs, err := ch.ConsumeWithContext(ctx, CalculationsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	log.Info().Str("queue", CalculationsQueue).Msg("audit consumer: consuming")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := audit.Handle(d.Body); err != nil {
				log.Error().Err(err).Msg("audit consumer: handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// sleep waits for d or until ctx is done, reporting false in the latter case.
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
