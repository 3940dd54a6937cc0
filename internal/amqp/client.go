package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

// Topology names the exchange and the two queues bound to it. Routing keys
// equal queue names.
type Topology struct {
	Exchange     string
	RecalcQueue  string
	PaymentQueue string
}

func (t Topology) queues() []string {
	return []string{t.RecalcQueue, t.PaymentQueue}
}

type Client struct {
	url      string
	topology Topology
	logger   *slog.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// Handlers receive decoded messages. A nil handler acks and drops its queue's messages.
type Handlers struct {
	Recalculate func(ctx context.Context, msg *RecalculateMessage) error
	Payment     func(ctx context.Context, msg *PaymentRequestMessage) error
}

func NewClient(url string, topology Topology, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{url: url, topology: topology, logger: logger}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.topology); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

func setup(ch *amqp091.Channel, t Topology) error {
	err := ch.ExchangeDeclare(
		t.Exchange, // name
		"direct",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range t.queues() {
		if _, err := ch.QueueDeclare(
			q,     // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := ch.QueueBind(q, q, t.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

// currentChannel returns an open channel, reconnecting once if needed.
func (c *Client) currentChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch != nil && !ch.IsClosed() {
		return ch, nil
	}
	c.closeConn()
	if err := c.connect(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel, nil
}

// PublishRecalculate asks the worker to recompute a user's total.
func (c *Client) PublishRecalculate(ctx context.Context, userID, reason string) error {
	msg := NewRecalculateMessage(userID, reason)
	if err := msg.Validate(); err != nil {
		return err
	}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.topology.RecalcQueue, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Published recalculate message",
		"user_id", userID,
		"reason", reason,
		"exchange", c.topology.Exchange,
		"queue", c.topology.RecalcQueue)
	return nil
}

// PublishPaymentRequest forwards a payment request to the payment queue.
func (c *Client) PublishPaymentRequest(ctx context.Context, msg *PaymentRequestMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.topology.PaymentQueue, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Published payment request",
		"user_id", msg.UserID,
		"amount", msg.Amount.String(),
		"currency", msg.Currency,
		"idempotency_token", msg.IdempotencyToken)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if c.isCircuitOpen() {
		return errors.New("publish rejected: circuit breaker is open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, err := c.currentChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.topology.Exchange, // exchange
		routingKey,          // routing key
		false,               // mandatory
		false,               // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.closeConn()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// Consume processes both queues until ctx is cancelled, reconnecting with
// exponential backoff when the broker drops the connection.
func (c *Client) Consume(ctx context.Context, h Handlers) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, h, func() { attempt = 0 })
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := exponentialBackoff(attempt)
		c.logger.WarnContext(ctx, "Consumer stopped, reconnecting", "error", err, "attempt", attempt, "backoff", wait)
		attempt++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		c.closeConn()
		if err := c.connect(); err != nil {
			c.logger.ErrorContext(ctx, "Reconnect failed", "error", err)
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, h Handlers, onReady func()) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil || ch.IsClosed() {
		return amqp091.ErrClosed
	}

	recalc, err := ch.Consume(c.topology.RecalcQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming %s: %w", c.topology.RecalcQueue, err)
	}
	payments, err := ch.Consume(c.topology.PaymentQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming %s: %w", c.topology.PaymentQueue, err)
	}
	onReady()
	c.logger.InfoContext(ctx, "Started consuming messages",
		"queues", strings.Join(c.topology.queues(), ","))

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-recalc:
			if !ok {
				return errors.New("recalculate channel closed")
			}
			c.handleRecalculate(ctx, d, h.Recalculate)
		case d, ok := <-payments:
			if !ok {
				return errors.New("payment channel closed")
			}
			c.handlePayment(ctx, d, h.Payment)
		}
	}
}

func (c *Client) handleRecalculate(ctx context.Context, d amqp091.Delivery, fn func(context.Context, *RecalculateMessage) error) {
	msg, err := RecalculateMessageFromJSON(d.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to decode recalculate message", "error", err)
		d.Nack(false, false) // reject and don't requeue
		return
	}
	if fn == nil {
		d.Ack(false)
		return
	}
	if err := fn(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle recalculate message", "error", err, "user_id", msg.UserID)
		d.Nack(false, !d.Redelivered) // requeue once
		return
	}
	d.Ack(false)
}

func (c *Client) handlePayment(ctx context.Context, d amqp091.Delivery, fn func(context.Context, *PaymentRequestMessage) error) {
	msg, err := PaymentRequestMessageFromJSON(d.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to decode payment request", "error", err)
		d.Nack(false, false)
		return
	}
	if fn == nil {
		d.Ack(false)
		return
	}
	if err := fn(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle payment request", "error", err, "idempotency_token", msg.IdempotencyToken)
		d.Nack(false, !d.Redelivered)
		return
	}
	d.Ack(false)
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.closeConn()
	return nil
}
