package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned by Publish when the channel is down and
// reconnecting failed
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// Config holds RabbitMQ connection configuration
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	VHost              string
	ExchangeName       string
	ExchangeType       string
	ExchangeDurable    bool
	ExchangeAutoDelete bool
	QueueName          string
	QueueDurable       bool
	QueueAutoDelete    bool
	QueueExclusive     bool
	RoutingKey         string
	RetryAttempts      int
	RetryInterval      time.Duration
	Heartbeat          time.Duration
	ConnectionTimeout  time.Duration
}

// URL builds the AMQP connection URL
func (c *Config) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   c.VHost,
	}
	if c.VHost == "" || c.VHost == "/" {
		u.Path = "/"
	}
	return u.String()
}

// Client publishes outcome messages to a RabbitMQ exchange. It reconnects
// lazily when the channel has been closed by the broker. A reconnect is a
// single dial made outside the lock; publishes arriving meanwhile fail fast
// with ErrNotConnected and the caller's retry policy owns the backoff.
type Client struct {
	config *Config
	logger *slog.Logger
	dial   func(url string, config amqp.Config) (*amqp.Connection, error)

	mu        sync.Mutex
	closed    bool
	dialing   bool
	conn      *amqp.Connection
	channel   *amqp.Channel
	closeChan chan *amqp.Error
}

// NewClient creates a new RabbitMQ client. Only the initial connection is
// retried RetryAttempts times.
func NewClient(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	client := newClient(config, logger)

	conn, channel, err := client.connect(ctx, max(config.RetryAttempts, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}
	client.install(conn, channel)

	return client, nil
}

func newClient(config *Config, logger *slog.Logger) *Client {
	return &Client{
		config: config,
		logger: logger,
		dial:   amqp.DialConfig,
	}
}

// connect dials up to attempts times and declares the topology. It does
// not touch the client's connection state.
func (c *Client) connect(ctx context.Context, attempts int) (*amqp.Connection, *amqp.Channel, error) {
	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}
	if c.config.ConnectionTimeout > 0 {
		amqpConfig.Dial = amqp.DefaultDial(c.config.ConnectionTimeout)
	}

	var (
		conn *amqp.Connection
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		conn, err = c.dial(c.config.URL(), amqpConfig)
		if err == nil {
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(c.config.RetryInterval):
			}
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to setup exchange and queue: %w", err)
	}

	return conn, channel, nil
}

// install makes conn and channel current
func (c *Client) install(conn *amqp.Connection, channel *amqp.Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn = conn
	c.channel = channel
	c.closeChan = channel.NotifyClose(make(chan *amqp.Error, 1))

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.String("queue", c.config.QueueName),
	)
}

// setup declares the exchange and binds the outcome queue to it
func (c *Client) setup(channel *amqp.Channel) error {
	err := channel.ExchangeDeclare(
		c.config.ExchangeName,       // name
		c.config.ExchangeType,       // type
		c.config.ExchangeDurable,    // durable
		c.config.ExchangeAutoDelete, // auto-deleted
		false,                       // internal
		false,                       // no-wait
		nil,                         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		c.config.QueueName,       // name
		c.config.QueueDurable,    // durable
		c.config.QueueAutoDelete, // auto-delete
		c.config.QueueExclusive,  // exclusive
		false,                    // no-wait
		nil,                      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = channel.QueueBind(
		c.config.QueueName,    // queue name
		c.config.RoutingKey,   // routing key
		c.config.ExchangeName, // exchange
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// channelFor returns a live channel, reconnecting once if the broker
// closed it
func (c *Client) channelFor(ctx context.Context) (*amqp.Channel, error) {
	c.mu.Lock()
	if c.channel != nil {
		select {
		case amqpErr, ok := <-c.closeChan:
			if ok {
				c.logger.Warn("RabbitMQ channel closed, reconnecting", slog.Any("error", amqpErr))
			}
			c.release()
		default:
			channel := c.channel
			c.mu.Unlock()
			return channel, nil
		}
	}
	if c.closed || c.dialing {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.dialing = true
	c.mu.Unlock()

	conn, channel, err := c.connect(ctx, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialing = false

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	if c.closed {
		channel.Close()
		conn.Close()
		return nil, ErrNotConnected
	}

	c.conn = conn
	c.channel = channel
	c.closeChan = channel.NotifyClose(make(chan *amqp.Error, 1))
	c.logger.Info("RabbitMQ reconnected")
	return channel, nil
}

// Publish publishes a persistent message to the configured exchange
func (c *Client) Publish(ctx context.Context, body []byte, contentType string) error {
	channel, err := c.channelFor(ctx)
	if err != nil {
		return err
	}

	err = channel.PublishWithContext(
		ctx,
		c.config.ExchangeName, // exchange
		c.config.RoutingKey,   // routing key
		false,                 // mandatory
		false,                 // immediate
		amqp.Publishing{
			ContentType:  contentType,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("Message published to RabbitMQ",
		slog.Int("body_size", len(body)),
		slog.String("content_type", contentType),
	)
	return nil
}

// release drops the current connection without logging. Callers hold mu.
func (c *Client) release() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.channel = nil
	c.conn = nil
	c.closeChan = nil
}

// Close closes the RabbitMQ connection. Publish fails afterwards.
func (c *Client) Close() error {
	c.logger.Info("Closing RabbitMQ connection")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			c.logger.Error("Failed to close RabbitMQ channel", slog.Any("error", err))
		}
	}

	var err error
	if c.conn != nil {
		if err = c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			c.logger.Error("Failed to close RabbitMQ connection", slog.Any("error", err))
		} else {
			err = nil
		}
	}

	c.channel = nil
	c.conn = nil
	c.closeChan = nil
	c.closed = true
	return err
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.conn.IsClosed()
}
