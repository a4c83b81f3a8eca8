// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package amqp091

import (
	"net"
	"sync"
	"sync/atomic"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// Client is a minimal AMQP 0.9.1 client that publishes to durable queues.
type Client struct {
	opts *Options

	conn   *amqp091.Connection
	connMu sync.Mutex

	prodMu    sync.Mutex
	producers map[*Producer]struct{}

	connected atomic.Bool
}

// New creates a new AMQP 0.9.1 client with the given options.
func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		opts:      opts,
		producers: make(map[*Producer]struct{}),
	}, nil
}

// Connect establishes a connection to the broker.
func (c *Client) Connect() error {
	if c.connected.Load() {
		return ErrAlreadyConnected
	}

	url, err := c.opts.dialURL()
	if err != nil {
		return err
	}

	dialer := &net.Dialer{Timeout: c.opts.DialTimeout}
	cfg := amqp091.Config{
		SASL:            c.opts.auth(),
		Vhost:           c.opts.vhost(),
		TLSClientConfig: c.opts.TLSConfig,
		Heartbeat:       c.opts.Heartbeat,
		Dial:            dialer.Dial,
		Properties:      amqp091.Table{"connection_name": c.opts.ConnectionName},
	}

	conn, err := amqp091.DialConfig(url, cfg)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.connected.Store(true)
	return nil
}

// Close closes all open producers and the connection.
func (c *Client) Close() error {
	if !c.connected.Load() {
		return nil
	}

	c.prodMu.Lock()
	producers := make([]*Producer, 0, len(c.producers))
	for p := range c.producers {
		producers = append(producers, p)
	}
	c.prodMu.Unlock()

	for _, p := range producers {
		_ = p.Close()
	}

	c.connMu.Lock()
	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.connected.Store(false)
	return err
}

// IsConnected reports whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Address returns the broker address without credentials, for logging.
func (c *Client) Address() string {
	return c.opts.redactedURL()
}

func (c *Client) channel() (*amqp091.Channel, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if !c.connected.Load() || c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn.Channel()
}

func (c *Client) track(p *Producer) {
	c.prodMu.Lock()
	c.producers[p] = struct{}{}
	c.prodMu.Unlock()
}

func (c *Client) untrack(p *Producer) {
	c.prodMu.Lock()
	delete(c.producers, p)
	c.prodMu.Unlock()
}
