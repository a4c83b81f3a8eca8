// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package amqp091

import (
	"crypto/tls"
	"net/url"
	"strings"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// Default values.
const (
	DefaultAddress        = "localhost:5672"
	DefaultDialTimeout    = 10 * time.Second
	DefaultHeartbeat      = 60 * time.Second
	DefaultConfirmTimeout = 30 * time.Second
	DefaultConnectionName = "fluxdrain"
)

// Options configures the AMQP 0.9.1 client.
type Options struct {
	// Connection
	URL         string      // Full AMQP URL (overrides Address/Vhost)
	Address     string      // Broker address (host:port)
	Username    string      // Username for PLAIN auth; empty means anonymous
	Password    string      // Password for PLAIN auth
	Vhost       string      // Virtual host (default "/")
	TLSConfig   *tls.Config // TLS configuration (nil for plain TCP)
	DialTimeout time.Duration
	Heartbeat   time.Duration

	ConnectionName string

	// Publishing
	ConfirmTimeout time.Duration // Upper bound on waiting for a publisher confirm
	DeclareQueues  bool          // Declare missing queues as durable instead of failing
}

// NewOptions creates Options with sensible defaults.
func NewOptions() *Options {
	return &Options{
		Address:        DefaultAddress,
		Vhost:          "/",
		DialTimeout:    DefaultDialTimeout,
		Heartbeat:      DefaultHeartbeat,
		ConnectionName: DefaultConnectionName,
		ConfirmTimeout: DefaultConfirmTimeout,
		DeclareQueues:  true,
	}
}

// SetURL sets the full broker URL.
func (o *Options) SetURL(u string) *Options {
	o.URL = u
	return o
}

// SetAddress sets the broker address (host:port).
func (o *Options) SetAddress(addr string) *Options {
	o.Address = addr
	return o
}

// SetCredentials sets username and password.
func (o *Options) SetCredentials(username, password string) *Options {
	o.Username = username
	o.Password = password
	return o
}

// SetVhost sets the virtual host.
func (o *Options) SetVhost(vhost string) *Options {
	o.Vhost = vhost
	return o
}

// SetTLSConfig sets TLS configuration.
func (o *Options) SetTLSConfig(cfg *tls.Config) *Options {
	o.TLSConfig = cfg
	return o
}

// SetDialTimeout sets the dial timeout.
func (o *Options) SetDialTimeout(d time.Duration) *Options {
	o.DialTimeout = d
	return o
}

// SetHeartbeat sets the heartbeat interval.
func (o *Options) SetHeartbeat(d time.Duration) *Options {
	o.Heartbeat = d
	return o
}

// SetConfirmTimeout sets how long a send waits for the broker confirm.
func (o *Options) SetConfirmTimeout(d time.Duration) *Options {
	o.ConfirmTimeout = d
	return o
}

// SetDeclareQueues controls whether producers declare their queue.
func (o *Options) SetDeclareQueues(declare bool) *Options {
	o.DeclareQueues = declare
	return o
}

// Validate checks the options for errors.
func (o *Options) Validate() error {
	if o.URL == "" && o.Address == "" {
		return ErrNoAddress
	}
	if o.URL != "" {
		if _, err := amqp091.ParseURI(o.URL); err != nil {
			return err
		}
	}
	return nil
}

func (o *Options) dialURL() (string, error) {
	if o.URL != "" {
		return o.URL, nil
	}

	scheme := "amqp"
	if o.TLSConfig != nil {
		scheme = "amqps"
	}

	u := &url.URL{
		Scheme: scheme,
		Host:   o.Address,
		Path:   "/" + strings.TrimPrefix(o.Vhost, "/"),
	}

	return u.String(), nil
}

// auth picks the SASL mechanism. Explicit credentials win; credentials
// embedded in a URL are used as-is; otherwise the connection is anonymous.
func (o *Options) auth() []amqp091.Authentication {
	if o.Username != "" {
		return []amqp091.Authentication{&amqp091.PlainAuth{
			Username: o.Username,
			Password: o.Password,
		}}
	}
	if o.URL != "" {
		if u, err := url.Parse(o.URL); err == nil && u.User != nil {
			return nil
		}
	}
	return []amqp091.Authentication{anonymousAuth{}}
}

func (o *Options) vhost() string {
	if o.URL != "" {
		return ""
	}
	if o.Vhost == "" {
		return "/"
	}
	return o.Vhost
}

func (o *Options) redactedURL() string {
	raw, err := o.dialURL()
	if err != nil {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.String()
}

// anonymousAuth implements the SASL ANONYMOUS mechanism.
type anonymousAuth struct{}

func (anonymousAuth) Mechanism() string { return "ANONYMOUS" }

func (anonymousAuth) Response() string { return "" }
