// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/absmach/fluxdrain/client/amqp091"
	"github.com/absmach/fluxdrain/store"
	"github.com/absmach/fluxdrain/types"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

var errBroker = errors.New("broker unavailable")

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(store.Config{
		Dir:          t.TempDir(),
		Create:       true,
		PollInterval: 2 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *store.Store, name string, bodies ...string) {
	t.Helper()

	ctx := context.Background()
	if len(bodies) == 0 {
		require.NoError(t, s.CreateDestination(ctx, types.Destination{Name: name, Kind: types.KindQueue}))
		return
	}
	for i, b := range bodies {
		msg := &types.Message{
			Payload: []byte(b),
			Properties: map[string]string{
				types.PropContentType: "text/plain",
				"x-index":             string(rune('0' + i)),
			},
		}
		require.NoError(t, s.Enqueue(ctx, name, msg))
	}
}

// fakeRemote records everything sent to it, both as stored messages and as
// the AMQP publishings the real producer would put on the wire. failOn, when
// set, is consulted before each send with the 1-based attempt number for that
// destination.
type fakeRemote struct {
	mu        sync.Mutex
	received  map[string][]*types.Message
	published map[string][]amqp.Publishing
	attempts  map[string]int
	opened    []string
	producers []*fakeProducer
	openErr   error
	failOn    func(dest string, attempt int) error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		received:  make(map[string][]*types.Message),
		published: make(map[string][]amqp.Publishing),
		attempts:  make(map[string]int),
	}
}

func (r *fakeRemote) OpenProducer(ctx context.Context, name string) (Producer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.opened = append(r.opened, name)
	if r.openErr != nil {
		return nil, r.openErr
	}
	p := &fakeProducer{remote: r, name: name}
	r.producers = append(r.producers, p)
	return p, nil
}

func (r *fakeRemote) messages(name string) []*types.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.Message(nil), r.received[name]...)
}

func (r *fakeRemote) publishings(name string) []amqp.Publishing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]amqp.Publishing(nil), r.published[name]...)
}

func (r *fakeRemote) payloads(name string) []string {
	var out []string
	for _, m := range r.messages(name) {
		out = append(out, string(m.Payload))
	}
	return out
}

func (r *fakeRemote) openedNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.opened...)
}

type fakeProducer struct {
	remote *fakeRemote
	name   string
	closed bool
}

func (p *fakeProducer) Send(ctx context.Context, msg *types.Message) error {
	r := p.remote
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts[p.name]++
	if r.failOn != nil {
		if err := r.failOn(p.name, r.attempts[p.name]); err != nil {
			return err
		}
	}
	r.received[p.name] = append(r.received[p.name], msg.Clone())
	r.published[p.name] = append(r.published[p.name], amqp091.ToPublishing(msg))
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

// trackingSource wraps a Source and records consumer opens. When failAck is
// set, Ack on the matching delivery fails, simulating a crash between the
// remote send and the source acknowledgement.
type trackingSource struct {
	Source

	mu      sync.Mutex
	opened  []string
	failAck func(msg *types.Message) bool
}

func (s *trackingSource) OpenConsumer(ctx context.Context, name string) (Consumer, error) {
	s.mu.Lock()
	s.opened = append(s.opened, name)
	s.mu.Unlock()

	c, err := s.Source.OpenConsumer(ctx, name)
	if err != nil {
		return nil, err
	}
	return &trackingConsumer{Consumer: c, src: s}, nil
}

func (s *trackingSource) Depth(ctx context.Context, name string) (int64, error) {
	if ds, ok := s.Source.(DepthSource); ok {
		return ds.Depth(ctx, name)
	}
	return -1, nil
}

type trackingConsumer struct {
	Consumer
	src *trackingSource
}

func (c *trackingConsumer) Receive(ctx context.Context, timeout time.Duration) (Delivery, error) {
	d, err := c.Consumer.Receive(ctx, timeout)
	if err != nil || d == nil {
		return d, err
	}
	if c.src.failAck != nil && c.src.failAck(d.Message()) {
		return failingDelivery{Delivery: d}, nil
	}
	return d, nil
}

type failingDelivery struct {
	Delivery
}

func (failingDelivery) Ack(context.Context) error {
	return errors.New("process killed before ack")
}

// scriptedSource replays fixed receive and probe outcomes.
type scriptedSource struct {
	receives []*types.Message // nil entries are empty receives
	probes   []bool           // successive IsQueueEmpty results
	probeErr error

	probeCalls int
	acked      []string
	consumer   *scriptedConsumer
}

func (s *scriptedSource) ListDestinations(context.Context) ([]types.Destination, error) {
	return []types.Destination{{Name: "orders", Kind: types.KindQueue}}, nil
}

func (s *scriptedSource) IsQueueEmpty(context.Context, string) (bool, error) {
	if s.probeErr != nil {
		return false, s.probeErr
	}
	if s.probeCalls >= len(s.probes) {
		return true, nil
	}
	v := s.probes[s.probeCalls]
	s.probeCalls++
	return v, nil
}

func (s *scriptedSource) OpenConsumer(context.Context, string) (Consumer, error) {
	s.consumer = &scriptedConsumer{src: s}
	return s.consumer, nil
}

type scriptedConsumer struct {
	src    *scriptedSource
	next   int
	closed bool
}

func (c *scriptedConsumer) Receive(context.Context, time.Duration) (Delivery, error) {
	if c.next >= len(c.src.receives) {
		return nil, nil
	}
	msg := c.src.receives[c.next]
	c.next++
	if msg == nil {
		return nil, nil
	}
	return &scriptedDelivery{msg: msg, src: c.src}, nil
}

func (c *scriptedConsumer) Close() error {
	c.closed = true
	return nil
}

type scriptedDelivery struct {
	msg *types.Message
	src *scriptedSource
}

func (d *scriptedDelivery) Message() *types.Message { return d.msg }

func (d *scriptedDelivery) Ack(context.Context) error {
	d.src.acked = append(d.src.acked, d.msg.ID)
	return nil
}

type countingObserver struct {
	mu       sync.Mutex
	messages int
	bytes    int
	drained  map[string]int64
}

func (o *countingObserver) MessageMigrated(_ context.Context, _ string, size int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages++
	o.bytes += size
}

func (o *countingObserver) DestinationDrained(_ context.Context, dest string, migrated int64, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.drained == nil {
		o.drained = make(map[string]int64)
	}
	o.drained[dest] = migrated
}

type countingLimiter struct {
	calls int
	err   error
}

func (l *countingLimiter) Wait(context.Context, string) error {
	l.calls++
	return l.err
}
