package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agentrelay/metrics"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/singleflight"
)

// Connection is a cached, initialized session together with the tool list
// discovered when it was opened. Calls go through CallTool so a connection
// retired by the cache is closed only once its last call returns.
type Connection struct {
	Server    Server
	Session   Session
	Tools     []mcptypes.Tool
	FetchedAt time.Time

	mu      sync.Mutex
	active  int
	retired bool
	closed  bool
}

// CallTool runs a tool on the connection's session.
func (c *Connection) CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error) {
	c.mu.Lock()
	c.active++
	c.mu.Unlock()
	defer c.release()

	return c.Session.CallTool(ctx, name, args)
}

func (c *Connection) release() {
	c.mu.Lock()
	c.active--
	idle := c.retired && c.active == 0
	c.mu.Unlock()
	if idle {
		c.close()
	}
}

// retire marks the connection as no longer cached. The session closes now
// if no call is running, otherwise when the last one returns.
func (c *Connection) retire() {
	c.mu.Lock()
	c.retired = true
	idle := c.active == 0
	c.mu.Unlock()
	if idle {
		c.close()
	}
}

func (c *Connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.Session.Close()
	if err != nil {
		logger().Warn().Err(err).Str("server", c.Server.Name).Msg("failed to close tool server session")
	}
	return err
}

// ConnectionCache shares remote tool server connections across requests.
// An entry is reused while now - FetchedAt < ttl; after that it is stale and
// the next Get re-establishes it. Population is single-flight per key, so
// concurrent callers racing on a missing or stale entry share one dial.
type ConnectionCache struct {
	dialer      Dialer
	ttl         time.Duration
	dialTimeout time.Duration
	now         func() time.Time
	metrics     *metrics.Metrics

	mu      sync.Mutex
	entries map[string]*Connection
	group   singleflight.Group
}

type CacheOption func(*ConnectionCache)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *ConnectionCache) { c.now = now }
}

// WithMetrics records hits, misses and dial errors on m.
func WithMetrics(m *metrics.Metrics) CacheOption {
	return func(c *ConnectionCache) { c.metrics = m }
}

// WithDialTimeout bounds dialing plus tool listing for one population.
func WithDialTimeout(d time.Duration) CacheOption {
	return func(c *ConnectionCache) { c.dialTimeout = d }
}

func NewConnectionCache(dialer Dialer, ttl time.Duration, opts ...CacheOption) *ConnectionCache {
	c := &ConnectionCache{
		dialer:      dialer,
		ttl:         ttl,
		dialTimeout: time.Minute,
		now:         time.Now,
		entries:     make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheKey returns the cache key for server: its name and URL.
func CacheKey(server Server) string {
	return server.Name + "|" + server.URL
}

// Get returns a fresh connection for server, dialing if the cached entry is
// missing or stale. Waiting callers give up when ctx is done; the dial they
// share keeps running for the others.
func (c *ConnectionCache) Get(ctx context.Context, server Server) (*Connection, error) {
	key := CacheKey(server)

	if conn, ok := c.fresh(key); ok {
		c.metrics.RecordCacheLookup("hit")
		return conn, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// A flight that finished between the check above and this one
		// may already have refreshed the entry.
		if conn, ok := c.fresh(key); ok {
			return conn, nil
		}
		return c.connect(ctx, key, server)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Connection), nil
	}
}

func (c *ConnectionCache) fresh(key string) (*Connection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(conn.FetchedAt) >= c.ttl {
		return nil, false
	}
	return conn, true
}

func (c *ConnectionCache) connect(ctx context.Context, key string, server Server) (*Connection, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.dialTimeout)
	defer cancel()

	logger().Debug().Str("server", server.Name).Str("url", server.URL).Msg("connecting to tool server")

	session, err := c.dialer.Dial(ctx, server)
	if err != nil {
		c.metrics.RecordCacheLookup("error")
		return nil, fmt.Errorf("failed to connect to %s: %w", server.Name, err)
	}

	tools, err := session.ListTools(ctx)
	if err != nil {
		session.Close()
		c.metrics.RecordCacheLookup("error")
		return nil, fmt.Errorf("failed to list tools for %s: %w", server.Name, err)
	}

	conn := &Connection{
		Server:    server,
		Session:   session,
		Tools:     tools,
		FetchedAt: c.now(),
	}

	c.mu.Lock()
	old := c.entries[key]
	c.entries[key] = conn
	c.mu.Unlock()

	if old != nil {
		old.retire()
	}

	c.metrics.RecordCacheLookup("miss")
	logger().Info().Str("server", server.Name).Int("tools", len(tools)).Msg("discovered remote tools")
	return conn, nil
}

// Invalidate drops conn from the cache if it is still the cached entry for
// its server. A connection that was already replaced is left alone.
func (c *ConnectionCache) Invalidate(conn *Connection) {
	key := CacheKey(conn.Server)

	c.mu.Lock()
	current := c.entries[key] == conn
	if current {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	if current {
		conn.retire()
	}
}

// Len reports the number of cached entries, fresh or stale.
func (c *ConnectionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close closes every cached session and empties the cache.
func (c *ConnectionCache) Close() error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*Connection)
	c.mu.Unlock()

	var firstErr error
	for _, conn := range entries {
		if err := conn.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
