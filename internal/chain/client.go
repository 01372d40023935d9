package chain

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
	"github.com/JonathanJFlores/sugarfunge-api/internal/logging"
)

// Client is the process-wide handle to the ledger.
//
// Submissions hold a single-slot semaphore from construction through the
// finality wait, so at most one extrinsic is in flight at a time. Reads and
// the short construct/sign/submit steps share a read lock that only a
// metadata refresh takes exclusively; a read therefore never waits behind a
// pending finality wait.
type Client struct {
	conn   Conn
	slot   *semaphore.Weighted
	mu     sync.RWMutex
	logger *logging.Logger
}

// NewClient wraps an open connection.
func NewClient(conn Conn, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Client{
		conn:   conn,
		slot:   semaphore.NewWeighted(1),
		logger: logger,
	}
}

// acquire waits for the submission slot. The returned release func must be
// called exactly once.
func (c *Client) acquire(ctx context.Context) (func(), error) {
	if err := c.slot.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for submission slot: %w", err)
	}
	var once sync.Once
	return func() { once.Do(func() { c.slot.Release(1) }) }, nil
}

// Busy reports whether a submission currently holds the slot.
func (c *Client) Busy() bool {
	if c.slot.TryAcquire(1) {
		c.slot.Release(1)
		return false
	}
	return true
}

func (c *Client) construct(call Call) (*EncodedCall, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn.Construct(call)
}

func (c *Client) sign(ctx context.Context, call *EncodedCall, signer Signer) (*Extrinsic, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn.Sign(ctx, call, signer)
}

func (c *Client) watch(ctx context.Context, xt *Extrinsic) (Subscription, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn.Watch(ctx, xt)
}

// FreeBalance reads an account's free balance.
func (c *Client) FreeBalance(ctx context.Context, id AccountID) (Amount, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	amount, err := c.conn.FreeBalance(ctx, id)
	if err != nil {
		return Amount{}, errors.UpstreamUnavailable("ledger", err)
	}
	return amount, nil
}

// Query reads a storage entry addressed by q.
func (c *Client) Query(ctx context.Context, q Query) (Amount, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	amount, err := c.conn.QueryAmount(ctx, q)
	if err != nil {
		return Amount{}, errors.UpstreamUnavailable("ledger", fmt.Errorf("%s: %w", q, err))
	}
	return amount, nil
}

// Refresh reloads runtime metadata, e.g. after a runtime upgrade. It waits
// for in-flight reads and short submission steps to drain.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.Refresh(ctx); err != nil {
		c.logger.Error(ctx, "Metadata refresh failed", err, nil)
		return errors.UpstreamUnavailable("ledger", err)
	}
	c.logger.Debug(ctx, "Metadata refreshed", nil)
	return nil
}

// Ping checks the node connection.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.conn.Ping(ctx); err != nil {
		return errors.UpstreamUnavailable("ledger", err)
	}
	return nil
}

// Close releases the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.Close()
}
