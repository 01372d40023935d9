// Package testutil provides common testing utilities and mock implementations.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
	"github.com/JonathanJFlores/sugarfunge-api/internal/crypto"
)

// =============================================================================
// Ledger
// =============================================================================

// FakeConn is a scriptable chain.Conn. Each Watch plays Statuses (or the
// result of Script) on a fresh subscription and then leaves it open.
type FakeConn struct {
	mu sync.Mutex

	Statuses []chain.Status
	Script   func(call chain.Call) []chain.Status
	// Gate, when set, holds every scripted status until it is closed.
	Gate chan struct{}
	// StreamErr is delivered on the subscription's error channel after the
	// scripted statuses.
	StreamErr error
	// CloseStream closes the update channel after the scripted statuses.
	CloseStream bool

	ConstructErr error
	SignErr      error
	WatchErr     error
	BalanceErr   error
	RefreshErr   error
	PingErr      error

	Balances map[chain.AccountID]chain.Amount
	// Storage answers QueryAmount, keyed by chain.Query.String().
	Storage map[string]chain.Amount

	constructs int
	signs      int
	watches    int
	reads      int
	refreshes  int
	pings      int
	submitted  []chain.Call
	subs       []*FakeSubscription
	nonce      int
}

var _ chain.Conn = (*FakeConn)(nil)

// NewFakeConn returns a connection that finalizes every extrinsic with the
// given events.
func NewFakeConn(events ...chain.EventRecord) *FakeConn {
	return &FakeConn{Statuses: Finalized(events...)}
}

func (f *FakeConn) Construct(call chain.Call) (*chain.EncodedCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructs++
	if f.ConstructErr != nil {
		return nil, f.ConstructErr
	}
	return &chain.EncodedCall{Name: call.String(), Native: call}, nil
}

func (f *FakeConn) Sign(_ context.Context, call *chain.EncodedCall, signer chain.Signer) (*chain.Extrinsic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signs++
	if f.SignErr != nil {
		return nil, f.SignErr
	}
	f.nonce++
	return &chain.Extrinsic{
		Hash:   fmt.Sprintf("0x%064x", f.nonce),
		Signer: signer.AccountID(),
		Native: call.Native,
	}, nil
}

func (f *FakeConn) Watch(_ context.Context, xt *chain.Extrinsic) (chain.Subscription, error) {
	f.mu.Lock()
	f.watches++
	if f.WatchErr != nil {
		err := f.WatchErr
		f.mu.Unlock()
		return nil, err
	}
	call, _ := xt.Native.(chain.Call)
	f.submitted = append(f.submitted, call)
	statuses := f.Statuses
	if f.Script != nil {
		statuses = f.Script(call)
	}
	sub := newFakeSubscription()
	f.subs = append(f.subs, sub)
	gate, streamErr, closeStream := f.Gate, f.StreamErr, f.CloseStream
	f.mu.Unlock()

	go sub.play(gate, statuses, streamErr, closeStream)
	return sub, nil
}

func (f *FakeConn) FreeBalance(_ context.Context, id chain.AccountID) (chain.Amount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.BalanceErr != nil {
		return chain.Amount{}, f.BalanceErr
	}
	return f.Balances[id], nil
}

func (f *FakeConn) QueryAmount(_ context.Context, q chain.Query) (chain.Amount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.BalanceErr != nil {
		return chain.Amount{}, f.BalanceErr
	}
	if a, ok := f.Storage[q.String()]; ok {
		return a, nil
	}
	return chain.NewAmount(0), nil
}

func (f *FakeConn) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.RefreshErr
}

func (f *FakeConn) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return f.PingErr
}

func (f *FakeConn) Close() {}

// Calls returns the number of ledger round trips made so far.
func (f *FakeConn) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.constructs + f.signs + f.watches + f.reads + f.refreshes + f.pings
}

// Submitted returns the calls passed to Watch.
func (f *FakeConn) Submitted() []chain.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]chain.Call, len(f.submitted))
	copy(out, f.submitted)
	return out
}

// Refreshes returns the number of Refresh calls.
func (f *FakeConn) Refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

// Subscriptions returns every subscription handed out.
func (f *FakeConn) Subscriptions() []*FakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeSubscription, len(f.subs))
	copy(out, f.subs)
	return out
}

// FakeSubscription is the chain.Subscription returned by FakeConn.
type FakeSubscription struct {
	updates chan chain.Status
	errs    chan error
	done    chan struct{}
	once    sync.Once
}

func newFakeSubscription() *FakeSubscription {
	return &FakeSubscription{
		updates: make(chan chain.Status),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
}

func (s *FakeSubscription) Updates() <-chan chain.Status { return s.updates }
func (s *FakeSubscription) Err() <-chan error            { return s.errs }

func (s *FakeSubscription) Close() {
	s.once.Do(func() { close(s.done) })
}

// Closed reports whether the consumer closed the subscription.
func (s *FakeSubscription) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *FakeSubscription) play(gate chan struct{}, statuses []chain.Status, streamErr error, closeStream bool) {
	if gate != nil {
		select {
		case <-gate:
		case <-s.done:
			return
		}
	}
	for _, st := range statuses {
		select {
		case s.updates <- st:
		case <-s.done:
			return
		}
	}
	if streamErr != nil {
		s.errs <- streamErr
	}
	if closeStream {
		close(s.updates)
	}
}

// Finalized scripts a successful lifecycle ending in a finalized block.
func Finalized(events ...chain.EventRecord) []chain.Status {
	const block = "0x00000000000000000000000000000000000000000000000000000000000000b1"
	return []chain.Status{
		{Kind: chain.StatusReady},
		{Kind: chain.StatusBroadcast},
		{Kind: chain.StatusInBlock, BlockHash: block},
		{Kind: chain.StatusFinalized, BlockHash: block, Events: events},
	}
}

// Event builds an event record.
func Event(kind chain.EventKind, fields ...chain.Field) chain.EventRecord {
	return chain.EventRecord{Kind: kind, Fields: fields}
}

// F builds a named event field.
func F(name string, value any) chain.Field {
	return chain.Field{Name: name, Value: value}
}

// MustSigner resolves a seed or panics.
func MustSigner(seed string) *crypto.KeyPair {
	kp, err := crypto.Resolve(seed)
	if err != nil {
		panic(err)
	}
	return kp
}

// =============================================================================
// Identity provider
// =============================================================================

// MemorySeedStore is an in-memory seed store keyed by user id.
type MemorySeedStore struct {
	*MemoryStore[string, string]
	Err error
}

// NewMemorySeedStore creates a seed store with the given user->seed pairs.
func NewMemorySeedStore(pairs ...string) *MemorySeedStore {
	s := &MemorySeedStore{MemoryStore: NewMemoryStore[string, string]()}
	for i := 0; i+1 < len(pairs); i += 2 {
		s.Set(pairs[i], pairs[i+1])
	}
	return s
}

// GetSeed returns the stored seed.
func (s *MemorySeedStore) GetSeed(_ context.Context, userID string) (string, bool, error) {
	if s.Err != nil {
		return "", false, s.Err
	}
	seed, ok := s.Get(userID)
	return seed, ok && seed != "", nil
}

// PutSeed stores a seed; an empty seed clears it.
func (s *MemorySeedStore) PutSeed(_ context.Context, userID, seed string) error {
	if s.Err != nil {
		return s.Err
	}
	if seed == "" {
		s.Delete(userID)
		return nil
	}
	s.Set(userID, seed)
	return nil
}

// =============================================================================
// Generic helpers
// =============================================================================

// MemoryStore is a generic in-memory store for testing.
type MemoryStore[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore[K comparable, V any]() *MemoryStore[K, V] {
	return &MemoryStore[K, V]{items: make(map[K]V)}
}

// Set stores an item.
func (s *MemoryStore[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

// Get retrieves an item.
func (s *MemoryStore[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// Delete removes an item.
func (s *MemoryStore[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// Count returns the number of items.
func (s *MemoryStore[K, V]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// GenerateID generates a new UUID string.
func GenerateID() string {
	return uuid.NewString()
}

// Eventually polls cond until it holds or the timeout passes.
func Eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
