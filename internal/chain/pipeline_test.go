package chain_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
	"github.com/JonathanJFlores/sugarfunge-api/internal/logging"
	"github.com/JonathanJFlores/sugarfunge-api/pkg/testutil"
)

func newPipeline(conn chain.Conn, timeout time.Duration) (*chain.Pipeline, *chain.Client) {
	client := chain.NewClient(conn, logging.NewDiscard())
	return chain.NewPipeline(client, logging.NewDiscard(), timeout), client
}

func transferTo(to chain.AccountID, amount uint64) chain.Descriptor {
	return chain.Transfer{To: to, Amount: chain.NewAmount(amount)}
}

func TestSubmit_Finalized(t *testing.T) {
	transfer := testutil.Event(chain.KindTransfer,
		testutil.F("from", alice), testutil.F("to", bob), testutil.F("amount", uint64(100)))
	conn := testutil.NewFakeConn(transfer)
	p, client := newPipeline(conn, time.Second)

	out, err := p.Submit(context.Background(), testutil.MustSigner("//Alice"), transferTo(bob, 100))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.NotEmpty(t, out.ExtrinsicHash)
	assert.NotEmpty(t, out.BlockHash)
	assert.Equal(t, []chain.EventRecord{transfer}, out.Events)

	submitted := conn.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, "Balances.transfer", submitted[0].String())

	assert.False(t, client.Busy())
	require.Len(t, conn.Subscriptions(), 1)
	assert.True(t, conn.Subscriptions()[0].Closed())
}

func TestSubmit_InvalidBeforeFinalized(t *testing.T) {
	conn := &testutil.FakeConn{Statuses: []chain.Status{
		{Kind: chain.StatusReady},
		{Kind: chain.StatusInvalid, Reason: "Inability to pay some fees"},
		{Kind: chain.StatusFinalized, BlockHash: "0x01"},
	}}
	p, client := newPipeline(conn, time.Second)

	_, err := p.Submit(context.Background(), testutil.MustSigner("//Alice"), transferTo(bob, 1))
	require.ErrorIs(t, err, errors.ErrSubmissionRejected)
	assert.Equal(t, "Inability to pay some fees", errors.GetServiceError(err).Message)
	assert.False(t, client.Busy())
}

func TestSubmit_TerminalFailures(t *testing.T) {
	for _, kind := range []chain.StatusKind{chain.StatusDropped, chain.StatusUsurped, chain.StatusFinalityTimeout} {
		conn := &testutil.FakeConn{Statuses: []chain.Status{{Kind: chain.StatusBroadcast}, {Kind: kind}}}
		p, _ := newPipeline(conn, time.Second)

		_, err := p.Submit(context.Background(), testutil.MustSigner("//Alice"), transferTo(bob, 1))
		require.ErrorIs(t, err, errors.ErrSubmissionRejected, kind.String())
		assert.Contains(t, errors.GetServiceError(err).Message, kind.String())
	}
}

func TestSubmit_RetractedIsNotTerminal(t *testing.T) {
	conn := &testutil.FakeConn{Statuses: []chain.Status{
		{Kind: chain.StatusInBlock, BlockHash: "0x01"},
		{Kind: chain.StatusRetracted, BlockHash: "0x01"},
		{Kind: chain.StatusInBlock, BlockHash: "0x02"},
		{Kind: chain.StatusFinalized, BlockHash: "0x02"},
	}}
	p, _ := newPipeline(conn, time.Second)

	out, err := p.Submit(context.Background(), testutil.MustSigner("//Alice"), transferTo(bob, 1))
	require.NoError(t, err)
	assert.Equal(t, "0x02", out.BlockHash)
}

func TestSubmit_ExtrinsicFailed(t *testing.T) {
	conn := testutil.NewFakeConn(
		testutil.Event(chain.KindExtrinsicFailed, testutil.F("dispatch_error", "Dex.InsufficientBalance")),
	)
	p, _ := newPipeline(conn, time.Second)

	_, err := p.Submit(context.Background(), testutil.MustSigner("//Alice"), transferTo(bob, 1))
	require.ErrorIs(t, err, errors.ErrSubmissionRejected)
	assert.Equal(t, "Extrinsic failed: Dex.InsufficientBalance", errors.GetServiceError(err).Message)
}

func TestSubmit_StalledWithoutDeadlineStaysPending(t *testing.T) {
	conn := &testutil.FakeConn{Statuses: []chain.Status{{Kind: chain.StatusReady}}}
	p, client := newPipeline(conn, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(ctx, testutil.MustSigner("//Alice"), transferTo(bob, 1))
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("submission returned while stalled: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	assert.True(t, client.Busy())

	cancel()
	select {
	case err := <-done:
		assert.True(t, chain.IsTimeout(err))
		assert.True(t, stderrors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("submission did not return after cancel")
	}
	assert.False(t, client.Busy())
}

func TestSubmit_StalledWithDeadlineTimesOut(t *testing.T) {
	conn := &testutil.FakeConn{Statuses: []chain.Status{{Kind: chain.StatusReady}}}
	p, client := newPipeline(conn, 50*time.Millisecond)

	start := time.Now()
	_, err := p.Submit(context.Background(), testutil.MustSigner("//Alice"), transferTo(bob, 1))
	require.ErrorIs(t, err, errors.ErrSubmissionTimedOut)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, client.Busy())
}

func TestSubmit_StreamFailures(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		conn := &testutil.FakeConn{StreamErr: stderrors.New("connection reset")}
		p, _ := newPipeline(conn, time.Second)
		_, err := p.Submit(context.Background(), testutil.MustSigner("//Alice"), transferTo(bob, 1))
		assert.ErrorIs(t, err, errors.ErrUpstreamUnavailable)
	})

	t.Run("closed early", func(t *testing.T) {
		conn := &testutil.FakeConn{Statuses: []chain.Status{{Kind: chain.StatusReady}}, CloseStream: true}
		p, _ := newPipeline(conn, time.Second)
		_, err := p.Submit(context.Background(), testutil.MustSigner("//Alice"), transferTo(bob, 1))
		assert.ErrorIs(t, err, errors.ErrUpstreamUnavailable)
	})

	t.Run("watch fails", func(t *testing.T) {
		conn := &testutil.FakeConn{WatchErr: stderrors.New("refused")}
		p, client := newPipeline(conn, time.Second)
		_, err := p.Submit(context.Background(), testutil.MustSigner("//Alice"), transferTo(bob, 1))
		assert.ErrorIs(t, err, errors.ErrUpstreamUnavailable)
		assert.False(t, client.Busy())
	})
}

func TestSubmit_StageErrors(t *testing.T) {
	conn := &testutil.FakeConn{ConstructErr: stderrors.New("call not in metadata")}
	p, _ := newPipeline(conn, time.Second)
	_, err := p.Submit(context.Background(), testutil.MustSigner("//Alice"), transferTo(bob, 1))
	assert.ErrorIs(t, err, errors.ErrUnsupportedCall)

	conn = &testutil.FakeConn{SignErr: stderrors.New("bad key")}
	p, _ = newPipeline(conn, time.Second)
	_, err = p.Submit(context.Background(), testutil.MustSigner("//Alice"), transferTo(bob, 1))
	assert.ErrorIs(t, err, errors.ErrSigningError)
}

type recorder struct {
	results []string
}

func (r *recorder) ObserveSubmission(_, result string, _ time.Duration) {
	r.results = append(r.results, result)
}
func (r *recorder) ObserveStatus(string) {}

func TestSubmit_RecordsOutcome(t *testing.T) {
	rec := &recorder{}
	p, _ := newPipeline(testutil.NewFakeConn(), time.Second)
	p.Recorder = rec

	_, err := p.Submit(context.Background(), testutil.MustSigner("//Alice"), transferTo(bob, 1))
	require.NoError(t, err)
	_, err = p.Submit(context.Background(), testutil.MustSigner("//Alice"),
		chain.BuyAssets{AssetIDs: []uint64{1}})
	require.Error(t, err)

	assert.Equal(t, []string{"finalized", "parameter_mismatch"}, rec.results)
}
