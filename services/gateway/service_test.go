package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
	"github.com/JonathanJFlores/sugarfunge-api/internal/crypto"
	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
	"github.com/JonathanJFlores/sugarfunge-api/internal/logging"
	"github.com/JonathanJFlores/sugarfunge-api/internal/metrics"
	"github.com/JonathanJFlores/sugarfunge-api/pkg/testutil"
	"github.com/JonathanJFlores/sugarfunge-api/services/gateway/store"
)

const (
	aliceSS58 = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	bobSS58   = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
)

var (
	alice = testutil.MustSigner("//Alice").AccountID()
	bob   = testutil.MustSigner("//Bob").AccountID()
	carol = testutil.MustSigner("//Charlie").AccountID()

	testBundleID = chain.BundleID{0xb0, 0x0d, 0x1e}
)

type fakeAudit struct {
	mu      sync.Mutex
	records map[string]*store.Record
	order   []string
}

func newFakeAudit() *fakeAudit {
	return &fakeAudit{records: make(map[string]*store.Record)}
}

func (f *fakeAudit) Create(_ context.Context, rec *store.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	cp.Status = store.StatusPending
	f.records[rec.RequestID] = &cp
	f.order = append(f.order, rec.RequestID)
	return nil
}

func (f *fakeAudit) ListByUser(_ context.Context, userID string, limit int) ([]store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var out []store.Record
	for i := len(f.order) - 1; i >= 0 && len(out) < limit; i-- {
		if rec := f.records[f.order[i]]; rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeAudit) Complete(_ context.Context, requestID string, c store.Completion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[requestID]
	if !ok {
		return errors.NotFound("submission " + requestID)
	}
	rec.Status = c.Status
	rec.ExtrinsicHash = c.ExtrinsicHash
	rec.BlockHash = c.BlockHash
	rec.ErrorCode = c.ErrorCode
	rec.ErrorMessage = c.ErrorMessage
	return nil
}

func (f *fakeAudit) Get(_ context.Context, requestID string) (*store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[requestID]
	if !ok {
		return nil, errors.NotFound("submission " + requestID)
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeAudit) Ping(context.Context) error { return nil }

type harness struct {
	svc   *Service
	conn  *testutil.FakeConn
	seeds *testutil.MemorySeedStore
	audit *fakeAudit
}

func newHarness(t *testing.T, conn *testutil.FakeConn, configure ...func(*Options)) *harness {
	t.Helper()
	client := chain.NewClient(conn, logging.NewDiscard())
	seeds := testutil.NewMemorySeedStore("alice-user", "//Alice", "bob-user", "//Bob")
	audit := newFakeAudit()
	opts := Options{
		Client:     client,
		Pipeline:   chain.NewPipeline(client, logging.NewDiscard(), 2*time.Second),
		Seeds:      seeds,
		Audit:      audit,
		Metrics:    metrics.New(false),
		Logger:     logging.NewDiscard(),
		SS58Prefix: chain.DefaultSS58Prefix,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	return &harness{svc: New(opts), conn: conn, seeds: seeds, audit: audit}
}

func (h *harness) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(logging.WithUserID(req.Context(), userID))
	}
	rr := httptest.NewRecorder()
	h.svc.Router().ServeHTTP(rr, req)
	return rr
}

func message(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	msg, _ := body["message"].(string)
	return msg
}

// =============================================================================
// Ledger operations
// =============================================================================

func TestFund_EndToEnd(t *testing.T) {
	conn := testutil.NewFakeConn(testutil.Event(chain.KindTransfer,
		testutil.F("from", alice), testutil.F("to", bob), testutil.F("amount", uint64(100))))
	h := newHarness(t, conn)

	rr := h.do(t, http.MethodPost, "/account/fund", "alice-user", map[string]any{"to": bobSS58, "amount": 100})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"from":"`+aliceSS58+`","to":"`+bobSS58+`","amount":100}`, rr.Body.String())

	submitted := conn.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, "Balances.transfer", submitted[0].String())

	requestID := rr.Header().Get(RequestIDHeader)
	require.NotEmpty(t, requestID)
	rec, err := h.audit.Get(context.Background(), requestID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFinalized, rec.Status)
	assert.Equal(t, "alice-user", rec.UserID)
	assert.Equal(t, aliceSS58, rec.Signer)
	assert.NotEmpty(t, rec.BlockHash)
}

func TestEscrowCreate_MissingEvent(t *testing.T) {
	// Finalized, but the block only carries an unrelated transfer.
	conn := testutil.NewFakeConn(testutil.Event(chain.KindTransfer,
		testutil.F("from", alice), testutil.F("to", bob), testutil.F("amount", uint64(1))))
	h := newHarness(t, conn)

	rr := h.do(t, http.MethodPost, "/escrow/create", "alice-user", map[string]any{"owner": bobSS58})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"message":"Failed to find sugarfunge::escrow::events::Created"}`, rr.Body.String())

	rec, err := h.audit.Get(context.Background(), rr.Header().Get(RequestIDHeader))
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, rec.Status)
	assert.Equal(t, string(errors.CodeEventNotFound), rec.ErrorCode)
}

func TestOperations_RejectedBeforeLedger(t *testing.T) {
	tests := []struct {
		name string
		path string
		body any
		want string
	}{
		{
			name: "invalid account",
			path: "/account/fund",
			body: map[string]any{"to": "not-an-address", "amount": 1},
			want: "Invalid account",
		},
		{
			name: "buy mismatch",
			path: "/dex/buy_assets",
			body: map[string]any{"exchange_id": 1, "asset_ids": []int{1, 2}, "asset_amounts_out": []int{5}, "max_currency": 10, "to": bobSS58},
			want: "Parameter mismatch: asset_amounts_out has 1 entries, expected 2",
		},
		{
			name: "sell mismatch",
			path: "/dex/sell_assets",
			body: map[string]any{"exchange_id": 1, "asset_ids": []int{}, "asset_amounts_in": []int{5}, "min_currency": 1, "to": bobSS58},
			want: "Parameter mismatch: asset_amounts_in has 1 entries, expected 0",
		},
		{
			name: "add liquidity mismatch",
			path: "/dex/add_liquidity",
			body: map[string]any{"exchange_id": 1, "to": bobSS58, "asset_ids": []int{1}, "asset_amounts": []int{1}, "max_currencies": []int{1, 2, 3}},
			want: "Parameter mismatch: max_currencies has 3 entries, expected 1",
		},
		{
			name: "remove liquidity mismatch",
			path: "/dex/remove_liquidity",
			body: map[string]any{"exchange_id": 1, "to": bobSS58, "asset_ids": []int{1}, "liquidities": []int{1}, "min_currencies": []int{1}, "min_assets": []int{}},
			want: "Parameter mismatch: min_assets has 0 entries, expected 1",
		},
		{
			name: "deposit mismatch",
			path: "/escrow/deposit",
			body: map[string]any{"escrow": bobSS58, "class_id": 1, "asset_ids": []int{1, 2, 3}, "amounts": []int{1}},
			want: "Parameter mismatch: amounts has 1 entries, expected 3",
		},
		{
			name: "negative amount",
			path: "/account/fund",
			body: `{"to":"` + bobSS58 + `","amount":-1}`,
		},
		{
			name: "missing metadata",
			path: "/asset/create",
			body: map[string]any{"class_id": 1, "asset_id": 2},
			want: "metadata is required",
		},
		{
			name: "mistyped seed field",
			path: "/escrow/refund",
			body: map[string]any{"escrow": bobSS58, "sed": "//Bob"},
			want: `Invalid request body: json: unknown field "sed"`,
		},
		{
			name: "bundle schema mismatch",
			path: "/bundle/register",
			body: map[string]any{"class_id": 1, "asset_id": 2, "metadata": map[string]any{"name": "pack"},
				"schema": map[string]any{"class_ids": []int{1}, "asset_ids": [][]int{{1, 2}}, "amounts": [][]int{{5}}}},
			want: "Parameter mismatch: amounts[0] has 1 entries, expected 2",
		},
		{
			name: "bundle id missing",
			path: "/bundle/mint",
			body: map[string]any{"from": aliceSS58, "to": bobSS58, "amount": 1},
			want: "bundle_id is required",
		},
		{
			name: "bundle id malformed",
			path: "/bundle/burn",
			body: map[string]any{"from": aliceSS58, "to": bobSS58, "bundle_id": "0x1234", "amount": 1},
		},
		{
			name: "issue beyond i128",
			path: "/currency/issue",
			body: map[string]any{"account": bobSS58, "currency_id": map[string]any{"class_id": 0, "asset_id": 1}, "amount": "170141183460469231731687303715884105728"},
			want: "amount exceeds the signed 128-bit range",
		},
		{
			name: "empty body",
			path: "/escrow/refund",
			body: "",
			want: "Request body is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := testutil.NewFakeConn()
			h := newHarness(t, conn)

			rr := h.do(t, http.MethodPost, tt.path, "alice-user", tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			if tt.want != "" {
				assert.Equal(t, tt.want, message(t, rr))
			}
			assert.Zero(t, conn.Calls(), "no ledger calls expected")
		})
	}
}

func TestOperations_SignerResolution(t *testing.T) {
	t.Run("no user", func(t *testing.T) {
		conn := testutil.NewFakeConn()
		h := newHarness(t, conn)
		rr := h.do(t, http.MethodPost, "/escrow/refund", "", map[string]any{"escrow": bobSS58})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Zero(t, conn.Calls())
	})

	t.Run("seed not provisioned", func(t *testing.T) {
		conn := testutil.NewFakeConn()
		h := newHarness(t, conn)
		rr := h.do(t, http.MethodPost, "/escrow/refund", "nobody", map[string]any{"escrow": bobSS58})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "No key material provisioned for user", message(t, rr))
		assert.Zero(t, conn.Calls())
	})

	t.Run("identity provider down", func(t *testing.T) {
		conn := testutil.NewFakeConn()
		h := newHarness(t, conn)
		h.seeds.Err = errors.UpstreamUnavailable("identity provider", context.DeadlineExceeded)
		rr := h.do(t, http.MethodPost, "/escrow/refund", "alice-user", map[string]any{"escrow": bobSS58})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "identity provider unavailable", message(t, rr))
	})

	t.Run("inline seed disabled", func(t *testing.T) {
		conn := testutil.NewFakeConn()
		h := newHarness(t, conn)
		rr := h.do(t, http.MethodPost, "/escrow/refund", "alice-user", map[string]any{"escrow": bobSS58, "seed": "//Bob"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Zero(t, conn.Calls())
	})

	t.Run("inline seed enabled", func(t *testing.T) {
		conn := testutil.NewFakeConn(testutil.Event(chain.KindEscrowRefund,
			testutil.F("escrow", carol), testutil.F("operator", bob), testutil.F("owner", alice)))
		h := newHarness(t, conn, func(o *Options) { o.AllowInlineSeed = true })

		rr := h.do(t, http.MethodPost, "/escrow/refund", "", map[string]any{"escrow": carol.String(), "seed": "//Bob"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp EscrowResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, bobSS58, resp.Operator)
	})
}

func TestOperations_EventShapes(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		body  any
		event chain.EventRecord
		want  string
	}{
		{
			name: "create exchange",
			path: "/dex/create",
			body: map[string]any{"exchange_id": 7, "currency_id": map[string]any{"class_id": 0, "asset_id": 0}, "asset_class_id": 3, "lp_class_id": 4},
			event: testutil.Event(chain.KindExchangeCreated,
				testutil.F("exchange_id", uint32(7)), testutil.F("who", alice)),
			want: `{"exchange_id":7,"who":"` + aliceSS58 + `"}`,
		},
		{
			name: "buy assets",
			path: "/dex/buy_assets",
			body: map[string]any{"exchange_id": 7, "asset_ids": []int{1}, "asset_amounts_out": []int{5}, "max_currency": 50, "to": bobSS58},
			event: testutil.Event(chain.KindCurrencyToAsset,
				testutil.F("exchange_id", uint32(7)), testutil.F("who", alice), testutil.F("to", bob),
				testutil.F("asset_ids", []uint64{1}), testutil.F("asset_amounts_out", chain.Amounts(5)),
				testutil.F("currency_amounts_in", chain.Amounts(42))),
			want: `{"exchange_id":7,"who":"` + aliceSS58 + `","to":"` + bobSS58 + `","asset_ids":[1],"asset_amounts_out":[5],"currency_amounts_in":[42]}`,
		},
		{
			name: "remove liquidity",
			path: "/dex/remove_liquidity",
			body: map[string]any{"exchange_id": 7, "to": aliceSS58, "asset_ids": []int{1}, "liquidities": []int{9}, "min_currencies": []int{1}, "min_assets": []int{1}},
			event: testutil.Event(chain.KindLiquidityRemoved,
				testutil.F("exchange_id", uint32(7)), testutil.F("who", alice), testutil.F("to", alice),
				testutil.F("asset_ids", []uint64{1}), testutil.F("asset_amounts", chain.Amounts(3)),
				testutil.F("currency_amounts", chain.Amounts(4))),
			want: `{"exchange_id":7,"who":"` + aliceSS58 + `","to":"` + aliceSS58 + `","asset_ids":[1],"asset_amounts":[3],"currency_amounts":[4]}`,
		},
		{
			name: "escrow deposit",
			path: "/escrow/deposit",
			body: map[string]any{"escrow": bobSS58, "class_id": 1, "asset_ids": []int{1}, "amounts": []int{2}},
			event: testutil.Event(chain.KindEscrowDeposit,
				testutil.F("escrow", bob), testutil.F("operator", alice), testutil.F("owner", carol)),
			want: `{"escrow":"` + bobSS58 + `","operator":"` + aliceSS58 + `","owner":"` + carol.String() + `"}`,
		},
		{
			name: "mint asset",
			path: "/asset/mint",
			body: map[string]any{"to": bobSS58, "class_id": 1, "asset_id": 2, "amount": "340282366920938463463374607431768211455"},
			event: testutil.Event(chain.KindAssetMint,
				testutil.F("who", alice), testutil.F("to", bob), testutil.F("class_id", uint64(1)),
				testutil.F("asset_id", uint64(2)), testutil.F("amount", "340282366920938463463374607431768211455")),
			want: `{"who":"` + aliceSS58 + `","to":"` + bobSS58 + `","class_id":1,"asset_id":2,"amount":340282366920938463463374607431768211455}`,
		},
		{
			name: "create class",
			path: "/asset/create_class",
			body: map[string]any{"owner": aliceSS58, "class_id": 9, "metadata": map[string]any{"name": "fula"}},
			event: testutil.Event(chain.KindClassCreated,
				testutil.F("class_id", uint64(9)), testutil.F("who", alice)),
			want: `{"class_id":9,"who":"` + aliceSS58 + `"}`,
		},
		{
			name: "burn currency",
			path: "/currency/burn",
			body: map[string]any{"currency_id": map[string]any{"class_id": 0, "asset_id": 1}, "amount": 10},
			event: testutil.Event(chain.KindCurrencyBurn,
				testutil.F("currency_id", chain.CurrencyID{AssetID: 1}), testutil.F("amount", uint64(10)),
				testutil.F("who", alice)),
			want: `{"currency_id":{"class_id":0,"asset_id":1},"amount":10,"who":"` + aliceSS58 + `"}`,
		},
		{
			name: "issue currency",
			path: "/currency/issue",
			body: map[string]any{"account": bobSS58, "currency_id": map[string]any{"class_id": 0, "asset_id": 1}, "amount": 700},
			event: testutil.Event(chain.KindBalanceUpdated,
				testutil.F("currency_id", chain.CurrencyID{AssetID: 1}), testutil.F("who", bob),
				testutil.F("amount", uint64(700))),
			want: `{"currency_id":{"class_id":0,"asset_id":1},"amount":700,"who":"` + bobSS58 + `"}`,
		},
		{
			name: "register bundle",
			path: "/bundle/register",
			body: map[string]any{"class_id": 5, "asset_id": 6, "bundle_id": testBundleID.String(), "metadata": map[string]any{"name": "pack"},
				"schema": map[string]any{"class_ids": []int{1}, "asset_ids": [][]int{{1, 2}}, "amounts": [][]int{{5, 6}}}},
			event: testutil.Event(chain.KindBundleRegistered,
				testutil.F("bundle_id", testBundleID), testutil.F("who", alice),
				testutil.F("class_id", uint64(5)), testutil.F("asset_id", uint64(6))),
			want: `{"bundle_id":"` + testBundleID.String() + `","who":"` + aliceSS58 + `","class_id":5,"asset_id":6}`,
		},
		{
			name: "mint bundle",
			path: "/bundle/mint",
			body: map[string]any{"from": aliceSS58, "to": bobSS58, "bundle_id": testBundleID.String(), "amount": 2},
			event: testutil.Event(chain.KindBundleMint,
				testutil.F("bundle_id", testBundleID), testutil.F("who", alice), testutil.F("from", alice),
				testutil.F("to", bob), testutil.F("amount", uint64(2))),
			want: `{"bundle_id":"` + testBundleID.String() + `","who":"` + aliceSS58 + `","from":"` + aliceSS58 + `","to":"` + bobSS58 + `","amount":2}`,
		},
		{
			name: "burn bundle",
			path: "/bundle/burn",
			body: map[string]any{"from": bobSS58, "to": bobSS58, "bundle_id": testBundleID.String(), "amount": 1},
			event: testutil.Event(chain.KindBundleBurn,
				testutil.F("bundle_id", testBundleID), testutil.F("who", alice), testutil.F("from", bob),
				testutil.F("to", bob), testutil.F("amount", uint64(1))),
			want: `{"bundle_id":"` + testBundleID.String() + `","who":"` + aliceSS58 + `","from":"` + bobSS58 + `","to":"` + bobSS58 + `","amount":1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testutil.NewFakeConn(tt.event))
			rr := h.do(t, http.MethodPost, tt.path, "alice-user", tt.body)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			assert.JSONEq(t, tt.want, rr.Body.String())
		})
	}
}

func TestOperations_LedgerRejection(t *testing.T) {
	conn := testutil.NewFakeConn()
	conn.Statuses = []chain.Status{
		{Kind: chain.StatusReady},
		{Kind: chain.StatusInvalid, Reason: "Transaction has a bad signature"},
	}
	h := newHarness(t, conn)

	rr := h.do(t, http.MethodPost, "/account/fund", "alice-user", map[string]any{"to": bobSS58, "amount": 1})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Transaction has a bad signature", message(t, rr))
	assert.False(t, h.svc.client.Busy(), "submission slot released")
}

func TestIssueCurrency_SubmitsThroughSudo(t *testing.T) {
	conn := testutil.NewFakeConn(testutil.Event(chain.KindBalanceUpdated,
		testutil.F("currency_id", chain.CurrencyID{AssetID: 1}), testutil.F("who", bob),
		testutil.F("amount", uint64(5))))
	h := newHarness(t, conn)

	rr := h.do(t, http.MethodPost, "/currency/issue", "alice-user",
		map[string]any{"account": bobSS58, "currency_id": map[string]any{"class_id": 0, "asset_id": 1}, "amount": 5})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	submitted := conn.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, "Sudo.sudo", submitted[0].String())
	require.Len(t, submitted[0].Args, 1)
	assert.Equal(t, "Currencies.update_balance", submitted[0].Args[0].(chain.Call).String())
}

func TestRegisterBundle_DerivesID(t *testing.T) {
	schema := chain.BundleSchema{
		ClassIDs: []uint64{1},
		AssetIDs: [][]uint64{{1, 2}},
		Amounts:  [][]chain.Amount{chain.Amounts(5, 6)},
	}
	want, err := chain.BundleIDFor(schema)
	require.NoError(t, err)

	conn := testutil.NewFakeConn(testutil.Event(chain.KindBundleRegistered,
		testutil.F("bundle_id", want), testutil.F("who", alice),
		testutil.F("class_id", uint64(5)), testutil.F("asset_id", uint64(6))))
	h := newHarness(t, conn)

	rr := h.do(t, http.MethodPost, "/bundle/register", "alice-user",
		map[string]any{"class_id": 5, "asset_id": 6, "schema": schema, "metadata": map[string]any{"name": "pack"}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	submitted := conn.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, "Bundle.register_bundle", submitted[0].String())
	assert.Equal(t, want, submitted[0].Args[2])

	var resp RegisterBundleResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, want, resp.BundleID)
}

// =============================================================================
// Read routes
// =============================================================================

func TestStorageReads(t *testing.T) {
	currency := chain.CurrencyID{ClassID: 0, AssetID: 1}
	conn := testutil.NewFakeConn()
	conn.Storage = map[string]chain.Amount{
		chain.AssetBalanceQuery(bob, 3, 4).String():          chain.NewAmount(12),
		chain.CurrencyIssuanceQuery(currency).String():       chain.NewAmount(5000),
		chain.CurrencyBalanceQuery(alice, currency).String(): chain.NewAmount(250),
	}
	h := newHarness(t, conn)
	currencyBody := map[string]any{"class_id": 0, "asset_id": 1}

	tests := []struct {
		name string
		path string
		body any
		want string
	}{
		{
			name: "asset balance",
			path: "/asset/balance",
			body: map[string]any{"account": bobSS58, "class_id": 3, "asset_id": 4},
			want: `{"amount":12}`,
		},
		{
			name: "asset balance never written",
			path: "/asset/balance",
			body: map[string]any{"account": aliceSS58, "class_id": 3, "asset_id": 4},
			want: `{"amount":0}`,
		},
		{
			name: "currency issuance",
			path: "/currency/issuance",
			body: map[string]any{"currency_id": currencyBody},
			want: `{"currency_id":{"class_id":0,"asset_id":1},"amount":5000}`,
		},
		{
			name: "currency supply",
			path: "/currency/supply",
			body: map[string]any{"account": aliceSS58, "currency_id": currencyBody},
			want: `{"currency_id":{"class_id":0,"asset_id":1},"account":"` + aliceSS58 + `","amount":250}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := h.do(t, http.MethodPost, tt.path, "alice-user", tt.body)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			assert.JSONEq(t, tt.want, rr.Body.String())
		})
	}
	assert.Empty(t, conn.Submitted(), "reads never submit")

	rr := h.do(t, http.MethodPost, "/asset/balance", "alice-user", map[string]any{"account": "5Grw", "class_id": 3, "asset_id": 4})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	conn.BalanceErr = errors.UpstreamUnavailable("ledger", context.DeadlineExceeded)
	rr = h.do(t, http.MethodPost, "/currency/issuance", "alice-user", map[string]any{"currency_id": currencyBody})
	assert.NotEqual(t, http.StatusOK, rr.Code)
}

// =============================================================================
// Account and user routes
// =============================================================================

func TestCreateAccount(t *testing.T) {
	h := newHarness(t, testutil.NewFakeConn())

	rr := h.do(t, http.MethodPost, "/account/create", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp CreateAccountResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	kp, err := crypto.Resolve(resp.Seed)
	require.NoError(t, err)
	assert.Equal(t, kp.AccountID().String(), resp.Account)
	assert.Zero(t, h.conn.Calls())
}

func TestBalance(t *testing.T) {
	conn := testutil.NewFakeConn()
	conn.Balances = map[chain.AccountID]chain.Amount{bob: chain.NewAmount(1234)}
	h := newHarness(t, conn)

	rr := h.do(t, http.MethodPost, "/account/balance", "alice-user", map[string]any{"account": bobSS58})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"balance":1234}`, rr.Body.String())

	rr = h.do(t, http.MethodPost, "/account/balance", "alice-user", map[string]any{"account": "5Grw"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVerifySeed(t *testing.T) {
	h := newHarness(t, testutil.NewFakeConn())

	rr := h.do(t, http.MethodGet, "/user/verify_seed", "alice-user", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"error":null,"message":"User with atrribute"}`, rr.Body.String())

	rr = h.do(t, http.MethodGet, "/user/verify_seed", "new-user", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"error":null,"message":"Attribute insert to user attributes"}`, rr.Body.String())

	seed, found, err := h.seeds.GetSeed(context.Background(), "new-user")
	require.NoError(t, err)
	require.True(t, found)
	_, err = crypto.Resolve(seed)
	assert.NoError(t, err)

	rr = h.do(t, http.MethodGet, "/user/verify_seed", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTransferSeed(t *testing.T) {
	h := newHarness(t, testutil.NewFakeConn())

	rr := h.do(t, http.MethodPost, "/account/transfer", "alice-user", map[string]any{"to": "carol-user"})
	require.Equal(t, http.StatusOK, rr.Code)

	seed, found, _ := h.seeds.GetSeed(context.Background(), "carol-user")
	assert.True(t, found)
	assert.Equal(t, "//Alice", seed)
	_, found, _ = h.seeds.GetSeed(context.Background(), "alice-user")
	assert.False(t, found)

	rr = h.do(t, http.MethodPost, "/account/transfer", "alice-user", map[string]any{"to": "carol-user"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "No key material provisioned for user", message(t, rr))
}

func TestTransferSeed_ReceiverAlreadyProvisioned(t *testing.T) {
	h := newHarness(t, testutil.NewFakeConn())
	ctx := context.Background()

	rr := h.do(t, http.MethodPost, "/account/transfer", "alice-user", map[string]any{"to": "bob-user"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"error":null,"message":"User with atrribute"}`, rr.Body.String())

	seed, found, _ := h.seeds.GetSeed(ctx, "bob-user")
	assert.True(t, found)
	assert.Equal(t, "//Bob", seed)
	seed, found, _ = h.seeds.GetSeed(ctx, "alice-user")
	assert.True(t, found)
	assert.Equal(t, "//Alice", seed)
}

func TestTransferSeed_ReceiverLookupFails(t *testing.T) {
	h := newHarness(t, testutil.NewFakeConn())
	h.seeds.Err = errors.UpstreamUnavailable("identity provider", context.DeadlineExceeded)

	rr := h.do(t, http.MethodPost, "/account/transfer", "alice-user", map[string]any{"to": "carol-user"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "identity provider unavailable", message(t, rr))
}

func TestGetSubmission(t *testing.T) {
	conn := testutil.NewFakeConn(testutil.Event(chain.KindTransfer,
		testutil.F("from", alice), testutil.F("to", bob), testutil.F("amount", uint64(5))))
	h := newHarness(t, conn)

	rr := h.do(t, http.MethodPost, "/account/fund", "alice-user", map[string]any{"to": bobSS58, "amount": 5})
	require.Equal(t, http.StatusOK, rr.Code)
	id := rr.Header().Get(RequestIDHeader)

	rr = h.do(t, http.MethodGet, "/tx/"+id, "alice-user", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var rec store.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, "transfer", rec.Call)
	assert.Equal(t, store.StatusFinalized, rec.Status)

	rr = h.do(t, http.MethodGet, "/tx/"+id, "bob-user", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = h.do(t, http.MethodGet, "/tx/unknown", "alice-user", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListSubmissions(t *testing.T) {
	conn := testutil.NewFakeConn(testutil.Event(chain.KindTransfer,
		testutil.F("from", alice), testutil.F("to", bob), testutil.F("amount", uint64(5))))
	h := newHarness(t, conn)

	var ids []string
	for i := 0; i < 3; i++ {
		rr := h.do(t, http.MethodPost, "/account/fund", "alice-user", map[string]any{"to": bobSS58, "amount": 5})
		require.Equal(t, http.StatusOK, rr.Code)
		ids = append(ids, rr.Header().Get(RequestIDHeader))
	}

	rr := h.do(t, http.MethodGet, "/tx?limit=2", "alice-user", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list SubmissionList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Submissions, 2)
	assert.Equal(t, ids[2], list.Submissions[0].RequestID)
	assert.Equal(t, ids[1], list.Submissions[1].RequestID)

	rr = h.do(t, http.MethodGet, "/tx", "bob-user", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"submissions":[]}`, rr.Body.String())

	rr = h.do(t, http.MethodGet, "/tx?limit=many", "alice-user", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, http.MethodGet, "/tx", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStandardRoutes(t *testing.T) {
	conn := testutil.NewFakeConn()
	h := newHarness(t, conn)

	rr := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	conn.PingErr = errors.UpstreamUnavailable("ledger", context.DeadlineExceeded)
	rr = h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = h.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestScheduledJobs(t *testing.T) {
	conn := testutil.NewFakeConn()
	h := newHarness(t, conn)

	require.NoError(t, h.svc.ScheduleJobs("@every 10m", "@every 30s"))
	assert.Equal(t, 2, h.svc.JobCount())

	require.NoError(t, h.svc.refreshMetadata(context.Background()))
	assert.Equal(t, 1, conn.Refreshes())
	require.NoError(t, h.svc.checkLedger(context.Background()))

	assert.Error(t, h.svc.ScheduleJobs("whenever", ""))
}
