package main

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
	"github.com/JonathanJFlores/sugarfunge-api/internal/config"
	"github.com/JonathanJFlores/sugarfunge-api/internal/logging"
	"github.com/JonathanJFlores/sugarfunge-api/internal/metrics"
	"github.com/JonathanJFlores/sugarfunge-api/internal/middleware"
	"github.com/JonathanJFlores/sugarfunge-api/pkg/testutil"
	"github.com/JonathanJFlores/sugarfunge-api/services/gateway"
)

type testServer struct {
	handler http.Handler
	key     *rsa.PrivateKey
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cfg := config.Default()
	logger := logging.NewDiscard()
	m := metrics.New(false)
	limiter := middleware.NewRateLimiter(100, 100, logger)
	router := newRouter(cfg, logger, m, &key.PublicKey, limiter)

	conn := testutil.NewFakeConn()
	client := chain.NewClient(conn, logger)
	gateway.New(gateway.Options{
		Client:     client,
		Pipeline:   chain.NewPipeline(client, logger, time.Second),
		Seeds:      testutil.NewMemorySeedStore("user-1", "//Alice"),
		Metrics:    m,
		Logger:     logger,
		Router:     router,
		SS58Prefix: cfg.SS58Prefix,
	})
	return &testServer{handler: router, key: key}
}

func (s *testServer) token(t *testing.T, sub string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	require.NoError(t, err)
	return signed
}

func TestRouter_PublicPaths(t *testing.T) {
	s := newTestServer(t)

	for _, path := range publicPaths {
		rr := httptest.NewRecorder()
		s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.NotEmpty(t, rr.Header().Get(middleware.TraceHeader), path)
	}
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/user/verify_seed", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/user/verify_seed", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(t, "user-1"))
	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "User with atrribute")
}

func TestRouter_Preflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/account/fund", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestWriteTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), writeTimeout(0))
	assert.Equal(t, 150*time.Second, writeTimeout(2*time.Minute))
}

func TestKeyCommands(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"inspect", "//Alice"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY")

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"keygen"})
	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "seed:"))

	root = newRootCmd()
	root.SetArgs([]string{"inspect", "0xnothex"})
	assert.Error(t, root.Execute())
}
