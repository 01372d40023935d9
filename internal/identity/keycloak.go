// Package identity stores per-user key seeds in the identity provider.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
	"github.com/JonathanJFlores/sugarfunge-api/internal/logging"
)

// SeedAttribute is the user attribute holding the key seed.
const SeedAttribute = "user-seed"

// SeedStore reads and writes a user's key seed. A missing seed is reported
// as found == false, not as an error.
type SeedStore interface {
	GetSeed(ctx context.Context, userID string) (seed string, found bool, err error)
	// PutSeed stores seed; an empty seed clears the attribute.
	PutSeed(ctx context.Context, userID, seed string) error
}

// Observer receives identity-provider request outcomes.
type Observer interface {
	RecordIdentityRequest(operation string, success bool)
}

// KeycloakConfig configures the admin client.
type KeycloakConfig struct {
	Host         string
	Realm        string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Timeout      time.Duration
}

// Keycloak is a SeedStore backed by the Keycloak admin REST API. It logs in
// with the password grant and reuses the token until it expires.
type Keycloak struct {
	cfg      KeycloakConfig
	http     *http.Client
	logger   *logging.Logger
	observer Observer
}

var _ SeedStore = (*Keycloak)(nil)

// NewKeycloak creates the client. base may be nil.
func NewKeycloak(cfg KeycloakConfig, base *http.Client, logger *logging.Logger, observer Observer) *Keycloak {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  strings.TrimRight(cfg.Host, "/") + "/auth/realms/" + url.PathEscape(cfg.Realm) + "/protocol/openid-connect/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"openid"},
	}
	src := oauth2.ReuseTokenSource(nil, &passwordSource{
		cfg:      oauthCfg,
		username: cfg.Username,
		password: cfg.Password,
		base:     base,
	})

	return &Keycloak{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &oauth2.Transport{Source: src, Base: base.Transport},
		},
		logger:   logger,
		observer: observer,
	}
}

type passwordSource struct {
	cfg      *oauth2.Config
	username string
	password string
	base     *http.Client
}

func (s *passwordSource) Token() (*oauth2.Token, error) {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, s.base)
	return s.cfg.PasswordCredentialsToken(ctx, s.username, s.password)
}

func (k *Keycloak) userURL(userID string) string {
	return fmt.Sprintf("%s/auth/admin/realms/%s/users/%s",
		strings.TrimRight(k.cfg.Host, "/"), url.PathEscape(k.cfg.Realm), url.PathEscape(userID))
}

// GetSeed reads attributes.user-seed[0] of the user.
func (k *Keycloak) GetSeed(ctx context.Context, userID string) (string, bool, error) {
	body, found, err := k.getUser(ctx, userID)
	k.record("get_seed", err == nil)
	if err != nil || !found {
		return "", false, err
	}
	seed := gjson.GetBytes(body, "attributes."+SeedAttribute+".0").String()
	return seed, seed != "", nil
}

// PutSeed sets or clears the seed attribute, keeping the user's other
// attributes.
func (k *Keycloak) PutSeed(ctx context.Context, userID, seed string) error {
	err := k.putSeed(ctx, userID, seed)
	k.record("put_seed", err == nil)
	return err
}

func (k *Keycloak) putSeed(ctx context.Context, userID, seed string) error {
	body, found, err := k.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if !found {
		return errors.NotFound("user " + userID)
	}

	attrs := map[string]any{}
	if raw, ok := gjson.GetBytes(body, "attributes").Value().(map[string]any); ok {
		attrs = raw
	}
	if seed == "" {
		delete(attrs, SeedAttribute)
	} else {
		attrs[SeedAttribute] = []string{seed}
	}

	payload, err := json.Marshal(map[string]any{"attributes": attrs})
	if err != nil {
		return errors.Internal("encode user attributes", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, k.userURL(userID), bytes.NewReader(payload))
	if err != nil {
		return errors.Internal("build identity request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := k.http.Do(req)
	if err != nil {
		return errors.UpstreamUnavailable("identity provider", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return errors.UpstreamUnavailable("identity provider",
			fmt.Errorf("update user: unexpected status %d", resp.StatusCode))
	}
	k.logger.Info(ctx, "User seed attribute updated", map[string]interface{}{
		"target_user": userID,
		"cleared":     seed == "",
	})
	return nil
}

func (k *Keycloak) getUser(ctx context.Context, userID string) ([]byte, bool, error) {
	if userID == "" {
		return nil, false, errors.Unauthorized("missing user id")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.userURL(userID), nil)
	if err != nil {
		return nil, false, errors.Internal("build identity request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.http.Do(req)
	if err != nil {
		return nil, false, errors.UpstreamUnavailable("identity provider", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, false, errors.UpstreamUnavailable("identity provider", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if !gjson.ValidBytes(body) {
			return nil, false, errors.UpstreamUnavailable("identity provider", fmt.Errorf("malformed user document"))
		}
		return body, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, errors.UpstreamUnavailable("identity provider",
			fmt.Errorf("get user: unexpected status %d", resp.StatusCode))
	}
}

func (k *Keycloak) record(op string, ok bool) {
	if k.observer != nil {
		k.observer.RecordIdentityRequest(op, ok)
	}
}
