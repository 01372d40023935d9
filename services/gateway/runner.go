package gateway

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
	"github.com/JonathanJFlores/sugarfunge-api/internal/crypto"
	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
	"github.com/JonathanJFlores/sugarfunge-api/internal/httputil"
	"github.com/JonathanJFlores/sugarfunge-api/internal/logging"
	"github.com/JonathanJFlores/sugarfunge-api/services/gateway/store"
)

// RequestIDHeader names the audit record of a submission.
const RequestIDHeader = "X-Request-ID"

// seedField is embedded in every operation body. The seed is honoured only
// when inline seeds are enabled.
type seedField struct {
	Seed string `json:"seed,omitempty"`
}

func (f seedField) inlineSeed() string { return f.Seed }

type seeded interface {
	inlineSeed() string
}

// operation describes one ledger-mutating route: how to turn its body into
// a descriptor, and how to render the event that proves it happened.
type operation[Req any, E any, P chain.Decodable[E]] struct {
	build  func(s *Service, req *Req) (chain.Descriptor, error)
	render func(s *Service, ev *E) any
}

func (op operation[Req, E, P]) handler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req Req
		if err := httputil.DecodeJSON(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}

		var inline string
		if sd, ok := any(&req).(seeded); ok {
			inline = sd.inlineSeed()
		}
		signer, err := s.resolveSigner(ctx, inline)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		desc, err := op.build(s, &req)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		requestID := s.beginAudit(ctx, desc, signer)
		if requestID != "" {
			w.Header().Set(RequestIDHeader, requestID)
		}

		ev, out, err := run[E, P](ctx, s.pipeline, signer, desc)
		s.finishAudit(ctx, requestID, out, err)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, op.render(s, ev))
	}
}

// run submits desc and extracts the first event of E's kind from the
// finalized extrinsic.
func run[E any, P chain.Decodable[E]](ctx context.Context, p *chain.Pipeline, signer chain.Signer, desc chain.Descriptor) (*E, *chain.Outcome, error) {
	out, err := p.Submit(ctx, signer, desc)
	if err != nil {
		return nil, nil, err
	}
	ev, err := chain.FindFirst[E, P](out.Events)
	if err != nil {
		return nil, out, err
	}
	if ev == nil {
		return nil, out, errors.EventNotFound(P(new(E)).Kind().String())
	}
	return ev, out, nil
}

// resolveSigner loads the caller's key material: the inline seed when one is
// given and allowed, otherwise the seed stored for the authenticated user.
func (s *Service) resolveSigner(ctx context.Context, inline string) (*crypto.KeyPair, error) {
	if inline != "" {
		if !s.allowInlineSeed {
			return nil, errors.InvalidRequest("Inline seeds are disabled", nil)
		}
		return crypto.Resolve(inline)
	}

	seed, err := s.userSeed(ctx)
	if err != nil {
		return nil, err
	}
	return crypto.Resolve(seed)
}

func (s *Service) userSeed(ctx context.Context) (string, error) {
	userID := logging.GetUserID(ctx)
	if userID == "" {
		return "", errors.Unauthorized("Missing user")
	}
	seed, found, err := s.seeds.GetSeed(ctx, userID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", errors.SeedNotProvisioned()
	}
	return seed, nil
}

// =============================================================================
// Audit
// =============================================================================

func (s *Service) beginAudit(ctx context.Context, desc chain.Descriptor, signer chain.Signer) string {
	if s.audit == nil {
		return ""
	}
	rec := &store.Record{
		RequestID: uuid.NewString(),
		UserID:    logging.GetUserID(ctx),
		Call:      string(desc.Kind()),
		Signer:    s.account(signer.AccountID()),
	}
	if err := s.audit.Create(ctx, rec); err != nil {
		s.logger.Warn(ctx, "Failed to record submission", map[string]interface{}{
			"call":  rec.Call,
			"error": err.Error(),
		})
		return ""
	}
	return rec.RequestID
}

func (s *Service) finishAudit(ctx context.Context, requestID string, out *chain.Outcome, err error) {
	if s.audit == nil || requestID == "" {
		return
	}
	c := store.Completion{Status: store.StatusFinalized}
	if out != nil {
		c.ExtrinsicHash = out.ExtrinsicHash
		c.BlockHash = out.BlockHash
	}
	if err != nil {
		c.Status = store.StatusFailed
		c.ErrorMessage = err.Error()
		if se := errors.GetServiceError(err); se != nil {
			c.ErrorCode = string(se.Code)
			c.ErrorMessage = se.Message
		}
	}
	// The caller may have gone away; the record should still settle.
	if err := s.audit.Complete(context.WithoutCancel(ctx), requestID, c); err != nil {
		s.logger.Warn(ctx, "Failed to complete submission record", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}
}

// =============================================================================
// Responses
// =============================================================================

// fail renders err. Server faults are logged with their cause; the response
// carries only the short message.
func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	se := errors.GetServiceError(err)
	fields := map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
	}
	switch {
	case se == nil || se.ServerFault():
		s.logger.Error(r.Context(), "Request failed", err, fields)
	default:
		fields["code"] = string(se.Code)
		fields["message"] = se.Message
		s.logger.Info(r.Context(), "Request rejected", fields)
	}
	httputil.WriteError(w, err)
}
