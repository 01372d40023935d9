package gateway

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
	"github.com/JonathanJFlores/sugarfunge-api/internal/crypto"
	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
	"github.com/JonathanJFlores/sugarfunge-api/internal/httputil"
	"github.com/JonathanJFlores/sugarfunge-api/internal/logging"
	"github.com/JonathanJFlores/sugarfunge-api/services/gateway/store"
)

// Messages returned by the seed provisioning routes.
const (
	MessageSeedPresent  = "User with atrribute"
	MessageSeedInserted = "Attribute insert to user attributes"
)

type CreateAccountResponse struct {
	Seed    string `json:"seed"`
	Account string `json:"account"`
}

type BalanceRequest struct {
	Account string `json:"account"`
}

type BalanceResponse struct {
	Balance chain.Amount `json:"balance"`
}

type TransferSeedRequest struct {
	To string `json:"to"`
}

// SeedStatusResponse mirrors the provisioning routes' {error, message} body.
type SeedStatusResponse struct {
	Error   *string `json:"error"`
	Message string  `json:"message"`
}

// handleCreateAccount generates fresh key material. Nothing is stored.
func (s *Service) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	seed, id, err := crypto.GenerateSeed()
	if err != nil {
		s.fail(w, r, errors.Internal("Failed to generate seed", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CreateAccountResponse{Seed: seed, Account: s.account(id)})
}

// handleBalance reads the free balance of any account. It does not wait for
// in-flight submissions.
func (s *Service) handleBalance(w http.ResponseWriter, r *http.Request) {
	var req BalanceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := chain.DecodeAccount(req.Account)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	balance, err := s.client.FreeBalance(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
}

// handleVerifySeed provisions key material for the caller when none exists.
func (s *Service) handleVerifySeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := logging.GetUserID(ctx)
	if userID == "" {
		s.fail(w, r, errors.Unauthorized("Missing user"))
		return
	}

	_, found, err := s.seeds.GetSeed(ctx, userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if found {
		httputil.WriteJSON(w, http.StatusOK, SeedStatusResponse{Message: MessageSeedPresent})
		return
	}

	seed, id, err := crypto.GenerateSeed()
	if err != nil {
		s.fail(w, r, errors.Internal("Failed to generate seed", err))
		return
	}
	if err := s.seeds.PutSeed(ctx, userID, seed); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info(ctx, "Provisioned key material", map[string]interface{}{
		"account": s.account(id),
	})
	httputil.WriteJSON(w, http.StatusOK, SeedStatusResponse{Message: MessageSeedInserted})
}

// handleTransferSeed hands the caller's key material to another user. The
// receiver is written first so a failure never leaves the seed with nobody.
func (s *Service) handleTransferSeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req TransferSeedRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.To == "" {
		s.fail(w, r, errors.InvalidRequest("to is required", nil))
		return
	}

	seed, err := s.userSeed(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	userID := logging.GetUserID(ctx)
	if req.To == userID {
		httputil.WriteJSON(w, http.StatusOK, SeedStatusResponse{Message: MessageSeedPresent})
		return
	}

	// A provisioned receiver keeps its own key material.
	_, found, err := s.seeds.GetSeed(ctx, req.To)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if found {
		httputil.WriteJSON(w, http.StatusOK, SeedStatusResponse{Message: MessageSeedPresent})
		return
	}

	if err := s.seeds.PutSeed(ctx, req.To, seed); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.seeds.PutSeed(ctx, userID, ""); err != nil {
		s.fail(w, r, err)
		return
	}

	s.logger.Info(ctx, "Transferred key material", map[string]interface{}{
		"target_user": req.To,
	})
	httputil.WriteJSON(w, http.StatusOK, SeedStatusResponse{Message: MessageSeedInserted})
}

// handleGetSubmission returns the caller's audit record.
func (s *Service) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["request_id"]
	if s.audit == nil {
		s.fail(w, r, errors.NotFound("submission "+requestID))
		return
	}
	rec, err := s.audit.Get(r.Context(), requestID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rec.UserID != logging.GetUserID(r.Context()) {
		s.fail(w, r, errors.NotFound("submission "+requestID))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

type SubmissionList struct {
	Submissions []store.Record `json:"submissions"`
}

// handleListSubmissions returns the caller's most recent audit records.
// ?limit= bounds the page; the store caps it.
func (s *Service) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := logging.GetUserID(ctx)
	if userID == "" {
		s.fail(w, r, errors.Unauthorized("Missing user"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.fail(w, r, errors.InvalidRequest("limit must be a non-negative integer", err))
			return
		}
		limit = n
	}

	resp := SubmissionList{Submissions: []store.Record{}}
	if s.audit != nil {
		recs, err := s.audit.ListByUser(ctx, userID, limit)
		if err != nil {
			s.fail(w, r, errors.Internal("Failed to list submissions", err))
			return
		}
		if recs != nil {
			resp.Submissions = recs
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
