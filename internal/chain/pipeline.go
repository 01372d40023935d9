package chain

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
	"github.com/JonathanJFlores/sugarfunge-api/internal/logging"
)

// DefaultFinalityTimeout bounds the wait for finality when none is configured.
const DefaultFinalityTimeout = 2 * time.Minute

// Outcome is the result of a finalized extrinsic.
type Outcome struct {
	ExtrinsicHash string
	BlockHash     string
	// Events holds only the events emitted by this extrinsic, in order.
	Events []EventRecord
}

// Recorder receives pipeline measurements. internal/metrics implements it.
type Recorder interface {
	ObserveSubmission(call, result string, elapsed time.Duration)
	ObserveStatus(status string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSubmission(string, string, time.Duration) {}
func (nopRecorder) ObserveStatus(string)                            {}

// Pipeline turns descriptors into finalized extrinsics.
type Pipeline struct {
	client *Client
	logger *logging.Logger
	// FinalityTimeout bounds the finality wait. Zero waits until the
	// caller's context ends.
	FinalityTimeout time.Duration
	Recorder        Recorder
}

// NewPipeline creates a pipeline over a client.
func NewPipeline(client *Client, logger *logging.Logger, finalityTimeout time.Duration) *Pipeline {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Pipeline{
		client:          client,
		logger:          logger,
		FinalityTimeout: finalityTimeout,
		Recorder:        nopRecorder{},
	}
}

// Submit validates, constructs, signs and submits desc, then waits for the
// extrinsic to finalize. Only one submission runs at a time; the slot is held
// until this call returns.
func (p *Pipeline) Submit(ctx context.Context, signer Signer, desc Descriptor) (*Outcome, error) {
	start := time.Now()
	out, err := p.submit(ctx, signer, desc)

	name := "unknown"
	if desc != nil {
		name = string(desc.Kind())
	}
	result := "finalized"
	if se := errors.GetServiceError(err); se != nil {
		result = strings.ToLower(string(se.Code))
	} else if err != nil {
		result = "error"
	}
	p.recorder().ObserveSubmission(name, result, time.Since(start))
	return out, err
}

func (p *Pipeline) submit(ctx context.Context, signer Signer, desc Descriptor) (*Outcome, error) {
	if desc == nil {
		return nil, errors.UnsupportedCall("<nil>", nil)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	call, err := CallFor(desc)
	if err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, errors.SigningFailed(fmt.Errorf("no signer"))
	}

	release, err := p.client.acquire(ctx)
	if err != nil {
		return nil, errors.UpstreamUnavailable("ledger", err)
	}
	defer release()

	encoded, err := p.client.construct(call)
	if err != nil {
		if se := errors.GetServiceError(err); se != nil {
			return nil, se
		}
		return nil, errors.UnsupportedCall(call.String(), err)
	}

	xt, err := p.client.sign(ctx, encoded, signer)
	if err != nil {
		return nil, errors.SigningFailed(err)
	}

	sub, err := p.client.watch(ctx, xt)
	if err != nil {
		return nil, errors.UpstreamUnavailable("ledger", err)
	}
	defer sub.Close()

	p.logger.Info(ctx, "Extrinsic submitted", map[string]interface{}{
		"call":   call.String(),
		"hash":   xt.Hash,
		"signer": xt.Signer.String(),
	})

	return p.await(ctx, call, xt, sub)
}

// await consumes lifecycle notifications until the first terminal one.
func (p *Pipeline) await(ctx context.Context, call Call, xt *Extrinsic, sub Subscription) (*Outcome, error) {
	var deadline <-chan time.Time
	if p.FinalityTimeout > 0 {
		timer := time.NewTimer(p.FinalityTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	updates := sub.Updates()
	errs := sub.Err()
	started := time.Now()

	for {
		select {
		case st, ok := <-updates:
			if !ok {
				return nil, errors.UpstreamUnavailable("ledger",
					fmt.Errorf("status stream for %s closed before finality", xt.Hash))
			}
			p.recorder().ObserveStatus(st.Kind.String())
			fields := map[string]interface{}{
				"call":   call.String(),
				"hash":   xt.Hash,
				"status": st.Kind.String(),
			}
			if st.BlockHash != "" {
				fields["block"] = st.BlockHash
			}
			if st.Kind == StatusRetracted {
				p.logger.Warn(ctx, "Extrinsic block retracted", fields)
			} else {
				p.logger.Debug(ctx, "Extrinsic status", fields)
			}
			if !st.Kind.Terminal() {
				continue
			}
			return p.settle(ctx, call, xt, st)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return nil, errors.UpstreamUnavailable("ledger", fmt.Errorf("status stream: %w", err))

		case <-deadline:
			p.logger.Warn(ctx, "Finality wait timed out", map[string]interface{}{
				"call":    call.String(),
				"hash":    xt.Hash,
				"timeout": p.FinalityTimeout.String(),
			})
			return nil, errors.SubmissionTimedOut(p.FinalityTimeout)

		case <-ctx.Done():
			se := errors.SubmissionTimedOut(time.Since(started).Round(time.Millisecond))
			se.Err = ctx.Err()
			return nil, se
		}
	}
}

func (p *Pipeline) settle(ctx context.Context, call Call, xt *Extrinsic, st Status) (*Outcome, error) {
	if st.Kind != StatusFinalized {
		reason := st.Reason
		if reason == "" {
			reason = "Extrinsic " + st.Kind.String()
		}
		p.logger.Warn(ctx, "Extrinsic rejected", map[string]interface{}{
			"call":   call.String(),
			"hash":   xt.Hash,
			"status": st.Kind.String(),
			"reason": reason,
		})
		return nil, errors.SubmissionRejected(reason)
	}

	if reason, failed := DispatchFailure(st.Events); failed {
		p.logger.Warn(ctx, "Extrinsic failed", map[string]interface{}{
			"call":   call.String(),
			"hash":   xt.Hash,
			"block":  st.BlockHash,
			"reason": reason,
		})
		return nil, errors.SubmissionRejected(reason)
	}

	p.logger.Info(ctx, "Extrinsic finalized", map[string]interface{}{
		"call":   call.String(),
		"hash":   xt.Hash,
		"block":  st.BlockHash,
		"events": len(st.Events),
	})
	return &Outcome{ExtrinsicHash: xt.Hash, BlockHash: st.BlockHash, Events: st.Events}, nil
}

func (p *Pipeline) recorder() Recorder {
	if p.Recorder == nil {
		return nopRecorder{}
	}
	return p.Recorder
}

// DispatchFailure reports whether the records contain System.ExtrinsicFailed
// and renders its dispatch error.
func DispatchFailure(records []EventRecord) (string, bool) {
	for _, rec := range records {
		if !rec.Kind.Is(KindExtrinsicFailed) {
			continue
		}
		r := &fieldReader{fields: rec.Fields}
		v, ok := r.value(0, "dispatch_error")
		if !ok {
			return "Extrinsic failed", true
		}
		return "Extrinsic failed: " + RenderValue(v), true
	}
	return "", false
}

// RenderValue formats a decoded event value for messages.
func RenderValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []Field:
		parts := make([]string, 0, len(x))
		for _, f := range x {
			if f.Name == "" {
				parts = append(parts, RenderValue(f.Value))
				continue
			}
			parts = append(parts, f.Name+": "+RenderValue(f.Value))
		}
		if len(parts) == 1 && (len(x) == 0 || x[0].Name == "") {
			return parts[0]
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, len(x))
		for i := range x {
			parts[i] = RenderValue(x[i])
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// IsTimeout reports whether err came from a finality deadline or an
// abandoned wait.
func IsTimeout(err error) bool {
	return stderrors.Is(err, errors.ErrSubmissionTimedOut)
}
