// Package governor decides, for each incoming turn, whether the generator is called,
// with which prompt, and what usage ledger the client carries to the next request.
package governor

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/zhouzirui/boundary-tools/backend/internal/analysis/script"
	"github.com/zhouzirui/boundary-tools/backend/internal/model/tool"
	"github.com/zhouzirui/boundary-tools/backend/internal/model/turn"
	"github.com/zhouzirui/boundary-tools/backend/internal/service/reply"
	"github.com/zhouzirui/boundary-tools/backend/internal/service/session"
	"github.com/zhouzirui/boundary-tools/backend/internal/service/usage"
)

// DefaultGeneratorTimeout bounds a single generator call.
const DefaultGeneratorTimeout = 20 * time.Second

// Canned replies for turns closed without calling the generator.
const (
	SessionExpiredText   = "Session time limit reached."
	QuotaExceededText    = "Daily session limit reached."
	LanguageChoicePrompt = "Your message mixes two languages. Which language would you like to continue in?"
)

// Generator produces the assistant text for one turn.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userText string) (*schema.Message, error)
}

// Config is the immutable envelope the governor enforces.
type Config struct {
	// InviteCode gates every request. Empty disables the gate.
	InviteCode       string
	SessionDuration  time.Duration
	GeneratorTimeout time.Duration
}

// Outcome is the governor's verdict for an admitted request.
type Outcome int

const (
	// OutcomeProceed means the generator is called.
	OutcomeProceed Outcome = iota
	// OutcomeClosed means the reply is produced without the generator.
	OutcomeClosed
)

func (o Outcome) String() string {
	if o == OutcomeClosed {
		return "closed"
	}
	return "proceed"
}

// Admission is the per-request decision derived from the request, ledger and clock.
type Admission struct {
	TimeExpired        bool
	CountExpired       bool
	IsFinalTurn        bool
	DailyQuotaExceeded bool
}

// Plan is everything decided before the generator runs.
type Plan struct {
	TurnID    string
	Tool      tool.Tool
	Outcome   Outcome
	Reason    turn.Reason
	Locked    bool
	Admission Admission
	Window    session.Window

	// Output is set for OutcomeClosed.
	Output string

	Variant      PromptVariant
	SystemPrompt string
	UserText     string

	Ledger        usage.Ledger
	LedgerChanged bool
}

// Result is a governed turn ready to be written to the client.
type Result struct {
	Plan  *Plan
	Reply turn.Reply
	// Token is the re-signed ledger, empty when the ledger did not change.
	Token string
}

// Governor applies the session and quota envelope to turns.
type Governor struct {
	cfg       Config
	tools     tool.Store
	codec     *usage.Codec
	generator Generator
	now       func() time.Time
}

// Option customises a Governor.
type Option func(*Governor)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

// New builds a Governor. A nil generator is allowed; turns that would call it fail
// with ErrMissingGeneratorCredential.
func New(cfg Config, tools tool.Store, codec *usage.Codec, generator Generator, opts ...Option) *Governor {
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = session.DefaultDuration
	}
	if cfg.GeneratorTimeout <= 0 {
		cfg.GeneratorTimeout = DefaultGeneratorTimeout
	}

	g := &Governor{
		cfg:       cfg,
		tools:     tools,
		codec:     codec,
		generator: generator,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// SessionDuration reports the configured session length.
func (g *Governor) SessionDuration() time.Duration {
	return g.cfg.SessionDuration
}

// Prepare decodes the usage token and plans the turn. An unverifiable token counts
// as no token.
func (g *Governor) Prepare(req turn.Request, token string) (*Plan, error) {
	ledger, _ := g.codec.Decode(token)
	return g.Plan(req, ledger)
}

// Plan evaluates the admission rules in order; the first match wins:
// empty text, invite code, unknown tool, session clock, message cap, daily quota,
// mixed-language interrupt, and finally proceed.
func (g *Governor) Plan(req turn.Request, ledger *usage.Ledger) (*Plan, error) {
	now := g.now()

	text := strings.TrimSpace(req.UserText)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	if g.cfg.InviteCode != "" && subtle.ConstantTimeCompare([]byte(req.InviteCode), []byte(g.cfg.InviteCode)) != 1 {
		return nil, ErrUnauthorized
	}

	t, ok := g.tools.FindByID(strings.TrimSpace(req.Tool))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, req.Tool)
	}

	current := usage.Fresh(now)
	if ledger != nil {
		current = *ledger
	}

	window := session.Evaluate(t.MaxUserMessages, req.UserMessageCount, req.SessionStartMs, now, g.cfg.SessionDuration)
	plan := &Plan{
		TurnID:   uuid.NewString(),
		Tool:     t,
		Window:   window,
		UserText: text,
		Ledger:   current,
		Admission: Admission{
			TimeExpired:  window.TimeExpired,
			CountExpired: window.CountExpired,
			IsFinalTurn:  window.IsFinalTurn,
		},
	}

	switch {
	case window.TimeExpired:
		return g.closed(plan, turn.ReasonSessionExpired, reply.AppendClosing(SessionExpiredText), true), nil
	case window.CountExpired:
		return g.closed(plan, turn.ReasonMessageLimit, reply.ClosingText, true), nil
	}

	if req.UserMessageCount <= 0 {
		allowed, updated := usage.AdmitSessionStart(t, current, now)
		if !allowed {
			plan.Admission.DailyQuotaExceeded = true
			return g.closed(plan, turn.ReasonQuotaExceeded, reply.AppendClosing(QuotaExceededText), true), nil
		}
		plan.Ledger = updated
		plan.LedgerChanged = true
	}

	// The interrupt takes the turn's slot and keeps the session-start increment.
	// It never fires on the final turn, so a session cannot end on the question.
	if !window.IsFinalTurn && script.Detect(text).Mixed {
		return g.closed(plan, turn.ReasonLanguageChoice, LanguageChoicePrompt, false), nil
	}

	plan.Outcome = OutcomeProceed
	plan.Variant = PromptBase
	if window.IsFinalTurn {
		plan.Variant = PromptFinal
		plan.Locked = true
		plan.Reason = turn.ReasonFinalTurn
	}
	plan.SystemPrompt = SystemPrompt(t, plan.Variant)

	log.Printf("[governor] turn=%s tool=%s outcome=%s variant=%s first=%t", plan.TurnID, t.ID, plan.Outcome, plan.Variant, plan.LedgerChanged)
	return plan, nil
}

func (g *Governor) closed(plan *Plan, reason turn.Reason, output string, locked bool) *Plan {
	plan.Outcome = OutcomeClosed
	plan.Reason = reason
	plan.Output = output
	plan.Locked = locked

	log.Printf("[governor] turn=%s tool=%s outcome=%s reason=%s", plan.TurnID, plan.Tool.ID, plan.Outcome, reason)
	return plan
}

// Govern runs a complete turn: plan, call the generator when admitted, normalize
// its output and re-sign the ledger. Generator failures are reported, never retried.
func (g *Governor) Govern(ctx context.Context, req turn.Request, token string) (*Result, error) {
	plan, err := g.Prepare(req, token)
	if err != nil {
		return nil, err
	}

	if plan.Outcome == OutcomeClosed {
		return g.Complete(plan, plan.Output)
	}

	msg, err := g.Generate(ctx, plan)
	if err != nil {
		return nil, err
	}

	output, err := g.Finish(plan, msg)
	if err != nil {
		return nil, err
	}
	return g.Complete(plan, output)
}

// GeneratorContext derives the bounded context used for generator calls.
func (g *Governor) GeneratorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.cfg.GeneratorTimeout)
}

// Generate calls the generator for an admitted plan under the configured timeout.
func (g *Governor) Generate(ctx context.Context, plan *Plan) (*schema.Message, error) {
	if g.generator == nil {
		return nil, ErrMissingGeneratorCredential
	}

	callCtx, cancel := g.GeneratorContext(ctx)
	defer cancel()

	msg, err := g.generator.Generate(callCtx, plan.SystemPrompt, plan.UserText)
	if err != nil {
		log.Printf("[governor] turn=%s generator failed: %v", plan.TurnID, err)
		return nil, fmt.Errorf("%w: %w", ErrGeneratorFailure, err)
	}
	return msg, nil
}

// Finish normalizes generator output for the plan, appending the closing text on
// the final turn.
func (g *Governor) Finish(plan *Plan, msg *schema.Message) (string, error) {
	output, err := reply.Normalize(reply.FromMessage(msg), plan.Admission.IsFinalTurn)
	if err != nil {
		log.Printf("[governor] turn=%s empty generator output", plan.TurnID)
		return "", err
	}
	return output, nil
}

// Complete builds the client reply and signs the ledger if the plan changed it.
func (g *Governor) Complete(plan *Plan, output string) (*Result, error) {
	res := &Result{
		Plan: plan,
		Reply: turn.Reply{
			TurnID: plan.TurnID,
			Output: output,
			Locked: plan.Locked,
			Reason: plan.Reason,
		},
	}

	if !plan.Locked {
		remaining := plan.Window.Remaining
		res.Reply.RemainingMessages = &remaining
		res.Reply.SessionEndsAt = plan.Window.Deadline(g.cfg.SessionDuration).UnixMilli()
	}

	token, err := g.Token(plan)
	if err != nil {
		return nil, err
	}
	res.Token = token
	return res, nil
}

// Token signs the plan's ledger. It returns an empty token when the plan left the
// ledger untouched, so the client keeps whatever it already holds.
func (g *Governor) Token(plan *Plan) (string, error) {
	if !plan.LedgerChanged {
		return "", nil
	}
	token, err := g.codec.Encode(plan.Ledger)
	if err != nil {
		return "", fmt.Errorf("encode usage token: %w", err)
	}
	return token, nil
}
