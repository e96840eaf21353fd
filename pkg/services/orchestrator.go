package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/apperrors"
	"github.com/xkhani/shipping-agent/pkg/history"
	"github.com/xkhani/shipping-agent/pkg/llm"
	"github.com/xkhani/shipping-agent/pkg/logging"
	"github.com/xkhani/shipping-agent/pkg/prompts"
	"github.com/xkhani/shipping-agent/pkg/schema"
	"github.com/xkhani/shipping-agent/pkg/sql"
)

// DefaultMaxAttempts bounds the generate-validate loop.
const DefaultMaxAttempts = 10

const noSQLMessage = "No SQL statement found in the response. Return only one SQL query."

// SchemaSource loads the live schema. *schema.Introspector satisfies it.
type SchemaSource interface {
	FetchSchema(ctx context.Context) (*schema.Snapshot, error)
}

// Grounder repairs identifiers against the schema. *grounding.Corrector
// satisfies it.
type Grounder interface {
	Ground(query string, tables []schema.Table, lookup *schema.ColumnLookup) string
}

// Origin records which pipeline stage produced a Candidate.
type Origin string

const (
	OriginRaw       Origin = "raw"
	OriginExtracted Origin = "extracted"
	// OriginGrounded is grounded SQL that grounding left unchanged.
	OriginGrounded Origin = "grounded"
	// OriginCorrected is grounded SQL that grounding rewrote.
	OriginCorrected Origin = "corrected"
)

// Candidate is one stage's output for one attempt.
type Candidate struct {
	SQL     string
	Origin  Origin
	Attempt int
}

// Generation is the outcome of a successful GenerateValidatedSQL call.
type Generation struct {
	SQL      string
	Attempts int
	// Trace holds every candidate produced, in order.
	Trace []Candidate
}

// OrchestratorConfig tunes the loop.
type OrchestratorConfig struct {
	MaxAttempts      int
	FewShotExamples  int
	NegativeExamples int
	// Timeout bounds each model call.
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// DefaultOrchestratorConfig returns the settings used when none are configured.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxAttempts:      DefaultMaxAttempts,
		FewShotExamples:  3,
		NegativeExamples: 3,
		Timeout:          60 * time.Second,
		MaxTokens:        2000,
	}
}

// Orchestrator drives a question through generate, extract, ground and
// validate until a statement passes or the attempts run out.
type Orchestrator struct {
	schema    SchemaSource
	model     llm.Client
	grounder  Grounder
	validator QueryValidator
	history   history.Store
	rules     *prompts.Rules
	cfg       OrchestratorConfig
	logger    *zap.Logger
}

// NewOrchestrator creates an Orchestrator. A nil rules uses
// prompts.DefaultRules.
func NewOrchestrator(
	schemaSource SchemaSource,
	model llm.Client,
	grounder Grounder,
	validator QueryValidator,
	store history.Store,
	rules *prompts.Rules,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	defaults := DefaultOrchestratorConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.FewShotExamples < 0 {
		cfg.FewShotExamples = 0
	}
	if cfg.NegativeExamples < 0 {
		cfg.NegativeExamples = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if rules == nil {
		rules = prompts.DefaultRules()
	}
	return &Orchestrator{
		schema:    schemaSource,
		model:     model,
		grounder:  grounder,
		validator: validator,
		history:   store,
		rules:     rules,
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
	}
}

// ExhaustedSQL is the text returned in place of SQL when every attempt failed.
func ExhaustedSQL(attempts int, lastMessage string) string {
	return fmt.Sprintf("-- SQL generation failed after %d attempts: %s", attempts, lastMessage)
}

// GenerateValidatedSQL returns SQL that passed validation. When attempts
// run out it returns ExhaustedSQL together with an error wrapping
// apperrors.ErrAttemptsExhausted.
func (o *Orchestrator) GenerateValidatedSQL(ctx context.Context, prompt string) (string, error) {
	gen, err := o.Generate(ctx, prompt)
	if err != nil {
		var exhausted *ExhaustedError
		if errors.As(err, &exhausted) {
			return ExhaustedSQL(exhausted.Attempts, exhausted.LastMessage), err
		}
		return "", err
	}
	return gen.SQL, nil
}

// ExhaustedError is returned when no attempt produced valid SQL.
type ExhaustedError struct {
	Attempts    int
	LastSQL     string
	LastMessage string
	cause       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %s", apperrors.ErrAttemptsExhausted, e.Attempts, e.LastMessage)
}

// Unwrap exposes both apperrors.ErrAttemptsExhausted and the last attempt's
// failure class.
func (e *ExhaustedError) Unwrap() []error {
	if e.cause == nil {
		return []error{apperrors.ErrAttemptsExhausted}
	}
	return []error{apperrors.ErrAttemptsExhausted, e.cause}
}

// generationRun is the mutable state of one GenerateValidatedSQL call.
type generationRun struct {
	prompt   string
	snapshot *schema.Snapshot
	accepted []prompts.Example
	rejected []prompts.NegativeExample

	attempt     int
	raw         string
	candidate   Candidate
	lastSQL     string
	lastMessage string
	lastErr     error
	failErr     error
	trace       []Candidate
}

// Generate runs the loop and returns the accepted statement with its trace.
func (o *Orchestrator) Generate(ctx context.Context, prompt string) (*Generation, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apperrors.ErrMissingQuestion
	}

	run := &generationRun{prompt: prompt}
	state := StateInit
	for !state.Terminal() {
		var event Event
		switch state {
		case StateInit:
			event = o.init(ctx, run)
		case StateGenerate:
			event = o.generate(ctx, run)
		case StateExtract:
			event = o.extract(run)
		case StateGround:
			event = o.ground(run)
		case StateValidate:
			event = o.validate(ctx, run)
		case StateRetry:
			event = o.retry(ctx, run)
		}

		next, err := transition(state, event)
		if err != nil {
			return nil, err
		}
		o.logger.Debug("State transition",
			zap.Stringer("from", state),
			zap.Stringer("event", event),
			zap.Stringer("to", next),
			zap.Int("attempt", run.attempt))
		state = next
	}

	if state == StateFail {
		if run.failErr != nil {
			return nil, run.failErr
		}
		o.logger.Warn("SQL generation exhausted attempts",
			zap.Int("attempts", run.attempt),
			zap.String("last_message", run.lastMessage))
		return nil, &ExhaustedError{
			Attempts:    run.attempt,
			LastSQL:     run.lastSQL,
			LastMessage: run.lastMessage,
			cause:       run.lastErr,
		}
	}

	if err := o.history.AppendAccepted(ctx, run.prompt, run.candidate.SQL); err != nil {
		o.logger.Warn("Failed to record accepted query", zap.Error(err))
	}
	o.logger.Info("Generated validated SQL",
		zap.Int("attempts", run.attempt),
		zap.String("sql", logging.SanitizeQuery(run.candidate.SQL)))

	return &Generation{SQL: run.candidate.SQL, Attempts: run.attempt, Trace: run.trace}, nil
}

// init loads the schema and the history examples once per call.
func (o *Orchestrator) init(ctx context.Context, run *generationRun) Event {
	snapshot, err := o.schema.FetchSchema(ctx)
	if err != nil {
		run.failErr = err
		return EventSchemaFailed
	}
	run.snapshot = snapshot

	if o.cfg.FewShotExamples > 0 {
		records, err := o.history.RecentAccepted(ctx, o.cfg.FewShotExamples)
		if err != nil {
			o.logger.Warn("Failed to load accepted examples", zap.Error(err))
		}
		for _, r := range records {
			run.accepted = append(run.accepted, prompts.Example{Question: r.Prompt, SQL: r.SQL})
		}
	}
	if o.cfg.NegativeExamples > 0 {
		records, err := o.history.RecentRejected(ctx, o.cfg.NegativeExamples)
		if err != nil {
			o.logger.Warn("Failed to load rejected examples", zap.Error(err))
		}
		for _, r := range records {
			run.rejected = append(run.rejected, prompts.NegativeExample{Question: r.Prompt, SQL: r.BadSQL, Reason: r.Reason})
		}
	}
	return EventSchemaLoaded
}

func (o *Orchestrator) generate(ctx context.Context, run *generationRun) Event {
	run.attempt++

	input := prompts.SQLPromptInput{
		Schema:   run.snapshot.Text,
		Accepted: run.accepted,
		Rejected: run.rejected,
		Question: run.prompt,
	}
	if run.attempt > 1 {
		input.PreviousSQL = run.lastSQL
		input.PreviousError = run.lastMessage
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	resp, err := o.model.Generate(callCtx, llm.Request{
		System:      prompts.BuildSQLSystemPrompt(o.rules),
		Prompt:      prompts.BuildSQLUserPrompt(o.rules, input),
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			run.failErr = fmt.Errorf("generation cancelled: %w", ctx.Err())
			return EventModelUnreachable
		}
		llmErr := llm.ClassifyError(err)
		if llmErr.Unreachable() {
			o.logger.Error("SQL model unreachable",
				zap.Int("attempt", run.attempt),
				zap.String("model", o.model.GetModel()),
				zap.Error(llmErr))
			run.failErr = fmt.Errorf("%w: %v", apperrors.ErrGenerationUnreachable, llmErr)
			return EventModelUnreachable
		}
		run.lastSQL = ""
		run.lastMessage = logging.FirstLine(llmErr.Error())
		run.lastErr = fmt.Errorf("%w: %s", apperrors.ErrExtractionFailed, run.lastMessage)
		return EventModelRejected
	}

	run.raw = resp.Content
	run.trace = append(run.trace, Candidate{SQL: resp.Content, Origin: OriginRaw, Attempt: run.attempt})
	return EventGenerated
}

func (o *Orchestrator) extract(run *generationRun) Event {
	extracted := sql.Extract(run.raw)
	if extracted == "" {
		run.lastSQL = logging.TruncateString(strings.TrimSpace(run.raw), logging.MaxQueryLogLength)
		run.lastMessage = noSQLMessage
		run.lastErr = fmt.Errorf("%w: %s", apperrors.ErrExtractionFailed, noSQLMessage)
		return EventNoSQL
	}
	run.candidate = Candidate{SQL: extracted, Origin: OriginExtracted, Attempt: run.attempt}
	run.trace = append(run.trace, run.candidate)
	return EventExtracted
}

func (o *Orchestrator) ground(run *generationRun) Event {
	grounded := o.grounder.Ground(run.candidate.SQL, run.snapshot.Tables, run.snapshot.Lookup)
	origin := OriginGrounded
	if grounded != run.candidate.SQL {
		origin = OriginCorrected
	}
	run.candidate = Candidate{SQL: grounded, Origin: origin, Attempt: run.attempt}
	run.trace = append(run.trace, run.candidate)
	return EventGrounded
}

func (o *Orchestrator) validate(ctx context.Context, run *generationRun) Event {
	ok, message := o.validator.Validate(ctx, run.candidate.SQL)
	if ok {
		return EventValid
	}

	run.lastSQL = run.candidate.SQL
	run.lastMessage = message
	if message == sql.UnsafeQueryMessage {
		run.lastErr = fmt.Errorf("%w: %s", apperrors.ErrUnsafeQuery, message)
	} else {
		run.lastErr = fmt.Errorf("%w: %s", apperrors.ErrValidationFailed, message)
	}
	o.logger.Info("Candidate rejected",
		zap.Int("attempt", run.attempt),
		zap.String("sql", logging.SanitizeQuery(run.candidate.SQL)),
		zap.String("reason", message))
	return EventInvalid
}

// retry records the failed attempt and decides whether another one is allowed.
func (o *Orchestrator) retry(ctx context.Context, run *generationRun) Event {
	if run.lastSQL != "" {
		if err := o.history.AppendRejected(ctx, run.prompt, run.lastSQL, run.lastMessage); err != nil {
			o.logger.Warn("Failed to record rejected query", zap.Error(err))
		}
	}
	if run.attempt >= o.cfg.MaxAttempts {
		return EventAttemptsExhausted
	}
	return EventAttemptsLeft
}
