package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/apperrors"
)

// SQLGenerator produces validated SQL for a question. *Orchestrator
// satisfies it.
type SQLGenerator interface {
	Generate(ctx context.Context, prompt string) (*Generation, error)
}

// Answer is the agent's reply to one question.
type Answer struct {
	Question string `json:"question"`
	Route    Route  `json:"route"`
	// SQL is set when the question was answered from the database.
	SQL string `json:"sql,omitempty"`
	// Attempts is how many generations the SQL took.
	Attempts int `json:"attempts,omitempty"`
	// Response is Markdown ready for display.
	Response string `json:"response"`
}

// Agent routes a question to the general model or to the SQL pipeline and
// renders the outcome as text.
type Agent struct {
	router    *Router
	generator SQLGenerator
	executor  *Executor
	general   *GeneralAnswerer
	logger    *zap.Logger
}

// NewAgent creates an Agent.
func NewAgent(router *Router, generator SQLGenerator, executor *Executor, general *GeneralAnswerer, logger *zap.Logger) *Agent {
	return &Agent{
		router:    router,
		generator: generator,
		executor:  executor,
		general:   general,
		logger:    logger.Named("agent"),
	}
}

// Ask answers question. Pipeline failures become user-facing messages in
// Answer.Response; the error is only non-nil for a missing question.
func (a *Agent) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.ErrMissingQuestion
	}

	route := a.router.Route(question)
	a.logger.Info("Routed question", zap.String("route", string(route)))

	answer := &Answer{Question: question, Route: route}
	if route == RouteGeneral {
		answer.Response = a.general.Answer(ctx, question)
		return answer, nil
	}

	gen, err := a.generator.Generate(ctx, question)
	if err != nil {
		answer.Response = generationFailureMessage(err)
		var exhausted *ExhaustedError
		if errors.As(err, &exhausted) {
			answer.SQL = ExhaustedSQL(exhausted.Attempts, exhausted.LastMessage)
			answer.Attempts = exhausted.Attempts
		}
		return answer, nil
	}
	answer.SQL = gen.SQL
	answer.Attempts = gen.Attempts

	ok, payload := a.executor.Execute(ctx, gen.SQL)
	if !ok {
		answer.Response = executionFailureMessage(payload, gen.SQL)
		return answer, nil
	}

	text, err := FormatResult(payload, gen.SQL)
	if err != nil {
		a.logger.Warn("Could not format result", zap.Error(err))
	}
	answer.Response = text
	return answer, nil
}

func generationFailureMessage(err error) string {
	var exhausted *ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		return fmt.Sprintf("SQL Generation Error:\n```\n%s\n```\nLast attempted SQL:\n```sql\n%s\n```",
			ExhaustedSQL(exhausted.Attempts, exhausted.LastMessage), exhausted.LastSQL)
	case errors.Is(err, apperrors.ErrSchemaUnavailable):
		return fmt.Sprintf("SQL Generation Error: the database schema could not be loaded.\n```\n%s\n```", err)
	case errors.Is(err, apperrors.ErrGenerationUnreachable):
		return fmt.Sprintf("SQL Generation Error: the SQL model could not be reached.\n```\n%s\n```", err)
	default:
		return fmt.Sprintf("SQL Generation Error:\n```\n%s\n```", err)
	}
}

func executionFailureMessage(payload, sqlQuery string) string {
	var p ErrorPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil || p.Error == "" {
		return fmt.Sprintf("SQL Execution Error (invalid payload from executor):\n```\n%s\n```", payload)
	}
	return fmt.Sprintf("SQL Execution Error: %s\n```sql\n%s\n```", p.Error, sqlQuery)
}
