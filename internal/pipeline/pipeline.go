// Package pipeline runs the onboarding steps in order for a single
// application, the way an orchestrator sequencing the step handlers would.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"membership/internal/handler"
	notify "membership/internal/notify/service"
)

var tracer = otel.Tracer("membership/pipeline")

// Steps is implemented by *handler.Handler.
type Steps interface {
	Validate(ctx context.Context, ev handler.Event) handler.Response
	ProvisionIdentity(ctx context.Context, ev handler.Event) handler.Response
	StoreMember(ctx context.Context, ev handler.Event) handler.Response
	SendEmail(ctx context.Context, ev handler.Event) handler.Response
}

type Pipeline struct {
	steps  Steps
	logger *slog.Logger
}

func New(steps Steps, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{steps: steps, logger: logger}
}

type stage struct {
	name string
	run  func(context.Context, handler.Event) handler.Response
}

// Apply validates, provisions, stores and sends payment instructions. Each
// step receives the data returned by the previous one. The first response
// that is not 200 is returned unchanged and nothing after it runs. On success
// the result carries the enriched application and the notifier's message.
func (p *Pipeline) Apply(ctx context.Context, ev handler.Event) handler.Response {
	ctx, span := tracer.Start(ctx, "pipeline.Apply")
	defer span.End()

	stages := []stage{
		{handler.StepValidate, p.steps.Validate},
		{handler.StepIdentity, p.steps.ProvisionIdentity},
		{handler.StepStore, p.steps.StoreMember},
	}

	current := ev
	var result handler.Result
	for _, st := range stages {
		resp := st.run(ctx, current)
		if resp.StatusCode != http.StatusOK {
			span.SetAttributes(attribute.String("pipeline.failed_step", st.name))
			p.logger.InfoContext(ctx, "application stopped", "step", st.name, "status", resp.StatusCode)
			return resp
		}
		var err error
		if result, err = resp.Decode(); err != nil {
			p.logger.ErrorContext(ctx, "undecodable step response", "step", st.name, "error", err)
			return internalError()
		}
		current = handler.Event{Body: string(mustJSON(result.Data))}
	}

	notification := handler.Event{Body: string(mustJSON(map[string]any{
		"emailType": notify.KindPaymentInstructions,
		"userData":  result.Data,
	}))}
	resp := p.steps.SendEmail(ctx, notification)
	if resp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.String("pipeline.failed_step", handler.StepNotify))
		return resp
	}
	sent, err := resp.Decode()
	if err != nil {
		return internalError()
	}

	body := mustJSON(handler.Result{Success: true, Message: sent.Message, Data: result.Data})
	return handler.Response{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}

func internalError() handler.Response {
	return handler.Response{
		StatusCode: http.StatusInternalServerError,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"success":false,"message":"Internal server error"}`,
	}
}
