// Package lambda adapts onboarding steps to API Gateway proxy invocations.
package lambda

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"membership/internal/app"
	"membership/internal/handler"
	"membership/internal/pipeline"
	"membership/pkg/requestcontext"
)

// Step is one onboarding step as the handler package exposes it.
type Step func(context.Context, handler.Event) handler.Response

// Function is the signature registered with lambda.Start.
type Function func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Handler names accepted by LAMBDA_HANDLER.
const (
	HandlerValidator = "validator"
	HandlerIdentity  = "identity"
	HandlerStore     = "store"
	HandlerNotifier  = "notifier"
	HandlerApply     = "apply"
)

// Components reports which backends the named handler needs.
func Components(name string) ([]app.Component, error) {
	switch name {
	case HandlerValidator:
		return nil, nil
	case HandlerIdentity:
		return []app.Component{app.ComponentIdentity}, nil
	case HandlerStore:
		return []app.Component{app.ComponentStore}, nil
	case HandlerNotifier:
		return []app.Component{app.ComponentNotify}, nil
	case HandlerApply:
		return app.AllComponents, nil
	default:
		return nil, fmt.Errorf("unknown LAMBDA_HANDLER %q", name)
	}
}

// Select returns the step served by the named handler.
func Select(name string, h *handler.Handler, p *pipeline.Pipeline) (Step, error) {
	switch name {
	case HandlerValidator:
		return h.Validate, nil
	case HandlerIdentity:
		return h.ProvisionIdentity, nil
	case HandlerStore:
		return h.StoreMember, nil
	case HandlerNotifier:
		return h.SendEmail, nil
	case HandlerApply:
		return p.Apply, nil
	default:
		return nil, fmt.Errorf("unknown LAMBDA_HANDLER %q", name)
	}
}

// Adapt wraps step. Step failures are reported in the response, never as a
// Lambda invocation error.
func Adapt(step Step) Function {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		if req.RequestContext.RequestID != "" {
			ctx = requestcontext.WithRequestID(ctx, req.RequestContext.RequestID)
		}
		if ms := req.RequestContext.RequestTimeEpoch; ms > 0 {
			ctx = requestcontext.WithTime(ctx, time.UnixMilli(ms).UTC())
		}
		resp := step(ctx, handler.Event{Body: req.Body})
		return events.APIGatewayProxyResponse{
			StatusCode: resp.StatusCode,
			Headers:    resp.Headers,
			Body:       resp.Body,
		}, nil
	}
}
