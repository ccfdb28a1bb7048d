// Package handler exposes the onboarding steps as request handlers. Each
// handler decodes a JSON body, calls one service and always returns a
// well-formed response envelope, even when the service panics.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"

	"membership/internal/membership/models"
	"membership/internal/membership/validation"
	notify "membership/internal/notify/service"
	"membership/internal/platform/metrics"
	id "membership/pkg/domain"
	dErrors "membership/pkg/domain-errors"
	"membership/pkg/requestcontext"
)

// Step names used in logs and metrics.
const (
	StepValidate = "validate"
	StepIdentity = "identity"
	StepStore    = "store"
	StepNotify   = "notify"
)

const (
	MsgValidationSuccessful   = "Validation successful"
	MsgInvalidJSON            = "Invalid JSON in request body"
	MsgMissingEmailTypeOrData = "Missing email type or user data"
)

// Per-step messages for failures no service classified.
var genericMessages = map[string]string{
	StepValidate: "Internal server error",
	StepIdentity: "Internal server error while creating user account",
	StepStore:    "Internal server error while storing member data",
	StepNotify:   "Internal server error while sending email",
}

// Success messages for steps whose services do not report one.
const (
	msgIdentityCreated = "Cognito user created successfully"
	msgMemberStored    = "Member data stored successfully"
)

type IdentityProvisioner interface {
	CreateDisabledIdentity(ctx context.Context, applicant models.Applicant) (string, error)
}

type MemberStore interface {
	AllocateAndStore(ctx context.Context, applicant models.Applicant) (id.MemberID, error)
}

type Notifier interface {
	Notify(ctx context.Context, req notify.Request) error
}

// Handler serves the four onboarding steps. Services may be nil when a
// process only serves some steps; calling an unconfigured step returns 500.
type Handler struct {
	identity IdentityProvisioner
	members  MemberStore
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func New(identity IdentityProvisioner, members MemberStore, notifier Notifier, opts ...Option) *Handler {
	h := &Handler{
		identity: identity,
		members:  members,
		notifier: notifier,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Validate checks an application. On success the submission is echoed as data.
func (h *Handler) Validate(ctx context.Context, ev Event) (resp Response) {
	defer h.recover(ctx, StepValidate, &resp)

	payload, err := decodePayload(ev.Body)
	if err != nil {
		h.metrics.IncApplication("malformed")
		return h.respond(StepValidate, http.StatusBadRequest, Result{Message: MsgInvalidJSON})
	}
	if err := validation.Validate(payload); err != nil {
		h.metrics.IncApplication("rejected")
		return h.fail(ctx, StepValidate, err)
	}
	h.metrics.IncApplication("accepted")
	return h.respond(StepValidate, http.StatusOK, Result{Success: true, Message: MsgValidationSuccessful, Data: payload})
}

// ProvisionIdentity creates a disabled identity and adds cognitoUsername to
// the payload.
func (h *Handler) ProvisionIdentity(ctx context.Context, ev Event) (resp Response) {
	defer h.recover(ctx, StepIdentity, &resp)

	payload, errResp, ok := h.validPayload(ctx, StepIdentity, ev)
	if !ok {
		return errResp
	}
	if h.identity == nil {
		return h.unconfigured(ctx, StepIdentity)
	}
	username, err := h.identity.CreateDisabledIdentity(ctx, models.ApplicantFromPayload(payload))
	if err != nil {
		return h.fail(ctx, StepIdentity, err)
	}
	return h.respond(StepIdentity, http.StatusOK, Result{
		Success: true,
		Message: msgIdentityCreated,
		Data:    payload.With(models.FieldCognitoUsername, username),
	})
}

// StoreMember allocates a member id, stores the PENDING record and adds
// memberId to the payload.
func (h *Handler) StoreMember(ctx context.Context, ev Event) (resp Response) {
	defer h.recover(ctx, StepStore, &resp)

	payload, errResp, ok := h.validPayload(ctx, StepStore, ev)
	if !ok {
		return errResp
	}
	if h.members == nil {
		return h.unconfigured(ctx, StepStore)
	}
	memberID, err := h.members.AllocateAndStore(ctx, models.ApplicantFromPayload(payload))
	if err != nil {
		return h.fail(ctx, StepStore, err)
	}
	return h.respond(StepStore, http.StatusOK, Result{
		Success: true,
		Message: msgMemberStored,
		Data:    payload.With(models.FieldMemberID, memberID.String()),
	})
}

type emailRequest struct {
	EmailType    string         `json:"emailType"`
	UserData     models.Payload `json:"userData"`
	TempPassword string         `json:"tempPassword"`
}

// SendEmail sends the email named by emailType to the applicant in userData.
func (h *Handler) SendEmail(ctx context.Context, ev Event) (resp Response) {
	defer h.recover(ctx, StepNotify, &resp)

	var req emailRequest
	if err := decodeObject(ev.Body, &req); err != nil {
		return h.respond(StepNotify, http.StatusBadRequest, Result{Message: MsgInvalidJSON})
	}
	if req.EmailType == "" || len(req.UserData) == 0 {
		return h.respond(StepNotify, http.StatusBadRequest, Result{Message: MsgMissingEmailTypeOrData})
	}
	if h.notifier == nil {
		return h.unconfigured(ctx, StepNotify)
	}
	kind := notify.Kind(req.EmailType)
	err := h.notifier.Notify(ctx, notify.Request{
		Kind:         kind,
		Applicant:    models.ApplicantFromPayload(req.UserData),
		TempPassword: req.TempPassword,
	})
	if err != nil {
		return h.fail(ctx, StepNotify, err)
	}
	return h.respond(StepNotify, http.StatusOK, Result{Success: true, Message: kind.SentMessage()})
}

func (h *Handler) validPayload(ctx context.Context, step string, ev Event) (models.Payload, Response, bool) {
	payload, err := decodePayload(ev.Body)
	if err != nil {
		return nil, h.respond(step, http.StatusBadRequest, Result{Message: MsgInvalidJSON}), false
	}
	if err := validation.Validate(payload); err != nil {
		return nil, h.fail(ctx, step, err), false
	}
	return payload, Response{}, true
}

// fail maps a service error onto the envelope. Client errors carry the
// service message; server errors carry the service message only when the
// service classified the error, otherwise the step's generic message.
func (h *Handler) fail(ctx context.Context, step string, err error) Response {
	code := dErrors.CodeOf(err)
	if dErrors.IsClientError(code) {
		return h.respond(step, http.StatusBadRequest, Result{Message: dErrors.MessageOf(err, genericMessages[step])})
	}
	h.logger.ErrorContext(ctx, "step failed",
		"step", step,
		"code", code,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	return h.respond(step, http.StatusInternalServerError, Result{Message: dErrors.MessageOf(err, genericMessages[step])})
}

func (h *Handler) unconfigured(ctx context.Context, step string) Response {
	h.logger.ErrorContext(ctx, "step called without a configured service", "step", step)
	return h.respond(step, http.StatusInternalServerError, Result{Message: genericMessages[step]})
}

func (h *Handler) recover(ctx context.Context, step string, resp *Response) {
	if r := recover(); r != nil {
		h.logger.ErrorContext(ctx, "handler panic",
			"step", step,
			"request_id", requestcontext.RequestID(ctx),
			"panic", fmt.Sprint(r),
			"stack", string(debug.Stack()),
		)
		*resp = h.respond(step, http.StatusInternalServerError, Result{Message: genericMessages[step]})
	}
}

func (h *Handler) respond(step string, status int, result Result) Response {
	h.metrics.IncResponse(step, strconv.Itoa(status))
	return newResponse(status, result)
}
