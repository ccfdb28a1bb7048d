package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membership/internal/handler"
	identitymemory "membership/internal/identity/directory/memory"
	identity "membership/internal/identity/service"
	member "membership/internal/member/service"
	membermemory "membership/internal/member/store/memory"
	"membership/internal/membership/models"
	relaymemory "membership/internal/notify/relay/memory"
	notify "membership/internal/notify/service"
	id "membership/pkg/domain"
	dErrors "membership/pkg/domain-errors"
	"membership/pkg/testutil"
)

func submission() map[string]any {
	return map[string]any{
		"fullName":       "Jane Doe",
		"email":          "jane@example.com",
		"telephone":      "07911123456",
		"postcode":       "SW1A 1AA",
		"membershipType": "associate",
		"laaStatus":      true,
	}
}

type fixture struct {
	directory *identitymemory.Directory
	table     *membermemory.Table
	relay     *relaymemory.Relay
	handler   *handler.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		directory: identitymemory.New(),
		table:     membermemory.New(),
		relay:     relaymemory.New(),
	}
	identitySvc, err := identity.New(f.directory)
	require.NoError(t, err)
	memberSvc, err := member.New(f.table)
	require.NoError(t, err)
	notifySvc, err := notify.New(f.relay, "membership@ukpc.example", notify.BankDetails{
		AccountName: "UKPC Ltd", SortCode: "12-34-56", AccountNumber: "12345678",
	})
	require.NoError(t, err)
	f.handler = handler.New(identitySvc, memberSvc, notifySvc)
	return f
}

func event(t *testing.T, body any) handler.Event {
	t.Helper()
	return handler.Event{Body: testutil.MustMarshal(t, body)}
}

func decode(t *testing.T, resp handler.Response) handler.Result {
	t.Helper()
	res, err := resp.Decode()
	require.NoError(t, err)
	return res
}

func TestValidateHandler(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	testutil.Given(t, "a valid submission", func(t *testing.T) {
		resp := f.handler.Validate(ctx, event(t, submission()))
		testutil.Then(t, "it is accepted and echoed", func(t *testing.T) {
			res := decode(t, resp)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.True(t, res.Success)
			assert.Equal(t, handler.MsgValidationSuccessful, res.Message)
			assert.Equal(t, "Jane Doe", res.Payload()["fullName"])
			assert.Equal(t, "application/json", resp.Headers["Content-Type"])
		})
	})

	testutil.Given(t, "a submission missing postcode", func(t *testing.T) {
		body := submission()
		delete(body, "postcode")
		resp := f.handler.Validate(ctx, event(t, body))
		testutil.Then(t, "the missing field is named", func(t *testing.T) {
			res := decode(t, resp)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.False(t, res.Success)
			assert.Equal(t, "Missing required field: postcode", res.Message)
			assert.Nil(t, res.Data)
		})
	})

	for _, body := range []string{"{not json", "", "null", "[1,2]", `"text"`} {
		testutil.When(t, "the body is "+body, func(t *testing.T) {
			resp := f.handler.Validate(ctx, handler.Event{Body: body})
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, handler.MsgInvalidJSON, decode(t, resp).Message)
		})
	}
}

func TestProvisionIdentityHandler(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp := f.handler.ProvisionIdentity(ctx, event(t, submission()))
	res := decode(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode, res.Message)
	assert.Equal(t, "Cognito user created successfully", res.Message)
	assert.Equal(t, "jane@example.com", res.Payload()[models.FieldCognitoUsername])
	assert.Equal(t, "SW1A 1AA", res.Payload()[models.FieldPostcode], "input keys are preserved")

	user, ok := f.directory.Get("jane@example.com")
	require.True(t, ok)
	assert.False(t, user.Enabled)
	assert.Equal(t, "true", user.LAAStatus)
	assert.Len(t, user.TemporaryPassword, 32)
	assert.NotContains(t, resp.Body, user.TemporaryPassword)

	testutil.When(t, "the same email is provisioned again", func(t *testing.T) {
		resp := f.handler.ProvisionIdentity(ctx, event(t, submission()))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, identity.MsgAlreadyExists, decode(t, resp).Message)
	})

	testutil.When(t, "the submission is invalid", func(t *testing.T) {
		body := submission()
		body["email"] = "not-an-email"
		resp := f.handler.ProvisionIdentity(ctx, event(t, body))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid email address", decode(t, resp).Message)
	})
}

func TestStoreMemberHandler(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, want := range []string{"MEMBER#000001", "MEMBER#000002"} {
		resp := f.handler.StoreMember(ctx, event(t, submission()))
		res := decode(t, resp)
		require.Equal(t, http.StatusOK, resp.StatusCode, res.Message)
		assert.Equal(t, "Member data stored successfully", res.Message)
		assert.Equal(t, want, res.Payload()[models.FieldMemberID])
	}

	record, err := f.table.Get(ctx, "MEMBER#000001")
	require.NoError(t, err)
	assert.Equal(t, id.MembershipStatusPending, record.MembershipStatus)
	assert.Equal(t, "associate", record.MembershipType)
}

func TestSendEmailHandler(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userData := submission()
	userData["memberId"] = "MEMBER#000001"

	tests := []struct {
		name    string
		body    any
		status  int
		message string
	}{
		{"payment instructions", map[string]any{"emailType": "payment_instructions", "userData": userData}, http.StatusOK, notify.MsgPaymentInstructionsSent},
		{"welcome", map[string]any{"emailType": "welcome", "userData": userData, "tempPassword": "Tmp-1"}, http.StatusOK, notify.MsgWelcomeSent},
		{"welcome without password", map[string]any{"emailType": "welcome", "userData": userData}, http.StatusBadRequest, notify.MsgMissingTempPassword},
		{"unknown type", map[string]any{"emailType": "reminder", "userData": userData}, http.StatusBadRequest, "Invalid email type: reminder"},
		{"missing type", map[string]any{"userData": userData}, http.StatusBadRequest, handler.MsgMissingEmailTypeOrData},
		{"empty user data", map[string]any{"emailType": "welcome", "userData": map[string]any{}}, http.StatusBadRequest, handler.MsgMissingEmailTypeOrData},
		{"user data not an object", map[string]any{"emailType": "welcome", "userData": "jane"}, http.StatusBadRequest, handler.MsgInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.handler.SendEmail(ctx, event(t, tt.body))
			res := decode(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.status == http.StatusOK, res.Success)
			assert.Equal(t, tt.message, res.Message)
		})
	}
	assert.Len(t, f.relay.Sent(), 2)
}

type failingStore struct{ err error }

func (s failingStore) AllocateAndStore(context.Context, models.Applicant) (id.MemberID, error) {
	return "", s.err
}

type panickingNotifier struct{}

func (panickingNotifier) Notify(context.Context, notify.Request) error {
	panic("template exploded")
}

func TestServerErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unclassified error uses the generic message", func(t *testing.T) {
		h := handler.New(nil, failingStore{err: errors.New("dial tcp: timeout")}, nil)
		resp := h.StoreMember(ctx, event(t, submission()))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "Internal server error while storing member data", decode(t, resp).Message)
		assert.NotContains(t, resp.Body, "dial tcp")
	})

	t.Run("classified server error keeps its message", func(t *testing.T) {
		h := handler.New(nil, failingStore{err: dErrors.New(dErrors.CodeUnavailable, member.MsgContention)}, nil)
		resp := h.StoreMember(ctx, event(t, submission()))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, member.MsgContention, decode(t, resp).Message)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		h := handler.New(nil, nil, panickingNotifier{})
		resp := h.SendEmail(ctx, event(t, map[string]any{"emailType": "welcome", "userData": submission()}))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		res := decode(t, resp)
		assert.False(t, res.Success)
		assert.Equal(t, "Internal server error while sending email", res.Message)
	})

	t.Run("unconfigured step", func(t *testing.T) {
		h := handler.New(nil, nil, nil)
		resp := h.ProvisionIdentity(ctx, event(t, submission()))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "Internal server error while creating user account", decode(t, resp).Message)
	})
}
