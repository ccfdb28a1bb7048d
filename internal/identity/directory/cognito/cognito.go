// Package cognito stores applicant identities in an Amazon Cognito user pool.
package cognito

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"membership/internal/identity/service"
	"membership/pkg/platform/sentinel"
)

// Custom attribute names defined on the user pool.
const (
	AttrEmail          = "email"
	AttrName           = "name"
	AttrMembershipType = "custom:membershipType"
	AttrLAAStatus      = "custom:laaStatus"
)

// API is the subset of the Cognito client used by Directory.
type API interface {
	AdminCreateUser(ctx context.Context, in *cip.AdminCreateUserInput, optFns ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error)
	AdminDisableUser(ctx context.Context, in *cip.AdminDisableUserInput, optFns ...func(*cip.Options)) (*cip.AdminDisableUserOutput, error)
	AdminEnableUser(ctx context.Context, in *cip.AdminEnableUserInput, optFns ...func(*cip.Options)) (*cip.AdminEnableUserOutput, error)
}

type Directory struct {
	client     API
	userPoolID string
}

func New(client API, userPoolID string) *Directory {
	return &Directory{client: client, userPoolID: userPoolID}
}

// NewFromConfig builds a Directory backed by the SDK client.
func NewFromConfig(cfg aws.Config, userPoolID string) *Directory {
	return New(cip.NewFromConfig(cfg), userPoolID)
}

func (d *Directory) CreateUser(ctx context.Context, in service.NewUser) (string, error) {
	input := &cip.AdminCreateUserInput{
		UserPoolId: aws.String(d.userPoolID),
		Username:   aws.String(in.Username),
		UserAttributes: []types.AttributeType{
			{Name: aws.String(AttrEmail), Value: aws.String(in.Email)},
			{Name: aws.String(AttrName), Value: aws.String(in.Name)},
			{Name: aws.String(AttrMembershipType), Value: aws.String(in.MembershipType)},
			{Name: aws.String(AttrLAAStatus), Value: aws.String(in.LAAStatus)},
		},
		TemporaryPassword: aws.String(in.TemporaryPassword),
	}
	if in.SuppressInvite {
		input.MessageAction = types.MessageActionTypeSuppress
	}

	out, err := d.client.AdminCreateUser(ctx, input)
	if err != nil {
		return "", translate("admin create user", err)
	}
	if out.User != nil && out.User.Username != nil {
		return aws.ToString(out.User.Username), nil
	}
	return in.Username, nil
}

func (d *Directory) DisableUser(ctx context.Context, username string) error {
	_, err := d.client.AdminDisableUser(ctx, &cip.AdminDisableUserInput{
		UserPoolId: aws.String(d.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		return translate("admin disable user", err)
	}
	return nil
}

func (d *Directory) EnableUser(ctx context.Context, username string) error {
	_, err := d.client.AdminEnableUser(ctx, &cip.AdminEnableUserInput{
		UserPoolId: aws.String(d.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		return translate("admin enable user", err)
	}
	return nil
}

func translate(op string, err error) error {
	var (
		exists   *types.UsernameExistsException
		notFound *types.UserNotFoundException
		throttle *types.TooManyRequestsException
	)
	switch {
	case errors.As(err, &exists):
		return fmt.Errorf("%s: %w", op, errors.Join(sentinel.ErrConflict, err))
	case errors.As(err, &notFound):
		return fmt.Errorf("%s: %w", op, errors.Join(sentinel.ErrNotFound, err))
	case errors.As(err, &throttle):
		return fmt.Errorf("%s: %w", op, errors.Join(sentinel.ErrUnavailable, err))
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
