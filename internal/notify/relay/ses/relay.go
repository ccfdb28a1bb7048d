// Package ses delivers transactional email through Amazon SES.
package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"membership/internal/notify/service"
)

const charset = "UTF-8"

// API is the subset of the SES client used by Relay.
type API interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type Relay struct {
	client API
}

func New(client API) *Relay {
	return &Relay{client: client}
}

func NewFromConfig(cfg aws.Config) *Relay {
	return New(ses.NewFromConfig(cfg))
}

func (r *Relay) Send(ctx context.Context, msg service.Message) error {
	_, err := r.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(msg.From),
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String(charset)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}
