package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// postmarkClient implements the EmailSender interface.
type postmarkClient struct {
	client *postmark.Client
	config Config
}

// NewPostmarkClient creates a new instance of the mailer client
// with the provided server token and account token from the config (see Config).
// The client is used to send emails synchronously using the Postmark API.
func NewPostmarkClient(cfg Config) (EmailSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	for _, f := range [][2]string{{"SenderEmail", cfg.SenderEmail}, {"SupportEmail", cfg.SupportEmail}} {
		if f[1] == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidConfig, f[0])
		}
		if !emailRegex.MatchString(f[1]) {
			return nil, fmt.Errorf("%w: %s must be a valid email address", ErrInvalidConfig, f[0])
		}
	}

	return &postmarkClient{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

// MustNewPostmarkClient creates a new instance of the mailer client
// with the provided server token and account token from the config (see Config).
// The client is used to send emails synchronously using the Postmark API.
// Panics if the config is invalid.
func MustNewPostmarkClient(cfg Config) EmailSender {
	client, err := NewPostmarkClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// SendEmail sends an email using the Postmark API with tracking enabled for opens and links.
// It uses the configured sender email as the "From" address and support email as "Reply-To".
// Returns an error if params are invalid, if the send fails or if Postmark returns an error response.
func (c *postmarkClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:       c.config.SenderEmail,
		ReplyTo:    c.config.SupportEmail,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}
