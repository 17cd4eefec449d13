// Package ses implements a template Publisher backed by AWS SES v2 email
// templates.
package ses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/oft-eml-exporter/internal/email"
)

// maxRetries is the maximum number of retry attempts for transient failures.
const maxRetries = 3

// baseRetryDelay is the initial delay for exponential backoff.
const baseRetryDelay = 1 * time.Second

// Config holds the configuration for creating a Publisher.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// TemplateAPI is the subset of the SES v2 client used for templates.
// Used for testing with mock implementations.
type TemplateAPI interface {
	CreateEmailTemplate(ctx context.Context, params *sesv2.CreateEmailTemplateInput, optFns ...func(*sesv2.Options)) (*sesv2.CreateEmailTemplateOutput, error)
	UpdateEmailTemplate(ctx context.Context, params *sesv2.UpdateEmailTemplateInput, optFns ...func(*sesv2.Options)) (*sesv2.UpdateEmailTemplateOutput, error)
}

// Publisher stores messages as SES email templates. SES substitutes the
// same {{name}} placeholders the exporter detects.
type Publisher struct {
	client    TemplateAPI
	baseDelay time.Duration
}

// New creates a Publisher using the default AWS credential chain, or the
// static keys in cfg when both are set.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(sesv2.NewFromConfig(awsCfg)), nil
}

// NewWithClient creates a Publisher with a custom client, used for testing.
func NewWithClient(client TemplateAPI) *Publisher {
	return &Publisher{
		client:    client,
		baseDelay: baseRetryDelay,
	}
}

// Publish creates the template name from msg, replacing an existing
// template of the same name. Recipients and attachments are not part of an
// SES template and are dropped.
func (p *Publisher) Publish(ctx context.Context, name string, msg *email.Message) error {
	if len(msg.Attachments) > 0 {
		slog.WarnContext(ctx, "SES templates cannot carry attachments, dropping them",
			"template", name,
			"attachments", len(msg.Attachments),
		)
	}

	content := templateContent(msg)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying SES API request",
				"attempt", attempt,
				"max_retries", maxRetries,
			)
			if err := sleepWithContext(ctx, p.backoffDelay(attempt)); err != nil {
				return fmt.Errorf("context cancelled during retry wait: %w", err)
			}
		}

		err := p.upsert(ctx, name, content)
		if err == nil {
			slog.InfoContext(ctx, "SES template published", "template", name)
			return nil
		}
		if !retryable(err) {
			return fmt.Errorf("SES API request failed: %w", err)
		}

		lastErr = err
		slog.Warn("SES API error",
			"attempt", attempt,
			"error", err,
		)
	}

	return fmt.Errorf("SES API request failed after %d retries: %w", maxRetries, lastErr)
}

func (p *Publisher) upsert(ctx context.Context, name string, content *types.EmailTemplateContent) error {
	_, err := p.client.CreateEmailTemplate(ctx, &sesv2.CreateEmailTemplateInput{
		TemplateName:    aws.String(name),
		TemplateContent: content,
	})

	var exists *types.AlreadyExistsException
	if !errors.As(err, &exists) {
		return err
	}

	_, err = p.client.UpdateEmailTemplate(ctx, &sesv2.UpdateEmailTemplateInput{
		TemplateName:    aws.String(name),
		TemplateContent: content,
	})
	return err
}

// templateContent maps a message onto SES template fields. Empty bodies are
// left unset since SES rejects empty parts.
func templateContent(msg *email.Message) *types.EmailTemplateContent {
	content := &types.EmailTemplateContent{
		Subject: aws.String(msg.Subject),
	}
	if msg.IsHTML {
		content.Html = aws.String(msg.HtmlBody)
	}
	if msg.TextBody != "" {
		content.Text = aws.String(msg.TextBody)
	}
	return content
}

// retryable reports whether err may succeed on a later attempt. Client-side
// validation failures and context errors are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var badRequest *types.BadRequestException
	var limit *types.LimitExceededException
	return !errors.As(err, &badRequest) && !errors.As(err, &limit)
}

// backoffDelay returns the exponential backoff delay for the given attempt number.
func (p *Publisher) backoffDelay(attempt int) time.Duration {
	delay := p.baseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
