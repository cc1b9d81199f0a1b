// Package alert emails operators when a scheduled tick fails.
package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/fundraise-dialer/internal/config"
	"github.com/ignite/fundraise-dialer/internal/pkg/logger"
	"github.com/ignite/fundraise-dialer/internal/worker"
)

// DefaultCooldown is the minimum gap between two alerts for the same job.
const DefaultCooldown = 15 * time.Minute

// SESAPI is the subset of the SES v2 client used by the alerter.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESAlerter sends a plain-text email for each failed tick, at most once per
// cooldown per job.
type SESAlerter struct {
	client   SESAPI
	from     string
	to       []string
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewSESAlerter builds an alerter from cfg using static credentials when
// they are set and the default chain otherwise.
func NewSESAlerter(ctx context.Context, cfg config.AlertsConfig) (*SESAlerter, error) {
	if cfg.FromEmail == "" || len(cfg.To) == 0 {
		return nil, fmt.Errorf("alerts need from_email and at least one recipient")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewWithClient(sesv2.NewFromConfig(awsCfg), cfg.FromEmail, cfg.To), nil
}

// NewWithClient creates an alerter around an existing SES client.
func NewWithClient(client SESAPI, from string, to []string) *SESAlerter {
	return &SESAlerter{
		client:   client,
		from:     from,
		to:       to,
		cooldown: DefaultCooldown,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// SetCooldown overrides the per-job cooldown.
func (a *SESAlerter) SetCooldown(d time.Duration) {
	a.cooldown = d
}

// ObserveTick implements worker.Observer. Successful and lock-skipped ticks
// are ignored.
func (a *SESAlerter) ObserveTick(ctx context.Context, rec worker.TickRecord) {
	if rec.Err == nil || rec.Skipped {
		return
	}
	if !a.claim(rec.Job) {
		logger.Debug("alert suppressed by cooldown", "job", rec.Job)
		return
	}
	if err := a.send(ctx, rec); err != nil {
		logger.Error("alert email failed", "job", rec.Job, "error", err)
	}
}

func (a *SESAlerter) claim(job string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	if last, ok := a.lastSent[job]; ok && now.Sub(last) < a.cooldown {
		return false
	}
	a.lastSent[job] = now
	return true
}

func (a *SESAlerter) send(ctx context.Context, rec worker.TickRecord) error {
	subject := fmt.Sprintf("[fundraise-dialer] %s failed", rec.Job)

	var body strings.Builder
	fmt.Fprintf(&body, "Job: %s\n", rec.Job)
	fmt.Fprintf(&body, "Started: %s\n", rec.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&body, "Duration: %s\n", rec.Duration)
	fmt.Fprintf(&body, "Error: %v\n", rec.Err)

	_, err := a.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(a.from),
		Destination:      &types.Destination{ToAddresses: a.to},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body.String()), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("job"), Value: aws.String(rec.Job)},
		},
	})
	if err != nil {
		return fmt.Errorf("sending alert via SES: %w", err)
	}
	logger.Info("alert sent", "job", rec.Job, "recipients", len(a.to))
	return nil
}
