// Package storage keeps reconciled transcripts in S3 and a ledger of tick
// results in DynamoDB. Both are optional and enabled by configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/fundraise-dialer/internal/config"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// DynamoAPI is the subset of the DynamoDB client used here.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// LoadAWSConfig loads the default AWS credential chain for the configured
// region, optionally pinned to a shared config profile.
func LoadAWSConfig(ctx context.Context, cfg config.StorageConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AWSProfile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}

// New builds the archive and ledger enabled by cfg. Either return value is
// nil when its bucket or table is not configured.
func New(ctx context.Context, cfg config.StorageConfig) (*TranscriptArchive, *TickLedger, error) {
	if cfg.TranscriptBucket == "" && cfg.TickLedgerTable == "" {
		return nil, nil, nil
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	var archive *TranscriptArchive
	if cfg.TranscriptBucket != "" {
		archive = NewTranscriptArchive(s3.NewFromConfig(awsCfg), cfg.TranscriptBucket, cfg.TranscriptPrefix)
	}
	var ledger *TickLedger
	if cfg.TickLedgerTable != "" {
		ledger = NewTickLedger(dynamodb.NewFromConfig(awsCfg), cfg.TickLedgerTable, cfg.LedgerTTLDays)
	}
	return archive, ledger, nil
}
