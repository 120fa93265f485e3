package main

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/hashsync/internal/config"
	"github.com/vango-dev/hashsync/internal/errors"
	"github.com/vango-dev/hashsync/pkg/store"
)

// openStore builds the snapshot store named by the config.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Kind {
	case config.StoreFile:
		return store.NewFileStore(cfg.StoreDir())
	case config.StoreS3:
		return store.NewS3Store(newS3Client(cfg.Store), cfg.Store.Bucket, cfg.Store.Prefix), nil
	case config.StoreMemory, "":
		return store.NewMemoryStore(), nil
	default:
		return nil, errors.New("H201").WithDetailf("unknown store kind %q", cfg.Store.Kind)
	}
}

// newS3Client creates an S3 client from the store config. Credentials come
// from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN; the
// region falls back to AWS_REGION.
func newS3Client(sc config.StoreConfig) *s3.Client {
	region := sc.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{
		Region:       region,
		UsePathStyle: sc.UsePathStyle,
		Credentials:  aws.NewCredentialsCache(aws.CredentialsProviderFunc(envCredentials)),
	}
	if sc.Endpoint != "" {
		opts.BaseEndpoint = aws.String(sc.Endpoint)
	}
	return s3.New(opts)
}

func envCredentials(ctx context.Context) (aws.Credentials, error) {
	creds := aws.Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "hashsync environment",
	}
	if !creds.HasKeys() {
		return aws.Credentials{}, errors.New("H201").
			WithDetail("no AWS credentials in the environment").
			WithSuggestion("Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
	}
	return creds, nil
}
