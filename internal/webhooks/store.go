// Package webhooks discovers pending data-file notifications staged in
// object storage. Listing has no consumption side effect: notifications
// stay in place until archived, so re-listing an unchanged prefix is
// idempotent and downstream processing is at-least-once.
package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/greenbutton-etl/internal/config"
)

// ObjectAPI is the slice of the S3 API the store depends on. *s3.Client
// satisfies it; tests use a fake.
type ObjectAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Notification is one webhook notification: the object key it was read
// from and the data-file URLs it names.
type Notification struct {
	Key  string
	URLs []string
}

// notificationPayload is the JSON body of a staged notification object.
type notificationPayload struct {
	URLs []string `json:"urls"`
}

// Store reads webhook notifications from an S3 prefix.
type Store struct {
	api           ObjectAPI
	bucket        string
	prefix        string
	archivePrefix string
}

// NewStore builds a Store against real S3 using the default credential
// chain and the configured region.
func NewStore(ctx context.Context, cfg config.S3Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewStoreWithClient(s3.NewFromConfig(awsCfg), cfg), nil
}

// NewStoreWithClient builds a Store over an existing S3 API client.
func NewStoreWithClient(api ObjectAPI, cfg config.S3Config) *Store {
	return &Store{
		api:           api,
		bucket:        cfg.Bucket,
		prefix:        cfg.WebhookPrefix,
		archivePrefix: cfg.ArchivePrefix,
	}
}

// ListPending enumerates every notification under the webhook prefix, in
// listing order. Directory-marker keys are skipped. A notification body
// that fails to parse fails the whole listing: partial corruption under
// the prefix must surface as an extraction failure, not be skipped.
func (s *Store) ListPending(ctx context.Context) ([]Notification, error) {
	var notifications []Notification

	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", s.bucket, s.prefix, err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}

			n, err := s.readNotification(ctx, key)
			if err != nil {
				return nil, err
			}
			notifications = append(notifications, n)
		}
	}

	return notifications, nil
}

func (s *Store) readNotification(ctx context.Context, key string) (Notification, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Notification{}, fmt.Errorf("getting s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return Notification{}, fmt.Errorf("reading s3://%s/%s: %w", s.bucket, key, err)
	}

	var payload notificationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Notification{}, fmt.Errorf("parsing notification s3://%s/%s: %w", s.bucket, key, err)
	}

	return Notification{Key: key, URLs: payload.URLs}, nil
}

// Archive moves a consumed notification under the archive prefix
// (copy, then delete the original). Only invoked after a successful
// load, and only when archival is enabled in configuration.
func (s *Store) Archive(ctx context.Context, key string) error {
	if s.archivePrefix == "" {
		return fmt.Errorf("no archive prefix configured")
	}
	dest := s.archivePrefix + path.Base(key)

	_, err := s.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dest),
		CopySource: aws.String(s.bucket + "/" + key),
	})
	if err != nil {
		return fmt.Errorf("archiving s3://%s/%s: %w", s.bucket, key, err)
	}

	_, err = s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting archived s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}
