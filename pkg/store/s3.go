package store

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Store keeps one JSON object per snapshot under a key prefix.
//
// Example usage:
//
//	client := s3.New(s3.Options{Region: "eu-west-1", Credentials: creds})
//	st := store.NewS3Store(client, "my-bucket", "hashsync/")
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

var _ Store = (*S3Store)(nil)

// NewS3Store creates an S3Store.
//
// Parameters:
//   - client: an *s3.Client or any S3API implementation
//   - bucket: S3 bucket name
//   - prefix: key prefix for snapshots (e.g., "snapshots/")
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(id string) string {
	return s.prefix + id + fileExt
}

// Save uploads the snapshot.
func (s *S3Store) Save(ctx context.Context, snap Snapshot) error {
	if err := checkID(snap.ID); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return ioError("json marshal", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(snap.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"updated-at": snap.UpdatedAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return ioError("s3 put "+s.key(snap.ID), err)
	}
	return nil
}

// Load downloads the snapshot.
func (s *S3Store) Load(ctx context.Context, id string) (Snapshot, error) {
	if err := checkID(id); err != nil {
		return Snapshot{}, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return Snapshot{}, notFound(id)
		}
		return Snapshot{}, ioError("s3 get "+s.key(id), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Snapshot{}, ioError("s3 read "+s.key(id), err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, ioError("json unmarshal "+s.key(id), err)
	}
	snap.ID = id
	return snap, nil
}

// Delete removes the snapshot object. S3 does not report missing keys on
// delete.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return ioError("s3 delete "+s.key(id), err)
	}
	return nil
}

// List pages through the objects under the prefix.
func (s *S3Store) List(ctx context.Context) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var ids []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, ioError("s3 list "+s.prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			name := strings.TrimPrefix(*obj.Key, s.prefix)
			if !strings.HasSuffix(name, fileExt) {
				continue
			}
			if id := strings.TrimSuffix(name, fileExt); ValidID(id) {
				ids = append(ids, id)
			}
		}
	}
	return sortedIDs(ids), nil
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	if stderrors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
