package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"appointment-bot/internal/domain"
)

const defaultMaxAttempts = 5

// s3API is the minimal S3 interface required by S3Store.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps the appointment collection as a single JSON object.
// Writes are conditional on the ETag that was read, so appends from other
// processes are detected and retried instead of overwritten.
type S3Store struct {
	api         s3API
	bucket      string
	key         string
	maxAttempts int
	mu          sync.Mutex
}

func NewS3Store(api s3API, bucket, key string) (*S3Store, error) {
	if api == nil {
		return nil, errors.New("repository: s3 api must not be nil")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("repository: bucket must not be empty")
	}
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("repository: object key must not be empty")
	}
	return &S3Store{api: api, bucket: bucket, key: key, maxAttempts: defaultMaxAttempts}, nil
}

func (s *S3Store) LoadAll(ctx context.Context) ([]domain.Appointment, error) {
	coll, _, err := s.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: LoadAll: %w", err)
	}
	return coll.list(), nil
}

func (s *S3Store) Append(ctx context.Context, a domain.Appointment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		coll, etag, err := s.read(ctx)
		if err != nil {
			return "", fmt.Errorf("repository: Append: %w", err)
		}
		id := coll.add(a)
		err = s.write(ctx, coll, etag)
		if err == nil {
			return id, nil
		}
		if !isPreconditionFailure(err) {
			return "", fmt.Errorf("repository: Append: %w", err)
		}
	}
	return "", fmt.Errorf("repository: Append: %w", ErrConflict)
}

// read returns the collection and its ETag; a missing object has an empty ETag.
func (s *S3Store) read(ctx context.Context) (collection, string, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isNotFound(err) {
			return collection{}, "", nil
		}
		return nil, "", fmt.Errorf("get object: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read object: %w", err)
	}
	coll, err := decodeCollection(raw)
	if err != nil {
		return nil, "", err
	}
	return coll, aws.ToString(out.ETag), nil
}

func (s *S3Store) write(ctx context.Context, coll collection, etag string) error {
	raw, err := coll.encode()
	if err != nil {
		return err
	}
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	}
	if etag == "" {
		in.IfNoneMatch = aws.String("*")
	} else {
		in.IfMatch = aws.String(etag)
	}
	if _, err := s.api.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound"
}

func isPreconditionFailure(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}
