package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

const transcriptExt = ".log"

// S3TranscriptStore stores transcripts in S3-compatible storage.
type S3TranscriptStore struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Config holds S3 configuration
type S3Config struct {
	Bucket          string
	Prefix          string // e.g. "transcripts/"
	Region          string
	Endpoint        string // For MinIO/local S3
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3TranscriptStore creates a new S3-backed transcript store.
func NewS3TranscriptStore(ctx context.Context, cfg S3Config) (*S3TranscriptStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO
		})
	}

	return &S3TranscriptStore{
		client: s3.NewFromConfig(awsCfg, clientOpts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Store uploads a transcript and returns its s3:// reference.
func (s *S3TranscriptStore) Store(ctx context.Context, runID string, transcript []byte) (string, error) {
	if err := validRunID(runID); err != nil {
		return "", err
	}
	key := s.prefix + runID + transcriptExt

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(transcript),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload transcript to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Retrieve fetches a transcript by s3:// reference or bare key.
func (s *S3TranscriptStore) Retrieve(ctx context.Context, reference string) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(extractKey(reference)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transcript from S3: %w", err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return data, nil
}

// extractKey strips the s3://bucket/ prefix from a reference.
func extractKey(reference string) string {
	rest, ok := strings.CutPrefix(reference, "s3://")
	if !ok {
		return reference
	}
	if _, key, found := strings.Cut(rest, "/"); found {
		return key
	}
	return rest
}

// LocalTranscriptStore stores transcripts on the local filesystem.
type LocalTranscriptStore struct {
	basePath string
}

// NewLocalTranscriptStore creates a local filesystem transcript store.
func NewLocalTranscriptStore(basePath string) (*LocalTranscriptStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}
	return &LocalTranscriptStore{basePath: basePath}, nil
}

// Store writes the transcript and returns its path.
func (l *LocalTranscriptStore) Store(ctx context.Context, runID string, transcript []byte) (string, error) {
	if err := validRunID(runID); err != nil {
		return "", err
	}
	path := filepath.Join(l.basePath, runID+transcriptExt)
	if err := os.WriteFile(path, transcript, 0o644); err != nil {
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}
	return path, nil
}

// Retrieve reads a transcript. Only files under the base path are served.
func (l *LocalTranscriptStore) Retrieve(ctx context.Context, reference string) ([]byte, error) {
	path := filepath.Join(l.basePath, filepath.Base(reference))
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return data, nil
}

func validRunID(runID string) error {
	if _, err := uuid.Parse(runID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	return nil
}
