package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore holds archives. *MinioStore implements it.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// MinioStore is an ObjectStore on one bucket of an S3-compatible service.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to cfg.Endpoint and creates the bucket if it does
// not exist yet.
func NewMinioStore(ctx context.Context, cfg config.BlobConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/x-lz4",
	})
	return err
}

func (s *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return nil, fmt.Errorf("%s: %w", key, os.ErrNotExist)
		}
		return nil, err
	}
	return obj, nil
}

// Publisher uploads and downloads generation archives.
type Publisher struct {
	store   ObjectStore
	prefix  string
	retry   resilience.RetryConfig
	timeout time.Duration
	logger  *slog.Logger
}

func NewPublisher(store ObjectStore, prefix string) *Publisher {
	return &Publisher{
		store:   store,
		prefix:  prefix,
		retry:   resilience.RetryConfig{MaxAttempts: 4, InitialDelay: 500 * time.Millisecond},
		timeout: 5 * time.Minute,
		logger:  slog.Default().With("component", "generation-publisher"),
	}
}

// Publish archives generation under dataDir and uploads it, retrying
// transient failures. It returns the object key.
func (p *Publisher) Publish(ctx context.Context, dataDir, generation string) (string, error) {
	genDir := indexer.GenerationDir(dataDir, generation)
	tmp, err := os.CreateTemp(dataDir, generation+"-*.tar.lz4")
	if err != nil {
		return "", fmt.Errorf("creating archive file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := Archive(tmp, genDir); err != nil {
		return "", err
	}
	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", fmt.Errorf("sizing archive: %w", err)
	}

	key := ObjectKey(p.prefix, generation)
	err = resilience.Retry(ctx, "publish-generation", p.retry, func(int) error {
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return resilience.Permanent(err)
		}
		return resilience.WithTimeout(ctx, p.timeout, "upload", func(ctx context.Context) error {
			return p.store.Put(ctx, key, tmp, size)
		})
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	p.logger.Info("generation published", "generation", generation, "key", key, "bytes", size)
	return key, nil
}

// Fetch downloads generation into dataDir. The archive is unpacked beside
// the final directory and renamed into place, so a partial download never
// looks like a generation. CURRENT is left alone.
func (p *Publisher) Fetch(ctx context.Context, dataDir, generation string) error {
	if !indexer.ValidGenerationID(generation) {
		return fmt.Errorf("%w: generation %q", apperrors.ErrInvalidInput, generation)
	}
	genDir := indexer.GenerationDir(dataDir, generation)
	if _, err := os.Stat(genDir); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(genDir), 0755); err != nil {
		return fmt.Errorf("creating generations dir: %w", err)
	}
	staging, err := os.MkdirTemp(filepath.Dir(genDir), generation+"-fetch-*")
	if err != nil {
		return fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	key := ObjectKey(p.prefix, generation)
	err = resilience.Retry(ctx, "fetch-generation", p.retry, func(int) error {
		rc, err := p.store.Get(ctx, key)
		if err != nil {
			if os.IsNotExist(err) {
				return resilience.Permanent(err)
			}
			return err
		}
		defer rc.Close()
		return Extract(rc, staging)
	})
	if err != nil {
		return fmt.Errorf("fetching %s: %w", key, err)
	}
	if err := os.Rename(staging, genDir); err != nil {
		return fmt.Errorf("installing generation %s: %w", generation, err)
	}
	p.logger.Info("generation fetched", "generation", generation, "key", key)
	return nil
}
