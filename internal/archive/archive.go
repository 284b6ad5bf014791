// internal/archive/archive.go
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tiendanorte/compraplan/internal/config"
)

// PayloadArchive keeps raw sync artifacts for later inspection: documents
// that failed extraction and full-run summaries. Writes are best-effort at
// the call sites; the archive itself reports errors normally.
type PayloadArchive interface {
	StoreFailedDocument(ctx context.Context, kind, docNum string, payload any) error
	StoreRunSummary(ctx context.Context, startedAt time.Time, summary any) error
}

type minioArchive struct {
	client *minio.Client
	bucket string
}

type noopArchive struct{}

// New returns a minio-backed archive, or a noop one when disabled.
func New(ctx context.Context, cfg config.ArchiveConfig) (PayloadArchive, error) {
	if !cfg.Enabled {
		return noopArchive{}, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio bucket create: %w", err)
		}
	}

	return &minioArchive{client: client, bucket: cfg.Bucket}, nil
}

func NewNoop() PayloadArchive {
	return noopArchive{}
}

func (a *minioArchive) StoreFailedDocument(ctx context.Context, kind, docNum string, payload any) error {
	now := time.Now()
	key := fmt.Sprintf("failures/%04d/%02d/%s-%s.json", now.Year(), now.Month(), kind, docNum)
	return a.put(ctx, key, payload)
}

func (a *minioArchive) StoreRunSummary(ctx context.Context, startedAt time.Time, summary any) error {
	key := fmt.Sprintf("runs/%s.json", startedAt.UTC().Format("2006-01-02T15-04-05"))
	return a.put(ctx, key, summary)
}

func (a *minioArchive) put(ctx context.Context, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode archive payload: %w", err)
	}

	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("archive put %s: %w", key, err)
	}

	return nil
}

func (noopArchive) StoreFailedDocument(ctx context.Context, kind, docNum string, payload any) error {
	return nil
}

func (noopArchive) StoreRunSummary(ctx context.Context, startedAt time.Time, summary any) error {
	return nil
}
