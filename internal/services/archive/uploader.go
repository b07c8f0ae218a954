package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"session-recorder/internal/config"
)

// objectStore: the part of *minio.Client the uploader needs.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Object: one uploaded session file.
type Object struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// Uploader copies finished session files into an S3 compatible bucket,
// one prefix per session.
type Uploader struct {
	client objectStore
	bucket string
	log    *zap.Logger
}

func New(cfg config.ArchiveConfig, log *zap.Logger) (*Uploader, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}
	return &Uploader{client: client, bucket: cfg.Bucket, log: log.Named("archive")}, nil
}

func (u *Uploader) Bucket() string { return u.bucket }

// EnsureBucket creates the bucket on first use.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", u.bucket, err)
	}
	u.log.Info("bucket created", zap.String("bucket", u.bucket))
	return nil
}

// Upload puts every existing file under "<sessionID>/<base name>". A
// failing file does not stop the others; failures are combined.
func (u *Uploader) Upload(ctx context.Context, sessionID string, files []string) ([]Object, error) {
	if err := u.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	var (
		out  []Object
		errs error
	)
	for _, path := range files {
		if _, err := os.Stat(path); err != nil {
			u.log.Warn("skipping missing file", zap.String("path", path))
			continue
		}
		key := ObjectKey(sessionID, path)
		info, err := u.client.FPutObject(ctx, u.bucket, key, path, minio.PutObjectOptions{
			ContentType: ContentType(path),
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("upload %s: %w", key, err))
			continue
		}
		u.log.Info("uploaded", zap.String("key", key), zap.Int64("size", info.Size))
		out = append(out, Object{Key: key, Size: info.Size})
	}
	return out, errs
}

// ObjectKey: "<sessionID>/<base name>".
func ObjectKey(sessionID, path string) string {
	return sessionID + "/" + filepath.Base(path)
}

func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".h264":
		return "video/h264"
	case ".wav":
		return "audio/wav"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
