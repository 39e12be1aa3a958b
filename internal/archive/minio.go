package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds the connection settings for the raw-content archive.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIOArchive keeps raw document bodies in an object-storage bucket.
type MinIOArchive struct {
	client *minio.Client
	bucket string
}

var _ Archive = (*MinIOArchive)(nil)

// NewMinIOArchive creates the archive client and ensures the bucket exists.
func NewMinIOArchive(cfg *MinIOConfig) (*MinIOArchive, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	a := &MinIOArchive{client: mc, bucket: cfg.Bucket}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, xerr := mc.BucketExists(ctx, a.bucket)
		if xerr != nil || !exists {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return a, nil
}

func objectKey(slug, id string) string {
	return slug + "/" + id
}

func (a *MinIOArchive) Put(ctx context.Context, slug, id string, body []byte) error {
	_, err := a.client.PutObject(ctx, a.bucket, objectKey(slug, id),
		bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	return err
}

func (a *MinIOArchive) Get(ctx context.Context, slug, id string) ([]byte, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, objectKey(slug, id), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (a *MinIOArchive) Remove(ctx context.Context, slug, id string) error {
	return a.client.RemoveObject(ctx, a.bucket, objectKey(slug, id), minio.RemoveObjectOptions{})
}

// RemoveAll deletes every archived body for the tenant.
func (a *MinIOArchive) RemoveAll(ctx context.Context, slug string) error {
	opts := minio.ListObjectsOptions{Prefix: slug + "/", Recursive: true}
	for obj := range a.client.ListObjects(ctx, a.bucket, opts) {
		if obj.Err != nil {
			return obj.Err
		}
		if err := a.client.RemoveObject(ctx, a.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}
	return nil
}
