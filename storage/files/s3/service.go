package s3files

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/trezcool/malipo/core"
)

// service stores receipt files in an S3-compatible object store (MinIO, AWS S3).
type service struct {
	client *minio.Client
	bucket string
}

var _ core.FileStorage = (*service)(nil)

func NewService(ctx context.Context, conf *core.Config) (*service, error) {
	client, err := minio.New(conf.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.Storage.AccessKey, conf.Storage.SecretKey, ""),
		Secure: conf.Storage.UseSSL,
		Region: conf.Storage.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating S3 client")
	}

	svc := &service{client: client, bucket: conf.Storage.Bucket}
	if err := svc.ensureBucket(ctx, conf.Storage.Region); err != nil {
		return nil, err
	}
	return svc, nil
}

// ensureBucket creates the bucket if it does not exist; safe to run on startup.
func (svc *service) ensureBucket(ctx context.Context, region string) error {
	exists, err := svc.client.BucketExists(ctx, svc.bucket)
	if err != nil {
		return errors.Wrap(err, "checking bucket")
	}
	if exists {
		return nil
	}
	err = svc.client.MakeBucket(ctx, svc.bucket, minio.MakeBucketOptions{Region: region})
	if err != nil {
		// the bucket may have been created by another process in the meantime
		if exists, existsErr := svc.client.BucketExists(ctx, svc.bucket); existsErr == nil && exists {
			return nil
		}
		return errors.Wrap(err, "creating bucket")
	}
	return nil
}

func (svc *service) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := svc.client.PutObject(ctx, svc.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return errors.Wrap(err, "putting object")
}

func (svc *service) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := svc.client.PresignedGetObject(ctx, svc.bucket, key, expiry, nil)
	if err != nil {
		return "", errors.Wrap(err, "presigning object URL")
	}
	return u.String(), nil
}
