package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"imagegate/internal/apperr"
	"imagegate/internal/config"
)

// S3 stores artifacts in an S3-compatible bucket (MinIO, AWS, ...).
// Whole-object PUTs are last-writer-wins, which is safe for
// content-addressed keys.
type S3 struct {
	client     *minio.Client
	bucket     string
	subPath    string
	cdnBaseURL string
}

// NewS3 connects to the endpoint from the MinIO configuration using
// static credentials and path-style addressing.
func NewS3(cfg config.Config) (*S3, error) {
	endpoint, err := url.Parse(cfg.MinioEndpointURL)
	if err != nil {
		return nil, fmt.Errorf("s3 storage: parse endpoint %q: %w", cfg.MinioEndpointURL, err)
	}
	client, err := minio.New(endpoint.Host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.MinioAccessKeyID, cfg.MinioSecretAccessKey, ""),
		Secure:       endpoint.Scheme == "https",
		Region:       cfg.MinioRegion,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 storage: new client: %w", err)
	}
	return &S3{
		client:     client,
		bucket:     cfg.MinioBucket,
		subPath:    normalizeSubPath(cfg.StorageSubPath),
		cdnBaseURL: cfg.CDNBaseURL,
	}, nil
}

// normalizeSubPath yields either "" or a prefix ending in "/".
func normalizeSubPath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

func (s *S3) objectKey(key string) string { return s.subPath + key }

func (s *S3) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(key),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return apperr.E(apperr.KindStoreTransport, "s3.put", err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, key string) ([]byte, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, "", apperr.E(apperr.KindStoreTransport, "s3.get", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, "", apperr.E(apperr.KindNotFound, "s3.get", err)
		}
		return nil, "", apperr.E(apperr.KindStoreTransport, "s3.get.read", err)
	}
	contentType := ContentTypeForKey(key)
	if info, err := obj.Stat(); err == nil && info.ContentType != "" {
		contentType = info.ContentType
	}
	return data, contentType, nil
}

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.objectKey(key), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, apperr.E(apperr.KindStoreTransport, "s3.exists", err)
}

func (s *S3) PublicURL(key string) string {
	return joinURL(s.cdnBaseURL, s.subPath+key)
}
