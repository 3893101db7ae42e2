// Package objectstorage хранит файлы курса в S3-совместимом хранилище
// (Yandex Object Storage).
package objectstorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/magabrotheeeer/bankrot-course/internal/config"
)

// ErrNotConfigured не задан бакет или ключи доступа.
var ErrNotConfigured = errors.New("object storage not configured")

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store загружает и удаляет объекты в одном бакете.
type S3Store struct {
	client        s3API
	bucket        string
	publicBaseURL string
}

// NewS3Store создает клиент S3 со статическими ключами и явным endpoint.
func NewS3Store(ctx context.Context, cfg config.S3) (*S3Store, error) {
	const op = "objectstorage.NewS3Store"
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})
	return newS3Store(client, cfg), nil
}

func newS3Store(client s3API, cfg config.S3) *S3Store {
	base := cfg.PublicBaseURL
	if base == "" {
		base = cfg.Endpoint
	}
	return &S3Store{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
	}
}

// Put загружает объект с публичным чтением и возвращает его URL.
func (s *S3Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	const op = "objectstorage.Put"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		ACL:           "public-read",
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return s.URL(key), nil
}

// Delete удаляет объект. Отсутствующий объект не считается ошибкой.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	const op = "objectstorage.Delete"
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// URL публичная ссылка на объект: {public_base_url}/{bucket}/{key}.
func (s *S3Store) URL(key string) string {
	return s.publicBaseURL + "/" + s.bucket + "/" + key
}
