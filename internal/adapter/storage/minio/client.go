// internal/adapter/storage/minio/client.go
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "github.com/GoArmGo/PhotoApp/internal/config"
	"github.com/GoArmGo/PhotoApp/internal/core/ports"
)

const publicReadPolicy = `{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Principal": {"AWS": ["*"]},
    "Action": ["s3:GetObject"],
    "Resource": ["arn:aws:s3:::%s/*"]
  }]
}`

// Client представляет собой клиент для взаимодействия с MinIO (S3-совместимым хранилищем).
type Client struct {
	s3Client   *s3.Client
	uploader   *manager.Uploader
	bucketName string
	publicURL  string
	log        *slog.Logger
}

var _ ports.ObjectStorage = (*Client)(nil)

// NewMinioClient создает клиент и один раз подготавливает бакет:
// HeadBucket, создание при MINIO_CREATE_BUCKET, ожидание и публичная политика чтения.
func NewMinioClient(ctx context.Context, cfg *appconfig.Config, log *slog.Logger) (*Client, error) {
	if cfg.MinioAccessKeyID == "" || cfg.MinioSecretAccessKey == "" || cfg.MinioBucketName == "" || cfg.MinioEndpoint == "" {
		return nil, fmt.Errorf("MinIO credentials (MINIO_ACCESS_KEY_ID, MINIO_SECRET_ACCESS_KEY, MINIO_BUCKET_NAME, MINIO_ENDPOINT) must be set in environment variables")
	}

	endpoint := endpointURL(cfg.MinioEndpoint, cfg.MinioUseSSL)

	cfgAws, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.MinioRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.MinioAccessKeyID, cfg.MinioSecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for MinIO: %w", err)
	}

	s3Client := s3.NewFromConfig(cfgAws, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = cfg.MinioForcePathStyle
		// MinIO и большинство S3-совместимых хранилищ не принимают новые CRC-заголовки
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	publicURL := strings.TrimRight(cfg.MinioPublicURL, "/")
	if publicURL == "" {
		publicURL = endpoint
	}

	c := &Client{
		s3Client:   s3Client,
		uploader:   manager.NewUploader(s3Client),
		bucketName: cfg.MinioBucketName,
		publicURL:  publicURL,
		log:        log,
	}

	if err := c.bootstrap(ctx, cfg.MinioRegion, cfg.MinioCreateBucket); err != nil {
		return nil, err
	}
	return c, nil
}

func endpointURL(endpoint string, useSSL bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return strings.TrimRight(endpoint, "/")
	}
	if useSSL {
		return fmt.Sprintf("https://%s", endpoint)
	}
	return fmt.Sprintf("http://%s", endpoint)
}

func (c *Client) bootstrap(ctx context.Context, region string, createBucket bool) error {
	headCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.s3Client.HeadBucket(headCtx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucketName),
	})
	if err == nil {
		c.log.Info("bucket already exists", "bucket", c.bucketName)
	} else {
		if !createBucket {
			return fmt.Errorf("bucket '%s' is not reachable and MINIO_CREATE_BUCKET=false: %w", c.bucketName, err)
		}

		c.log.Info("bucket not found, creating", "bucket", c.bucketName)

		input := &s3.CreateBucketInput{Bucket: aws.String(c.bucketName)}
		// us-east-1 не принимает явный LocationConstraint
		if region != "" && region != "us-east-1" {
			input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(region),
			}
		}
		if _, createErr := c.s3Client.CreateBucket(ctx, input); createErr != nil {
			return fmt.Errorf("failed to create bucket '%s': %w", c.bucketName, createErr)
		}

		// Ждем пока бакет станет доступен
		waiter := s3.NewBucketExistsWaiter(c.s3Client)
		if err := waiter.Wait(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(c.bucketName),
		}, 30*time.Second); err != nil {
			return fmt.Errorf("failed waiting for bucket '%s' to be created: %w", c.bucketName, err)
		}

		c.log.Info("bucket created", "bucket", c.bucketName)
	}

	// политика применяется при каждом старте, в том числе для уже существующего бакета
	_, err = c.s3Client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(c.bucketName),
		Policy: aws.String(fmt.Sprintf(publicReadPolicy, c.bucketName)),
	})
	if err != nil {
		// без публичной политики URL-режим работать не будет, но байты отдаются
		c.log.Warn("failed to apply public-read bucket policy", "bucket", c.bucketName, "error", err)
	}
	return nil
}

// Put загружает объект в бакет.
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	start := time.Now()
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", key, c.bucketName, err)
	}

	c.log.Debug("object uploaded", "key", key, "size", len(data), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// GetBytes получает содержимое объекта из MinIO.
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, error) {
	output, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, ports.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s from bucket %s: %w", key, c.bucketName, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// URL возвращает публичный адрес объекта: {public base}/{bucket}/{key}
func (c *Client) URL(_ context.Context, key string) (string, error) {
	return fmt.Sprintf("%s/%s/%s", c.publicURL, c.bucketName, key), nil
}

// Exists проверяет наличие объекта через HeadObject
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %s: %w", key, err)
	}
	return true, nil
}

// Delete удаляет объект из MinIO.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s from bucket %s: %w", key, c.bucketName, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
