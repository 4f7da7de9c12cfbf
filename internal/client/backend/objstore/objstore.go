// Package objstore implements backend.Storage on an S3-compatible bucket.
// Uploads go through a short-lived presigned PUT URL.
package objstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/templesanathan/internal/netx"
)

// MaxPresignTTL is the longest validity SigV4 accepts for a presigned URL.
const MaxPresignTTL = 7 * 24 * time.Hour

const uploadTTL = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

type Store struct {
	cfg  Config
	http *netx.Client
}

func New(cfg Config, hc *netx.Client) *Store {
	return &Store{cfg: cfg, http: hc}
}

func (s *Store) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.cfg.AccessKey, s.cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}
	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.cfg.Endpoint)
		o.UsePathStyle = true
	})
	return newS3PresignClient(client), nil
}

func (s *Store) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	pc, err := s.presignClient(ctx)
	if err != nil {
		return err
	}
	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(uploadTTL))
	if err != nil {
		return fmt.Errorf("presign put %s: %w", key, err)
	}
	return s.http.UploadPresigned(ctx, req.URL, body, contentType)
}

func (s *Store) PublicURL(key string) (string, bool) {
	if s.cfg.PublicBaseURL == "" {
		return "", false
	}
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + s.cfg.Bucket + "/" + key, true
}

// SignedURL presigns a GET. ttl is clamped to MaxPresignTTL.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl > MaxPresignTTL {
		ttl = MaxPresignTTL
	}
	pc, err := s.presignClient(ctx)
	if err != nil {
		return "", err
	}
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return req.URL, nil
}
