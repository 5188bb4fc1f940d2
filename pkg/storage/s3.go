package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wha7/wha7/internal/utils"
)

// Options configures the S3 image store.
type Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	// Prefix is prepended to every object key. Defaults to "uploads".
	Prefix string
	// PublicBaseURL overrides the default virtual-hosted bucket URL.
	PublicBaseURL string
	// PresignTTL > 0 returns presigned GET URLs instead of public URLs.
	PresignTTL time.Duration
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store uploads inbound images and returns a URL the models can fetch.
type S3Store struct {
	client    putObjectAPI
	presigner presignAPI
	opts      Options
	log       *zap.Logger
	newID     func() string
}

// NewS3Store creates an S3-backed store. Static credentials are used when both keys are set,
// otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, opts Options, log *zap.Logger) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket is required")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return newStore(client, s3.NewPresignClient(client), opts, log), nil
}

func newStore(client putObjectAPI, presigner presignAPI, opts Options, log *zap.Logger) *S3Store {
	if opts.Prefix == "" {
		opts.Prefix = "uploads"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &S3Store{
		client:    client,
		presigner: presigner,
		opts:      opts,
		log:       log,
		newID:     uuid.NewString,
	}
}

// Upload stores one image under <prefix>/<sender>/<uuid><ext>, tagged with the sender,
// and returns a URL for it.
func (s *S3Store) Upload(ctx context.Context, sender string, data []byte, contentType string) (string, error) {
	key := s.objectKey(sender, contentType)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		Tagging:       aws.String(url.Values{"sender": {sender}}.Encode()),
	})
	if err != nil {
		s.log.Error("Failed to upload image to S3",
			zap.String("key", key),
			zap.Error(err))
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}

	s.log.Info("Image uploaded to S3",
		zap.String("key", key),
		zap.Int("size", len(data)))

	if s.opts.PresignTTL > 0 {
		req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.opts.Bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(s.opts.PresignTTL))
		if err != nil {
			return "", fmt.Errorf("storage: presign %s: %w", key, err)
		}
		return req.URL, nil
	}
	return PublicURL(s.opts.Bucket, s.opts.PublicBaseURL, key), nil
}

func (s *S3Store) objectKey(sender, contentType string) string {
	owner := utils.SanitizeFilename(sender)
	if owner == "" {
		owner = "anonymous"
	}
	return s.opts.Prefix + "/" + owner + "/" + s.newID() + utils.ExtensionFor(contentType)
}

// PublicURL returns the URL of a publicly readable object. Without a base URL the
// virtual-hosted S3 form https://<bucket>.s3.amazonaws.com/<key> is used.
func PublicURL(bucket, baseURL, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	escaped := strings.Join(segments, "/")

	if baseURL != "" {
		return strings.TrimRight(baseURL, "/") + "/" + escaped
	}
	return "https://" + bucket + ".s3.amazonaws.com/" + escaped
}
