package uploads

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store persists an uploaded object and returns its public URL.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Local writes uploads below Dir and serves them from URLPrefix.
type Local struct {
	Dir       string // e.g. "public/uploads"
	URLPrefix string // e.g. "/public/uploads"
}

// Put writes data to Dir/key.
func (l Local) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	key = cleanKey(key)
	if key == "" {
		return "", fmt.Errorf("uploads: invalid key")
	}
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.Dir, key), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return strings.TrimRight(l.URLPrefix, "/") + "/" + key, nil
}

// S3Options configures an S3-compatible bucket.
type S3Options struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"-"`
	PublicURL       string `mapstructure:"public_url" yaml:"public_url,omitempty"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix,omitempty"`
}

// S3 stores uploads in an S3-compatible bucket.
type S3 struct {
	client    *s3.Client
	bucket    string
	prefix    string
	publicURL string
}

// NewS3 builds an S3 store from static credentials. A custom Endpoint
// switches to path-style addressing for S3-compatible services.
func NewS3(opts S3Options) (*S3, error) {
	if opts.Bucket == "" || opts.Region == "" || opts.AccessKeyID == "" || opts.SecretAccessKey == "" {
		return nil, fmt.Errorf("incomplete s3 config: bucket/region/access_key_id/secret_access_key are required")
	}
	cfg := aws.Config{
		Region:      opts.Region,
		Credentials: credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	public := strings.TrimRight(opts.PublicURL, "/")
	if public == "" {
		if opts.Endpoint != "" {
			public = strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
		} else {
			public = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
		}
	}
	return &S3{
		client:    client,
		bucket:    opts.Bucket,
		prefix:    strings.Trim(opts.Prefix, "/"),
		publicURL: public,
	}, nil
}

// Put uploads data under prefix/key.
func (s *S3) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key = cleanKey(key)
	if key == "" {
		return "", fmt.Errorf("uploads: invalid key")
	}
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return s.publicURL + "/" + key, nil
}

// cleanKey keeps only the final path element so keys cannot escape the
// upload directory.
func cleanKey(key string) string {
	key = path.Base(strings.ReplaceAll(key, "\\", "/"))
	if key == "." || key == "/" || key == ".." {
		return ""
	}
	return key
}
