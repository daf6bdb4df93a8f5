package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	defaultPrefix = "shared-images"
	// Share names are never reused, so objects can be cached forever.
	shareCacheControl = "public, max-age=31536000, immutable"
)

var ErrEmptyObject = errors.New("no data to upload")

type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	UsePathStyle  bool
	Prefix        string
}

func (c Config) validate() error {
	var missing []string
	if c.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if c.Region == "" {
		missing = append(missing, "region")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		missing = append(missing, "credentials")
	}
	if c.PublicBaseURL == "" {
		missing = append(missing, "public base url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("s3 config incomplete: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Uploader writes public-read share images to an S3-compatible bucket.
type Uploader struct {
	bucket  string
	prefix  string
	baseURL string
	client  *s3.Client
}

func NewUploader(cfg Config) (*Uploader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}

	options := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &Uploader{
		bucket:  cfg.Bucket,
		prefix:  prefix,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		client:  s3.New(options),
	}, nil
}

// Put stores data as prefix/name and returns the public URL of the object.
func (u *Uploader) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyObject
	}
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	key := u.prefix + "/" + name
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(shareCacheControl),
		ACL:          types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return u.baseURL + "/" + key, nil
}

// ShareName builds share_<unix millis>_<random><ext> for shared images.
func ShareName(now time.Time, contentType string) string {
	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	return fmt.Sprintf("share_%d_%s%s", now.UnixMilli(), hex.EncodeToString(suffix[:]), extensionFor(contentType))
}

var extensions = map[string]string{
	"":           ".jpg",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

func extensionFor(contentType string) string {
	if ext, ok := extensions[strings.ToLower(contentType)]; ok {
		return ext
	}
	return ".bin"
}
