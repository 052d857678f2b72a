package s3client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const VideosBucket = "avatarcast-videos"

type Config struct {
	Endpoint        string        `yaml:"endpoint"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	UseSSL          bool          `yaml:"use_ssl"`
	Region          string        `yaml:"region"`
	Bucket          string        `yaml:"bucket"`
	ShareTTL        time.Duration `yaml:"share_ttl"`
}

// Enabled reports whether publishing is configured at all.
func (c *Config) Enabled() bool {
	return c != nil && c.Endpoint != ""
}

type Client struct {
	cfg            *Config
	minio          *minio.Client
	ensuredBuckets sync.Map
}

func New(ctx context.Context, cfg *Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	c := &Client{
		cfg:   cfg,
		minio: mc,
	}

	return c, nil
}

func (c *Client) bucket() string {
	if c.cfg.Bucket == "" {
		return VideosBucket
	}
	return c.cfg.Bucket
}

func (c *Client) shareTTL() time.Duration {
	if c.cfg.ShareTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.cfg.ShareTTL
}

func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	if _, ok := c.ensuredBuckets.Load(bucket); ok {
		return nil
	}

	exists, err := c.minio.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := c.minio.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
	}
	c.ensuredBuckets.Store(bucket, struct{}{})
	return nil
}

func (c *Client) PutFile(ctx context.Context, bucket, objectName, path, contentType string) error {
	if err := c.EnsureBucket(ctx, bucket); err != nil {
		return err
	}
	_, err := c.minio.FPutObject(ctx, bucket, objectName, path, minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (c *Client) PresignedGet(ctx context.Context, bucket, objectName string, ttl time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", objectName))

	u, err := c.minio.PresignedGetObject(ctx, bucket, objectName, ttl, params)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// PublishVideo uploads a final video and returns a time-limited share link.
func (c *Client) PublishVideo(ctx context.Context, objectName, path string) (string, error) {
	if err := c.PutFile(ctx, c.bucket(), objectName, path, "video/mp4"); err != nil {
		return "", fmt.Errorf("upload %s: %w", objectName, err)
	}

	link, err := c.PresignedGet(ctx, c.bucket(), objectName, c.shareTTL())
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectName, err)
	}

	return link, nil
}
