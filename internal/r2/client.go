package r2

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net/url"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	appconfig "mcqgenerator/internal/config"
)

// Client holds the necessary configuration for interacting with Cloudflare R2.
type Client struct {
	s3Client   *s3.Client
	bucketName string
	publicURL  string // Base public URL for the bucket (e.g., https://pub-xxxxxxxx.r2.dev)
}

// NewClient returns (nil, nil) when R2 is not fully configured, so the caller can run
// without mirroring.
func NewClient(ctx context.Context, cfg appconfig.R2Config) (*Client, error) {
	if !cfg.Enabled() {
		log.Println("WARN: Cloudflare R2 environment variables not fully configured (CLOUDFLARE_ACCOUNT_ID, R2_BUCKET_NAME, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_PUBLIC_URL). Artifact mirroring is disabled.")
		return nil, nil
	}
	if _, err := url.Parse(cfg.PublicURL); err != nil {
		return nil, fmt.Errorf("invalid R2_PUBLIC_URL %q: %w", cfg.PublicURL, err)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		config.WithRegion("auto"), // R2 is region-agnostic
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config for R2: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	})

	log.Printf("INFO: R2 Client initialized for bucket '%s'", cfg.BucketName)
	return &Client{
		s3Client:   s3Client,
		bucketName: cfg.BucketName,
		publicURL:  cfg.PublicURL,
	}, nil
}

// UploadArtifact stores content under "results/<runID>/<filename>" and returns its public URL.
func (c *Client) UploadArtifact(ctx context.Context, runID uuid.UUID, filename string, content io.Reader) (string, error) {
	if c == nil || c.s3Client == nil {
		return "", fmt.Errorf("R2 client not initialized, skipping upload")
	}

	key := objectKey(runID, filename)
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(key),
		Body:        content,
		ACL:         types.ObjectCannedACLPublicRead,
		ContentType: aws.String(contentType(filename)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact to R2 (key: %s): %w", key, err)
	}

	publicFileURL, err := publicObjectURL(c.publicURL, key)
	if err != nil {
		return "", err
	}
	log.Printf("INFO: Uploaded artifact to R2: %s", publicFileURL)
	return publicFileURL, nil
}

func objectKey(runID uuid.UUID, filename string) string {
	return path.Join("results", runID.String(), filepath.Base(filename))
}

func publicObjectURL(base, key string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid R2 public base URL configured: %w", err)
	}
	u.Path = path.Join("/", u.Path, key)
	return u.String(), nil
}

func contentType(filename string) string {
	switch filepath.Ext(filename) {
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".pdf":
		return "application/pdf"
	}
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
