package files

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Fetcher resolves s3://bucket/key references for deployments that store
// club media in object storage instead of behind the API.
type S3Fetcher struct {
	client  *s3.Client
	maxSize int64
}

// NewS3Fetcher creates a fetcher around an existing S3 client.
func NewS3Fetcher(client *s3.Client) *S3Fetcher {
	return &S3Fetcher{
		client:  client,
		maxSize: 10 << 20,
	}
}

// Fetch downloads an s3://bucket/key object and inlines it.
func (f *S3Fetcher) Fetch(ctx context.Context, url string) (*Inline, error) {
	bucket, key, err := splitS3URL(url)
	if err != nil {
		return nil, err
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, f.maxSize))
	if err != nil {
		return nil, fmt.Errorf("read s3 object: %w", err)
	}

	contentType := "application/octet-stream"
	if out.ContentType != nil {
		contentType = *out.ContentType
	}

	return &Inline{
		ContentType: contentType,
		Base64:      base64.StdEncoding.EncodeToString(body),
	}, nil
}

// splitS3URL parses s3://bucket/key references.
func splitS3URL(url string) (bucket, key string, err error) {
	const scheme = "s3://"
	if !strings.HasPrefix(url, scheme) {
		return "", "", fmt.Errorf("not an s3 url: %s", url)
	}
	rest := strings.TrimPrefix(url, scheme)
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 url: %s", url)
	}
	return bucket, key, nil
}

// MultiFetcher routes s3:// references to an S3 fetcher and everything else
// to an HTTP fetcher.
type MultiFetcher struct {
	HTTP Fetcher
	S3   Fetcher
}

// Fetch dispatches on the URL scheme.
func (m *MultiFetcher) Fetch(ctx context.Context, url string) (*Inline, error) {
	if strings.HasPrefix(url, "s3://") && m.S3 != nil {
		return m.S3.Fetch(ctx, url)
	}
	if m.HTTP == nil {
		return nil, fmt.Errorf("no fetcher for url: %s", url)
	}
	return m.HTTP.Fetch(ctx, url)
}
