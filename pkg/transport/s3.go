package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/offlinekit/internal/telemetry"
	"github.com/marmos91/offlinekit/pkg/region"
)

// S3Config configures the S3 mirror fetcher.
type S3Config struct {
	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool

	// AccessKeyID and SecretAccessKey override the default credential chain.
	AccessKeyID     string
	SecretAccessKey string
}

// S3Fetcher serves s3://bucket/key URLs from an S3 mirror of map resources.
type S3Fetcher struct {
	client *s3.Client
}

// NewS3 creates an S3 fetcher with an existing client.
func NewS3(client *s3.Client) *S3Fetcher {
	return &S3Fetcher{client: client}
}

// NewS3FromConfig creates an S3 fetcher by building a client from config.
func NewS3FromConfig(ctx context.Context, cfg S3Config) (*S3Fetcher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewS3(s3.NewFromConfig(awsCfg, s3Opts...)), nil
}

// ParseS3URL splits s3://bucket/key into bucket and key.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 url: %q", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3 url %q has no object key", raw)
	}
	return u.Host, key, nil
}

// Fetch reads the object named by the request URL.
func (f *S3Fetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	bucket, key, err := ParseS3URL(req.Key.URL)
	if err != nil {
		return nil, &FetchError{Reason: region.ReasonOther, URL: req.Key.URL, Err: err}
	}
	telemetry.SetAttributes(ctx, telemetry.Bucket(bucket), telemetry.StorageKey(key))

	in := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if req.ETag != "" {
		in.IfNoneMatch = aws.String(req.ETag)
	} else if !req.Modified.IsZero() {
		in.IfModifiedSince = aws.Time(req.Modified)
	}

	out, err := f.client.GetObject(ctx, in)
	if err != nil {
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotModified {
			return &Response{NotModified: true, ETag: req.ETag, Modified: req.Modified}, nil
		}
		return nil, classifyS3Error(req.Key.URL, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxBodySize+1))
	if err != nil {
		return nil, classifyTransportError(req.Key.URL, err)
	}
	if len(data) > maxBodySize {
		return nil, &FetchError{
			Reason: region.ReasonOther,
			URL:    req.Key.URL,
			Err:    fmt.Errorf("payload exceeds %d bytes", maxBodySize),
		}
	}
	data, err = decodeBody(data)
	if err != nil {
		return nil, &FetchError{Reason: region.ReasonOther, URL: req.Key.URL, Err: err}
	}

	resp := &Response{
		Data:    data,
		ETag:    aws.ToString(out.ETag),
		Expires: parseS3Expires(out.ExpiresString),
	}
	if out.LastModified != nil {
		resp.Modified = *out.LastModified
	}
	if cc := aws.ToString(out.CacheControl); cc != "" {
		h := http.Header{}
		h.Set("Cache-Control", cc)
		if exp := expiresFrom(h, time.Now()); !exp.IsZero() {
			resp.Expires = exp
		}
	}
	return resp, nil
}

func parseS3Expires(s *string) time.Time {
	if s == nil {
		return time.Time{}
	}
	t, err := http.ParseTime(*s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func classifyS3Error(url string, err error) *FetchError {
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
		return &FetchError{Reason: region.ReasonNotFound, StatusCode: http.StatusNotFound, URL: url, Err: err}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.HTTPStatusCode()
		return &FetchError{Reason: ReasonForStatus(code), StatusCode: code, URL: url, Err: err}
	}
	return classifyTransportError(url, err)
}

var _ Fetcher = (*S3Fetcher)(nil)
