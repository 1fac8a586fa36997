// Package s3 stores attachments in an S3-compatible bucket (AWS S3, MinIO).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"calibtrack/internal/blob/core"
)

// DefaultRegion is used when Config.Region is empty.
const DefaultRegion = "us-east-1"

// Store implements core.Store on a single bucket. Keys map to object keys
// directly, optionally below Prefix.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// Config holds the bucket coordinates. Credentials fall back to the default
// AWS chain when AccessKeyID is empty.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // custom endpoint, e.g. MinIO
	Prefix          string // key prefix inside the bucket
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// New creates a store from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverS3 }

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string { return s.bucket }

func (s *Store) objectKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidKey, key)
	}
	if s.prefix == "" {
		return key, nil
	}
	return s.prefix + "/" + key, nil
}

func (s *Store) blobKey(objectKey string) string {
	if s.prefix == "" {
		return objectKey
	}
	return strings.TrimPrefix(objectKey, s.prefix+"/")
}

// Put buffers r so the upload is seekable and emulates create-only semantics
// with a HEAD probe.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	obj, err := s.objectKey(key)
	if err != nil {
		return core.Info{}, err
	}
	if _, err := s.Head(ctx, key); err == nil {
		return core.Info{}, fmt.Errorf("put %s: %w", key, core.ErrExists)
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.Info{}, err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, fmt.Errorf("read %s: %w", key, err)
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(obj),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = core.CloneMetadata(opts.Metadata)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return core.Info{}, fmt.Errorf("put %s: %w", key, err)
	}
	return s.Head(ctx, key)
}

func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	obj, err := s.objectKey(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(obj)})
	if err != nil {
		return core.Info{}, nil, classify("get", key, err)
	}
	info := core.Info{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		Metadata:     out.Metadata,
		LastModified: aws.ToTime(out.LastModified),
	}
	return info, out.Body, nil
}

func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	obj, err := s.objectKey(key)
	if err != nil {
		return core.Info{}, err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(obj)})
	if err != nil {
		return core.Info{}, classify("head", key, err)
	}
	return core.Info{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		Metadata:     out.Metadata,
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// Delete probes with HEAD first since S3 deletes are idempotent and do not
// report whether the object existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	obj, err := s.objectKey(key)
	if err != nil {
		return false, err
	}
	if _, err := s.Head(ctx, key); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(obj)}); err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	full := prefix
	if s.prefix != "" {
		full = s.prefix + "/" + prefix
	}
	var infos []core.Info
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket), Prefix: aws.String(full)})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			infos = append(infos, core.Info{
				Key:          s.blobKey(aws.ToString(obj.Key)),
				Size:         aws.ToInt64(obj.Size),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func classify(op, key string, err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", op, key, core.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, key, err)
}
