package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// s3API is the part of *s3.Client the adapter calls.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Adapter stores artifacts as objects in one bucket.
type S3Adapter struct {
	client s3API
	bucket string
	now    func() time.Time
}

// NewS3Adapter builds a client with static credentials. A non-empty
// S3BaseEndpoint points it at an S3-compatible service such as MinIO.
func NewS3Adapter(ctx context.Context, opts Options) (*S3Adapter, error) {
	if opts.S3Bucket == "" {
		return nil, errors.New("s3 storage requires a bucket")
	}

	var cfgOpts []func(*config.LoadOptions) error
	if opts.S3Region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(opts.S3Region))
	}
	if opts.S3AccessKey != "" {
		cfgOpts = append(cfgOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.S3AccessKey,
			opts.S3SecretKey,
			"",
		)))
	}

	cfg, err := loadDefaultAWSConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3AdapterWithClient(client, opts.S3Bucket), nil
}

func newS3AdapterWithClient(client s3API, bucket string) *S3Adapter {
	return &S3Adapter{client: client, bucket: bucket, now: time.Now}
}

func (a *S3Adapter) Kind() string { return TypeS3 }

func (a *S3Adapter) Save(ctx context.Context, path string, data any, md Metadata) error {
	content, full, err := encodeEnvelope(TypeS3, data, md, a.now())
	if err != nil {
		return err
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("application/json"),
		Metadata:    escapeMetadata(full),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", path, err)
	}
	return nil
}

func (a *S3Adapter) Load(ctx context.Context, path string, out any) (Metadata, error) {
	res, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, notFound(path)
		}
		return nil, fmt.Errorf("s3 get %s: %w", path, err)
	}
	defer res.Body.Close()

	content, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read %s: %w", path, err)
	}
	md, err := decodeEnvelope(content, out)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return md, nil
}

func (a *S3Adapter) List(ctx context.Context, pattern string, opts ListOptions) ([]Object, error) {
	p := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(staticPrefix(pattern)),
	})

	var out []Object
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", pattern, err)
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			if !Match(pattern, key) {
				continue
			}
			obj := Object{Path: key, Size: aws.ToInt64(o.Size), ModTime: aws.ToTime(o.LastModified)}
			if opts.IncludeMetadata {
				head, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
					Bucket: aws.String(a.bucket),
					Key:    o.Key,
				})
				if err != nil {
					return nil, fmt.Errorf("s3 head %s: %w", key, err)
				}
				if len(head.Metadata) > 0 {
					obj.Metadata = unescapeMetadata(head.Metadata)
				}
			}
			out = append(out, obj)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (a *S3Adapter) Exists(ctx context.Context, path string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(path),
	})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("s3 head %s: %w", path, err)
}

func (a *S3Adapter) Delete(ctx context.Context, path string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(path),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("s3 delete %s: %w", path, err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return false
}

// User-metadata values travel as HTTP headers and must stay ASCII.
func escapeMetadata(md Metadata) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = url.QueryEscape(v)
	}
	return out
}

func unescapeMetadata(in map[string]string) Metadata {
	out := make(Metadata, len(in))
	for k, v := range in {
		if u, err := url.QueryUnescape(v); err == nil {
			v = u
		}
		out[k] = v
	}
	return out
}
