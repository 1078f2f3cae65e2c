package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the part of *s3.Client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store loads pages from a bucket: <prefix><name>.html with an optional
// <prefix><name>.yaml, .yml or .json spec.
//
//	client := page.NewS3Client(page.S3Options{Region: "eu-west-1"})
//	store := page.NewS3Store(client, "my-site", "pages/")
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store creates a store reading from bucket under prefix.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// Load implements Store.
func (s *S3Store) Load(ctx context.Context, name string) (*Page, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	html, err := s.get(ctx, s.prefix+name+".html")
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("page %q: %w", name, err)
	}
	p := &Page{Name: name, HTML: html}

	for _, ext := range specExts {
		key := s.prefix + name + ext
		data, err := s.get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("page %q: %w", name, err)
		}
		if p.Spec, err = parseSpec(name, key, data); err != nil {
			return nil, err
		}
		break
	}
	return p, nil
}

func (s *S3Store) get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// S3Options configures NewS3Client.
type S3Options struct {
	Region string

	// Endpoint overrides the service endpoint, for S3-compatible stores.
	Endpoint string

	// PathStyle addresses buckets as <endpoint>/<bucket>.
	PathStyle bool
}

// NewS3Client creates an S3 client. Credentials come from AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN; without them requests are
// anonymous.
func NewS3Client(o S3Options) *s3.Client {
	return s3.New(s3.Options{
		Region:       o.Region,
		BaseEndpoint: optionalString(o.Endpoint),
		UsePathStyle: o.PathStyle,
		Credentials:  envCredentials(),
	})
}

func envCredentials() aws.CredentialsProvider {
	id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.AnonymousCredentials{}
	}
	token := os.Getenv("AWS_SESSION_TOKEN")
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    token,
			Source:          "environment",
		}, nil
	})
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
