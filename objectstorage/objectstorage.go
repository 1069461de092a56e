// Package objectstorage archives the generated invoices in an S3 compatible
// bucket.
package objectstorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrorObjectNotFound is returned when the requested object is not found in storage.
	ErrorObjectNotFound = fmt.Errorf("object not found")
	// ErrorInvalidObjectID is returned when the provided object key is invalid or empty.
	ErrorInvalidObjectID = fmt.Errorf("invalid object key")
	// ErrorEmptyObject is returned when there is nothing to store.
	ErrorEmptyObject = fmt.Errorf("empty object")
)

const (
	// DefaultRegion is used when the configuration does not set one.
	DefaultRegion = "eu-west-3"
	// ContentTypePDF is the content type of the archived invoices.
	ContentTypePDF = "application/pdf"

	cacheSize = 64
)

// Config holds the configuration for the archive. Endpoint is only set for
// S3 compatible services (MinIO, LocalStack). When AccessKey and SecretKey
// are empty the default AWS credential chain is used.
type Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// Object is an archived object.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// Archive stores and retrieves objects of a single bucket. Recently read
// objects are kept in an LRU cache.
type Archive struct {
	bucket   string
	client   *s3.Client
	uploader *manager.Uploader
	cache    *lru.Cache[string, Object]
}

// New loads the AWS configuration and returns an Archive bound to the
// configured bucket.
func New(ctx context.Context, conf *Config) (*Archive, error) {
	if conf == nil || conf.Bucket == "" {
		return nil, fmt.Errorf("invalid object storage configuration")
	}
	region := conf.Region
	if region == "" {
		region = DefaultRegion
	}
	cfgOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(region),
	}
	if conf.AccessKey != "" || conf.SecretKey != "" {
		cfgOpts = append(cfgOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AccessKey, conf.SecretKey, ""),
		))
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = conf.UsePathStyle
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
		}
	})
	cache, err := lru.New[string, Object](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("cannot create cache: %w", err)
	}
	return &Archive{
		bucket:   conf.Bucket,
		client:   client,
		uploader: manager.NewUploader(client),
		cache:    cache,
	}, nil
}

// InvoiceKey returns the key under which the invoice with the given number
// is archived, e.g. "invoices/2025/03/INV-20250314-101500.pdf".
func InvoiceKey(number string, date time.Time) string {
	return fmt.Sprintf("invoices/%s/%s.pdf", date.Format("2006/01"), number)
}

// Put uploads data under key and returns its location.
func (a *Archive) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrorInvalidObjectID
	}
	if len(data) == 0 {
		return "", ErrorEmptyObject
	}
	out, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("cannot upload %s: %w", key, err)
	}
	a.cache.Add(key, Object{Key: key, ContentType: contentType, Data: data})
	return out.Location, nil
}

// Get retrieves an object by its key. It first checks the cache, and if not
// found, downloads it from the bucket.
func (a *Archive) Get(ctx context.Context, key string) (*Object, error) {
	if key == "" {
		return nil, ErrorInvalidObjectID
	}
	if object, ok := a.cache.Get(key); ok {
		return &object, nil
	}
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrorObjectNotFound
		}
		return nil, fmt.Errorf("error retrieving object: %w", err)
	}
	defer func() { _ = out.Body.Close() }()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading object: %w", err)
	}
	object := Object{Key: key, Data: data, ContentType: aws.ToString(out.ContentType)}
	a.cache.Add(key, object)
	return &object, nil
}
