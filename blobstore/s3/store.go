package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hupe1980/volfs/blobstore"
)

// Client is the subset of *s3.Client the store uses.
type Client interface {
	manager.UploadAPIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ Client = (*s3.Client)(nil)

// Store implements blobstore.BlobStore for S3.
type Store struct {
	client   Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	upload   UploadConfig
}

var _ blobstore.BlobStore = (*Store)(nil)

// NewStore creates a new S3 blob store. rootPrefix is prepended to all
// keys (e.g. "volumes/prod").
func NewStore(client Client, bucket, rootPrefix string, upload UploadConfig) *Store {
	upload = upload.normalized()
	prefix := strings.Trim(rootPrefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{
		client:   client,
		uploader: newUploader(client, upload),
		bucket:   bucket,
		prefix:   prefix,
		upload:   upload,
	}
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string { return s.bucket }

// Prefix returns the key prefix, with a trailing slash when non-empty.
func (s *Store) Prefix() string { return s.prefix }

func (s *Store) key(name string) string {
	return s.prefix + name
}

// Open heads the object and returns a ranged-read handle.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	return openBlob(ctx, s.client, s.bucket, s.key(name))
}

// Put uploads data. S3 replaces objects atomically, so readers never see a
// partial blob. Blobs of at least one part size use multipart upload.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	var err error
	if int64(len(data)) < s.upload.PartSize {
		if s.upload.EnableChecksum {
			err = putWithChecksum(ctx, s.client, s.bucket, key, data)
		} else {
			_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket:        aws.String(s.bucket),
				Key:           aws.String(key),
				Body:          bytes.NewReader(data),
				ContentLength: aws.Int64(int64(len(data))),
			})
		}
	} else {
		err = uploadMultipart(ctx, s.uploader, s.bucket, key, data, s.upload.EnableChecksum)
	}
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", key, err)
	}
	return nil
}

// Delete removes the object. S3 reports success for missing keys.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3: delete %s: %w", s.key(name), err)
	}
	return nil
}

// List returns the names under prefix, sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	return listObjects(ctx, s.client, s.bucket, s.key(prefix), s.prefix)
}

// Options configures New and NewWithCommitTable.
type Options struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
	Prefix       string
	Upload       UploadConfig
}

// Option mutates Options.
type Option func(*Options)

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(o *Options) { o.Region = region }
}

// WithEndpoint points the client at a custom endpoint, such as LocalStack.
func WithEndpoint(endpoint string) Option {
	return func(o *Options) { o.Endpoint = endpoint }
}

// WithPathStyle enables path-style addressing.
func WithPathStyle() Option {
	return func(o *Options) { o.UsePathStyle = true }
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(o *Options) { o.Prefix = prefix }
}

// WithUploadConfig overrides the upload settings.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(o *Options) { o.Upload = cfg }
}

func loadOptions(ctx context.Context, optFns []Option) (Options, aws.Config, error) {
	opts := Options{Upload: DefaultUploadConfig()}
	for _, fn := range optFns {
		fn(&opts)
	}

	var loadFns []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadFns = append(loadFns, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadFns...)
	if err != nil {
		return opts, aws.Config{}, fmt.Errorf("s3: load AWS config: %w", err)
	}
	return opts, cfg, nil
}

func newS3Client(cfg aws.Config, opts Options) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
}

// New builds a Store from the default AWS credential chain.
func New(ctx context.Context, bucket string, optFns ...Option) (*Store, error) {
	opts, cfg, err := loadOptions(ctx, optFns)
	if err != nil {
		return nil, err
	}
	return NewStore(newS3Client(cfg, opts), bucket, opts.Prefix, opts.Upload), nil
}

// NewWithCommitTable builds a DDBCommitStore whose data lives in bucket and
// whose CURRENT pointer lives in the DynamoDB table.
func NewWithCommitTable(ctx context.Context, bucket, table string, optFns ...Option) (*DDBCommitStore, error) {
	opts, cfg, err := loadOptions(ctx, optFns)
	if err != nil {
		return nil, err
	}
	store := NewStore(newS3Client(cfg, opts), bucket, opts.Prefix, opts.Upload)
	baseURI := "s3://" + bucket + "/" + store.Prefix()
	return NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg), table, baseURI), nil
}
