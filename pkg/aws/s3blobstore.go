package aws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/storacha/cloud-mirror/pkg/blobstore"
)

// S3BlobStore implements blobstore.Store on S3, streaming uploads through
// the manager.Uploader so arbitrarily large origin bodies are chunked into
// bounded-size parts rather than buffered whole. Grounded on the single-shot
// PutObject adapter pattern used for content-addressed blobs, generalized
// from a multihash-digest key to the spec's opaque string key and from a
// one-shot PutObject to a streaming multipart upload.
type S3BlobStore struct {
	bucket     string
	publicBase string
	s3Client   *s3.Client
	uploader   *manager.Uploader
}

var _ blobstore.Store = (*S3BlobStore)(nil)

// NewS3BlobStore constructs an S3BlobStore. publicBase is the URL prefix
// object keys are appended to when constructing a public read-through URL,
// e.g. "https://mirror-us-west-1.s3.us-west-1.amazonaws.com/".
func NewS3BlobStore(cfg aws.Config, bucket, publicBase string, partSize int64, queueSize int, opts ...func(*s3.Options)) *S3BlobStore {
	client := s3.NewFromConfig(cfg, opts...)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if partSize > 0 {
			u.PartSize = partSize
		}
		if queueSize > 0 {
			u.Concurrency = queueSize
		}
	})
	return &S3BlobStore{bucket: bucket, publicBase: publicBase, s3Client: client, uploader: uploader}
}

// Put implements blobstore.Store.
func (s *S3BlobStore) Put(ctx context.Context, key string, size int64, body io.Reader, headers blobstore.Headers, metadata map[string]string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(headers.ContentType),
		Metadata:    metadata,
	}
	if headers.ContentDisposition != "" {
		input.ContentDisposition = aws.String(headers.ContentDisposition)
	}
	if headers.ContentEncoding != "" {
		input.ContentEncoding = aws.String(headers.ContentEncoding)
	}
	if headers.ContentMD5 != "" {
		input.ContentMD5 = aws.String(headers.ContentMD5)
	}
	_, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

// Delete implements blobstore.Store.
func (s *S3BlobStore) Delete(ctx context.Context, key string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Head implements blobstore.Store.
func (s *S3BlobStore) Head(ctx context.Context, key string) (blobstore.Head, error) {
	out, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return blobstore.Head{}, blobstore.ErrNotFound
		}
		return blobstore.Head{}, fmt.Errorf("heading %s: %w", key, err)
	}
	head := blobstore.Head{
		Headers: blobstore.Headers{
			ContentLength: out.ContentLength,
		},
		Metadata: out.Metadata,
	}
	if out.ContentType != nil {
		head.Headers.ContentType = *out.ContentType
	}
	if exp, ok := ParseS3Expiration(out.Expiration); ok {
		head.Expiration = &exp
	}
	return head, nil
}

// PublicURL implements blobstore.Store. Deterministic, no network call.
func (s *S3BlobStore) PublicURL(key string) string {
	return s.publicBase + key
}

// EnsureContainer implements blobstore.Store: creates the bucket if absent
// and applies a lifecycle rule expiring objects after lifespanDays and
// aborting incomplete multipart uploads after one day.
func (s *S3BlobStore) EnsureContainer(ctx context.Context, lifespanDays int) error {
	_, err := s.s3Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		var alreadyExists *types.BucketAlreadyExists
		if !errors.As(err, &alreadyOwned) && !errors.As(err, &alreadyExists) {
			return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
		}
	}

	_, err = s.s3Client.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
		Bucket: aws.String(s.bucket),
		LifecycleConfiguration: &types.BucketLifecycleConfiguration{
			Rules: []types.LifecycleRule{
				{
					ID:     aws.String("cloud-mirror-expiry"),
					Status: types.ExpirationStatusEnabled,
					Filter: &types.LifecycleRuleFilterMemberPrefix{Value: ""},
					Expiration: &types.LifecycleExpiration{
						Days: aws.Int32(int32(lifespanDays)),
					},
					AbortIncompleteMultipartUpload: &types.AbortIncompleteMultipartUpload{
						DaysAfterInitiation: aws.Int32(1),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("setting lifecycle policy on %s: %w", s.bucket, err)
	}
	return nil
}

// ParseS3Expiration parses the `expiry-date="..." rule-id="..."` form of
// S3's x-amz-expiration response header (surfaced by the SDK as
// HeadObjectOutput.Expiration) into a time.Time.
func ParseS3Expiration(expiration *string) (time.Time, bool) {
	if expiration == nil || *expiration == "" {
		return time.Time{}, false
	}
	const prefix = `expiry-date="`
	s := *expiration
	idx := strings.Index(s, prefix)
	if idx < 0 {
		return time.Time{}, false
	}
	rest := s[idx+len(prefix):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC1123, rest[:end])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
