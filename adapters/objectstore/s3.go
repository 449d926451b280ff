package objectstore

import (
	"context"
	"io"
	"strings"

	"qcgallery/internal/errors"
	"qcgallery/ports"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Store maps logical volume paths onto keys in one bucket. The leading
// slash is dropped, so /Volumes/a/b.jpg is key Volumes/a/b.jpg.
type S3Store struct {
	client s3iface.S3API
	bucket string
}

var _ ports.ObjectStore = (*S3Store)(nil)

// NewS3Store creates an S3 object store using the default credential chain
func NewS3Store(region, bucket string) (*S3Store, error) {
	if bucket == "" {
		return nil, errors.ConfigInvalid("S3 bucket name is required")
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create AWS session")
	}
	return NewS3StoreWithClient(s3.New(sess), bucket), nil
}

// NewS3StoreWithClient wraps an existing client
func NewS3StoreWithClient(client s3iface.S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func (s *S3Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(strings.TrimPrefix(path, "/")),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, errors.NotFound("object " + path)
		}
		return nil, errors.Unavailable("s3 get object", err)
	}
	return out.Body, nil
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}
