package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/okian/rollcall/internal/domain/model"
)

// S3Config locates the bucket holding reference images.
type S3Config struct {
	Bucket string
	Region string
	Prefix string
	// Endpoint overrides the S3 endpoint (MinIO and friends); path-style
	// addressing is used when set.
	Endpoint string
	// AccessKey and SecretKey are optional; the default credential chain
	// is used when empty.
	AccessKey string
	SecretKey string
}

// S3 reads images from an S3 bucket.
type S3 struct {
	svc    *s3.S3
	bucket string
	prefix string
}

// NewS3 creates a session and client for cfg.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &S3{svc: s3.New(sess), bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Fetch downloads the first candidate object that exists.
func (s *S3) Fetch(ctx context.Context, identity model.Identity) ([]byte, error) {
	for _, ref := range candidates(identity) {
		key := path.Join(s.prefix, ref)
		out, err := s.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if isNoSuchKey(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
		}
		data, err := io.ReadAll(io.LimitReader(out.Body, maxImageBytes+1))
		_ = out.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
		}
		if len(data) > maxImageBytes {
			return nil, fmt.Errorf("%w: object s3://%s/%s larger than %d bytes", ErrInvalidRef, s.bucket, key, maxImageBytes)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, identity.ID)
}

func isNoSuchKey(err error) bool {
	var rf awserr.RequestFailure
	if errors.As(err, &rf) && rf.StatusCode() == http.StatusNotFound {
		return true
	}
	var ae awserr.Error
	return errors.As(err, &ae) && (ae.Code() == s3.ErrCodeNoSuchKey || ae.Code() == "NotFound")
}
