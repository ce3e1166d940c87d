package storage

import (
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

// S3Config configures the S3 backend. Endpoint is optional and enables
// path-style addressing for S3-compatible servers such as MinIO.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

// S3Storage keeps media in an S3 bucket under "<mediaType>/<id>" keys
type S3Storage struct {
	bucket   string
	client   s3iface.S3API
	uploader s3manageriface.UploaderAPI
}

// NewS3Storage creates an S3 backed storage using the default credential chain
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	return newS3Storage(cfg.Bucket, s3.New(sess), s3manager.NewUploader(sess)), nil
}

func newS3Storage(bucket string, client s3iface.S3API, uploader s3manageriface.UploaderAPI) *S3Storage {
	return &S3Storage{
		bucket:   bucket,
		client:   client,
		uploader: uploader,
	}
}

func (s *S3Storage) key(id, mediaType string) string {
	return path.Join(mediaType, path.Base(id))
}

// Create starts a streaming multipart upload. The object is complete once
// Close returns nil.
func (s *S3Storage) Create(id, mediaType string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	w := &s3Writer{pw: pw, done: make(chan error, 1)}

	key := s.key(id, mediaType)
	go func() {
		_, err := s.uploader.Upload(&s3manager.UploadInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		if err != nil {
			pr.CloseWithError(err)
		}
		w.done <- err
	}()

	return w, nil
}

// Open fetches an object for reading
func (s *S3Storage) Open(id, mediaType string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id, mediaType)),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, fmt.Errorf("%s/%s: %w", mediaType, id, ErrNotExist)
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return out.Body, nil
}

// Delete removes an object
func (s *S3Storage) Delete(id, mediaType string) error {
	_, err := s.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id, mediaType)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

type s3Writer struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3Writer) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	if err := <-w.done; err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}
