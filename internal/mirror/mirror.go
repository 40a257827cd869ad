// Package mirror copies uploaded core pictures to an S3 bucket so they
// survive the loss of the local notes directory.
package mirror

import (
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Mirror stores pictures under bucket/prefix+name.
type S3Mirror struct {
	svc    s3iface.S3API
	bucket string
	prefix string
}

func New(svc s3iface.S3API, bucket, prefix string) *S3Mirror {
	return &S3Mirror{svc: svc, bucket: bucket, prefix: prefix}
}

// NewSession creates an AWS session. Empty keys fall back to the default
// credential chain.
func NewSession(region, accessKey, secretKey string) (*session.Session, error) {
	cfg := &aws.Config{Region: aws.String(region)}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}
	return sess, nil
}

// NewFromSession builds a mirror backed by the real S3 client.
func NewFromSession(sess *session.Session, bucket, prefix string) *S3Mirror {
	return New(s3.New(sess), bucket, prefix)
}

// Key returns the object key used for name.
func (m *S3Mirror) Key(name string) string {
	return m.prefix + filepath.Base(name)
}

// Put uploads the local file at localPath as name.
func (m *S3Mirror) Put(name, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
			log.Println("Error closing mirrored file:", err)
		}
	}(f)

	input := &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.Key(name)),
		Body:   f,
	}
	if contentType := mime.TypeByExtension(filepath.Ext(name)); contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := m.svc.PutObject(input); err != nil {
		return fmt.Errorf("uploading %s to s3://%s: %w", name, m.bucket, err)
	}
	return nil
}

// Delete removes name from the bucket.
func (m *S3Mirror) Delete(name string) error {
	_, err := m.svc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.Key(name)),
	})
	if err != nil {
		return fmt.Errorf("deleting %s from s3://%s: %w", name, m.bucket, err)
	}
	return nil
}
