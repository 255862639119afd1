package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// API es el subconjunto del cliente S3 que usa el store (permite fakes en tests).
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store guarda fotos como objetos "<prefix><name>" en un bucket.
// La referencia devuelta es "s3://<bucket>/<key>".
type Store struct {
	api    API
	bucket string
	prefix string
}

func NewStore(api API, bucket, prefix string) *Store {
	return &Store{
		api:    api,
		bucket: strings.TrimSpace(bucket),
		prefix: strings.TrimLeft(strings.TrimSpace(prefix), "/"),
	}
}

// NewFromEnv carga credenciales/región con la cadena por defecto de AWS.
func NewFromEnv(ctx context.Context, bucket, prefix string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewStore(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func (s *Store) Save(ctx context.Context, name string, contentType string, r io.Reader) (string, error) {
	name = path.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		return "", errors.New("photo name required")
	}
	key := s.prefix + name

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.api.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("put photo: %w", err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

func (s *Store) Delete(ctx context.Context, ref string) error {
	key, ok := s.keyOf(ref)
	if !ok {
		return nil
	}
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// keyOf ignora referencias de otro bucket (p.ej. fotos locales previas a migrar).
func (s *Store) keyOf(ref string) (string, bool) {
	p := "s3://" + s.bucket + "/"
	if !strings.HasPrefix(ref, p) {
		return "", false
	}
	key := strings.TrimPrefix(ref, p)
	return key, key != ""
}
