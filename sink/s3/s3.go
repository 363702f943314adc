package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"learngen/sink"
)

type S3Config struct {
	Bucket string
	Region string
}

// S3Sink is a blob store backed by an S3 bucket.
type S3Sink struct {
	uploader *s3manager.Uploader
	cfg      S3Config
}

func OpenS3Sink(cfg S3Config) (*S3Sink, error) {
	ss, err := session.NewSession(aws.NewConfig().WithRegion(cfg.Region))
	if err != nil {
		return nil, sink.Unavailable("open aws session", err)
	}
	return &S3Sink{
		uploader: s3manager.NewUploaderWithClient(s3.New(ss)),
		cfg:      cfg,
	}, nil
}

func (p *S3Sink) Put(ctx context.Context, path string, body io.Reader, contentType string) (int64, error) {
	counted := &countingReader{r: body}
	_, err := p.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(path),
		Body:        counted,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return 0, sink.Unavailable("put object "+path, err)
	}
	return counted.n, nil
}

func (p *S3Sink) Location(path string) string {
	return fmt.Sprintf("s3://%s/%s", p.cfg.Bucket, path)
}

func (p *S3Sink) Close() error {
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)
	return n, err
}
