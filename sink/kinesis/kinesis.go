package kinesis

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"

	"learngen/sink"
)

type KinesisConfig struct {
	StreamName string
	Region     string
}

// PutRecords accepts at most this many records per call.
const maxRecords = 500

// KinesisSink writes every collection to one stream. The collection name
// prefixes the partition key.
type KinesisSink struct {
	client *kinesis.Kinesis
	cfg    KinesisConfig
	format string
}

func OpenKinesisSink(cfg KinesisConfig, format string) (*KinesisSink, error) {
	ss, err := session.NewSession()
	if err != nil {
		return nil, sink.Unavailable("open aws session", err)
	}
	client := kinesis.New(ss, aws.NewConfig().WithRegion(cfg.Region))
	return &KinesisSink{
		client: client,
		cfg:    cfg,
		format: format,
	}, nil
}

// Prepare checks that the stream exists. Streams are not recreated.
func (p *KinesisSink) Prepare(ctx context.Context, collections []string, reset bool) error {
	_, err := p.client.DescribeStreamSummaryWithContext(ctx, &kinesis.DescribeStreamSummaryInput{
		StreamName: aws.String(p.cfg.StreamName),
	})
	if err != nil {
		return sink.Unavailable("describe stream "+p.cfg.StreamName, err)
	}
	return nil
}

func (p *KinesisSink) InsertMany(ctx context.Context, collection string, docs []sink.Document) error {
	for len(docs) > 0 {
		n := min(len(docs), maxRecords)
		entries := make([]*kinesis.PutRecordsRequestEntry, n)
		for i, doc := range docs[:n] {
			data, err := sink.Encode(doc, p.format)
			if err != nil {
				return err
			}
			entries[i] = &kinesis.PutRecordsRequestEntry{
				Data:         data,
				PartitionKey: aws.String(collection + "/" + doc.Key()),
			}
		}
		out, err := p.client.PutRecordsWithContext(ctx, &kinesis.PutRecordsInput{
			Records:    entries,
			StreamName: aws.String(p.cfg.StreamName),
		})
		if err != nil {
			return sink.Unavailable("put records to "+p.cfg.StreamName, err)
		}
		if failed := aws.Int64Value(out.FailedRecordCount); failed > 0 {
			return sink.Unavailable("put records to "+p.cfg.StreamName,
				fmt.Errorf("%d of %d records failed", failed, n))
		}
		docs = docs[n:]
	}
	return nil
}

func (p *KinesisSink) Close() error {
	return nil
}
