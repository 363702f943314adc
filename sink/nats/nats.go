package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"learngen/sink"
)

type NatsConfig struct {
	Url       string
	JetStream bool
	Stream    string
}

// NatsSink publishes each document on a subject named after its collection.
type NatsSink struct {
	nc     *nats.Conn
	config NatsConfig
	js     jetstream.JetStream
	format string
}

func OpenNatsSink(config NatsConfig, format string) (*NatsSink, error) {
	nc, err := nats.Connect(config.Url)
	if err != nil {
		return nil, sink.Unavailable("connect nats", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream instance: %w", err)
	}
	if config.Stream == "" {
		config.Stream = "learngen"
	}
	return &NatsSink{nc: nc, config: config, js: js, format: format}, nil
}

func (p *NatsSink) Prepare(ctx context.Context, collections []string, reset bool) error {
	if !p.config.JetStream {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if reset {
		if err := p.js.DeleteStream(ctx, p.config.Stream); err != nil && !errors.Is(err, jetstream.ErrStreamNotFound) {
			return fmt.Errorf("failed to delete JetStream stream: %w", err)
		}
	}
	_, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     p.config.Stream,
		Subjects: collections,
	})
	if err != nil {
		return fmt.Errorf("failed to create JetStream stream: %w", err)
	}
	return nil
}

func (p *NatsSink) InsertMany(ctx context.Context, collection string, docs []sink.Document) error {
	if p.config.JetStream {
		futures := make([]jetstream.PubAckFuture, 0, len(docs))
		for _, doc := range docs {
			data, err := sink.Encode(doc, p.format)
			if err != nil {
				return err
			}
			f, err := p.js.PublishAsync(collection, data, jetstream.WithMsgID(doc.Key()))
			if err != nil {
				return sink.Unavailable("publish to "+collection, err)
			}
			futures = append(futures, f)
		}
		for _, f := range futures {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-f.Ok():
			case err := <-f.Err():
				return sink.Unavailable("publish to "+collection, err)
			}
		}
		return nil
	}
	for _, doc := range docs {
		data, err := sink.Encode(doc, p.format)
		if err != nil {
			return err
		}
		if err := p.nc.Publish(collection, data); err != nil {
			return sink.Unavailable("publish to "+collection, err)
		}
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return sink.Unavailable("flush "+collection, err)
	}
	return nil
}

func (p *NatsSink) Close() error {
	p.nc.Close()
	return nil
}
