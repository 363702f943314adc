package pulsar

import (
	"context"
	"fmt"
	"sync"

	"github.com/apache/pulsar-client-go/pulsar"

	"learngen/sink"
)

type PulsarConfig struct {
	Brokers string
}

type PulsarSink struct {
	client    pulsar.Client
	producers map[string]pulsar.Producer
	format    string
}

func OpenPulsarSink(cfg PulsarConfig, format string) (*PulsarSink, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL: fmt.Sprintf("pulsar://%s", cfg.Brokers),
	})
	if err != nil {
		return nil, sink.Unavailable("connect pulsar", err)
	}
	return &PulsarSink{
		client:    client,
		producers: make(map[string]pulsar.Producer),
		format:    format,
	}, nil
}

// Prepare creates one producer per collection up front. Pulsar creates
// topics on first use, so there is nothing to reset.
func (p *PulsarSink) Prepare(ctx context.Context, collections []string, reset bool) error {
	for _, name := range collections {
		if _, ok := p.producers[name]; ok {
			continue
		}
		producer, err := p.client.CreateProducer(pulsar.ProducerOptions{Topic: name})
		if err != nil {
			return sink.Unavailable("create producer for "+name, err)
		}
		p.producers[name] = producer
	}
	return nil
}

func (p *PulsarSink) InsertMany(ctx context.Context, collection string, docs []sink.Document) error {
	producer, ok := p.producers[collection]
	if !ok {
		return fmt.Errorf("pulsar: collection %s was not prepared", collection)
	}
	var (
		mu       sync.Mutex
		firstErr error
	)
	for _, doc := range docs {
		data, err := sink.Encode(doc, p.format)
		if err != nil {
			return err
		}
		producer.SendAsync(ctx, &pulsar.ProducerMessage{Payload: data, Key: doc.Key()},
			func(_ pulsar.MessageID, _ *pulsar.ProducerMessage, err error) {
				if err == nil {
					return
				}
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			})
	}
	if err := producer.Flush(); err != nil {
		return sink.Unavailable("flush "+collection, err)
	}
	mu.Lock()
	defer mu.Unlock()
	if firstErr != nil {
		return sink.Unavailable("send to "+collection, firstErr)
	}
	return nil
}

func (p *PulsarSink) Close() error {
	for _, producer := range p.producers {
		producer.Close()
	}
	p.client.Close()
	return nil
}
