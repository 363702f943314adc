package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Shopify/sarama"
	log "github.com/sirupsen/logrus"

	"learngen/sink"
)

type KafkaConfig struct {
	Brokers string

	// Do not recreate the Kafka topic when it exists. The default value is false.
	// It can be enabled if learngen is not authorized to create topics.
	NoRecreateIfExists bool

	Partitions int32
}

// KafkaSink publishes each collection to a topic of the same name.
type KafkaSink struct {
	admin    sarama.ClusterAdmin
	cfg      KafkaConfig
	producer sarama.SyncProducer
	format   string
}

func newKafkaConfig() *sarama.Config {
	version, err := sarama.ParseKafkaVersion("1.1.1")
	if err != nil {
		panic(fmt.Sprintf("failed to parse Kafka version: %v", err))
	}
	config := sarama.NewConfig()
	config.Version = version
	config.Net.DialTimeout = 3 * time.Second
	config.Admin.Timeout = 5 * time.Second
	config.Producer.Timeout = 5 * time.Second
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	return config
}

func OpenKafkaSink(cfg KafkaConfig, format string) (*KafkaSink, error) {
	brokers := strings.Split(cfg.Brokers, ",")
	admin, err := sarama.NewClusterAdmin(brokers, newKafkaConfig())
	if err != nil {
		return nil, sink.Unavailable("connect kafka", err)
	}
	producer, err := sarama.NewSyncProducer(brokers, newKafkaConfig())
	if err != nil {
		_ = admin.Close()
		return nil, sink.Unavailable("create kafka producer", err)
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 16
	}
	return &KafkaSink{admin: admin, cfg: cfg, producer: producer, format: format}, nil
}

func (p *KafkaSink) Prepare(ctx context.Context, collections []string, reset bool) error {
	topics, err := p.admin.ListTopics()
	if err != nil {
		return sink.Unavailable("list topics", err)
	}
	for _, name := range collections {
		if err := p.createTopic(name, topics, reset); err != nil {
			return err
		}
	}
	return nil
}

func (p *KafkaSink) createTopic(name string, topics map[string]sarama.TopicDetail, reset bool) error {
	_, exists := topics[name]
	if p.cfg.NoRecreateIfExists {
		if exists {
			return nil
		}
		return fmt.Errorf("topic %q does not exist", name)
	}
	if exists {
		if !reset {
			return nil
		}
		if err := p.admin.DeleteTopic(name); err != nil {
			return fmt.Errorf("delete topic %s: %w", name, err)
		}
		log.WithField("topic", name).Info("Deleted an existing topic")
	}
	log.WithField("topic", name).Info("Creating topic")
	return p.admin.CreateTopic(name, &sarama.TopicDetail{
		NumPartitions:     p.cfg.Partitions,
		ReplicationFactor: 1,
	}, false)
}

func (p *KafkaSink) InsertMany(ctx context.Context, collection string, docs []sink.Document) error {
	msgs := make([]*sarama.ProducerMessage, len(docs))
	for i, doc := range docs {
		data, err := sink.Encode(doc, p.format)
		if err != nil {
			return err
		}
		msgs[i] = &sarama.ProducerMessage{
			Topic: collection,
			Key:   sarama.StringEncoder(doc.Key()),
			Value: sarama.ByteEncoder(data),
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.producer.SendMessages(msgs); err != nil {
		return sink.Unavailable("produce to "+collection, err)
	}
	return nil
}

func (p *KafkaSink) Close() error {
	if err := p.producer.Close(); err != nil {
		return err
	}
	return p.admin.Close()
}
