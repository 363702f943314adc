package gen

import (
	"fmt"
	"os"
	"time"

	"learngen/sink/gcs"
	"learngen/sink/kafka"
	"learngen/sink/kinesis"
	"learngen/sink/mongo"
	"learngen/sink/mysql"
	"learngen/sink/nats"
	"learngen/sink/postgres"
	"learngen/sink/pulsar"
	"learngen/sink/s3"

	"gopkg.in/yaml.v3"
)

type GeneratorConfig struct {
	Postgres postgres.PostgresConfig
	Mysql    mysql.MysqlConfig
	Mongo    mongo.MongoConfig
	Kafka    kafka.KafkaConfig
	Nats     nats.NatsConfig
	Pulsar   pulsar.PulsarConfig
	Kinesis  kinesis.KinesisConfig
	Gcs      gcs.GcsConfig
	S3       s3.S3Config

	// The relational backend: postgres | mysql | memory.
	Relational string
	// The document backend: mongo | kafka | nats | pulsar | kinesis | memory.
	Documents string
	// The record format, used when the document backend is a message queue.
	Format string

	// Root seed. Every stage forks its own stream from it.
	Seed int64
	// The simulated window. Nothing generated may be later than Horizon.
	Start   time.Time
	Horizon time.Time

	BatchSize int
	// The throttled batch writes per second. Zero disables throttling.
	Qps int
	// Wall-clock budget of a single stage. Zero means unbounded.
	StageTimeout time.Duration
	// Truncate tables and drop collections before generating.
	Reset bool

	Counts Counts

	// Size of the user pool read back by the detached document pipeline.
	DocUserLimit int

	// Extract settings: parquet | avro, and gcs | s3.
	ExtractFormat string
	ExtractTarget string
	ExtractPrefix string
}

// Counts holds the number of records generated per entity.
type Counts struct {
	Instructors   int `yaml:"instructors"`
	Courses       int `yaml:"courses"`
	Users         int `yaml:"users"`
	Subscriptions int `yaml:"subscriptions"`
	// Enrollment candidates; duplicates and late candidates are dropped.
	Enrollments int `yaml:"enrollments"`
	UserEvents  int `yaml:"user_events"`
	Reviews     int `yaml:"course_reviews"`
	Tickets     int `yaml:"support_tickets"`
}

func DefaultCounts() Counts {
	return Counts{
		Instructors:   200,
		Courses:       2000,
		Users:         50000,
		Subscriptions: 120000,
		Enrollments:   300000,
		UserEvents:    5000000,
		Reviews:       50000,
		Tickets:       10000,
	}
}

// LoadCounts overlays the counts found in a YAML file onto base.
func LoadCounts(path string, base Counts) (Counts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read counts file: %w", err)
	}
	if err := yaml.Unmarshal(data, &base); err != nil {
		return base, fmt.Errorf("parse counts file %s: %w", path, err)
	}
	return base, nil
}

const (
	Day  = 24 * time.Hour
	Year = 365 * Day
)

var (
	DefaultStart   = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	DefaultHorizon = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
)

// ParseTime accepts RFC3339 timestamps and plain dates.
func ParseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or YYYY-MM-DD", v)
	}
	return t.UTC(), nil
}
