package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"learngen/gen"
	"learngen/sink"
)

var cfg = gen.GeneratorConfig{
	Counts: gen.DefaultCounts(),
}

var (
	startFlag   string
	horizonFlag string
	countsFile  string
	logLevel    string
	logFormat   string
	tablesFlag  cli.StringSlice
)

func runCommand(run func(ctx context.Context, cfg gen.GeneratorConfig) error) error {
	terminateCh := make(chan os.Signal, 1)
	signal.Notify(terminateCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-terminateCh
		log.Warn("Cancelled")
		cancel()
	}()
	return run(ctx, cfg)
}

// setup applies the flags that need parsing before any command runs.
func setup(c *cli.Context) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if logFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if cfg.Start, err = gen.ParseTime(startFlag); err != nil {
		return err
	}
	if cfg.Horizon, err = gen.ParseTime(horizonFlag); err != nil {
		return err
	}
	if countsFile != "" {
		if cfg.Counts, err = gen.LoadCounts(countsFile, cfg.Counts); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("Failed to load .env: %v", err)
	}

	app := cli.NewApp()
	app.Name = "learngen"
	app.Usage = "Generate a synthetic learning-platform dataset"
	app.Before = setup
	app.Flags = []cli.Flag{
		cli.Int64Flag{
			Name:        "seed",
			Usage:       "The root seed. Equal seeds generate equal datasets",
			Value:       42,
			EnvVar:      "LEARNGEN_SEED",
			Destination: &cfg.Seed,
		},
		cli.StringFlag{
			Name:        "start",
			Usage:       "Start of the simulated window (RFC3339 or YYYY-MM-DD)",
			Value:       gen.DefaultStart.Format("2006-01-02"),
			Destination: &startFlag,
		},
		cli.StringFlag{
			Name:        "horizon",
			Usage:       "End of the simulated window. Nothing generated is later",
			Value:       gen.DefaultHorizon.Format("2006-01-02"),
			Destination: &horizonFlag,
		},
		cli.IntFlag{
			Name:        "batch-size",
			Usage:       "Records per bulk write",
			Value:       sink.DefaultBatchSize,
			Destination: &cfg.BatchSize,
		},
		cli.IntFlag{
			Name:        "qps",
			Usage:       "Bulk writes per second. 0 disables throttling",
			Value:       0,
			Destination: &cfg.Qps,
		},
		cli.DurationFlag{
			Name:        "stage-timeout",
			Usage:       "Wall-clock budget of each stage. 0 means unbounded",
			Destination: &cfg.StageTimeout,
		},
		cli.StringFlag{
			Name:        "relational",
			Usage:       "postgres | mysql | memory",
			Value:       "postgres",
			EnvVar:      "LEARNGEN_RELATIONAL",
			Destination: &cfg.Relational,
		},
		cli.StringFlag{
			Name:        "documents",
			Usage:       "mongo | kafka | nats | pulsar | kinesis | memory | none",
			Value:       "mongo",
			EnvVar:      "LEARNGEN_DOCUMENTS",
			Destination: &cfg.Documents,
		},
		cli.StringFlag{
			Name:        "format",
			Usage:       "The output record format: json | protobuf. Used when the document store is a message queue.",
			Value:       "json",
			Destination: &cfg.Format,
		},
		cli.StringFlag{
			Name:        "counts",
			Usage:       "YAML file overriding the per-entity record counts",
			Destination: &countsFile,
		},
		cli.StringFlag{
			Name:        "log-level",
			Value:       "info",
			Destination: &logLevel,
		},
		cli.StringFlag{
			Name:        "log-format",
			Usage:       "text | json",
			Value:       "text",
			Destination: &logFormat,
		},

		cli.StringFlag{
			Name:        "pg-host",
			Usage:       "The host address of the PostgreSQL server",
			Value:       "localhost",
			EnvVar:      "PG_HOST",
			Destination: &cfg.Postgres.DbHost,
		},
		cli.IntFlag{
			Name:        "pg-port",
			Value:       5432,
			EnvVar:      "PG_PORT",
			Destination: &cfg.Postgres.DbPort,
		},
		cli.StringFlag{
			Name:        "pg-db",
			Value:       "learnhub_prod",
			EnvVar:      "PG_DATABASE",
			Destination: &cfg.Postgres.Database,
		},
		cli.StringFlag{
			Name:        "pg-user",
			Value:       "admin",
			EnvVar:      "PG_USER",
			Destination: &cfg.Postgres.DbUser,
		},
		cli.StringFlag{
			Name:        "pg-password",
			EnvVar:      "PG_PASSWORD",
			Destination: &cfg.Postgres.DbPassword,
		},
		cli.StringFlag{
			Name:        "mysql-host",
			Usage:       "The host address of the MySQL server",
			Value:       "localhost",
			EnvVar:      "MYSQL_HOST",
			Destination: &cfg.Mysql.DbHost,
		},
		cli.IntFlag{
			Name:        "mysql-port",
			Value:       3306,
			EnvVar:      "MYSQL_PORT",
			Destination: &cfg.Mysql.DbPort,
		},
		cli.StringFlag{
			Name:        "mysql-db",
			Value:       "learnhub_prod",
			EnvVar:      "MYSQL_DATABASE",
			Destination: &cfg.Mysql.Database,
		},
		cli.StringFlag{
			Name:        "mysql-user",
			Value:       "mysqluser",
			EnvVar:      "MYSQL_USER",
			Destination: &cfg.Mysql.DbUser,
		},
		cli.StringFlag{
			Name:        "mysql-password",
			EnvVar:      "MYSQL_PASSWORD",
			Destination: &cfg.Mysql.DbPassword,
		},
		cli.StringFlag{
			Name:        "mongo-uri",
			Value:       "mongodb://localhost:27017",
			EnvVar:      "MONGO_URI",
			Destination: &cfg.Mongo.Uri,
		},
		cli.StringFlag{
			Name:        "mongo-db",
			Value:       "learnhub_logs",
			EnvVar:      "MONGO_DATABASE",
			Destination: &cfg.Mongo.Database,
		},
		cli.StringFlag{
			Name:        "kafka-brokers",
			Usage:       "Kafka bootstrap brokers to connect to, as a comma separated list",
			EnvVar:      "KAFKA_BROKERS",
			Destination: &cfg.Kafka.Brokers,
		},
		cli.BoolFlag{
			Name:        "kafka-no-recreate",
			Usage:       "Do not recreate the Kafka topics when they exist.",
			Destination: &cfg.Kafka.NoRecreateIfExists,
		},
		cli.StringFlag{
			Name:        "nats-url",
			Value:       "nats://localhost:4222",
			EnvVar:      "NATS_URL",
			Destination: &cfg.Nats.Url,
		},
		cli.BoolFlag{
			Name:        "nats-jetstream",
			Usage:       "Publish through a JetStream stream",
			Destination: &cfg.Nats.JetStream,
		},
		cli.StringFlag{
			Name:        "pulsar-brokers",
			EnvVar:      "PULSAR_BROKERS",
			Destination: &cfg.Pulsar.Brokers,
		},
		cli.StringFlag{
			Name:        "kinesis-stream",
			EnvVar:      "KINESIS_STREAM",
			Destination: &cfg.Kinesis.StreamName,
		},
		cli.StringFlag{
			Name:        "aws-region",
			Usage:       "The region of the Kinesis stream and the S3 bucket",
			EnvVar:      "AWS_REGION",
			Destination: &cfg.Kinesis.Region,
		},
	}

	app.Commands = []cli.Command{
		{
			Name:  "migrate",
			Usage: "Create the relational schema and seed the plan catalog",
			Action: func(c *cli.Context) error {
				return runCommand(migrate)
			},
		},
		{
			Name:  "reset",
			Usage: "Truncate the core tables and drop the document collections",
			Action: func(c *cli.Context) error {
				return runCommand(reset)
			},
		},
		{
			Name:  "generate",
			Usage: "Generate the relational and document datasets",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:        "reset",
					Usage:       "Reset the stores first",
					Destination: &cfg.Reset,
				},
			},
			Action: func(c *cli.Context) error {
				return runCommand(generate)
			},
		},
		{
			Name:  "docs",
			Usage: "Generate the documents only, from the IDs already in the relational store",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:        "reset",
					Usage:       "Drop the collections first",
					Destination: &cfg.Reset,
				},
				cli.IntFlag{
					Name:        "user-limit",
					Usage:       "Number of users to read back. 0 reads all",
					Value:       10000,
					Destination: &cfg.DocUserLimit,
				},
			},
			Action: func(c *cli.Context) error {
				return runCommand(documents)
			},
		},
		{
			Name:  "extract",
			Usage: "Upload the relational tables to blob storage as columnar files",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "target",
					Usage:       "gcs | s3",
					Value:       "gcs",
					Destination: &cfg.ExtractTarget,
				},
				cli.StringFlag{
					Name:        "extract-format",
					Usage:       "parquet | avro",
					Value:       "parquet",
					Destination: &cfg.ExtractFormat,
				},
				cli.StringFlag{
					Name:        "prefix",
					Value:       "raw",
					Destination: &cfg.ExtractPrefix,
				},
				cli.StringSliceFlag{
					Name:  "table",
					Usage: "Table to extract; repeatable. Defaults to every table",
					Value: &tablesFlag,
				},
				cli.StringFlag{
					Name:        "gcs-bucket",
					EnvVar:      "GCS_BUCKET_NAME",
					Destination: &cfg.Gcs.Bucket,
				},
				cli.StringFlag{
					Name:        "gcs-credentials",
					EnvVar:      "GOOGLE_APPLICATION_CREDENTIALS",
					Destination: &cfg.Gcs.CredentialsFile,
				},
				cli.StringFlag{
					Name:        "s3-bucket",
					EnvVar:      "S3_BUCKET",
					Destination: &cfg.S3.Bucket,
				},
			},
			Action: func(c *cli.Context) error {
				cfg.S3.Region = cfg.Kinesis.Region
				return runCommand(func(ctx context.Context, cfg gen.GeneratorConfig) error {
					return extractTables(ctx, cfg, tablesFlag)
				})
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}
