package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"learngen/billing"
	"learngen/extract"
	"learngen/gen"
	"learngen/pipeline"
	"learngen/schema"
	"learngen/sink"
	"learngen/sink/gcs"
	"learngen/sink/kafka"
	"learngen/sink/kinesis"
	"learngen/sink/memory"
	"learngen/sink/mongo"
	"learngen/sink/mysql"
	"learngen/sink/nats"
	"learngen/sink/postgres"
	"learngen/sink/pulsar"
	"learngen/sink/s3"
)

func createRelational(ctx context.Context, cfg gen.GeneratorConfig) (sink.RelationalStore, error) {
	switch cfg.Relational {
	case "postgres":
		return postgres.OpenPostgresSink(ctx, cfg.Postgres)
	case "mysql":
		return mysql.OpenMysqlSink(ctx, cfg.Mysql)
	case "memory":
		m := memory.NewMemorySink()
		m.Define(pipeline.Tables()...)
		m.Unique("courses", "slug")
		m.Unique("users", "email")
		m.Unique("users", "username")
		if err := pipeline.SeedPlans(ctx, m, billing.DefaultPlans()); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("invalid relational store: %s", cfg.Relational)
}

// createDocuments returns nil when document generation is disabled.
func createDocuments(ctx context.Context, cfg gen.GeneratorConfig) (sink.DocumentStore, error) {
	switch cfg.Documents {
	case "mongo":
		return mongo.OpenMongoSink(ctx, cfg.Mongo)
	case "kafka":
		return kafka.OpenKafkaSink(cfg.Kafka, cfg.Format)
	case "nats":
		return nats.OpenNatsSink(cfg.Nats, cfg.Format)
	case "pulsar":
		return pulsar.OpenPulsarSink(cfg.Pulsar, cfg.Format)
	case "kinesis":
		return kinesis.OpenKinesisSink(cfg.Kinesis, cfg.Format)
	case "memory":
		return memory.NewMemorySink(), nil
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("invalid document store: %s", cfg.Documents)
}

func createBlobs(ctx context.Context, cfg gen.GeneratorConfig) (sink.BlobStore, error) {
	switch cfg.ExtractTarget {
	case "gcs":
		return gcs.OpenGcsSink(ctx, cfg.Gcs)
	case "s3":
		return s3.OpenS3Sink(cfg.S3)
	}
	return nil, fmt.Errorf("invalid extract target: %s", cfg.ExtractTarget)
}

func pipelineConfig(cfg gen.GeneratorConfig) (pipeline.Config, error) {
	clock, err := gen.NewClock(cfg.Start, cfg.Horizon)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Seed:         cfg.Seed,
		Clock:        clock,
		Counts:       cfg.Counts,
		BatchSize:    cfg.BatchSize,
		Qps:          cfg.Qps,
		StageTimeout: cfg.StageTimeout,
		Reset:        cfg.Reset,
		DocUserLimit: cfg.DocUserLimit,
	}, nil
}

func closeStore(name string, c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		log.WithError(err).Warnf("Failed to close %s store", name)
	}
}

// openPipeline opens both stores and builds a pipeline over them. The
// returned function closes the stores.
func openPipeline(ctx context.Context, cfg gen.GeneratorConfig) (*pipeline.Pipeline, func(), error) {
	pcfg, err := pipelineConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	rel, err := createRelational(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	docs, err := createDocuments(ctx, cfg)
	if err != nil {
		closeStore("relational", rel)
		return nil, nil, err
	}
	cleanup := func() {
		closeStore("relational", rel)
		if docs != nil {
			closeStore("document", docs)
		}
	}
	return pipeline.New(pcfg, rel, docs), cleanup, nil
}

func printReport(report *pipeline.Report) {
	if err := report.Print(os.Stdout); err != nil {
		log.WithError(err).Warn("Failed to print report")
	}
}

func generate(ctx context.Context, cfg gen.GeneratorConfig) error {
	p, cleanup, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := p.Run(ctx)
	printReport(report)
	if err != nil {
		return err
	}
	log.WithField("rows", report.TotalRows()).Info("Generation finished")
	return nil
}

func documents(ctx context.Context, cfg gen.GeneratorConfig) error {
	if cfg.Documents == "none" {
		return fmt.Errorf("docs needs a document store")
	}
	p, cleanup, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := p.RunDocuments(ctx)
	printReport(report)
	return err
}

func reset(ctx context.Context, cfg gen.GeneratorConfig) error {
	p, cleanup, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return p.Reset(ctx)
}

func migrate(ctx context.Context, cfg gen.GeneratorConfig) error {
	var dsn string
	switch cfg.Relational {
	case "postgres":
		dsn = cfg.Postgres.DSN()
	case "mysql":
		dsn = cfg.Mysql.DSN()
	default:
		return fmt.Errorf("nothing to migrate for %s", cfg.Relational)
	}
	db, err := schema.Open(cfg.Relational, dsn)
	if err != nil {
		return err
	}
	if sqlDB, err := db.WithContext(ctx).DB(); err == nil {
		defer sqlDB.Close()
	}
	return schema.Migrate(db.WithContext(ctx))
}

func extractTables(ctx context.Context, cfg gen.GeneratorConfig, tables []string) error {
	format, err := extract.ParseFormat(cfg.ExtractFormat)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		tables = extract.Tables
	}
	rel, err := createRelational(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore("relational", rel)
	blobs, err := createBlobs(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore("blob", blobs)

	results := extract.New(rel, blobs, format, cfg.ExtractPrefix).Run(ctx, tables)
	report := pipeline.NewReport()
	failed := 0
	for _, res := range results {
		report.Record(pipeline.StageResult{
			Stage:   "extract " + res.Table,
			Rows:    int64(res.Rows),
			Elapsed: res.Elapsed,
			Err:     res.Err,
			Detail:  res.Path,
		})
		if res.Err != nil {
			failed++
		}
	}
	printReport(report)
	if failed > 0 {
		return fmt.Errorf("%d of %d tables failed to extract", failed, len(results))
	}
	return nil
}
