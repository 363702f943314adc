package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learngen/gen"
	"learngen/pipeline"
	"learngen/sink/memory"
)

func memoryConfig() gen.GeneratorConfig {
	return gen.GeneratorConfig{
		Relational: "memory",
		Documents:  "memory",
		Seed:       42,
		Start:      gen.DefaultStart,
		Horizon:    gen.DefaultHorizon,
		BatchSize:  50,
		Counts: gen.Counts{
			Instructors: 3, Courses: 10, Users: 40, Subscriptions: 60,
			Enrollments: 100, UserEvents: 120, Reviews: 30, Tickets: 10,
		},
	}
}

func TestCreateRelationalMemorySeedsPlans(t *testing.T) {
	store, err := createRelational(context.Background(), memoryConfig())
	require.NoError(t, err)
	plans, err := pipeline.LoadPlans(context.Background(), store)
	require.NoError(t, err)
	_, err = plans.ByType("enterprise")
	assert.NoError(t, err)
}

func TestCreateStoresRejectUnknownBackends(t *testing.T) {
	cfg := memoryConfig()
	cfg.Relational = "oracle"
	_, err := createRelational(context.Background(), cfg)
	assert.Error(t, err)

	cfg.Documents = "couch"
	_, err = createDocuments(context.Background(), cfg)
	assert.Error(t, err)

	cfg.ExtractTarget = "ftp"
	_, err = createBlobs(context.Background(), cfg)
	assert.Error(t, err)
}

func TestCreateDocumentsNone(t *testing.T) {
	cfg := memoryConfig()
	cfg.Documents = "none"
	docs, err := createDocuments(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, docs)

	cfg.Documents = "memory"
	docs, err = createDocuments(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &memory.MemorySink{}, docs)
}

func TestPipelineConfigRejectsInvertedWindow(t *testing.T) {
	cfg := memoryConfig()
	cfg.Start, cfg.Horizon = cfg.Horizon, cfg.Start
	_, err := pipelineConfig(cfg)
	assert.Error(t, err)
}

func TestGenerateInMemory(t *testing.T) {
	assert.NoError(t, generate(context.Background(), memoryConfig()))
}

func TestMigrateNeedsSQLStore(t *testing.T) {
	assert.Error(t, migrate(context.Background(), memoryConfig()))
}
