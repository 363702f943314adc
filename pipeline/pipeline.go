// Package pipeline runs the entity generators in dependency order and wires
// the ID pools of each stage into the stages that need them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"learngen/account"
	"learngen/activity"
	"learngen/billing"
	"learngen/catalog"
	"learngen/gen"
	"learngen/learning"
	"learngen/sink"
)

// CoreTables are cleared by Reset, dependents first.
var CoreTables = []string{
	billing.PaymentTable.Name,
	learning.EnrollmentTable.Name,
	billing.SubscriptionTable.Name,
	account.UserTable.Name,
	catalog.CourseTable.Name,
	catalog.InstructorTable.Name,
	catalog.CategoryTable.Name,
}

// Tables lists every table a run writes, dependencies first.
func Tables() []sink.Table {
	return []sink.Table{
		catalog.CategoryTable,
		catalog.InstructorTable,
		catalog.CourseTable,
		account.UserTable,
		billing.SubscriptionTable,
		billing.PaymentTable,
		learning.EnrollmentTable,
	}
}

// ErrStoreNotReset is returned when a run would append to tables left over
// from an earlier run. Their unique keys restart with every run, so the
// store has to be reset first.
var ErrStoreNotReset = errors.New("store not reset")

// StageError names the stage a run failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type Config struct {
	Seed         int64
	Clock        gen.Clock
	Counts       gen.Counts
	BatchSize    int
	Qps          int
	StageTimeout time.Duration
	Reset        bool
	// Users read by the detached document pipeline; zero reads all.
	DocUserLimit int
}

type Pipeline struct {
	cfg    Config
	rel    sink.RelationalStore
	docs   sink.DocumentStore
	writer *sink.Writer
	root   *gen.Sampler
	report *Report
	log    *log.Entry
}

// New builds a pipeline. docs may be nil, in which case the document stages
// are skipped.
func New(cfg Config, rel sink.RelationalStore, docs sink.DocumentStore) *Pipeline {
	logger := log.WithField("seed", cfg.Seed)
	return &Pipeline{
		cfg:    cfg,
		rel:    rel,
		docs:   docs,
		writer: sink.NewWriter(cfg.BatchSize, cfg.Qps, logger),
		root:   gen.NewSampler(cfg.Seed),
		report: NewReport(),
		log:    logger,
	}
}

func (p *Pipeline) Report() *Report {
	return p.report
}

// Reset clears the core tables and drops the document collections.
func (p *Pipeline) Reset(ctx context.Context) error {
	if err := p.rel.Truncate(ctx, CoreTables); err != nil {
		return fmt.Errorf("reset relational store: %w", err)
	}
	if p.docs != nil {
		if err := p.docs.Prepare(ctx, activity.Collections(), true); err != nil {
			return fmt.Errorf("reset document store: %w", err)
		}
	}
	p.log.WithField("tables", len(CoreTables)).Info("Reset stores")
	return nil
}

// requireEmpty fails when a generated table already holds rows. Categories
// are upserted by slug and may be left in place.
func (p *Pipeline) requireEmpty(ctx context.Context) error {
	for _, name := range CoreTables {
		if name == catalog.CategoryTable.Name {
			continue
		}
		ds, err := p.rel.ReadTable(ctx, name, nil, 1)
		if err != nil {
			return fmt.Errorf("check %s: %w", name, err)
		}
		if len(ds.Rows) > 0 {
			return fmt.Errorf("%w: %s already has rows, rerun with --reset", ErrStoreNotReset, name)
		}
	}
	return nil
}

// stage runs fn under the stage budget and records the outcome. A failed
// stage is logged with its cause and returned as a *StageError.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context, s *gen.Sampler) (int64, string, error)) error {
	if p.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.StageTimeout)
		defer cancel()
	}
	logger := p.log.WithField("stage", name)
	logger.Info("Stage started")
	start := time.Now()
	rows, detail, err := fn(ctx, p.root.Fork(name))
	res := StageResult{Stage: name, Rows: rows, Elapsed: time.Since(start), Err: err, Detail: detail}
	p.report.Record(res)
	if err != nil {
		logger.WithFields(log.Fields{"rows": rows, "elapsed": res.Elapsed}).WithError(err).Error("Stage failed")
		return &StageError{Stage: name, Err: err}
	}
	logger.WithFields(log.Fields{"rows": rows, "elapsed": res.Elapsed}).Info("Stage finished")
	return nil
}

// Run generates the whole dataset. Categories, instructors, courses and
// users are written in order; then the billing and enrollment stages run
// alongside the document stages.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if p.cfg.Reset {
		if err := p.Reset(ctx); err != nil {
			return p.report, err
		}
	}
	if err := p.requireEmpty(ctx); err != nil {
		return p.report, err
	}
	plans, err := LoadPlans(ctx, p.rel)
	if err != nil {
		return p.report, err
	}
	counts := p.cfg.Counts
	clock := p.cfg.Clock

	var categoryIDs, instructorIDs []int64
	var courses []gen.CourseRef
	var users []gen.UserRef

	err = p.stage(ctx, catalog.CategoryTable.Name, func(ctx context.Context, s *gen.Sampler) (int64, string, error) {
		ids, err := sink.WriteRowsReturning(ctx, p.writer, p.rel, catalog.CategoryTable, sink.FromSlice(catalog.Categories()))
		categoryIDs = ids
		return int64(len(ids)), "", err
	})
	if err != nil {
		return p.report, err
	}

	err = p.stage(ctx, catalog.InstructorTable.Name, func(ctx context.Context, s *gen.Sampler) (int64, string, error) {
		g := catalog.NewInstructorGen(s, clock, counts.Instructors)
		ids, err := sink.WriteRowsReturning(ctx, p.writer, p.rel, catalog.InstructorTable, g.Next)
		instructorIDs = ids
		return int64(len(ids)), "", err
	})
	if err != nil {
		return p.report, err
	}

	err = p.stage(ctx, catalog.CourseTable.Name, func(ctx context.Context, s *gen.Sampler) (int64, string, error) {
		g, err := catalog.NewCourseGen(s, clock, instructorIDs, categoryIDs, counts.Courses)
		if err != nil {
			return 0, "", err
		}
		ids, err := sink.WriteRowsReturning(ctx, p.writer, p.rel, catalog.CourseTable, g.Next)
		if err != nil {
			return int64(len(ids)), "", err
		}
		courses, err = g.Refs(ids)
		return int64(len(ids)), "", err
	})
	if err != nil {
		return p.report, err
	}

	err = p.stage(ctx, account.UserTable.Name, func(ctx context.Context, s *gen.Sampler) (int64, string, error) {
		g := account.NewUserGen(s, clock, counts.Users)
		ids, err := sink.WriteRowsReturning(ctx, p.writer, p.rel, account.UserTable, g.Next)
		if err != nil {
			return int64(len(ids)), "", err
		}
		users, err = g.Refs(ids)
		return int64(len(ids)), "", err
	})
	if err != nil {
		return p.report, err
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return p.billingAndLearning(gctx, plans, users, courses)
	})
	if p.docs != nil {
		group.Go(func() error {
			return p.documents(gctx, users, courses)
		})
	}
	return p.report, group.Wait()
}

func (p *Pipeline) billingAndLearning(ctx context.Context, plans *billing.Catalog, users []gen.UserRef, courses []gen.CourseRef) error {
	counts := p.cfg.Counts
	clock := p.cfg.Clock

	var subs []billing.SubscriptionRef
	err := p.stage(ctx, billing.SubscriptionTable.Name, func(ctx context.Context, s *gen.Sampler) (int64, string, error) {
		g, err := billing.NewSubscriptionGen(s, clock, users, plans, counts.Subscriptions)
		if err != nil {
			return 0, "", err
		}
		ids, err := sink.WriteRowsReturning(ctx, p.writer, p.rel, billing.SubscriptionTable, g.Next)
		if err != nil {
			return int64(len(ids)), "", err
		}
		subs, err = g.Refs(ids)
		return int64(len(ids)), "", err
	})
	if err != nil {
		return err
	}

	err = p.stage(ctx, billing.PaymentTable.Name, func(ctx context.Context, s *gen.Sampler) (int64, string, error) {
		g, err := billing.NewPaymentGen(s, clock, subs, plans)
		if err != nil {
			return 0, "", err
		}
		n, err := sink.WriteRows(ctx, p.writer, p.rel, billing.PaymentTable, g.Next)
		return n, "", err
	})
	if err != nil {
		return err
	}

	return p.stage(ctx, learning.EnrollmentTable.Name, func(ctx context.Context, s *gen.Sampler) (int64, string, error) {
		g, err := learning.NewEnrollmentGen(s, clock, users, courses, counts.Enrollments)
		if err != nil {
			return 0, "", err
		}
		n, err := sink.WriteRows(ctx, p.writer, p.rel, learning.EnrollmentTable, g.Next)
		detail := fmt.Sprintf("candidates=%d dropped=%d duplicates=%d", counts.Enrollments, g.Dropped, g.Duplicates)
		return n, detail, err
	})
}

// RunDocuments is the detached document pipeline: it reads the user and
// course pools back from the relational store and only runs the document
// stages.
func (p *Pipeline) RunDocuments(ctx context.Context) (*Report, error) {
	if p.docs == nil {
		return p.report, fmt.Errorf("no document store configured")
	}
	if p.cfg.Reset {
		if err := p.docs.Prepare(ctx, activity.Collections(), true); err != nil {
			return p.report, fmt.Errorf("reset document store: %w", err)
		}
	}
	users, err := LoadUserRefs(ctx, p.rel, p.cfg.DocUserLimit)
	if err != nil {
		return p.report, err
	}
	courses, err := LoadCourseRefs(ctx, p.rel)
	if err != nil {
		return p.report, err
	}
	p.log.WithFields(log.Fields{"users": len(users), "courses": len(courses)}).Info("Loaded reference pools")
	return p.report, p.documents(ctx, users, courses)
}

func (p *Pipeline) documents(ctx context.Context, users []gen.UserRef, courses []gen.CourseRef) error {
	counts := p.cfg.Counts
	clock := p.cfg.Clock
	if err := p.docs.Prepare(ctx, activity.Collections(), false); err != nil {
		return &StageError{Stage: "prepare collections", Err: err}
	}

	err := p.stage(ctx, activity.UserEventCollection, func(ctx context.Context, s *gen.Sampler) (int64, string, error) {
		g, err := activity.NewUserEventGen(s, clock, users, courses, counts.UserEvents)
		if err != nil {
			return 0, "", err
		}
		n, err := sink.WriteDocuments(ctx, p.writer, p.docs, activity.UserEventCollection, g.Next)
		return n, "", err
	})
	if err != nil {
		return err
	}

	err = p.stage(ctx, activity.CourseReviewCollection, func(ctx context.Context, s *gen.Sampler) (int64, string, error) {
		g, err := activity.NewCourseReviewGen(s, clock, users, courses, counts.Reviews)
		if err != nil {
			return 0, "", err
		}
		n, err := sink.WriteDocuments(ctx, p.writer, p.docs, activity.CourseReviewCollection, g.Next)
		return n, "", err
	})
	if err != nil {
		return err
	}

	return p.stage(ctx, activity.SupportTicketCollection, func(ctx context.Context, s *gen.Sampler) (int64, string, error) {
		g, err := activity.NewSupportTicketGen(s, clock, users, counts.Tickets)
		if err != nil {
			return 0, "", err
		}
		n, err := sink.WriteDocuments(ctx, p.writer, p.docs, activity.SupportTicketCollection, g.Next)
		return n, "", err
	})
}
