package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"internet-store/storeinit/internal/schema"
)

const tracerName = "storeinit"

// Store is the document database being initialized. It is satisfied by
// *clients.MongoClient.
type Store interface {
	DatabaseName() string
	CollectionNames(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, name string) error
	IndexNames(ctx context.Context, collection string) ([]string, error)
	// DropIndex returns an error wrapping ErrIndexNotFound when the index is absent.
	DropIndex(ctx context.Context, collection, name string) error
	// CreateIndex returns an error wrapping ErrIndexConflict when a different
	// definition already occupies the name or keys.
	CreateIndex(ctx context.Context, spec schema.IndexSpec) error
	Exists(ctx context.Context, collection string, filter bson.D) (bool, error)
	CountDocuments(ctx context.Context, collection string, filter bson.D) (int64, error)
	InsertOne(ctx context.Context, collection string, doc any) error
	InsertMany(ctx context.Context, collection string, docs []any) error
	Probe(ctx context.Context) ProbeResult
}

// Locker serializes bootstrap runs across instances. It is satisfied by
// *clients.RedisClient.
type Locker interface {
	TryLock(ctx context.Context, token string) (bool, error)
	Unlock(ctx context.Context, token string) error
	Probe(ctx context.Context) ProbeResult
}

// Announcer tells other services a bootstrap completed. It is satisfied by
// *clients.NATSClient.
type Announcer interface {
	Announce(ctx context.Context, ev BootstrapEvent) error
	Probe(ctx context.Context) ProbeResult
}

// Settings carries the seed values and error policy of a run.
type Settings struct {
	AdminEmail        string
	AdminPasswordHash string
	SeedCatalog       bool
	// StrictIndexes turns unexpected index drop/create failures into fatal
	// errors instead of logging and skipping them.
	StrictIndexes bool
	// LockBackoff is the wait between attempts to take a held lock.
	LockBackoff time.Duration
}

// Option configures optional collaborators of an Orchestrator.
type Option func(*Orchestrator)

// WithLocker serializes runs through l.
func WithLocker(l Locker) Option { return func(o *Orchestrator) { o.locker = l } }

// WithAnnouncer publishes a BootstrapEvent through a after each successful run.
func WithAnnouncer(a Announcer) Option { return func(o *Orchestrator) { o.announcer = a } }

// WithReporter sends human-readable status lines to r.
func WithReporter(r Reporter) Option { return func(o *Orchestrator) { o.report = r } }

// WithClock overrides time.Now for seeded timestamps.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// Orchestrator runs the bootstrap phases and health probes.
type Orchestrator struct {
	store     Store
	locker    Locker
	announcer Announcer
	report    Reporter
	settings  Settings
	now       func() time.Time

	bootstrapInProgress atomic.Bool
	lastResult          *BootstrapResult
	resultMu            sync.RWMutex
}

// New constructs an Orchestrator for store. Locking and announcement are
// enabled only when the matching option is given.
func New(store Store, settings Settings, opts ...Option) *Orchestrator {
	if settings.LockBackoff <= 0 {
		settings.LockBackoff = 2 * time.Second
	}
	o := &Orchestrator{
		store:    store,
		settings: settings,
		report:   nopReporter{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type phase struct {
	name string
	run  func(ctx context.Context, result *BootstrapResult) (PhaseResult, error)
}

func (o *Orchestrator) phases() []phase {
	return []phase{
		{PhaseCollections, o.ensureCollections},
		{PhaseIndexCleanup, o.dropLegacyIndexes},
		{PhaseIndexes, o.createIndexes},
		{PhaseSeed, o.seed},
		{PhaseVerify, o.verify},
	}
}

// RunBootstrap runs the five bootstrap phases in order. A phase returning an
// error aborts the run: the error is returned alongside the partial result.
// Returns ErrBootstrapInProgress if a bootstrap is already running in this
// process.
func (o *Orchestrator) RunBootstrap(ctx context.Context) (*BootstrapResult, error) {
	if !o.bootstrapInProgress.CompareAndSwap(false, true) {
		return nil, ErrBootstrapInProgress
	}
	defer o.bootstrapInProgress.Store(false)

	start := time.Now()
	result := &BootstrapResult{
		RunID:     uuid.NewString(),
		Status:    StatusInProgress,
		Database:  o.store.DatabaseName(),
		StartedAt: o.now().UTC(),
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "storeinit.bootstrap")
	defer span.End()
	span.SetAttributes(
		attribute.String("bootstrap.run_id", result.RunID),
		attribute.String("db.name", result.Database),
	)

	slog.InfoContext(ctx, "bootstrap started", "run_id", result.RunID, "database", result.Database)
	o.report.Info("Starting database initialization...")

	err := o.runLocked(ctx, result)

	result.FinishedAt = o.now().UTC()
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "bootstrap failed")
		slog.ErrorContext(ctx, "bootstrap failed", "run_id", result.RunID, "error", err)
		o.report.Error("Database initialization failed: %v", err)
	} else {
		result.Status = StatusOK
		span.SetStatus(codes.Ok, "")
		slog.InfoContext(ctx, "bootstrap completed", "run_id", result.RunID, "status", result.Status)
		o.report.Success("Database initialization completed successfully!")
		o.announce(ctx, result)
	}
	span.SetAttributes(attribute.String("bootstrap.status", result.Status))
	recordRun(result.Status, time.Since(start))

	o.resultMu.Lock()
	o.lastResult = result
	o.resultMu.Unlock()

	return result, err
}

// runLocked takes the distributed lock when one is configured, then runs the
// phases. The lock is released on every path.
func (o *Orchestrator) runLocked(ctx context.Context, result *BootstrapResult) error {
	if o.locker != nil {
		release, err := o.acquireLock(ctx, result.RunID)
		if err != nil {
			result.Phases = append(result.Phases, PhaseResult{Name: PhaseLock, Status: StatusError, Error: err.Error()})
			return err
		}
		defer release()
		result.Phases = append(result.Phases, PhaseResult{Name: PhaseLock, Status: StatusOK})
	}

	for _, p := range o.phases() {
		if err := o.runPhase(ctx, p, result); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runPhase(ctx context.Context, p phase, result *BootstrapResult) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "storeinit.phase."+p.name)
	defer span.End()

	pr, err := p.run(ctx, result)
	pr.Name = p.name
	if err != nil {
		pr.Status = StatusError
		pr.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if pr.Status == "" {
		pr.Status = StatusOK
	}
	logPhase(ctx, pr)
	result.Phases = append(result.Phases, pr)

	if err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	return nil
}

// acquireLock polls the locker until the lock is taken or ctx ends. The
// returned func releases the lock with a fresh context so a cancelled run
// still frees it.
func (o *Orchestrator) acquireLock(ctx context.Context, token string) (func(), error) {
	for {
		ok, err := o.locker.TryLock(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("acquiring bootstrap lock: %w", err)
		}
		if ok {
			slog.DebugContext(ctx, "bootstrap lock acquired", "token", token)
			return func() {
				relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := o.locker.Unlock(relCtx, token); err != nil {
					slog.Warn("releasing bootstrap lock", "error", err)
				}
			}, nil
		}

		o.report.Info("Another bootstrap is running, waiting %s for the lock", o.settings.LockBackoff)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
		case <-time.After(o.settings.LockBackoff):
		}
	}
}

// announce publishes the completion event. Failure is recorded as the
// announce phase but leaves the run status untouched.
func (o *Orchestrator) announce(ctx context.Context, result *BootstrapResult) {
	if o.announcer == nil {
		return
	}
	ev := BootstrapEvent{
		RunID:       result.RunID,
		Database:    result.Database,
		Status:      result.Status,
		CompletedAt: result.FinishedAt,
	}
	if result.Report != nil {
		ev.DocumentCounts = result.Report.DocumentCounts
	}

	pr := PhaseResult{Name: PhaseAnnounce, Status: StatusOK}
	if err := o.announcer.Announce(ctx, ev); err != nil {
		pr.Status = StatusError
		pr.Error = err.Error()
		o.report.Warn("Could not announce bootstrap completion: %v", err)
	}
	logPhase(ctx, pr)
	result.Phases = append(result.Phases, pr)
}

// RunDeepHealth probes the store and any configured locker and announcer
// concurrently, returning a map of dependency name to ProbeResult.
func (o *Orchestrator) RunDeepHealth(ctx context.Context) map[string]ProbeResult {
	results := make(map[string]ProbeResult, 3)
	var mu sync.Mutex
	var g errgroup.Group

	probe := func(name string, fn func(context.Context) ProbeResult) {
		g.Go(func() error {
			p := fn(ctx)
			mu.Lock()
			results[name] = p
			mu.Unlock()
			return nil
		})
	}

	probe("mongo", o.store.Probe)
	if o.locker != nil {
		probe("redis", o.locker.Probe)
	}
	if o.announcer != nil {
		probe("nats", o.announcer.Probe)
	}

	_ = g.Wait()
	return results
}

// IsBootstrapInProgress returns true while a bootstrap run is active.
func (o *Orchestrator) IsBootstrapInProgress() bool {
	return o.bootstrapInProgress.Load()
}

// IsReady returns true if the last bootstrap completed with StatusOK.
func (o *Orchestrator) IsReady() bool {
	o.resultMu.RLock()
	defer o.resultMu.RUnlock()
	return o.lastResult != nil && o.lastResult.Status == StatusOK
}

// LastResult returns the result of the most recent run, or nil.
func (o *Orchestrator) LastResult() *BootstrapResult {
	o.resultMu.RLock()
	defer o.resultMu.RUnlock()
	return o.lastResult
}

// logPhase emits a trace-correlated log for a phase result.
// Errors log at WARN so they are visible without being fatal.
func logPhase(ctx context.Context, p PhaseResult) {
	switch p.Status {
	case StatusOK, StatusSkipped:
		slog.InfoContext(ctx, "bootstrap phase ok", "phase", p.Name, "status", p.Status, "actions", len(p.Actions))
	case StatusWarn:
		slog.WarnContext(ctx, "bootstrap phase completed with suppressed failures", "phase", p.Name, "failed", failedActions(p))
	default:
		slog.WarnContext(ctx, "bootstrap phase failed", "phase", p.Name, "error", p.Error)
	}
}

func failedActions(p PhaseResult) []string {
	var out []string
	for _, a := range p.Actions {
		if a.Outcome == OutcomeFailed {
			out = append(out, a.Target)
		}
	}
	return out
}

func hasOutcome(p PhaseResult, outcome string) bool {
	for _, a := range p.Actions {
		if a.Outcome == outcome {
			return true
		}
	}
	return false
}

// errorKind maps a store error to an action outcome using the sentinel
// errors. nil maps to success.
func errorKind(err error, success, expected string, sentinel error) string {
	switch {
	case err == nil:
		return success
	case errors.Is(err, sentinel):
		return expected
	default:
		return OutcomeFailed
	}
}
