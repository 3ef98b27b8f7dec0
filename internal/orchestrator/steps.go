package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"

	"internet-store/storeinit/internal/schema"
)

// ensureCollections creates every collection missing from the database.
// Listing or creation failures are fatal.
func (o *Orchestrator) ensureCollections(ctx context.Context, _ *BootstrapResult) (PhaseResult, error) {
	var pr PhaseResult

	existing, err := o.store.CollectionNames(ctx)
	if err != nil {
		return pr, fmt.Errorf("listing collections: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	for _, name := range schema.Collections {
		if have[name] {
			o.report.Info("Collection already exists: %s", name)
			pr.Actions = append(pr.Actions, Action{Target: name, Outcome: OutcomeExists})
			continue
		}
		if err := o.store.CreateCollection(ctx, name); err != nil {
			pr.Actions = append(pr.Actions, Action{Target: name, Outcome: OutcomeFailed, Error: err.Error()})
			return pr, fmt.Errorf("creating collection %s: %w", name, err)
		}
		o.report.Success("Created collection: %s", name)
		pr.Actions = append(pr.Actions, Action{Target: name, Outcome: OutcomeCreated})
	}
	return pr, nil
}

// dropLegacyIndexes removes indexes left by an earlier products schema. A
// missing index is a no-op; other failures are logged and skipped unless
// StrictIndexes is set.
func (o *Orchestrator) dropLegacyIndexes(ctx context.Context, _ *BootstrapResult) (PhaseResult, error) {
	var pr PhaseResult
	o.report.Info("Cleaning up existing indexes...")

	for _, ref := range schema.LegacyIndexes {
		err := o.store.DropIndex(ctx, ref.Collection, ref.Name)
		outcome := errorKind(err, OutcomeDropped, OutcomeAbsent, ErrIndexNotFound)
		recordIndexOp(ref.Collection, ref.Name, outcome)

		action := Action{Target: ref.Collection + "." + ref.Name, Outcome: outcome}
		switch outcome {
		case OutcomeDropped:
			o.report.Success("Dropped %s %s", ref.Label, ref.Name)
		case OutcomeAbsent:
			o.report.Info("No %s %s to drop", ref.Label, ref.Name)
		default:
			action.Error = err.Error()
			o.report.Warn("Could not drop %s %s: %v", ref.Label, ref.Name, err)
			slog.WarnContext(ctx, "index drop failed", "collection", ref.Collection, "index", ref.Name, "error", err)
		}
		pr.Actions = append(pr.Actions, action)

		if outcome == OutcomeFailed && o.settings.StrictIndexes {
			return pr, fmt.Errorf("dropping index %s: %w", action.Target, err)
		}
	}

	if len(failedActions(pr)) > 0 {
		pr.Status = StatusWarn
	}
	return pr, nil
}

// createIndexes creates each declared index independently. Every index is
// sent to the store, so a name that is already taken by a different
// definition comes back as a conflict instead of being trusted. Conflicts
// leave the phase in warn; other failures are logged and skipped unless
// StrictIndexes is set.
func (o *Orchestrator) createIndexes(ctx context.Context, _ *BootstrapResult) (PhaseResult, error) {
	var pr PhaseResult
	o.report.Info("Creating indexes...")

	present := make(map[string]map[string]bool)
	for _, spec := range schema.Indexes {
		names, ok := present[spec.Collection]
		if !ok {
			names = make(map[string]bool)
			list, err := o.store.IndexNames(ctx, spec.Collection)
			if err != nil {
				// Creation still gets attempted; its own error is what counts.
				slog.WarnContext(ctx, "listing indexes", "collection", spec.Collection, "error", err)
			}
			for _, n := range list {
				names[n] = true
			}
			present[spec.Collection] = names
		}

		target := spec.Collection + "." + spec.Name
		err := o.store.CreateIndex(ctx, spec)
		outcome := errorKind(err, OutcomeCreated, OutcomeConflict, ErrIndexConflict)
		if outcome == OutcomeCreated && names[spec.Name] {
			// Same name and same definition: the server accepted it as a no-op.
			outcome = OutcomeExists
		}
		recordIndexOp(spec.Collection, spec.Name, outcome)

		action := Action{Target: target, Outcome: outcome}
		switch outcome {
		case OutcomeCreated:
			names[spec.Name] = true
			o.report.Success("Created %s", spec.Label)
		case OutcomeExists:
			o.report.Info("%s already exists", capitalize(spec.Label))
		case OutcomeConflict:
			action.Error = err.Error()
			o.report.Warn("%s conflicts with an existing index: %v", capitalize(spec.Label), err)
			slog.WarnContext(ctx, "index definition conflict", "collection", spec.Collection, "index", spec.Name, "error", err)
		default:
			action.Error = err.Error()
			o.report.Warn("Could not create %s: %v", spec.Label, err)
			slog.WarnContext(ctx, "index create failed", "collection", spec.Collection, "index", spec.Name, "error", err)
		}
		pr.Actions = append(pr.Actions, action)

		if outcome == OutcomeFailed && o.settings.StrictIndexes {
			return pr, fmt.Errorf("creating index %s: %w", target, err)
		}
	}

	if len(failedActions(pr)) > 0 || hasOutcome(pr, OutcomeConflict) {
		pr.Status = StatusWarn
	}
	return pr, nil
}

// seed inserts the admin user when absent and the sample catalog when the
// products collection is empty. Every failure here is fatal.
func (o *Orchestrator) seed(ctx context.Context, _ *BootstrapResult) (PhaseResult, error) {
	var pr PhaseResult
	o.report.Info("Setting up initial data...")
	now := o.now().UTC()

	email := o.settings.AdminEmail
	exists, err := o.store.Exists(ctx, schema.Users, bson.D{{Key: "email", Value: email}})
	if err != nil {
		return pr, fmt.Errorf("looking up admin user: %w", err)
	}
	if exists {
		o.report.Info("Admin user already exists")
		pr.Actions = append(pr.Actions, Action{Target: schema.Users, Outcome: OutcomeExists})
	} else {
		admin := schema.AdminUser(email, o.settings.AdminPasswordHash, now)
		if err := o.store.InsertOne(ctx, schema.Users, admin); err != nil {
			return pr, fmt.Errorf("inserting admin user: %w", err)
		}
		recordSeeded(schema.Users, 1)
		o.report.Success("Created admin user %s", email)
		pr.Actions = append(pr.Actions, Action{Target: schema.Users, Outcome: OutcomeInserted})
	}

	if !o.settings.SeedCatalog {
		pr.Actions = append(pr.Actions, Action{Target: schema.Products, Outcome: OutcomeSkipped})
		return pr, nil
	}

	count, err := o.store.CountDocuments(ctx, schema.Products, bson.D{})
	if err != nil {
		return pr, fmt.Errorf("counting products: %w", err)
	}
	if count > 0 {
		o.report.Info("Products already exist in database")
		pr.Actions = append(pr.Actions, Action{Target: schema.Products, Outcome: OutcomeExists})
		return pr, nil
	}

	products := schema.SampleProducts(now)
	docs := make([]any, 0, len(products))
	for _, p := range products {
		docs = append(docs, p)
	}
	if err := o.store.InsertMany(ctx, schema.Products, docs); err != nil {
		return pr, fmt.Errorf("inserting sample products: %w", err)
	}
	recordSeeded(schema.Products, len(docs))
	o.report.Success("Inserted %d sample products", len(docs))
	pr.Actions = append(pr.Actions, Action{Target: schema.Products, Outcome: OutcomeInserted})
	return pr, nil
}

// verify reports document counts and per-collection index counts. It changes
// nothing; read failures still abort the run.
func (o *Orchestrator) verify(ctx context.Context, result *BootstrapResult) (PhaseResult, error) {
	var pr PhaseResult
	o.report.Info("Verifying data...")

	report := &Report{
		DocumentCounts: make(map[string]int64, len(schema.CountedCollections)),
		IndexCounts:    make(map[string]int),
	}

	for _, name := range schema.CountedCollections {
		n, err := o.store.CountDocuments(ctx, name, bson.D{})
		if err != nil {
			return pr, fmt.Errorf("counting %s: %w", name, err)
		}
		report.DocumentCounts[name] = n
		o.report.Info("%s count: %d", capitalize(name), n)
	}

	names, err := o.store.CollectionNames(ctx)
	if err != nil {
		return pr, fmt.Errorf("listing collections: %w", err)
	}
	o.report.Info("Current indexes:")
	for _, name := range names {
		indexes, err := o.store.IndexNames(ctx, name)
		if err != nil {
			return pr, fmt.Errorf("listing indexes on %s: %w", name, err)
		}
		report.IndexCounts[name] = len(indexes)
		o.report.Info("Collection %s has %d indexes", name, len(indexes))
	}

	result.Report = report
	return pr, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}
