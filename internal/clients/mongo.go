package clients

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"internet-store/storeinit/internal/config"
	"internet-store/storeinit/internal/orchestrator"
	"internet-store/storeinit/internal/schema"
)

const mongoProbeName = "mongo"

// Server error codes the index phases care about.
const (
	codeNamespaceNotFound     = 26
	codeIndexNotFound         = 27
	codeIndexAlreadyExists    = 68
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
)

// MongoClient is the orchestrator.Store backed by a MongoDB database. The
// driver client is created on first use and shared by all calls.
type MongoClient struct {
	cfg     config.MongoConfig
	cb      *gobreaker.CircuitBreaker
	connect func(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error)

	mu     sync.Mutex
	client *mongo.Client
}

// NewMongoClient creates a MongoClient. No connection is made at construction
// time. The circuit breaker guards health probes only; bootstrap operations
// are attempted exactly once without it.
func NewMongoClient(cfg config.MongoConfig, cb *gobreaker.CircuitBreaker) *MongoClient {
	return &MongoClient{
		cfg:     cfg,
		cb:      cb,
		connect: realMongoConnect,
	}
}

func (c *MongoClient) database(ctx context.Context) (*mongo.Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		client, err := c.connect(ctx, c.cfg)
		if err != nil {
			return nil, err
		}
		c.client = client
	}
	return c.client.Database(c.cfg.Database), nil
}

func (c *MongoClient) collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := c.database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

// DatabaseName returns the configured database.
func (c *MongoClient) DatabaseName() string { return c.cfg.Database }

// CollectionNames lists the collections currently in the database.
func (c *MongoClient) CollectionNames(ctx context.Context) ([]string, error) {
	db, err := c.database(ctx)
	if err != nil {
		return nil, err
	}
	return db.ListCollectionNames(ctx, bson.D{})
}

// CreateCollection creates name explicitly. Creating an existing collection is
// an error.
func (c *MongoClient) CreateCollection(ctx context.Context, name string) error {
	db, err := c.database(ctx)
	if err != nil {
		return err
	}
	return db.CreateCollection(ctx, name)
}

// IndexNames lists the index names on collection. A missing collection has no
// indexes.
func (c *MongoClient) IndexNames(ctx context.Context, collection string) ([]string, error) {
	coll, err := c.collection(ctx, collection)
	if err != nil {
		return nil, err
	}

	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		if hasCode(err, codeNamespaceNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer cur.Close(ctx)

	var names []string
	for cur.Next(ctx) {
		var idx struct {
			Name string `bson:"name"`
		}
		if err := cur.Decode(&idx); err != nil {
			return nil, fmt.Errorf("decoding index on %s: %w", collection, err)
		}
		names = append(names, idx.Name)
	}
	return names, cur.Err()
}

// DropIndex drops the named index. A missing index or collection is reported
// as orchestrator.ErrIndexNotFound.
func (c *MongoClient) DropIndex(ctx context.Context, collection, name string) error {
	coll, err := c.collection(ctx, collection)
	if err != nil {
		return err
	}
	_, err = coll.Indexes().DropOne(ctx, name)
	return classifyDropError(err)
}

// CreateIndex creates the index described by spec. An existing index with the
// same name and definition is a no-op on the server; a different definition is
// reported as orchestrator.ErrIndexConflict.
func (c *MongoClient) CreateIndex(ctx context.Context, spec schema.IndexSpec) error {
	coll, err := c.collection(ctx, spec.Collection)
	if err != nil {
		return err
	}
	_, err = coll.Indexes().CreateOne(ctx, indexModel(spec))
	return classifyCreateError(err)
}

// Exists reports whether any document in collection matches filter.
func (c *MongoClient) Exists(ctx context.Context, collection string, filter bson.D) (bool, error) {
	coll, err := c.collection(ctx, collection)
	if err != nil {
		return false, err
	}
	err = coll.FindOne(ctx, filter, options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}})).Err()
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// CountDocuments counts the documents in collection matching filter.
func (c *MongoClient) CountDocuments(ctx context.Context, collection string, filter bson.D) (int64, error) {
	coll, err := c.collection(ctx, collection)
	if err != nil {
		return 0, err
	}
	return coll.CountDocuments(ctx, filter)
}

// InsertOne inserts a single document.
func (c *MongoClient) InsertOne(ctx context.Context, collection string, doc any) error {
	coll, err := c.collection(ctx, collection)
	if err != nil {
		return err
	}
	_, err = coll.InsertOne(ctx, doc)
	return err
}

// InsertMany inserts docs in one ordered batch.
func (c *MongoClient) InsertMany(ctx context.Context, collection string, docs []any) error {
	coll, err := c.collection(ctx, collection)
	if err != nil {
		return err
	}
	_, err = coll.InsertMany(ctx, docs)
	return err
}

// Probe pings the primary. It wraps the check in the circuit breaker so that
// persistent failures trip the breaker after three consecutive errors.
func (c *MongoClient) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		db, err := c.database(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		if err := db.Client().Ping(ctx, readpref.Primary()); err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}
		return nil, nil
	})

	latency := time.Since(start).Milliseconds()

	if err != nil {
		return orchestrator.ProbeResult{
			Name:      mongoProbeName,
			OK:        false,
			LatencyMs: latency,
			Error:     breakerMessage(err),
		}
	}

	return orchestrator.ProbeResult{
		Name:      mongoProbeName,
		OK:        true,
		LatencyMs: latency,
	}
}

// Close disconnects the driver client if one was opened.
func (c *MongoClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	return err
}

func indexModel(spec schema.IndexSpec) mongo.IndexModel {
	opts := options.Index().SetName(spec.Name)
	if spec.Unique {
		opts.SetUnique(true)
	}
	if len(spec.Weights) > 0 {
		opts.SetWeights(spec.Weights)
	}
	return mongo.IndexModel{Keys: spec.Keys, Options: opts}
}

func classifyDropError(err error) error {
	if err == nil {
		return nil
	}
	if hasCode(err, codeIndexNotFound, codeNamespaceNotFound) {
		return fmt.Errorf("%w: %w", orchestrator.ErrIndexNotFound, err)
	}
	return err
}

func classifyCreateError(err error) error {
	if err == nil {
		return nil
	}
	if hasCode(err, codeIndexAlreadyExists, codeIndexOptionsConflict, codeIndexKeySpecsConflict) {
		return fmt.Errorf("%w: %w", orchestrator.ErrIndexConflict, err)
	}
	return err
}

func hasCode(err error, codes ...int) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	for _, code := range codes {
		if se.HasErrorCode(code) {
			return true
		}
	}
	return false
}

// realMongoConnect builds a driver client from cfg with command tracing
// enabled.
func realMongoConnect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(cfg.AppName).
		SetMonitor(otelmongo.NewMonitor())
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout).
			SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	return client, nil
}
