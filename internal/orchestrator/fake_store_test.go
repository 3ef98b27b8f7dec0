package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"internet-store/storeinit/internal/schema"
)

var errDuplicateKey = errors.New("E11000 duplicate key error")

type memCollection struct {
	docs    []bson.M
	indexes map[string]bson.D // name -> keys
	unique  map[string]bool
	weights map[string]bson.D
}

func newMemCollection() *memCollection {
	return &memCollection{
		indexes: map[string]bson.D{"_id_": {{Key: "_id", Value: 1}}},
		unique:  map[string]bool{"_id_": true},
		weights: make(map[string]bson.D),
	}
}

// memStore is an in-memory Store that mimics the MongoDB behaviour the
// bootstrap depends on: implicit _id_ index, unique indexes, definition
// conflicts on create and collection auto-creation on insert.
type memStore struct {
	mu          sync.Mutex
	collections map[string]*memCollection
	// failOn maps an operation key such as "createIndex:products.price_index"
	// to the error it should return.
	failOn map[string]error
	calls  []string
	probe  ProbeResult
}

func newMemStore() *memStore {
	return &memStore{
		collections: make(map[string]*memCollection),
		failOn:      make(map[string]error),
		probe:       ProbeResult{Name: "mongo", OK: true},
	}
}

func (m *memStore) fail(op string) error {
	m.calls = append(m.calls, op)
	return m.failOn[op]
}

func (m *memStore) coll(name string) *memCollection {
	c, ok := m.collections[name]
	if !ok {
		c = newMemCollection()
		m.collections[name] = c
	}
	return c
}

func (m *memStore) DatabaseName() string { return "internet-store" }

func (m *memStore) CollectionNames(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("collectionNames"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m.collections))
	for n := range m.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memStore) CreateCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("createCollection:" + name); err != nil {
		return err
	}
	if _, ok := m.collections[name]; ok {
		return fmt.Errorf("collection %s already exists", name)
	}
	m.coll(name)
	return nil
}

func (m *memStore) IndexNames(_ context.Context, collection string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("indexNames:" + collection); err != nil {
		return nil, err
	}
	c, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}
	names := make([]string, 0, len(c.indexes))
	for n := range c.indexes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memStore) DropIndex(_ context.Context, collection, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("dropIndex:" + collection + "." + name); err != nil {
		return err
	}
	c, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("%w: ns %s not found", ErrIndexNotFound, collection)
	}
	if _, ok := c.indexes[name]; !ok {
		return fmt.Errorf("%w: index %s not found", ErrIndexNotFound, name)
	}
	delete(c.indexes, name)
	delete(c.unique, name)
	delete(c.weights, name)
	return nil
}

func (m *memStore) CreateIndex(_ context.Context, spec schema.IndexSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("createIndex:" + spec.Collection + "." + spec.Name); err != nil {
		return err
	}
	c := m.coll(spec.Collection)
	if keys, ok := c.indexes[spec.Name]; ok {
		switch {
		case !reflect.DeepEqual(keys, spec.Keys):
			return fmt.Errorf("%w: index %s has different keys", ErrIndexConflict, spec.Name)
		case c.unique[spec.Name] != spec.Unique:
			return fmt.Errorf("%w: index %s has different unique option", ErrIndexConflict, spec.Name)
		case !reflect.DeepEqual(c.weights[spec.Name], spec.Weights):
			return fmt.Errorf("%w: index %s has different weights", ErrIndexConflict, spec.Name)
		}
		return nil
	}
	for name, keys := range c.indexes {
		if reflect.DeepEqual(keys, spec.Keys) {
			return fmt.Errorf("%w: index with same keys exists as %s", ErrIndexConflict, name)
		}
	}
	c.indexes[spec.Name] = spec.Keys
	if spec.Unique {
		c.unique[spec.Name] = true
	}
	if len(spec.Weights) > 0 {
		c.weights[spec.Name] = spec.Weights
	}
	return nil
}

func (m *memStore) Exists(_ context.Context, collection string, filter bson.D) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("exists:" + collection); err != nil {
		return false, err
	}
	c, ok := m.collections[collection]
	if !ok {
		return false, nil
	}
	for _, doc := range c.docs {
		if matches(doc, filter) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CountDocuments(_ context.Context, collection string, filter bson.D) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("count:" + collection); err != nil {
		return 0, err
	}
	c, ok := m.collections[collection]
	if !ok {
		return 0, nil
	}
	var n int64
	for _, doc := range c.docs {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) InsertOne(_ context.Context, collection string, doc any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("insertOne:" + collection); err != nil {
		return err
	}
	return m.insert(collection, doc)
}

func (m *memStore) InsertMany(_ context.Context, collection string, docs []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("insertMany:" + collection); err != nil {
		return err
	}
	for _, d := range docs {
		if err := m.insert(collection, d); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) Probe(_ context.Context) ProbeResult { return m.probe }

func (m *memStore) insert(collection string, doc any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	var decoded bson.M
	if err := bson.Unmarshal(raw, &decoded); err != nil {
		return err
	}

	c := m.coll(collection)
	for name := range c.unique {
		keys := c.indexes[name]
		if len(keys) == 0 || keys[0].Key == "_id" {
			continue
		}
		field := keys[0].Key
		for _, existing := range c.docs {
			if reflect.DeepEqual(existing[field], decoded[field]) {
				return fmt.Errorf("%w: collection %s index %s", errDuplicateKey, collection, name)
			}
		}
	}
	c.docs = append(c.docs, decoded)
	return nil
}

// docs returns a copy of the documents stored in collection.
func (m *memStore) docs(collection string) []bson.M {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil
	}
	return append([]bson.M(nil), c.docs...)
}

func (m *memStore) callCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (m *memStore) indexKeys(collection string) map[string]bson.D {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bson.D)
	if c, ok := m.collections[collection]; ok {
		for k, v := range c.indexes {
			out[k] = v
		}
	}
	return out
}

func matches(doc bson.M, filter bson.D) bool {
	for _, e := range filter {
		if !reflect.DeepEqual(doc[e.Key], e.Value) {
			return false
		}
	}
	return true
}

// blockingStore blocks in CollectionNames until released. Used to test the
// concurrent bootstrap guard.
type blockingStore struct {
	*memStore
	ready chan struct{} // closed when CollectionNames is entered
	done  chan struct{} // close to unblock
	once  sync.Once
}

func (b *blockingStore) CollectionNames(ctx context.Context) ([]string, error) {
	b.once.Do(func() {
		close(b.ready)
		<-b.done
	})
	return b.memStore.CollectionNames(ctx)
}
