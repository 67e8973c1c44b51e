// Package ignite provides a high-performance key/value data store designed
// for fast read and write operations, inspired by Bitcask. It combines an
// in-memory hash table (the index) with an append-only log structure on
// disk to achieve high throughput, for applications such as caching,
// session state, and embedded configuration stores that want a simple,
// reliable solution for durable key/value storage without running a
// separate database process.
package ignite

import (
	"context"

	"github.com/iamNilotpal/kvs/internal/engine"
	"github.com/iamNilotpal/kvs/pkg/logger"
	"github.com/iamNilotpal/kvs/pkg/options"
)

// Instance is the primary entry point for embedding ignitekv directly in a
// Go process, bypassing the network server entirely. It wraps a single
// engine.Store handle.
type Instance struct {
	store   *engine.Store
	options *options.Options
}

// NewInstance opens (or creates) a store at the configured data directory
// and returns an Instance ready to serve Set/Get/Remove calls.
func NewInstance(ctx context.Context, service string, opts ...options.OptionFunc) (*Instance, error) {
	log := logger.New(service)

	defaultOpts := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&defaultOpts)
	}

	store, err := engine.Open(ctx, &engine.Config{Logger: log, Options: &defaultOpts})
	if err != nil {
		return nil, err
	}

	return &Instance{store: store, options: &defaultOpts}, nil
}

// Set stores a key-value pair in the database. If the key already exists,
// its value is overwritten.
func (i *Instance) Set(key, value string) error {
	return i.store.Set(key, value)
}

// Get retrieves the value associated with key. ok is false if key is not present.
func (i *Instance) Get(key string) (value string, ok bool, err error) {
	return i.store.Get(key)
}

// Delete removes a key-value pair from the database. It returns an error
// if the key is not present.
func (i *Instance) Delete(key string) error {
	return i.store.Remove(key)
}

// Options returns the resolved configuration this instance was opened with,
// after defaults and every OptionFunc have been applied.
func (i *Instance) Options() options.Options {
	return *i.options
}

// Handle returns a cheaply cloneable engine handle sharing this instance's
// underlying store, for callers that want to hand out independent handles
// to multiple goroutines (each clone owns its own segment reader cache).
func (i *Instance) Handle() *engine.Store {
	return i.store.Clone()
}

// Close releases the underlying store's resources.
func (i *Instance) Close() error {
	return i.store.Close()
}
