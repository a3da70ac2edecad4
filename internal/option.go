package internal

import "github.com/halvard/tally/internal/docstore"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	store  docstore.Provider
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithStore overrides the document store built from configuration.
// Used by tests to inject an in-memory store.
func WithStore(store docstore.Provider) Option {
	return func(a *application) {
		a.store = store
	}
}
