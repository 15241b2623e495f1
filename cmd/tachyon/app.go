package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Veraticus/tachyon/internal/config"
	"github.com/Veraticus/tachyon/internal/docstore"
	"github.com/Veraticus/tachyon/internal/llm"
	"github.com/Veraticus/tachyon/internal/metrics"
	"github.com/Veraticus/tachyon/internal/mongostore"
	"github.com/Veraticus/tachyon/internal/service"
	"github.com/Veraticus/tachyon/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

// stores holds the process-scoped store connections for one command.
// Close releases every connection that was opened.
type stores struct {
	records   service.RecordStore
	documents service.DocumentReader
	closers   []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}
}

// openStores connects the configured record and document backends, sharing
// a connection when both use the same one.
func openStores(ctx context.Context, c *config.Config) (*stores, error) {
	s := &stores{}

	var (
		sqlite *storage.SQLiteStorage
		mongo  *mongostore.Store
	)
	openSQLite := func() (*storage.SQLiteStorage, error) {
		if sqlite != nil {
			return sqlite, nil
		}
		store, err := initStorage(ctx, c.Database.Path)
		if err != nil {
			return nil, err
		}
		store.SetQueryTimeout(c.Store.Timeout)
		sqlite = store
		s.closers = append(s.closers, store.Close)
		return store, nil
	}
	openMongo := func() (*mongostore.Store, error) {
		if mongo != nil {
			return mongo, nil
		}
		if err := c.RequireMongo(); err != nil {
			return nil, err
		}
		store, err := mongostore.New(ctx, mongostore.Options{
			URI:        c.Mongo.URI,
			Database:   c.Mongo.Database,
			Collection: c.Mongo.Collection,
			Timeout:    c.Store.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		mongo = store
		s.closers = append(s.closers, func() error { return store.Close(context.Background()) })
		return store, nil
	}

	var err error
	switch c.Store.Records {
	case config.BackendMongo:
		s.records, err = openMongo()
	default:
		s.records, err = openSQLite()
	}
	if err != nil {
		s.Close()
		return nil, err
	}

	switch c.Store.Documents {
	case config.BackendMongo:
		s.documents, err = openMongo()
	case config.BackendFirestore:
		if err = c.RequireGoogleProject(); err == nil {
			var reader *docstore.Reader
			reader, err = docstore.NewFirestoreReader(ctx, c.Google.Project, c.Google.CredentialsFile, c.Store.Timeout, logger)
			if err == nil {
				s.documents = reader
				s.closers = append(s.closers, reader.Close)
			}
		}
	default:
		s.documents, err = openSQLite()
	}
	if err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// initStorage opens the SQLite database and brings its schema up to date.
func initStorage(ctx context.Context, path string) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// llmConfig maps the oracle settings onto the llm package config.
func llmConfig(c *config.Config) llm.Config {
	return llm.Config{
		Provider:        c.LLM.Provider,
		APIKey:          c.LLM.APIKey,
		Model:           c.LLM.Model,
		Project:         c.Google.Project,
		Location:        c.LLM.Location,
		BaseURL:         c.LLM.BaseURL,
		CredentialsFile: c.Google.CredentialsFile,
		MaxRetries:      c.LLM.MaxRetries,
		RetryDelay:      c.LLM.RetryDelay,
		Timeout:         c.LLM.Timeout,
		RateLimit:       c.LLM.RateLimit,
		Temperature:     c.LLM.Temperature,
		MaxTokens:       c.LLM.MaxTokens,
	}
}

// newOracle builds the rate limited, retrying oracle shared by every step.
func newOracle(ctx context.Context, c *config.Config, m *metrics.Metrics) (*llm.Oracle, error) {
	lc := llmConfig(c)
	client, err := llm.NewClient(ctx, lc)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle client: %w", err)
	}
	return llm.NewOracle(client, lc, logger, m), nil
}

// newMetrics registers metrics on a fresh registry so each command starts clean.
func newMetrics() (*metrics.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return metrics.New(reg), reg
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Debug("close failed", "error", err)
	}
}
