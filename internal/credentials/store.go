package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mselser95/portfolio-sync/internal/storage"
	"go.uber.org/zap"
)

// Source identifies the tier a token set was loaded from.
type Source int

const (
	SourceNone Source = iota
	SourceEnv
	SourceDatabase
	SourceFile
)

func (s Source) String() string {
	switch s {
	case SourceEnv:
		return "env"
	case SourceDatabase:
		return "database"
	case SourceFile:
		return "file"
	default:
		return "none"
	}
}

// Config holds store configuration.
type Config struct {
	// DB is the durable tier. Nil disables it.
	DB storage.TokenStore
	// Dir holds <service>_tokens.json files.
	Dir    string
	Logger *zap.Logger
}

// Store loads and saves token sets. Lookup order is env, database, file;
// the first non-empty set wins. Backend failures never propagate from Load.
type Store struct {
	db     storage.TokenStore
	dir    string
	logger *zap.Logger
}

// New creates a new credential store.
func New(cfg Config) *Store {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	return &Store{
		db:     cfg.DB,
		dir:    dir,
		logger: cfg.Logger,
	}
}

// EnvVar returns the environment variable consulted for service.
func EnvVar(service string) string {
	return strings.ToUpper(service) + "_TOKENS_JSON"
}

// FilePath returns the local token file for service.
func (s *Store) FilePath(service string) string {
	return filepath.Join(s.dir, service+"_tokens.json")
}

// Load returns the first non-empty token set found for service, or an empty
// set and SourceNone.
func (s *Store) Load(ctx context.Context, service string) (TokenSet, Source) {
	if tokens := s.loadEnv(service); !tokens.IsEmpty() {
		s.loaded(service, SourceEnv)
		return tokens, SourceEnv
	}

	if tokens := s.loadDB(ctx, service); !tokens.IsEmpty() {
		s.loaded(service, SourceDatabase)
		return tokens, SourceDatabase
	}

	if tokens := s.loadFile(service); !tokens.IsEmpty() {
		s.loaded(service, SourceFile)
		return tokens, SourceFile
	}

	s.logger.Warn("tokens-not-found", zap.String("service", service))
	LoadsTotal.WithLabelValues(service, SourceNone.String()).Inc()
	return TokenSet{}, SourceNone
}

// Save writes tokens to the database and the local file. Each tier is
// best-effort; an error is returned only when every available tier failed.
// The environment is never written. Saving an empty set is a no-op.
func (s *Store) Save(ctx context.Context, service string, tokens TokenSet) error {
	if tokens.IsEmpty() {
		s.logger.Debug("tokens-save-skipped-empty", zap.String("service", service))
		return nil
	}

	blob, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("marshal %s tokens: %w", service, err)
	}

	var errs []error

	if s.db != nil {
		err = s.db.SaveTokens(ctx, service, blob)
		if err != nil {
			SaveErrorsTotal.WithLabelValues(service, SourceDatabase.String()).Inc()
			s.logger.Error("tokens-db-save-failed",
				zap.String("service", service),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	err = s.saveFile(service, blob)
	if err != nil {
		SaveErrorsTotal.WithLabelValues(service, SourceFile.String()).Inc()
		s.logger.Error("tokens-file-save-failed",
			zap.String("service", service),
			zap.String("path", s.FilePath(service)),
			zap.Error(err))
		errs = append(errs, err)
	}

	tiers := 1
	if s.db != nil {
		tiers++
	}
	if len(errs) == tiers {
		return fmt.Errorf("save %s tokens: %w", service, errors.Join(errs...))
	}

	s.logger.Info("tokens-saved", zap.String("service", service))
	return nil
}

func (s *Store) loaded(service string, source Source) {
	LoadsTotal.WithLabelValues(service, source.String()).Inc()
	s.logger.Debug("tokens-loaded",
		zap.String("service", service),
		zap.String("source", source.String()))
}

func (s *Store) loadEnv(service string) TokenSet {
	raw := os.Getenv(EnvVar(service))
	if raw == "" {
		return nil
	}

	tokens, err := decode([]byte(raw))
	if err != nil {
		s.logger.Warn("tokens-env-invalid",
			zap.String("service", service),
			zap.String("var", EnvVar(service)),
			zap.Error(err))
		return nil
	}
	return tokens
}

func (s *Store) loadDB(ctx context.Context, service string) TokenSet {
	if s.db == nil {
		return nil
	}

	blob, found, err := s.db.LoadTokens(ctx, service)
	if err != nil {
		s.logger.Warn("tokens-db-load-failed",
			zap.String("service", service),
			zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}

	tokens, err := decode(blob)
	if err != nil {
		s.logger.Warn("tokens-db-invalid",
			zap.String("service", service),
			zap.Error(err))
		return nil
	}
	return tokens
}

func (s *Store) loadFile(service string) TokenSet {
	blob, err := os.ReadFile(s.FilePath(service))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		s.logger.Warn("tokens-file-load-failed",
			zap.String("service", service),
			zap.Error(err))
		return nil
	}

	tokens, err := decode(blob)
	if err != nil {
		s.logger.Warn("tokens-file-invalid",
			zap.String("service", service),
			zap.Error(err))
		return nil
	}
	return tokens
}

func (s *Store) saveFile(service string, blob []byte) error {
	err := os.MkdirAll(s.dir, 0o700)
	if err != nil {
		return err
	}

	path := s.FilePath(service)
	tmp := path + ".tmp"
	err = os.WriteFile(tmp, blob, 0o600)
	if err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func decode(blob []byte) (TokenSet, error) {
	var tokens TokenSet
	err := json.Unmarshal(blob, &tokens)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
