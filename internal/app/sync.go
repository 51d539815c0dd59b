package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/portfolio-sync/pkg/types"
	"go.uber.org/zap"
)

// Integration names accepted by RunSync.
const (
	IntegrationOura     = "oura"
	IntegrationWakaTime = "wakatime"
	IntegrationMusic    = "music"
	IntegrationKalshi   = "kalshi"
)

// Integrations lists every integration in run order.
//
//nolint:gochecknoglobals // read-only
var Integrations = []string{IntegrationOura, IntegrationWakaTime, IntegrationMusic, IntegrationKalshi}

// Status is the outcome of one integration run.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// IntegrationResult describes one integration run.
type IntegrationResult struct {
	Name     string
	Status   Status
	Records  int
	Warnings int
	Duration time.Duration
	Err      error
}

// SyncReport describes a whole sync run.
type SyncReport struct {
	RunID     string
	StartedAt time.Time
	Results   []IntegrationResult
}

// Fetched reports whether any integration produced data.
func (r *SyncReport) Fetched() bool {
	for _, res := range r.Results {
		if res.Status == StatusOK || res.Status == StatusPartial {
			return true
		}
	}
	return false
}

// Err returns nil when at least one integration fetched data. Otherwise it
// joins the failures, or reports that nothing was configured.
func (r *SyncReport) Err() error {
	if r.Fetched() {
		return nil
	}

	var errs []error
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			errs = append(errs, fmt.Errorf("%s: %w", res.Name, res.Err))
		}
	}
	if len(errs) == 0 {
		return errors.New("no integration fetched anything")
	}
	return errors.Join(errs...)
}

// RunSync runs the named integrations in order, or all of them when names is
// empty. A failing integration never stops the next one. The returned error
// is only for invalid names.
func (a *App) RunSync(ctx context.Context, names []string) (*SyncReport, error) {
	selected, err := selectIntegrations(names)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger := a.logger.With(zap.String("run-id", report.RunID))
	logger.Info("sync-started", zap.Strings("integrations", selected))

	for _, name := range selected {
		if ctx.Err() != nil {
			report.Results = append(report.Results, IntegrationResult{Name: name, Status: StatusFailed, Err: ctx.Err()})
			continue
		}

		start := time.Now()
		res := a.runIntegration(ctx, name)
		res.Name = name
		res.Duration = time.Since(start)

		SyncDuration.WithLabelValues(name).Observe(res.Duration.Seconds())
		SyncRunsTotal.WithLabelValues(name, string(res.Status)).Inc()
		SyncRecordsTotal.WithLabelValues(name).Add(float64(res.Records))

		logResult(logger, res)
		report.Results = append(report.Results, res)
	}

	logger.Info("sync-complete",
		zap.Bool("fetched", report.Fetched()),
		zap.Duration("duration", time.Since(report.StartedAt)))

	return report, nil
}

func selectIntegrations(names []string) ([]string, error) {
	if len(names) == 0 {
		return Integrations, nil
	}

	selected := make([]string, 0, len(names))
	seen := make(map[string]bool)
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		if !isIntegration(name) {
			return nil, fmt.Errorf("unknown integration %q (valid: %s)", raw, strings.Join(Integrations, ", "))
		}
		seen[name] = true
		selected = append(selected, name)
	}
	return selected, nil
}

func isIntegration(name string) bool {
	for _, known := range Integrations {
		if known == name {
			return true
		}
	}
	return false
}

func (a *App) runIntegration(ctx context.Context, name string) IntegrationResult {
	switch name {
	case IntegrationOura:
		return a.syncOura(ctx)
	case IntegrationWakaTime:
		return a.syncWakaTime(ctx)
	case IntegrationMusic:
		return a.syncMusic(ctx)
	case IntegrationKalshi:
		return a.syncKalshi(ctx)
	}
	return IntegrationResult{Status: StatusFailed, Err: fmt.Errorf("unknown integration %q", name)}
}

func (a *App) syncOura(ctx context.Context) IntegrationResult {
	report := a.ouraSync.Sync(ctx)
	res := IntegrationResult{Records: report.Total(), Warnings: len(report.Failed), Err: report.Err()}

	switch {
	case len(report.Failed) == 0:
		res.Status = StatusOK
	case allMissingCredentials(report.Failed):
		res.Status = StatusSkipped
	case res.Records > 0:
		res.Status = StatusPartial
	default:
		res.Status = StatusFailed
	}
	return res
}

func (a *App) syncWakaTime(ctx context.Context) IntegrationResult {
	result, err := a.wakatimeSync.Sync(ctx)
	if err != nil {
		return failure(err)
	}

	res := IntegrationResult{Status: StatusOK}
	if result.Updated {
		res.Records = 1
	}
	return res
}

func (a *App) syncMusic(ctx context.Context) IntegrationResult {
	if a.musicSync == nil {
		return IntegrationResult{Status: StatusSkipped, Err: &types.NoCredentialsError{Service: "lastfm"}}
	}

	songs, err := a.musicSync.Sync(ctx)
	if err != nil {
		return failure(err)
	}
	return IntegrationResult{Status: StatusOK, Records: len(songs)}
}

func (a *App) syncKalshi(ctx context.Context) IntegrationResult {
	svc, err := a.Positions()
	if errors.Is(err, errKalshiNotConfigured) {
		return IntegrationResult{Status: StatusSkipped, Err: &types.NoCredentialsError{Service: "kalshi"}}
	}
	if err != nil {
		return IntegrationResult{Status: StatusFailed, Err: err}
	}

	result, err := svc.Sync(ctx)
	if err != nil {
		return failure(err)
	}

	return IntegrationResult{
		Status:   StatusOK,
		Records:  len(result.Positions),
		Warnings: len(result.Gaps),
		Err:      result.GapError(),
	}
}

// failure classifies err: missing credentials skip the integration,
// anything else fails it.
func failure(err error) IntegrationResult {
	var noCreds *types.NoCredentialsError
	if errors.As(err, &noCreds) {
		return IntegrationResult{Status: StatusSkipped, Err: err}
	}
	return IntegrationResult{Status: StatusFailed, Err: err}
}

func allMissingCredentials(failed map[string]error) bool {
	if len(failed) == 0 {
		return false
	}
	for _, err := range failed {
		var noCreds *types.NoCredentialsError
		if !errors.As(err, &noCreds) {
			return false
		}
	}
	return true
}

func logResult(logger *zap.Logger, res IntegrationResult) {
	fields := []zap.Field{
		zap.String("integration", res.Name),
		zap.String("status", string(res.Status)),
		zap.Int("records", res.Records),
		zap.Duration("duration", res.Duration),
	}

	switch res.Status {
	case StatusOK:
		if res.Warnings > 0 {
			logger.Warn("integration-synced-with-warnings", append(fields, zap.Int("warnings", res.Warnings), zap.Error(res.Err))...)
			return
		}
		logger.Info("integration-synced", fields...)
	case StatusSkipped:
		logger.Info("integration-skipped", append(fields, zap.Error(res.Err))...)
	case StatusPartial:
		logger.Warn("integration-partially-synced", append(fields, zap.Error(res.Err))...)
	default:
		var authErr *types.AuthFailure
		var credErr *types.CredentialError
		var signErr *types.SigningError
		var httpErr *types.TransientHTTPError
		switch {
		case errors.As(res.Err, &authErr):
			fields = append(fields, zap.String("reason", "auth"), zap.Int("status-code", authErr.StatusCode))
		case errors.As(res.Err, &credErr):
			fields = append(fields, zap.String("reason", "credentials"))
		case errors.As(res.Err, &signErr):
			fields = append(fields, zap.String("reason", "signing"))
		case errors.As(res.Err, &httpErr):
			fields = append(fields, zap.String("reason", "http"), zap.Int("status-code", httpErr.StatusCode))
		}
		logger.Error("integration-failed", append(fields, zap.Error(res.Err))...)
	}
}
