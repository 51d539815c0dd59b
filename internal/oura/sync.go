package oura

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mselser95/portfolio-sync/internal/storage"
	"go.uber.org/zap"
)

// DataType maps a stored data type name to its collection endpoint.
type DataType struct {
	Name     string
	Endpoint string
}

// DailyTypes are the date-ranged collections stored one document per day.
//
//nolint:gochecknoglobals // static table
var DailyTypes = []DataType{
	{Name: "activity", Endpoint: "daily_activity"},
	{Name: "sleep_daily", Endpoint: "daily_sleep"},
	{Name: "readiness", Endpoint: "daily_readiness"},
	{Name: "daily_stress", Endpoint: "daily_stress"},
	{Name: "daily_spo2", Endpoint: "daily_spo2"},
	{Name: "daily_resilience", Endpoint: "daily_resilience"},
	{Name: "cardio_age", Endpoint: "daily_cardiovascular_age"},
	{Name: "sleep_detailed", Endpoint: "sleep"},
	{Name: "sleep_time", Endpoint: "sleep_time"},
	{Name: "workout", Endpoint: "workout"},
}

const (
	HeartRateType    = "heart_rate"
	PersonalInfoType = "personal_info"

	dateLayout = "2006-01-02"
)

// Fetcher is the read side of the Oura API.
type Fetcher interface {
	Collection(ctx context.Context, endpoint string, query url.Values) ([]json.RawMessage, error)
	PersonalInfo(ctx context.Context) (json.RawMessage, error)
}

// SyncerConfig holds syncer configuration.
type SyncerConfig struct {
	Client       Fetcher
	Store        storage.OuraStore
	LookbackDays int
	Logger       *zap.Logger
	Now          func() time.Time
}

// Syncer copies recent Oura documents into storage. Each data type is
// fetched and stored independently; one failing never stops the others.
type Syncer struct {
	client   Fetcher
	store    storage.OuraStore
	lookback int
	logger   *zap.Logger
	now      func() time.Time
}

// NewSyncer creates a new syncer.
func NewSyncer(cfg SyncerConfig) *Syncer {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Syncer{
		client:   cfg.Client,
		store:    cfg.Store,
		lookback: cfg.LookbackDays,
		logger:   cfg.Logger,
		now:      now,
	}
}

// Report summarizes one sync run.
type Report struct {
	// Stored counts documents written per data type.
	Stored map[string]int
	// Failed holds the error per data type that could not be synced.
	Failed map[string]error
}

// Total returns the number of stored documents.
func (r Report) Total() int {
	n := 0
	for _, v := range r.Stored {
		n += v
	}
	return n
}

// Err joins per-type failures in name order, or returns nil.
func (r Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}
	sort.Strings(names)

	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("%s: %w", name, r.Failed[name]))
	}
	return errors.Join(errs...)
}

// Window returns the [start, end] date range synced: lookback days before
// today through tomorrow.
func (s *Syncer) Window() (start, end string) {
	today := s.now()
	return today.AddDate(0, 0, -s.lookback).Format(dateLayout), today.AddDate(0, 0, 1).Format(dateLayout)
}

// Sync fetches every data type in the window and upserts it.
func (s *Syncer) Sync(ctx context.Context) Report {
	report := Report{Stored: make(map[string]int), Failed: make(map[string]error)}
	start, end := s.Window()

	s.logger.Info("oura-sync-started", zap.String("start", start), zap.String("end", end))

	for _, dt := range DailyTypes {
		if ctx.Err() != nil {
			report.Failed[dt.Name] = ctx.Err()
			continue
		}

		stored, err := s.syncDaily(ctx, dt, start, end)
		s.record(&report, dt.Name, stored, err)
	}

	stored, err := s.syncHeartRate(ctx, start, end)
	s.record(&report, HeartRateType, stored, err)

	stored, err = s.syncPersonalInfo(ctx)
	s.record(&report, PersonalInfoType, stored, err)

	s.logger.Info("oura-sync-complete",
		zap.Int("stored", report.Total()),
		zap.Int("failed-types", len(report.Failed)))

	return report
}

func (s *Syncer) record(report *Report, name string, stored int, err error) {
	report.Stored[name] = stored
	if err != nil {
		report.Failed[name] = err
		s.logger.Warn("oura-type-failed", zap.String("data-type", name), zap.Error(err))
		return
	}
	s.logger.Debug("oura-type-synced", zap.String("data-type", name), zap.Int("stored", stored))
}

func (s *Syncer) syncDaily(ctx context.Context, dt DataType, start, end string) (int, error) {
	items, err := s.client.Collection(ctx, dt.Endpoint, url.Values{
		"start_date": {start},
		"end_date":   {end},
	})
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, item := range items {
		day, ok := DayOf(item)
		if !ok {
			s.logger.Debug("oura-item-without-day", zap.String("data-type", dt.Name))
			continue
		}

		err = s.store.UpsertOura(ctx, dt.Name, day, []byte(item))
		if err != nil {
			return stored, err
		}
		stored++
	}

	return stored, nil
}

func (s *Syncer) syncHeartRate(ctx context.Context, start, end string) (int, error) {
	items, err := s.client.Collection(ctx, "heartrate", url.Values{
		"start_datetime": {start + "T00:00:00"},
		"end_datetime":   {end + "T23:59:59"},
	})
	if err != nil {
		return 0, err
	}

	byDay := GroupByDay(items)
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	stored := 0
	for _, day := range days {
		blob, err := json.Marshal(map[string][]json.RawMessage{"data": byDay[day]})
		if err != nil {
			return stored, fmt.Errorf("encode heart rate %s: %w", day, err)
		}

		err = s.store.UpsertOura(ctx, HeartRateType, day, blob)
		if err != nil {
			return stored, err
		}
		stored++
	}

	return stored, nil
}

func (s *Syncer) syncPersonalInfo(ctx context.Context) (int, error) {
	info, err := s.client.PersonalInfo(ctx)
	if err != nil {
		return 0, err
	}

	err = s.store.UpsertOura(ctx, PersonalInfoType, s.now().Format(dateLayout), []byte(info))
	if err != nil {
		return 0, err
	}
	return 1, nil
}

type dayFields struct {
	Day           string `json:"day"`
	Timestamp     string `json:"timestamp"`
	StartDatetime string `json:"start_datetime"`
}

// DayOf extracts the calendar day of a document from day, then timestamp,
// then start_datetime.
func DayOf(item json.RawMessage) (string, bool) {
	var f dayFields
	err := json.Unmarshal(item, &f)
	if err != nil {
		return "", false
	}

	switch {
	case f.Day != "":
		return f.Day, true
	case f.Timestamp != "":
		return datePart(f.Timestamp), true
	case f.StartDatetime != "":
		return datePart(f.StartDatetime), true
	default:
		return "", false
	}
}

// GroupByDay buckets documents by DayOf, keeping input order per day.
func GroupByDay(items []json.RawMessage) map[string][]json.RawMessage {
	byDay := make(map[string][]json.RawMessage)
	for _, item := range items {
		day, ok := DayOf(item)
		if !ok {
			continue
		}
		byDay[day] = append(byDay[day], item)
	}
	return byDay
}

func datePart(ts string) string {
	day, _, _ := strings.Cut(ts, "T")
	return day
}
