package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"awaves/internal/types"
)

// Scanner is the source of a full-dataset snapshot, normally
// store.ForecastStore.ScanAll.
type Scanner interface {
	ScanAll(ctx context.Context) ([]types.ForecastRecord, error)
}

// snapshotState is the immutable value swapped on every refresh. The
// records slice and date index are always rebuilt together; partial
// updates are impossible because readers only ever see one pointer.
type snapshotState struct {
	records    []types.ForecastRecord
	dateIndex  map[string][]types.ForecastRecord
	generation uint64
	fetchedAt  time.Time
}

// Snapshot is the process-local, time-bounded cache of the entire
// current forecast dataset, plus a derived date index for O(1)
// date-filtered lookup.
//
// Refresh is coalesced through singleflight: when several callers race
// past an expired TTL, exactly one scan runs and the rest await its
// result.
type Snapshot struct {
	scanner Scanner
	ttl     time.Duration
	clock   types.Clock
	logger  *slog.Logger

	state  atomic.Pointer[snapshotState]
	group  singleflight.Group
	genSeq atomic.Uint64
}

// NewSnapshot creates an empty snapshot cache; the first Get triggers
// a scan.
func NewSnapshot(scanner Scanner, ttl time.Duration, clock types.Clock, logger *slog.Logger) *Snapshot {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshot{scanner: scanner, ttl: ttl, clock: clock, logger: logger}
}

// Generation returns the version stamp of the current snapshot. Results
// derived from generation N must be discarded once Generation reports
// N+1.
func (s *Snapshot) Generation() uint64 {
	if st := s.state.Load(); st != nil {
		return st.generation
	}
	return 0
}

// Get returns the full current dataset, refreshing first when the
// snapshot is stale or absent. On refresh failure the last good
// snapshot is served if one exists; otherwise the error propagates.
func (s *Snapshot) Get(ctx context.Context) ([]types.ForecastRecord, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return st.records, nil
}

// GetByDate returns the records whose surf timestamp starts with the
// given "YYYY-MM-DD" date, refreshing first when stale.
func (s *Snapshot) GetByDate(ctx context.Context, date string) ([]types.ForecastRecord, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return st.dateIndex[date], nil
}

// Refresh forces a scan regardless of TTL, still coalesced with any
// in-flight refresh. Used by the cache-warm hook at startup and after
// ingestion.
func (s *Snapshot) Refresh(ctx context.Context) error {
	_, err := s.refresh(ctx)
	return err
}

func (s *Snapshot) current(ctx context.Context) (*snapshotState, error) {
	if st := s.state.Load(); st != nil && s.clock.Now().Sub(st.fetchedAt) < s.ttl {
		return st, nil
	}

	st, err := s.refresh(ctx)
	if err != nil {
		// Degrade to the last good snapshot when one exists.
		if prev := s.state.Load(); prev != nil {
			s.logger.WarnContext(ctx, "snapshot refresh failed, serving stale data",
				"age", s.clock.Now().Sub(prev.fetchedAt).String(),
				"error", err,
			)
			return prev, nil
		}
		return nil, err
	}
	return st, nil
}

// refresh performs (or joins) the single in-flight scan and swaps the
// snapshot+index pair atomically.
func (s *Snapshot) refresh(ctx context.Context) (*snapshotState, error) {
	v, err, _ := s.group.Do("refresh", func() (any, error) {
		records, err := s.scanner.ScanAll(ctx)
		if err != nil {
			return nil, err
		}

		index := make(map[string][]types.ForecastRecord)
		for _, rec := range records {
			date := rec.SurfDate()
			index[date] = append(index[date], rec)
		}

		st := &snapshotState{
			records:    records,
			dateIndex:  index,
			generation: s.genSeq.Add(1),
			fetchedAt:  s.clock.Now(),
		}
		s.state.Store(st)

		s.logger.InfoContext(ctx, "forecast snapshot refreshed",
			"records", len(records),
			"dates", len(index),
			"generation", st.generation,
		)
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshotState), nil
}
