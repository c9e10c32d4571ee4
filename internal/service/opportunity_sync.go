package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/antonybarran/Sam-Search-WA-3/internal/client/sam"
	"github.com/antonybarran/Sam-Search-WA-3/internal/models"
	"github.com/antonybarran/Sam-Search-WA-3/internal/repository"
	"github.com/antonybarran/Sam-Search-WA-3/internal/shape"
)

// SyncScope is the sync_state row the ingest loop reads and advances.
const SyncScope = "last_posted_from"

// ErrSyncBusy is returned when a run is requested while another is still in
// flight. Runs never overlap; the caller retries later.
var ErrSyncBusy = errors.New("ingest run already in progress")

// Fetcher is the slice of the upstream client the sync loop needs.
type Fetcher interface {
	SearchPage(ctx context.Context, p sam.SearchParams) ([]map[string]any, int, error)
}

// OpportunitySyncService pulls recently posted notices from the upstream
// search API and lands them in the opportunities table. The cursor only moves
// after a fully successful run, so a failed run is re-covered by the next one
// and the idempotent upsert absorbs the overlap.
type OpportunitySyncService struct {
	Store  repository.OpportunityRepository
	Client Fetcher
	Logger *zap.Logger

	Scope        string
	LookbackDays int
	PageSize     int
	MaxRecords   int
	PagePause    time.Duration
	ZipPause     time.Duration
	Zips         []string
	NAICS        string
	SetAside     string
	Cleanup      bool
	KeepRaw      bool

	running atomic.Bool
}

// SyncOptions override the service defaults for one run. Zero values fall
// back to the configured defaults; MaxRecords < 0 disables the budget.
type SyncOptions struct {
	LookbackDays int
	PageSize     int
	MaxRecords   int
	PagePause    time.Duration
	ZipPause     time.Duration
	Zips         []string
	NAICS        string
	SetAside     string
	Cleanup      *bool
}

type SyncResult struct {
	RunID          string         `json:"run_id"`
	Window         SyncWindow     `json:"window"`
	Pages          int            `json:"pages"`
	Fetched        int            `json:"fetched"`
	Upserted       int            `json:"upserted"`
	Deleted        int64          `json:"deleted"`
	PerZip         map[string]int `json:"per_zip,omitempty"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
}

type SyncWindow struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SyncOnce runs one full ingest pass with the configured defaults. This is
// the entry point the scheduler calls.
func (s *OpportunitySyncService) SyncOnce(ctx context.Context) (SyncResult, error) {
	return s.Run(ctx, SyncOptions{})
}

func (s *OpportunitySyncService) Run(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	if s == nil || s.Store == nil || s.Client == nil {
		return SyncResult{}, fmt.Errorf("sync service not configured")
	}
	if !s.running.CompareAndSwap(false, true) {
		return SyncResult{}, ErrSyncBusy
	}
	defer s.running.Store(false)

	started := time.Now()
	scope := s.scope()
	today := shape.DateOnly(time.Now().UTC())

	from, err := s.resolveWindowStart(ctx, scope, today, opts)
	if err != nil {
		s.writeSyncError(ctx, scope, err)
		return SyncResult{}, err
	}

	result := SyncResult{
		RunID:  uuid.NewString(),
		Window: SyncWindow{From: isoDate(from), To: isoDate(today)},
	}

	zips := cleanStrings(opts.Zips)
	if len(zips) == 0 {
		zips = cleanStrings(s.Zips)
	}
	s.logInfo("ingest run started",
		zap.String("run_id", result.RunID),
		zap.String("from", result.Window.From),
		zap.String("to", result.Window.To),
		zap.Int("zip_dimensions", len(zips)))

	dims := zips
	if len(dims) == 0 {
		dims = []string{""}
	}
	perZip := map[string]int{}
	for i, zip := range dims {
		if i > 0 {
			if err := sleepCtx(ctx, s.zipPause(opts)); err != nil {
				s.writeSyncError(ctx, scope, err)
				return result, err
			}
		}
		n, err := s.runDimension(ctx, &result, from, today, zip, opts)
		if err != nil {
			s.writeSyncError(ctx, scope, err)
			return result, err
		}
		if zip != "" {
			perZip[zip] = n
		}
		if budget := s.maxRecords(opts); budget > 0 && result.Fetched >= budget {
			break
		}
	}
	if len(perZip) > 0 {
		result.PerZip = perZip
	}

	now := time.Now().UTC()
	cursor := isoDate(today)
	state := &models.SyncState{
		Scope:         scope,
		Cursor:        &cursor,
		LastSuccessAt: &now,
		LastAttemptAt: &now,
		LastError:     nil,
		StatsJSON: statsJSON(map[string]int{
			"pages":    result.Pages,
			"fetched":  result.Fetched,
			"upserted": result.Upserted,
		}),
	}
	if err := s.Store.SaveSyncState(ctx, state); err != nil {
		s.writeSyncError(ctx, scope, err)
		return result, err
	}

	if s.cleanupEnabled(opts) {
		deleted, err := s.Store.DeleteExpired(ctx)
		if err != nil {
			s.logWarn("expiration sweep failed", zap.String("run_id", result.RunID), zap.Error(err))
		} else {
			result.Deleted = deleted
		}
	}

	result.ElapsedSeconds = time.Since(started).Seconds()
	s.logInfo("ingest run finished",
		zap.String("run_id", result.RunID),
		zap.Int("pages", result.Pages),
		zap.Int("fetched", result.Fetched),
		zap.Int("upserted", result.Upserted),
		zap.Int64("deleted", result.Deleted),
		zap.Float64("elapsed_seconds", result.ElapsedSeconds))
	return result, nil
}

// runDimension walks one zip dimension (or the single unfiltered pass) page
// by page until an empty page or the shared record budget stops it.
func (s *OpportunitySyncService) runDimension(ctx context.Context, result *SyncResult, from, to time.Time, zip string, opts SyncOptions) (int, error) {
	pageSize := s.pageSize(opts)
	budget := s.maxRecords(opts)
	pause := s.pagePause(opts)

	fetched := 0
	offset := 0
	for {
		items, total, err := s.Client.SearchPage(ctx, sam.SearchParams{
			PostedFrom: from,
			PostedTo:   to,
			Limit:      pageSize,
			Offset:     offset,
			Zip:        zip,
			NAICS:      s.naicsFilter(opts),
			SetAside:   s.setAsideFilter(opts),
		})
		if err != nil {
			return fetched, err
		}
		result.Pages++
		if len(items) == 0 {
			break
		}

		rows := make([]models.Opportunity, 0, len(items))
		for _, item := range items {
			rows = append(rows, shape.Shape(item))
		}
		upserted, err := s.Store.UpsertOpportunities(ctx, rows)
		if err != nil {
			return fetched, err
		}
		if s.KeepRaw {
			s.saveSnapshot(ctx, zip, offset, items)
		}

		fetched += len(items)
		result.Fetched += len(items)
		result.Upserted += upserted
		s.logInfo("page ingested",
			zap.String("run_id", result.RunID),
			zap.String("zip", zip),
			zap.Int("offset", offset),
			zap.Int("got", len(items)),
			zap.Int("upserted", upserted),
			zap.Int("total_upstream", total))

		if budget > 0 && result.Fetched >= budget {
			s.logInfo("record budget reached",
				zap.String("run_id", result.RunID),
				zap.Int("fetched", result.Fetched),
				zap.Int("budget", budget))
			break
		}
		offset += pageSize
		if err := sleepCtx(ctx, pause); err != nil {
			return fetched, err
		}
	}
	return fetched, nil
}

// resolveWindowStart turns the stored cursor into the next window's lower
// bound: the day after the cursor, clamped to today. A missing or unreadable
// cursor falls back to the lookback window.
func (s *OpportunitySyncService) resolveWindowStart(ctx context.Context, scope string, today time.Time, opts SyncOptions) (time.Time, error) {
	state, err := s.Store.GetSyncState(ctx, scope)
	if err != nil {
		return time.Time{}, err
	}
	if state != nil && state.Cursor != nil {
		if cur := shape.CoerceDate(*state.Cursor); cur != nil {
			start := cur.AddDate(0, 0, 1)
			if start.After(today) {
				start = today
			}
			return start, nil
		}
		s.logWarn("unreadable sync cursor, using lookback window", zap.String("cursor", *state.Cursor))
	}
	return today.AddDate(0, 0, -s.lookbackDays(opts)), nil
}

// writeSyncError records a failed attempt without disturbing the cursor or
// the last success marker. Best effort; the run error is what callers see.
func (s *OpportunitySyncService) writeSyncError(ctx context.Context, scope string, runErr error) {
	s.logWarn("ingest run failed", zap.String("scope", scope), zap.Error(runErr))
	state, err := s.Store.GetSyncState(ctx, scope)
	if err != nil || state == nil {
		state = &models.SyncState{Scope: scope}
	}
	now := time.Now().UTC()
	state.LastAttemptAt = &now
	state.LastError = strPtr(runErr.Error())
	if err := s.Store.SaveSyncState(ctx, state); err != nil {
		s.logWarn("sync error marker not saved", zap.String("scope", scope), zap.Error(err))
	}
}

func (s *OpportunitySyncService) saveSnapshot(ctx context.Context, zip string, offset int, items []map[string]any) {
	payload, err := json.Marshal(items)
	if err != nil {
		return
	}
	scope := s.scope()
	if zip != "" {
		scope = scope + ":" + zip
	}
	snap := models.RawSnapshot{
		Scope:      scope,
		PageOffset: offset,
		FetchedAt:  time.Now().UTC(),
		Payload:    datatypes.JSON(payload),
	}
	if err := s.Store.SaveRawSnapshots(ctx, []models.RawSnapshot{snap}); err != nil {
		s.logWarn("raw snapshot not saved", zap.String("zip", zip), zap.Int("offset", offset), zap.Error(err))
	}
}

func (s *OpportunitySyncService) scope() string {
	if strings.TrimSpace(s.Scope) == "" {
		return SyncScope
	}
	return strings.TrimSpace(s.Scope)
}

func (s *OpportunitySyncService) lookbackDays(opts SyncOptions) int {
	if opts.LookbackDays > 0 {
		return opts.LookbackDays
	}
	if s.LookbackDays > 0 {
		return s.LookbackDays
	}
	return 2
}

func (s *OpportunitySyncService) pageSize(opts SyncOptions) int {
	if opts.PageSize > 0 {
		return opts.PageSize
	}
	if s.PageSize > 0 {
		return s.PageSize
	}
	return 10
}

func (s *OpportunitySyncService) maxRecords(opts SyncOptions) int {
	if opts.MaxRecords != 0 {
		return opts.MaxRecords
	}
	if s.MaxRecords != 0 {
		return s.MaxRecords
	}
	return 300
}

func (s *OpportunitySyncService) pagePause(opts SyncOptions) time.Duration {
	if opts.PagePause > 0 {
		return opts.PagePause
	}
	if s.PagePause > 0 {
		return s.PagePause
	}
	return 8 * time.Second
}

func (s *OpportunitySyncService) zipPause(opts SyncOptions) time.Duration {
	if opts.ZipPause > 0 {
		return opts.ZipPause
	}
	if s.ZipPause > 0 {
		return s.ZipPause
	}
	return 2 * time.Second
}

func (s *OpportunitySyncService) naicsFilter(opts SyncOptions) string {
	if strings.TrimSpace(opts.NAICS) != "" {
		return strings.TrimSpace(opts.NAICS)
	}
	return strings.TrimSpace(s.NAICS)
}

func (s *OpportunitySyncService) setAsideFilter(opts SyncOptions) string {
	if strings.TrimSpace(opts.SetAside) != "" {
		return strings.TrimSpace(opts.SetAside)
	}
	return strings.TrimSpace(s.SetAside)
}

func (s *OpportunitySyncService) cleanupEnabled(opts SyncOptions) bool {
	if opts.Cleanup != nil {
		return *opts.Cleanup
	}
	return s.Cleanup
}

func (s *OpportunitySyncService) logInfo(msg string, fields ...zap.Field) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Info(msg, fields...)
}

func (s *OpportunitySyncService) logWarn(msg string, fields ...zap.Field) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Warn(msg, fields...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func isoDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}

func statsJSON(stats map[string]int) datatypes.JSON {
	if len(stats) == 0 {
		return datatypes.JSON([]byte("null"))
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(payload)
}

func strPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
