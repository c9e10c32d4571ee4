package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/antonybarran/Sam-Search-WA-3/internal/cache"
	"github.com/antonybarran/Sam-Search-WA-3/internal/client/sam"
	"github.com/antonybarran/Sam-Search-WA-3/internal/models"
	"github.com/antonybarran/Sam-Search-WA-3/internal/repository"
	"github.com/antonybarran/Sam-Search-WA-3/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubRepo covers just what the handlers reach: the query path, the
// expiration sweep, and the sync bookkeeping the ingest endpoints drive.
type stubRepo struct {
	items  []models.Opportunity
	total  int64
	states map[string]models.SyncState

	listErr   error
	countErr  error
	deleteErr error
	stateErr  error

	listCalls  int
	lastParams repository.ListOpportunitiesParams
	deleted    int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{states: map[string]models.SyncState{}}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (s *stubRepo) UpsertOpportunities(ctx context.Context, items []models.Opportunity) (int, error) {
	return len(items), nil
}

func (s *stubRepo) UpsertOpportunity(ctx context.Context, item *models.Opportunity) error {
	return nil
}

func (s *stubRepo) DeleteExpired(ctx context.Context) (int64, error) {
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	return s.deleted, nil
}

func (s *stubRepo) SaveRawSnapshots(ctx context.Context, items []models.RawSnapshot) error {
	return nil
}

func (s *stubRepo) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	if s.stateErr != nil {
		return nil, s.stateErr
	}
	state, ok := s.states[scope]
	if !ok {
		return nil, nil
	}
	out := state
	return &out, nil
}

func (s *stubRepo) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	if state != nil {
		s.states[state.Scope] = *state
	}
	return nil
}

func (s *stubRepo) ListOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.Opportunity, error) {
	s.listCalls++
	s.lastParams = params
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.items, nil
}

func (s *stubRepo) CountOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.total, nil
}

var _ repository.OpportunityRepository = (*stubRepo)(nil)

// emptyFetcher answers every page request with no items, recording the
// params it saw.
type emptyFetcher struct {
	calls []sam.SearchParams
}

func (f *emptyFetcher) SearchPage(ctx context.Context, p sam.SearchParams) ([]map[string]any, int, error) {
	f.calls = append(f.calls, p)
	return nil, 0, nil
}

// gateFetcher blocks inside the first page fetch until released.
type gateFetcher struct {
	start func()
	gate  chan struct{}
}

func (f *gateFetcher) SearchPage(ctx context.Context, p sam.SearchParams) ([]map[string]any, int, error) {
	if f.start != nil {
		f.start()
	}
	<-f.gate
	return nil, 0, nil
}

func syncService(repo *stubRepo, f service.Fetcher) *service.OpportunitySyncService {
	return &service.OpportunitySyncService{
		Store:     repo,
		Client:    f,
		PagePause: time.Millisecond,
		ZipPause:  time.Millisecond,
	}
}

func oppsRouter(repo *stubRepo, store cache.Store) *gin.Engine {
	r := gin.New()
	h := &OpportunityHandler{
		Query: &service.OpportunityQueryService{Repo: repo},
		Cache: store,
	}
	h.Register(r)
	return r
}

func performRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return resp
}

func TestListOpportunitiesEnvelope(t *testing.T) {
	repo := newStubRepo()
	repo.items = []models.Opportunity{{ID: "N-1", Title: "Bridge deck repair"}, {ID: "N-2", Title: "Snow removal"}}
	repo.total = 12
	r := oppsRouter(repo, nil)

	w := performRequest(r, http.MethodGet, "/opps?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Code != 0 || resp.Message != "ok" {
		t.Fatalf("envelope code=%d message=%q, want 0/ok", resp.Code, resp.Message)
	}
	data, ok := resp.Data.([]any)
	if !ok || len(data) != 2 {
		t.Fatalf("data=%T len=%d, want 2 items", resp.Data, len(data))
	}
	if got := resp.Meta["limit"]; got != float64(5) {
		t.Fatalf("meta limit=%v, want 5", got)
	}
	if got := resp.Meta["total"]; got != float64(12) {
		t.Fatalf("meta total=%v, want 12", got)
	}
	if got := resp.Meta["has_next"]; got != true {
		t.Fatalf("meta has_next=%v, want true", got)
	}
}

func TestListOpportunitiesParamPlumbing(t *testing.T) {
	repo := newStubRepo()
	r := oppsRouter(repo, nil)

	w := performRequest(r, http.MethodGet,
		"/opps?active=false&naics=237&keyword=bridge&zip=98101&setaside=SBA&sort=posted&limit=9999&offset=-3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
	p := repo.lastParams
	if p.ActiveOnly {
		t.Fatalf("ActiveOnly=true, want false")
	}
	if p.NAICS == nil || *p.NAICS != "237" {
		t.Fatalf("NAICS=%v, want 237", p.NAICS)
	}
	if p.Keyword == nil || *p.Keyword != "bridge" {
		t.Fatalf("Keyword=%v, want bridge", p.Keyword)
	}
	if p.Zip == nil || *p.Zip != "98101" {
		t.Fatalf("Zip=%v, want 98101", p.Zip)
	}
	if p.SetAside == nil || *p.SetAside != "SBA" {
		t.Fatalf("SetAside=%v, want SBA", p.SetAside)
	}
	if p.Sort != repository.SortPostedDesc {
		t.Fatalf("Sort=%q, want %q", p.Sort, repository.SortPostedDesc)
	}
	if p.Limit != 500 {
		t.Fatalf("Limit=%d, want 500 (clamped)", p.Limit)
	}
	if p.Offset != 0 {
		t.Fatalf("Offset=%d, want 0 (clamped)", p.Offset)
	}
}

func TestListOpportunitiesDefaults(t *testing.T) {
	repo := newStubRepo()
	r := oppsRouter(repo, nil)

	performRequest(r, http.MethodGet, "/opps", "")
	p := repo.lastParams
	if !p.ActiveOnly {
		t.Fatalf("ActiveOnly=false, want true by default")
	}
	if p.Limit != 100 || p.Offset != 0 {
		t.Fatalf("limit/offset=%d/%d, want 100/0", p.Limit, p.Offset)
	}
	if p.Sort != repository.SortDueThenPosted {
		t.Fatalf("Sort=%q, want %q", p.Sort, repository.SortDueThenPosted)
	}
	if p.NAICS != nil || p.Keyword != nil || p.Zip != nil || p.SetAside != nil {
		t.Fatalf("filters should be nil by default")
	}
}

func TestListOpportunitiesCacheHit(t *testing.T) {
	repo := newStubRepo()
	repo.items = []models.Opportunity{{ID: "N-1"}}
	repo.total = 1
	r := oppsRouter(repo, cache.NewMemoryStore())

	first := performRequest(r, http.MethodGet, "/opps?naics=237", "")
	second := performRequest(r, http.MethodGet, "/opps?naics=237", "")
	if repo.listCalls != 1 {
		t.Fatalf("listCalls=%d, want 1 (second request served from cache)", repo.listCalls)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("cached body differs from original")
	}

	performRequest(r, http.MethodGet, "/opps?naics=811", "")
	if repo.listCalls != 2 {
		t.Fatalf("listCalls=%d, want 2 (different filters miss the cache)", repo.listCalls)
	}
}

func TestListOpportunitiesRepoError(t *testing.T) {
	repo := newStubRepo()
	repo.countErr = errForTest("count blew up")
	r := oppsRouter(repo, nil)

	w := performRequest(r, http.MethodGet, "/opps", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status=%d, want 502", w.Code)
	}
	if resp := decodeResponse(t, w); resp.Code != http.StatusBadGateway {
		t.Fatalf("envelope code=%d, want 502", resp.Code)
	}
}

func TestRunIngestReturnsResult(t *testing.T) {
	repo := newStubRepo()
	r := gin.New()
	h := &IngestHandler{Sync: syncService(repo, &emptyFetcher{})}
	h.Register(r)

	w := performRequest(r, http.MethodPost, "/api/ingest/run", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s, want 200", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("data=%T, want object", resp.Data)
	}
	if runID, _ := data["run_id"].(string); runID == "" {
		t.Fatalf("run_id missing in %v", data)
	}
	if state := repo.states[service.SyncScope]; state.Cursor == nil {
		t.Fatalf("cursor not advanced after successful run")
	}
}

func TestRunIngestOverrides(t *testing.T) {
	repo := newStubRepo()
	fetcher := &emptyFetcher{}
	r := gin.New()
	h := &IngestHandler{Sync: syncService(repo, fetcher)}
	h.Register(r)

	w := performRequest(r, http.MethodPost, "/api/ingest/run", `{"lookback_days":5,"max_records":-1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s, want 200", w.Code, w.Body.String())
	}
	if len(fetcher.calls) == 0 {
		t.Fatalf("fetcher never called")
	}
	want := time.Now().UTC().AddDate(0, 0, -5).Format("2006-01-02")
	if got := fetcher.calls[0].PostedFrom.Format("2006-01-02"); got != want {
		t.Fatalf("window start=%s, want %s", got, want)
	}
}

func TestRunIngestBadBody(t *testing.T) {
	repo := newStubRepo()
	r := gin.New()
	h := &IngestHandler{Sync: syncService(repo, &emptyFetcher{})}
	h.Register(r)

	w := performRequest(r, http.MethodPost, "/api/ingest/run", `{"lookback_days":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", w.Code)
	}
}

func TestRunIngestBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	fetcher := &gateFetcher{
		start: func() { once.Do(func() { close(started) }) },
		gate:  release,
	}
	repo := newStubRepo()
	svc := syncService(repo, fetcher)
	r := gin.New()
	h := &IngestHandler{Sync: svc}
	h.Register(r)

	done := make(chan error, 1)
	go func() {
		_, err := svc.SyncOnce(context.Background())
		done <- err
	}()

	<-started
	w := performRequest(r, http.MethodPost, "/api/ingest/run", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d, want 409 while a run is in flight", w.Code)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("blocked run failed: %v", err)
	}
}

func TestIngestState(t *testing.T) {
	repo := newStubRepo()
	r := gin.New()
	h := &IngestHandler{Sync: syncService(repo, &emptyFetcher{})}
	h.Register(r)

	w := performRequest(r, http.MethodGet, "/api/ingest/state", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404 before any run", w.Code)
	}

	cursor := "2026-08-21"
	repo.states[service.SyncScope] = models.SyncState{Scope: service.SyncScope, Cursor: &cursor}
	w = performRequest(r, http.MethodGet, "/api/ingest/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
	resp := decodeResponse(t, w)
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("data=%T, want object", resp.Data)
	}
	if got, _ := data["cursor"].(string); got != cursor {
		t.Fatalf("cursor=%q, want %q", got, cursor)
	}
}

func TestMaintenanceCleanupToken(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		wantStatus int
	}{
		{"open when unset", "", "", http.StatusOK},
		{"missing header rejected", "secret", "", http.StatusUnauthorized},
		{"wrong token rejected", "secret", "guess", http.StatusUnauthorized},
		{"matching token accepted", "secret", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		repo := newStubRepo()
		repo.deleted = 3
		r := gin.New()
		h := &MaintenanceHandler{Repo: repo, AdminToken: tt.configured}
		h.Register(r)

		req := httptest.NewRequest(http.MethodPost, "/maintenance/cleanup", nil)
		if tt.header != "" {
			req.Header.Set("X-Admin-Token", tt.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tt.wantStatus {
			t.Fatalf("%s: status=%d, want %d", tt.name, w.Code, tt.wantStatus)
		}
		if tt.wantStatus == http.StatusOK {
			resp := decodeResponse(t, w)
			data, _ := resp.Data.(map[string]any)
			if got := data["deleted"]; got != float64(3) {
				t.Fatalf("%s: deleted=%v, want 3", tt.name, got)
			}
		}
	}
}

func TestMaintenanceCleanupRepoError(t *testing.T) {
	repo := newStubRepo()
	repo.deleteErr = errForTest("sweep failed")
	r := gin.New()
	h := &MaintenanceHandler{Repo: repo}
	h.Register(r)

	w := performRequest(r, http.MethodPost, "/maintenance/cleanup", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status=%d, want 502", w.Code)
	}
}

func TestHealthRoutes(t *testing.T) {
	r := gin.New()
	h := &HealthHandler{}
	h.Register(r)

	if w := performRequest(r, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz status=%d, want 200", w.Code)
	}
	if w := performRequest(r, http.MethodGet, "/readyz", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503 without a database", w.Code)
	}
}

type errForTest string

func (e errForTest) Error() string { return string(e) }
