package api

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/datex/internal/catalog"
	"github.com/solatis/datex/internal/core/config"
	"github.com/solatis/datex/internal/core/metrics"
	"github.com/solatis/datex/internal/explorer"
	"github.com/solatis/datex/internal/rules"
	"github.com/solatis/datex/internal/types"
)

type stubLoader struct {
	mu   sync.Mutex
	rows []types.Row
	err  error
}

func (l *stubLoader) LoadRows(ctx context.Context) ([]types.Row, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.Row(nil), l.rows...), l.err
}

func (l *stubLoader) set(rows []types.Row, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows, l.err = rows, err
}

type memCache struct {
	mu   sync.Mutex
	cats map[string]*catalog.Catalog
	puts int
}

func (c *memCache) Get(ctx context.Context, ruleSet, dataset string) (*catalog.Catalog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cat, ok := c.cats[ruleSet+"/"+dataset]
	if !ok {
		return nil, types.ErrCatalogNotFound
	}
	return cat, nil
}

func (c *memCache) Put(ctx context.Context, cat *catalog.Catalog) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cats == nil {
		c.cats = make(map[string]*catalog.Catalog)
	}
	c.cats[cat.RuleSet+"/"+cat.Dataset] = cat
	c.puts++
	return nil
}

func at(month, day, hour int) time.Time {
	return time.Date(2023, time.Month(month), day, hour, 0, 0, 0, time.UTC)
}

func testRows() []types.Row {
	return []types.Row{
		{Time: at(1, 5, 8), Location: "sm2_01", SourceTag: "Atrea", Metric: "temp_indoor", Value: 21},
		{Time: at(2, 7, 8), Location: "sm2_01", SourceTag: "Atrea", Metric: "temp_indoor", Value: 20},
		{Time: at(1, 6, 8), Location: "1NP-3", SourceTag: "ThermoPro", Metric: "temp_indoor", Value: 22},
		{Time: at(3, 2, 8), Location: "1NP-3", SourceTag: "ThermoPro", Metric: "temp_indoor", Value: 22.5},
		{Time: at(1, 5, 8), Location: "1NP-1", SourceTag: "ThermoPro", Metric: "temp_ambient", Value: 2},
		{Time: at(2, 5, 8), Location: "1NP-1", SourceTag: "ThermoPro", Metric: "temp_ambient", Value: 3},
		{Time: at(3, 5, 8), Location: "1NP-1", SourceTag: "ThermoPro", Metric: "temp_ambient", Value: 6},
	}
}

func newTestService(t *testing.T, loader RowLoader, cache CatalogCache, maxSessions int) *ExplorerService {
	t.Helper()
	compiled, err := rules.Compile(rules.SM2RuleSet())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.ExplorerAPI.MaxSessions = maxSessions
	s, err := NewExplorerService(context.Background(), compiled, loader, cache, cfg, nil)
	if err != nil {
		t.Fatalf("NewExplorerService() error = %v", err)
	}
	return s
}

func mustEncode(t *testing.T, v interface{}) *structpb.Struct {
	t.Helper()
	out, err := encode(v)
	if err != nil {
		t.Fatalf("encode() error = %v", err)
	}
	return out
}

func mustDecode(t *testing.T, in *structpb.Struct, v interface{}) {
	t.Helper()
	if err := decode(in, v); err != nil {
		t.Fatalf("decode() error = %v", err)
	}
}

func open(t *testing.T, s *ExplorerService) OpenSessionResponse {
	t.Helper()
	out, err := s.OpenSession(context.Background(), &structpb.Struct{})
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	var resp OpenSessionResponse
	mustDecode(t, out, &resp)
	return resp
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if got := status.Code(err); got != code {
		t.Errorf("code = %v, want %v (err = %v)", got, code, err)
	}
}

func TestNewExplorerService_Validation(t *testing.T) {
	compiled, err := rules.Compile(rules.SM2RuleSet())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	ctx := context.Background()
	cfg := config.DefaultConfig()
	loader := &stubLoader{}

	if _, err := NewExplorerService(ctx, nil, loader, nil, cfg, nil); err == nil {
		t.Error("nil rule set: error = nil")
	}
	if _, err := NewExplorerService(ctx, compiled, nil, nil, cfg, nil); err == nil {
		t.Error("nil loader: error = nil")
	}
	if _, err := NewExplorerService(ctx, compiled, loader, nil, nil, nil); err == nil {
		t.Error("nil config: error = nil")
	}

	loader.set(nil, errors.New("boom"))
	if _, err := NewExplorerService(ctx, compiled, loader, nil, cfg, nil); err == nil {
		t.Error("failing loader: error = nil")
	}
}

func TestOpenSession(t *testing.T) {
	s := newTestService(t, &stubLoader{rows: testRows()}, nil, 4)
	resp := open(t, s)

	if _, err := types.ParseSessionID(resp.SessionID); err != nil {
		t.Errorf("SessionID %q is not a UUID: %v", resp.SessionID, err)
	}
	if resp.State.Selection.ActivePeriod != "2023-03" {
		t.Errorf("ActivePeriod = %q, want 2023-03", resp.State.Selection.ActivePeriod)
	}
	if resp.State.Status != explorer.StatusOK {
		t.Errorf("Status = %v, want ok", resp.State.Status)
	}
	if s.SessionCount() != 1 {
		t.Errorf("SessionCount() = %d, want 1", s.SessionCount())
	}
}

func TestApplyNavigateSeries(t *testing.T) {
	s := newTestService(t, &stubLoader{rows: testRows()}, nil, 4)
	ctx := context.Background()
	sess := open(t, s)

	out, err := s.Navigate(ctx, mustEncode(t, NavigateRequest{SessionID: sess.SessionID, Direction: "prior"}))
	if err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	var nav StateResponse
	mustDecode(t, out, &nav)
	if nav.State.Selection.ActivePeriod != "2023-02" {
		t.Fatalf("ActivePeriod = %q, want 2023-02", nav.State.Selection.ActivePeriod)
	}

	out, err = s.Apply(ctx, mustEncode(t, ApplyRequest{
		SessionID: sess.SessionID,
		Change:    explorer.Change{Granularity: types.GranularityDay},
	}))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	var applied StateResponse
	mustDecode(t, out, &applied)
	if applied.State.Selection.Granularity != types.GranularityDay {
		t.Errorf("Granularity = %v, want day", applied.State.Selection.Granularity)
	}
	if applied.State.Selection.ActivePeriod != "2023-03-05" {
		t.Errorf("ActivePeriod = %q, want 2023-03-05 (newest day)", applied.State.Selection.ActivePeriod)
	}

	out, err = s.Series(ctx, mustEncode(t, SessionRequest{SessionID: sess.SessionID}))
	if err != nil {
		t.Fatalf("Series() error = %v", err)
	}
	var series SeriesResponse
	mustDecode(t, out, &series)
	if series.Period != "2023-03-05" {
		t.Errorf("Period = %q, want 2023-03-05", series.Period)
	}
	if len(series.Series) == 0 {
		t.Error("Series is empty, want ambient series for 2023-03-05")
	}
}

func TestApply_SharedSection(t *testing.T) {
	s := newTestService(t, &stubLoader{rows: testRows()}, nil, 4)
	ctx := context.Background()
	sess := open(t, s)

	apply := func(change explorer.Change) StateResponse {
		t.Helper()
		out, err := s.Apply(ctx, mustEncode(t, ApplyRequest{SessionID: sess.SessionID, Change: change}))
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		var resp StateResponse
		mustDecode(t, out, &resp)
		return resp
	}

	narrowed := apply(explorer.Change{
		Metrics: []string{"temp_indoor"},
		Sources: map[string]types.SourceSelection{
			"Atrea":     {Enabled: true},
			"ThermoPro": {Values: map[string][]string{"floor": {"1NP"}}},
		},
		Shared: map[string][]string{"section": {"3"}},
	})
	if got := fmt.Sprint(narrowed.State.Index.Keys); got != "[2023-01 2023-03]" {
		t.Errorf("Index = %s, want [2023-01 2023-03]", got)
	}
	if got := fmt.Sprint(narrowed.State.Selection.Shared); got != "map[section:[3]]" {
		t.Errorf("Shared = %s, want map[section:[3]]", got)
	}

	out, err := s.Series(ctx, mustEncode(t, SessionRequest{SessionID: sess.SessionID}))
	if err != nil {
		t.Fatalf("Series() error = %v", err)
	}
	var series SeriesResponse
	mustDecode(t, out, &series)
	if len(series.Series) != 1 || series.Series[0].Location != "1NP-3" {
		t.Errorf("Series = %+v, want only ThermoPro 1NP-3", series.Series)
	}

	lifted := apply(explorer.Change{Shared: map[string][]string{"section": nil}})
	if len(lifted.State.Selection.Shared) != 0 {
		t.Errorf("Shared = %v, want unconstrained", lifted.State.Selection.Shared)
	}
	if got := fmt.Sprint(lifted.State.Index.Keys); got != "[2023-01 2023-02 2023-03]" {
		t.Errorf("Index = %s, want [2023-01 2023-02 2023-03]", got)
	}
}

func TestHandlers_Errors(t *testing.T) {
	s := newTestService(t, &stubLoader{rows: testRows()}, nil, 4)
	ctx := context.Background()
	sess := open(t, s)
	unknown := string(types.NewSessionID())

	tests := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{"apply unknown session", func() error {
			_, err := s.Apply(ctx, mustEncode(t, ApplyRequest{SessionID: unknown}))
			return err
		}, codes.NotFound},
		{"apply malformed session", func() error {
			_, err := s.Apply(ctx, mustEncode(t, ApplyRequest{SessionID: "not-a-uuid"}))
			return err
		}, codes.NotFound},
		{"apply unknown source", func() error {
			_, err := s.Apply(ctx, mustEncode(t, ApplyRequest{
				SessionID: sess.SessionID,
				Change:    explorer.Change{Sources: map[string]types.SourceSelection{"Nope": {Enabled: true}}},
			}))
			return err
		}, codes.InvalidArgument},
		{"apply values on simple source", func() error {
			_, err := s.Apply(ctx, mustEncode(t, ApplyRequest{
				SessionID: sess.SessionID,
				Change: explorer.Change{Sources: map[string]types.SourceSelection{
					"Atrea": {Values: map[string][]string{"section": {"01"}}},
				}},
			}))
			return err
		}, codes.InvalidArgument},
		{"apply unknown granularity", func() error {
			_, err := s.Apply(ctx, mustEncode(t, ApplyRequest{
				SessionID: sess.SessionID,
				Change:    explorer.Change{Granularity: "week"},
			}))
			return err
		}, codes.InvalidArgument},
		{"navigate bad direction", func() error {
			_, err := s.Navigate(ctx, mustEncode(t, NavigateRequest{SessionID: sess.SessionID, Direction: "sideways"}))
			return err
		}, codes.InvalidArgument},
		{"series unknown session", func() error {
			_, err := s.Series(ctx, mustEncode(t, SessionRequest{SessionID: unknown}))
			return err
		}, codes.NotFound},
		{"close unknown session", func() error {
			_, err := s.CloseSession(ctx, mustEncode(t, SessionRequest{SessionID: unknown}))
			return err
		}, codes.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantCode(t, tt.call(), tt.code)
		})
	}
}

func TestOpenSession_Cap(t *testing.T) {
	s := newTestService(t, &stubLoader{rows: testRows()}, nil, 2)
	open(t, s)
	last := open(t, s)

	_, err := s.OpenSession(context.Background(), &structpb.Struct{})
	wantCode(t, err, codes.ResourceExhausted)

	if _, err := s.CloseSession(context.Background(), mustEncode(t, SessionRequest{SessionID: last.SessionID})); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	if _, err := s.OpenSession(context.Background(), &structpb.Struct{}); err != nil {
		t.Errorf("OpenSession() after close error = %v", err)
	}
}

func TestCloseSession(t *testing.T) {
	s := newTestService(t, &stubLoader{rows: testRows()}, nil, 4)
	ctx := context.Background()
	sess := open(t, s)

	if _, err := s.CloseSession(ctx, mustEncode(t, SessionRequest{SessionID: sess.SessionID})); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	_, err := s.Series(ctx, mustEncode(t, SessionRequest{SessionID: sess.SessionID}))
	wantCode(t, err, codes.NotFound)
	if s.SessionCount() != 0 {
		t.Errorf("SessionCount() = %d, want 0", s.SessionCount())
	}
}

func TestCatalog(t *testing.T) {
	s := newTestService(t, &stubLoader{rows: testRows()}, nil, 4)
	out, err := s.Catalog(context.Background(), &structpb.Struct{})
	if err != nil {
		t.Fatalf("Catalog() error = %v", err)
	}
	var resp CatalogResponse
	mustDecode(t, out, &resp)
	if resp.Catalog == nil || resp.Catalog.Rows != len(testRows()) {
		t.Fatalf("Catalog = %+v, want %d rows", resp.Catalog, len(testRows()))
	}
	if _, ok := resp.Catalog.Source("ThermoPro"); !ok {
		t.Error("ThermoPro missing from catalog")
	}
}

func TestReload_RebasesSessions(t *testing.T) {
	loader := &stubLoader{rows: testRows()}
	cache := &memCache{}
	s := newTestService(t, loader, cache, 4)
	ctx := context.Background()
	sess := open(t, s)

	if cache.puts != 1 {
		t.Fatalf("puts = %d after initial load, want 1", cache.puts)
	}

	out, err := s.Reload(ctx, &structpb.Struct{})
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	var same ReloadResponse
	mustDecode(t, out, &same)
	if !same.Cached {
		t.Error("Cached = false for unchanged dataset, want true")
	}
	if same.Sessions != 1 {
		t.Errorf("Sessions = %d, want 1", same.Sessions)
	}
	if cache.puts != 1 {
		t.Errorf("puts = %d after cache hit, want 1", cache.puts)
	}

	// Drop March; the session active on 2023-03 moves to 2023-02.
	var rows []types.Row
	for _, r := range testRows() {
		if r.Time.Month() != time.March {
			rows = append(rows, r)
		}
	}
	loader.set(rows, nil)

	out, err = s.Reload(ctx, &structpb.Struct{})
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	var changed ReloadResponse
	mustDecode(t, out, &changed)
	if changed.Cached {
		t.Error("Cached = true for changed dataset, want false")
	}
	if changed.Rows != len(rows) {
		t.Errorf("Rows = %d, want %d", changed.Rows, len(rows))
	}

	out, err = s.Series(ctx, mustEncode(t, SessionRequest{SessionID: sess.SessionID}))
	if err != nil {
		t.Fatalf("Series() error = %v", err)
	}
	var series SeriesResponse
	mustDecode(t, out, &series)
	if series.Period != "2023-02" {
		t.Errorf("Period after reload = %q, want 2023-02", series.Period)
	}
}

func TestReload_LoaderFailure(t *testing.T) {
	loader := &stubLoader{rows: testRows()}
	s := newTestService(t, loader, nil, 4)
	sess := open(t, s)

	loader.set(nil, errors.New("database gone"))
	_, err := s.Reload(context.Background(), &structpb.Struct{})
	wantCode(t, err, codes.Unavailable)

	// Previous snapshot stays in service.
	if _, err := s.Series(context.Background(), mustEncode(t, SessionRequest{SessionID: sess.SessionID})); err != nil {
		t.Errorf("Series() after failed reload error = %v", err)
	}
}

func TestConcurrentSessions(t *testing.T) {
	s := newTestService(t, &stubLoader{rows: testRows()}, nil, 64)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := s.OpenSession(ctx, &structpb.Struct{})
			if err != nil {
				errs <- err
				return
			}
			var sess OpenSessionResponse
			if err := decode(out, &sess); err != nil {
				errs <- err
				return
			}
			dir := "prior"
			if i%2 == 0 {
				dir = "next"
			}
			for j := 0; j < 5; j++ {
				in, _ := encode(NavigateRequest{SessionID: sess.SessionID, Direction: dir})
				if _, err := s.Navigate(ctx, in); err != nil {
					errs <- fmt.Errorf("session %d: %w", i, err)
					return
				}
			}
			if i%4 == 0 {
				if _, err := s.Reload(ctx, &structpb.Struct{}); err != nil {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if s.SessionCount() != 16 {
		t.Errorf("SessionCount() = %d, want 16", s.SessionCount())
	}
}

func TestOpenSession_DuringReload(t *testing.T) {
	loader := &stubLoader{rows: testRows()}
	s := newTestService(t, loader, nil, 256)
	ctx := context.Background()

	var trimmed []types.Row
	for _, r := range testRows() {
		if r.Time.Month() != time.March {
			trimmed = append(trimmed, r)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, 128)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				loader.set(trimmed, nil)
			} else {
				loader.set(testRows(), nil)
			}
			if _, err := s.Reload(ctx, &structpb.Struct{}); err != nil {
				errs <- err
			}
		}(i)
	}
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.OpenSession(ctx, &structpb.Struct{}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	// Every session is based on the installed dataset.
	want := s.current().Open().Index.Keys
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, sess := range s.sessions {
		sess.mu.Lock()
		got := sess.state.Index.Keys
		sess.mu.Unlock()
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("session %s index = %v, want %v", id, got, want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{types.ErrSessionNotFound, codes.NotFound},
		{types.ErrTooManySessions, codes.ResourceExhausted},
		{fmt.Errorf("x: %w", types.ErrUnknownLevel), codes.InvalidArgument},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("other"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			wantCode(t, statusFor(tt.err), tt.code)
		})
	}
	if statusFor(nil) != nil {
		t.Error("statusFor(nil) != nil")
	}
}

func TestExplorerService_Metrics(t *testing.T) {
	compiled, err := rules.Compile(rules.SM2RuleSet())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	m := metrics.New()
	s, err := NewExplorerService(context.Background(), compiled, &stubLoader{rows: testRows()}, &memCache{}, config.DefaultConfig(), nil, WithMetrics(m))
	if err != nil {
		t.Fatalf("NewExplorerService() error = %v", err)
	}
	open(t, s)
	open(t, s)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"datex_sessions_open 2",
		fmt.Sprintf("datex_dataset_rows %d", len(testRows())),
		`datex_catalog_cache_total{result="miss"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
