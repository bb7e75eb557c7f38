package application

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"oran-rapps/internal/actuation/nssmf"
	decisions "oran-rapps/internal/decisions/domain"
	"oran-rapps/internal/decisions/infrastructure/memory"
	"oran-rapps/internal/reconcile"
	sliceprb "oran-rapps/internal/sliceprb/domain"
	telemetry "oran-rapps/internal/telemetry/domain"
)

// fakeNSSMF serves subnet PRB levels and records PUTs. Accepted PUTs update
// the level unless frozen is set.
type fakeNSSMF struct {
	mu     sync.Mutex
	levels map[string]int
	puts   map[string][]int
	status int
	frozen bool
}

func (f *fakeNSSMF) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	f.mu.Lock()
	defer f.mu.Unlock()
	level, ok := f.levels[id]
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": id,
			"attributes": map[string]any{
				"sliceProfileList": []any{map[string]any{
					"RANSliceSubnetProfile": map[string]any{"RRU.PrbDl": level, "RRU.PrbUl": 512},
				}},
			},
		})
	case http.MethodPut:
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		var doc struct {
			Attributes struct {
				SliceProfileList []struct {
					Profile map[string]int `json:"RANSliceSubnetProfile"`
				} `json:"sliceProfileList"`
			} `json:"attributes"`
		}
		_ = json.NewDecoder(r.Body).Decode(&doc)
		prb := doc.Attributes.SliceProfileList[0].Profile["RRU.PrbDl"]
		f.puts[id] = append(f.puts[id], prb)
		if !f.frozen {
			f.levels[id] = prb
		}
	}
}

func (f *fakeNSSMF) SetLevel(id string, level int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[id] = level
}

func (f *fakeNSSMF) Puts(id string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.puts[id]...)
}

type staticSource struct{ rows []telemetry.Row }

func (s staticSource) Snapshot(context.Context) ([]telemetry.Row, error) { return s.rows, nil }

// prbPredictor answers with the scaled forecast configured for the first
// NSSI one-hot position set in the batch.
type prbPredictor struct {
	mu       sync.Mutex
	byNSSI   map[int]float64
	calls    int
	block    chan struct{}
	entered  chan struct{}
	sliceLen int
}

func (p *prbPredictor) Predict(_ context.Context, batch [][][]float64) ([][]float64, error) {
	if p.entered != nil {
		p.entered <- struct{}{}
	}
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	row := batch[0][0]
	for i := p.sliceLen; i < len(row)-len(sliceprb.FeatureFields); i++ {
		if row[i] == 1 {
			return [][]float64{{p.byNSSI[i-p.sliceLen]}}, nil
		}
	}
	return [][]float64{{0}}, nil
}

func sliceRows(sliceType, nssi string, n int) []telemetry.Row {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]telemetry.Row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, telemetry.Row{
			Time:        base.Add(time.Duration(i) * 15 * time.Minute),
			Measurement: "slice-pm",
			Labels:      map[string]string{"sliceType": sliceType, "measObjLdn": nssi},
			Values: map[string]float64{
				sliceprb.FieldPRB:  500,
				sliceprb.FieldData: 1000,
				sliceprb.FieldRRC:  20,
			},
		})
	}
	return rows
}

type harness struct {
	rapp   *Rapp
	nssmf  *fakeNSSMF
	pred   *prbPredictor
	ring   *memory.Ring
	server *httptest.Server
}

func newHarness(t *testing.T, rows []telemetry.Row, levels map[string]int, forecasts map[int]float64) *harness {
	t.Helper()
	fake := &fakeNSSMF{levels: levels, puts: map[string][]int{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := nssmf.NewClient(srv.URL, "v1")
	require.NoError(t, err)

	enc := sliceprb.Encoder{
		SliceTypes: sliceprb.NewOneHot([]string{"embb", "urllc"}),
		NSSIs:      sliceprb.NewOneHot([]string{"nssi-a", "nssi-b"}),
		PRB:        sliceprb.Scaler{Max: 1000},
		Data:       sliceprb.Scaler{Max: 2000},
		RRC:        sliceprb.Scaler{Max: 40},
		Y:          sliceprb.Scaler{Max: 4000},
	}
	pred := &prbPredictor{byNSSI: forecasts, sliceLen: enc.SliceTypes.Len()}
	ring := memory.NewRing(64)
	r, err := New(Config{WindowSize: 4, Encoder: enc}, Deps{
		Source:    staticSource{rows: rows},
		Predictor: pred,
		Subnets:   client,
		Recorder:  ring,
		Logger:    zaptest.NewLogger(t).Sugar(),
	})
	require.NoError(t, err)
	return &harness{rapp: r, nssmf: fake, pred: pred, ring: ring, server: srv}
}

func (h *harness) statuses(t *testing.T) map[string][]decisions.Status {
	t.Helper()
	records, err := h.ring.List(context.Background(), Name, time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	out := map[string][]decisions.Status{}
	for _, rec := range records {
		out[rec.Entity] = append(out[rec.Entity], rec.Status)
	}
	return out
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Config{}, Deps{Predictor: &prbPredictor{}, Subnets: &nssmf.Client{}})
	require.Error(t, err)
	_, err = New(Config{}, Deps{Source: staticSource{}, Subnets: &nssmf.Client{}})
	require.Error(t, err)
	_, err = New(Config{}, Deps{Source: staticSource{}, Predictor: &prbPredictor{}})
	require.Error(t, err)
}

func TestRunCycle_IncreasesOnlyWhenForecastExceedsCurrent(t *testing.T) {
	rows := append(sliceRows("embb", "nssi-a", 5), sliceRows("urllc", "nssi-b", 5)...)
	// nssi-a: 0.3*4000 = 1200 > 1024; nssi-b: 0.05*4000 = 200 < 256.
	h := newHarness(t, rows, map[string]int{"nssi-a": 1024, "nssi-b": 256}, map[int]float64{0: 0.3, 1: 0.05})

	require.NoError(t, h.rapp.RunCycle(context.Background()))

	assert.Equal(t, []int{1200}, h.nssmf.Puts("nssi-a"))
	assert.Empty(t, h.nssmf.Puts("nssi-b"))
	level, ok := h.rapp.Cache().Get("nssi-a")
	require.True(t, ok)
	assert.Equal(t, 1200, level)
	assert.Equal(t, map[string][]decisions.Status{
		"nssi-a": {decisions.StatusActuated},
		"nssi-b": {decisions.StatusNoAction},
	}, h.statuses(t))
}

func TestRunCycle_SameTargetIsNotResent(t *testing.T) {
	// 0.3000125*4000 truncates to 1200, so the forecast still exceeds the
	// applied level and only the cache holds the request back.
	h := newHarness(t, sliceRows("embb", "nssi-a", 4), map[string]int{"nssi-a": 1024}, map[int]float64{0: 0.3000125})

	require.NoError(t, h.rapp.RunCycle(context.Background()))
	require.NoError(t, h.rapp.RunCycle(context.Background()))

	assert.Equal(t, []int{1200}, h.nssmf.Puts("nssi-a"))
	assert.Equal(t, []decisions.Status{decisions.StatusActuated, decisions.StatusNoAction}, h.statuses(t)["nssi-a"])
}

func TestRunCycle_RevertedLevelIsResent(t *testing.T) {
	h := newHarness(t, sliceRows("embb", "nssi-a", 4), map[string]int{"nssi-a": 1024}, map[int]float64{0: 0.3})

	require.NoError(t, h.rapp.RunCycle(context.Background()))
	h.nssmf.SetLevel("nssi-a", 1024)
	require.NoError(t, h.rapp.RunCycle(context.Background()))

	assert.Equal(t, []int{1200, 1200}, h.nssmf.Puts("nssi-a"))
	assert.Equal(t, []decisions.Status{decisions.StatusActuated, decisions.StatusActuated}, h.statuses(t)["nssi-a"])
}

func TestRunCycle_UnappliedLevelIsResent(t *testing.T) {
	h := newHarness(t, sliceRows("embb", "nssi-a", 4), map[string]int{"nssi-a": 1024}, map[int]float64{0: 0.3})
	h.nssmf.frozen = true

	require.NoError(t, h.rapp.RunCycle(context.Background()))
	require.NoError(t, h.rapp.RunCycle(context.Background()))

	assert.Equal(t, []int{1200, 1200}, h.nssmf.Puts("nssi-a"))
	level, ok := h.rapp.Cache().Get("nssi-a")
	require.True(t, ok)
	assert.Equal(t, 1200, level)
}

func TestRunCycle_NewTargetIsSent(t *testing.T) {
	h := newHarness(t, sliceRows("embb", "nssi-a", 4), map[string]int{"nssi-a": 1024}, map[int]float64{0: 0.3})

	require.NoError(t, h.rapp.RunCycle(context.Background()))
	h.pred.mu.Lock()
	h.pred.byNSSI[0] = 0.5
	h.pred.mu.Unlock()
	require.NoError(t, h.rapp.RunCycle(context.Background()))

	assert.Equal(t, []int{1200, 2000}, h.nssmf.Puts("nssi-a"))
}

func TestRunCycle_FailedModificationLeavesCache(t *testing.T) {
	h := newHarness(t, sliceRows("embb", "nssi-a", 4), map[string]int{"nssi-a": 1024}, map[int]float64{0: 0.3})
	h.nssmf.status = http.StatusInternalServerError

	require.NoError(t, h.rapp.RunCycle(context.Background()))
	assert.Zero(t, h.rapp.Cache().Len())
	assert.Equal(t, []decisions.Status{decisions.StatusError}, h.statuses(t)["nssi-a"])
}

func TestRunCycle_GroupFailuresAreIsolated(t *testing.T) {
	rows := append(sliceRows("embb", "nssi-a", 4), sliceRows("urllc", "nssi-b", 4)...)
	rows = append(rows, sliceRows("urllc", "nssi-c", 2)...)
	// nssi-a is unknown to the NSSMF; nssi-c has too few rows.
	h := newHarness(t, rows, map[string]int{"nssi-b": 256}, map[int]float64{0: 0.3, 1: 0.3})

	require.NoError(t, h.rapp.RunCycle(context.Background()))

	assert.Equal(t, []int{1200}, h.nssmf.Puts("nssi-b"))
	assert.Equal(t, map[string][]decisions.Status{
		"nssi-a": {decisions.StatusError},
		"nssi-b": {decisions.StatusActuated},
		"nssi-c": {decisions.StatusSkipped},
	}, h.statuses(t))
}

func TestRunCycle_EmptySnapshot(t *testing.T) {
	h := newHarness(t, nil, map[string]int{"nssi-a": 1}, nil)
	require.NoError(t, h.rapp.RunCycle(context.Background()))
	assert.Zero(t, h.pred.calls)
	assert.Zero(t, h.rapp.Cache().Len())
}

func TestRunCycle_OverlappingTriggerIsSkipped(t *testing.T) {
	h := newHarness(t, sliceRows("embb", "nssi-a", 4), map[string]int{"nssi-a": 1024}, map[int]float64{0: 0.3})
	h.pred.block = make(chan struct{})
	h.pred.entered = make(chan struct{}, 1)
	loop, err := reconcile.NewLoop(Name, time.Hour, h.rapp, nil)
	require.NoError(t, err)

	done := make(chan reconcile.Outcome, 1)
	go func() {
		outcome, _ := loop.RunOnce(context.Background())
		done <- outcome
	}()
	<-h.pred.entered

	outcome, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomeSkipped, outcome)
	assert.Zero(t, h.rapp.Cache().Len())

	close(h.pred.block)
	assert.Equal(t, reconcile.OutcomeRan, <-done)
	assert.Equal(t, []int{1200}, h.nssmf.Puts("nssi-a"))
}
