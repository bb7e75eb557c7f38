package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"oran-rapps/internal/actuation/nssmf"
)

type fakeNSSMF struct {
	start    time.Time
	latency  time.Duration
	failRate float64
	persist  bool
	client   *http.Client

	mu            sync.Mutex
	subnets       map[string]map[string]any
	subscriptions map[string]string
	byMethod      map[string]int64
	totalCalls    int64
	subSeq        int64
}

func main() {
	addr := getenvDefault("FAKE_NSSMF_ADDR", ":8080")
	latencyMs := getenvIntDefault("FAKE_NSSMF_LATENCY_MS", 0)
	failRate := getenvFloatDefault("FAKE_NSSMF_FAIL_RATE", 0)
	persist := getenvDefault("FAKE_NSSMF_PERSIST", "false") == "true"
	notifyEvery := time.Duration(getenvIntDefault("FAKE_NSSMF_NOTIFY_INTERVAL_MS", 300000)) * time.Millisecond

	srv := newFakeNSSMF(time.Duration(latencyMs)*time.Millisecond, failRate, persist)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go srv.notifyLoop(ctx, notifyEvery)

	server := &http.Server{Addr: addr, Handler: srv.router(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()
	log.Printf("fake RAN NSSMF listening on %s (notify every %s)", addr, notifyEvery)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func newFakeNSSMF(latency time.Duration, failRate float64, persist bool) *fakeNSSMF {
	return &fakeNSSMF{
		start:         time.Now().UTC(),
		latency:       latency,
		failRate:      failRate,
		persist:       persist,
		client:        &http.Client{Timeout: 10 * time.Second},
		subnets:       seedSubnets(),
		subscriptions: make(map[string]string),
		byMethod:      make(map[string]int64),
	}
}

func (s *fakeNSSMF) router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth)
	r.HandleFunc("/metrics", s.handleMetrics)
	r.HandleFunc("/3GPPManagement/ProvMnS/{version}/NetworkSliceSubnets/{id}", s.handleGetSubnet).Methods(http.MethodGet)
	r.HandleFunc("/3GPPManagement/ProvMnS/{version}/NetworkSliceSubnets/{id}", s.handlePutSubnet).Methods(http.MethodPut)
	r.HandleFunc("/3GPPManagement/FileDataReportingMnS/{version}/subscriptions", s.handleSubscribe).Methods(http.MethodPost)
	return r
}

func (s *fakeNSSMF) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *fakeNSSMF) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"started_at":    s.start.Format(time.RFC3339),
		"total":         atomic.LoadInt64(&s.totalCalls),
		"by_method":     s.byMethod,
		"subscriptions": len(s.subscriptions),
	})
}

func (s *fakeNSSMF) handleGetSubnet(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r) {
		return
	}
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	subnet, ok := s.subnets[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "network slice subnet not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, subnet)
}

func (s *fakeNSSMF) handlePutSubnet(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r) {
		return
	}
	id := mux.Vars(r)["id"]
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	_, ok := s.subnets[id]
	if ok && s.persist {
		s.subnets[id] = body
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "network slice subnet not found", http.StatusNotFound)
		return
	}
	log.Printf("subnet %s modified", id)
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *fakeNSSMF) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r) {
		return
	}
	var req nssmf.SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConsumerReference == "" {
		http.Error(w, "consumerReference required", http.StatusBadRequest)
		return
	}
	id := strconv.FormatInt(atomic.AddInt64(&s.subSeq, 1), 10)
	s.mu.Lock()
	s.subscriptions[id] = req.ConsumerReference
	s.mu.Unlock()

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	w.Header().Set("Location", fmt.Sprintf("%s://%s%s/%s", scheme, r.Host, r.URL.Path, id))
	log.Printf("subscription %s -> %s", id, req.ConsumerReference)
	writeJSON(w, http.StatusCreated, req)
}

// admit applies the latency and fail-rate knobs and counts the call.
func (s *fakeNSSMF) admit(w http.ResponseWriter, r *http.Request) bool {
	atomic.AddInt64(&s.totalCalls, 1)
	s.mu.Lock()
	s.byMethod[r.Method]++
	s.mu.Unlock()
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
	if s.failRate > 0 && rand.Float64() < s.failRate {
		http.Error(w, "injected failure", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *fakeNSSMF) notifyLoop(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.notifyAll(ctx, time.Now().UTC())
		}
	}
}

func (s *fakeNSSMF) notifyAll(ctx context.Context, now time.Time) {
	s.mu.Lock()
	targets := make([]string, 0, len(s.subscriptions))
	for _, uri := range s.subscriptions {
		targets = append(targets, uri)
	}
	s.mu.Unlock()

	payload, err := json.Marshal(fileReadyNotification(now))
	if err != nil {
		log.Printf("notification encode: %v", err)
		return
	}
	for _, uri := range targets {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(payload))
		if err != nil {
			log.Printf("notification to %s: %v", uri, err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			log.Printf("notification to %s: %v", uri, err)
			continue
		}
		_ = resp.Body.Close()
		log.Printf("notification to %s: %d", uri, resp.StatusCode)
	}
}

func fileReadyNotification(now time.Time) nssmf.FileReadyNotification {
	ms := now.UnixMilli()
	stamp := nssmf.DateTime{DateTime: now.Format(time.RFC3339)}
	return nssmf.FileReadyNotification{
		NotificationHeader: nssmf.NotificationHeader{
			NotificationID:   fmt.Sprintf("notif-%d", ms),
			NotificationType: nssmf.NotifyFileReady,
			EventTime:        stamp,
		},
		FileInfoList: []nssmf.FileInfo{{
			FileLocation:       fmt.Sprintf("http://example.com/files/sample-performance-data-%d.csv", ms),
			FileSize:           1024,
			FileReadyTime:      stamp,
			FileExpirationTime: nssmf.DateTime{DateTime: now.Add(24 * time.Hour).Format(time.RFC3339)},
			FileCompression:    "gzip",
			FileFormat:         "CSV",
			FileDataType:       "Performance",
			JobID:              fmt.Sprintf("job-%d", ms),
		}},
		AdditionalText: "Sample file ready notification from NSSMF simulator",
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
