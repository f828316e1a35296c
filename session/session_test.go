package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brunoga/optimistic"
	"github.com/brunoga/optimistic/internal/testmodels"
	"github.com/brunoga/optimistic/model"
)

func register(t *testing.T, h *Hub, key string, policy optimistic.Policy) (*model.Model, *optimistic.Detector) {
	t.Helper()
	doc := testmodels.NewPerson()
	det, err := optimistic.NewDetector(doc, testmodels.PersonData())
	if err != nil {
		t.Fatal(err)
	}
	doc.Observe(det.Tracker().Record)
	h.Register(key, det, policy)
	return doc, det
}

func payload(t *testing.T, edit func(optimistic.Snapshot)) []byte {
	t.Helper()
	s := testmodels.PersonData()
	edit(s)
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func rename(name string) func(optimistic.Snapshot) {
	return func(s optimistic.Snapshot) { s["name"] = name }
}

func TestHub_InvalidateWithPayload(t *testing.T) {
	var handled []string
	h := NewHub(WithReportHandler(func(key string, r *optimistic.Report) {
		handled = append(handled, key)
	}))
	doc, det := register(t, h, "p1", optimistic.AutoApply)

	report, diags, err := h.Invalidate(context.Background(), "p1", "v2", payload(t, rename("Grace")))
	if err != nil || len(diags) != 0 {
		t.Fatalf("err = %v, diags = %v", err, diags)
	}
	if report == nil || report.Kind != optimistic.KindAutoResolved {
		t.Fatalf("report = %v", report)
	}
	if doc.Get("name") != "Grace" || det.Tracker().Version() != "v2" {
		t.Errorf("name = %v, version = %q", doc.Get("name"), det.Tracker().Version())
	}
	if len(handled) != 1 || handled[0] != "p1" {
		t.Errorf("handled = %v", handled)
	}
}

func TestHub_InvalidateFetches(t *testing.T) {
	tests := []struct {
		name    string
		fetched string
		given   string
		want    string
	}{
		{"fetched version", "v3", "v2", "v3"},
		{"given version", "", "v2", "v2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			h := NewHub(WithFetcher(FetcherFunc(func(ctx context.Context, key string) (string, []byte, error) {
				calls++
				return tt.fetched, payload(t, rename("Grace")), nil
			})))
			_, det := register(t, h, "p1", optimistic.SurfaceAll)

			report, _, err := h.Invalidate(context.Background(), "p1", tt.given, nil)
			if err != nil {
				t.Fatal(err)
			}
			if calls != 1 {
				t.Errorf("fetcher called %d times", calls)
			}
			if report == nil || len(report.Conflicts) != 1 {
				t.Fatalf("report = %v", report)
			}
			if v := det.Tracker().Version(); v != tt.want {
				t.Errorf("version = %q, want %q", v, tt.want)
			}
		})
	}
}

func TestHub_Errors(t *testing.T) {
	fetchErr := errors.New("offline")
	h := NewHub()
	register(t, h, "p1", optimistic.AutoApply)
	ctx := context.Background()

	if _, _, err := h.Invalidate(ctx, "nope", "v1", []byte("{}")); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("unknown key: %v", err)
	}
	if _, _, err := h.Invalidate(ctx, "p1", "v1", nil); !errors.Is(err, ErrNoPayload) {
		t.Errorf("no payload: %v", err)
	}
	if _, _, err := h.Invalidate(ctx, "p1", "v1", []byte("[1, 2]")); err == nil {
		t.Error("expected a parse error")
	}
	if err := h.SetPolicy("nope", optimistic.ServerWins); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("set policy: %v", err)
	}
	if _, err := h.Reverse("nope", nil); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("reverse: %v", err)
	}

	failing := NewHub(WithFetcher(FetcherFunc(func(ctx context.Context, key string) (string, []byte, error) {
		return "", nil, fetchErr
	})))
	register(t, failing, "p1", optimistic.AutoApply)
	if _, _, err := failing.Invalidate(ctx, "p1", "v1", nil); !errors.Is(err, fetchErr) {
		t.Errorf("fetch error: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, _, err := h.Invalidate(cancelled, "p1", "v1", []byte("{}")); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: %v", err)
	}
}

func TestHub_SetPolicyAndReverse(t *testing.T) {
	h := NewHub()
	doc, _ := register(t, h, "p1", optimistic.SurfaceAll)
	doc.Set("name", "Linus")

	if err := h.SetPolicy("p1", optimistic.ServerWins); err != nil {
		t.Fatal(err)
	}
	report, _, err := h.Invalidate(context.Background(), "p1", "v2", payload(t, rename("Grace")))
	if err != nil {
		t.Fatal(err)
	}
	if report == nil || report.Kind != optimistic.KindAutoResolved || !report.Resolved[0].ClientDiscarded {
		t.Fatalf("report = %v", report)
	}
	if doc.Get("name") != "Grace" {
		t.Errorf("name = %v", doc.Get("name"))
	}

	doc.Set("age", 99.0)
	diags, err := h.Reverse("p1", report)
	if err != nil || len(diags) != 0 {
		t.Fatalf("err = %v, diags = %v", err, diags)
	}
	if doc.Get("age") != 36.0 {
		t.Errorf("age = %v", doc.Get("age"))
	}

	h.Unregister("p1")
	if h.Len() != 0 {
		t.Errorf("len = %d", h.Len())
	}
}

func TestHub_ConcurrentDocuments(t *testing.T) {
	h := NewHub()
	keys := []string{"a", "b", "c", "d"}
	docs := make(map[string]*model.Model)
	for _, key := range keys {
		docs[key], _ = register(t, h, key, optimistic.AutoApply)
	}

	var wg sync.WaitGroup
	for _, key := range keys {
		data := payload(t, rename(key))
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				if _, _, err := h.Invalidate(context.Background(), key, "v2", data); err != nil {
					t.Error(err)
				}
			}(key)
		}
	}
	wg.Wait()

	for _, key := range keys {
		if got := docs[key].Get("name"); got != key {
			t.Errorf("%s: name = %v", key, got)
		}
	}
}

func TestHub_RegisterWaitsForRunningPass(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	data := payload(t, rename("Grace"))
	h := NewHub(WithFetcher(FetcherFunc(func(ctx context.Context, key string) (string, []byte, error) {
		close(started)
		<-release
		return "v2", data, nil
	})))
	first, _ := register(t, h, "p1", optimistic.AutoApply)

	passDone := make(chan error, 1)
	go func() {
		_, _, err := h.Invalidate(context.Background(), "p1", "", nil)
		passDone <- err
	}()
	<-started

	second := testmodels.NewPerson()
	det, err := optimistic.NewDetector(second, testmodels.PersonData())
	if err != nil {
		t.Fatal(err)
	}
	registered := make(chan struct{})
	go func() {
		h.Register("p1", det, optimistic.SurfaceAll)
		close(registered)
	}()

	select {
	case <-registered:
		t.Fatal("re-registration did not wait for the running pass")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-registered
	if err := <-passDone; err != nil {
		t.Fatal(err)
	}

	if first.Get("name") != "Grace" {
		t.Errorf("running pass did not finish on the first document: %v", first.Get("name"))
	}
	if second.Get("name") != "Ada" {
		t.Errorf("second document touched by the earlier pass: %v", second.Get("name"))
	}
	if h.Len() != 1 {
		t.Errorf("len = %d", h.Len())
	}
}
