package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"media-pipeline/internal/classifier"
	"media-pipeline/internal/notifier"
	"media-pipeline/internal/probe"
	"media-pipeline/internal/store"
)

// recorder keeps a single ordered log of persist and publish operations so
// tests can assert persist-then-publish ordering across both collaborators.
type recorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *recorder) add(op string) {
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

type fakeStore struct {
	rec *recorder

	mu      sync.Mutex
	asset   *store.Asset
	updates []store.AssetUpdate
	failOn  int // percent checkpoint whose Update should fail; 0 disables
}

func (f *fakeStore) Get(ctx context.Context, id string) (*store.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.asset == nil || f.asset.ID != id {
		return nil, store.ErrNotFound
	}
	cp := *f.asset
	return &cp, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, u store.AssetUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.asset == nil || f.asset.ID != id {
		return store.ErrNotFound
	}
	if f.failOn != 0 && u.Progress != nil && *u.Progress == f.failOn {
		return errors.New("disk full")
	}
	f.updates = append(f.updates, u)
	if u.Status != nil {
		f.asset.Status = *u.Status
	}
	if u.Progress != nil {
		f.asset.Progress = *u.Progress
		f.rec.add("persist")
	}
	if u.ProgressMessage != nil {
		f.asset.ProgressMessage = *u.ProgressMessage
	}
	if u.Duration != nil {
		f.asset.Duration = u.Duration
	}
	if u.Width != nil {
		f.asset.Width = u.Width
	}
	if u.Height != nil {
		f.asset.Height = u.Height
	}
	if u.ThumbnailPath != nil {
		f.asset.ThumbnailPath = u.ThumbnailPath
	}
	if u.Sensitivity != nil {
		f.asset.Sensitivity = *u.Sensitivity
	}
	if u.ErrorMessage != nil {
		f.asset.ErrorMessage = u.ErrorMessage
	}
	return nil
}

func (f *fakeStore) current() store.Asset {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.asset
}

type fakeNotifier struct {
	rec *recorder

	mu     sync.Mutex
	events []notifier.Event
}

func (f *fakeNotifier) Publish(scope, name string, payload any) {
	f.mu.Lock()
	f.events = append(f.events, notifier.Event{Scope: scope, Name: name, Payload: payload})
	f.mu.Unlock()
	if name == EventProcessingUpdate {
		f.rec.add("publish")
	}
}

func (f *fakeNotifier) byName(name string) []notifier.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notifier.Event
	for _, e := range f.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

type fakeProber struct {
	result probe.Result
}

func (f *fakeProber) Probe(ctx context.Context, path string) probe.Result {
	return f.result
}

type fakeThumbs struct {
	ok bool
}

func (f *fakeThumbs) Extract(ctx context.Context, sourcePath, destPath, atTimestamp string) (string, bool) {
	if !f.ok {
		return "", false
	}
	return destPath, true
}

func ptr[T any](v T) *T { return &v }

func newTestAsset(id, sourcePath string) *store.Asset {
	return &store.Asset{
		ID:           id,
		Title:        "clip",
		OriginalName: "clip.mp4",
		SourcePath:   sourcePath,
		MimeType:     "video/mp4",
		Size:         1000,
		Status:       store.StatusUploading,
		Sensitivity:  store.Sensitivity{Status: store.SensitivityPending},
	}
}

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("not a real video"), 0o644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}
	return path
}

// harness assembles a pipeline over fakes and runs jobs synchronously via
// the real worker pool, waiting for the queue to drain.
type harness struct {
	p  *Pipeline
	st *fakeStore
	n  *fakeNotifier
}

func newHarness(t *testing.T, asset *store.Asset, c classifier.Classifier, thumbOK bool) *harness {
	t.Helper()
	rec := &recorder{}
	st := &fakeStore{rec: rec, asset: asset}
	n := &fakeNotifier{rec: rec}
	pr := &fakeProber{result: probe.Result{
		Duration: ptr(12.5),
		Width:    ptr(1920),
		Height:   ptr(1080),
		Codec:    ptr("h264"),
	}}
	p := New(st, n, pr, &fakeThumbs{ok: thumbOK}, c, Config{
		ThumbnailDir: t.TempDir(),
		Workers:      1,
		QueueSize:    4,
	})
	p.Start()
	t.Cleanup(p.Stop)
	return &harness{p: p, st: st, n: n}
}

// waitIdle blocks until the asset reaches a terminal state.
func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h.st.current().Status.Terminal() {
			// Give the final events a moment to land.
			time.Sleep(10 * time.Millisecond)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("asset never reached a terminal state; last: %+v", h.st.current())
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()

	src := writeSource(t)
	c := classifier.NewStatic(classifier.DefaultThresholds(), map[string]int{
		"violence": 10, "adult": 5, "hate": 0, "drugs": 0, "language": 20,
	})
	h := newHarness(t, newTestAsset("a1", src), c, true)

	if err := h.p.Submit("a1", src); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	h.waitIdle(t)

	a := h.st.current()
	if a.Status != store.StatusCompleted {
		t.Fatalf("status = %s, want completed (%+v)", a.Status, a)
	}
	if a.Progress != 100 {
		t.Errorf("progress = %d, want 100", a.Progress)
	}
	if a.Duration == nil || *a.Duration != 12.5 {
		t.Errorf("duration not merged: %v", a.Duration)
	}
	if a.Width == nil || *a.Width != 1920 {
		t.Errorf("width not merged: %v", a.Width)
	}
	if a.ThumbnailPath == nil || !strings.HasSuffix(*a.ThumbnailPath, "a1.jpg") {
		t.Errorf("thumbnail path not merged: %v", a.ThumbnailPath)
	}
	if a.Sensitivity.Status != store.SensitivitySafe {
		t.Errorf("sensitivity = %s, want safe", a.Sensitivity.Status)
	}
	if a.ProgressMessage != "Processing complete. No sensitive content detected." {
		t.Errorf("final message = %q", a.ProgressMessage)
	}

	// Checkpoint sequence, in order, with the classifier's internal two.
	var got []int
	for _, e := range h.n.byName(EventProcessingUpdate) {
		got = append(got, e.Payload.(ProgressPayload).Progress)
	}
	want := []int{10, 30, 50, 70, 90, 92, 96, 100}
	if len(got) != len(want) {
		t.Fatalf("progress checkpoints = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("progress checkpoints = %v, want %v", got, want)
		}
	}

	if n := len(h.n.byName(EventSensitivityComplete)); n != 1 {
		t.Errorf("sensitivity:complete events = %d, want 1", n)
	}
	ready := h.n.byName(EventVideoReady)
	if len(ready) != 1 {
		t.Fatalf("video:ready events = %d, want 1", len(ready))
	}
	if ready[0].Payload.(ReadyPayload).Asset.Status != store.StatusCompleted {
		t.Errorf("ready event carries non-completed asset")
	}
}

func TestRunPublishesAfterPersist(t *testing.T) {
	t.Parallel()

	src := writeSource(t)
	c := classifier.NewStatic(classifier.DefaultThresholds(), map[string]int{"violence": 0})
	h := newHarness(t, newTestAsset("a1", src), c, true)

	if err := h.p.Submit("a1", src); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	h.waitIdle(t)

	ops := h.st.rec.snapshot()
	if len(ops) == 0 || len(ops)%2 != 0 {
		t.Fatalf("unexpected op log: %v", ops)
	}
	for i := 0; i < len(ops); i += 2 {
		if ops[i] != "persist" || ops[i+1] != "publish" {
			t.Fatalf("op log departs from persist-then-publish at %d: %v", i, ops)
		}
	}
}

func TestRunMissingSourceFails(t *testing.T) {
	t.Parallel()

	c := classifier.NewStatic(classifier.DefaultThresholds(), map[string]int{"violence": 0})
	h := newHarness(t, newTestAsset("a1", "/nonexistent/clip.mp4"), c, true)

	if err := h.p.Submit("a1", "/nonexistent/clip.mp4"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	h.waitIdle(t)

	a := h.st.current()
	if a.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed", a.Status)
	}
	if a.ErrorMessage == nil || !strings.Contains(*a.ErrorMessage, "not readable") {
		t.Errorf("error message = %v", a.ErrorMessage)
	}
	if !strings.HasPrefix(a.ProgressMessage, "Processing failed: ") {
		t.Errorf("progress message = %q", a.ProgressMessage)
	}

	errs := h.n.byName(EventProcessingError)
	if len(errs) != 1 {
		t.Fatalf("processing:error events = %d, want 1", len(errs))
	}
	if p := errs[0].Payload.(ErrorPayload); p.AssetID != "a1" || p.Error == "" {
		t.Errorf("error payload = %+v", p)
	}
}

func TestRunThumbnailFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	src := writeSource(t)
	c := classifier.NewStatic(classifier.DefaultThresholds(), map[string]int{"violence": 0})
	h := newHarness(t, newTestAsset("a1", src), c, false)

	if err := h.p.Submit("a1", src); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	h.waitIdle(t)

	a := h.st.current()
	if a.Status != store.StatusCompleted {
		t.Fatalf("status = %s, want completed", a.Status)
	}
	if a.ThumbnailPath != nil {
		t.Errorf("thumbnail path = %q, want nil", *a.ThumbnailPath)
	}
}

func TestRunFlaggedVerdict(t *testing.T) {
	t.Parallel()

	src := writeSource(t)
	c := classifier.NewStatic(classifier.DefaultThresholds(), map[string]int{
		"violence": 80, "adult": 10, "hate": 10, "drugs": 10, "language": 10,
	})
	h := newHarness(t, newTestAsset("a1", src), c, true)

	if err := h.p.Submit("a1", src); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	h.waitIdle(t)

	a := h.st.current()
	if a.Sensitivity.Status != store.SensitivityFlagged {
		t.Fatalf("sensitivity = %s, want flagged", a.Sensitivity.Status)
	}
	if a.ProgressMessage != "Processing complete. Sensitive content flagged for review." {
		t.Errorf("final message = %q", a.ProgressMessage)
	}

	sens := h.n.byName(EventSensitivityComplete)
	if len(sens) != 1 {
		t.Fatalf("sensitivity:complete events = %d, want 1", len(sens))
	}
	p := sens[0].Payload.(SensitivityPayload)
	if p.Status != store.SensitivityFlagged || len(p.Reasons) != 1 {
		t.Errorf("sensitivity payload = %+v", p)
	}
}

func TestSubmitRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	src := writeSource(t)
	rec := &recorder{}
	st := &fakeStore{rec: rec, asset: newTestAsset("a1", src)}
	n := &fakeNotifier{rec: rec}
	c := classifier.NewStatic(classifier.DefaultThresholds(), map[string]int{"violence": 0})
	p := New(st, n, &fakeProber{}, &fakeThumbs{ok: true}, c, Config{
		ThumbnailDir: t.TempDir(),
		Workers:      1,
		QueueSize:    4,
	})
	// No Start: the job stays queued, holding the in-flight slot.
	if err := p.Submit("a1", src); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if err := p.Submit("a1", src); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Submit = %v, want ErrAlreadyRunning", err)
	}
	if err := p.Submit("a2", src); err != nil {
		t.Fatalf("Submit for a different asset: %v", err)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	st := &fakeStore{rec: rec, asset: newTestAsset("a1", "x")}
	c := classifier.NewStatic(classifier.DefaultThresholds(), map[string]int{"violence": 0})
	p := New(st, &fakeNotifier{rec: rec}, &fakeProber{}, &fakeThumbs{}, c, Config{ThumbnailDir: t.TempDir(), Workers: 1})
	p.Start()
	p.Stop()

	if err := p.Submit("a1", "x"); !errors.Is(err, ErrStopped) {
		t.Fatalf("Submit after Stop = %v, want ErrStopped", err)
	}
}

func TestReanalyze(t *testing.T) {
	t.Parallel()

	src := writeSource(t)
	asset := newTestAsset("a1", src)
	asset.Status = store.StatusCompleted
	asset.Progress = 100
	asset.Duration = ptr(12.5)
	asset.ThumbnailPath = ptr("/thumbs/a1.jpg")
	asset.Sensitivity = store.Sensitivity{
		Status:       store.SensitivityFlagged,
		OverallScore: ptr(80),
		Reasons:      []string{"Violent content detected (score: 80)"},
	}

	c := classifier.NewStatic(classifier.DefaultThresholds(), map[string]int{
		"violence": 5, "adult": 5, "hate": 5, "drugs": 5, "language": 5,
	})
	h := newHarness(t, asset, c, true)

	if err := h.p.Reanalyze(context.Background(), "a1"); err != nil {
		t.Fatalf("Reanalyze: %v", err)
	}
	h.waitIdle(t)

	a := h.st.current()
	if a.Status != store.StatusCompleted {
		t.Fatalf("status = %s, want completed", a.Status)
	}
	if a.Sensitivity.Status != store.SensitivitySafe {
		t.Errorf("sensitivity = %s, want safe after reanalysis", a.Sensitivity.Status)
	}
	if len(a.Sensitivity.Reasons) != 0 {
		t.Errorf("reasons = %v, want none", a.Sensitivity.Reasons)
	}
	// Metadata and thumbnail survive a classification-only run.
	if a.Duration == nil || *a.Duration != 12.5 {
		t.Errorf("duration lost during reanalysis: %v", a.Duration)
	}
	if a.ThumbnailPath == nil || *a.ThumbnailPath != "/thumbs/a1.jpg" {
		t.Errorf("thumbnail lost during reanalysis: %v", a.ThumbnailPath)
	}

	// Reanalysis skips the 10/30/50 ingest checkpoints.
	var got []int
	for _, e := range h.n.byName(EventProcessingUpdate) {
		got = append(got, e.Payload.(ProgressPayload).Progress)
	}
	want := []int{70, 90, 92, 96, 100}
	if len(got) != len(want) {
		t.Fatalf("progress checkpoints = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("progress checkpoints = %v, want %v", got, want)
		}
	}
}

func TestReanalyzeRejectsNonCompleted(t *testing.T) {
	t.Parallel()

	for _, status := range []store.Status{
		store.StatusUploading,
		store.StatusProcessing,
		store.StatusAnalyzing,
		store.StatusFailed,
	} {
		asset := newTestAsset("a1", "x")
		asset.Status = status
		rec := &recorder{}
		st := &fakeStore{rec: rec, asset: asset}
		c := classifier.NewStatic(classifier.DefaultThresholds(), map[string]int{"violence": 0})
		p := New(st, &fakeNotifier{rec: rec}, &fakeProber{}, &fakeThumbs{}, c, Config{ThumbnailDir: t.TempDir()})

		if err := p.Reanalyze(context.Background(), "a1"); !errors.Is(err, ErrNotCompleted) {
			t.Errorf("Reanalyze(%s) = %v, want ErrNotCompleted", status, err)
		}
	}
}

func TestReanalyzeQueueFullRestoresCompleted(t *testing.T) {
	t.Parallel()

	asset := newTestAsset("a1", "x")
	asset.Status = store.StatusCompleted
	asset.Progress = 100
	asset.ProgressMessage = "Processing complete. No sensitive content detected."
	asset.Sensitivity = store.Sensitivity{
		Status:       store.SensitivitySafe,
		OverallScore: ptr(12),
	}

	rec := &recorder{}
	st := &fakeStore{rec: rec, asset: asset}
	n := &fakeNotifier{rec: rec}
	c := classifier.NewStatic(classifier.DefaultThresholds(), map[string]int{"violence": 0})
	p := New(st, n, &fakeProber{}, &fakeThumbs{}, c, Config{
		ThumbnailDir: t.TempDir(),
		Workers:      1,
		QueueSize:    1,
	})
	// No Start: the job below fills the queue and never drains.
	if err := p.Submit("other", "y"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := p.Reanalyze(context.Background(), "a1"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Reanalyze = %v, want ErrQueueFull", err)
	}

	// A rejected reanalysis must not strand the asset mid-analysis.
	a := st.current()
	if a.Status != store.StatusCompleted || a.Progress != 100 {
		t.Fatalf("asset left at %s/%d%%, want completed/100", a.Status, a.Progress)
	}
	if a.Sensitivity.Status != store.SensitivitySafe {
		t.Errorf("sensitivity = %s, want safe restored", a.Sensitivity.Status)
	}
	if a.Sensitivity.OverallScore == nil || *a.Sensitivity.OverallScore != 12 {
		t.Errorf("overall score = %v, want 12 restored", a.Sensitivity.OverallScore)
	}
	if a.ProgressMessage != "Processing complete. No sensitive content detected." {
		t.Errorf("progress message = %q", a.ProgressMessage)
	}

	// The in-flight slot was released, so a retry reaches the queue again.
	if err := p.Reanalyze(context.Background(), "a1"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second Reanalyze = %v, want ErrQueueFull", err)
	}
}

func TestReanalyzeUnknownAsset(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	st := &fakeStore{rec: rec}
	c := classifier.NewStatic(classifier.DefaultThresholds(), map[string]int{"violence": 0})
	p := New(st, &fakeNotifier{rec: rec}, &fakeProber{}, &fakeThumbs{}, c, Config{ThumbnailDir: t.TempDir()})

	if err := p.Reanalyze(context.Background(), "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Reanalyze = %v, want ErrNotFound", err)
	}
}

func TestCheckpointPersistFailureAborts(t *testing.T) {
	t.Parallel()

	src := writeSource(t)
	rec := &recorder{}
	st := &fakeStore{rec: rec, asset: newTestAsset("a1", src), failOn: 30}
	n := &fakeNotifier{rec: rec}
	c := classifier.NewStatic(classifier.DefaultThresholds(), map[string]int{"violence": 0})
	p := New(st, n, &fakeProber{}, &fakeThumbs{ok: true}, c, Config{
		ThumbnailDir: t.TempDir(),
		Workers:      1,
	})
	p.Start()
	t.Cleanup(p.Stop)

	if err := p.Submit("a1", src); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st.mu.Lock()
		status := store.StatusUploading
		if st.asset != nil {
			status = st.asset.Status
		}
		st.mu.Unlock()
		if status == store.StatusFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	a := st.current()
	if a.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed after persist error", a.Status)
	}
	// The 30% update never persisted, so no 30% event may have been
	// published.
	for _, e := range n.byName(EventProcessingUpdate) {
		if e.Payload.(ProgressPayload).Progress == 30 {
			t.Fatalf("30%% event published despite persist failure")
		}
	}
}
