package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zerotwo/gios-airsync/internal/updater"
)

type fakeUpdater struct {
	mu     sync.Mutex
	cities []string
	fail   map[string]bool
	block  bool
	errs   []error
}

func (f *fakeUpdater) UpdateCity(ctx context.Context, city string, progress updater.ProgressFunc) (int, error) {
	f.mu.Lock()
	f.cities = append(f.cities, city)
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		f.mu.Lock()
		f.errs = append(f.errs, ctx.Err())
		f.mu.Unlock()
		return 0, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[city] {
		return 0, errors.New("boom")
	}
	return 2, nil
}

func (f *fakeUpdater) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cities...)
}

func TestRunOnceContinuesAfterFailure(t *testing.T) {
	u := &fakeUpdater{fail: map[string]bool{"Awaria": true}}
	s := New([]string{"Poznań", "Awaria", "Kraków"}, time.Minute, time.Second, u, nil)

	total := s.RunOnce(context.Background())
	if total != 4 {
		t.Fatalf("expected 4 inserted, got %d", total)
	}
	if got := u.seen(); len(got) != 3 {
		t.Fatalf("expected every city to run, got %v", got)
	}
}

func TestStartWithoutCities(t *testing.T) {
	s := New(nil, time.Minute, 0, &fakeUpdater{}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
}

func TestStartRejectsZeroInterval(t *testing.T) {
	s := New([]string{"Poznań"}, 0, 0, &fakeUpdater{}, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestStartRunsImmediately(t *testing.T) {
	u := &fakeUpdater{}
	s := New([]string{"Poznań"}, time.Hour, 0, u, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(u.seen()) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected the first run to start right away")
}

func TestStartCancelsRunningSync(t *testing.T) {
	u := &fakeUpdater{block: true}
	s := New([]string{"Poznań"}, time.Hour, 0, u, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()

	waitFor(t, func() bool { return len(u.seen()) > 0 })
	cancel()
	waitFor(t, func() bool {
		u.mu.Lock()
		defer u.mu.Unlock()
		return len(u.errs) == 1 && errors.Is(u.errs[0], context.Canceled)
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
