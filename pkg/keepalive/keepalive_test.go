package keepalive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeAsset имитирует конечные точки reserve/release одного актива
type fakeAsset struct {
	mu       sync.Mutex
	renews   int
	releases int
	respond  func(n int) int // код ответа для n-го renew (с единицы)

	released chan struct{}
}

func newFakeAsset(respond func(n int) int) *fakeAsset {
	return &fakeAsset{respond: respond, released: make(chan struct{}, 1)}
}

func (f *fakeAsset) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/reserve", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.renews++
		code := f.respond(f.renews)
		f.mu.Unlock()
		w.WriteHeader(code)
	})
	mux.HandleFunc("/release", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.releases++
		f.mu.Unlock()
		select {
		case f.released <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (f *fakeAsset) renewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renews
}

func startLoop(t *testing.T, srv *httptest.Server, onChange func(State)) *Loop {
	t.Helper()
	return Start(context.Background(), Config{
		ReserveURL:    srv.URL + "/reserve",
		ReleaseURL:    srv.URL + "/release",
		Token:         "token",
		Interval:      10 * time.Millisecond,
		OnStateChange: onChange,
	})
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestLoopRenewsPeriodically(t *testing.T) {
	asset := newFakeAsset(func(int) int { return http.StatusOK })
	srv := httptest.NewServer(asset.handler())
	defer srv.Close()

	loop := startLoop(t, srv, nil)
	waitFor(t, func() bool { return asset.renewCount() >= 3 }, "expected at least 3 renews")
	loop.Stop()
}

func TestConflictStopsLoop(t *testing.T) {
	asset := newFakeAsset(func(n int) int {
		if n == 1 {
			return http.StatusOK
		}
		return http.StatusConflict
	})
	srv := httptest.NewServer(asset.handler())
	defer srv.Close()

	states := make(chan State, 4)
	loop := startLoop(t, srv, func(s State) { states <- s })

	select {
	case s := <-states:
		if s != StateConflict {
			t.Fatalf("state = %s, want conflict", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no state change after conflict response")
	}

	// Цикл остановился: счётчик продлений больше не растёт
	after := asset.renewCount()
	time.Sleep(50 * time.Millisecond)
	if got := asset.renewCount(); got != after {
		t.Fatalf("renews continued after conflict: %d -> %d", after, got)
	}
	loop.Stop()
}

func TestExpiredContinuesRenewing(t *testing.T) {
	asset := newFakeAsset(func(n int) int {
		if n == 2 {
			return http.StatusRequestTimeout
		}
		return http.StatusOK
	})
	srv := httptest.NewServer(asset.handler())
	defer srv.Close()

	var mu sync.Mutex
	var seen []State
	loop := startLoop(t, srv, func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	// Истечение не останавливает цикл, следующий тик переоформляет аренду
	waitFor(t, func() bool { return asset.renewCount() >= 4 }, "loop stopped after expiry")
	loop.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 2 || seen[0] != StateExpired || seen[1] != StateGranted {
		t.Fatalf("state changes = %v, want [expired granted ...]", seen)
	}
}

func TestServerErrorsRetriedSilently(t *testing.T) {
	asset := newFakeAsset(func(n int) int {
		if n%2 == 0 {
			return http.StatusInternalServerError
		}
		return http.StatusOK
	})
	srv := httptest.NewServer(asset.handler())
	defer srv.Close()

	var changes int
	loop := startLoop(t, srv, func(State) { changes++ })

	waitFor(t, func() bool { return asset.renewCount() >= 4 }, "loop stopped on 5xx")
	loop.Stop()

	if changes != 0 {
		t.Fatalf("5xx produced %d state changes, want 0", changes)
	}
}

func TestStopSendsRelease(t *testing.T) {
	asset := newFakeAsset(func(int) int { return http.StatusOK })
	srv := httptest.NewServer(asset.handler())
	defer srv.Close()

	loop := startLoop(t, srv, nil)
	waitFor(t, func() bool { return asset.renewCount() >= 1 }, "no initial renew")
	loop.Stop()

	select {
	case <-asset.released:
	case <-time.After(2 * time.Second):
		t.Fatal("release endpoint not hit after Stop")
	}
}
