// Package keepalive реализует клиентский цикл продления аренды.
// Пока страница редактирования открыта, цикл раз в интервал продлевает
// аренду; при закрытии отправляет release без ожидания ответа — аналог
// navigator.sendBeacon. Недоставка терпима: аренду вернёт истечение TTL.
package keepalive

import (
	"context"
	"log"
	"net/http"
	"time"
)

// State — состояние аренды, о котором цикл сообщает через OnStateChange
type State int

const (
	StateGranted State = iota
	StateConflict
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateGranted:
		return "granted"
	case StateConflict:
		return "conflict"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

type Config struct {
	// ReserveURL и ReleaseURL — конечные точки актива
	ReserveURL string
	ReleaseURL string
	// Token — bearer-токен пользователя
	Token string
	// Interval — период продления; должен быть заметно меньше TTL аренды
	Interval time.Duration
	// OnStateChange вызывается при смене состояния аренды. Conflict и
	// Expired требуют вмешательства интерфейса; транспортные сбои и 5xx
	// сюда не попадают — они молча повторяются на следующем тике
	OnStateChange func(State)
	HTTPClient    *http.Client
}

// Loop — работающий цикл продления
type Loop struct {
	cfg    Config
	cancel context.CancelFunc
	done   chan struct{}
	state  State
}

// Start запускает цикл продления. Первый запрос уходит сразу, дальше —
// по тикам интервала. Цикл живёт до Stop или отмены ctx.
func Start(ctx context.Context, cfg Config) *Loop {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}

	ctx, cancel := context.WithCancel(ctx)
	l := &Loop{
		cfg:    cfg,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateGranted,
	}

	go l.run(ctx)
	return l
}

// Stop останавливает цикл и отправляет best-effort release.
// Ответ release не ожидается.
func (l *Loop) Stop() {
	l.cancel()
	<-l.done

	// Отдельный контекст: цикл уже отменён, а release должен успеть уйти
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.ReleaseURL, nil)
		if err != nil {
			return
		}
		req.Header.Set("Authorization", "Bearer "+l.cfg.Token)

		resp, err := l.cfg.HTTPClient.Do(req)
		if err != nil {
			log.Printf("[keepalive] Best-effort release not delivered: %v", err)
			return
		}
		resp.Body.Close()
	}()
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	if stop := l.renew(ctx); stop {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stop := l.renew(ctx); stop {
				return
			}
		}
	}
}

// renew делает один запрос продления. Возвращает true, когда цикл должен
// остановиться: Conflict означает чужую работу над активом, её не
// перебивают автоматическими повторами.
func (l *Loop) renew(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.ReserveURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+l.cfg.Token)

	resp, err := l.cfg.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		// Транспортный сбой: повторим на следующем тике
		log.Printf("[keepalive] Renew failed, will retry: %v", err)
		return false
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		l.setState(StateGranted)
		return false
	case http.StatusConflict:
		l.setState(StateConflict)
		return true
	case http.StatusRequestTimeout:
		// Собственная аренда истекла; следующий тик переоформит её
		l.setState(StateExpired)
		return false
	default:
		log.Printf("[keepalive] Renew returned status %d, will retry", resp.StatusCode)
		return false
	}
}

func (l *Loop) setState(next State) {
	if l.state == next {
		return
	}
	l.state = next
	if l.cfg.OnStateChange != nil {
		l.cfg.OnStateChange(next)
	}
}
