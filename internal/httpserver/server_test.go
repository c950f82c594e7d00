package httpserver_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/gate"
	"github.com/MrSnakeDoc/pause/internal/httpserver"
	"github.com/MrSnakeDoc/pause/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pause/internal/lifecycle"
	"github.com/MrSnakeDoc/pause/internal/logger"
	"github.com/MrSnakeDoc/pause/internal/notify"
	"github.com/MrSnakeDoc/pause/internal/scheduler"
	"github.com/MrSnakeDoc/pause/internal/sources/marketplace"
	"github.com/MrSnakeDoc/pause/internal/store"
	"github.com/MrSnakeDoc/pause/internal/store/sqlite"
)

type testServer struct {
	*httptest.Server
	deps deps.Deps
}

func newTestServer(t *testing.T, mutate func(d *deps.Deps)) *testServer {
	t.Helper()
	log := logger.NewNop()

	backend, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "pause.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	entities := store.NewEntities(backend)
	timers, err := scheduler.NewTimers(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = timers.Stop() })

	sender := notify.NewStoreSender(backend, log, "icon.png")
	completer := lifecycle.NewCompleter(entities, sender, log)
	registry, err := marketplace.NewRegistry(marketplace.Defaults)
	require.NoError(t, err)

	d := deps.Deps{
		Logger:         log,
		StartTime:      time.Now(),
		Version:        "test",
		AllowedOrigins: []string{"chrome-extension://*"},
		RateBurst:      100,
		RatePerMin:     100,
		SummaryURL:     "/api/products",
		StoreDriver:    "sqlite",
		Entities:       entities,
		Notifier:       backend,
		Marketplaces:   registry,
		Gate:           gate.NewService(entities, registry, log, time.Second),
		Lifecycle:      lifecycle.NewManager(entities, timers, log),
		Notifications:  sender,
		Timers:         timers,
		Sweeper:        scheduler.NewDueSweeper(entities, completer, backend, log, time.Minute),
	}
	if mutate != nil {
		mutate(&d)
	}

	srv := httptest.NewServer(httpserver.NewRouter(log, d))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, deps: d}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type decisionBody struct {
	View     string           `json:"view"`
	Reason   string           `json:"reason"`
	Product  *domain.Product  `json:"product"`
	Reminder *domain.Reminder `json:"reminder"`
	Stale    bool             `json:"stale"`
}

func headphones(tabID string) gate.Request {
	return gate.Request{
		Marketplace: "amazon",
		ProductID:   "B0001",
		TabID:       tabID,
		Observed:    domain.Product{Name: "Headphones", Price: "$99"},
	}
}

func TestHealthzAndReadyz(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[map[string]any](t, resp)
	require.Equal(t, "ok", health["status"])
	require.Equal(t, "test", health["version"])

	resp = s.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, decode[map[string]any](t, resp)["ready"])
}

func TestDecisionLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodGet, "/api/tab-id", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tabID := decode[map[string]string](t, resp)["tabId"]
	require.NotEmpty(t, tabID)

	// fresh product: prompt
	resp = s.do(t, http.MethodPost, "/api/decision", headphones(tabID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decode[decisionBody](t, resp)
	require.Equal(t, string(gate.ViewProduct), d.View)
	require.Equal(t, "amazon-B0001", d.Product.Key)

	// sleep on it from this tab
	resp = s.do(t, http.MethodPost, "/api/products/sleep-on-it", map[string]any{
		"product":    d.Product,
		"durationMs": time.Hour.Milliseconds(),
		"tabId":      tabID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reminderID := decode[map[string]any](t, resp)["reminderId"].(string)
	require.NotEmpty(t, reminderID)
	require.True(t, s.deps.Timers.IsArmed(reminderID))

	// the creating tab sees its own confirmation once
	d = decode[decisionBody](t, s.do(t, http.MethodPost, "/api/decision", headphones(tabID)))
	require.Equal(t, string(gate.ViewProduct), d.View)
	require.Equal(t, gate.ReasonJustCreated, d.Reason)

	// then the early return prompt
	d = decode[decisionBody](t, s.do(t, http.MethodPost, "/api/decision", headphones(tabID)))
	require.Equal(t, string(gate.ViewEarlyReturn), d.View)
	require.Equal(t, reminderID, d.Reminder.ID)

	// a decision ends it
	resp = s.do(t, http.MethodPost, "/api/products/need-it", map[string]string{
		"productKey": "amazon-B0001",
		"reminderId": reminderID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, s.deps.Timers.IsArmed(reminderID))

	d = decode[decisionBody](t, s.do(t, http.MethodPost, "/api/decision", headphones("other-tab")))
	require.Equal(t, string(gate.ViewHidden), d.View)

	resp = s.do(t, http.MethodGet, "/api/reminders", nil)
	require.Equal(t, float64(0), decode[map[string]any](t, resp)["count"])

	resp = s.do(t, http.MethodGet, "/api/products/amazon-B0001", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[map[string]domain.Product](t, resp)["product"]
	require.Equal(t, domain.StateINeedThis, p.State)
	require.Equal(t, "Headphones", p.Name)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, nil)

	unsupported := headphones("tab")
	unsupported.Marketplace = "walmart"

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unsupported marketplace", http.MethodPost, "/api/decision", unsupported, http.StatusUnprocessableEntity},
		{"unknown field", http.MethodPost, "/api/decision", map[string]string{"bogus": "x"}, http.StatusBadRequest},
		{"zero duration", http.MethodPost, "/api/products/sleep-on-it", map[string]any{
			"product":    domain.Product{Key: "amazon-B0001"},
			"durationMs": 0,
		}, http.StatusBadRequest},
		{"product without identity", http.MethodPost, "/api/products/dont-need-it", map[string]any{
			"product": domain.Product{Name: "nameless"},
		}, http.StatusBadRequest},
		{"malformed key", http.MethodPost, "/api/products/need-it", map[string]string{"productKey": "nodash"}, http.StatusBadRequest},
		{"dont-need-it on unsupported marketplace", http.MethodPost, "/api/products/dont-need-it", map[string]any{
			"product": domain.Product{Key: "walmart-1", Name: "Blender"},
		}, http.StatusUnprocessableEntity},
		{"sleep-on-it on unsupported marketplace", http.MethodPost, "/api/products/sleep-on-it", map[string]any{
			"product":    domain.Product{Marketplace: "walmart", MarketplaceProductID: "1"},
			"durationMs": time.Hour.Milliseconds(),
		}, http.StatusUnprocessableEntity},
		{"need-it on unsupported marketplace", http.MethodPost, "/api/products/need-it", map[string]string{"productKey": "walmart-1"}, http.StatusUnprocessableEntity},
		{"product id rejected by marketplace", http.MethodPost, "/api/products/dont-need-it", map[string]any{
			"product": domain.Product{Key: "ebay-abc"},
		}, http.StatusBadRequest},
		{"unknown product", http.MethodGet, "/api/products/amazon-NOPE", nil, http.StatusNotFound},
		{"unknown notification", http.MethodGet, "/api/notifications/nope", nil, http.StatusNotFound},
		{"snooze in the past", http.MethodPut, "/api/pause/snooze", map[string]int64{"until": 1}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.want, resp.StatusCode)
		})
	}

	products, err := s.deps.Entities.Products(context.Background())
	require.NoError(t, err)
	require.Empty(t, products)
	reminders, err := s.deps.Entities.Reminders(context.Background())
	require.NoError(t, err)
	require.Empty(t, reminders)
}

func TestPauseEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodPut, "/api/pause/snooze", map[string]int64{"forMs": time.Hour.Milliseconds()})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	gp := decode[domain.GlobalPause](t, resp)
	require.NotNil(t, gp.SnoozeUntil)

	d := decode[decisionBody](t, s.do(t, http.MethodPost, "/api/decision", headphones("tab")))
	require.Equal(t, string(gate.ViewHidden), d.View)
	require.Equal(t, gate.ReasonSnoozed, d.Reason)

	gp = decode[domain.GlobalPause](t, s.do(t, http.MethodDelete, "/api/pause/snooze", nil))
	require.Nil(t, gp.SnoozeUntil)

	gp = decode[domain.GlobalPause](t, s.do(t, http.MethodPut, "/api/pause/close", map[string]bool{"closed": true}))
	require.True(t, gp.GlobalPluginClosed)

	d = decode[decisionBody](t, s.do(t, http.MethodPost, "/api/decision", headphones("tab")))
	require.Equal(t, gate.ReasonClosed, d.Reason)

	gp = decode[domain.GlobalPause](t, s.do(t, http.MethodGet, "/api/pause", nil))
	require.True(t, gp.GlobalPluginClosed)
}

func TestDueCheckCompletesOverdueReminders(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, err := s.deps.Entities.UpsertProduct(ctx, "amazon-B0001", func(p *domain.Product, _ bool) {
		p.Name = "Headphones"
		p.State = domain.StateSleepingOnIt
	})
	require.NoError(t, err)
	overdue := domain.NewReminder("r-1", "amazon-B0001", time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, s.deps.Entities.AppendReminder(ctx, overdue))

	resp := s.do(t, http.MethodPost, "/api/due-check", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), decode[map[string]any](t, resp)["completed"])

	r, ok, err := s.deps.Entities.Reminder(ctx, "r-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.ReminderCompleted, r.Status)

	resp = s.do(t, http.MethodGet, "/infra", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "optimal", decode[map[string]any](t, resp)["mode"])
}

func TestNotificationClick(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	id, err := s.deps.Notifications.Create(ctx, notify.Notification{Title: "saved", ProductKey: "amazon-B0001"})
	require.NoError(t, err)

	resp := s.do(t, http.MethodGet, "/api/notifications/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/notifications/"+id+"/click", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/api/products", resp.Header.Get("Location"))

	_, err = s.deps.Notifications.Get(ctx, id)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRateLimitOnMutations(t *testing.T) {
	s := newTestServer(t, func(d *deps.Deps) {
		d.RateBurst = 1
		d.RatePerMin = 1
	})

	body := map[string]string{"productKey": "amazon-B0001"}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/products/changed-my-mind", body).StatusCode)

	resp := s.do(t, http.MethodPost, "/api/products/changed-my-mind", body)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))

	// reads are not limited
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/products", nil).StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, s.URL+"/api/decision", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "chrome-extension://abcdef", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestDecisionStream(t *testing.T) {
	s := newTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := s.URL + "/api/decision/stream?marketplace=amazon&productId=B0001&tabId=tab-1&name=Headphones"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() decisionBody {
		t.Helper()
		for lines.Scan() {
			line := lines.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var d decisionBody
				require.NoError(t, json.Unmarshal([]byte(data), &d))
				return d
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return decisionBody{}
	}

	require.Equal(t, string(gate.ViewProduct), next().View)

	require.NoError(t, s.deps.Entities.SetGlobalClosed(context.Background(), true))
	d := next()
	require.Equal(t, string(gate.ViewHidden), d.View)
	require.Equal(t, gate.ReasonClosed, d.Reason)
}

func TestDecisionStream_RequiresProduct(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.do(t, http.MethodGet, "/api/decision/stream?marketplace=amazon", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
