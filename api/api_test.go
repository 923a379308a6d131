package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tablebot/config"
	"tablebot/middleware"
	"tablebot/models"
	"tablebot/platform/platformtest"
	"tablebot/services"
	"tablebot/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeArchive struct {
	filter  services.HistoryFilter
	records []models.EventRecord
	err     error
}

func (f *fakeArchive) History(_ context.Context, filter services.HistoryFilter) ([]models.EventRecord, error) {
	f.filter = filter
	return f.records, f.err
}

type apiEnv struct {
	router   *gin.Engine
	platform *platformtest.Platform
	help     *services.HelpService
	mr       *miniredis.Miniredis
	token    string
}

func newAPIEnv(t *testing.T, archive HistoryReader) *apiEnv {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		TablesCategoryID:  "20",
		MentorsChannelID:  "30",
		ReportsChannelID:  "40",
		EveryoneRoleID:    "1",
		TeamlessRoleID:    "5",
		BotRoleID:         "6",
		MentorRoleID:      "7",
		ManagerRoleID:     "8",
		JWTSecret:         "secret",
		JWTExpiry:         time.Hour,
		OpsUsername:       "ops",
		OpsPasswordHash:   string(hash),
		RequestRateLimit:  10,
		RequestRateWindow: time.Minute,
	}

	p := platformtest.New()
	p.SeedRole("5", "Teamless")
	p.SetChannelName("30", "mentors")
	p.AddMember("42", "5")

	mr := miniredis.RunT(t)
	s := store.NewRedisStore(store.Options{Addr: mr.Addr()})
	t.Cleanup(func() { s.Close() })

	log := zap.NewNop()
	bus := services.NewEventBus(nil, log)
	dir := services.NewDirectory(s)
	tables := services.NewTableService(p, dir, services.NewProvisioner(p, cfg, log), bus, cfg, log)
	help := services.NewHelpService(services.NewHelpQueue(s, log), tables, services.NewNotifier(p, cfg, log), bus, s, cfg, log)
	feed := services.NewFeedHub(10, log)

	r := gin.New()
	r.Use(middleware.JWTAuth(cfg.JWTSecret))
	RegisterRoutes(r, Dependencies{
		Config:  cfg,
		Store:   s,
		Tables:  tables,
		Help:    help,
		Archive: archive,
		Feed:    feed,
		Log:     log,
	})

	token, err := middleware.GenerateToken(cfg.JWTSecret, "ops", time.Hour)
	require.NoError(t, err)

	return &apiEnv{router: r, platform: p, help: help, mr: mr, token: token}
}

func (e *apiEnv) do(method, path, body string, auth bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestLogin(t *testing.T) {
	env := newAPIEnv(t, nil)

	w := env.do(http.MethodPost, "/api/login", `{"username":"ops","password":"hunter2"}`, false)
	require.Equal(t, http.StatusOK, w.Code)
	token, _ := decode(t, w)["token"].(string)
	claims, err := middleware.ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Username)

	w = env.do(http.MethodPost, "/api/login", `{"username":"ops","password":"wrong"}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/login", `{"username":"admin","password":"hunter2"}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/login", `{"username":"ops"}`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestsEndpoints(t *testing.T) {
	env := newAPIEnv(t, nil)
	ctx := context.Background()

	w := env.do(http.MethodGet, "/api/requests", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/requests", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["count"])

	req, err := env.help.Request(ctx, "42", "alice", "fix bug", "")
	require.NoError(t, err)

	w = env.do(http.MethodGet, "/api/requests", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["count"])
	first := body["requests"].([]any)[0].(map[string]any)
	assert.Equal(t, req.ID, first["id"])
	assert.Equal(t, "alice", first["attribution"])

	w = env.do(http.MethodDelete, "/api/requests/"+req.ID, "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.mr.Exists(models.HelpRequestKey(req.ID)))

	w = env.do(http.MethodDelete, "/api/requests/not-an-id!", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTablesEndpoint(t *testing.T) {
	env := newAPIEnv(t, nil)

	w := env.do(http.MethodGet, "/api/tables/42", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["teamless"])
	assert.Equal(t, "", body["label"])

	w = env.do(http.MethodGet, "/api/tables/unknown", "", true)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	t.Run("archive disabled", func(t *testing.T) {
		env := newAPIEnv(t, nil)
		w := env.do(http.MethodGet, "/api/history", "", true)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("filters", func(t *testing.T) {
		archive := &fakeArchive{records: []models.EventRecord{{EventID: "e1", Type: models.TableJoined, ParticipantID: "42"}}}
		env := newAPIEnv(t, archive)

		w := env.do(http.MethodGet, "/api/history?participant_id=42&type=table.joined&limit=5", "", true)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, services.HistoryFilter{ParticipantID: "42", Type: models.TableJoined, Limit: 5}, archive.filter)
		assert.Equal(t, float64(1), decode(t, w)["count"])

		w = env.do(http.MethodGet, "/api/history?limit=zero", "", true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("archive error", func(t *testing.T) {
		env := newAPIEnv(t, &fakeArchive{err: errors.New("db down")})
		w := env.do(http.MethodGet, "/api/history", "", true)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestMonitorEndpoint(t *testing.T) {
	env := newAPIEnv(t, nil)

	w := env.do(http.MethodGet, "/api/monitor/system", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["store"])
	assert.Equal(t, float64(0), body["feed_connections"])
	assert.Equal(t, false, body["kafka"].(map[string]any)["enabled"])
}
