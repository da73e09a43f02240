package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasnguyen/corgi-quest/internal/auth"
	"github.com/thomasnguyen/corgi-quest/internal/events"
	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/openai"
	"github.com/thomasnguyen/corgi-quest/internal/progression"
	"github.com/thomasnguyen/corgi-quest/internal/services"
	"github.com/thomasnguyen/corgi-quest/internal/store/sqlite"
)

const testOrigin = "http://localhost:5173"

type fakeStatus struct{ healthy bool }

func (f fakeStatus) IsHealthy() bool { return f.healthy }
func (f fakeStatus) Components() map[string]bool {
	return map[string]bool{"store": f.healthy}
}

type fakeChat struct {
	content string
	err     error
}

func (f *fakeChat) ChatJSON(context.Context, string, string, string) (string, error) {
	return f.content, f.err
}

type fakeMinter struct{}

func (fakeMinter) CreateRealtimeSession(_ context.Context, model, voice string) (*openai.RealtimeSession, error) {
	return &openai.RealtimeSession{ClientSecret: "ek_test", Model: model, Voice: voice}, nil
}

type fakeRecommender struct{}

func (fakeRecommender) Recommendations(context.Context, string, string) ([]model.Recommendation, error) {
	return []model.Recommendation{{Title: "Sniff walk", Stat: model.StatPhysical, DurationMinutes: 20}}, nil
}

type testServer struct {
	srv  *httptest.Server
	bus  *events.Bus
	chat *fakeChat
}

func newTestServer(t *testing.T, chat *fakeChat) *testServer {
	t.Helper()
	st, err := sqlite.New(context.Background(), sqlite.MemoryPath, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	rules := services.Rules{MaxHouseholdMembers: 2, DailyPhysicalTarget: 60, DailyMentalTarget: 40, DefaultTimeZone: "UTC"}
	bus := events.NewBus(16)
	log := zerolog.Nop()

	goals := services.NewGoalService(st, rules, bus)
	streaks := services.NewStreakService(st, rules)
	activities := services.NewActivityService(st, rules, progression.DefaultCatalog(), bus, log)

	var completer services.ChatCompleter
	if chat != nil {
		completer = chat
	}
	d := Deps{
		Households:      services.NewHouseholdService(st, rules),
		Dogs:            services.NewDogService(st, goals, streaks),
		Activities:      activities,
		Goals:           goals,
		Streaks:         streaks,
		Moods:           services.NewMoodService(st, rules, bus),
		Cosmetics:       services.NewCosmeticService(st, rules, bus),
		Recommendations: services.NewRecommendationService(st, rules, fakeRecommender{}, log),
		Voice:           services.NewVoiceService(activities, completer, fakeMinter{}, services.VoiceConfig{RealtimeModel: "gpt-realtime", RealtimeVoice: "alloy"}, log),
		Issuer:          auth.NewIssuer("test-secret", time.Hour),
		Bus:             bus,
		Health:          fakeStatus{healthy: true},
		AllowedOrigins:  []string{testOrigin},
		Log:             log,
	}
	srv := httptest.NewServer(NewRouter(d))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, bus: bus, chat: chat}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			rdr = bytes.NewReader(raw)
		}
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rdr)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func (ts *testServer) createHousehold(t *testing.T) membershipResponse {
	t.Helper()
	code, body := ts.do(t, http.MethodPost, "/api/households", "", map[string]string{
		"householdName": "The Nguyens", "memberName": "Thomas", "dogName": "Bumi",
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	var m membershipResponse
	require.NoError(t, json.Unmarshal(body, &m))
	require.NotEmpty(t, m.Token)
	return m
}

func hhPath(m membershipResponse, suffix string) string {
	return "/api/households/" + m.Household.HouseholdID + suffix
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var e struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &e))
	return e.Message
}

func TestHouseholdLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	m := ts.createHousehold(t)
	assert.Equal(t, "Bumi", m.Dog.Name)

	code, body := ts.do(t, http.MethodGet, hhPath(m, ""), m.Token, nil)
	require.Equal(t, http.StatusOK, code, string(body))
	var got struct {
		Household model.Household  `json:"household"`
		Members   []model.User     `json:"members"`
		Profile   model.DogProfile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Len(t, got.Members, 1)
	assert.Equal(t, 1, got.Profile.Dog.Level)
	assert.Len(t, got.Profile.Stats, 4)
	require.NotNil(t, got.Profile.Today)
	assert.Equal(t, 60, got.Profile.Today.PhysicalTarget)

	code, body = ts.do(t, http.MethodPost, "/api/households/join", "", map[string]string{"inviteCode": m.Household.InviteCode, "name": "Linh"})
	require.Equal(t, http.StatusOK, code, string(body))
	var joined membershipResponse
	require.NoError(t, json.Unmarshal(body, &joined))
	assert.Equal(t, m.Household.HouseholdID, joined.Household.HouseholdID)
	assert.NotEqual(t, m.User.UserID, joined.User.UserID)

	code, _ = ts.do(t, http.MethodPost, "/api/households/join", "", map[string]string{"inviteCode": m.Household.InviteCode, "name": "Third"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = ts.do(t, http.MethodPost, "/api/households/join", "", map[string]string{"inviteCode": "NOPE", "name": "Third"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do(t, http.MethodPost, "/api/households", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAuthorization(t *testing.T) {
	ts := newTestServer(t, nil)
	a := ts.createHousehold(t)
	b := ts.createHousehold(t)

	code, _ := ts.do(t, http.MethodGet, hhPath(a, ""), "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = ts.do(t, http.MethodGet, hhPath(a, ""), "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := ts.do(t, http.MethodGet, hhPath(a, "/streak"), b.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "token does not belong to this household", errorMessage(t, body))

	code, _ = ts.do(t, http.MethodGet, "/api/households/not-a-uuid/streak", a.Token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestActivities(t *testing.T) {
	ts := newTestServer(t, nil)
	m := ts.createHousehold(t)

	report := map[string]interface{}{
		"activity_name": "Fetch", "duration_minutes": 15,
		"int_xp": 5, "phy_xp": 20, "imp_xp": 0, "soc_xp": 0,
		"physical_points": 20, "mental_points": 5,
	}
	code, body := ts.do(t, http.MethodPost, hhPath(m, "/activities"), m.Token, report)
	require.Equal(t, http.StatusCreated, code, string(body))
	var res activityResponse
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, model.SourceManual, res.Activity.Source)
	require.NotNil(t, res.Activity.UserID)
	assert.Equal(t, m.User.UserID, *res.Activity.UserID)
	assert.Equal(t, 20, res.Goal.PhysicalPoints)
	assert.NotEmpty(t, res.Message)

	code, body = ts.do(t, http.MethodPost, hhPath(m, "/activities?source=realtime"), m.Token, report)
	require.Equal(t, http.StatusCreated, code, string(body))
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, model.SourceRealtime, res.Activity.Source)

	code, _ = ts.do(t, http.MethodPost, hhPath(m, "/activities?source=catalog"), m.Token, report)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = ts.do(t, http.MethodPost, hhPath(m, "/activities"), m.Token, map[string]interface{}{"activity_name": "Walk"})
	assert.Equal(t, http.StatusBadRequest, code, string(body))

	code, body = ts.do(t, http.MethodPost, hhPath(m, "/activities/catalog"), m.Token, map[string]interface{}{"activityType": "walking", "durationMinutes": 20})
	require.Equal(t, http.StatusCreated, code, string(body))
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, "Walk", res.Activity.Name)
	assert.Equal(t, model.SourceCatalog, res.Activity.Source)

	code, body = ts.do(t, http.MethodPost, hhPath(m, "/activities/catalog"), m.Token, map[string]interface{}{"activityType": "skydiving", "durationMinutes": 20})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, errorMessage(t, body), "skydiving")

	code, _ = ts.do(t, http.MethodPost, hhPath(m, "/activities/catalog"), m.Token, map[string]interface{}{"activityType": "walk", "durationMinutes": 0})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = ts.do(t, http.MethodGet, hhPath(m, "/activities?limit=2"), m.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Items []model.Activity `json:"items"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "Walk", list.Items[0].Name)

	code, _ = ts.do(t, http.MethodGet, hhPath(m, "/activities?limit=abc"), m.Token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = ts.do(t, http.MethodGet, hhPath(m, "/activities?since=2000-01-01"), m.Token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 3, list.Count)

	code, body = ts.do(t, http.MethodGet, hhPath(m, "/activities?since=2999-01-01"), m.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"items":[],"count":0}`, string(body))

	code, _ = ts.do(t, http.MethodGet, hhPath(m, "/activities?since=yesterday"), m.Token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	id := list.Items[0].ActivityID
	code, _ = ts.do(t, http.MethodDelete, hhPath(m, "/activities/"+id), m.Token, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = ts.do(t, http.MethodDelete, hhPath(m, "/activities/"+id), m.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = ts.do(t, http.MethodDelete, hhPath(m, "/activities/abc"), m.Token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestActivityCatalogIsPublic(t *testing.T) {
	ts := newTestServer(t, nil)
	code, body := ts.do(t, http.MethodGet, "/api/activity-catalog", "", nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Items []progression.ActivityType `json:"items"`
		Count int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, len(list.Items), list.Count)
	assert.Equal(t, "Walk", list.Items[0].Name)
}

func TestGoalsStreakAndMoods(t *testing.T) {
	ts := newTestServer(t, nil)
	m := ts.createHousehold(t)

	code, body := ts.do(t, http.MethodGet, hhPath(m, "/goals/today"), m.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var goal model.DailyGoal
	require.NoError(t, json.Unmarshal(body, &goal))
	assert.Equal(t, 60, goal.PhysicalTarget)
	assert.Equal(t, 40, goal.MentalTarget)

	code, _ = ts.do(t, http.MethodPut, hhPath(m, "/goals/today"), m.Token, map[string]int{"physicalTarget": 0, "mentalTarget": 10})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = ts.do(t, http.MethodPut, hhPath(m, "/goals/today"), m.Token, map[string]int{"physicalTarget": 10, "mentalTarget": 5})
	require.Equal(t, http.StatusOK, code, string(body))
	require.NoError(t, json.Unmarshal(body, &goal))
	assert.Equal(t, 10, goal.PhysicalTarget)
	assert.Nil(t, goal.CompletedTime)

	code, _ = ts.do(t, http.MethodPost, hhPath(m, "/activities/catalog"), m.Token, map[string]interface{}{"activityType": "training session", "durationMinutes": 30})
	require.Equal(t, http.StatusCreated, code)
	code, _ = ts.do(t, http.MethodPost, hhPath(m, "/activities/catalog"), m.Token, map[string]interface{}{"activityType": "walk", "durationMinutes": 30})
	require.Equal(t, http.StatusCreated, code)

	code, body = ts.do(t, http.MethodGet, hhPath(m, "/streak"), m.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var streak model.Streak
	require.NoError(t, json.Unmarshal(body, &streak))
	assert.Equal(t, 1, streak.Current)
	assert.Equal(t, 1, streak.Longest)

	code, body = ts.do(t, http.MethodPost, hhPath(m, "/moods"), m.Token, map[string]string{"mood": "Happy", "note": "zoomies"})
	require.Equal(t, http.StatusCreated, code, string(body))
	var mood model.MoodLog
	require.NoError(t, json.Unmarshal(body, &mood))
	assert.Equal(t, model.MoodHappy, mood.Mood)

	code, _ = ts.do(t, http.MethodPost, hhPath(m, "/moods"), m.Token, map[string]string{"mood": "sleepy"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = ts.do(t, http.MethodGet, hhPath(m, "/moods"), m.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"count":1`)
}

func TestCosmetics(t *testing.T) {
	ts := newTestServer(t, nil)
	m := ts.createHousehold(t)

	code, body := ts.do(t, http.MethodGet, hhPath(m, "/cosmetics"), m.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Items []model.CosmeticView `json:"items"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.NotEmpty(t, list.Items)

	code, body = ts.do(t, http.MethodPut, hhPath(m, "/cosmetics/equipped"), m.Token, map[string]string{"itemId": "hat-party"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "unlocks at level 3", errorMessage(t, body))

	code, body = ts.do(t, http.MethodPut, hhPath(m, "/cosmetics/equipped"), m.Token, map[string]string{"itemId": "collar-red"})
	require.Equal(t, http.StatusOK, code, string(body))
	var eq model.EquippedItem
	require.NoError(t, json.Unmarshal(body, &eq))
	assert.Equal(t, "collar-red", eq.ItemID)

	code, _ = ts.do(t, http.MethodPut, hhPath(m, "/cosmetics/equipped"), m.Token, map[string]string{"itemId": ""})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodDelete, hhPath(m, "/cosmetics/equipped"), m.Token, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = ts.do(t, http.MethodDelete, hhPath(m, "/cosmetics/equipped"), m.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAssistantEndpoints(t *testing.T) {
	chat := &fakeChat{content: `{"activity_name":"Walk","int_xp":0,"phy_xp":30,"imp_xp":5,"soc_xp":0,"physical_points":30,"mental_points":5}`}
	ts := newTestServer(t, chat)
	m := ts.createHousehold(t)

	code, body := ts.do(t, http.MethodPost, hhPath(m, "/voice/parse"), m.Token, map[string]string{"text": "Hey Bumi, we walked to the park"})
	require.Equal(t, http.StatusCreated, code, string(body))
	var parsed services.ParsedActivity
	require.NoError(t, json.Unmarshal(body, &parsed))
	assert.True(t, parsed.WakeWord.Detected)
	assert.Equal(t, model.SourceVoice, parsed.Result.Activity.Source)

	code, _ = ts.do(t, http.MethodPost, hhPath(m, "/voice/parse"), m.Token, map[string]string{"text": " "})
	assert.Equal(t, http.StatusBadRequest, code)

	chat.content = "not json"
	code, body = ts.do(t, http.MethodPost, hhPath(m, "/voice/parse"), m.Token, map[string]string{"text": "we walked"})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "The assistant returned an unexpected response.", errorMessage(t, body))

	chat.err = &openai.Error{Kind: openai.ErrRateLimited, Op: "parse_activity", Message: "The assistant is busy."}
	code, body = ts.do(t, http.MethodPost, hhPath(m, "/voice/parse"), m.Token, map[string]string{"text": "we walked"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "The assistant is busy.", errorMessage(t, body))

	chat.err = &openai.Error{Kind: openai.ErrTimeout, Op: "parse_activity", Message: "slow"}
	code, _ = ts.do(t, http.MethodPost, hhPath(m, "/voice/parse"), m.Token, map[string]string{"text": "we walked"})
	assert.Equal(t, http.StatusGatewayTimeout, code)

	code, body = ts.do(t, http.MethodPost, hhPath(m, "/voice/token"), m.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var sess openai.RealtimeSession
	require.NoError(t, json.Unmarshal(body, &sess))
	assert.Equal(t, "ek_test", sess.ClientSecret)
	assert.Equal(t, "gpt-realtime", sess.Model)

	code, body = ts.do(t, http.MethodPost, hhPath(m, "/recommendations/weekly"), m.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "Sniff walk")
}

func TestVoiceParse_NotConfigured(t *testing.T) {
	ts := newTestServer(t, nil)
	m := ts.createHousehold(t)

	code, _ := ts.do(t, http.MethodPost, hhPath(m, "/voice/parse"), m.Token, map[string]string{"text": "we walked"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestLiveFeed(t *testing.T) {
	ts := newTestServer(t, nil)
	m := ts.createHousehold(t)

	wsURL := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + hhPath(m, "/live") + "?token=" + m.Token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	hid := m.Household.HouseholdID
	require.Eventually(t, func() bool { return ts.bus.Subscribers(hid) == 1 }, 2*time.Second, 10*time.Millisecond)

	code, _ := ts.do(t, http.MethodPost, hhPath(m, "/moods"), m.Token, map[string]string{"mood": "calm"})
	require.Equal(t, http.StatusCreated, code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var evt struct {
		Type        string          `json:"type"`
		HouseholdID string          `json:"householdId"`
		Data        json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, string(events.EventMoodLogged), evt.Type)
	assert.Equal(t, hid, evt.HouseholdID)
	assert.Contains(t, string(evt.Data), `"mood":"calm"`)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return ts.bus.Subscribers(hid) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestLiveFeed_RejectsBadToken(t *testing.T) {
	ts := newTestServer(t, nil)
	m := ts.createHousehold(t)

	wsURL := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + hhPath(m, "/live") + "?token=nope"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthMetricsAndCORS(t *testing.T) {
	ts := newTestServer(t, nil)

	code, body := ts.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	var health struct {
		Status     string          `json:"status"`
		Components map[string]bool `json:"components"`
	}
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.Components["store"])

	code, body = ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "corgi_quest_http_request_duration_seconds")

	req, err := http.NewRequest(http.MethodOptions, ts.srv.URL+"/api/households", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealth_Unhealthy(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHealthHandler(fakeStatus{}).CheckHealth(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"unhealthy"`)
}
