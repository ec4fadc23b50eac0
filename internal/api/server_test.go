package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/npc-favor/internal/agents"
	"github.com/talgya/npc-favor/internal/engine"
	"github.com/talgya/npc-favor/internal/entropy"
	"github.com/talgya/npc-favor/internal/tuning"
	"github.com/talgya/npc-favor/internal/world"
)

const testKey = "secret"

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine, agents.AgentID) {
	t.Helper()
	cfg := tuning.Default()
	m := world.NewMap(500, nil)
	clock := engine.NewSimClock(cfg.Clock, 3)
	sim := engine.NewSimulation(engine.Options{
		Host:   world.Host{Terrain: m, Obstacles: m, Roads: m, Clock: clock, Random: entropy.NewSource(7)},
		Tuning: cfg,
		Seed:   9,
	})
	p := agents.Social
	id := sim.SpawnAgent(world.Vec3{X: 5, Z: 5}, &p)

	eng := engine.NewEngine(sim, clock)
	srv := &Server{Eng: eng, AdminKey: testKey}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, eng, id
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func post(t *testing.T, url, key, body string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	resp.Body.Close()
	return resp
}

func TestStatusAndAgents(t *testing.T) {
	ts, _, id := newTestServer(t)

	var status map[string]any
	if code := getJSON(t, ts.URL+"/api/v1/status", &status); code != http.StatusOK {
		t.Fatalf("status code %d", code)
	}
	if status["run_id"] == "" || status["sim_time"] == nil {
		t.Fatalf("status %v", status)
	}

	var list []map[string]any
	getJSON(t, ts.URL+"/api/v1/agents", &list)
	if len(list) != 1 || uint64(list[0]["id"].(float64)) != uint64(id) {
		t.Fatalf("agents %v", list)
	}
	getJSON(t, ts.URL+"/api/v1/agents?state=working", &list)
	if len(list) != 0 {
		t.Fatalf("state filter let through %v", list)
	}

	var snap map[string]any
	if code := getJSON(t, ts.URL+"/api/v1/agent/1", &snap); code != http.StatusOK || snap["name"] == "" {
		t.Fatalf("agent: %d %v", code, snap)
	}
	if snap["personality"] != "social" || snap["state"] != "idle" {
		t.Fatalf("agent view %v", snap)
	}
	if code := getJSON(t, ts.URL+"/api/v1/agent/99", nil); code != http.StatusNotFound {
		t.Fatalf("unknown agent code %d", code)
	}
	if code := getJSON(t, ts.URL+"/api/v1/agent/abc", nil); code != http.StatusBadRequest {
		t.Fatalf("bad id code %d", code)
	}
}

func TestGotoRequiresAdmin(t *testing.T) {
	ts, eng, id := newTestServer(t)
	url := ts.URL + "/api/v1/agent/1/goto"

	if resp := post(t, url, "", `{"x":100,"z":0}`); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key: %d", resp.StatusCode)
	}
	if resp := post(t, url, "wrong", `{"x":100,"z":0}`); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key: %d", resp.StatusCode)
	}
	if resp := post(t, url, testKey, `{"x":100}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing z: %d", resp.StatusCode)
	}
	if resp := post(t, url, testKey, `{"x":100,"z":0}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("goto: %d", resp.StatusCode)
	}

	var state agents.State
	eng.Locked(func(sim *engine.Simulation) { state = sim.AgentIndex[id].State })
	if state == agents.StateIdle {
		t.Fatalf("agent still idle after goto")
	}
	if resp := post(t, ts.URL+"/api/v1/agent/42/goto", testKey, `{"x":1,"z":1}`); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown agent goto: %d", resp.StatusCode)
	}
}

func TestAdminDisabledWithoutKey(t *testing.T) {
	_, eng, _ := newTestServer(t)
	srv := &Server{Eng: eng}
	open := httptest.NewServer(srv.Handler())
	defer open.Close()

	if resp := post(t, open.URL+"/api/v1/speed", "anything", `{"speed":2}`); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("speed without admin key: %d", resp.StatusCode)
	}
}

func TestGiftAndEvents(t *testing.T) {
	ts, _, _ := newTestServer(t)

	if resp := post(t, ts.URL+"/api/v1/agent/1/gift", testKey, `{"category":"pebbles","value":1}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad category: %d", resp.StatusCode)
	}
	if resp := post(t, ts.URL+"/api/v1/agent/1/gift", testKey, `{"category":"flowers","value":1}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("gift: %d", resp.StatusCode)
	}

	var events []engine.Event
	getJSON(t, ts.URL+"/api/v1/events?category=spawn", &events)
	if len(events) != 1 || events[0].Category != "spawn" {
		t.Fatalf("events %+v", events)
	}
	getJSON(t, ts.URL+"/api/v1/events?since=1000", &events)
	if len(events) != 0 {
		t.Fatalf("since filter: %+v", events)
	}
}

func TestSpeed(t *testing.T) {
	ts, eng, _ := newTestServer(t)
	if resp := post(t, ts.URL+"/api/v1/speed", testKey, `{"speed":5000}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("out of range: %d", resp.StatusCode)
	}
	if resp := post(t, ts.URL+"/api/v1/speed", testKey, `{"speed":4}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("speed: %d", resp.StatusCode)
	}
	var speed float64
	eng.Locked(func(*engine.Simulation) { speed = eng.Speed })
	if speed != 4 {
		t.Fatalf("speed %v", speed)
	}
}

func TestStreamSendsBacklogThenNewEvents(t *testing.T) {
	ts, eng, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var e engine.Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("backlog: %v", err)
	}
	if e.Category != "spawn" {
		t.Fatalf("first event %+v", e)
	}

	eng.Locked(func(sim *engine.Simulation) {
		p := agents.Loner
		sim.SpawnAgent(world.Vec3{X: -20, Z: 10}, &p)
	})
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("live event: %v", err)
	}
	if e.Category != "spawn" || e.Seq < 2 {
		t.Fatalf("live event %+v", e)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatalf("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatalf("other clients are independent")
	}
	if ra := rl.RetryAfter("a"); ra != 61 {
		t.Fatalf("retry after %d", ra)
	}
	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatalf("window should reset")
	}
}

func TestClientAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:5123"
	if got := clientAddr(r); got != "10.0.0.5" {
		t.Fatalf("remote %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientAddr(r); got != "203.0.113.9" {
		t.Fatalf("forwarded %q", got)
	}
}
