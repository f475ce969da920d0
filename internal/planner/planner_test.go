package planner

import (
	"context"
	"sync"
	"testing"
	"time"

	"tanktally_backend/internal/events"
	"tanktally_backend/internal/geo"
	"tanktally_backend/internal/mapsurface"
	"tanktally_backend/internal/ports/portstest"
	"tanktally_backend/internal/session"
	"tanktally_backend/platform/apperr"
	"tanktally_backend/platform/clock"
	"tanktally_backend/platform/logger"
)

const debounce = 300 * time.Millisecond

var (
	boston     = geo.Coordinates{Longitude: -71.0589, Latitude: 42.3601}
	providence = geo.Coordinates{Longitude: -71.4128, Latitude: 41.824}
	worcester  = geo.Coordinates{Longitude: -71.8023, Latitude: 42.2626}
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Handle(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventName())
	}
	return out
}

func (r *recorder) count(name string) int {
	n := 0
	for _, got := range r.names() {
		if got == name {
			n++
		}
	}
	return n
}

type harness struct {
	t        *testing.T
	clock    *clock.Fake
	geocoder *portstest.Geocoder
	router   *portstest.Router
	surface  *mapsurface.Surface
	events   *recorder
	planner  *Planner
}

func newHarness(t *testing.T, policy session.Policy) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		clock:    clock.NewFake(),
		geocoder: portstest.NewGeocoder(),
		router:   portstest.NewRouter(),
		events:   &recorder{},
	}
	bus := events.NewInMemoryBus(logger.Discard())
	bus.Subscribe(events.Wildcard, h.events)

	view := geo.View{Center: geo.Coordinates{Longitude: -70.9, Latitude: 42.35}, Zoom: 9}
	h.surface = mapsurface.New(view, nil)
	h.planner = New("p-1", view, h.surface, Dependencies{
		Geocoder: h.geocoder,
		Router:   h.router,
		Clock:    h.clock,
		Bus:      bus,
		Log:      logger.Discard(),
	}, Settings{Debounce: debounce, Rotation: policy})
	h.planner.Start(context.Background())
	t.Cleanup(func() { h.planner.Stop("test") })
	return h
}

func (h *harness) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	h.t.Cleanup(cancel)
	return ctx
}

func (h *harness) settle() {
	h.t.Helper()
	if err := h.planner.Settle(h.ctx()); err != nil {
		h.t.Fatalf("Settle: %v", err)
	}
}

// typeText sets the field text and lets the debounced query run.
func (h *harness) typeText(field geo.FieldID, text string) {
	h.t.Helper()
	if err := h.planner.SetText(h.ctx(), field, text); err != nil {
		h.t.Fatalf("SetText(%s): %v", field, err)
	}
	h.clock.Advance(debounce)
	h.settle()
}

func (h *harness) pick(field geo.FieldID, id string) {
	h.t.Helper()
	if err := h.planner.Select(h.ctx(), field, id); err != nil {
		h.t.Fatalf("Select(%s, %s): %v", field, id, err)
	}
	h.settle()
}

func (h *harness) snapshot() Snapshot {
	h.t.Helper()
	snap, err := h.planner.Snapshot(h.ctx())
	if err != nil {
		h.t.Fatalf("Snapshot: %v", err)
	}
	return snap
}

func (h *harness) awaitStarted(key string) {
	h.t.Helper()
	select {
	case got := <-h.geocoder.Started():
		if got != key {
			h.t.Fatalf("started %q, want %q", got, key)
		}
	case <-time.After(2 * time.Second):
		h.t.Fatalf("timed out waiting for %s", key)
	}
}

func (h *harness) offer(query, id, label string, coords geo.Coordinates) {
	h.geocoder.OnSuggest(query, []geo.Suggestion{{ID: id, Label: label}}, nil)
	h.geocoder.OnRetrieve(id, coords, nil)
}

func TestPlanRouteEndToEnd(t *testing.T) {
	h := newHarness(t, session.PolicyNever)
	h.offer("Boston", "s-bos", "Boston, MA", boston)
	h.offer("Providence", "s-pvd", "Providence, RI", providence)

	h.typeText(geo.FieldStart, "Boston")
	snap := h.snapshot()
	if got := snap.Fields.Get(geo.FieldStart).Suggestions; len(got) != 1 || got[0].ID != "s-bos" {
		t.Fatalf("start suggestions = %+v", got)
	}

	h.pick(geo.FieldStart, "s-bos")
	snap = h.snapshot()
	if r := snap.Fields.Get(geo.FieldStart).Resolved; r == nil || *r != boston {
		t.Fatalf("start resolved = %v", r)
	}
	if snap.Map.Center != boston {
		t.Fatalf("map should center on the first endpoint, got %v", snap.Map.Center)
	}
	if len(h.router.Calls()) != 0 {
		t.Fatal("route requested with only one endpoint")
	}

	h.typeText(geo.FieldEnd, "Providence")
	h.pick(geo.FieldEnd, "s-pvd")

	snap = h.snapshot()
	route := snap.Map.Route()
	if len(route) != 2 || route[0] != boston || route[1] != providence {
		t.Fatalf("route layer = %v", route)
	}
	if snap.Map.Markers[string(geo.FieldStart)] != boston || snap.Map.Markers[string(geo.FieldEnd)] != providence {
		t.Fatalf("markers = %v", snap.Map.Markers)
	}
	if h.events.count("planner.route.rendered") != 1 {
		t.Fatalf("events = %v", h.events.names())
	}

	token := snap.Session.Value
	for _, q := range h.geocoder.Queries() {
		if q.Token != token {
			t.Fatalf("suggest used token %q, want %q", q.Token, token)
		}
	}
	for _, r := range h.geocoder.Retrieves() {
		if r.Token != token {
			t.Fatalf("retrieve used token %q, want %q", r.Token, token)
		}
	}
}

func TestSelectRequiresOfferedSuggestion(t *testing.T) {
	h := newHarness(t, session.PolicyNever)
	h.offer("Boston", "s-bos", "Boston, MA", boston)
	h.typeText(geo.FieldStart, "Boston")

	err := h.planner.Select(h.ctx(), geo.FieldStart, "s-other")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if len(h.geocoder.Retrieves()) != 0 {
		t.Fatal("retrieve issued for a suggestion that was never offered")
	}
}

func TestEditDuringResolutionDropsLateCoordinates(t *testing.T) {
	h := newHarness(t, session.PolicyNever)
	h.offer("Boston", "s-bos", "Boston, MA", boston)
	h.typeText(geo.FieldStart, "Boston")
	h.awaitStarted("suggest:Boston")

	release := h.geocoder.HoldRetrieve("s-bos")
	if err := h.planner.Select(h.ctx(), geo.FieldStart, "s-bos"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	h.awaitStarted("retrieve:s-bos")

	if err := h.planner.SetText(h.ctx(), geo.FieldStart, "Bosto"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	release()
	h.settle()

	snap := h.snapshot()
	if snap.Fields.Get(geo.FieldStart).Resolved != nil {
		t.Fatal("late resolution applied after the field was edited")
	}
	if h.events.count("planner.location.resolved") != 0 {
		t.Fatalf("events = %v", h.events.names())
	}
}

func TestLaterSelectionWinsOverSlowerEarlierOne(t *testing.T) {
	h := newHarness(t, session.PolicyNever)
	h.geocoder.OnSuggest("Mass", []geo.Suggestion{
		{ID: "s-bos", Label: "Boston, MA"},
		{ID: "s-wor", Label: "Worcester, MA"},
	}, nil)
	h.geocoder.OnRetrieve("s-bos", boston, nil)
	h.geocoder.OnRetrieve("s-wor", worcester, nil)
	h.typeText(geo.FieldStart, "Mass")
	h.awaitStarted("suggest:Mass")

	release := h.geocoder.HoldRetrieve("s-bos")
	defer release()
	if err := h.planner.Select(h.ctx(), geo.FieldStart, "s-bos"); err != nil {
		t.Fatalf("Select(s-bos): %v", err)
	}
	h.awaitStarted("retrieve:s-bos")
	if err := h.planner.Select(h.ctx(), geo.FieldStart, "s-wor"); err != nil {
		t.Fatalf("Select(s-wor): %v", err)
	}
	h.awaitStarted("retrieve:s-wor")

	deadline := time.Now().Add(2 * time.Second)
	for {
		r := h.snapshot().Fields.Get(geo.FieldStart).Resolved
		if r != nil && *r == worcester {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("second selection never applied, resolved = %v", r)
		}
		time.Sleep(5 * time.Millisecond)
	}

	release()
	h.settle()

	snap := h.snapshot()
	if r := snap.Fields.Get(geo.FieldStart).Resolved; r == nil || *r != worcester {
		t.Fatalf("start resolved = %v, want %v", r, worcester)
	}
	if got := snap.Map.Markers[string(geo.FieldStart)]; got != worcester {
		t.Fatalf("start marker = %v, want %v", got, worcester)
	}
	if h.events.count("planner.location.resolved") != 1 {
		t.Fatalf("events = %v", h.events.names())
	}
}

func TestResolveFailurePublishesAndKeepsField(t *testing.T) {
	h := newHarness(t, session.PolicyNever)
	h.geocoder.OnSuggest("Nowhere", []geo.Suggestion{{ID: "s-x", Label: "Nowhere"}}, nil)
	h.geocoder.OnRetrieve("s-x", geo.Coordinates{}, apperr.Provider("upstream failed"))

	h.typeText(geo.FieldStart, "Nowhere")
	h.pick(geo.FieldStart, "s-x")

	if h.events.count("planner.location.resolve_failed") != 1 {
		t.Fatalf("events = %v", h.events.names())
	}
	snap := h.snapshot()
	f := snap.Fields.Get(geo.FieldStart)
	if f.Resolved != nil || f.RawText != "Nowhere" {
		t.Fatalf("field = %+v", f)
	}
}

func TestSuggestFailureClearsSuggestions(t *testing.T) {
	h := newHarness(t, session.PolicyNever)
	h.geocoder.OnSuggest("Bos", nil, apperr.Network("timeout", context.DeadlineExceeded))

	h.typeText(geo.FieldStart, "Bos")

	if h.events.count("planner.suggestions.failed") != 1 {
		t.Fatalf("events = %v", h.events.names())
	}
	if got := h.snapshot().Fields.Get(geo.FieldStart).Suggestions; len(got) != 0 {
		t.Fatalf("suggestions = %v", got)
	}
}

func TestChangingEndpointReroutesAndClearingResets(t *testing.T) {
	h := newHarness(t, session.PolicyNever)
	h.offer("Boston", "s-bos", "Boston, MA", boston)
	h.offer("Providence", "s-pvd", "Providence, RI", providence)
	h.offer("Worcester", "s-wor", "Worcester, MA", worcester)

	h.typeText(geo.FieldStart, "Boston")
	h.pick(geo.FieldStart, "s-bos")
	h.typeText(geo.FieldEnd, "Providence")
	h.pick(geo.FieldEnd, "s-pvd")

	h.typeText(geo.FieldEnd, "Worcester")
	if h.events.count("planner.route.cleared") != 1 {
		t.Fatalf("editing an endpoint should clear the route, events = %v", h.events.names())
	}
	if len(h.snapshot().Map.Route()) != 0 {
		t.Fatal("route layer not emptied")
	}

	h.pick(geo.FieldEnd, "s-wor")
	route := h.snapshot().Map.Route()
	if len(route) != 2 || route[1] != worcester {
		t.Fatalf("route = %v", route)
	}
	if len(h.router.Calls()) != 2 {
		t.Fatalf("router calls = %v", h.router.Calls())
	}
}

func TestAfterRoutePolicyRotatesSession(t *testing.T) {
	h := newHarness(t, session.PolicyAfterRoute)
	h.offer("Boston", "s-bos", "Boston, MA", boston)
	h.offer("Providence", "s-pvd", "Providence, RI", providence)

	h.typeText(geo.FieldStart, "Boston")
	before := h.snapshot().Session.Value
	h.pick(geo.FieldStart, "s-bos")
	h.typeText(geo.FieldEnd, "Providence")
	h.pick(geo.FieldEnd, "s-pvd")

	if h.events.count("planner.session.rotated") != 1 {
		t.Fatalf("events = %v", h.events.names())
	}
	if after := h.snapshot().Session.Value; after == before {
		t.Fatal("session token did not change after the route rendered")
	}
}

func TestRotateSessionManual(t *testing.T) {
	h := newHarness(t, session.PolicyNever)
	before := h.snapshot().Session.Value

	token, err := h.planner.RotateSession(h.ctx())
	if err != nil {
		t.Fatalf("RotateSession: %v", err)
	}
	if token.Value == before || token.Value == "" {
		t.Fatalf("token = %q, before = %q", token.Value, before)
	}
	if h.events.count("planner.session.rotated") != 1 {
		t.Fatalf("events = %v", h.events.names())
	}
}

func TestStopIsIdempotentAndRejectsWork(t *testing.T) {
	h := newHarness(t, session.PolicyNever)
	h.planner.Stop("deleted")
	h.planner.Stop("deleted")

	select {
	case <-h.planner.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit")
	}
	if h.events.count("planner.stopped") != 1 {
		t.Fatalf("events = %v", h.events.names())
	}
	if err := h.planner.SetText(h.ctx(), geo.FieldStart, "x"); err == nil {
		t.Fatal("SetText succeeded on a stopped planner")
	}
}
