// Package suggest turns keystrokes into debounced suggestion queries and
// delivers only the newest answer per field.
package suggest

import (
	"context"
	"strings"
	"time"

	"tanktally_backend/internal/eventloop"
	"tanktally_backend/internal/geo"
	"tanktally_backend/internal/ports"
	"tanktally_backend/platform/clock"
	"tanktally_backend/platform/logger"
)

// DefaultDebounce is the quiet period after the last keystroke before a query is sent.
const DefaultDebounce = 300 * time.Millisecond

// Result is what a Request eventually delivers. Err is set on failure, in
// which case Suggestions is nil.
type Result struct {
	Field       geo.FieldID
	Seq         uint64
	Text        string
	Suggestions []geo.Suggestion
	Err         error
}

// Sink receives results on the event loop.
type Sink func(Result)

// TokenSource supplies the session token a query is scoped by.
type TokenSource interface {
	CurrentToken() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

// CurrentToken returns f().
func (f TokenFunc) CurrentToken() string { return f() }

type pendingRequest struct {
	field     geo.FieldID
	seq       uint64
	cancelled bool
}

type fieldState struct {
	latest  uint64
	timer   clock.Timer
	pending *pendingRequest
}

// Fetcher must only be used from its executor's loop.
type Fetcher struct {
	exec     eventloop.Executor
	clock    clock.Clock
	geocoder ports.Geocoder
	tokens   TokenSource
	debounce time.Duration
	sink     Sink
	log      *logger.Logger
	fields   map[geo.FieldID]*fieldState
}

// Options configures a Fetcher.
type Options struct {
	Executor eventloop.Executor
	Clock    clock.Clock
	Geocoder ports.Geocoder
	Tokens   TokenSource
	Debounce time.Duration
	Sink     Sink
	Log      *logger.Logger
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	c := opts.Clock
	if c == nil {
		c = clock.Real()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Fetcher{
		exec:     opts.Executor,
		clock:    c,
		geocoder: opts.Geocoder,
		tokens:   opts.Tokens,
		debounce: debounce,
		sink:     opts.Sink,
		log:      opts.Log,
		fields:   make(map[geo.FieldID]*fieldState, len(geo.Fields)),
	}
}

func (f *Fetcher) state(field geo.FieldID) *fieldState {
	st, ok := f.fields[field]
	if !ok {
		st = &fieldState{}
		f.fields[field] = st
	}
	return st
}

// Request supersedes any earlier request for field. Empty text is answered
// immediately with no suggestions; anything else is queried once the field
// has been quiet for the debounce window. It returns the request's sequence number.
func (f *Fetcher) Request(field geo.FieldID, text string) uint64 {
	st := f.state(field)
	f.cancel(st)

	st.latest++
	seq := st.latest

	query := strings.TrimSpace(text)
	if query == "" {
		f.sink(Result{Field: field, Seq: seq, Text: text, Suggestions: []geo.Suggestion{}})
		return seq
	}

	req := &pendingRequest{field: field, seq: seq}
	st.pending = req
	st.timer = f.clock.AfterFunc(f.debounce, func() {
		f.exec.Post(func() { f.fire(req, query) })
	})
	return seq
}

// Cancel drops whatever is pending or in flight for field.
func (f *Fetcher) Cancel(field geo.FieldID) {
	st := f.state(field)
	f.cancel(st)
	st.latest++
}

// Stop cancels every field.
func (f *Fetcher) Stop() {
	for _, field := range geo.Fields {
		f.Cancel(field)
	}
}

// Latest returns the newest sequence number issued for field.
func (f *Fetcher) Latest(field geo.FieldID) uint64 {
	return f.state(field).latest
}

func (f *Fetcher) cancel(st *fieldState) {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	if st.pending != nil {
		st.pending.cancelled = true
		st.pending = nil
	}
}

func (f *Fetcher) current(req *pendingRequest) bool {
	return !req.cancelled && req.seq == f.state(req.field).latest
}

func (f *Fetcher) fire(req *pendingRequest, query string) {
	if !f.current(req) {
		return
	}
	f.state(req.field).timer = nil

	token := f.tokens.CurrentToken()
	f.exec.Go(func(ctx context.Context) func() {
		suggestions, err := f.geocoder.Suggest(ctx, query, token)
		return func() { f.deliver(req, query, suggestions, err) }
	})
}

func (f *Fetcher) deliver(req *pendingRequest, query string, suggestions []geo.Suggestion, err error) {
	st := f.state(req.field)
	if !f.current(req) {
		f.log.StaleResponse("suggest", string(req.field), req.seq, st.latest)
		return
	}
	st.pending = nil

	if err != nil {
		f.sink(Result{Field: req.field, Seq: req.seq, Text: query, Err: err})
		return
	}
	if suggestions == nil {
		suggestions = []geo.Suggestion{}
	}
	f.sink(Result{Field: req.field, Seq: req.seq, Text: query, Suggestions: suggestions})
}
