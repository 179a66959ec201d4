package api

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// Family is a group of endpoints sharing one degraded-mode flag.
type Family int

const (
	FamilyAuth Family = iota + 1
	FamilyData
)

// Families is the complete set of families degraded mode can cover.
var Families = []Family{FamilyAuth, FamilyData}

func (f Family) String() string {
	switch f {
	case FamilyAuth:
		return "auth"
	case FamilyData:
		return "data"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

func (f Family) known() bool {
	for _, k := range Families {
		if f == k {
			return true
		}
	}

	return false
}

// Route assigns every path under Prefix to Family.
type Route struct {
	Prefix string
	Family Family
}

// Routes builds the route list from per-family prefix lists.
func Routes(authPrefixes, dataPrefixes []string) []Route {
	routes := make([]Route, 0, len(authPrefixes)+len(dataPrefixes))

	for _, p := range authPrefixes {
		routes = append(routes, Route{Prefix: p, Family: FamilyAuth})
	}

	for _, p := range dataPrefixes {
		routes = append(routes, Route{Prefix: p, Family: FamilyData})
	}

	return routes
}

// SynthRequest is what a Strategy sees of the call it replaces.
type SynthRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// Strategy synthesizes responses for one family. Synthesize must be total:
// it returns a neutral success for endpoints it does not recognize and never
// fails.
type Strategy interface {
	Synthesize(req SynthRequest) *Response
}

// DegradedConfig configures a DegradedController.
type DegradedConfig struct {
	// Enabled turns automatic activation on. When false, failures always
	// propagate and no flag ever trips.
	Enabled bool

	// ProbeInterval, when positive, lets one real request per interval
	// through to a tripped family; its success clears the flag. Zero keeps
	// flags tripped for the life of the process.
	ProbeInterval time.Duration

	Routes     []Route
	Strategies map[Family]Strategy
}

// DegradedState is a snapshot of the per-family flags.
type DegradedState struct {
	AuthDegraded bool `json:"auth_degraded"`
	DataDegraded bool `json:"data_degraded"`
}

type familyState struct {
	tripped   bool
	reason    Classification
	trippedAt time.Time
	lastProbe time.Time
	probing   bool
}

// DegradedController tracks, per family, whether the backend has been seen
// failing and answers tripped families from their Strategy. A nil
// *DegradedController covers nothing.
type DegradedController struct {
	enabled       bool
	probeInterval time.Duration
	routes        []Route
	strategies    map[Family]Strategy
	logger        *slog.Logger

	mu    sync.Mutex
	state map[Family]*familyState

	// nowFunc returns the current time. Tests override it.
	nowFunc func() time.Time
}

// NewDegradedController validates cfg and returns a controller with every
// flag clear. Every routed family must be known and have a strategy.
func NewDegradedController(cfg DegradedConfig, logger *slog.Logger) (*DegradedController, error) {
	if logger == nil {
		logger = slog.Default()
	}

	routes := make([]Route, 0, len(cfg.Routes))

	for _, r := range cfg.Routes {
		if !r.Family.known() {
			return nil, fmt.Errorf("api: degraded route %q: unknown family %s", r.Prefix, r.Family)
		}

		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("api: degraded route %q: prefix must start with /", r.Prefix)
		}

		if _, ok := cfg.Strategies[r.Family]; !ok {
			return nil, fmt.Errorf("api: degraded route %q: no strategy for family %s", r.Prefix, r.Family)
		}

		prefix := strings.TrimSuffix(r.Prefix, "/")
		if prefix == "" {
			prefix = "/"
		}

		routes = append(routes, Route{Prefix: prefix, Family: r.Family})
	}

	// Longest prefix first so "/auth/admin" can belong to a different
	// family than "/auth".
	sort.SliceStable(routes, func(i, j int) bool {
		return len(routes[i].Prefix) > len(routes[j].Prefix)
	})

	state := make(map[Family]*familyState, len(Families))
	for _, f := range Families {
		state[f] = &familyState{}
	}

	return &DegradedController{
		enabled:       cfg.Enabled,
		probeInterval: cfg.ProbeInterval,
		routes:        routes,
		strategies:    cfg.Strategies,
		logger:        logger,
		state:         state,
		nowFunc:       time.Now,
	}, nil
}

// FamilyOf returns the family covering path, ignoring any query string.
func (d *DegradedController) FamilyOf(path string) (Family, bool) {
	if d == nil {
		return 0, false
	}

	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	for _, r := range d.routes {
		if r.Prefix == "/" || path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/") {
			return r.Family, true
		}
	}

	return 0, false
}

// Tripped reports whether f is in degraded mode.
func (d *DegradedController) Tripped(f Family) bool {
	if d == nil {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.state[f]

	return ok && st.tripped
}

// State returns a snapshot of every flag.
func (d *DegradedController) State() DegradedState {
	return DegradedState{
		AuthDegraded: d.Tripped(FamilyAuth),
		DataDegraded: d.Tripped(FamilyData),
	}
}

// ShortCircuit returns a synthesized response when f is tripped, so the
// caller skips the network. With a probe interval configured, one call per
// interval is let through instead and reported by ok == false.
func (d *DegradedController) ShortCircuit(f Family, req SynthRequest) (*Response, bool) {
	if d == nil {
		return nil, false
	}

	d.mu.Lock()

	st, ok := d.state[f]
	if !ok || !st.tripped {
		d.mu.Unlock()
		return nil, false
	}

	if d.probeInterval > 0 && !st.probing {
		now := d.nowFunc()
		if now.Sub(st.lastProbe) >= d.probeInterval {
			st.probing = true
			st.lastProbe = now
			d.mu.Unlock()

			d.logger.Info("probing backend for degraded family",
				slog.String("family", f.String()),
				slog.String("path", req.Path),
			)

			return nil, false
		}
	}

	d.mu.Unlock()

	return d.synthesize(f, req), true
}

// Fail records a NetworkUnreachable or ServerError failure for f. When
// automatic activation is enabled the flag trips (or stays tripped after a
// failed probe) and the failed call gets a synthesized response.
func (d *DegradedController) Fail(f Family, class Classification, req SynthRequest) (*Response, bool) {
	if d == nil || !d.enabled {
		return nil, false
	}

	if class != ClassNetworkUnreachable && class != ClassServerError {
		return nil, false
	}

	d.mu.Lock()

	st, ok := d.state[f]
	if !ok {
		d.mu.Unlock()
		return nil, false
	}

	st.probing = false

	first := !st.tripped
	if first {
		now := d.nowFunc()
		st.tripped = true
		st.reason = class
		st.trippedAt = now
		st.lastProbe = now
	}

	d.mu.Unlock()

	if first {
		d.logger.Warn("backend failing, entering degraded mode",
			slog.String("family", f.String()),
			slog.String("reason", class.String()),
			slog.String("path", req.Path),
		)
	}

	return d.synthesize(f, req), true
}

// Succeeded records a real successful response for f. It clears the flag
// only when that response was a recovery probe.
func (d *DegradedController) Succeeded(f Family) {
	if d == nil {
		return
	}

	d.mu.Lock()

	st, ok := d.state[f]
	if !ok || !st.tripped || !st.probing {
		d.mu.Unlock()
		return
	}

	since := d.nowFunc().Sub(st.trippedAt)
	reason := st.reason
	*st = familyState{}

	d.mu.Unlock()

	d.logger.Info("backend recovered, leaving degraded mode",
		slog.String("family", f.String()),
		slog.String("reason", reason.String()),
		slog.Duration("degraded_for", since),
	)
}

// AbandonProbe releases a probe that ended without a backend verdict, for
// example because its caller canceled.
func (d *DegradedController) AbandonProbe(f Family) {
	if d == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if st, ok := d.state[f]; ok {
		st.probing = false
	}
}

func (d *DegradedController) synthesize(f Family, req SynthRequest) *Response {
	resp := d.strategies[f].Synthesize(req)

	d.logger.Debug("synthesized degraded-mode response",
		slog.String("family", f.String()),
		slog.String("method", req.Method),
		slog.String("path", req.Path),
	)

	return resp
}

// DefaultStrategies returns the built-in strategy for every family. current
// supplies the identity reported by synthesized auth responses.
func DefaultStrategies(current IdentitySource) map[Family]Strategy {
	return map[Family]Strategy{
		FamilyAuth: NewAuthMockStrategy(current),
		FamilyData: NewDataMockStrategy(),
	}
}
