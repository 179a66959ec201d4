package api

import (
	"net/http"
)

// Data endpoints with a dedicated placeholder shape.
const (
	dashboardPath     = "/dashboard"
	subscriptionsPath = "/subscriptions"
)

// DataMockStrategy answers data endpoints while the data family is degraded:
// reads return empty collections, writes echo what was sent marked synthetic.
type DataMockStrategy struct {
	table routeTable
}

// NewDataMockStrategy returns the data strategy.
func NewDataMockStrategy() *DataMockStrategy {
	return &DataMockStrategy{
		table: routeTable{
			{method: http.MethodGet, path: dashboardPath, exact: true, build: emptyDashboard},
			{method: http.MethodGet, path: subscriptionsPath, build: noSubscription},
			{method: http.MethodGet, path: "/", build: emptyCollection},
			{method: http.MethodPost, path: "/", build: echoBody},
			{method: http.MethodPut, path: "/", build: echoBody},
			{method: http.MethodPatch, path: "/", build: echoBody},
			{method: http.MethodDelete, path: "/", build: success},
		},
	}
}

// Synthesize implements Strategy.
func (s *DataMockStrategy) Synthesize(req SynthRequest) *Response {
	return s.table.synthesize(req)
}

func emptyDashboard(_ SynthRequest) any {
	return map[string]any{
		"stats": map[string]any{
			"quizzesTaken": 0,
			"averageScore": 0,
			"streak":       0,
		},
		"recentAttempts": []any{},
	}
}

func noSubscription(_ SynthRequest) any {
	return map[string]any{
		"items":  []any{},
		"active": false,
		"plan":   "free",
	}
}

func emptyCollection(_ SynthRequest) any {
	return map[string]any{
		"items": []any{},
		"total": 0,
	}
}

// echoBody returns the submitted JSON object flagged as synthetic, so a
// caller can tell it was never stored.
func echoBody(req SynthRequest) any {
	obj := bodyObject(req.Body)
	obj["synthetic"] = true

	return obj
}
