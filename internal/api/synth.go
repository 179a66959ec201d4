package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// synthFunc builds the JSON value returned for one synthesized endpoint.
type synthFunc func(req SynthRequest) any

// synthRoute matches a method (empty means any) and a path. Exact routes
// match the path only; prefix routes also match everything below it.
type synthRoute struct {
	method string
	path   string
	exact  bool
	build  synthFunc
}

func (r synthRoute) matches(req SynthRequest) bool {
	if r.method != "" && r.method != req.Method {
		return false
	}

	path := req.Path
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	if r.exact {
		return path == r.path
	}

	return path == r.path || strings.HasPrefix(path, strings.TrimSuffix(r.path, "/")+"/")
}

// routeTable is an ordered list of synthesized endpoints. The first match
// wins; a request nothing matches gets an empty JSON object.
type routeTable []synthRoute

func (t routeTable) synthesize(req SynthRequest) *Response {
	var value any = map[string]any{}

	for _, r := range t {
		if r.matches(req) {
			value = r.build(req)
			break
		}
	}

	return synthesizedResponse(value)
}

// synthesizedResponse encodes value as a 200 JSON response.
func synthesizedResponse(value any) *Response {
	data, err := json.Marshal(value)
	if err != nil {
		data = []byte("{}")
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")

	return &Response{
		Status:    http.StatusOK,
		Header:    header,
		Data:      data,
		Synthetic: true,
	}
}

// bodyObject decodes a JSON object body, returning an empty map for
// anything else.
func bodyObject(body []byte) map[string]any {
	obj := map[string]any{}
	if len(body) == 0 {
		return obj
	}

	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return map[string]any{}
	}

	return obj
}
