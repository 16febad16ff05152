package http

import (
	"net/url"
	"strings"
)

// Param is one decoded query pair
type Param struct {
	Name  string
	Value string
}

// QueryParams decodes the query component of the request target into
// name/value pairs, preserving order and duplicates.
func (r *Request) QueryParams() []Param {
	return ParseQuery(r.path)
}

// QueryParam returns the first value for name
func (r *Request) QueryParam(name string) (string, bool) {
	for _, p := range r.QueryParams() {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// ParseQuery decodes the part of target after the first '?'. Pairs that
// fail percent-decoding are kept as transmitted.
func ParseQuery(target string) []Param {
	idx := strings.IndexByte(target, '?')
	if idx == -1 {
		return nil
	}
	return ParseForm(target[idx+1:])
}

// ParseForm decodes an application/x-www-form-urlencoded string
func ParseForm(raw string) []Param {
	var params []Param
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		params = append(params, Param{
			Name:  unescape(name),
			Value: unescape(value),
		})
	}
	return params
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
