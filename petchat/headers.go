package petchat

import "net/http"

// HeaderValue is one configured HTTP header source.
// The concrete kinds are StaticHeader, HeaderFunc and AuthHeader.
type HeaderValue interface {
	apply(key string, h http.Header) error
}

// StaticHeader is a fixed header value.
type StaticHeader string

func (s StaticHeader) apply(key string, h http.Header) error {
	if s != "" {
		h.Set(key, string(s))
	}
	return nil
}

// HeaderFunc is resolved on every request, e.g. to read a refreshed token.
type HeaderFunc func() (string, error)

func (f HeaderFunc) apply(key string, h http.Header) error {
	if f == nil {
		return nil
	}
	v, err := f()
	if err != nil {
		return err
	}
	if v != "" {
		h.Set(key, v)
	}
	return nil
}

// AuthHeader sets the Authorization header whatever key it is registered under.
type AuthHeader struct {
	Authorization string
}

func (a AuthHeader) apply(_ string, h http.Header) error {
	if a.Authorization != "" {
		h.Set("Authorization", a.Authorization)
	}
	return nil
}

// resolveHeaders evaluates every configured source. Failing sources are
// reported through onErr and skipped.
func resolveHeaders(values map[string]HeaderValue, onErr func(key string, err error)) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	for key, v := range values {
		if v == nil {
			continue
		}
		if err := v.apply(key, h); err != nil && onErr != nil {
			onErr(key, err)
		}
	}
	return h
}
