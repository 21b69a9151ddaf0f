package plugin

import (
	"context"

	"go.uber.org/zap"
)

// Localization keys every host catalog must define.
const (
	KeyUnsupportedSourceLang = "UnsupportedSourceLang"
	KeyUnsupportedTargetLang = "UnsupportedTargetLang"
)

// Options carries per-request transport options.
type Options struct {
	Headers map[string]string
}

// BearerOptions returns Options with an "Authorization: Bearer <apiKey>" header.
func BearerOptions(apiKey string) *Options {
	return &Options{Headers: map[string]string{"Authorization": "Bearer " + apiKey}}
}

// HTTPService is the host's transport. Bodies are JSON-encoded by the host.
type HTTPService interface {
	// Post sends body and returns the raw response body.
	Post(ctx context.Context, url string, body any, opts *Options) (string, error)

	// StreamPost sends body and invokes onLine for every line of the response,
	// in order, on a single goroutine. It returns when the body is exhausted,
	// ctx is done, or the transport fails.
	StreamPost(ctx context.Context, url string, body any, onLine func(line string), opts *Options) error
}

// Context is what the host hands to a plugin at Init.
type Context interface {
	Logger() *zap.Logger
	HTTP() HTTPService

	// Localize returns the user-facing string for key, or key itself when the
	// catalog has no entry.
	Localize(key string) string

	// LoadSettings decodes the stored settings into v. When nothing is stored
	// v is left untouched and nil is returned.
	LoadSettings(v any) error
	SaveSettings(v any) error
}
