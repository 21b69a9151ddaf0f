package plugin

import (
	"context"

	"github.com/BaSui01/mtplugins/lang"
)

// Info describes a plugin to the host.
type Info struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Streaming   bool   `json:"streaming" yaml:"streaming"`
}

// Translator is the contract every translation plugin implements.
//
// The host calls Init once before any Translate, and Dispose once at the end.
// Translate is invoked once per request; the plugin reports the outcome by
// mutating res and returns a non-nil error only for fatal failures that the
// host should surface as-is (e.g. a response missing the expected fields).
type Translator interface {
	Info() Info
	Init(pc Context) error
	Dispose()

	// SourceLanguage maps l to the provider identifier. ok is false when the
	// provider does not support l.
	SourceLanguage(l lang.Lang) (id string, ok bool)
	// TargetLanguage is SourceLanguage for the target side.
	TargetLanguage(l lang.Lang) (id string, ok bool)

	Translate(ctx context.Context, req *Request, res *Result) error
}

// Request is a single translation request.
type Request struct {
	ID         string    `json:"id,omitempty"`
	Text       string    `json:"text"`
	SourceLang lang.Lang `json:"source_lang"`
	TargetLang lang.Lang `json:"target_lang"`
}

// Result is the mutable outcome of a translation. Streaming plugins append to
// it as chunks arrive. It is not safe for concurrent mutation; the host must
// deliver stream chunks sequentially.
type Result struct {
	Text      string
	Succeeded bool
	Failed    bool
	Message   string

	// OnAppend, when set, observes every non-empty Append.
	OnAppend func(delta string)
}

// Success replaces the text and marks the result successful.
func (r *Result) Success(text string) {
	r.Text = text
	r.Succeeded = true
	r.Failed = false
	r.Message = ""
}

// Fail marks the result failed with a user-facing message.
func (r *Result) Fail(msg string) {
	r.Succeeded = false
	r.Failed = true
	r.Message = msg
}

// Append adds streamed text.
func (r *Result) Append(delta string) {
	if delta == "" {
		return
	}
	r.Text += delta
	if r.OnAppend != nil {
		r.OnAppend(delta)
	}
}

// Complete marks a streamed result successful, keeping the accumulated text.
func (r *Result) Complete() {
	if r.Failed {
		return
	}
	r.Succeeded = true
}

// Done reports whether the result reached a terminal state.
func (r *Result) Done() bool { return r.Succeeded || r.Failed }
