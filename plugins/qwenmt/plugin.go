package qwenmt

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/BaSui01/mtplugins/plugin"
)

const (
	// ID is the registry identifier.
	ID = "qwenmt"

	// Endpoint is the DashScope OpenAI-compatible chat completion URL.
	Endpoint = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
)

// =============================================================================
// Request types
// =============================================================================

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type termOption struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// translationOptions uses pointers so that an enabled but empty glossary is
// still sent as "terms": [] while a disabled one is omitted.
type translationOptions struct {
	SourceLang string        `json:"source_lang"`
	TargetLang string        `json:"target_lang"`
	Terms      *[]termOption `json:"terms,omitempty"`
	Domains    *string       `json:"domains,omitempty"`
}

type chatRequest struct {
	Model              string             `json:"model"`
	Messages           []chatMessage      `json:"messages"`
	TranslationOptions translationOptions `json:"translation_options"`
}

// =============================================================================
// Plugin
// =============================================================================

// Plugin implements plugin.Translator for Qwen-MT.
type Plugin struct {
	endpoint string

	pc       plugin.Context
	logger   *zap.Logger
	settings *SettingsModel
}

// Option customizes a Plugin.
type Option func(*Plugin)

// WithEndpoint overrides the chat completion URL.
func WithEndpoint(url string) Option {
	return func(p *Plugin) { p.endpoint = url }
}

// New returns an uninitialized plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{endpoint: Endpoint, logger: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Plugin) Info() plugin.Info {
	return plugin.Info{
		ID:          ID,
		Name:        "Qwen-MT",
		Description: "Alibaba Qwen machine translation with glossary and domain hints",
	}
}

// Init loads the stored settings, falling back to defaults.
func (p *Plugin) Init(pc plugin.Context) error {
	p.pc = pc
	p.logger = pc.Logger().With(zap.String("plugin", ID))

	s := DefaultSettings()
	if err := pc.LoadSettings(&s); err != nil {
		return fmt.Errorf("load qwenmt settings: %w", err)
	}
	p.settings = NewSettingsModel(s, pc.SaveSettings, p.logger)
	return nil
}

func (p *Plugin) Dispose() {
	if p.settings != nil {
		p.settings.Close()
	}
}

// Settings returns the live settings model. It is nil before Init.
func (p *Plugin) Settings() *SettingsModel { return p.settings }

func (p *Plugin) Translate(ctx context.Context, req *plugin.Request, res *plugin.Result) error {
	src, ok := p.SourceLanguage(req.SourceLang)
	if !ok {
		res.Fail(p.pc.Localize(plugin.KeyUnsupportedSourceLang))
		return nil
	}
	dst, ok := p.TargetLanguage(req.TargetLang)
	if !ok {
		res.Fail(p.pc.Localize(plugin.KeyUnsupportedTargetLang))
		return nil
	}

	s := p.settings.Snapshot()
	body := buildRequest(s, src, dst, req.Text)

	raw, err := p.pc.HTTP().Post(ctx, p.endpoint, body, plugin.BearerOptions(s.APIKey))
	if err != nil {
		var perr *plugin.Error
		if errors.As(err, &perr) && perr.Provider == "" {
			perr.Provider = ID
		}
		return fmt.Errorf("qwenmt request: %w", err)
	}

	text, err := parseResponse(raw)
	if err != nil {
		p.logger.Warn("unexpected response", zap.String("request_id", req.ID), zap.Error(err))
		return err
	}
	res.Success(text)
	return nil
}

func buildRequest(s Settings, src, dst, text string) chatRequest {
	opts := translationOptions{SourceLang: src, TargetLang: dst}
	if s.TermsEnabled {
		terms := make([]termOption, 0, len(s.Terms))
		for _, t := range s.Terms {
			terms = append(terms, termOption{Source: t.SourceText, Target: t.TargetText})
		}
		opts.Terms = &terms
	}
	if s.DomainsEnabled {
		domains := s.Domains
		opts.Domains = &domains
	}
	return chatRequest{
		Model:              s.Resolve(DefaultModel),
		Messages:           []chatMessage{{Role: "user", Content: text}},
		TranslationOptions: opts,
	}
}

// parseResponse extracts choices[0].message.content.
func parseResponse(raw string) (string, error) {
	choices := gjson.Get(raw, "choices")
	if gjson.Valid(raw) && choices.IsArray() {
		content := choices.Get("0.message.content")
		if content.Exists() && content.Type != gjson.Null {
			return content.String(), nil
		}
	}
	return "", plugin.NewError(plugin.ErrNoResult, "No result.\nRaw: "+raw).WithProvider(ID)
}
