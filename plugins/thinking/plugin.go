package thinking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mtplugins/plugin"
)

const (
	// ID is the registry identifier.
	ID = "thinking"

	// MsgURLEmpty is the failure message when no endpoint is configured.
	MsgURLEmpty = "API URL is empty. Please configure it in settings."

	systemPrompt = "You are a professional translator. Translate the following content from %s to %s. Only output the translation result."
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type thinkingOption struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Thinking thinkingOption `json:"thinking"`
}

// Plugin implements plugin.Translator for thinking-capable chat endpoints.
type Plugin struct {
	pc       plugin.Context
	logger   *zap.Logger
	settings *SettingsModel
}

// New returns an uninitialized plugin.
func New() *Plugin {
	return &Plugin{logger: zap.NewNop()}
}

func (p *Plugin) Info() plugin.Info {
	return plugin.Info{
		ID:          ID,
		Name:        "Thinking",
		Description: "OpenAI-style chat endpoint with optional deep thinking, streamed",
		Streaming:   true,
	}
}

func (p *Plugin) Init(pc plugin.Context) error {
	p.pc = pc
	p.logger = pc.Logger().With(zap.String("plugin", ID))

	s := DefaultSettings()
	if err := pc.LoadSettings(&s); err != nil {
		return fmt.Errorf("load thinking settings: %w", err)
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
	s := p.settings.Snapshot()

	url := strings.TrimSpace(s.URL)
	if url == "" {
		res.Fail(MsgURLEmpty)
		return nil
	}
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

	body := buildRequest(s, src, dst, req.Text)
	acc := NewStreamAccumulator(res, s.ThinkingVisible)

	err := p.pc.HTTP().StreamPost(ctx, url, body, acc.Feed, plugin.BearerOptions(s.APIKey))
	if acc.Skipped() > 0 {
		p.logger.Debug("skipped unparsable chunks",
			zap.String("request_id", req.ID),
			zap.Int("skipped", acc.Skipped()),
			zap.Int("chunks", acc.Chunks()))
	}
	if err != nil {
		var perr *plugin.Error
		if errors.As(err, &perr) && perr.Provider == "" {
			perr.Provider = ID
		}
		return fmt.Errorf("thinking stream: %w", err)
	}
	res.Complete()
	return nil
}

func buildRequest(s Settings, src, dst, text string) chatRequest {
	mode := "disabled"
	if s.ThinkingEnabled {
		mode = "enabled"
	}
	return chatRequest{
		Model: s.Resolve(DefaultModel),
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, src, dst)},
			{Role: "user", Content: text},
		},
		Stream:   true,
		Thinking: thinkingOption{Type: mode},
	}
}
