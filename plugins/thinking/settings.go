package thinking

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/mtplugins/plugin"
)

const (
	// DefaultURL is the Volcengine Ark chat completion endpoint.
	DefaultURL = "https://ark.cn-beijing.volces.com/api/v3/chat/completions"
	// DefaultModel is used when no model is selected.
	DefaultModel = "doubao-1-5-pro-32k-250115"
)

// Settings is the persisted configuration of the plugin.
type Settings struct {
	URL                 string `json:"url" yaml:"url"`
	APIKey              string `json:"api_key" yaml:"api_key"`
	plugin.ModelCatalog `yaml:",inline"`
	ThinkingEnabled     bool   `json:"thinking_enabled" yaml:"thinking_enabled"`
	// ThinkingVisible controls whether reasoning tokens reach the result.
	ThinkingVisible bool `json:"thinking_visible" yaml:"thinking_visible"`
}

// DefaultSettings returns the settings of a fresh installation.
func DefaultSettings() Settings {
	return Settings{
		URL: DefaultURL,
		ModelCatalog: plugin.ModelCatalog{
			Model: DefaultModel,
			Models: []string{
				"doubao-1-5-pro-32k-250115",
				"deepseek-ai/DeepSeek-R1",
				"deepseek-v3",
				"gpt-4o",
			},
		},
		ThinkingVisible: true,
	}
}

func (s Settings) clone() Settings {
	s.ModelCatalog = s.ModelCatalog.Clone()
	return s
}

// ErrSettingsClosed is returned by mutations after the plugin was disposed.
var ErrSettingsClosed = errors.New("thinking: settings model closed")

// SettingsModel owns the live settings and persists each change.
type SettingsModel struct {
	mu     sync.Mutex
	s      Settings
	save   func(any) error
	logger *zap.Logger
	closed bool
}

func NewSettingsModel(s Settings, save func(any) error, logger *zap.Logger) *SettingsModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsModel{s: s.clone(), save: save, logger: logger}
}

func (m *SettingsModel) Snapshot() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.clone()
}

func (m *SettingsModel) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *SettingsModel) mutate(fn func(s *Settings) bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrSettingsClosed
	}
	if !fn(&m.s) {
		return false, nil
	}
	if m.save == nil {
		return true, nil
	}
	if err := m.save(m.s.clone()); err != nil {
		m.logger.Error("failed to save settings", zap.Error(err))
		return true, fmt.Errorf("save settings: %w", err)
	}
	return true, nil
}

func setField[T comparable](m *SettingsModel, field func(s *Settings) *T, v T) error {
	_, err := m.mutate(func(s *Settings) bool {
		f := field(s)
		if *f == v {
			return false
		}
		*f = v
		return true
	})
	return err
}

func (m *SettingsModel) SetURL(url string) error {
	return setField(m, func(s *Settings) *string { return &s.URL }, url)
}

func (m *SettingsModel) SetAPIKey(key string) error {
	return setField(m, func(s *Settings) *string { return &s.APIKey }, key)
}

func (m *SettingsModel) SelectModel(model string) error {
	return setField(m, func(s *Settings) *string { return &s.Model }, model)
}

func (m *SettingsModel) SetThinkingEnabled(v bool) error {
	return setField(m, func(s *Settings) *bool { return &s.ThinkingEnabled }, v)
}

func (m *SettingsModel) SetThinkingVisible(v bool) error {
	return setField(m, func(s *Settings) *bool { return &s.ThinkingVisible }, v)
}

// AddModel adds and selects model; duplicates and blanks are ignored.
func (m *SettingsModel) AddModel(model string) (bool, error) {
	return m.mutate(func(s *Settings) bool { return s.ModelCatalog.Add(model) })
}

// DeleteModel removes model, reselecting as needed.
func (m *SettingsModel) DeleteModel(model string) (bool, error) {
	return m.mutate(func(s *Settings) bool { return s.ModelCatalog.Delete(model) })
}
