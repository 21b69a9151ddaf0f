package qwenmt

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/mtplugins/plugin"
)

// DefaultModel is used when no model is selected.
const DefaultModel = "qwen-mt-turbo"

// Term is a glossary entry. The JSON names match the exported glossary files.
type Term struct {
	SourceText string `json:"SourceText" yaml:"source_text"`
	TargetText string `json:"TargetText" yaml:"target_text"`
}

// Settings is the persisted configuration of the plugin.
type Settings struct {
	APIKey              string `json:"api_key" yaml:"api_key"`
	plugin.ModelCatalog `yaml:",inline"`
	TermsEnabled        bool   `json:"terms_enabled" yaml:"terms_enabled"`
	DomainsEnabled      bool   `json:"domains_enabled" yaml:"domains_enabled"`
	Terms               []Term `json:"terms" yaml:"terms"`
	// Domains is a free-form domain hint passed through to the model.
	Domains string `json:"domains" yaml:"domains"`
}

// DefaultSettings returns the settings of a fresh installation.
func DefaultSettings() Settings {
	return Settings{
		ModelCatalog: plugin.ModelCatalog{
			Model:  DefaultModel,
			Models: []string{"qwen-mt-turbo", "qwen-mt-plus"},
		},
		Terms: []Term{},
	}
}

func (s Settings) clone() Settings {
	s.ModelCatalog = s.ModelCatalog.Clone()
	s.Terms = slices.Clone(s.Terms)
	if s.Terms == nil {
		s.Terms = []Term{}
	}
	return s
}

// ErrSettingsClosed is returned by mutations after the plugin was disposed.
var ErrSettingsClosed = errors.New("qwenmt: settings model closed")

// SettingsModel owns the live settings. Every mutation that changes state is
// persisted through save before it returns.
type SettingsModel struct {
	mu     sync.Mutex
	s      Settings
	save   func(any) error
	logger *zap.Logger
	closed bool
}

// NewSettingsModel wraps s. save is called with a snapshot after each change.
func NewSettingsModel(s Settings, save func(any) error, logger *zap.Logger) *SettingsModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsModel{s: s.clone(), save: save, logger: logger}
}

// Snapshot returns a deep copy of the current settings.
func (m *SettingsModel) Snapshot() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.clone()
}

// Close detaches the model from persistence.
func (m *SettingsModel) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// mutate applies fn and persists when fn reports a change.
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

func (m *SettingsModel) SetAPIKey(key string) error {
	_, err := m.mutate(func(s *Settings) bool {
		if s.APIKey == key {
			return false
		}
		s.APIKey = key
		return true
	})
	return err
}

// SelectModel sets the current model without touching the list.
func (m *SettingsModel) SelectModel(model string) error {
	_, err := m.mutate(func(s *Settings) bool {
		if s.Model == model {
			return false
		}
		s.Model = model
		return true
	})
	return err
}

// AddModel adds and selects model; duplicates and blanks are ignored.
func (m *SettingsModel) AddModel(model string) (bool, error) {
	return m.mutate(func(s *Settings) bool { return s.ModelCatalog.Add(model) })
}

// DeleteModel removes model, reselecting as needed.
func (m *SettingsModel) DeleteModel(model string) (bool, error) {
	return m.mutate(func(s *Settings) bool { return s.ModelCatalog.Delete(model) })
}

func (m *SettingsModel) SetTermsEnabled(enabled bool) error {
	_, err := m.mutate(func(s *Settings) bool {
		if s.TermsEnabled == enabled {
			return false
		}
		s.TermsEnabled = enabled
		return true
	})
	return err
}

func (m *SettingsModel) SetDomainsEnabled(enabled bool) error {
	_, err := m.mutate(func(s *Settings) bool {
		if s.DomainsEnabled == enabled {
			return false
		}
		s.DomainsEnabled = enabled
		return true
	})
	return err
}

func (m *SettingsModel) SetDomains(domains string) error {
	_, err := m.mutate(func(s *Settings) bool {
		if s.Domains == domains {
			return false
		}
		s.Domains = domains
		return true
	})
	return err
}

// AddTerm appends t and returns its index.
func (m *SettingsModel) AddTerm(t Term) (int, error) {
	idx := -1
	_, err := m.mutate(func(s *Settings) bool {
		s.Terms = append(s.Terms, t)
		idx = len(s.Terms) - 1
		return true
	})
	return idx, err
}

// UpdateTerm replaces the term at index i.
func (m *SettingsModel) UpdateTerm(i int, t Term) error {
	var rangeErr error
	_, err := m.mutate(func(s *Settings) bool {
		if i < 0 || i >= len(s.Terms) {
			rangeErr = fmt.Errorf("term index %d out of range [0,%d)", i, len(s.Terms))
			return false
		}
		if s.Terms[i] == t {
			return false
		}
		s.Terms[i] = t
		return true
	})
	if rangeErr != nil {
		return rangeErr
	}
	return err
}

// DeleteTerm removes the term at index i; out-of-range indices are ignored.
func (m *SettingsModel) DeleteTerm(i int) (bool, error) {
	return m.mutate(func(s *Settings) bool {
		if i < 0 || i >= len(s.Terms) {
			return false
		}
		s.Terms = slices.Delete(s.Terms, i, i+1)
		return true
	})
}

// ClearTerms empties the glossary. An already empty glossary is not saved.
func (m *SettingsModel) ClearTerms() (bool, error) {
	return m.mutate(func(s *Settings) bool {
		if len(s.Terms) == 0 {
			return false
		}
		s.Terms = []Term{}
		return true
	})
}

// replaceTerms swaps in a whole glossary.
func (m *SettingsModel) replaceTerms(terms []Term) error {
	_, err := m.mutate(func(s *Settings) bool {
		s.Terms = slices.Clone(terms)
		if s.Terms == nil {
			s.Terms = []Term{}
		}
		return true
	})
	return err
}
