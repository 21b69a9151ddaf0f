package qwenmt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// DefaultTermsFile is the file name used when no path is given.
const DefaultTermsFile = "qwen_terms.json"

// ExportTerms writes the glossary as indented JSON. Non-ASCII text is written
// as-is.
func (m *SettingsModel) ExportTerms(w io.Writer) error {
	terms := m.Snapshot().Terms

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(terms); err != nil {
		m.logger.Error("export terms failed", zap.Error(err))
		return fmt.Errorf("encode terms: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		m.logger.Error("export terms failed", zap.Error(err))
		return fmt.Errorf("write terms: %w", err)
	}
	return nil
}

// ImportTerms replaces the glossary with the JSON list read from r. On a
// decode failure the glossary is left untouched. A JSON null is ignored.
func (m *SettingsModel) ImportTerms(r io.Reader) (int, error) {
	var terms []Term
	if err := json.NewDecoder(r).Decode(&terms); err != nil {
		m.logger.Error("import terms failed", zap.Error(err))
		return 0, fmt.Errorf("decode terms: %w", err)
	}
	if terms == nil {
		return 0, nil
	}
	if err := m.replaceTerms(terms); err != nil {
		return 0, err
	}
	return len(terms), nil
}

// ExportTermsFile writes the glossary to path, or DefaultTermsFile.
func (m *SettingsModel) ExportTermsFile(path string) error {
	if path == "" {
		path = DefaultTermsFile
	}
	f, err := os.Create(path)
	if err != nil {
		m.logger.Error("export terms failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := m.ExportTerms(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ImportTermsFile reads a glossary from path, or DefaultTermsFile.
func (m *SettingsModel) ImportTermsFile(path string) (int, error) {
	if path == "" {
		path = DefaultTermsFile
	}
	f, err := os.Open(path)
	if err != nil {
		m.logger.Error("import terms failed", zap.String("path", path), zap.Error(err))
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return m.ImportTerms(f)
}
