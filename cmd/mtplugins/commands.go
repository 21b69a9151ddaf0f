package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/mtplugins/lang"
	"github.com/BaSui01/mtplugins/plugin"
	"github.com/BaSui01/mtplugins/plugins/qwenmt"
	"github.com/BaSui01/mtplugins/plugins/thinking"
)

// allPlugins 表示对所有已加载插件扇出
const allPlugins = "all"

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfg := fs.String("config", "", "Path to config file")
	return fs, cfg
}

// withApp 装配 app 并在 SIGINT/SIGTERM 时取消 ctx
func withApp(ctx context.Context, configPath string, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() {
		a.Close()
		_ = a.logger.Sync()
	}()
	return fn(ctx, a)
}

// subcommand 拆出第一个位置参数作为动作名
func subcommand(args []string, actions ...string) (string, []string, error) {
	if len(args) == 0 || !slices.Contains(actions, args[0]) {
		return "", nil, fmt.Errorf("expected one of: %s", strings.Join(actions, ", "))
	}
	return args[0], args[1:], nil
}

// =============================================================================
// 🌐 translate
// =============================================================================

type translateOptions struct {
	config string
	plugin string
	from   lang.Lang
	to     lang.Lang
	text   string
}

func parseTranslate(args []string) (translateOptions, error) {
	fs, cfg := newFlagSet("translate")
	pluginID := fs.String("plugin", allPlugins, "Plugin ID, or all")
	from := fs.String("from", "auto", "Source language code or name")
	to := fs.String("to", "en", "Target language code or name")
	if err := fs.Parse(args); err != nil {
		return translateOptions{}, errUsage
	}

	o := translateOptions{config: *cfg, plugin: *pluginID}
	var err error
	if o.from, err = lang.Parse(*from); err != nil {
		return o, err
	}
	if o.to, err = lang.Parse(*to); err != nil {
		return o, err
	}
	o.text = strings.Join(fs.Args(), " ")
	if strings.TrimSpace(o.text) == "" {
		return o, errors.New("no text to translate")
	}
	return o, nil
}

func runTranslate(ctx context.Context, args []string, stdout io.Writer) error {
	o, err := parseTranslate(args)
	if err != nil {
		return err
	}
	return withApp(ctx, o.config, func(ctx context.Context, a *app) error {
		return translate(ctx, a, o, stdout)
	})
}

func translate(ctx context.Context, a *app, o translateOptions, stdout io.Writer) error {
	req := plugin.Request{Text: o.text, SourceLang: o.from, TargetLang: o.to}

	if o.plugin != allPlugins {
		streamed := false
		out, err := a.host.Translate(ctx, o.plugin, req, func(delta string) {
			streamed = true
			_, _ = io.WriteString(stdout, delta)
		})
		if err != nil {
			return err
		}
		if !streamed {
			_, _ = io.WriteString(stdout, out.Text)
		}
		fmt.Fprintln(stdout)
		if !out.Succeeded {
			return errors.New(out.Message)
		}
		return nil
	}

	outcomes, err := a.host.TranslateAll(ctx, nil, req, nil)
	if err != nil {
		return err
	}
	failed := 0
	for i, out := range outcomes {
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		fmt.Fprintf(stdout, "[%s]\n", out.Plugin)
		if out.Succeeded {
			fmt.Fprintln(stdout, out.Text)
			continue
		}
		failed++
		fmt.Fprintf(stdout, "error: %s\n", out.Message)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d translations failed", failed, len(outcomes))
	}
	return nil
}

// =============================================================================
// 🧠 models
// =============================================================================

// modelSettings 是两个插件设置模型共有的模型管理操作
type modelSettings interface {
	AddModel(model string) (bool, error)
	DeleteModel(model string) (bool, error)
	SelectModel(model string) error
}

func lookupPlugin(a *app, id string) (plugin.Translator, error) {
	t, ok := a.host.Plugin(id)
	if !ok {
		return nil, plugin.NewError(plugin.ErrPluginNotFound,
			fmt.Sprintf("%s: %s", a.locale.Localize("PluginNotFound"), id))
	}
	return t, nil
}

func modelsOf(a *app, id string) (plugin.ModelCatalog, modelSettings, error) {
	t, err := lookupPlugin(a, id)
	if err != nil {
		return plugin.ModelCatalog{}, nil, err
	}
	switch p := t.(type) {
	case *qwenmt.Plugin:
		return p.Settings().Snapshot().ModelCatalog, p.Settings(), nil
	case *thinking.Plugin:
		return p.Settings().Snapshot().ModelCatalog, p.Settings(), nil
	}
	return plugin.ModelCatalog{}, nil, fmt.Errorf("plugin %s has no model settings", id)
}

type modelsOptions struct {
	config string
	action string
	plugin string
	model  string
}

func parseModels(args []string) (modelsOptions, error) {
	action, rest, err := subcommand(args, "list", "add", "select", "delete")
	if err != nil {
		return modelsOptions{}, err
	}
	fs, cfg := newFlagSet("models " + action)
	pluginID := fs.String("plugin", qwenmt.ID, "Plugin ID")
	if err := fs.Parse(rest); err != nil {
		return modelsOptions{}, errUsage
	}
	o := modelsOptions{config: *cfg, action: action, plugin: *pluginID}
	if action != "list" {
		if fs.NArg() != 1 {
			return o, fmt.Errorf("models %s takes exactly one model name", action)
		}
		o.model = fs.Arg(0)
	}
	return o, nil
}

func runModels(ctx context.Context, args []string, stdout io.Writer) error {
	o, err := parseModels(args)
	if err != nil {
		return err
	}
	return withApp(ctx, o.config, func(_ context.Context, a *app) error {
		return models(a, o, stdout)
	})
}

func models(a *app, o modelsOptions, stdout io.Writer) error {
	catalog, m, err := modelsOf(a, o.plugin)
	if err != nil {
		return err
	}
	switch o.action {
	case "list":
		for _, name := range catalog.Models {
			mark := " "
			if name == catalog.Model {
				mark = "*"
			}
			fmt.Fprintf(stdout, "%s %s\n", mark, name)
		}
		if catalog.Model != "" && !catalog.Contains(catalog.Model) {
			fmt.Fprintf(stdout, "* %s (not in list)\n", catalog.Model)
		}
		return nil
	case "add":
		added, err := m.AddModel(o.model)
		if err != nil {
			return err
		}
		if !added {
			fmt.Fprintf(stdout, "%s already present\n", o.model)
			return nil
		}
		fmt.Fprintf(stdout, "added %s\n", o.model)
	case "select":
		if !catalog.Contains(o.model) {
			return fmt.Errorf("unknown model %q", o.model)
		}
		if err := m.SelectModel(o.model); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "selected %s\n", o.model)
	case "delete":
		deleted, err := m.DeleteModel(o.model)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("unknown model %q", o.model)
		}
		fmt.Fprintf(stdout, "deleted %s\n", o.model)
	}
	return nil
}

// =============================================================================
// 📖 terms
// =============================================================================

type termsOptions struct {
	config string
	action string
	file   string
	args   []string
}

func parseTerms(args []string) (termsOptions, error) {
	action, rest, err := subcommand(args, "list", "add", "update", "delete", "clear", "import", "export", "enable", "disable")
	if err != nil {
		return termsOptions{}, err
	}
	fs, cfg := newFlagSet("terms " + action)
	file := fs.String("file", "", "Glossary JSON file")
	if err := fs.Parse(rest); err != nil {
		return termsOptions{}, errUsage
	}
	o := termsOptions{config: *cfg, action: action, file: *file, args: fs.Args()}

	want := map[string]int{"add": 2, "update": 3, "delete": 1}
	if n, ok := want[action]; ok && len(o.args) != n {
		return o, fmt.Errorf("terms %s takes %d arguments", action, n)
	}
	return o, nil
}

func runTerms(ctx context.Context, args []string, stdout io.Writer) error {
	o, err := parseTerms(args)
	if err != nil {
		return err
	}
	return withApp(ctx, o.config, func(_ context.Context, a *app) error {
		return terms(a, o, stdout)
	})
}

func qwenSettings(a *app) (*qwenmt.SettingsModel, error) {
	t, err := lookupPlugin(a, qwenmt.ID)
	if err != nil {
		return nil, err
	}
	p, ok := t.(*qwenmt.Plugin)
	if !ok {
		return nil, fmt.Errorf("plugin %s has no glossary", qwenmt.ID)
	}
	return p.Settings(), nil
}

func terms(a *app, o termsOptions, stdout io.Writer) error {
	m, err := qwenSettings(a)
	if err != nil {
		return err
	}
	index := func(s string) (int, error) {
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid term index %q", s)
		}
		return i, nil
	}

	switch o.action {
	case "list":
		s := m.Snapshot()
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "#\tSOURCE\tTARGET\n")
		for i, t := range s.Terms {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", i, t.SourceText, t.TargetText)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "terms enabled: %v\n", s.TermsEnabled)
	case "add":
		i, err := m.AddTerm(qwenmt.Term{SourceText: o.args[0], TargetText: o.args[1]})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "added term %d\n", i)
	case "update":
		i, err := index(o.args[0])
		if err != nil {
			return err
		}
		return m.UpdateTerm(i, qwenmt.Term{SourceText: o.args[1], TargetText: o.args[2]})
	case "delete":
		i, err := index(o.args[0])
		if err != nil {
			return err
		}
		deleted, err := m.DeleteTerm(i)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("no term at index %d", i)
		}
	case "clear":
		_, err := m.ClearTerms()
		return err
	case "import":
		n, err := m.ImportTermsFile(o.file)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "imported %d terms\n", n)
	case "export":
		if o.file == "-" {
			return m.ExportTerms(stdout)
		}
		return m.ExportTermsFile(o.file)
	case "enable", "disable":
		return m.SetTermsEnabled(o.action == "enable")
	}
	return nil
}

// =============================================================================
// ⚙️ settings
// =============================================================================

type settingsOptions struct {
	config string
	action string
	plugin string
	key    string
	value  string
}

func parseSettings(args []string) (settingsOptions, error) {
	action, rest, err := subcommand(args, "show", "set")
	if err != nil {
		return settingsOptions{}, err
	}
	fs, cfg := newFlagSet("settings " + action)
	pluginID := fs.String("plugin", qwenmt.ID, "Plugin ID")
	if err := fs.Parse(rest); err != nil {
		return settingsOptions{}, errUsage
	}
	o := settingsOptions{config: *cfg, action: action, plugin: *pluginID}
	if action == "set" {
		if fs.NArg() != 2 {
			return o, errors.New("settings set takes KEY VALUE")
		}
		o.key, o.value = fs.Arg(0), fs.Arg(1)
	}
	return o, nil
}

func runSettings(ctx context.Context, args []string, stdout io.Writer) error {
	o, err := parseSettings(args)
	if err != nil {
		return err
	}
	return withApp(ctx, o.config, func(_ context.Context, a *app) error {
		return settings(a, o, stdout)
	})
}

// maskKey 只保留 API Key 的末四位
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func settings(a *app, o settingsOptions, stdout io.Writer) error {
	t, err := lookupPlugin(a, o.plugin)
	if err != nil {
		return err
	}

	var (
		snapshot any
		set      func(key, value string) error
	)
	switch p := t.(type) {
	case *qwenmt.Plugin:
		s := p.Settings().Snapshot()
		s.APIKey = maskKey(s.APIKey)
		snapshot, set = s, qwenSetter(p.Settings())
	case *thinking.Plugin:
		s := p.Settings().Snapshot()
		s.APIKey = maskKey(s.APIKey)
		snapshot, set = s, thinkingSetter(p.Settings())
	default:
		return fmt.Errorf("plugin %s has no settings", o.plugin)
	}

	if o.action == "set" {
		return set(o.key, o.value)
	}
	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(snapshot); err != nil {
		return err
	}
	return enc.Close()
}

func qwenSetter(m *qwenmt.SettingsModel) func(key, value string) error {
	return func(key, value string) error {
		switch key {
		case "api_key":
			return m.SetAPIKey(value)
		case "model":
			return m.SelectModel(value)
		case "domains":
			return m.SetDomains(value)
		case "terms_enabled", "domains_enabled":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			if key == "terms_enabled" {
				return m.SetTermsEnabled(b)
			}
			return m.SetDomainsEnabled(b)
		}
		return fmt.Errorf("unknown qwenmt setting %q (api_key, model, terms_enabled, domains_enabled, domains)", key)
	}
}

func thinkingSetter(m *thinking.SettingsModel) func(key, value string) error {
	return func(key, value string) error {
		switch key {
		case "url":
			return m.SetURL(value)
		case "api_key":
			return m.SetAPIKey(value)
		case "model":
			return m.SelectModel(value)
		case "thinking_enabled", "thinking_visible":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			if key == "thinking_enabled" {
				return m.SetThinkingEnabled(b)
			}
			return m.SetThinkingVisible(b)
		}
		return fmt.Errorf("unknown thinking setting %q (url, api_key, model, thinking_enabled, thinking_visible)", key)
	}
}

// =============================================================================
// 🗺️ langs
// =============================================================================

func parseLangs(args []string) (config, pluginID string, err error) {
	fs, cfg := newFlagSet("langs")
	id := fs.String("plugin", qwenmt.ID, "Plugin ID")
	if err := fs.Parse(args); err != nil {
		return "", "", errUsage
	}
	return *cfg, *id, nil
}

func runLangs(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, id, err := parseLangs(args)
	if err != nil {
		return err
	}
	return withApp(ctx, cfg, func(_ context.Context, a *app) error {
		return langs(a, id, stdout)
	})
}

func langs(a *app, id string, stdout io.Writer) error {
	t, err := lookupPlugin(a, id)
	if err != nil {
		return err
	}
	orDash := func(s string, ok bool) string {
		if !ok {
			return "-"
		}
		return s
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "CODE\tLANGUAGE\tSOURCE\tTARGET\n")
	for _, l := range lang.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Code(), l,
			orDash(t.SourceLanguage(l)), orDash(t.TargetLanguage(l)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\n-: %s\n", a.locale.Localize("Unsupported"))
	return nil
}
