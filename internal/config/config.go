package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "ADPULSE"

// The portal scraper has always been configured through PORTAL_*; those
// names stay valid next to ADPULSE_PORTAL_*.
var portalEnvAliases = map[string]string{
	"portal.url":             "PORTAL_URL",
	"portal.username":        "PORTAL_USERNAME",
	"portal.password":        "PORTAL_PASSWORD",
	"portal.user_selector":   "PORTAL_USER_SELECTOR",
	"portal.pass_selector":   "PORTAL_PASS_SELECTOR",
	"portal.submit_selector": "PORTAL_SUBMIT_SELECTOR",
	"portal.ready_selector":  "PORTAL_READY_SELECTOR",
	"portal.export_selector": "PORTAL_EXPORT_SELECTOR",
	"portal.download_dir":    "PORTAL_DOWNLOAD_DIR",
}

// Load merges path and the files it includes, applies environment
// overrides, fills defaults for keys nobody set and validates. A missing
// file is fine.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	files, err := configFiles(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	for _, file := range files {
		part := viper.New()
		part.SetConfigFile(file)
		if err := part.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
		if err := v.MergeConfigMap(part.AllSettings()); err != nil {
			return nil, fmt.Errorf("merge config %s: %w", file, err)
		}
	}
	if err := bindEnv(v, reflect.TypeOf(Config{}), ""); err != nil {
		return nil, err
	}

	var cfg Config
	decode := func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}
	if err := v.Unmarshal(&cfg, decode); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults(explicitKeys(v))
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindEnv walks the struct tags so every leaf key can come from
// ADPULSE_<SECTION>_<KEY> even when no file mentions it.
func bindEnv(v *viper.Viper, t reflect.Type, prefix string) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "" || name == "-" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			if err := bindEnv(v, f.Type, name); err != nil {
				return err
			}
			continue
		}
		names := []string{name, envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))}
		if alias, ok := portalEnvAliases[name]; ok {
			names = append(names, alias)
		}
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("bind env %s: %w", name, err)
		}
	}
	return nil
}

// explicitKeys lists keys given a value by a file or the environment, so
// an explicit zero is not replaced by a default.
func explicitKeys(v *viper.Viper) keySet {
	keys := make(keySet)
	for _, k := range v.AllKeys() {
		if k == "include" || !v.IsSet(k) {
			continue
		}
		// llm.headers.<name> marks the whole map.
		if strings.HasPrefix(k, "llm.headers.") {
			k = "llm.headers"
		}
		keys.mark(k)
	}
	return keys
}

// configFiles returns path and its includes, includes first so the
// including file wins on merge.
func configFiles(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	w := includeWalker{done: map[string]bool{}, active: map[string]bool{}}
	if err := w.walk(abs); err != nil {
		return nil, err
	}
	return w.order, nil
}

type includeWalker struct {
	done   map[string]bool
	active map[string]bool
	order  []string
}

func (w *includeWalker) walk(path string) error {
	path = filepath.Clean(path)
	switch {
	case w.active[path]:
		return fmt.Errorf("include cycle detected: %s", path)
	case w.done[path]:
		return nil
	}
	w.active[path] = true
	includes, err := readIncludes(path)
	if err != nil {
		return fmt.Errorf("parse includes of %s: %w", path, err)
	}
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := w.walk(inc); err != nil {
			return err
		}
	}
	delete(w.active, path)
	w.done[path] = true
	w.order = append(w.order, path)
	return nil
}

// includeList accepts `include: base.yaml` as well as a list.
type includeList []string

func (l *includeList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*l = includeList{n.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := n.Decode(&items); err != nil {
			return fmt.Errorf("include entries must be strings: %w", err)
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("include must be a string or a list of strings")
	}
}

func readIncludes(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Include includeList `yaml:"include"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(doc.Include))
	for _, inc := range doc.Include {
		if inc = strings.TrimSpace(inc); inc != "" {
			out = append(out, inc)
		}
	}
	return out, nil
}
