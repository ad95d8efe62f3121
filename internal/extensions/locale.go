package extensions

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// LocaleBundle is the compiled form of an extension's locales directory.
type LocaleBundle struct {
	Catalog catalog.Catalog
	Tags    []language.Tag
}

// CompileLocales builds a message catalog from locales/<tag>.yaml files,
// each holding a flat key/message map. A missing locales directory yields
// an empty bundle; a malformed file fails the install step.
func CompileLocales(dir string) (*LocaleBundle, error) {
	locDir := filepath.Join(dir, "locales")
	dirents, err := os.ReadDir(locDir)
	if err != nil {
		if os.IsNotExist(err) {
			return &LocaleBundle{Catalog: catalog.NewBuilder()}, nil
		}
		return nil, fmt.Errorf("extensions: read locales: %w", err)
	}

	builder := catalog.NewBuilder()
	var tags []language.Tag
	names := make([]string, 0, len(dirents))
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		ext := filepath.Ext(d.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, d.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		tagName := strings.TrimSuffix(name, filepath.Ext(name))
		tag, err := language.Parse(tagName)
		if err != nil {
			return nil, fmt.Errorf("extensions: locale file %s: invalid language tag: %w", name, err)
		}
		data, err := os.ReadFile(filepath.Join(locDir, name))
		if err != nil {
			return nil, err
		}
		messages := map[string]string{}
		if err := yaml.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("extensions: locale file %s: %w", name, err)
		}
		keys := make([]string, 0, len(messages))
		for k := range messages {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if err := builder.SetString(tag, key, messages[key]); err != nil {
				return nil, fmt.Errorf("extensions: locale file %s: key %s: %w", name, key, err)
			}
		}
		tags = append(tags, tag)
	}
	return &LocaleBundle{Catalog: builder, Tags: tags}, nil
}
