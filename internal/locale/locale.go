// Package locale holds the translation tables and prompt files, loaded once at
// startup and shared read-only.
package locale

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const Default = "en"

// Keys used by the services.
const (
	KeyRelevantPastEvents = "story.relevant_past_events"
	KeyCurrentAction      = "story.current_action"

	KeyPreviousEvents = "story_context.previous_events"
	KeyNoContext      = "story_context.no_context"
	KeyChapterLabel   = "story_context.chapter_label"
	KeyRelevanceLabel = "story_context.relevance_label"

	KeySummaryInstruction = "chapter_summarization.instruction"
	KeyNarrationLabel     = "chapter_summarization.narration_label"
	KeySituationLabel     = "chapter_summarization.situation_label"
	KeyActionLabel        = "chapter_summarization.action_label"
	KeyOutcomeLabel       = "chapter_summarization.outcome_label"
	KeySummaryDirective   = "chapter_summarization.summary_instruction"
)

const (
	PromptDMSystem    = "dm_system"
	PromptDMSummarize = "dm_summarize"
)

//go:embed locales/*.yaml prompts
var bundled embed.FS

// Catalog is immutable after Load.
type Catalog struct {
	fallback string
	tables   map[string]map[string]string
	prompts  map[string]map[string]string
}

// Load reads the bundled tables. fallback is used for unknown locales and missing keys.
func Load(fallback string) (*Catalog, error) {
	return LoadFS(bundled, fallback)
}

func LoadFS(fsys fs.FS, fallback string) (*Catalog, error) {
	if fallback = Normalize(fallback); fallback == "" {
		fallback = Default
	}
	c := &Catalog{
		fallback: fallback,
		tables:   map[string]map[string]string{},
		prompts:  map[string]map[string]string{},
	}

	files, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		raw, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		flat := map[string]string{}
		flatten("", tree, flat)
		c.tables[strings.TrimSuffix(path.Base(f), ".yaml")] = flat
	}

	dirs, err := fs.ReadDir(fsys, "prompts")
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		loc := d.Name()
		entries, err := fs.ReadDir(fsys, path.Join("prompts", loc))
		if err != nil {
			return nil, err
		}
		c.prompts[loc] = map[string]string{}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
				continue
			}
			raw, err := fs.ReadFile(fsys, path.Join("prompts", loc, e.Name()))
			if err != nil {
				return nil, err
			}
			c.prompts[loc][strings.TrimSuffix(e.Name(), ".txt")] = string(raw)
		}
	}

	if _, ok := c.tables[fallback]; !ok {
		return nil, fmt.Errorf("fallback locale %q has no table", fallback)
	}
	return c, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// T translates key for loc, falling back to the default locale and then to the key itself.
func (c *Catalog) T(loc, key string) string {
	if v, ok := c.tables[Normalize(loc)][key]; ok {
		return v
	}
	if v, ok := c.tables[c.fallback][key]; ok {
		return v
	}
	return key
}

// Prompt returns the named prompt for loc with the same fallback as T.
func (c *Catalog) Prompt(loc, name string) (string, error) {
	if v, ok := c.prompts[Normalize(loc)][name]; ok {
		return v, nil
	}
	if v, ok := c.prompts[c.fallback][name]; ok {
		return v, nil
	}
	return "", fmt.Errorf("prompt %q not found", name)
}

func (c *Catalog) Supports(loc string) bool {
	_, ok := c.tables[Normalize(loc)]
	return ok
}

func (c *Catalog) Fallback() string { return c.fallback }

// Locales lists the loaded locales, sorted.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.tables))
	for loc := range c.tables {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// Normalize reduces a language tag like "es-MX" to its primary subtag.
func Normalize(loc string) string {
	loc = strings.ToLower(strings.TrimSpace(loc))
	if i := strings.IndexAny(loc, "-_"); i > 0 {
		loc = loc[:i]
	}
	return loc
}

// FromAcceptLanguage picks the first supported language in an Accept-Language header.
func (c *Catalog) FromAcceptLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := part
		if i := strings.Index(tag, ";"); i >= 0 {
			tag = tag[:i]
		}
		if loc := Normalize(tag); loc != "" && c.Supports(loc) {
			return loc
		}
	}
	return ""
}
