package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"

	"github.com/lotas/notebridge/internal/apperr"
	"github.com/lotas/notebridge/internal/types"
)

const defaultPromptTemplate = `Please summarize the content of the provided web page with a clear structure, emphasizing key points without missing any important information.

Requirements:
1. **Summary Structure:**
    *   First line: use '# Title' format for a concise main heading.
    *   One-line summary: Provide a short, precise sentence that captures the core idea of the page.
    *   Summarize the main sections in the order they appear on the page.

2. **Highlight Key Points:** Identify and highlight the critical information, topics, main arguments, and conclusions. Include important data or findings if present.

3. **Don't Miss Anything Important:** Ensure that all crucial aspects of the content are covered.

Note:
*   The summary should be neutral and objective without personal opinions or emotions.
*   Use concise and clear language. Avoid overly technical or obscure words.
*   Keep the summary appropriately sized, comprehensive but not overly lengthy.
*   Do not add another summary at the end, use the one-line summary as the ending.

Web page content: {content}`

// Settings is the user configuration. The core only ever reads a snapshot.
// Boolean flags are pointers so that an absent key can fall back to its
// default while an explicit false is kept.
type Settings struct {
	TargetURL string `yaml:"target_url"`
	AuthKey   string `yaml:"auth_key"`

	Provider       string  `yaml:"provider"`
	ModelURL       string  `yaml:"model_url"`
	APIKey         string  `yaml:"api_key"`
	ModelName      string  `yaml:"model_name"`
	Temperature    float64 `yaml:"temperature"`
	PromptTemplate string  `yaml:"prompt_template"`
	Referer        string  `yaml:"referer"`
	AppTitle       string  `yaml:"app_title"`

	IncludeSummaryURL   *bool `yaml:"include_summary_url"`
	IncludeSelectionURL *bool `yaml:"include_selection_url"`
	IncludeImageURL     *bool `yaml:"include_image_url"`
	IncludeQuickNoteURL *bool `yaml:"include_quick_note_url"`

	// Tags are nil when unset; an explicit "" turns the tag line off.
	SummaryTag   *string `yaml:"summary_tag"`
	SelectionTag *string `yaml:"selection_tag"`
	ImageTag     *string `yaml:"image_tag"`
	ExtractTag   *string `yaml:"extract_tag"`

	EnableFloatingBall *bool `yaml:"enable_floating_ball"`

	Extractor     string `yaml:"extractor"`
	JinaAPIKey    string `yaml:"jina_api_key"`
	UseJinaAPIKey bool   `yaml:"use_jina_api_key"`
	SaveWebImages bool   `yaml:"save_web_images"`
}

// Defaults returns the settings a fresh install starts with.
func Defaults() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

func boolPtr(b bool) *bool       { return &b }
func stringPtr(v string) *string { return &v }

// applyDefaults fills fields that were left out of the settings file.
func (s *Settings) applyDefaults() {
	if s.Provider == "" {
		s.Provider = "openai"
	}
	if s.ModelName == "" {
		s.ModelName = "gpt-4o-mini"
	}
	if s.Temperature == 0 {
		s.Temperature = 0.5
	}
	if s.PromptTemplate == "" {
		s.PromptTemplate = defaultPromptTemplate
	}
	if s.IncludeSummaryURL == nil {
		s.IncludeSummaryURL = boolPtr(true)
	}
	if s.IncludeSelectionURL == nil {
		s.IncludeSelectionURL = boolPtr(true)
	}
	if s.IncludeImageURL == nil {
		s.IncludeImageURL = boolPtr(true)
	}
	if s.IncludeQuickNoteURL == nil {
		s.IncludeQuickNoteURL = boolPtr(false)
	}
	if s.SummaryTag == nil {
		s.SummaryTag = stringPtr("#Web/Summary")
	}
	if s.SelectionTag == nil {
		s.SelectionTag = stringPtr("#Web/Excerpt")
	}
	if s.ImageTag == nil {
		s.ImageTag = stringPtr("#Web/Image")
	}
	if s.ExtractTag == nil {
		s.ExtractTag = stringPtr("#Web/Clipping")
	}
	if s.EnableFloatingBall == nil {
		s.EnableFloatingBall = boolPtr(true)
	}
	if s.Extractor == "" {
		s.Extractor = "jina"
	}
}

// IncludeURL reports whether a source link is appended for the scenario.
func (s *Settings) IncludeURL(sc types.Scenario) bool {
	var flag *bool
	switch sc {
	case types.ScenarioSummary:
		flag = s.IncludeSummaryURL
	case types.ScenarioExtract, types.ScenarioSelection:
		flag = s.IncludeSelectionURL
	case types.ScenarioImage:
		flag = s.IncludeImageURL
	case types.ScenarioQuickNote:
		flag = s.IncludeQuickNoteURL
	}
	return flag != nil && *flag
}

// Tag returns the tag line appended for the scenario ("" for none).
func (s *Settings) Tag(sc types.Scenario) string {
	var tag *string
	switch sc {
	case types.ScenarioSummary:
		tag = s.SummaryTag
	case types.ScenarioExtract:
		tag = s.ExtractTag
	case types.ScenarioSelection:
		tag = s.SelectionTag
	case types.ScenarioImage:
		tag = s.ImageTag
	}
	if tag == nil {
		return ""
	}
	return *tag
}

// CheckModel returns a NotConfigured error if the summarization fields are
// incomplete.
func (s *Settings) CheckModel() error {
	if s.ModelURL == "" || s.ModelName == "" {
		return apperr.New(apperr.NotConfigured, "please complete the model settings first")
	}
	if s.APIKey == "" && s.Provider != "ollama" {
		return apperr.New(apperr.NotConfigured, "please complete the model settings first")
	}
	return nil
}

// CheckTarget returns a NotConfigured error if the note service is not set up.
func (s *Settings) CheckTarget() error {
	if s.TargetURL == "" || s.AuthKey == "" {
		return apperr.New(apperr.NotConfigured, "please configure the note service URL and auth key first")
	}
	return nil
}

// ParseSettings decodes a YAML settings document and applies defaults.
func ParseSettings(data []byte) (*Settings, error) {
	s := &Settings{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	s.applyDefaults()
	return s, nil
}

// SettingsSource hands out read-only settings snapshots.
type SettingsSource interface {
	Snapshot(ctx context.Context) (*Settings, error)
}

const snapshotKey = "settings"

// FileSource reads settings from a YAML file. Snapshots are cached for a
// short time so one operation sees one consistent view even if the file is
// being rewritten.
type FileSource struct {
	path  string
	cache *cache.Cache
}

// NewFileSource returns a FileSource for path with the given cache TTL.
func NewFileSource(path string, ttl time.Duration) *FileSource {
	return &FileSource{
		path:  path,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Path returns the settings file path.
func (f *FileSource) Path() string { return f.path }

// Snapshot returns the current settings. A missing file is NotConfigured.
func (f *FileSource) Snapshot(ctx context.Context) (*Settings, error) {
	if v, ok := f.cache.Get(snapshotKey); ok {
		s := *v.(*Settings)
		return &s, nil
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.New(apperr.NotConfigured, "settings not found (%s)", f.path)
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	s, err := ParseSettings(data)
	if err != nil {
		return nil, err
	}
	f.cache.Set(snapshotKey, s, cache.DefaultExpiration)
	cp := *s
	return &cp, nil
}

// Invalidate drops the cached snapshot.
func (f *FileSource) Invalidate() {
	f.cache.Delete(snapshotKey)
}

// StaticSource always returns the same settings; nil means "not configured".
type StaticSource struct {
	Settings *Settings
}

func (s StaticSource) Snapshot(ctx context.Context) (*Settings, error) {
	if s.Settings == nil {
		return nil, apperr.New(apperr.NotConfigured, "settings not found")
	}
	cp := *s.Settings
	return &cp, nil
}
