// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mentor

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// ============================================================================
// MENTOR CONFIG
// ============================================================================

// Config is a mentor configuration. Known fields are typed; every object
// level keeps unrecognised keys in Extra so documents round-trip unchanged.
type Config struct {
	ID       string        `json:"id"`
	Persona  Persona       `json:"persona"`
	Model    ModelSettings `json:"model"`
	Runtime  Runtime       `json:"runtime"`
	Tools    Tools         `json:"tools"`
	Metadata Metadata      `json:"metadata"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Persona holds the prompt and style of a mentor.
type Persona struct {
	SystemPrompt    string   `json:"system_prompt"`
	StyleGuidelines []string `json:"style_guidelines"`
	ResponseFormat  string   `json:"response_format,omitempty"`
	StarterPrompts  []string `json:"starter_prompts,omitempty"`
	Disclaimer      string   `json:"disclaimer,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ModelSettings selects the provider model and sampling parameters.
type ModelSettings struct {
	Provider string      `json:"provider"`
	ModelID  string      `json:"model_id"`
	Params   ModelParams `json:"params"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ModelParams are optional sampling parameters.
type ModelParams struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Runtime bounds how the mentor is called.
type Runtime struct {
	TimeoutMS     int            `json:"timeout_ms"`
	Retries       int            `json:"retries"`
	RateLimitHint *RateLimitHint `json:"rate_limit_hint,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// RateLimitHint suggests a request limit for the mentor.
type RateLimitHint struct {
	WindowSeconds int `json:"window_seconds"`
	MaxRequests   int `json:"max_requests"`
}

// Tools lists the tool integrations of a mentor.
type Tools struct {
	Items []ToolConfig `json:"items"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ToolConfig configures one tool. Config is opaque to polychat.
type ToolConfig struct {
	ID           string                     `json:"id"`
	Enabled      bool                       `json:"enabled"`
	Config       map[string]json.RawMessage `json:"config"`
	Dependencies []string                   `json:"dependencies"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Metadata describes a mentor config document.
type Metadata struct {
	Version     string   `json:"version,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Defaults applied by ApplyDefaults.
const (
	DefaultProvider       = "openrouter"
	DefaultModelID        = "openai/gpt-4o-mini"
	DefaultTimeoutMS      = 20000
	DefaultRetries        = 2
	DefaultResponseFormat = "markdown"
)

// ApplyDefaults fills unset fields with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Persona.StyleGuidelines == nil {
		c.Persona.StyleGuidelines = []string{}
	}
	if c.Persona.ResponseFormat == "" {
		c.Persona.ResponseFormat = DefaultResponseFormat
	}
	if c.Model.Provider == "" {
		c.Model.Provider = DefaultProvider
	}
	if c.Model.ModelID == "" {
		c.Model.ModelID = DefaultModelID
	}
	p := &c.Model.Params
	if p.Temperature == nil {
		p.Temperature = floatPtr(0.7)
	}
	if p.TopP == nil {
		p.TopP = floatPtr(1)
	}
	if p.FrequencyPenalty == nil {
		p.FrequencyPenalty = floatPtr(0)
	}
	if p.PresencePenalty == nil {
		p.PresencePenalty = floatPtr(0)
	}
	if c.Runtime.TimeoutMS == 0 {
		c.Runtime.TimeoutMS = DefaultTimeoutMS
	}
	if c.Runtime.Retries == 0 {
		c.Runtime.Retries = DefaultRetries
	}
	if c.Tools.Items == nil {
		c.Tools.Items = []ToolConfig{}
	}
	for i := range c.Tools.Items {
		if c.Tools.Items[i].Config == nil {
			c.Tools.Items[i].Config = map[string]json.RawMessage{}
		}
		if c.Tools.Items[i].Dependencies == nil {
			c.Tools.Items[i].Dependencies = []string{}
		}
	}
}

// Validate checks the typed fields. Unknown fields are never rejected.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.ID) == "" {
		add("id is required")
	}
	if strings.TrimSpace(c.Persona.SystemPrompt) == "" {
		add("persona.system_prompt is required")
	}
	switch c.Persona.ResponseFormat {
	case "", "plain", "markdown", "json", "html":
	default:
		add("persona.response_format %q is not one of plain, markdown, json, html", c.Persona.ResponseFormat)
	}

	p := c.Model.Params
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		add("model.params.temperature must be within [0, 2]")
	}
	if p.TopP != nil && (*p.TopP < 0 || *p.TopP > 1) {
		add("model.params.top_p must be within [0, 1]")
	}
	if p.MaxTokens != nil && *p.MaxTokens <= 0 {
		add("model.params.max_tokens must be positive")
	}
	if p.FrequencyPenalty != nil && (*p.FrequencyPenalty < -2 || *p.FrequencyPenalty > 2) {
		add("model.params.frequency_penalty must be within [-2, 2]")
	}
	if p.PresencePenalty != nil && (*p.PresencePenalty < -2 || *p.PresencePenalty > 2) {
		add("model.params.presence_penalty must be within [-2, 2]")
	}

	if c.Runtime.TimeoutMS < 0 {
		add("runtime.timeout_ms must be positive")
	}
	if c.Runtime.Retries < 0 {
		add("runtime.retries must not be negative")
	}
	if h := c.Runtime.RateLimitHint; h != nil && (h.WindowSeconds <= 0 || h.MaxRequests < 1) {
		add("runtime.rate_limit_hint needs a positive window and at least one request")
	}

	for i, t := range c.Tools.Items {
		if strings.TrimSpace(t.ID) == "" {
			add("tools.items[%d].id is required", i)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid mentor config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Clone returns a deep copy via JSON, which preserves Extra maps.
func (c *Config) Clone() *Config {
	data, err := json.Marshal(c)
	if err != nil {
		cp := *c
		return &cp
	}
	var out Config
	if err := json.Unmarshal(data, &out); err != nil {
		cp := *c
		return &cp
	}
	return &out
}

// ============================================================================
// PARSING
// ============================================================================

// legacyConfig is the older flat file shape.
type legacyConfig struct {
	ID              string   `json:"id"`
	SystemPrompt    string   `json:"systemPrompt"`
	StyleGuidelines []string `json:"styleGuidelines"`
	Tooling         struct {
		Tools []string `json:"tools"`
	} `json:"tooling"`
}

// ParseConfig decodes either the current or the legacy document shape,
// applies defaults, and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode mentor config: %w", err)
	}

	var cfg *Config
	if _, legacy := probe["systemPrompt"]; legacy {
		var old legacyConfig
		if err := json.Unmarshal(data, &old); err != nil {
			return nil, fmt.Errorf("failed to decode legacy mentor config: %w", err)
		}
		cfg = fromLegacy(old)
	} else {
		cfg = &Config{}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode mentor config: %w", err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromLegacy(old legacyConfig) *Config {
	id := old.ID
	if id == "" {
		id = string(General)
	}
	cfg := &Config{
		ID: id,
		Persona: Persona{
			SystemPrompt:    old.SystemPrompt,
			StyleGuidelines: old.StyleGuidelines,
			ResponseFormat:  DefaultResponseFormat,
		},
	}
	for _, tool := range old.Tooling.Tools {
		cfg.Tools.Items = append(cfg.Tools.Items, ToolConfig{ID: tool, Enabled: true})
	}
	return cfg
}

func floatPtr(f float64) *float64 {
	return &f
}

// ============================================================================
// OPEN-SCHEMA JSON
// ============================================================================

// Each type decodes through an alias (which drops the methods) and keeps the
// keys its struct does not declare.

func (c *Config) UnmarshalJSON(data []byte) error {
	type alias Config
	extra, err := decodeOpen(data, (*alias)(c))
	c.Extra = extra
	return err
}

func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	return encodeOpen(alias(c), c.Extra)
}

func (p *Persona) UnmarshalJSON(data []byte) error {
	type alias Persona
	extra, err := decodeOpen(data, (*alias)(p))
	p.Extra = extra
	return err
}

func (p Persona) MarshalJSON() ([]byte, error) {
	type alias Persona
	return encodeOpen(alias(p), p.Extra)
}

func (m *ModelSettings) UnmarshalJSON(data []byte) error {
	type alias ModelSettings
	extra, err := decodeOpen(data, (*alias)(m))
	m.Extra = extra
	return err
}

func (m ModelSettings) MarshalJSON() ([]byte, error) {
	type alias ModelSettings
	return encodeOpen(alias(m), m.Extra)
}

func (p *ModelParams) UnmarshalJSON(data []byte) error {
	type alias ModelParams
	extra, err := decodeOpen(data, (*alias)(p))
	p.Extra = extra
	return err
}

func (p ModelParams) MarshalJSON() ([]byte, error) {
	type alias ModelParams
	return encodeOpen(alias(p), p.Extra)
}

func (r *Runtime) UnmarshalJSON(data []byte) error {
	type alias Runtime
	extra, err := decodeOpen(data, (*alias)(r))
	r.Extra = extra
	return err
}

func (r Runtime) MarshalJSON() ([]byte, error) {
	type alias Runtime
	return encodeOpen(alias(r), r.Extra)
}

func (t *Tools) UnmarshalJSON(data []byte) error {
	type alias Tools
	extra, err := decodeOpen(data, (*alias)(t))
	t.Extra = extra
	return err
}

func (t Tools) MarshalJSON() ([]byte, error) {
	type alias Tools
	return encodeOpen(alias(t), t.Extra)
}

func (t *ToolConfig) UnmarshalJSON(data []byte) error {
	type alias ToolConfig
	extra, err := decodeOpen(data, (*alias)(t))
	t.Extra = extra
	return err
}

func (t ToolConfig) MarshalJSON() ([]byte, error) {
	type alias ToolConfig
	return encodeOpen(alias(t), t.Extra)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	type alias Metadata
	extra, err := decodeOpen(data, (*alias)(m))
	m.Extra = extra
	return err
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	type alias Metadata
	return encodeOpen(alias(m), m.Extra)
}

// decodeOpen fills target and returns the keys target does not declare.
func decodeOpen(data []byte, target any) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, target); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, key := range knownKeys(reflect.TypeOf(target).Elem()) {
		delete(all, key)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// encodeOpen marshals v and merges extra keys that v does not set itself.
func encodeOpen(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := merged[k]; !ok {
			merged[k] = extra[k]
		}
	}
	return json.Marshal(merged)
}

var knownKeyCache sync.Map // reflect.Type -> []string

// knownKeys lists the JSON names declared by a struct type.
func knownKeys(t reflect.Type) []string {
	if cached, ok := knownKeyCache.Load(t); ok {
		return cached.([]string)
	}
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = t.Field(i).Name
		}
		keys = append(keys, name)
	}
	knownKeyCache.Store(t, keys)
	return keys
}
