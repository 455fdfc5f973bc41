// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mentor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// MENTOR CONFIG TESTS
// ============================================================================

const fullConfig = `{
  "id": "chess",
  "persona": {
    "system_prompt": "You are a chess coach.",
    "style_guidelines": ["Be brief."],
    "variables": {"level": {"label": "Level"}},
    "response_format": "markdown"
  },
  "model": {
    "provider": "openrouter",
    "model_id": "openai/gpt-4.1-mini",
    "params": {"temperature": 0.2, "seed": 7},
    "routing": "fast"
  },
  "runtime": {"timeout_ms": 5000, "retries": 1, "rate_limit_hint": {"window_seconds": 60, "max_requests": 5}},
  "tools": {"items": [{"id": "stockfish", "enabled": true, "config": {"depth": 18}, "dependencies": [], "vendor": "local"}]},
  "metadata": {"version": "2", "owner": "coach-team"},
  "experimental": {"voice": true}
}`

func TestParseConfig_KnownFieldsTyped(t *testing.T) {
	cfg, err := ParseConfig([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "chess", cfg.ID)
	assert.Equal(t, "You are a chess coach.", cfg.Persona.SystemPrompt)
	assert.Equal(t, "openai/gpt-4.1-mini", cfg.Model.ModelID)
	require.NotNil(t, cfg.Model.Params.Temperature)
	assert.InDelta(t, 0.2, *cfg.Model.Params.Temperature, 1e-9)
	assert.Equal(t, 5000, cfg.Runtime.TimeoutMS)
	require.NotNil(t, cfg.Runtime.RateLimitHint)
	assert.Equal(t, 5, cfg.Runtime.RateLimitHint.MaxRequests)
	require.Len(t, cfg.Tools.Items, 1)
	assert.JSONEq(t, "18", string(cfg.Tools.Items[0].Config["depth"]))
}

func TestParseConfig_UnknownFieldsPreserved(t *testing.T) {
	cfg, err := ParseConfig([]byte(fullConfig))
	require.NoError(t, err)

	assert.JSONEq(t, `{"voice": true}`, string(cfg.Extra["experimental"]))
	assert.Contains(t, cfg.Persona.Extra, "variables")
	assert.JSONEq(t, `"fast"`, string(cfg.Model.Extra["routing"]))
	assert.JSONEq(t, "7", string(cfg.Model.Params.Extra["seed"]))
	assert.JSONEq(t, `"local"`, string(cfg.Tools.Items[0].Extra["vendor"]))
	assert.JSONEq(t, `"coach-team"`, string(cfg.Metadata.Extra["owner"]))

	out, err := json.Marshal(cfg)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, map[string]any{"voice": true}, doc["experimental"])
	persona := doc["persona"].(map[string]any)
	assert.Contains(t, persona, "variables")
	tools := doc["tools"].(map[string]any)["items"].([]any)
	assert.Equal(t, "local", tools[0].(map[string]any)["vendor"])
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"id":"general","persona":{"system_prompt":"Hi"}}`))
	require.NoError(t, err)

	assert.Equal(t, DefaultProvider, cfg.Model.Provider)
	assert.Equal(t, DefaultModelID, cfg.Model.ModelID)
	assert.Equal(t, DefaultTimeoutMS, cfg.Runtime.TimeoutMS)
	assert.Equal(t, DefaultRetries, cfg.Runtime.Retries)
	assert.Equal(t, "markdown", cfg.Persona.ResponseFormat)
	assert.InDelta(t, 0.7, *cfg.Model.Params.Temperature, 1e-9)
	assert.NotNil(t, cfg.Tools.Items)
}

func TestParseConfig_Legacy(t *testing.T) {
	legacy := `{"id":"bible","systemPrompt":"You are a Bible mentor.","styleGuidelines":["Cite verses."],"tooling":{"tools":["concordance"],"fallback":null}}`

	cfg, err := ParseConfig([]byte(legacy))
	require.NoError(t, err)

	assert.Equal(t, "bible", cfg.ID)
	assert.Equal(t, "You are a Bible mentor.", cfg.Persona.SystemPrompt)
	assert.Equal(t, []string{"Cite verses."}, cfg.Persona.StyleGuidelines)
	require.Len(t, cfg.Tools.Items, 1)
	assert.True(t, cfg.Tools.Items[0].Enabled)
	assert.Equal(t, "concordance", cfg.Tools.Items[0].ID)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"missing prompt", `{"id":"x","persona":{"system_prompt":""}}`},
		{"bad temperature", `{"id":"x","persona":{"system_prompt":"p"},"model":{"params":{"temperature":3}}}`},
		{"bad format", `{"id":"x","persona":{"system_prompt":"p","response_format":"yaml"}}`},
		{"bad hint", `{"id":"x","persona":{"system_prompt":"p"},"runtime":{"rate_limit_hint":{"window_seconds":0,"max_requests":1}}}`},
		{"tool without id", `{"id":"x","persona":{"system_prompt":"p"},"tools":{"items":[{"enabled":true}]}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestConfig_CloneIsDeep(t *testing.T) {
	cfg, err := ParseConfig([]byte(fullConfig))
	require.NoError(t, err)

	clone := cfg.Clone()
	clone.Persona.StyleGuidelines[0] = "changed"
	clone.Extra["experimental"] = json.RawMessage(`false`)

	assert.Equal(t, "Be brief.", cfg.Persona.StyleGuidelines[0])
	assert.JSONEq(t, `{"voice": true}`, string(cfg.Extra["experimental"]))
}
