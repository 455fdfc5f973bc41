// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reply

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/polychat/internal/cloud"
	"github.com/jeranaias/polychat/internal/mentor"
	"github.com/jeranaias/polychat/internal/metrics"
	"github.com/jeranaias/polychat/internal/model"
)

type fakeProvider struct {
	text string
	err  error
	got  cloud.Prompt
}

func (f *fakeProvider) Complete(_ context.Context, p cloud.Prompt) (string, error) {
	f.got = p
	return f.text, f.err
}

func newGenerator(p Provider, m *metrics.Metrics) *Generator {
	return NewGenerator(p, mentor.NewRegistry(), Options{DefaultModel: "openai/gpt-4o-mini", Timeout: 5 * time.Second}, nil, m)
}

func TestGenerate_UsesMentorDefaultPrompt(t *testing.T) {
	fp := &fakeProvider{text: "  John 3:16 reads...  \n"}
	g := newGenerator(fp, nil)

	out, err := g.Generate(context.Background(), Request{Mentor: mentor.Bible, Message: "What does John 3:16 say?"})
	require.NoError(t, err)
	assert.Equal(t, "John 3:16 reads...", out.Text)
	assert.Equal(t, "openai/gpt-4o-mini", out.Model)

	assert.Contains(t, fp.got.System, "Bible study mentor")
	assert.Contains(t, fp.got.System, "Style guidelines:")
	assert.Equal(t, "What does John 3:16 say?", fp.got.Message)
	assert.Equal(t, 5*time.Second, fp.got.Timeout)
	require.NotNil(t, fp.got.Params.Temperature)
}

func TestGenerate_OverridePromptWins(t *testing.T) {
	fp := &fakeProvider{text: "ok"}
	g := newGenerator(fp, nil)

	_, err := g.Generate(context.Background(), Request{
		Mentor:         mentor.Chess,
		Message:        "hi",
		OverridePrompt: "  Only answer in haiku.  ",
		Model:          "xai/grok-4-fast",
	})
	require.NoError(t, err)
	assert.Equal(t, "Only answer in haiku.", fp.got.System)
	assert.Equal(t, "xai/grok-4-fast", fp.got.Model)
}

func TestGenerate_UnknownMentorUsesGeneral(t *testing.T) {
	fp := &fakeProvider{text: "ok"}
	g := newGenerator(fp, nil)

	_, err := g.Generate(context.Background(), Request{Mentor: "astrology", Message: "hi"})
	require.NoError(t, err)
	assert.Contains(t, fp.got.System, "general mentor")
}

func TestGenerate_StockDisclaimer(t *testing.T) {
	fp := &fakeProvider{text: "ok"}
	g := newGenerator(fp, nil)

	_, err := g.Generate(context.Background(), Request{Mentor: mentor.Stock, Message: "RSI?"})
	require.NoError(t, err)
	assert.Contains(t, fp.got.System, "Not financial advice.")
}

func TestGenerate_ErrorTranslation(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
		kind model.Kind
		msg  string
	}{
		{"api error", "", &cloud.OpenRouterError{Status: 500, Message: "boom"}, model.KindProviderUnavailable, model.MsgProviderUnavailable},
		{"not configured", "", cloud.ErrNotConfigured, model.KindProviderUnavailable, model.MsgProviderUnavailable},
		{"timeout", "", fmt.Errorf("%w: deadline", cloud.ErrTimeout), model.KindProviderTimeout, model.MsgProviderTimeout},
		{"deadline", "", context.DeadlineExceeded, model.KindProviderTimeout, model.MsgProviderTimeout},
		{"cancelled", "", context.Canceled, model.KindProviderTimeout, model.MsgProviderTimeout},
		{"empty", "", nil, model.KindProviderEmptyResponse, model.MsgProviderEmpty},
		{"whitespace", " \n\t ", nil, model.KindProviderEmptyResponse, model.MsgProviderEmpty},
		{"undecodable body", "", fmt.Errorf("%w: bad content", cloud.ErrEmptyResponse), model.KindProviderEmptyResponse, model.MsgProviderEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(&fakeProvider{text: tt.text, err: tt.err}, nil)
			_, err := g.Generate(context.Background(), Request{Mentor: mentor.General, Message: "hi"})
			require.Error(t, err)
			assert.Equal(t, tt.kind, model.KindOf(err))
			assert.Equal(t, tt.msg, model.PublicMessage(err))
		})
	}
}

func TestGenerate_RawCauseNotSurfaced(t *testing.T) {
	g := newGenerator(&fakeProvider{err: errors.New("invalid api key sk-or-secret")}, nil)
	_, err := g.Generate(context.Background(), Request{Mentor: mentor.General, Message: "hi"})
	require.Error(t, err)
	assert.NotContains(t, model.PublicMessage(err), "sk-or-secret")
}

func TestGenerate_Metrics(t *testing.T) {
	m := metrics.New()

	g := newGenerator(&fakeProvider{text: "ok"}, m)
	_, err := g.Generate(context.Background(), Request{Mentor: mentor.General, Message: "hi"})
	require.NoError(t, err)

	g = newGenerator(&fakeProvider{err: context.DeadlineExceeded}, m)
	_, err = g.Generate(context.Background(), Request{Mentor: mentor.General, Message: "hi"})
	require.Error(t, err)

	assert.Equal(t, 2, testutil.CollectAndCount(m.ProviderDuration))
}

// Exercises the real OpenRouter client against a provider that answers 500.
func TestGenerate_WithOpenRouterClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"upstream failure"}}`))
	}))
	defer srv.Close()

	client := cloud.NewOpenRouterClient(cloud.Options{BaseURL: srv.URL, APIKey: "sk-or-test"}, nil)
	g := newGenerator(client, nil)

	_, err := g.Generate(context.Background(), Request{Mentor: mentor.Math, Message: "2+2?"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrProviderUnavailable))
}

func TestGenerate_NonStringCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":123}}]}`))
	}))
	defer srv.Close()

	client := cloud.NewOpenRouterClient(cloud.Options{BaseURL: srv.URL, APIKey: "sk-or-test"}, nil)
	g := newGenerator(client, nil)

	_, err := g.Generate(context.Background(), Request{Mentor: mentor.Chess, Message: "best move?"})
	require.Error(t, err)
	assert.Equal(t, model.KindProviderEmptyResponse, model.KindOf(err))
	assert.Equal(t, model.MsgProviderEmpty, model.PublicMessage(err))
}

func TestSystemPrompt(t *testing.T) {
	cfg := &mentor.Config{Persona: mentor.Persona{
		SystemPrompt:    "Base.",
		StyleGuidelines: []string{"One.", " ", "Two."},
	}}
	assert.Equal(t, "Base.\n\nStyle guidelines:\n- One.\n- Two.", SystemPrompt(cfg))

	assert.Equal(t, "Bare.", SystemPrompt(&mentor.Config{Persona: mentor.Persona{SystemPrompt: " Bare. "}}))
}
