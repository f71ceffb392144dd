package cleanup

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksnap/booksnap/internal/providers"
)

type stubProvider struct {
	response string
	err      error
	last     providers.Request
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(ctx context.Context, req providers.Request) (string, error) {
	s.last = req
	return s.response, s.err
}

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		want     string
		wantErr  bool
	}{
		{
			name:     "valid response",
			response: `{"lines": ["IL NOME DELLA ROSA", "Umberto Eco"], "corrections": 2}`,
			want:     "IL NOME DELLA ROSA\nUmberto Eco",
		},
		{
			name:     "fenced response",
			response: "```json\n{\"lines\": [\"Italo Calvino\"]}\n```",
			want:     "Italo Calvino",
		},
		{
			name:     "missing lines",
			response: `{"text": "IL NOME DELLA ROSA"}`,
			wantErr:  true,
		},
		{
			name:     "empty lines",
			response: `{"lines": []}`,
			wantErr:  true,
		},
		{
			name:     "negative corrections",
			response: `{"lines": ["ok line"], "corrections": -1}`,
			wantErr:  true,
		},
		{
			name:     "not json",
			response: "Sure! Here is the corrected text:",
			wantErr:  true,
		},
		{
			name:    "provider failure",
			err:     fmt.Errorf("connection refused"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &stubProvider{response: tt.response, err: tt.err}
			c, err := New(DefaultConfig(), provider, nil)
			require.NoError(t, err)

			got, err := c.Clean(context.Background(), "IL N0ME DELLA R0SA\nUmbert0 Eco")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, provider.last.JSON)
			assert.True(t, strings.Contains(provider.last.Prompt, "Umbert0 Eco"))
		})
	}
}

func TestNewProvider(t *testing.T) {
	for _, name := range []string{"ollama", "openai", "gemini"} {
		cfg := DefaultConfig()
		cfg.Provider = name
		p, err := NewProvider(cfg)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}

	cfg := DefaultConfig()
	cfg.Provider = "unknown"
	_, err := NewProvider(cfg)
	assert.Error(t, err)
}
