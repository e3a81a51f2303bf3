package embedder

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantProvider string
		wantDim      int
		wantErr      error
	}{
		{name: "default is ollama", cfg: Config{}, wantProvider: ProviderOllama, wantDim: OllamaDimension},
		{name: "ollama with dimension", cfg: Config{Provider: "Ollama", Dimension: 1024}, wantProvider: ProviderOllama, wantDim: 1024},
		{name: "local", cfg: Config{Provider: ProviderLocal, Dimension: 32}, wantProvider: ProviderLocal, wantDim: 32},
		{name: "openai with key", cfg: Config{Provider: ProviderOpenAI, APIKey: "k"}, wantProvider: ProviderOpenAI, wantDim: OpenAIDimension},
		{name: "unknown", cfg: Config{Provider: "word2vec"}, wantErr: ErrUnsupportedModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer func() { _ = emb.Close() }()
			assert.Equal(t, tt.wantProvider, emb.Provider())
			assert.Equal(t, tt.wantDim, emb.Dimension())
		})
	}
}

func TestNew_PersistentCache(t *testing.T) {
	emb, err := New(Config{
		Provider:  ProviderLocal,
		Dimension: 8,
		CachePath: filepath.Join(t.TempDir(), "cache.db"),
	})
	require.NoError(t, err)
	defer func() { _ = emb.Close() }()

	_, ok := emb.(*PersistentCache)
	assert.True(t, ok)
	assert.Equal(t, ProviderLocal, emb.Provider())
	assert.Equal(t, 8, emb.Dimension())
}
