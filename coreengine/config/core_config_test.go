package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCoreConfig(t *testing.T) {
	c := DefaultCoreConfig()

	require.NoError(t, c.Validate())
	assert.Equal(t, StageTR, c.DefaultStage)
	assert.Equal(t, FallbackClassify, c.FallbackMode)
	assert.Equal(t, SuggestionModel, c.SuggestionPolicy)
	assert.Equal(t, 4, c.HistoryWindow)
	assert.Equal(t, 0.3, c.Temperature)
	assert.Equal(t, 900, c.MaxTokens)
	assert.Equal(t, 5, c.ClassifierMaxTokens)
	assert.NotEmpty(t, c.RegulatoryReferences)
}

func TestCoreConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *CoreConfig)
		errMsg string
	}{
		{"bad fallback", func(c *CoreConfig) { c.FallbackMode = "guess" }, "invalid fallback_mode"},
		{"bad policy", func(c *CoreConfig) { c.SuggestionPolicy = "random" }, "invalid suggestion_policy"},
		{"bad provider", func(c *CoreConfig) { c.Provider = "acme" }, "invalid provider"},
		{"negative window", func(c *CoreConfig) { c.HistoryWindow = -1 }, "history_window"},
		{"zero tokens", func(c *CoreConfig) { c.MaxTokens = 0 }, "token budgets"},
		{"no default stage", func(c *CoreConfig) { c.DefaultStage = "" }, "default_stage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultCoreConfig()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateAgainstRegistry(t *testing.T) {
	c := DefaultCoreConfig()
	require.NoError(t, c.ValidateAgainst(DefaultRegistry()))
	require.NoError(t, c.ValidateAgainst(LegacyRegistry()))

	c.InitialStage = StagePCA
	require.Error(t, c.ValidateAgainst(LegacyRegistry()))
}

func TestLoadCoreConfig(t *testing.T) {
	t.Run("empty path yields defaults", func(t *testing.T) {
		c, err := LoadCoreConfig("")
		require.NoError(t, err)
		assert.Equal(t, DefaultCoreConfig(), c)
	})

	t.Run("missing file yields defaults", func(t *testing.T) {
		c, err := LoadCoreConfig(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 900, c.MaxTokens)
	})

	t.Run("file overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "synapse.yaml")
		yaml := "pipeline: legacy\nfallback_mode: advance\nmax_tokens: 1500\nacknowledge: false\n"
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

		c, err := LoadCoreConfig(path)
		require.NoError(t, err)
		assert.Equal(t, RegistryLegacy, c.Pipeline)
		assert.Equal(t, FallbackAdvance, c.FallbackMode)
		assert.Equal(t, 1500, c.MaxTokens)
		assert.False(t, c.Acknowledge)
		assert.Equal(t, 0.3, c.Temperature, "unset keys keep defaults")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("max_tokens: [1"), 0o600))
		_, err := LoadCoreConfig(path)
		require.Error(t, err)
	})
}

func TestApplyEnvAndCredential(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}

	t.Run("missing credential", func(t *testing.T) {
		c := DefaultCoreConfig()
		c.ApplyEnv(env(nil))
		err := c.CheckCredential()
		require.ErrorIs(t, err, ErrMissingCredential)
		assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	})

	t.Run("openai key", func(t *testing.T) {
		c := DefaultCoreConfig()
		c.ApplyEnv(env(map[string]string{"OPENAI_API_KEY": "sk-test"}))
		require.NoError(t, c.CheckCredential())
		assert.Equal(t, "sk-test", c.APIKey)
	})

	t.Run("synapse key wins over provider key", func(t *testing.T) {
		c := DefaultCoreConfig()
		c.ApplyEnv(env(map[string]string{"OPENAI_API_KEY": "a", "SYNAPSE_API_KEY": "b"}))
		assert.Equal(t, "b", c.APIKey)
	})

	t.Run("gemini provider from env", func(t *testing.T) {
		c := DefaultCoreConfig()
		c.ApplyEnv(env(map[string]string{"SYNAPSE_PROVIDER": "Gemini", "GEMINI_API_KEY": "g", "SYNAPSE_MODEL": "gemini-2.0-flash"}))
		assert.Equal(t, ProviderGemini, c.Provider)
		assert.Equal(t, "gemini-2.0-flash", c.Model)
		assert.Equal(t, "g", c.APIKey)
	})
}

func TestLoadRegistryFromConfig(t *testing.T) {
	c := DefaultCoreConfig()
	r, err := c.LoadRegistry()
	require.NoError(t, err)
	assert.Equal(t, RegistryDefault, r.Name)

	c.RegistryFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = c.LoadRegistry()
	require.Error(t, err)
}
