package tool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedProvidesBuiltInTools(t *testing.T) {
	store := NewMemoryStore(Seed())

	expression, ok := store.FindByID("expression")
	require.True(t, ok)
	assert.Equal(t, 8, expression.MaxUserMessages)
	assert.Equal(t, 1, expression.MaxSessionsPerDay)
	assert.Contains(t, expression.Prompt, "Boundary Tool: Expression")

	_, ok = store.FindByID("decision")
	assert.True(t, ok)
}

func TestFindByIDResolvesAlias(t *testing.T) {
	store := NewMemoryStore(Seed())

	got, ok := store.FindByID("boundary-check")
	require.True(t, ok)
	assert.Equal(t, "decision", got.ID)
}

func TestFindByIDUnknown(t *testing.T) {
	store := NewMemoryStore(Seed())

	_, ok := store.FindByID("poetry")
	assert.False(t, ok)
}

func TestParseCatalogRejectsInvalidTools(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{name: "empty", yaml: "tools: []"},
		{name: "missing prompt", yaml: "tools:\n  - id: a\n    max_user_messages: 2\n    max_sessions_per_day: 1\n"},
		{name: "zero message cap", yaml: "tools:\n  - id: a\n    max_user_messages: 0\n    max_sessions_per_day: 1\n    prompt: p\n"},
		{name: "zero session cap", yaml: "tools:\n  - id: a\n    max_user_messages: 3\n    max_sessions_per_day: 0\n    prompt: p\n"},
		{name: "alias collides", yaml: "tools:\n  - id: a\n    max_user_messages: 3\n    max_sessions_per_day: 1\n    prompt: p\n  - id: b\n    aliases: [a]\n    max_user_messages: 3\n    max_sessions_per_day: 1\n    prompt: p\n"},
		{name: "not yaml", yaml: "tools: [::"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	content := "tools:\n  - id: sketch\n    max_user_messages: 3\n    max_sessions_per_day: 2\n    prompt: |\n      Sketch prompt\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	tools, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "sketch", tools[0].ID)
	assert.Equal(t, 2, tools[0].MaxSessionsPerDay)
	assert.Equal(t, "Sketch prompt", tools[0].Prompt)
}

func TestLoadCatalogEmptyPathUsesSeed(t *testing.T) {
	tools, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Len(t, tools, len(Seed()))
}
