package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRules = `rules:
  - token: FLAME
    category: flame
    display: FLAME
    mode: filtered
  - token: BHDStudio
    category: bhdstudio
    mode: simple
  - token: OldGroup
    category: oldgroup
    mode: simple
    active: false
`

func TestParse(t *testing.T) {
	set, err := Parse([]byte(sampleRules))
	require.NoError(t, err)

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []string{"flame", "bhdstudio"}, set.Categories())
	assert.Len(t, set.Inactive(), 1)

	active := set.Active()
	require.Len(t, active, 2)
	assert.Equal(t, ModeFiltered, active[0].Mode)
	assert.Equal(t, "FLAME", active[0].DisplayName())
	assert.Equal(t, "bhdstudio", active[1].DisplayName())
}

func TestParse_DefaultsModeToSimple(t *testing.T) {
	set, err := Parse([]byte("rules:\n  - token: grp\n    category: grp\n"))
	require.NoError(t, err)
	assert.Equal(t, ModeSimple, set.All()[0].Mode)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing token", "rules:\n  - category: a\n"},
		{"uppercase category", "rules:\n  - token: a\n    category: Abc\n"},
		{"unknown mode", "rules:\n  - token: a\n    category: a\n    mode: fuzzy\n"},
		{"duplicate category", "rules:\n  - token: a\n    category: a\n  - token: b\n    category: a\n"},
		{"duplicate token", "rules:\n  - token: a\n    category: a\n  - token: A\n    category: b\n"},
		{"bad yaml", "rules: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestSet_HasToken(t *testing.T) {
	set, err := Parse([]byte(sampleRules))
	require.NoError(t, err)

	assert.True(t, set.HasToken("flame"))
	assert.True(t, set.HasToken("OLDGROUP"), "inactive rules count as known")
	assert.False(t, set.HasToken("flam"), "membership is exact, not pattern based")
	assert.False(t, set.HasToken(""))
}

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, "flame", CategoryFor("FLAME"))
	assert.Equal(t, "d-z0n3", CategoryFor("D-Z0N3"))
	assert.Equal(t, "hi-there", CategoryFor(" Hi..There! "))
	assert.Equal(t, "", CategoryFor("!!!"))
}

func TestStore_AppendDiscovered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o600))

	store := NewStore(path)
	added, err := store.AppendDiscovered([]Rule{
		{Token: "NewGroup", Category: "newgroup", Display: "NewGroup", Mode: ModeFiltered,
			Discovered: &DiscoveryInfo{Date: "2026-10-16", Quality: "MA WEB-DL", Audio: "TrueHD Atmos", Occurrences: 2}},
		{Token: "flame", Category: "flame"},
		{Token: "newgroup", Category: "newgroup"},
	})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.False(t, added[0].IsActive())

	set, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 4, set.Len())
	assert.True(t, set.HasToken("newgroup"))
	assert.NotContains(t, set.Categories(), "newgroup", "discovered rules are never activated")

	discovered := set.Inactive()[1]
	require.NotNil(t, discovered.Discovered)
	assert.Equal(t, "MA WEB-DL", discovered.Discovered.Quality)
	assert.Equal(t, 2, discovered.Discovered.Occurrences)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStore_AppendDiscovered_Nothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o644))

	added, err := NewStore(path).AppendDiscovered(nil)
	require.NoError(t, err)
	assert.Empty(t, added)
}

func TestStore_AppendDiscovered_CategoryCollision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o644))
	store := NewStore(path)

	entries := []Rule{
		{Token: "Grp.X", Category: CategoryFor("Grp.X"), Mode: ModeFiltered},
		{Token: "GRP-X", Category: CategoryFor("GRP-X"), Mode: ModeFiltered},
		{Token: "   ", Category: "blank", Mode: ModeFiltered},
		{Token: "OTHER", Category: CategoryFor("OTHER"), Mode: ModeFiltered},
	}
	require.Equal(t, entries[0].Category, entries[1].Category)

	added, err := store.AppendDiscovered(entries)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, "Grp.X", added[0].Token)
	assert.Equal(t, "OTHER", added[1].Token)

	set, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, set.Len())
	assert.True(t, set.HasToken("OTHER"))
	assert.False(t, set.HasToken("GRP-X"))
}

func TestStore_LoadMissing(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	assert.ErrorIs(t, err, ErrInvalid)
}
