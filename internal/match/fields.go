package match

import "strings"

// Location names the item field a token was found in.
type Location string

const (
	LocationNone         Location = ""
	LocationReleaseGroup Location = "release group"
	LocationSceneName    Location = "scene name"
	LocationRelativePath Location = "relative path"
)

// Fields holds the text sources a classification rule is matched against.
// Values keep their original case; matching lowers them on the fly.
type Fields struct {
	ReleaseGroup string
	SceneName    string
	RelativePath string
}

// FirstMatch checks the fields in priority order (release group, scene
// name, relative path) and stops at the first one containing token. The
// location is informational only.
func (f Fields) FirstMatch(token string) (Location, bool) {
	ordered := []struct {
		loc   Location
		value string
	}{
		{LocationReleaseGroup, f.ReleaseGroup},
		{LocationSceneName, f.SceneName},
		{LocationRelativePath, f.RelativePath},
	}
	for _, field := range ordered {
		if Matches(field.value, token) {
			return field.loc, true
		}
	}
	return LocationNone, false
}

// Combined joins all non-empty fields with a space so filter predicates can
// look at every source at once.
func (f Fields) Combined() string {
	parts := make([]string, 0, 3)
	for _, v := range []string{f.ReleaseGroup, f.SceneName, f.RelativePath} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
