package pathutil

import "testing"

func TestTrimPrefix(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		prefix string
		want   string
		ok     bool
	}{
		{"nested", "/data/movies/Dune/Dune.mkv", "/data/movies", "/Dune/Dune.mkv", true},
		{"trailing slash", "/data/movies/Dune.mkv", "/data/movies/", "/Dune.mkv", true},
		{"exact", "/data/movies", "/data/movies", "", true},
		{"sibling", "/data/movies2/Dune.mkv", "/data/movies", "/data/movies2/Dune.mkv", false},
		{"empty prefix", "/x", "", "/x", false},
		{"backslashes", `D:\media\movies\Dune.mkv`, `D:\media`, "/movies/Dune.mkv", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TrimPrefix(tt.path, tt.prefix)
			if got != tt.want || ok != tt.ok {
				t.Errorf("TrimPrefix(%q, %q) = %q, %v; want %q, %v", tt.path, tt.prefix, got, ok, tt.want, tt.ok)
			}
		})
	}
}
