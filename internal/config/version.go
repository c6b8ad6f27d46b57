package config

// Build metadata injected at build time via ldflags.
//
// Build with:
//
//	go build -ldflags "-X 'github.com/tagarr/tagarr/internal/config.Version=1.2.0' \
//	                   -X 'github.com/tagarr/tagarr/internal/config.Commit=abc123'"
var (
	Version = "dev"
	Commit  = "unknown"
)
