package config

// Version is the buildhub binary version.
// Set at build time via: -ldflags "-X github.com/nivostack/buildhub/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
