package version

// Version is set at build time with
// -ldflags "-X github.com/informaticsmatters/squonk2-dm-api-go/internal/version.Version=...".
var Version = "0.0.0-dev"
