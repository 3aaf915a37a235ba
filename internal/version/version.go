package version

// Version is the current version of the backsim binary.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/helixquant/backsim/internal/version.Version=1.2.3"
// The default value indicates a development build.
var Version = "dev"

// GetVersion returns the current version of the binary.
func GetVersion() string {
	return Version
}
