package version

// Set at build time with -ldflags "-X github.com/epochledger/epochledger/internal/version.Version=..."
var (
	Version = "unknown"
	Commit  = "unknown"
)

func GetVersion() string {
	return Version
}

func GetCommit() string {
	return Commit
}
