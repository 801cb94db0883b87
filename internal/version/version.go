package version

// Name identifies the service in health output and outbound requests.
const Name = "decoyworks-honeypot"

// Overridden at build time:
//
//	go build -ldflags "-X github.com/decoyworks/honeypot/internal/version.Version=1.2.0"
var (
	Version   = "0.4.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Full returns the version with build metadata when it was stamped.
func Full() string {
	if BuildTime == "unknown" || GitCommit == "unknown" {
		return Version
	}
	return Version + " (commit: " + GitCommit + ", built: " + BuildTime + ")"
}

// UserAgent is sent on outbound requests such as proxy list downloads.
func UserAgent() string {
	return Name + "/" + Version
}
