package lunar

// Version is stamped at release time; BuildDate may be overridden with
// -ldflags "-X github.com/glowlabs/lunar.BuildDate=...".
var (
	Version   = "0.4.0"
	BuildDate = "unknown"
)
