package constants

// Default timeout values used by client packages
const (
	DefaultHTTPTimeoutSec     = 30
	DefaultSendMaxFailures    = 5
	DefaultBreakerCooldownSec = 60
)
