package constants

// Scheduling defaults
const (
	DefaultRandomDelayMaxMinutes = 0
	MaxRandomDelayMinutes        = 180
	ScheduleGraceSeconds         = 1
)

// Default retry configuration values
const (
	DefaultRetryBackoffMs       = 1000
	DefaultMaxBackoffMs         = 60000
	DefaultPersistRetryAttempts = 3
)

// Default server values
const (
	DefaultServerPort           = 8084
	DefaultServerReadTimeoutSec = 15
	DefaultServerWriteTimeout   = 15
	DefaultServerIdleTimeoutSec = 60
	DefaultGracefulShutdownSec  = 30
	ServerErrorChannelSize      = 1
)

// Default transport values
const (
	DefaultWhatsAppSession = "default"
	MaxMessageLength       = 65536
	MaxRowIDLength         = 128
)

// Notifier defaults
const (
	DefaultSubscriberBuffer = 64
)
