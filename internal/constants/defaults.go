package constants

// Default server configuration values
const (
	DefaultServerPort            = 8086
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	ServerErrorChannelSize       = 1
)

// Default retry configuration values
const (
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultMaxAttempts           = 5
	DefaultDatabaseRetryAttempts = 3
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec           = 30
	DefaultScheduleFetchTimeoutSec  = 10
	DefaultRenderTimeoutSec         = 60
	DefaultWSReconnectInitialSec    = 1
	DefaultWSReconnectMaxSec        = 60
)

// Pending request workflow values
const (
	// RequestTTLSeconds is the lifetime of a pending friend/group request
	// record. Once it elapses the record is treated as absent and the
	// platform-side default behavior applies.
	RequestTTLSeconds = 86400

	// RequestKeyPrefix namespaces pending request rows in the KV store.
	RequestKeyPrefix = "Yz:request:"
)

// Like plugin values
const (
	LikeBatchSize   = 10
	LikeMaxBatches  = 5
	LikeTargetTotal = 50
)

// Cleanup scheduler values
const (
	CleanupSchedulerIntervalHours = 1
)

// Encryption configuration
const (
	EncryptionSalt = "yunzai-go-salt-v1"
)
