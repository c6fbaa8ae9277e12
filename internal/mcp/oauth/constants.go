package oauth

import "time"

// Pending authorization and login timeouts
const (
	// DefaultPendingAuthTTL is how long an issued state stays valid (10 minutes)
	DefaultPendingAuthTTL = 10 * time.Minute

	// DefaultCleanupInterval is how often expired pending entries are swept (1 minute)
	DefaultCleanupInterval = 1 * time.Minute

	// DefaultLoginWaitTimeout bounds a blocking wait for a browser login
	DefaultLoginWaitTimeout = 5 * time.Minute

	// DefaultLoginPollInterval is how often a blocking wait checks the token store
	DefaultLoginPollInterval = 1 * time.Second
)

// Rate limiting defaults for /login and /callback
const (
	// DefaultRateLimitRate is the default requests per second per IP
	DefaultRateLimitRate = 10

	// DefaultRateLimitBurst is the default burst size for rate limiting
	DefaultRateLimitBurst = 20

	// DefaultRateLimitCleanupInterval is how often to cleanup inactive rate limiters
	DefaultRateLimitCleanupInterval = 5 * time.Minute

	// InactiveLimiterCleanupWindow is the time after which inactive limiters are removed
	InactiveLimiterCleanupWindow = 10 * time.Minute
)

// State parameter
const (
	// StateTokenLength is the length of the random part of a state parameter
	StateTokenLength = 16

	// StateSeparator joins identity and random part: "<identity>:<random>"
	StateSeparator = ":"

	stateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// ShowDialogParam forces the consent screen so a user can switch accounts.
const ShowDialogParam = "show_dialog"
