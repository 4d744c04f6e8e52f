package services

import "time"

const (
	KeyPlayerSession = "player:%s:session"
	KeyHistoryCache  = "history:recent"
	KeyRateLimit     = "ratelimit:%s:%s"

	TTLPlayerSession = 7 * 24 * time.Hour

	DefaultRateLimitStarts   = 30 // Max 30 game starts per minute
	DefaultRateLimitSteps    = 120
	DefaultRateLimitCashouts = 60
)
