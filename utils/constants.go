package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the default lifetime of a signed access token (30 minutes)
	AccessTokenTTL = 30 * time.Minute

	// SessionTimeout is the default lifetime of a server-held session (24 hours)
	SessionTimeout = 24 * time.Hour

	// SessionCookieName carries the opaque session handle
	SessionCookieName = "session_id"
)

// Delivery constants
const (
	// DeliveryQueueName is the durable queue shared with the delivery worker
	DeliveryQueueName = "mensagens_futuras"

	// DefaultPublishTimeout bounds a single broker publish
	DefaultPublishTimeout = 5 * time.Second

	// MaxMessagePageSize caps a single list page
	MaxMessagePageSize = 100
)

// MaxPasswordBytes is the longest password bcrypt will hash
const MaxPasswordBytes = 72

// Phone constraints
const (
	MinPhoneDigits = 10
	MaxPhoneDigits = 11
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
