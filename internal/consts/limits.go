package consts

import "time"

// Buffer sizes for various operations
const (
	// BufferSize1KB is 1 kilobyte
	BufferSize1KB = 1024
	// BufferSize64KB is 64 kilobytes
	BufferSize64KB = 64 * 1024
	// BufferSize1MB is 1 megabyte
	BufferSize1MB = 1024 * 1024
	// BufferSize10MB is 10 megabytes
	BufferSize10MB = 10 * 1024 * 1024
)

// Connection limits
const (
	// DefaultMaxConnections is the default ceiling for concurrent clients
	DefaultMaxConnections = 10
	// DefaultRecvBufferLimit bounds bytes buffered while waiting for a
	// complete frame on one connection
	DefaultRecvBufferLimit = BufferSize1MB
	// DefaultMessageSizeLimit bounds a single decoded message payload
	DefaultMessageSizeLimit = BufferSize10MB
)

// Timeouts for various operations
const (
	// Timeout1Second is a 1 second timeout
	Timeout1Second = 1 * time.Second
	// Timeout5Seconds is a 5 second timeout
	Timeout5Seconds = 5 * time.Second
	// Timeout10Seconds is a 10 second timeout
	Timeout10Seconds = 10 * time.Second
	// Timeout30Seconds is a 30 second timeout
	Timeout30Seconds = 30 * time.Second
)

// Intervals
const (
	// DefaultSweepInterval is how often the hub checks for dead connections
	DefaultSweepInterval = 30 * time.Second
	// DefaultWatchDebounce coalesces bursts of filesystem events for the
	// same path into one notification
	DefaultWatchDebounce = 100 * time.Millisecond
)
