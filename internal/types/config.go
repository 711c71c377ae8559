package types

type RunMode string

const (
	// ModeLocal is the mode for running the scheduler and the consumer locally
	ModeLocal RunMode = "local"
	// ModeConsumer is the mode for running just the notification consumer
	ModeConsumer RunMode = "consumer"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
)
