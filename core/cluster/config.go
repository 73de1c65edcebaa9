package cluster

// Config holds configuration for the Redis-backed cluster layer.
type Config struct {
	// Enabled toggles cross-server synchronization entirely.
	Enabled bool `mapstructure:"enabled" default:"false"`
	// Host is the Redis host.
	Host string `mapstructure:"host" default:"localhost"`
	// Port is the Redis port.
	Port int `mapstructure:"port" default:"6379"`
	// Password is the Redis password.
	Password string `mapstructure:"password" default:""`
	// DB is the Redis logical database.
	DB int `mapstructure:"db" default:"0"`
	// Channel is the pub/sub channel carrying sync events.
	Channel string `mapstructure:"channel" default:"datakit:sync"`
	// RetryBackoffSeconds is the fixed delay before the subscriber
	// re-subscribes after its subscription drops.
	RetryBackoffSeconds int `mapstructure:"retry_backoff_seconds" default:"3"`
}
