package database

// Config holds configuration for the database connection.
type Config struct {
	// Driver is the database driver (mysql, sqlite).
	Driver string `mapstructure:"driver" default:"mysql"`
	// Host is the database host.
	Host string `mapstructure:"host" default:"localhost"`
	// Port is the database port.
	Port int `mapstructure:"port" default:"3306"`
	// User is the database user.
	User string `mapstructure:"user" default:"root"`
	// Password is the database password.
	Password string `mapstructure:"password" default:""`
	// Name is the database name.
	Name string `mapstructure:"name" default:"server"`
	// File is the database file path for the sqlite driver.
	File string `mapstructure:"file" default:"datakit.db"`
	// TimeoutSeconds is the connect/read/write timeout for network drivers.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// MaxOpenConns bounds the connection pool.
	MaxOpenConns int `mapstructure:"max_open_conns" default:"16"`
	// MaxIdleConns is the number of idle connections kept around.
	MaxIdleConns int `mapstructure:"max_idle_conns" default:"4"`
	// AcquireTimeoutSeconds bounds how long a caller may wait for a
	// pooled connection before the acquisition fails loudly.
	AcquireTimeoutSeconds int `mapstructure:"acquire_timeout_seconds" default:"10"`
}
