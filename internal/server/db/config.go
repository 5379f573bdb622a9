package db

type Config struct {
	// Dialect is sqlite or postgres.
	Dialect string `conf:"dialect" yaml:"dialect" json:"dialect"`
	DSN     string `conf:"dsn" yaml:"dsn" json:"dsn"`
	Debug   bool   `conf:"debug" yaml:"debug" json:"debug"`

	MaxOpenConns int `conf:"max_open_conns" yaml:"max_open_conns" json:"max_open_conns"`
}
