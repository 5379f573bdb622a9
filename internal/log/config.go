package log

type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

type Config struct {
	// Name is attached to every entry as the "logger" field.
	Name string `conf:"name" yaml:"name" json:"name"`

	Debug bool  `conf:"debug" yaml:"debug" json:"debug"`
	Level Level `conf:"level" yaml:"level" json:"level"`

	// Encoding is json or console, default is json.
	Encoding string `conf:"encoding" yaml:"encoding" json:"encoding"`

	// Output is stdio or file, default is stdio.
	Output string     `conf:"output" yaml:"output" json:"output"`
	File   FileConfig `conf:"file" yaml:"file" json:"file"`
}

// FileConfig controls rotation when Output is file.
type FileConfig struct {
	Path       string `conf:"path" yaml:"path" json:"path"`
	MaxSize    int    `conf:"max_size" yaml:"max_size" json:"max_size"`
	MaxAge     int    `conf:"max_age" yaml:"max_age" json:"max_age"`
	MaxBackups int    `conf:"max_backups" yaml:"max_backups" json:"max_backups"`
	LocalTime  bool   `conf:"local_time" yaml:"local_time" json:"local_time"`
	Compress   bool   `conf:"compress" yaml:"compress" json:"compress"`
}
