package config

import "github.com/spf13/viper"

const (
	logLevelKey      = "log.level"
	logFormatKey     = "log.format"
	logFileKey       = "log.file"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"
)

type LogConfig interface {
	GetLogLevel() string
	// GetLogFormat is "console" or "json"
	GetLogFormat() string
	GetLogFile() string
	GetLogMaxSize() int
	GetLogMaxBackups() int
	GetLogMaxAge() int
	GetLogCompress() bool
}

type Log struct {
	v *viper.Viper
}

var _ LogConfig = Log{}

func (l Log) GetLogLevel() string   { return l.v.GetString(logLevelKey) }
func (l Log) GetLogFormat() string  { return l.v.GetString(logFormatKey) }
func (l Log) GetLogFile() string    { return l.v.GetString(logFileKey) }
func (l Log) GetLogMaxSize() int    { return l.v.GetInt(logMaxSizeKey) }
func (l Log) GetLogMaxBackups() int { return l.v.GetInt(logMaxBackupsKey) }
func (l Log) GetLogMaxAge() int     { return l.v.GetInt(logMaxAgeKey) }
func (l Log) GetLogCompress() bool  { return l.v.GetBool(logCompressKey) }
