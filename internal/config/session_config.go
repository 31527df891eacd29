package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	sessionStorageKey   = "session.storage"
	sessionNamespaceKey = "session.namespace"
	sessionPollKey      = "session.poll_interval"
	sessionRetryKey     = "session.retry_interval"
	sessionFileKey      = "session.file"
	sessionRedisAddrKey = "session.redis.addr"
	sessionRedisDBKey   = "session.redis.db"
	sessionRedisPassKey = "session.redis.password"
)

type SessionConfig interface {
	// GetSessionStorage is "file" or "redis"
	GetSessionStorage() string
	GetSessionNamespace() string
	GetSessionFile() string
	GetPollInterval() time.Duration
	GetRetryInterval() time.Duration
	GetRedisAddr() string
	GetRedisDB() int
	GetRedisPassword() string
}

type Session struct {
	v *viper.Viper
}

var _ SessionConfig = Session{}

func (s Session) GetSessionStorage() string {
	return s.v.GetString(sessionStorageKey)
}

func (s Session) GetSessionNamespace() string {
	return s.v.GetString(sessionNamespaceKey)
}

func (s Session) GetSessionFile() string {
	if f := s.v.GetString(sessionFileKey); f != "" {
		return f
	}
	return filepath.Join(s.v.GetString(folderKey), "session.json")
}

func (s Session) GetPollInterval() time.Duration {
	if d := s.v.GetDuration(sessionPollKey); d > 0 {
		return d
	}
	return 30 * time.Second
}

func (s Session) GetRetryInterval() time.Duration {
	if d := s.v.GetDuration(sessionRetryKey); d > 0 {
		return d
	}
	return 5 * time.Second
}

func (s Session) GetRedisAddr() string {
	return s.v.GetString(sessionRedisAddrKey)
}

func (s Session) GetRedisDB() int {
	return s.v.GetInt(sessionRedisDBKey)
}

func (s Session) GetRedisPassword() string {
	return s.v.GetString(sessionRedisPassKey)
}
