package config

import (
	"time"

	"github.com/spf13/viper"
)

const cacheGraceKey = "cache.unsubscribe_grace"

type CacheConfig interface {
	GetUnsubscribeGrace() time.Duration
}

type Cache struct {
	v *viper.Viper
}

var _ CacheConfig = Cache{}

func (c Cache) GetUnsubscribeGrace() time.Duration {
	return c.v.GetDuration(cacheGraceKey)
}
