package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	devPortKey     = "devbackend.port"
	devAdminKey    = "devbackend.admin_username"
	devPasswordKey = "devbackend.admin_password"
	devSecretKey   = "devbackend.jwt_secret"
	devTokenTTLKey = "devbackend.token_ttl"
)

// DevBackendConfig configures the in-memory reference backend
type DevBackendConfig interface {
	GetDevBackendPort() string
	GetDevAdminUsername() string
	GetDevAdminPassword() string
	GetDevJWTSecret() string
	GetDevTokenTTL() time.Duration
}

type DevBackend struct {
	v *viper.Viper
}

var _ DevBackendConfig = DevBackend{}

func (d DevBackend) GetDevBackendPort() string {
	port := d.v.GetString(devPortKey)
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (d DevBackend) GetDevAdminUsername() string { return d.v.GetString(devAdminKey) }
func (d DevBackend) GetDevAdminPassword() string { return d.v.GetString(devPasswordKey) }
func (d DevBackend) GetDevJWTSecret() string     { return d.v.GetString(devSecretKey) }
func (d DevBackend) GetDevTokenTTL() time.Duration {
	return d.v.GetDuration(devTokenTTLKey)
}
