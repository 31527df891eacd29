package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	portKey    = "port"
	appNameKey = "app_name"
	folderKey  = "data_folder"
	envKey     = "env"
)

var defaults = map[string]any{
	portKey:    "8080",
	appNameKey: "Matka Admin",
	folderKey:  "./data",
	envKey:     "DEV",

	apiBaseURLKey:      "http://localhost:9090",
	apiLoginPathKey:    "/api/admin-login",
	apiCheckPathKey:    "/api/check-session",
	apiStrict422Key:    false,
	apiLandingRouteKey: "/dashboard",

	sessionStorageKey:   "file",
	sessionNamespaceKey: "persist",
	sessionPollKey:      30 * time.Second,
	sessionRetryKey:     5 * time.Second,
	sessionFileKey:      "",
	sessionRedisAddrKey: "localhost:6379",
	sessionRedisDBKey:   0,
	sessionRedisPassKey: "",

	cacheGraceKey: 60 * time.Second,

	logLevelKey:      "info",
	logFormatKey:     "console",
	logFileKey:       "",
	logMaxSizeKey:    100,
	logMaxBackupsKey: 3,
	logMaxAgeKey:     28,
	logCompressKey:   false,

	devPortKey:     "9090",
	devAdminKey:    "admin",
	devPasswordKey: "admin123",
	devSecretKey:   "dev-secret-change-me",
	devTokenTTLKey: 12 * time.Hour,
}

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.v.GetString(portKey)
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameKey)
}

func (e EnvVars) GetDataFolder() string {
	return e.v.GetString(folderKey)
}

func (e EnvVars) GetEnv() string {
	env := strings.ToUpper(e.v.GetString(envKey))
	if env == "" {
		return "DEV"
	}
	return env
}
