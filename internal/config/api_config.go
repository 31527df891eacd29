package config

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	apiBaseURLKey      = "api.base_url"
	apiLoginPathKey    = "api.login_path"
	apiCheckPathKey    = "api.check_session_path"
	apiStrict422Key    = "api.validation_422_is_auth"
	apiLandingRouteKey = "api.landing_route"
)

// APIConfig describes the platform backend the console talks to
type APIConfig interface {
	GetAPIBaseURL() string
	GetLoginPath() string
	GetCheckSessionPath() string
	// GetValidation422IsAuth restores the legacy behaviour where every 422 logs the operator out.
	GetValidation422IsAuth() bool
	GetLandingRoute() string
}

type API struct {
	v *viper.Viper
}

var _ APIConfig = API{}

func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(a.v.GetString(apiBaseURLKey), "/")
}

func (a API) GetLoginPath() string {
	return a.v.GetString(apiLoginPathKey)
}

func (a API) GetCheckSessionPath() string {
	return a.v.GetString(apiCheckPathKey)
}

func (a API) GetValidation422IsAuth() bool {
	return a.v.GetBool(apiStrict422Key)
}

func (a API) GetLandingRoute() string {
	return a.v.GetString(apiLandingRouteKey)
}
