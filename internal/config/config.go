package config

type Config interface {
	EnvConfig
	SecurityConfig
	TokenConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetRedisAddr() string
	GetRiskPolicyPath() string
}

type mainConfig struct {
	EnvVars
	Security
	Tokens
}

func New() Config {
	return mainConfig{}
}
