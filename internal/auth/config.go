package auth

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Secret string `mapstructure:"Secret"`
	Issuer string `mapstructure:"Issuer"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.BindEnv("Secret", "AUTH_SECRET")
	v.BindEnv("Issuer", "AUTH_ISSUER")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}

	if cfg.Secret == "" {
		cfg.Secret = v.GetString("AUTH_SECRET")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = v.GetString("AUTH_ISSUER")
	}

	// Проверяем, что все необходимые поля заполнены
	if cfg.Secret == "" {
		return nil, fmt.Errorf("Secret is required")
	}

	return &cfg, nil
}
