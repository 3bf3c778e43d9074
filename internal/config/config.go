package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"Server"`
	Database      DatabaseConfig      `mapstructure:"Database"`
	Transcription TranscriptionConfig `mapstructure:"Transcription"`
}

type ServerConfig struct {
	Port    string `mapstructure:"Port"`
	BaseURL string `mapstructure:"BaseURL"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
}

type TranscriptionConfig struct {
	// LeaseTTLSeconds — время жизни аренды; должно заметно превышать
	// интервал продления, чтобы сетевой джиттер не ронял аренду
	LeaseTTLSeconds      int    `mapstructure:"LeaseTTLSeconds"`
	RenewIntervalSeconds int    `mapstructure:"RenewIntervalSeconds"`
	OCREndpoint          string `mapstructure:"OCREndpoint"`
	// OCRRateSeconds — минимальный интервал между вызовами OCR по одному активу
	OCRRateSeconds int `mapstructure:"OCRRateSeconds"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	// Устанавливаем файл конфигурации
	v.SetConfigFile(path)

	// Привязываем переменные окружения
	v.BindEnv("Database.Host", "DATABASE_HOST")
	v.BindEnv("Database.Port", "DATABASE_PORT")
	v.BindEnv("Database.User", "DATABASE_USER")
	v.BindEnv("Database.Password", "DATABASE_PASSWORD")
	v.BindEnv("Database.Name", "DATABASE_NAME")
	v.BindEnv("Database.SSLMode", "DATABASE_SSLMODE")
	v.BindEnv("Server.Port", "HTTP_PORT")
	v.BindEnv("Server.BaseURL", "BASE_URL")
	v.BindEnv("Transcription.LeaseTTLSeconds", "LEASE_TTL_SECONDS")
	v.BindEnv("Transcription.RenewIntervalSeconds", "RENEW_INTERVAL_SECONDS")
	v.BindEnv("Transcription.OCREndpoint", "OCR_ENDPOINT")
	v.BindEnv("Transcription.OCRRateSeconds", "OCR_RATE_SECONDS")

	// Читаем конфигурацию из файла
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Проверяем переменные окружения напрямую если конфигурация неполная
	if cfg.Database.Host == "" {
		cfg.Database.Host = v.GetString("DATABASE_HOST")
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = v.GetString("DATABASE_PORT")
	}
	if cfg.Database.User == "" {
		cfg.Database.User = v.GetString("DATABASE_USER")
	}
	if cfg.Database.Password == "" {
		cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = v.GetString("DATABASE_NAME")
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = v.GetString("HTTP_PORT")
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = v.GetString("BASE_URL")
	}
	if cfg.Transcription.OCREndpoint == "" {
		cfg.Transcription.OCREndpoint = v.GetString("OCR_ENDPOINT")
	}

	// Проверяем, что все необходимые поля заполнены
	if cfg.Database.Host == "" ||
		cfg.Database.Port == "" ||
		cfg.Database.User == "" ||
		cfg.Database.Password == "" ||
		cfg.Database.Name == "" {
		return nil, fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Name)
	}

	// Установка значений по умолчанию
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "2525"
	}
	if cfg.Transcription.LeaseTTLSeconds == 0 {
		cfg.Transcription.LeaseTTLSeconds = 300
	}
	if cfg.Transcription.RenewIntervalSeconds == 0 {
		cfg.Transcription.RenewIntervalSeconds = 60
	}
	if cfg.Transcription.OCRRateSeconds == 0 {
		cfg.Transcription.OCRRateSeconds = 60
	}

	// TTL обязан превышать интервал продления с запасом
	if cfg.Transcription.LeaseTTLSeconds <= cfg.Transcription.RenewIntervalSeconds*2 {
		return nil, fmt.Errorf("lease TTL (%ds) must be at least twice the renew interval (%ds)",
			cfg.Transcription.LeaseTTLSeconds, cfg.Transcription.RenewIntervalSeconds)
	}

	return &cfg, nil
}

func (c *TranscriptionConfig) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLSeconds) * time.Second
}

func (c *TranscriptionConfig) RenewInterval() time.Duration {
	return time.Duration(c.RenewIntervalSeconds) * time.Second
}

func (c *TranscriptionConfig) OCRRate() time.Duration {
	return time.Duration(c.OCRRateSeconds) * time.Second
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}
