package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL    string
	JWTSecret      []byte
	TokenLifetime  time.Duration
	Port           string
	FrontendURL    string
	RateLimitRPS   int
	SendBufferSize int
}

func LoadConfig() (*Config, error) {
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("TOKEN_LIFETIME_MINUTES", 30)
	viper.SetDefault("RATE_LIMIT_RPS", 50)
	viper.SetDefault("SEND_BUFFER_SIZE", 192)

	secret := viper.GetString("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}

	return &Config{
		DatabaseURL:    viper.GetString("DATABASE_URL"),
		JWTSecret:      []byte(secret),
		TokenLifetime:  time.Duration(viper.GetInt("TOKEN_LIFETIME_MINUTES")) * time.Minute,
		Port:           viper.GetString("PORT"),
		FrontendURL:    viper.GetString("FRONTEND_URL"),
		RateLimitRPS:   viper.GetInt("RATE_LIMIT_RPS"),
		SendBufferSize: viper.GetInt("SEND_BUFFER_SIZE"),
	}, nil
}
