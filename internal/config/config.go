package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config - основная конфигурация приложения
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Billing      BillingConfig      `yaml:"billing"`
	AI           AIConfig           `yaml:"ai"`
	Marketplaces MarketplacesConfig `yaml:"marketplaces"`
	SMTP         SMTPConfig         `yaml:"smtp"`
}

// ServerConfig - настройки HTTP-сервера
type ServerConfig struct {
	Port string `yaml:"port"`
}

// DatabaseConfig - настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// BillingConfig - параметры биллинга и revenue share
type BillingConfig struct {
	UsdToUzs             int64   `yaml:"usd_to_uzs"`              // фиксированный курс USD→UZS для абонплаты
	GraceDays            int     `yaml:"grace_days"`              // дней отсрочки до блокировки
	BlockDays            int     `yaml:"block_days"`              // срок блокировки
	DefaultRevenueShare  float64 `yaml:"default_revenue_share"`   // доля с оборота по умолчанию (0.04 = 4%)
	DefaultMonthlyFeeUsd int64   `yaml:"default_monthly_fee_usd"` // абонплата по умолчанию, USD
	TrialDays            int     `yaml:"trial_days"`              // длительность триала
}

// AIConfig - настройки AI-провайдера (DeepSeek)
type AIConfig struct {
	APIKey           string `yaml:"api_key"`
	MaxTokens        int    `yaml:"max_tokens"`
	RateLimitPerHour int    `yaml:"rate_limit_per_hour"`
}

// MarketplacesConfig - подключения к API маркетплейсов
type MarketplacesConfig struct {
	Yandex YandexConfig `yaml:"yandex"`
}

// YandexConfig - настройки Яндекс.Маркета (глобальный токен, legacy-режим;
// у партнёров со своими кабинетами токен хранится в MarketplaceAccount)
type YandexConfig struct {
	BaseURL    string `yaml:"base_url"` // https://api.partner.market.yandex.ru
	Token      string `yaml:"token"`
	CampaignID string `yaml:"campaign_id"`
}

// SMTPConfig - настройки отправки почтовых уведомлений
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Load загружает конфигурацию из YAML-файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	// Переопределение из переменных окружения
	if envPort := os.Getenv("PORT"); envPort != "" {
		cfg.Server.Port = envPort
	}
	if envDBHost := os.Getenv("DB_HOST"); envDBHost != "" {
		cfg.Database.Host = envDBHost
	}
	if envDBPassword := os.Getenv("DB_PASSWORD"); envDBPassword != "" {
		cfg.Database.Password = envDBPassword
	}
	if envAIKey := os.Getenv("AI_API_KEY"); envAIKey != "" {
		cfg.AI.APIKey = envAIKey
	}
	if envYandexToken := os.Getenv("YANDEX_TOKEN"); envYandexToken != "" {
		cfg.Marketplaces.Yandex.Token = envYandexToken
	}

	return &cfg, nil
}

// applyDefaults подставляет значения по умолчанию для незаполненных полей
func applyDefaults(cfg *Config) {
	if cfg.Billing.UsdToUzs == 0 {
		cfg.Billing.UsdToUzs = 12600
	}
	if cfg.Billing.GraceDays == 0 {
		cfg.Billing.GraceDays = 7
	}
	if cfg.Billing.BlockDays == 0 {
		cfg.Billing.BlockDays = 14
	}
	if cfg.Billing.DefaultRevenueShare == 0 {
		cfg.Billing.DefaultRevenueShare = 0.04
	}
	if cfg.Billing.DefaultMonthlyFeeUsd == 0 {
		cfg.Billing.DefaultMonthlyFeeUsd = 499
	}
	if cfg.Billing.TrialDays == 0 {
		cfg.Billing.TrialDays = 14
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = 2500
	}
	if cfg.AI.RateLimitPerHour == 0 {
		cfg.AI.RateLimitPerHour = 60
	}
	if cfg.Marketplaces.Yandex.BaseURL == "" {
		cfg.Marketplaces.Yandex.BaseURL = "https://api.partner.market.yandex.ru"
	}
}
