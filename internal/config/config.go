package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/settings"
)

type Config struct {
	Port           string
	AllowedOrigin  string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SQLitePath     string
	LogLevel       string
	LogFormat      string
	RateLimitRPS   float64
	RateLimitBurst int
	ConfigFile     string
	Shop           Shop
}

// Shop is the optional YAML file named by CONFIG_FILE. Its values seed the
// settings collections until the shop saves its own.
type Shop struct {
	ShopName       string        `yaml:"shop_name"`
	CurrencySymbol string        `yaml:"currency_symbol"`
	HeaderLines    []string      `yaml:"header_lines"`
	FooterLines    []string      `yaml:"footer_lines"`
	VATRates       []ShopVATRate `yaml:"vat_rates"`
}

type ShopVATRate struct {
	Name    string `yaml:"name"`
	Rate    string `yaml:"rate"`
	Default bool   `yaml:"default"`
}

// Load reads .env (when present) and the environment, then the shop file.
func Load() (Config, error) {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "20"), 64)
	if err != nil || rps < 0 {
		rps = 20
	}
	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "40"))
	if err != nil || burst < 1 {
		burst = 40
	}

	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        redisDB,
		SQLitePath:     os.Getenv("SQLITE_PATH"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RateLimitRPS:   rps,
		RateLimitBurst: burst,
		ConfigFile:     strings.TrimSpace(os.Getenv("CONFIG_FILE")),
	}

	if cfg.ConfigFile != "" {
		shop, err := LoadShop(cfg.ConfigFile)
		if err != nil {
			return cfg, err
		}
		cfg.Shop = shop
	}
	return cfg, nil
}

func LoadShop(path string) (Shop, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Shop{}, fmt.Errorf("load shop config %q: %w", path, err)
	}

	var shop Shop
	if err := yaml.Unmarshal(data, &shop); err != nil {
		return Shop{}, fmt.Errorf("parse shop config %q: %w", path, err)
	}
	return shop, nil
}

// Defaults converts the shop file into settings defaults.
func (s Shop) Defaults() (settings.Defaults, error) {
	rates := make([]domain.VATRate, 0, len(s.VATRates))
	for _, r := range s.VATRates {
		rate, err := decimal.NewFromString(strings.TrimSpace(r.Rate))
		if err != nil {
			return settings.Defaults{}, fmt.Errorf("vat rate %q: %w", r.Name, err)
		}
		rates = append(rates, domain.VATRate{Name: r.Name, Rate: rate, Default: r.Default})
	}
	if len(rates) > 0 {
		normalized, err := settings.NormalizeVATRates(rates)
		if err != nil {
			return settings.Defaults{}, err
		}
		rates = normalized
	}

	return settings.Defaults{
		VATRates: rates,
		ReceiptTemplate: domain.ReceiptTemplate{
			ShopName:       s.ShopName,
			HeaderLines:    s.HeaderLines,
			FooterLines:    s.FooterLines,
			CurrencySymbol: s.CurrencySymbol,
		},
	}, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
