package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all the configuration for the application.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Facebook      OAuthClientConfig
	Twitter       OAuthClientConfig
	Amazon        OAuthClientConfig
	TikTok        OAuthClientConfig
	Stripe        StripeConfig
	SMTP          SMTPConfig
	SessionSecret string `mapstructure:"sessionsecret"`
	TokenSecret   string `mapstructure:"tokensecret"`
	AppBaseURL    string `mapstructure:"appbaseurl"`
}

// ServerConfig holds the server configuration.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig holds the Redis configuration.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// OAuthClientConfig holds one platform's OAuth application credentials.
// Instagram rides on the Facebook app credentials, so it has no block of its own.
type OAuthClientConfig struct {
	ClientID     string `mapstructure:"clientid"`
	ClientSecret string `mapstructure:"clientsecret"`
	RedirectURL  string `mapstructure:"redirecturl"`
}

// StripeConfig holds the Stripe API and webhook credentials plus the
// price ids that map checkout sessions onto subscription plans.
type StripeConfig struct {
	SecretKey      string `mapstructure:"secretkey"`
	WebhookSecret  string `mapstructure:"webhooksecret"`
	PriceMonthlyID string `mapstructure:"pricemonthlyid"`
	PriceYearlyID  string `mapstructure:"priceyearlyid"`
}

type SMTPConfig struct {
	From     string `mapstructure:"from"`
	Password string `mapstructure:"password"`
	Username string `mapstructure:"username"`
	Port     int    `mapstructure:"port"`
	Host     string `mapstructure:"host"`
}

// Load creates a new Config object from environment variables.
func Load() *Config {
	// --- Set up Viper ---
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Load .env into process environment for BindEnv to work with file-based envs
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️ godotenv could not load .env: %v", err)
	}

	// Bind structured keys to environment variables
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("database.url", "DATABASE_URL")
	_ = viper.BindEnv("redis.url", "REDIS_URL")
	_ = viper.BindEnv("sessionsecret", "SESSION_SECRET")
	_ = viper.BindEnv("tokensecret", "TOKEN_SECRET")
	_ = viper.BindEnv("appbaseurl", "APP_BASE_URL")
	_ = viper.BindEnv("facebook.clientid", "FACEBOOK_CLIENT_ID")
	_ = viper.BindEnv("facebook.clientsecret", "FACEBOOK_CLIENT_SECRET")
	_ = viper.BindEnv("facebook.redirecturl", "FACEBOOK_REDIRECT_URL")
	_ = viper.BindEnv("twitter.clientid", "TWITTER_CLIENT_ID")
	_ = viper.BindEnv("twitter.clientsecret", "TWITTER_CLIENT_SECRET")
	_ = viper.BindEnv("twitter.redirecturl", "TWITTER_REDIRECT_URL")
	_ = viper.BindEnv("amazon.clientid", "AMAZON_CLIENT_ID")
	_ = viper.BindEnv("amazon.clientsecret", "AMAZON_CLIENT_SECRET")
	_ = viper.BindEnv("amazon.redirecturl", "AMAZON_REDIRECT_URL")
	_ = viper.BindEnv("tiktok.clientid", "TIKTOK_CLIENT_ID")
	_ = viper.BindEnv("tiktok.clientsecret", "TIKTOK_CLIENT_SECRET")
	_ = viper.BindEnv("tiktok.redirecturl", "TIKTOK_REDIRECT_URL")
	_ = viper.BindEnv("stripe.secretkey", "STRIPE_SECRET_KEY")
	_ = viper.BindEnv("stripe.webhooksecret", "STRIPE_WEBHOOK_SECRET")
	_ = viper.BindEnv("stripe.pricemonthlyid", "STRIPE_PRICE_MONTHLY_ID")
	_ = viper.BindEnv("stripe.priceyearlyid", "STRIPE_PRICE_YEARLY_ID")
	_ = viper.BindEnv("smtp.from", "SMTP_FROM")
	_ = viper.BindEnv("smtp.password", "SMTP_PASSWORD")
	_ = viper.BindEnv("smtp.username", "SMTP_USERNAME")
	_ = viper.BindEnv("smtp.port", "SMTP_PORT")
	_ = viper.BindEnv("smtp.host", "SMTP_HOST")

	// --- Read Configuration ---
	if err := viper.ReadInConfig(); err != nil {
		// Only log a warning if the .env file is not found.
		// We can still proceed if all config is set via environment variables.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("❌ Error reading config file: %s", err)
		} else {
			log.Printf("⚠️ .env file not found, relying on environment variables")
		}
	}

	// --- Unmarshal configuration into our struct ---
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("❌ Unable to decode config into struct: %v", err)
	}

	// --- Set default values ---
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if cfg.AppBaseURL == "" {
		cfg.AppBaseURL = "http://localhost:3000"
	}

	log.Println("✅ Configuration loaded successfully")
	return &cfg
}
