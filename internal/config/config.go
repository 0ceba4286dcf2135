package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort        string        `env:"HTTP_PORT" envDefault:"5005"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	DBMaxConns      int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns      int32         `env:"DB_MIN_CONNS" envDefault:"1"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE" envDefault:"true"`
	JWTSecret       string        `env:"JWTSECRET,required,notEmpty"`
	JWTIssuer       string        `env:"JWT_ISSUER" envDefault:"credential-service"`
	SessionTokenTTL time.Duration `env:"SESSION_TOKEN_TTL" envDefault:"1000h"`
	ActionTokenTTL  time.Duration `env:"ACTION_TOKEN_TTL" envDefault:"10m"`
	RedirectBaseURI string        `env:"REDIRECT_BASE_URI" envDefault:"http://localhost:3000"`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"10"`
	SMTPHost        string        `env:"SMTP_HOST"`
	SMTPPort        int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser        string        `env:"SMTP_USER"`
	SMTPPass        string        `env:"SMTP_PASS"`
	SMTPFrom        string        `env:"SMTP_FROM"`
	SMTPFromName    string        `env:"SMTP_FROM_NAME"`
	SMTPUseTLS      bool          `env:"SMTP_USE_TLS" envDefault:"false"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	MailQueueKey    string        `env:"MAIL_QUEUE_KEY" envDefault:"mail:outbox"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
