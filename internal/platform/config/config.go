package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendFile     = "file"
	BackendDynamoDB = "dynamodb"
	BackendS3       = "s3"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

// Config is the process configuration read from the environment.
type Config struct {
	ParamPrefix string `env:"PARAM_PREFIX,required"`
	GroupChatID string `env:"GROUP_CHAT_ID,required"`

	AppointmentBackend string `env:"APPOINTMENT_BACKEND" envDefault:"dynamodb"`
	AppointmentsFile   string `env:"APPOINTMENTS_FILE" envDefault:"appointments.json"`
	AppointmentsTable  string `env:"APPOINTMENTS_TABLE"`
	AppointmentsBucket string `env:"APPOINTMENTS_BUCKET"`
	AppointmentsKey    string `env:"APPOINTMENTS_KEY" envDefault:"appointments.json"`

	SessionBackend string `env:"SESSION_BACKEND" envDefault:"dynamodb"`
	SessionTable   string `env:"SESSION_TABLE"`
	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPrefix    string `env:"REDIS_PREFIX" envDefault:"appt:session"`

	TelegramAPIURL string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	ServiceName    string `env:"SERVICE_NAME" envDefault:"appointment-bot"`
}

// Load reads an optional .env file, then parses and validates the environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load dotenv: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the variables each selected backend needs.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ParamPrefix) == "" {
		errs = append(errs, errors.New("PARAM_PREFIX must not be empty"))
	}
	if strings.TrimSpace(c.GroupChatID) == "" {
		errs = append(errs, errors.New("GROUP_CHAT_ID must not be empty"))
	}

	switch c.AppointmentBackend {
	case BackendFile:
		if strings.TrimSpace(c.AppointmentsFile) == "" {
			errs = append(errs, errors.New("APPOINTMENTS_FILE is required for the file backend"))
		}
	case BackendDynamoDB:
		if strings.TrimSpace(c.AppointmentsTable) == "" {
			errs = append(errs, errors.New("APPOINTMENTS_TABLE is required for the dynamodb backend"))
		}
	case BackendS3:
		if strings.TrimSpace(c.AppointmentsBucket) == "" {
			errs = append(errs, errors.New("APPOINTMENTS_BUCKET is required for the s3 backend"))
		}
		if strings.TrimSpace(c.AppointmentsKey) == "" {
			errs = append(errs, errors.New("APPOINTMENTS_KEY is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("APPOINTMENT_BACKEND %q is not one of file, dynamodb, s3", c.AppointmentBackend))
	}

	switch c.SessionBackend {
	case BackendMemory:
	case BackendDynamoDB:
		if strings.TrimSpace(c.SessionTable) == "" {
			errs = append(errs, errors.New("SESSION_TABLE is required for the dynamodb session backend"))
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis session backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_BACKEND %q is not one of memory, dynamodb, redis", c.SessionBackend))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
