package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"reflect"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "ROOMBOOKING"

// Config captures environment driven configuration values for the room booking service.
type Config struct {
	HTTPPort  int    `envconfig:"HTTP_PORT" default:"8080" validate:"min=1,max=65535"`
	SQLiteDSN string `envconfig:"SQLITE_DSN" default:"file:roombooking.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate" validate:"required"`
	Timezone  string `envconfig:"TIMEZONE" default:"Asia/Tokyo" validate:"required,timezone"`

	SlotStartHour       int `envconfig:"SLOT_START_HOUR" default:"8" validate:"min=0,max=23"`
	SlotEndHour         int `envconfig:"SLOT_END_HOUR" default:"20" validate:"max=24,gtfield=SlotStartHour"`
	SlotIntervalMinutes int `envconfig:"SLOT_INTERVAL_MINUTES" default:"30" validate:"min=5,max=240"`

	// RecurrenceHorizon bounds how far past its start a new series may end.
	RecurrenceHorizon time.Duration `envconfig:"RECURRENCE_HORIZON" default:"8784h" validate:"min=24h"`

	RealtimeBackend string `envconfig:"REALTIME_BACKEND" default:"memory" validate:"oneof=memory redis"`
	RedisAddr       string `envconfig:"REDIS_ADDR" validate:"required_if=RealtimeBackend redis"`
	RedisPassword   string `envconfig:"REDIS_PASSWORD"`
	RedisDB         int    `envconfig:"REDIS_DB" default:"0" validate:"min=0"`
	RedisChannel    string `envconfig:"REDIS_CHANNEL_PREFIX" default:"roombooking"`

	// AMQPURL enables the RabbitMQ notification sink when set.
	AMQPURL   string `envconfig:"AMQP_URL" validate:"omitempty,url"`
	AMQPQueue string `envconfig:"AMQP_QUEUE" default:"roombooking.notifications" validate:"required"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

// Load parses configuration values from the current process environment.
//
// Variables found in envFiles are applied first without overriding the
// process environment; missing files are ignored. Missing and invalid entries
// are reported with their variable names.
func Load(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("環境ファイルを読み込めません: %s: %w", file, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		var parseErr *envconfig.ParseError
		if errors.As(err, &parseErr) {
			return Config{}, fmt.Errorf("環境変数の値が不正です: %s", parseErr.KeyName)
		}
		return Config{}, fmt.Errorf("環境変数を読み込めません: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (c Config) Validate() error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("設定を検証できません: %w", err)
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if strings.HasPrefix(fe.Tag(), "required") {
			missing = append(missing, fe.Field())
			continue
		}
		invalid = append(invalid, fe.Field())
	}

	if len(missing) > 0 {
		return fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	return fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
}

// Location resolves the calendar time zone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// SlogLevel maps LogLevel onto slog levels.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// newValidator reports fields by their environment variable names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := field.Tag.Get("envconfig")
		if name == "" {
			return field.Name
		}
		return envPrefix + "_" + name
	})
	return v
}
