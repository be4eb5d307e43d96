package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	StorageEngineS3         = "s3"
	StorageEngineFilesystem = "filesystem"

	PhotoIDModeFingerprint = "fingerprint"
	PhotoIDModeRandom      = "random"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseDriver string        `env:"DATABASE_DRIVER" envDefault:"postgres" validate:"oneof=postgres sqlite3"`
	DatabaseURL    string        `env:"DATABASE_URL,required" validate:"required"`
	ServerPort     string        `env:"SERVER_PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s" validate:"gt=0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"52428800" validate:"min=1"`

	// Бэкенд хранилища объектов: s3 (MinIO) или локальная файловая система
	StorageEngine      string `env:"STORAGE_ENGINE" envDefault:"s3" validate:"oneof=s3 filesystem"`
	FilesystemBasePath string `env:"FILESYSTEM_BASE_PATH" envDefault:"./data/photos" validate:"required_if=StorageEngine filesystem"`

	// Настройки для MinIO
	MinioEndpoint        string `env:"MINIO_ENDPOINT" validate:"required_if=StorageEngine s3"`
	MinioAccessKeyID     string `env:"MINIO_ACCESS_KEY_ID" validate:"required_if=StorageEngine s3"`
	MinioSecretAccessKey string `env:"MINIO_SECRET_ACCESS_KEY" validate:"required_if=StorageEngine s3"`
	MinioUseSSL          bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinioBucketName      string `env:"MINIO_BUCKET_NAME" envDefault:"photos" validate:"required_if=StorageEngine s3"`
	MinioRegion          string `env:"MINIO_REGION" envDefault:"us-east-1"`
	MinioForcePathStyle  bool   `env:"MINIO_FORCE_PATH_STYLE" envDefault:"true"`
	MinioCreateBucket    bool   `env:"MINIO_CREATE_BUCKET" envDefault:"true"`
	// Публичный адрес, от которого строятся URL объектов. Пусто = адрес эндпоинта
	MinioPublicURL string `env:"MINIO_PUBLIC_URL" validate:"omitempty,url"`

	// Конвейер производных качеств
	DerivativeWidths         []int         `env:"DERIVATIVE_WIDTHS" envSeparator:"," envDefault:"400,1600" validate:"min=1,dive,min=1"`
	DeliveryFormat           string        `env:"DELIVERY_FORMAT" envDefault:"webp" validate:"oneof=webp png jpeg"`
	OriginalQuality          int           `env:"ORIGINAL_QUALITY" envDefault:"95" validate:"min=1,max=100"`
	DerivativeQuality        int           `env:"DERIVATIVE_QUALITY" envDefault:"80" validate:"min=1,max=100"`
	WorkerConcurrency        int           `env:"WORKER_CONCURRENCY" envDefault:"0" validate:"min=0"`
	TaskTimeout              time.Duration `env:"TASK_TIMEOUT" envDefault:"2m" validate:"gt=0"`
	DerivativeUploadAttempts uint          `env:"DERIVATIVE_UPLOAD_ATTEMPTS" envDefault:"3" validate:"min=1"`
	PhotoIDMode              string        `env:"PHOTO_ID_MODE" envDefault:"fingerprint" validate:"oneof=fingerprint random"`

	// Лимитер создания фото
	CreateRatePerSecond float64 `env:"CREATE_RATE_PER_SECOND" envDefault:"10" validate:"gt=0"`
	CreateBurst         int     `env:"CREATE_BURST" envDefault:"20" validate:"min=1"`

	// Проверка доступности производных по URL
	ProbeTimeout   time.Duration `env:"PROBE_TIMEOUT" envDefault:"5s" validate:"gt=0"`
	ProbeUserAgent string        `env:"PROBE_USER_AGENT" envDefault:"PhotoApp/1.0"`

	RabbitMQ struct {
		RabbitMQURL       string `env:"RABBITMQ_URL"`
		RabbitMQQueueName string `env:"RABBITMQ_QUEUE_NAME" envDefault:"photo_repair_requests" validate:"required"`
	}
	// Ремонт производных через очередь вместо пула текущего процесса
	RepairViaQueue bool `env:"REPAIR_VIA_QUEUE" envDefault:"false"`

	ServiceTokens []string `env:"SERVICE_TOKENS" envSeparator:","`
}

// Workers возвращает размер пула фоновых задач
func (c *Config) Workers() int {
	if c.WorkerConcurrency > 0 {
		return c.WorkerConcurrency
	}
	return runtime.GOMAXPROCS(0)
}

// LoadConfig загружает конфигурацию из переменных окружения.
// В режиме разработки пытается загрузить .env файл.
func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); !os.IsNotExist(err) {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("ошибка загрузки .env файла: %w", err)
		}
	}
	return Parse()
}

// Parse разбирает и проверяет конфигурацию из текущего окружения.
func Parse() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации из окружения: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет значения конфигурации; в ошибке указываются имена переменных окружения.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("env"), ",", 2)[0]
		if name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return fmt.Errorf("ошибка проверки конфигурации: %w", err)
		}
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, fmt.Sprintf("%s: failed %q", e.Field(), formatTag(e)))
		}
		return fmt.Errorf("некорректная конфигурация: %s", strings.Join(messages, "; "))
	}

	if c.RepairViaQueue && c.RabbitMQ.RabbitMQURL == "" {
		return fmt.Errorf("некорректная конфигурация: RABBITMQ_URL is required when REPAIR_VIA_QUEUE=true")
	}
	return nil
}

func formatTag(e validator.FieldError) string {
	if e.Param() == "" {
		return e.Tag()
	}
	return e.Tag() + "=" + e.Param()
}
