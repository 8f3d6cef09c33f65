package config

import (
	"os"
	"strconv"
	"strings"
)

type EnvConfig struct {
	Server struct {
		Port string
	}
	Postgres struct {
		Host     string
		Database string
		Username string
		Password string
		Port     string
	}
	Redis struct {
		Host     string
		Port     string
		Password string
		Database int
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
	}
	Minio struct {
		Endpoint     string
		RootUser     string
		RootPassword string
		Bucket       string
		UseSSL       bool
	}
	Blob struct {
		Backend string // "filesystem" or "s3"
		RootDir string
	}
	Sweeper struct {
		IntervalMs int64
	}
	Fanout struct {
		Providers          string // comma separated: memory,file,webhook,queue,redis
		FilePath           string
		WebhookURL         string
		WebhookMaxAttempts int
		QueueName          string
		RedisStream        string
		TimeoutMs          int64
		GraceMs            int64
	}
	JWT struct {
		Enabled   bool
		SecretKey string
	}
	CORS struct {
		AllowDomains string
		GlobalDomain string
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}
	Service struct {
		ExternalURL string
	}
	Environment struct {
		Mode string
	}
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	config.Server.Port = os.Getenv("SERVER_PORT")
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}

	// Postgres
	config.Postgres.Host = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = os.Getenv("PGPOOL_PORT")
	if config.Postgres.Port == "" {
		config.Postgres.Port = "5432"
	}

	// Redis
	config.Redis.Host = os.Getenv("REDIS_HOST")
	config.Redis.Port = os.Getenv("REDIS_PORT")
	if config.Redis.Port == "" {
		config.Redis.Port = "6379"
	}
	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))

	// RabbitMQ
	config.RabbitMQ.Host = os.Getenv("RABBITMQ_HOST")
	if config.RabbitMQ.Host == "" {
		config.RabbitMQ.Host = "localhost"
	}
	config.RabbitMQ.Port = os.Getenv("RABBITMQ_PORT")
	if config.RabbitMQ.Port == "" {
		config.RabbitMQ.Port = "5672"
	}
	config.RabbitMQ.Username = os.Getenv("RABBITMQ_USER")
	if config.RabbitMQ.Username == "" {
		config.RabbitMQ.Username = "guest"
	}
	config.RabbitMQ.Password = os.Getenv("RABBITMQ_PASSWORD")
	if config.RabbitMQ.Password == "" {
		config.RabbitMQ.Password = "guest"
	}

	// MinIO (only used when BLOB_BACKEND=s3)
	config.Minio.Endpoint = os.Getenv("MINIO_ENDPOINT")
	config.Minio.RootUser = os.Getenv("MINIO_ROOT_USER")
	config.Minio.RootPassword = os.Getenv("MINIO_ROOT_PASSWORD")
	config.Minio.Bucket = os.Getenv("MINIO_BUCKET")
	if config.Minio.Bucket == "" {
		config.Minio.Bucket = "dicom-blobs"
	}
	config.Minio.UseSSL = parseBool(os.Getenv("MINIO_USE_SSL"))

	// Blob store
	config.Blob.Backend = os.Getenv("BLOB_BACKEND")
	if config.Blob.Backend == "" {
		config.Blob.Backend = "filesystem"
	}
	config.Blob.RootDir = os.Getenv("BLOB_ROOT_DIR")
	if config.Blob.RootDir == "" {
		config.Blob.RootDir = "./data/blobs"
	}

	// Expiry sweeper
	if val := os.Getenv("SWEEPER_INTERVAL_MS"); val != "" {
		if interval, err := strconv.ParseInt(val, 10, 64); err == nil && interval > 0 {
			config.Sweeper.IntervalMs = interval
		}
	}
	if config.Sweeper.IntervalMs == 0 {
		config.Sweeper.IntervalMs = 3600000 // hourly by default
	}

	// Event fan-out
	config.Fanout.Providers = os.Getenv("FANOUT_PROVIDERS")
	config.Fanout.FilePath = os.Getenv("FANOUT_FILE_PATH")
	if config.Fanout.FilePath == "" {
		config.Fanout.FilePath = "./data/events.ndjson"
	}
	config.Fanout.WebhookURL = os.Getenv("FANOUT_WEBHOOK_URL")
	if val := os.Getenv("FANOUT_WEBHOOK_MAX_ATTEMPTS"); val != "" {
		config.Fanout.WebhookMaxAttempts, _ = strconv.Atoi(val)
	}
	if config.Fanout.WebhookMaxAttempts <= 0 {
		config.Fanout.WebhookMaxAttempts = 3
	}
	config.Fanout.QueueName = os.Getenv("FANOUT_QUEUE_NAME")
	if config.Fanout.QueueName == "" {
		config.Fanout.QueueName = "dicom.events"
	}
	config.Fanout.RedisStream = os.Getenv("FANOUT_REDIS_STREAM")
	if config.Fanout.RedisStream == "" {
		config.Fanout.RedisStream = "dicom:events"
	}
	if val := os.Getenv("FANOUT_TIMEOUT_MS"); val != "" {
		config.Fanout.TimeoutMs, _ = strconv.ParseInt(val, 10, 64)
	}
	if config.Fanout.TimeoutMs == 0 {
		config.Fanout.TimeoutMs = 5000
	}
	if val := os.Getenv("FANOUT_GRACE_MS"); val != "" {
		config.Fanout.GraceMs, _ = strconv.ParseInt(val, 10, 64)
	}
	if config.Fanout.GraceMs == 0 {
		config.Fanout.GraceMs = config.Fanout.TimeoutMs + 2000
	}

	// JWT
	config.JWT.Enabled = parseBool(os.Getenv("AUTH_ENABLED"))
	config.JWT.SecretKey = os.Getenv("JWT_SECRET_KEY")

	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")
	config.CORS.GlobalDomain = os.Getenv("GLOBAL_DOMAIN")

	// Grafana/OpenTelemetry
	config.Grafana.OTLPEndpoint = os.Getenv("GRAFANA_OTLP_ENDPOINT")
	config.Grafana.ServiceName = os.Getenv("OTLP_SERVICE_NAME")
	if config.Grafana.ServiceName == "" {
		config.Grafana.ServiceName = "dicomlite"
	}

	// Self-reported address embedded in notification sources and retrieve URLs
	config.Service.ExternalURL = os.Getenv("SERVICE_EXTERNAL_URL")
	if config.Service.ExternalURL == "" {
		config.Service.ExternalURL = "http://localhost:" + config.Server.Port
	}
	config.Service.ExternalURL = strings.TrimRight(config.Service.ExternalURL, "/")

	config.Environment.Mode = os.Getenv("ENVIRONMENT_MODE")
	if config.Environment.Mode == "" {
		config.Environment.Mode = "development"
	}

	return &config
}

func parseBool(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// FanoutProviderList splits the configured provider names, dropping blanks.
func (c *EnvConfig) FanoutProviderList() []string {
	var providers []string
	for _, name := range strings.Split(c.Fanout.Providers, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			providers = append(providers, name)
		}
	}
	return providers
}
