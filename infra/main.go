package infra

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dicomlite/dicomlite/config"
	"github.com/dicomlite/dicomlite/infra/fanout"
)

type Infra struct {
	Postgres *PostgresClient
	Logger   *LoggerClient
	Blob     BlobStore
	Fanout   *fanout.Manager

	// Only initialized when a configured fan-out provider or blob backend
	// needs them.
	RabbitMQ *RabbitMQClient
	Redis    *RedisClient
	Minio    *MinioClient
}

var infraInstance *Infra

func InitInfra(cfg *config.Config) *Infra {
	if infraInstance != nil {
		return infraInstance
	}

	env := cfg.EnvConfig

	logger := InitLoggerClient(env)
	if logger == nil {
		panic("Failed to initialize Logger service")
	}

	postgres := InitPostgresClient(env)
	if postgres == nil {
		panic("Failed to initialize Postgres service")
	}

	inst := &Infra{
		Postgres: postgres,
		Logger:   logger,
	}

	blob, err := initBlobStore(env, inst)
	if err != nil {
		panic("Failed to initialize blob store: " + err.Error())
	}
	inst.Blob = blob

	providers, err := initFanoutProviders(env, inst)
	if err != nil {
		panic("Failed to initialize fan-out providers: " + err.Error())
	}
	inst.Fanout = fanout.NewManager(
		env.Service.ExternalURL,
		time.Duration(env.Fanout.TimeoutMs)*time.Millisecond,
		time.Duration(env.Fanout.GraceMs)*time.Millisecond,
		logger,
		providers...,
	)

	infraInstance = inst
	return infraInstance
}

func GetClient() *Infra {
	if infraInstance == nil {
		panic("Infra not initialized. Call InitInfra() first.")
	}
	return infraInstance
}

func initBlobStore(env *config.EnvConfig, inst *Infra) (BlobStore, error) {
	switch env.Blob.Backend {
	case "s3":
		inst.Minio = InitMinioClient(env)
		return NewMinioBlobStore(context.Background(), inst.Minio, env.Minio.Bucket)
	case "filesystem", "":
		return NewFilesystemBlobStore(env.Blob.RootDir)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", env.Blob.Backend)
	}
}

// initFanoutProviders builds the immutable provider list from configuration.
// Backing clients (RabbitMQ, Redis) are dialed only when a provider asks for
// them.
func initFanoutProviders(env *config.EnvConfig, inst *Infra) ([]fanout.Provider, error) {
	var providers []fanout.Provider

	for _, name := range env.FanoutProviderList() {
		switch name {
		case "memory":
			providers = append(providers, fanout.NewMemoryProvider())
		case "file":
			provider, err := fanout.NewFileProvider(env.Fanout.FilePath)
			if err != nil {
				return nil, err
			}
			providers = append(providers, provider)
		case "webhook":
			if env.Fanout.WebhookURL == "" {
				return nil, fmt.Errorf("webhook provider configured without FANOUT_WEBHOOK_URL")
			}
			providers = append(providers, fanout.NewWebhookProvider(env.Fanout.WebhookURL, env.Fanout.WebhookMaxAttempts))
		case "queue":
			if inst.RabbitMQ == nil {
				inst.RabbitMQ = InitRabbitMQClient(env)
			}
			provider, err := fanout.NewQueueProvider(inst.RabbitMQ.Channel, env.Fanout.QueueName)
			if err != nil {
				return nil, err
			}
			providers = append(providers, provider)
		case "redis":
			if inst.Redis == nil {
				inst.Redis = InitRedisClient(env)
			}
			providers = append(providers, fanout.NewRedisStreamProvider(inst.Redis.Client, env.Fanout.RedisStream))
		default:
			return nil, fmt.Errorf("unknown fan-out provider %q", name)
		}
	}

	return providers, nil
}

// Close releases everything at shutdown, tolerating per-client failures.
func (i *Infra) Close(ctx context.Context) {
	if i.Fanout != nil {
		i.Fanout.Close()
	}
	if i.RabbitMQ != nil {
		if err := i.RabbitMQ.Close(); err != nil {
			log.Printf("Warning: failed to close RabbitMQ: %v", err)
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			log.Printf("Warning: failed to close Redis: %v", err)
		}
	}
	if i.Logger != nil {
		if err := i.Logger.Shutdown(ctx); err != nil {
			log.Printf("Warning: failed to shut down logger: %v", err)
		}
	}
}
