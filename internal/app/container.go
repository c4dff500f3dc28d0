package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"github.com/acme/autodialer/internal/api/handlers"
	"github.com/acme/autodialer/internal/config"
	"github.com/acme/autodialer/internal/infra/db"
	"github.com/acme/autodialer/internal/infra/redis"
	"github.com/acme/autodialer/internal/journal"
	"github.com/acme/autodialer/internal/notify"
	"github.com/acme/autodialer/internal/sequencer"
	"github.com/acme/autodialer/internal/telephony"
	"github.com/acme/autodialer/internal/telephony/bridge"
	"github.com/acme/autodialer/internal/telephony/mock"
	"github.com/acme/autodialer/pkg/logger"
)

// Worker is a background loop run for the lifetime of the process.
type Worker interface {
	Run(ctx context.Context) error
}

// Container wires together shared infrastructure dependencies. Postgres,
// Redis and Kafka are optional; the dialer runs standalone with all three
// disabled.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Redis    *redis.Client
	Kafka    *notify.Kafka

	// lazily initialised components
	components struct {
		once      sync.Once
		err       error
		sequencer *sequencer.Sequencer
		journal   *journal.PostgresStore
		publisher *notify.StatusPublisher
		workers   []Worker
	}
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	container := &Container{Config: cfg, Logger: lg}

	if cfg.Postgres.Enabled {
		pg, err := db.NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("bootstrap postgres: %w", err)
		}
		container.Postgres = pg
	}

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		container.Redis = redisClient
	}

	if cfg.Kafka.Enabled {
		kafka, err := notify.NewKafka(cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("bootstrap kafka: %w", err)
		}
		container.Kafka = kafka
	}

	return container, nil
}

func (c *Container) initComponents() error {
	c.components.once.Do(func() {
		cfg := c.Config

		var (
			initiator telephony.Initiator
			mockProv  *mock.Provider
		)
		switch cfg.CallBridge.ProviderName {
		case "", "mock":
			mockProv = mock.NewProvider(cfg.CallBridge.Mock, c.Logger.Named("mock"))
			initiator = mockProv
		case "bridge":
			prov, err := bridge.NewProvider(cfg.CallBridge)
			if err != nil {
				c.components.err = err
				return
			}
			initiator = prov
		default:
			c.components.err = fmt.Errorf("unknown call bridge provider %q", cfg.CallBridge.ProviderName)
			return
		}

		seq := sequencer.New(initiator, c.Logger)
		seq.Subscribe(notify.NewLogObserver(c.Logger))

		if c.Kafka != nil {
			publisher := notify.NewStatusPublisher(c.Kafka, cfg.Kafka.StatusTopic, c.Logger.Named("status"))
			seq.Subscribe(publisher)
			c.components.publisher = publisher
			c.components.workers = append(c.components.workers, publisher)
		}

		if c.Redis != nil {
			mirror := notify.NewSessionMirror(c.Redis.Inner(), cfg.Redis.KeyPrefix, c.Logger.Named("mirror"))
			seq.Subscribe(mirror)
			c.components.workers = append(c.components.workers, mirror)
		}

		if c.Postgres != nil {
			store := journal.NewPostgresStore(c.Postgres.DB())
			recorder := journal.NewRecorder(store, c.Logger.Named("journal"))
			seq.Subscribe(recorder)
			c.components.journal = store
			c.components.workers = append(c.components.workers, recorder)
		}

		if mockProv != nil {
			mockProv.Bind(seq)
		}

		c.components.sequencer = seq
	})
	return c.components.err
}

// Sequencer exposes the initialized dialing sequencer.
func (c *Container) Sequencer() (*sequencer.Sequencer, error) {
	if err := c.initComponents(); err != nil {
		return nil, err
	}
	return c.components.sequencer, nil
}

// Workers lists background loops to run alongside the HTTP server.
func (c *Container) Workers() ([]Worker, error) {
	if err := c.initComponents(); err != nil {
		return nil, err
	}
	return c.components.workers, nil
}

// HandlerSet builds HTTP handlers with dependencies.
func (c *Container) HandlerSet() (*handlers.HandlerSet, error) {
	if err := c.initComponents(); err != nil {
		return nil, err
	}

	var journalStore journal.Store
	if c.components.journal != nil {
		journalStore = c.components.journal
	}
	var pg *sqlx.DB
	if c.Postgres != nil {
		pg = c.Postgres.DB()
	}
	var rdb *goredis.Client
	if c.Redis != nil {
		rdb = c.Redis.Inner()
	}

	return handlers.NewHandlerSet(c.Logger, c.components.sequencer, journalStore, pg, rdb), nil
}

// EnsureInfrastructure prepares optional backends: journal schema and the
// Kafka status topic.
func (c *Container) EnsureInfrastructure(ctx context.Context) error {
	if err := c.initComponents(); err != nil {
		return err
	}

	if c.components.journal != nil {
		if err := c.components.journal.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.EnsureTopics(ctx, []string{c.Config.Kafka.StatusTopic}, 12, 1); err != nil {
			return err
		}
	}
	return nil
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.components.publisher != nil {
		if err := c.components.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("status publisher close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
