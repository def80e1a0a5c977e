package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"zeus-insurance/internal/agent"
	"zeus-insurance/internal/agent/tool"
	"zeus-insurance/internal/ai"
	"zeus-insurance/internal/app"
	"zeus-insurance/internal/cache"
	"zeus-insurance/internal/config"
	"zeus-insurance/internal/model"
	mysqlClient "zeus-insurance/internal/platform/mysql"
	postgresClient "zeus-insurance/internal/platform/postgres"
	rabbitmqClient "zeus-insurance/internal/platform/rabbitmq"
	redisClient "zeus-insurance/internal/platform/redis"
	"zeus-insurance/internal/repository"
	"zeus-insurance/internal/worker"
)

const (
	backendGemini = "gemini"
	backendOpenAI = "openai"
)

// App owns every long-lived resource of the process.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	DB         *gorm.DB
	Redis      *redis.Client
	MQConn     *amqp.Connection
	TurnWorker *worker.TurnPersistWorker

	Models     *ai.Registry
	Embedder   ai.Embedder
	Search     *app.SearchService
	Policies   *app.PolicyService
	Quotations *app.QuotationService
	Orders     *app.OrderService
	Chat       *app.ChatService
	Auth       *app.AuthService
	Ingestion  *app.IngestionService

	StartedAt time.Time
}

// New builds the HTTP service: storage, optional cache and broker, model
// backends, services and the agent.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a, err := newCore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.wireServing(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// NewIngestion builds only what the embedding sweep and policy import need.
func NewIngestion(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	return newCore(ctx, cfg, logger)
}

func newCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	if err := Migrate(ctx, db); err != nil {
		_ = a.Close()
		return nil, err
	}

	embedder, err := newEmbedder(ctx, cfg.Embedding)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Embedder = embedder

	a.Ingestion = app.NewIngestionService(repository.NewPolicyRepository(db), embedder, app.IngestConfig{
		BatchSize:   cfg.Ingest.BatchSize,
		BatchPause:  cfg.Ingest.BatchPause.Duration,
		MaxAttempts: cfg.Ingest.MaxAttempts,
		BackoffStep: cfg.Ingest.BackoffStep.Duration,
	})
	return a, nil
}

func (a *App) wireServing(ctx context.Context) error {
	cfg := a.Config
	db := a.DB

	sessionRepo := repository.NewSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	quotationRepo := repository.NewQuotationRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)

	var historyCache app.HistoryCache
	var invalidator worker.HistoryInvalidator
	if cfg.Redis.Enabled {
		client, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		a.Redis = client
		hc := cache.NewHistoryCache(
			client,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
		historyCache = hc
		invalidator = hc
	}

	var publisher app.TurnPublisher
	if cfg.RabbitMQ.Enabled {
		conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		a.MQConn = conn
		a.TurnWorker = worker.NewTurnPersistWorker(conn, messageRepo, invalidator, cfg.RabbitMQ.TurnPersistQueue)
		if err := a.TurnWorker.Start(ctx); err != nil {
			return fmt.Errorf("start turn worker failed: %w", err)
		}
		publisher = rabbitmqClient.NewTurnPublisher(conn, cfg.RabbitMQ.TurnPersistQueue)
		if historyCache == nil {
			a.Logger.Warn("turn queue needs the redis history cache, writing turns directly")
		}
	}

	a.Models = NewModelRegistry(cfg.LLM)

	a.Search = app.NewSearchService(catalogRepo)
	a.Policies = app.NewPolicyService(a.Embedder, app.NewPolicyIndex(db.Dialector.Name(), policyRepo))
	a.Quotations = app.NewQuotationService(catalogRepo, quotationRepo)
	a.Orders = app.NewOrderService(quotationRepo, orderRepo)

	tools := tool.New(tool.Deps{
		Vehicles:   a.Search,
		Policies:   a.Policies,
		Quotations: a.Quotations,
		Orders:     a.Orders,
	})
	runner := agent.New(tools, agent.Config{
		MaxRounds:   cfg.LLM.MaxRounds,
		Temperature: cfg.LLM.Temperature,
	})
	a.Chat = app.NewChatService(sessionRepo, messageRepo, publisher, historyCache, a.Models, runner, app.ChatConfig{
		DefaultModel:    cfg.LLM.DefaultModel,
		HistoryLimit:    cfg.LLM.HistoryLimit,
		PendingTurnWait: time.Duration(cfg.Redis.HistoryDirtyTTLSeconds) * time.Second,
	})

	a.Auth = app.NewAuthService(
		operatorRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	if err := a.Auth.EnsureOperator(ctx, cfg.Auth.OperatorUsername, cfg.Auth.OperatorPasswordHash); err != nil {
		return fmt.Errorf("seed operator failed: %w", err)
	}
	return nil
}

// NewModelRegistry registers both chat backends; llm.routes decides which
// model name goes where.
func NewModelRegistry(cfg config.LLMConfig) *ai.Registry {
	registry := ai.NewRegistry(cfg.Routes)
	registry.Register(backendGemini, ai.NewGeminiFactory(ai.GeminiConfig{APIKey: cfg.GeminiAPIKey}))
	registry.Register(backendOpenAI, ai.NewOpenAICompatibleClient(ai.ChatConfig{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
	}).Factory())
	return registry
}

func newEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (ai.Embedder, error) {
	ecfg := ai.EmbeddingConfig{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
	}
	switch cfg.Provider {
	case config.EmbeddingProviderOpenAI:
		return ai.NewOpenAIEmbedder(ecfg)
	default:
		return ai.NewGeminiEmbedder(ctx, ecfg)
	}
}

func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: newGormLogger(logger)}
	switch cfg.Database.Driver {
	case config.DriverMySQL:
		return mysqlClient.New(ctx, cfg.MySQLDSN(), gormCfg)
	default:
		return postgresClient.New(ctx, cfg.PostgresDSN(), gormCfg)
	}
}

// Migrate creates or updates every table. On postgres it also installs the
// match_documents similarity function.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&model.ChatSession{},
		&model.Message{},
		&model.CarModel{},
		&model.InsurancePlan{},
		&model.PolicyDocument{},
		&model.Quotation{},
		&model.Order{},
		&model.Operator{},
	); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	if db.Dialector.Name() == config.DriverPostgres {
		return postgresClient.EnsureMatchDocuments(ctx, db, model.EmbeddingDimensions)
	}
	return nil
}

// Ping reports the state of each configured dependency.
func (a *App) Ping(ctx context.Context) map[string]error {
	out := make(map[string]error, 3)
	if sqlDB, err := a.DB.DB(); err != nil {
		out["database"] = err
	} else {
		out["database"] = sqlDB.PingContext(ctx)
	}
	if a.Redis != nil {
		out["redis"] = redisClient.Ping(ctx, a.Redis)
	}
	if a.MQConn != nil {
		out["rabbitmq"] = rabbitmqClient.Ping(ctx, a.MQConn)
	}
	return out
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.TurnWorker != nil {
		a.TurnWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
