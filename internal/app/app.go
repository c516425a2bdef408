// Package app 负责按配置组装各个组件，server 与 ragctl 共用。
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"rag-chatbot-go/internal/config"
	"rag-chatbot-go/internal/fallback"
	"rag-chatbot-go/internal/handler"
	"rag-chatbot-go/internal/index"
	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/internal/pipeline"
	"rag-chatbot-go/internal/repository"
	"rag-chatbot-go/internal/service"
	"rag-chatbot-go/pkg/database"
	"rag-chatbot-go/pkg/embedding"
	"rag-chatbot-go/pkg/es"
	"rag-chatbot-go/pkg/kafka"
	"rag-chatbot-go/pkg/llm"
	"rag-chatbot-go/pkg/log"
	"rag-chatbot-go/pkg/storage"
	"rag-chatbot-go/pkg/tika"
	"rag-chatbot-go/pkg/token"
)

// App 持有进程内的全部组件。
type App struct {
	Config    config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	JWT       *token.JWTManager
	Index     *index.Index
	Repo      repository.DocumentRepository
	Processor *pipeline.Processor
	Retrieval service.RetrievalService
	Documents service.DocumentService
	Chat      service.ChatService

	producer *kafka.Producer
	consumer *kafka.Consumer
}

// New 按配置初始化所有依赖。MySQL 是唯一的硬依赖，其余外部服务不可用时降级运行。
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	// 1. 文档注册表
	db, err := database.OpenMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.Document{}); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}
	a.DB = db
	a.Repo = repository.NewDocumentRepository(db)

	// 2. Redis：embedding 缓存与 Kafka 重试计数
	if cfg.Database.Redis.Addr != "" {
		rdb, err := database.OpenRedis(ctx, cfg.Database.Redis)
		if err != nil {
			log.Warnf("Redis 不可用，embedding 缓存与任务重试计数已关闭: %v", err)
		} else {
			a.Redis = rdb
		}
	}

	// 3. 向量索引
	embedder := embedding.NewCachedClient(embedding.NewClient(cfg.Embedding), a.Redis, modelVersion(cfg.Embedding), cfg.Embedding.CacheTTL)
	a.Index = buildIndex(ctx, cfg, embedder)

	// 4. 检索与文档服务
	terms, err := fallback.LoadTermTable(cfg.Retrieval.TermTablePath)
	if err != nil {
		return nil, err
	}
	a.Retrieval = service.NewRetrievalService(a.Index, fallback.NewMatcher(a.Repo, terms), cfg.Retrieval.NResults)
	a.Processor = pipeline.NewProcessor(a.Repo, a.Index)

	deps := service.DocumentServiceDeps{
		Repo:         a.Repo,
		Indexer:      a.Processor,
		Index:        a.Index,
		AIConfigured: cfg.LLM.APIKey != "",
	}
	if cfg.MinIO.Endpoint != "" {
		store, err := storage.NewMinioStore(cfg.MinIO)
		if err == nil {
			err = store.EnsureBucket(ctx)
		}
		if err != nil {
			log.Warnf("MinIO 不可用，原始文件不会被保存: %v", err)
		} else {
			deps.Objects = store
		}
	}
	if cfg.Tika.ServerURL != "" {
		deps.Extractor = tika.NewClient(cfg.Tika)
	}
	if cfg.Kafka.Enabled {
		a.producer = kafka.NewProducer(cfg.Kafka)
		deps.Publisher = a.producer
		var attempts kafka.AttemptCounter
		if a.Redis != nil {
			attempts = kafka.NewRedisAttempts(a.Redis)
		}
		a.consumer = kafka.NewConsumer(cfg.Kafka, a.Processor, attempts)
	}
	a.Documents = service.NewDocumentService(deps)

	// 5. 问答
	var llmClient llm.Client
	if cfg.LLM.APIKey != "" {
		llmClient = llm.NewClient(cfg.LLM)
	} else {
		log.Warnf("未配置 LLM API Key，问答接口将返回检索摘要")
	}
	a.Chat = service.NewChatService(a.Retrieval, llmClient)

	a.JWT = token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	return a, nil
}

func buildIndex(ctx context.Context, cfg config.Config, embedder embedding.Client) *index.Index {
	opts := index.Options{
		MaxChunkSize:     cfg.Retrieval.MaxChunkSize,
		MinArabicResults: cfg.Retrieval.MinArabicResults,
		NumericBoost:     cfg.Retrieval.NumericBoost,
		Timeout:          cfg.Retrieval.VectorTimeout,
	}
	if cfg.Embedding.Provider != "hashing" && cfg.Embedding.APIKey == "" {
		log.Warnf("未配置 embedding API Key，向量索引已停用，检索将使用关键词兜底")
		return index.Disabled("embedding provider not configured")
	}

	switch cfg.Retrieval.Backend {
	case "memory":
		log.Info("向量索引使用进程内存储")
		return index.New(index.NewMemoryStore(), embedder, opts)
	case "elasticsearch", "":
		client, err := es.NewClient(cfg.Elasticsearch)
		if err != nil {
			log.Errorf("Elasticsearch 客户端初始化失败: %v", err)
			return index.Disabled(err.Error())
		}
		store := index.NewESStore(client, cfg.Elasticsearch.IndexName, modelVersion(cfg.Embedding))
		if err := store.EnsureIndex(ctx, cfg.Embedding.Dimensions); err != nil {
			log.Errorf("Elasticsearch 索引不可用，检索将使用关键词兜底: %v", err)
			return index.Disabled(err.Error())
		}
		return index.New(store, embedder, opts)
	default:
		log.Errorf("未知的向量索引后端: %s", cfg.Retrieval.Backend)
		return index.Disabled("unknown backend " + cfg.Retrieval.Backend)
	}
}

func modelVersion(cfg config.EmbeddingConfig) string {
	if cfg.Provider == "hashing" {
		return fmt.Sprintf("hashing-%d", cfg.Dimensions)
	}
	return cfg.Model
}

// Router 创建 HTTP 路由。
func (a *App) Router() *gin.Engine {
	return handler.NewRouter(handler.Handlers{
		Document: handler.NewDocumentHandler(a.Documents),
		Search:   handler.NewSearchHandler(a.Retrieval),
		Chat:     handler.NewChatHandler(a.Chat, a.JWT),
		System:   handler.NewSystemHandler(a.Documents, a.Index),
	}, a.JWT)
}

// RunConsumer 在启用 Kafka 时阻塞消费索引任务，直到 ctx 被取消。
func (a *App) RunConsumer(ctx context.Context) {
	if a.consumer == nil {
		return
	}
	a.consumer.Run(ctx)
}

// Close 释放外部连接。
func (a *App) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
