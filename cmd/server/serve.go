package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"shop-assistant-go/internal/assistant"
	"shop-assistant-go/internal/config"
	"shop-assistant-go/internal/handler"
	"shop-assistant-go/internal/middleware"
	"shop-assistant-go/internal/model"
	"shop-assistant-go/internal/pipeline"
	"shop-assistant-go/internal/repository"
	"shop-assistant-go/internal/scheduler"
	"shop-assistant-go/internal/service"
	"shop-assistant-go/pkg/database"
	"shop-assistant-go/pkg/es"
	"shop-assistant-go/pkg/kafka"
	"shop-assistant-go/pkg/llm"
	"shop-assistant-go/pkg/log"
	"shop-assistant-go/pkg/storage"
	"shop-assistant-go/pkg/token"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// services 汇总路由需要的依赖。
type services struct {
	jwtManager    *token.JWTManager
	chatService   service.ChatService
	exportService service.ExportService
	auditService  service.AuditService
}

func runServe(ctx context.Context) error {
	cfg := config.Conf

	// 1. 初始化数据库、Redis 与各类基础设施
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(ctx, cfg.Database.Redis)
	defer database.CloseRedis()
	database.InitQueryDB(ctx, cfg.Database.Query)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		return fmt.Errorf("es 初始化失败: %w", err)
	}
	kafka.InitProducer(cfg.Kafka)
	defer func() {
		if err := kafka.CloseProducer(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}()

	// 2. 读取业务库结构，生成系统提示
	schemaRepo := repository.NewSchemaRepository(database.QueryDB, cfg.Assistant.Dialect,
		model.ChatSession{}.TableName(), model.ChatMessage{}.TableName())
	schema, err := schemaRepo.Describe(ctx)
	if err != nil {
		return fmt.Errorf("读取业务库结构失败: %w", err)
	}
	log.Infof("已加载业务库结构，共 %d 张表", len(schema.Tables))
	system := assistant.BuildSystemInstruction(schema, cfg.Assistant.Dialect)

	// 3. 初始化 Repository
	chatRepo := repository.NewChatRepository(database.DB)
	stopRepo := repository.NewStopSignalRepository(database.RDB)
	queryRepo := repository.NewQueryRepository(database.QueryDB, cfg.Assistant.MaxRows, cfg.Database.Query.Timeout)

	// 4. 初始化引擎与 Service (依赖注入)
	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("初始化 LLM 客户端失败: %w", err)
	}
	engine := assistant.New(assistant.Options{
		Client:          llm.NewInstrumented(llmClient),
		ClassifierModel: cfg.LLM.ClassifierModel,
		Executor:        queryRepo,
		Store:           chatRepo,
		Audit:           kafka.AuditPublisher{},
		System:          system,
		Dialect:         cfg.Assistant.Dialect,
		MaxAttempts:     cfg.Assistant.MaxAttempts,
		Backoff:         cfg.Assistant.RetryBackoff,
	})
	defer engine.Wait()

	chatService := service.NewChatService(engine, chatRepo, stopRepo)
	svcs := services{
		jwtManager:    token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours),
		chatService:   chatService,
		exportService: service.NewExportService(chatRepo, storage.NewObjectStore(storage.MinioClient, cfg.MinIO.BucketName)),
		auditService:  service.NewAuditService(es.ESClient, cfg.Elasticsearch.AuditIndex),
	}

	// 5. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: newRouter(svcs),
	}

	// 6. HTTP 服务、审计消费者与定时清理共享同一个生命周期
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务监听失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("接收到停机信号，正在关闭服务...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		indexer := pipeline.NewAuditIndexer(es.ESClient, cfg.Elasticsearch.AuditIndex)
		return kafka.StartConsumer(gctx, cfg.Kafka, indexer, kafka.NewRedisAttemptCounter(database.RDB))
	})
	g.Go(func() error {
		return scheduler.NewRetention(chatService, cfg.Retention).Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("服务已优雅关闭")
	return nil
}

// newRouter 注册全部路由。
func newRouter(s services) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), middleware.Metrics(), gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	chatHandler := handler.NewChatHandler(s.chatService, s.jwtManager)
	sessionHandler := handler.NewSessionHandler(s.chatService, s.exportService)
	auditHandler := handler.NewAuditHandler(s.auditService)

	// WebSocket 在路径中携带 token，自行校验
	r.GET("/chat/:token", chatHandler.Handle)

	apiV1 := r.Group("/api/v1")
	apiV1.Use(middleware.AuthMiddleware(s.jwtManager))
	{
		chat := apiV1.Group("/chat")
		{
			chat.GET("/stream", chatHandler.Stream)

			sessions := chat.Group("/sessions")
			{
				sessions.GET("", sessionHandler.ListSessions)
				sessions.GET("/:id", sessionHandler.GetSession)
				sessions.GET("/:id/messages", sessionHandler.GetMessages)
				sessions.DELETE("/:id", sessionHandler.DeleteSession)
				sessions.POST("/:id/export", sessionHandler.ExportSession)
				sessions.POST("/:id/stop", sessionHandler.StopSession)
			}
		}

		// 审计检索仅对管理员开放
		audit := apiV1.Group("/audit")
		audit.Use(middleware.AdminAuthMiddleware())
		{
			audit.GET("/queries", auditHandler.SearchQueries)
		}
	}
	return r
}
