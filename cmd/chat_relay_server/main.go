package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat_relay_server/internal/config"
	dao "chat_relay_server/internal/dao/mysql"
	myredis "chat_relay_server/internal/dao/redis"
	"chat_relay_server/internal/handler"
	"chat_relay_server/internal/https_server"
	"chat_relay_server/internal/infrastructure/logger"
	"chat_relay_server/internal/infrastructure/mail"
	"chat_relay_server/internal/infrastructure/mq"
	"chat_relay_server/internal/infrastructure/scheduler"
	"chat_relay_server/internal/service"
	"chat_relay_server/internal/service/buffer"
	"chat_relay_server/pkg/constants"
	"chat_relay_server/pkg/util/jwt"
	"chat_relay_server/pkg/util/snowflake"
	"chat_relay_server/pkg/workerpool"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.MainConfig.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()
	zap.L().Info("日志初始化成功")

	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Fatal("参数校验翻译器初始化失败", zap.Error(err))
	}

	// 3. 初始化 JWT 和雪花 ID
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry)
	snowflake.Init(conf.SnowflakeConfig.MachineID)

	// 4. 初始化数据库
	repos, err := dao.Init(&conf.MysqlConfig)
	if err != nil {
		zap.L().Fatal("数据库初始化失败", zap.Error(err))
	}
	zap.L().Info("数据库初始化成功")

	// 5. 初始化房间消息缓冲存储
	var (
		store       buffer.Store
		redisClient *redis.Client
	)
	switch conf.ChatConfig.BufferMode {
	case "memory":
		store = buffer.NewMemoryStore()
		zap.L().Warn("消息缓冲使用进程内存储，重启会丢失未落库消息")
	default:
		redisClient, err = myredis.Init(&conf.RedisConfig)
		if err != nil {
			zap.L().Fatal("Redis 初始化失败", zap.Error(err))
		}
		store = myredis.NewRoomStore(redisClient)
		zap.L().Info("Redis 初始化成功")
	}

	// 6. 后台任务池：离开即落库、在线状态事件
	pool := workerpool.New("background", conf.ChatConfig.FlushWorkers, conf.ChatConfig.FlushQueueSize)

	deps := service.Deps{
		Repos: repos,
		Store: store,
		Tasks: pool,
		Chat:  conf.ChatConfig,
	}

	var publisher *mq.PresencePublisher
	if conf.KafkaConfig.Enabled {
		publisher = mq.NewPresencePublisher(&conf.KafkaConfig, pool)
		deps.Notifier = publisher
		zap.L().Info("在线状态事件发布到 Kafka", zap.String("topic", conf.KafkaConfig.PresenceTopic))
	}
	if conf.MailConfig.Host != "" {
		mailer, err := mail.NewSMTPMailer(&conf.MailConfig)
		if err != nil {
			zap.L().Fatal("初始化邮件发送失败", zap.Error(err))
		}
		deps.Mailer = mailer
	}

	// 7. 初始化 Service 层 (依赖注入)
	svc := service.NewServices(deps)
	zap.L().Info("Service 层初始化成功")

	// 8. 后台定时任务
	sched := scheduler.New()
	sched.Every("buffer-flush", conf.ChatConfig.FlushInterval(), svc.Buffer.FlushAll)
	sched.Every("dispatch-poll", conf.ChatConfig.DispatchPollInterval(), func(ctx context.Context) error {
		sent, err := svc.Dispatch.PollAndExecute(ctx)
		if sent > 0 {
			zap.L().Info("scheduled dispatches sent", zap.Int("count", sent))
		}
		return err
	})
	sched.Start(context.Background())

	// 9. 启动 HTTP 服务
	engine := https_server.Init(handler.NewHandlers(svc, conf.ChatConfig.AllowAnonymous), &conf.MainConfig)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler: engine,
	}
	go func() {
		zap.L().Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()

	// 设置信号监听
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("关闭服务器...")

	shutdown(srv, sched, pool, svc, publisher)

	if err := repos.Close(); err != nil {
		zap.L().Warn("close mysql failed", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			zap.L().Warn("close redis failed", zap.Error(err))
		}
	}
	zap.L().Info("服务器已关闭")
}

// shutdown 先停止接入和定时任务，再等待后台任务，最后把剩余缓冲全部落库
func shutdown(srv *http.Server, sched *scheduler.Scheduler, pool *workerpool.Pool, svc *service.Services, publisher *mq.PresencePublisher) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Warn("http shutdown", zap.Error(err))
	}

	sched.Stop()
	pool.Close()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), constants.FLUSH_TIMEOUT)
	defer flushCancel()
	if err := svc.Buffer.FlushAll(flushCtx); err != nil {
		zap.L().Error("final flush failed", zap.Error(err))
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			zap.L().Warn("close kafka writer failed", zap.Error(err))
		}
	}
	zap.L().Info("connections at shutdown", zap.Int("count", svc.Registry.ConnectionCount()))
}
