package wire

import (
	"Agora/internal/api"
	"Agora/internal/api/config"
	"Agora/internal/api/handler"
	"Agora/internal/bootstrap"
	"Agora/internal/job"
	"Agora/internal/pkg/cron"
	"Agora/internal/pkg/kafka"
	"Agora/internal/pkg/redis"
	"Agora/internal/repository"
	"Agora/internal/service"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router     *gin.Engine
	DB         *gorm.DB
	Loader     *bootstrap.Loader
	CronMgr    *cron.Manager
	MessageSvc service.MessageService
	// KafkaManager 未启用 kafka 时为 nil
	KafkaManager *kafka.ConsumerManager
}

func BuildApplication(db *gorm.DB, rdb goredis.UniversalClient, cfg *config.Config) (*ApplicationContainer, error) {
	opTimeout := time.Duration(cfg.Redis.OpTimeout) * time.Millisecond
	counters := redis.NewCounterCache(rdb, opTimeout)
	ranking := redis.NewRankingIndex(rdb, opTimeout)

	postRepo := repository.NewPostRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	viewSyncJob := job.NewViewSyncJob(counters, postRepo, cfg.Reconcile.BatchSize)
	unreadSyncJob := job.NewUnreadSyncJob(counters, messageRepo, cfg.Reconcile.BatchSize)
	epochResetJob, err := job.NewEpochResetJob(ranking, cfg.Ranking)
	if err != nil {
		return nil, err
	}
	loader := bootstrap.NewLoader(counters, ranking, postRepo, messageRepo, cfg.Ranking.Epoch, cfg.Bootstrap.BatchSize)

	viewCounter := service.NewViewCounterService(counters, ranking, postRepo, cfg.Ranking.Epoch)
	postService := service.NewPostService(postRepo, viewCounter)
	rankingService := service.NewRankingService(ranking, postRepo, viewCounter, viewSyncJob, loader, cfg.Ranking)
	messageService := service.NewMessageService(messageRepo, counters, service.NewUnreadWriter(counters, cfg.Unread))

	handlers := &api.HandlersGroup{
		PostHandler:    handler.NewPostHandler(postService),
		RankingHandler: handler.NewRankingHandler(rankingService),
		MessageHandler: handler.NewMessageHandler(messageService),
	}
	router := api.SetupRouter(cfg, handlers)

	loc, err := job.LoadLocation(cfg.Ranking.Timezone)
	if err != nil {
		return nil, err
	}
	cronMgr := cron.NewCronManager(loc)
	cronMgr.Add("ranking_epoch_reset", epochResetJob.Spec(), epochResetJob)
	if cfg.Reconcile.Enable {
		cronMgr.Add("view_sync", cfg.Reconcile.ViewSyncSpec, viewSyncJob)
		cronMgr.Add("unread_sync", cfg.Reconcile.UnreadSyncSpec, unreadSyncJob)
	}

	var kafkaMgr *kafka.ConsumerManager
	if cfg.Kafka.Enable {
		kafkaMgr, err = kafka.NewConsumerManager(cfg, kafka.NewPostSeedHandler(counters, ranking, cfg.Ranking.Epoch))
		if err != nil {
			return nil, err
		}
	}

	return &ApplicationContainer{
		Router:       router,
		DB:           db,
		Loader:       loader,
		CronMgr:      cronMgr,
		MessageSvc:   messageService,
		KafkaManager: kafkaMgr,
	}, nil
}
