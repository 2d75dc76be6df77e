package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andreyxaxa/Reschedule-Engine/config"
	kafkactrl "github.com/andreyxaxa/Reschedule-Engine/internal/controller/kafka"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/middleware"
	v1 "github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/worker/lease"
	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/worker/maintenance"
	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/internal/infrastructure"
	infraamqp "github.com/andreyxaxa/Reschedule-Engine/internal/infrastructure/amqp"
	infrakafka "github.com/andreyxaxa/Reschedule-Engine/internal/infrastructure/kafka"
	"github.com/andreyxaxa/Reschedule-Engine/internal/infrastructure/logsender"
	"github.com/andreyxaxa/Reschedule-Engine/internal/infrastructure/schema"
	"github.com/andreyxaxa/Reschedule-Engine/internal/infrastructure/token"
	"github.com/andreyxaxa/Reschedule-Engine/internal/repo"
	"github.com/andreyxaxa/Reschedule-Engine/internal/repo/cache"
	"github.com/andreyxaxa/Reschedule-Engine/internal/repo/inmemory"
	"github.com/andreyxaxa/Reschedule-Engine/internal/repo/persistent"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/archive"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/dispatch"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/eventlog"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/idempotency"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/ingest"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/outbox"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/proposal"
	"github.com/andreyxaxa/Reschedule-Engine/internal/usecase/tombstone"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/httpserver"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/kafka/consumer"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/kafka/producer"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/logger"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/postgres"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/rabbitmq"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/redisclient"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/s3client"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/tracing"
)

type repositories struct {
	transactor    repo.Transactor
	idempotency   repo.IdempotencyRepo
	events        repo.EventRepo
	calendar      repo.CalendarEventRepo
	tasks         repo.TaskRepo
	accounts      repo.AccountRepo
	proposals     repo.ProposalRepo
	approvals     repo.ApprovalRepo
	tombstones    repo.TombstoneRepo
	notifications repo.NotificationRepo
}

func memoryRepositories() repositories {
	s := inmemory.New()

	return repositories{
		transactor:    s,
		idempotency:   s.Idempotency(),
		events:        s.Events(),
		calendar:      s.CalendarEvents(),
		tasks:         s.Tasks(),
		accounts:      s.Accounts(),
		proposals:     s.Proposals(),
		approvals:     s.Approvals(),
		tombstones:    s.Tombstones(),
		notifications: s.Notifications(),
	}
}

func postgresRepositories(pg *postgres.Postgres) repositories {
	return repositories{
		transactor:    pg,
		idempotency:   persistent.NewIdempotencyRepo(pg),
		events:        persistent.NewEventRepo(pg),
		calendar:      persistent.NewCalendarEventRepo(pg),
		tasks:         persistent.NewTaskRepo(pg),
		accounts:      persistent.NewAccountRepo(pg),
		proposals:     persistent.NewProposalRepo(pg),
		approvals:     persistent.NewApprovalRepo(pg),
		tombstones:    persistent.NewTombstoneRepo(pg),
		notifications: persistent.NewNotificationRepo(pg),
	}
}

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)

	// Tracing
	endpoint := ""
	if cfg.Tracing.Enabled {
		endpoint = cfg.Tracing.Endpoint
	}
	tp, err := tracing.New(ctx, endpoint,
		tracing.ServiceName(cfg.App.Name),
		tracing.Environment(cfg.App.Environment),
		tracing.Insecure(cfg.Tracing.Insecure),
		tracing.SampleRatio(cfg.Tracing.SampleRatio),
	)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - tracing.New: %w", err))
	}

	// Repository
	var repos repositories
	switch cfg.Store.Backend {
	case config.StoreMemory:
		repos = memoryRepositories()
		l.Warn("app - Run - using in-memory store, state is lost on restart")
	default:
		pg, err := postgres.New(cfg.PG.URL, postgres.MaxPoolSize(cfg.PG.PoolMax))
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
		}
		defer pg.Close()

		repos = postgresRepositories(pg)
	}

	// redis
	if cfg.Redis.Enabled {
		rc, err := redisclient.New(ctx, cfg.Redis.Addr,
			redisclient.Password(cfg.Redis.Password),
			redisclient.DB(cfg.Redis.DB),
		)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - redisclient.New: %w", err))
		}
		defer rc.Close()

		repos.idempotency = cache.NewIdempotencyRepo(rc)
	}

	// s3
	var archiveRepo repo.ArchiveRepo
	if cfg.S3.Enabled {
		s3Ctx, s3Cancel := context.WithTimeout(ctx, cfg.S3.CfgLoadTimeout)
		s3c, err := s3client.New(s3Ctx, cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey,
			s3client.Region(cfg.S3.Region),
			s3client.UsePathStyle(cfg.S3.PathStyle),
			s3client.Bucket(cfg.S3.Bucket),
		)
		s3Cancel()
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - s3client.New: %w", err))
		}

		archiveRepo = persistent.NewArchiveRepo(s3c, cfg.S3.Bucket)
	}

	// Infrastructure
	validator, err := schema.New()
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - schema.New: %w", err))
	}
	signer := token.NewApprovalSigner(cfg.Auth.ApprovalSecret)
	identity := token.NewIdentityVerifier(cfg.Auth.JWTSecret)

	var sender infrastructure.NotificationSender
	switch cfg.Notify.Transport {
	case config.NotifyKafka:
		p, err := producer.New(ctx, cfg.Kafka.Brokers, producer.BatchTimeout(cfg.Kafka.BatchTimeout))
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
		}
		sender = infrakafka.NewNotificationProducer(p, cfg.Kafka.NotificationTopic)
	case config.NotifyAMQP:
		p, err := rabbitmq.New(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - rabbitmq.New: %w", err))
		}
		sender = infraamqp.NewNotificationPublisher(p)
	default:
		sender = logsender.New(l)
	}

	// Use-Case
	ledgerUseCase := idempotency.New(repos.idempotency, l)
	eventLogUseCase := eventlog.New(repos.events, ledgerUseCase, validator, l)
	outboxUseCase := outbox.New(repos.notifications, token.NewMinter(signer), l)
	tombstoneUseCase := tombstone.New(
		repos.tombstones,
		tombstone.Stores{
			Events:    repos.calendar,
			Tasks:     repos.tasks,
			Proposals: repos.proposals,
			Accounts:  repos.accounts,
		},
		eventLogUseCase,
		repos.transactor,
		l,
	)
	proposalUseCase := proposal.New(
		repos.proposals,
		repos.approvals,
		repos.calendar,
		eventLogUseCase,
		outboxUseCase,
		ledgerUseCase,
		signer,
		repos.transactor,
		cfg.Auth.ApprovalTokenTTL,
		cfg.Maintenance.ExpireBatch,
		l,
	)
	dispatchUseCase := dispatch.New(repos.events, proposalUseCase, repos.transactor, l)
	ingestUseCase := ingest.New(
		eventLogUseCase,
		tombstoneUseCase,
		ledgerUseCase,
		validator,
		repos.calendar,
		repos.tasks,
		repos.accounts,
		repos.transactor,
		l,
	)

	useCases := v1.UseCases{
		Ingest:     ingestUseCase,
		Events:     eventLogUseCase,
		Dispatch:   dispatchUseCase,
		Outbox:     outboxUseCase,
		Proposals:  proposalUseCase,
		Tombstones: tombstoneUseCase,
		Ledger:     ledgerUseCase,
	}
	if archiveRepo != nil {
		useCases.Archive = archive.New(repos.events, archiveRepo, l)
	}

	// Notification Relay Worker
	var notificationRelay *lease.NotificationRelay
	if cfg.OutboxRelay.Enabled {
		notificationRelay = lease.NewNotificationRelay(
			outboxUseCase,
			sender,
			l,
			cfg.OutboxRelay.PollInterval,
			cfg.OutboxRelay.ProcessBatchTimeout,
			cfg.OutboxRelay.BatchSize,
			cfg.OutboxRelay.Concurrency,
		)
	}

	// Dispatch Relay Worker
	var dispatchRelay *lease.DispatchRelay
	if cfg.Dispatch.Enabled {
		var dispatcher infrastructure.EventDispatcher = logsender.New(l)
		if len(cfg.Kafka.Brokers) > 0 {
			p, err := producer.New(ctx, cfg.Kafka.Brokers, producer.BatchTimeout(cfg.Kafka.BatchTimeout))
			if err != nil {
				l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
			}
			dispatcher = infrakafka.NewDispatchProducer(p, cfg.Kafka.DispatchTopic)
		}

		types := make([]entity.EventType, 0, len(cfg.Dispatch.Types))
		for _, t := range cfg.Dispatch.Types {
			types = append(types, entity.EventType(t))
		}

		dispatchRelay = lease.NewDispatchRelay(
			dispatchUseCase,
			dispatcher,
			l,
			types,
			cfg.Dispatch.PollInterval,
			cfg.Dispatch.ProcessBatchTimeout,
			cfg.Dispatch.BatchSize,
		)
	}

	// Maintenance Worker
	maintenanceWorker := maintenance.New(
		dispatchUseCase,
		outboxUseCase,
		proposalUseCase,
		ledgerUseCase,
		l,
		maintenance.Intervals{
			ResetStuck:    cfg.Maintenance.ResetStuckInterval,
			ExpireStale:   cfg.Maintenance.ExpireInterval,
			SweepLedger:   cfg.Maintenance.SweepInterval,
			CleanupOutbox: cfg.Maintenance.CleanupInterval,
		},
		cfg.Maintenance.StuckThreshold,
		cfg.Maintenance.OutboxRetention,
	)

	// Kafka as Controller
	var kafkaController *kafkactrl.KafkaController
	if cfg.KafkaController.Enabled {
		kafkaConsumer, err := consumer.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.IngestTopic, consumer.MaxWait(cfg.Kafka.MaxWait))
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - consumer.New: %w", err))
		}

		kafkaController = kafkactrl.New(
			ingestUseCase,
			infrakafka.NewConnectorConsumer(kafkaConsumer),
			l,
			cfg.KafkaController.CommitTimeout,
			cfg.KafkaController.ProcessTimeout,
			cfg.KafkaController.Workers,
		)
	}

	// HTTP Server
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.Cleanup(ctx, cfg.RateLimit.CleanupInterval)

	httpServer := httpserver.New(l,
		httpserver.Port(cfg.HTTP.Port),
		httpserver.Prefork(cfg.HTTP.UsePreforkMode),
		httpserver.ReadTimeout(cfg.HTTP.ReadTimeout),
		httpserver.WriteTimeout(cfg.HTTP.WriteTimeout),
		httpserver.ShutdownTimeout(cfg.HTTP.ShutdownTimeout),
	)
	restapi.NewRouter(httpServer.App, cfg, useCases, identity, limiter, l)

	// Start Components
	if notificationRelay != nil {
		err = notificationRelay.Start(ctx)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - notificationRelay.Start: %w", err))
		}
	}
	if dispatchRelay != nil {
		err = dispatchRelay.Start(ctx)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - dispatchRelay.Start: %w", err))
		}
	}
	err = maintenanceWorker.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - maintenanceWorker.Start: %w", err))
	}
	if kafkaController != nil {
		err = kafkaController.Start(ctx)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - kafkaController.Start: %w", err))
		}
	}
	httpServer.Start()

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err = <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	}

	// Shutdown
	err = httpServer.Shutdown()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	if kafkaController != nil {
		kcShutdownCtx, kcShutdownCancel := context.WithTimeout(ctx, cfg.KafkaController.ShutdownTimeout)
		defer kcShutdownCancel()
		err = kafkaController.Shutdown(kcShutdownCtx)
		if err != nil {
			l.Error(fmt.Errorf("app - Run - kafkaController.Shutdown: %w", err))
		}
	}

	if dispatchRelay != nil {
		drShutdownCtx, drShutdownCancel := context.WithTimeout(ctx, cfg.Dispatch.ShutdownTimeout)
		defer drShutdownCancel()
		err = dispatchRelay.Shutdown(drShutdownCtx)
		if err != nil {
			l.Error(fmt.Errorf("app - Run - dispatchRelay.Shutdown: %w", err))
		}
	}

	if notificationRelay != nil {
		nrShutdownCtx, nrShutdownCancel := context.WithTimeout(ctx, cfg.OutboxRelay.ShutdownTimeout)
		defer nrShutdownCancel()
		err = notificationRelay.Shutdown(nrShutdownCtx)
		if err != nil {
			l.Error(fmt.Errorf("app - Run - notificationRelay.Shutdown: %w", err))
		}
	} else {
		err = sender.Close()
		if err != nil {
			l.Error(fmt.Errorf("app - Run - sender.Close: %w", err))
		}
	}

	mwShutdownCtx, mwShutdownCancel := context.WithTimeout(ctx, cfg.Maintenance.ShutdownTimeout)
	defer mwShutdownCancel()
	err = maintenanceWorker.Shutdown(mwShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - maintenanceWorker.Shutdown: %w", err))
	}

	tpShutdownCtx, tpShutdownCancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
	defer tpShutdownCancel()
	err = tp.Shutdown(tpShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - tp.Shutdown: %w", err))
	}
}
