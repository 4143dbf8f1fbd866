package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-sla/internal/api/http"
	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-sla/internal/assignment"
	"github.com/spec-kit/helpdesk-sla/internal/auth"
	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/persistence"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/scheduler"
	"github.com/spec-kit/helpdesk-sla/internal/service"
	"github.com/spec-kit/helpdesk-sla/internal/worker"
)

const (
	runHistoryTTL     = 7 * 24 * time.Hour
	shutdownTimeout   = 30 * time.Second
	notificationQueue = 512
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	loc := cfg.Calendar.Location()

	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	technicianRepo := repository.NewTechnicianRepository(pool)
	groupRepo := repository.NewSupportGroupRepository(pool)
	backupRepo := repository.NewBackupRepository(pool)
	approvalRepo := repository.NewApprovalRepository(pool)
	slaRepo := repository.NewSLARepository(pool)
	hoursRepo := repository.NewOperationalHoursRepository(pool)
	calendars := repository.NewCachedCalendarSource(hoursRepo, redis.Cmdable(), cfg.Calendar.CacheTTL(), loc, logger)

	strategy, err := assignment.ParseStrategy(cfg.Assignment.DefaultStrategy)
	if err != nil {
		logger.Warn("invalid default assignment strategy, using least_load",
			zap.String("strategy", cfg.Assignment.DefaultStrategy), zap.Error(err))
		strategy = assignment.LeastLoad
	}
	balancer := assignment.NewBalancer(technicianRepo, groupRepo, backupRepo, assignment.Options{
		GlobalStrategy: strategy,
		Logger:         logger,
	})

	metrics := observability.NewMetrics(cfg.App.Name)
	dispatcher := events.NewInMemoryDispatcher()
	notifier := notify.NewLogNotifier(cfg.Notification.EmailFrom, logger)

	slaService := service.NewSLAService(service.SLADependencies{
		TicketRepo:  ticketRepo,
		HistoryRepo: historyRepo,
		Configs:     slaRepo,
		Calendars:   calendars,
		Location:    loc,
		Logger:      logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  ticketRepo,
		HistoryRepo: historyRepo,
		Balancer:    balancer,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	notificationService := service.NewNotificationService(dispatcher, notifier, logger, cfg.Notification)
	notifications := worker.NewNotificationWorker(notificationService.Handle, logger, notificationQueue)
	notifications.Subscribe(dispatcher, notificationService.EventTypes()...)
	workerCtx, stopWorker := context.WithCancel(ctx)
	go notifications.Run(workerCtx)

	var runs scheduler.RunStore
	if client := redis.Cmdable(); client != nil {
		runs = scheduler.NewRedisRunStore(client, runHistoryTTL)
	}

	manager := buildSchedulers(cfg, logger, metrics, runs, schedulerDeps{
		tickets:    ticketRepo,
		history:    historyRepo,
		users:      userRepo,
		configs:    slaRepo,
		calendars:  calendars,
		approvals:  approvalRepo,
		backups:    backupRepo,
		notifier:   notifier,
		dispatcher: dispatcher,
	})
	var redisPinger handlers.Pinger
	manager.AddHealthCheck("postgres", pg.Ping)
	if redis.Enabled() {
		redisPinger = redis
		manager.AddHealthCheck("redis", redis.Ping)
	}
	manager.Start()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisPinger, manager),
		Schedulers:     handlers.NewSchedulerHandler(manager),
		Tickets:        handlers.NewTicketsHandler(assignmentService, slaService, ticketRepo, historyRepo),
		AuthMiddleware: auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret, 0, auth.WithIssuer(cfg.Auth.Issuer)), userRepo),
		Metrics:        metrics.Handler(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http server did not stop cleanly", zap.Error(err))
	}
	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Warn("schedulers did not stop cleanly", zap.Error(err))
	}
	stopWorker()
	select {
	case <-notifications.Done():
	case <-shutdownCtx.Done():
		logger.Warn("notification worker did not drain before shutdown deadline")
	}
}

type schedulerDeps struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	users      repository.UserRepository
	configs    repository.SLARepository
	calendars  scheduler.CalendarSource
	approvals  repository.ApprovalRepository
	backups    repository.BackupRepository
	notifier   notify.Notifier
	dispatcher events.Dispatcher
}

func buildSchedulers(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics, store scheduler.RunStore, deps schedulerDeps) *scheduler.Manager {
	sc := cfg.Scheduler
	loc := cfg.Calendar.Location()
	notifyTimeout := cfg.Notification.Timeout()
	dashboard := cfg.Notification.DashboardURL

	monitor := scheduler.NewSLAMonitor(scheduler.SLAMonitorDeps{
		Tickets:    deps.tickets,
		History:    deps.history,
		Configs:    deps.configs,
		Calendars:  deps.calendars,
		Directory:  deps.users,
		Notifier:   deps.notifier,
		Dispatcher: deps.dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	}, scheduler.SLAMonitorConfig{
		BatchSize:     sc.SLABatchSize,
		QueryTimeout:  sc.QueryTimeout(),
		NotifyTimeout: notifyTimeout,
		DashboardURL:  dashboard,
		Location:      loc,
	})

	closer := scheduler.NewAutoCloser(scheduler.AutoCloserDeps{
		Tickets:    deps.tickets,
		History:    deps.history,
		Directory:  deps.users,
		Notifier:   deps.notifier,
		Dispatcher: deps.dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	}, scheduler.AutoCloserConfig{
		BatchSize:     sc.AutoCloseBatchSize,
		GracePeriod:   sc.GracePeriod(),
		QueryTimeout:  sc.QueryTimeout(),
		NotifyTimeout: notifyTimeout,
		DashboardURL:  dashboard,
		Location:      loc,
	})

	reminder := scheduler.NewApprovalReminder(scheduler.ApprovalReminderDeps{
		Approvals:  deps.approvals,
		Calendars:  deps.calendars,
		Notifier:   deps.notifier,
		Dispatcher: deps.dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	}, scheduler.ApprovalReminderConfig{
		BatchSize:     sc.ReminderBatchSize,
		BatchDelay:    sc.ReminderBatchDelay(),
		DevOverride:   sc.ReminderDevOverride,
		QueryTimeout:  sc.QueryTimeout(),
		NotifyTimeout: notifyTimeout,
		DashboardURL:  dashboard,
		Location:      loc,
	})

	reverter := scheduler.NewBackupReverter(scheduler.BackupReverterDeps{
		Backups:    deps.backups,
		Tickets:    deps.tickets,
		Directory:  deps.users,
		History:    deps.history,
		Dispatcher: deps.dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	}, sc.QueryTimeout())

	manager := scheduler.NewManager(logger, store, loc, monitor, closer, reminder, reverter)
	if !sc.Enabled {
		logger.Info("cron triggers disabled; schedulers run on manual trigger only")
		return manager
	}

	specs := map[string]string{
		scheduler.JobSLAMonitoring:     sc.SLAMonitorCron,
		scheduler.JobAutoClose:         sc.AutoCloseCron,
		scheduler.JobApprovalReminders: sc.ApprovalReminderCron,
		scheduler.JobBackupReversion:   sc.BackupReversionCron,
	}
	for name, spec := range specs {
		if err := manager.Schedule(name, spec); err != nil {
			logger.Fatal("failed to schedule job", zap.String("job", name), zap.Error(err))
		}
	}
	return manager
}
