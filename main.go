package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/iPranay05/Skill-Prob-sub002/controllers"
	"github.com/iPranay05/Skill-Prob-sub002/database"
	"github.com/iPranay05/Skill-Prob-sub002/events"
	"github.com/iPranay05/Skill-Prob-sub002/logger"
	"github.com/iPranay05/Skill-Prob-sub002/middleware"
	aws_pkg "github.com/iPranay05/Skill-Prob-sub002/pkg/aws"
	"github.com/iPranay05/Skill-Prob-sub002/repository"
	"github.com/iPranay05/Skill-Prob-sub002/routes"
	"github.com/iPranay05/Skill-Prob-sub002/services"
	"go.uber.org/zap"
)

const serviceName = "enrollment-service"

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		panic("config load failed: " + err.Error())
	}

	// --- AWS setup ---
	var awsCfg sdkaws.Config
	if cfg.NeedsAWS() {
		awsCfg, err = aws_pkg.LoadAWSConfig(context.Background())
		if err != nil {
			panic("failed to load AWS config: " + err.Error())
		}
	}

	// --- Logging ---
	var log *zap.Logger
	if cfg.CloudWatchLogGroup != "" {
		sink, err := aws_pkg.NewCloudWatchLogsWriter(context.Background(), awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log = logger.Initialize(cfg.Env, cfg.LogLevel)
			log.Warn("CloudWatch Logs sink unavailable (non-fatal)", zap.Error(err))
		} else {
			log = logger.InitializeWithWriter(cfg.Env, cfg.LogLevel, sink)
		}
	} else {
		log = logger.Initialize(cfg.Env, cfg.LogLevel)
	}
	defer logger.Sync()

	// --- Database ---
	db, err := database.ConnectPostgres(database.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSLMode,
		TimeZone: cfg.PostgresTimeZone,
	}, log)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}
	if err := database.Migrate(db, cfg.MigrateCourses); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}

	// --- Repositories ---
	var courseRepo repository.CourseRepository = repository.NewGormCourseRepository(db)
	var idempotency repository.IdempotencyStore
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Warn("Redis unavailable, idempotency keys and course cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			idempotency = repository.NewRedisIdempotencyStore(rdb)
			courseRepo = repository.NewCachedCourseRepository(courseRepo, rdb, cfg.CourseCacheTTL, log)
		}
	}

	var capacityRepo repository.CapacityRepository
	if cfg.CapacityBackend == "dynamodb" {
		ddb := aws_pkg.NewDynamoDBClient(awsCfg)
		if err := aws_pkg.EnsureCapacityTable(context.Background(), ddb, cfg.CapacityTable); err != nil {
			log.Fatal("DynamoDB capacity table unavailable", zap.Error(err))
		}
		capacityRepo = repository.NewDynamoCapacityRepository(ddb, cfg.CapacityTable)
	} else {
		capacityRepo = repository.NewGormCapacityRepository(db)
	}

	couponRepo := repository.NewGormCouponRepository(db)
	usageRepo := repository.NewGormCouponUsageRepository(db)
	enrollmentRepo := repository.NewGormEnrollmentRepository(db)
	paymentRepo := repository.NewGormPaymentRepository(db)
	subscriptionRepo := repository.NewGormSubscriptionRepository(db)

	// --- Events and metrics ---
	var publisher events.Publisher
	switch cfg.EventsBackend {
	case "sns":
		publisher = events.NewSNSPublisher(aws_pkg.NewSNSClient(awsCfg), cfg.EnrollmentSNSTopicARN)
	case "kafka":
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	default:
		publisher = events.NoopPublisher{}
	}

	var metrics aws_pkg.MetricsRecorder = aws_pkg.NoopMetrics{}
	if cfg.MetricsEnabled {
		metrics = aws_pkg.NewMetricsClient(awsCfg, "Enrollment", true)
	}

	// --- Dependency injection ---
	retry := services.RetryPolicy{MaxAttempts: cfg.AdmissionMaxRetries, Backoff: services.DefaultRetryPolicy.Backoff}
	engine := services.NewCouponEngine()
	admission := services.NewAdmissionController(capacityRepo, courseRepo, enrollmentRepo, retry, metrics, log)
	ledger := services.NewCouponLedger(couponRepo, usageRepo, engine, retry, publisher, metrics, log)

	transactor := database.NewGormTransactor(db)
	couponService := services.NewCouponService(couponRepo, engine, log)
	enrollmentService := services.NewEnrollmentService(
		transactor,
		enrollmentRepo, paymentRepo, courseRepo,
		admission, ledger, idempotency, publisher, log,
	)
	paymentService := services.NewPaymentService(transactor, paymentRepo, enrollmentRepo, subscriptionRepo, publisher, metrics, log)
	subscriptionService := services.NewSubscriptionService(subscriptionRepo, publisher, log)
	statsService := services.NewStatsService(enrollmentRepo, courseRepo, couponRepo, usageRepo, admission, log)

	// --- Payment results consumer ---
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	if cfg.PaymentResultsQueueURL != "" {
		consumer := services.NewPaymentResultConsumer(paymentService, metrics, log)
		sqsConsumer := aws_pkg.NewSQSConsumer(awsCfg, cfg.PaymentResultsQueueURL, log)
		go func() {
			defer close(consumerDone)
			_ = sqsConsumer.StartPolling(consumerCtx, consumer.HandleMessage)
		}()
	} else {
		close(consumerDone)
	}

	// --- HTTP router ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RateLimitMiddleware(cfg.RateLimitRPS))
	r.Use(middleware.MetricsMiddleware(metrics, serviceName))
	r.Use(middleware.RequestLogger(log))

	// Request timeout middleware
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.Use(apperrors.ErrorMiddleware())

	routes.RegisterRoutes(r, routes.Controllers{
		Coupons:     controllers.NewCouponController(couponService, ledger, statsService),
		Enrollments: controllers.NewEnrollmentController(enrollmentService),
		Courses:     controllers.NewCourseController(statsService, admission),
		Billing:     controllers.NewBillingController(paymentService, subscriptionService),
	}, []byte(cfg.JWTSecret), cfg.GatewaySecret)

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info("Enrollment Service started", zap.String("port", cfg.Port),
			zap.String("capacity_backend", cfg.CapacityBackend),
			zap.String("events_backend", cfg.EventsBackend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Initiating graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	stopConsumer()
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		log.Warn("Payment results consumer did not stop in time")
	}

	if err := publisher.Close(); err != nil {
		log.Error("Event publisher close error", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		log.Error("Database close error", zap.Error(err))
	}

	log.Info("Enrollment Service stopped gracefully")
}
