package main

import (
	borrowhandler "bookshelf/internal/borrowing/handler"
	borrowrepo "bookshelf/internal/borrowing/repository"
	borrowservice "bookshelf/internal/borrowing/service"
	borrowvalidator "bookshelf/internal/borrowing/validator"
	cataloghandler "bookshelf/internal/catalog/handler"
	catalogrepo "bookshelf/internal/catalog/repository"
	catalogservice "bookshelf/internal/catalog/service"
	catalogvalidator "bookshelf/internal/catalog/validator"
	"bookshelf/internal/policy"
	userhandler "bookshelf/internal/users/handler"
	userrepo "bookshelf/internal/users/repository"
	userservice "bookshelf/internal/users/service"
	uservalidator "bookshelf/internal/users/validator"
	"bookshelf/pkg/app"
	"bookshelf/pkg/config"
	"bookshelf/pkg/contracts"
	"bookshelf/pkg/events"
	kafka_config "bookshelf/pkg/kafka/config"
	kafka_middleware "bookshelf/pkg/kafka/middleware"
	"bookshelf/pkg/middleware"
)

const ServiceName = "library"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log)

	publisher, closePublisher, err := events.Connect(kcfg, ServiceName, kafka_middleware.NewMetrics(), cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to set up event publishing", "error", err)
	}

	cfg.Log.Info("Starting Library service")
	handlers := initHandlers(cfg, events.NewEmitter(publisher, cfg.EventPublishTimeout, cfg.Log))

	serverApp := app.NewApplication(cfg)
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.OnShutdown(closePublisher)
	serverApp.SetApp(handlers...)
	serverApp.Run()
}

func initHandlers(cfg *config.Config, emitter *events.Emitter) []contracts.Handler {
	rules := policy.Default()

	userRepo := userrepo.NewMongoUserRepository(cfg)
	sessionRepo := userrepo.NewMongoSessionRepository(cfg)
	userValidator := uservalidator.NewUserValidator(cfg.Log)
	authService := userservice.NewAuthService(userRepo, sessionRepo, userValidator, cfg)
	userService := userservice.NewUserService(userRepo, sessionRepo, userValidator, cfg)

	guard := middleware.NewGuard(authService, rules, cfg.Log)

	bookRepo := catalogrepo.NewMongoBookRepository(cfg)
	bookService := catalogservice.NewBookService(
		bookRepo,
		catalogvalidator.NewBookValidator(cfg.Log),
		rules,
		emitter,
		cfg,
	)

	borrowService := borrowservice.NewBorrowService(
		bookRepo,
		borrowrepo.NewMongoBorrowRepository(cfg),
		borrowrepo.NewBookLockRepository(cfg),
		borrowvalidator.NewBorrowValidator(cfg.Log),
		rules,
		emitter,
		cfg,
	)

	cfg.Log.Info("Library services initialized", "database", cfg.MongoDatabaseName)
	return []contracts.Handler{
		cataloghandler.NewBookHandler(bookService, guard, cfg.Log),
		borrowhandler.NewBorrowHandler(borrowService, guard, cfg.Log),
		userhandler.NewAuthHandler(authService, guard, cfg.Log),
		userhandler.NewUserHandler(userService, guard, cfg.Log),
	}
}
