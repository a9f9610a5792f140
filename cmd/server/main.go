package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"clinic-queue/internal/config"
	"clinic-queue/internal/helper"
	"clinic-queue/internal/http/handler"
	"clinic-queue/internal/models"
	"clinic-queue/internal/queue"
	"clinic-queue/internal/realtime"
	"clinic-queue/internal/store"
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	config.LoadEnv()
	config.InitLogger(config.GetEnv("LOG_ENV", "production"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(config.GetEnv("CLINIC_TZ", "Local"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid CLINIC_TZ")
	}

	stations := config.DefaultStations()
	if path := config.GetEnv("STATIONS_FILE", ""); path != "" {
		if stations, err = config.LoadStationsFile(path); err != nil {
			log.Fatal().Err(err).Msg("load stations")
		}
	}

	var (
		qstore queue.Store
		users  store.Users
	)
	switch driver := config.GetEnv("STORE_DRIVER", "mysql"); driver {
	case "mysql":
		db, err := config.OpenDB(ctx, loc)
		if err != nil {
			log.Fatal().Err(err).Msg("mysql")
		}
		defer db.Close()

		mysqlStore := store.NewMySQL(db)
		if err := mysqlStore.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
		if err := mysqlStore.SeedStations(ctx, stations); err != nil {
			log.Fatal().Err(err).Msg("seed stations")
		}
		if stations, err = mysqlStore.Stations(ctx); err != nil {
			log.Fatal().Err(err).Msg("load stations")
		}
		qstore, users = mysqlStore, mysqlStore
	case "memory":
		qstore = queue.NewMemoryStore()
		memUsers := store.NewMemoryUsers()
		seedAdmin(ctx, memUsers)
		users = memUsers
	default:
		log.Fatal().Str("driver", driver).Msg("STORE_DRIVER must be mysql or memory")
	}

	route, err := queue.NewRoute(stations)
	if err != nil {
		log.Fatal().Err(err).Msg("station route")
	}

	opts := []queue.Option{
		queue.WithLocation(loc),
		queue.WithStrictCooldown(config.GetEnvBool("RECALL_STRICT", false)),
		queue.WithLogger(config.Component("queue")),
	}
	if raw := config.GetEnv("OPEN_HOURS", ""); raw != "" {
		hours, err := helper.ParseOpeningHours(raw)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid OPEN_HOURS")
		}
		opts = append(opts, queue.WithOpeningHours(hours))
	}

	// The hub needs the controller for snapshots and the controller needs a
	// notifier, so the snapshot closure reads ctl after construction.
	var ctl *queue.Controller
	hub := realtime.NewHub(func(ctx context.Context) ([]byte, error) {
		return handler.BoardSnapshot(ctl)(ctx)
	}, config.Component("realtime"))
	go hub.RunCleanup(ctx)

	rdb, err := config.NewRedis(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, events stay on this instance")
		opts = append(opts, queue.WithNotifier(hub))
	} else {
		defer rdb.Close()
		bus := realtime.NewRedisBus(rdb, realtime.DefaultChannel, config.Component("bus"))
		opts = append(opts, queue.WithNotifier(bus))
		go func() {
			if err := bus.Run(ctx, hub, nil); err != nil {
				log.Error().Err(err).Msg("event bus stopped")
			}
		}()
	}

	ctl = queue.NewController(qstore, route, opts...)

	app := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		StrictRouting: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE",
	}))

	h := handler.New(ctl, users, config.Component("http"))
	handler.Routes(app, h, handler.RouteConfig{
		Hub:       hub,
		AdminUser: config.GetEnv("BASIC_AUTH_USER", ""),
		AdminPass: config.GetEnv("BASIC_AUTH_PASS", ""),
	})

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	addr := config.GetEnv("APP_HOST", "") + ":" + config.GetEnv("APP_PORT", "8080")
	log.Info().Str("addr", addr).Int("stations", len(stations)).Msg("server listening")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}

// seedAdmin creates the first admin for the memory driver.
func seedAdmin(ctx context.Context, users *store.MemoryUsers) {
	email := config.GetEnv("ADMIN_EMAIL", "")
	pass := config.GetEnv("ADMIN_PASSWORD", "")
	if email == "" || pass == "" {
		log.Warn().Msg("ADMIN_EMAIL/ADMIN_PASSWORD not set, no one can log in")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("hash admin password")
	}
	if _, err := users.CreateUser(ctx, models.User{
		Name:     "Administrator",
		Email:    email,
		Password: string(hash),
		Role:     models.RoleAdmin,
	}); err != nil {
		log.Fatal().Err(err).Msg("seed admin")
	}
}
