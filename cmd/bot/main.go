package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"clinicbot/db"
	"clinicbot/db/migrations"
	"clinicbot/internal/bot"
	"clinicbot/internal/handlers"
	"clinicbot/internal/importer"
	"clinicbot/internal/instruments"
	"clinicbot/internal/logger"
	"clinicbot/internal/notify"
	"clinicbot/internal/registration"
	"clinicbot/internal/reports"
	"clinicbot/internal/session"
	"clinicbot/internal/sheets"
	"clinicbot/internal/shifts"
	"clinicbot/internal/survey"
)

func mustGetEnv(name string) string {
	v := os.Getenv(name)
	if v == "" {
		log.Fatalf("%s env variable is not set", name)
	}
	return v
}

func getEnvOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func main() {
	zlog, err := logger.New(
		getEnvOrDefault("LOG_LEVEL", "info"),
		getEnvOrDefault("LOG_FORMAT", "console"),
		"clinicbot",
	)
	if err != nil {
		log.Fatalf("Cannot init logger: %v", err)
	}
	defer zlog.Sync()

	connString := mustGetEnv("POSTGRES_CONN")
	dbConn, err := sqlx.Connect("postgres", connString)
	if err != nil {
		zlog.Fatal("cannot connect to DB", zap.Error(err))
	}
	defer dbConn.Close()

	if err := migrations.Run(dbConn.DB); err != nil {
		zlog.Fatal("migrations failed", zap.Error(err))
	}

	store := db.NewStorage(dbConn)

	api, err := tgbotapi.NewBotAPI(mustGetEnv("TELEGRAM_BOT_TOKEN"))
	if err != nil {
		zlog.Fatal("cannot init telegram api", zap.Error(err))
	}
	zlog.Info("authorized on telegram", zap.String("username", api.Self.UserName))

	notifier := notify.NewTelegram(api)
	sessions := session.NewManager()

	flow := survey.NewFlow(store, notifier, sessions, zlog)
	dispatcher := survey.NewDispatcher(store, flow, notifier, zlog)
	regSvc := registration.NewService(store, zlog)
	shiftSvc := shifts.NewService(store, zlog)
	instrSvc := instruments.NewService(store,
		getEnvOrDefault("STERILIZATION_CABINET", instruments.DefaultSterilizationCabinet), zlog)
	reportSvc := reports.NewService(store, notifier, zlog)

	gateway := sheets.NewFileGateway(getEnvOrDefault("SHEETS_DIR", "./sheets"))
	importSvc := importer.NewService(gateway, store, zlog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tgBot := bot.New(api, regSvc, flow, shiftSvc, instrSvc, sessions, zlog)
	go func() {
		if err := tgBot.Run(ctx); err != nil && ctx.Err() == nil {
			zlog.Error("bot stopped", zap.Error(err))
		}
	}()

	h := handlers.NewHandler(dispatcher, reportSvc, importSvc, instrSvc, shiftSvc, zlog)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)

		// всё, кроме ping, доступно только администраторам из ADMIN_IDS
		r.Group(func(r chi.Router) {
			r.Use(handlers.AdminAuth(mustGetEnv("ADMIN_IDS"), zlog))

			// опросы и отчёты (дергаются планировщиком)
			r.Post("/surveys/dispatch", h.DispatchSurveysHandler)
			r.Post("/surveys/reset", h.ResetSurveysHandler)
			r.Post("/reports/monthly", h.MonthlyReportsHandler)
			// синхронизация с таблицами
			r.Post("/sync/{resource}", h.SyncHandler)
			r.Post("/export/{resource}", h.ExportHandler)
			// кабинеты и инструменты
			r.Get("/cabinets", h.GetCabinetsHandler)
			r.Post("/cabinets/new", h.CreateCabinetHandler)
			r.Patch("/cabinets/{cabinetId}", h.RenameCabinetHandler)
			r.Put("/cabinets/{cabinetId}/active", h.ArchiveCabinetHandler)
			r.Delete("/cabinets/{cabinetId}", h.DeleteCabinetHandler)
			r.Get("/cabinets/{cabinetId}/instruments", h.GetInstrumentsHandler)
			r.Post("/instruments/new", h.CreateInstrumentHandler)
			r.Patch("/instruments/{instrumentId}", h.RenameInstrumentHandler)
			r.Put("/instruments/{instrumentId}/active", h.ArchiveInstrumentHandler)
			r.Delete("/instruments/{instrumentId}", h.DeleteInstrumentHandler)
			r.Get("/moves", h.GetMovesHandler)
			r.Get("/moves/{moveId}", h.GetMoveHandler)
			// слоты смен
			r.Get("/shifts/today", h.GetTodayShiftsHandler)
			r.Post("/shifts/new", h.CreateSlotHandler)
			r.Delete("/shifts/{shiftId}", h.DeleteSlotHandler)
		})
	})

	serverAddr := getEnvOrDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	zlog.Info("starting server", zap.String("addr", serverAddr))
	if err := http.ListenAndServe(serverAddr, r); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}
