package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/meliprint/meliprint/internal/app"
	"github.com/meliprint/meliprint/internal/config"
	"github.com/meliprint/meliprint/internal/entities"
	"github.com/meliprint/meliprint/internal/handler"
	"github.com/meliprint/meliprint/internal/labels"
	"github.com/meliprint/meliprint/internal/meli"
	"github.com/meliprint/meliprint/internal/mercadopago"
	"github.com/meliprint/meliprint/internal/postgres"
	"github.com/meliprint/meliprint/internal/repo"
	"github.com/meliprint/meliprint/internal/service"
	"github.com/meliprint/meliprint/internal/session"
	"github.com/meliprint/meliprint/pkg/cache"
	"github.com/meliprint/meliprint/pkg/trm"

	"github.com/joho/godotenv"
)

func main() {
	conf := config.New()
	logger := newLogger(conf.Env)
	panicIfErr("invalid config", conf.Validate())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := postgres.New(conf.Postgres)
	panicIfErr("failed to connect to db", err)
	defer db.Close()
	panicIfErr("failed to migrate db", postgres.Migrate(ctx, db))
	logger.Info("postgres connected")

	store := repo.NewPostgresRepo(db)
	txManager := trm.NewManager(db)

	sessionCache := cache.NewLRUCache[entities.Session](conf.Cache.Capacity, conf.Cache.TTL)
	sessionCache.StartJanitor(ctx)
	sessions := session.NewManager(logger, store, sessionCache, session.Config{
		CookieName: conf.Session.CookieName,
		TTL:        conf.Session.TTL,
		Secure:     conf.Session.Secure,
	})
	sessions.StartSweeper(ctx)

	meliClient := meli.NewClient(logger, meli.Config{
		APIURL:  conf.Meli.APIURL,
		AuthURL: conf.Meli.AuthURL,
		Timeout: conf.Meli.Timeout,
	})
	mpClient := mercadopago.NewClient(logger, mercadopago.Config{
		BaseURL:     conf.MercadoPago.BaseURL,
		AccessToken: conf.MercadoPago.AccessToken,
	})
	rasterizer := labels.NewRasterizer(logger, labels.Config{
		BaseURL: conf.Labelary.BaseURL,
		Timeout: conf.Labelary.Timeout,
	}, meliClient, labels.NewPDFMerger())

	authService := service.NewAuthService(logger, meliClient, service.AuthConfig{
		ClientID:     conf.Meli.ClientID,
		ClientSecret: conf.Meli.ClientSecret,
		RedirectURI:  conf.Meli.RedirectURI,
	})
	shipmentService := service.NewShipmentService(logger, meliClient, service.DefaultPrintPolicy())
	labelService := service.NewLabelService(logger, meliClient, rasterizer)
	subscriptionService := service.NewSubscriptionService(logger, txManager, store, mpClient, service.SubscriptionConfig{
		PlanName:  conf.MercadoPago.PlanName,
		PlanPrice: conf.MercadoPago.PlanPrice,
		BackURL:   conf.Frontend.URL,
	})

	application := app.New(logger, conf, sessions.Middleware)
	application.SetHTTPHandlers(
		handler.NewAuthHandler(logger, authService, sessions, conf.Frontend.URL),
		handler.NewShipmentHandler(logger, shipmentService),
		handler.NewLabelHandler(logger, labelService),
		handler.NewSubscriptionHandler(logger, subscriptionService),
	)

	application.Start(ctx)
	<-ctx.Done()
	application.Stop()
}

func init() {
	godotenv.Load()
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "production":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}
