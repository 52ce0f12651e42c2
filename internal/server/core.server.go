package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Farkhat1984/leema-react-sub002/internal/config"
	"github.com/Farkhat1984/leema-react-sub002/internal/events"
	httphandler "github.com/Farkhat1984/leema-react-sub002/internal/handler/http"
	wshandler "github.com/Farkhat1984/leema-react-sub002/internal/handler/ws"
	"github.com/Farkhat1984/leema-react-sub002/internal/repository"
	"github.com/Farkhat1984/leema-react-sub002/internal/router"
	"github.com/Farkhat1984/leema-react-sub002/internal/usecase"
	"github.com/Farkhat1984/leema-react-sub002/pkg/authctx"
	"github.com/Farkhat1984/leema-react-sub002/pkg/kaspi"
	"github.com/Farkhat1984/leema-react-sub002/pkg/smsgateway"
	"github.com/Farkhat1984/leema-react-sub002/pkg/synclock"
	"github.com/Farkhat1984/leema-react-sub002/pkg/ws"
)

// Server bundles the HTTP server with the pieces shutdown needs to drain.
type Server struct {
	HTTP *http.Server
	Sync *usecase.SyncUsecase
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	// --- DB connection ---
	dbpool, err := config.ConnectDB(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	// --- Repos ---
	integRepo := repository.NewIntegrationRepository(dbpool)
	orderRepo := repository.NewOrderRepository(dbpool)
	notifRepo := repository.NewNotificationRepository(dbpool)

	// --- Redis (per-integration running marker) ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})
	lock := synclock.NewRedis(rdb)

	// --- Clients ---
	kaspiClient := kaspi.NewClient(cfg.KaspiBaseURL)
	smsClient := smsgateway.NewClient(cfg.SMSGatewayURL, cfg.SMSAPIKey)

	// --- Event dispatch + WS manager ---
	dispatcher := events.NewDispatcher(logger)
	wsManager := ws.NewManager(logger)
	go wsManager.Heartbeat(30 * time.Second)

	// Every outbound category fans out to the shop's dashboard sessions.
	push := func(evt events.Event) error {
		wsManager.SendEvent(evt.ShopID, evt)
		return nil
	}
	for _, cat := range []string{
		events.CatSyncCompleted,
		events.CatSyncError,
		events.CatOrderCreated,
		events.CatOrderUpdated,
		events.CatOrderCompleted,
		events.CatOrderCancelled,
	} {
		dispatcher.Subscribe(cat, push)
	}

	// --- Usecases ---
	ledger := usecase.NewNotificationUsecase(notifRepo, integRepo, smsClient, logger)
	orderUC := usecase.NewOrderUsecase(orderRepo, integRepo, kaspiClient, ledger, dispatcher, logger)
	syncUC := usecase.NewSyncUsecase(integRepo, orderRepo, ledger, kaspiClient, lock, dispatcher, logger)
	integUC := usecase.NewIntegrationUsecase(integRepo, lock, logger)

	// --- Handlers ---
	ih := httphandler.NewIntegrationHandler(integUC, orderUC, syncUC)
	oh := httphandler.NewOrderHandler(orderUC, ledger)
	wsh := wshandler.NewWSHandler(wsManager, dispatcher, logger)

	// --- Auth middleware ---
	auth := authctx.New(cfg.JWTSecret)

	// --- HTTP routes ---
	r := router.SetupRoutes(chi.NewRouter(), ih, oh, wsh, auth)

	return &Server{
		HTTP: &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: r,
		},
		Sync: syncUC,
	}
}

// Shutdown stops accepting requests and waits for in-flight sync jobs to
// report before returning.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.HTTP.Shutdown(ctx)
	done := make(chan struct{})
	go func() {
		s.Sync.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
