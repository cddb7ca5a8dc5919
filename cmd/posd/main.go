// Package main runs the point-of-sale backend daemon: the framed-JSON TCP
// server, the session sweeper and the operational HTTP endpoint.
package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/retailcore/posd/internal/config"
	"github.com/retailcore/posd/internal/credentials"
	"github.com/retailcore/posd/internal/domain"
	"github.com/retailcore/posd/internal/metrics"
	"github.com/retailcore/posd/internal/platform/migrations"
	"github.com/retailcore/posd/internal/protocol"
	"github.com/retailcore/posd/internal/server"
	"github.com/retailcore/posd/internal/services/auth"
	"github.com/retailcore/posd/internal/services/categories"
	"github.com/retailcore/posd/internal/services/orders"
	"github.com/retailcore/posd/internal/services/products"
	"github.com/retailcore/posd/internal/services/users"
	"github.com/retailcore/posd/internal/session"
	"github.com/retailcore/posd/internal/storage"
	"github.com/retailcore/posd/internal/storage/memory"
	"github.com/retailcore/posd/internal/storage/postgres"
	"github.com/retailcore/posd/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("posd").WithError(err).Fatal("invalid configuration")
	}

	log := logger.New(logger.LoggingConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		Component: "posd",
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("storage init failed")
	}

	sessions := session.NewStore()
	sweeper := session.NewSweeper(sessions, cfg.Session.TTL, cfg.Session.SweepInterval, log)
	go sweeper.Run(ctx)

	router := server.NewRouter(log)
	registerActions(router, store, sessions, log)

	if cfg.Metrics.Enabled {
		go serveOps(ctx, cfg.Metrics.Addr, log)
	}

	srv := server.New(cfg.Server.Addr(), cfg.Server.DrainTimeout, router, log)
	srv.MaxConns = cfg.Server.MaxConns
	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Fatal("server failed")
	}
	log.Info("shutdown complete")
}

func openStore(ctx context.Context, cfg config.Config, log *logger.Logger) (storage.Store, error) {
	switch cfg.Database.Driver {
	case "memory":
		log.Warn("using in-memory storage, data will not survive a restart")
		return seedDevData(memory.New(), log), nil
	default:
		db, err := postgres.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		if err := migrations.Apply(ctx, db); err != nil {
			return nil, err
		}
		log.Info("postgres storage ready")
		return postgres.New(db), nil
	}
}

// seedDevData provisions a default admin account and a small catalog so a
// fresh in-memory instance is usable immediately.
func seedDevData(store *memory.Store, log *logger.Logger) *memory.Store {
	hash, err := credentials.Hash("admin123!")
	if err != nil {
		log.WithError(err).Fatal("seed failed")
	}
	store.PutUser(domain.User{
		Username:     "admin",
		PasswordHash: hash,
		FullName:     "Administrator",
		Email:        "admin@localhost",
		Role:         domain.RoleAdmin,
		Active:       true,
	})
	grocery := store.PutCategory(domain.Category{Name: "Grocery"})
	store.PutProduct(domain.Product{
		CategoryID: grocery.ID,
		Name:       "Sample Product",
		Barcode:    "0000000000017",
		Price:      1.00,
		Stock:      100,
		Active:     true,
	})
	log.Info("seeded development data (admin/admin123!)")
	return store
}

func registerActions(router *server.Router, store storage.Store, sessions *session.Store, log *logger.Logger) {
	authSvc := auth.New(store, sessions, log)
	productSvc := products.New(store, sessions, log)
	orderSvc := orders.New(store, sessions, log)
	categorySvc := categories.New(store, sessions, log)
	userSvc := users.New(store, sessions, log)

	router.Register(protocol.ActionLogin, authSvc.Login)
	router.Register(protocol.ActionLogout, authSvc.Logout)

	router.Register(protocol.ActionGetProducts, productSvc.GetProducts)
	router.Register(protocol.ActionSearchProducts, productSvc.SearchProducts)
	router.Register(protocol.ActionGetProductByBarcode, productSvc.GetProductByBarcode)
	router.Register(protocol.ActionUpdateProductPrice, productSvc.UpdateProductPrice)
	router.Register(protocol.ActionUpdateProductStock, productSvc.UpdateProductStock)
	router.Register(protocol.ActionGetLowStockProducts, productSvc.GetLowStockProducts)

	router.Register(protocol.ActionCreateOrder, orderSvc.CreateOrder)
	router.Register(protocol.ActionGetOrders, orderSvc.GetOrders)
	router.Register(protocol.ActionGetOrderDetails, orderSvc.GetOrderDetails)
	router.Register(protocol.ActionGetSalesReport, orderSvc.GetSalesReport)

	router.Register(protocol.ActionGetCategories, categorySvc.GetCategories)

	router.Register(protocol.ActionGetEmployees, userSvc.GetEmployees)
	router.Register(protocol.ActionGetUsersByRole, userSvc.GetUsersByRole)
	router.Register(protocol.ActionSearchUsers, userSvc.SearchUsers)
	router.Register(protocol.ActionCreateUser, userSvc.CreateUser)
	router.Register(protocol.ActionUpdateUserProfile, userSvc.UpdateUserProfile)
}

// serveOps exposes Prometheus metrics and a liveness probe over HTTP.
func serveOps(ctx context.Context, addr string, log *logger.Logger) {
	r := mux.NewRouter()
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("ops endpoint listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("ops endpoint failed")
	}
}
