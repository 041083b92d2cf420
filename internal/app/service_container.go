package app

import (
	"fmt"

	"dex-backend/internal/clients"
	"dex-backend/internal/config"
	"dex-backend/internal/db"
	"dex-backend/internal/events"
	"dex-backend/internal/repository"
	"dex-backend/internal/services"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ServiceContainer holds the wired store, event sinks and services
type ServiceContainer struct {
	Config *config.Config
	Logger *logrus.Logger

	// Storage
	DB    *gorm.DB // nil with the memory driver
	Store repository.Store

	// Event bus
	Hub       *services.WebSocketHub
	NATS      *clients.NATSPublisher
	Publisher *events.MultiPublisher

	// Core Services
	Sessions *services.SessionManager
	Accounts *services.AccountService
	Orders   *services.OrderService
	Fills    *services.FillService
	Staking  *services.StakingService
	Sweeper  *services.ExpirySweeper
}

// NewServiceContainer wires every component from cfg. With the postgres
// driver db must be open; the memory driver ignores it.
func NewServiceContainer(cfg *config.Config, gdb *gorm.DB, logger *logrus.Logger) (*ServiceContainer, error) {
	c := &ServiceContainer{Config: cfg, Logger: logger}

	// 1. Storage
	if err := c.initStore(gdb); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	// 2. Event bus
	c.initEventBus()

	// 3. Core Services
	c.initCoreServices()

	logger.WithFields(logrus.Fields{
		"driver": cfg.Database.Driver,
		"nats":   c.NATS != nil,
	}).Info("Service container initialized")
	return c, nil
}

func (c *ServiceContainer) initStore(gdb *gorm.DB) error {
	switch c.Config.Database.Driver {
	case "memory":
		c.Store = repository.NewMemoryStore()
	case "postgres", "":
		if gdb == nil {
			gdb = db.DB
		}
		if gdb == nil {
			return fmt.Errorf("postgres driver selected but database is not open")
		}
		c.DB = gdb
		c.Store = repository.NewGormStore(gdb)
	default:
		return fmt.Errorf("unknown database driver %q", c.Config.Database.Driver)
	}
	return nil
}

// initEventBus fans out to the websocket hub and, when configured, NATS.
// A NATS connection failure is logged and the service runs hub-only.
func (c *ServiceContainer) initEventBus() {
	c.Hub = services.NewWebSocketHub(c.Logger)
	c.Publisher = events.NewMultiPublisher(c.Logger, events.Sink{Name: "websocket", Publisher: c.Hub})

	natsCfg := c.Config.NATS
	if !natsCfg.Enabled || natsCfg.URL == "" {
		return
	}
	publisher, err := clients.NewNATSPublisher(natsCfg, c.Logger)
	if err != nil {
		c.Logger.WithError(err).WithField("url", natsCfg.URL).Warn("NATS unavailable, events go to websocket clients only")
		return
	}
	c.NATS = publisher
	c.Publisher.Add("nats", publisher)
	c.Logger.WithField("url", natsCfg.URL).Info("NATS publisher connected")
}

func (c *ServiceContainer) initCoreServices() {
	cfg := c.Config
	c.Sessions = services.NewSessionManager(cfg.Auth.JWTSecret, cfg.TokenTTL())
	c.Accounts = services.NewAccountService(c.Store, c.Sessions, cfg.AccountWindow(), c.Logger)
	c.Orders = services.NewOrderService(c.Store, c.Publisher, cfg.Orders.MaxBotLevels, c.Logger)
	c.Fills = services.NewFillService(c.Store, c.Publisher, c.Logger)
	c.Staking = services.NewStakingService(c.Store, c.Publisher, c.Logger)
	c.Sweeper = services.NewExpirySweeper(c.Store, c.Publisher, cfg.SweepInterval(), c.Logger)
}

// Start runs the background workers
func (c *ServiceContainer) Start() {
	c.Sweeper.Start()
}

// Cleanup stops workers and closes connections
func (c *ServiceContainer) Cleanup() {
	c.Logger.Info("Cleaning up service container")
	if c.Sweeper != nil {
		c.Sweeper.Stop()
	}
	if c.NATS != nil {
		c.NATS.Close()
	}
	if c.Hub != nil {
		c.Hub.Stop()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
