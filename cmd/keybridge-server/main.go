package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/accesslab/keybridge/internal/config"
	"github.com/accesslab/keybridge/internal/db"
	"github.com/accesslab/keybridge/internal/httpapi"
	"github.com/accesslab/keybridge/internal/keybridge/service"
	"github.com/accesslab/keybridge/internal/keybridge/store/sqlite"
	"github.com/accesslab/keybridge/internal/mqttbridge"
	"github.com/accesslab/keybridge/internal/rtfanout"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "keybridge-server ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	database, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, database); err != nil {
			logger.Fatalf("seed dev data: %v", err)
		}
	}

	writer := db.NewWorker(database)
	defer writer.Close()

	tagStore := sqlite.NewTagStore(database, writer)
	employeeStore := sqlite.NewEmployeeStore(database)
	readerStore := sqlite.NewReaderStore(database, writer)
	workSessionStore := sqlite.NewWorkSessionStore(database, writer)
	eventStore := sqlite.NewAccessEventStore(database, writer)

	// Real-time fan-out
	hub := rtfanout.NewHub(logger)

	// Services
	enrollments := service.NewEnrollmentStore(cfg.EnrollTTL, logger)
	tracker := service.NewWorkTracker(workSessionStore, hub, cfg.EntranceReader, cfg.ExitReader, logger)
	accessSvc := service.NewAccessService(tagStore, employeeStore, eventStore, tracker, hub, logger)
	tagSvc := service.NewTagService(tagStore, enrollments, logger)

	// Broker bridge
	saver := mqttbridge.NewSaveClient(cfg.PersistBaseURL, cfg.BridgeKey)
	bridge := mqttbridge.New(mqttbridge.Options{
		URL:      cfg.MQTTURL,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
		ClientID: cfg.MQTTClientID,
	}, mqttbridge.Dependencies{
		Logger:  logger,
		Fanout:  hub,
		Readers: readerStore,
		Saver:   saver,
	})
	defer bridge.Close()

	// Controllers attached over websocket feed the same router as the broker.
	hub.SetControllerHandler(bridge.HandleControllerEvent)

	enrollSvc := service.NewEnrollService(enrollments, employeeStore, bridge, cfg.EntranceReader, logger)
	gateway := service.NewCommandGateway(logger, hub, bridge)

	sweeper := service.NewSessionSweeper(workSessionStore, service.SweeperConfig{
		MaxOpen:  cfg.SessionMaxOpen,
		Interval: cfg.SweepInterval,
	}, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:    logger,
		Addr:      cfg.HTTPAddr,
		APIKey:    cfg.APIKey,
		BridgeKey: cfg.BridgeKey,
		Enroll:    enrollSvc,
		Tags:      tagSvc,
		Access:    accessSvc,
		Readers:   readerStore,
		Events:    eventStore,
		Gateway:   gateway,
		Hub:       hub,
		Broker:    bridge,
	})

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	// The broker may come up after us; keep the server serving HTTP and
	// websocket traffic while the connect loop retries.
	go func() {
		if err := bridge.Connect(ctx); err != nil {
			logger.Printf("mqtt: giving up on initial connect: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
