package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"fulfillment-pipeline/internal/core/clock"
	"fulfillment-pipeline/internal/core/config"
	"fulfillment-pipeline/internal/core/credentials"
	"fulfillment-pipeline/internal/core/logger"
	"fulfillment-pipeline/internal/core/recordstore"
	"fulfillment-pipeline/internal/core/server"
	acceptanceservice "fulfillment-pipeline/internal/features/acceptance/service"
	orderadapter "fulfillment-pipeline/internal/features/orders/adapters"
	orderdomain "fulfillment-pipeline/internal/features/orders/domain"
	pipelinehandler "fulfillment-pipeline/internal/features/pipeline/handler"
	pipelineservice "fulfillment-pipeline/internal/features/pipeline/service"
	shippingadapter "fulfillment-pipeline/internal/features/shipping/adapters"
	shippingdomain "fulfillment-pipeline/internal/features/shipping/domain"
	shippingservice "fulfillment-pipeline/internal/features/shipping/service"
	trackingservice "fulfillment-pipeline/internal/features/tracking/service"

	"go.uber.org/zap"
)

func main() {
	runOnce := flag.Bool("run-once", false, "run a single pipeline cycle and exit")
	flag.Parse()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
		zap.String("storage_driver", cfg.Storage.Driver),
	)

	store, err := recordstore.New(cfg.Storage)
	if err != nil {
		l.Fatal("Failed to open record store", zap.Error(err))
	}
	defer store.Close()

	creds := credentials.FromConfig(cfg)
	clk := clock.Real{}

	market := orderadapter.NewMiraklAdapter(cfg.Marketplace.URL, creds)
	carrier := shippingadapter.NewCanadaPostAdapter(cfg.Carrier, creds)

	archive, err := shippingadapter.NewFileLabelArchive(cfg.Storage.DataDir)
	if err != nil {
		l.Fatal("Failed to create label archive", zap.Error(err))
	}

	sender := shippingdomain.Party{
		Name:    cfg.Sender.Name,
		Company: cfg.Sender.Company,
		Phone:   cfg.Sender.Phone,
		Address: orderdomain.Address{
			Street1:    cfg.Sender.Street,
			City:       cfg.Sender.City,
			Province:   cfg.Sender.Province,
			PostalCode: cfg.Sender.PostalCode,
			Country:    cfg.Sender.Country,
		},
	}

	reconciler := acceptanceservice.NewReconciler(store, market, creds, clk, cfg.Pipeline.AcceptanceSettle())
	manager := shippingservice.NewManager(store, market, carrier, archive, creds, clk, sender, cfg.Pipeline.LabelCooldown())
	synchronizer := trackingservice.NewSynchronizer(store, market, creds, clk, cfg.Marketplace.CarrierCode, cfg.Pipeline.TrackingSettle())

	orchestrator := pipelineservice.NewOrchestrator(
		reconciler,
		manager,
		synchronizer,
		clk,
		cfg.Pipeline.AcceptanceRetries,
		cfg.Pipeline.Interval(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *runOnce {
		if _, err := orchestrator.RunCycle(ctx); err != nil {
			l.Fatal("Pipeline cycle failed", zap.Error(err))
		}
		return
	}

	go func() {
		if err := orchestrator.Run(ctx); err != nil && ctx.Err() == nil {
			l.Error("Pipeline scheduler stopped", zap.Error(err))
		}
	}()

	srv := server.New(cfg)
	pipelinehandler.NewPipelineHandler(ctx, orchestrator).Register(srv.App)

	go func() {
		<-ctx.Done()
		l.Info("Shutting down")
		if err := srv.App.Shutdown(); err != nil {
			l.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	if err := srv.Run(); err != nil {
		l.Fatal("Server failed to start", zap.Error(err))
	}
}
