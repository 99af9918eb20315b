// Command corvusd is the deployment orchestrator daemon: it watches for
// pending deployments and drives each one through clone, build, extract,
// supervise, and proxy-configure, while serving a small read-only HTTP
// surface for health, metrics, and deployment status.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/admission"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/config"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/db"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/docker"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/handlers"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/metrics"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/models"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/orchestrator"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/proxy"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/supervisor"
)

func main() {
	appConfig, err := config.LoadAppConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger := appConfig.NewLogger()

	logger.Info("corvus-paas orchestrator starting",
		"port", appConfig.Port,
		"db_path", appConfig.DBPath,
		"log_format", appConfig.LogFormat,
		"production_mode", appConfig.ProductionMode(),
	)

	// opening the database and running schema migration (init tables)
	// if this fails, the application cannot serve requests, so exit immediately
	database, err := db.OpenDatabase(appConfig.DBPath, logger)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.CloseDatabase()

	dockerClient, err := docker.NewClient(logger)
	if err != nil {
		log.Fatalf("failed to connect to docker daemon: %v", err)
	}
	defer dockerClient.Close()

	sup := supervisor.New(appConfig.Supervisor.Binary)

	var proxyConfigurator *proxy.Configurator
	if appConfig.ProductionMode() {
		var ops proxy.PrivilegedOps
		if appConfig.Proxy.Remote {
			sshOps, err := proxy.NewSSHOps(appConfig.Proxy.SSHHost, appConfig.Proxy.SSHPort, appConfig.Proxy.SSHUser, appConfig.Proxy.SSHKeyPath)
			if err != nil {
				log.Fatalf("failed to connect to remote proxy host: %v", err)
			}
			defer sshOps.Close()
			ops = sshOps
		} else {
			ops = proxy.LocalOps{}
		}
		proxyConfigurator = &proxy.Configurator{
			Ops:               ops,
			SitesAvailableDir: appConfig.Proxy.SitesAvailableDir,
			SitesEnabledDir:   appConfig.Proxy.SitesEnabledDir,
			ReloadCommand:     appConfig.Proxy.ReloadCommand,
			CertDir:           appConfig.Proxy.CertDir,
			UseHTTPS:          appConfig.UseHTTPS,
		}
	}

	appMetrics := metrics.New()

	orchestratorConfig := orchestrator.Config{
		DeploymentsRoot: appConfig.DeploymentsRoot,
		ClonesRoot:      appConfig.ClonesRoot,
		LogsRoot:        appConfig.DeploymentsRoot + "/logs",
		ProductionMode:  appConfig.ProductionMode(),
		PlatformHost:    appConfig.PlatformURL,
		UseHTTPS:        appConfig.UseHTTPS,
		PortRangeStart:  appConfig.DeploymentPortRangeStart,
		PortRangeEnd:    appConfig.DeploymentPortRangeEnd,
	}
	deploymentOrchestrator := orchestrator.New(database, dockerClient, sup, proxyConfigurator, logger, appMetrics, orchestratorConfig)

	admissionQueue := admission.New(
		appConfig.MaxConcurrentDeployments,
		deploymentOrchestrator.Run,
		logger,
	)
	admissionQueue.Start()

	pollContext, cancelPolling := context.WithCancel(context.Background())
	go pollForPendingDeployments(pollContext, database, admissionQueue, logger)

	router := handlers.CreateAndSetupRouter(handlers.RouterDependencies{
		Logger:   logger,
		Database: database,
	})

	// --- HTTP server construction ---
	// ReadTimeout enforces a hard deadline for the client to transmit the
	// entire HTTP request within a set time, mitigating Slowloris resource
	// exhaustion attacks. WriteTimeout caps the time the server spends
	// attempting to transmit the response to a slow client. IdleTimeout
	// limits how long an inactive keep-alive connection stays open.
	server := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- graceful shutdown ---
	// the server runs in a goroutine so the main goroutine can block on the
	// signal channel. when an OS signal (SIGINT from Ctrl+C or SIGTERM from
	// a container orchestrator) is received, the server gets a grace window
	// to finish in-flight requests, and the admission queue gets a chance
	// to let any mid-pipeline deployment reach a terminal status, before
	// the process exits.
	shutdownChannel := make(chan error, 1)

	go func() {
		logger.Info("http server listening", "addr", server.Addr)
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			shutdownChannel <- err
		}
		close(shutdownChannel)
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("startup complete, orchestrator ready", "port", appConfig.Port)

	select {
	case sig := <-signalChannel:
		logger.Info("shutdown signal received", "signal", sig)
	case err := <-shutdownChannel:
		if err != nil {
			log.Fatalf("http server failed: %v", err)
		}
	}

	cancelPolling()

	shutdownContext, cancelShutdownContext := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdownContext()

	if err := server.Shutdown(shutdownContext); err != nil {
		logger.Error("graceful http shutdown failed", "error", err)
	} else {
		logger.Info("http server shut down cleanly")
	}

	logger.Info("draining admission queue, waiting for in-flight deployments to finish")
	admissionQueue.Stop()
	logger.Info("admission queue drained, exiting")
}

// pollForPendingDeployments periodically scans for deployments left in
// `pending` (freshly inserted by corvusctl or a future façade writing
// directly to the shared database) and hands each one to the admission
// queue exactly once per process lifetime. enqueued tracks IDs already
// submitted so a deployment is not re-enqueued on every poll tick while it
// is still sitting in the queue's buffer awaiting a worker.
func pollForPendingDeployments(ctx context.Context, database *db.Database, queue *admission.Queue, logger *slog.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	enqueued := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deployments, err := database.ListDeployments()
			if err != nil {
				logger.Warn("failed to poll for pending deployments", "error", err)
				continue
			}
			for _, deployment := range deployments {
				if deployment.Status != models.StatusPending || enqueued[deployment.ID] {
					continue
				}
				enqueued[deployment.ID] = true
				logger.Info("enqueueing pending deployment", "deployment_id", deployment.ID)
				queue.Enqueue(deployment)
			}
		}
	}
}
