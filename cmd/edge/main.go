package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"intellilot/internal/edge"
	"intellilot/pkg/camera"
	"intellilot/pkg/log"

	"github.com/joho/godotenv"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Warnf("No .env file loaded: %v", err)
	}

	configPath := flag.String("config", "", "path to the edge fleet config file")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("EDGE_CONFIG")
	}
	if path == "" {
		path = "edge.json"
	}

	cfg, err := edge.LoadConfig(path)
	if err != nil {
		logger.Fatalf("Failed to load edge config %s: %v", path, err)
	}

	session := edge.NewSession(cfg.ServerURL, cfg.Username, cfg.Password)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, cameraCfg := range cfg.Cameras {
		source, err := camera.New(cameraCfg.Source)
		if err != nil {
			logger.Fatalf("Failed to build camera source %s: %v", cameraCfg.ID, err)
		}

		worker := edge.NewWorker(cameraCfg, source, session, cfg.ServerURL, edge.WithNodeID(cfg.NodeID))
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			logger.Infof("Camera worker %s started", id)
			worker.Run(ctx)
			logger.Infof("Camera worker %s stopped", id)
		}(cameraCfg.ID)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down camera workers...")
	cancel()
	wg.Wait()
}
