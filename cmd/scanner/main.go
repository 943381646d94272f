package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"wavescan/config"
	"wavescan/internal/logger"
	"wavescan/internal/scan"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[scanner] .env load: %v", err)
	}

	cfg := config.Load()
	logger.Init("scanner", logger.Options{File: cfg.LogFile, Level: cfg.LogLevel})

	instruments, err := scan.LoadInstruments(cfg.InstrumentsFile)
	if err != nil {
		log.Fatalf("[scanner] instruments load failed: %v", err)
	}
	log.Printf("[scanner] loaded %d instruments from %s", len(instruments), cfg.InstrumentsFile)

	svc, err := scan.New(cfg, instruments)
	if err != nil {
		log.Fatalf("[scanner] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[scanner] fatal: %v", err)
	}
}
