package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/server"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to a YAML config file")
	externalHost := flag.String("external-host", "", "Host (and port) clients use to reach the bridge")
	port := flag.Int("port", 0, "Public listen port")
	targetPort := flag.Int("target-port", 0, "Browser remote debugging port")
	insecureWS := flag.Bool("insecure-ws", false, "Use ws:// instead of wss:// in the debugger URL")
	dev := flag.Bool("dev", false, "Development mode (console logs, debug level)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags given explicitly override file and environment values.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "external-host":
			cfg.Server.ExternalHost = *externalHost
		case "port":
			cfg.Server.Port = *port
		case "target-port":
			cfg.Target.Port = *targetPort
		case "insecure-ws":
			cfg.Target.InsecureWebSocket = *insecureWS
		case "dev":
			cfg.Logging.Development = *dev
			if *dev {
				cfg.Logging.Level = "debug"
			}
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Development = cfg.Logging.Development
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	srv := server.New(cfg, logger)
	if err := srv.Start(); err != nil {
		logger.Error("Failed to start", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigChan:
		logger.Info("Received signal", zap.String("signal", sig.String()))
	case err := <-srv.Err():
		logger.Error("Server error", zap.Error(err))
		exitCode = 1
	}

	if err := srv.Stop(); err != nil {
		exitCode = 1
	}
	logger.Sync()
	os.Exit(exitCode)
}
