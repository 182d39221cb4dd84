package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bosley/murmur/model"
	"github.com/bosley/murmur/scribe"
	"github.com/bosley/murmur/source"
)

func main() {
	// .env is optional; the environment wins when both are set.
	godotenv.Load()

	httpAddr := flag.String("addr", ":8444", "HTTP listen address (host:port)")
	spoolDir := flag.String("spool", "spool", "Directory watched for dropped WAV recordings")
	window := flag.Float64("window", 5, "Transcription window length in seconds")
	language := flag.String("lang", "en", "Default transcription language")
	modelName := flag.String("model", "", "Model to load at startup (whisper, openai)")
	modelPath := flag.String("model-path", "", "Path to whisper model weights")
	openaiVariant := flag.String("openai-variant", "", "OpenAI transcription model variant")
	listDevices := flag.Bool("list-devices", false, "List available audio capture devices")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *listDevices {
		devices, err := source.ListDevices()
		if err != nil {
			slog.Error("Failed to list audio devices", "error", err)
			os.Exit(1)
		}

		fmt.Println("Available audio capture devices:")
		for i, device := range devices {
			fmt.Printf("[%d] %s\n", i, device.Name)
			fmt.Printf("    Max Input Channels: %d\n", device.MaxInputChannels)
			fmt.Printf("    Default Sample Rate: %f\n", device.DefaultSampleRate)
			if device.Loopback {
				fmt.Println("    Loopback capable")
			}
			fmt.Println()
		}
		return
	}

	models := model.NewRegistry()
	models.Register("whisper", model.NewWhisper)
	models.Register("openai", model.NewOpenAI)

	service := scribe.New(scribe.Config{
		WindowSeconds:   *window,
		HTTPAddr:        *httpAddr,
		SpoolDir:        *spoolDir,
		DefaultLanguage: *language,
	}, models)
	defer service.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Debug("Received shutdown signal")
		cancel()
	}()

	if *modelName != "" {
		cfg := model.Config{
			ModelPath: *modelPath,
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			Variant:   *openaiVariant,
		}
		if err := service.LoadModel(ctx, *modelName, cfg); err != nil {
			slog.Error("Failed to load model", "model", *modelName, "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("No model loaded, use /api/models/load before starting streams")
	}

	if err := service.Serve(ctx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
