package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	fashionextractor "github.com/luizh3/fashion-extractor-api"
	"github.com/luizh3/fashion-extractor-api/internal/config"
	"github.com/luizh3/fashion-extractor-api/internal/logging"
	"github.com/luizh3/fashion-extractor-api/internal/utils"
	"github.com/luizh3/fashion-extractor-api/pkg/processing"
)

func main() {
	var configPath, in, outDir string
	var serve, debug bool

	flag.StringVar(&configPath, "config", "", "config file (default: config.yaml, then ~/.config/fashion-extractor/config.yaml)")
	flag.BoolVar(&serve, "serve", false, "run the HTTP API")
	flag.StringVar(&in, "in", "", "input image, directory of images or URL (jpg/png/webp)")
	flag.StringVar(&outDir, "out", "out", "output directory for crops and reports")
	flag.BoolVar(&debug, "debug", false, "write region overlay images")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Caller: cfg.Logging.Caller})

	if !serve && in == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -serve [-config file] | -in image|dir|URL [-out dir] [-debug]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}
	if !serve {
		cfg.Output.StaticDir = outDir
		cfg.Output.DebugOverlay = cfg.Output.DebugOverlay || debug
	}

	if err := run(cfg, serve, in, outDir); err != nil {
		logging.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run(cfg *config.Config, serve bool, in, outDir string) error {
	svc, err := fashionextractor.New(cfg)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serve {
		return runServer(ctx, svc)
	}
	return runCLI(ctx, svc, in, outDir)
}

func runServer(ctx context.Context, svc *fashionextractor.Service) error {
	cfg := svc.Config()
	if err := utils.EnsureDir(cfg.Output.StaticDir); err != nil {
		return err
	}

	if cfg.Compat.InitOnStart {
		if err := svc.Init(ctx); err != nil {
			// the API still serves region extraction; compatibility answers NotReady
			logging.Warn().Err(err).Msg("catalog embeddings unavailable")
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Str("version", fashionextractor.Version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runCLI(ctx context.Context, svc *fashionextractor.Service, in, outDir string) error {
	if err := utils.EnsureDir(outDir); err != nil {
		return err
	}
	if err := svc.Init(ctx); err != nil {
		return err
	}

	inputs := []string{in}
	if utils.DirExists(in) {
		files, err := utils.ListImageFiles(in)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no images in %s", in)
		}
		inputs = files
	}

	failed := 0
	for _, input := range inputs {
		if err := processOne(ctx, svc, input, outDir); err != nil {
			logging.Error().Err(err).Str("input", input).Msg("analysis failed")
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(inputs))
	}
	return nil
}

func processOne(ctx context.Context, svc *fashionextractor.Service, input, outDir string) error {
	cfg := svc.Config()
	processor := processing.NewProcessor()

	img, err := processor.LoadImageSmart(ctx, input)
	if err != nil {
		return err
	}

	res, err := svc.Analyzer().AnalyzeComplete(ctx, img)
	if err != nil {
		return err
	}
	log := logging.With("cli").With().Str("input", input).Logger()
	if !res.Success {
		log.Warn().Str("reason", res.Error).Msg("no person detected")
	}

	if cfg.Output.DebugOverlay && res.Detection != nil && res.Success {
		format := strings.ToLower(cfg.Output.DebugFormat)
		name := strings.TrimSuffix(filepath.Base(utils.ReportFilename(input, outDir)), "_report.json")
		path := filepath.Join(outDir, fmt.Sprintf("%s_debug.%s", name, format))
		overlay := processor.CreateDebugOverlay(img, res.Detection.Detection)
		if err := processor.SaveImage(overlay, path, format, cfg.Output.JPEGQuality, false); err != nil {
			log.Warn().Err(err).Msg("debug overlay save failed")
		} else {
			log.Info().Str("path", path).Msg("wrote debug overlay")
		}
	}

	report, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	reportPath := utils.ReportFilename(input, outDir)
	if err := os.WriteFile(reportPath, report, 0o644); err != nil {
		return err
	}

	ev := log.Info().Str("report", reportPath).Int("parts", len(res.Classifications))
	if res.Compatibility != nil {
		ev = ev.Float64("compatibility", res.Compatibility.Score).Str("rating", string(res.Compatibility.Rating))
	}
	ev.Msg("analysis written")
	return nil
}
