package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wha7/wha7"
	"github.com/wha7/wha7/internal/config"
	"github.com/wha7/wha7/internal/httpserver"
	"github.com/wha7/wha7/internal/logger"
	"github.com/wha7/wha7/internal/telegram"
	"github.com/wha7/wha7/internal/utils"
	"github.com/wha7/wha7/pkg/pipeline"
	"github.com/wha7/wha7/pkg/processing"
	"github.com/wha7/wha7/pkg/types"
)

func main() {
	var configPath, in, sender, debugDir, writeConfig string
	var serve, bot, asJSON, showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (json|yaml), default ~/.config/wha7/config.json when present; environment variables override it")
	flag.StringVar(&in, "in", "", "comma separated image paths, directories or URLs to process as one message")
	flag.StringVar(&sender, "sender", "cli", "sender id recorded with the message")
	flag.StringVar(&debugDir, "debug-dir", "", "write region overlays and crops to this directory")
	flag.BoolVar(&asJSON, "json", false, "print the full result as JSON instead of the reply text")
	flag.BoolVar(&serve, "serve", false, "run the HTTP API")
	flag.BoolVar(&bot, "telegram", false, "run the Telegram bot")
	flag.StringVar(&writeConfig, "write-config", "", "write the defaults merged with -config to this path and exit")
	flag.BoolVar(&showVersion, "version", false, "print the version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(wha7.Version)
		return
	}

	if configPath == "" {
		if p := config.GetConfigPath(); utils.FileExists(p) {
			configPath = p
		}
	}

	if writeConfig != "" {
		// file settings only, so secrets from the environment are not persisted
		fileCfg := config.Default()
		if configPath != "" {
			var err error
			if fileCfg, err = config.LoadFromFile(configPath); err != nil {
				log.Fatal(err)
			}
		}
		if err := fileCfg.SaveToFile(writeConfig); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", writeConfig)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if in == "" && !serve && !bot {
		log.Fatalf("usage: %s -in photo.jpg[,URL,...] | -serve | -telegram [-config file] [-debug-dir dir]", filepath.Base(os.Args[0]))
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wha7.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to build pipeline", zap.Error(err))
	}
	defer app.Close()

	if in != "" {
		if err := runOnce(ctx, app, in, sender, debugDir, asJSON); err != nil {
			zl.Fatal("processing failed", zap.Error(err))
		}
		return
	}

	if err := runServices(ctx, app, cfg, serve, bot, zl); err != nil {
		zl.Fatal("service stopped", zap.Error(err))
	}
}

func runOnce(ctx context.Context, app *wha7.App, in, sender, debugDir string, asJSON bool) error {
	refs, err := collectInputs(in)
	if err != nil {
		return err
	}

	res, err := app.Process(ctx, types.InboundMessage{Sender: sender, Images: refs})
	if err != nil {
		return err
	}

	if asJSON {
		js, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(js))
	} else {
		for _, line := range pipeline.FormatReply(res) {
			fmt.Println(line)
		}
	}

	if debugDir != "" {
		return writeDebug(ctx, app, refs, res, debugDir)
	}
	return nil
}

// collectInputs expands the -in flag into image references. Local files are read
// into memory; URLs are left for the pipeline to fetch.
func collectInputs(in string) ([]types.ImageRef, error) {
	var refs []types.ImageRef
	for _, item := range strings.Split(in, ",") {
		item = strings.TrimSpace(item)
		switch {
		case item == "":
			continue
		case strings.HasPrefix(item, "http://") || strings.HasPrefix(item, "https://"):
			refs = append(refs, types.ImageRef{URL: item, Name: item})
		case utils.DirExists(item):
			files, err := utils.ListImageFiles(item)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				ref, err := fileRef(f)
				if err != nil {
					return nil, err
				}
				refs = append(refs, ref)
			}
		default:
			ref, err := fileRef(item)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return nil, errors.New("no images found in -in")
	}
	return refs, nil
}

func fileRef(path string) (types.ImageRef, error) {
	if !utils.IsImageFile(path) {
		return types.ImageRef{}, fmt.Errorf("%s: unsupported image type", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ImageRef{}, err
	}
	return types.ImageRef{Data: data, ContentType: utils.ContentTypeFor(path), Name: path}, nil
}

// writeDebug saves one region overlay per input and one file per candidate crop.
func writeDebug(ctx context.Context, app *wha7.App, refs []types.ImageRef, res *pipeline.Result, dir string) error {
	if err := utils.EnsureDir(dir); err != nil {
		return err
	}

	for i, ref := range refs {
		var (
			img image.Image
			err error
		)
		if ref.URL == "" {
			img, err = app.Processor.LoadImage(ref.Name)
		} else {
			img, _, err = app.Processor.Load(ctx, ref)
		}
		if err != nil {
			log.Printf("debug: skip %s: %v", ref.Name, err)
			continue
		}
		src := types.SourceImage{Index: i, Ref: ref, Image: img, PublicURL: ref.URL}
		overlay := processing.RegionOverlay(img, app.Detector.Detect(ctx, src), app.Detector.Threshold())

		name := ref.Name
		if ref.URL != "" {
			name = fmt.Sprintf("image%03d", i+1)
		}
		path := utils.GenerateOutputFilename(name, dir, fmt.Sprintf("%03d_", i+1), "_regions", "png")
		if err := app.Processor.SaveImage(overlay, path, "png", 0, false); err != nil {
			log.Printf("debug overlay save failed: %v", err)
		} else {
			log.Printf("wrote %s", path)
		}
	}

	for i, c := range res.Candidates {
		if c.Crop == nil {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("crop_%03d_%s.png", i+1, utils.SanitizeFilename(c.SearchTerm())))
		if err := app.Processor.SaveImage(c.Crop, path, "png", 0, false); err != nil {
			log.Printf("crop save %s failed: %v", path, err)
		} else {
			log.Printf("wrote %s", path)
		}
	}

	js, _ := json.MarshalIndent(res, "", "  ")
	return os.WriteFile(filepath.Join(dir, "result.json"), js, 0o644)
}

func runServices(ctx context.Context, app *wha7.App, cfg *config.Config, serve, bot bool, zl *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	if serve {
		srv := httpserver.New(cfg.Server.Addr, app, cfg.Server.MaxUploadMB, zl.Named("http"))
		g.Go(srv.Run)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if bot {
		if cfg.Telegram.Token == "" {
			return errors.New("telegram.token is not set")
		}
		b, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.PollTimeout, cfg.Telegram.Debug, app, zl.Named("telegram"))
		if err != nil {
			return err
		}
		g.Go(func() error { return b.Run(ctx) })
	}

	return g.Wait()
}
