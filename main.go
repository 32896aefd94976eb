/*
Gridmap tracks the occupancy map of a small robot exploring a 15x20 arena and relays it between
the robot and an operator. The robot connects over a websocket and streams its pose, explored
cells, obstacles and sighted images; the operator watches the map page and drives the session
over http (start, waypoint, manual cell edits, motion commands). Map state lives in a single
controller goroutine; everything else talks to it over channels.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gridmap/config"
	"gridmap/controller"
	"gridmap/grid_world"
	"gridmap/logger"
	"gridmap/models"
	"gridmap/server"
	"gridmap/server/peerlink"
	"gridmap/settings"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

var (
	configPath *string
	dbg        *bool
	host       *string
	port       *string
)

func parseFlags() {
	configPath = flag.String("config", "./config.yaml", "path to the config document")
	dbg = flag.Bool("debug", false, "debug logging")
	host = flag.String("host", "", "the host ip, overrides the config")
	port = flag.String("port", "", "the host port, overrides the config")
	flag.Parse()
}

// loadConfig reads the config document, falling back to defaults if there is none.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromYaml(*configPath)
	if err != nil {
		if _, statErr := os.Stat(*configPath); !errors.Is(statErr, os.ErrNotExist) {
			return nil, err
		}
		logger.Log.WithField("path", *configPath).Info("no config document, using defaults")
		cfg = config.Default()
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	return cfg, nil
}

func newStore(ctx context.Context, cfg config.SettingsConfig) (settings.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return settings.NewMemoryStore(), nil
	case "redis":
		password := cfg.RedisPassword
		if env := os.Getenv("REDIS_PASSWORD"); env != "" {
			password = env
		}
		client, err := settings.DialRedis(ctx, cfg.RedisAddr, password, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return settings.NewRedisStore(client, cfg.KeyPrefix), nil
	}
	return nil, fmt.Errorf("unknown settings backend %q", cfg.Backend)
}

func runApp() (err error) {
	var cfg *config.Config
	if cfg, err = loadConfig(); err != nil {
		return
	}
	mode, err := controller.ParseMode(cfg.Mode)
	if err != nil {
		return
	}

	appCtx, appCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer appCancel()

	store, err := newStore(appCtx, cfg.Settings)
	if err != nil {
		return
	}

	end := models.Coord{X: cfg.Map.End.X, Y: cfg.Map.End.Y}.Board()
	if !end.FootprintFits() {
		return fmt.Errorf("end %v: %w", end, grid_world.ErrOutOfBounds)
	}
	ctrl := controller.New(store, mode, grid_world.WithEnd(end))

	srv := server.NewServer(
		cfg.Addr(),
		ctrl,
		peerlink.Config{
			WriteWait:       cfg.Link.WriteWait,
			PingInterval:    cfg.Link.PingInterval,
			PongWait:        cfg.Link.PongWait,
			PublishInterval: cfg.Link.PublishInterval,
			MaxMessageSize:  cfg.Link.MaxMessageSize,
		})

	group, groupCtx := errgroup.WithContext(appCtx)
	group.Go(func() error {
		return ctrl.Run(groupCtx)
	})
	group.Go(func() error {
		return srv.Serve(groupCtx)
	})
	return group.Wait()
}

func main() {
	parseFlags()
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()
	logger.Init(*dbg)

	if err := runApp(); err != nil {
		logger.Log.WithError(err).Fatal("gridmap exited")
	}
}
