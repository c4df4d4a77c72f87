package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mymmrac/telego"
	"github.com/spf13/cobra"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/appconfig"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/transport"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const serveComponent = "convoyd.serve"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server, channel adapters, and scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// obslogWA adapts internal/obslog to whatsmeow's waLog.Logger interface,
// the same shape the teacher's whatsappLogger wraps Go's log package with.
type obslogWA struct{ module string }

func (l obslogWA) Errorf(msg string, args ...interface{}) {
	obslog.ErrorCF(l.module, fmt.Sprintf(msg, args...), nil)
}
func (l obslogWA) Warnf(msg string, args ...interface{}) {
	obslog.WarnCF(l.module, fmt.Sprintf(msg, args...), nil)
}
func (l obslogWA) Infof(msg string, args ...interface{}) {
	obslog.InfoCF(l.module, fmt.Sprintf(msg, args...), nil)
}
func (l obslogWA) Debugf(msg string, args ...interface{}) {
	obslog.DebugCF(l.module, fmt.Sprintf(msg, args...), nil)
}
func (l obslogWA) Sub(module string) waLog.Logger {
	return obslogWA{module: l.module + "." + module}
}

// registerWhatsApp backs whatsmeow's device store with the same Postgres
// pool every other store uses, via pgx's database/sql driver, instead of
// the teacher's SQLite file (mattn/go-sqlite3 is not a pack dependency).
// It assumes an already-linked device, so the interactive QR pairing flow
// the teacher runs as a separate onboarding command is out of scope here:
// a server process restarts against a store a prior pairing populated.
func registerWhatsApp(ctx context.Context, cfg appconfig.Config, hub *transport.Hub, p *platform) error {
	if cfg.PostgresDSN == "" {
		return errors.New("whatsapp channel requires store-backend=postgres (whatsmeow device store lives in the same database)")
	}
	container, err := sqlstore.New(ctx, "pgx", cfg.PostgresDSN, obslogWA{module: "whatsapp.store"})
	if err != nil {
		return err
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return err
	}
	client := whatsmeow.NewClient(device, obslogWA{module: "whatsapp.client"})
	if client.Store.ID == nil {
		return errors.New("whatsapp device is not paired; link a device out of band before starting convoyd")
	}

	adapter := transport.NewWhatsAppAdapter(client, p.onInbound)
	hub.Register(types.ChannelWhatsApp, adapter)

	if err := client.Connect(); err != nil {
		return err
	}
	return nil
}

func registerTelegram(cfg appconfig.Config, hub *transport.Hub, p *platform) (*transport.TelegramAdapter, error) {
	bot, err := telego.NewBot(cfg.Channels.TelegramBotToken)
	if err != nil {
		return nil, err
	}
	adapter := transport.NewTelegramAdapter(bot, p.onInbound)
	hub.Register(types.ChannelTelegram, adapter)
	return adapter, nil
}

func registerInstagram(cfg appconfig.Config, hub *transport.Hub) {
	adapter := transport.NewInstagramAdapter(cfg.Channels.InstagramPageID, cfg.Channels.InstagramAccessToken, cfg.Channels.InstagramVerifyToken)
	hub.Register(types.ChannelInstagram, adapter)
}

func registerWeb(hub *transport.Hub, p *platform) *transport.WebAdapter {
	adapter := transport.NewWebAdapter(p.onInbound)
	hub.Register(types.ChannelWeb, adapter)
	return adapter
}

func runServe(ctx context.Context) error {
	cfg := mustLoadConfig(ctx)

	p, err := buildPlatform(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	var telegramAdapter *transport.TelegramAdapter
	if cfg.Channels.TelegramBotToken != "" {
		telegramAdapter, err = registerTelegram(cfg, p.transportHub, p)
		if err != nil {
			return err
		}
	}
	if cfg.Channels.InstagramAccessToken != "" {
		registerInstagram(cfg, p.transportHub)
	}
	webAdapter := registerWeb(p.transportHub, p)
	p.httpServer.SetWebAdapter(webAdapter)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Channels.WhatsAppDeviceStorePath != "" || cfg.StoreBackend == appconfig.StorePostgres {
		if err := registerWhatsApp(runCtx, cfg, p.transportHub, p); err != nil {
			obslog.WarnCF(serveComponent, "whatsapp channel not started", map[string]interface{}{"error": err.Error()})
		}
	}

	if telegramAdapter != nil {
		go func() {
			if err := telegramAdapter.Listen(runCtx); err != nil && runCtx.Err() == nil {
				obslog.ErrorCF(serveComponent, "telegram long-poll loop exited", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	go runScheduler(runCtx, p, cfg.ScheduledPollInterval)

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: p.httpServer,
	}
	go func() {
		obslog.InfoCF(serveComponent, "http server listening", map[string]interface{}{"addr": cfg.HTTPAddr})
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.ErrorCF(serveComponent, "http server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	obslog.InfoCF(serveComponent, "shutting down", nil)
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func runScheduler(ctx context.Context, p *platform, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.scheduler.PollDue(ctx, now)
		}
	}
}
