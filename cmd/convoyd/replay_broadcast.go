package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/appconfig"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
)

var replayBroadcastCmd = &cobra.Command{
	Use:   "replay-broadcast <broadcast-id>",
	Short: "Re-send an existing broadcast to its resolved audience",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := mustLoadConfig(ctx)

		p, err := buildPlatform(ctx, cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		// A replayed broadcast needs live channel adapters to actually
		// deliver; it shares the same registration path serve uses, minus
		// the long-running listen loops this one-shot command never starts.
		if cfg.Channels.TelegramBotToken != "" {
			if _, err := registerTelegram(cfg, p.transportHub, p); err != nil {
				return fmt.Errorf("registering telegram adapter: %w", err)
			}
		}
		if cfg.Channels.InstagramAccessToken != "" {
			registerInstagram(cfg, p.transportHub)
		}
		registerWeb(p.transportHub, p)
		if cfg.StoreBackend == appconfig.StorePostgres {
			if err := registerWhatsApp(ctx, cfg, p.transportHub, p); err != nil {
				obslog.WarnCF("convoyd.replay-broadcast", "whatsapp channel not available", map[string]interface{}{"error": err.Error()})
			}
		}

		id := args[0]
		result, err := p.broadcast.Send(ctx, id)
		if err != nil {
			return err
		}
		obslog.InfoCF("convoyd.replay-broadcast", "broadcast replayed", map[string]interface{}{
			"broadcast_id": result.ID,
			"status":       string(result.Status),
			"sent_count":   result.Sent,
		})
		return nil
	},
}
