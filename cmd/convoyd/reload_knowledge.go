package main

import (
	"github.com/spf13/cobra"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/knowledge"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
)

var reloadKnowledgeCmd = &cobra.Command{
	Use:   "reload-knowledge",
	Short: "Reload the Knowledge Index from its configured root",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig(cmd.Context())
		if cfg.KnowledgeRoot == "" {
			obslog.WarnCF("convoyd.reload-knowledge", "knowledge-root is not configured, nothing to load", nil)
			return nil
		}
		idx := knowledge.NewIndex(cfg.KnowledgeRoot)
		if err := idx.Load(); err != nil {
			return err
		}
		obslog.InfoCF("convoyd.reload-knowledge", "knowledge index reloaded", map[string]interface{}{"root": cfg.KnowledgeRoot})
		return nil
	},
}
