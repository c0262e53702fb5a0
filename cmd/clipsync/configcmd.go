package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/and161185/clipsync/internal/config"
)

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a config file with the default settings",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipLoad: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := c.cfgFile
			if path == "" {
				path = config.DefaultPath()
			}
			if err := config.WriteDefaults(path, force); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			b, err := yaml.Marshal(effective(c.cfg))
			if err != nil {
				return err
			}
			_, err = c.out.Write(b)
			return err
		},
	}

	cmd.AddCommand(initCmd, show)
	return cmd
}

// effective mirrors the config keys, with secrets redacted.
func effective(cfg config.Config) map[string]any {
	return map[string]any{
		"data_dir": cfg.DataDir,
		"storage":  map[string]any{"backend": cfg.Storage},
		"log":      map[string]any{"level": cfg.LogLevel, "file": cfg.LogFile},
		"remote": map[string]any{
			"addr":      cfg.Remote.Addr,
			"token":     redact(cfg.Remote.Token),
			"insecure":  cfg.Remote.Insecure,
			"cacert":    cfg.Remote.CACert,
			"page_size":  cfg.Remote.PageSize,
			"batch_size": cfg.Remote.BatchSize,
		},
		"sync": map[string]any{
			"interval":           cfg.Sync.Interval.String(),
			"timeout":            cfg.Sync.Timeout.String(),
			"initial_page_limit": cfg.Sync.InitialPageLimit,
			"passphrase":         redact(cfg.Sync.Passphrase),
		},
		"retention": map[string]any{
			"max_age_days": cfg.Retention.MaxAgeDays,
			"max_items":    cfg.Retention.MaxItems,
		},
		"inbox": map[string]any{"dir": cfg.InboxDir},
	}
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "<redacted>"
}
