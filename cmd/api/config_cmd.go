package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"chat-gateway/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfigLoader().LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderConfig(cfg))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// renderConfig monta a tabela de configuração com segredos mascarados
func renderConfig(cfg *config.Config) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Variable", "Value"})

	t.AppendRows([]table.Row{
		{"SERVER_PORT", cfg.ServerPort},
		{"GIN_MODE", cfg.GinMode},
		{"LOG_LEVEL", cfg.LogLevel},
		{"LOG_FORMAT", cfg.LogFormat},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"N8N_WEBHOOK_URL", orUnset(cfg.WebhookURL)},
		{"N8N_API_KEY", maskSecret(cfg.WebhookAPIKey)},
		{"UPSTREAM_TIMEOUT", strconv.Itoa(cfg.UpstreamTimeout) + "s"},
		{"UPSTREAM_MAX_RPS", strconv.FormatFloat(cfg.UpstreamMaxRPS, 'f', -1, 64)},
		{"UPSTREAM_BURST", cfg.UpstreamBurst},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"RATE_LIMIT_MAX", cfg.RateLimitMax},
		{"RATE_LIMIT_ABUSE_MARGIN", cfg.AbuseMargin},
		{"RATE_WINDOW", strconv.Itoa(cfg.RateWindow) + "s"},
		{"SWEEP_INTERVAL", strconv.Itoa(cfg.SweepInterval) + "s"},
		{"STORAGE_TYPE", cfg.StorageType},
	})
	if cfg.StorageType == "redis" {
		t.AppendRows([]table.Row{
			{"REDIS_HOST", cfg.RedisHost},
			{"REDIS_PORT", cfg.RedisPort},
			{"REDIS_PASSWORD", maskSecret(cfg.RedisPassword)},
			{"REDIS_DB", cfg.RedisDB},
		})
	}
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"CHAT_SIGNING_SECRET", maskSecret(cfg.SigningSecret)},
		{"ADMIN_ENABLED", cfg.AdminEnabled},
	})

	return t.Render()
}

func maskSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	return "********"
}

func orUnset(value string) string {
	if value == "" {
		return "(unset)"
	}
	return value
}
