package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"perpflow/internal/config"
)

// ConfigSummaryLines returns human readable lines describing the loaded app
// config. Credentials are reported by presence only.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Log level: %s", cfg.LogLevel),
	}

	switch {
	case cfg.Exchange.Value != nil && cfg.Exchange.File != "":
		lines = append(lines, fmt.Sprintf("Exchange config: %s", cfg.Exchange.File))
	case cfg.Exchange.Value != nil:
		lines = append(lines, "Exchange config: inline")
	default:
		lines = append(lines, "Exchange config: not configured")
		return lines
	}

	exCfg := cfg.Exchange.Value
	if exCfg.Default != "" {
		lines = append(lines, fmt.Sprintf("Default exchange: %s", exCfg.Default))
	}
	names := make([]string, 0, len(exCfg.Exchanges))
	for name := range exCfg.Exchanges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ex := exCfg.Exchanges[name]
		lines = append(lines, fmt.Sprintf(
			"Exchange %s: type=%s credentials=%s poll=%s/%s slippage=%dbps",
			name, ex.Type,
			presence(strings.TrimSpace(ex.APIKey) != "" && strings.TrimSpace(ex.APISecret) != ""),
			ex.MarketPollInterval, ex.PrivatePollInterval, ex.SlippageBps,
		))
	}
	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}
