// Package notify implementa ports.Notifier sobre stdout.
package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/predictor/internal/domain"
)

// Console implementa ports.Notifier.
type Console struct {
	out io.Writer
	now func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, now: time.Now}
}

// ScanSummary imprime el resultado de un ciclo de escaneo: una línea
// compacta si no hubo candidatos, la tabla completa si los hubo.
func (c *Console) ScanSummary(tier string, candidates []domain.TradeCandidate) {
	now := c.now().Format("15:04:05")

	if len(candidates) == 0 {
		fmt.Fprintf(c.out, "[%s][%s] no tradeable markets this cycle\n", now, tier)
		return
	}

	executed, skipped := splitByAction(candidates)
	fmt.Fprintf(c.out, "\n[%s][%s] %d evaluated — %d executed, %d skipped\n",
		now, tier, len(candidates), len(executed), len(skipped))

	if len(executed) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Market", "Side", "Price", "AdjP", "Conf", "Edge", "Size", "Score", "Cluster")
		for _, cand := range executed {
			table.Append(
				truncate(cand.Market.Question, 38),
				string(cand.Side),
				fmt.Sprintf("%.3f", cand.MarketPrice),
				fmt.Sprintf("%.3f", cand.AdjustedProbability),
				fmt.Sprintf("%.2f", cand.AdjustedConfidence),
				fmt.Sprintf("%+.3f", cand.CalculatedEdge),
				fmt.Sprintf("$%.2f", cand.PositionSize),
				fmt.Sprintf("%.4f", cand.Score),
				shortCluster(cand.MarketClusterID),
			)
		}
		table.Render()
	}

	if len(skipped) > 0 {
		reasons := make(map[string]int)
		for _, cand := range skipped {
			reasons[cand.SkipReason]++
		}
		var sb strings.Builder
		sb.WriteString("  skips:")
		for reason, n := range reasons {
			fmt.Fprintf(&sb, " %s=%d", reason, n)
		}
		fmt.Fprintln(c.out, sb.String())
	}
}

// DailySummary imprime el resumen de actividad del día.
func (c *Console) DailySummary(stats domain.DailyStats) {
	fmt.Fprintf(c.out, "\n========================================\n")
	fmt.Fprintf(c.out, "  DAILY SUMMARY — %s [%s]\n", stats.Date, stats.Mode)
	fmt.Fprintf(c.out, "========================================\n")
	fmt.Fprintf(c.out, "  Trades executed:   %d\n", stats.TradesExecuted)
	fmt.Fprintf(c.out, "  Trades resolved:   %d\n", stats.TradesResolved)
	fmt.Fprintf(c.out, "  Skips recorded:    %d\n", stats.Skips)
	fmt.Fprintf(c.out, "  Realized PnL:      $%+.2f\n", stats.RealizedPnL)
	fmt.Fprintf(c.out, "  Open exposure:     $%.2f\n", stats.OpenExposure)
	fmt.Fprintf(c.out, "  Bankroll:          $%.2f\n", stats.Bankroll)
	fmt.Fprintf(c.out, "  API cost:          $%.4f\n", stats.APICostUSD)
	if stats.ParseFailures > 0 {
		fmt.Fprintf(c.out, "  Parse failures:    %d\n", stats.ParseFailures)
	}
	fmt.Fprintln(c.out)
}

func splitByAction(candidates []domain.TradeCandidate) (executed, skipped []domain.TradeCandidate) {
	for _, cand := range candidates {
		if cand.Side == domain.SideSkip {
			skipped = append(skipped, cand)
		} else {
			executed = append(executed, cand)
		}
	}
	return executed, skipped
}

func shortCluster(id string) string {
	if id == "" {
		return "-"
	}
	return truncate(id, 16)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
