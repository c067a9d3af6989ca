package metric

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
)

// WriteSummary renders the per-symbol statistics as a text table followed by
// a histogram of trade R-multiples.
func (a *Aggregator) WriteSummary(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Symbol", "Trades", "Win", "Loss", "% Win", "Payoff", "Pr Fact.", "SQN", "Profit"})
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)

	var (
		wins, losses int
		profit       float64
	)

	rMultiples := make([]float64, 0)
	for _, symbol := range a.symbols {
		summary := a.summaries[symbol]
		table.Append([]string{
			summary.Symbol,
			strconv.Itoa(summary.Trades()),
			strconv.Itoa(len(summary.Wins)),
			strconv.Itoa(len(summary.Losses)),
			fmt.Sprintf("%.1f %%", summary.WinRate()*100),
			fmt.Sprintf("%.3f", summary.Payoff()),
			fmt.Sprintf("%.3f", summary.ProfitFactor()),
			fmt.Sprintf("%.1f", summary.SQN()),
			fmt.Sprintf("%.2f", summary.Profit()),
		})

		wins += len(summary.Wins)
		losses += len(summary.Losses)
		profit += summary.Profit()
		rMultiples = append(rMultiples, summary.RMultiples...)
	}

	winRate := 0.0
	if wins+losses > 0 {
		winRate = float64(wins) / float64(wins+losses) * 100
	}

	table.SetFooter([]string{
		"TOTAL",
		strconv.Itoa(wins + losses),
		strconv.Itoa(wins),
		strconv.Itoa(losses),
		fmt.Sprintf("%.1f %%", winRate),
		"", "", "",
		fmt.Sprintf("%.2f", profit),
	})
	table.Render()

	if len(rMultiples) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Max drawdown: %.2f %%\n", a.MaxDrawdown()*100)
	fmt.Fprintln(w, strings.Repeat("-", 6), "R-MULTIPLES", strings.Repeat("-", 6))

	hist := histogram.Hist(15, rMultiples)
	return histogram.Fprint(w, hist, histogram.Linear(10))
}
