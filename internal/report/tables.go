package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/quantframe/decision-engine/internal/engine"
	"github.com/quantframe/decision-engine/internal/levels"
	"github.com/quantframe/decision-engine/internal/pattern"
	"github.com/quantframe/decision-engine/internal/risk"
)

// PrintStartup prints the engine configuration banner.
func PrintStartup(out io.Writer, symbol, primary string, lookback int, sessionID string) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("DECISION ENGINE")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"📊 Symbol", symbol},
		{"⏰ Primary TF", primary},
		{"🔎 Lookback", fmt.Sprintf("%d bars", lookback)},
		{"🪪 Session", sessionID},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 15, WidthMax: 15, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 40, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Fprintln(out)
}

// PrintView prints the full cycle snapshot: regime, key levels, the active
// pattern and open positions.
func PrintView(out io.Writer, v engine.View) {
	printRegime(out, v)
	printLevels(out, v.Levels)
	if v.Triangle.Active {
		printPattern(out, v.Triangle)
	}
	printPositions(out, v.Positions)
}

func printRegime(out io.Writer, v engine.View) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("MARKET REGIME")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"🧭 Regime", v.Regime.Regime.String()},
		{"🎯 Confidence", fmt.Sprintf("%.0f%%", v.Regime.Confidence*100)},
		{"💲 Price", fmt.Sprintf("%.5f", v.Price)},
		{"🕒 Updated", v.UpdatedAt.Format(time.RFC3339)},
	})

	t.Render()
	fmt.Fprintln(out)
}

func printLevels(out io.Writer, lvls []levels.KeyLevel) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("KEY LEVELS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Kind", "Price", "Touches", "Strength"})

	if len(lvls) == 0 {
		t.AppendRow(table.Row{"-", "-", "-", "-"})
	}
	for _, lv := range lvls {
		icon := "🟢"
		if lv.Kind == levels.Resistance {
			icon = "🔴"
		}
		t.AppendRow(table.Row{
			fmt.Sprintf("%s %s", icon, lv.Kind),
			fmt.Sprintf("%.5f", lv.Price),
			lv.Touches,
			fmt.Sprintf("%.2f", lv.Strength),
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	t.Render()
	fmt.Fprintln(out)
}

func printPattern(out io.Writer, tri pattern.Triangle) {
	direction := "⬇️ down"
	if tri.BreakoutUpward {
		direction = "⬆️ up"
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("CHART PATTERN")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"📐 Type", tri.Kind.String()},
		{"🎯 Confidence", fmt.Sprintf("%.0f%%", tri.Confidence*100)},
		{"📈 Breakout", fmt.Sprintf("%s (%.0f%%)", direction, tri.BreakoutProb*100)},
		{"🎯 Target", fmt.Sprintf("%.5f", tri.Target)},
		{"🛑 Stop", fmt.Sprintf("%.5f", tri.Stop)},
		{"🕰️ Forming since", tri.FormationStart.Format("2006-01-02 15:04")},
	})

	t.Render()
	fmt.Fprintln(out)
}

func printPositions(out io.Writer, positions []risk.Position) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("OPEN POSITIONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Side", "Entry", "Stop", "Target", "Size", "Regime"})

	if len(positions) == 0 {
		t.AppendRow(table.Row{"-", "-", "-", "-", "-", "-"})
	}
	for _, p := range positions {
		icon := "🟩"
		if p.Side == risk.Short {
			icon = "🟥"
		}
		t.AppendRow(table.Row{
			fmt.Sprintf("%s %s", icon, p.Side),
			fmt.Sprintf("%.5f", p.Entry),
			fmt.Sprintf("%.5f", p.Stop),
			fmt.Sprintf("%.5f", p.Target),
			fmt.Sprintf("%.2f", p.Size),
			p.EntryRegime.String(),
		})
	}

	t.Render()
	fmt.Fprintln(out)
}
