package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/realfinder/verifier/src/verification/types"
)

var (
	passColor  = color.New(color.FgGreen)
	failColor  = color.New(color.FgRed, color.Bold)
	errorColor = color.New(color.FgYellow)
)

func outcomeColor(o types.Outcome) *color.Color {
	switch o {
	case types.Approve:
		return passColor
	case types.Reject:
		return failColor
	default:
		return errorColor
	}
}

func statusLabel(s types.Status) string {
	switch s {
	case types.StatusPass:
		return passColor.Sprint(s)
	case types.StatusFail:
		return failColor.Sprint(s)
	default:
		return errorColor.Sprint(s)
	}
}

// writeDecision renders one row per check followed by the decision line.
func writeDecision(w io.Writer, d *types.Decision) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Check", "Status", "Score", "Time", "Findings"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	names := make([]string, 0, len(d.PerCheck))
	for name := range d.PerCheck {
		names = append(names, name)
	}
	sort.Strings(names)

	var rows [][]string
	for _, name := range names {
		res := d.PerCheck[name]
		rows = append(rows, []string{
			name,
			statusLabel(res.Status),
			strconv.FormatFloat(res.ConfidenceScore, 'f', 2, 64),
			fmt.Sprintf("%.2fs", res.ExecutionTime),
			findingCodes(res.Findings),
		})
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "\n%s %s (score %.4f, id %s)\n",
		d.SubjectID, outcomeColor(d.Decision).Sprint(d.Decision), d.CombinedScore, d.ID); err != nil {
		return err
	}
	for _, r := range d.Reasons {
		if _, err := fmt.Fprintf(w, "  - %s\n", r); err != nil {
			return err
		}
	}
	return nil
}

func findingCodes(fs []types.Finding) string {
	if len(fs) == 0 {
		return "-"
	}
	codes := make([]string, 0, len(fs))
	for _, f := range fs {
		codes = append(codes, f.Code)
	}
	return strings.Join(codes, ", ")
}
