// Package report renders trial records, summaries and rankings for the
// operator, and exports them as YAML.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/specialistvlad/manetbench/internal/stats"
	"github.com/specialistvlad/manetbench/internal/trial"
)

const rule = "========================================"

// TrialLine is the streamed one-line result of a trial.
func TrialLine(rec trial.Record) string {
	line := fmt.Sprintf("seed %d → PDR %.2f%%", rec.Seed, rec.Metrics.DeliveryRatio)
	if rec.Failed() {
		cause := rec.Result.Outcome.String()
		if rec.Stage != trial.StageExecute && rec.Err != nil {
			cause = rec.Err.Error()
		}
		line += fmt.Sprintf(" (failed at %s: %s)", rec.Stage, cause)
		if rec.Result.EnvironmentFault {
			line += ", check engine libraries"
		}
	}
	return line
}

// WriteSummary prints the full summary block of one protocol.
func WriteSummary(w io.Writer, s stats.Summary) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "RESULTS REPORT (%s)\n", s.Protocol)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Runs             : %d (%d valid)\n", s.Total, s.Valid)
	if !s.HasValid() {
		fmt.Fprintln(w, "No valid results")
	} else {
		fmt.Fprintf(w, "Mean PDR         : %.2f%%\n", s.Mean)
		fmt.Fprintf(w, "Std Dev          : %.2f\n", s.StdDev)
		fmt.Fprintf(w, "Min / Max        : %.2f%% / %.2f%%\n", s.Min, s.Max)
	}
	fmt.Fprintf(w, "Raw values       : %s\n", joinFloats(s.Samples))
	fmt.Fprintln(w, rule)
}

// CompactLine is the one-line summary used in comparison mode.
func CompactLine(s stats.Summary) string {
	if !s.HasValid() {
		return fmt.Sprintf("%s: no valid results (0/%d)", s.Protocol, s.Total)
	}
	return fmt.Sprintf("%s: mean %.2f%% ± %.2f (%d/%d valid)", s.Protocol, s.Mean, s.StdDev, s.Valid, s.Total)
}

// WriteRanking prints the ranked comparison table.
func WriteRanking(w io.Writer, c stats.Comparison) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "PROTOCOL RANKING (by mean PDR)")
	fmt.Fprintln(w, rule)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tProtocol\tMean\tStd Dev\tValid")
	for i, s := range c.Ranked {
		if !s.HasValid() {
			fmt.Fprintf(tw, "%d\t%s\t-\t-\t0/%d\n", i+1, s.Protocol, s.Total)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%.2f%%\t%.2f\t%d/%d\n", i+1, s.Protocol, s.Mean, s.StdDev, s.Valid, s.Total)
	}
	tw.Flush()
	fmt.Fprintln(w, rule)
}

// Warnings flags successful trials that sent or received nothing. Trials are
// named protocol/seed since a comparison reuses seeds across protocols.
func Warnings(recs []trial.Record) []string {
	var noneSent, noneReceived []string
	for _, r := range recs {
		if r.Failed() {
			continue
		}
		switch {
		case r.Metrics.Sent == 0:
			noneSent = append(noneSent, trialName(r))
		case r.Metrics.Received == 0:
			noneReceived = append(noneReceived, trialName(r))
		}
	}

	var out []string
	if len(noneSent) > 0 {
		out = append(out, fmt.Sprintf("WARNING: no packets were sent (seeds %s).", strings.Join(noneSent, ", ")))
	}
	if len(noneReceived) > 0 {
		out = append(out, fmt.Sprintf("WARNING: no packets received (seeds %s). Try a longer duration or a different node count.", strings.Join(noneReceived, ", ")))
	}
	return out
}

func trialName(r trial.Record) string {
	return fmt.Sprintf("%s/%d", r.Protocol, r.Seed)
}

func joinFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%.2f", v)
	}
	return strings.Join(parts, ", ")
}
