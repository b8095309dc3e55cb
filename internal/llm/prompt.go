package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rewired-gh/lotoracle/internal/analysis"
)

// BuildPrompt renders a candidate report as the oracle prompt. Candidates
// without a form/gap entry are left out of the dynamic section.
func BuildPrompt(report *analysis.CandidateReport) string {
	var sb strings.Builder
	sb.Grow(1024 + len(report.Candidates)*96)

	sb.WriteString("You are a lottery analysis expert. Predict 2 numbers by combining all of the information below.\n\n")
	sb.WriteString("CONTEXT:\n")
	fmt.Fprintf(&sb, "- Last drawn numbers: [%s]\n", joinInts(report.LastDraw.Numbers, ", "))
	if !report.Target.IsZero() {
		fmt.Fprintf(&sb, "- Target date: %s\n", report.Target.Format("02/01/2006"))
	}

	sb.WriteString("\n1. DYNAMIC ANALYSIS (candidates and their recent state):\n")
	for _, c := range report.Candidates {
		if c.FormGap == nil {
			continue
		}
		fmt.Fprintf(&sb, "- Candidate %d: (Follower score: %d) | Form: %dx/%d | Gap: %d draws\n",
			c.Number, c.Score, c.FormGap.Form, report.FormWindow, c.FormGap.Gap)
	}

	sb.WriteString("\n2. STATIC ANALYSIS (knowledge base):\n")
	if report.NoConfirmations {
		sb.WriteString("- No direct confirmation found.\n")
	}
	for _, cf := range report.Confirmations {
		fmt.Fprintf(&sb, "- CONFIRMATION: Candidate %d is a known companion of number %d.\n", cf.Candidate, cf.Source)
	}

	sb.WriteString("\n3. TEMPORAL ANALYSIS (based on the target date):\n")
	fmt.Fprintf(&sb, "- Favourite numbers for this day of the month: %s\n", formatFavourites(report.Temporal.ByDayOfMonth))
	fmt.Fprintf(&sb, "- Favourite numbers for this month: %s\n", formatFavourites(report.Temporal.ByMonth))

	sb.WriteString("\n\nFINAL MISSION:\n")
	sb.WriteString("1. Summarize all the convergences.\n")
	sb.WriteString("2. Choose the 2 most logical numbers.\n")
	sb.WriteString("3. Justify your final prediction and end with the line \"Final prediction: N and M\".")

	return sb.String()
}

func formatFavourites(pairs []analysis.Pair) string {
	if len(pairs) == 0 {
		return "None"
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%d(%dx)", p.Number, p.Count)
	}
	return strings.Join(parts, ", ")
}

func joinInts(nums []int, sep string) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, sep)
}
