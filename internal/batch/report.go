package batch

import (
	"fmt"
	"strings"
	"time"
)

// Report renders a markdown summary of a job: aggregate counters, timing,
// and a per-item breakdown in submission order.
func Report(job *Job) string {
	if job == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Batch Report: %s\n\n", job.Name)
	fmt.Fprintf(&b, "- **Job ID:** %s\n", job.ID)
	fmt.Fprintf(&b, "- **Status:** %s\n", job.Status)
	fmt.Fprintf(&b, "- **Created:** %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Fprintf(&b, "- **Started:** %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Fprintf(&b, "- **Completed:** %s\n", job.CompletedAt.Format(time.RFC3339))
		if job.StartedAt != nil {
			fmt.Fprintf(&b, "- **Duration:** %s\n", job.CompletedAt.Sub(*job.StartedAt).Round(time.Second))
		}
	}
	b.WriteString("\n## Summary\n\n")
	skipped := 0
	nuggets := 0
	for _, result := range job.Results {
		if result.Status == ItemSkipped {
			skipped++
		}
		nuggets += len(result.Nuggets)
	}
	fmt.Fprintf(&b, "| Total | Processed | Failed | Skipped | Nuggets |\n")
	fmt.Fprintf(&b, "|------:|----------:|-------:|--------:|--------:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n",
		job.Progress.Total, job.Progress.Processed, job.Progress.Failed, skipped, nuggets)
	if attempted := job.Progress.Processed + job.Progress.Failed; attempted > 0 {
		fmt.Fprintf(&b, "\n**Success rate:** %.1f%%\n",
			float64(job.Progress.Processed)/float64(attempted)*100)
	}

	b.WriteString("\n## Items\n\n")
	for _, result := range job.Results {
		title := result.Reference
		if result.VideoInfo != nil && result.VideoInfo.Title != "" {
			title = result.VideoInfo.Title
		}
		fmt.Fprintf(&b, "### %d. %s\n\n", result.Position+1, title)
		fmt.Fprintf(&b, "- **Status:** %s\n", result.Status)
		if result.Attempts > 0 {
			fmt.Fprintf(&b, "- **Attempts:** %d\n", result.Attempts)
		}
		if result.ElapsedSeconds > 0 {
			fmt.Fprintf(&b, "- **Elapsed:** %.1fs\n", result.ElapsedSeconds)
		}
		if len(result.Nuggets) > 0 {
			fmt.Fprintf(&b, "- **Nuggets:** %d\n", len(result.Nuggets))
		}
		for _, file := range result.OutputFiles {
			fmt.Fprintf(&b, "- **Output:** %s\n", file)
		}
		if result.ErrorMessage != "" {
			fmt.Fprintf(&b, "- **Error:** %s\n", result.ErrorMessage)
		}
		b.WriteString("\n")
	}
	return b.String()
}
