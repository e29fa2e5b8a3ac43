package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"nugget/internal/nugget"
)

func renderJSON(nuggets []nugget.Nugget) ([]byte, error) {
	if nuggets == nil {
		nuggets = []nugget.Nugget{}
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(nuggets); err != nil {
		return nil, fmt.Errorf("encode nuggets: %w", err)
	}
	return buf.Bytes(), nil
}

var csvHeader = []string{"id", "title", "start_time", "end_time", "tags", "created_at", "transcript"}

func renderCSV(nuggets []nugget.Nugget) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, n := range nuggets {
		record := []string{
			n.ID,
			n.Title,
			formatSeconds(n.StartTime),
			formatSeconds(n.EndTime),
			strings.Join(n.Tags, ";"),
			n.CreatedAt,
			n.Transcript,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func renderMarkdown(nuggets []nugget.Nugget) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Video Nuggets\n\n")
	for i, n := range nuggets {
		fmt.Fprintf(&buf, "## %d - %s\n\n", i+1, n.Title)
		fmt.Fprintf(&buf, "**Time:** %.2fs - %.2fs\n\n", n.StartTime, n.EndTime)
		if len(n.Tags) > 0 {
			fmt.Fprintf(&buf, "**Tags:** %s\n\n", strings.Join(n.Tags, ", "))
		}
		if n.Transcript != "" {
			fmt.Fprintf(&buf, "**Transcript:**\n%s\n\n", n.Transcript)
		}
		buf.WriteString("---\n\n")
	}
	return buf.Bytes()
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
