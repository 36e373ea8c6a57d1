package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/hyperjump/docflow/internal/models"
	"github.com/hyperjump/docflow/pkg/utils"
)

// OutputFormat selects how results are printed.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", response.Total, response.QueryTime)
	for _, r := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f (Keyword: %.4f, Semantic: %.4f)\n",
			r.Rank, r.Score, r.KeywordScore, r.SemanticScore)
		fmt.Fprintf(w, "ID: %s\n", r.ID)
		fmt.Fprintf(w, "File: %s (%s, %d pages)\n", r.FileName, r.FileType, r.Pages)
		if r.ThreadID != "" {
			fmt.Fprintf(w, "Thread: %s\n", r.ThreadID)
		}
		for _, h := range r.Highlights {
			fmt.Fprintf(w, "\n  %s\n", utils.Truncate(h, 200))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteDocuments writes document records as a table or JSON.
func WriteDocuments(w io.Writer, recs []*models.DocumentRecord, format OutputFormat) error {
	if format == OutputJSON {
		if recs == nil {
			recs = []*models.DocumentRecord{}
		}
		return writeJSON(w, recs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tTYPE\tSIZE\tOWNER\tSTATUS\tUPLOADED")
	for _, r := range recs {
		status := string(r.Status)
		if r.ProcessingError != "" {
			status += ": " + utils.Truncate(r.ProcessingError, 40)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID, r.FileName, r.FileType, r.FileSize, r.UploadedBy, status,
			r.UploadedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

// WriteStats writes document statistics.
func WriteStats(w io.Writer, s *models.Stats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "documents:   %d\n", s.Total)
	fmt.Fprintf(w, "total_size:  %d\n", s.TotalSize)
	if len(s.ByStatus) > 0 {
		fmt.Fprintln(w, "\n# by status")
		for _, k := range sortedKeys(s.ByStatus) {
			fmt.Fprintf(w, "%-12s %d\n", k+":", s.ByStatus[models.DocumentStatus(k)])
		}
	}
	if len(s.ByType) > 0 {
		fmt.Fprintln(w, "\n# by type")
		types := make([]string, 0, len(s.ByType))
		for k := range s.ByType {
			types = append(types, k)
		}
		sort.Strings(types)
		for _, k := range types {
			name := k
			if name == "" {
				name = "(none)"
			}
			fmt.Fprintf(w, "%-12s %d\n", name+":", s.ByType[k])
		}
	}
	if s.IndexStats != nil {
		fmt.Fprintln(w, "\n# search index")
		fmt.Fprintf(w, "indexed:     %d\n", s.IndexStats.DocumentCount)
		fmt.Fprintf(w, "vectors:     %d\n", s.IndexStats.VectorCount)
		if s.IndexStats.DiskBytes > 0 {
			fmt.Fprintf(w, "disk_bytes:  %d\n", s.IndexStats.DiskBytes)
		}
	}
	return nil
}

func sortedKeys(m map[models.DocumentStatus]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

// JoinArgs joins positional args so multi-word queries work with or without
// shell quoting.
func JoinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// ReorderArgs moves flags that follow positional arguments to the front so
// flag.Parse sees them ("docflow search invoice -top 5").
func ReorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}
