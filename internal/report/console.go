package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fieldguard/fieldguard/internal/analysis"
)

// WriteConsole prints a short run summary suitable for terminal output.
func WriteConsole(run *analysis.RunResult, w io.Writer) {
	fmt.Fprintf(w, "Run %s\n", run.RunID)
	fmt.Fprintf(w, "  duration:     %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "  analyzed:     %d fields (%d files, %d failed)\n",
		run.Stats.FieldsAnalyzed, run.Stats.FilesRead, run.Stats.FilesFailed)
	fmt.Fprintf(w, "  blacklisted:  %d\n", run.Stats.FieldsBlacklisted)
	fmt.Fprintf(w, "  excluded:     %d\n", run.Stats.FieldsExcluded)
	fmt.Fprintf(w, "  cache hits:   %d\n", run.Stats.CacheHits)
	fmt.Fprintln(w)

	if len(run.PayloadBlacklist) > 0 {
		fmt.Fprintf(w, "  payload.blacklist (%d): %s\n",
			len(run.PayloadBlacklist), strings.Join(run.PayloadBlacklist, ", "))
	}
	if len(run.HeadersBlacklist) > 0 {
		fmt.Fprintf(w, "  headers.blacklist (%d): %s\n",
			len(run.HeadersBlacklist), strings.Join(run.HeadersBlacklist, ", "))
	}
}
