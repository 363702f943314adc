package pipeline

import (
	"fmt"
	"io"
	"slices"
	"sync"
	"text/tabwriter"
	"time"
)

// StageResult is one line of the run report.
type StageResult struct {
	Stage   string
	Rows    int64
	Elapsed time.Duration
	Err     error
	// Free-form counters, e.g. dropped enrollment candidates.
	Detail string
}

func (r StageResult) OK() bool {
	return r.Err == nil
}

// Report collects stage results. Branches running in parallel record into
// the same report.
type Report struct {
	mu      sync.Mutex
	results []StageResult
}

func NewReport() *Report {
	return &Report{}
}

func (r *Report) Record(res StageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

// Results returns the results in completion order.
func (r *Report) Results() []StageResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.results)
}

func (r *Report) Lookup(stage string) (StageResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.results {
		if res.Stage == stage {
			return res, true
		}
	}
	return StageResult{}, false
}

func (r *Report) Failed() bool {
	for _, res := range r.Results() {
		if !res.OK() {
			return true
		}
	}
	return false
}

func (r *Report) TotalRows() int64 {
	var total int64
	for _, res := range r.Results() {
		total += res.Rows
	}
	return total
}

// Print renders the report as an aligned table.
func (r *Report) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tROWS\tELAPSED\tSTATUS\tDETAIL")
	for _, res := range r.Results() {
		status := "ok"
		detail := res.Detail
		if !res.OK() {
			status = "failed"
			detail = res.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", res.Stage, res.Rows, res.Elapsed.Round(time.Millisecond), status, detail)
	}
	return tw.Flush()
}
