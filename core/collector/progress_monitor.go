package collector

import (
	"context"
	"time"
)

const DefaultProgressInterval = 10 * time.Second

// ProgressMonitor periodically logs how far each collected file has come.
type ProgressMonitor struct {
	collector *Collector
	interval  time.Duration
	last      map[string]int
}

func NewProgressMonitor(c *Collector, interval time.Duration) *ProgressMonitor {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	return &ProgressMonitor{
		collector: c,
		interval:  interval,
		last:      map[string]int{},
	}
}

// Start ticks every interval and reports until ctx is done.
func (p *ProgressMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Report()
		case <-ctx.Done():
			return
		}
	}
}

// Report logs files whose present chunk count changed since the last call
// and returns their names.
func (p *ProgressMonitor) Report() []string {
	var changed []string

	report := p.collector.Report()
	for _, f := range report.Files {
		if p.last[f.FileName] == f.Present {
			continue
		}
		p.last[f.FileName] = f.Present
		changed = append(changed, f.FileName)

		log.Infow("progress",
			"file", f.FileName,
			"present", f.Present,
			"total", f.TotalCount,
			"progress", f.Progress,
			"gaps", len(f.Gaps),
			"complete", f.Complete,
		)
	}

	if report.MultipleFiles && len(changed) > 0 {
		log.Warnw("progress", "status", "multiple files collected", "files", len(report.Files))
	}

	return changed
}
