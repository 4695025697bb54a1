package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/pkg/ingest"
)

func getProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("units"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}

func getSpinner(w io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

// progressBars keeps one bar per collection and modality.
type progressBars struct {
	w    io.Writer
	mu   sync.Mutex
	bars map[string]*progressbar.ProgressBar
}

func newProgressBars(w io.Writer) *progressBars {
	return &progressBars{w: w, bars: map[string]*progressbar.ProgressBar{}}
}

func (p *progressBars) update(collection string, modality models.Modality, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := collection + "/" + string(modality)
	bar, ok := p.bars[key]
	if !ok {
		bar = getProgressBar(p.w, total, fmt.Sprintf("Ingesting %s into %s...", modality, collection))
		p.bars[key] = bar
	}
	bar.Set(done)
}

func printReport(w io.Writer, report *ingest.Report) {
	if report == nil {
		return
	}
	for _, mode := range []*ingest.ModeReport{report.Image, report.Text} {
		if mode == nil {
			continue
		}
		for _, m := range mode.Modalities {
			fmt.Fprintf(w, "  %-6s %-5s %d/%d units stored in %s\n", mode.Mode, m.Modality, m.Stored, m.Extracted, m.Collection)
			for _, e := range m.Errors {
				color.New(color.FgYellow).Fprintf(w, "    %s\n", e)
			}
		}
	}
	for _, msg := range report.Messages {
		if strings.HasPrefix(msg, "Error") {
			color.New(color.FgRed).Fprintln(w, msg)
		} else {
			color.New(color.FgGreen).Fprintln(w, "✓ "+msg)
		}
	}
}

func printComparison(w io.Writer, result *models.Comparison) {
	fmt.Fprintf(w, "\nLLM used: %s\n", result.Model)
	for _, answer := range []*models.Answer{result.Text, result.Image} {
		if answer == nil {
			continue
		}
		header := color.New(color.FgCyan, color.Bold)
		header.Fprintf(w, "\n%s Mode\n", titleCase(string(answer.Mode)))
		fmt.Fprintf(w, "Response: %s\n", answer.Response)
		fmt.Fprintf(w, "Response Time: %.2f seconds\n", answer.Elapsed.Round(10*time.Millisecond).Seconds())
		fmt.Fprintf(w, "Total tokens used: %d\n", answer.TotalTokens)
		fmt.Fprintf(w, "Input tokens used: %d\n", answer.PromptTokens)
		fmt.Fprintf(w, "Estimated cost: $%.5f\n", answer.EstimatedCost)
		if len(answer.ImagePaths) > 0 {
			fmt.Fprintf(w, "Images: %d\n", len(answer.ImagePaths))
		}
		if len(answer.Fields) > 0 {
			fmt.Fprintln(w, "Fields:")
			for _, key := range slices.Sorted(maps.Keys(answer.Fields)) {
				fmt.Fprintf(w, "  %s: %s\n", key, answer.Fields[key])
			}
		}
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
