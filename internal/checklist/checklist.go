// Package checklist holds the QA checklist sent to the reasoning service and the
// scoring rules applied to its answer.
package checklist

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/drawing-checker/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// Result markers written by the reasoning service.
const (
	ResultPrefix = "Result:"
	PassMark     = "✅"
	CautionMark  = "⚠" // matches with or without the emoji variation selector
	FailMark     = "❌"
)

// Default risk ratios of the 30 point checklist: 27/30 and 20/30.
const (
	DefaultLowRatio    = 0.9
	DefaultMediumRatio = 2.0 / 3.0
)

// Checklist is an ordered list of QA checks with the ratios used to classify risk.
type Checklist struct {
	Checks      []string `yaml:"checks"`
	LowRatio    float64  `yaml:"low_ratio"`
	MediumRatio float64  `yaml:"medium_ratio"`
}

// Default returns the built-in 30 point checklist.
func Default() *Checklist {
	checks := make([]string, len(defaultChecks))
	copy(checks, defaultChecks)
	return &Checklist{
		Checks:      checks,
		LowRatio:    DefaultLowRatio,
		MediumRatio: DefaultMediumRatio,
	}
}

// Load reads a checklist YAML file. An empty path returns the default checklist.
func Load(path string) (*Checklist, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checklist: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes a checklist from YAML. Missing ratios fall back to the defaults.
func Parse(r io.Reader) (*Checklist, error) {
	var c Checklist
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse checklist: %w", err)
	}
	if c.LowRatio == 0 {
		c.LowRatio = DefaultLowRatio
	}
	if c.MediumRatio == 0 {
		c.MediumRatio = DefaultMediumRatio
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that the checklist can be scored.
func (c *Checklist) Validate() error {
	if len(c.Checks) == 0 {
		return fmt.Errorf("checklist has no checks")
	}
	for i, check := range c.Checks {
		if strings.TrimSpace(check) == "" {
			return fmt.Errorf("checklist entry %d is empty", i+1)
		}
	}
	if c.MediumRatio <= 0 || c.LowRatio > 1 || c.MediumRatio >= c.LowRatio {
		return fmt.Errorf("invalid risk ratios: low=%v medium=%v", c.LowRatio, c.MediumRatio)
	}
	return nil
}

// Size returns the number of checks, which is also the maximum score.
func (c *Checklist) Size() int {
	return len(c.Checks)
}

// Render formats the checks as the numbered list embedded in the prompt.
func (c *Checklist) Render() string {
	var b strings.Builder
	for i, check := range c.Checks {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, PassMark, check)
	}
	return b.String()
}

// Score sums the result markers of an assessment: 1 per pass line and 0.5 per
// caution line. Only lines starting with ResultPrefix count, and the sum never
// exceeds Size.
func (c *Checklist) Score(assessment string) float64 {
	var total float64
	for _, line := range strings.Split(assessment, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, ResultPrefix) {
			continue
		}
		switch {
		case strings.Contains(line, PassMark):
			total += 1
		case strings.Contains(line, CautionMark):
			total += 0.5
		}
	}
	return math.Min(total, float64(c.Size()))
}

// Thresholds returns the absolute Low and Medium thresholds for this checklist,
// rounded up to the next half point so a threshold never falls below its ratio.
func (c *Checklist) Thresholds() (low, medium float64) {
	size := float64(c.Size())
	return halfPoint(c.LowRatio * size), halfPoint(c.MediumRatio * size)
}

// Classify maps a score to its risk tier.
func (c *Checklist) Classify(score float64) models.RiskTier {
	low, medium := c.Thresholds()
	switch {
	case score >= low:
		return models.RiskLow
	case score >= medium:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

// Flagged returns every line that carries a caution or fail marker, in order.
func Flagged(assessment string) []string {
	var out []string
	for _, line := range strings.Split(assessment, "\n") {
		if strings.Contains(line, FailMark) || strings.Contains(line, CautionMark) {
			out = append(out, strings.TrimRight(line, "\r"))
		}
	}
	return out
}

// halfPoint rounds up to a multiple of 0.5. The epsilon keeps exact products
// such as 0.9*30 from being pushed up by float error.
func halfPoint(v float64) float64 {
	return math.Ceil(v*2-1e-9) / 2
}
