package outwriter

import (
	"os"

	"github.com/huangsam/reposcan/internal/contract"
	"golang.org/x/term"
)

// Path column bounds for table output.
const (
	minPathWidth = 15
	maxPathWidth = 70
)

// GetMaxTablePathWidth calculates the maximum width for file paths in table output
// based on terminal width and the fixed columns printed next to the path.
func GetMaxTablePathWidth(cfg *contract.Config, fixedColumns int) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Reserve space for table borders, separators, and padding
	available := termWidth - fixedColumns - 20
	if available < minPathWidth {
		return minPathWidth
	}
	if available > maxPathWidth {
		return maxPathWidth
	}
	return available
}
