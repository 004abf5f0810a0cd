// Package ui provides message printing utilities.
package ui

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// quietMode suppresses non-essential output when set via SetQuietMode.
var quietMode bool

// SetQuietMode toggles suppression of non-essential output.
// Errors are always printed.
func SetQuietMode(quiet bool) {
	quietMode = quiet
}

// Println prints an empty line.
func Println() {
	if quietMode {
		return
	}
	fmt.Println()
}

// PrintSuccess prints a success message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintSuccess(format string, args ...interface{}) {
	if quietMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Println(SuccessStyle.Render("✓ " + msg))
}

// PrintError prints an error message. Not suppressed by quiet mode.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(ErrorStyle.Render("✗ " + msg))
}

// PrintWarning prints a warning message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintWarning(format string, args ...interface{}) {
	if quietMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Println(WarningStyle.Render("⚠ " + msg))
}

// PrintInfo prints an informational message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintInfo(format string, args ...interface{}) {
	if quietMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Println(InfoStyle.Render(msg))
}

// PrintDim prints a dimmed message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintDim(format string, args ...interface{}) {
	if quietMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Println(DimStyle.Render(msg))
}

// PrintLink prints a labeled URL.
//
// Parameters:
//   - label: The link label
//   - url: The URL
func PrintLink(label, url string) {
	if quietMode {
		return
	}
	fmt.Printf("%s %s\n", DimStyle.Render(label+":"), LinkStyle.Render(url))
}

// OpenBrowser opens a URL in the default browser.
//
// Parameters:
//   - url: The URL to open
//
// Returns:
//   - error: Any error that occurred
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// TerminalWidth returns the width of the attached terminal, or a default of
// 100 columns when stdout is not a terminal or the size cannot be determined.
func TerminalWidth() int {
	fd := os.Stdout.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return 100
	}
	w, _, err := term.GetSize(int(fd))
	if err != nil || w <= 0 {
		return 100
	}
	return w
}

// Table represents a table with dynamic column widths for formatted output.
type Table struct {
	// Headers contains the column header names.
	Headers []string

	// Rows contains all data rows.
	Rows [][]string

	// MaxWidths specifies maximum width per column index (truncates with ellipsis).
	MaxWidths map[int]int
}

// NewTable creates a new table with the specified headers.
//
// Parameters:
//   - headers: Column header names
//
// Returns:
//   - *Table: A new table instance
func NewTable(headers ...string) *Table {
	return &Table{
		Headers:   headers,
		Rows:      make([][]string, 0),
		MaxWidths: make(map[int]int),
	}
}

// AddRow adds a data row to the table.
//
// Parameters:
//   - values: Cell values for the row
func (t *Table) AddRow(values ...string) {
	t.Rows = append(t.Rows, values)
}

// SetMaxWidth sets the maximum width for a column.
// Values exceeding this width will be truncated with ellipsis.
//
// Parameters:
//   - col: Column index (0-based)
//   - width: Maximum width in characters
func (t *Table) SetMaxWidth(col, width int) {
	t.MaxWidths[col] = width
}

// calculateColumnWidths computes the width for each column, fitting the
// table into limit columns by shrinking the widest columns first.
//
// Parameters:
//   - limit: Total width budget including column gaps
//
// Returns:
//   - []int: Width for each column
func (t *Table) calculateColumnWidths(limit int) []int {
	numCols := len(t.Headers)
	widths := make([]int, numCols)

	// Start with header widths
	for i, header := range t.Headers {
		widths[i] = len(header)
	}

	// Check all row values
	for _, row := range t.Rows {
		for i, val := range row {
			if i < numCols && len(val) > widths[i] {
				widths[i] = len(val)
			}
		}
	}

	// Apply per-column caps
	for i := range widths {
		if max, ok := t.MaxWidths[i]; ok && widths[i] > max {
			widths[i] = max
		}
	}

	// Fit into the overall budget by shaving the widest column
	budget := limit - colGapWidth*(numCols-1)
	for total(widths) > budget {
		widest := 0
		for i := range widths {
			if widths[i] > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= minColumnWidth {
			break
		}
		widths[widest]--
	}

	return widths
}

const (
	colGapWidth    = 2
	minColumnWidth = 6
)

func total(widths []int) int {
	sum := 0
	for _, w := range widths {
		sum += w
	}
	return sum
}

// truncateWithEllipsis truncates a string to the specified width with ellipsis.
//
// Parameters:
//   - s: String to truncate
//   - width: Maximum width
//
// Returns:
//   - string: Truncated string with ellipsis if needed
func truncateWithEllipsis(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}

// padRight pads a string to the specified width with spaces.
//
// Parameters:
//   - s: String to pad
//   - width: Target width
//
// Returns:
//   - string: Padded string
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Render prints the table with calculated column widths, capped to the
// terminal width. Headers are styled with TableHeaderStyle, cells with
// TableCellStyle.
func (t *Table) Render() {
	if len(t.Headers) == 0 {
		return
	}

	widths := t.calculateColumnWidths(TerminalWidth())
	colGap := strings.Repeat(" ", colGapWidth)

	// Print header row
	var headerCells []string
	for i, header := range t.Headers {
		cell := padRight(truncateWithEllipsis(header, widths[i]), widths[i])
		headerCells = append(headerCells, TableHeaderStyle.Render(cell))
	}
	fmt.Println(strings.Join(headerCells, colGap))

	// Print separator
	totalWidth := total(widths) + colGapWidth*(len(widths)-1)
	fmt.Println(DimStyle.Render(strings.Repeat("─", totalWidth)))

	// Print data rows
	for _, row := range t.Rows {
		var cells []string
		for i := 0; i < len(t.Headers); i++ {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			cell := padRight(truncateWithEllipsis(val, widths[i]), widths[i])
			cells = append(cells, TableCellStyle.Render(cell))
		}
		fmt.Println(strings.Join(cells, colGap))
	}
}
