package ui

import "testing"

func TestTruncateWithEllipsis(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  string
	}{
		{name: "fits", input: "short", width: 10, want: "short"},
		{name: "exact", input: "exact", width: 5, want: "exact"},
		{name: "truncated", input: "a-very-long-path", width: 9, want: "a-very..."},
		{name: "tiny width", input: "abcdef", width: 2, want: "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateWithEllipsis(tt.input, tt.width)
			if got != tt.want {
				t.Errorf("truncateWithEllipsis(%q, %d) = %q, want %q", tt.input, tt.width, got, tt.want)
			}
		})
	}
}

func TestCalculateColumnWidthsFitsBudget(t *testing.T) {
	tbl := NewTable("SESSION", "PID", "URL")
	tbl.AddRow("HelicopterGame", "12345", "http://localhost:5173")
	tbl.AddRow("todo-list", "99", "http://localhost:5174")

	widths := tbl.calculateColumnWidths(40)

	sum := total(widths) + colGapWidth*(len(widths)-1)
	if sum > 40 {
		t.Errorf("total width %d exceeds budget 40 (widths %v)", sum, widths)
	}
	for i, w := range widths {
		if w < minColumnWidth {
			t.Errorf("column %d width %d below minimum %d", i, w, minColumnWidth)
		}
	}
}

func TestCalculateColumnWidthsNoShrinkWhenRoomy(t *testing.T) {
	tbl := NewTable("SESSION", "PID")
	tbl.AddRow("snake", "42")

	widths := tbl.calculateColumnWidths(200)

	if widths[0] != len("SESSION") || widths[1] != len("PID") {
		t.Errorf("widths = %v, want header-driven [7 3]", widths)
	}
}
