// Package export renders the reconciled board collections to a PDF
// snapshot for sharing outside a live session.
package export

import (
	"fmt"
	"math"

	"github.com/jung-kurt/gofpdf"

	"inkboard/internal/board"
	"inkboard/pkg/types"
)

// Canvas coordinates are pixels; A4 landscape is addressed in mm.
const pixelsPerMM = 3.0

// PDF writes the board's strokes, shapes and texts to path.
func PDF(path string, state *board.State) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetDrawColor(0, 0, 0)

	for _, stroke := range state.Strokes() {
		r, g, b := parseHexColor(stroke.Color)
		pdf.SetDrawColor(r, g, b)
		pdf.SetLineWidth(stroke.Width / pixelsPerMM)
		for i := 1; i < len(stroke.Points); i++ {
			pdf.Line(
				stroke.Points[i-1].X/pixelsPerMM, stroke.Points[i-1].Y/pixelsPerMM,
				stroke.Points[i].X/pixelsPerMM, stroke.Points[i].Y/pixelsPerMM,
			)
		}
	}

	for _, shape := range state.Shapes() {
		r, g, b := parseHexColor(shape.Color)
		pdf.SetDrawColor(r, g, b)
		pdf.SetLineWidth(shape.StrokeWidth / pixelsPerMM)
		drawShape(pdf, shape)
	}

	pdf.SetFont("Helvetica", "", 12)
	for _, text := range state.Texts() {
		r, g, b := parseHexColor(text.Color)
		pdf.SetTextColor(r, g, b)
		size := text.FontSize
		if size <= 0 {
			size = 16
		}
		pdf.SetFontSize(size / pixelsPerMM * 2.835) // px to pt
		pdf.Text(text.X/pixelsPerMM, text.Y/pixelsPerMM, text.Text)
	}

	return pdf.OutputFileAndClose(path)
}

func drawShape(pdf *gofpdf.Fpdf, shape types.Shape) {
	x1, y1 := shape.StartX/pixelsPerMM, shape.StartY/pixelsPerMM
	x2, y2 := shape.EndX/pixelsPerMM, shape.EndY/pixelsPerMM

	switch shape.Kind {
	case types.ToolRectangle:
		pdf.Rect(math.Min(x1, x2), math.Min(y1, y2), math.Abs(x2-x1), math.Abs(y2-y1), "D")
	case types.ToolCircle:
		cx, cy := (x1+x2)/2, (y1+y2)/2
		pdf.Ellipse(cx, cy, math.Abs(x2-x1)/2, math.Abs(y2-y1)/2, 0, "D")
	case types.ToolLine, types.ToolArrow:
		pdf.Line(x1, y1, x2, y2)
	default:
		pdf.Line(x1, y1, x2, y2)
	}
}

func parseHexColor(color string) (r, g, b int) {
	if !types.IsValidHexColor(color) {
		return 0, 0, 0
	}
	hex := color[1:]
	if len(hex) == 3 {
		hex = fmt.Sprintf("%c%c%c%c%c%c", hex[0], hex[0], hex[1], hex[1], hex[2], hex[2])
	}
	fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	return r, g, b
}
