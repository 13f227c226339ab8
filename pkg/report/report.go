// Package report writes a one-page PDF summary of a preconsolidation
// pressure run.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/phpdave11/gofpdf"

	"sigmap/internal/models"
)

// Field is a labelled value printed in the parameter table
type Field struct {
	Label string
	Value string
}

// Input is everything a report shows
type Input struct {
	Title  string
	Source string

	// Date is printed in the header; the zero time prints today
	Date time.Time

	// Parameters are printed before the result table in the given order
	Parameters []Field

	Result *models.Result

	// Plot is an optional PNG image of the construction
	Plot []byte
}

const (
	lineHeight = 6.0
	labelWidth = 70.0
	plotName   = "construction"
)

// Generate writes the report as an A4 PDF to w
func Generate(w io.Writer, in Input) error {
	if in.Result == nil {
		return errors.New("no result to report")
	}
	if in.Title == "" {
		in.Title = "Preconsolidation Pressure Report"
	}
	if in.Date.IsZero() {
		in.Date = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(in.Title, true)
	pdf.SetCreator("sigmap", true)
	pdf.SetCreationDate(in.Date)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, in.Title)
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	if in.Source != "" {
		pdf.Cell(0, lineHeight, fmt.Sprintf("Data: %s", in.Source))
		pdf.Ln(lineHeight)
	}
	pdf.Cell(0, lineHeight, fmt.Sprintf("Date: %s", in.Date.Format("2006-01-02")))
	pdf.Ln(10)

	if len(in.Parameters) > 0 {
		section(pdf, "Parameters")
		for _, f := range in.Parameters {
			row(pdf, f.Label, f.Value)
		}
		pdf.Ln(4)
	}

	section(pdf, "Results")
	for _, f := range resultFields(in.Result) {
		row(pdf, f.Label, f.Value)
	}
	pdf.Ln(4)

	if len(in.Plot) > 0 {
		info := pdf.RegisterImageOptionsReader(plotName, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(in.Plot))
		if pdf.Err() {
			return fmt.Errorf("error embedding plot: %w", pdf.Error())
		}
		left, _, right, _ := pdf.GetMargins()
		pageW, _ := pdf.GetPageSize()
		width := pageW - left - right
		height := width * info.Height() / info.Width()
		pdf.ImageOptions(plotName, left, pdf.GetY(), width, height, true, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	return nil
}

// resultFields formats the result table
func resultFields(r *models.Result) []Field {
	fields := []Field{
		{"Method", r.Mode},
		{"Maximum curvature stress", fmt.Sprintf("%.2f kPa", r.MaximumCurvaturePoint.Stress)},
		{"Maximum curvature void ratio", fmt.Sprintf("%.4f", r.MaximumCurvaturePoint.VoidRatio)},
		{"Bisector slope", fmt.Sprintf("%.5f", r.Bisector.Slope)},
		{"Compression index Cc", fmt.Sprintf("%.4f", r.VirginLine.CompressionIndex)},
		{"Virgin line intercept", fmt.Sprintf("%.4f", r.VirginLine.Intercept)},
	}
	if r.VirginLine.Fitted {
		fields = append(fields, Field{"Virgin line R2", fmt.Sprintf("%.4f", r.VirginLine.R2)})
	}
	if len(r.FitPoints) > 0 {
		fields = append(fields, Field{"Polynomial fit R2", fmt.Sprintf("%.4f", r.FitR2)})
	}
	fields = append(fields,
		Field{"Preconsolidation pressure sigma'p", fmt.Sprintf("%.1f kPa", r.PreconsolidationPressure)},
		Field{"Void ratio at sigma'p", fmt.Sprintf("%.4f", r.VoidRatioAtPreconsolidation)},
		Field{"In-situ stress sigma'v0", fmt.Sprintf("%.1f kPa", r.SigmaV)},
		Field{"OCR", fmt.Sprintf("%.2f", r.OCR)},
	)
	return fields
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, title)
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 11)
}

func row(pdf *gofpdf.Fpdf, label, value string) {
	pdf.CellFormat(labelWidth, lineHeight, label, "B", 0, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, value, "B", 1, "R", false, 0, "")
}
