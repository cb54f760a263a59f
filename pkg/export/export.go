// Package export writes packaged-food scan history to CSV or XLSX.
package export

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/glutenguard/glutenguard/pkg/scout"
)

const sheetName = "Scans"

var header = []string{
	"id", "timestamp", "product_name", "verdict", "confidence", "summary",
	"gluten_sources", "hidden_risks", "cross_contamination", "certifications", "ingredients",
}

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatForPath picks the format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", errors.New("output must end with .csv or .xlsx")
}

// WriteFile writes scans to path in the format its extension names.
func WriteFile(path string, scans []scout.ScanRecord) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, format, scans); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write writes scans to w.
func Write(w io.Writer, format Format, scans []scout.ScanRecord) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, scans)
	case FormatXLSX:
		return WriteXLSX(w, scans)
	}
	return errors.New("unknown export format " + string(format))
}

func WriteCSV(w io.Writer, scans []scout.ScanRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range scans {
		if err := cw.Write(record(s)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteXLSX(w io.Writer, scans []scout.ScanRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	// StreamWriter for efficiency on long histories
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", toRow(header)); err != nil {
		return err
	}
	for i, s := range scans {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toRow(record(s))); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

func record(s scout.ScanRecord) []string {
	a := s.Analysis
	return []string{
		s.ID,
		s.Timestamp,
		firstNonEmpty(s.ProductName, a.ProductName),
		firstNonEmpty(s.Verdict, a.Verdict),
		firstNonEmpty(s.Confidence, a.Confidence),
		firstNonEmpty(s.Summary, a.Summary),
		join(a.GlutenSources, scout.MaxListItems),
		join(a.HiddenRisks, scout.MaxListItems),
		join(a.CrossContamination, scout.MaxListItems),
		join(a.Certifications, scout.MaxListItems),
		join(a.IngredientsFound, scout.MaxIngredients),
	}
}

func toRow(vals []string) []interface{} {
	row := make([]interface{}, len(vals))
	for i, v := range vals {
		row[i] = v
	}
	return row
}

func join(items []string, n int) string {
	return strings.Join(scout.Cap(items, n), "; ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
