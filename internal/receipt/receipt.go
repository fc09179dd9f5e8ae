// Package receipt renders carts into printable PDF receipts.
package receipt

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
)

// ErrNoItems is returned before any rendering work begins.
var ErrNoItems = errors.New("no items provided")

// Item is one cart line.
type Item struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

const (
	pageWidth  = 3.5 // inches
	pageHeight = 7.0
	margin     = 0.25

	maxNameLen = 20
)

// Renderer writes receipt PDFs into a directory. It holds no state beyond
// the target directory and is safe to invoke concurrently.
type Renderer struct {
	dir    string
	prefix string
}

func NewRenderer(dir, filePrefix string) *Renderer {
	return &Renderer{dir: dir, prefix: filePrefix}
}

// Render produces a receipt PDF for the cart and returns the generated
// filename. The file is transient; the uploads sweep reaps it after the
// retention window.
func (r *Renderer) Render(items []Item, total float64) (string, error) {
	if len(items) == 0 {
		return "", ErrNoItems
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "in",
		Size:    gofpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetMargins(margin, 0.3, margin)
	pdf.SetAutoPageBreak(true, 0.3)
	pdf.AddPage()

	// Header
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(37, 99, 235)
	pdf.CellFormat(0, 0.28, "KasirKuy", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(31, 41, 55)
	pdf.CellFormat(0, 0.2, "Sales Receipt", "", 1, "C", false, 0, "")

	now := time.Now()
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(107, 114, 128)
	stamp := now.Format("January 2, 2006") + "  " + now.Format("3:04 PM")
	pdf.CellFormat(0, 0.18, stamp, "", 1, "C", false, 0, "")
	pdf.Ln(0.08)

	divider(pdf)
	pdf.Ln(0.1)

	// Line-item table
	colW := [4]float64{1.3, 0.4, 0.65, 0.65}
	align := [4]string{"L", "C", "R", "R"}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(243, 244, 246)
	pdf.SetTextColor(31, 41, 55)
	for i, h := range [4]string{"Item", "Qty", "Price", "Total"} {
		pdf.CellFormat(colW[i], 0.22, h, "", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, it := range items {
		cols := [4]string{
			truncateName(it.Name),
			fmt.Sprintf("%d", it.Quantity),
			FormatRupiah(it.Price),
			FormatRupiah(it.Price * float64(it.Quantity)),
		}
		for i, v := range cols {
			pdf.CellFormat(colW[i], 0.2, v, "", 0, align[i], false, 0, "")
		}
		pdf.Ln(-1)
	}

	// Total row
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(37, 99, 235)
	pdf.CellFormat(colW[0]+colW[1], 0.28, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(colW[2], 0.28, "Total:", "T", 0, "R", false, 0, "")
	pdf.CellFormat(colW[3], 0.28, FormatRupiah(total), "T", 1, "R", false, 0, "")
	pdf.Ln(0.1)

	divider(pdf)
	pdf.Ln(0.08)

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(107, 114, 128)
	pdf.CellFormat(0, 0.16, "Thank you for your purchase!", "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 0.16, "Please come again", "", 1, "C", false, 0, "")

	filename := fmt.Sprintf("%s%s_%s.pdf",
		r.prefix,
		now.Format("20060102_150405"),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
	)
	if err := pdf.OutputFileAndClose(filepath.Join(r.dir, filename)); err != nil {
		return "", fmt.Errorf("write receipt pdf: %w", err)
	}
	return filename, nil
}

func divider(pdf *gofpdf.Fpdf) {
	pdf.SetDrawColor(229, 231, 235)
	pdf.SetLineWidth(0.007)
	y := pdf.GetY()
	pdf.Line(margin, y, pageWidth-margin, y)
}

// FormatRupiah renders an amount as "Rp 12.345" with a period as the
// thousands separator, per Indonesian convention. Fractions are rounded.
func FormatRupiah(amount float64) string {
	n := int64(math.Round(amount))
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, d := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return "Rp " + sign + b.String()
}

// truncateName caps long item names at the table's character budget. Counts
// runes, not bytes, so a multibyte name is never cut mid-character.
func truncateName(name string) string {
	r := []rune(name)
	if len(r) > maxNameLen {
		return string(r[:maxNameLen-2]) + ".."
	}
	return name
}
