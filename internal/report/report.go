// Package report renders the diagnosis history as a PDF.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/signintech/gopdf"
	"github.com/skinguardian/client/types"
)

// ErrFontUnavailable is returned when no TrueType font could be loaded.
var ErrFontUnavailable = errors.New("no report font available")

const fontFamily = "report"

// DefaultFontPaths are tried after the configured font.
var DefaultFontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/Library/Fonts/Arial Unicode.ttf",
	`C:\Windows\Fonts\arial.ttf`,
}

// Advisor returns advisory text for a classification code.
type Advisor interface {
	Lookup(code string) (string, bool)
}

// History is the content of one report.
type History struct {
	Username    string
	Profile     *types.UserProfile
	Diagnoses   []types.DiagnosisRecord
	GeneratedAt time.Time
}

// Generator writes history reports.
type Generator struct {
	fontPaths []string
	advisor   Advisor
}

// NewGenerator tries fontPath first, then DefaultFontPaths.
func NewGenerator(fontPath string, advisor Advisor) *Generator {
	paths := make([]string, 0, len(DefaultFontPaths)+1)
	if strings.TrimSpace(fontPath) != "" {
		paths = append(paths, fontPath)
	}
	paths = append(paths, DefaultFontPaths...)
	return &Generator{fontPaths: paths, advisor: advisor}
}

// Write renders h as an A4 PDF into w.
func (g *Generator) Write(w io.Writer, h History) error {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := g.loadFont(&pdf); err != nil {
		return err
	}

	p := &page{pdf: &pdf}
	p.text(20, "Your Skin Exams History")
	p.br(30)

	generated := h.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	p.text(11, "Generated: "+generated.Format("2006-01-02 15:04"))
	p.br(18)

	if h.Profile != nil {
		p.text(14, "Profile")
		p.br(18)
		p.line(11, fmt.Sprintf("Name: %s", h.Profile.FullName))
		p.line(11, fmt.Sprintf("Email: %s   Phone: %s", h.Profile.Email, h.Profile.Phone))
		p.line(11, fmt.Sprintf("Age: %d   Sex: %s", h.Profile.Age, h.Profile.Sex))
		p.br(10)
	} else if h.Username != "" {
		p.line(11, "User: "+h.Username)
		p.br(10)
	}

	p.text(14, "Exams")
	p.br(18)
	if len(h.Diagnoses) == 0 {
		p.line(11, "No Skin Exams Performed Yet")
	}
	for i, record := range h.Diagnoses {
		p.line(12, fmt.Sprintf("%d. %s (%s)", i+1, strings.ToUpper(record.DiagnosisResult), record.Localization))
		p.line(10, fmt.Sprintf("Exam %s, age %d, sex %s", record.DiagnosisID, record.Age, record.Sex))
		if g.advisor != nil {
			if advice, ok := g.advisor.Lookup(record.DiagnosisResult); ok {
				p.wrapped(10, plainText(advice))
			}
		}
		p.br(8)
	}

	if p.err != nil {
		return p.err
	}
	if _, err := pdf.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

func (g *Generator) loadFont(pdf *gopdf.GoPdf) error {
	var lastErr error
	for _, path := range g.fontPaths {
		if err := pdf.AddTTFFont(fontFamily, path); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrFontUnavailable, lastErr)
}

const (
	maxTextWidth = 500
	pageBottom   = 780
	pageTop      = 40
)

// page writes lines and starts new pages as the cursor reaches the bottom.
// The first error sticks.
type page struct {
	pdf *gopdf.GoPdf
	err error
}

func (p *page) text(size float64, s string) {
	if p.err != nil {
		return
	}
	if p.err = p.pdf.SetFont(fontFamily, "", size); p.err != nil {
		return
	}
	p.err = p.pdf.Cell(nil, s)
}

func (p *page) br(h float64) {
	p.pdf.Br(h)
	if p.pdf.GetY() > pageBottom {
		p.pdf.AddPage()
		p.pdf.SetY(pageTop)
	}
}

func (p *page) line(size float64, s string) {
	p.text(size, s)
	p.br(size + 4)
}

func (p *page) wrapped(size float64, s string) {
	if p.err != nil {
		return
	}
	if p.err = p.pdf.SetFont(fontFamily, "", size); p.err != nil {
		return
	}
	lines, err := p.pdf.SplitText(s, maxTextWidth)
	if err != nil {
		p.err = err
		return
	}
	for _, l := range lines {
		p.line(size, l)
	}
}

var markdownMarks = strings.NewReplacer("**", "", "__", "", "`", "")

// plainText drops inline Markdown emphasis.
func plainText(md string) string {
	return markdownMarks.Replace(md)
}
