// pkg/extractor/pdf.go
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// CardColumns is the header of the card details table
var CardColumns = []string{"card_number", "expiry_date", "card_provider", "date_payment_confirmed"}

// PDFExtractor reads the card details table spread over every page of a
// PDF document
type PDFExtractor struct {
	url    string
	client *http.Client
	retry  RetryPolicy
	logger *zap.Logger
}

// NewPDFExtractor creates an extractor for the PDF at url
func NewPDFExtractor(url string, client *http.Client, retry RetryPolicy, logger *zap.Logger) *PDFExtractor {
	return &PDFExtractor{
		url:    url,
		client: client,
		retry:  retry,
		logger: logger.Named("pdf-extractor"),
	}
}

// Source returns the document URL
func (e *PDFExtractor) Source() string {
	return e.url
}

// Extract downloads the document and parses its table rows
func (e *PDFExtractor) Extract(ctx context.Context) (*model.Table, error) {
	var body []byte
	err := withRetry(ctx, e.retry, e.logger, e.url, func() error {
		var err error
		body, err = httpGet(ctx, e.client, e.url, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download card details: %w", err)
	}

	lines, err := readPDFLines(body)
	if err != nil {
		return nil, err
	}

	t, err := parseTableLines("card_details", CardColumns, lines)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Read card details document",
		zap.String("url", e.url),
		zap.Int("bytes", len(body)),
		zap.Int("rows", t.Len()))
	return t, nil
}

// textCell is a run of text on one line starting at X
type textCell struct {
	X float64
	S string
}

// readPDFLines returns the text cells of every line of every page, top to
// bottom
func readPDFLines(data []byte) ([][]textCell, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var lines [][]textCell
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("failed to read text of page %d: %w", i, err)
		}

		// PDF coordinates grow upwards
		sort.SliceStable(rows, func(a, b int) bool { return rows[a].Position > rows[b].Position })
		for _, row := range rows {
			if cells := mergeFragments(row.Content); len(cells) > 0 {
				lines = append(lines, cells)
			}
		}
	}
	return lines, nil
}

// mergeFragments joins the glyph runs of a line into cells. Runs closer
// than one font size apart belong to the same cell.
func mergeFragments(texts pdf.TextHorizontal) []textCell {
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].X < sorted[b].X })

	var cells []textCell
	var cur strings.Builder
	curX, end := 0.0, 0.0
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			cells = append(cells, textCell{X: curX, S: s})
		}
		cur.Reset()
	}

	for i, t := range sorted {
		gap := t.FontSize
		if gap <= 0 {
			gap = 4
		}
		if i == 0 || t.X-end > gap {
			flush()
			curX = t.X
		} else if t.X-end > gap/4 && !strings.HasSuffix(cur.String(), " ") {
			cur.WriteByte(' ')
		}
		cur.WriteString(t.S)
		end = t.X + t.W
	}
	flush()
	return cells
}

// parseTableLines turns positioned lines into a table. Lines repeating the
// header fix the column positions; every other line is a record whose
// cells go to the column starting nearest to the left of them.
func parseTableLines(name string, header []string, lines [][]textCell) (*model.Table, error) {
	var starts []float64
	var records [][]string

	for _, line := range lines {
		if isHeaderLine(line, header) {
			starts = make([]float64, len(line))
			for i, c := range line {
				starts[i] = c.X
			}
			continue
		}
		if starts == nil {
			continue
		}

		rec := make([]string, len(header))
		for _, c := range line {
			col := columnFor(starts, c.X)
			if rec[col] != "" {
				rec[col] += " "
			}
			rec[col] += c.S
		}
		records = append(records, rec)
	}

	if starts == nil && len(lines) > 0 {
		return nil, fmt.Errorf("table header %v not found", header)
	}
	return model.NewTableFromRecords(name, header, records)
}

func isHeaderLine(line []textCell, header []string) bool {
	if len(line) != len(header) {
		return false
	}
	for i, c := range line {
		if c.S != header[i] {
			return false
		}
	}
	return true
}

// columnFor returns the last column starting at or before x, allowing a
// little slack for right-shifted cells
func columnFor(starts []float64, x float64) int {
	const slack = 2.0
	col := 0
	for i, s := range starts {
		if x+slack >= s {
			col = i
		}
	}
	return col
}
