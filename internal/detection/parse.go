package detection

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// fieldsPerRow is the number of columns in a detector row: class, x, y, w, h.
const fieldsPerRow = 5

// ParseError reports a malformed row in a detection file.
//
// Parsing stops at the first bad row; no partial result is returned.
type ParseError struct {
	Path   string // Source file, empty when parsing an io.Reader
	Line   int    // 1-based line number
	Text   string // The offending line
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s:%d: %s: %q", e.Path, e.Line, e.Reason, e.Text)
	}
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Parse reads a detection set from r.
//
// Each non-blank line must hold exactly five whitespace-separated numbers:
//
//	<class_id> <x_center> <y_center> <width> <height>
//
// The class id is truncated to an integer. A file with no rows yields an
// empty, non-nil slice.
func Parse(r io.Reader) ([]Region, error) {
	scanner := bufio.NewScanner(r)
	regions := make([]Region, 0)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != fieldsPerRow {
			return nil, &ParseError{
				Line:   line,
				Text:   text,
				Reason: fmt.Sprintf("expected %d fields, got %d", fieldsPerRow, len(fields)),
			}
		}

		var vals [fieldsPerRow]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, &ParseError{
					Line:   line,
					Text:   text,
					Reason: fmt.Sprintf("field %d is not numeric", i+1),
				}
			}
			vals[i] = v
		}

		regions = append(regions, Region{
			Class:  Class(int(vals[0])),
			X:      vals[1],
			Y:      vals[2],
			Width:  vals[3],
			Height: vals[4],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return regions, nil
}

// ParseFile reads a detection set from a detector output file.
//
// Open and read failures are returned as-is; malformed rows produce a
// *ParseError carrying the path.
func ParseFile(path string) ([]Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	regions, err := Parse(f)
	if perr, ok := err.(*ParseError); ok {
		perr.Path = path
	}
	return regions, err
}
