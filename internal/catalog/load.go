package catalog

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	JSONFile = "cards.json"
	TSVFile  = "cards.tsv"
)

// LoadError is returned for any catalog that cannot be served: missing or
// malformed file, or a suit without cards.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load catalog %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Record is one row of the source file, before suit resolution.
type Record struct {
	Category1 string `json:"Category1"`
	Category2 string `json:"Category2"`
	Name      string `json:"Name"`
	Text      string `json:"Text"`
	ShortText string `json:"ShortText"`
	URL       string `json:"URL"`
}

// LoadDir loads cards.json from dir, falling back to cards.tsv.
func LoadDir(dir string) (*Set, error) {
	for _, name := range []string{JSONFile, TSVFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return nil, &LoadError{Path: dir, Err: ErrNoCatalog}
}

// Load picks the decoder from the file extension.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	var records []Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		records, err = DecodeJSON(f)
	case ".tsv":
		records, err = DecodeTSV(f)
	default:
		err = fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	set, err := NewSet(Resolve(records))
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return set, nil
}

func DecodeJSON(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return records, nil
}

// DecodeTSV reads a tab separated file whose first row names the columns.
// Unknown columns are ignored and missing ones are left empty.
func DecodeTSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		records = append(records, Record{
			Category1: field(row, "Category1"),
			Category2: field(row, "Category2"),
			Name:      field(row, "Name"),
			Text:      field(row, "Text"),
			ShortText: field(row, "ShortText"),
			URL:       field(row, "URL"),
		})
	}
	return records, nil
}

// ParseSuit normalizes s and reports whether it names a suit.
func ParseSuit(s string) (Suit, bool) {
	// A Caser keeps state, so each call gets its own.
	suit := Suit(cases.Upper(language.Und).String(strings.TrimSpace(s)))
	return suit, suit.Valid()
}

// Resolve turns records into cards. The suit comes from Category1 when it
// names a suit, otherwise from Category2; records matching neither are dropped.
func Resolve(records []Record) []Card {
	cards := make([]Card, 0, len(records))
	for i, rec := range records {
		suit, ok := ParseSuit(rec.Category1)
		if !ok {
			suit, ok = ParseSuit(rec.Category2)
		}
		if !ok {
			continue
		}
		cards = append(cards, Card{
			Index:     i,
			Suit:      suit,
			Name:      strings.TrimSpace(rec.Name),
			Text:      strings.TrimSpace(rec.Text),
			ShortText: strings.TrimSpace(rec.ShortText),
			URL:       strings.TrimSpace(rec.URL),
		})
	}
	return cards
}
