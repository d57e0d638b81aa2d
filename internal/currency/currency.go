// Package currency converts amounts between the reference currency and the
// currencies published in the ECB single-day rates file.
//
// Rates are cached and only re-read when the file's modification time
// changes, so the file can be replaced while the service is running.
package currency

import (
	"encoding/csv"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// RefCurrency is the currency all amounts are stored in.
const RefCurrency = "EUR"

var ErrUnknownCurrency = errors.New("unknown currency")

type Converter struct {
	path      string
	reference string

	mu      sync.Mutex
	rates   map[string]float64
	modTime time.Time
	loaded  bool
}

func NewConverter(path, reference string) *Converter {
	if reference == "" {
		reference = RefCurrency
	}
	return &Converter{path: path, reference: strings.ToUpper(reference)}
}

func (c *Converter) Reference() string {
	return c.reference
}

// Rates returns the rate table, reloading it if the file changed since the
// last call. A missing file yields a table holding only the reference currency.
func (c *Converter) Rates() (map[string]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := os.Stat(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.rates = map[string]float64{c.reference: 1}
			c.loaded = true
			c.modTime = time.Time{}
			return c.rates, nil
		}
		return nil, fmt.Errorf("stat rates file: %w", err)
	}

	if c.loaded && info.ModTime().Equal(c.modTime) {
		return c.rates, nil
	}

	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("open rates file: %w", err)
	}
	defer f.Close()

	rates, err := parseECB(f)
	if err != nil {
		return nil, err
	}
	rates[c.reference] = 1

	c.rates = rates
	c.modTime = info.ModTime()
	c.loaded = true
	return c.rates, nil
}

// Currencies lists the known currency codes, reference first.
func (c *Converter) Currencies() ([]string, error) {
	rates, err := c.Rates()
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(rates))
	for code := range rates {
		if code != c.reference {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return append([]string{c.reference}, codes...), nil
}

func (c *Converter) rate(code string) (float64, error) {
	rates, err := c.Rates()
	if err != nil {
		return 0, err
	}
	r, ok := rates[strings.ToUpper(code)]
	if !ok || r <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
	}
	return r, nil
}

// Convert converts an amount in the reference currency into code, rounded
// to cents.
func (c *Converter) Convert(amount int64, code string) (float64, error) {
	r, err := c.rate(code)
	if err != nil {
		return 0, err
	}
	converted, _ := decimal.NewFromInt(amount).Mul(decimal.NewFromFloat(r)).Round(2).Float64()
	return converted, nil
}

// ConvertFrom converts an amount given in code into the reference currency,
// rounding up so a converted bid never falls below what the user typed.
func (c *Converter) ConvertFrom(amount float64, code string) (int64, error) {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("invalid amount %v", amount)
	}
	r, err := c.rate(code)
	if err != nil {
		return 0, err
	}
	return decimal.NewFromFloat(amount).Div(decimal.NewFromFloat(r)).Ceil().IntPart(), nil
}

func Format(amount float64, code string) string {
	return decimal.NewFromFloat(amount).StringFixed(2) + " " + strings.ToUpper(code)
}

// FormatRef formats an amount held in the reference currency.
func FormatRef(amount int64) string {
	return strconv.FormatInt(amount, 10) + " " + RefCurrency
}

// Escape makes a value safe to interpolate into notification markup.
func Escape(s string) string {
	return html.EscapeString(s)
}

// parseECB reads the ECB single-day CSV: a header row of currency codes led
// by "Date", followed by one row of rates. Cells may carry padding and the
// rows end with a trailing comma.
func parseECB(r io.Reader) (map[string]float64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read rates header: %w", err)
	}
	values, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read rates row: %w", err)
	}

	rates := make(map[string]float64, len(header))
	for i := 1; i < len(header) && i < len(values); i++ {
		code := strings.ToUpper(strings.TrimSpace(header[i]))
		raw := strings.TrimSpace(values[i])
		if code == "" || raw == "" || raw == "N/A" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse rate for %s: %w", code, err)
		}
		rates[code] = v
	}
	return rates, nil
}
