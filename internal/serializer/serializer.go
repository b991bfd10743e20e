// Package serializer renders an optimized context into the compact text
// block embedded in generation prompts.
package serializer

import (
	"bufio"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
)

// NoData is emitted when the context carries no records.
const NoData = "[NO_DATA]"

// CurrencySuffix follows amounts below one thousand.
const CurrencySuffix = "đ"

const fieldSep = "|"

// Abbreviations are the header tags used for each domain.
var Abbreviations = map[domain.DomainTag]string{
	domain.DomainProduct:   "SP",
	domain.DomainOrder:     "DH",
	domain.DomainCustomer:  "KH",
	domain.DomainSupplier:  "NCC",
	domain.DomainInventory: "TK",
	domain.DomainPriceList: "BG",
	domain.DomainWarehouse: "KHO",
}

// Relevance is the fixed citation score reported per domain.
var Relevance = map[domain.DomainTag]float64{
	domain.DomainProduct:   0.9,
	domain.DomainInventory: 0.9,
	domain.DomainOrder:     0.85,
	domain.DomainCustomer:  0.8,
	domain.DomainPriceList: 0.8,
	domain.DomainSupplier:  0.75,
	domain.DomainWarehouse: 0.7,
}

var (
	byAbbreviation = func() map[string]domain.DomainTag {
		m := make(map[string]domain.DomainTag, len(Abbreviations))
		for tag, abbr := range Abbreviations {
			m[abbr] = tag
		}
		return m
	}()

	headerPattern = regexp.MustCompile(`^\[([A-Z]+):(\d+)\]$`)

	sanitizer = strings.NewReplacer(fieldSep, "/", "\n", " ", "\r", " ", "[", "(", "]", ")")
)

// Serialize renders ctx in its domain order and returns one Source per
// rendered domain. An empty context yields NoData and no sources.
func Serialize(ctx *domain.OptimizedContext) (string, []domain.Source) {
	if ctx.Empty() {
		return NoData, []domain.Source{}
	}

	var b strings.Builder
	sources := make([]domain.Source, 0, len(ctx.Domains))
	for _, tag := range ctx.Domains {
		rows := ctx.Data[tag]
		if len(rows) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s:%d]", Abbreviations[tag], len(rows))
		for _, r := range rows {
			b.WriteByte('\n')
			b.WriteString(Line(r))
		}
		sources = append(sources, domain.Source{
			Domain:         tag,
			RecordCount:    len(rows),
			RelevanceScore: Relevance[tag],
		})
	}
	return b.String(), sources
}

// Line renders one record with its domain's field template.
func Line(r domain.Record) string {
	var fields []string
	switch v := r.(type) {
	case domain.Product:
		fields = []string{v.ProductCode, v.Name, Money(v.Price), v.Unit, v.Status}
	case domain.InventoryItem:
		qty := Number(v.Quantity) + v.Unit
		if v.MinStock > 0 && v.Quantity <= v.MinStock {
			qty += "!"
		}
		fields = []string{v.ProductCode, v.ProductName, qty, v.WarehouseCode}
	case domain.Order:
		date := ""
		if !v.OrderDate.IsZero() {
			date = v.OrderDate.Format("02/01")
		}
		fields = []string{v.OrderCode, v.CustomerName, v.Status, Money(v.Total), date, strconv.Itoa(v.ItemCount) + "sp"}
	case domain.Customer:
		fields = []string{v.CustomerCode, v.Name, v.Tier, strconv.Itoa(v.OrderCount) + "dh", Money(v.TotalSpent)}
	case domain.Supplier:
		fields = []string{v.SupplierCode, v.Name, v.Category, strconv.Itoa(v.ProductCount) + "sp"}
	case domain.PriceListEntry:
		fields = []string{v.ListName, v.ProductCode, v.ProductName, Money(v.Price), ">=" + Number(v.MinQuantity)}
	case domain.Warehouse:
		fields = []string{v.WarehouseCode, v.Name, Number(v.Used) + "/" + Number(v.Capacity)}
	default:
		fields = []string{r.Code(), r.Title()}
	}

	for i, f := range fields {
		fields[i] = sanitizer.Replace(f)
	}
	return strings.TrimRight(strings.Join(fields, fieldSep), fieldSep)
}

// Money applies the magnitude rule: millions as one-decimal M, thousands
// rounded to the nearest k, anything smaller as the integer plus currency.
func Money(v int64) string {
	sign := ""
	abs := v
	if v < 0 {
		sign, abs = "-", -v
	}
	thousands := int64(math.Round(float64(abs) / 1_000))
	switch {
	case abs >= 1_000_000 || thousands >= 1_000:
		return sign + strconv.FormatFloat(float64(abs)/1_000_000, 'f', 1, 64) + "M"
	case abs >= 1_000:
		return sign + strconv.FormatInt(thousands, 10) + "k"
	default:
		return sign + strconv.FormatInt(abs, 10) + CurrencySuffix
	}
}

// Number renders a quantity without trailing zeros.
func Number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseCounts reads the header lines of serialized text back into per-domain
// record counts. NoData parses to an empty map.
func ParseCounts(text string) (map[domain.DomainTag]int, error) {
	counts := make(map[domain.DomainTag]int)
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		m := headerPattern.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		tag, ok := byAbbreviation[m[1]]
		if !ok {
			return nil, fmt.Errorf("unknown domain header %q", m[1])
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("header %q: %w", sc.Text(), err)
		}
		counts[tag] = n
	}
	return counts, sc.Err()
}
