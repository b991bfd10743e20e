package intent

import (
	"regexp"
	"sort"
	"strings"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
)

// Rule maps a pattern over normalized text to an intent and the domains it
// implies. Rules are evaluated in order; ties keep the earlier rule.
type Rule struct {
	Intent  domain.Intent
	Pattern *regexp.Regexp
	Domains []domain.DomainTag
}

func words(alternatives ...string) *regexp.Regexp {
	return regexp.MustCompile(`\b(?:` + strings.Join(alternatives, "|") + `)\b`)
}

// DefaultRules is the built-in Vietnamese rule set.
var DefaultRules = []Rule{
	{
		Intent:  domain.IntentInventory,
		Pattern: words("ton kho", "con bao nhieu", "con lai bao nhieu", "con hang", "trong kho", "het hang", "sap het", "so luong ton", "kiem kho", "nhap kho", "xuat kho"),
		Domains: []domain.DomainTag{domain.DomainInventory, domain.DomainProduct},
	},
	{
		Intent:  domain.IntentProduct,
		Pattern: words("san pham", "mat hang", "hang hoa", "danh muc hang", "thong tin hang"),
		Domains: []domain.DomainTag{domain.DomainProduct, domain.DomainInventory},
	},
	{
		Intent:  domain.IntentOrder,
		Pattern: words("don hang", "don dat", "dat hang", "giao hang", "van chuyen", "ma don"),
		Domains: []domain.DomainTag{domain.DomainOrder, domain.DomainCustomer},
	},
	{
		Intent:  domain.IntentCustomer,
		Pattern: words("khach hang", "khach quen", "nguoi mua", "khach vip"),
		Domains: []domain.DomainTag{domain.DomainCustomer, domain.DomainOrder},
	},
	{
		Intent:  domain.IntentSupplier,
		Pattern: words("nha cung cap", "ncc", "nguon hang", "nha phan phoi"),
		Domains: []domain.DomainTag{domain.DomainSupplier, domain.DomainProduct},
	},
	{
		Intent:  domain.IntentPrice,
		Pattern: words("bang gia", "gia si", "gia le", "gia ban", "chiet khau", "bao nhieu tien", "gia ca"),
		Domains: []domain.DomainTag{domain.DomainPriceList, domain.DomainProduct},
	},
	{
		Intent:  domain.IntentWarehouse,
		Pattern: words("kho hang", "nha kho", "cac kho", "kho nao", "suc chua", "vi tri kho"),
		Domains: []domain.DomainTag{domain.DomainWarehouse, domain.DomainInventory},
	},
	{
		Intent:  domain.IntentReport,
		Pattern: words("doanh thu", "bao cao", "thong ke", "tong ket", "loi nhuan", "ban chay"),
		Domains: []domain.DomainTag{domain.DomainOrder, domain.DomainCustomer, domain.DomainProduct},
	},
}

// EntityDomains lists the domains each entity type pulls into a request.
var EntityDomains = map[domain.EntityType][]domain.DomainTag{
	domain.EntityProductCode:  {domain.DomainProduct, domain.DomainInventory},
	domain.EntityProductName:  {domain.DomainProduct, domain.DomainInventory},
	domain.EntityCustomerCode: {domain.DomainCustomer, domain.DomainOrder},
	domain.EntityCustomerName: {domain.DomainCustomer, domain.DomainOrder},
	domain.EntityOrderCode:    {domain.DomainOrder},
	domain.EntityStatus:       {domain.DomainOrder},
	domain.EntityDate:         {domain.DomainOrder},
	domain.EntityDateRange:    {domain.DomainOrder},
	domain.EntitySupplierCode: {domain.DomainSupplier, domain.DomainProduct},
	domain.EntityPrice:        {domain.DomainPriceList, domain.DomainProduct},
	domain.EntityQuantity:     {domain.DomainInventory, domain.DomainProduct},
}

// StatusPhrases maps localized status phrases to canonical order status codes.
var StatusPhrases = map[string]string{
	"cho xac nhan":    "pending",
	"cho xu ly":       "pending",
	"chua xu ly":      "pending",
	"dang xu ly":      "processing",
	"dang giao":       "shipping",
	"dang van chuyen": "shipping",
	"da giao":         "delivered",
	"giao thanh cong": "delivered",
	"hoan thanh":      "completed",
	"da huy":          "cancelled",
	"bi huy":          "cancelled",
	"tra hang":        "returned",
	"chua thanh toan": "unpaid",
	"da thanh toan":   "paid",
}

// relativeDays resolves relative day words against the injected clock.
var relativeDays = map[string]int{
	"hom nay":  0,
	"hom qua":  -1,
	"hom kia":  -2,
	"ngay mai": 1,
}

var relativeRanges = []string{"tuan nay", "tuan truoc", "thang nay", "thang truoc", "nam nay"}

// productHeads start most produce names ("rau muong", "thit ba chi").
var productHeads = []string{"rau", "cu", "qua", "trai", "thit", "nam", "gao", "hat", "khoai", "dau"}

// nameStopwords cannot start or continue an extracted name.
var nameStopwords = map[string]bool{
	"nao": true, "gi": true, "nay": true, "moi": true, "trong": true, "con": true,
	"bao": true, "la": true, "co": true, "hien": true, "cua": true, "cho": true,
	"da": true, "dang": true, "duoc": true, "het": true, "ton": true, "gia": true,
	"quen": true, "vip": true, "hang": true, "mua": true, "dat": true, "than": true,
	"le": true, "si": true, "thang": true, "tuan": true, "hom": true, "nhanh": true,
	"phi": true, "tiet": true, "ay": true, "kia": true, "nhieu": true, "it": true,
	"ban": true, "nhat": true, "va": true, "voi": true, "o": true, "tai": true,
	"san": true, "mat": true, "giao": true, "nhap": true, "xuat": true, "ve": true,
	"khach": true, "don": true,
}

// alternation builds a longest-first alternation so leftmost-first regexp
// semantics always prefer the longer phrase.
func alternation(phrases []string) string {
	sorted := append([]string(nil), phrases...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	return strings.Join(sorted, "|")
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
