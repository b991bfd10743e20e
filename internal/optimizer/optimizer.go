// Package optimizer selects a bounded, intent-aware slice of domain data
// for the generation prompt.
package optimizer

import (
	"sort"
	"strings"
	"time"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-query-gateway/internal/intent"
)

const (
	// DefaultMaxTotalItems caps the records across all domains.
	DefaultMaxTotalItems = 30
	// DefaultMaxItemsPerDomain caps the records of any single domain.
	DefaultMaxItemsPerDomain = 15
)

// Limits bounds the optimizer output.
type Limits struct {
	MaxTotal     int
	MaxPerDomain int
}

// DefaultLimits returns the standard caps.
func DefaultLimits() Limits {
	return Limits{MaxTotal: DefaultMaxTotalItems, MaxPerDomain: DefaultMaxItemsPerDomain}
}

// Halve returns limits half the size of l, never below one item.
func (l Limits) Halve() Limits {
	return Limits{MaxTotal: max(l.MaxTotal/2, 1), MaxPerDomain: max(l.MaxPerDomain/2, 1)}
}

// Priority maps each intent to the domains it cares about, most relevant
// first. Domains outside the list follow in domain.ConcreteDomains order.
var Priority = map[domain.Intent][]domain.DomainTag{
	domain.IntentInventory: {domain.DomainInventory, domain.DomainProduct, domain.DomainWarehouse},
	domain.IntentProduct:   {domain.DomainProduct, domain.DomainInventory, domain.DomainPriceList},
	domain.IntentOrder:     {domain.DomainOrder, domain.DomainCustomer},
	domain.IntentCustomer:  {domain.DomainCustomer, domain.DomainOrder},
	domain.IntentSupplier:  {domain.DomainSupplier, domain.DomainProduct},
	domain.IntentPrice:     {domain.DomainPriceList, domain.DomainProduct},
	domain.IntentWarehouse: {domain.DomainWarehouse, domain.DomainInventory},
	domain.IntentReport:    {domain.DomainOrder, domain.DomainCustomer, domain.DomainProduct},
	domain.IntentGeneral:   {},
}

// Order returns the processing order for intent: its priority list followed
// by every other concrete domain in fallback order.
func Order(in domain.Intent) []domain.DomainTag {
	order := make([]domain.DomainTag, 0, len(domain.ConcreteDomains))
	seen := make(map[domain.DomainTag]bool, len(domain.ConcreteDomains))
	for _, tag := range Priority[in] {
		if !seen[tag] {
			seen[tag] = true
			order = append(order, tag)
		}
	}
	for _, tag := range domain.ConcreteDomains {
		if !seen[tag] {
			seen[tag] = true
			order = append(order, tag)
		}
	}
	return order
}

// Optimizer applies Limits to fetched domain data.
type Optimizer struct {
	limits Limits
}

// New creates an optimizer. Non-positive limits fall back to the defaults.
func New(limits Limits) *Optimizer {
	def := DefaultLimits()
	if limits.MaxTotal <= 0 {
		limits.MaxTotal = def.MaxTotal
	}
	if limits.MaxPerDomain <= 0 {
		limits.MaxPerDomain = def.MaxPerDomain
	}
	return &Optimizer{limits: limits}
}

// Limits returns the configured caps.
func (o *Optimizer) Limits() Limits {
	return o.limits
}

// Optimize selects records from data using the configured limits.
func (o *Optimizer) Optimize(data domain.DomainData, result *domain.IntentResult) *domain.OptimizedContext {
	return o.OptimizeWithin(data, result, o.limits)
}

// OptimizeWithin selects records from data under the given limits. Domains
// are visited in priority order; once the total cap is reached the remaining
// domains are dropped.
func (o *Optimizer) OptimizeWithin(data domain.DomainData, result *domain.IntentResult, limits Limits) *domain.OptimizedContext {
	out := &domain.OptimizedContext{Data: make(domain.DomainData)}
	if result == nil {
		result = &domain.IntentResult{PrimaryIntent: domain.IntentGeneral}
	}

	remaining := limits.MaxTotal
	for _, tag := range Order(result.PrimaryIntent) {
		if remaining <= 0 {
			break
		}
		rows := data[tag]
		if len(rows) == 0 {
			continue
		}

		selected := selectRows(tag, rows, result)
		n := min(len(selected), limits.MaxPerDomain, remaining)
		if n == 0 {
			continue
		}
		out.Domains = append(out.Domains, tag)
		out.Data[tag] = selected[:n:n]
		remaining -= n
	}
	return out
}

// selectRows filters by matching entities and applies the domain sort. The
// input slice is never reordered in place.
func selectRows(tag domain.DomainTag, rows []domain.Record, result *domain.IntentResult) []domain.Record {
	filtered := filterByEntities(tag, rows, result)
	if len(filtered) == 0 {
		filtered = rows
	}
	selected := make([]domain.Record, len(filtered))
	copy(selected, filtered)

	switch tag {
	case domain.DomainInventory:
		sort.SliceStable(selected, func(i, j int) bool {
			return quantity(selected[i]) < quantity(selected[j])
		})
	case domain.DomainCustomer:
		sort.SliceStable(selected, func(i, j int) bool {
			return orderCount(selected[i]) > orderCount(selected[j])
		})
	}
	return selected
}

func filterByEntities(tag domain.DomainTag, rows []domain.Record, result *domain.IntentResult) []domain.Record {
	var match func(domain.Record) bool

	switch tag {
	case domain.DomainProduct, domain.DomainInventory:
		codes := entityValues(result, domain.EntityProductCode)
		names := entityValues(result, domain.EntityProductName)
		if len(codes) == 0 && len(names) == 0 {
			return nil
		}
		match = func(r domain.Record) bool {
			return matchesCode(r.Code(), codes) || matchesName(r.Title(), names)
		}

	case domain.DomainOrder:
		statuses := entityValues(result, domain.EntityStatus)
		dates := entityValues(result, domain.EntityDate)
		ranges := entityValues(result, domain.EntityDateRange)
		codes := entityValues(result, domain.EntityOrderCode)
		if len(statuses) == 0 && len(dates) == 0 && len(ranges) == 0 && len(codes) == 0 {
			return nil
		}
		match = func(r domain.Record) bool {
			o, ok := r.(domain.Order)
			if !ok {
				return false
			}
			if matchesCode(o.OrderCode, codes) {
				return true
			}
			if len(statuses) > 0 && !contains(statuses, o.Status) {
				return false
			}
			if len(dates) > 0 && !contains(dates, o.OrderDate.Format(time.DateOnly)) {
				return false
			}
			if len(ranges) > 0 && !inAnyRange(o.OrderDate, ranges) {
				return false
			}
			return len(statuses) > 0 || len(dates) > 0 || len(ranges) > 0
		}

	default:
		return nil
	}

	var out []domain.Record
	for _, r := range rows {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

func entityValues(result *domain.IntentResult, t domain.EntityType) []string {
	var out []string
	for _, e := range result.EntitiesOf(t) {
		out = append(out, e.Value)
	}
	return out
}

func matchesCode(code string, codes []string) bool {
	for _, c := range codes {
		if strings.EqualFold(code, c) {
			return true
		}
	}
	return false
}

func matchesName(title string, names []string) bool {
	if len(names) == 0 {
		return false
	}
	norm := intent.NormalizeText(title)
	for _, n := range names {
		if n != "" && strings.Contains(norm, n) {
			return true
		}
	}
	return false
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// inAnyRange checks t against "from/to" ISO date intervals, both ends
// inclusive.
func inAnyRange(t time.Time, ranges []string) bool {
	day := t.Format(time.DateOnly)
	for _, r := range ranges {
		from, to, ok := strings.Cut(r, "/")
		if !ok {
			continue
		}
		if day >= from && day <= to {
			return true
		}
	}
	return false
}

func quantity(r domain.Record) float64 {
	if i, ok := r.(domain.InventoryItem); ok {
		return i.Quantity
	}
	return 0
}

func orderCount(r domain.Record) int {
	if c, ok := r.(domain.Customer); ok {
		return c.OrderCount
	}
	return 0
}
