package optimizer

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
)

func products(n int) []domain.Record {
	rows := make([]domain.Record, n)
	for i := range rows {
		rows[i] = domain.Product{ProductCode: fmt.Sprintf("SP%03d", i+1), Name: fmt.Sprintf("hang %d", i+1)}
	}
	return rows
}

func inventory(quantities ...float64) []domain.Record {
	rows := make([]domain.Record, len(quantities))
	for i, q := range quantities {
		rows[i] = domain.InventoryItem{ProductCode: fmt.Sprintf("SP%03d", i+1), ProductName: fmt.Sprintf("hang %d", i+1), Quantity: q}
	}
	return rows
}

func fullData(perDomain int) domain.DomainData {
	data := make(domain.DomainData)
	for _, tag := range domain.ConcreteDomains {
		rows := make([]domain.Record, perDomain)
		for i := range rows {
			code := fmt.Sprintf("%s-%d", tag, i)
			switch tag {
			case domain.DomainInventory:
				rows[i] = domain.InventoryItem{ProductCode: code, Quantity: float64(perDomain - i)}
			case domain.DomainCustomer:
				rows[i] = domain.Customer{CustomerCode: code, OrderCount: i}
			case domain.DomainOrder:
				rows[i] = domain.Order{OrderCode: code}
			case domain.DomainSupplier:
				rows[i] = domain.Supplier{SupplierCode: code}
			case domain.DomainPriceList:
				rows[i] = domain.PriceListEntry{EntryCode: code}
			case domain.DomainWarehouse:
				rows[i] = domain.Warehouse{WarehouseCode: code}
			default:
				rows[i] = domain.Product{ProductCode: code}
			}
		}
		data[tag] = rows
	}
	return data
}

func TestOptimize_Caps(t *testing.T) {
	intents := []domain.Intent{
		domain.IntentInventory, domain.IntentProduct, domain.IntentOrder,
		domain.IntentCustomer, domain.IntentSupplier, domain.IntentPrice,
		domain.IntentWarehouse, domain.IntentReport, domain.IntentGeneral,
	}
	sizes := []int{0, 1, 14, 15, 16, 40, 200}

	o := New(DefaultLimits())
	for _, in := range intents {
		for _, size := range sizes {
			t.Run(fmt.Sprintf("%s/%d", in, size), func(t *testing.T) {
				ctx := o.Optimize(fullData(size), &domain.IntentResult{PrimaryIntent: in})
				if total := ctx.Total(); total > DefaultMaxTotalItems {
					t.Errorf("Total() = %d, want <= %d", total, DefaultMaxTotalItems)
				}
				for tag, rows := range ctx.Data {
					if len(rows) > DefaultMaxItemsPerDomain {
						t.Errorf("%s has %d rows, want <= %d", tag, len(rows), DefaultMaxItemsPerDomain)
					}
				}
				if len(ctx.Domains) != len(ctx.Data) {
					t.Errorf("Domains = %v does not match Data keys", ctx.Domains)
				}
			})
		}
	}
}

func TestOptimize_PriorityOrder(t *testing.T) {
	o := New(DefaultLimits())
	ctx := o.Optimize(fullData(15), &domain.IntentResult{PrimaryIntent: domain.IntentOrder})

	want := []domain.DomainTag{domain.DomainOrder, domain.DomainCustomer}
	if !reflect.DeepEqual(ctx.Domains, want) {
		t.Errorf("Domains = %v, want %v", ctx.Domains, want)
	}
}

func TestOptimize_StopsAtTotalCap(t *testing.T) {
	o := New(DefaultLimits())
	data := fullData(10)
	ctx := o.Optimize(data, &domain.IntentResult{PrimaryIntent: domain.IntentInventory})

	// inventory, product and warehouse fill the 30 slots; nothing else fits
	want := []domain.DomainTag{domain.DomainInventory, domain.DomainProduct, domain.DomainWarehouse}
	if !reflect.DeepEqual(ctx.Domains, want) {
		t.Errorf("Domains = %v, want %v", ctx.Domains, want)
	}
	if ctx.Total() != 30 {
		t.Errorf("Total() = %d, want 30", ctx.Total())
	}
}

func TestOptimize_FallbackOrderForGeneral(t *testing.T) {
	o := New(Limits{MaxTotal: 100, MaxPerDomain: 2})
	ctx := o.Optimize(fullData(3), &domain.IntentResult{PrimaryIntent: domain.IntentGeneral, Domains: []domain.DomainTag{domain.DomainAll}})

	if !reflect.DeepEqual(ctx.Domains, domain.ConcreteDomains) {
		t.Errorf("Domains = %v, want %v", ctx.Domains, domain.ConcreteDomains)
	}
}

func TestOptimize_InventorySortedAscending(t *testing.T) {
	o := New(DefaultLimits())
	data := domain.DomainData{domain.DomainInventory: inventory(50, 3, 20, 0, 7)}
	ctx := o.Optimize(data, &domain.IntentResult{PrimaryIntent: domain.IntentInventory})

	var got []float64
	for _, r := range ctx.Data[domain.DomainInventory] {
		got = append(got, r.(domain.InventoryItem).Quantity)
	}
	want := []float64{0, 3, 7, 20, 50}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("quantities = %v, want %v", got, want)
	}

	// input untouched
	if q := data[domain.DomainInventory][0].(domain.InventoryItem).Quantity; q != 50 {
		t.Errorf("input reordered, first quantity = %v", q)
	}
}

func TestOptimize_CustomerSortedByOrderCount(t *testing.T) {
	o := New(DefaultLimits())
	data := domain.DomainData{domain.DomainCustomer: {
		domain.Customer{CustomerCode: "KH1", OrderCount: 2},
		domain.Customer{CustomerCode: "KH2", OrderCount: 9},
		domain.Customer{CustomerCode: "KH3", OrderCount: 5},
	}}
	ctx := o.Optimize(data, &domain.IntentResult{PrimaryIntent: domain.IntentCustomer})

	var got []string
	for _, r := range ctx.Data[domain.DomainCustomer] {
		got = append(got, r.Code())
	}
	if want := []string{"KH2", "KH3", "KH1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("codes = %v, want %v", got, want)
	}
}

func TestOptimize_EntityFilter(t *testing.T) {
	o := New(DefaultLimits())
	data := domain.DomainData{
		domain.DomainInventory: {
			domain.InventoryItem{ProductCode: "SP001", ProductName: "Cải thìa", Quantity: 1},
			domain.InventoryItem{ProductCode: "SP002", ProductName: "Rau muống", Quantity: 40},
			domain.InventoryItem{ProductCode: "SP003", ProductName: "Rau muống hạt", Quantity: 12},
		},
		domain.DomainProduct: products(5),
	}
	result := &domain.IntentResult{
		PrimaryIntent: domain.IntentInventory,
		Entities:      []domain.Entity{{Type: domain.EntityProductName, Value: "rau muong"}},
	}

	ctx := o.Optimize(data, result)

	inv := ctx.Data[domain.DomainInventory]
	if len(inv) != 2 {
		t.Fatalf("inventory rows = %d, want 2", len(inv))
	}
	if inv[0].Code() != "SP003" || inv[1].Code() != "SP002" {
		t.Errorf("inventory = %v, want SP003 then SP002", inv)
	}
	// no product row matches the name, so the full set is used
	if got := len(ctx.Data[domain.DomainProduct]); got != 5 {
		t.Errorf("product rows = %d, want 5", got)
	}
}

func TestOptimize_OrderFilters(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 10, d, 10, 0, 0, 0, time.UTC) }
	orders := []domain.Record{
		domain.Order{OrderCode: "DH1", Status: "delivered", OrderDate: day(16)},
		domain.Order{OrderCode: "DH2", Status: "cancelled", OrderDate: day(16)},
		domain.Order{OrderCode: "DH3", Status: "delivered", OrderDate: day(10)},
		domain.Order{OrderCode: "DH4", Status: "pending", OrderDate: day(14)},
	}

	tests := []struct {
		name     string
		entities []domain.Entity
		want     []string
	}{
		{"status", []domain.Entity{{Type: domain.EntityStatus, Value: "delivered"}}, []string{"DH1", "DH3"}},
		{"date", []domain.Entity{{Type: domain.EntityDate, Value: "2026-10-16"}}, []string{"DH1", "DH2"}},
		{"status and date", []domain.Entity{
			{Type: domain.EntityStatus, Value: "delivered"},
			{Type: domain.EntityDate, Value: "2026-10-16"},
		}, []string{"DH1"}},
		{"range", []domain.Entity{{Type: domain.EntityDateRange, Value: "2026-10-12/2026-10-18"}}, []string{"DH1", "DH2", "DH4"}},
		{"order code", []domain.Entity{{Type: domain.EntityOrderCode, Value: "DH4"}}, []string{"DH4"}},
		{"no match falls back", []domain.Entity{{Type: domain.EntityStatus, Value: "returned"}}, []string{"DH1", "DH2", "DH3", "DH4"}},
	}

	o := New(DefaultLimits())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := o.Optimize(domain.DomainData{domain.DomainOrder: orders}, &domain.IntentResult{
				PrimaryIntent: domain.IntentOrder,
				Entities:      tt.entities,
			})
			var got []string
			for _, r := range ctx.Data[domain.DomainOrder] {
				got = append(got, r.Code())
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("codes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOptimize_EmptyData(t *testing.T) {
	ctx := New(DefaultLimits()).Optimize(nil, nil)
	if !ctx.Empty() || len(ctx.Domains) != 0 {
		t.Errorf("Optimize(nil) = %+v, want empty", ctx)
	}
}

func TestLimits_Halve(t *testing.T) {
	l := DefaultLimits().Halve()
	if l.MaxTotal != 15 || l.MaxPerDomain != 7 {
		t.Errorf("Halve() = %+v, want {15 7}", l)
	}
	floor := Limits{MaxTotal: 1, MaxPerDomain: 1}.Halve()
	if floor.MaxTotal != 1 || floor.MaxPerDomain != 1 {
		t.Errorf("Halve() floor = %+v, want {1 1}", floor)
	}
}

func TestNew_DefaultsNonPositiveLimits(t *testing.T) {
	if got := New(Limits{}).Limits(); got != DefaultLimits() {
		t.Errorf("Limits() = %+v, want defaults", got)
	}
}
