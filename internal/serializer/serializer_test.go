package serializer

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-query-gateway/internal/optimizer"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{1_500_000, "1.5M"},
		{15_000, "15k"},
		{500, "500đ"},
		{0, "0đ"},
		{999, "999đ"},
		{1_000, "1k"},
		{15_499, "15k"},
		{15_500, "16k"},
		{2_000_000, "2.0M"},
		{12_345_678, "12.3M"},
		{-25_000, "-25k"},
		{999_499, "999k"},
		{999_500, "1.0M"},
		{999_999, "1.0M"},
		{-999_999, "-1.0M"},
	}
	for _, tt := range tests {
		if got := Money(tt.in); got != tt.want {
			t.Errorf("Money(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSerialize_Empty(t *testing.T) {
	for _, ctx := range []*domain.OptimizedContext{nil, {}, {Domains: []domain.DomainTag{domain.DomainProduct}, Data: domain.DomainData{}}} {
		text, sources := Serialize(ctx)
		if text != NoData {
			t.Errorf("Serialize() text = %q, want %q", text, NoData)
		}
		if sources == nil || len(sources) != 0 {
			t.Errorf("Serialize() sources = %#v, want empty non-nil", sources)
		}
	}
}

func TestSerialize_Layout(t *testing.T) {
	ctx := &domain.OptimizedContext{
		Domains: []domain.DomainTag{domain.DomainInventory, domain.DomainProduct},
		Data: domain.DomainData{
			domain.DomainInventory: {
				domain.InventoryItem{ProductCode: "SP002", ProductName: "Rau muống", Quantity: 3, Unit: "kg", WarehouseCode: "K1", MinStock: 5},
			},
			domain.DomainProduct: {
				domain.Product{ProductCode: "SP002", Name: "Rau muống", Price: 15_000, Unit: "kg", Status: "active"},
				domain.Product{ProductCode: "SP009", Name: "Gạo | tám", Price: 1_500_000, Unit: "bao"},
			},
		},
	}

	text, sources := Serialize(ctx)

	want := strings.Join([]string{
		"[TK:1]",
		"SP002|Rau muống|3kg!|K1",
		"[SP:2]",
		"SP002|Rau muống|15k|kg|active",
		"SP009|Gạo / tám|1.5M|bao",
	}, "\n")
	if text != want {
		t.Errorf("Serialize() text =\n%s\nwant\n%s", text, want)
	}

	wantSources := []domain.Source{
		{Domain: domain.DomainInventory, RecordCount: 1, RelevanceScore: 0.9},
		{Domain: domain.DomainProduct, RecordCount: 2, RelevanceScore: 0.9},
	}
	if !reflect.DeepEqual(sources, wantSources) {
		t.Errorf("Serialize() sources = %+v, want %+v", sources, wantSources)
	}
}

func TestLine_Templates(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.Record
		want string
	}{
		{"order", domain.Order{OrderCode: "DH1", CustomerName: "Chị Lan", Status: "delivered", Total: 250_000, ItemCount: 3, OrderDate: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)}, "DH1|Chị Lan|delivered|250k|16/10|3sp"},
		{"customer", domain.Customer{CustomerCode: "KH1", Name: "An", Tier: "gold", OrderCount: 12, TotalSpent: 4_200_000}, "KH1|An|gold|12dh|4.2M"},
		{"supplier", domain.Supplier{SupplierCode: "NCC1", Name: "Đà Lạt Farm", Category: "rau", ProductCount: 8}, "NCC1|Đà Lạt Farm|rau|8sp"},
		{"price list", domain.PriceListEntry{ListName: "si", ProductCode: "SP1", ProductName: "Cải", Price: 12_000, MinQuantity: 10}, "si|SP1|Cải|12k|>=10"},
		{"warehouse", domain.Warehouse{WarehouseCode: "K1", Name: "Kho Q7", Used: 120.5, Capacity: 500}, "K1|Kho Q7|120.5/500"},
		{"bracketed field", domain.Product{ProductCode: "[SP:3]", Name: "x", Price: 1}, "(SP:3)|x|1đ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Line(tt.rec); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseCounts_RoundTrip(t *testing.T) {
	data := make(domain.DomainData)
	for i, tag := range domain.ConcreteDomains {
		rows := make([]domain.Record, 10+i*3)
		for j := range rows {
			code := fmt.Sprintf("%s%d", tag, j)
			switch tag {
			case domain.DomainInventory:
				rows[j] = domain.InventoryItem{ProductCode: code, Quantity: float64(j)}
			case domain.DomainOrder:
				rows[j] = domain.Order{OrderCode: code}
			case domain.DomainCustomer:
				rows[j] = domain.Customer{CustomerCode: code, OrderCount: j}
			case domain.DomainSupplier:
				rows[j] = domain.Supplier{SupplierCode: code}
			case domain.DomainPriceList:
				rows[j] = domain.PriceListEntry{EntryCode: code}
			case domain.DomainWarehouse:
				rows[j] = domain.Warehouse{WarehouseCode: code}
			default:
				rows[j] = domain.Product{ProductCode: code}
			}
		}
		data[tag] = rows
	}

	o := optimizer.New(optimizer.Limits{MaxTotal: 60, MaxPerDomain: 9})
	for _, in := range []domain.Intent{domain.IntentGeneral, domain.IntentReport, domain.IntentInventory} {
		ctx := o.Optimize(data, &domain.IntentResult{PrimaryIntent: in})
		text, _ := Serialize(ctx)

		counts, err := ParseCounts(text)
		if err != nil {
			t.Fatalf("ParseCounts() error = %v", err)
		}
		want := make(map[domain.DomainTag]int)
		for tag, rows := range ctx.Data {
			want[tag] = len(rows)
		}
		if !reflect.DeepEqual(counts, want) {
			t.Errorf("%s: ParseCounts() = %v, want %v", in, counts, want)
		}
	}
}

func TestParseCounts_NoData(t *testing.T) {
	counts, err := ParseCounts(NoData)
	if err != nil {
		t.Fatalf("ParseCounts() error = %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("ParseCounts(NoData) = %v, want empty", counts)
	}
}

func TestParseCounts_UnknownHeader(t *testing.T) {
	if _, err := ParseCounts("[XYZ:3]"); err == nil {
		t.Error("ParseCounts() expected error for unknown header")
	}
}
