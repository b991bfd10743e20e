package sqldb

import (
	"context"
	"fmt"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
)

// domainTable describes how one domain is stored.
type domainTable struct {
	table    string
	columns  string
	orderBy  string
	conflict string
	updates  []string
}

var domainTables = map[domain.DomainTag]domainTable{
	domain.DomainProduct: {
		table:    "products",
		columns:  "code, name, category, unit, price, status",
		orderBy:  "code",
		conflict: "code",
		updates:  []string{"name", "category", "unit", "price", "status"},
	},
	domain.DomainInventory: {
		table:    "inventory",
		columns:  "product_code, product_name, warehouse_code, quantity, unit, min_stock",
		orderBy:  "product_code, warehouse_code",
		conflict: "product_code, warehouse_code",
		updates:  []string{"product_name", "quantity", "unit", "min_stock"},
	},
	domain.DomainOrder: {
		table:    "orders",
		columns:  "code, customer_code, customer_name, status, total, item_count, order_date",
		orderBy:  "order_date DESC, code",
		conflict: "code",
		updates:  []string{"customer_code", "customer_name", "status", "total", "item_count", "order_date"},
	},
	domain.DomainCustomer: {
		table:    "customers",
		columns:  "code, name, phone, tier, order_count, total_spent",
		orderBy:  "code",
		conflict: "code",
		updates:  []string{"name", "phone", "tier", "order_count", "total_spent"},
	},
	domain.DomainSupplier: {
		table:    "suppliers",
		columns:  "code, name, phone, category, product_count",
		orderBy:  "code",
		conflict: "code",
		updates:  []string{"name", "phone", "category", "product_count"},
	},
	domain.DomainPriceList: {
		table:    "price_lists",
		columns:  "code, list_name, product_code, product_name, price, min_quantity",
		orderBy:  "list_name, product_code",
		conflict: "code",
		updates:  []string{"list_name", "product_code", "product_name", "price", "min_quantity"},
	},
	domain.DomainWarehouse: {
		table:    "warehouses",
		columns:  "code, name, address, capacity, used",
		orderBy:  "code",
		conflict: "code",
		updates:  []string{"name", "address", "capacity", "used"},
	},
}

// Fetch reads up to the fetch limit of rows for tag in domain order.
func (s *Store) Fetch(ctx context.Context, tag domain.DomainTag) ([]domain.Record, error) {
	t, ok := domainTables[tag]
	if !ok {
		return nil, fmt.Errorf("no table for domain %q", tag)
	}
	query := s.dialect.Rebind(fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s LIMIT ?`, t.columns, t.table, t.orderBy))

	switch tag {
	case domain.DomainProduct:
		return selectRecords[domain.Product](ctx, s, query)
	case domain.DomainInventory:
		return selectRecords[domain.InventoryItem](ctx, s, query)
	case domain.DomainOrder:
		return selectRecords[domain.Order](ctx, s, query)
	case domain.DomainCustomer:
		return selectRecords[domain.Customer](ctx, s, query)
	case domain.DomainSupplier:
		return selectRecords[domain.Supplier](ctx, s, query)
	case domain.DomainPriceList:
		return selectRecords[domain.PriceListEntry](ctx, s, query)
	default:
		return selectRecords[domain.Warehouse](ctx, s, query)
	}
}

func selectRecords[T domain.Record](ctx context.Context, s *Store, query string) ([]domain.Record, error) {
	var rows []T
	if err := s.db.SelectContext(ctx, &rows, query, s.fetchLimit); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", query, err)
	}
	out := make([]domain.Record, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

// Upsert writes records into their domain tables, replacing rows with the
// same key. It is used for seeding and sync jobs.
func (s *Store) Upsert(ctx context.Context, records ...domain.Record) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		t, ok := domainTables[r.Domain()]
		if !ok {
			return fmt.Errorf("no table for domain %q", r.Domain())
		}
		query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) %s`,
			t.table, t.columns, namedParams(t.columns), s.dialect.UpsertClause(t.conflict, t.updates))
		if _, err := tx.NamedExecContext(ctx, query, r); err != nil {
			return fmt.Errorf("failed to upsert %s %s: %w", r.Domain(), r.Code(), err)
		}
	}
	return tx.Commit()
}

// namedParams turns "a, b" into ":a, :b".
func namedParams(columns string) string {
	out := make([]byte, 0, len(columns)*2)
	out = append(out, ':')
	for i := 0; i < len(columns); i++ {
		out = append(out, columns[i])
		if columns[i] == ' ' && i > 0 && columns[i-1] == ',' {
			out = append(out, ':')
		}
	}
	return string(out)
}
