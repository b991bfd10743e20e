package domain

import "time"

// Record is a typed row from one domain. The set of implementations is
// closed; use a type switch to reach domain-specific fields.
type Record interface {
	Domain() DomainTag
	Code() string
	Title() string
	isRecord()
}

// DomainData maps each fetched domain to its rows.
type DomainData map[DomainTag][]Record

// Product is a sellable item.
type Product struct {
	ProductCode string `json:"code" db:"code"`
	Name        string `json:"name" db:"name"`
	Category    string `json:"category" db:"category"`
	Unit        string `json:"unit" db:"unit"`
	Price       int64  `json:"price" db:"price"`
	Status      string `json:"status" db:"status"`
}

func (p Product) Domain() DomainTag { return DomainProduct }
func (p Product) Code() string      { return p.ProductCode }
func (p Product) Title() string     { return p.Name }
func (Product) isRecord()           {}

// InventoryItem is the stock level of one product in one warehouse.
type InventoryItem struct {
	ProductCode   string  `json:"product_code" db:"product_code"`
	ProductName   string  `json:"product_name" db:"product_name"`
	WarehouseCode string  `json:"warehouse_code" db:"warehouse_code"`
	Quantity      float64 `json:"quantity" db:"quantity"`
	Unit          string  `json:"unit" db:"unit"`
	MinStock      float64 `json:"min_stock" db:"min_stock"`
}

func (i InventoryItem) Domain() DomainTag { return DomainInventory }
func (i InventoryItem) Code() string      { return i.ProductCode }
func (i InventoryItem) Title() string     { return i.ProductName }
func (InventoryItem) isRecord()           {}

// Order is a customer order header.
type Order struct {
	OrderCode    string    `json:"code" db:"code"`
	CustomerCode string    `json:"customer_code" db:"customer_code"`
	CustomerName string    `json:"customer_name" db:"customer_name"`
	Status       string    `json:"status" db:"status"`
	Total        int64     `json:"total" db:"total"`
	ItemCount    int       `json:"item_count" db:"item_count"`
	OrderDate    time.Time `json:"order_date" db:"order_date"`
}

func (o Order) Domain() DomainTag { return DomainOrder }
func (o Order) Code() string      { return o.OrderCode }
func (o Order) Title() string     { return o.CustomerName }
func (Order) isRecord()           {}

// Customer is a buyer account.
type Customer struct {
	CustomerCode string `json:"code" db:"code"`
	Name         string `json:"name" db:"name"`
	Phone        string `json:"phone" db:"phone"`
	Tier         string `json:"tier" db:"tier"`
	OrderCount   int    `json:"order_count" db:"order_count"`
	TotalSpent   int64  `json:"total_spent" db:"total_spent"`
}

func (c Customer) Domain() DomainTag { return DomainCustomer }
func (c Customer) Code() string      { return c.CustomerCode }
func (c Customer) Title() string     { return c.Name }
func (Customer) isRecord()           {}

// Supplier is a vendor account.
type Supplier struct {
	SupplierCode string `json:"code" db:"code"`
	Name         string `json:"name" db:"name"`
	Phone        string `json:"phone" db:"phone"`
	Category     string `json:"category" db:"category"`
	ProductCount int    `json:"product_count" db:"product_count"`
}

func (s Supplier) Domain() DomainTag { return DomainSupplier }
func (s Supplier) Code() string      { return s.SupplierCode }
func (s Supplier) Title() string     { return s.Name }
func (Supplier) isRecord()           {}

// PriceListEntry is one product price within a named price list.
type PriceListEntry struct {
	EntryCode   string  `json:"code" db:"code"`
	ListName    string  `json:"list_name" db:"list_name"`
	ProductCode string  `json:"product_code" db:"product_code"`
	ProductName string  `json:"product_name" db:"product_name"`
	Price       int64   `json:"price" db:"price"`
	MinQuantity float64 `json:"min_quantity" db:"min_quantity"`
}

func (p PriceListEntry) Domain() DomainTag { return DomainPriceList }
func (p PriceListEntry) Code() string      { return p.EntryCode }
func (p PriceListEntry) Title() string     { return p.ProductName }
func (PriceListEntry) isRecord()           {}

// Warehouse is a storage location.
type Warehouse struct {
	WarehouseCode string  `json:"code" db:"code"`
	Name          string  `json:"name" db:"name"`
	Address       string  `json:"address" db:"address"`
	Capacity      float64 `json:"capacity" db:"capacity"`
	Used          float64 `json:"used" db:"used"`
}

func (w Warehouse) Domain() DomainTag { return DomainWarehouse }
func (w Warehouse) Code() string      { return w.WarehouseCode }
func (w Warehouse) Title() string     { return w.Name }
func (Warehouse) isRecord()           {}

// OptimizedContext is the bounded selection handed to the serializer.
// Domains holds the populated tags in priority order.
type OptimizedContext struct {
	Domains []DomainTag
	Data    DomainData
}

// Total returns the number of records across all domains.
func (c *OptimizedContext) Total() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, rows := range c.Data {
		n += len(rows)
	}
	return n
}

// Empty reports whether no domain carries records.
func (c *OptimizedContext) Empty() bool {
	return c.Total() == 0
}
