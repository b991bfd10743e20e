// Package domain holds the canonical types shared by every stage of the
// query pipeline.
package domain

import "time"

// DomainTag identifies one of the fixed data categories the pipeline can
// fetch context from.
type DomainTag string

const (
	DomainProduct   DomainTag = "product"
	DomainOrder     DomainTag = "order"
	DomainCustomer  DomainTag = "customer"
	DomainSupplier  DomainTag = "supplier"
	DomainInventory DomainTag = "inventory"
	DomainPriceList DomainTag = "priceList"
	DomainWarehouse DomainTag = "warehouse"

	// DomainAll is a wildcard meaning every concrete domain.
	DomainAll DomainTag = "all"
)

// ConcreteDomains lists every fetchable domain in the stable fallback order.
var ConcreteDomains = []DomainTag{
	DomainProduct,
	DomainInventory,
	DomainOrder,
	DomainCustomer,
	DomainSupplier,
	DomainPriceList,
	DomainWarehouse,
}

// ParseDomainTag returns the tag for s and whether it is known.
func ParseDomainTag(s string) (DomainTag, bool) {
	tag := DomainTag(s)
	if tag == DomainAll {
		return tag, true
	}
	for _, d := range ConcreteDomains {
		if d == tag {
			return d, true
		}
	}
	return "", false
}

// Intent is the closed-vocabulary classification of a query.
type Intent string

const (
	IntentInventory Intent = "query_inventory"
	IntentProduct   Intent = "query_product"
	IntentOrder     Intent = "query_order"
	IntentCustomer  Intent = "query_customer"
	IntentSupplier  Intent = "query_supplier"
	IntentPrice     Intent = "query_price"
	IntentWarehouse Intent = "query_warehouse"
	IntentReport    Intent = "query_report"
	IntentGeneral   Intent = "general"
)

// EntityType is the kind of span extracted from a query.
type EntityType string

const (
	EntityProductCode  EntityType = "product_code"
	EntityCustomerCode EntityType = "customer_code"
	EntityOrderCode    EntityType = "order_code"
	EntitySupplierCode EntityType = "supplier_code"
	EntityDate         EntityType = "date"
	EntityDateRange    EntityType = "date_range"
	EntityPrice        EntityType = "price"
	EntityQuantity     EntityType = "quantity"
	EntityStatus       EntityType = "status"
	EntityProductName  EntityType = "product_name"
	EntityCustomerName EntityType = "customer_name"
)

// Entity is a typed span extracted from query text.
type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	RawSpan    string     `json:"raw_span"`
	Confidence float64    `json:"confidence"`
}

// IntentResult is the classifier output for one query. It is created once
// per request and never mutated afterwards.
type IntentResult struct {
	PrimaryIntent Intent      `json:"primary_intent"`
	Confidence    float64     `json:"confidence"`
	Domains       []DomainTag `json:"domains"`
	Entities      []Entity    `json:"entities"`
}

// HasDomain reports whether tag is part of the result's domain set.
func (r *IntentResult) HasDomain(tag DomainTag) bool {
	for _, d := range r.Domains {
		if d == tag {
			return true
		}
	}
	return false
}

// EntitiesOf returns the entities of the given type in extraction order.
func (r *IntentResult) EntitiesOf(t EntityType) []Entity {
	var out []Entity
	for _, e := range r.Entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Source is a citation entry describing one domain that fed the answer.
type Source struct {
	Domain         DomainTag `json:"domain"`
	RecordCount    int       `json:"record_count"`
	RelevanceScore float64   `json:"relevance_score"`
}

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one append-only history row.
type ConversationTurn struct {
	ID             string      `json:"id" db:"id"`
	ConversationID string      `json:"conversation_id" db:"conversation_id"`
	UserID         string      `json:"user_id,omitempty" db:"user_id"`
	Role           Role        `json:"role" db:"role"`
	Message        string      `json:"message" db:"message"`
	Answer         string      `json:"answer,omitempty" db:"answer"`
	Intent         Intent      `json:"intent" db:"intent"`
	DomainsUsed    []DomainTag `json:"domains_used" db:"-"`
	Sources        []Source    `json:"sources" db:"-"`
	Confidence     float64     `json:"confidence" db:"confidence"`
	TokensUsed     int         `json:"tokens_used,omitempty" db:"tokens_used"`
	ResponseTimeMs int64       `json:"response_time_ms,omitempty" db:"response_time_ms"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

// QueryRequest is the public request contract of the orchestrator.
type QueryRequest struct {
	Text             string      `json:"text"`
	UserID           string      `json:"user_id,omitempty"`
	ConversationID   string      `json:"conversation_id,omitempty"`
	RequestedDomains []DomainTag `json:"requested_domains,omitempty"`
	// ClientID is the rate-limit identity, used only for logging here.
	ClientID string `json:"-"`
}

// QueryResponse is the public response contract of the orchestrator.
type QueryResponse struct {
	Answer           string      `json:"answer"`
	Sources          []Source    `json:"sources"`
	DomainsUsed      []DomainTag `json:"domains_used"`
	Confidence       float64     `json:"confidence"`
	SuggestedQueries []string    `json:"suggested_queries"`
	TokensUsed       int         `json:"tokens_used,omitempty"`
	ConversationID   string      `json:"conversation_id,omitempty"`
	Intent           Intent      `json:"intent"`
}

// Generation is the generation collaborator's reply.
type Generation struct {
	Text             string
	ApproxTokensUsed int
}
