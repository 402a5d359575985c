package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CatalogItem is the product data captured when an item is put into the cart.
// It is never re-fetched from the catalog afterwards.
type CatalogItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	ImageRef  string          `json:"image,omitempty"`
}

// LineItem is one distinct product held in the cart. Quantity is always >= 1.
type LineItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	ImageRef  string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
}

func NewLineItem(item CatalogItem, quantity int) LineItem {
	return LineItem{
		ProductID: item.ProductID,
		Name:      item.Name,
		UnitPrice: item.UnitPrice,
		ImageRef:  item.ImageRef,
		Quantity:  quantity,
	}
}

// Snapshot is the durable part of a cart: items in insertion order plus totals
// derived from them.
type Snapshot struct {
	Items      []LineItem      `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// NewSnapshot copies items and derives the totals.
func NewSnapshot(items []LineItem) Snapshot {
	copied := CloneItems(items)
	totals := CalculateTotals(copied)
	return Snapshot{
		Items:      copied,
		TotalItems: totals.TotalItems,
		TotalPrice: totals.TotalPrice,
	}
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

func CloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

// SyncState is process-local and never persisted.
type SyncState struct {
	IsLoading    bool      `json:"isLoading"`
	IsSyncing    bool      `json:"isSyncing"`
	LastSyncedAt time.Time `json:"lastSyncedAt"`
	Error        string    `json:"error,omitempty"`
}

type SubmitResult struct {
	Success bool   `json:"success"`
	OrderID int64  `json:"orderId,omitempty"`
	Error   string `json:"error,omitempty"`
}
