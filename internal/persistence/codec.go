package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
)

// Encode serialises the durable part of the cart: items and totals.
func Encode(snap domain.Snapshot) ([]byte, error) {
	data, err := json.Marshal(domain.NewSnapshot(snap.Items))
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot failed: %w", err)
	}
	return data, nil
}

// Decode parses a stored snapshot. Stored totals are ignored and recomputed;
// payloads that break the line item invariants are reported as ErrCorrupt.
func Decode(data []byte) (domain.Snapshot, error) {
	var stored domain.Snapshot
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	seen := make(map[string]struct{}, len(stored.Items))
	for _, item := range stored.Items {
		switch {
		case item.ProductID == "":
			return domain.Snapshot{}, fmt.Errorf("%w: item without product id", ErrCorrupt)
		case item.Quantity < 1:
			return domain.Snapshot{}, fmt.Errorf("%w: product %s has quantity %d", ErrCorrupt, item.ProductID, item.Quantity)
		case item.UnitPrice.IsNegative():
			return domain.Snapshot{}, fmt.Errorf("%w: product %s has negative price", ErrCorrupt, item.ProductID)
		}
		if _, dup := seen[item.ProductID]; dup {
			return domain.Snapshot{}, fmt.Errorf("%w: duplicate product %s", ErrCorrupt, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}

	return domain.NewSnapshot(stored.Items), nil
}
