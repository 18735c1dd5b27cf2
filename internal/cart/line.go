package cart

// Line is one purchasable unit in a patient's cart, keyed by
// (ProductID, PharmacyID). The commercial and stock fields are snapshots
// taken when the line was added; this layer does not re-validate them
// against live pharmacy inventory.
type Line struct {
	ProductID   string `json:"product_id"`
	PharmacyID  string `json:"pharmacy_id"`
	Name        string `json:"name"`
	Composition string `json:"composition,omitempty"`
	Brand       string `json:"brand,omitempty"`
	Category    string `json:"category,omitempty"`

	PriceCents      int64   `json:"price_cents"`
	MRPCents        int64   `json:"mrp_cents,omitempty"`
	DiscountPercent float64 `json:"discount_percent,omitempty"`

	Quantity          int `json:"quantity"`
	AvailableQuantity int `json:"available_quantity"`

	PrescriptionRequired bool `json:"prescription_required"`
}

// SameKey reports whether the line matches the given composite key.
func (l Line) SameKey(productID, pharmacyID string) bool {
	return l.ProductID == productID && l.PharmacyID == pharmacyID
}

// Subtotal is unit price times quantity. MRP and discount are informational
// only; callers wanting savings or delivery fees compute those separately.
func (l Line) Subtotal() int64 {
	return l.PriceCents * int64(l.Quantity)
}

// clampQuantity bounds q to the line's available stock. A non-positive
// available quantity means the snapshot carried no stock figure, in which
// case q passes through untouched.
func (l Line) clampQuantity(q int) int {
	if l.AvailableQuantity > 0 && q > l.AvailableQuantity {
		return l.AvailableQuantity
	}
	return q
}
