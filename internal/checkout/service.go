// Package checkout turns a patient's cart into per-pharmacy order drafts and
// submits them to the backend. Prescription-flagged lines gate the whole
// pharmacy order on an uploaded prescription.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/curelink/patient-portal/internal/cart"
	"github.com/curelink/patient-portal/internal/portalapi"
	"github.com/curelink/patient-portal/pkg/logging"
)

// ErrEmptyCart is returned when checkout starts with nothing in the cart.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// ErrPrescriptionRequired is returned when a draft carries prescription-only
// medicines and no prescription was supplied.
var ErrPrescriptionRequired = errors.New("checkout: prescription required for one or more medicines")

// OrderPlacer submits order drafts to the backend.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req portalapi.PlaceOrderRequest) (*portalapi.Order, error)
}

// Draft is one pharmacy's share of the cart, priced and ready to submit.
type Draft struct {
	ID                   string
	PharmacyID           string
	Lines                []cart.Line
	ItemTotalCents       int64
	DeliveryFeeCents     int64
	TotalCents           int64
	RequiresPrescription bool
}

// Service builds and places orders from cart state.
type Service struct {
	carts            *cart.Store
	placer           OrderPlacer
	logger           *logging.Logger
	deliveryFeeCents int64
}

// NewService creates a checkout service. deliveryFeeCents is the flat fee
// charged per pharmacy order.
func NewService(carts *cart.Store, placer OrderPlacer, deliveryFeeCents int64, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		carts:            carts,
		placer:           placer,
		logger:           logger,
		deliveryFeeCents: deliveryFeeCents,
	}
}

// BuildDrafts groups the cart by pharmacy into priced order drafts. Draft
// order follows the pharmacies' first appearance in the cart.
func (s *Service) BuildDrafts(ctx context.Context, patientID string) ([]Draft, error) {
	lines, err := s.carts.Get(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("checkout: read cart: %w", err)
	}

	index := make(map[string]int)
	var drafts []Draft
	for _, l := range lines {
		i, ok := index[l.PharmacyID]
		if !ok {
			i = len(drafts)
			index[l.PharmacyID] = i
			drafts = append(drafts, Draft{
				ID:               uuid.NewString(),
				PharmacyID:       l.PharmacyID,
				DeliveryFeeCents: s.deliveryFeeCents,
			})
		}
		drafts[i].Lines = append(drafts[i].Lines, l)
		drafts[i].ItemTotalCents += l.Subtotal()
		if l.PrescriptionRequired {
			drafts[i].RequiresPrescription = true
		}
	}
	for i := range drafts {
		drafts[i].TotalCents = drafts[i].ItemTotalCents + drafts[i].DeliveryFeeCents
	}
	return drafts, nil
}

// PlaceOrders submits one order per pharmacy draft and clears the cart once
// every draft is accepted. A failure mid-way returns the orders placed so
// far along with the error; the cart is left intact for retry.
func (s *Service) PlaceOrders(ctx context.Context, patientID, addressID, prescriptionID string) ([]portalapi.Order, error) {
	drafts, err := s.BuildDrafts(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, ErrEmptyCart
	}
	for _, d := range drafts {
		if d.RequiresPrescription && prescriptionID == "" {
			return nil, ErrPrescriptionRequired
		}
	}

	placed := make([]portalapi.Order, 0, len(drafts))
	for _, d := range drafts {
		req := portalapi.PlaceOrderRequest{
			DraftID:          d.ID,
			PharmacyID:       d.PharmacyID,
			Items:            draftItems(d),
			ItemTotalCents:   d.ItemTotalCents,
			DeliveryFeeCents: d.DeliveryFeeCents,
			AddressID:        addressID,
		}
		if d.RequiresPrescription {
			req.PrescriptionID = prescriptionID
		}

		order, err := s.placer.PlaceOrder(ctx, req)
		if err != nil {
			s.logger.Error("checkout: order placement failed",
				"error", err, "pharmacy_id", d.PharmacyID, "patient_id", patientID)
			return placed, fmt.Errorf("checkout: place order for pharmacy %s: %w", d.PharmacyID, err)
		}
		placed = append(placed, *order)
	}

	if err := s.carts.Clear(ctx, patientID); err != nil {
		s.logger.Warn("checkout: clearing cart after checkout failed", "error", err, "patient_id", patientID)
	}
	return placed, nil
}

func draftItems(d Draft) []portalapi.OrderItem {
	items := make([]portalapi.OrderItem, 0, len(d.Lines))
	for _, l := range d.Lines {
		items = append(items, portalapi.OrderItem{
			ProductID:  l.ProductID,
			Name:       l.Name,
			Quantity:   l.Quantity,
			PriceCents: l.PriceCents,
		})
	}
	return items
}
