package portalapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([]Appointment{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sekrit")
	_, err := c.ListAppointments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer sekrit", gotAuth)
}

func TestPlaceOrderRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/orders", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req PlaceOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ph-1", req.PharmacyID)
		assert.Len(t, req.Items, 2)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Order{
			ID:         "ord-1",
			PharmacyID: req.PharmacyID,
			Status:     "placed",
			TotalCents: req.ItemTotalCents + req.DeliveryFeeCents,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	order, err := c.PlaceOrder(context.Background(), PlaceOrderRequest{
		DraftID:    "d-1",
		PharmacyID: "ph-1",
		Items: []OrderItem{
			{ProductID: "P1", Quantity: 2, PriceCents: 100},
			{ProductID: "P2", Quantity: 1, PriceCents: 250},
		},
		ItemTotalCents:   450,
		DeliveryFeeCents: 4000,
		AddressID:        "addr-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", order.ID)
	assert.Equal(t, "placed", order.Status)
	assert.Equal(t, int64(4450), order.TotalCents)
}

func TestNon2xxBecomesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "prescription required", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.ListOrders(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "prescription required")
}

func TestMarkNotificationRead(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	require.NoError(t, c.MarkNotificationRead(context.Background(), "n-42"))
	assert.Equal(t, "/api/notifications/n-42/read", gotPath)
	assert.Equal(t, http.MethodPatch, gotMethod)
}

func TestSearchMedicinesEncodesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/medicines", r.URL.Path)
		require.Equal(t, "paracetamol 500mg", r.URL.Query().Get("q"))
		_ = json.NewEncoder(w).Encode([]Medicine{
			{ProductID: "P1", PharmacyID: "ph-1", Name: "Paracetamol", AvailableQuantity: 12},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	meds, err := c.SearchMedicines(context.Background(), "paracetamol 500mg")
	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.Equal(t, "Paracetamol", meds[0].Name)
}
