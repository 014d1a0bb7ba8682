package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"kitchen-backend/internal/apperr"
	"kitchen-backend/internal/inventory"
	"kitchen-backend/internal/models"
	"kitchen-backend/internal/pagination"
	"kitchen-backend/internal/repository"
	"kitchen-backend/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func statusPtr(s models.OrderStatus) *models.OrderStatus { return &s }

func strPtr(s string) *string { return &s }

type fixture struct {
	svc   *Service
	inv   *inventory.Service
	store *memory.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.New()
	inv := inventory.NewService(store, nil, zap.NewNop())
	_, err := inv.Create(context.Background(), inventory.CreateIngredientInput{
		SKU:               "TOM-1",
		Name:              "Tomatoes",
		Unit:              "kg",
		CurrentStockLevel: d("4"),
		MinStockLevel:     d("10"),
		UnitCost:          d("3"),
	})
	require.NoError(t, err)
	return fixture{svc: NewService(store, inv, zap.NewNop()), inv: inv, store: store}
}

func (f fixture) order(t *testing.T) *models.Order {
	t.Helper()
	o, err := f.svc.Create(context.Background(), CreateOrderInput{
		IngredientID:     "TOM-1",
		QuantityOrdered:  d("10"),
		UnitPriceOrdered: d("2.5"),
		ValueOrdered:     dp("25.0"),
		Notes:            "weekly delivery",
	})
	require.NoError(t, err)
	return o
}

func TestValidateOrdered(t *testing.T) {
	tests := []struct {
		name           string
		q, p, v        string
		wantErr        bool
		wantSubMessage string
	}{
		{"consistent", "10", "2.5", "25.0", false, ""},
		{"within tolerance", "3", "0.333", "1.00", false, ""},
		{"inconsistent", "10", "2.5", "30.0", true, "value inconsistent"},
		{"zero quantity", "0", "2.5", "0", true, "quantity must be positive"},
		{"negative quantity", "-1", "2.5", "-2.5", true, "quantity must be positive"},
		{"negative price", "1", "-1", "0", true, "unit price"},
		{"negative value", "1", "0", "-0.001", true, "value must be"},
		{"free goods", "5", "0", "0", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrdered(d(tt.q), d(tt.p), d(tt.v))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Contains(t, err.Error(), tt.wantSubMessage)
		})
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.order(t)
	assert.NotZero(t, o.ID)
	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.False(t, o.Deleted)
	assert.False(t, o.CreatedAt.IsZero())
	assert.False(t, o.QuantityReceived.Valid)
	require.NotNil(t, o.Ingredient)
	assert.Equal(t, "Tomatoes", o.Ingredient.Name)

	_, err := f.svc.Create(ctx, CreateOrderInput{
		IngredientID:     "TOM-1",
		QuantityOrdered:  d("10"),
		UnitPriceOrdered: d("2.5"),
		ValueOrdered:     dp("30.0"),
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "value inconsistent with quantity × price", err.Error())

	computed, err := f.svc.Create(ctx, CreateOrderInput{
		IngredientID:     "TOM-1",
		QuantityOrdered:  d("4"),
		UnitPriceOrdered: d("1.25"),
	})
	require.NoError(t, err)
	assert.True(t, computed.ValueOrdered.Equal(d("5")))
}

func TestCreate_UnknownIngredient(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateOrderInput{
		IngredientID:     "NOPE",
		QuantityOrdered:  d("1"),
		UnitPriceOrdered: d("1"),
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "ingredient")
}

func TestCreate_CompletedStampsCompletedAt(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.Create(context.Background(), CreateOrderInput{
		IngredientID:     "TOM-1",
		QuantityOrdered:  d("1"),
		UnitPriceOrdered: d("1"),
		Status:           statusPtr(models.OrderStatusCompleted),
	})
	require.NoError(t, err)
	assert.NotNil(t, o.CompletedAt)
}

func TestUpdate_StatusMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t)

	_, err := f.svc.Update(ctx, o.ID, UpdateOrderInput{Status: statusPtr(models.OrderStatusCompleted)})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "pending cannot jump to completed")

	o, err = f.svc.Update(ctx, o.ID, UpdateOrderInput{Status: statusPtr(models.OrderStatusConfirmed)})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, o.Status)
	assert.Nil(t, o.CompletedAt)

	o, err = f.svc.Update(ctx, o.ID, UpdateOrderInput{Status: statusPtr(models.OrderStatusCompleted)})
	require.NoError(t, err)
	require.NotNil(t, o.CompletedAt)

	// Same status is a no-op, completed is final.
	_, err = f.svc.Update(ctx, o.ID, UpdateOrderInput{Status: statusPtr(models.OrderStatusCompleted)})
	assert.NoError(t, err)
	_, err = f.svc.Update(ctx, o.ID, UpdateOrderInput{Status: statusPtr(models.OrderStatusCancelled)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	got, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, got.Status)
}

func TestUpdate_OrderedTripleRevalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t)

	updated, err := f.svc.Update(ctx, o.ID, UpdateOrderInput{QuantityOrdered: dp("12")})
	require.NoError(t, err)
	assert.True(t, updated.ValueOrdered.Equal(d("30")))
	assert.Equal(t, "weekly delivery", updated.Notes)

	_, err = f.svc.Update(ctx, o.ID, UpdateOrderInput{ValueOrdered: dp("99")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Update(ctx, o.ID, UpdateOrderInput{QuantityOrdered: dp("0")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Update(ctx, 999, UpdateOrderInput{Notes: new(string)})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdate_StaleVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t)
	stale := o.Version

	notes := "first"
	_, err := f.svc.Update(ctx, o.ID, UpdateOrderInput{Notes: &notes, Version: &stale})
	require.NoError(t, err)

	notes = "second"
	_, err = f.svc.Update(ctx, o.ID, UpdateOrderInput{Notes: &notes, Version: &stale})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, "order was modified concurrently", err.Error())
}

func TestSoftDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t)

	require.NoError(t, f.svc.SoftDelete(ctx, o.ID))
	_, err := f.svc.Get(ctx, o.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.Is(f.svc.SoftDelete(ctx, o.ID), apperr.KindNotFound))

	p, _ := pagination.New(1, 10, 0)
	items, total, err := f.svc.List(ctx, repository.OrderFilter{}, p)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
}

func TestList_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.order(t)
	f.order(t)
	_, err := f.svc.Update(ctx, a.ID, UpdateOrderInput{Status: statusPtr(models.OrderStatusConfirmed)})
	require.NoError(t, err)

	p, _ := pagination.New(1, 10, 0)
	items, total, err := f.svc.List(ctx, repository.OrderFilter{Status: models.OrderStatusConfirmed}, p)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, a.ID, items[0].ID)
	require.NotNil(t, items[0].Ingredient)

	_, total, err = f.svc.List(ctx, repository.OrderFilter{IngredientID: "TOM-1"}, p)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, _, err = f.svc.List(ctx, repository.OrderFilter{Status: "shipped"}, p)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestListByIngredient_Sort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	f.svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	}
	first := f.order(t)
	second := f.order(t)

	desc, err := f.svc.ListByIngredient(ctx, "TOM-1", "desc")
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, second.ID, desc[0].ID)

	asc, err := f.svc.ListByIngredient(ctx, "TOM-1", "asc")
	require.NoError(t, err)
	assert.Equal(t, first.ID, asc[0].ID)

	_, err = f.svc.ListByIngredient(ctx, "TOM-1", "sideways")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.ListByIngredient(ctx, "NOPE", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestReconcile_AppliesAndAppendsNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t)

	got, err := f.svc.Reconcile(ctx, o.ID, []ReceivedAdjustment{{
		OrderID:              o.ID,
		NewQuantityReceived:  d("8"),
		NewUnitPriceReceived: d("3.0"),
		Reason:               "two crates damaged",
	}})
	require.NoError(t, err)

	require.True(t, got.ValueReceived.Valid)
	assert.True(t, got.ValueReceived.Decimal.Equal(d("24.0")))
	assert.True(t, got.QuantityReceived.Decimal.Equal(d("8")))
	assert.Equal(t, "weekly delivery\nAdjustment: two crates damaged", got.Notes)

	// Received goods land in stock with a linked adjustment.
	ing, err := f.inv.Get(ctx, "TOM-1")
	require.NoError(t, err)
	assert.True(t, ing.CurrentStockLevel.Equal(d("12")))
	require.NotNil(t, ing.LastReceived)

	p, _ := pagination.New(1, 10, 0)
	history, _, err := f.inv.History(ctx, "TOM-1", p)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.AdjustmentReceived, history[0].Type)
	require.NotNil(t, history[0].OrderID)
	assert.Equal(t, o.ID, *history[0].OrderID)
	assert.True(t, history[0].CostImpact.Equal(d("24")))
}

func TestUpdate_IngredientLockedAfterReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.inv.Create(ctx, inventory.CreateIngredientInput{
		SKU:               "ONI-1",
		Name:              "Onions",
		Unit:              "kg",
		CurrentStockLevel: d("2"),
		MinStockLevel:     d("1"),
		UnitCost:          d("1"),
	})
	require.NoError(t, err)

	// Before anything is received the ingredient can still be corrected.
	o := f.order(t)
	moved, err := f.svc.Update(ctx, o.ID, UpdateOrderInput{IngredientID: strPtr("ONI-1")})
	require.NoError(t, err)
	assert.Equal(t, "ONI-1", moved.IngredientID)

	_, err = f.svc.Reconcile(ctx, o.ID, []ReceivedAdjustment{{
		OrderID:              o.ID,
		NewQuantityReceived:  d("10"),
		NewUnitPriceReceived: d("2.5"),
	}})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, o.ID, UpdateOrderInput{IngredientID: strPtr("TOM-1")})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "after goods were received")

	got, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "ONI-1", got.IngredientID)

	onions, err := f.inv.Get(ctx, "ONI-1")
	require.NoError(t, err)
	assert.True(t, onions.CurrentStockLevel.Equal(d("12")))
	tomatoes, err := f.inv.Get(ctx, "TOM-1")
	require.NoError(t, err)
	assert.True(t, tomatoes.CurrentStockLevel.Equal(d("4")))

	// Restating the same ingredient is not a change.
	_, err = f.svc.Update(ctx, o.ID, UpdateOrderInput{IngredientID: strPtr("ONI-1"), Notes: strPtr("checked")})
	assert.NoError(t, err)
}

func TestReconcile_BatchFoldsAndPostsDelta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t)

	_, err := f.svc.Reconcile(ctx, o.ID, []ReceivedAdjustment{
		{OrderID: o.ID, NewQuantityReceived: d("10"), NewUnitPriceReceived: d("2.5"), Reason: "delivered"},
	})
	require.NoError(t, err)

	got, err := f.svc.Reconcile(ctx, o.ID, []ReceivedAdjustment{
		{OrderID: o.ID, NewQuantityReceived: d("9"), NewUnitPriceReceived: d("2.5"), Reason: "one short on recount"},
		{OrderID: o.ID, NewQuantityReceived: d("9"), NewUnitPriceReceived: d("2.4"), Reason: "supplier discount"},
	})
	require.NoError(t, err)
	assert.True(t, got.UnitPriceReceived.Decimal.Equal(d("2.4")))
	assert.True(t, got.ValueReceived.Decimal.Equal(d("21.6")))
	assert.Equal(t, "weekly delivery\nAdjustment: delivered\nAdjustment: one short on recount\nAdjustment: supplier discount", got.Notes)

	ing, err := f.inv.Get(ctx, "TOM-1")
	require.NoError(t, err)
	assert.True(t, ing.CurrentStockLevel.Equal(d("13")), "4 + 10 - 1, got %s", ing.CurrentStockLevel)
}

func TestReconcile_MismatchedOrderIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t)

	_, err := f.svc.Reconcile(ctx, o.ID, []ReceivedAdjustment{
		{OrderID: o.ID, NewQuantityReceived: d("8"), NewUnitPriceReceived: d("3"), Reason: "ok"},
		{OrderID: o.ID + 1, NewQuantityReceived: d("1"), NewUnitPriceReceived: d("1"), Reason: "wrong order"},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	got, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, got.QuantityReceived.Valid)
	assert.Equal(t, "weekly delivery", got.Notes)

	ing, err := f.inv.Get(ctx, "TOM-1")
	require.NoError(t, err)
	assert.True(t, ing.CurrentStockLevel.Equal(d("4")))
}

func TestReconcile_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t)

	_, err := f.svc.Reconcile(ctx, o.ID, nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Reconcile(ctx, 999, []ReceivedAdjustment{{OrderID: 999, NewQuantityReceived: d("1"), NewUnitPriceReceived: d("1")}})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.Reconcile(ctx, o.ID, []ReceivedAdjustment{{OrderID: o.ID, NewQuantityReceived: d("-1"), NewUnitPriceReceived: d("1")}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Update(ctx, o.ID, UpdateOrderInput{Status: statusPtr(models.OrderStatusCancelled)})
	require.NoError(t, err)
	_, err = f.svc.Reconcile(ctx, o.ID, []ReceivedAdjustment{{OrderID: o.ID, NewQuantityReceived: d("1"), NewUnitPriceReceived: d("1")}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestReconcile_ConcurrentBatchesDoNotLoseStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 8; i++ {
		ids = append(ids, f.order(t).ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := f.svc.Reconcile(ctx, id, []ReceivedAdjustment{
				{OrderID: id, NewQuantityReceived: d("1"), NewUnitPriceReceived: d("2.5")},
			})
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	ing, err := f.inv.Get(ctx, "TOM-1")
	require.NoError(t, err)
	assert.True(t, ing.CurrentStockLevel.Equal(d("12")), "got %s", ing.CurrentStockLevel)
}
