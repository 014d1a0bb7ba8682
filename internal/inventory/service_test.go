package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"kitchen-backend/internal/apperr"
	"kitchen-backend/internal/events"
	"kitchen-backend/internal/models"
	"kitchen-backend/internal/pagination"
	"kitchen-backend/internal/repository"
	"kitchen-backend/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.StockAdjusted
	err    error
}

func (p *recordingPublisher) PublishStockAdjusted(_ context.Context, e events.StockAdjusted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

func newTestService(t *testing.T) (*Service, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	return NewService(store, pub, zap.NewNop()), store, pub
}

func flour() CreateIngredientInput {
	return CreateIngredientInput{
		SKU:               "FLR-1",
		Name:              "Flour",
		Category:          strPtr("dry goods"),
		Unit:              "kg",
		CurrentStockLevel: d("10.5"),
		MinStockLevel:     d("5"),
		UnitCost:          d("2.25"),
	}
}

func TestCreate_ComputesValueAndStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	ing, err := svc.Create(ctx, flour())
	require.NoError(t, err)
	assert.True(t, ing.Value.Equal(d("23.625")), "value = stock × unit cost, got %s", ing.Value)
	assert.Equal(t, models.IngredientStatusOK, ing.Status)
	assert.False(t, ing.LastUpdated.IsZero())

	in := flour()
	in.SKU = "FLR-2"
	in.CurrentStockLevel = d("2")
	low, err := svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, models.IngredientStatusLow, low.Status)
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := map[string]func(*CreateIngredientInput){
		"missing sku":    func(in *CreateIngredientInput) { in.SKU = "  " },
		"missing name":   func(in *CreateIngredientInput) { in.Name = "" },
		"missing unit":   func(in *CreateIngredientInput) { in.Unit = "" },
		"negative cost":  func(in *CreateIngredientInput) { in.UnitCost = d("-1") },
		"negative stock": func(in *CreateIngredientInput) { in.CurrentStockLevel = d("-1") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := flour()
			mutate(&in)
			_, err := svc.Create(ctx, in)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}
}

func TestCreate_DuplicateSKU(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, flour())
	require.NoError(t, err)
	_, err = svc.Create(ctx, flour())
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	// A soft-deleted SKU is never reused.
	require.NoError(t, svc.Delete(ctx, "FLR-1"))
	_, err = svc.Create(ctx, flour())
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestDelete_HidesFromGetAndList(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, flour())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "FLR-1"))

	_, err = svc.Get(ctx, "FLR-1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	p, _ := pagination.New(1, 10, 0)
	items, total, err := svc.List(ctx, repository.IngredientFilter{}, p)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)

	// Row is still stored, other fields untouched.
	raw, err := store.Ingredients().GetAny(ctx, "FLR-1")
	require.NoError(t, err)
	assert.True(t, raw.Deleted)
	assert.Equal(t, "Flour", raw.Name)

	// Re-deleting is a no-op, unknown SKU is NotFound.
	assert.NoError(t, svc.Delete(ctx, "FLR-1"))
	assert.True(t, apperr.Is(svc.Delete(ctx, "NOPE"), apperr.KindNotFound))
}

func TestUpdate_MergesProvidedFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, flour())
	require.NoError(t, err)

	cost := d("3")
	updated, err := svc.Update(ctx, "FLR-1", UpdateIngredientInput{
		Name:     strPtr("Bread flour"),
		UnitCost: &cost,
	})
	require.NoError(t, err)
	assert.Equal(t, "Bread flour", updated.Name)
	assert.Equal(t, "kg", updated.Unit)
	assert.Equal(t, created.Category, updated.Category)
	assert.True(t, updated.Value.Equal(d("31.5")))
	assert.False(t, updated.LastUpdated.Before(created.LastUpdated))

	_, err = svc.Update(ctx, "NOPE", UpdateIngredientInput{Name: strPtr("x")})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.Update(ctx, "FLR-1", UpdateIngredientInput{Name: strPtr("  ")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpdate_StockChangeIsRecorded(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, flour())
	require.NoError(t, err)

	stock := d("4")
	updated, err := svc.Update(ctx, "FLR-1", UpdateIngredientInput{CurrentStockLevel: &stock})
	require.NoError(t, err)
	assert.True(t, updated.CurrentStockLevel.Equal(stock))
	assert.Equal(t, models.IngredientStatusLow, updated.Status)
	assert.True(t, updated.Value.Equal(d("9")))

	p, _ := pagination.New(1, 10, 0)
	history, total, err := svc.History(ctx, "FLR-1", p)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, models.AdjustmentManualCount, history[0].Type)
	assert.True(t, history[0].QuantityChange.Equal(d("-6.5")))
	assert.Len(t, pub.events, 1)
}

func TestUpdate_RejectsNegativeStock(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, flour())
	require.NoError(t, err)

	stock := d("-1")
	_, err = svc.Update(ctx, "FLR-1", UpdateIngredientInput{CurrentStockLevel: &stock})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	ing, err := svc.Get(ctx, "FLR-1")
	require.NoError(t, err)
	assert.True(t, ing.CurrentStockLevel.Equal(d("10.5")))
	assert.Empty(t, pub.events)
}

func TestUpdate_DoesNotLoseConcurrentAdjustments(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, flour())
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			cost := d("2").Add(decimal.NewFromInt(int64(i % 3)))
			_, err := svc.Update(ctx, "FLR-1", UpdateIngredientInput{
				Name:     strPtr(fmt.Sprintf("Flour %d", i)),
				UnitCost: &cost,
			})
			errs <- err
		}(i)
		go func() {
			defer wg.Done()
			_, err := svc.AdjustStock(ctx, "FLR-1", d("1"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	ing, err := svc.Get(ctx, "FLR-1")
	require.NoError(t, err)
	assert.True(t, ing.CurrentStockLevel.Equal(d("30.5")), ing.CurrentStockLevel.String())
	assert.True(t, ing.Value.Equal(ing.CurrentStockLevel.Mul(ing.UnitCost)))

	p, _ := pagination.New(1, 100, 0)
	history, total, err := svc.History(ctx, "FLR-1", p)
	require.NoError(t, err)
	require.EqualValues(t, n, total)
	assert.True(t, history[0].StockAfter.Equal(ing.CurrentStockLevel))
}

func TestDelete_KeepsConcurrentAdjustments(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, flour())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = svc.AdjustStock(ctx, "FLR-1", d("4"))
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.Delete(ctx, "FLR-1"))
	}()
	wg.Wait()

	ing, err := store.Ingredients().GetAny(ctx, "FLR-1")
	require.NoError(t, err)
	assert.True(t, ing.Deleted)

	// the adjustment either landed before the delete or was refused after it
	p, _ := pagination.New(1, 10, 0)
	history, total, err := store.Adjustments().ListByIngredient(ctx, "FLR-1", p)
	require.NoError(t, err)
	if total == 1 {
		assert.True(t, ing.CurrentStockLevel.Equal(history[0].StockAfter))
		assert.True(t, ing.CurrentStockLevel.Equal(d("14.5")))
	} else {
		assert.True(t, ing.CurrentStockLevel.Equal(d("10.5")))
	}
}

func TestAdjustStock_RoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, flour())
	require.NoError(t, err)

	up, err := svc.AdjustStock(ctx, "FLR-1", d("5"))
	require.NoError(t, err)
	assert.True(t, up.CurrentStockLevel.Equal(d("15.5")))
	require.NotNil(t, up.LastReceived)

	down, err := svc.AdjustStock(ctx, "FLR-1", d("-5"))
	require.NoError(t, err)
	assert.True(t, down.CurrentStockLevel.Equal(d("10.5")))
	assert.True(t, down.Value.Equal(d("23.625")))

	p, _ := pagination.New(1, 10, 0)
	_, total, err := svc.History(ctx, "FLR-1", p)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestAdjustStock_AllowsNegativeStock(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, flour())
	require.NoError(t, err)

	ing, err := svc.AdjustStock(ctx, "FLR-1", d("-20"))
	require.NoError(t, err)
	assert.True(t, ing.CurrentStockLevel.Equal(d("-9.5")))
	assert.Equal(t, models.IngredientStatusOut, ing.Status)

	_, err = svc.AdjustStock(ctx, "NOPE", d("1"))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAdjust_TypeRules(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, flour())
	require.NoError(t, err)

	cases := []struct {
		name string
		in   AdjustmentInput
	}{
		{"unknown type", AdjustmentInput{SKU: "FLR-1", Type: "spilled", QuantityChange: d("-1")}},
		{"zero change", AdjustmentInput{SKU: "FLR-1", Type: models.AdjustmentManualCount, QuantityChange: d("0")}},
		{"positive waste", AdjustmentInput{SKU: "FLR-1", Type: models.AdjustmentWaste, QuantityChange: d("1"), WasteCategory: strPtr("spoiled")}},
		{"waste without category", AdjustmentInput{SKU: "FLR-1", Type: models.AdjustmentWaste, QuantityChange: d("-1")}},
		{"negative received", AdjustmentInput{SKU: "FLR-1", Type: models.AdjustmentReceived, QuantityChange: d("-1")}},
		{"positive recipe usage", AdjustmentInput{SKU: "FLR-1", Type: models.AdjustmentRecipeUsage, QuantityChange: d("1")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Adjust(ctx, tc.in)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}

	ing, err := svc.Get(ctx, "FLR-1")
	require.NoError(t, err)
	assert.True(t, ing.CurrentStockLevel.Equal(d("10.5")), "rejected adjustments must not touch stock")
}

func TestAdjust_WasteAppliesAndRecords(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, flour())
	require.NoError(t, err)

	ing, adj, err := svc.Adjust(ctx, AdjustmentInput{
		SKU:            "FLR-1",
		Type:           models.AdjustmentWaste,
		QuantityChange: d("-2"),
		Reason:         "bag torn",
		WasteCategory:  strPtr("damaged"),
	})
	require.NoError(t, err)

	assert.True(t, ing.CurrentStockLevel.Equal(d("8.5")))
	assert.Nil(t, ing.LastReceived, "waste does not stamp last_received")
	assert.NotZero(t, adj.ID)
	assert.True(t, adj.StockBefore.Equal(d("10.5")))
	assert.True(t, adj.StockAfter.Equal(d("8.5")))
	assert.True(t, adj.CostImpact.Equal(d("-4.5")))
	assert.Equal(t, "bag torn", adj.Reason)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "FLR-1", pub.events[0].SKU)
	assert.Equal(t, models.AdjustmentWaste, pub.events[0].Type)
}

func TestAdjust_PublishFailureDoesNotFail(t *testing.T) {
	svc, _, pub := newTestService(t)
	pub.err = errors.New("broker down")
	ctx := context.Background()
	_, err := svc.Create(ctx, flour())
	require.NoError(t, err)

	ing, err := svc.AdjustStock(ctx, "FLR-1", d("1"))
	require.NoError(t, err)
	assert.True(t, ing.CurrentStockLevel.Equal(d("11.5")))
}

func TestRecordAdjustment(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, flour())
	require.NoError(t, err)

	recipeID := uint(3)
	rec := &models.StockAdjustment{
		IngredientSKU:  "FLR-1",
		Type:           models.AdjustmentRecipeUsage,
		QuantityChange: d("-0.5"),
		Reason:         "pizza dough batch",
		RecipeID:       &recipeID,
		CostImpact:     d("-1"),
	}
	ing, err := svc.RecordAdjustment(ctx, rec)
	require.NoError(t, err)
	assert.True(t, ing.CurrentStockLevel.Equal(d("10")))
	assert.NotZero(t, rec.ID)
	assert.True(t, rec.CostImpact.Equal(d("-1")))
	require.NotNil(t, rec.RecipeID)
	assert.Equal(t, uint(3), *rec.RecipeID)
}

func TestList_FiltersAndPagination(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 23; i++ {
		in := flour()
		in.SKU = fmt.Sprintf("SKU-%02d", i)
		in.Name = fmt.Sprintf("Item %02d", i)
		if i%2 == 0 {
			in.Category = strPtr("produce")
		}
		if i%5 == 0 {
			in.CurrentStockLevel = d("1")
		}
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	for _, limit := range []int{1, 5, 7, 23, 50} {
		seen := 0
		for page := 1; ; page++ {
			p, err := pagination.New(page, limit, 0)
			require.NoError(t, err)
			items, total, err := svc.List(ctx, repository.IngredientFilter{}, p)
			require.NoError(t, err)
			require.EqualValues(t, 23, total)
			seen += len(items)
			meta := pagination.NewMeta(p, total)
			assert.Equal(t, int64(p.Offset()+p.Limit) < total, meta.HasNext)
			if !meta.HasNext {
				break
			}
		}
		assert.Equal(t, 23, seen, "limit %d", limit)
	}

	p, _ := pagination.New(1, 50, 0)
	_, total, err := svc.List(ctx, repository.IngredientFilter{Category: "produce"}, p)
	require.NoError(t, err)
	assert.EqualValues(t, 12, total)

	_, total, err = svc.List(ctx, repository.IngredientFilter{LowStockOnly: true}, p)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)

	_, total, err = svc.List(ctx, repository.IngredientFilter{Category: "produce", LowStockOnly: true}, p)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	items, total, err := svc.Search(ctx, "item 1", p)
	require.NoError(t, err)
	assert.EqualValues(t, 10, total)
	assert.Len(t, items, 10)

	_, _, err = svc.Search(ctx, " ", p)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestHistory_UnknownIngredient(t *testing.T) {
	svc, _, _ := newTestService(t)
	p, _ := pagination.New(1, 10, 0)
	_, _, err := svc.History(context.Background(), "NOPE", p)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func buildWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImport(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, flour())
	require.NoError(t, err)

	header := make([]any, len(ImportColumns))
	for i, c := range ImportColumns {
		header[i] = c
	}
	buf := buildWorkbook(t, [][]any{
		header,
		{"SUG-1", "Sugar", "dry goods", "kg", "20", "5", "1,5", "Shelf A"},
		{"FLR-1", "Flour again", "", "kg", "1", "1", "1", ""},
		{"OIL-1", "Olive oil", "", "l", "abc", "1", "8", ""},
		{},
		{"EGG-1", "", "", "pcs", "30", "12", "0.2", ""},
	})

	res, err := svc.Import(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, "FLR-1", res.Duplicates[0].SKU)
	assert.Equal(t, 3, res.Duplicates[0].Row)
	assert.Len(t, res.Invalid, 2)

	sugar, err := svc.Get(ctx, "SUG-1")
	require.NoError(t, err)
	assert.True(t, sugar.UnitCost.Equal(d("1.5")))
	assert.True(t, sugar.Value.Equal(d("30")))
	require.NotNil(t, sugar.StorageLocation)
	assert.Equal(t, "Shelf A", *sugar.StorageLocation)
}

func TestImport_MissingColumn(t *testing.T) {
	svc, _, _ := newTestService(t)
	buf := buildWorkbook(t, [][]any{{"sku", "name"}})
	_, err := svc.Import(context.Background(), buf)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
