package inventory

import (
	"context"
	"fmt"
	"io"
	"strings"

	"kitchen-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ImportColumns is the header row an ingredient workbook must carry. Column
// order is free; matching ignores case and surrounding spaces.
var ImportColumns = []string{
	"sku", "name", "category", "unit",
	"current_stock_level", "min_stock_level", "unit_cost", "storage_location",
}

var requiredImportColumns = []string{"sku", "name", "unit", "current_stock_level", "min_stock_level", "unit_cost"}

type ImportRowError struct {
	Row    int    `json:"row"` // 1-based sheet row
	SKU    string `json:"sku"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Created    int              `json:"created"`
	Duplicates []ImportRowError `json:"duplicates"`
	Invalid    []ImportRowError `json:"invalid"`
}

// Import creates one ingredient per data row of the first sheet. Duplicate
// and invalid rows are reported and skipped.
func (s *Service) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Validation("could not read workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Validation("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperr.Validation("could not read sheet %q: %v", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, apperr.Validation("sheet %q is empty", sheets[0])
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range requiredImportColumns {
		if _, ok := cols[name]; !ok {
			return nil, apperr.Validation("missing column %q", name)
		}
	}

	res := &ImportResult{Duplicates: []ImportRowError{}, Invalid: []ImportRowError{}}
	for i, row := range rows[1:] {
		rowNum := i + 2
		cell := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		sku := cell("sku")
		if sku == "" && strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}

		in, err := importInput(cell)
		if err != nil {
			res.Invalid = append(res.Invalid, ImportRowError{Row: rowNum, SKU: sku, Reason: err.Error()})
			continue
		}

		if _, err := s.Create(ctx, in); err != nil {
			rowErr := ImportRowError{Row: rowNum, SKU: sku, Reason: apperr.PublicMessage(err)}
			switch apperr.KindOf(err) {
			case apperr.KindConflict:
				res.Duplicates = append(res.Duplicates, rowErr)
			case apperr.KindValidation:
				res.Invalid = append(res.Invalid, rowErr)
			default:
				return nil, err
			}
			continue
		}
		res.Created++
	}

	s.logger.Info("ingredient import finished",
		zap.Int("created", res.Created),
		zap.Int("duplicates", len(res.Duplicates)),
		zap.Int("invalid", len(res.Invalid)),
	)
	return res, nil
}

func importInput(cell func(string) string) (CreateIngredientInput, error) {
	in := CreateIngredientInput{
		SKU:  cell("sku"),
		Name: cell("name"),
		Unit: cell("unit"),
	}
	if v := cell("category"); v != "" {
		in.Category = &v
	}
	if v := cell("storage_location"); v != "" {
		in.StorageLocation = &v
	}

	var err error
	if in.CurrentStockLevel, err = parseDecimalCell(cell("current_stock_level"), "current_stock_level"); err != nil {
		return in, err
	}
	if in.MinStockLevel, err = parseDecimalCell(cell("min_stock_level"), "min_stock_level"); err != nil {
		return in, err
	}
	if in.UnitCost, err = parseDecimalCell(cell("unit_cost"), "unit_cost"); err != nil {
		return in, err
	}
	return in, nil
}

// parseDecimalCell accepts both "2.5" and "2,5".
func parseDecimalCell(v, name string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, fmt.Errorf("%s is required", name)
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s is not a number: %q", name, v)
	}
	return d, nil
}

// POST /api/admin/ingredients/import (multipart "file", .xlsx)
func ImportIngredientsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return apperr.Validation("file is required")
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return apperr.Validation("only .xlsx files can be imported")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return apperr.Upstream("opening uploaded file", err)
		}
		defer file.Close()

		res, err := svc.Import(c.UserContext(), file)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}
