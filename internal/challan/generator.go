package challan

import (
	"context"
	stdErrors "errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/inkforge/studio-backend/pkg/config"
	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
)

const sheetName = "Delivery Challan"

// Generator writes the manufacturing delivery challan workbook for a design
// order. Generation is fire-and-forget from checkout's point of view: the
// caller logs failures and reports a boolean flag, never a request error.
type Generator struct {
	dir           string
	publicBaseURL string
	logg          *logger.Logger
}

// NewGenerator builds a challan generator, creating the output directory if
// needed.
func NewGenerator(cfg config.ChallanConfig, logg *logger.Logger) (*Generator, error) {
	if cfg.Dir == "" {
		return nil, errors.New(errors.CodeConfig, "challan directory is required")
	}
	if logg == nil {
		return nil, stdErrors.New("logger is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.CodeConfig, err, "creating challan directory")
	}
	return &Generator{dir: cfg.Dir, publicBaseURL: cfg.PublicBaseURL, logg: logg}, nil
}

// Generate renders the workbook and returns the public URL of the document.
func (g *Generator) Generate(ctx context.Context, order *models.Order, designOrder *models.DesignOrder) (string, error) {
	if order == nil || designOrder == nil {
		return "", errors.New(errors.CodeValidation, "order and design order are required")
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", errors.Wrap(errors.CodeInternal, err, "creating challan sheet")
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", errors.Wrap(errors.CodeInternal, err, "removing default sheet")
	}

	header := [][]interface{}{
		{"Delivery Challan"},
		{},
		{"Order Number", order.OrderNumber},
		{"Customer", designOrder.CustomerName},
		{"Email", designOrder.CustomerEmail},
		{"Date", order.CreatedAt.Format("02 Jan 2006")},
	}
	row := 1
	for _, line := range header {
		for col, value := range line {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return "", errors.Wrap(errors.CodeInternal, err, "building cell name")
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return "", errors.Wrap(errors.CodeInternal, err, "writing challan header")
			}
		}
		row++
	}
	if designOrder.CustomerPhone != nil {
		if err := f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Phone"); err != nil {
			return "", errors.Wrap(errors.CodeInternal, err, "writing challan header")
		}
		if err := f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), *designOrder.CustomerPhone); err != nil {
			return "", errors.Wrap(errors.CodeInternal, err, "writing challan header")
		}
		row++
	}

	// Size/quantity table.
	row++
	if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", row), &[]interface{}{"Size", "Quantity"}); err != nil {
		return "", errors.Wrap(errors.CodeInternal, err, "writing size table header")
	}
	row++
	for _, size := range designOrder.SizeQuantities.Sizes() {
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", row), &[]interface{}{size, designOrder.SizeQuantities[size]}); err != nil {
			return "", errors.Wrap(errors.CodeInternal, err, "writing size row")
		}
		row++
	}
	if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", row), &[]interface{}{"Total", designOrder.TotalQuantity}); err != nil {
		return "", errors.Wrap(errors.CodeInternal, err, "writing total row")
	}
	row += 2

	if designOrder.Color != nil {
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", row), &[]interface{}{"Color", *designOrder.Color}); err != nil {
			return "", errors.Wrap(errors.CodeInternal, err, "writing color row")
		}
		row++
	}
	if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", row), &[]interface{}{"Amount Due (minor units)", designOrder.PriceBreakdown.TotalCents}); err != nil {
		return "", errors.Wrap(errors.CodeInternal, err, "writing amount row")
	}

	filename := fmt.Sprintf("challan_%s.xlsx", order.OrderNumber)
	if err := f.SaveAs(filepath.Join(g.dir, filename)); err != nil {
		return "", errors.Wrap(errors.CodeInternal, err, "saving challan workbook")
	}

	url := path.Join(g.publicBaseURL, filename)
	g.logg.Info(g.logg.WithOrderNumber(ctx, order.OrderNumber), "challan generated")
	return url, nil
}
