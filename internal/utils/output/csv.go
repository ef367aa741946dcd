package output

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/law-makers/shopscrape/pkg/models"
)

// csvHeader lists the exported columns in order
var csvHeader = []string{
	"product_id", "name", "brand", "price", "currency", "stock_status", "availability",
	"category", "size", "color", "materials", "care_info", "images", "product_url",
	"scraped_category", "category_path", "scrape_type", "description",
}

// WriteCSV writes one row per product. Multi-valued fields are joined with "|".
func WriteCSV(w io.Writer, products []*models.Product) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, p := range products {
		if p == nil {
			continue
		}
		price := ""
		if p.Price != nil {
			price = strconv.FormatFloat(*p.Price, 'f', 2, 64)
		}
		row := []string{
			strconv.FormatInt(p.ProductID, 10),
			p.Name,
			p.Brand,
			price,
			p.Currency,
			p.StockStatus,
			strconv.FormatBool(p.Availability),
			p.Category,
			strings.Join(p.Sizes, "|"),
			strings.Join(p.Colors, "|"),
			p.Materials,
			p.CareInfo,
			strings.Join(p.Images, "|"),
			p.ProductURL,
			p.ScrapedCategory,
			p.CategoryPath,
			p.ScrapeType,
			p.Description,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// SaveCSV writes products to a CSV file. Returns an error on failure.
func SaveCSV(products []*models.Product, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteCSV(file, products)
}

// Save picks the format from the file extension, defaulting to JSON
func Save(products []*models.Product, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return SaveCSV(products, path)
	}
	return SaveJSON(products, path)
}
