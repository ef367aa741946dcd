package output

import (
	"encoding/json"
	"io"
	"os"

	"github.com/law-makers/shopscrape/pkg/models"
)

// WriteJSON writes products as an indented JSON array
func WriteJSON(w io.Writer, products []*models.Product) error {
	if products == nil {
		products = []*models.Product{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(products)
}

// SaveJSON writes a JSON export of products to filepath.
func SaveJSON(products []*models.Product, filepath string) error {
	content, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, content, 0644)
}
