package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProductConfig describes a single OPERA data product. Products are the
// searchable dataset types; ShortName is the CMR collection short name.
type ProductConfig struct {
	ShortName   string `json:"short_name"`
	ShortTitle  string `json:"short_title"`
	Title       string `json:"title"`
	Description string `json:"description"`
	// Provider overrides the configured CMR provider for this product.
	Provider string `json:"provider,omitempty"`
}

// ProductRegistry holds all known product configurations indexed by short name.
type ProductRegistry struct {
	products map[string]*ProductConfig
	order    []string
}

// NewProductRegistry creates a new empty product registry.
func NewProductRegistry() *ProductRegistry {
	return &ProductRegistry{
		products: make(map[string]*ProductConfig),
	}
}

// DefaultProducts returns the built-in OPERA product catalog.
func DefaultProducts() *ProductRegistry {
	registry := NewProductRegistry()
	for _, p := range []*ProductConfig{
		{
			ShortName:   "OPERA_L3_DSWX-HLS_V1",
			ShortTitle:  "DSWX-HLS",
			Title:       "Dynamic Surface Water Extent from Harmonized Landsat Sentinel-2 (Version 1)",
			Description: "Surface water extent derived from HLS data",
		},
		{
			ShortName:   "OPERA_L3_DSWX-S1_V1",
			ShortTitle:  "DSWX-S1",
			Title:       "Dynamic Surface Water Extent from Sentinel-1 (Version 1)",
			Description: "Surface water extent derived from Sentinel-1 SAR data",
		},
		{
			ShortName:   "OPERA_L3_DIST-ALERT-HLS_V1",
			ShortTitle:  "DIST-ALERT",
			Title:       "Land Surface Disturbance Alert from HLS (Version 1)",
			Description: "Near real-time disturbance alerts",
		},
		{
			ShortName:   "OPERA_L3_DIST-ANN-HLS_V1",
			ShortTitle:  "DIST-ANN",
			Title:       "Land Surface Disturbance Annual from HLS (Version 1)",
			Description: "Annual land surface disturbance product",
		},
		{
			ShortName:   "OPERA_L2_RTC-S1_V1",
			ShortTitle:  "RTC-S1",
			Title:       "Radiometric Terrain Corrected SAR Backscatter from Sentinel-1 (Version 1)",
			Description: "Analysis-ready SAR backscatter data",
			Provider:    "ASF",
		},
		{
			ShortName:   "OPERA_L2_RTC-S1-STATIC_V1",
			ShortTitle:  "RTC-S1-STATIC",
			Title:       "RTC-S1 Static Layers (Version 1)",
			Description: "Static layers for RTC-S1 product",
			Provider:    "ASF",
		},
		{
			ShortName:   "OPERA_L2_CSLC-S1_V1",
			ShortTitle:  "CSLC-S1",
			Title:       "Coregistered Single-Look Complex from Sentinel-1 (Version 1)",
			Description: "SLC data coregistered to a common reference",
			Provider:    "ASF",
		},
		{
			ShortName:   "OPERA_L2_CSLC-S1-STATIC_V1",
			ShortTitle:  "CSLC-S1-STATIC",
			Title:       "CSLC-S1 Static Layers (Version 1)",
			Description: "Static layers for CSLC-S1 product",
			Provider:    "ASF",
		},
	} {
		// Built-in definitions always validate.
		_ = registry.Add(p)
	}
	return registry
}

// LoadProducts loads product definitions from JSON files in the specified
// directory. Only files with a .json extension are processed.
func LoadProducts(productsDir string) (*ProductRegistry, error) {
	registry := NewProductRegistry()

	info, err := os.Stat(productsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to access products directory %q: %w", productsDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("products path %q is not a directory", productsDir)
	}

	entries, err := os.ReadDir(productsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read products directory %q: %w", productsDir, err)
	}

	loadedCount := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filename := entry.Name()
		if !strings.HasSuffix(strings.ToLower(filename), ".json") {
			continue
		}

		filePath := filepath.Join(productsDir, filename)
		product, err := loadProductFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load product from %q: %w", filePath, err)
		}

		if err := registry.Add(product); err != nil {
			return nil, fmt.Errorf("failed to add product from %q: %w", filePath, err)
		}

		loadedCount++
	}

	if loadedCount == 0 {
		return nil, fmt.Errorf("no product files found in %q", productsDir)
	}

	return registry, nil
}

// loadProductFile loads a single product configuration from a JSON file.
func loadProductFile(filePath string) (*ProductConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var product ProductConfig
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if err := validateProduct(&product); err != nil {
		return nil, fmt.Errorf("invalid product configuration: %w", err)
	}

	return &product, nil
}

// validateProduct checks that a product configuration is valid.
func validateProduct(p *ProductConfig) error {
	if p.ShortName == "" {
		return fmt.Errorf("product short name is required")
	}

	if p.ShortTitle == "" {
		return fmt.Errorf("product short title is required")
	}

	if p.Title == "" {
		return fmt.Errorf("product title is required")
	}

	if p.Description == "" {
		return fmt.Errorf("product description is required")
	}

	return nil
}

// Add registers a product in the registry.
// Returns an error if a product with the same short name already exists.
func (r *ProductRegistry) Add(product *ProductConfig) error {
	if product == nil {
		return fmt.Errorf("cannot add nil product")
	}

	if err := validateProduct(product); err != nil {
		return err
	}

	if _, exists := r.products[product.ShortName]; exists {
		return fmt.Errorf("product with short name %q already exists", product.ShortName)
	}

	r.products[product.ShortName] = product
	r.order = append(r.order, product.ShortName)
	return nil
}

// Get retrieves a product by short name.
// Returns nil if the product does not exist.
func (r *ProductRegistry) Get(shortName string) *ProductConfig {
	return r.products[shortName]
}

// Has checks if a product with the given short name exists in the registry.
func (r *ProductRegistry) Has(shortName string) bool {
	_, exists := r.products[shortName]
	return exists
}

// All returns all products in registration order.
func (r *ProductRegistry) All() []*ProductConfig {
	products := make([]*ProductConfig, 0, len(r.order))
	for _, shortName := range r.order {
		products = append(products, r.products[shortName])
	}
	return products
}

// ShortNames returns all product short names in registration order.
func (r *ProductRegistry) ShortNames() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of products in the registry.
func (r *ProductRegistry) Count() int {
	return len(r.products)
}
