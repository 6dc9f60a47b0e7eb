package catalogue

import "context"

// VariantInfo is the read-only projection of a product variant that the
// checkout components need. Catalogue management lives elsewhere.
type VariantInfo struct {
	ID                   string `json:"id"`
	SKU                  string `json:"sku"`
	Name                 string `json:"name"`
	ProductName          string `json:"product_name"`
	RequiresInstallation bool   `json:"requires_installation"`
	IsDropshipping       bool   `json:"is_dropshipping"`
	IsActive             bool   `json:"is_active"`
}

// VariantReader resolves variant projections for pricing and checkout.
type VariantReader interface {
	Variant(ctx context.Context, id string) (VariantInfo, error)
	Variants(ctx context.Context, ids []string) (map[string]VariantInfo, error)
}
