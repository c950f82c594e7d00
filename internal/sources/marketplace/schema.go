package marketplace

// File is the top-level structure of marketplaces.yaml
type File struct {
	Marketplaces []Marketplace `yaml:"marketplaces"`
}

// Marketplace describes one supported source of products
type Marketplace struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// ProductURL builds the canonical product URL; "{id}" is replaced
	// by the marketplace product id.
	ProductURL string `yaml:"product_url"`

	// IDPattern, when set, is a regular expression every product id must match.
	IDPattern string `yaml:"id_pattern,omitempty"`
}

// Defaults is used when no marketplace file is configured.
var Defaults = []Marketplace{
	{ID: "amazon", Name: "Amazon", ProductURL: "https://www.amazon.com/dp/{id}", IDPattern: `^[A-Za-z0-9]+$`},
	{ID: "ebay", Name: "eBay", ProductURL: "https://www.ebay.com/itm/{id}", IDPattern: `^[0-9]+$`},
	{ID: "etsy", Name: "Etsy", ProductURL: "https://www.etsy.com/listing/{id}", IDPattern: `^[0-9]+$`},
}
