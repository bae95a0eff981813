package seed

// CatalogConfig is the root of a seed file: a list of category groups,
// each a list of single-key maps from app name to its properties. The
// list shape keeps the file order, which becomes the creation order.
type CatalogConfig []map[string][]map[string]EntryProps

// EntryProps holds the properties of one app.
type EntryProps struct {
	Href        string `yaml:"href"`
	Description string `yaml:"description,omitempty"`
	Image       string `yaml:"image,omitempty"`
}
