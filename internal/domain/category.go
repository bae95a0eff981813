package domain

// Category is one entry of the fixed catalog enumeration.
type Category string

const (
	CategoryCRE     Category = "CRE"
	CategoryFinance Category = "Finance"
	CategoryFamily  Category = "Family"
	CategoryFitness Category = "Fitness"
	CategoryMedical Category = "Medical"
	CategoryPetCare Category = "Pet Care"
	CategoryOther   Category = "Other"

	// CategoryAll is a list filter only; it is never stored.
	CategoryAll Category = "All"

	DefaultCategory = CategoryCRE
)

// Categories lists the storable categories in display order.
var Categories = []Category{
	CategoryCRE,
	CategoryFinance,
	CategoryFamily,
	CategoryFitness,
	CategoryMedical,
	CategoryPetCare,
	CategoryOther,
}

// Valid reports whether c can be stored on a record.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// OrDefault returns DefaultCategory when c is empty.
func (c Category) OrDefault() Category {
	if c == "" {
		return DefaultCategory
	}
	return c
}

// FilterByCategory keeps the apps in category c, preserving order.
// CategoryAll and the empty category match everything.
func FilterByCategory(apps []App, c Category) []App {
	if c == "" || c == CategoryAll {
		return apps
	}
	out := make([]App, 0, len(apps))
	for _, a := range apps {
		if a.Category == c {
			out = append(out, a)
		}
	}
	return out
}

// CountByCategory returns the number of apps per category, plus the
// total under CategoryAll.
func CountByCategory(apps []App) map[Category]int {
	counts := make(map[Category]int, len(Categories)+1)
	counts[CategoryAll] = len(apps)
	for _, a := range apps {
		counts[a.Category]++
	}
	return counts
}
