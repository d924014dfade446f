package product

import "github.com/shopspring/decimal"

// Samples returns the products shown on the landing page when the catalog
// cannot be read.
func Samples() []Product {
	return []Product{
		{
			ID:       "sample-1",
			Name:     "Premium Pencil Kit",
			Price:    decimal.NewFromInt(299),
			Category: "Writing",
			Image:    "https://images.unsplash.com/photo-1606326608606-aa0b62935f2b?w=800&q=80",
		},
		{
			ID:       "sample-2",
			Name:     "Geometry Box Set",
			Price:    decimal.NewFromInt(399),
			Category: "Mathematics",
			Image:    "https://images.unsplash.com/photo-1596495578065-6e0763fa1178?w=800&q=80",
		},
		{
			ID:       "sample-3",
			Name:     "Scientific Calculator",
			Price:    decimal.NewFromInt(1299),
			Category: "Electronics",
			Image:    "https://images.unsplash.com/photo-1587145820266-a5951ee6f620?w=800&q=80",
		},
		{
			ID:       "sample-4",
			Name:     "Student Notebook Set",
			Price:    decimal.NewFromInt(249),
			Category: "Stationery",
			Image:    "https://images.unsplash.com/photo-1524995997946-a1c2e315a42f?w=800&q=80",
		},
	}
}
