package domain

// Product is a single catalog entry.
type Product struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Category string   `json:"category" yaml:"category"`
	Colors   []string `json:"colors" yaml:"colors"`
	Image    string   `json:"image" yaml:"image"`
}

// Catalog keeps document order; ids are expected to be unique but nothing enforces it.
type Catalog []Product

func (c Catalog) Find(id string) (Product, bool) {
	for _, p := range c {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func (c Catalog) Without(id string) []Product {
	out := make([]Product, 0, len(c))
	for _, p := range c {
		if p.ID == id {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Select returns catalog products whose id is in ids, in catalog order.
// The excluded id never appears and every id is returned at most once.
func (c Catalog) Select(ids []string, exclude string) []Product {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	out := make([]Product, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, p := range c {
		if p.ID == exclude {
			continue
		}
		if _, ok := wanted[p.ID]; !ok {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
