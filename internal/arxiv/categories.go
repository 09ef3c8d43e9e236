package arxiv

// Category is one entry of the arXiv category catalog.
type Category struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
}

// Archive groups the categories of one arXiv archive (e.g. "cs").
type Archive struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Subcategories []Category `json:"subcategories"`
}

var catalog = []Archive{
	{
		ID:   "cs",
		Name: "Computer Science",
		Subcategories: []Category{
			{Tag: "cs.AI", Name: "Artificial Intelligence"},
			{Tag: "cs.CL", Name: "Computation and Language"},
			{Tag: "cs.CV", Name: "Computer Vision"},
			{Tag: "cs.LG", Name: "Machine Learning"},
			{Tag: "cs.RO", Name: "Robotics"},
		},
	},
	{
		ID:   "stat",
		Name: "Statistics",
		Subcategories: []Category{
			{Tag: "stat.ML", Name: "Machine Learning"},
		},
	},
}

// Categories returns a copy of the category catalog offered to users.
func Categories() []Archive {
	out := make([]Archive, len(catalog))
	for i, a := range catalog {
		a.Subcategories = append([]Category(nil), a.Subcategories...)
		out[i] = a
	}
	return out
}

// KnownCategory reports whether tag is in the catalog.
func KnownCategory(tag string) bool {
	for _, a := range catalog {
		for _, c := range a.Subcategories {
			if c.Tag == tag {
				return true
			}
		}
	}
	return false
}
