package model

import "strings"

type Category string

const (
	CategorySocial   Category = "social"
	CategoryAcademic Category = "academic"
	CategoryFood     Category = "food"
	CategoryArts     Category = "arts"
	CategorySports   Category = "sports"
	CategoryCareer   Category = "career"
	CategoryHousing  Category = "housing"
	CategoryOther    Category = "other"
)

type CategoryInfo struct {
	ID    Category `json:"id"`
	Label string   `json:"label"`
}

var categories = []CategoryInfo{
	{ID: CategorySocial, Label: "Social Events"},
	{ID: CategoryAcademic, Label: "Academic"},
	{ID: CategoryFood, Label: "Food & Dining"},
	{ID: CategoryArts, Label: "Arts & Culture"},
	{ID: CategorySports, Label: "Sports & Fitness"},
	{ID: CategoryCareer, Label: "Career"},
	{ID: CategoryHousing, Label: "Housing & Sales"},
	{ID: CategoryOther, Label: "Other"},
}

// Categories returns the fixed category list in display order.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory maps s to a known category. Unknown or empty values become
// CategoryOther.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c.Known() {
		return c
	}
	return CategoryOther
}

func (c Category) Known() bool {
	for _, info := range categories {
		if info.ID == c {
			return true
		}
	}
	return false
}

func (c Category) Label() string {
	for _, info := range categories {
		if info.ID == c {
			return info.Label
		}
	}
	return categories[len(categories)-1].Label
}

// UnmarshalText normalizes categories read from JSON or YAML.
func (c *Category) UnmarshalText(b []byte) error {
	*c = ParseCategory(string(b))
	return nil
}
