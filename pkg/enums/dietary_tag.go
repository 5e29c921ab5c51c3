package enums

// DietaryTag is stored as text[] on food items and recipient profiles.
type DietaryTag string

const (
	DietaryVegetarian DietaryTag = "vegetarian"
	DietaryVegan      DietaryTag = "vegan"
	DietaryHalal      DietaryTag = "halal"
	DietaryKosher     DietaryTag = "kosher"
	DietaryGlutenFree DietaryTag = "gluten_free"
	DietaryNutFree    DietaryTag = "nut_free"
	DietaryDairyFree  DietaryTag = "dairy_free"
)

var validDietaryTags = []DietaryTag{
	DietaryVegetarian,
	DietaryVegan,
	DietaryHalal,
	DietaryKosher,
	DietaryGlutenFree,
	DietaryNutFree,
	DietaryDairyFree,
}

func (d DietaryTag) IsValid() bool {
	return member(d, validDietaryTags)
}

func ParseDietaryTag(value string) (DietaryTag, error) {
	return parse(value, "dietary tag", validDietaryTags)
}

// ParseDietaryTags validates every entry and drops duplicates, keeping order.
func ParseDietaryTags(values []string) ([]DietaryTag, error) {
	seen := make(map[DietaryTag]struct{}, len(values))
	out := make([]DietaryTag, 0, len(values))
	for _, value := range values {
		tag, err := ParseDietaryTag(value)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out, nil
}
