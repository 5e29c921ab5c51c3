package enums

// FoodCategory maps to the food_category enum in Postgres.
type FoodCategory string

const (
	FoodCategoryMeals     FoodCategory = "meals"
	FoodCategoryBakery    FoodCategory = "bakery"
	FoodCategoryProduce   FoodCategory = "produce"
	FoodCategoryDairy     FoodCategory = "dairy"
	FoodCategoryBeverages FoodCategory = "beverages"
	FoodCategorySnacks    FoodCategory = "snacks"
	FoodCategoryOther     FoodCategory = "other"
)

var validFoodCategories = []FoodCategory{
	FoodCategoryMeals,
	FoodCategoryBakery,
	FoodCategoryProduce,
	FoodCategoryDairy,
	FoodCategoryBeverages,
	FoodCategorySnacks,
	FoodCategoryOther,
}

func (c FoodCategory) String() string {
	return string(c)
}

func (c FoodCategory) IsValid() bool {
	return member(c, validFoodCategories)
}

func ParseFoodCategory(value string) (FoodCategory, error) {
	return parse(value, "food category", validFoodCategories)
}
