package enums

type QuantityUnit string

const (
	QuantityUnitKg       QuantityUnit = "kg"
	QuantityUnitLbs      QuantityUnit = "lbs"
	QuantityUnitServings QuantityUnit = "servings"
	QuantityUnitPieces   QuantityUnit = "pieces"
	QuantityUnitLiters   QuantityUnit = "liters"
	QuantityUnitGallons  QuantityUnit = "gallons"
)

var validQuantityUnits = []QuantityUnit{
	QuantityUnitKg,
	QuantityUnitLbs,
	QuantityUnitServings,
	QuantityUnitPieces,
	QuantityUnitLiters,
	QuantityUnitGallons,
}

func (u QuantityUnit) String() string {
	return string(u)
}

func (u QuantityUnit) IsValid() bool {
	return member(u, validQuantityUnits)
}

func ParseQuantityUnit(value string) (QuantityUnit, error) {
	return parse(value, "quantity unit", validQuantityUnits)
}
