package names

// Usage is the position a type reference occupies.
type Usage uint8

const (
	UsageTypeName Usage = iota
	UsageField
	UsageProperty
	UsageParameter
	UsageReturn
	UsageGenericArg
	UsageBaseType
	UsageInterface
)

func (u Usage) String() string {
	switch u {
	case UsageTypeName:
		return "type"
	case UsageField:
		return "field"
	case UsageProperty:
		return "property"
	case UsageParameter:
		return "parameter"
	case UsageReturn:
		return "return"
	case UsageGenericArg:
		return "generic-arg"
	case UsageBaseType:
		return "base"
	case UsageInterface:
		return "interface"
	}
	return "unknown"
}

// Widening reports contexts that only need the base shape of a type.
func (u Usage) Widening() bool {
	return u == UsageBaseType || u == UsageInterface
}

// signature reports positions whose value types are needed by method bodies.
func (u Usage) signature() bool {
	return u == UsageParameter || u == UsageReturn
}
