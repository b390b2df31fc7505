package models

import "strings"

// Category is the colour-derived tag of an appointment.
type Category int

const (
	CategoryCustom Category = iota
	CategoryBlue
	CategoryGreen
	CategoryAmber
	CategoryRed
	CategoryViolet
)

// Palette lists the colour tokens offered for new appointments, in display order.
var Palette = []string{
	"#3b82f6",
	"#10b981",
	"#f59e0b",
	"#ef4444",
	"#8b5cf6",
}

// CategoryOf maps a colour token to its category. Unknown tokens map to CategoryCustom.
func CategoryOf(color string) Category {
	switch strings.ToLower(strings.TrimSpace(color)) {
	case "#3b82f6":
		return CategoryBlue
	case "#10b981":
		return CategoryGreen
	case "#f59e0b":
		return CategoryAmber
	case "#ef4444":
		return CategoryRed
	case "#8b5cf6":
		return CategoryViolet
	default:
		return CategoryCustom
	}
}

// String returns the lowercase name of the category.
func (c Category) String() string {
	switch c {
	case CategoryBlue:
		return "blue"
	case CategoryGreen:
		return "green"
	case CategoryAmber:
		return "amber"
	case CategoryRed:
		return "red"
	case CategoryViolet:
		return "violet"
	default:
		return "custom"
	}
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name. Unknown names decode to CategoryCustom.
func (c *Category) UnmarshalText(b []byte) error {
	*c = CategoryCustom
	for k := CategoryBlue; k <= CategoryViolet; k++ {
		if k.String() == string(b) {
			*c = k
			break
		}
	}
	return nil
}
