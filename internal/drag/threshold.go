package drag

import (
	"math"
	"time"
)

// Modality is the input device that started a press.
type Modality int

const (
	Mouse Modality = iota
	Touch
	Pointer
)

func (m Modality) String() string {
	switch m {
	case Mouse:
		return "mouse"
	case Touch:
		return "touch"
	default:
		return "pointer"
	}
}

// Constraint decides when a press turns into a drag. With a Delay the press
// activates once the delay has elapsed, and aborts if the pointer moves more
// than Tolerance first. Without one it activates after Distance of movement.
type Constraint struct {
	Delay     time.Duration `json:"delay" yaml:"delay"`
	Tolerance float64       `json:"tolerance" yaml:"tolerance"`
	Distance  float64       `json:"distance" yaml:"distance"`
}

// Thresholds holds one Constraint per modality.
type Thresholds struct {
	Mouse   Constraint `json:"mouse" yaml:"mouse"`
	Touch   Constraint `json:"touch" yaml:"touch"`
	Pointer Constraint `json:"pointer" yaml:"pointer"`
}

// DefaultThresholds returns mouse 150ms/5, touch 250ms/8 and pointer 8.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Mouse:   Constraint{Delay: 150 * time.Millisecond, Tolerance: 5},
		Touch:   Constraint{Delay: 250 * time.Millisecond, Tolerance: 8},
		Pointer: Constraint{Distance: 8},
	}
}

// For returns the constraint of m.
func (t Thresholds) For(m Modality) Constraint {
	switch m {
	case Mouse:
		return t.Mouse
	case Touch:
		return t.Touch
	default:
		return t.Pointer
	}
}

// Point is a pointer position in surface units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

func (p Point) length() float64 { return math.Hypot(p.X, p.Y) }
