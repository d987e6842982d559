// Package anomaly defines the anomaly record that annotations edit, the class
// catalogue, the boundary codec for stored records and the in-memory
// collection shared by the interaction engine and the renderer.
package anomaly

import (
	"fmt"
	"strings"

	"thermal-annotator/pkg/geometry"
)

// Origin records who produced an anomaly. It never changes after creation.
type Origin string

const (
	OriginAI   Origin = "AI"
	OriginUser Origin = "User"
)

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	return o == OriginAI || o == OriginUser
}

// Known anomaly classes. NormalClass is a sentinel meaning "no fault"; it is
// stored but never drawn, counted or reported.
const (
	ClassFullWireOverload    = "Full wire overload"
	ClassLooseJointFaulty    = "Loose Joint -Faulty"
	ClassLooseJointPotential = "Loose Joint -Potential"
	ClassPointOverloadFaulty = "Point Overload - Faulty"
	NormalClass              = "Normal"
)

// UserConfidence is the confidence recorded for operator-drawn boxes.
const UserConfidence = 1.0

// Classes is the catalogue offered to the operator, in display order. The
// first entry is the default class for newly drawn boxes.
var Classes = []string{
	ClassFullWireOverload,
	ClassLooseJointFaulty,
	ClassLooseJointPotential,
	ClassPointOverloadFaulty,
	NormalClass,
}

// DefaultClass is the class assigned to a drawn box when none is chosen.
func DefaultClass() string { return Classes[0] }

// IsNormal reports whether class is the Normal sentinel. The comparison
// ignores case and surrounding space.
func IsNormal(class string) bool {
	return strings.EqualFold(strings.TrimSpace(class), NormalClass)
}

// KnownClass reports whether class is in the catalogue.
func KnownClass(class string) bool {
	if IsNormal(class) {
		return true
	}
	for _, c := range Classes {
		if c == class {
			return true
		}
	}
	return false
}

// Anomaly is one rectangular annotation on an inspection image. Box is the
// canonical center-form box in natural image pixels.
type Anomaly struct {
	ID         string
	Box        geometry.CenterBox
	Class      string
	Confidence float64
	Origin     Origin
}

// NewUser returns an unsaved operator-drawn anomaly.
func NewUser(box geometry.CenterBox, class string) Anomaly {
	if class == "" {
		class = DefaultClass()
	}
	return Anomaly{Box: box, Class: class, Confidence: UserConfidence, Origin: OriginUser}
}

// Persisted reports whether the anomaly has a store-assigned id.
func (a Anomaly) Persisted() bool { return a.ID != "" }

// Normal reports whether the anomaly carries the Normal sentinel class.
func (a Anomaly) Normal() bool { return IsNormal(a.Class) }

// Label is the overlay caption, e.g. "Loose Joint -Faulty (87.5%)".
func (a Anomaly) Label() string {
	return fmt.Sprintf("%s (%.1f%%)", a.Class, a.Confidence*100)
}

// WithBox returns a copy with the box replaced; id, class, confidence and
// origin are kept.
func (a Anomaly) WithBox(box geometry.CenterBox) Anomaly {
	a.Box = box
	return a
}
