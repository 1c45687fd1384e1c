package domain

// Certainty is the closed five-way scale a finding value can take.
type Certainty string

const (
	CertainlyTrue  Certainty = "Certainly True"
	MaybeTrue      Certainty = "Maybe True"
	Unknown        Certainty = "Unknown"
	MaybeFalse     Certainty = "Maybe False"
	CertainlyFalse Certainty = "Certainly False"
)

// CertaintyScale lists the valid values in order of decreasing confidence.
var CertaintyScale = []Certainty{
	CertainlyTrue,
	MaybeTrue,
	Unknown,
	MaybeFalse,
	CertainlyFalse,
}

func (c Certainty) Valid() bool {
	switch c {
	case CertainlyTrue, MaybeTrue, Unknown, MaybeFalse, CertainlyFalse:
		return true
	}
	return false
}
