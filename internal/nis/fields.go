package nis

import "strings"

// StatusField identifies one value carried by a Snapshot.
type StatusField int

const (
	LineVoltage StatusField = iota
	BatteryCharge
	Charging // derived, never read off the wire
	Online
	LoadPercent
	TimeLeft

	NumFields
)

var fieldNames = [NumFields]string{
	LineVoltage:   "line_voltage",
	BatteryCharge: "battery_charge",
	Charging:      "charging",
	Online:        "online",
	LoadPercent:   "load_percent",
	TimeLeft:      "time_left",
}

func (f StatusField) String() string {
	if f < 0 || f >= NumFields {
		return "unknown"
	}
	return fieldNames[f]
}

// ParseKind selects how a reply line's value is turned into an integer.
type ParseKind int

const (
	// Numeric parses the first value token as a base-10 integer.
	Numeric ParseKind = iota
	// SubstringPresence yields 1 when SearchToken occurs in any value token.
	SubstringPresence
)

// FieldDescriptor maps one reply label onto a StatusField.
type FieldDescriptor struct {
	Label       string
	Field       StatusField
	Kind        ParseKind
	SearchToken string
}

// Parser limits. Lines with more tokens are cut at MaxTokens; first tokens
// longer than MaxLabelLength never match a label.
const (
	MaxTokens      = 10
	MaxLabelLength = 20
)

// fieldTable is the set of apcupsd status labels we consume. Everything
// else in the reply is ignored.
var fieldTable = [...]FieldDescriptor{
	{Label: "LINEV", Field: LineVoltage, Kind: Numeric},
	{Label: "BCHARGE", Field: BatteryCharge, Kind: Numeric},
	{Label: "STATUS", Field: Online, Kind: SubstringPresence, SearchToken: "ONLINE"},
	{Label: "LOADPCT", Field: LoadPercent, Kind: Numeric},
	{Label: "TIMELEFT", Field: TimeLeft, Kind: Numeric},
}

// FieldTable returns a copy of the label table.
func FieldTable() []FieldDescriptor {
	out := make([]FieldDescriptor, len(fieldTable))
	copy(out, fieldTable[:])
	return out
}

func lookupLabel(label string) (FieldDescriptor, bool) {
	if len(label) > MaxLabelLength {
		return FieldDescriptor{}, false
	}
	for _, d := range fieldTable {
		if d.Label == label {
			return d, true
		}
	}
	return FieldDescriptor{}, false
}

// FieldSet is a presence bitmap over StatusField.
type FieldSet uint32

// NewFieldSet builds a set from the given fields.
func NewFieldSet(fields ...StatusField) FieldSet {
	var s FieldSet
	for _, f := range fields {
		s = s.Add(f)
	}
	return s
}

// ExpectedFields must all be present before a reply is published.
var ExpectedFields = NewFieldSet(LineVoltage, BatteryCharge, Online, LoadPercent, TimeLeft)

func (s FieldSet) Add(f StatusField) FieldSet { return s | 1<<uint(f) }

func (s FieldSet) Has(f StatusField) bool { return s&(1<<uint(f)) != 0 }

// Contains reports whether every field of other is also in s.
func (s FieldSet) Contains(other FieldSet) bool { return s&other == other }

// Missing returns the fields of want that are absent from s.
func (s FieldSet) Missing(want FieldSet) []StatusField {
	var out []StatusField
	for f := StatusField(0); f < NumFields; f++ {
		if want.Has(f) && !s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s FieldSet) String() string {
	var names []string
	for f := StatusField(0); f < NumFields; f++ {
		if s.Has(f) {
			names = append(names, f.String())
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}
