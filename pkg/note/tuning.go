package note

import (
	"fmt"
	"strings"
)

// Accuracy classifies how close a cents offset is to the target.
type Accuracy int

const (
	InTune Accuracy = iota
	Close
	OutOfTune
)

func (a Accuracy) String() string {
	switch a {
	case InTune:
		return "in tune"
	case Close:
		return "close"
	case OutOfTune:
		return "out of tune"
	default:
		return "unknown"
	}
}

// Classify returns the accuracy band of a cents offset.
func Classify(cents int) Accuracy {
	if cents < 0 {
		cents = -cents
	}
	switch {
	case cents < 5:
		return InTune
	case cents < 15:
		return Close
	default:
		return OutOfTune
	}
}

// String is an open guitar string.
type String struct {
	Name      string
	Frequency float64
}

// StandardTuning lists the open strings from the sixth (low E) to the
// first (high E).
var StandardTuning = []String{
	{Name: "E2", Frequency: 82.41},
	{Name: "A2", Frequency: 110.00},
	{Name: "D3", Frequency: 146.83},
	{Name: "G3", Frequency: 196.00},
	{Name: "B3", Frequency: 246.94},
	{Name: "E4", Frequency: 329.63},
}

// LookupString finds an open string of the standard tuning by name.
func LookupString(name string) (String, error) {
	for _, s := range StandardTuning {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return String{}, fmt.Errorf("%w: no open string %q", ErrOutOfRange, name)
}

// Lookup resolves an open string name such as "E2" or any note such as
// "C#4" to its frequency. Open strings use the tuning table frequencies.
func Lookup(name string) (float64, error) {
	if s, err := LookupString(name); err == nil {
		return s.Frequency, nil
	}
	n, err := Parse(name)
	if err != nil {
		return 0, err
	}
	return n.Frequency, nil
}
