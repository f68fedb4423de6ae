// Package note maps frequencies onto the twelve-tone equal tempered scale.
package note

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// A4 is the concert pitch reference in Hz.
	A4 = 440.0

	// IndicatorRange is the number of cents shown on either side of a
	// tuning indicator.
	IndicatorRange = 50
)

// C0 is the frequency of the lowest representable note.
var C0 = A4 * math.Pow(2, -4.75)

// Names holds the chromatic note names starting at C.
var Names = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// ErrOutOfRange is returned when a frequency or note lies outside the
// representable domain.
var ErrOutOfRange = errors.New("note: out of range")

// Result is the nearest note to a frequency.
type Result struct {
	Name      string
	Octave    int
	Frequency float64
}

// String returns the scientific pitch name, e.g. "A4".
func (r Result) String() string {
	return r.Name + strconv.Itoa(r.Octave)
}

// FromFrequency returns the note closest to freq.
func FromFrequency(freq float64) (Result, error) {
	if !valid(freq) {
		return Result{}, fmt.Errorf("%w: %v Hz", ErrOutOfRange, freq)
	}

	halfSteps := int(math.Round(12 * math.Log2(freq/C0)))
	if halfSteps < 0 {
		return Result{}, fmt.Errorf("%w: %v Hz is below C0", ErrOutOfRange, freq)
	}

	return Result{
		Name:      Names[halfSteps%12],
		Octave:    halfSteps / 12,
		Frequency: freq,
	}, nil
}

// CentsDifference returns floor(1200 * log2(actual/target)). A positive
// value means actual is sharp of target.
func CentsDifference(actual, target float64) (int, error) {
	if !valid(actual) || !valid(target) {
		return 0, fmt.Errorf("%w: cents between %v Hz and %v Hz", ErrOutOfRange, actual, target)
	}
	return int(math.Floor(1200 * math.Log2(actual/target))), nil
}

// Position maps a cents offset onto a 0..100 indicator scale where 50 is
// perfectly in tune.
func Position(cents int) int {
	return min(max(cents+IndicatorRange, 0), 2*IndicatorRange)
}

// Frequency returns the equal tempered frequency of a note name in the
// given octave.
func Frequency(name string, octave int) (float64, error) {
	idx := index(name)
	if idx < 0 || octave < 0 {
		return 0, fmt.Errorf("%w: %s%d", ErrOutOfRange, name, octave)
	}
	halfSteps := octave*12 + idx
	return C0 * math.Pow(2, float64(halfSteps)/12), nil
}

// Parse reads a scientific pitch name such as "E2" or "a#3".
func Parse(s string) (Result, error) {
	s = strings.TrimSpace(s)
	split := strings.IndexFunc(s, func(r rune) bool {
		return r == '-' || (r >= '0' && r <= '9')
	})
	if split <= 0 {
		return Result{}, fmt.Errorf("%w: cannot parse %q", ErrOutOfRange, s)
	}

	name := strings.ToUpper(s[:split])
	octave, err := strconv.Atoi(s[split:])
	if err != nil {
		return Result{}, fmt.Errorf("%w: bad octave in %q", ErrOutOfRange, s)
	}

	freq, err := Frequency(name, octave)
	if err != nil {
		return Result{}, err
	}
	return Result{Name: name, Octave: octave, Frequency: freq}, nil
}

func index(name string) int {
	for i, n := range Names {
		if n == name {
			return i
		}
	}
	return -1
}

func valid(freq float64) bool {
	return freq > 0 && !math.IsInf(freq, 0) && !math.IsNaN(freq)
}
