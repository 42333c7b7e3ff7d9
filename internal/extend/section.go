package extend

import (
	"fmt"

	"github.com/satindergrewal/loopstretch/internal/beat"
)

// Section is the [Start, End) span, in seconds, that gets extended.
type Section struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ParseSection parses both time marks.
func ParseSection(start, end string) (Section, error) {
	s, err := ParseTimeMark(start)
	if err != nil {
		return Section{}, fmt.Errorf("start: %w", err)
	}
	e, err := ParseTimeMark(end)
	if err != nil {
		return Section{}, fmt.Errorf("end: %w", err)
	}
	return Section{Start: s, End: e}, nil
}

// Duration returns End - Start.
func (s Section) Duration() float64 { return s.End - s.Start }

func (s Section) String() string {
	return FormatTimeMark(s.Start) + "-" + FormatTimeMark(s.End)
}

// Validate checks 0 <= Start < End <= length.
func (s Section) Validate(length float64) error {
	switch {
	case s.Start < 0:
		return fmt.Errorf("%w: start %s is negative", ErrDegenerateSection, FormatTimeMark(s.Start))
	case s.Start >= s.End:
		return fmt.Errorf("%w: start %s is not before end %s", ErrDegenerateSection,
			FormatTimeMark(s.Start), FormatTimeMark(s.End))
	case s.End > length:
		return fmt.Errorf("%w: end %s is past the recording length %s", ErrDegenerateSection,
			FormatTimeMark(s.End), FormatTimeMark(length))
	}
	return nil
}

// SnapSection moves both ends to their nearest beats. Two ends that land on
// the same beat (or cross) make the section degenerate.
func SnapSection(grid beat.Grid, s Section) (Section, error) {
	start, err := beat.Nearest(grid, s.Start)
	if err != nil {
		return Section{}, err
	}
	end, err := beat.Nearest(grid, s.End)
	if err != nil {
		return Section{}, err
	}
	snapped := Section{Start: start, End: end}
	if snapped.Start >= snapped.End {
		return Section{}, fmt.Errorf("%w: %s snaps to %s", ErrDegenerateSection, s, snapped)
	}
	return snapped, nil
}
