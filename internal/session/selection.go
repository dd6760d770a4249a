package session

import "fmt"

// Selection is the chosen time range of the loaded audio, in seconds.
type Selection struct {
	StartSec    float64
	EndSec      float64
	DurationSec float64
}

// Actionable reports whether the selection covers a non-empty range.
func (s Selection) Actionable() bool {
	return s.EndSec > s.StartSec
}

// Valid reports whether the selection is actionable and lies inside the
// track: 0 ≤ start < end ≤ duration.
func (s Selection) Valid() bool {
	return s.Actionable() && s.StartSec >= 0 && s.EndSec <= s.DurationSec
}

// Length returns the selected span in seconds, or 0 when not actionable.
func (s Selection) Length() float64 {
	if !s.Actionable() {
		return 0
	}
	return s.EndSec - s.StartSec
}

func (s Selection) String() string {
	return fmt.Sprintf("%s – %s (%.1fs) / %s", FormatSeconds(s.StartSec), FormatSeconds(s.EndSec), s.Length(), FormatSeconds(s.DurationSec))
}

// FormatSeconds renders seconds as m:ss.t.
func FormatSeconds(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	whole := int(sec)
	tenths := int((sec - float64(whole)) * 10)
	return fmt.Sprintf("%d:%02d.%d", whole/60, whole%60, tenths)
}
