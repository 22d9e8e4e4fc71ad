package season

import "strings"

// lapHints maps a lower-case event-name fragment to the race distance in laps.
// Order matters: the first fragment contained in the event name wins.
var lapHints = []struct {
	fragment string
	laps     int
}{
	{"bahrain", 57},
	{"saudi", 50},
	{"australian", 58},
	{"japanese", 53},
	{"chinese", 56},
	{"miami", 57},
	{"imola", 63},
	{"emilia romagna", 63},
	{"monaco", 78},
	{"canadian", 70},
	{"spanish", 66},
	{"austrian", 71},
	{"british", 52},
	{"hungarian", 70},
	{"belgian", 44},
	{"dutch", 72},
	{"italian", 53},
	{"azerbaijan", 51},
	{"singapore", 62},
	{"united states", 56},
	{"mexico", 71},
	{"sao paulo", 71},
	{"las vegas", 50},
	{"qatar", 57},
	{"abu dhabi", 58},
}

// LapHint returns the hinted lap count for an event name.
func LapHint(eventName string) (int, bool) {
	key := strings.ToLower(eventName)
	for _, h := range lapHints {
		if strings.Contains(key, h.fragment) {
			return h.laps, true
		}
	}
	return 0, false
}

// RaceLaps resolves a race distance: explicit calendar laps, then a hint
// from the name or id, then fallback.
func RaceLaps(laps int, name, id string, fallback int) int {
	if laps > 0 {
		return laps
	}
	for _, s := range []string{name, id} {
		if n, ok := LapHint(s); ok {
			return n
		}
	}
	return fallback
}
