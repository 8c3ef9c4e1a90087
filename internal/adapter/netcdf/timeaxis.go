package netcdf

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Calendar is a CF calendar name.
type Calendar string

const (
	CalendarStandard Calendar = "standard"
	CalendarNoLeap   Calendar = "noleap"
	CalendarAllLeap  Calendar = "all_leap"
	Calendar360Day   Calendar = "360_day"
)

const secondsPerDay = 86400.0

var calendarAliases = map[string]Calendar{
	"":                    CalendarStandard,
	"standard":            CalendarStandard,
	"gregorian":           CalendarStandard,
	"proleptic_gregorian": CalendarStandard,
	"noleap":              CalendarNoLeap,
	"365_day":             CalendarNoLeap,
	"all_leap":            CalendarAllLeap,
	"366_day":             CalendarAllLeap,
	"360_day":             Calendar360Day,
}

var unitSeconds = map[string]float64{
	"second": 1, "seconds": 1, "sec": 1, "secs": 1, "s": 1,
	"minute": 60, "minutes": 60, "min": 60, "mins": 60,
	"hour": 3600, "hours": 3600, "hr": 3600, "hrs": 3600, "h": 3600,
	"day": secondsPerDay, "days": secondsPerDay, "d": secondsPerDay,
}

var (
	noLeapOffsets  = [12]int64{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}
	allLeapOffsets = [12]int64{0, 31, 60, 91, 121, 152, 182, 213, 244, 274, 305, 335}
)

// civil is a calendar date plus seconds into the day, independent of Go's
// Gregorian time.Time.
type civil struct {
	year  int
	month time.Month
	day   int
	secs  float64
}

// TimeAxis decodes and encodes CF "<unit> since <epoch>" time coordinates.
type TimeAxis struct {
	unit     string
	seconds  float64
	epoch    civil
	calendar Calendar
}

// ParseTimeAxis reads a CF units string and calendar attribute.
func ParseTimeAxis(units, calendar string) (TimeAxis, error) {
	cal, ok := calendarAliases[strings.ToLower(strings.TrimSpace(calendar))]
	if !ok {
		return TimeAxis{}, fmt.Errorf("unsupported calendar %q", calendar)
	}
	unit, since, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return TimeAxis{}, fmt.Errorf("time units %q: want \"<unit> since <epoch>\"", units)
	}
	secs, ok := unitSeconds[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return TimeAxis{}, fmt.Errorf("time units %q: unsupported unit %q", units, unit)
	}
	epoch, err := parseEpoch(since)
	if err != nil {
		return TimeAxis{}, fmt.Errorf("time units %q: %w", units, err)
	}
	return TimeAxis{unit: strings.ToLower(strings.TrimSpace(unit)), seconds: secs, epoch: epoch, calendar: cal}, nil
}

// MustTimeAxis is ParseTimeAxis for constant inputs.
func MustTimeAxis(units, calendar string) TimeAxis {
	a, err := ParseTimeAxis(units, calendar)
	if err != nil {
		panic(err)
	}
	return a
}

// Units renders the axis back into CF form.
func (a TimeAxis) Units() string {
	e := a.epoch
	whole := int(e.secs)
	return fmt.Sprintf("%s since %04d-%02d-%02d %02d:%02d:%02d",
		a.unit, e.year, int(e.month), e.day, whole/3600, whole%3600/60, whole%60)
}

// Calendar returns the canonical calendar name.
func (a TimeAxis) Calendar() Calendar { return a.calendar }

// Decode converts an offset into a UTC time. Dates that do not exist in the
// Gregorian calendar (30 February in 360_day) are clipped to the month end.
func (a TimeAxis) Decode(v float64) time.Time {
	total := v*a.seconds + a.epoch.secs
	days := math.Floor(total / secondsPerDay)
	rem := math.Round((total-days*secondsPerDay)*1e3) / 1e3
	if rem >= secondsPerDay {
		days++
		rem -= secondsPerDay
	}
	n := a.dayNumber(a.epoch.year, a.epoch.month, a.epoch.day) + int64(days)
	y, m, d := a.fromDayNumber(n)
	if last := daysInMonth(y, m); d > last {
		d = last
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(time.Duration(rem * float64(time.Second)))
}

// Encode converts a time into an offset on the axis.
func (a TimeAxis) Encode(t time.Time) float64 {
	t = t.UTC()
	n := a.dayNumber(t.Year(), t.Month(), t.Day()) - a.dayNumber(a.epoch.year, a.epoch.month, a.epoch.day)
	secs := float64(t.Hour()*3600+t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9
	return (float64(n)*secondsPerDay + secs - a.epoch.secs) / a.seconds
}

func (a TimeAxis) dayNumber(y int, m time.Month, d int) int64 {
	switch a.calendar {
	case CalendarNoLeap:
		return int64(y)*365 + noLeapOffsets[m-1] + int64(d-1)
	case CalendarAllLeap:
		return int64(y)*366 + allLeapOffsets[m-1] + int64(d-1)
	case Calendar360Day:
		return int64(y)*360 + int64(m-1)*30 + int64(d-1)
	default:
		return floorDiv(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix(), int64(secondsPerDay))
	}
}

func (a TimeAxis) fromDayNumber(n int64) (int, time.Month, int) {
	switch a.calendar {
	case CalendarNoLeap:
		return fromOffsets(n, 365, noLeapOffsets)
	case CalendarAllLeap:
		return fromOffsets(n, 366, allLeapOffsets)
	case Calendar360Day:
		y := floorDiv(n, 360)
		r := n - y*360
		return int(y), time.Month(r/30 + 1), int(r%30 + 1)
	default:
		return time.Unix(n*int64(secondsPerDay), 0).UTC().Date()
	}
}

func fromOffsets(n, yearLen int64, offsets [12]int64) (int, time.Month, int) {
	y := floorDiv(n, yearLen)
	r := n - y*yearLen
	m := 11
	for m > 0 && offsets[m] > r {
		m--
	}
	return int(y), time.Month(m + 1), int(r-offsets[m]) + 1
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func daysInMonth(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// parseEpoch accepts "Y-M-D", "Y-M-D h:m", "Y-M-D h:m:s[.f]" with an
// optional "T" separator and "Z" or " UTC" suffix.
func parseEpoch(s string) (civil, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "Z")
	s = strings.TrimSpace(strings.TrimSuffix(s, "UTC"))
	datePart, clockPart, _ := strings.Cut(strings.Replace(s, "T", " ", 1), " ")

	var c civil
	var month int
	if _, err := fmt.Sscanf(datePart, "%d-%d-%d", &c.year, &month, &c.day); err != nil {
		return civil{}, fmt.Errorf("parse epoch date %q: %w", datePart, err)
	}
	if month < 1 || month > 12 || c.day < 1 || c.day > 31 {
		return civil{}, fmt.Errorf("parse epoch date %q: out of range", datePart)
	}
	c.month = time.Month(month)

	clockPart = strings.TrimSpace(clockPart)
	if clockPart == "" {
		return c, nil
	}
	fields := strings.Split(clockPart, ":")
	if len(fields) < 2 || len(fields) > 3 {
		return civil{}, fmt.Errorf("parse epoch time %q", clockPart)
	}
	var h, m int
	var sec float64
	if _, err := fmt.Sscanf(fields[0], "%d", &h); err != nil {
		return civil{}, fmt.Errorf("parse epoch hour %q: %w", fields[0], err)
	}
	if _, err := fmt.Sscanf(fields[1], "%d", &m); err != nil {
		return civil{}, fmt.Errorf("parse epoch minute %q: %w", fields[1], err)
	}
	if len(fields) == 3 {
		if _, err := fmt.Sscanf(fields[2], "%g", &sec); err != nil {
			return civil{}, fmt.Errorf("parse epoch second %q: %w", fields[2], err)
		}
	}
	c.secs = float64(h*3600+m*60) + sec
	return c, nil
}
