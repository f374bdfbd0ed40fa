// Package timenorm converts heterogeneous timestamp and time-of-day inputs into
// canonical UTC instants and "HH:MM:SS" strings.
package timenorm

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Layouts carrying an explicit offset. Fractional seconds are accepted by
// time.Parse after the seconds field even when the layout omits them.
var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05Z07",
}

// Layouts without an offset, interpreted in the fallback zone.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	dateLayout,
}

func newErr(input any, reason string) error {
	return &errs.NormalizationError{Input: fmt.Sprint(input), Reason: reason}
}

// Instant returns input as a UTC instant. Inputs without an offset are read in
// fallback; a nil fallback makes such inputs an error.
func Instant(input any, fallback *time.Location) (time.Time, error) {
	switch v := input.(type) {
	case string:
		return parseInstant(v, fallback)
	case time.Time:
		if v.IsZero() {
			return time.Time{}, newErr(v, "zero time")
		}
		return v.UTC(), nil
	case *time.Time:
		if v == nil {
			return time.Time{}, newErr("<nil>", "missing timestamp")
		}
		return Instant(*v, fallback)
	case *timestamppb.Timestamp:
		if v == nil {
			return time.Time{}, newErr("<nil>", "missing timestamp")
		}
		if err := v.CheckValid(); err != nil {
			return time.Time{}, newErr(v, err.Error())
		}
		return v.AsTime().UTC(), nil
	case pgtype.Timestamptz:
		if !v.Valid || v.InfinityModifier != pgtype.Finite {
			return time.Time{}, newErr(v, "null or infinite timestamptz")
		}
		return v.Time.UTC(), nil
	case pgtype.Timestamp:
		if !v.Valid || v.InfinityModifier != pgtype.Finite {
			return time.Time{}, newErr(v, "null or infinite timestamp")
		}
		if fallback == nil {
			return time.Time{}, newErr(v, "timestamp without zone and no fallback zone")
		}
		return reinterpret(v.Time, fallback), nil
	case pgtype.Date:
		if !v.Valid || v.InfinityModifier != pgtype.Finite {
			return time.Time{}, newErr(v, "null or infinite date")
		}
		if fallback == nil {
			return time.Time{}, newErr(v, "date without zone and no fallback zone")
		}
		return DateOf(v.Time).At(0, fallback).UTC(), nil
	default:
		return time.Time{}, newErr(input, fmt.Sprintf("unsupported timestamp type %T", input))
	}
}

func parseInstant(raw string, fallback *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, newErr(raw, "empty timestamp")
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range localLayouts {
		if _, err := time.Parse(layout, s); err != nil {
			continue
		}
		if fallback == nil {
			return time.Time{}, newErr(raw, "timestamp has no offset and no fallback zone was given")
		}
		t, err := time.ParseInLocation(layout, s, fallback)
		if err != nil {
			return time.Time{}, newErr(raw, err.Error())
		}
		return t.UTC(), nil
	}
	if _, err := ParseClock(s); err == nil {
		return time.Time{}, newErr(raw, "time of day without a date")
	}
	return time.Time{}, newErr(raw, "unrecognized ISO-8601 timestamp")
}

// reinterpret reads t's wall clock as a wall clock in loc.
func reinterpret(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc).UTC()
}

// TimeOfDay returns input as canonical "HH:MM:SS".
func TimeOfDay(input any) (string, error) {
	c, err := ClockOf(input)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// ClockOf is TimeOfDay without the final formatting step.
func ClockOf(input any) (Clock, error) {
	switch v := input.(type) {
	case Clock:
		if v < 0 || v > EndOfDay {
			return 0, newErr(v, "time of day out of range")
		}
		return v, nil
	case string:
		if c, err := ParseClock(v); err == nil {
			return c, nil
		}
		s := strings.TrimSpace(v)
		for _, layout := range append(append([]string{}, offsetLayouts...), localLayouts[:4]...) {
			if t, err := time.Parse(layout, s); err == nil {
				return NewClock(t.Hour(), t.Minute(), t.Second()), nil
			}
		}
		return 0, newErr(v, "expected HH:MM or HH:MM:SS")
	case time.Time:
		return NewClock(v.Hour(), v.Minute(), v.Second()), nil
	case pgtype.Time:
		if !v.Valid {
			return 0, newErr(v, "null time")
		}
		// Postgres TIME allows 24:00:00.
		secs := v.Microseconds / int64(time.Second/time.Microsecond)
		if secs < 0 || secs > secondsPerDay {
			return 0, newErr(v, "time of day out of range")
		}
		return Clock(secs), nil
	default:
		return 0, newErr(input, fmt.Sprintf("unsupported time-of-day type %T", input))
	}
}

// Weekday returns the ISO day of week of instant in its own location (Monday=1).
func Weekday(instant time.Time) int {
	return isoWeekday(instant.Weekday())
}

// Format renders a UTC instant losslessly; Instant(Format(t), nil) == t.
func Format(instant time.Time) string {
	return instant.UTC().Format(time.RFC3339Nano)
}

// ToDisplayZone renders instant as RFC 3339 in the named zone.
func ToDisplayZone(instant time.Time, zone string) (string, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return "", err
	}
	return instant.In(loc).Format(time.RFC3339), nil
}

// LoadZone resolves an IANA zone name. An empty name is UTC.
func LoadZone(zone string) (*time.Location, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, newErr(zone, "unknown time zone")
	}
	return loc, nil
}

// FallbackZone picks the zone used for offset-less inputs: the zone supplied
// with the query, else the business zone, else UTC.
func FallbackZone(queryZone, businessZone string) (*time.Location, error) {
	for _, z := range []string{queryZone, businessZone} {
		if strings.TrimSpace(z) != "" {
			return LoadZone(z)
		}
	}
	return time.UTC, nil
}
