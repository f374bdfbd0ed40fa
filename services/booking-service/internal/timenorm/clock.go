package timenorm

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock is a time of day as seconds since midnight, 0 <= c <= EndOfDay.
// EndOfDay only closes a window: it is the following midnight.
type Clock int

const secondsPerDay = 24 * 60 * 60

// EndOfDay is "24:00", the closing time of a window that runs to midnight.
const EndOfDay = Clock(secondsPerDay)

func NewClock(hour, minute, second int) Clock {
	return Clock(hour*3600 + minute*60 + second)
}

// ParseClock parses "HH:MM" or "HH:MM:SS". "24:00" and "24:00:00" parse
// as EndOfDay.
func ParseClock(s string) (Clock, error) {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, newErr(s, "expected HH:MM or HH:MM:SS")
	}
	limits := []int{24, 59, 59}
	var vals [3]int
	for i, p := range parts {
		if len(p) == 0 || len(p) > 2 || strings.Trim(p, "0123456789") != "" {
			return 0, newErr(s, "expected HH:MM or HH:MM:SS")
		}
		n, err := strconv.Atoi(p)
		if err != nil || n > limits[i] {
			return 0, newErr(s, "time of day out of range")
		}
		vals[i] = n
	}
	c := NewClock(vals[0], vals[1], vals[2])
	if c > EndOfDay {
		return 0, newErr(s, "time of day out of range")
	}
	return c, nil
}

func (c Clock) parts() (int, int, int) {
	return int(c) / 3600, int(c) % 3600 / 60, int(c) % 60
}

func (c Clock) String() string {
	h, m, s := c.parts()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
