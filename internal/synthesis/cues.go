package synthesis

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// cueTiming matches SRT ("00:00:01,250 --> 00:00:02,000") and WebVTT
// ("00:01.250 --> 00:02.000") timing lines.
var cueTiming = regexp.MustCompile(`^((?:\d+:)?\d{1,2}:\d{2}[.,]\d{1,3})\s*-->\s*((?:\d+:)?\d{1,2}:\d{2}[.,]\d{1,3})`)

// ParseCues reads SRT or WebVTT subtitles into boundary events. Cue
// numbers, headers and styling blocks are ignored; multi-line cue text is
// joined with spaces.
func ParseCues(r io.Reader) ([]BoundaryEvent, error) {
	var events []BoundaryEvent
	var cur *BoundaryEvent
	var text []string

	flush := func() {
		if cur != nil {
			cur.Text = strings.Join(text, " ")
			events = append(events, *cur)
		}
		cur, text = nil, nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if m := cueTiming.FindStringSubmatch(line); m != nil {
			flush()
			start, err := parseTimestamp(m[1])
			if err != nil {
				return nil, err
			}
			end, err := parseTimestamp(m[2])
			if err != nil {
				return nil, err
			}
			if end < start {
				end = start
			}
			cur = &BoundaryEvent{Offset: start, Duration: end - start}
			continue
		}
		if line == "" {
			flush()
			continue
		}
		if cur != nil {
			text = append(text, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read subtitles: %w", err)
	}
	flush()
	return events, nil
}

// parseTimestamp converts "[hh:]mm:ss(.|,)fff" into ticks.
func parseTimestamp(s string) (int64, error) {
	s = strings.Replace(s, ",", ".", 1)
	parts := strings.Split(s, ":")

	var hours, minutes int64
	var err error
	switch len(parts) {
	case 3:
		if hours, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
			return 0, fmt.Errorf("bad timestamp %q", s)
		}
		parts = parts[1:]
		fallthrough
	case 2:
		if minutes, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
			return 0, fmt.Errorf("bad timestamp %q", s)
		}
	default:
		return 0, fmt.Errorf("bad timestamp %q", s)
	}

	secParts := strings.SplitN(parts[len(parts)-1], ".", 2)
	secs, err := strconv.ParseInt(secParts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad timestamp %q", s)
	}
	var millis int64
	if len(secParts) == 2 {
		frac := (secParts[1] + "000")[:3]
		if millis, err = strconv.ParseInt(frac, 10, 64); err != nil {
			return 0, fmt.Errorf("bad timestamp %q", s)
		}
	}

	totalMillis := ((hours*60+minutes)*60+secs)*1000 + millis
	return totalMillis * (TicksPerSecond / 1000), nil
}
