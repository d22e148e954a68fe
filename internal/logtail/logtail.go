package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Entry is one record written by slog's text handler.
type Entry struct {
	Time  string
	Level slog.Level
	Msg   string
	Attrs string
	Raw   string
}

// Parse splits a text-handler line into its leading fields. Lines that do
// not look like slog output come back with Msg set to the whole line and
// level INFO.
func Parse(line string) Entry {
	e := Entry{Raw: line, Level: slog.LevelInfo, Msg: line}
	rest := line

	if v, tail, ok := field(rest, "time"); ok {
		e.Time = v
		rest = tail
	}
	v, tail, ok := field(rest, "level")
	if !ok {
		return e
	}
	if err := e.Level.UnmarshalText([]byte(v)); err != nil {
		e.Level = slog.LevelInfo
	}
	rest = tail
	if v, tail, ok := field(rest, "msg"); ok {
		e.Msg = v
		rest = tail
	} else {
		e.Msg = ""
	}
	e.Attrs = rest
	return e
}

// Filter keeps lines at or above min whose text contains query
// (case-insensitive). An empty query matches everything.
func Filter(lines []string, min slog.Level, query string) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		e := Parse(line)
		if e.Level < min {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(line), q) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// field reads `key=value` from the front of s. Quoted values are unquoted.
func field(s, key string) (value, rest string, ok bool) {
	s = strings.TrimLeft(s, " ")
	prefix := key + "="
	if !strings.HasPrefix(s, prefix) {
		return "", s, false
	}
	s = s[len(prefix):]
	if strings.HasPrefix(s, `"`) {
		end := closingQuote(s)
		if end < 0 {
			return s, "", true
		}
		quoted := s[:end+1]
		unq, err := strconv.Unquote(quoted)
		if err != nil {
			unq = quoted
		}
		return unq, strings.TrimLeft(s[end+1:], " "), true
	}
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i], strings.TrimLeft(s[i+1:], " "), true
	}
	return s, "", true
}

func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}
