package utils

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kerbaras/mangas-dl/pkg/data"
)

type span struct {
	from, to int
}

// ChaptersRange is a set of one-based chapter positions. The zero value selects
// every chapter.
type ChaptersRange struct {
	spans []span
}

// ParseChaptersRange accepts "1-4,8,11", space separated numbers, "all" or an
// empty string.
func ParseChaptersRange(s string) (ChaptersRange, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return ChaptersRange{}, nil
	}

	var r ChaptersRange
	parts := strings.FieldsFunc(s, func(c rune) bool { return c == ',' || c == ' ' })
	for _, part := range parts {
		from, to, isSpan := strings.Cut(part, "-")
		a, err := parsePosition(from)
		if err != nil {
			return ChaptersRange{}, fmt.Errorf("%w: chapters range %q: %w", data.ErrInvalidArgument, s, err)
		}
		b := a
		if isSpan {
			if b, err = parsePosition(to); err != nil {
				return ChaptersRange{}, fmt.Errorf("%w: chapters range %q: %w", data.ErrInvalidArgument, s, err)
			}
			if b < a {
				return ChaptersRange{}, fmt.Errorf("%w: chapters range %q: %d-%d is reversed", data.ErrInvalidArgument, s, a, b)
			}
		}
		r.spans = append(r.spans, span{from: a, to: b})
	}
	sort.Slice(r.spans, func(i, j int) bool { return r.spans[i].from < r.spans[j].from })
	return r, nil
}

func parsePosition(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("chapter %d must be positive", n)
	}
	return n, nil
}

func (r ChaptersRange) IsAll() bool {
	return len(r.spans) == 0
}

// Contains reports whether the chapter at the zero-based index is selected.
func (r ChaptersRange) Contains(index int) bool {
	if r.IsAll() {
		return true
	}
	pos := index + 1
	for _, s := range r.spans {
		if pos >= s.from && pos <= s.to {
			return true
		}
	}
	return false
}

// Size counts the selected chapters of a list of total chapters.
func (r ChaptersRange) Size(total int) int {
	n := 0
	for i := 0; i < total; i++ {
		if r.Contains(i) {
			n++
		}
	}
	return n
}

func (r ChaptersRange) String() string {
	if r.IsAll() {
		return "all"
	}
	parts := make([]string, len(r.spans))
	for i, s := range r.spans {
		if s.from == s.to {
			parts[i] = strconv.Itoa(s.from)
		} else {
			parts[i] = fmt.Sprintf("%d-%d", s.from, s.to)
		}
	}
	return strings.Join(parts, ",")
}
