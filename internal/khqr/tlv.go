package khqr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type field struct {
	tag   string
	value string
}

// writeTLV appends tag, two digit length and value. Empty values are skipped.
func writeTLV(b *strings.Builder, tag, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s%02d%s", tag, utf8.RuneCountInString(value), value)
}

func encodeTemplate(fields ...field) string {
	var b strings.Builder
	for _, f := range fields {
		writeTLV(&b, f.tag, f.value)
	}
	return b.String()
}

// parseTLV splits s into ordered tag/value pairs. Lengths count runes.
func parseTLV(s string) ([]field, error) {
	runes := []rune(s)
	var out []field
	for i := 0; i < len(runes); {
		if i+4 > len(runes) {
			return nil, fmt.Errorf("%w: truncated header at %d", ErrInvalidPayload, i)
		}
		tag := string(runes[i : i+2])
		n, err := strconv.Atoi(string(runes[i+2 : i+4]))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad length for tag %s", ErrInvalidPayload, tag)
		}
		start := i + 4
		end := start + n
		if end > len(runes) {
			return nil, fmt.Errorf("%w: tag %s overruns payload", ErrInvalidPayload, tag)
		}
		out = append(out, field{tag: tag, value: string(runes[start:end])})
		i = end
	}
	return out, nil
}

func toMap(fields []field) map[string]string {
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		m[f.tag] = f.value
	}
	return m
}
