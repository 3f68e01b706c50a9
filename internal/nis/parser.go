package nis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Accumulator collects field values for a single fetch cycle. It is never
// shared with readers; a finished cycle copies it into a Snapshot.
type Accumulator struct {
	values  [NumFields]int
	present FieldSet
}

func (a *Accumulator) set(f StatusField, v int) {
	a.values[f] = v
	a.present = a.present.Add(f)
}

// Present returns the fields seen so far.
func (a *Accumulator) Present() FieldSet { return a.present }

// Value returns the last value recorded for f.
func (a *Accumulator) Value(f StatusField) int { return a.values[f] }

// LineParser applies reply lines to an Accumulator using the field table.
type LineParser struct {
	logger *logrus.Logger
}

// NewLineParser creates a parser that reports skipped lines on logger.
func NewLineParser(logger *logrus.Logger) *LineParser {
	return &LineParser{logger: logger}
}

// ApplyLine updates acc from one reply line. Lines it cannot use are logged
// and skipped; it never fails the cycle.
func (p *LineParser) ApplyLine(line string, acc *Accumulator) {
	tokens := tokenize(line)
	if len(tokens) < 2 {
		p.logger.WithField("line", line).Debug("nis: skipping short line")
		return
	}

	desc, ok := lookupLabel(tokens[0])
	if !ok {
		return
	}

	switch desc.Kind {
	case Numeric:
		v, err := parseLeadingInt(tokens[1])
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"label": desc.Label,
				"value": tokens[1],
			}).WithError(err).Warn("nis: could not parse field as integer")
			return
		}
		acc.set(desc.Field, v)
	case SubstringPresence:
		v := 0
		for _, tok := range tokens[1:] {
			if strings.Contains(tok, desc.SearchToken) {
				v = 1
				break
			}
		}
		acc.set(desc.Field, v)
	}
}

// tokenize splits on ':' and ' ', dropping empty tokens and everything past
// MaxTokens.
func tokenize(line string) []string {
	tokens := make([]string, 0, MaxTokens)
	start := -1
	for i := 0; i <= len(line); i++ {
		if i < len(line) && line[i] != ':' && line[i] != ' ' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, line[start:i])
			start = -1
			if len(tokens) == MaxTokens {
				break
			}
		}
	}
	return tokens
}

// parseLeadingInt reads an optionally signed run of decimal digits from the
// start of s and ignores the rest, so "230.0" yields 230.
func parseLeadingInt(s string) (int, error) {
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, fmt.Errorf("no digits in %q", s)
	}
	return strconv.Atoi(s[:end])
}
