// Package same combines repeated SAME header receptions into one message.
//
// A transmitter sends each header three times. Each reception carries the
// decoded characters and a 0-3 confidence level per character; Average
// votes per position, weighting each vote by its confidence, and splits the
// winning text into its fixed fields.
package same

import (
	"errors"
	"fmt"
	"strings"
)

// Reception is one header repetition as read from the receiver.
type Reception struct {
	Symbols    string  `json:"symbols"`
	Confidence []uint8 `json:"confidence"`
}

// Message is a decoded header.
type Message struct {
	Raw        string   `json:"raw"`
	Originator string   `json:"originator"`
	Event      string   `json:"event"`
	Locations  []string `json:"locations"`
	// Purge is the HHMM valid period.
	Purge string `json:"purge"`
	// Issued is JJJHHMM, day of year and UTC time.
	Issued  string `json:"issued"`
	Station string `json:"station"`

	Confidence   []uint8 `json:"confidence"`
	Repetitions  int     `json:"repetitions"`
	MinConfident uint8   `json:"min_confidence"`
}

var (
	ErrNoRepetitions = errors.New("same: no repetitions")
	ErrMalformed     = errors.New("same: malformed header")
)

// Average votes the repetitions into one header and parses it.
func Average(reps []Reception) (Message, error) {
	if len(reps) == 0 {
		return Message{}, ErrNoRepetitions
	}
	text, conf := vote(reps)
	m, err := Parse(text)
	if err != nil {
		return Message{}, err
	}
	m.Confidence = conf
	m.Repetitions = len(reps)
	m.MinConfident = 3
	for _, c := range conf {
		m.MinConfident = min(m.MinConfident, c)
	}
	return m, nil
}

func vote(reps []Reception) (string, []uint8) {
	n := 0
	for _, r := range reps {
		n = max(n, len(r.Symbols))
	}
	out := make([]byte, n)
	conf := make([]uint8, n)

	type tally struct {
		ch    byte
		score int
		best  uint8
	}
	for i := 0; i < n; i++ {
		var cands []tally
		for _, r := range reps {
			if i >= len(r.Symbols) {
				continue
			}
			var c uint8
			if i < len(r.Confidence) {
				c = r.Confidence[i] & 0x3
			}
			ch := r.Symbols[i]
			found := false
			for k := range cands {
				if cands[k].ch == ch {
					cands[k].score += int(c) + 1
					cands[k].best = max(cands[k].best, c)
					found = true
					break
				}
			}
			if !found {
				cands = append(cands, tally{ch: ch, score: int(c) + 1, best: c})
			}
		}
		win := cands[0]
		for _, t := range cands[1:] {
			if t.score > win.score {
				win = t
			}
		}
		out[i], conf[i] = win.ch, win.best
	}
	return string(out), conf
}

// Parse splits a header of the form
// ZCZC-ORG-EEE-PSSCCC[-PSSCCC...]+TTTT-JJJHHMM-LLLLLLLL- into fields.
// The ZCZC prefix and the trailing dash are optional.
func Parse(raw string) (Message, error) {
	s := strings.TrimRight(raw, "\x00 \r\n")
	s = strings.TrimPrefix(s, "ZCZC")
	s = strings.TrimPrefix(s, "-")

	head, tail, ok := strings.Cut(s, "+")
	if !ok {
		return Message{}, fmt.Errorf("%w: no '+' in %q", ErrMalformed, raw)
	}
	hf := strings.Split(head, "-")
	if len(hf) < 3 {
		return Message{}, fmt.Errorf("%w: short header %q", ErrMalformed, raw)
	}
	m := Message{Raw: raw, Originator: hf[0], Event: hf[1], Locations: hf[2:]}
	if len(m.Originator) != 3 || !alpha(m.Originator) {
		return Message{}, fmt.Errorf("%w: originator %q", ErrMalformed, m.Originator)
	}
	if len(m.Event) != 3 || !alnum(m.Event) {
		return Message{}, fmt.Errorf("%w: event %q", ErrMalformed, m.Event)
	}
	for _, loc := range m.Locations {
		if len(loc) != 6 || !digits(loc) {
			return Message{}, fmt.Errorf("%w: location %q", ErrMalformed, loc)
		}
	}

	tf := strings.Split(strings.TrimSuffix(tail, "-"), "-")
	if len(tf) != 3 {
		return Message{}, fmt.Errorf("%w: trailer %q", ErrMalformed, tail)
	}
	m.Purge, m.Issued, m.Station = tf[0], tf[1], strings.TrimSpace(tf[2])
	if len(m.Purge) != 4 || !digits(m.Purge) {
		return Message{}, fmt.Errorf("%w: purge %q", ErrMalformed, m.Purge)
	}
	if len(m.Issued) != 7 || !digits(m.Issued) {
		return Message{}, fmt.Errorf("%w: issue time %q", ErrMalformed, m.Issued)
	}
	if m.Station == "" || len(m.Station) > 8 {
		return Message{}, fmt.Errorf("%w: station %q", ErrMalformed, m.Station)
	}
	return m, nil
}

// Header renders m back into its wire text.
func (m Message) Header() string {
	return "ZCZC-" + m.Originator + "-" + m.Event + "-" + strings.Join(m.Locations, "-") +
		"+" + m.Purge + "-" + m.Issued + "-" + m.Station + "-"
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func alpha(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

func alnum(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
