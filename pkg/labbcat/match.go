package labbcat

import (
	"fmt"
	"strconv"
	"strings"
)

// Match is one search result.
type Match struct {
	// MatchID encodes which token, in which utterance, by which participant,
	// in which transcript matched; see ParseMatchID.
	MatchID     string  `json:"MatchId"`
	Transcript  string  `json:"Transcript"`
	Participant string  `json:"Participant"`
	Corpus      string  `json:"Corpus"`
	Line        float64 `json:"Line"`
	LineEnd     float64 `json:"LineEnd"`
	BeforeMatch string  `json:"BeforeMatch"`
	Text        string  `json:"Text"`
	AfterMatch  string  `json:"AfterMatch"`
}

func (m *Match) String() string {
	return fmt.Sprintf("%s: [%s] %s [%s]", m.MatchID, m.BeforeMatch, m.Text, m.AfterMatch)
}

// MatchID is the parsed form of a match ID string such as
//
//	g_6;em_12_419;n_72700-n_72701;p_4;#=ew_0_8;prefix=001-
//
// Either the anchor IDs or the offsets of the utterance interval are set,
// depending on how the server encoded it.
type MatchID struct {
	GraphID       string
	StartAnchorID string
	EndAnchorID   string
	StartOffset   *float64
	EndOffset     *float64
	UtteranceID   string
	TargetID      string
	Prefix        string
}

// ParseMatchID parses a match ID string.
//
// The first ';'-separated part is the graph ID. The first later part that
// contains '-' after its first character is the utterance interval: a pair of
// anchor IDs if it starts with "n_", or a pair of offsets otherwise. Parts
// beginning "prefix=", "em_" or "m_", and "#=" give the prefix, utterance ID
// and target ID.
func ParseMatchID(s string) (*MatchID, error) {
	parts := strings.Split(s, ";")
	id := &MatchID{GraphID: parts[0]}

	interval := ""
	for _, part := range parts[1:] {
		if strings.Index(part, "-") > 0 {
			interval = part
			break
		}
	}
	if interval == "" {
		return nil, fmt.Errorf("invalid match ID %q: no interval", s)
	}

	bounds := strings.SplitN(interval, "-", 2)
	if strings.HasPrefix(bounds[0], "n_") {
		id.StartAnchorID = bounds[0]
		id.EndAnchorID = bounds[1]
	} else {
		start, err := strconv.ParseFloat(bounds[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid match ID %q: bad start offset: %w", s, err)
		}
		end, err := strconv.ParseFloat(bounds[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid match ID %q: bad end offset: %w", s, err)
		}
		id.StartOffset = &start
		id.EndOffset = &end
	}

	for _, part := range parts[1:] {
		switch {
		case strings.HasPrefix(part, "prefix="):
			id.Prefix = strings.TrimPrefix(part, "prefix=")
		case strings.HasPrefix(part, "em_"), strings.HasPrefix(part, "m_"):
			id.UtteranceID = part
		case strings.HasPrefix(part, "#="):
			id.TargetID = strings.TrimPrefix(part, "#=")
		}
	}

	return id, nil
}

// FragmentName returns a file name for the fragment of transcript between
// start and end: the transcript name without its extension, then
// "__start-end".
func FragmentName(transcript string, start, end float64) string {
	name := transcript
	if dot := strings.LastIndex(name, "."); dot > 0 {
		name = name[:dot]
	}
	return fmt.Sprintf("%s__%s-%s", name,
		strconv.FormatFloat(start, 'f', 3, 64), strconv.FormatFloat(end, 'f', 3, 64))
}
