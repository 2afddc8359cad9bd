package labbcat

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Search starts a search task for pattern and returns its thread ID. The
// results can be fetched with Matches once the task has finished, and the
// task should then be released with ReleaseTask.
func (c *Client) Search(ctx context.Context, pattern *Pattern, opts ...SearchOption) (string, error) {
	if pattern == nil {
		return "", ErrNoPattern
	}

	o := &searchOptions{}
	for _, opt := range opts {
		opt(o)
	}

	params := url.Values{
		"command":       {"search"},
		"searchJson":    {pattern.String()},
		"words_context": {"0"},
	}
	if o.mainParticipantOnly {
		params.Set("only_main_speaker", "true")
	}
	if o.alignedWordsOnly {
		params.Set("only_aligned", "true")
	}
	if o.matchesPerTranscript != nil {
		params.Set("matches_per_transcript", strconv.Itoa(*o.matchesPerTranscript))
	}
	if len(o.participantIDs) > 0 {
		params["participant_id"] = o.participantIDs
	}
	if len(o.transcriptTypes) > 0 {
		params["transcript_type"] = o.transcriptTypes
	}
	if o.overlapThreshold != nil {
		params.Set("overlap_threshold", strconv.Itoa(*o.overlapThreshold))
	}

	var model struct {
		ThreadID flexString `json:"threadId"`
	}
	if err := c.get(ctx, "search", params, "search", &model); err != nil {
		return "", err
	}
	return string(model.ThreadID), nil
}

// Matches waits for a search task to finish, then returns its matches.
// wordsContext is the number of words of context to include before and after
// each match. A nil page returns all matches.
func (c *Client) Matches(ctx context.Context, threadID string, wordsContext int, page *Page) ([]*Match, error) {
	if _, err := c.WaitForTask(ctx, threadID, 0); err != nil {
		return nil, err
	}

	params := pageParams(url.Values{
		"threadId":      {threadID},
		"words_context": {strconv.Itoa(wordsContext)},
	}, page)

	var model struct {
		Matches []*Match `json:"matches"`
	}
	if err := c.get(ctx, "resultsStream", params, "get matches", &model); err != nil {
		return nil, err
	}
	return model.Matches, nil
}

// SearchMatches runs a search, waits for it, returns up to maxMatches of its
// matches (all of them if maxMatches is zero), and releases the task.
func (c *Client) SearchMatches(ctx context.Context, pattern *Pattern, wordsContext, maxMatches int, opts ...SearchOption) ([]*Match, error) {
	threadID, err := c.Search(ctx, pattern, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		// release even if ctx was cancelled mid-search
		if err := c.ReleaseTask(context.WithoutCancel(ctx), threadID); err != nil {
			c.logger.Warn().Err(err).Str("threadId", threadID).Msg("failed to release search task")
		}
	}()

	var page *Page
	if maxMatches > 0 {
		page = &Page{Length: maxMatches, Number: 0}
	}
	return c.Matches(ctx, threadID, wordsContext, page)
}

// MatchAnnotations returns annotations on the given layers for each match.
//
// The result has one row per match ID. Each row has annotationsPerLayer
// entries for each layer, in layer order; an entry is nil where the match has
// fewer annotations on that layer. targetOffset selects the token relative to
// the match target: 0 for the target itself, 1 for the following token, -1
// for the preceding one.
func (c *Client) MatchAnnotations(ctx context.Context, matchIDs, layerIDs []string, targetOffset, annotationsPerLayer int) ([][]*Annotation, error) {
	var csv strings.Builder
	csv.WriteString("MatchId\n")
	for _, id := range matchIDs {
		csv.WriteString(id)
		csv.WriteByte('\n')
	}

	form := newMultipartForm().
		setAll("layer", layerIDs).
		set("targetOffset", strconv.Itoa(targetOffset)).
		set("annotationsPerLayer", strconv.Itoa(annotationsPerLayer)).
		set("csvFieldDelimiter", ",").
		set("targetColumn", "0").
		set("copyColumns", "false").
		content("uploadfile", "matchIds.csv", []byte(csv.String()))

	req, err := c.newMultipartRequest(ctx, "api/getMatchAnnotations", form)
	if err != nil {
		return nil, err
	}

	var rows [][]*Annotation
	if _, err := c.call(req, "get match annotations", &rows); err != nil {
		return nil, err
	}

	perMatch := len(layerIDs) * annotationsPerLayer
	result := make([][]*Annotation, len(matchIDs))
	for m := range result {
		result[m] = make([]*Annotation, perMatch)
		if m >= len(rows) {
			continue
		}
		copy(result[m], rows[m])
	}
	if len(rows) != len(matchIDs) {
		return result, fmt.Errorf("get match annotations: expected %d rows, got %d", len(matchIDs), len(rows))
	}
	return result, nil
}
