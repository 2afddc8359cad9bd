package labbcat

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SoundFragments downloads WAV audio for each interval of each transcript
// and returns the paths of the files written, in order. An interval the
// server has no audio for is skipped, and its path is "".
//
// sampleRate resamples the audio if greater than zero. If dir is "", a new
// temporary directory is created.
func (c *Client) SoundFragments(ctx context.Context, transcriptIDs []string, starts, ends []float64, sampleRate int, dir string) ([]string, error) {
	return c.fetchFragments(ctx, "get sound fragments", transcriptIDs, starts, ends, dir,
		func(i int) (*http.Request, error) {
			params := url.Values{
				"id":    {transcriptIDs[i]},
				"start": {formatOffset(starts[i])},
				"end":   {formatOffset(ends[i])},
			}
			if sampleRate > 0 {
				params.Set("sampleRate", strconv.Itoa(sampleRate))
			}
			req, err := c.newRequest(ctx, http.MethodGet, "soundfragment", params, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", "audio/wav")
			return req, nil
		},
		".wav")
}

// SoundFragmentsForMatches downloads the audio of the utterance of each match.
func (c *Client) SoundFragmentsForMatches(ctx context.Context, matches []*Match, sampleRate int, dir string) ([]string, error) {
	ids, starts, ends := matchIntervals(matches)
	return c.SoundFragments(ctx, ids, starts, ends, sampleRate, dir)
}

// Fragments exports each interval of each transcript in the given format
// (e.g. "text/praat-textgrid"), including the given layers, and returns the
// paths of the files written. Paths are "" where the server had nothing to
// export.
func (c *Client) Fragments(ctx context.Context, transcriptIDs []string, starts, ends []float64, layerIDs []string, mimeType, dir string) ([]string, error) {
	return c.fetchFragments(ctx, "get fragments", transcriptIDs, starts, ends, dir,
		func(i int) (*http.Request, error) {
			params := url.Values{
				"id":       {transcriptIDs[i]},
				"start":    {formatOffset(starts[i])},
				"end":      {formatOffset(ends[i])},
				"mimeType": {mimeType},
				"layerId":  layerIDs,
			}
			req, err := c.newRequest(ctx, http.MethodGet, "api/serialize/fragment", params, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", mimeType)
			return req, nil
		},
		"")
}

// FragmentsForMatches exports the utterance of each match.
func (c *Client) FragmentsForMatches(ctx context.Context, matches []*Match, layerIDs []string, mimeType, dir string) ([]string, error) {
	ids, starts, ends := matchIntervals(matches)
	return c.Fragments(ctx, ids, starts, ends, layerIDs, mimeType, dir)
}

func matchIntervals(matches []*Match) (ids []string, starts, ends []float64) {
	for _, m := range matches {
		ids = append(ids, m.Transcript)
		starts = append(starts, m.Line)
		ends = append(ends, m.LineEnd)
	}
	return ids, starts, ends
}

// fetchFragments downloads one file per interval into dir.
func (c *Client) fetchFragments(
	ctx context.Context, op string, ids []string, starts, ends []float64, dir string,
	newRequest func(i int) (*http.Request, error), suffix string,
) ([]string, error) {
	if len(ids) != len(starts) || len(ids) != len(ends) {
		return nil, &LengthMismatchError{IDs: len(ids), Starts: len(starts), Ends: len(ends)}
	}

	dir, err := fragmentDir(dir)
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(ids))
	for i := range ids {
		if err := ctx.Err(); err != nil {
			return paths, err
		}

		req, err := newRequest(i)
		if err != nil {
			return paths, err
		}
		resp, err := c.do(req)
		if err != nil {
			return paths, wrapTransportError(op, err)
		}

		if resp.StatusCode != http.StatusOK {
			if resp.StatusCode != http.StatusNotFound {
				c.logger.Warn().
					Int("status", resp.StatusCode).
					Str("url", req.URL.String()).
					Msg(op + ": skipping fragment")
			}
			resp.Body.Close()
			continue
		}

		name := contentDispositionName(resp.Header.Get("Content-Disposition"))
		if name == "" {
			name = FragmentName(ids[i], starts[i], ends[i]) + suffix
		}
		path := filepath.Join(dir, name)
		err = saveBody(resp.Body, path)
		resp.Body.Close()
		if err != nil {
			return paths, fmt.Errorf("%s failed: %w", op, err)
		}
		paths[i] = path
	}

	return paths, nil
}

func fragmentDir(dir string) (string, error) {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "labbcat-fragments-")
		if err != nil {
			return "", fmt.Errorf("failed to create fragment directory: %w", err)
		}
		return tmp, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create fragment directory: %w", err)
	}
	return dir, nil
}

// contentDispositionName returns the file name suggested by a
// Content-Disposition header such as `attachment; filename=blah.wav`.
func contentDispositionName(header string) string {
	if header == "" {
		return ""
	}
	name := ""
	if _, params, err := mime.ParseMediaType(header); err == nil {
		name = params["filename"]
	}
	if name == "" {
		if eq := strings.Index(header, "="); eq > 0 {
			name = strings.Trim(header[eq+1:], `"' `)
		}
	}
	if name == "" {
		return ""
	}
	name = filepath.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func saveBody(body io.Reader, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// TranscriptAttributes writes a CSV of the given transcript attributes
// (e.g. "transcript_language") of the given transcripts to w.
func (c *Client) TranscriptAttributes(ctx context.Context, transcriptIDs, layerIDs []string, w io.Writer) error {
	params := url.Values{
		"layer": append([]string{"transcript"}, layerIDs...),
		"id":    transcriptIDs,
	}
	req, err := c.newFormRequest(ctx, http.MethodPost, "api/attributes", params)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/csv")

	return c.copyTo(req, "get transcript attributes", w)
}

// ParticipantAttributes writes a CSV of the given participant attributes
// (e.g. "participant_gender") of the given participants to w.
func (c *Client) ParticipantAttributes(ctx context.Context, participantIDs, layerIDs []string, w io.Writer) error {
	params := url.Values{
		"type":              {"participant"},
		"content-type":      {"text/csv"},
		"csvFieldDelimiter": {","},
		"participantId":     participantIDs,
		"layer":             layerIDs,
	}
	req, err := c.newFormRequest(ctx, http.MethodPost, "participants", params)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/csv")

	return c.copyTo(req, "get participant attributes", w)
}

// copyTo sends req and copies a successful response body to w.
func (c *Client) copyTo(req *http.Request, op string, w io.Writer) error {
	resp, err := c.open(req, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	return nil
}
