package labbcat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// CreateAnnotation adds an annotation to a transcript and returns its ID.
func (c *Client) CreateAnnotation(ctx context.Context, transcriptID, fromID, toID, layerID, label string, confidence int, parentID string) (string, error) {
	params := url.Values{
		"id":         {transcriptID},
		"fromId":     {fromID},
		"toId":       {toID},
		"layerId":    {layerID},
		"label":      {label},
		"confidence": {strconv.Itoa(confidence)},
		"parentId":   {parentID},
	}
	var id flexString
	if err := c.postForm(ctx, editStorePath("createAnnotation"), params, "create annotation", &id); err != nil {
		return "", err
	}
	return string(id), nil
}

// TagMatchingAnnotations adds a tag with the given label to every annotation
// matching a query expression, and returns how many were tagged.
func (c *Client) TagMatchingAnnotations(ctx context.Context, expression, layerID, label string, confidence int) (int, error) {
	params := url.Values{
		"expression": {expression},
		"layerId":    {layerID},
		"label":      {label},
		"confidence": {strconv.Itoa(confidence)},
	}
	var n int
	if err := c.postForm(ctx, editStorePath("tagMatchingAnnotations"), params, "tag matching annotations", &n); err != nil {
		return 0, err
	}
	return n, nil
}

// DestroyAnnotation deletes an annotation from a transcript.
func (c *Client) DestroyAnnotation(ctx context.Context, transcriptID, annotationID string) error {
	params := url.Values{"id": {transcriptID}, "annotationId": {annotationID}}
	return c.postForm(ctx, editStorePath("destroyAnnotation"), params, "destroy annotation", nil)
}

// DeleteMatchingAnnotations deletes every annotation matching a query
// expression, and returns how many were deleted.
func (c *Client) DeleteMatchingAnnotations(ctx context.Context, expression string) (int, error) {
	params := url.Values{"expression": {expression}}
	var n int
	if err := c.postForm(ctx, editStorePath("deleteMatchingAnnotations"), params, "delete matching annotations", &n); err != nil {
		return 0, err
	}
	return n, nil
}

// SaveParticipant creates or updates a participant. Attributes are taken from
// the participant's child annotations, keyed by attribute layer ID. It
// returns true if the participant was changed.
func (c *Client) SaveParticipant(ctx context.Context, participant *Annotation) (bool, error) {
	params := url.Values{"id": {participant.ID}, "label": {participant.Label}}
	for layerID, attributes := range participant.Annotations {
		for _, attribute := range attributes {
			params.Add(layerID, attribute.Label)
		}
	}
	var changed bool
	if err := c.postForm(ctx, editStorePath("saveParticipant"), params, "save participant", &changed); err != nil {
		return false, err
	}
	return changed, nil
}

// DeleteTranscript deletes a transcript and all its media and annotations.
func (c *Client) DeleteTranscript(ctx context.Context, id string) error {
	return c.postForm(ctx, editStorePath("deleteTranscript"), url.Values{"id": {id}}, "delete transcript", nil)
}

// DeleteParticipant deletes a participant record.
func (c *Client) DeleteParticipant(ctx context.Context, id string) error {
	return c.postForm(ctx, editStorePath("deleteParticipant"), url.Values{"id": {id}}, "delete participant", nil)
}

// DeleteMedia deletes one media file or episode document of a transcript.
func (c *Client) DeleteMedia(ctx context.Context, transcriptID, fileName string) error {
	params := url.Values{"id": {transcriptID}, "fileName": {fileName}}
	return c.postForm(ctx, editStorePath("deleteMedia"), params, "delete media", nil)
}

// SaveMedia uploads a media file for a transcript's track. mediaURL may be a
// local path, a file: URL, or a remote URL that is downloaded first.
func (c *Client) SaveMedia(ctx context.Context, transcriptID, mediaURL, trackSuffix string) (*MediaFile, error) {
	local, cleanup, err := c.localCopy(ctx, mediaURL)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	form := newMultipartForm().
		set("id", transcriptID).
		set("trackSuffix", trackSuffix).
		file("media", local)

	return c.uploadMediaFile(ctx, editStorePath("saveMedia"), form, "save media")
}

// SaveEpisodeDocument attaches a document to a transcript's episode. url may
// be a local path, a file: URL, or a remote URL that is downloaded first.
func (c *Client) SaveEpisodeDocument(ctx context.Context, transcriptID, documentURL string) (*MediaFile, error) {
	local, cleanup, err := c.localCopy(ctx, documentURL)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	form := newMultipartForm().
		set("id", transcriptID).
		file("document", local)

	return c.uploadMediaFile(ctx, editStorePath("saveEpisodeDocument"), form, "save episode document")
}

func (c *Client) uploadMediaFile(ctx context.Context, resource string, form *multipartForm, op string) (*MediaFile, error) {
	req, err := c.newMultipartRequest(ctx, resource, form)
	if err != nil {
		return nil, err
	}
	var file MediaFile
	resp, err := c.call(req, op, &file)
	if err != nil {
		return nil, err
	}
	if resp.IsModelNull() {
		return nil, nil
	}
	return &file, nil
}

// localCopy resolves a file location to a local path, downloading remote
// URLs into a temporary file that cleanup removes.
func (c *Client) localCopy(ctx context.Context, location string) (string, func(), error) {
	noop := func() {}

	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// a plain path (a one-letter scheme is a Windows drive)
		return location, noop, nil
	}
	if u.Scheme == "file" {
		return filepath.FromSlash(u.Path), noop, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return "", noop, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.retry.Do(req)
	if err != nil {
		return "", noop, fmt.Errorf("download %s failed: %w", location, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", noop, fmt.Errorf("download %s failed: HTTP status %d", location, resp.StatusCode)
	}

	dir, err := os.MkdirTemp("", "labbcat-upload-")
	if err != nil {
		return "", noop, fmt.Errorf("failed to create temporary directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = "download"
	}
	local := filepath.Join(dir, name)
	if err := saveBody(resp.Body, local); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("download %s failed: %w", location, err)
	}
	return local, cleanup, nil
}

// AddLayerDictionaryEntry adds an entry to the dictionary of a layer, such
// as a pronunciation for a word.
func (c *Client) AddLayerDictionaryEntry(ctx context.Context, layerID, key, entry string) error {
	params := url.Values{"layerId": {layerID}, "key": {key}, "entry": {entry}}
	return c.postForm(ctx, "api/edit/dictionary/add", params, "add layer dictionary entry", nil)
}

// RemoveLayerDictionaryEntry removes an entry from the dictionary of a layer.
// An empty entry removes all entries for key.
func (c *Client) RemoveLayerDictionaryEntry(ctx context.Context, layerID, key, entry string) error {
	params := url.Values{"layerId": {layerID}, "key": {key}}
	if entry != "" {
		params.Set("entry", entry)
	}
	return c.postForm(ctx, "api/edit/dictionary/remove", params, "remove layer dictionary entry", nil)
}

// AddDictionaryEntry adds an entry to a dictionary of a layer manager.
func (c *Client) AddDictionaryEntry(ctx context.Context, managerID, dictionaryID, key, entry string) error {
	params := url.Values{
		"layerManagerId": {managerID},
		"dictionaryId":   {dictionaryID},
		"key":            {key},
		"entry":          {entry},
	}
	return c.postForm(ctx, "api/edit/dictionary/add", params, "add dictionary entry", nil)
}

// RemoveDictionaryEntry removes an entry from a dictionary of a layer
// manager. An empty entry removes all entries for key.
func (c *Client) RemoveDictionaryEntry(ctx context.Context, managerID, dictionaryID, key, entry string) error {
	params := url.Values{
		"layerManagerId": {managerID},
		"dictionaryId":   {dictionaryID},
		"key":            {key},
	}
	if entry != "" {
		params.Set("entry", entry)
	}
	return c.postForm(ctx, "api/edit/dictionary/remove", params, "remove dictionary entry", nil)
}

// AnnotatorExt calls a resource of an annotator's extension web app, and
// returns its plain text response. Parameters are sent as a comma-separated
// query string.
func (c *Client) AnnotatorExt(ctx context.Context, annotatorID, resource string, params ...string) (string, error) {
	resourcePath := "edit/annotator/ext/" + url.PathEscape(annotatorID) + "/" + url.PathEscape(resource)
	if len(params) > 0 {
		escaped := make([]string, len(params))
		for i, p := range params {
			escaped[i] = url.QueryEscape(p)
		}
		resourcePath += "?" + strings.Join(escaped, ",")
	}

	req, err := c.newRequest(ctx, http.MethodGet, resourcePath, nil, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")

	return c.readPlainText(req, "annotator ext")
}

// readPlainText sends a request to an endpoint that answers in plain text,
// errors included.
func (c *Client) readPlainText(req *http.Request, op string) (string, error) {
	resp, err := c.do(req)
	if err != nil {
		return "", wrapTransportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return "", &ResponseError{Response: &Response{
			HTTPStatus: resp.StatusCode,
			Code:       -1,
			Errors:     []string{message},
			Raw:        string(body),
		}}
	}
	return string(body), nil
}
