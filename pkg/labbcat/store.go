package labbcat

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ID returns the store's ID.
func (c *Client) ID(ctx context.Context) (string, error) {
	var id string
	if err := c.get(ctx, storePath("getId"), nil, "get id", &id); err != nil {
		return "", err
	}
	return id, nil
}

// Info returns the store's information document, in HTML.
func (c *Client) Info(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "doc/", nil, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html")

	return c.readText(req, "get info")
}

// LayerIDs lists the IDs of all layers.
func (c *Client) LayerIDs(ctx context.Context) ([]string, error) {
	return c.getStrings(ctx, storePath("getLayerIds"), nil, "get layer ids")
}

// Layers lists all layer definitions.
func (c *Client) Layers(ctx context.Context) ([]*Layer, error) {
	var layers []*Layer
	if err := c.get(ctx, storePath("getLayers"), nil, "get layers", &layers); err != nil {
		return nil, err
	}
	return layers, nil
}

// Layer gets one layer definition.
func (c *Client) Layer(ctx context.Context, id string) (*Layer, error) {
	var layer Layer
	if err := c.get(ctx, storePath("getLayer"), url.Values{"id": {id}}, "get layer", &layer); err != nil {
		return nil, err
	}
	return &layer, nil
}

// CorpusIDs lists the IDs of all corpora.
func (c *Client) CorpusIDs(ctx context.Context) ([]string, error) {
	return c.getStrings(ctx, storePath("getCorpusIds"), nil, "get corpus ids")
}

// ParticipantIDs lists the IDs of all participants.
func (c *Client) ParticipantIDs(ctx context.Context) ([]string, error) {
	return c.getStrings(ctx, storePath("getParticipantIds"), nil, "get participant ids")
}

// Participant gets a participant record, with its attributes on the given
// layers as child annotations. It returns nil if there is no such participant.
func (c *Client) Participant(ctx context.Context, id string, layerIDs ...string) (*Annotation, error) {
	params := url.Values{"id": {id}}
	if len(layerIDs) > 0 {
		params["layerIds"] = layerIDs
	}
	var participant *Annotation
	if err := c.get(ctx, storePath("getParticipant"), params, "get participant", &participant); err != nil {
		return nil, err
	}
	return participant, nil
}

// CountMatchingParticipantIDs counts participants matching a query expression,
// e.g. `/Ada.+/.test(id)` or `labels('participant_gender').includes('F')`.
func (c *Client) CountMatchingParticipantIDs(ctx context.Context, expression string) (int, error) {
	var n int
	params := url.Values{"expression": {expression}}
	if err := c.get(ctx, storePath("countMatchingParticipantIds"), params, "count matching participant ids", &n); err != nil {
		return 0, err
	}
	return n, nil
}

// MatchingParticipantIDs lists participants matching a query expression.
func (c *Client) MatchingParticipantIDs(ctx context.Context, expression string, page *Page) ([]string, error) {
	params := pageParams(url.Values{"expression": {expression}}, page)
	return c.getStrings(ctx, storePath("getMatchingParticipantIds"), params, "get matching participant ids")
}

// TranscriptIDs lists the IDs of all transcripts.
func (c *Client) TranscriptIDs(ctx context.Context) ([]string, error) {
	return c.getStrings(ctx, storePath("getTranscriptIds"), nil, "get transcript ids")
}

// TranscriptIDsInCorpus lists the transcripts in a corpus.
func (c *Client) TranscriptIDsInCorpus(ctx context.Context, corpusID string) ([]string, error) {
	params := url.Values{"id": {corpusID}}
	return c.getStrings(ctx, storePath("getTranscriptIdsInCorpus"), params, "get transcript ids in corpus")
}

// TranscriptIDsWithParticipant lists the transcripts a participant speaks in.
func (c *Client) TranscriptIDsWithParticipant(ctx context.Context, participantID string) ([]string, error) {
	params := url.Values{"id": {participantID}}
	return c.getStrings(ctx, storePath("getTranscriptIdsWithParticipant"), params, "get transcript ids with participant")
}

// CountMatchingTranscriptIDs counts transcripts matching a query expression.
func (c *Client) CountMatchingTranscriptIDs(ctx context.Context, expression string) (int, error) {
	var n int
	params := url.Values{"expression": {expression}}
	if err := c.get(ctx, storePath("countMatchingTranscriptIds"), params, "count matching transcript ids", &n); err != nil {
		return 0, err
	}
	return n, nil
}

// MatchingTranscriptIDs lists transcripts matching a query expression.
// order is an optional ordering expression, e.g. "id DESC".
func (c *Client) MatchingTranscriptIDs(ctx context.Context, expression string, page *Page, order string) ([]string, error) {
	params := pageParams(url.Values{"expression": {expression}}, page)
	if order != "" {
		params.Set("order", order)
	}
	return c.getStrings(ctx, storePath("getMatchingTranscriptIds"), params, "get matching transcript ids")
}

// CountMatchingAnnotations counts annotations matching a query expression.
func (c *Client) CountMatchingAnnotations(ctx context.Context, expression string) (int, error) {
	var n int
	params := url.Values{"expression": {expression}}
	if err := c.get(ctx, storePath("countMatchingAnnotations"), params, "count matching annotations", &n); err != nil {
		return 0, err
	}
	return n, nil
}

// MatchingAnnotations lists annotations matching a query expression.
func (c *Client) MatchingAnnotations(ctx context.Context, expression string, page *Page) ([]*Annotation, error) {
	params := pageParams(url.Values{"expression": {expression}}, page)
	var annotations []*Annotation
	if err := c.get(ctx, storePath("getMatchingAnnotations"), params, "get matching annotations", &annotations); err != nil {
		return nil, err
	}
	return annotations, nil
}

// CountAnnotations counts the annotations on a layer of a transcript.
func (c *Client) CountAnnotations(ctx context.Context, transcriptID, layerID string) (int64, error) {
	var n int64
	params := url.Values{"id": {transcriptID}, "layerId": {layerID}}
	if err := c.get(ctx, storePath("countAnnotations"), params, "count annotations", &n); err != nil {
		return 0, err
	}
	return n, nil
}

// Annotations lists the annotations on a layer of a transcript.
func (c *Client) Annotations(ctx context.Context, transcriptID, layerID string, page *Page) ([]*Annotation, error) {
	params := pageParams(url.Values{"id": {transcriptID}, "layerId": {layerID}}, page)
	var annotations []*Annotation
	if err := c.get(ctx, storePath("getAnnotations"), params, "get annotations", &annotations); err != nil {
		return nil, err
	}
	return annotations, nil
}

// Anchors gets anchors of a transcript by ID.
func (c *Client) Anchors(ctx context.Context, transcriptID string, anchorIDs []string) ([]*Anchor, error) {
	params := url.Values{"id": {transcriptID}, "anchorIds": anchorIDs}
	var anchors []*Anchor
	if err := c.get(ctx, storePath("getAnchors"), params, "get anchors", &anchors); err != nil {
		return nil, err
	}
	return anchors, nil
}

// MediaTracks lists the media tracks transcripts may have.
func (c *Client) MediaTracks(ctx context.Context) ([]*MediaTrackDefinition, error) {
	var tracks []*MediaTrackDefinition
	if err := c.get(ctx, storePath("getMediaTracks"), nil, "get media tracks", &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// AvailableMedia lists the media files available for a transcript.
func (c *Client) AvailableMedia(ctx context.Context, transcriptID string) ([]*MediaFile, error) {
	var files []*MediaFile
	params := url.Values{"id": {transcriptID}}
	if err := c.get(ctx, storePath("getAvailableMedia"), params, "get available media", &files); err != nil {
		return nil, err
	}
	return files, nil
}

// Media returns the URL of a transcript's media for the given track and MIME
// type. If interval is not nil, the URL is for that fragment only.
func (c *Client) Media(ctx context.Context, transcriptID, trackSuffix, mimeType string, interval *Interval) (string, error) {
	params := url.Values{
		"id":          {transcriptID},
		"trackSuffix": {trackSuffix},
		"mimeType":    {mimeType},
	}
	if interval != nil {
		params.Set("startOffset", formatOffset(interval.Start))
		params.Set("endOffset", formatOffset(interval.End))
	}
	var mediaURL flexString
	if err := c.get(ctx, storePath("getMedia"), params, "get media", &mediaURL); err != nil {
		return "", err
	}
	return string(mediaURL), nil
}

// EpisodeDocuments lists the documents attached to a transcript's episode.
func (c *Client) EpisodeDocuments(ctx context.Context, transcriptID string) ([]*MediaFile, error) {
	var files []*MediaFile
	params := url.Values{"id": {transcriptID}}
	if err := c.get(ctx, storePath("getEpisodeDocuments"), params, "get episode documents", &files); err != nil {
		return nil, err
	}
	return files, nil
}

// SerializerDescriptors lists the formats transcripts can be exported in.
func (c *Client) SerializerDescriptors(ctx context.Context) ([]*SerializationDescriptor, error) {
	var descriptors []*SerializationDescriptor
	if err := c.get(ctx, storePath("getSerializerDescriptors"), nil, "get serializer descriptors", &descriptors); err != nil {
		return nil, err
	}
	return descriptors, nil
}

// DeserializerDescriptors lists the formats transcripts can be uploaded in.
func (c *Client) DeserializerDescriptors(ctx context.Context) ([]*SerializationDescriptor, error) {
	var descriptors []*SerializationDescriptor
	if err := c.get(ctx, storePath("getDeserializerDescriptors"), nil, "get deserializer descriptors", &descriptors); err != nil {
		return nil, err
	}
	return descriptors, nil
}

// getStrings issues a GET whose model is a list of strings.
func (c *Client) getStrings(ctx context.Context, resource string, params url.Values, op string) ([]string, error) {
	var ids []string
	if err := c.get(ctx, resource, params, op, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// readText sends req and returns its body as text.
func (c *Client) readText(req *http.Request, op string) (string, error) {
	resp, err := c.open(req, op)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var sb strings.Builder
	if _, err := io.Copy(&sb, resp.Body); err != nil {
		return "", wrapTransportError(op, err)
	}
	return sb.String(), nil
}
