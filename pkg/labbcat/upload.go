package labbcat

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
)

// Upload parameters the server may ask for.
const (
	ParamTranscriptType = "labbcat_transcript_type"
	ParamCorpus         = "labbcat_corpus"
	ParamEpisode        = "labbcat_episode"
	ParamGenerate       = "labbcat_generate"
)

// TranscriptUpload starts a transcript upload, sending the transcript file
// and any media files, keyed by track suffix. merge is true when the
// transcript updates one already in the store.
//
// The returned Upload lists the parameters the server needs to finish the
// upload; fill in their values and pass it to TranscriptUploadParameters.
func (c *Client) TranscriptUpload(ctx context.Context, transcript string, media map[string][]string, merge bool) (*Upload, error) {
	form := newMultipartForm().file("transcript", transcript)
	if merge {
		form.set("merge", "true")
	}
	suffixes := make([]string, 0, len(media))
	for suffix := range media {
		suffixes = append(suffixes, suffix)
	}
	sort.Strings(suffixes)
	for _, suffix := range suffixes {
		for _, file := range media[suffix] {
			form.file("media"+suffix, file)
		}
	}

	req, err := c.newMultipartRequest(ctx, "api/edit/transcript/upload", form)
	if err != nil {
		return nil, err
	}
	var upload Upload
	if _, err := c.call(req, "transcript upload", &upload); err != nil {
		return nil, err
	}
	return &upload, nil
}

// TranscriptUploadParameters sends the parameter values of an upload started
// with TranscriptUpload. Parameters with a nil value are left out. The
// result maps each transcript being processed to its task; if it lists more
// parameters, they must be sent too.
func (c *Client) TranscriptUploadParameters(ctx context.Context, upload *Upload) (*Upload, error) {
	params := url.Values{}
	for _, p := range upload.Parameters {
		if p.Value == nil {
			continue
		}
		params.Set(p.Name, fmt.Sprint(p.Value))
	}

	req, err := c.newRequest(ctx, http.MethodPut, "api/edit/transcript/upload/"+url.PathEscape(upload.ID), params, nil)
	if err != nil {
		return nil, err
	}
	var result Upload
	if _, err := c.call(req, "transcript upload parameters", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TranscriptUploadDelete abandons an upload started with TranscriptUpload.
func (c *Client) TranscriptUploadDelete(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "api/edit/transcript/upload/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	_, err = c.call(req, "transcript upload delete", nil)
	return err
}

// NewTranscript uploads a new transcript, with optional media for one track,
// and returns the ID of the task that processes it. It returns "" if the
// server started no task.
//
// Servers older than the upload API are sent the transcript through the
// legacy upload form instead.
func (c *Client) NewTranscript(ctx context.Context, transcript string, media []string, trackSuffix, transcriptType, corpus, episode string) (string, error) {
	upload, err := c.TranscriptUpload(ctx, transcript, map[string][]string{trackSuffix: media}, false)
	if err == nil {
		upload.SetParameter(ParamTranscriptType, transcriptType)
		upload.SetParameter(ParamCorpus, corpus)
		upload.SetParameter(ParamEpisode, episode)
		upload, err = c.TranscriptUploadParameters(ctx, upload)
		if err == nil {
			return uploadThread(upload, transcript), nil
		}
	}
	if !IsNotFound(err) {
		return "", err
	}

	c.logger.Debug().Str("transcript", transcript).Msg("upload API not found, using legacy upload")
	form := newMultipartForm().
		set("todo", "new").
		set("auto", "true").
		set("transcriptType", transcriptType).
		set("corpus", corpus).
		set("episode", episode).
		file("uploadfile1_0", transcript)
	for _, file := range media {
		form.file("uploadmedia"+trackSuffix+"1", file)
	}
	return c.legacyUpload(ctx, transcript, form, "new transcript")
}

// UpdateTranscript uploads a new version of a transcript already in the
// store and returns the ID of the task that processes it. generate controls
// whether automatic annotation layers are regenerated.
func (c *Client) UpdateTranscript(ctx context.Context, transcript string, generate bool) (string, error) {
	upload, err := c.TranscriptUpload(ctx, transcript, nil, true)
	if err == nil {
		upload.SetParameter(ParamGenerate, generate)
		upload, err = c.TranscriptUploadParameters(ctx, upload)
		if err == nil {
			return uploadThread(upload, transcript), nil
		}
	}
	if !IsNotFound(err) {
		return "", err
	}

	c.logger.Debug().Str("transcript", transcript).Msg("upload API not found, using legacy upload")
	form := newMultipartForm().
		set("todo", "update").
		set("auto", "true").
		file("uploadfile1_0", transcript)
	return c.legacyUpload(ctx, transcript, form, "update transcript")
}

func (c *Client) legacyUpload(ctx context.Context, transcript string, form *multipartForm, op string) (string, error) {
	req, err := c.newMultipartRequest(ctx, "edit/transcript/new", form)
	if err != nil {
		return "", err
	}
	var model struct {
		Result map[string]flexString `json:"result"`
	}
	if _, err := c.call(req, op, &model); err != nil {
		return "", err
	}
	return string(model.Result[filepath.Base(transcript)]), nil
}

// uploadThread picks the task processing the uploaded transcript: the one
// named after the file if there is one, otherwise the first by name.
func uploadThread(upload *Upload, transcript string) string {
	if len(upload.Transcripts) == 0 {
		return ""
	}
	if id, ok := upload.Transcripts[filepath.Base(transcript)]; ok {
		return id
	}
	names := make([]string, 0, len(upload.Transcripts))
	for name := range upload.Transcripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return upload.Transcripts[names[0]]
}
