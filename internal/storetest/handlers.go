package storetest

import (
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nzilbb/labbcat-go/pkg/labbcat"
)

func (s *Server) probe(w http.ResponseWriter, r *http.Request) {
	s.ok(w, nil)
}

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	w.Write([]byte(s.fixtures.Info))
}

func (s *Server) getID(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ok(w, s.fixtures.ID)
}

func (s *Server) getLayerIDs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.fixtures.Layers))
	for _, l := range s.fixtures.Layers {
		ids = append(ids, l.ID)
	}
	s.ok(w, ids)
}

func (s *Server) getLayers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ok(w, s.fixtures.Layers)
}

func (s *Server) getLayer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.URL.Query().Get("id")
	layer := s.fixtures.layer(id)
	if layer == nil {
		s.fail(w, http.StatusNotFound, "Invalid layer: "+id)
		return
	}
	s.ok(w, layer)
}

func (s *Server) getCorpusIDs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ok(w, s.fixtures.corpusIDs())
}

func (s *Server) getParticipantIDs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ok(w, s.fixtures.participantIDs())
}

func (s *Server) getParticipant(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := r.URL.Query()
	participant, ok := s.fixtures.Participants[q.Get("id")]
	if !ok {
		// the server answers a missing participant with a null model
		s.ok(w, nil)
		return
	}

	// only the requested attribute layers are included
	result := &labbcat.Annotation{ID: participant.ID, Label: participant.Label}
	for _, layerID := range q["layerIds"] {
		if attrs, ok := participant.Annotations[layerID]; ok {
			if result.Annotations == nil {
				result.Annotations = map[string][]*labbcat.Annotation{}
			}
			result.Annotations[layerID] = attrs
		}
	}
	s.ok(w, result)
}

// matchingParticipants filters participant IDs by the request's expression.
// Callers hold s.mu.
func (s *Server) matchingParticipants(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	match, err := compileExpression(r.URL.Query().Get("expression"))
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	ids := []string{}
	for _, id := range s.fixtures.participantIDs() {
		if match(id, s.fixtures.participantCorpora(id)) {
			ids = append(ids, id)
		}
	}
	return ids, true
}

func (s *Server) countMatchingParticipantIDs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ids, ok := s.matchingParticipants(w, r); ok {
		s.ok(w, len(ids))
	}
}

func (s *Server) getMatchingParticipantIDs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ids, ok := s.matchingParticipants(w, r); ok {
		s.ok(w, paginate(ids, r))
	}
}

func (s *Server) getTranscriptIDs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{}
	for _, t := range s.fixtures.Transcripts {
		ids = append(ids, t.ID)
	}
	s.ok(w, ids)
}

func (s *Server) getTranscriptIDsInCorpus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	corpus := r.URL.Query().Get("id")
	ids := []string{}
	for _, t := range s.fixtures.Transcripts {
		if t.Corpus == corpus {
			ids = append(ids, t.ID)
		}
	}
	s.ok(w, ids)
}

func (s *Server) getTranscriptIDsWithParticipant(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant := r.URL.Query().Get("id")
	ids := []string{}
	for _, t := range s.fixtures.Transcripts {
		for _, p := range t.Participants {
			if p == participant {
				ids = append(ids, t.ID)
				break
			}
		}
	}
	s.ok(w, ids)
}

// matchingTranscripts filters transcript IDs by the request's expression.
// Callers hold s.mu.
func (s *Server) matchingTranscripts(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	match, err := compileExpression(r.URL.Query().Get("expression"))
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	ids := []string{}
	for _, t := range s.fixtures.Transcripts {
		if match(t.ID, []string{t.Corpus}) {
			ids = append(ids, t.ID)
		}
	}
	return ids, true
}

func (s *Server) countMatchingTranscriptIDs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ids, ok := s.matchingTranscripts(w, r); ok {
		s.ok(w, len(ids))
	}
}

func (s *Server) getMatchingTranscriptIDs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, ok := s.matchingTranscripts(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("order") == "id DESC" {
		sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	} else {
		sort.Strings(ids)
	}
	s.ok(w, paginate(ids, r))
}

// layerAnnotations finds the annotations the request asks for. Callers
// hold s.mu.
func (s *Server) layerAnnotations(w http.ResponseWriter, r *http.Request) ([]*labbcat.Annotation, bool) {
	q := r.URL.Query()
	transcript := s.fixtures.transcript(q.Get("id"))
	if transcript == nil {
		s.fail(w, http.StatusNotFound, "Transcript not found: "+q.Get("id"))
		return nil, false
	}
	if s.fixtures.layer(q.Get("layerId")) == nil {
		s.fail(w, http.StatusBadRequest, "Invalid layer: "+q.Get("layerId"))
		return nil, false
	}
	annotations := transcript.Annotations[q.Get("layerId")]
	if annotations == nil {
		annotations = []*labbcat.Annotation{}
	}
	return annotations, true
}

func (s *Server) countAnnotations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if annotations, ok := s.layerAnnotations(w, r); ok {
		s.ok(w, len(annotations))
	}
}

func (s *Server) getAnnotations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if annotations, ok := s.layerAnnotations(w, r); ok {
		s.ok(w, paginate(annotations, r))
	}
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := r.URL.Query()
	if q.Get("searchJson") == "" {
		s.fail(w, http.StatusBadRequest, "No pattern specified.")
		return
	}
	threadID := s.newTask("search", fmt.Sprintf("Found %d matches", len(s.fixtures.Matches)))
	s.searches[threadID] = q.Get("searchJson")
	s.ok(w, map[string]string{"threadId": threadID})
}

func (s *Server) thread(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	threadID := r.URL.Query().Get("threadId")
	task, ok := s.tasks[threadID]
	if !ok {
		s.fail(w, http.StatusNotFound, "Invalid thread ID: "+threadID)
		return
	}
	s.ok(w, task)
}

func (s *Server) threads(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := r.URL.Query()
	threadID := q.Get("threadId")

	switch q.Get("command") {
	case "":
		s.ok(w, s.tasks)
		return
	case "cancel", "release":
	default:
		s.fail(w, http.StatusBadRequest, "Invalid command: "+q.Get("command"))
		return
	}

	task, ok := s.tasks[threadID]
	if !ok {
		s.fail(w, http.StatusNotFound, "Invalid thread ID: "+threadID)
		return
	}
	if q.Get("command") == "cancel" {
		s.cancelled[threadID] = true
		task.Running = false
		task.Status = "Cancelled"
	} else {
		s.released[threadID] = true
		delete(s.tasks, threadID)
	}
	s.ok(w, nil)
}

func (s *Server) resultsStream(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	threadID := r.URL.Query().Get("threadId")
	if _, ok := s.searches[threadID]; !ok || s.released[threadID] {
		s.fail(w, http.StatusNotFound, "Invalid thread ID: "+threadID)
		return
	}
	s.ok(w, map[string]interface{}{
		"name":    "search " + threadID,
		"matches": paginate(s.fixtures.Matches, r),
	})
}

func (s *Server) soundFragment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := r.URL.Query()
	if s.fixtures.transcript(q.Get("id")) == nil {
		s.fail(w, http.StatusNotFound, "Transcript not found: "+q.Get("id"))
		return
	}
	start, err1 := strconv.ParseFloat(q.Get("start"), 64)
	end, err2 := strconv.ParseFloat(q.Get("end"), 64)
	if err1 != nil || err2 != nil || end <= start {
		s.fail(w, http.StatusBadRequest, "Invalid interval")
		return
	}

	name := labbcat.FragmentName(q.Get("id"), start, end) + ".wav"
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	// a placeholder header and one second of silence at 8kHz
	w.Write([]byte("RIFF"))
	w.Write(make([]byte, 8000))
}

func (s *Server) startUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid upload: "+err.Error())
		return
	}
	_, header, err := r.FormFile("transcript")
	if err != nil {
		s.fail(w, http.StatusBadRequest, "No transcript file")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded = append(s.uploaded, header.Filename)
	merge := r.FormValue("merge") == "true"
	if merge && s.fixtures.transcript(header.Filename) == nil {
		s.fail(w, http.StatusNotFound, "Transcript not found: "+header.Filename)
		return
	}
	if !merge && s.fixtures.transcript(header.Filename) != nil {
		s.fail(w, http.StatusConflict, "Transcript already exists: "+header.Filename)
		return
	}

	upload := &labbcat.Upload{ID: fmt.Sprintf("upload-%d", len(s.uploaded))}
	if merge {
		upload.Parameters = []*labbcat.Parameter{
			{Name: labbcat.ParamGenerate, Type: "java.lang.Boolean", Value: true},
		}
	} else {
		upload.Parameters = []*labbcat.Parameter{
			{Name: labbcat.ParamTranscriptType, Type: "java.lang.String", Value: "interview"},
			{Name: labbcat.ParamCorpus, Type: "java.lang.String", Value: s.fixtures.corpusIDs()[0]},
			{Name: labbcat.ParamEpisode, Type: "java.lang.String", Value: filepath.Base(header.Filename)},
		}
	}
	upload.Transcripts = map[string]string{header.Filename: ""}
	s.uploads[upload.ID] = upload
	s.ok(w, upload)
}

func (s *Server) uploadParameters(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	upload, ok := s.uploads[id]
	if !ok {
		s.fail(w, http.StatusNotFound, "Upload not found: "+id)
		return
	}
	delete(s.uploads, id)

	q := r.URL.Query()
	transcripts := map[string]string{}
	for name := range upload.Transcripts {
		transcripts[name] = s.newTask("upload "+name, "Finished.")
		if s.fixtures.transcript(name) == nil {
			s.fixtures.Transcripts = append(s.fixtures.Transcripts, &Transcript{
				ID:     name,
				Corpus: q.Get(labbcat.ParamCorpus),
				Type:   q.Get(labbcat.ParamTranscriptType),
			})
		}
	}
	s.ok(w, &labbcat.Upload{ID: id, Transcripts: transcripts})
}

func (s *Server) cancelUpload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	if _, ok := s.uploads[id]; !ok {
		s.fail(w, http.StatusNotFound, "Upload not found: "+id)
		return
	}
	delete(s.uploads, id)
	s.ok(w, nil)
}

func (s *Server) deleteTranscript(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.FormValue("id")
	for i, t := range s.fixtures.Transcripts {
		if t.ID == id {
			s.fixtures.Transcripts = append(s.fixtures.Transcripts[:i], s.fixtures.Transcripts[i+1:]...)
			s.ok(w, nil)
			return
		}
	}
	s.fail(w, http.StatusNotFound, "Transcript not found: "+id)
}

func (s *Server) deleteParticipant(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.FormValue("id")
	if _, ok := s.fixtures.Participants[id]; !ok {
		s.fail(w, http.StatusNotFound, "Participant not found: "+id)
		return
	}
	delete(s.fixtures.Participants, id)
	s.ok(w, nil)
}

func (s *Server) regenerateLayer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	layerID := r.FormValue("layerId")
	if s.fixtures.layer(layerID) == nil {
		s.fail(w, http.StatusNotFound, "Invalid layer: "+layerID)
		return
	}
	s.ok(w, map[string]string{"threadId": s.newTask("generate "+layerID, "Finished.")})
}

// adminList serves one of the fixtures' admin record lists.
func adminList(s *Server, records func(*Fixtures) interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.ok(w, records(s.fixtures))
	}
}

// paginate applies the request's pageLength and pageNumber, if any.
func paginate[T any](items []T, r *http.Request) []T {
	q := r.URL.Query()
	length, err := strconv.Atoi(q.Get("pageLength"))
	if err != nil || length <= 0 {
		return items
	}
	number, _ := strconv.Atoi(q.Get("pageNumber"))
	start := length * number
	if start >= len(items) {
		return []T{}
	}
	end := start + length
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
