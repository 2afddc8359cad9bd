package storetest

import (
	"sort"

	"github.com/nzilbb/labbcat-go/pkg/labbcat"
)

// Transcript is a transcript known to the fake server.
type Transcript struct {
	ID           string
	Corpus       string
	Type         string
	Participants []string
	// Annotations maps layer IDs to the transcript's annotations on that layer.
	Annotations map[string][]*labbcat.Annotation
}

// Fixtures is the corpus data the fake server answers from.
type Fixtures struct {
	ID           string
	Info         string
	Layers       []*labbcat.Layer
	Transcripts  []*Transcript
	Participants map[string]*labbcat.Annotation
	// Matches are returned by every search.
	Matches []*labbcat.Match

	Corpora     []*labbcat.Corpus
	Projects    []*labbcat.Project
	MediaTracks []*labbcat.MediaTrack
	Roles       []*labbcat.Role
	Users       []*labbcat.User
}

// DemoFixtures returns a small two-corpus store.
func DemoFixtures() *Fixtures {
	return &Fixtures{
		ID:   "labbcat-demo",
		Info: "<h1>LaBB-CAT demo</h1><p>Two interviews.</p>",
		Layers: []*labbcat.Layer{
			{ID: "transcript", Alignment: 2, Peers: false, Saturated: true, Category: "transcript"},
			{ID: "participant", ParentID: "transcript", Alignment: 0, Peers: true, Saturated: true},
			{ID: "utterance", ParentID: "turn", Alignment: 2, Peers: true, Saturated: true},
			{ID: "word", ParentID: "turn", Alignment: 2, Peers: true, Type: "string"},
			{ID: "orthography", ParentID: "word", Alignment: 0, Type: "string", Description: "Normalized spelling"},
			{ID: "pos", ParentID: "word", Alignment: 0, Peers: true, Type: "string", Description: "Part of speech"},
		},
		Transcripts: []*Transcript{
			{
				ID:           "AP511_MikeThorpe.eaf",
				Corpus:       "QB",
				Type:         "interview",
				Participants: []string{"AP511_MikeThorpe", "Interviewer"},
				Annotations: map[string][]*labbcat.Annotation{
					"orthography": {
						{ID: "ew_2_1", LayerID: "orthography", Label: "the", StartID: "n_1", EndID: "n_2"},
						{ID: "ew_2_2", LayerID: "orthography", Label: "knox", StartID: "n_2", EndID: "n_3"},
						{ID: "ew_2_3", LayerID: "orthography", Label: "went", StartID: "n_3", EndID: "n_4"},
					},
				},
			},
			{
				ID:           "UC427_ViktoriaPapp_A_ENG.eaf",
				Corpus:       "UC",
				Type:         "monologue",
				Participants: []string{"UC427_ViktoriaPapp_A_ENG"},
				Annotations: map[string][]*labbcat.Annotation{
					"orthography": {
						{ID: "ew_2_10", LayerID: "orthography", Label: "knox", StartID: "n_10", EndID: "n_11"},
					},
				},
			},
		},
		Participants: map[string]*labbcat.Annotation{
			"AP511_MikeThorpe": {
				ID: "m_-2_11", Label: "AP511_MikeThorpe",
				Annotations: map[string][]*labbcat.Annotation{
					"participant_gender": {{Label: "M"}},
				},
			},
			"Interviewer": {ID: "m_-2_12", Label: "Interviewer"},
			"UC427_ViktoriaPapp_A_ENG": {
				ID: "m_-2_13", Label: "UC427_ViktoriaPapp_A_ENG",
				Annotations: map[string][]*labbcat.Annotation{
					"participant_gender": {{Label: "F"}},
				},
			},
		},
		Matches: []*labbcat.Match{
			{
				MatchID:     "g_1;em_12_20;n_1-n_4;p_1;#=ew_2_2;[0]=ew_0_2;prefix=001-",
				Transcript:  "AP511_MikeThorpe.eaf",
				Participant: "AP511_MikeThorpe",
				Corpus:      "QB",
				Line:        10.5,
				LineEnd:     12.25,
				BeforeMatch: "the",
				Text:        "knox",
				AfterMatch:  "went",
			},
			{
				MatchID:     "g_2;em_12_30;n_10-n_11;p_3;#=ew_2_10;[0]=ew_0_10;prefix=002-",
				Transcript:  "UC427_ViktoriaPapp_A_ENG.eaf",
				Participant: "UC427_ViktoriaPapp_A_ENG",
				Corpus:      "UC",
				Line:        3,
				LineEnd:     4.5,
				Text:        "knox",
			},
		},
		Corpora: []*labbcat.Corpus{
			{ID: 1, Name: "QB", Language: "en", Description: "Quake Box"},
			{ID: 2, Name: "UC", Language: "en", Description: "University of Canterbury"},
		},
		Projects: []*labbcat.Project{
			{ID: 1, Name: "phonology", Description: "Phonological layers"},
		},
		MediaTracks: []*labbcat.MediaTrack{
			{Suffix: "", Description: "Audio", DisplayOrder: 0},
			{Suffix: "_face", Description: "Face camera", DisplayOrder: 1},
		},
		Roles: []*labbcat.Role{
			{ID: "admin", Description: "Administrator"},
			{ID: "edit", Description: "Editor"},
			{ID: "view", Description: "Viewer"},
		},
		Users: []*labbcat.User{
			{User: "admin", Roles: []string{"admin", "edit", "view"}},
			{User: "jane", Email: "jane@example.org", ResetPassword: true, Roles: []string{"view"}},
		},
	}
}

func (f *Fixtures) transcript(id string) *Transcript {
	for _, t := range f.Transcripts {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (f *Fixtures) layer(id string) *labbcat.Layer {
	for _, l := range f.Layers {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (f *Fixtures) corpusIDs() []string {
	seen := map[string]bool{}
	var ids []string
	for _, t := range f.Transcripts {
		if !seen[t.Corpus] {
			seen[t.Corpus] = true
			ids = append(ids, t.Corpus)
		}
	}
	sort.Strings(ids)
	return ids
}

func (f *Fixtures) participantIDs() []string {
	ids := make([]string, 0, len(f.Participants))
	for id := range f.Participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// participantCorpora returns the corpora of the transcripts a participant
// speaks in.
func (f *Fixtures) participantCorpora(participantID string) []string {
	var corpora []string
	for _, t := range f.Transcripts {
		for _, p := range t.Participants {
			if p == participantID {
				corpora = append(corpora, t.Corpus)
			}
		}
	}
	return corpora
}
