package labbcat

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"testing"
)

func TestStoreQueries(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantParams url.Values
		model      interface{}
		call       func(*Client) (interface{}, error)
		check      func(t *testing.T, got interface{})
	}{
		{
			name:  "id",
			path:  "/api/store/getId",
			model: "labbcat-demo",
			call:  func(c *Client) (interface{}, error) { return c.ID(context.Background()) },
			check: func(t *testing.T, got interface{}) {
				if got.(string) != "labbcat-demo" {
					t.Errorf("unexpected id %v", got)
				}
			},
		},
		{
			name:       "layer",
			path:       "/api/store/getLayer",
			model:      map[string]interface{}{"id": "orthography", "parentId": "word", "alignment": 0, "peers": false},
			wantParams: url.Values{"id": {"orthography"}},
			call: func(c *Client) (interface{}, error) {
				return c.Layer(context.Background(), "orthography")
			},
			check: func(t *testing.T, got interface{}) {
				layer := got.(*Layer)
				if layer.ID != "orthography" || layer.ParentID != "word" {
					t.Errorf("unexpected layer %+v", layer)
				}
			},
		},
		{
			name: "participant with attributes",
			path: "/api/store/getParticipant",
			model: map[string]interface{}{
				"id":    "m_-2_1",
				"label": "UC427_ViktoriaPapp_A_ENG",
				"annotations": map[string]interface{}{
					"participant_gender": []map[string]interface{}{{"label": "F"}},
				},
			},
			wantParams: url.Values{
				"id":       {"UC427_ViktoriaPapp_A_ENG"},
				"layerIds": {"participant_gender", "participant_age"},
			},
			call: func(c *Client) (interface{}, error) {
				return c.Participant(context.Background(), "UC427_ViktoriaPapp_A_ENG",
					"participant_gender", "participant_age")
			},
			check: func(t *testing.T, got interface{}) {
				p := got.(*Annotation)
				if gender := p.Annotations["participant_gender"]; len(gender) != 1 || gender[0].Label != "F" {
					t.Errorf("unexpected attributes %+v", p.Annotations)
				}
			},
		},
		{
			name:  "matching transcript ids",
			path:  "/api/store/getMatchingTranscriptIds",
			model: []string{"AP511_MikeThorpe.eaf"},
			wantParams: url.Values{
				"expression": {"/AP511.+/.test(id)"},
				"pageLength": {"10"},
				"pageNumber": {"2"},
				"order":      {"id DESC"},
			},
			call: func(c *Client) (interface{}, error) {
				return c.MatchingTranscriptIDs(context.Background(), "/AP511.+/.test(id)",
					&Page{Length: 10, Number: 2}, "id DESC")
			},
			check: func(t *testing.T, got interface{}) {
				if ids := got.([]string); len(ids) != 1 {
					t.Errorf("unexpected ids %v", ids)
				}
			},
		},
		{
			name:       "count annotations",
			path:       "/api/store/countAnnotations",
			model:      12345678901,
			wantParams: url.Values{"id": {"t.eaf"}, "layerId": {"orthography"}},
			call: func(c *Client) (interface{}, error) {
				return c.CountAnnotations(context.Background(), "t.eaf", "orthography")
			},
			check: func(t *testing.T, got interface{}) {
				if got.(int64) != 12345678901 {
					t.Errorf("unexpected count %v", got)
				}
			},
		},
		{
			name:  "media fragment",
			path:  "/api/store/getMedia",
			model: "http://localhost/labbcat/files/t.wav?start=1.5&end=2",
			wantParams: url.Values{
				"id":          {"t.eaf"},
				"trackSuffix": {""},
				"mimeType":    {"audio/wav"},
				"startOffset": {"1.5"},
				"endOffset":   {"2"},
			},
			call: func(c *Client) (interface{}, error) {
				return c.Media(context.Background(), "t.eaf", "", "audio/wav", &Interval{Start: 1.5, End: 2})
			},
			check: func(t *testing.T, got interface{}) {
				if got.(string) == "" {
					t.Error("expected a media URL")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET, got %s", r.Method)
				}
				if r.URL.Path != tt.path {
					t.Errorf("expected path %s, got %s", tt.path, r.URL.Path)
				}
				q := r.URL.Query()
				for name, want := range tt.wantParams {
					got := q[name]
					if len(got) != len(want) {
						t.Errorf("expected %s=%v, got %v", name, want, got)
						continue
					}
					for i := range want {
						if got[i] != want[i] {
							t.Errorf("expected %s=%v, got %v", name, want, got)
						}
					}
				}
				writeModel(w, tt.model)
			})
			defer server.Close()

			got, err := tt.call(newTestClient(t, server))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, got)
		})
	}
}

func TestStoreQueryError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadRequest, "Invalid layer: nonexistent")
	})
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.Layer(context.Background(), "nonexistent")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "Invalid layer: nonexistent" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestInfo(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/doc/" {
			t.Errorf("expected path /doc/, got %s", r.URL.Path)
		}
		if r.Header.Get("Accept") != "text/html" {
			t.Errorf("expected Accept text/html, got %s", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<h1>Demo corpus</h1>"))
	})
	defer server.Close()

	info, err := newTestClient(t, server).Info(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info != "<h1>Demo corpus</h1>" {
		t.Errorf("unexpected info %q", info)
	}
}

func TestSystemAttribute(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/systemattributes/title":
			writeModel(w, map[string]interface{}{"name": "title", "value": "LaBB-CAT Demo"})
		default:
			writeError(w, http.StatusNotFound, "No such attribute")
		}
	})
	defer server.Close()

	client := newTestClient(t, server)

	title, err := client.SystemAttribute(context.Background(), "title")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "LaBB-CAT Demo" {
		t.Errorf("unexpected title %q", title)
	}

	missing, err := client.SystemAttribute(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("expected no error for a missing attribute, got %v", err)
	}
	if missing != "" {
		t.Errorf("expected empty value, got %q", missing)
	}
}

func TestTranscriptAttributes(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/attributes" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if got := r.PostForm["layer"]; len(got) != 2 || got[0] != "transcript" || got[1] != "transcript_language" {
			t.Errorf("unexpected layers %v", got)
		}
		if got := r.PostForm["id"]; len(got) != 2 {
			t.Errorf("unexpected ids %v", got)
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("transcript,transcript_language\na.eaf,en\nb.eaf,es\n"))
	})
	defer server.Close()

	var buf bytes.Buffer
	err := newTestClient(t, server).TranscriptAttributes(context.Background(),
		[]string{"a.eaf", "b.eaf"}, []string{"transcript_language"}, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "transcript,transcript_language\na.eaf,en\nb.eaf,es\n" {
		t.Errorf("unexpected csv %q", buf.String())
	}
}
