package labbcat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestAdminRecords(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		call   func(*Client) error
	}{
		{
			name:   "create corpus",
			method: http.MethodPost,
			path:   "/api/admin/corpora",
			call: func(c *Client) error {
				_, err := c.CreateCorpus(context.Background(), &Corpus{Name: "QB", Language: "en"})
				return err
			},
		},
		{
			name:   "update project",
			method: http.MethodPut,
			path:   "/api/admin/projects",
			call: func(c *Client) error {
				_, err := c.UpdateProject(context.Background(), &Project{Name: "phonology"})
				return err
			},
		},
		{
			name:   "delete corpus",
			method: http.MethodDelete,
			path:   "/api/admin/corpora/QB",
			call: func(c *Client) error {
				return c.DeleteCorpus(context.Background(), "QB")
			},
		},
		{
			name:   "delete media track",
			method: http.MethodDelete,
			path:   "/api/admin/mediatracks/_face",
			call: func(c *Client) error {
				return c.DeleteMediaTrack(context.Background(), "_face")
			},
		},
		{
			name:   "delete role permission",
			method: http.MethodDelete,
			path:   "/api/admin/roles/permissions/admin/t",
			call: func(c *Client) error {
				return c.DeleteRolePermission(context.Background(), "admin", "t")
			},
		},
		{
			name:   "delete user",
			method: http.MethodDelete,
			path:   "/api/admin/users/jane",
			call: func(c *Client) error {
				return c.DeleteUser(context.Background(), "jane")
			},
		},
		{
			name:   "update system attribute",
			method: http.MethodPut,
			path:   "/api/admin/systemattributes",
			call: func(c *Client) error {
				_, err := c.UpdateSystemAttribute(context.Background(), "title", "Demo")
				return err
			},
		},
		{
			name:   "delete layer",
			method: http.MethodPost,
			path:   "/api/admin/store/deleteLayer",
			call: func(c *Client) error {
				return c.DeleteLayer(context.Background(), "pos")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != tt.method {
					t.Errorf("expected %s, got %s", tt.method, r.Method)
				}
				if r.URL.Path != tt.path {
					t.Errorf("expected path %s, got %s", tt.path, r.URL.Path)
				}
				writeModel(w, nil)
			})
			defer server.Close()

			if err := tt.call(newTestClient(t, server)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreateCorpus(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON body, got %s", r.Header.Get("Content-Type"))
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
			return
		}
		if body["corpus_name"] != "QB" || body["corpus_language"] != "en" {
			t.Errorf("unexpected body %v", body)
		}
		if _, ok := body["corpus_id"]; ok {
			t.Error("expected no corpus_id for a new corpus")
		}
		body["corpus_id"] = 4
		writeModel(w, body)
	})
	defer server.Close()

	corpus, err := newTestClient(t, server).CreateCorpus(context.Background(),
		&Corpus{Name: "QB", Language: "en", Description: "Quake Box"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if corpus == nil || corpus.ID != 4 || corpus.Description != "Quake Box" {
		t.Errorf("unexpected corpus %+v", corpus)
	}
}

func TestSendRecordNullModel(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeModel(w, nil)
	})
	defer server.Close()

	role, err := newTestClient(t, server).UpdateRole(context.Background(), &Role{ID: "admin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != nil {
		t.Errorf("expected nil role, got %+v", role)
	}
}

func TestReadUsers(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("pageLength") != "20" || q.Get("pageNumber") != "1" {
			t.Errorf("unexpected paging %v", q)
		}
		writeModel(w, []map[string]interface{}{
			{"user": "jane", "email": nil, "resetPassword": 1, "roles": []string{"view", "edit"}},
			{"user": "joe", "email": "joe@example.com", "resetPassword": 0, "roles": []string{}},
		})
	})
	defer server.Close()

	users, err := newTestClient(t, server).ReadUsers(context.Background(), &Page{Length: 20, Number: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].Email != "" || !users[0].ResetPassword || len(users[0].Roles) != 2 {
		t.Errorf("unexpected first user %+v", users[0])
	}
	if users[1].Email != "joe@example.com" || users[1].ResetPassword {
		t.Errorf("unexpected second user %+v", users[1])
	}
}

func TestUserJSON(t *testing.T) {
	data, err := json.Marshal(User{User: "jane", ResetPassword: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"user":"jane","resetPassword":1,"roles":[]}` {
		t.Errorf("unexpected JSON %s", data)
	}
}

func TestRolePermissionJSON(t *testing.T) {
	data, err := json.Marshal(RolePermission{
		RoleID: "view", Entity: "t", LayerID: "transcript_language", ValuePattern: "en.*",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"role_id":"view","entity":"t","attribute_name":"language","value_pattern":"en.*"}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}

	var p RolePermission
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.LayerID != "transcript_language" {
		t.Errorf("expected layer transcript_language, got %q", p.LayerID)
	}
}

func TestReadRolePermissions(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/admin/roles/permissions/view" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeModel(w, []map[string]interface{}{
			{"role_id": "view", "entity": "a", "attribute_name": "corpus", "value_pattern": "QB"},
		})
	})
	defer server.Close()

	permissions, err := newTestClient(t, server).ReadRolePermissions(context.Background(), "view", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(permissions) != 1 || permissions[0].LayerID != "transcript_corpus" {
		t.Errorf("unexpected permissions %+v", permissions)
	}
}

func TestSetPassword(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/admin/password" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			User          string `json:"user"`
			Password      string `json:"password"`
			ResetPassword bool   `json:"resetPassword"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if body.User != "jane" || body.Password != "s3cret" || !body.ResetPassword {
			t.Errorf("unexpected body %+v", body)
		}
		writeModel(w, nil)
	})
	defer server.Close()

	if err := newTestClient(t, server).SetPassword(context.Background(), "jane", "s3cret", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateInfo(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/doc/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "<h1>Corpus</h1>" {
			t.Errorf("unexpected body %q", body)
		}
		writeModel(w, nil)
	})
	defer server.Close()

	if err := newTestClient(t, server).UpdateInfo(context.Background(), "<h1>Corpus</h1>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerateLayer(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/layers/regenerate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		r.ParseForm()
		if r.PostForm.Get("layerId") != "phonemes" || r.PostForm.Get("sure") != "true" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		writeModel(w, map[string]interface{}{"threadId": 31})
	})
	defer server.Close()

	threadID, err := newTestClient(t, server).GenerateLayer(context.Background(), "phonemes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if threadID != "31" {
		t.Errorf("expected thread 31, got %q", threadID)
	}
}

func TestLoadLexicon(t *testing.T) {
	lexicon := filepath.Join(t.TempDir(), "cmu.txt")
	if err := os.WriteFile(lexicon, []byte("knox\tn6ks\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var polls int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/edit/annotator/ext/FlatLexiconTagger/loadLexicon":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("failed to parse multipart form: %v", err)
				return
			}
			if r.FormValue("lexicon") != "cmu" || r.FormValue("fieldDelimiter") != "\t" ||
				r.FormValue("skipFirstLine") != "false" {
				t.Errorf("unexpected form %v", r.MultipartForm.Value)
			}
			w.Write([]byte("Loading"))
		case "/edit/annotator/ext/FlatLexiconTagger/getRunning":
			if atomic.AddInt32(&polls, 1) < 2 {
				w.Write([]byte("true"))
			} else {
				w.Write([]byte("false"))
			}
		case "/edit/annotator/ext/FlatLexiconTagger/getStatus":
			w.Write([]byte("Loaded 1 entry"))
		case "/edit/annotator/ext/FlatLexiconTagger/getPercentComplete":
			if atomic.LoadInt32(&polls) < 2 {
				w.Write([]byte("50"))
			} else {
				w.Write([]byte("100"))
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := newTestClient(t, server).LoadLexicon(ctx, lexicon, "cmu", LexiconFormat{
		FieldDelimiter: "\t",
		FieldNames:     "word\tpron",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&polls) != 2 {
		t.Errorf("expected 2 polls, got %d", polls)
	}
}

func TestLoadLexiconFailure(t *testing.T) {
	lexicon := filepath.Join(t.TempDir(), "bad.txt")
	if err := os.WriteFile(lexicon, []byte("?"), 0o644); err != nil {
		t.Fatal(err)
	}

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch filepath.Base(r.URL.Path) {
		case "getRunning":
			w.Write([]byte("false"))
		case "getStatus":
			w.Write([]byte("Invalid line 1"))
		case "getPercentComplete":
			w.Write([]byte("10"))
		}
	})
	defer server.Close()

	err := newTestClient(t, server).LoadLexicon(context.Background(), lexicon, "", LexiconFormat{FieldDelimiter: ","})
	if err == nil || err.Error() != "load lexicon failed: Invalid line 1" {
		t.Fatalf("expected load failure, got %v", err)
	}
}

func TestDeleteLexicon(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/edit/annotator/ext/FlatLexiconTagger/deleteLexicon" || r.URL.RawQuery != "cmu" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
	})
	defer server.Close()

	if err := newTestClient(t, server).DeleteLexicon(context.Background(), "cmu"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
