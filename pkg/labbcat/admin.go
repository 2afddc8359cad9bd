package labbcat

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const lexiconTagger = "FlatLexiconTagger"

// NewLayer adds a layer to the schema and returns its definition as saved.
func (c *Client) NewLayer(ctx context.Context, layer *Layer) (*Layer, error) {
	return sendRecord(ctx, c, http.MethodPost, adminStorePath("newLayer"), layer, "new layer")
}

// SaveLayer saves changes to a layer definition.
func (c *Client) SaveLayer(ctx context.Context, layer *Layer) (*Layer, error) {
	return sendRecord(ctx, c, http.MethodPost, adminStorePath("saveLayer"), layer, "save layer")
}

// DeleteLayer deletes a layer and all its annotations.
func (c *Client) DeleteLayer(ctx context.Context, id string) error {
	return c.postForm(ctx, adminStorePath("deleteLayer"), url.Values{"id": {id}}, "delete layer", nil)
}

// GenerateLayer regenerates the annotations of an automatic layer in every
// transcript, and returns the ID of the task doing it.
func (c *Client) GenerateLayer(ctx context.Context, layerID string) (string, error) {
	params := url.Values{
		"layerId": {layerID},
		"sure":    {"true"},
	}
	var model struct {
		ThreadID flexString `json:"threadId"`
	}
	if err := c.postForm(ctx, "admin/layers/regenerate", params, "generate layer", &model); err != nil {
		return "", err
	}
	return string(model.ThreadID), nil
}

// sendRecord sends record as JSON and decodes the record the server returns.
// A null model gives a nil record.
func sendRecord[T any](ctx context.Context, c *Client, method, resource string, record *T, op string) (*T, error) {
	req, err := c.newJSONRequest(ctx, method, resource, record)
	if err != nil {
		return nil, err
	}
	resp, err := c.call(req, op, nil)
	if err != nil {
		return nil, err
	}
	if resp.IsModelNull() {
		return nil, nil
	}
	var result T
	if err := resp.DecodeModel(&result); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return &result, nil
}

// readRecords lists the records of an admin resource.
func readRecords[T any](ctx context.Context, c *Client, resource string, page *Page, op string) ([]*T, error) {
	var records []*T
	if err := c.get(ctx, resource, pageParams(nil, page), op, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// deleteRecord deletes the record of an admin resource with the given key.
func (c *Client) deleteRecord(ctx context.Context, resource, key, op string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, resource+"/"+url.PathEscape(key), nil, nil)
	if err != nil {
		return err
	}
	_, err = c.call(req, op, nil)
	return err
}

// CreateCorpus creates a corpus record.
func (c *Client) CreateCorpus(ctx context.Context, corpus *Corpus) (*Corpus, error) {
	return sendRecord(ctx, c, http.MethodPost, "api/admin/corpora", corpus, "create corpus")
}

// ReadCorpora lists corpus records. A nil page returns them all.
func (c *Client) ReadCorpora(ctx context.Context, page *Page) ([]*Corpus, error) {
	return readRecords[Corpus](ctx, c, "api/admin/corpora", page, "read corpora")
}

// UpdateCorpus updates a corpus record.
func (c *Client) UpdateCorpus(ctx context.Context, corpus *Corpus) (*Corpus, error) {
	return sendRecord(ctx, c, http.MethodPut, "api/admin/corpora", corpus, "update corpus")
}

// DeleteCorpus deletes a corpus record by name.
func (c *Client) DeleteCorpus(ctx context.Context, name string) error {
	return c.deleteRecord(ctx, "api/admin/corpora", name, "delete corpus")
}

// CreateProject creates a project record.
func (c *Client) CreateProject(ctx context.Context, project *Project) (*Project, error) {
	return sendRecord(ctx, c, http.MethodPost, "api/admin/projects", project, "create project")
}

// ReadProjects lists project records.
func (c *Client) ReadProjects(ctx context.Context, page *Page) ([]*Project, error) {
	return readRecords[Project](ctx, c, "api/admin/projects", page, "read projects")
}

// UpdateProject updates a project record.
func (c *Client) UpdateProject(ctx context.Context, project *Project) (*Project, error) {
	return sendRecord(ctx, c, http.MethodPut, "api/admin/projects", project, "update project")
}

// DeleteProject deletes a project record by name.
func (c *Client) DeleteProject(ctx context.Context, name string) error {
	return c.deleteRecord(ctx, "api/admin/projects", name, "delete project")
}

// CreateMediaTrack creates a media track record.
func (c *Client) CreateMediaTrack(ctx context.Context, track *MediaTrack) (*MediaTrack, error) {
	return sendRecord(ctx, c, http.MethodPost, "api/admin/mediatracks", track, "create media track")
}

// ReadMediaTracks lists media track records.
func (c *Client) ReadMediaTracks(ctx context.Context, page *Page) ([]*MediaTrack, error) {
	return readRecords[MediaTrack](ctx, c, "api/admin/mediatracks", page, "read media tracks")
}

// UpdateMediaTrack updates a media track record.
func (c *Client) UpdateMediaTrack(ctx context.Context, track *MediaTrack) (*MediaTrack, error) {
	return sendRecord(ctx, c, http.MethodPut, "api/admin/mediatracks", track, "update media track")
}

// DeleteMediaTrack deletes a media track record by suffix.
func (c *Client) DeleteMediaTrack(ctx context.Context, suffix string) error {
	return c.deleteRecord(ctx, "api/admin/mediatracks", suffix, "delete media track")
}

// CreateRole creates a user role record.
func (c *Client) CreateRole(ctx context.Context, role *Role) (*Role, error) {
	return sendRecord(ctx, c, http.MethodPost, "api/admin/roles", role, "create role")
}

// ReadRoles lists user role records.
func (c *Client) ReadRoles(ctx context.Context, page *Page) ([]*Role, error) {
	return readRecords[Role](ctx, c, "api/admin/roles", page, "read roles")
}

// UpdateRole updates a user role record.
func (c *Client) UpdateRole(ctx context.Context, role *Role) (*Role, error) {
	return sendRecord(ctx, c, http.MethodPut, "api/admin/roles", role, "update role")
}

// DeleteRole deletes a user role record by ID.
func (c *Client) DeleteRole(ctx context.Context, id string) error {
	return c.deleteRecord(ctx, "api/admin/roles", id, "delete role")
}

// CreateRolePermission creates a role permission record.
func (c *Client) CreateRolePermission(ctx context.Context, permission *RolePermission) (*RolePermission, error) {
	return sendRecord(ctx, c, http.MethodPost, "api/admin/roles/permissions", permission, "create role permission")
}

// ReadRolePermissions lists the permissions of a role.
func (c *Client) ReadRolePermissions(ctx context.Context, roleID string, page *Page) ([]*RolePermission, error) {
	resource := "api/admin/roles/permissions/" + url.PathEscape(roleID)
	return readRecords[RolePermission](ctx, c, resource, page, "read role permissions")
}

// UpdateRolePermission updates a role permission record.
func (c *Client) UpdateRolePermission(ctx context.Context, permission *RolePermission) (*RolePermission, error) {
	return sendRecord(ctx, c, http.MethodPut, "api/admin/roles/permissions", permission, "update role permission")
}

// DeleteRolePermission deletes the permission of a role for an entity.
func (c *Client) DeleteRolePermission(ctx context.Context, roleID, entity string) error {
	resource := "api/admin/roles/permissions/" + url.PathEscape(roleID)
	return c.deleteRecord(ctx, resource, entity, "delete role permission")
}

// CreateUser creates a user record.
func (c *Client) CreateUser(ctx context.Context, user *User) (*User, error) {
	return sendRecord(ctx, c, http.MethodPost, "api/admin/users", user, "create user")
}

// ReadUsers lists user records.
func (c *Client) ReadUsers(ctx context.Context, page *Page) ([]*User, error) {
	return readRecords[User](ctx, c, "api/admin/users", page, "read users")
}

// UpdateUser updates a user record.
func (c *Client) UpdateUser(ctx context.Context, user *User) (*User, error) {
	return sendRecord(ctx, c, http.MethodPut, "api/admin/users", user, "update user")
}

// DeleteUser deletes a user record by user ID.
func (c *Client) DeleteUser(ctx context.Context, user string) error {
	return c.deleteRecord(ctx, "api/admin/users", user, "delete user")
}

// SetPassword sets a user's password. If resetPassword is true, the user is
// asked to change it at next login.
func (c *Client) SetPassword(ctx context.Context, user, password string, resetPassword bool) error {
	body := struct {
		User          string `json:"user"`
		Password      string `json:"password"`
		ResetPassword bool   `json:"resetPassword"`
	}{user, password, resetPassword}
	return c.sendJSON(ctx, http.MethodPut, "api/admin/password", body, "set password", nil)
}

// ReadSystemAttributes lists the server-wide settings.
func (c *Client) ReadSystemAttributes(ctx context.Context) ([]*SystemAttribute, error) {
	return readRecords[SystemAttribute](ctx, c, "api/admin/systemattributes", nil, "read system attributes")
}

// UpdateSystemAttribute sets the value of a server-wide setting.
func (c *Client) UpdateSystemAttribute(ctx context.Context, attribute, value string) (*SystemAttribute, error) {
	record := &SystemAttribute{Attribute: attribute, Value: value}
	return sendRecord(ctx, c, http.MethodPut, "api/admin/systemattributes", record, "update system attribute")
}

// UpdateInfo replaces the store's information document.
func (c *Client) UpdateInfo(ctx context.Context, html string) error {
	req, err := c.newRequest(ctx, http.MethodPut, "doc/", nil, strings.NewReader(html))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/html; charset=utf-8")
	_, err = c.call(req, "update info", nil)
	return err
}

// LexiconFormat describes the layout of a lexicon file.
type LexiconFormat struct {
	// FieldDelimiter separates fields, e.g. "," or "\t".
	FieldDelimiter string
	// FieldNames is a FieldDelimiter-separated list of field names.
	FieldNames    string
	Quote         string
	Comment       string
	SkipFirstLine bool
}

// LoadLexicon uploads a lexicon file to the lexicon tagger and waits until
// the server has loaded it. An empty lexicon name means the file's name.
func (c *Client) LoadLexicon(ctx context.Context, file, lexicon string, format LexiconFormat) error {
	if lexicon == "" {
		lexicon = filepath.Base(file)
	}

	form := newMultipartForm().
		set("lexicon", lexicon).
		set("fieldDelimiter", format.FieldDelimiter).
		set("quote", format.Quote).
		set("comment", format.Comment).
		set("fieldNames", format.FieldNames).
		set("skipFirstLine", strconv.FormatBool(format.SkipFirstLine)).
		file("file", file)

	req, err := c.newMultipartRequest(ctx, "edit/annotator/ext/"+lexiconTagger+"/loadLexicon", form)
	if err != nil {
		return err
	}
	if _, err := c.readPlainText(req, "load lexicon"); err != nil {
		return err
	}

	// the server loads the lexicon in the background
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	status := "Uploading"
	percentComplete := 0
	for running := true; running; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		text, err := c.AnnotatorExt(ctx, lexiconTagger, "getRunning")
		if err != nil {
			return err
		}
		running = strings.EqualFold(strings.TrimSpace(text), "true")

		if status, err = c.AnnotatorExt(ctx, lexiconTagger, "getStatus"); err != nil {
			return err
		}

		text, err = c.AnnotatorExt(ctx, lexiconTagger, "getPercentComplete")
		if err != nil {
			return err
		}
		if percentComplete, err = strconv.Atoi(strings.TrimSpace(text)); err != nil {
			return fmt.Errorf("load lexicon failed: invalid percent complete %q", text)
		}

		c.logger.Debug().
			Int("percentComplete", percentComplete).
			Str("status", status).
			Bool("running", running).
			Msg("loading lexicon")
	}

	if percentComplete < 100 {
		return fmt.Errorf("load lexicon failed: %s", status)
	}
	return nil
}

// DeleteLexicon deletes a lexicon loaded with LoadLexicon.
func (c *Client) DeleteLexicon(ctx context.Context, lexicon string) error {
	_, err := c.AnnotatorExt(ctx, lexiconTagger, "deleteLexicon", lexicon)
	return err
}
