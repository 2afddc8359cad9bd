package labbcat

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Alignment values for Layer.Alignment.
const (
	AlignmentNone     = 0
	AlignmentInstant  = 1
	AlignmentInterval = 2
)

// Layer describes an annotation layer in the store's schema.
type Layer struct {
	ID             string            `json:"id"`
	ParentID       string            `json:"parentId,omitempty"`
	Description    string            `json:"description,omitempty"`
	Alignment      int               `json:"alignment"`
	Peers          bool              `json:"peers"`
	PeersOverlap   bool              `json:"peersOverlap"`
	ParentIncludes bool              `json:"parentIncludes"`
	Saturated      bool              `json:"saturated"`
	Type           string            `json:"type,omitempty"`
	ValidLabels    map[string]string `json:"validLabels,omitempty"`
	Category       string            `json:"category,omitempty"`
}

// Annotation is a labelled node in an annotation graph. Participant records
// carry their attributes as child annotations keyed by layer ID.
type Annotation struct {
	ID          string                   `json:"id,omitempty"`
	LayerID     string                   `json:"layerId,omitempty"`
	Label       string                   `json:"label"`
	StartID     string                   `json:"startId,omitempty"`
	EndID       string                   `json:"endId,omitempty"`
	ParentID    string                   `json:"parentId,omitempty"`
	Ordinal     int                      `json:"ordinal,omitempty"`
	Confidence  int                      `json:"confidence,omitempty"`
	Annotator   string                   `json:"annotator,omitempty"`
	When        string                   `json:"when,omitempty"`
	Annotations map[string][]*Annotation `json:"annotations,omitempty"`
}

// Anchor is a point in time that annotations start or end at.
type Anchor struct {
	ID         string   `json:"id"`
	Offset     *float64 `json:"offset,omitempty"`
	Confidence int      `json:"confidence,omitempty"`
}

// MediaTrackDefinition describes a media track that transcripts may have.
type MediaTrackDefinition struct {
	Suffix      string `json:"suffix"`
	Description string `json:"description"`
}

// MediaFile describes a media file or document attached to a transcript.
type MediaFile struct {
	Name        string `json:"name"`
	TrackSuffix string `json:"trackSuffix"`
	MimeType    string `json:"mimeType"`
	URL         string `json:"url"`
	Type        string `json:"type,omitempty"`
}

// SerializationDescriptor describes a transcript format the server can
// import or export.
type SerializationDescriptor struct {
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	MimeType          string   `json:"mimeType"`
	Icon              string   `json:"icon,omitempty"`
	NumberOfInputs    int      `json:"numberOfInputs"`
	FileSuffixes      []string `json:"fileSuffixes,omitempty"`
	MinimumAPIVersion string   `json:"minimumApiVersion,omitempty"`
}

// Corpus is a corpus record.
type Corpus struct {
	ID          int    `json:"corpus_id,omitempty"`
	Name        string `json:"corpus_name"`
	Language    string `json:"corpus_language"`
	Description string `json:"corpus_description"`
}

// Project is a project record, used to group layers.
type Project struct {
	ID          int    `json:"project_id,omitempty"`
	Name        string `json:"project"`
	Description string `json:"description"`
}

// MediaTrack is an administrable media track record.
type MediaTrack struct {
	Suffix       string `json:"suffix"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"display_order"`
}

// Role is a user role record.
type Role struct {
	ID          string `json:"role_id"`
	Description string `json:"description"`
}

// RolePermission grants a role access to an entity (e.g. "t" for transcripts,
// "a" for audio) for transcripts whose attribute LayerID matches ValuePattern.
type RolePermission struct {
	RoleID       string
	Entity       string
	LayerID      string
	ValuePattern string
}

type rolePermissionJSON struct {
	RoleID        string `json:"role_id"`
	Entity        string `json:"entity"`
	AttributeName string `json:"attribute_name"`
	ValuePattern  string `json:"value_pattern"`
}

// MarshalJSON encodes the permission in the server's form, where the layer
// is named by its transcript attribute name.
func (p RolePermission) MarshalJSON() ([]byte, error) {
	return json.Marshal(rolePermissionJSON{
		RoleID:        p.RoleID,
		Entity:        p.Entity,
		AttributeName: strings.TrimPrefix(p.LayerID, "transcript_"),
		ValuePattern:  p.ValuePattern,
	})
}

// UnmarshalJSON decodes the server's form.
func (p *RolePermission) UnmarshalJSON(data []byte) error {
	var raw rolePermissionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.RoleID = raw.RoleID
	p.Entity = raw.Entity
	p.LayerID = ""
	if raw.AttributeName != "" {
		p.LayerID = "transcript_" + raw.AttributeName
	}
	p.ValuePattern = raw.ValuePattern
	return nil
}

// User is a user account record.
type User struct {
	User          string
	Email         string
	ResetPassword bool
	Roles         []string
}

type userJSON struct {
	User          string   `json:"user"`
	Email         *string  `json:"email,omitempty"`
	ResetPassword *int     `json:"resetPassword,omitempty"`
	Roles         []string `json:"roles"`
}

// MarshalJSON encodes ResetPassword as 0 or 1, as the server expects.
func (u User) MarshalJSON() ([]byte, error) {
	reset := 0
	if u.ResetPassword {
		reset = 1
	}
	raw := userJSON{User: u.User, ResetPassword: &reset, Roles: u.Roles}
	if u.Email != "" {
		raw.Email = &u.Email
	}
	if raw.Roles == nil {
		raw.Roles = []string{}
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes the server's form, where email may be null.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw userJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.User = raw.User
	u.Email = ""
	if raw.Email != nil {
		u.Email = *raw.Email
	}
	u.ResetPassword = raw.ResetPassword != nil && *raw.ResetPassword != 0
	u.Roles = raw.Roles
	return nil
}

// SystemAttribute is a server-wide setting.
type SystemAttribute struct {
	Attribute   string            `json:"attribute"`
	Type        string            `json:"type,omitempty"`
	Style       string            `json:"style,omitempty"`
	Label       string            `json:"label,omitempty"`
	Description string            `json:"description,omitempty"`
	Options     map[string]string `json:"options,omitempty"`
	Value       string            `json:"value"`
}

// Parameter is one configurable setting of a transcript upload.
type Parameter struct {
	Name           string        `json:"name"`
	Label          string        `json:"label,omitempty"`
	Hint           string        `json:"hint,omitempty"`
	Type           string        `json:"type,omitempty"`
	Required       bool          `json:"required,omitempty"`
	Value          interface{}   `json:"value"`
	PossibleValues []interface{} `json:"possibleValues,omitempty"`
}

// Upload is an in-progress transcript upload.
type Upload struct {
	ID         string       `json:"id"`
	Parameters []*Parameter `json:"parameters,omitempty"`
	// Transcripts maps transcript names to the IDs of the tasks processing them.
	Transcripts map[string]string `json:"transcripts,omitempty"`
}

// Parameter returns the named parameter, or nil.
func (u *Upload) Parameter(name string) *Parameter {
	for _, p := range u.Parameters {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// SetParameter sets the value of the named parameter, if the upload has it.
func (u *Upload) SetParameter(name string, value interface{}) {
	if p := u.Parameter(name); p != nil {
		p.Value = value
	}
}

// flexString decodes any JSON scalar as a string; the server sends some IDs
// as numbers and some as strings.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	if string(data) == "null" {
		*s = ""
		return nil
	}
	*s = flexString(strings.TrimSpace(string(data)))
	return nil
}

// formatOffset formats an offset for a request parameter.
func formatOffset(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
