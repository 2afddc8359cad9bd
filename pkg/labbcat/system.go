package labbcat

import (
	"context"
	"io"
	"net/url"
	"strings"
)

// SystemAttribute gets the value of a public system attribute, such as
// "title". It returns "" with no error if the attribute does not exist.
func (c *Client) SystemAttribute(ctx context.Context, name string) (string, error) {
	var model struct {
		Value flexString `json:"value"`
	}
	err := c.get(ctx, "api/systemattributes/"+url.PathEscape(name), nil, "get system attribute", &model)
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return string(model.Value), nil
}

// UserInfo gets the record of the logged-in user.
func (c *Client) UserInfo(ctx context.Context) (*User, error) {
	var user User
	if err := c.get(ctx, "api/user", nil, "get user info", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Dictionaries lists the dictionaries available, keyed by the ID of the
// layer manager that provides them.
func (c *Client) Dictionaries(ctx context.Context) (map[string][]string, error) {
	dictionaries := map[string][]string{}
	if err := c.get(ctx, "dictionaries", nil, "get dictionaries", &dictionaries); err != nil {
		return nil, err
	}
	return dictionaries, nil
}

// DictionaryEntries looks up keys in a dictionary and writes a CSV of the
// entries to w.
func (c *Client) DictionaryEntries(ctx context.Context, managerID, dictionaryID string, keys []string, w io.Writer) error {
	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteByte('\n')
	}

	form := newMultipartForm().
		set("managerId", managerID).
		set("dictionaryId", dictionaryID).
		content("uploadfile", "keys.csv", []byte(sb.String()))

	req, err := c.newMultipartRequest(ctx, "dictionary", form)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/csv")

	return c.copyTo(req, "get dictionary entries", w)
}
