package labbcat

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/goccy/go-json"
)

// TaskStatus is the state of a long-running server task, such as a search,
// a transcript upload, or layer generation.
type TaskStatus struct {
	ThreadID        string `json:"threadId"`
	ThreadName      string `json:"threadName"`
	Running         bool   `json:"running"`
	Duration        int    `json:"duration"`
	PercentComplete int    `json:"percentComplete"`
	Status          string `json:"status"`
	RefreshSeconds  int    `json:"refreshSeconds"`
	ResultURL       string `json:"resultUrl,omitempty"`
	ResultText      string `json:"resultText,omitempty"`
	Log             string `json:"log,omitempty"`
}

// UnmarshalJSON accepts thread IDs and logs sent as numbers or strings.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	type plain TaskStatus
	var raw struct {
		plain
		ThreadID flexString `json:"threadId"`
		Log      flexString `json:"log"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = TaskStatus(raw.plain)
	s.ThreadID = string(raw.ThreadID)
	s.Log = string(raw.Log)
	return nil
}

func (s *TaskStatus) String() string {
	state := "running...)"
	if !s.Running {
		state = "finished.)"
	}
	str := fmt.Sprintf("threadId: %s (%s) status: %s (%d%% %s",
		s.ThreadID, s.ThreadName, s.Status, s.PercentComplete, state)
	if s.ResultURL != "" {
		str += " " + s.ResultURL
	}
	return str
}

// TaskStatus gets the current status of a task.
func (c *Client) TaskStatus(ctx context.Context, threadID string) (*TaskStatus, error) {
	var status TaskStatus
	params := url.Values{"threadId": {threadID}}
	if err := c.get(ctx, "thread", params, "task status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// WaitForTask polls a task until it finishes, maxWait elapses, or ctx is done.
// A maxWait of zero means wait indefinitely.
//
// The polling interval is the refresh interval suggested by the server, or
// the client's default poll interval if the server suggests none.
//
// If maxWait elapses the last status is returned with no error, and its
// Running field is still true. If ctx is done the last status is returned
// along with ctx.Err().
func (c *Client) WaitForTask(ctx context.Context, threadID string, maxWait time.Duration, opts ...WaitOption) (*TaskStatus, error) {
	o := &waitOptions{}
	for _, opt := range opts {
		opt(o)
	}

	status, err := c.TaskStatus(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if o.progress != nil {
		o.progress(status)
	}

	var deadline time.Time
	if maxWait > 0 {
		deadline = time.Now().Add(maxWait)
	}

	for status.Running {
		interval := o.interval
		if interval <= 0 {
			interval = time.Duration(status.RefreshSeconds) * time.Second
		}
		if interval <= 0 {
			interval = c.pollFloor
		}
		if !deadline.IsZero() {
			if remaining := time.Until(deadline); remaining < interval {
				interval = max(remaining, 0)
			}
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return status, ctx.Err()
		case <-timer.C:
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			c.logger.Debug().Str("threadId", threadID).Dur("maxWait", maxWait).Msg("gave up waiting for task")
			return status, nil
		}

		next, err := c.TaskStatus(ctx, threadID)
		if err != nil {
			return status, err
		}
		status = next
		if o.progress != nil {
			o.progress(status)
		}
	}

	return status, nil
}

// CancelTask asks the server to stop a running task.
func (c *Client) CancelTask(ctx context.Context, threadID string) error {
	params := url.Values{"threadId": {threadID}, "command": {"cancel"}}
	return c.get(ctx, "threads", params, "cancel task", nil)
}

// ReleaseTask frees the server resources held by a finished task, such as
// search results.
func (c *Client) ReleaseTask(ctx context.Context, threadID string) error {
	params := url.Values{"threadId": {threadID}, "command": {"release"}}
	return c.get(ctx, "threads", params, "release task", nil)
}

// Tasks lists the tasks the server knows about, keyed by thread ID.
func (c *Client) Tasks(ctx context.Context) (map[string]*TaskStatus, error) {
	tasks := map[string]*TaskStatus{}
	if err := c.get(ctx, "threads", nil, "get tasks", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
