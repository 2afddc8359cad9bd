package storetest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzilbb/labbcat-go/pkg/labbcat"
)

func setupServer(t *testing.T, opts ...Option) (*Server, *labbcat.Client) {
	t.Helper()

	server := New(DemoFixtures(), opts...)
	t.Cleanup(server.Close)

	client, err := labbcat.NewClient(server.BaseURL(),
		labbcat.WithCredentials("labbcat", "secret"),
		labbcat.WithRetries(0),
		labbcat.WithTimeout(10*time.Second),
		labbcat.WithDefaultPollInterval(10*time.Millisecond),
	)
	require.NoError(t, err)
	return server, client
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestServer_StoreQueries(t *testing.T) {
	_, client := setupServer(t)
	ctx := context.Background()

	id, err := client.ID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "labbcat-demo", id)
	assert.Equal(t, DefaultVersion, client.ServerVersion())

	info, err := client.Info(ctx)
	require.NoError(t, err)
	assert.Contains(t, info, "LaBB-CAT demo")

	corpora, err := client.CorpusIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"QB", "UC"}, corpora)

	layer, err := client.Layer(ctx, "orthography")
	require.NoError(t, err)
	assert.Equal(t, "word", layer.ParentID)

	_, err = client.Layer(ctx, "nonexistent")
	assert.True(t, labbcat.IsNotFound(err))

	ids, err := client.TranscriptIDsInCorpus(ctx, "UC")
	require.NoError(t, err)
	assert.Equal(t, []string{"UC427_ViktoriaPapp_A_ENG.eaf"}, ids)

	ids, err = client.TranscriptIDsWithParticipant(ctx, "Interviewer")
	require.NoError(t, err)
	assert.Equal(t, []string{"AP511_MikeThorpe.eaf"}, ids)
}

func TestServer_MatchingIDs(t *testing.T) {
	_, client := setupServer(t)
	ctx := context.Background()

	n, err := client.CountMatchingParticipantIDs(ctx, "labels('corpus').includes('QB')")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids, err := client.MatchingParticipantIDs(ctx, "/^AP.+/.test(id)", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"AP511_MikeThorpe"}, ids)

	ids, err = client.MatchingTranscriptIDs(ctx, "/.+\\.eaf/.test(id)", &labbcat.Page{Length: 1, Number: 0}, "id DESC")
	require.NoError(t, err)
	assert.Equal(t, []string{"UC427_ViktoriaPapp_A_ENG.eaf"}, ids)

	_, err = client.CountMatchingTranscriptIDs(ctx, "first('corpus')")
	require.Error(t, err)
	var respErr *labbcat.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Contains(t, respErr.Error(), "Invalid expression")
}

func TestServer_Annotations(t *testing.T) {
	_, client := setupServer(t)
	ctx := context.Background()

	n, err := client.CountAnnotations(ctx, "AP511_MikeThorpe.eaf", "orthography")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	page, err := client.Annotations(ctx, "AP511_MikeThorpe.eaf", "orthography", &labbcat.Page{Length: 2, Number: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "went", page[0].Label)

	_, err = client.Annotations(ctx, "missing.eaf", "orthography", nil)
	assert.True(t, labbcat.IsNotFound(err))
}

func TestServer_Participant(t *testing.T) {
	_, client := setupServer(t)
	ctx := context.Background()

	participant, err := client.Participant(ctx, "AP511_MikeThorpe", "participant_gender")
	require.NoError(t, err)
	require.NotNil(t, participant)
	require.Len(t, participant.Annotations["participant_gender"], 1)
	assert.Equal(t, "M", participant.Annotations["participant_gender"][0].Label)

	participant, err = client.Participant(ctx, "AP511_MikeThorpe")
	require.NoError(t, err)
	assert.Empty(t, participant.Annotations)

	participant, err = client.Participant(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, participant)
}

func TestServer_Search(t *testing.T) {
	server, client := setupServer(t)
	ctx := context.Background()

	pattern := labbcat.NewPatternBuilder().AddMatchLayer("orthography", "knox").Build()
	matches, err := client.SearchMatches(ctx, pattern, 1, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "AP511_MikeThorpe.eaf", matches[0].Transcript)

	assert.Contains(t, server.SearchPattern("1"), "knox")
	assert.True(t, server.Released("1"))

	_, err = client.Matches(ctx, "1", 0, nil)
	assert.True(t, labbcat.IsNotFound(err))
}

func TestServer_Tasks(t *testing.T) {
	server, client := setupServer(t)
	ctx := context.Background()

	server.AddTask(labbcat.TaskStatus{ThreadID: "99", ThreadName: "generate", Running: true, PercentComplete: 40})

	tasks, err := client.Tasks(ctx)
	require.NoError(t, err)
	require.Contains(t, tasks, "99")
	assert.True(t, tasks["99"].Running)

	require.NoError(t, client.CancelTask(ctx, "99"))
	assert.True(t, server.Cancelled("99"))

	status, err := client.TaskStatus(ctx, "99")
	require.NoError(t, err)
	assert.False(t, status.Running)

	require.NoError(t, client.ReleaseTask(ctx, "99"))
	_, err = client.TaskStatus(ctx, "99")
	assert.True(t, labbcat.IsNotFound(err))
}

func TestServer_NewTranscript(t *testing.T) {
	server, client := setupServer(t)
	ctx := context.Background()

	transcript := writeFile(t, "new.eaf", "<ANNOTATION_DOCUMENT/>")
	media := writeFile(t, "new.wav", "RIFF")

	threadID, err := client.NewTranscript(ctx, transcript, []string{media}, "", "interview", "UC", "new")
	require.NoError(t, err)
	require.NotEmpty(t, threadID)

	status, err := client.WaitForTask(ctx, threadID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Finished.", status.Status)

	assert.Equal(t, []string{"new.eaf"}, server.Uploaded())
	assert.True(t, server.HasTranscript("new.eaf"))

	ids, err := client.TranscriptIDsInCorpus(ctx, "UC")
	require.NoError(t, err)
	assert.Contains(t, ids, "new.eaf")
}

func TestServer_UpdateTranscript(t *testing.T) {
	_, client := setupServer(t)
	ctx := context.Background()

	existing := writeFile(t, "AP511_MikeThorpe.eaf", "<ANNOTATION_DOCUMENT/>")
	threadID, err := client.UpdateTranscript(ctx, existing, false)
	require.NoError(t, err)
	assert.NotEmpty(t, threadID)

	missing := writeFile(t, "missing.eaf", "<ANNOTATION_DOCUMENT/>")
	_, err = client.UpdateTranscript(ctx, missing, true)
	require.Error(t, err)
}

func TestServer_UploadDelete(t *testing.T) {
	_, client := setupServer(t)
	ctx := context.Background()

	upload, err := client.TranscriptUpload(ctx, writeFile(t, "draft.eaf", "x"), nil, false)
	require.NoError(t, err)
	require.NoError(t, client.TranscriptUploadDelete(ctx, upload.ID))

	err = client.TranscriptUploadDelete(ctx, upload.ID)
	assert.True(t, labbcat.IsNotFound(err))
}

func TestServer_Delete(t *testing.T) {
	server, client := setupServer(t)
	ctx := context.Background()

	require.NoError(t, client.DeleteTranscript(ctx, "AP511_MikeThorpe.eaf"))
	assert.False(t, server.HasTranscript("AP511_MikeThorpe.eaf"))

	err := client.DeleteTranscript(ctx, "AP511_MikeThorpe.eaf")
	assert.True(t, labbcat.IsNotFound(err))

	require.NoError(t, client.DeleteParticipant(ctx, "Interviewer"))
	ids, err := client.ParticipantIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, "Interviewer")
}

func TestServer_SoundFragments(t *testing.T) {
	_, client := setupServer(t)
	ctx := context.Background()
	dir := t.TempDir()

	paths, err := client.SoundFragments(ctx,
		[]string{"AP511_MikeThorpe.eaf", "missing.eaf"},
		[]float64{10.5, 1},
		[]float64{12.25, 2},
		0, dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, labbcat.FragmentName("AP511_MikeThorpe.eaf", 10.5, 12.25)+".wav"), paths[0])
	assert.Empty(t, paths[1])

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))
}

func TestServer_AdminLists(t *testing.T) {
	_, client := setupServer(t)
	ctx := context.Background()

	users, err := client.ReadUsers(ctx, nil)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "jane", users[1].User)
	assert.True(t, users[1].ResetPassword)

	corpora, err := client.ReadCorpora(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "QB", corpora[0].Name)

	tracks, err := client.ReadMediaTracks(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "_face", tracks[1].Suffix)
}

func TestServer_Credentials(t *testing.T) {
	server := New(DemoFixtures(), WithCredentials("labbcat", "secret"))
	defer server.Close()
	ctx := context.Background()

	good, err := labbcat.NewClient(server.BaseURL(), labbcat.WithCredentials("labbcat", "secret"), labbcat.WithRetries(0))
	require.NoError(t, err)
	_, err = good.ID(ctx)
	require.NoError(t, err)

	bad, err := labbcat.NewClient(server.BaseURL(), labbcat.WithCredentials("labbcat", "wrong"), labbcat.WithRetries(0))
	require.NoError(t, err)
	_, err = bad.ID(ctx)
	assert.ErrorIs(t, err, labbcat.ErrInvalidCredentials)
}

func TestServer_VersionTooOld(t *testing.T) {
	server := New(DemoFixtures(), WithVersion("20200101.0000"))
	defer server.Close()

	client, err := labbcat.NewClient(server.BaseURL(),
		labbcat.WithRetries(0),
		labbcat.WithMinimumServerVersion("20230101.0000"),
	)
	require.NoError(t, err)

	_, err = client.ID(context.Background())
	assert.True(t, labbcat.IsVersionMismatch(err))
}

func TestCompileExpression(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		id         string
		corpora    []string
		want       bool
	}{
		{"id regex match", "/^AP/.test(id)", "AP511", nil, true},
		{"id regex miss", "/^AP/.test(id)", "UC427", nil, false},
		{"corpus match", "labels('corpus').includes('QB')", "x", []string{"UC", "QB"}, true},
		{"corpus miss", "labels('corpus').includes('QB')", "x", []string{"UC"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := compileExpression(tt.expression)
			require.NoError(t, err)
			assert.Equal(t, tt.want, match(tt.id, tt.corpora))
		})
	}

	_, err := compileExpression("/[/.test(id)")
	assert.Error(t, err)
	_, err = compileExpression("all('word')")
	assert.Error(t, err)
}
