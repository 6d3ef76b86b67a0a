package handler_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/auth"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"github.com/loopwork-studio/agency-api/internal/storage"
	"github.com/loopwork-studio/agency-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deliverableFixture struct {
	env     *handlerEnv
	member  *auth.UserContext
	client  *auth.UserContext
	project *domain.Project
}

func newDeliverableFixture(t *testing.T, store storage.Storage) *deliverableFixture {
	t.Helper()
	env := newHandlerEnv(t, store)
	client := testutil.CreateTestClient(t, env.db, "Acme", "")
	return &deliverableFixture{
		env:     env,
		member:  testutil.MemberUser(),
		client:  testutil.ClientUser(client.ID),
		project: testutil.CreateTestProject(t, env.db, &client.ID, ""),
	}
}

func (f *deliverableFixture) do(t *testing.T, fn http.HandlerFunc, method string, body interface{}, actor *auth.UserContext, id string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	fn(rr, newRequest(t, method, "/deliverables", body, actor, id))
	return rr
}

func (f *deliverableFixture) create(t *testing.T) domain.DeliverableDTO {
	t.Helper()
	body := map[string]interface{}{
		"projectId": f.project.ID,
		"title":     "Launch video",
		"type":      "video",
		"fileUrl":   "https://files.example/launch-v1.mp4",
	}
	rr := f.do(t, f.env.deliverables.Create, http.MethodPost, body, f.member, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[domain.DeliverableDTO](t, rr)
}

func TestDeliverableHandler_CreateValidation(t *testing.T) {
	f := newDeliverableFixture(t, nil)

	rr := f.do(t, f.env.deliverables.Create, http.MethodPost, map[string]interface{}{
		"projectId": f.project.ID,
		"title":     "Logo",
		"type":      "hologram",
	}, f.member, "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeAPIError(t, rr).Errors, "type")
}

func TestDeliverableHandler_ReviewFlow(t *testing.T) {
	f := newDeliverableFixture(t, nil)
	d := f.create(t)
	id := d.ID.String()

	rr := f.do(t, f.env.deliverables.Submit, http.MethodPost, nil, f.member, id)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.DeliverableStatusInReview, decodeBody[domain.DeliverableDTO](t, rr).Status)

	t.Run("member cannot approve without the agency approval flag", func(t *testing.T) {
		rr := f.do(t, f.env.deliverables.Approve, http.MethodPost, nil, f.member, id)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("reject needs feedback", func(t *testing.T) {
		rr := f.do(t, f.env.deliverables.Reject, http.MethodPost, nil, f.client, id)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		apiErr := decodeAPIError(t, rr)
		assert.Equal(t, domain.ErrorTypeValidation, apiErr.Type)
		assert.Contains(t, apiErr.Errors, "feedback")
	})

	t.Run("client approves with an empty body", func(t *testing.T) {
		rr := f.do(t, f.env.deliverables.Approve, http.MethodPost, nil, f.client, id)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, domain.DeliverableStatusApproved, decodeBody[domain.DeliverableDTO](t, rr).Status)
	})

	t.Run("approving again is an invalid transition", func(t *testing.T) {
		rr := f.do(t, f.env.deliverables.Approve, http.MethodPost, nil, f.client, id)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, domain.ErrorTypeInvalidTransition, decodeAPIError(t, rr).Type)
	})

	t.Run("finalize then edits conflict", func(t *testing.T) {
		rr := f.do(t, f.env.deliverables.Finalize, http.MethodPost, nil, f.member, id)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, domain.DeliverableStatusFinal, decodeBody[domain.DeliverableDTO](t, rr).Status)

		rr = f.do(t, f.env.deliverables.Update, http.MethodPatch, map[string]interface{}{"title": "Renamed"}, f.member, id)
		assert.Equal(t, http.StatusConflict, rr.Code)

		rr = f.do(t, f.env.deliverables.Delete, http.MethodDelete, nil, f.member, id)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestDeliverableHandler_ClientVisibility(t *testing.T) {
	f := newDeliverableFixture(t, nil)
	d := f.create(t)
	id := d.ID.String()

	rr := f.do(t, f.env.deliverables.GetByID, http.MethodGet, nil, f.client, id)
	assert.Equal(t, http.StatusNotFound, rr.Code, "drafts are hidden from clients")

	stranger := testutil.ClientUser(uuid.New())
	f.do(t, f.env.deliverables.Submit, http.MethodPost, nil, f.member, id)

	rr = f.do(t, f.env.deliverables.GetByID, http.MethodGet, nil, stranger, id)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, f.env.deliverables.AddComment, http.MethodPost, map[string]interface{}{"body": "Agency only", "isInternal": true}, f.member, id)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = f.do(t, f.env.deliverables.AddComment, http.MethodPost, map[string]interface{}{"body": "Looks great"}, f.client, id)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = f.do(t, f.env.deliverables.ListComments, http.MethodGet, nil, f.client, id)
	require.Equal(t, http.StatusOK, rr.Code)
	comments := decodeBody[[]domain.CommentDTO](t, rr)
	require.Len(t, comments, 1)
	assert.Equal(t, "Looks great", comments[0].Body)

	rr = f.do(t, f.env.deliverables.GetByID, http.MethodGet, nil, f.client, id)
	require.Equal(t, http.StatusOK, rr.Code)
	detail := decodeBody[domain.DeliverableDetailDTO](t, rr)
	assert.Len(t, detail.Comments, 1)
	assert.Len(t, detail.Versions, 1)

	rr = f.do(t, f.env.deliverables.AddComment, http.MethodPost, map[string]interface{}{"body": "sneaky", "isInternal": true}, f.client, id)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func uploadRequest(t *testing.T, actor *auth.UserContext, id, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("notes", "Color graded"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/deliverables/"+id+"/versions/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return withActorAndID(req, actor, id)
}

func TestDeliverableHandler_UploadVersion(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir, 1024*1024)
	require.NoError(t, err)

	f := newDeliverableFixture(t, store)
	d := f.create(t)
	id := d.ID.String()

	rr := httptest.NewRecorder()
	f.env.deliverables.UploadVersion(rr, uploadRequest(t, f.member, id, "cut-v2.MP4", []byte("frames")))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	version := decodeBody[domain.DeliverableVersionDTO](t, rr)
	assert.Equal(t, 2, version.VersionNumber)
	assert.Equal(t, "Color graded", version.Notes)
	assert.Equal(t, ".mp4", filepath.Ext(version.FileURL))

	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(version.FileURL)))
	require.NoError(t, err)
	assert.Equal(t, "frames", string(stored))

	t.Run("client upload is forbidden", func(t *testing.T) {
		rr := httptest.NewRecorder()
		f.env.deliverables.UploadVersion(rr, uploadRequest(t, f.client, id, "x.png", []byte("x")))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("notes", "nothing attached"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/deliverables/"+id+"/versions/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		rr := httptest.NewRecorder()
		f.env.deliverables.UploadVersion(rr, withActorAndID(req, f.member, id))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestDeliverableHandler_UploadWithoutStorage(t *testing.T) {
	f := newDeliverableFixture(t, nil)
	d := f.create(t)

	rr := httptest.NewRecorder()
	f.env.deliverables.UploadVersion(rr, uploadRequest(t, f.member, d.ID.String(), "a.png", []byte("png")))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
