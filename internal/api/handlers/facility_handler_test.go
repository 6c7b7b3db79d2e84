package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"krishisetu-api-server/internal/api/middleware"
	"krishisetu-api-server/internal/database"
	"krishisetu-api-server/internal/ledger"
	"krishisetu-api-server/internal/models"
	"krishisetu-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sentEvent struct {
	user  string
	event string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Notify(userID, event string, _ any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{user: userID, event: event})
	return nil
}

type fakeUploader struct {
	keys []string
	fail bool
}

func (u *fakeUploader) UploadFile(_ context.Context, file io.Reader, key, contentType string) (string, error) {
	if u.fail {
		return "", errors.New("s3 unavailable")
	}
	if _, err := io.Copy(io.Discard, file); err != nil {
		return "", err
	}
	u.keys = append(u.keys, key)
	return "https://cdn.example.com/" + key, nil
}

type fixture struct {
	handler  *FacilityHandler
	router   *gin.Engine
	notifier *recordingNotifier
	uploader *fakeUploader
	facility *models.Facility
	owner    primitive.ObjectID
	farmer   primitive.ObjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	RegisterValidators()

	l := ledger.New(ledger.NewMemoryStore(), ledger.Options{})
	f := &fixture{
		notifier: &recordingNotifier{},
		uploader: &fakeUploader{},
		owner:    primitive.NewObjectID(),
		farmer:   primitive.NewObjectID(),
	}
	f.handler = &FacilityHandler{Ledger: l, Users: database.NewMemoryUserStore(), Hub: f.notifier, Uploader: f.uploader}

	facility, err := l.CreateFacility(context.Background(), f.owner, ledger.FacilityDraft{
		Name:    "Solapur Cold Store",
		Specs:   models.FacilitySpecs{TotalCapacity: 100},
		Pricing: models.Pricing{PerUnitPerDay: 3},
	})
	require.NoError(t, err)
	f.facility = facility

	r := gin.New()
	// X-User stands in for the authenticated user id.
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, c.GetHeader("X-User"))
		c.Next()
	})
	r.POST("/coldstorage/:id/book", f.handler.CreateBooking)
	r.PUT("/coldstorage/:id/booking/:bookingId", f.handler.UpdateBookingStatus)
	r.POST("/coldstorage/:id/images", f.handler.UploadImage)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path string, user primitive.ObjectID, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", user.Hex())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) book(t *testing.T) string {
	t.Helper()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w := f.do(t, http.MethodPost, "/coldstorage/"+f.facility.ID.Hex()+"/book", f.farmer, gin.H{
		"crop": "pomegranate", "quantity": 20, "startDate": start, "endDate": start.AddDate(0, 0, 2),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Booking struct {
			ID string `json:"id"`
		} `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Booking.ID
}

func TestBookingNotifiesOwnerAndUser(t *testing.T) {
	f := newFixture(t)
	bookingID := f.book(t)

	w := f.do(t, http.MethodPut, fmt.Sprintf("/coldstorage/%s/booking/%s", f.facility.ID.Hex(), bookingID), f.owner, gin.H{"status": "confirmed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, []sentEvent{
		{user: f.owner.Hex(), event: socket.EventBookingCreated},
		{user: f.farmer.Hex(), event: socket.EventBookingStatusChanged},
	}, f.notifier.events)
}

func TestRejectedTransitionSendsNothing(t *testing.T) {
	f := newFixture(t)
	bookingID := f.book(t)
	path := fmt.Sprintf("/coldstorage/%s/booking/%s", f.facility.ID.Hex(), bookingID)

	w := f.do(t, http.MethodPut, path, f.owner, gin.H{"status": "active"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPut, path, f.owner, gin.H{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_transition")

	w = f.do(t, http.MethodPut, path, f.farmer, gin.H{"status": "cancelled"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Len(t, f.notifier.events, 2)
}

func TestUnknownBookingIsNotFound(t *testing.T) {
	f := newFixture(t)
	path := fmt.Sprintf("/coldstorage/%s/booking/%s", f.facility.ID.Hex(), primitive.NewObjectID().Hex())

	w := f.do(t, http.MethodPut, path, f.owner, gin.H{"status": "confirmed"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func multipartImage(t *testing.T, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="front.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func (f *fixture) upload(t *testing.T, user primitive.ObjectID, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartImage(t, contentType)
	req := httptest.NewRequest(http.MethodPost, "/coldstorage/"+f.facility.ID.Hex()+"/images", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-User", user.Hex())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestUploadImage(t *testing.T) {
	f := newFixture(t)

	w := f.upload(t, f.owner, "image/png")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, f.uploader.keys, 1)
	assert.Contains(t, f.uploader.keys[0], "coldstorage/"+f.facility.ID.Hex()+"/")

	stored, err := f.handler.Ledger.GetFacility(context.Background(), f.facility.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/" + f.uploader.keys[0]}, stored.Images)

	w = f.upload(t, f.farmer, "image/png")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.upload(t, f.owner, "application/pdf")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.uploader.fail = true
	w = f.upload(t, f.owner, "image/png")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Len(t, f.uploader.keys, 1)
}

func TestRespondErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{fmt.Errorf("x: %w", ledger.ErrValidation), http.StatusBadRequest, "validation"},
		{fmt.Errorf("x: %w", ledger.ErrInsufficientCapacity), http.StatusBadRequest, "insufficient_capacity"},
		{fmt.Errorf("x: %w", ledger.ErrInvalidTransition), http.StatusBadRequest, "invalid_transition"},
		{fmt.Errorf("x: %w", ledger.ErrAlreadyTerminal), http.StatusBadRequest, "already_terminal"},
		{fmt.Errorf("x: %w", ledger.ErrNotAuthorized), http.StatusForbidden, "forbidden"},
		{fmt.Errorf("x: %w", ledger.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("x: %w", ledger.ErrConcurrentModification), http.StatusConflict, "conflict"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.kind, body["error"])
			assert.NotEmpty(t, body["message"])
			if tc.status == http.StatusInternalServerError {
				assert.NotContains(t, body["message"], "disk on fire")
			}
		})
	}
}
