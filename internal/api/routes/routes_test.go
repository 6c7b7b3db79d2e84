package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"krishisetu-api-server/config"
	"krishisetu-api-server/internal/database"
	"krishisetu-api-server/internal/export"
	"krishisetu-api-server/internal/ledger"
	"krishisetu-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		JWT:       config.JWTConfig{Secret: "routes-test-secret", Expiration: time.Hour},
		RateLimit: config.RateLimitConfig{PerMinute: 600, Burst: 100},
	}
	router := SetupRouter(Dependencies{
		Config: cfg,
		Ledger: ledger.New(ledger.NewMemoryStore(), ledger.Options{}),
		Users:  database.NewMemoryUserStore(),
		Hub:    socket.NewHub(),
	})
	return &testServer{t: t, router: router}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) register(name, email, role string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": name, "email": email, "password": "secret123", "role": role, "phone": "9000000000",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(s.t, w)["token"].(string)
}

func field(m map[string]any, path ...string) any {
	var cur any = m
	for _, p := range path {
		cur = cur.(map[string]any)[p]
	}
	return cur
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	owner := s.register("Owner", "owner@example.com", "coldstorage")
	farmer := s.register("Ramesh", "ramesh@example.com", "farmer")
	rival := s.register("Rival", "rival@example.com", "coldstorage")

	w := s.do(http.MethodPost, "/api/coldstorage", owner, gin.H{
		"name":       "Nashik Cold Chain",
		"location":   gin.H{"city": "Nashik", "state": "Maharashtra"},
		"facilities": gin.H{"totalCapacity": 100, "temperature": 4},
		"pricing":    gin.H{"perUnitPerDay": 2},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	facilityID := field(decode(t, w), "coldStorage", "id").(string)
	base := "/api/coldstorage/" + facilityID

	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	booking := gin.H{"crop": "onion", "quantity": 60, "startDate": start, "endDate": start.AddDate(0, 0, 5)}

	w = s.do(http.MethodPost, base+"/book", farmer, booking)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, 600.0, field(created, "booking", "totalCost"))
	assert.Equal(t, "pending", field(created, "booking", "status"))
	assert.Equal(t, "Nashik Cold Chain", field(created, "booking", "facility"))
	bookingID := field(created, "booking", "id").(string)

	w = s.do(http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode(t, w)
	assert.Equal(t, 40.0, field(detail, "facilities", "availableCapacity"))
	assert.Equal(t, "Owner", field(detail, "owner", "name"))
	bookings := detail["bookings"].([]any)
	require.Len(t, bookings, 1)
	assert.Equal(t, "Ramesh", bookings[0].(map[string]any)["user"].(map[string]any)["name"])

	booking["quantity"] = 50
	w = s.do(http.MethodPost, base+"/book", farmer, booking)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "insufficient_capacity", decode(t, w)["error"])

	statusURL := base + "/booking/" + bookingID
	w = s.do(http.MethodPut, statusURL, rival, gin.H{"status": "cancelled"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, statusURL, owner, gin.H{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, statusURL, owner, gin.H{"status": "cancelled"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "cancelled", field(decode(t, w), "booking", "status"))

	w = s.do(http.MethodGet, base, "", nil)
	assert.Equal(t, 100.0, field(decode(t, w), "facilities", "availableCapacity"))

	w = s.do(http.MethodPut, statusURL, owner, gin.H{"status": "cancelled"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "already_terminal", decode(t, w)["error"])

	w = s.do(http.MethodGet, base, "", nil)
	assert.Equal(t, 100.0, field(decode(t, w), "facilities", "availableCapacity"))
}

func TestBookingListings(t *testing.T) {
	s := newTestServer(t)
	owner := s.register("Owner", "owner@example.com", "coldstorage")
	farmer := s.register("Ramesh", "ramesh@example.com", "farmer")
	rival := s.register("Rival", "rival@example.com", "coldstorage")

	w := s.do(http.MethodPost, "/api/coldstorage", owner, gin.H{
		"name":       "Pune Agri Store",
		"location":   gin.H{"city": "Pune", "state": "Maharashtra"},
		"facilities": gin.H{"totalCapacity": 50},
		"pricing":    gin.H{"perUnitPerDay": 1},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	base := "/api/coldstorage/" + field(decode(t, w), "coldStorage", "id").(string)

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		w = s.do(http.MethodPost, base+"/book", farmer, gin.H{
			"crop": "grapes", "quantity": 10, "startDate": start, "endDate": start.AddDate(0, 0, 2),
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w = s.do(http.MethodGet, "/api/coldstorage/user/bookings", farmer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	require.Len(t, mine, 2)
	assert.Equal(t, "Pune Agri Store", field(mine[0], "facility", "name"))

	w = s.do(http.MethodGet, "/api/coldstorage/user/bookings", rival, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = s.do(http.MethodGet, base+"/bookings", rival, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, base+"/bookings", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ownerView []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ownerView))
	assert.Len(t, ownerView, 2)

	w = s.do(http.MethodGet, base+"/bookings/export", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentTypeXLSX, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	w = s.do(http.MethodGet, "/api/coldstorage/owner/my-facilities", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var owned []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &owned))
	assert.Len(t, owned, 1)
}

func TestErrorsAndAccessControl(t *testing.T) {
	s := newTestServer(t)
	farmer := s.register("Ramesh", "ramesh@example.com", "farmer")

	w := s.do(http.MethodGet, "/api/coldstorage/"+primitive.NewObjectID().Hex(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["error"])

	w = s.do(http.MethodGet, "/api/coldstorage/not-an-id", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/coldstorage", farmer, gin.H{"name": "Mine"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/coldstorage/"+primitive.NewObjectID().Hex()+"/book", "", gin.H{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/coldstorage/"+primitive.NewObjectID().Hex()+"/book", farmer, gin.H{
		"crop": "onion", "quantity": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Dup", "email": "ramesh@example.com", "password": "secret123", "role": "farmer",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ramesh@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ramesh@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["token"])
}

func TestFacilitySearch(t *testing.T) {
	s := newTestServer(t)
	owner := s.register("Owner", "owner@example.com", "coldstorage")

	for _, f := range []gin.H{
		{"name": "Nashik One", "location": gin.H{"city": "Nashik"}, "facilities": gin.H{"totalCapacity": 500}},
		{"name": "Nashik Two", "location": gin.H{"city": "NASHIK"}, "facilities": gin.H{"totalCapacity": 50}},
		{"name": "Indore", "location": gin.H{"city": "Indore"}, "facilities": gin.H{"totalCapacity": 500}},
	} {
		w := s.do(http.MethodPost, "/api/coldstorage", owner, f)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := s.do(http.MethodGet, "/api/coldstorage?city=nash&minCapacity=100", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode(t, w)
	assert.Equal(t, 1.0, page["total"])
	assert.Equal(t, 1.0, page["totalPages"])
	assert.Equal(t, "Nashik One", page["coldStorages"].([]any)[0].(map[string]any)["name"])

	w = s.do(http.MethodGet, "/api/coldstorage?limit=2&page=2", "", nil)
	page = decode(t, w)
	assert.Equal(t, 3.0, page["total"])
	assert.Equal(t, 2.0, page["totalPages"])
	assert.Len(t, page["coldStorages"].([]any), 1)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "krishisetu_http_requests_total")
}

func (s *testServer) createFacility(owner string, capacity int) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/coldstorage", owner, gin.H{
		"name":       "Pune Agro Cold",
		"location":   gin.H{"city": "Pune", "state": "Maharashtra"},
		"facilities": gin.H{"totalCapacity": capacity},
		"pricing":    gin.H{"perUnitPerDay": 2},
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return field(decode(s.t, w), "coldStorage", "id").(string)
}

func TestFacilityDetailHidesBookerEmail(t *testing.T) {
	s := newTestServer(t)
	owner := s.register("Owner", "owner@example.com", "coldstorage")
	farmer := s.register("Ramesh", "ramesh@example.com", "farmer")
	base := "/api/coldstorage/" + s.createFacility(owner, 100)

	w := s.do(http.MethodPost, base+"/book", farmer, gin.H{
		"crop": "grapes", "quantity": 10, "startDate": "2026-01-10", "endDate": "2026-01-15",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "ramesh@example.com")
	detail := decode(t, w)
	user := detail["bookings"].([]any)[0].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "Ramesh", user["name"])
	assert.Equal(t, "9000000000", user["phone"])
	assert.NotContains(t, user, "email")
	assert.Equal(t, "owner@example.com", field(detail, "owner", "email"))

	w = s.do(http.MethodGet, base+"/bookings", owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "ramesh@example.com")
}

func TestBookingDateFormats(t *testing.T) {
	s := newTestServer(t)
	owner := s.register("Owner", "owner@example.com", "coldstorage")
	farmer := s.register("Ramesh", "ramesh@example.com", "farmer")
	base := "/api/coldstorage/" + s.createFacility(owner, 100)

	cases := []struct {
		name       string
		start, end string
		status     int
		cost       float64
	}{
		{"date only", "2026-01-10", "2026-01-15", http.StatusCreated, 100},
		{"rfc3339", "2026-01-10T00:00:00Z", "2026-01-12T06:00:00+05:30", http.StatusCreated, 60},
		{"unparseable", "10/01/2026", "2026-01-15", http.StatusBadRequest, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(http.MethodPost, base+"/book", farmer, gin.H{
				"crop": "onion", "quantity": 10, "startDate": tc.start, "endDate": tc.end,
			})
			require.Equal(t, tc.status, w.Code, w.Body.String())
			body := decode(t, w)
			if tc.status != http.StatusCreated {
				assert.Equal(t, "validation", body["error"])
				return
			}
			assert.Equal(t, tc.cost, field(body, "booking", "totalCost"))
		})
	}
}
