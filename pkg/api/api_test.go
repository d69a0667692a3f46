package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"driverledger/pkg/auth"
	"driverledger/pkg/logger"
	"driverledger/pkg/metrics"
	"driverledger/pkg/models"
	"driverledger/service"
	"driverledger/storage"
	"driverledger/storage/memory"
)

type response struct {
	Status    int             `json:"status"`
	Message   string          `json:"message"`
	Kind      string          `json:"kind"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

type APISuite struct {
	suite.Suite
	router http.Handler
	tokens *auth.TokenService
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	reg := prometheus.NewRegistry()
	svc := service.New(memory.New(1024), logger.NewNop(), metrics.New(reg), nil)
	s.tokens = auth.NewTokenService("test-secret", "driverledger", time.Hour)
	s.router = NewRouter(svc, s.tokens, reg, logger.NewNop())
}

func (s *APISuite) do(method, path string, as models.Identity, body interface{}) (*httptest.ResponseRecorder, response) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		token, err := s.tokens.Issue(as)
		s.Require().NoError(err)
		req.Header.Set(HeaderAuthorization, BearerPrefix+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func (s *APISuite) registerPlatform(owner models.Identity) models.Platform {
	rec, resp := s.do(http.MethodPost, "/api/platforms", owner, jsonBody{"name": "Rapido"})
	s.Require().Equal(http.StatusCreated, rec.Code, resp.Message)
	var p models.Platform
	s.Require().NoError(json.Unmarshal(resp.Data, &p))
	return p
}

func (s *APISuite) registerDriver(owner models.Identity, platform models.Platform, driver, plate string) models.DriverProfile {
	rec, resp := s.do(http.MethodPost, "/api/platforms/"+platform.Address.String()+"/drivers", owner, jsonBody{
		"driver_identity": driver,
		"name":            "Raju",
		"license_plate":   plate,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, resp.Message)
	var out struct {
		Driver models.DriverProfile `json:"driver"`
	}
	s.Require().NoError(json.Unmarshal(resp.Data, &out))
	return out.Driver
}

type jsonBody map[string]interface{}

func (s *APISuite) TestHealth() {
	rec, resp := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(http.StatusOK, resp.Status)
	s.NotEmpty(rec.Header().Get(HeaderXRequestID))
	s.Equal(rec.Header().Get(HeaderXRequestID), resp.RequestID)

	var health map[string]string
	s.Require().NoError(json.Unmarshal(resp.Data, &health))
	s.Equal("ok", health["status"])
}

func (s *APISuite) TestRequestIDEchoed() {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderXRequestID, "6f1c2b9e-4a1d-4c53-9a43-0f6e1f0b2d11")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal("6f1c2b9e-4a1d-4c53-9a43-0f6e1f0b2d11", rec.Header().Get(HeaderXRequestID))
}

func (s *APISuite) TestWritesRequireToken() {
	rec, resp := s.do(http.MethodPost, "/api/platforms", "", jsonBody{"name": "Rapido"})
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal(http.StatusUnauthorized, resp.Status)

	req := httptest.NewRequest(http.MethodPost, "/api/platforms", strings.NewReader(`{"name":"Rapido"}`))
	req.Header.Set(HeaderAuthorization, BearerPrefix+"garbage")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APISuite) TestRegisterAndReviewFlow() {
	platform := s.registerPlatform("owner-a")
	driver := s.registerDriver("owner-a", platform, "driver-raju", "ka-01-1234")
	s.Equal("KA-01-1234", driver.LicensePlate)

	for i, rating := range []int{5, 4, 1} {
		rec, resp := s.do(http.MethodPost, "/api/drivers/"+driver.Address.String()+"/reviews",
			models.Identity(fmt.Sprintf("rider-%d", i)), jsonBody{"rating": rating, "content_pointer": fmt.Sprintf("ar://%d", i)})
		s.Require().Equal(http.StatusCreated, rec.Code, resp.Message)

		var review models.Review
		s.Require().NoError(json.Unmarshal(resp.Data, &review))
		s.Equal(uint64(i), review.Index)
	}

	rec, resp := s.do(http.MethodGet, "/api/plates/KA-01-1234", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var view struct {
		models.DriverProfile
		AverageRating *float64 `json:"average_rating"`
	}
	s.Require().NoError(json.Unmarshal(resp.Data, &view))
	s.Equal(uint64(10), view.RatingSum)
	s.Equal(uint64(3), view.ReviewCount)
	s.Require().NotNil(view.AverageRating)
	s.InDelta(3.333, *view.AverageRating, 0.001)

	rec, resp = s.do(http.MethodGet, "/api/drivers/"+driver.Address.String()+"/reviews?offset=1&limit=5", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var reviews []models.Review
	s.Require().NoError(json.Unmarshal(resp.Data, &reviews))
	s.Require().Len(reviews, 2)
	s.Equal("ar://1", reviews[0].ContentPointer)

	rec, resp = s.do(http.MethodGet, "/api/drivers/"+driver.Address.String()+"/reviews/2", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var last models.Review
	s.Require().NoError(json.Unmarshal(resp.Data, &last))
	s.Equal(uint8(1), last.Rating)
	s.Equal(models.Identity("rider-2"), last.Reviewer)

	rec, resp = s.do(http.MethodGet, "/api/platforms/"+platform.Address.String(), "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var stored models.Platform
	s.Require().NoError(json.Unmarshal(resp.Data, &stored))
	s.Equal(uint64(1), stored.DriverCount)
}

func (s *APISuite) TestDriverWithoutReviewsHasNoAverage() {
	platform := s.registerPlatform("owner-a")
	driver := s.registerDriver("owner-a", platform, "driver-raju", "KA-01-1234")

	rec, resp := s.do(http.MethodGet, "/api/drivers/"+driver.Address.String(), "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var raw map[string]interface{}
	s.Require().NoError(json.Unmarshal(resp.Data, &raw))
	s.Contains(raw, "average_rating")
	s.Nil(raw["average_rating"])
}

func (s *APISuite) TestStatusMapping() {
	platform := s.registerPlatform("owner-a")
	driver := s.registerDriver("owner-a", platform, "driver-raju", "KA-01-1234")
	reviews := "/api/drivers/" + driver.Address.String() + "/reviews"

	cases := []struct {
		name   string
		method string
		path   string
		as     models.Identity
		body   interface{}
		status int
		kind   string
	}{
		{"rating too low", http.MethodPost, reviews, "rider", jsonBody{"rating": 0, "content_pointer": "p"}, http.StatusBadRequest, "rating_out_of_range"},
		{"rating too high", http.MethodPost, reviews, "rider", jsonBody{"rating": 6, "content_pointer": "p"}, http.StatusBadRequest, "rating_out_of_range"},
		{"duplicate platform", http.MethodPost, "/api/platforms", "owner-a", jsonBody{"name": "Again"}, http.StatusConflict, "already_exists"},
		{"duplicate plate", http.MethodPost, "/api/platforms/" + platform.Address.String() + "/drivers", "owner-a",
			jsonBody{"driver_identity": "driver-suman", "name": "Suman", "license_plate": "KA-01-1234"}, http.StatusConflict, "already_exists"},
		{"wrong authority", http.MethodPost, "/api/platforms/" + platform.Address.String() + "/drivers", "intruder",
			jsonBody{"driver_identity": "driver-suman", "name": "Suman", "license_plate": "DL-05-7788"}, http.StatusForbidden, "invalid_authority"},
		{"unknown driver", http.MethodGet, "/api/drivers/" + service.DriverAddress("nobody").String(), "", nil, http.StatusNotFound, "record_not_found"},
		{"unknown plate", http.MethodGet, "/api/plates/NONE", "", nil, http.StatusNotFound, "record_not_found"},
		{"bad address", http.MethodGet, "/api/drivers/zz", "", nil, http.StatusBadRequest, "invalid_argument"},
		{"bad index", http.MethodGet, reviews + "/-1", "", nil, http.StatusBadRequest, "invalid_argument"},
		{"bad offset", http.MethodGet, reviews + "?offset=x", "", nil, http.StatusBadRequest, "invalid_argument"},
		{"oversized pointer", http.MethodPost, reviews, "rider", jsonBody{"rating": 3, "content_pointer": strings.Repeat("p", 4096)}, http.StatusRequestEntityTooLarge, "insufficient_resources"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			rec, resp := s.do(tc.method, tc.path, tc.as, tc.body)
			s.Equal(tc.status, rec.Code, resp.Message)
			s.Equal(tc.kind, resp.Kind)
			s.NotEmpty(resp.RequestID)
		})
	}

	rec, resp := s.do(http.MethodGet, "/api/drivers/"+driver.Address.String(), "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var view models.DriverProfile
	s.Require().NoError(json.Unmarshal(resp.Data, &view))
	s.Zero(view.ReviewCount)
	s.Zero(view.RatingSum)
}

func (s *APISuite) TestMalformedBody() {
	req := httptest.NewRequest(http.MethodPost, "/api/platforms", strings.NewReader("{"))
	token, err := s.tokens.Issue("owner-a")
	s.Require().NoError(err)
	req.Header.Set(HeaderAuthorization, BearerPrefix+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APISuite) TestMetricsExposed() {
	s.registerPlatform("owner-a")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `registry_operations_total{operation="register_platform",outcome="ok"} 1`)
}

func TestErrorStatus(t *testing.T) {
	cases := map[error]int{
		service.ErrInvalidArgument:       http.StatusBadRequest,
		service.ErrRatingOutOfRange:      http.StatusBadRequest,
		service.ErrInvalidAuthority:      http.StatusForbidden,
		storage.ErrRecordNotFound:        http.StatusNotFound,
		storage.ErrAlreadyExists:         http.StatusConflict,
		storage.ErrConflictingMutation:   http.StatusConflict,
		storage.ErrInsufficientResources: http.StatusRequestEntityTooLarge,
		service.ErrArithmeticOverflow:    http.StatusUnprocessableEntity,
		errors.New("boom"):               http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := errorStatus(fmt.Errorf("wrapped: %w", err)); got != want {
			t.Errorf("errorStatus(%v) = %d, want %d", err, got, want)
		}
	}
}
