package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apps-1-2-3/medai-assistant/internal/domain"
	"github.com/Apps-1-2-3/medai-assistant/internal/engine"
	"github.com/Apps-1-2-3/medai-assistant/internal/history"
)

func testServer(t *testing.T, store history.Store) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &domain.Config{
		Server:  domain.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Logging: domain.LoggingConfig{Level: "error"},
	}

	recommender := engine.NewRecommender(logger, nil, nil)
	return NewServer(cfg, logger, recommender, store)
}

func testStore(t *testing.T) history.Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "api-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := history.NewSQLiteStore(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func doRequest(server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	server := testServer(t, nil)

	rec := doRequest(server, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleRecommend_Success(t *testing.T) {
	server := testServer(t, nil)

	patient := domain.PatientRecord{
		Age:       30,
		Gender:    domain.FEMALE,
		HeartRate: 72,
		Symptoms:  []string{"Fever"},
	}

	rec := doRequest(server, http.MethodPost, "/api/v1/recommendations", patient)

	require.Equal(t, http.StatusOK, rec.Code)

	var response domain.ConsultationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Recommendations, 1)
	assert.Equal(t, "Acetaminophen (Paracetamol)", response.Recommendations[0].Name)
	assert.Equal(t, domain.SourceLocal, response.Source)
	assert.Empty(t, response.ConsultationID, "no history store configured")
	assert.NotEmpty(t, response.Explanations)
}

func TestHandleRecommend_PersistsConsultation(t *testing.T) {
	store := testStore(t)
	server := testServer(t, store)

	patient := domain.PatientRecord{
		Age:       45,
		HeartRate: 80,
		Symptoms:  []string{"Nausea"},
	}

	rec := doRequest(server, http.MethodPost, "/api/v1/recommendations", patient)

	require.Equal(t, http.StatusOK, rec.Code)

	var response domain.ConsultationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.NotEmpty(t, response.ConsultationID)

	getRec := doRequest(server, http.MethodGet, "/api/v1/consultations/"+response.ConsultationID, nil)
	require.Equal(t, http.StatusOK, getRec.Code)

	var stored history.Consultation
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &stored))
	assert.Equal(t, 45, stored.PatientAge)
	assert.Equal(t, []string{"Nausea"}, stored.Symptoms)
	require.Len(t, stored.Recommendations, 1)
	assert.Equal(t, "Ondansetron (Antiemetic)", stored.Recommendations[0].Name)
}

func TestHandleRecommend_MissingSymptoms(t *testing.T) {
	server := testServer(t, nil)

	rec := doRequest(server, http.MethodPost, "/api/v1/recommendations", map[string]interface{}{
		"age":       30,
		"heartRate": 72,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRecommend_InvalidGender(t *testing.T) {
	server := testServer(t, nil)

	rec := doRequest(server, http.MethodPost, "/api/v1/recommendations", map[string]interface{}{
		"age":      30,
		"gender":   "unknown",
		"symptoms": []string{"Fever"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRecommend_NegativeAge(t *testing.T) {
	server := testServer(t, nil)

	rec := doRequest(server, http.MethodPost, "/api/v1/recommendations", map[string]interface{}{
		"age":      -1,
		"symptoms": []string{"Fever"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRecommend_MalformedBody(t *testing.T) {
	server := testServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListConsultations(t *testing.T) {
	store := testStore(t)
	server := testServer(t, store)

	for i := 0; i < 3; i++ {
		patient := domain.PatientRecord{Age: 30 + i, HeartRate: 72, Symptoms: []string{"Fever"}}
		doRequest(server, http.MethodPost, "/api/v1/recommendations", patient)
	}

	rec := doRequest(server, http.MethodGet, "/api/v1/consultations?limit=2", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Consultations []history.Consultation `json:"consultations"`
		Total         int64                  `json:"total"`
		Limit         int                    `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Consultations, 2)
	assert.Equal(t, int64(3), body.Total)
	assert.Equal(t, 2, body.Limit)
}

func TestHandleListConsultations_InvalidLimitFallsBack(t *testing.T) {
	store := testStore(t)
	server := testServer(t, store)

	patient := domain.PatientRecord{Age: 30, HeartRate: 72, Symptoms: []string{"Fever"}}
	doRequest(server, http.MethodPost, "/api/v1/recommendations", patient)

	rec := doRequest(server, http.MethodGet, "/api/v1/consultations?limit=2abc", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 20, body.Limit, "non-numeric limit falls back to the default")
}

func TestHandleGetConsultation_NotFound(t *testing.T) {
	store := testStore(t)
	server := testServer(t, store)

	rec := doRequest(server, http.MethodGet, "/api/v1/consultations/no-such-id", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleConsultations_HistoryDisabled(t *testing.T) {
	server := testServer(t, nil)

	rec := doRequest(server, http.MethodGet, "/api/v1/consultations", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(server, http.MethodGet, "/api/v1/consultations/some-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDeleteConsultation(t *testing.T) {
	store := testStore(t)
	server := testServer(t, store)

	patient := domain.PatientRecord{Age: 30, HeartRate: 72, Symptoms: []string{"Fever"}}
	createRec := doRequest(server, http.MethodPost, "/api/v1/recommendations", patient)

	var response domain.ConsultationResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &response))
	require.NotEmpty(t, response.ConsultationID)

	delRec := doRequest(server, http.MethodDelete, "/api/v1/consultations/"+response.ConsultationID, nil)
	assert.Equal(t, http.StatusNoContent, delRec.Code)

	getRec := doRequest(server, http.MethodGet, "/api/v1/consultations/"+response.ConsultationID, nil)
	assert.Equal(t, http.StatusNotFound, getRec.Code)
}

func TestHandleExportConsultations(t *testing.T) {
	store := testStore(t)
	server := testServer(t, store)

	patient := domain.PatientRecord{Age: 30, HeartRate: 72, Symptoms: []string{"Fever"}}
	doRequest(server, http.MethodPost, "/api/v1/recommendations", patient)

	rec := doRequest(server, http.MethodGet, "/api/v1/consultations/export", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var export history.ConsultationExport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &export))
	assert.Equal(t, 1, export.Count)
}

func TestHandleListInteractionRules(t *testing.T) {
	server := testServer(t, nil)

	rec := doRequest(server, http.MethodGet, "/api/v1/reference/interactions", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Interactions []domain.Interaction `json:"interactions"`
		Count        int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Count)
	assert.Len(t, body.Interactions, 4)
}

func TestSecurityHeadersApplied(t *testing.T) {
	server := testServer(t, nil)

	rec := doRequest(server, http.MethodGet, "/health", nil)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}
