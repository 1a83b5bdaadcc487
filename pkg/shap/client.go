// Package shap provides the HTTP client for the remote SHAP-based drug
// prediction microservice. The service is an opaque collaborator that may
// be unavailable; every failure is reported as an error so the caller can
// fall back to the local rule engine. Calls are single-attempt with no
// retry or backoff.
package shap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Apps-1-2-3/medai-assistant/internal/domain"
)

// Client calls the prediction service over HTTP with JSON bodies.
type Client struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// NewClient creates a prediction service client from configuration.
func NewClient(cfg domain.PredictorConfig, logger *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RateLimit
	if rps == 0 {
		rps = 10
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "SHAPService",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		rateLimit:  rate.NewLimiter(rate.Limit(rps), 1),
		breaker:    breaker,
		logger:     logger,
	}
}

// Wire types: the service speaks snake_case JSON.

type predictRequest struct {
	Age                int      `json:"age"`
	Gender             string   `json:"gender"`
	HeartRate          int      `json:"heart_rate"`
	BloodType          string   `json:"blood_type"`
	Allergies          []string `json:"allergies"`
	MedicalHistory     []string `json:"medical_history"`
	Symptoms           []string `json:"symptoms"`
	CurrentMedications string   `json:"current_medications"`
}

type wireRecommendation struct {
	Name            string  `json:"name"`
	Confidence      float64 `json:"confidence"`
	Dosage          string  `json:"dosage"`
	Frequency       string  `json:"frequency"`
	Effectiveness   string  `json:"effectiveness"`
	SideEffectsRisk string  `json:"side_effects_risk"`
	ConditionMatch  string  `json:"condition_match"`
}

type wireExplanation struct {
	Feature   string  `json:"feature"`
	Influence float64 `json:"influence"`
	Direction string  `json:"direction"`
}

type wireInteraction struct {
	Drug1       string `json:"drug1"`
	Drug2       string `json:"drug2"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

type predictResponse struct {
	Recommendations []wireRecommendation `json:"recommendations"`
	Explanations    []wireExplanation    `json:"explanations"`
	Interactions    []wireInteraction    `json:"interactions"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Predict sends the patient record to the prediction service and translates
// the response into domain types. Any transport error or non-2xx status is
// returned as an error wrapping domain.ErrServiceUnavailable.
func (c *Client) Predict(ctx context.Context, p *domain.PatientRecord) (*domain.RecommendationResult, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.predict(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}

	return result.(*domain.RecommendationResult), nil
}

func (c *Client) predict(ctx context.Context, p *domain.PatientRecord) (*domain.RecommendationResult, error) {
	body, err := json.Marshal(predictRequest{
		Age:                p.Age,
		Gender:             string(p.Gender),
		HeartRate:          p.HeartRate,
		BloodType:          p.BloodType,
		Allergies:          emptyIfNil(p.Allergies),
		MedicalHistory:     emptyIfNil(p.MedicalHistory),
		Symptoms:           emptyIfNil(p.Symptoms),
		CurrentMedications: p.CurrentMedications,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling prediction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("prediction service returned status %d", resp.StatusCode)
	}

	var wire predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return translateResponse(&wire), nil
}

// Health checks the prediction service health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling prediction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("prediction service returned status %d", resp.StatusCode)
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}
	if health.Status != "healthy" || !health.ModelLoaded {
		return fmt.Errorf("prediction service not ready: status=%s model_loaded=%t", health.Status, health.ModelLoaded)
	}

	return nil
}

// translateResponse maps the snake_case wire shape onto domain types.
func translateResponse(wire *predictResponse) *domain.RecommendationResult {
	result := &domain.RecommendationResult{}

	for _, r := range wire.Recommendations {
		result.Recommendations = append(result.Recommendations, domain.Recommendation{
			Name:            r.Name,
			Confidence:      r.Confidence,
			Dosage:          r.Dosage,
			Frequency:       r.Frequency,
			Effectiveness:   r.Effectiveness,
			SideEffectsRisk: r.SideEffectsRisk,
			ConditionMatch:  r.ConditionMatch,
		})
	}
	for _, e := range wire.Explanations {
		result.Explanations = append(result.Explanations, domain.Explanation{
			Feature:   e.Feature,
			Influence: int(math.Round(e.Influence)),
			Direction: domain.Direction(e.Direction),
		})
	}
	for _, i := range wire.Interactions {
		result.Interactions = append(result.Interactions, domain.Interaction{
			Drug1:       i.Drug1,
			Drug2:       i.Drug2,
			Severity:    domain.Severity(i.Severity),
			Description: i.Description,
		})
	}

	return result
}

// emptyIfNil keeps list fields as JSON arrays rather than null on the wire.
func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
