// Minimal end-to-end check against a running verifier: posts one request per
// subject type and, when Redis is reachable, confirms the decision was
// published on the stream.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/realfinder/verifier/src/data"
	"github.com/realfinder/verifier/src/logging"
)

var (
	baseURL   = getenv("API_URL", "http://localhost:8080")
	redisURL  = getenv("VERIFIER_REDIS_URL", "")
	jwtSecret = getenv("VERIFIER_JWT_SECRET", "")
	stream    = getenv("VERIFIER_EVENTS_STREAM", data.DefaultStream)
)

var log *zap.Logger

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	var err error
	if log, err = logging.New("info", true); err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	token := signToken()

	var health map[string]string
	doReq(http.MethodGet, "/healthz", "", nil, &health, http.StatusOK)
	if health["status"] != "ok" {
		log.Fatal("healthz: unexpected body", zap.Any("body", health))
	}

	ids := map[string]map[string]any{
		"listing": {
			"id":          "e2e-listing-" + uuid.NewString(),
			"title":       "2 BHK flat near Baner",
			"description": "Well kept two bedroom apartment with covered parking and a large balcony.",
			"price":       7500000,
			"area_sqft":   1100,
			"bedrooms":    2,
			"bathrooms":   2,
		},
		"broker": {
			"id":             "e2e-broker-" + uuid.NewString(),
			"full_name":      "Asha Rao",
			"license_number": "RERA-A51700001234",
			"phone":          "+919876543210",
		},
		"property": {
			"id":         "e2e-property-" + uuid.NewString(),
			"owner_name": "Asha Rao",
			"address":    "12 MG Road, Pune",
			"area_sqft":  1100,
		},
	}

	decisions := make([]string, 0, len(ids))
	for subject, body := range ids {
		var out map[string]any
		doReq(http.MethodPost, "/v1/verify/"+subject, token, body, &out, http.StatusOK)
		id, _ := out["id"].(string)
		if id == "" {
			log.Fatal("verify: decision without id", zap.String("subject", subject))
		}
		log.Info("decided",
			zap.String("subject", subject),
			zap.Any("decision", out["decision"]),
			zap.Any("combined_score", out["combined_score"]))
		decisions = append(decisions, id)
	}

	var problem map[string]any
	doReq(http.MethodPost, "/v1/verify/listing", token, map[string]any{"id": "e2e-bad"}, &problem, http.StatusBadRequest)
	if problem["kind"] != "validation" {
		log.Fatal("validation envelope mismatch", zap.Any("body", problem))
	}

	if redisURL != "" {
		checkStream(ctx, decisions)
	}
	log.Info("all endpoints passed")
}

func signToken() string {
	if jwtSecret == "" {
		return ""
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "e2e",
		"exp": time.Now().Add(5 * time.Minute).Unix(),
	}).SignedString([]byte(jwtSecret))
	if err != nil {
		log.Fatal("sign token", zap.Error(err))
	}
	return tok
}

func checkStream(ctx context.Context, want []string) {
	rdb := data.MustRedis(redisURL)
	defer rdb.Close()

	msgs, err := rdb.XRevRangeN(ctx, stream, "+", "-", 50).Result()
	if err != nil {
		log.Fatal("stream read", zap.Error(err))
	}
	seen := map[string]bool{}
	for _, m := range msgs {
		if id, ok := m.Values["decision_id"].(string); ok {
			seen[id] = true
		}
	}
	for _, id := range want {
		if !seen[id] {
			log.Fatal("decision not published", zap.String("decision_id", id))
		}
	}
}

func doReq(method, path, token string, body, out any, want int) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatal("encode", zap.String("path", path), zap.Error(err))
		}
	}
	req, _ := http.NewRequest(method, baseURL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal("request", zap.String("method", method), zap.String("path", path), zap.Error(err))
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		log.Fatal("unexpected status", zap.String("path", path), zap.Int("want", want), zap.Int("got", res.StatusCode))
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatal("decode", zap.String("path", path), zap.Error(err))
		}
	}
}
