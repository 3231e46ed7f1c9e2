package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/LuuuXXX/crater-ohos/internal/auth"
	"github.com/LuuuXXX/crater-ohos/internal/experiment"
	"github.com/LuuuXXX/crater-ohos/internal/pkgselect"
	"github.com/LuuuXXX/crater-ohos/internal/platform"
	"github.com/LuuuXXX/crater-ohos/internal/result"
	"github.com/LuuuXXX/crater-ohos/internal/store"
	"github.com/LuuuXXX/crater-ohos/internal/worker"
)

type testEnv struct {
	srv         *Server
	tokens      *auth.Registry
	experiments *experiment.Registry
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(store.SQLite, filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	exps := experiment.NewRegistry(db, nil, pkgselect.NewResolver())
	workers := worker.NewRegistry(db)
	results := result.NewStore(db)
	tokens := auth.NewRegistry(db)
	platforms := platform.NewRegistry()
	platforms.Register(platform.NewGitHub("https://api.github.com", "test-secret"))

	srv := New(exps, workers, results, tokens, platforms, pkgselect.NewResolver(), nil)
	return testEnv{srv: srv, tokens: tokens, experiments: exps}
}

func (e testEnv) mintToken(t *testing.T, perms ...auth.Permission) string {
	t.Helper()
	tok, err := e.tokens.Mint(context.Background(), "test", perms, nil)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return tok.Value
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateExperimentRequiresWritePermission(t *testing.T) {
	env := newTestEnv(t)
	router := env.srv.Router()
	readOnly := env.mintToken(t, auth.ReadExperiments)

	rec := doRequest(t, router, http.MethodPost, "/api/experiments/", readOnly, createExperimentRequest{
		Name: "exp1", ToolchainA: "stable", ToolchainB: "beta",
		Mode: "build-and-test", CapLints: "warn", PackageSelection: "demo",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateAndGetExperimentRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	router := env.srv.Router()
	token := env.mintToken(t, auth.Admin)

	rec := doRequest(t, router, http.MethodPost, "/api/experiments/", token, createExperimentRequest{
		Name: "exp1", ToolchainA: "stable", ToolchainB: "beta",
		Mode: "build-and-test", CapLints: "warn", PackageSelection: "demo",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/api/experiments/exp1", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var exp experiment.Experiment
	if err := json.Unmarshal(rec.Body.Bytes(), &exp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if exp.Status != experiment.StatusQueued {
		t.Fatalf("expected queued, got %s", exp.Status)
	}
}

func TestMissingTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	router := env.srv.Router()
	rec := doRequest(t, router, http.MethodGet, "/api/experiments/", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRunThenEditFailsWithConflict(t *testing.T) {
	env := newTestEnv(t)
	router := env.srv.Router()
	token := env.mintToken(t, auth.Admin)

	doRequest(t, router, http.MethodPost, "/api/experiments/", token, createExperimentRequest{
		Name: "exp2", ToolchainA: "stable", ToolchainB: "beta",
		Mode: "build-and-test", CapLints: "warn", PackageSelection: "demo",
	})
	rec := doRequest(t, router, http.MethodPost, "/api/experiments/exp2/run", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 running, got %d: %s", rec.Code, rec.Body.String())
	}

	newPriority := 5
	rec = doRequest(t, router, http.MethodPatch, "/api/experiments/exp2", token, editExperimentRequest{Priority: &newPriority})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 invalid-state, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookAcceptsValidSignatureRejectsInvalid(t *testing.T) {
	env := newTestEnv(t)
	router := env.srv.Router()

	payload := []byte("test payload")
	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write(payload)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github", bytes.NewReader(payload))
	req.Header.Set("X-Hub-Signature-256", sig)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/webhooks/github", bytes.NewReader(payload))
	req2.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec2.Code)
	}
}

func TestRegisterAndHeartbeatWorker(t *testing.T) {
	env := newTestEnv(t)
	router := env.srv.Router()
	token := env.mintToken(t, auth.Admin)

	rec := doRequest(t, router, http.MethodPost, "/api/workers/", token, registerWorkerRequest{
		DisplayName: "w1", Capabilities: []string{"build", "test"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var wk worker.Worker
	if err := json.Unmarshal(rec.Body.Bytes(), &wk); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/workers/"+wk.ID+"/heartbeat", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}
