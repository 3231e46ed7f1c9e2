// Package platform implements the Platform-Issue Adapter (C9): a narrow
// capability interface plus concrete implementations for github, gitlab,
// gitee, and gitcode.
//
// The interface shape and HMAC-SHA256 verification idiom are grounded on
// the teacher's internal/githubapp/webhook.go (VerifyWebhook's
// hmac.Equal constant-time comparison over a hex-encoded digest).
package platform

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/LuuuXXX/crater-ohos/internal/experiment"
)

// Adapter is the capability set spec.md §4.9 requires of any mutating
// external integration: the core itself treats PlatformIssue opaquely.
type Adapter interface {
	PlatformTag() string
	GetIssue(repoSlug, id string) experiment.PlatformIssue
	VerifyWebhookSignature(payload []byte, signature string) bool
}

// hmacSHA256Adapter is shared by every platform whose webhook signing
// scheme is "sha256=" + hex(HMAC-SHA256(secret, payload)) — which covers
// all four supported platforms; only the tag and URL shape differ.
type hmacSHA256Adapter struct {
	tag        string
	apiBaseURL string
	secret     string
}

func (a hmacSHA256Adapter) PlatformTag() string { return a.tag }

func (a hmacSHA256Adapter) GetIssue(repoSlug, id string) experiment.PlatformIssue {
	return experiment.PlatformIssue{
		PlatformTag: a.tag,
		APIURL:      a.apiBaseURL + "/repos/" + repoSlug + "/issues/" + id,
		HTMLURL:     a.apiBaseURL + "/" + repoSlug + "/issues/" + id,
		Identifier:  id,
	}
}

// VerifyWebhookSignature validates signature against the constant-time
// HMAC-SHA256 of payload, keyed by the adapter's configured secret.
// spec.md §4.9 requires at least one adapter to do exactly this; every
// adapter here does, since all four platforms in practice use GitHub's
// "sha256=" scheme for webhook signing.
func (a hmacSHA256Adapter) VerifyWebhookSignature(payload []byte, signature string) bool {
	const prefix = "sha256="
	signature = strings.TrimSpace(signature)
	if !strings.HasPrefix(signature, prefix) {
		return false
	}
	wantHex := strings.TrimPrefix(signature, prefix)

	mac := hmac.New(sha256.New, []byte(a.secret))
	mac.Write(payload)
	gotHex := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(wantHex), []byte(gotHex))
}

// NewGitHub returns the "github" adapter.
func NewGitHub(apiBaseURL, secret string) Adapter {
	return hmacSHA256Adapter{tag: "github", apiBaseURL: apiBaseURL, secret: secret}
}

// NewGitLab returns the "gitlab" adapter.
func NewGitLab(apiBaseURL, secret string) Adapter {
	return hmacSHA256Adapter{tag: "gitlab", apiBaseURL: apiBaseURL, secret: secret}
}

// NewGitee returns the "gitee" adapter.
func NewGitee(apiBaseURL, secret string) Adapter {
	return hmacSHA256Adapter{tag: "gitee", apiBaseURL: apiBaseURL, secret: secret}
}

// NewGitCode returns the "gitcode" adapter — the platform OpenHarmony
// ecosystem projects (the domain SPEC_FULL.md's Supplemented Features
// section calls out) most commonly file issues against.
func NewGitCode(apiBaseURL, secret string) Adapter {
	return hmacSHA256Adapter{tag: "gitcode", apiBaseURL: apiBaseURL, secret: secret}
}

// Registry looks up an Adapter by its platform tag, used by the HTTP
// surface's webhook dispatch to route an inbound request to the right
// verifier without a type switch.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry { return &Registry{adapters: make(map[string]Adapter)} }

func (r *Registry) Register(a Adapter) { r.adapters[a.PlatformTag()] = a }

func (r *Registry) Get(tag string) (Adapter, bool) {
	a, ok := r.adapters[tag]
	return a, ok
}
