// Package authmw provides net/http middleware for services that accept
// tokens minted by this authority. Public keys are pulled from the JWKS
// endpoint and cached, so resource servers verify locally without
// calling back per request.
package authmw

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	appjwt "github.com/klaemsch/authopie/pkg/jwt"
	"github.com/klaemsch/authopie/pkg/scopes"
)

// JWKS represents a JSON Web Key Set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key.
type JWK struct {
	KID string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeyCache caches public keys fetched from a JWKS endpoint. GetKey
// satisfies jwt.KeyResolver.
type KeyCache struct {
	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	jwksURL     string
	lastFetch   time.Time
	refreshRate time.Duration
}

// Config holds middleware configuration.
type Config struct {
	// Manager validates tokens against the authority's issuer and audience.
	Manager *appjwt.Manager

	// Resolver maps a kid to its public key, typically KeyCache.GetKey.
	Resolver appjwt.KeyResolver

	// Requirement is the scope the endpoint demands. The zero value
	// admits any authenticated token.
	Requirement scopes.Requirement

	// SkipPaths are passed through without authentication.
	SkipPaths []string
}

type contextKey string

const claimsKey contextKey = "claims"

// NewKeyCache creates a new key cache.
func NewKeyCache(jwksURL string, refreshRate time.Duration) *KeyCache {
	if refreshRate == 0 {
		refreshRate = time.Hour
	}
	return &KeyCache{
		keys:        make(map[string]*rsa.PublicKey),
		jwksURL:     jwksURL,
		refreshRate: refreshRate,
	}
}

// GetKey returns the public key for the given key ID, refreshing the
// cache when it is stale or the kid is unknown.
func (kc *KeyCache) GetKey(kid string) (*rsa.PublicKey, error) {
	kc.mu.RLock()
	key, ok := kc.keys[kid]
	needsRefresh := time.Since(kc.lastFetch) > kc.refreshRate
	kc.mu.RUnlock()

	if ok && !needsRefresh {
		return key, nil
	}

	if err := kc.refresh(); err != nil {
		// Stale key beats no key.
		if ok {
			return key, nil
		}
		return nil, err
	}

	kc.mu.RLock()
	key, ok = kc.keys[kid]
	kc.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("key not found: %s", kid)
	}
	return key, nil
}

func (kc *KeyCache) refresh() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, kc.jwksURL, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS fetch failed with status: %d", resp.StatusCode)
	}

	var set JWKS
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("failed to decode JWKS: %w", err)
	}

	kc.mu.Lock()
	defer kc.mu.Unlock()

	for _, jwk := range set.Keys {
		if jwk.Kty != "RSA" {
			continue
		}
		pubKey, err := jwkToRSAPublicKey(jwk)
		if err != nil {
			continue
		}
		kc.keys[jwk.KID] = pubKey
	}
	kc.lastFetch = time.Now()

	return nil
}

func jwkToRSAPublicKey(jwk JWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, err
	}

	n := new(big.Int).SetBytes(nBytes)
	e := int(new(big.Int).SetBytes(eBytes).Int64())

	return &rsa.PublicKey{N: n, E: e}, nil
}

// Middleware validates the bearer token and checks the configured scope
// requirement before calling the next handler. Validated claims are
// placed on the request context.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range cfg.SkipPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			tokenString, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := cfg.Manager.ValidateAccessToken(tokenString, cfg.Resolver)
			if err != nil {
				unauthorized(w)
				return
			}

			if cfg.Requirement.Name != "" || len(cfg.Requirement.Aliases) > 0 {
				if err := cfg.Requirement.Authorize(claims.Scopes); err != nil {
					forbidden(w)
					return
				}
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the validated claims placed by Middleware.
func ClaimsFromContext(ctx context.Context) (*appjwt.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*appjwt.Claims)
	return claims, ok
}

// SubjectFromContext returns the authenticated subject.
func SubjectFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	return claims.Subject, true
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, `{"detail":"could not validate credentials"}`, http.StatusUnauthorized)
}

func forbidden(w http.ResponseWriter) {
	http.Error(w, `{"detail":"insufficient permissions"}`, http.StatusForbidden)
}
