package github

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v72/github"
)

// AppCredentials authenticate as a GitHub App installation.
type AppCredentials struct {
	AppID          string
	InstallationID int64
	PrivateKey     []byte // PEM encoded RSA key
}

// installationToken signs an app JWT and exchanges it for an installation
// access token. The token is not cached; each invocation runs once.
func installationToken(ctx context.Context, api *gh.Client, creds AppCredentials, now time.Time) (string, error) {
	signed, err := signAppJWT(creds, now)
	if err != nil {
		return "", err
	}

	token, resp, err := api.WithAuthToken(signed).Apps.CreateInstallationToken(ctx, creds.InstallationID, nil)
	if err != nil {
		return "", remoteError("create installation token", resp, err)
	}
	if token.GetToken() == "" {
		return "", fmt.Errorf("github returned an empty installation token")
	}
	return token.GetToken(), nil
}

func signAppJWT(creds AppCredentials, now time.Time) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(creds.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("parse app private key: %w", err)
	}

	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    creds.AppID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign app jwt: %w", err)
	}
	return signed, nil
}
