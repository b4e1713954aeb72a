package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/standardbeagle/gatemcp/internal/auth"
)

func cmdAuth(args []string) {
	if len(args) < 1 {
		printAuthUsage()
		os.Exit(exitUsage)
	}

	action := args[0]
	rest := args[1:]

	gatewayName := ""
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--gateway", "-g":
			if i+1 >= len(rest) {
				fmt.Fprintln(os.Stderr, "Error: --gateway requires a value")
				os.Exit(exitUsage)
			}
			i++
			gatewayName = rest[i]
		case "--help", "-h":
			printAuthUsage()
			return
		}
	}

	switch action {
	case "login":
		cmdAuthLogin(gatewayName)
	case "status":
		cmdAuthStatus(gatewayName)
	case "inspect":
		cmdAuthInspect(gatewayName)
	case "logout":
		cmdAuthLogout(gatewayName)
	case "help", "-h", "--help":
		printAuthUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown auth action: %s\n\n", action)
		printAuthUsage()
		os.Exit(exitUsage)
	}
}

func cmdAuthLogin(gatewayName string) {
	cfg := loadConfig()
	gwCfg := selectGateway(cfg, gatewayName)
	mgr := newManager(gwCfg)

	ctx, cancel := commandContext(60 * time.Second)
	defer cancel()

	if _, err := mgr.Refresh(ctx); err != nil {
		fail("authentication failed: %v", err)
	}

	bundle, err := mgr.Bundle()
	if err != nil {
		fail("reading credentials: %v", err)
	}
	fmt.Printf("Authenticated with %s\n", bundle.TokenURL)
	if exp, ok := bundle.Expiry(); ok {
		fmt.Printf("Token expires at %s\n", exp.Local().Format(time.RFC3339))
	}
	if gwCfg.Ephemeral {
		fmt.Println("Gateway is ephemeral; the token was not written to disk")
	}
}

func cmdAuthStatus(gatewayName string) {
	cfg := loadConfig()
	gwCfg := selectGateway(cfg, gatewayName)

	bundle, err := gwCfg.CredentialStore().Load()
	if err != nil {
		fail("reading credentials: %v", err)
	}

	fmt.Printf("Gateway:     %s\n", gwCfg.Name)
	if bundle.GatewayURL != "" {
		fmt.Printf("Gateway URL: %s\n", bundle.GatewayURL)
	} else if gwCfg.URL != "" {
		fmt.Printf("Gateway URL: %s\n", gwCfg.URL)
	}
	fmt.Printf("Token URL:   %s\n", bundle.TokenURL)
	if bundle.Scope != "" {
		fmt.Printf("Scope:       %s\n", bundle.Scope)
	}

	if bundle.AccessToken == "" {
		fmt.Println("Token:       not cached (run 'gatemcp auth login')")
		return
	}

	exp, ok := bundle.Expiry()
	switch {
	case !ok:
		fmt.Println("Token:       cached, expiry unknown (will refresh on first use)")
	case time.Now().After(exp):
		fmt.Printf("Token:       expired at %s\n", exp.Local().Format(time.RFC3339))
	default:
		fmt.Printf("Token:       valid until %s (%s left)\n",
			exp.Local().Format(time.RFC3339),
			time.Until(exp).Round(time.Second))
	}
}

func cmdAuthInspect(gatewayName string) {
	cfg := loadConfig()
	gwCfg := selectGateway(cfg, gatewayName)

	bundle, err := gwCfg.CredentialStore().Load()
	if err != nil {
		fail("reading credentials: %v", err)
	}
	if bundle.AccessToken == "" {
		fail("no cached token to inspect (run 'gatemcp auth login')")
	}

	claims, err := inspectToken(bundle.AccessToken)
	if err != nil {
		fail("decoding token: %v", err)
	}
	data, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		fail("formatting claims: %v", err)
	}
	fmt.Println(string(data))
}

func cmdAuthLogout(gatewayName string) {
	cfg := loadConfig()
	gwCfg := selectGateway(cfg, gatewayName)
	store := gwCfg.CredentialStore()

	bundle, err := store.Load()
	if err != nil {
		fail("reading credentials: %v", err)
	}
	if bundle.AccessToken == "" {
		fmt.Println("No cached token")
		return
	}

	bundle.AccessToken = ""
	bundle.TokenExpiresAt = ""
	if err := store.Save(bundle); err != nil {
		fail("clearing token: %v", err)
	}
	fmt.Println("Cached token cleared")
}

// inspectToken shapes the decoded claims for display: the well-known
// fields first, then the raw claim set.
func inspectToken(raw string) (map[string]any, error) {
	claims, err := auth.InspectToken(raw)
	if err != nil {
		return nil, err
	}

	out := map[string]any{
		"expired": claims.Expired(),
		"claims":  claims.Raw,
	}
	if claims.Subject != "" {
		out["subject"] = claims.Subject
	}
	if claims.Issuer != "" {
		out["issuer"] = claims.Issuer
	}
	if claims.ClientID != "" {
		out["client_id"] = claims.ClientID
	}
	if claims.Scope != "" {
		out["scope"] = claims.Scope
	}
	if !claims.ExpiresAt.IsZero() {
		out["expires_at"] = claims.ExpiresAt.Format(time.RFC3339)
	}
	if !claims.IssuedAt.IsZero() {
		out["issued_at"] = claims.IssuedAt.Format(time.RFC3339)
	}
	return out, nil
}

func printAuthUsage() {
	fmt.Print(`gatemcp auth - Manage gateway authentication

Usage:
  gatemcp auth <action> [options]

Actions:
  login        Force a token refresh against the token endpoint
  status       Show whether a usable token is cached and when it expires
  inspect      Decode the cached token's JWT claims (unverified)
  logout       Remove the cached token from the credential store

Options:
  --gateway, -g <name>   Gateway to act on (default: the only one, or "default")
  --help, -h             Show this help

Examples:
  gatemcp auth login
  gatemcp auth status --gateway prod
  gatemcp auth inspect
`)
}
