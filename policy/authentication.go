/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package policy

import (
	"github.com/golang-jwt/jwt/v5"
)

// AuthMethod is a recognized server credential shape.
type AuthMethod string

const (
	AuthPassword    AuthMethod = "password"
	AuthUUID        AuthMethod = "uuid"
	AuthPSK         AuthMethod = "psk"
	AuthCertificate AuthMethod = "certificate"
	// AuthJWT recognizes a bearer credential shaped like a JWT (three
	// dot-separated base64url segments whose header/claims parse).
	AuthJWT AuthMethod = "jwt"
)

// AuthenticationPolicy requires one of the recognized credential methods,
// with a minimum credential length for non-JWT secrets.
type AuthenticationPolicy struct {
	MinCredentialLength int
	Required            bool
}

// NewAuthenticationPolicy builds the default AuthenticationPolicy.
func NewAuthenticationPolicy() *AuthenticationPolicy {
	return &AuthenticationPolicy{MinCredentialLength: 8, Required: true}
}

func (p *AuthenticationPolicy) Name() string  { return "authentication" }
func (p *AuthenticationPolicy) Group() string { return "authentication" }

func (p *AuthenticationPolicy) credential(ctxServer interface {
	MetaString(string) string
}) (method AuthMethod, value string, ok bool) {
	for _, m := range []AuthMethod{AuthPassword, AuthUUID, AuthPSK, AuthCertificate} {
		if v := ctxServer.MetaString(string(m)); v != "" {
			return m, v, true
		}
	}
	if v := ctxServer.MetaString("bearer_token"); v != "" && looksLikeJWT(v) {
		return AuthJWT, v, true
	}
	return "", "", false
}

// looksLikeJWT reports whether v has the three-segment shape of a JWT and
// parses as one without verifying a signature — this policy only checks
// credential *shape*, signature verification belongs to the transport the
// server is actually used with.
func looksLikeJWT(v string) bool {
	parser := jwt.NewParser()
	_, _, err := parser.ParseUnverified(v, jwt.MapClaims{})
	return err == nil
}

func (p *AuthenticationPolicy) Evaluate(ctx Context) Result {
	if ctx.Server == nil {
		return Result{Policy: p.Name(), Decision: Deny, Reason: "missing server in context", Severity: SeverityCritical}
	}
	method, value, ok := p.credential(ctx.Server)
	if !ok {
		if p.Required {
			return Result{Policy: p.Name(), Decision: Deny, Reason: "no recognized credential present", Severity: SeverityCritical}
		}
		return Result{Policy: p.Name(), Decision: Allow, Severity: SeverityInfo}
	}
	if method != AuthJWT && len(value) < p.MinCredentialLength {
		return Result{
			Policy:   p.Name(),
			Decision: Warn,
			Reason:   "credential shorter than minimum recommended length",
			Severity: SeverityWarning,
			Metadata: map[string]string{"method": string(method)},
		}
	}
	return Result{Policy: p.Name(), Decision: Allow, Severity: SeverityInfo, Metadata: map[string]string{"method": string(method)}}
}
