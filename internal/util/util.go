package util

import (
	"net/url"
	"strings"
)

// MaskSecret obscures a credential for logging, keeping only a few edge characters.
func MaskSecret(secret string) string {
	switch {
	case len(secret) > 8:
		return secret[:4] + "..." + secret[len(secret)-4:]
	case len(secret) > 4:
		return secret[:2] + "..." + secret[len(secret)-2:]
	case len(secret) > 2:
		return secret[:1] + "..." + secret[len(secret)-1:]
	}
	return secret
}

// MaskAccountNumber keeps the last four digits of a bank account number.
func MaskAccountNumber(account string) string {
	account = strings.TrimSpace(account)
	if len(account) <= 4 {
		return strings.Repeat("*", len(account))
	}
	return strings.Repeat("*", len(account)-4) + account[len(account)-4:]
}

// MaskUPIID hides the handle of a UPI id while keeping the provider suffix.
func MaskUPIID(upiID string) string {
	upiID = strings.TrimSpace(upiID)
	at := strings.LastIndex(upiID, "@")
	if at <= 0 {
		return MaskSecret(upiID)
	}
	handle := upiID[:at]
	if len(handle) <= 2 {
		return strings.Repeat("*", len(handle)) + upiID[at:]
	}
	return handle[:2] + strings.Repeat("*", len(handle)-2) + upiID[at:]
}

// MaskSensitiveQuery masks credentials carried in a raw query string, e.g. the
// websocket token parameter.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	changed := false
	for i, part := range parts {
		if part == "" {
			continue
		}
		keyPart, valuePart, _ := strings.Cut(part, "=")
		decodedKey, err := url.QueryUnescape(keyPart)
		if err != nil {
			decodedKey = keyPart
		}
		if !shouldMaskQueryParam(decodedKey) {
			continue
		}
		decodedValue, err := url.QueryUnescape(valuePart)
		if err != nil {
			decodedValue = valuePart
		}
		parts[i] = keyPart + "=" + url.QueryEscape(MaskSecret(strings.TrimSpace(decodedValue)))
		changed = true
	}
	if !changed {
		return raw
	}
	return strings.Join(parts, "&")
}

func shouldMaskQueryParam(key string) bool {
	key = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(key)), "[]")
	if key == "" {
		return false
	}
	for _, marker := range []string{"token", "secret", "password", "authorization", "account_number"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
