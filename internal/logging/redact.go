// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package logging

import (
	"net/url"
	"strings"
)

// RedactSecret masks a secret, keeping only its first and last characters
// when it is long enough that doing so reveals nothing useful.
// Example: "correct-horse-battery" -> "co***ry"
func RedactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) < 12 {
		return "***"
	}
	return secret[:2] + "***" + secret[len(secret)-2:]
}

// RedactDSN replaces the password in a URL style connection string.
// Strings that do not parse are masked entirely.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}
	q := u.Query()
	for key := range q {
		if isSensitiveKey(key) {
			q.Set(key, "xxxxx")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// RedactValue masks value when key names a credential.
func RedactValue(key, value string) string {
	if isSensitiveKey(key) {
		return RedactSecret(value)
	}
	return value
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range []string{"password", "secret", "token", "pwd"} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
