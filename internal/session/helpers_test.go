package session_test

import "civicportal/internal/auth"

func hashOf(token string) string {
	return auth.HashToken(token)
}
