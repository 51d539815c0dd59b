package credentials

// TokenSet is a provider token response: at least access_token, usually
// refresh_token and expires_in, plus whatever extras the provider returns.
type TokenSet map[string]any

// AccessToken returns the access_token field or "".
func (t TokenSet) AccessToken() string {
	return t.str("access_token")
}

// RefreshToken returns the refresh_token field or "".
func (t TokenSet) RefreshToken() string {
	return t.str("refresh_token")
}

// IsEmpty reports whether the set holds no fields at all.
func (t TokenSet) IsEmpty() bool {
	return len(t) == 0
}

// Merge returns a new set with update's fields written over t's.
// Fields update omits, refresh_token in particular, are retained.
func (t TokenSet) Merge(update TokenSet) TokenSet {
	merged := make(TokenSet, len(t)+len(update))
	for k, v := range t {
		merged[k] = v
	}
	for k, v := range update {
		merged[k] = v
	}
	return merged
}

// Clone returns a shallow copy.
func (t TokenSet) Clone() TokenSet {
	return TokenSet(nil).Merge(t)
}

func (t TokenSet) str(key string) string {
	v, ok := t[key].(string)
	if !ok {
		return ""
	}
	return v
}
