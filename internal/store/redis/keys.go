package redis

import "strconv"

// DefaultPrefix namespaces every key written by the token store.
const DefaultPrefix = "textsync:"

type keyspace struct {
	prefix string
}

// tokenKey maps a token key to its owner's principal ID.
func (k keyspace) tokenKey(key string) string {
	return k.prefix + "token:" + key
}

// principalKey holds the principal's current token as a hash
// {key, created_at, expires_at}.
func (k keyspace) principalKey(principalID int64) string {
	return k.prefix + "principal-token:" + strconv.FormatInt(principalID, 10)
}

// expiryKey is a sorted set of principal IDs scored by token expiry (ms).
func (k keyspace) expiryKey() string {
	return k.prefix + "tokens:expiry"
}
