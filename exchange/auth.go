package exchange

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// authToken builds the JWT Upbit expects: HS256 over a payload carrying
// the access key, a nonce, and, when the request has parameters, a
// SHA-512 hash of the raw query string.
func authToken(creds Credentials, rawQuery string) (string, error) {
	payload := map[string]string{
		"access_key": creds.AccessKey,
		"nonce":      ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
	}
	if rawQuery != "" {
		sum := sha512.Sum512([]byte(rawQuery))
		payload["query_hash"] = hex.EncodeToString(sum[:])
		payload["query_hash_alg"] = "SHA512"
	}

	header := map[string]string{"alg": "HS256", "typ": "JWT"}

	hb, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	enc := base64.RawURLEncoding
	signing := enc.EncodeToString(hb) + "." + enc.EncodeToString(pb)

	mac := hmac.New(sha256.New, []byte(creds.SecretKey))
	mac.Write([]byte(signing))

	return signing + "." + enc.EncodeToString(mac.Sum(nil)), nil
}
