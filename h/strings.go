package h

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/thoas/go-funk"
)

const randomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func RandomString(length int) string {
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(randomAlphabet))))
		if err != nil {
			panic(err)
		}
		out[i] = randomAlphabet[n.Int64()]
	}
	return string(out)
}

func TrimToNull(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func TrimToEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func IsEmpty(s interface{}) bool {
	return funk.IsEmpty(s)
}

func IsNotEmpty(s interface{}) bool {
	return !funk.IsEmpty(s)
}
func StrPtr(s string) *string {
	return &s
}
func PtrStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ToMap(input string) map[string]any {
	values := map[string]any{}
	if err := json.Unmarshal([]byte(input), &values); err != nil {
		return nil
	}
	return values
}

func StrPtrToLower(s *string) *string {
	if s == nil {
		return nil
	}
	res := strings.ToLower(*s)
	return &res
}
