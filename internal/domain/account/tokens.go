package account

import (
	"encoding/json"
	"fmt"
	"slices"
)

// TokenList is the ordered set of session tokens an account still honors.
type TokenList []string

// Contains reports whether token is active.
func (l TokenList) Contains(token string) bool {
	return token != "" && slices.Contains(l, token)
}

// Append returns a new list with token added at the end.
func (l TokenList) Append(token string) TokenList {
	out := make(TokenList, 0, len(l)+1)
	out = append(out, l...)
	return append(out, token)
}

// Remove returns a new list without any occurrence of token.
func (l TokenList) Remove(token string) TokenList {
	out := make(TokenList, 0, len(l))
	for _, t := range l {
		if t != token {
			out = append(out, t)
		}
	}
	return out
}

// EncodeTokens serializes the list for a text column.
func EncodeTokens(l TokenList) (string, error) {
	if l == nil {
		l = TokenList{}
	}
	raw, err := json.Marshal([]string(l))
	if err != nil {
		return "", fmt.Errorf("encode tokens: %w", err)
	}
	return string(raw), nil
}

// DecodeTokens parses a stored text column. Empty input yields an empty list.
func DecodeTokens(raw string) (TokenList, error) {
	if raw == "" {
		return TokenList{}, nil
	}
	var tokens []string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return nil, fmt.Errorf("decode tokens: %w", err)
	}
	if tokens == nil {
		tokens = []string{}
	}
	return TokenList(tokens), nil
}
