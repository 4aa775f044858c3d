package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// State is round-tripped through the provider during the login flow.
type State struct {
	CameFrom string `json:"came_from,omitempty"`
}

type encodedState struct {
	State
	Nonce string `json:"nonce"`
}

func (s *State) Encode(nonce string) (string, error) {
	raw, err := json.Marshal(encodedState{State: *s, Nonce: nonce})
	if err != nil {
		return "", fmt.Errorf("error JSON-encoding state: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

func ParseState(param string) (*State, string, error) {
	if param == "" {
		return nil, "", errors.New("state is empty")
	}
	raw, err := base64.URLEncoding.DecodeString(param)
	if err != nil {
		return nil, "", fmt.Errorf("error decoding state: %w", err)
	}
	var decoded encodedState
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, "", fmt.Errorf("error JSON-decoding state: %w", err)
	}
	if decoded.Nonce == "" {
		return nil, "", errors.New("state has no nonce")
	}
	return &decoded.State, decoded.Nonce, nil
}
