package usecase

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// AccessGate decides who may start the appointment flow.
type AccessGate struct {
	allowed map[string]struct{}
}

func NewAccessGate(userIDs []string) *AccessGate {
	g := &AccessGate{allowed: make(map[string]struct{}, len(userIDs))}
	for _, id := range userIDs {
		if id = strings.TrimSpace(id); id != "" {
			g.allowed[id] = struct{}{}
		}
	}
	return g
}

// ParseAllowList decodes a YAML sequence of user ids. Numeric ids are accepted.
func ParseAllowList(raw []byte) (*AccessGate, error) {
	var ids []string
	if err := yaml.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("usecase: decode allow list: %w", err)
	}
	return NewAccessGate(ids), nil
}

func (g *AccessGate) Authorize(userID string) bool {
	if g == nil {
		return false
	}
	_, ok := g.allowed[strings.TrimSpace(userID)]
	return ok
}
