package usecase

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Member is a team directory entry.
type Member struct {
	Name   string
	ChatID string
}

// TeamDirectory maps member names to notification destinations.
// It is immutable after construction and keeps the configured order.
type TeamDirectory struct {
	members []Member
	index   map[string]string
}

func NewTeamDirectory(members []Member) (*TeamDirectory, error) {
	d := &TeamDirectory{
		members: make([]Member, 0, len(members)),
		index:   make(map[string]string, len(members)),
	}
	for _, m := range members {
		name := strings.TrimSpace(m.Name)
		chatID := strings.TrimSpace(m.ChatID)
		if name == "" {
			return nil, errors.New("usecase: team member name must not be empty")
		}
		if chatID == "" {
			return nil, fmt.Errorf("usecase: team member %q has no chat id", name)
		}
		if _, dup := d.index[name]; dup {
			return nil, fmt.Errorf("usecase: duplicate team member %q", name)
		}
		d.index[name] = chatID
		d.members = append(d.members, Member{Name: name, ChatID: chatID})
	}
	return d, nil
}

// ParseTeamDirectory decodes a YAML mapping of member name to chat id.
// Mapping order is preserved so keyboards render in the configured order.
func ParseTeamDirectory(raw []byte) (*TeamDirectory, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("usecase: decode team directory: %w", err)
	}
	if len(doc.Content) == 0 {
		return NewTeamDirectory(nil)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("usecase: team directory must be a mapping of name to chat id")
	}
	members := make([]Member, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("usecase: team member %q: chat id must be a scalar", key.Value)
		}
		members = append(members, Member{Name: key.Value, ChatID: val.Value})
	}
	return NewTeamDirectory(members)
}

// Lookup returns the destination for name.
func (d *TeamDirectory) Lookup(name string) (string, bool) {
	chatID, ok := d.index[name]
	return chatID, ok
}

// Members returns the entries in configured order.
func (d *TeamDirectory) Members() []Member {
	out := make([]Member, len(d.members))
	copy(out, d.members)
	return out
}
