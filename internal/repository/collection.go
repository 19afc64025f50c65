package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"appointment-bot/internal/domain"
)

// ErrConflict is returned when a concurrent writer kept winning the append race.
var ErrConflict = errors.New("repository: concurrent append conflict")

// collection is the appointment blob layout: sequential string id -> record.
type collection map[string]domain.Appointment

func decodeCollection(raw []byte) (collection, error) {
	coll := collection{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return coll, nil
	}
	if err := json.Unmarshal(raw, &coll); err != nil {
		return nil, fmt.Errorf("repository: decode appointments: %w", err)
	}
	return coll, nil
}

func (c collection) encode() ([]byte, error) {
	raw, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("repository: encode appointments: %w", err)
	}
	return append(raw, '\n'), nil
}

// nextID is size+1, raised past the highest numeric id so an id is never reused.
func (c collection) nextID() string {
	highest := len(c)
	for id := range c {
		if n, err := strconv.Atoi(id); err == nil && n > highest {
			highest = n
		}
	}
	return strconv.Itoa(highest + 1)
}

// add stores a under the next id and returns that id.
func (c collection) add(a domain.Appointment) string {
	id := c.nextID()
	a.ID = ""
	if a.Team == nil {
		a.Team = []string{}
	}
	c[id] = a
	return id
}

// list returns the records ordered by numeric id.
func (c collection) list() []domain.Appointment {
	out := make([]domain.Appointment, 0, len(c))
	for id, a := range c {
		a.ID = id
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out
}

func idLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
