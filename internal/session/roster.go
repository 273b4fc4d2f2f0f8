package session

import (
	"time"

	"pollroom/pkg/types"
)

// Roster maps connection identity to participant identity.
// It is not safe for concurrent use; the hub owns it from a single goroutine.
type Roster struct {
	byConnection map[string]types.Participant
	order        []string // connection ids in registration order
}

// NewRoster creates an empty roster
func NewRoster() *Roster {
	return &Roster{
		byConnection: make(map[string]types.Participant),
	}
}

// Register adds connectionID under name. The name is trimmed first; it must be
// 2-20 characters and not held by any current participant.
func (r *Roster) Register(connectionID, name string, joinedAt time.Time) (types.Participant, error) {
	trimmed, err := types.NormalizeName(name)
	if err != nil {
		return types.Participant{}, err
	}
	if _, taken := r.Find(trimmed); taken {
		return types.Participant{}, types.ErrNameTaken
	}

	participant := types.Participant{
		ConnectionID: connectionID,
		Name:         trimmed,
		JoinedAt:     joinedAt,
	}
	r.byConnection[connectionID] = participant
	r.order = append(r.order, connectionID)
	return participant, nil
}

// Remove drops connectionID from the roster. Removing an absent connection is a no-op.
func (r *Roster) Remove(connectionID string) (types.Participant, bool) {
	participant, exists := r.byConnection[connectionID]
	if !exists {
		return types.Participant{}, false
	}
	delete(r.byConnection, connectionID)
	for i, id := range r.order {
		if id == connectionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return participant, true
}

// Find returns the connection registered under name, exact match
func (r *Roster) Find(name string) (string, bool) {
	for _, id := range r.order {
		if r.byConnection[id].Name == name {
			return id, true
		}
	}
	return "", false
}

// Get returns the participant registered for connectionID
func (r *Roster) Get(connectionID string) (types.Participant, bool) {
	participant, exists := r.byConnection[connectionID]
	return participant, exists
}

// Contains reports whether connectionID is a registered participant
func (r *Roster) Contains(connectionID string) bool {
	_, exists := r.byConnection[connectionID]
	return exists
}

// ListNames returns participant names in registration order
func (r *Roster) ListNames() []string {
	names := make([]string, 0, len(r.order))
	for _, id := range r.order {
		names = append(names, r.byConnection[id].Name)
	}
	return names
}

// List returns participants in registration order
func (r *Roster) List() []types.Participant {
	participants := make([]types.Participant, 0, len(r.order))
	for _, id := range r.order {
		participants = append(participants, r.byConnection[id])
	}
	return participants
}

// Len returns the number of registered participants
func (r *Roster) Len() int {
	return len(r.byConnection)
}
