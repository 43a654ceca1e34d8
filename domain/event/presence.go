package event

import "team-chat/domain"

// PresenceChanged is published by the presence registry on every
// register and on every deregister of a known identity.
// Transition is true when the count crossed zero in either direction.
type PresenceChanged struct {
	Identity   domain.Identity
	Online     bool
	Count      int
	Transition bool
}

// Update converts a registry event into its client-facing form.
func (p PresenceChanged) Update() PresenceUpdate {
	return PresenceUpdate{UserID: p.Identity.String(), Online: p.Online, Count: p.Count}
}
