// Package assistant is the intent-dispatch engine: it consumes one inbound
// chat message, asks the reasoning backend what to do, executes the chosen
// action against the calendar or geocoder, and produces the outbound reply.
package assistant

// Reply is what the transport should deliver for one inbound event.
// Messages are sent in order as separate chat messages.
type Reply struct {
	Messages []string

	// RequestLocation asks the transport to show a share-location
	// button; RemoveKeyboard clears it. At most one is set.
	RequestLocation bool
	RemoveKeyboard  bool
}

// NewReply builds a plain reply.
func NewReply(messages ...string) *Reply {
	return &Reply{Messages: messages}
}

// Coordinates is a WGS84 point shared by the user.
type Coordinates struct {
	Lat float64
	Lng float64
}
