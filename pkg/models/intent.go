package models

// Capability is the category of external action a task unit requires.
type Capability string

const (
	// CapabilityNotion is a document-store write (memo, todo, note).
	CapabilityNotion Capability = "notion"
	// CapabilityCalendar is a calendar event action.
	CapabilityCalendar Capability = "calendar"
	// CapabilityGmail is a mail send or reply action.
	CapabilityGmail Capability = "gmail"
	// CapabilityLink is a message-link action (URL fetch/summarize).
	CapabilityLink Capability = "link"
)

// Valid returns true if the capability is a known value.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityNotion, CapabilityCalendar, CapabilityGmail, CapabilityLink:
		return true
	default:
		return false
	}
}

// Capabilities lists all known capabilities in a stable order.
func Capabilities() []Capability {
	return []Capability{CapabilityNotion, CapabilityCalendar, CapabilityGmail, CapabilityLink}
}

// Hint is one decomposition hint carried by a compound intent.
// Hints are ranked by classifier confidence, descending.
type Hint struct {
	// Capability is the collaborator category this hint maps to.
	Capability Capability `json:"capability"`
	// Confidence is the classifier's confidence for this capability.
	Confidence float64 `json:"confidence"`
	// Action is a short description of what the unit should do.
	Action string `json:"action,omitempty"`
	// DependsOn lists capabilities whose output this action requires.
	DependsOn []Capability `json:"depends_on,omitempty"`
}

// Intent is the classification output for a raw request.
// An Intent is immutable once produced by the router.
type Intent struct {
	// Kind is the highest-confidence capability.
	Kind Capability `json:"kind"`
	// IsCompound is true when the request bundles multiple distinct actions.
	IsCompound bool `json:"is_compound"`
	// Confidence is the classifier's confidence for Kind.
	Confidence float64 `json:"confidence"`
	// Hints carries all capabilities above the floor, ranked by confidence
	// descending. For a simple intent it holds the single matched capability.
	Hints []Hint `json:"hints,omitempty"`
}
