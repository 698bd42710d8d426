package types

// Fixed ActivityStreams vocabulary this relay produces.
const (
	ActivityStreamsContext = "https://www.w3.org/ns/activitystreams"
	SecurityContext        = "https://w3id.org/security/v1"
	PublicCollection       = "https://www.w3.org/ns/activitystreams#Public"
)

// WebFinger is a struct for a WebFinger (JRD) response.
type WebFinger struct {
	Subject string          `json:"subject"`
	Aliases []string        `json:"aliases,omitempty"`
	Links   []WebFingerLink `json:"links"`
}

// WebFingerLink is a struct for the links field of a WebFinger response.
type WebFingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href"`
}

// WellKnown is a struct for a well-known nodeinfo pointer.
type WellKnown struct {
	Links []WellKnownLink `json:"links"`
}

// WellKnownLink is a struct for the links field of a well-known response.
type WellKnownLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// NodeInfo is a struct for a NodeInfo response.
type NodeInfo struct {
	Version           string           `json:"version,omitempty" yaml:"version"`
	Software          NodeInfoSoftware `json:"software,omitempty" yaml:"software"`
	Protocols         []string         `json:"protocols,omitempty" yaml:"protocols"`
	OpenRegistrations bool             `json:"openRegistrations" yaml:"openRegistrations"`
	Metadata          NodeInfoMetadata `json:"metadata,omitempty" yaml:"metadata"`
}

// NodeInfoSoftware is a struct for the software field of a NodeInfo response.
type NodeInfoSoftware struct {
	Name    string `json:"name,omitempty" yaml:"name"`
	Version string `json:"version,omitempty" yaml:"version"`
}

// NodeInfoMetadata is a struct for the metadata field of a NodeInfo response.
type NodeInfoMetadata struct {
	NodeName        string `json:"nodeName,omitempty" yaml:"nodeName"`
	NodeDescription string `json:"nodeDescription,omitempty" yaml:"nodeDescription"`
}

// ---------------------------------------------------------------------

/// ApObject covers the small set of activity shapes this relay produces:
// Create, Note, Accept, and the actor document. Field names and nesting
// follow the wire format exactly; everything unused is omitted.
type ApObject struct {
	Context           any              `json:"@context,omitempty"`
	ID                string           `json:"id,omitempty"`
	Type              string           `json:"type,omitempty"`
	Actor             string           `json:"actor,omitempty"`
	Name              string           `json:"name,omitempty"`
	PreferredUsername string           `json:"preferredUsername,omitempty"`
	Summary           string           `json:"summary,omitempty"`
	Inbox             string           `json:"inbox,omitempty"`
	Outbox            string           `json:"outbox,omitempty"`
	Followers         string           `json:"followers,omitempty"`
	Endpoints         *PersonEndpoints `json:"endpoints,omitempty"`
	PublicKey         *Key             `json:"publicKey,omitempty"`
	AttributedTo      string           `json:"attributedTo,omitempty"`
	Content           string           `json:"content,omitempty"`
	URL               string           `json:"url,omitempty"`
	OriginalURL       string           `json:"originalUrl,omitempty"`
	Published         string           `json:"published,omitempty"`
	To                []string         `json:"to,omitempty"`
	CC                []string         `json:"cc,omitempty"`
	Tag               []Tag            `json:"tag,omitempty"`
	Attachment        []Attachment     `json:"attachment,omitempty"`
	Object            any              `json:"object,omitempty"`
}

// PersonEndpoints is a struct for the endpoints field of an actor.
type PersonEndpoints struct {
	SharedInbox string `json:"sharedInbox,omitempty"`
}

// Key is a struct for the publicKey field of an actor.
type Key struct {
	ID           string `json:"id,omitempty"`
	Type         string `json:"type,omitempty"`
	Owner        string `json:"owner,omitempty"`
	PublicKeyPem string `json:"publicKeyPem,omitempty"`
}

// Tag is a struct for an ActivityPub tag.
type Tag struct {
	Type string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
	Href string `json:"href,omitempty"`
}

// Attachment is a struct for an ActivityPub attachment.
type Attachment struct {
	Type      string `json:"type,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	URL       string `json:"url,omitempty"`
}

// OrderedCollection is a struct for outbox and followers collections.
type OrderedCollection struct {
	Context      any    `json:"@context"`
	ID           string `json:"id"`
	Type         string `json:"type"`
	TotalItems   int    `json:"totalItems"`
	OrderedItems any    `json:"orderedItems"`
}
