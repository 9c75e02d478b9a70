// Package types defines the UI-facing values shared across Jarvis packages.
//
// The session engine, the tool dispatcher and the console all speak in terms of
// [Message]: a role-tagged line of text with optional structured metadata
// (generated images, search sources, errors). Keeping it here avoids an import
// cycle between internal/session and internal/tools.
package types

// Role identifies who a [Message] is attributed to.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// MetadataType classifies the structured payload attached to a [Message].
type MetadataType string

const (
	// MetadataImageGen carries an image produced from a text prompt.
	MetadataImageGen MetadataType = "image_gen"

	// MetadataReimagine carries an image produced from the cached camera frame.
	MetadataReimagine MetadataType = "reimagine"

	// MetadataSearch carries the sources a grounded answer was built from.
	MetadataSearch MetadataType = "search"

	// MetadataError marks a failed tool invocation.
	MetadataError MetadataType = "error"
)

// Source is a single web citation from grounding metadata.
type Source struct {
	Title string
	URI   string
}

// Metadata is the structured part of a [Message].
type Metadata struct {
	Type MetadataType

	// Image is a data URL (data:image/png;base64,...) for image results.
	Image string

	// Sources lists citations for [MetadataSearch].
	Sources []Source

	// Error is a short human-readable failure description for [MetadataError].
	Error string
}

// Message is a single UI event emitted by the session engine.
type Message struct {
	Role Role
	Text string

	// Transcript is true for live speech transcription (user or model).
	Transcript bool

	// Metadata is nil for plain text messages.
	Metadata *Metadata
}
