package manifest

// EntryDTO is the JSON/YAML representation of [Entry]
type EntryDTO struct {
	Path          string    `json:"path" yaml:"path"`
	Type          EntryType `json:"type" yaml:"type"`
	ID            *string   `json:"id,omitempty" yaml:"id,omitempty"`                         // Optional ID for log correlation
	Content       *string   `json:"content,omitempty" yaml:"content,omitempty"`               // Text content
	ContentBase64 *string   `json:"content_base64,omitempty" yaml:"content_base64,omitempty"` // Binary content; implies binary
	Lines         []string  `json:"lines,omitempty" yaml:"lines,omitempty"`                   // Text content as lines
	Binary        *bool     `json:"binary,omitempty" yaml:"binary,omitempty"`
	DirectSync    *bool     `json:"direct_sync,omitempty" yaml:"direct_sync,omitempty"`
	Perms         *uint32   `json:"perms,omitempty" yaml:"perms,omitempty"` // i.e. 0o644
}

// DocumentDTO is the top-level manifest document
type DocumentDTO struct {
	Entries []EntryDTO `json:"entries" yaml:"entries"`
}
