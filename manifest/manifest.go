// Package manifest describes a directory tree declaratively and applies it
// to a [filesystem.Directory] in memory. Nothing touches disk until the
// caller flushes the root.
package manifest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/fstree/filesystem"
	"github.com/brettbedarf/fstree/internal/util"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// EntryType valid types are DirEntry "dir", FileEntry "file" and DeleteEntry "delete"
type EntryType string

const (
	DirEntry    EntryType = "dir"
	FileEntry   EntryType = "file"
	DeleteEntry EntryType = "delete"
)

// Entry is a single manifest instruction with defaults applied
type Entry struct {
	ID         string
	Path       []string // cleaned, relative segments
	Type       EntryType
	Content    []byte // nil leaves existing content alone
	Binary     bool
	DirectSync bool
	Perms      *fs.FileMode
}

// Defaults fill in what entries leave unset
type Defaults struct {
	FilePerms  fs.FileMode // 0 leaves permissions untouched
	DirPerms   fs.FileMode // 0 leaves permissions untouched
	DirectSync bool
	// DirOptions configure directories the manifest creates
	DirOptions []filesystem.DirOption
}

// Unmarshal parses a manifest document. format is "yaml" or "json".
func Unmarshal(data []byte, format string) ([]Entry, error) {
	var doc DocumentDTO
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown manifest format: %s", format)
	}

	entries := make([]Entry, 0, len(doc.Entries))
	for i, dto := range doc.Entries {
		entry, err := convertEntryDTO(dto)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// LoadFile reads a manifest, choosing the format by file extension
func LoadFile(p string) ([]Entry, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(p)), ".")
	return Unmarshal(data, ext)
}

// Conversion logic with defaults in the unmarshaling layer
func convertEntryDTO(dto EntryDTO) (Entry, error) {
	segments, err := splitPath(dto.Path)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		ID:         util.ValueOrDefault(dto.ID, uuid.New().String()),
		Path:       segments,
		Type:       dto.Type,
		Binary:     util.ValueOrDefault(dto.Binary, false),
		DirectSync: util.ValueOrDefault(dto.DirectSync, false),
	}
	if dto.Perms != nil {
		mode := fs.FileMode(*dto.Perms).Perm()
		entry.Perms = &mode
	}

	switch dto.Type {
	case DirEntry, DeleteEntry:
		if dto.Content != nil || dto.ContentBase64 != nil || dto.Lines != nil {
			return Entry{}, fmt.Errorf("%s entry %q cannot carry content", dto.Type, dto.Path)
		}
	case FileEntry:
		switch {
		case dto.ContentBase64 != nil:
			data, err := base64.StdEncoding.DecodeString(*dto.ContentBase64)
			if err != nil {
				return Entry{}, fmt.Errorf("decode content_base64 of %q: %w", dto.Path, err)
			}
			entry.Content = data
			entry.Binary = true
		case dto.Content != nil:
			entry.Content = []byte(*dto.Content)
		case dto.Lines != nil:
			entry.Content = []byte(strings.Join(dto.Lines, "\n"))
		}
	default:
		return Entry{}, fmt.Errorf("unknown entry type %q for %q", dto.Type, dto.Path)
	}
	return entry, nil
}

// splitPath cleans a slash separated relative path into segments
func splitPath(p string) ([]string, error) {
	if strings.TrimSpace(p) == "" {
		return nil, errors.New("empty path")
	}
	// "foo/bar" and "/foo/bar" are equivalent; everything is relative to root
	cleaned := strings.TrimPrefix(path.Clean("/"+p), "/")
	if cleaned == "" {
		return nil, fmt.Errorf("path %q refers to the root", p)
	}
	return strings.Split(cleaned, "/"), nil
}
