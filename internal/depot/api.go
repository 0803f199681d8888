package depot

import "encoding/xml"

// ErrorResponse is the XML error body returned by every failing API call.
// The code distinguishes "no room" from plain I/O trouble so clients can
// react differently to each.
type ErrorResponse struct {
	XMLName  xml.Name `xml:"Error"`
	Code     string   `xml:"Code"`
	Message  string   `xml:"Message"`
	Resource string   `xml:"Resource"`
}

// Error codes used in ErrorResponse.
const (
	CodeInsufficientStorage = "InsufficientStorage"
	CodeNoSuchArtifact      = "NoSuchArtifact"
	CodeInvalidArtifactPath = "InvalidArtifactPath"
	CodeInternalError       = "InternalError"
	CodeAccessDenied        = "AccessDenied"
	CodeNotDirectory        = "NotDirectory"
)

// PutArtifactResult is the XML response for a successful upload, describing
// the artifact's on-disk state immediately after the write.
type PutArtifactResult struct {
	XMLName      xml.Name `xml:"PutArtifactResult"`
	Path         string   `xml:"Path"`
	Size         int64    `xml:"Size"`
	LastModified string   `xml:"LastModified"`
	Checksum     string   `xml:"Checksum"`
}

// ListDirectoryResult is the XML response for listing a directory inside the
// repository tree.
type ListDirectoryResult struct {
	XMLName xml.Name         `xml:"ListDirectoryResult"`
	Path    string           `xml:"Path"`
	Entries []DirectoryEntry `xml:"Entries>Entry"`
}

// DirectoryEntry is a single child in a ListDirectoryResult.
type DirectoryEntry struct {
	Name         string `xml:"Name"`
	Size         int64  `xml:"Size"`
	LastModified string `xml:"LastModified"`
	Directory    bool   `xml:"Directory"`
}

// StorageStatus is the XML response for the operator status endpoint.
type StorageStatus struct {
	XMLName    xml.Name `xml:"StorageStatus"`
	UsageBytes int64    `xml:"UsageBytes"`
	LimitBytes int64    `xml:"LimitBytes"`
	Full       bool     `xml:"Full"`
}

// SearchResult is the XML response for the indexed-artifact search endpoint.
type SearchResult struct {
	XMLName   xml.Name         `xml:"SearchResult"`
	Prefix    string           `xml:"Prefix"`
	Artifacts []ArtifactRecord `xml:"Artifacts>Artifact"`
}

// ArtifactRecord is one indexed artifact in a SearchResult.
type ArtifactRecord struct {
	Path        string `xml:"Path"`
	Size        int64  `xml:"Size"`
	Checksum    string `xml:"Checksum"`
	ContentType string `xml:"ContentType"`
	CreatedAt   string `xml:"CreatedAt"`
}
