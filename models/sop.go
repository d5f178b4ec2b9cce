package models

import (
	"encoding/json"
	"time"
)

// SOPImage is an image attached to an SOP section. URL is a transient
// locator (usually a signed URL); StoragePath is the durable reference.
type SOPImage struct {
	URL         string `bson:"url,omitempty" json:"url,omitempty"`
	StoragePath string `bson:"storage_path" json:"storagePath,omitempty"`
	Caption     string `bson:"caption" json:"caption"`
	Keyword     string `bson:"keyword" json:"keyword"`
}

// UnmarshalJSON accepts the legacy "gcsPath" field as an alias of storagePath.
func (img *SOPImage) UnmarshalJSON(data []byte) error {
	type plain SOPImage
	var aux struct {
		plain
		GCSPath string `json:"gcsPath,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*img = SOPImage(aux.plain)
	if img.StoragePath == "" {
		img.StoragePath = aux.GCSPath
	}
	return nil
}

// Attachable reports whether the image can be matched against chat text.
func (img SOPImage) Attachable() bool {
	return img.Keyword != ""
}

// SOPSection is one named unit of procedural knowledge.
type SOPSection struct {
	ID      string     `bson:"id" json:"id"`
	Title   string     `bson:"title" json:"title"`
	Content string     `bson:"content" json:"content"`
	Images  []SOPImage `bson:"images" json:"images"`
}

// Version is an immutable, content-addressed knowledge-base snapshot.
type Version struct {
	VersionID   string         `bson:"version_id" json:"versionId"`
	CreatedAt   time.Time      `bson:"created_at" json:"createdAt"`
	Sections    []SOPSection   `bson:"sections" json:"sections,omitempty"`
	ContentHash string         `bson:"content_hash" json:"contentHash"`
	Metadata    map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// VersionSummary is a Version without its sections, used for history listings.
type VersionSummary struct {
	VersionID    string         `json:"versionId"`
	CreatedAt    time.Time      `json:"createdAt"`
	ContentHash  string         `json:"contentHash"`
	SectionCount int            `json:"sectionCount"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Summary drops the section bodies.
func (v Version) Summary() VersionSummary {
	return VersionSummary{
		VersionID:    v.VersionID,
		CreatedAt:    v.CreatedAt,
		ContentHash:  v.ContentHash,
		SectionCount: len(v.Sections),
		Metadata:     v.Metadata,
	}
}

// PendingSOPSection is an AI-parsed section awaiting admin review.
type PendingSOPSection struct {
	Title    string     `json:"title"`
	Content  string     `json:"content"`
	Selected bool       `json:"selected"`
	Images   []SOPImage `json:"images,omitempty"`
}

// UnmarshalJSON defaults Selected to true when the field is absent.
func (p *PendingSOPSection) UnmarshalJSON(data []byte) error {
	type plain PendingSOPSection
	aux := struct {
		plain
		Selected *bool `json:"selected"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = PendingSOPSection(aux.plain)
	p.Selected = aux.Selected == nil || *aux.Selected
	return nil
}

// PendingSOP is the review draft produced by a document upload.
type PendingSOP struct {
	Sections []PendingSOPSection `json:"sections"`
}

// CommitRequest is the body of POST /api/sop/commit.
type CommitRequest struct {
	Sections []SOPSection  `json:"sections"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CommitResponse is returned by commit and draft confirmation.
type CommitResponse struct {
	VersionID   string `json:"versionId"`
	Created     bool   `json:"created"`
	ContentHash string `json:"contentHash"`
	Success     bool   `json:"success"`
}

// ParseSOPRequest carries an inline document as a base64 data URL.
type ParseSOPRequest struct {
	Base64Data string `json:"base64Data" binding:"required"`
	MimeType   string `json:"mimeType"`
}

// ParseURLRequest asks the server to import a web page.
type ParseURLRequest struct {
	URL      string `json:"url" binding:"required"`
	RenderJS bool   `json:"renderJs"`
}

// ParseTaskStatus reports an asynchronous parse job.
type ParseTaskStatus struct {
	TaskID string      `json:"taskId"`
	State  string      `json:"state"`
	Error  string      `json:"error,omitempty"`
	Draft  *PendingSOP `json:"draft,omitempty"`
}
