package ir

import "encoding/json"

// HeadData is the payload of the HEAD record that opens every root session.
type HeadData struct {
	RelatedID string `json:"relatedId"`
	Href      string `json:"href"`
	Title     string `json:"title,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Version   string `json:"version"`
	StartTime int64  `json:"startTime"`
}

// Doctype describes the document type declaration.
type Doctype struct {
	Name     string `json:"name,omitempty"`
	PublicID string `json:"publicId,omitempty"`
	SystemID string `json:"systemId,omitempty"`
}

// DocumentMeta is the document-level information that travels with a
// structural snapshot.
type DocumentMeta struct {
	Doctype    Doctype `json:"doctype"`
	Href       string  `json:"href"`
	ScrollTop  int     `json:"scrollTop"`
	ScrollLeft int     `json:"scrollLeft"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FrameID    *int64  `json:"frameId"`
}

// SnapshotData is the payload of a SNAPSHOT record. Tree is the structural
// serialization produced by the snapshot collaborator and is not inspected.
type SnapshotData struct {
	Tree json.RawMessage `json:"vNode"`
	DocumentMeta

	// Patches are resource rewrites the collaborator applied while
	// capturing; each one is emitted as its own PATCH record.
	Patches []json.RawMessage `json:"-"`
}

// SurfaceData is the payload of a CANVAS_SNAPSHOT record.
type SurfaceData struct {
	ID  int64  `json:"id"`
	Src string `json:"src"` // encoded image, usually a data URL
}

// LocationData is the payload of a LOCATION record.
type LocationData struct {
	Href    string `json:"href"`
	Path    string `json:"path,omitempty"`
	Hash    string `json:"hash,omitempty"`
	Title   string `json:"title,omitempty"`
	FrameID *int64 `json:"frameId,omitempty"`
}

// WindowData is the payload of a WINDOW record.
type WindowData struct {
	ID     *int64 `json:"id"` // frame id, nil for the top-level document
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ScrollData is the payload of a SCROLL record.
type ScrollData struct {
	ID   *int64 `json:"id"`
	Top  int    `json:"top"`
	Left int    `json:"left"`
}

// MediaData is the payload of AUDIO and VIDEO records. Chunk is the
// encoded media produced by the context; it is not inspected.
type MediaData struct {
	Kind  string          `json:"type"` // "opts", "start", "chunk" or "stop"
	FPS   int             `json:"fps,omitempty"`
	Chunk json.RawMessage `json:"data,omitempty"`
}
