package models

// ImageAttrs is the plaintext description of an image attachment. It holds
// no image content.
type ImageAttrs struct {
	NoteKey     string `json:"note_key"`
	ContentHash string `json:"content_hash"`
	MimeType    string `json:"mime_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ByteSize    int64  `json:"byte_size"`
	// RemotePath is set only after the encrypted blob was uploaded.
	RemotePath string `json:"remote_path,omitempty"`
}

// ImageMeta is Meta for an image record.
type ImageMeta struct {
	Meta
	ImageAttrs
}

// Image is a decrypted attachment handed back to callers.
type Image struct {
	Key string
	ImageAttrs
	Data []byte
}
