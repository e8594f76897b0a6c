package models

// Principal is an opaque caller identity supplied by the transport.
// Two principals are the same caller iff their canonical strings are equal.
type Principal string

// String returns the canonical form
func (p Principal) String() string {
	return string(p)
}

// IsAnonymous reports whether no identity was supplied
func (p Principal) IsAnonymous() bool {
	return p == ""
}

// Asset is an opaque payload plus its metadata.
// The id is the map key and is never stored inside the value.
type Asset struct {
	// Owner is the uploader; immutable after insertion
	Owner Principal `json:"owner"`

	// Content is stored verbatim; encoded as base64 in JSON
	Content []byte `json:"content"`

	// FileName is a display label only
	FileName string `json:"file_name"`
}

// Size returns the payload length in bytes
func (a *Asset) Size() int {
	return len(a.Content)
}

// AssetEntry pairs an asset with its id, as returned by listings
type AssetEntry struct {
	ID    string `json:"id"`
	Asset Asset  `json:"asset"`
}
