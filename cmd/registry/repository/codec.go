package repository

import (
	"github.com/lyzr/registry/cmd/registry/models"
	"github.com/lyzr/registry/common/durable"
)

// assetRecord is the stored form of an asset. Owner and FileName are opaque
// bytes that need not be valid UTF-8, so they travel as []byte (base64 in
// JSON) and are never rewritten by the encoder.
type assetRecord struct {
	Owner    []byte `json:"owner"`
	Content  []byte `json:"content"`
	FileName []byte `json:"file_name"`
}

// AssetCodec encodes assets losslessly: Decode(Encode(a)) equals a for every
// byte sequence in every field.
type AssetCodec struct {
	records durable.JSONCodec[assetRecord]
}

func (c AssetCodec) Encode(a models.Asset) ([]byte, error) {
	return c.records.Encode(assetRecord{
		Owner:    []byte(a.Owner),
		Content:  a.Content,
		FileName: []byte(a.FileName),
	})
}

func (c AssetCodec) Decode(data []byte) (models.Asset, error) {
	rec, err := c.records.Decode(data)
	if err != nil {
		return models.Asset{}, err
	}
	return models.Asset{
		Owner:    models.Principal(rec.Owner),
		Content:  rec.Content,
		FileName: string(rec.FileName),
	}, nil
}
