package domain

import (
	"github.com/google/uuid"

	"stockledger/pkg/document"
)

// ConfigDocID is the fixed identifier of the singleton tag-numbering
// configuration document.
const ConfigDocID = "config"

// PasswordEncoding selects how RFID access passwords are encoded into tags.
type PasswordEncoding string

const (
	PasswordEncodingHex PasswordEncoding = "hex"
	PasswordEncodingDec PasswordEncoding = "dec"
)

// TagConfig holds the tag-numbering parameters consumed by the RFID encoding
// logic outside this core. It is stored as a single document with a fixed id
// and updated last-writer-wins.
type TagConfig struct {
	UUID             string           `json:"uuid"`
	CompanyPrefix    string           `json:"company_prefix"`
	IARPrefix        string           `json:"iar_prefix"`
	AccessPassword   string           `json:"access_password"`
	MixedPassword    bool             `json:"mixed_password"`
	PasswordEncoding PasswordEncoding `json:"password_encoding"`
	CollectionOrder  []string         `json:"collection_order"`
	Rev              string           `json:"-"`
}

// DefaultTagConfig returns an in-memory default configuration carrying a
// freshly generated uuid. It is never written implicitly.
func DefaultTagConfig() TagConfig {
	return TagConfig{
		UUID:             uuid.NewString(),
		PasswordEncoding: PasswordEncodingHex,
		CollectionOrder:  []string{},
	}
}

// ConfigFromDoc decodes the singleton config document.
func ConfigFromDoc(doc document.Document) TagConfig {
	cfg := TagConfig{Rev: doc.Rev()}
	cfg.UUID, _ = doc["uuid"].(string)
	cfg.CompanyPrefix, _ = doc["company_prefix"].(string)
	cfg.IARPrefix, _ = doc["iar_prefix"].(string)
	cfg.AccessPassword, _ = doc["access_password"].(string)
	cfg.MixedPassword, _ = doc["mixed_password"].(bool)
	if enc, ok := doc["password_encoding"].(string); ok {
		cfg.PasswordEncoding = PasswordEncoding(enc)
	}
	if order, ok := doc["collection_order"].([]any); ok {
		cfg.CollectionOrder = make([]string, 0, len(order))
		for _, entry := range order {
			if s, ok := entry.(string); ok {
				cfg.CollectionOrder = append(cfg.CollectionOrder, s)
			}
		}
	}
	return cfg
}

// DocFromConfig encodes the configuration into its document form.
func DocFromConfig(cfg TagConfig) document.Document {
	order := make([]any, len(cfg.CollectionOrder))
	for i, s := range cfg.CollectionOrder {
		order[i] = s
	}
	doc := document.Document{
		document.FieldID:    ConfigDocID,
		"uuid":              cfg.UUID,
		"company_prefix":    cfg.CompanyPrefix,
		"iar_prefix":        cfg.IARPrefix,
		"access_password":   cfg.AccessPassword,
		"mixed_password":    cfg.MixedPassword,
		"password_encoding": string(cfg.PasswordEncoding),
		"collection_order":  order,
	}
	if cfg.Rev != "" {
		doc[document.FieldRev] = cfg.Rev
	}
	return doc
}
