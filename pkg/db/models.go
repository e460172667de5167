package db

import "time"

// ProviderDocument is a row in the provider_documents table.
type ProviderDocument struct {
	Name     string    `json:"name"`
	Format   string    `json:"format"`
	Body     []byte    `json:"body"`
	Revision int       `json:"revision"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// UpsertProviderDocumentParams holds parameters for UpsertProviderDocument.
type UpsertProviderDocumentParams struct {
	Name   string
	Format string
	Body   []byte
}
