package api

import (
	"github.com/openticks/dbz/pkg/metadata"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port   int
	Bind   string
	APIKey string // optional; empty disables authentication
	// MaxUploadBytes caps the size of an uploaded stream. Zero means
	// unlimited.
	MaxUploadBytes int64
	// MaxRecords caps the number of records converted per request. Zero
	// means unlimited.
	MaxRecords uint64
}

// MetadataResponse is the JSON view of a parsed DBZ header
type MetadataResponse struct {
	Version     uint8    `json:"version"`
	Dataset     string   `json:"dataset"`
	Schema      string   `json:"schema"`
	Start       uint64   `json:"start"`
	End         uint64   `json:"end"`
	Limit       uint64   `json:"limit,omitempty"`
	RecordCount *uint64  `json:"record_count"`
	Compression string   `json:"compression"`
	STypeIn     string   `json:"stype_in"`
	STypeOut    string   `json:"stype_out"`
	Symbols     []string `json:"symbols,omitempty"`
	Partial     []string `json:"partial,omitempty"`
	NotFound    []string `json:"not_found,omitempty"`
	Mappings    int      `json:"mappings"`
	Warnings    []string `json:"warnings,omitempty"`
}

// newMetadataResponse flattens a parsed header for transport. An unknown
// record count is carried as null rather than its sentinel value.
func newMetadataResponse(meta *metadata.Metadata, warnings []metadata.Warning) MetadataResponse {
	resp := MetadataResponse{
		Version:     meta.Version,
		Dataset:     meta.Dataset,
		Schema:      meta.Schema.String(),
		Start:       meta.Start,
		End:         meta.End,
		Limit:       meta.Limit,
		Compression: meta.Compression.String(),
		STypeIn:     meta.STypeIn.String(),
		STypeOut:    meta.STypeOut.String(),
		Symbols:     meta.Symbols,
		Partial:     meta.Partial,
		NotFound:    meta.NotFound,
		Mappings:    len(meta.Mappings),
	}
	if meta.RecordCount != metadata.RecordCountUnknown {
		count := meta.RecordCount
		resp.RecordCount = &count
	}
	for _, w := range warnings {
		resp.Warnings = append(resp.Warnings, w.String())
	}
	return resp
}
