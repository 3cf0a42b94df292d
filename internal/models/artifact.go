package models

import "time"

// ReportArtifact is a rendered report. Owned by the job until handed to the
// publisher; retrievable by the job's ResultURI after a successful publish.
type ReportArtifact struct {
	Format      ReportFormat `json:"format"`
	Bytes       []byte       `json:"-"`
	Checksum    string       `json:"checksum"`     // Over content excluding the generation timestamp
	GeneratedAt time.Time    `json:"generated_at"` // Recorded separately, not part of the checksum
	IsStub      bool         `json:"is_stub"`      // Rendered from placeholder data
}

// FileExtension returns the artifact file extension for the format
func (a *ReportArtifact) FileExtension() string {
	switch a.Format {
	case FormatExcel:
		return "xlsx"
	case FormatHTML:
		return "html"
	default:
		return "pdf"
	}
}
