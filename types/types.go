package types

// RawStatus values recorded for files classified as RAW.
const (
	RawStatusConverted = "converted"
	RawStatusFailed    = "failed"
)

// CaptureMetadata is the subset of capture metadata carried on a PhotoRecord.
// Pointer fields distinguish "not recorded by the camera" from zero values.
type CaptureMetadata struct {
	Make         string   `json:"make,omitempty"`
	Model        string   `json:"model,omitempty"`
	Lens         string   `json:"lens,omitempty"`
	FocalLength  *float64 `json:"focal_length,omitempty"`
	ISO          *int     `json:"iso,omitempty"`
	Aperture     *float64 `json:"aperture,omitempty"`
	ShutterSpeed string   `json:"shutter_speed,omitempty"`
	ExposureBias *float64 `json:"exposure_bias,omitempty"`
	TakenAt      string   `json:"taken_at,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Altitude     *float64 `json:"altitude,omitempty"`
	// Orientation holds the EXIF orientation code (1-8), 0 when absent.
	Orientation int `json:"orientation,omitempty"`
}

// PhotoRecord is the normalized result of processing one input file.
//
// Invariants:
//   - Width and Height are both set or both nil, and set iff decode succeeded.
//   - Embedding, when present, has the configured fixed length.
//   - RawStatus is set iff the file was classified as RAW.
//   - Exactly one of (Success=true) or (Error != "") holds.
type PhotoRecord struct {
	Path       string `json:"path"` // relative path, as passed in
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	CreatedAt  int64  `json:"created_at"`  // epoch milliseconds
	ModifiedAt int64  `json:"modified_at"` // epoch milliseconds

	Width    *int   `json:"width,omitempty"`
	Height   *int   `json:"height,omitempty"`
	MimeType string `json:"mime_type,omitempty"`

	PHash       string    `json:"phash,omitempty"`
	AverageHash string    `json:"average_hash,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`

	Exif *CaptureMetadata `json:"exif,omitempty"`

	IsRaw            bool   `json:"is_raw"`
	RawFormat        string `json:"raw_format,omitempty"`
	RawStatus        string `json:"raw_status,omitempty"`
	RawError         string `json:"raw_error,omitempty"`
	HistogramMatched bool   `json:"histogram_matched,omitempty"`
	ProcessingTimeMs int64  `json:"processing_time_ms,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// HasDimensions reports whether the record carries decoded pixel dimensions.
func (r *PhotoRecord) HasDimensions() bool {
	return r.Width != nil && r.Height != nil
}
