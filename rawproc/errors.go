package rawproc

import "fmt"

// Stage identifies where RAW decoding failed.
type Stage string

const (
	StageFileRead      Stage = "file_unreadable"
	StageContainerOpen Stage = "container_open"
	StageUnpack        Stage = "unpack"
	StageDemosaic      Stage = "demosaic"
	StagePreviewDecode Stage = "preview_decode"
)

// DecodeError is a RAW decode failure tagged with the stage that produced it.
type DecodeError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("raw decode failed at %s for %s: %v", e.Stage, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(stage Stage, path string, err error) *DecodeError {
	return &DecodeError{Stage: stage, Path: path, Err: err}
}
