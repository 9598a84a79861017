package rawproc

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"os/exec"

	"golang.org/x/image/tiff"

	"photoingest/raster"
)

// demosaic runs the full sensor decode: dcraw unpacks the sensor data,
// demosaics it with high-quality interpolation and camera white balance,
// and streams a TIFF to stdout. dcraw reads the file itself, so this phase
// never holds the original container bytes in memory.
func (c *Converter) demosaic(path string) (*image.NRGBA, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, decodeErr(StageFileRead, path, err)
	}

	// Identify pass: verifies the container before paying for a full decode.
	if out, err := exec.Command(c.dcrawPath, "-i", path).CombinedOutput(); err != nil {
		return nil, decodeErr(StageContainerOpen, path, fmt.Errorf("%v: %s", err, bytes.TrimSpace(out)))
	}

	// -c  write to stdout
	// -T  TIFF output
	// -w  camera white balance
	// -q 3  high-quality interpolation
	cmd := exec.Command(c.dcrawPath, "-c", "-T", "-w", "-q", "3", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, decodeErr(StageUnpack, path, fmt.Errorf("%v: %s", err, bytes.TrimSpace(stderr.Bytes())))
	}

	img, err := tiff.Decode(&stdout)
	if err != nil {
		return nil, decodeErr(StageDemosaic, path, err)
	}

	return raster.ToNRGBA(img), nil
}
