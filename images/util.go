package images

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Checksum generates a deterministic digest of a Mat's pixel data, used to
// compare masks across runs and configurations.
//
// Arguments:
//   - mat: The Mat to compute the checksum for.
//
// Returns:
//   - string: Hex-encoded SHA-256 digest, "empty" for an empty Mat.
//   - error: An error if the Mat data cannot be accessed.
func Checksum(mat gocv.Mat) (string, error) {
	if mat.Empty() {
		return "empty", nil
	}

	data, err := mat.DataPtrUint8()
	if err != nil {
		return "", errors.Wrap(err, "failed to access mat data")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
