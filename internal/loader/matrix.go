package loader

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"

	"transitsim/internal/apperrors"
)

// travelTimeMetadata is the companion JSON sidecar of spec.md section 6
// for the travel-time matrix.
type travelTimeMetadata struct {
	StationMapping         map[string]int `json:"station_mapping"`
	TimeSlotDurationSecs   float64        `json:"time_slot_duration_seconds"`
	NumTimeSlots           int            `json:"n_time_slots"`
	MatrixShape            []int          `json:"matrix_shape"`
}

// odMatrixMetadata is the companion JSON sidecar for the OD matrix.
type odMatrixMetadata struct {
	StationIDs           []string `json:"station_ids"`
	NumTimeSlots         int      `json:"n_time_slots"`
	TimeSlotDurationSecs float64  `json:"time_slot_duration_seconds"`
}

// MatrixData is a decoded binary matrix plus the shape it was declared
// to have.
type MatrixData struct {
	N                int
	Slots            int
	SlotDurationSecs float64
	StationMapping   map[string]int
	Values           []float32
}

// LoadTravelTimeMatrix reads the binary matrix file and its metadata
// sidecar (spec.md section 6): a row-major array of little-endian
// 32-bit floats of shape (N, N) or (N, N, S).
func LoadTravelTimeMatrix(matrixPath, metadataPath string) (*MatrixData, error) {
	meta, err := readJSON[travelTimeMetadata](metadataPath)
	if err != nil {
		return nil, err
	}
	n, slots, err := shapeFromMetadata(meta.MatrixShape, len(meta.StationMapping))
	if err != nil {
		return nil, err
	}
	if meta.NumTimeSlots > 0 {
		slots = meta.NumTimeSlots
	}
	values, err := readFloat32Binary(matrixPath, n*n*slots)
	if err != nil {
		return nil, err
	}
	return &MatrixData{
		N:                n,
		Slots:            slots,
		SlotDurationSecs: meta.TimeSlotDurationSecs,
		StationMapping:   meta.StationMapping,
		Values:           values,
	}, nil
}

// ODMatrixData is a decoded OD-demand binary matrix plus its metadata.
type ODMatrixData struct {
	StationIDs       []string
	NumSlots         int
	SlotDurationSecs float64
	Values           []float32
}

// LoadODMatrix reads the OD-demand matrix binary file and metadata
// sidecar.
func LoadODMatrix(matrixPath, metadataPath string) (*ODMatrixData, error) {
	meta, err := readJSON[odMatrixMetadata](metadataPath)
	if err != nil {
		return nil, err
	}
	n := len(meta.StationIDs)
	if n == 0 {
		return nil, apperrors.New(apperrors.KindDataLoad, "OD matrix metadata has no station_ids")
	}
	slots := meta.NumTimeSlots
	if slots <= 0 {
		slots = 1
	}
	values, err := readFloat32Binary(matrixPath, n*n*slots)
	if err != nil {
		return nil, err
	}
	return &ODMatrixData{
		StationIDs:       meta.StationIDs,
		NumSlots:         slots,
		SlotDurationSecs: meta.TimeSlotDurationSecs,
		Values:           values,
	}, nil
}

func shapeFromMetadata(shape []int, mappingSize int) (n, slots int, err error) {
	switch len(shape) {
	case 2:
		return shape[0], 1, nil
	case 3:
		return shape[0], shape[2], nil
	case 0:
		if mappingSize == 0 {
			return 0, 0, apperrors.New(apperrors.KindMatrixShapeMismatch, "matrix metadata declares no shape and no station_mapping")
		}
		return mappingSize, 1, nil
	default:
		return 0, 0, apperrors.New(apperrors.KindMatrixShapeMismatch, "matrix_shape must have 2 or 3 dimensions")
	}
}

func readJSON[T any](path string) (T, error) {
	var out T
	f, err := os.Open(path)
	if err != nil {
		return out, apperrors.Wrap(err, apperrors.KindDataLoad, "opening metadata file").WithDetail("path", path)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&out); err != nil {
		return out, apperrors.Wrap(err, apperrors.KindDataLoad, "decoding metadata file").WithDetail("path", path)
	}
	return out, nil
}

func readFloat32Binary(path string, want int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDataLoad, "opening matrix file").WithDetail("path", path)
	}
	defer f.Close()

	raw := make([]byte, want*4)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindMatrixShapeMismatch, "matrix file shorter than declared shape").WithDetail("path", path)
	}
	out := make([]float32, want)
	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}
