package imu

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadCSV parses a recorded IMU trace. Expected columns are
// ts,ax,ay,az with optional gx,gy,gz; a header row is skipped when the
// first field is not numeric. Rows must already be in increasing
// timestamp order — the reader does not sort.
func ReadCSV(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var samples []Sample
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++

		if len(record) < 4 {
			return nil, fmt.Errorf("line %d: expected at least 4 fields, got %d", line, len(record))
		}

		// Skip a header row
		if line == 1 {
			if _, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64); err != nil {
				continue
			}
		}

		s, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, s)
	}

	return samples, nil
}

func parseRecord(record []string) (Sample, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("bad timestamp %q: %w", record[0], err)
	}

	fields := make([]float64, 0, 6)
	for _, raw := range record[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("bad value %q: %w", raw, err)
		}
		fields = append(fields, v)
	}

	s := Sample{
		TimestampMs: ts,
		AX:          fields[0],
		AY:          fields[1],
		AZ:          fields[2],
	}
	if len(fields) >= 6 {
		s.GX, s.GY, s.GZ = fields[3], fields[4], fields[5]
		s.HasGyro = true
	}
	return s, nil
}
