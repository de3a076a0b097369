package vecstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Index artifact layout, all little-endian:
//
//	offset 0  magic   "JVIX" (4 bytes)
//	offset 4  version uint16
//	offset 6  dims    uint32
//	offset 10 rows    uint32
//	offset 14 data    rows × dims float32, row-major
const (
	indexMagic   = "JVIX"
	indexVersion = 1
	headerLen    = 14
)

func encodeIndex(dims int, rows [][]float32) []byte {
	buf := make([]byte, 0, headerLen+len(rows)*dims*4)
	buf = append(buf, indexMagic...)
	buf = binary.LittleEndian.AppendUint16(buf, indexVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dims))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rows)))
	for _, row := range rows {
		for _, v := range row {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}
	return buf
}

func decodeIndex(data []byte, wantDims int) ([][]float32, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("artifact is %d bytes, shorter than the %d byte header", len(data), headerLen)
	}
	if string(data[:4]) != indexMagic {
		return nil, fmt.Errorf("bad magic %q", data[:4])
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != indexVersion {
		return nil, fmt.Errorf("unsupported format version %d", v)
	}
	dims := int(binary.LittleEndian.Uint32(data[6:10]))
	count := int(binary.LittleEndian.Uint32(data[10:14]))
	if dims != wantDims {
		return nil, fmt.Errorf("artifact has %d dimensions, store expects %d", dims, wantDims)
	}

	payload := data[headerLen:]
	if want := count * dims * 4; len(payload) != want {
		return nil, fmt.Errorf("artifact payload is %d bytes, header implies %d", len(payload), want)
	}

	rows := make([][]float32, count)
	off := 0
	for i := range rows {
		row := make([]float32, dims)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(payload[off:]))
			off += 4
		}
		rows[i] = row
	}
	return rows, nil
}

// The identifier map document is a JSON object keyed by the decimal
// identifier, matching how the map is consumed by external tooling:
//
//	{"0": {"chunk_id": "chunk_1", "text": "...", "metadata": {...}}, ...}
func encodeRecords(records map[int]Record) ([]byte, error) {
	doc := make(map[string]Record, len(records))
	for id, rec := range records {
		doc[strconv.Itoa(id)] = rec
	}
	return json.MarshalIndent(doc, "", "  ")
}

func decodeRecords(data []byte) (map[int]Record, error) {
	var doc map[string]Record
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	records := make(map[int]Record, len(doc))
	for key, rec := range doc {
		id, err := strconv.Atoi(key)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("identifier key %q is not a non-negative integer", key)
		}
		records[id] = rec
	}
	return records, nil
}
