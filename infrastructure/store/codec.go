package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ahrav/go-matcher/internal/domain"
)

// Codec names a snapshot encoding.
type Codec string

const (
	CodecJSON Codec = "json"
	CodecCBOR Codec = "cbor"
)

// Compression names the compression applied to an encoded snapshot.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseCodec maps a configuration value to a Codec. Empty means JSON.
func ParseCodec(name string) (Codec, error) {
	switch Codec(name) {
	case "", CodecJSON:
		return CodecJSON, nil
	case CodecCBOR:
		return CodecCBOR, nil
	default:
		return "", fmt.Errorf("unknown snapshot codec: %q", name)
	}
}

// ParseCompression maps a configuration value to a Compression. Empty
// means none.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd:
		return CompressionZstd, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	default:
		return "", fmt.Errorf("unknown snapshot compression: %q", name)
	}
}

// snapshotVersion is bumped when the snapshot layout changes.
const snapshotVersion = 1

// snapshot is the persisted form of a record store.
type snapshot struct {
	Version int                      `json:"version"`
	Records []*domain.MetadataRecord `json:"records"`
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	encOpts := cbor.CoreDetEncOptions()
	// Record timestamps carry sub-second precision.
	encOpts.Time = cbor.TimeRFC3339Nano
	var err error
	cborEnc, err = encOpts.EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("store: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("store: zstd decoder initialization failed: " + err.Error())
	}
}

// encodeSnapshot serializes records with codec and compresses the result.
func encodeSnapshot(records []*domain.MetadataRecord, codec Codec, comp Compression) ([]byte, error) {
	snap := snapshot{Version: snapshotVersion, Records: records}

	var (
		data []byte
		err  error
	)
	switch codec {
	case CodecJSON:
		data, err = json.MarshalIndent(snap, "", "  ")
	case CodecCBOR:
		data, err = cborEnc.Marshal(snap)
	default:
		return nil, fmt.Errorf("unsupported snapshot codec: %q", codec)
	}
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return compress(data, comp)
}

// decodeSnapshot reverses encodeSnapshot.
func decodeSnapshot(data []byte, codec Codec, comp Compression) ([]*domain.MetadataRecord, error) {
	raw, err := decompress(data, comp)
	if err != nil {
		return nil, err
	}

	var snap snapshot
	switch codec {
	case CodecJSON:
		err = json.Unmarshal(raw, &snap)
	case CodecCBOR:
		err = cborDec.Unmarshal(raw, &snap)
	default:
		return nil, fmt.Errorf("unsupported snapshot codec: %q", codec)
	}
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d: want %d", snap.Version, snapshotVersion)
	}
	return snap.Records, nil
}

func compress(data []byte, comp Compression) ([]byte, error) {
	switch comp {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported snapshot compression: %q", comp)
	}
}

func decompress(data []byte, comp Compression) ([]byte, error) {
	switch comp {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	case CompressionLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported snapshot compression: %q", comp)
	}
}
