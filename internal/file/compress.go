package file

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressTo writes data to w framed with c.
func CompressTo(w io.Writer, c Compression, data []byte) error {
	var enc io.WriteCloser
	switch c {
	case CompressionNone:
		_, err := w.Write(data)
		return err
	case CompressionZstd:
		zw, err := zstd.NewWriter(w,
			zstd.WithEncoderConcurrency(1),
			zstd.WithLowerEncoderMem(true),
		)
		if err != nil {
			return fmt.Errorf("zstd encoder: %w", err)
		}
		enc = zw
	case CompressionLZ4:
		enc = lz4.NewWriter(w)
	default:
		return fmt.Errorf("unsupported compression %s", c)
	}

	if _, err := enc.Write(data); err != nil {
		_ = enc.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("%s compress: %w", c, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("%s compress: %w", c, err)
	}
	return nil
}
