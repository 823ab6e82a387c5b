package storage

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// CompressedStore оборачивает BlobStore и сжимает значения zstd.
// Внутренний формат значения непрозрачен для вызывающей стороны.
type CompressedStore struct {
	inner   BlobStore
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressedStore создаёт сжимающую обёртку над inner
func NewCompressedStore(inner BlobStore) (*CompressedStore, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &CompressedStore{
		inner:   inner,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Get читает и распаковывает значение
func (cs *CompressedStore) Get(ctx context.Context, key string) ([]byte, error) {
	compressed, err := cs.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	data, err := cs.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode %s: %w", key, err)
	}
	return data, nil
}

// Put сжимает и записывает значение
func (cs *CompressedStore) Put(ctx context.Context, key string, value []byte) error {
	return cs.inner.Put(ctx, key, cs.encoder.EncodeAll(value, nil))
}

// Delete удаляет ключ во внутреннем хранилище
func (cs *CompressedStore) Delete(ctx context.Context, key string) error {
	return cs.inner.Delete(ctx, key)
}

// Close закрывает кодеки и внутреннее хранилище
func (cs *CompressedStore) Close() error {
	cs.encoder.Close()
	cs.decoder.Close()
	return cs.inner.Close()
}
