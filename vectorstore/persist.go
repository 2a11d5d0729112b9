package vectorstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	metadataFile = "metadata.json"
	indexFile    = "index.bin"

	metadataVersion = 1
	indexVersion    = 1
)

var indexMagic = [4]byte{'D', 'Q', 'I', 'X'}

// metadataEnvelope versions the record sequence so stale or foreign files
// are rejected instead of silently misread.
type metadataEnvelope struct {
	Version int      `json:"version"`
	Records []record `json:"records"`
}

type indexHeader struct {
	Magic     [4]byte
	Version   uint32
	Dimension uint32
	Count     uint32
}

// persist writes the metadata file first, then the index. If the process
// dies between the two writes, load() recovers the index from the metadata's
// retained embeddings. Caller must hold the write lock.
func (s *Store) persist() error {
	if err := s.saveMetadata(); err != nil {
		return err
	}
	return s.saveIndex()
}

func (s *Store) saveMetadata() error {
	data, err := json.Marshal(metadataEnvelope{Version: metadataVersion, Records: s.records})
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.dir, metadataFile), data)
}

func (s *Store) saveIndex() error {
	path := filepath.Join(s.dir, indexFile)

	tmp, err := os.CreateTemp(s.dir, indexFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	header := indexHeader{
		Magic:     indexMagic,
		Version:   indexVersion,
		Dimension: uint32(s.dim),
		Count:     uint32(len(s.records)),
	}
	if err := binary.Write(tmp, binary.LittleEndian, header); err != nil {
		tmp.Close()
		return fmt.Errorf("write index header: %w", err)
	}
	if err := binary.Write(tmp, binary.LittleEndian, s.vectors); err != nil {
		tmp.Close()
		return fmt.Errorf("write index vectors: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

// load restores records and vectors from disk. A missing or truncated index
// alongside intact metadata is repaired from the records' embeddings; the
// reverse, or any disagreement between the two, is ErrCorrupt.
func (s *Store) load() error {
	metaPath := filepath.Join(s.dir, metadataFile)
	indexPath := filepath.Join(s.dir, indexFile)

	metaData, metaErr := os.ReadFile(metaPath)
	if metaErr != nil {
		if !errors.Is(metaErr, os.ErrNotExist) {
			return fmt.Errorf("read metadata: %w", metaErr)
		}
		if _, err := os.Stat(indexPath); err == nil {
			return fmt.Errorf("%w: index present without metadata in %s", ErrCorrupt, s.dir)
		}
		// Fresh store.
		return nil
	}

	var envelope metadataEnvelope
	if err := json.Unmarshal(metaData, &envelope); err != nil {
		return fmt.Errorf("%w: decode metadata: %v", ErrCorrupt, err)
	}
	if envelope.Version != metadataVersion {
		return fmt.Errorf("%w: unsupported metadata version %d", ErrCorrupt, envelope.Version)
	}

	s.records = envelope.Records
	if len(s.records) > 0 {
		dim := len(s.records[0].Embedding)
		if dim == 0 {
			return fmt.Errorf("%w: record 0 has no embedding", ErrCorrupt)
		}
		for i, rec := range s.records {
			if len(rec.Embedding) != dim {
				return fmt.Errorf("%w: record %d embedding dimension %d, want %d", ErrCorrupt, i, len(rec.Embedding), dim)
			}
		}
	}

	ok, err := s.loadIndex(indexPath)
	if err != nil {
		return err
	}
	if !ok {
		// Crash between the metadata and index writes, or first save never
		// finished. Rebuild from the retained embeddings and rewrite.
		s.logger.Warn().Str("dir", s.dir).Msg("vector index missing or stale, rebuilding from metadata")
		s.rebuildVectors()
		return s.saveIndex()
	}

	return nil
}

// loadIndex reads the index file and checks it against the already-loaded
// records. It returns false when the index is absent or lags behind the
// metadata (both recoverable), and ErrCorrupt when the artifacts disagree in
// a way a rebuild cannot explain.
func (s *Store) loadIndex(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	var header indexHeader
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		return false, fmt.Errorf("%w: read index header: %v", ErrCorrupt, err)
	}
	if header.Magic != indexMagic {
		return false, fmt.Errorf("%w: bad index magic", ErrCorrupt)
	}
	if header.Version != indexVersion {
		return false, fmt.Errorf("%w: unsupported index version %d", ErrCorrupt, header.Version)
	}

	count := int(header.Count)
	dim := int(header.Dimension)

	if count > len(s.records) {
		return false, fmt.Errorf("%w: index holds %d vectors but metadata has %d records", ErrCorrupt, count, len(s.records))
	}
	if count < len(s.records) {
		return false, nil
	}
	if count > 0 && dim != len(s.records[0].Embedding) {
		return false, fmt.Errorf("%w: index dimension %d, metadata dimension %d", ErrCorrupt, dim, len(s.records[0].Embedding))
	}

	vectors := make([]float32, count*dim)
	if err := binary.Read(f, binary.LittleEndian, vectors); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("%w: read index vectors: %v", ErrCorrupt, err)
	}

	s.vectors = vectors
	s.dim = dim
	return true, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}
