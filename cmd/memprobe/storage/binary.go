package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	binaryMagicNumber = uint32(0x4D505242) // "MPRB"
	binaryVersion     = uint32(1)
	resultSize        = 48 // size of an encoded Result in bytes
)

// BinaryStore implements ResultStore using a fixed-record binary format
type BinaryStore struct {
	file        *os.File
	session     *Session
	mu          sync.RWMutex
	resultCount int64
	baseDir     string
}

// NewBinaryStore creates a new binary result store
func NewBinaryStore(baseDir string, session *Session) (*BinaryStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	sessionDir := filepath.Join(baseDir, session.ID)
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	filePath := filepath.Join(sessionDir, "results.bin")
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open binary file: %w", err)
	}

	store := &BinaryStore{
		file:    file,
		session: session,
		baseDir: baseDir,
	}

	// Write header if file is empty
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	if stat.Size() == 0 {
		if err := store.writeHeader(); err != nil {
			file.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	return store, nil
}

// OpenBinaryStore opens an existing binary store for reading
func OpenBinaryStore(baseDir string, sessionID string) (*BinaryStore, error) {
	sessionDir := filepath.Join(baseDir, sessionID)
	filePath := filepath.Join(sessionDir, "results.bin")

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open binary file: %w", err)
	}

	store := &BinaryStore{
		file:    file,
		baseDir: baseDir,
	}

	if err := store.readHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}

	session, err := loadSessionMetadata(sessionDir)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("load session metadata: %w", err)
	}
	store.session = session
	// Seed the live counter so GetSession reports the persisted count.
	store.resultCount = session.ResultCount

	return store, nil
}

func (s *BinaryStore) writeHeader() error {
	if err := binary.Write(s.file, binary.LittleEndian, binaryMagicNumber); err != nil {
		return err
	}
	if err := binary.Write(s.file, binary.LittleEndian, binaryVersion); err != nil {
		return err
	}
	return nil
}

func (s *BinaryStore) readHeader() error {
	var magic, version uint32
	if err := binary.Read(s.file, binary.LittleEndian, &magic); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if magic != binaryMagicNumber {
		return fmt.Errorf("invalid magic number: %x", magic)
	}
	if err := binary.Read(s.file, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if version != binaryVersion {
		return fmt.Errorf("unsupported version: %d", version)
	}
	return nil
}

func (s *BinaryStore) WriteResult(result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := binary.Write(s.file, binary.LittleEndian, result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	s.resultCount++
	return nil
}

func (s *BinaryStore) WriteBatch(results []*Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, result := range results {
		if err := binary.Write(s.file, binary.LittleEndian, result); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		s.resultCount++
	}

	return nil
}

func (s *BinaryStore) ReadResults(ctx context.Context, filter *ResultFilter) ([]*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Skip the header
	if _, err := s.file.Seek(8, 0); err != nil {
		return nil, fmt.Errorf("seek past header: %w", err)
	}

	var results []*Result
	count := 0
	skipped := 0

	for {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		var result Result
		if err := binary.Read(s.file, binary.LittleEndian, &result); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("read result: %w", err)
		}

		if !matchesFilter(&result, filter) {
			continue
		}
		if filter != nil && filter.Offset > 0 && skipped < filter.Offset {
			skipped++
			continue
		}

		results = append(results, &result)
		count++

		if filter != nil && filter.Limit > 0 && count >= filter.Limit {
			break
		}
	}

	return results, nil
}

func (s *BinaryStore) GetWorkloads(ctx context.Context) ([]WorkloadType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.file.Seek(8, 0); err != nil {
		return nil, fmt.Errorf("seek past header: %w", err)
	}

	workloadMap := make(map[WorkloadType]bool)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var result Result
		if err := binary.Read(s.file, binary.LittleEndian, &result); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("read result: %w", err)
		}

		workloadMap[result.Workload] = true
	}

	workloads := make([]WorkloadType, 0, len(workloadMap))
	for w := range workloadMap {
		workloads = append(workloads, w)
	}

	return workloads, nil
}

func (s *BinaryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *BinaryStore) GetSession() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session := *s.session
	session.ResultCount = s.resultCount
	return &session
}

func (s *BinaryStore) UpdateSession(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = session
	sessionDir := filepath.Join(s.baseDir, session.ID)
	return saveSessionMetadata(sessionDir, session)
}
