// Package wal implements a write-ahead log for the hot tier.
//
// Embeddings are expensive to recompute (a GPU pass per track), so
// hot-tier writes that have not yet been promoted are logged and
// replayed on restart. The log holds two record kinds: upserts, one
// per hot write, and checkpoints, appended after a promotion evicts a
// backbone's entries up to a sequence watermark. Replay drops upserts
// at or below their backbone's latest checkpoint, and Compact rewrites
// the file with only the surviving records.
package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/melodex/embedstore/internal/compress"
)

const (
	// FileName is the log file name inside the data directory.
	FileName = "hot.wal"

	version = 1

	recordUpsert     = 1
	recordCheckpoint = 2

	headerSize       = 8  // magic u32 + version u16 + compression u8 + reserved u8
	recordHeaderSize = 17 // type u8 + seq u64 + block len u32 + crc u32
)

var magic = [4]byte{'M', 'X', 'W', 'L'}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var (
	// ErrCorrupt marks a log whose header or a full record failed
	// validation. Replay treats a truncated tail as a clean end of
	// log, not corruption.
	ErrCorrupt = errors.New("wal: corrupt log")

	// ErrKeyTooLong is returned when a backbone or file identifier
	// exceeds the 64 KiB the record format can frame.
	ErrKeyTooLong = errors.New("wal: identifier exceeds 64 KiB")
)

const maxKeyLen = math.MaxUint16

// UpsertRecord is one replayed hot write.
type UpsertRecord struct {
	Backbone string
	FileID   string
	Vector   []float32
	Seq      uint64
}

// WAL is an append-only log. Safe for concurrent appends.
type WAL struct {
	mu          sync.Mutex
	file        *os.File
	w           *bufio.Writer
	path        string
	compression compress.Type
	syncOnWrite bool
	closed      bool
}

// Options configure a WAL.
type Options struct {
	// Compression applied to record payloads.
	Compression compress.Type

	// SyncOnWrite fsyncs after every append. Durable but slow; off by
	// default since a lost tail only costs re-tagging a few tracks.
	SyncOnWrite bool
}

// Open opens or creates the log at dir/hot.wal.
func Open(dir string, opts Options) (*WAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: create dir: %w", err)
	}
	path := filepath.Join(dir, FileName)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("wal: stat: %w", err)
	}

	w := &WAL{
		file:        file,
		path:        path,
		compression: opts.Compression,
		syncOnWrite: opts.SyncOnWrite,
	}

	if info.Size() == 0 {
		if err := w.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
	} else {
		ctype, err := readHeader(file)
		if err != nil {
			file.Close()
			return nil, err
		}
		// An existing log dictates its own compression.
		w.compression = ctype
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, fmt.Errorf("wal: seek: %w", err)
	}
	w.w = bufio.NewWriter(file)
	return w, nil
}

func (w *WAL) writeHeader() error {
	var hdr [headerSize]byte
	copy(hdr[0:4], magic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], version)
	hdr[6] = byte(w.compression)

	if _, err := w.file.Write(hdr[:]); err != nil {
		return fmt.Errorf("wal: write header: %w", err)
	}
	return w.file.Sync()
}

func readHeader(r io.Reader) (compress.Type, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	if [4]byte(hdr[0:4]) != magic {
		return 0, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != version {
		return 0, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	return compress.Type(hdr[6]), nil
}

// AppendUpsert logs a hot write.
func (w *WAL) AppendUpsert(backbone, fileID string, vector []float32, seq uint64) error {
	if len(backbone) > maxKeyLen || len(fileID) > maxKeyLen {
		return fmt.Errorf("%w: backbone %d bytes, file id %d bytes", ErrKeyTooLong, len(backbone), len(fileID))
	}
	payload := encodeUpsert(backbone, fileID, vector)
	return w.append(recordUpsert, seq, payload)
}

// AppendCheckpoint logs that a backbone's hot entries up to watermark
// have been promoted and no longer need replay.
func (w *WAL) AppendCheckpoint(backbone string, watermark uint64) error {
	if len(backbone) > maxKeyLen {
		return fmt.Errorf("%w: backbone %d bytes", ErrKeyTooLong, len(backbone))
	}
	payload := encodeCheckpoint(backbone, watermark)
	return w.append(recordCheckpoint, watermark, payload)
}

func (w *WAL) append(recordType byte, seq uint64, payload []byte) error {
	block, err := compress.Block(payload, w.compression)
	if err != nil {
		return fmt.Errorf("wal: compress record: %w", err)
	}

	var hdr [recordHeaderSize]byte
	hdr[0] = recordType
	binary.LittleEndian.PutUint64(hdr[1:9], seq)
	binary.LittleEndian.PutUint32(hdr[9:13], uint32(len(block)))
	binary.LittleEndian.PutUint32(hdr[13:17], crc32.Checksum(block, castagnoli))

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("wal: closed")
	}
	if _, err := w.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wal: append: %w", err)
	}
	if _, err := w.w.Write(block); err != nil {
		return fmt.Errorf("wal: append: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if w.syncOnWrite {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("wal: sync: %w", err)
		}
	}
	return nil
}

// Replay reads the whole log and returns the upserts still needed to
// rebuild the hot tier: for each backbone, only records with seq above
// its latest checkpoint. A truncated final record ends replay cleanly.
func (w *WAL) Replay() ([]UpsertRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.w.Flush(); err != nil {
		return nil, fmt.Errorf("wal: flush before replay: %w", err)
	}
	return replayFile(w.path)
}

func replayFile(path string) ([]UpsertRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wal: open for replay: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	ctype, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	var records []UpsertRecord
	checkpoints := make(map[string]uint64)

	for {
		var hdr [recordHeaderSize]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("wal: read record header: %w", err)
		}

		recordType := hdr[0]
		seq := binary.LittleEndian.Uint64(hdr[1:9])
		blockLen := binary.LittleEndian.Uint32(hdr[9:13])
		sum := binary.LittleEndian.Uint32(hdr[13:17])

		block := make([]byte, blockLen)
		if _, err := io.ReadFull(r, block); err != nil {
			// Torn tail from a crash mid-append.
			break
		}
		if crc32.Checksum(block, castagnoli) != sum {
			return nil, fmt.Errorf("%w: checksum mismatch at seq %d", ErrCorrupt, seq)
		}

		payload, err := compress.Unblock(block, ctype)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}

		switch recordType {
		case recordUpsert:
			rec, err := decodeUpsert(payload)
			if err != nil {
				return nil, err
			}
			rec.Seq = seq
			records = append(records, rec)
		case recordCheckpoint:
			backbone, watermark, err := decodeCheckpoint(payload)
			if err != nil {
				return nil, err
			}
			if watermark > checkpoints[backbone] {
				checkpoints[backbone] = watermark
			}
		default:
			return nil, fmt.Errorf("%w: unknown record type %d", ErrCorrupt, recordType)
		}
	}

	live := records[:0]
	for _, rec := range records {
		if rec.Seq > checkpoints[rec.Backbone] {
			live = append(live, rec)
		}
	}
	return live, nil
}

// Compact rewrites the log keeping only records that would survive a
// replay. Called after promotion checkpoints make a prefix dead.
func (w *WAL) Compact() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("wal: closed")
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("wal: flush before compact: %w", err)
	}

	live, err := replayFile(w.path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.path), ".wal-compact-*")
	if err != nil {
		return fmt.Errorf("wal: compact temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	replacement := &WAL{
		file:        tmp,
		path:        tmp.Name(),
		compression: w.compression,
	}
	if err := replacement.writeHeader(); err != nil {
		tmp.Close()
		return err
	}
	replacement.w = bufio.NewWriter(tmp)

	for _, rec := range live {
		if err := replacement.append(recordUpsert, rec.Seq, encodeUpsert(rec.Backbone, rec.FileID, rec.Vector)); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := replacement.w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("wal: flush compact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("wal: sync compact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("wal: close compact: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("wal: close old log: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("wal: swap compact: %w", err)
	}

	file, err := os.OpenFile(w.path, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("wal: reopen after compact: %w", err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return fmt.Errorf("wal: seek after compact: %w", err)
	}
	w.file = file
	w.w = bufio.NewWriter(file)
	return nil
}

// Close flushes and closes the log.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.w.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("wal: flush on close: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("wal: sync on close: %w", err)
	}
	return w.file.Close()
}

func encodeUpsert(backbone, fileID string, vector []float32) []byte {
	payload := make([]byte, 0, 2+len(backbone)+2+len(fileID)+4+len(vector)*4)
	payload = binary.LittleEndian.AppendUint16(payload, uint16(len(backbone)))
	payload = append(payload, backbone...)
	payload = binary.LittleEndian.AppendUint16(payload, uint16(len(fileID)))
	payload = append(payload, fileID...)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(len(vector)))
	for _, v := range vector {
		payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(v))
	}
	return payload
}

func decodeUpsert(payload []byte) (UpsertRecord, error) {
	var rec UpsertRecord

	backbone, rest, ok := cutString(payload)
	if !ok {
		return rec, fmt.Errorf("%w: short upsert payload", ErrCorrupt)
	}
	fileID, rest, ok := cutString(rest)
	if !ok {
		return rec, fmt.Errorf("%w: short upsert payload", ErrCorrupt)
	}
	if len(rest) < 4 {
		return rec, fmt.Errorf("%w: short upsert payload", ErrCorrupt)
	}
	dim := binary.LittleEndian.Uint32(rest)
	rest = rest[4:]
	if len(rest) != int(dim)*4 {
		return rec, fmt.Errorf("%w: upsert payload dim %d but %d vector bytes", ErrCorrupt, dim, len(rest))
	}

	vector := make([]float32, dim)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(rest[i*4:]))
	}

	rec.Backbone = backbone
	rec.FileID = fileID
	rec.Vector = vector
	return rec, nil
}

func encodeCheckpoint(backbone string, watermark uint64) []byte {
	payload := make([]byte, 0, 2+len(backbone)+8)
	payload = binary.LittleEndian.AppendUint16(payload, uint16(len(backbone)))
	payload = append(payload, backbone...)
	payload = binary.LittleEndian.AppendUint64(payload, watermark)
	return payload
}

func decodeCheckpoint(payload []byte) (string, uint64, error) {
	backbone, rest, ok := cutString(payload)
	if !ok || len(rest) != 8 {
		return "", 0, fmt.Errorf("%w: short checkpoint payload", ErrCorrupt)
	}
	return backbone, binary.LittleEndian.Uint64(rest), nil
}

func cutString(b []byte) (string, []byte, bool) {
	if len(b) < 2 {
		return "", nil, false
	}
	n := int(binary.LittleEndian.Uint16(b))
	b = b[2:]
	if len(b) < n {
		return "", nil, false
	}
	return string(b[:n]), b[n:], true
}
