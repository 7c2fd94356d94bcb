package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	defaultQueueSize     = 1024
	defaultBufferSize    = 64 * 1024
	defaultFlushInterval = time.Second
	defaultFilePrefix    = "journal"
)

// Config controls journal writer behavior.
type Config struct {
	Dir           string
	QueueSize     int
	BufferSize    int
	FlushInterval time.Duration
	FilePrefix    string
}

func (c Config) withDefaults() Config {
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Writer appends records to date-stamped JSONL files from a buffered queue.
// Records are dropped rather than blocking the trading path when the queue
// is full.
type Writer struct {
	cfg    Config
	ch     chan Record
	wg     sync.WaitGroup
	closed uint32
}

// NewWriter creates a journal writer and ensures the target directory
// exists, then starts the writer loop.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if cfg.Dir == "" {
		return nil, errors.New("journal config: Dir is empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create journal dir")
	}
	w := &Writer{
		cfg: cfg,
		ch:  make(chan Record, cfg.QueueSize),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Append enqueues a record without blocking. Overflow is dropped.
func (w *Writer) Append(rec Record) {
	if atomic.LoadUint32(&w.closed) != 0 {
		return
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	select {
	case w.ch <- rec:
	default:
		logs.Warn("journal: queue full, record dropped")
	}
}

// Close flushes buffered records and closes the current file.
func (w *Writer) Close() error {
	if atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		close(w.ch)
	}
	w.wg.Wait()
	return nil
}

func (w *Writer) run() {
	defer w.wg.Done()

	var (
		file *os.File
		buf  *bufio.Writer
		day  string
	)
	flush := time.NewTicker(w.cfg.FlushInterval)
	defer flush.Stop()
	defer func() {
		if buf != nil {
			buf.Flush()
		}
		if file != nil {
			file.Close()
		}
	}()

	for {
		select {
		case rec, ok := <-w.ch:
			if !ok {
				return
			}
			if d := rec.Time.UTC().Format("20060102"); d != day {
				if buf != nil {
					buf.Flush()
				}
				if file != nil {
					file.Close()
				}
				path := filepath.Join(w.cfg.Dir, w.cfg.FilePrefix+"-"+d+".jsonl")
				f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					logs.Errorf("journal: open %s: %v", path, err)
					continue
				}
				file, buf, day = f, bufio.NewWriterSize(f, w.cfg.BufferSize), d
			}
			line, err := json.Marshal(rec)
			if err != nil {
				logs.Errorf("journal: encode record: %v", err)
				continue
			}
			buf.Write(line)
			buf.WriteByte('\n')
		case <-flush.C:
			if buf != nil {
				if err := buf.Flush(); err != nil {
					logs.Errorf("journal: flush: %v", err)
				}
			}
		}
	}
}
