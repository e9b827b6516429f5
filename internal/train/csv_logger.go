package train

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// CSVLogger writes iteration,error,time_seconds rows to a CSV file.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool

	file   *os.File
	writer *csv.Writer
	start  time.Time
	err    error
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

func (c *CSVLogger) OnTrainBegin(t Iterative) {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0644)
	if err != nil {
		c.err = errors.Wrap(err, "CSVLogger")
		return
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.start = time.Now()

	// header only for a fresh file
	info, err := file.Stat()
	if err == nil && (info.Size() == 0 || !c.Append) {
		c.write([]string{"iteration", "error", "time_seconds"})
	}
}

func (c *CSVLogger) OnIterationEnd(iteration int, err float64, t Iterative) {
	if c.writer == nil {
		return
	}
	c.write([]string{
		strconv.Itoa(iteration),
		strconv.FormatFloat(err, 'f', 6, 64),
		strconv.FormatFloat(time.Since(c.start).Seconds(), 'f', 2, 64),
	})
}

func (c *CSVLogger) write(record []string) {
	if c.err != nil {
		return
	}
	if err := c.writer.Write(record); err != nil {
		c.err = errors.Wrap(err, "CSVLogger")
		return
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.err = errors.Wrap(err, "CSVLogger")
	}
}

func (c *CSVLogger) OnTrainEnd(t Iterative) {
	if c.file == nil {
		return
	}
	c.writer.Flush()
	if err := c.file.Close(); err != nil && c.err == nil {
		c.err = errors.Wrap(err, "CSVLogger")
	}
	c.file = nil
	c.writer = nil
}

// Err returns the first open or write failure.
func (c *CSVLogger) Err() error { return c.err }
