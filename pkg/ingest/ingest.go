package ingest

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/store"

	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrEmptyDocument   = errors.New("document has no extractable text")
)

var (
	blankLines  = regexp.MustCompile(`\n{3,}`)
	inlineSpace = regexp.MustCompile(`[ \t\f\v]+`)
)

// Supported reports whether name has an extension Ingest can read
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

// ChunkID is stable for a given source name and chunk position
func ChunkID(source string, index int) string {
	sum := sha1.Sum([]byte(source))
	return fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:])[:12], index)
}

type Ingestor struct {
	splitter *Splitter
	logger   logger.ILogger
}

func NewIngestor(splitter *Splitter, log logger.ILogger) *Ingestor {
	return &Ingestor{splitter: splitter, logger: log}
}

// page is the text of one page and where it starts in the joined document
type page struct {
	number int
	offset int
}

// Ingest extracts text from data and cuts it into chunks
func (i *Ingestor) Ingest(ctx context.Context, name string, data []byte) ([]store.DocumentChunk, error) {
	source := filepath.Base(name)
	var pages []string
	var err error

	switch strings.ToLower(filepath.Ext(source)) {
	case ".pdf":
		pages, err = readPDF(data)
	case ".txt", ".md":
		pages = []string{string(data)}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}

	var doc strings.Builder
	var offsets []page
	for n, text := range pages {
		text = clean(text)
		if text == "" {
			continue
		}
		if doc.Len() > 0 {
			doc.WriteString("\n\n")
		}
		offsets = append(offsets, page{number: n + 1, offset: doc.Len()})
		doc.WriteString(text)
	}
	if doc.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, source)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full := doc.String()
	texts := i.splitter.Split(full)
	chunks := make([]store.DocumentChunk, 0, len(texts))
	from := 0
	for idx, text := range texts {
		meta := map[string]interface{}{
			"chunk_index":  idx,
			"total_chunks": len(texts),
		}
		locator := fmt.Sprintf("chunk %d", idx)

		if start, ok := locate(full, text, from); ok {
			from = start + 1
			if len(pages) > 1 {
				first := pageAt(offsets, start)
				last := pageAt(offsets, start+len(text)-1)
				meta["page_start"], meta["page_end"] = first, last
				if first == last {
					locator = fmt.Sprintf("page %d, chunk %d", first, idx)
				} else {
					locator = fmt.Sprintf("pages %d-%d, chunk %d", first, last, idx)
				}
			}
		}

		chunks = append(chunks, store.DocumentChunk{
			ID:       ChunkID(source, idx),
			Source:   source,
			Locator:  locator,
			Text:     text,
			Metadata: meta,
		})
	}

	i.logger.Info("Ingest", "Document ingested", map[string]interface{}{
		"source": source,
		"pages":  len(pages),
		"chunks": len(chunks),
	})
	return chunks, nil
}

// FileReport is the outcome for one file of a directory load
type FileReport struct {
	Name   string
	Chunks int
	Err    error
}

// LoadDirectory ingests every supported file directly under dir. Failing
// files are reported and skipped.
func (i *Ingestor) LoadDirectory(ctx context.Context, dir string) ([]store.DocumentChunk, []FileReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Name() < entries[b].Name() })

	var all []store.DocumentChunk
	var reports []FileReport
	for _, entry := range entries {
		if entry.IsDir() || !Supported(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return all, reports, err
		}

		report := FileReport{Name: entry.Name()}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err == nil {
			var chunks []store.DocumentChunk
			chunks, err = i.Ingest(ctx, entry.Name(), data)
			report.Chunks = len(chunks)
			all = append(all, chunks...)
		}
		if err != nil {
			report.Err = err
			i.logger.Warn("Ingest", "Skipping file", map[string]interface{}{
				"file":  entry.Name(),
				"error": err.Error(),
			})
		}
		reports = append(reports, report)
	}
	return all, reports, nil
}

func readPDF(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for n := 1; n <= reader.NumPage(); n++ {
		p := reader.Page(n)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	lines := strings.Split(text, "\n")
	for n, line := range lines {
		lines[n] = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

// locate finds where a chunk starts in the joined document
func locate(full, chunk string, from int) (int, bool) {
	probe := chunk
	if len(probe) > 40 {
		probe = probe[:40]
	}
	if from > len(full) {
		from = len(full)
	}
	idx := strings.Index(full[from:], probe)
	if idx < 0 {
		idx = strings.Index(full, probe)
		if idx < 0 {
			return 0, false
		}
		return idx, true
	}
	return from + idx, true
}

func pageAt(pages []page, offset int) int {
	n := sort.Search(len(pages), func(k int) bool { return pages[k].offset > offset })
	if n == 0 {
		return pages[0].number
	}
	return pages[n-1].number
}
