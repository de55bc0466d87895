package parser

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/lu4p/cat"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"pdf-rag/internal/models"
)

const defaultPageNumber = 0

type parseFunc func(filePath string) ([]models.Document, error)

var parsers = map[string]parseFunc{
	".pdf":      parsePDF,
	".docx":     parseDOCX,
	".pptx":     parsePPTX,
	".xlsx":     parseXLSX,
	".xlsm":     parseXLSX,
	".odt":      parseCat,
	".rtf":      parseCat,
	".md":       parseMarkdown,
	".markdown": parseMarkdown,
	".txt":      parseText,
}

var slideRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Supported reports whether filePath has an extension the parser understands.
func Supported(filePath string) bool {
	_, ok := parsers[strings.ToLower(filepath.Ext(filePath))]
	return ok
}

// ParseFile extracts page-level documents from a single file. Source is set
// to filePath as given.
func ParseFile(filePath string) ([]models.Document, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	parse, ok := parsers[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
	docs, err := parse(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}
	return docs, nil
}

// LoadDirectory walks dir in lexical order and parses every supported,
// non-hidden file. Documents come back grouped by file, pages ascending.
func LoadDirectory(dir string) ([]models.Document, error) {
	var docs []models.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != dir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !Supported(path) {
			log.Debug().Str("file", path).Msg("Skipping unsupported file")
			return nil
		}

		fileDocs, err := ParseFile(path)
		if err != nil {
			return err
		}
		log.Debug().Str("file", path).Int("pages", len(fileDocs)).Msg("Parsed file")
		docs = append(docs, fileDocs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func parsePDF(filePath string) ([]models.Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var docs []models.Document
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		docs = append(docs, models.Document{
			Content: pageText,
			Source:  filePath,
			Page:    i - 1,
		})
	}
	return docs, nil
}

func parseDOCX(filePath string) ([]models.Document, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// GetContent returns the raw document.xml body
	text, err := extractTextFromXML(r.Editable().GetContent())
	if err != nil {
		return nil, err
	}
	return singlePage(filePath, text), nil
}

func parsePPTX(filePath string) ([]models.Document, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type slide struct {
		number int
		file   *zip.File
	}
	var slides []slide
	for _, file := range f.File {
		m := slideRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{number: n, file: file})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	var docs []models.Document
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		slideText, err := extractTextFromXML(string(data))
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", s.number, err)
		}
		docs = append(docs, models.Document{
			Content: slideText,
			Source:  filePath,
			Page:    s.number - 1,
		})
	}
	return docs, nil
}

func parseXLSX(filePath string) ([]models.Document, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []models.Document
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		docs = append(docs, models.Document{
			Content: text.String(),
			Source:  filePath,
			Page:    sheetNum,
		})
	}
	return docs, nil
}

// odt and rtf
func parseCat(filePath string) ([]models.Document, error) {
	text, err := cat.File(filePath)
	if err != nil {
		return nil, err
	}
	return singlePage(filePath, text), nil
}

func parseText(filePath string) ([]models.Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return singlePage(filePath, string(data)), nil
}

func singlePage(filePath, text string) []models.Document {
	return []models.Document{{
		Content: text,
		Source:  filePath,
		Page:    defaultPageNumber,
	}}
}
