package parser

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"document-qa/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var slideRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// ExtractText returns the full text of an unstructured document
func ExtractText(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	var (
		content string
		err     error
	)
	switch ext {
	case ".pdf":
		content, err = parsePDF(filePath)
	case ".docx":
		content, err = parseDOCX(filePath)
	case ".pptx":
		content, err = parsePPTX(filePath)
	case ".txt":
		content, err = parseText(filePath)
	case ".md":
		content, err = parseMarkdown(filePath)
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedFileType, ext)
	}
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s: %w", filepath.Base(filePath), err)
	}

	log.Debug().Str("file", filepath.Base(filePath)).Int("chars", len(content)).Msg("Extracted text")
	return content, nil
}

func parsePDF(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}
	return strings.Join(pages, "\n"), nil
}

func parseDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	paragraphs, err := extractParagraphs(strings.NewReader(r.Editable().GetContent()))
	if err != nil {
		return "", err
	}
	return strings.Join(paragraphs, "\n"), nil
}

func parsePPTX(filePath string) (string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range f.File {
		m := slideRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, file: file})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var texts []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.num, err)
		}
		paragraphs, err := extractParagraphs(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.num, err)
		}
		texts = append(texts, paragraphs...)
	}
	return strings.Join(texts, "\n"), nil
}

func parseText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseMarkdown(filePath string) (string, error) {
	source, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return markdownToText(source)
}

// markdownToText renders the text content of a markdown document, one line per block
func markdownToText(source []byte) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	endLine := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				endLine()
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.HardLineBreak() {
				b.WriteString("\n")
			} else if node.SoftLineBreak() {
				b.WriteString(" ")
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.URL(source))
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				b.Write(segment.Value(source))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}

// extractParagraphs walks WordprocessingML or DrawingML and returns the
// non-empty text of every paragraph. Runs (t) are concatenated, p ends a paragraph.
// Tabs count only inside a run (r); tab stops in paragraph properties are skipped.
func extractParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
		runDepth   int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				runDepth++
			case "t":
				inText = true
			case "br":
				current.WriteString("\n")
			case "tab":
				if runDepth > 0 {
					current.WriteString("\t")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				runDepth--
			case "t":
				inText = false
			case "p":
				if p := strings.TrimSpace(current.String()); p != "" {
					paragraphs = append(paragraphs, p)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	// text outside any paragraph
	if p := strings.TrimSpace(current.String()); p != "" {
		paragraphs = append(paragraphs, p)
	}
	return paragraphs, nil
}
