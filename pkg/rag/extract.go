// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rag ingests policy documents into the vector index: text
// extraction, chunking, embedding and upsert.
package rag

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// Document is the extracted text of one file.
type Document struct {
	Path     string
	Title    string
	Format   string
	Content  string
	Metadata map[string]string
}

// ErrOutsideRoot rejects references that resolve outside the document root.
var ErrOutsideRoot = errors.New("document reference is outside the document root")

// ResolveRef turns a document reference (a file:// URL or a plain path)
// into an absolute local path. With a non-empty root, relative references
// are taken from root and the result, symlinks followed, must stay inside
// it. An empty root allows any path.
func ResolveRef(ref, root string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty document reference")
	}
	if strings.Contains(ref, "://") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("invalid document reference %q: %w", ref, err)
		}
		if u.Scheme != "file" {
			return "", fmt.Errorf("unsupported document scheme %q (supported: file)", u.Scheme)
		}
		ref = u.Path
	}
	if root == "" {
		return filepath.Abs(ref)
	}

	if !filepath.IsAbs(ref) {
		ref = filepath.Join(root, ref)
	}
	path, err := filepath.Abs(ref)
	if err != nil {
		return "", err
	}
	base, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
		if realBase, err := filepath.EvalSymlinks(base); err == nil {
			base = realBase
		}
	}
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, ref)
	}
	return path, nil
}

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".csv": true, ".json": true, ".yaml": true, ".yml": true, ".log": true,
}

// Extract reads the document behind ref, confined to root as in
// ResolveRef. PDF, DOCX and XLSX go through their native parsers; anything
// else must be UTF-8 text.
func Extract(ctx context.Context, ref, root string) (*Document, error) {
	path, err := ResolveRef(ref, root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat document: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("document reference %s is a directory", path)
	}

	doc := &Document{
		Path:  path,
		Title: filepath.Base(path),
		Metadata: map[string]string{
			"file_size": fmt.Sprintf("%d", info.Size()),
		},
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		doc.Format = "pdf"
		err = extractPDF(ctx, doc, info.Size())
	case ".docx":
		doc.Format = "docx"
		err = extractWord(doc)
	case ".xlsx":
		doc.Format = "xlsx"
		err = extractExcel(ctx, doc)
	default:
		doc.Format = "text"
		err = extractText(doc, textExtensions[ext])
	}
	if err != nil {
		return nil, err
	}
	doc.Metadata["format"] = doc.Format
	doc.Metadata["word_count"] = fmt.Sprintf("%d", len(strings.Fields(doc.Content)))
	return doc, nil
}

func extractPDF(ctx context.Context, doc *Document, size int64) error {
	file, err := os.Open(doc.Path)
	if err != nil {
		return fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	reader, err := pdf.NewReader(file, size)
	if err != nil {
		return fmt.Errorf("failed to parse PDF: %w", err)
	}

	var parts []string
	total := reader.NumPage()
	for n := 1; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return fmt.Errorf("failed to extract PDF page %d: %w", n, err)
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	doc.Content = strings.Join(parts, "\n\n")
	doc.Metadata["pages"] = fmt.Sprintf("%d", total)
	return nil
}

func extractWord(doc *Document) error {
	r, err := docx.ReadDocxFile(doc.Path)
	if err != nil {
		return fmt.Errorf("failed to parse Word document: %w", err)
	}
	defer r.Close()

	doc.Content = stripXMLTags(r.Editable().GetContent())
	return nil
}

// stripXMLTags drops the WordprocessingML markup GetContent returns,
// turning paragraph ends into newlines.
func stripXMLTags(s string) string {
	s = strings.ReplaceAll(s, "</w:p>", "\n")
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(html.UnescapeString(b.String()))
}

func extractExcel(ctx context.Context, doc *Document) error {
	f, err := excelize.OpenFile(doc.Path)
	if err != nil {
		return fmt.Errorf("failed to parse Excel document: %w", err)
	}
	defer f.Close()

	const maxCells = 1000
	var parts []string
	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}

		var b strings.Builder
		cells := 0
		for _, row := range rows {
			var line []string
			for _, cell := range row {
				if text := strings.TrimSpace(cell); text != "" {
					line = append(line, text)
					cells++
				}
			}
			if len(line) > 0 {
				b.WriteString(strings.Join(line, " | "))
				b.WriteString("\n")
			}
			if cells >= maxCells {
				break
			}
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			parts = append(parts, sheet+"\n"+text)
		}
	}
	doc.Content = strings.Join(parts, "\n\n")
	doc.Metadata["sheets"] = fmt.Sprintf("%d", len(sheets))
	return nil
}

func extractText(doc *Document, known bool) error {
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	if !known && !utf8.Valid(data) {
		return fmt.Errorf("unsupported document format %q", filepath.Ext(doc.Path))
	}
	doc.Content = strings.ToValidUTF8(string(data), "")
	return nil
}
