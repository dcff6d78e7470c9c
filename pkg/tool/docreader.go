// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tool

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// DocReaderArgs is the parameter shape an LLM supplies to the doc_reader
// tool: a single path to a PDF, DOCX, or XLSX file on disk.
type DocReaderArgs struct {
	Path string `json:"path" jsonschema:"required,description=Path to a .pdf, .docx, or .xlsx file to read"`
}

// NewDocReader builds a CallableTool that extracts plain text from a
// PDF, Word, or Excel document, dispatching on the file extension. It
// is registered as a workflow-local tool the way any other FunctionTool
// is; it runs in-process and needs no external server, unlike MCPService.
func NewDocReader() (CallableTool, error) {
	return NewFunctionTool(FunctionConfig{
		Name:        "doc_reader",
		Description: "Reads the text content of a local PDF, DOCX, or XLSX file.",
	}, readDocument)
}

func readDocument(_ Context, args DocReaderArgs) (Result, error) {
	if args.Path == "" {
		return Result{}, fmt.Errorf("tool: doc_reader requires a path")
	}

	switch ext := strings.ToLower(filepath.Ext(args.Path)); ext {
	case ".pdf":
		text, err := readPDF(args.Path)
		return resultOrError("doc_reader", text, err)
	case ".docx":
		text, err := readDocx(args.Path)
		return resultOrError("doc_reader", text, err)
	case ".xlsx":
		text, err := readXlsx(args.Path)
		return resultOrError("doc_reader", text, err)
	default:
		return Result{}, fmt.Errorf("tool: doc_reader does not support %q files", ext)
	}
}

func resultOrError(name, text string, err error) (Result, error) {
	if err != nil {
		return Result{Text: fmt.Sprintf("%s: %v", name, err), IsError: true}, nil
	}
	return Result{Text: text}, nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func readDocx(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()
	return r.Editable().GetContent(), nil
}

func readXlsx(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		fmt.Fprintf(&buf, "# %s\n", sheet)
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}
