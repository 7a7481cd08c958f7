package services

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/xuri/excelize/v2"

	"docqa-platform/models"
)

// ExportService renders a user's document inventory as a spreadsheet.
type ExportService struct {
	documents DocumentStore
}

func NewExportService(documents DocumentStore) *ExportService {
	return &ExportService{documents: documents}
}

// ExportDocuments builds an xlsx workbook listing every document the
// owner has and returns the serialized file.
func (es *ExportService) ExportDocuments(ctx context.Context, ownerEmail string) (*bytes.Buffer, error) {
	docs, err := es.documents.ListByOwner(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}
	return es.renderExcel(docs)
}

func (es *ExportService) renderExcel(docs []models.Document) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("error closing Excel file: %v", err)
		}
	}()

	sheetName := "Documents"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"ID", "Filename", "Uploaded At", "Pages", "Chunks"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIdx, doc := range docs {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), doc.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), doc.Filename)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), doc.UploadedAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), doc.PageCount)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), doc.ChunkCount)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf, nil
}
