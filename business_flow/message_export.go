package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/future-messages/app/services"
	"github.com/amirphl/future-messages/models"
	"github.com/amirphl/future-messages/utils"
	"github.com/xuri/excelize/v2"
)

const (
	exportSheetName = "Messages"
	maxExportRows   = 10000
)

var exportHeader = []any{"Message ID", "Recipient Phone", "Message", "Event Date", "Reminder Days", "Due At", "Status", "Created At"}

// ExportMessages renders the caller's messages as an XLSX workbook
func (mf *MessageFlowImpl) ExportMessages(ctx context.Context, identity services.Identity) ([]byte, error) {
	if identity.UserID == 0 {
		return nil, NewBusinessError("UNAUTHENTICATED", "Authentication required", ErrUnauthenticated)
	}

	var all []*models.Message
	for offset := 0; offset < maxExportRows; offset += utils.MaxMessagePageSize {
		page, err := mf.messageRepo.ListBySender(ctx, identity.UserID, utils.MaxMessagePageSize, offset)
		if err != nil {
			return nil, NewBusinessError("MESSAGE_EXPORT_FAILED", "Failed to export messages", downstream(err))
		}
		all = append(all, page...)
		if len(page) < utils.MaxMessagePageSize {
			break
		}
	}

	data, err := buildMessagesWorkbook(all)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_EXPORT_FAILED", "Failed to export messages", err)
	}
	return data, nil
}

func buildMessagesWorkbook(messages []*models.Message) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheetName, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, msg := range messages {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			msg.MessageID.String(),
			msg.RecipientPhone,
			msg.Body,
			utils.FormatRFC3339UTC(msg.EventDate),
			msg.ReminderDays,
			utils.FormatRFC3339UTC(msg.DueAt),
			string(msg.Status),
			utils.FormatRFC3339UTC(msg.CreatedAt),
		}
		if err := f.SetSheetRow(exportSheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
