package circulation

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSV の文字コード
const (
	EncodingUTF8    = "utf8"
	EncodingUTF8BOM = "utf8bom" // Excel で開く用
	EncodingSJIS    = "sjis"    // Windowsの「ANSI（CP932）」相当
)

var exportHeader = []string{
	"issue_id", "issue_ulid", "user_id", "copy_id", "isbn", "title",
	"status", "issue_date", "return_date", "actual_return_date", "fine_amount",
}

func encoderFor(name string) (*encoding.Encoder, error) {
	switch name {
	case "", EncodingUTF8:
		return encoding.Nop.NewEncoder(), nil
	case EncodingUTF8BOM:
		return unicode.UTF8BOM.NewEncoder(), nil
	case EncodingSJIS:
		// SJIS に無い文字は置換する
		return encoding.ReplaceUnsupported(japanese.ShiftJIS.NewEncoder()), nil
	}
	return nil, ErrInvalid("encoding must be one of utf8, utf8bom, sjis")
}

// ExportIssues は全貸出を CSV で w に書き出す（管理者のみ）
func (s *Service) ExportIssues(ctx context.Context, p Principal, f IssueFilter, enc string, w io.Writer) error {
	if err := authorize(p, actExportIssues); err != nil {
		return err
	}
	e, err := encoderFor(enc)
	if err != nil {
		return err
	}

	tw := transform.NewWriter(w, e)
	cw := csv.NewWriter(tw)
	if err := cw.Write(exportHeader); err != nil {
		return s.fail(ctx, "export issues", err)
	}

	page := Page{Limit: maxLimit, Order: "asc"}
	for {
		items, total, err := s.repo.FindIssues(ctx, f, page)
		if err != nil {
			return s.fail(ctx, "export issues", err)
		}
		for i := range items {
			if err := cw.Write(issueRecord(&items[i])); err != nil {
				return s.fail(ctx, "export issues", err)
			}
		}
		page.Offset += page.Limit
		if len(items) == 0 || int64(page.Offset) >= total {
			break
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return s.fail(ctx, "export issues", err)
	}
	if err := tw.Close(); err != nil {
		return s.fail(ctx, "export issues", err)
	}
	return nil
}

func issueRecord(i *Issue) []string {
	return []string{
		strconv.FormatInt(i.ID, 10),
		i.ULID,
		strconv.FormatInt(i.UserID, 10),
		strconv.FormatInt(i.CopyID, 10),
		i.Book.ISBN,
		i.Book.Title,
		string(i.Status),
		i.IssueDate.UTC().Format(time.RFC3339),
		formatNullTime(i.ReturnDate.Valid, i.ReturnDate.Time),
		formatNullTime(i.ActualReturnDate.Valid, i.ActualReturnDate.Time),
		i.FineAmount.StringFixed(2),
	}
}

func formatNullTime(valid bool, t time.Time) string {
	if !valid {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
