package workbook

import (
	"context"
	"fmt"
	"strings"
)

// FindNextEmptyRow returns the first row in column between startRow and
// endRow whose cell is blank. The backend trims trailing blank rows, so a
// short result means the row after the last returned one is free. found is
// false only when every row in the window holds a value; a failed read is
// reported as err rather than as a full window.
func (a *Accessor) FindNextEmptyRow(ctx context.Context, column string, startRow, endRow int) (int, bool, error) {
	window := endRow - startRow + 1
	address := fmt.Sprintf("%s%d:%s%d", column, startRow, column, endRow)

	rows, err := a.GetRangeValues(ctx, address)
	if err != nil {
		return 0, false, err
	}
	for i, row := range rows {
		if i >= window {
			break
		}
		if isBlankRow(row) {
			return startRow + i, true, nil
		}
	}
	if len(rows) < window {
		return startRow + len(rows), true, nil
	}
	return 0, false, nil
}

func isBlankRow(row []any) bool {
	if len(row) == 0 {
		return true
	}
	return isBlank(row[0])
}

func isBlank(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}
