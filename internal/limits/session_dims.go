package limits

import "fmt"

const (
	SessionMaxCols     = 500
	SessionMaxRows     = 200
	SessionDefaultCols = 80
	SessionDefaultRows = 24
)

type DimensionError struct {
	Cols, Rows       int
	MaxCols, MaxRows int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimensions %dx%d exceed max %dx%d", e.Cols, e.Rows, e.MaxCols, e.MaxRows)
}

// Normalize replaces non-positive dimensions with the session defaults.
func Normalize(cols, rows int) (int, int) {
	if cols < 1 {
		cols = SessionDefaultCols
	}
	if rows < 1 {
		rows = SessionDefaultRows
	}
	return cols, rows
}

func Clamp(cols, rows int) (int, int) {
	cols, rows = Normalize(cols, rows)
	if cols > SessionMaxCols {
		cols = SessionMaxCols
	}
	if rows > SessionMaxRows {
		rows = SessionMaxRows
	}
	return cols, rows
}

func ValidateMax(cols, rows int) error {
	cols, rows = Normalize(cols, rows)
	if cols > SessionMaxCols || rows > SessionMaxRows {
		return &DimensionError{Cols: cols, Rows: rows, MaxCols: SessionMaxCols, MaxRows: SessionMaxRows}
	}
	return nil
}
