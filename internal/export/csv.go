package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"bank-ledger/internal/domain"
)

// Header is the first row of every history export.
var Header = []string{"Username", "Type", "Amount", "Time"}

// WriteCSV writes the header followed by one row per transaction.
func WriteCSV(w io.Writer, transactions []domain.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, tx := range transactions {
		row := []string{
			tx.Username,
			string(tx.Type),
			strconv.FormatInt(tx.Amount, 10),
			tx.Time.Format(domain.TimeLayout),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
