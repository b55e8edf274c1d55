package store

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var csvHeader = []string{
	"Conversation ID", "Date", "Mode", "User Question", "Bot Answer",
	"Prompt Tokens", "Prompt Cost (USD)", "Completion Tokens", "Completion Cost (USD)",
	"Total Tokens", "Total Cost (USD)",
}

// WriteCSV streams every log row as CSV, oldest first. Newlines inside
// question/answer are flattened to spaces so each record stays on one row.
// Costs are formatted to 8 decimal places; a NULL cost renders as "0.0".
func (s *SQLiteStore) WriteCSV(w io.Writer) error {
	query := "SELECT " + logColumns + " FROM conversation_logs ORDER BY timestamp ASC"
	rows, err := s.db.Query(query)
	if err != nil {
		return fmt.Errorf("failed to query logs for export: %w", err)
	}
	defer rows.Close()

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for rows.Next() {
		var entry ConversationLog
		var promptCost, completionCost, totalCost sql.NullFloat64
		if err := rows.Scan(&entry.ID, &entry.ConversationID, &entry.Timestamp, &entry.Mode,
			&entry.Question, &entry.Answer,
			&entry.PromptTokens, &entry.CompletionTokens, &entry.TotalTokens,
			&promptCost, &completionCost, &totalCost); err != nil {
			return fmt.Errorf("failed to scan log row for export: %w", err)
		}

		record := []string{
			entry.ConversationID,
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.Mode,
			flatten(entry.Question),
			flatten(entry.Answer),
			strconv.Itoa(entry.PromptTokens),
			formatCost(promptCost),
			strconv.Itoa(entry.CompletionTokens),
			formatCost(completionCost),
			strconv.Itoa(entry.TotalTokens),
			formatCost(totalCost),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate logs for export: %w", err)
	}

	writer.Flush()
	return writer.Error()
}

func flatten(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.ReplaceAll(text, "\r", " ")
}

func formatCost(cost sql.NullFloat64) string {
	if !cost.Valid {
		return "0.0"
	}
	return fmt.Sprintf("%.8f", cost.Float64)
}
