// Package exports renders indexed jobs and disputes as CSV or JSON Lines
// together with a SHA-256 checksum of the payload.
package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gigchain/integrations/indexer"
)

const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

var jobHeader = []string{"id", "client", "freelancer", "amount", "status", "dispute_id", "resolved", "settled_to", "updated_at"}

func jobFields(row indexer.JobRow) []string {
	return []string{
		strconv.FormatUint(row.ID, 10),
		row.Client,
		row.Freelancer,
		amountOrZero(row.Amount),
		row.Status,
		strconv.FormatUint(row.DisputeID, 10),
		strconv.FormatBool(row.Resolved),
		row.SettledTo,
		row.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

var disputeHeader = []string{"id", "job_id", "client", "freelancer", "fee", "votes_client", "votes_freelancer", "resolved", "winner", "updated_at"}

func disputeFields(row indexer.DisputeRow) []string {
	return []string{
		strconv.FormatUint(row.ID, 10),
		strconv.FormatUint(row.JobID, 10),
		row.Client,
		row.Freelancer,
		amountOrZero(row.Fee),
		strconv.FormatUint(row.VotesClient, 10),
		strconv.FormatUint(row.VotesFreelancer, 10),
		strconv.FormatBool(row.Resolved),
		row.Winner,
		row.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func amountOrZero(v string) string {
	if strings.TrimSpace(v) == "" {
		return "0"
	}
	return v
}

// JobsCSV builds a CSV export of rows.
func JobsCSV(rows []indexer.JobRow) ([]byte, string, error) {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, jobFields(row))
	}
	return writeCSV(jobHeader, records)
}

// JobsJSONL builds a JSON Lines export of rows keyed by the CSV header names.
func JobsJSONL(rows []indexer.JobRow) ([]byte, string, error) {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, jobFields(row))
	}
	return writeJSONL(jobHeader, records)
}

// DisputesCSV builds a CSV export of rows.
func DisputesCSV(rows []indexer.DisputeRow) ([]byte, string, error) {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, disputeFields(row))
	}
	return writeCSV(disputeHeader, records)
}

// DisputesJSONL builds a JSON Lines export of rows.
func DisputesJSONL(rows []indexer.DisputeRow) ([]byte, string, error) {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, disputeFields(row))
	}
	return writeJSONL(disputeHeader, records)
}

// Render dispatches on format for the named dataset ("jobs" or "disputes").
func Render(format string, jobs []indexer.JobRow, disputes []indexer.DisputeRow, dataset string) ([]byte, string, error) {
	switch strings.ToLower(dataset) + "/" + strings.ToLower(format) {
	case "jobs/" + FormatCSV:
		return JobsCSV(jobs)
	case "jobs/" + FormatJSONL:
		return JobsJSONL(jobs)
	case "disputes/" + FormatCSV:
		return DisputesCSV(disputes)
	case "disputes/" + FormatJSONL:
		return DisputesJSONL(disputes)
	default:
		return nil, "", fmt.Errorf("exports: unsupported dataset %q or format %q", dataset, format)
	}
}

func writeCSV(header []string, records [][]string) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(header); err != nil {
		return nil, "", err
	}
	if err := writer.WriteAll(records); err != nil {
		return nil, "", err
	}
	return checksummed(buffer.Bytes())
}

func writeJSONL(header []string, records [][]string) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, record := range records {
		payload := make(map[string]string, len(header))
		for i, key := range header {
			payload[key] = record[i]
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	return checksummed(buffer.Bytes())
}

func checksummed(data []byte) ([]byte, string, error) {
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}
