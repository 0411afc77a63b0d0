package report

import (
	"encoding/json"
	"os"

	"example.com/rrdgate/internal/check"
	"example.com/rrdgate/internal/export"
)

func SaveSnapshotJSON(doc export.SnapshotDoc, out string) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func SaveAcceptanceJSON(rep check.AcceptanceReport, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadAcceptanceJSON(path string) (check.AcceptanceReport, error) {
	var rep check.AcceptanceReport
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	err = json.Unmarshal(b, &rep)
	return rep, err
}
